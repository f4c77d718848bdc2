package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"inkwell.blog/internal/media"
)

const multipartMemory = 8 << 20

// form is a request body read either from multipart/urlencoded fields or
// from a JSON object. Absent keys stay absent so partial updates work.
type form struct {
	values map[string]*string
	lists  map[string][]string
	files  map[string]*media.Upload
}

func (f form) value(key string) *string { return f.values[key] }

func (f form) list(key string) *[]string {
	l, ok := f.lists[key]
	if !ok {
		return nil
	}
	return &l
}

func (f form) file(key string) *media.Upload { return f.files[key] }

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// parseForm reads text fields, list fields and file fields from r. List
// fields arrive as a JSON array, either encoded into a form value or inline in
// a JSON body.
func (a *API) parseForm(r *http.Request, textKeys, listKeys, fileKeys []string) (form, error) {
	f := form{
		values: make(map[string]*string),
		lists:  make(map[string][]string),
		files:  make(map[string]*media.Upload),
	}
	if isJSON(r) {
		return f, decodeJSONForm(r, &f, textKeys, listKeys)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return f, err
		}
		return f, fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	for _, key := range textKeys {
		if vals, ok := r.PostForm[key]; ok && len(vals) > 0 {
			v := vals[0]
			f.values[key] = &v
		}
	}
	for _, key := range listKeys {
		vals, ok := r.PostForm[key]
		if !ok || len(vals) == 0 {
			continue
		}
		list, err := parseList(vals)
		if err != nil {
			return f, fmt.Errorf("%w: %s must be a JSON array of ids", errMalformedBody, key)
		}
		f.lists[key] = list
	}
	if r.MultipartForm == nil {
		return f, nil
	}
	for _, key := range fileKeys {
		upload, err := a.readFile(r, key)
		if err != nil {
			return f, err
		}
		if upload != nil {
			f.files[key] = upload
		}
	}
	return f, nil
}

func (a *API) readFile(r *http.Request, key string) (*media.Upload, error) {
	file, header, err := r.FormFile(key)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	defer file.Close()
	// one byte past the limit so the size check can see the overflow
	data, err := io.ReadAll(io.LimitReader(file, a.opts.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return &media.Upload{Filename: header.Filename, Data: data}, nil
}

// parseList accepts a JSON array, a single id, or repeated form values.
func parseList(vals []string) ([]string, error) {
	if len(vals) > 1 {
		return vals, nil
	}
	raw := strings.TrimSpace(vals[0])
	if raw == "" {
		return []string{}, nil
	}
	if !strings.HasPrefix(raw, "[") {
		return []string{raw}, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, err
	}
	return list, nil
}

func decodeJSONForm(r *http.Request, f *form, textKeys, listKeys []string) error {
	var body map[string]json.RawMessage
	if err := decodeJSON(r, &body); err != nil {
		return err
	}
	for _, key := range textKeys {
		raw, ok := body[key]
		if !ok {
			continue
		}
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("%w: %s must be a string", errMalformedBody, key)
		}
		f.values[key] = &v
	}
	for _, key := range listKeys {
		raw, ok := body[key]
		if !ok {
			continue
		}
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			var encoded string
			if json.Unmarshal(raw, &encoded) != nil {
				return fmt.Errorf("%w: %s must be an array of ids", errMalformedBody, key)
			}
			if list, err = parseList([]string{encoded}); err != nil {
				return fmt.Errorf("%w: %s must be an array of ids", errMalformedBody, key)
			}
		}
		if list == nil {
			list = []string{}
		}
		f.lists[key] = list
	}
	return nil
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("%w: empty body", errMalformedBody)
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errMalformedBody)
		}
		return fmt.Errorf("%w: invalid JSON", errMalformedBody)
	}
	return nil
}
