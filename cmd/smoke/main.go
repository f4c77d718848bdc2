package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"inkwell.blog/internal/obs"
)

type session struct {
	Token string `json:"token"`
	User  struct {
		ID string `json:"id"`
	} `json:"user"`
}

type post struct {
	ID     string   `json:"_id"`
	Likes  []string `json:"likes"`
	Author struct {
		Name string `json:"name"`
	} `json:"author"`
}

type client struct {
	base string
	http *http.Client
}

func (c *client) call(ctx context.Context, method, path, token string, body, out any, want int) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: expected %d, got %d: %s", method, path, want, resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func main() {
	log := obs.Logger()
	flags := pflag.NewFlagSet("smoke", pflag.ExitOnError)
	base := flags.String("base-url", envOr("INKWELL_BASE_URL", "http://localhost:5000"), "API base URL")
	_ = flags.Parse(os.Args[1:])

	c := &client{base: *base, http: &http.Client{Timeout: 10 * time.Second}}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	run := uuid.NewString()[:8]
	var author, reader session
	must(c.call(ctx, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Smoke Author", "email": "author-" + run + "@smoke.test", "password": "smoke-pass",
	}, &author, http.StatusCreated), "register author")
	must(c.call(ctx, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Smoke Reader", "email": "reader-" + run + "@smoke.test", "password": "smoke-pass",
	}, &reader, http.StatusCreated), "register reader")

	var created post
	must(c.call(ctx, http.MethodPost, "/api/blogs", author.Token, map[string]string{
		"title": "smoke " + run, "content": "<p>smoke</p>",
	}, &created, http.StatusCreated), "create post")
	if created.Author.Name != "Smoke Author" {
		log.Fatalf("unexpected author name %q", created.Author.Name)
	}

	var liked, unliked post
	must(c.call(ctx, http.MethodPost, "/api/blogs/"+created.ID+"/like", reader.Token, nil, &liked, http.StatusOK), "like")
	if !slices.Equal(liked.Likes, []string{reader.User.ID}) {
		log.Fatalf("like not recorded: %v", liked.Likes)
	}
	must(c.call(ctx, http.MethodPost, "/api/blogs/"+created.ID+"/like", reader.Token, nil, &unliked, http.StatusOK), "unlike")
	if len(unliked.Likes) != 0 {
		log.Fatalf("unlike not recorded: %v", unliked.Likes)
	}

	must(c.call(ctx, http.MethodDelete, "/api/blogs/"+created.ID, reader.Token, nil, nil, http.StatusForbidden), "non-author delete")
	must(c.call(ctx, http.MethodDelete, "/api/blogs/"+created.ID, author.Token, nil, nil, http.StatusOK), "delete")
	must(c.call(ctx, http.MethodGet, "/api/blogs/"+created.ID, "", nil, nil, http.StatusNotFound), "get deleted")

	log.WithField("post_id", created.ID).Info("smoke test passed")
}

func must(err error, step string) {
	if err != nil {
		obs.Logger().WithError(err).Fatal(step)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
