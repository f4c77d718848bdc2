package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"inkwell.blog/internal/audit"
	"inkwell.blog/internal/blog"
)

var (
	postTextFields = []string{"title", "content"}
	postListFields = []string{"linkedBlogs"}
	postFileFields = []string{"image"}
)

func (a *API) handleListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := queryInt(q.Get("page"))
	limit := queryInt(q.Get("limit"))
	res, err := a.posts.List(r.Context(), viewerID(r), page, limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleSavedPosts(w http.ResponseWriter, r *http.Request) {
	views, err := a.posts.ListSaved(r.Context(), viewerID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (a *API) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	f, err := a.parseForm(r, postTextFields, postListFields, postFileFields)
	if err != nil {
		handleError(w, r, err)
		return
	}
	draft := blog.Draft{Image: f.file("image")}
	if v := f.value("title"); v != nil {
		draft.Title = *v
	}
	if v := f.value("content"); v != nil {
		draft.Content = *v
	}
	if links := f.list("linkedBlogs"); links != nil {
		draft.Links = *links
	}
	view, err := a.posts.Create(r.Context(), viewerID(r), draft)
	if err != nil {
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventPostCreate, map[string]any{
		"post_id":   view.ID,
		"has_image": view.Image != "",
		"links":     len(view.LinkedBlogs),
	})
	writeJSON(w, http.StatusCreated, view)
}

func (a *API) handleGetPost(w http.ResponseWriter, r *http.Request) {
	view, err := a.posts.Get(r.Context(), viewerID(r), mux.Vars(r)["id"])
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	f, err := a.parseForm(r, postTextFields, postListFields, postFileFields)
	if err != nil {
		handleError(w, r, err)
		return
	}
	edit := blog.Edit{
		Title:   f.value("title"),
		Content: f.value("content"),
		Image:   f.file("image"),
		Links:   f.list("linkedBlogs"),
	}
	view, err := a.posts.Update(r.Context(), viewerID(r), id, edit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventPostUpdate, map[string]any{
		"post_id":       id,
		"image_changed": edit.Image != nil,
	})
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := a.posts.Delete(r.Context(), viewerID(r), id); err != nil {
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventPostDelete, map[string]any{"post_id": id})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Blog deleted successfully"})
}

func (a *API) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	view, err := a.posts.ToggleLike(r.Context(), viewerID(r), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventPostLike, map[string]any{"post_id": id, "liked": *view.Liked})
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleToggleSave(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	view, err := a.posts.ToggleSave(r.Context(), viewerID(r), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventPostSave, map[string]any{"post_id": id, "saved": *view.Saved})
	writeJSON(w, http.StatusOK, view)
}

// queryInt returns 0 for absent or non-numeric values so the service falls
// back to its defaults.
func queryInt(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
