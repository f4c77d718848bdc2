package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                           "/",
		"/metrics":                   "/metrics",
		"/api/blogs":                 "/api/blogs",
		"/api/blogs/saved":           "/api/blogs/saved",
		"/api/blogs/abc":             "/api/blogs/:id",
		"/api/blogs/abc/like":        "/api/blogs/:id/like",
		"/api/blogs/abc/save":        "/api/blogs/:id/save",
		"/api/blogs/abc/extra":       "/api/blogs/abc/extra",
		"/api/blogs/abc?x=1":         "/api/blogs/:id",
		"/api/auth/login":            "/api/auth/login",
		"/uploads/01HX.png":          "/uploads/:file",
		"/api/blogs?page=2&limit=10": "/api/blogs",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
