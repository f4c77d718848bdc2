package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"inkwell.blog/internal/auth"
	"inkwell.blog/internal/blog"
	"inkwell.blog/internal/obs"
)

const (
	defaultMaxBodyBytes   = 10 << 20
	defaultMaxUploadBytes = 5 << 20
)

// Pinger is implemented by stores that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe checks the backing store before reporting ready.
type ReadyProbe struct {
	Store Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return rp.Store.Ping(ctx)
}

// Options tunes the HTTP layer.
type Options struct {
	Version        string
	CORSOrigins    []string
	MaxBodyBytes   int64
	MaxUploadBytes int64
	AuthRateBurst  int
	AuthRatePerSec int
	// UploadDir, when set, is served read-only under /uploads/.
	UploadDir string
	// TrustedProxies may set X-Forwarded-For; everyone else is keyed by peer address.
	TrustedProxies TrustedProxies
}

// API is the HTTP layer.
type API struct {
	router     *mux.Router
	accounts   *auth.Service
	posts      *blog.Service
	readyProbe ReadyProbe
	opts       Options
}

func New(accounts *auth.Service, posts *blog.Service, rp ReadyProbe, opts Options) *API {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	a := &API{
		router:     mux.NewRouter(),
		accounts:   accounts,
		posts:      posts,
		readyProbe: rp,
		opts:       opts,
	}
	a.routes()
	return a
}

func (a *API) routes() {
	r := a.router
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/health", a.Health).Methods(http.MethodGet)
	r.HandleFunc("/healthz", a.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", a.Ready).Methods(http.MethodGet)
	r.Handle("/metrics", obs.Handler()).Methods(http.MethodGet)

	credentials := func(h http.HandlerFunc) http.Handler {
		return RateLimit(h, a.opts.AuthRateBurst, a.opts.AuthRatePerSec)
	}
	r.Handle("/api/auth/register", credentials(a.handleRegister)).Methods(http.MethodPost)
	r.Handle("/api/auth/login", credentials(a.handleLogin)).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/me", a.requireAuth(a.handleMe)).Methods(http.MethodGet)

	r.HandleFunc("/api/users/profile", a.requireAuth(a.handleMe)).Methods(http.MethodGet)
	r.HandleFunc("/api/users/profile", a.requireAuth(a.handleUpdateProfile)).Methods(http.MethodPut)

	r.HandleFunc("/api/blogs", a.optionalAuth(a.handleListPosts)).Methods(http.MethodGet)
	r.HandleFunc("/api/blogs", a.requireAuth(a.handleCreatePost)).Methods(http.MethodPost)
	r.HandleFunc("/api/blogs/saved", a.requireAuth(a.handleSavedPosts)).Methods(http.MethodGet)
	r.HandleFunc("/api/blogs/{id}", a.optionalAuth(a.handleGetPost)).Methods(http.MethodGet)
	r.HandleFunc("/api/blogs/{id}", a.requireAuth(a.handleUpdatePost)).Methods(http.MethodPut)
	r.HandleFunc("/api/blogs/{id}", a.requireAuth(a.handleDeletePost)).Methods(http.MethodDelete)
	r.HandleFunc("/api/blogs/{id}/like", a.requireAuth(a.handleToggleLike)).Methods(http.MethodPost)
	r.HandleFunc("/api/blogs/{id}/save", a.requireAuth(a.handleToggleSave)).Methods(http.MethodPost)

	if a.opts.UploadDir != "" {
		files := http.StripPrefix("/uploads/", http.FileServer(http.Dir(a.opts.UploadDir)))
		r.PathPrefix("/uploads/").Handler(noDirListing(files)).Methods(http.MethodGet, http.MethodHead)
	}
}

// Handler returns the router wrapped in the middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = MaxBodyBytes(h, a.opts.MaxBodyBytes)
	h = CORS(a.opts.CORSOrigins)(h)
	h = SecurityHeaders(h)
	h = obs.Instrument(h)
	h = LoggingJSON(h)
	h = RealIP(a.opts.TrustedProxies)(h)
	return RequestID(h)
}

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "inkwell-api",
		"version": a.opts.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			writeError(w, r, http.StatusNotFound, "file not found")
			return
		}
		next.ServeHTTP(w, r)
	})
}
