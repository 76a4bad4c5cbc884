package kvserver

import (
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxValueBytes bounds a PUT body.
const maxValueBytes = 64 << 10

// Options configures the HTTP handler.
type Options struct {
	// Token, if set, must be presented as a bearer token on every request.
	Token string

	Logger *slog.Logger
}

// Handler returns the HTTP surface over backend.
func Handler(backend Backend, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &server{backend: backend, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})

	r.Group(func(r chi.Router) {
		if opts.Token != "" {
			r.Use(bearerAuth(opts.Token))
		}
		r.Get("/{key}", s.get)
		r.Put("/{key}", s.put)
		r.Delete("/{key}", s.delete)
	})
	return r
}

type server struct {
	backend Backend
	logger  *slog.Logger
}

func (s *server) get(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	v, _, err := s.backend.Get(r.Context(), key)
	if err != nil {
		s.fail(w, "get", key, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, v)
}

func (s *server) put(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxValueBytes))
	if err != nil {
		http.Error(w, "value too large", http.StatusRequestEntityTooLarge)
		return
	}
	if err := s.backend.Set(r.Context(), key, string(body)); err != nil {
		s.fail(w, "put", key, err)
		return
	}
	s.logger.Debug("kv put", "key", key, "bytes", len(body))
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) delete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := s.backend.Delete(r.Context(), key); err != nil {
		s.fail(w, "delete", key, err)
		return
	}
	s.logger.Debug("kv delete", "key", key)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) fail(w http.ResponseWriter, op, key string, err error) {
	s.logger.Error("kv backend error", "op", op, "key", key, "error", err)
	http.Error(w, "backend error", http.StatusBadGateway)
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	want := []byte("Bearer " + token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(strings.TrimSpace(r.Header.Get("Authorization")))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
