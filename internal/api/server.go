// Package api exposes quill's pipelines over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/quill/internal/processor"
	"github.com/MikeSquared-Agency/quill/internal/style"
)

// Pipeline is the processor surface the handlers call.
type Pipeline interface {
	Submit(ctx context.Context, identifier string, pairs []style.EmailPair) (*processor.SubmitResult, error)
	Feedback(ctx context.Context, in processor.FeedbackInput) (*processor.FeedbackResult, error)
	Draft(ctx context.Context, in processor.DraftInput) (*processor.DraftResult, error)
	SaveStyleProfile(ctx context.Context, identifier string) error
	StyleProfile(ctx context.Context, identifier string) (*processor.StyleView, error)
	CurrentEmails(ctx context.Context, identifier, category string) ([]style.SyntheticEmail, error)
	UserData(ctx context.Context, identifier string) (*processor.UserData, error)
}

var _ Pipeline = (*processor.Processor)(nil)

type Options struct {
	// APIToken, when set, is required as a bearer token on /api routes.
	APIToken    string
	CORSOrigins []string
}

type Server struct {
	router   *chi.Mux
	port     int
	pipeline Pipeline
	logger   *slog.Logger
	http     *http.Server
}

func NewServer(port int, pipeline Pipeline, opts Options, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		MaxAge:         300,
	}))

	s := &Server{
		router:   router,
		port:     port,
		pipeline: pipeline,
		logger:   logger,
	}

	router.Get("/health", s.health)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(opts.APIToken))
		r.Post("/submit-emails", s.submitEmails)
		r.Post("/email-feedback", s.emailFeedback)
		r.Post("/save-style-profile", s.saveStyleProfile)
		r.Post("/generate-email", s.generateEmail)
		r.Get("/style-analysis", s.styleAnalysis)
		r.Get("/users/{userID}/data", s.userData)
		r.Get("/users/{userID}/synthetic-emails", s.syntheticEmails)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)
	return s.http.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// BearerAuthMiddleware rejects requests without the expected bearer token.
// An empty token disables the check.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// userFromRequest reads the user identifier from the X-User-ID header, then
// the userId query parameter.
func userFromRequest(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("userId"))
}

func parseEmailID(raw string) (uuid.UUID, bool) {
	if strings.TrimSpace(raw) == "" {
		return uuid.Nil, true
	}
	id, err := uuid.Parse(raw)
	return id, err == nil
}
