// Package labsite serves a small practice target for exercising discovery and
// the surface scanner locally. Every page has a weak and a hardened variant
// and the posture can be switched at runtime.
package labsite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/raysh454/hunter/internal/logging"
)

// Config holds configuration for the lab site.
type Config struct {
	// Addr is the listen address, e.g. "127.0.0.1:9999".
	Addr string
	// Posture is the starting posture.
	Posture Posture
}

// DefaultConfig returns a Config listening on localhost:9999 in the weak posture.
func DefaultConfig() Config {
	return Config{Addr: "127.0.0.1:9999", Posture: PostureWeak}
}

// Site is the lab HTTP target.
type Site struct {
	cfg    Config
	pages  []Page
	logger logging.Logger

	mu      sync.RWMutex
	posture Posture
}

// New builds a site from cfg. An unset posture means weak.
func New(cfg Config, logger logging.Logger) (*Site, error) {
	if cfg.Posture == "" {
		cfg.Posture = PostureWeak
	}
	if !cfg.Posture.Valid() {
		return nil, fmt.Errorf("unknown posture %q", cfg.Posture)
	}
	return &Site{
		cfg:     cfg,
		pages:   Pages(),
		logger:  logger.With(logging.Field{Key: "component", Value: "labsite"}),
		posture: cfg.Posture,
	}, nil
}

// Posture returns the posture currently served.
func (s *Site) Posture() Posture {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.posture
}

// SetPosture switches every page to p.
func (s *Site) SetPosture(p Posture) error {
	if !p.Valid() {
		return fmt.Errorf("unknown posture %q", p)
	}
	s.mu.Lock()
	s.posture = p
	s.mu.Unlock()
	s.logger.Info("posture changed", logging.Field{Key: "posture", Value: string(p)})
	return nil
}

// Handler returns the site's routes.
func (s *Site) Handler() http.Handler {
	r := chi.NewRouter()
	for _, p := range s.pages {
		r.Get(p.Path, s.pageHandler(p))
	}
	r.Get("/static/*", s.staticHandler)
	r.Get("/lab/posture", s.getPostureHandler)
	r.Post("/lab/posture", s.setPostureHandler)
	return r
}

// Start serves until ctx is cancelled.
func (s *Site) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("lab site listening",
			logging.Field{Key: "addr", Value: s.cfg.Addr},
			logging.Field{Key: "posture", Value: string(s.Posture())})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Site) pageHandler(p Page) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := p.Variants[s.Posture()]
		for k, val := range v.Headers {
			w.Header().Set(k, val)
		}
		for _, c := range v.Cookies {
			cookie := &http.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Path:     "/",
				HttpOnly: c.HttpOnly,
				Secure:   c.Secure,
			}
			switch c.SameSite {
			case "Strict":
				cookie.SameSite = http.SameSiteStrictMode
			case "Lax":
				cookie.SameSite = http.SameSiteLaxMode
			case "None":
				cookie.SameSite = http.SameSiteNoneMode
			}
			http.SetCookie(w, cookie)
		}
		contentType := v.ContentType
		if contentType == "" {
			contentType = "text/html; charset=utf-8"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(v.HTML))
	}
}

func (s *Site) staticHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = fmt.Fprintf(w, "// lab asset %s\n", r.URL.Path)
}

type postureResponse struct {
	Posture Posture `json:"posture"`
}

func (s *Site) getPostureHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(postureResponse{Posture: s.Posture()})
}

func (s *Site) setPostureHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.SetPosture(Posture(r.FormValue("posture"))); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.getPostureHandler(w, r)
}
