package main

import (
	"fmt"
	"net/http"
)

// setupRoutes registers all HTTP routes and middleware.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)

	// Run endpoints
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/", s.handleRun)

	return corsMiddleware(s.config.AllowedOrigins)(mux)
}

// corsMiddleware adds CORS headers to responses.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				allowed = true
			} else {
				for _, allowedOrigin := range allowedOrigins {
					if allowedOrigin == origin {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	handler := s.setupRoutes()

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.log.Infof("SweepScope server starting on %s", addr)
	s.log.Infof("   Database: %s", s.config.DBPath)
	s.log.Infof("Endpoints:")
	s.log.Infof("   GET    /health                        - Health check")
	s.log.Infof("   GET    /api/runs                      - List sweep runs")
	s.log.Infof("   GET    /api/runs/{id}                 - Run with response summary")
	s.log.Infof("   GET    /api/runs/{id}/measurements    - Run dataset")
	s.log.Infof("   GET    /api/runs/{id}/plot.png        - Amplitude/frequency plot")
	s.log.Infof("   DELETE /api/runs/{id}                 - Delete run")

	return http.ListenAndServe(addr, handler)
}
