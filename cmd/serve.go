package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ibimina/ingest-core/internal/adapter"
	"github.com/ibimina/ingest-core/internal/model"
	"github.com/ibimina/ingest-core/internal/registry"
	"github.com/ibimina/ingest-core/internal/session"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ingestion and session HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reg, err := initRegistry()
		if err != nil {
			return err
		}
		st, err := initSessionStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(reg, st, cfg.Server.RateLimit, cfg.Server.RateBurst),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("server listening", zap.Int("port", port))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return eris.Wrap(err, "server shutdown")
			}
			return nil
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return eris.Wrap(err, "server listen")
		}
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter assembles the HTTP surface: one parse endpoint over the adapter
// registry and CRUD over the agent session store.
func newRouter(reg *registry.Registry, st session.Store, rateLimit float64, rateBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	if rateLimit > 0 {
		r.Use(rateLimiter(rate.Limit(rateLimit), rateBurst))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/v1/parse", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Input string `json:"input"`
			Type  string `json:"type,omitempty"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Input == "" {
			writeError(w, http.StatusBadRequest, "input is required")
			return
		}
		typ := adapter.Type(body.Type)
		if body.Type != "" && !typ.Valid() {
			writeError(w, http.StatusBadRequest, "type must be statement or sms")
			return
		}
		writeJSON(w, http.StatusOK, reg.AutoParse(body.Input, typ))
	})

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			var record model.AgentSessionRecord
			if err := json.NewDecoder(req.Body).Decode(&record); err != nil {
				writeError(w, http.StatusBadRequest, "invalid session record")
				return
			}
			if record.ID == "" {
				record.ID = uuid.New().String()
			}
			persisted, err := st.Save(req.Context(), &record)
			if err != nil {
				zap.L().Error("session save failed", zap.String("session_id", record.ID), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "save failed")
				return
			}
			writeJSON(w, http.StatusCreated, persisted)
		})

		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "id")
			record, err := st.Get(req.Context(), id)
			if err != nil {
				zap.L().Error("session get failed", zap.String("session_id", id), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "get failed")
				return
			}
			if record == nil {
				writeError(w, http.StatusNotFound, "session not found")
				return
			}
			writeJSON(w, http.StatusOK, record)
		})

		r.Put("/{id}", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "id")
			var record model.AgentSessionRecord
			if err := json.NewDecoder(req.Body).Decode(&record); err != nil {
				writeError(w, http.StatusBadRequest, "invalid session record")
				return
			}
			record.ID = id
			persisted, err := st.Save(req.Context(), &record)
			if err != nil {
				zap.L().Error("session save failed", zap.String("session_id", id), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "save failed")
				return
			}
			writeJSON(w, http.StatusOK, persisted)
		})

		r.Post("/{id}/touch", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "id")
			var body struct {
				ExpiresAt *time.Time `json:"expires_at,omitempty"`
			}
			if req.ContentLength > 0 {
				if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
					writeError(w, http.StatusBadRequest, "invalid touch body")
					return
				}
			}
			if err := st.Touch(req.Context(), id, body.ExpiresAt); err != nil {
				zap.L().Error("session touch failed", zap.String("session_id", id), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "touch failed")
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Delete("/{id}", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "id")
			if err := st.Delete(req.Context(), id); err != nil {
				zap.L().Error("session delete failed", zap.String("session_id", id), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "delete failed")
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})

	return r
}

// rateLimiter rejects requests above the configured sustained rate with 429.
func rateLimiter(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(limit, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
