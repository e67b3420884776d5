// Package api serves persisted build results over a read-only HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/waabox/ontoloci/internal/domain"
)

// Prefix is the root of the build results endpoints.
const Prefix = "/api/v1/buildResults"

// Handler exposes a domain.BuildResultStore.
type Handler struct {
	store    domain.BuildResultStore
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewHandler creates a Handler. When gatherer is not nil its metrics are
// served on /metrics.
func NewHandler(store domain.BuildResultStore, gatherer prometheus.Gatherer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, gatherer: gatherer, logger: logger}
}

// Routes returns the mux with every endpoint registered.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+Prefix, h.handleList)
	mux.HandleFunc("GET "+Prefix+"/{id}", h.handleGet)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if h.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// handleList handles GET /api/v1/buildResults.
// Optional query parameters owner, repo and status filter the results.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	results, err := h.store.FindAll(r.Context())
	if err != nil {
		h.logger.Error("listing build results", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to list build results")
		return
	}

	q := r.URL.Query()
	owner, repo, status := q.Get("owner"), q.Get("repo"), strings.ToUpper(q.Get("status"))
	filtered := make([]domain.BuildResult, 0, len(results))
	for _, res := range results {
		if owner != "" && !strings.EqualFold(res.Metadata.Owner, owner) {
			continue
		}
		if repo != "" && !strings.EqualFold(res.Metadata.Repo, repo) {
			continue
		}
		if status != "" && string(res.Status) != status {
			continue
		}
		filtered = append(filtered, res)
	}
	h.writeJSON(w, http.StatusOK, filtered)
}

// handleGet handles GET /api/v1/buildResults/{id}.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result, ok, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		h.logger.Error("getting build result", zap.String("id", id), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to get build result")
		return
	}
	if !ok {
		h.writeError(w, http.StatusNotFound, "build result not found")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("writing response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// Serve runs the API on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
