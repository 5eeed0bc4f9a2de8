// Package server exposes the catalog over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"Tunora/core/auth"
	"Tunora/logger"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// NewRouter 注册所有路由. CORS wraps the router so preflight requests are
// answered before method matching.
func NewRouter(h *CatalogHandler, tokens *auth.TokenManager, checks map[string]HealthCheck) http.Handler {
	router := mux.NewRouter()
	router.Use(requestMiddleware)

	protect := func(fn http.HandlerFunc) http.HandlerFunc {
		return AuthMiddleware(tokens, fn)
	}

	c := router.PathPrefix("/catalog").Subrouter()

	// 曲目与发行
	c.HandleFunc("/track", protect(h.CreateTrackHandler)).Methods(http.MethodPost)
	c.HandleFunc("/release", protect(h.CreateReleaseHandler)).Methods(http.MethodPost)
	c.HandleFunc("/track", h.GetTrackHandler).Methods(http.MethodGet)
	c.HandleFunc("/release", h.GetReleaseHandler).Methods(http.MethodGet)

	// 播放计数
	c.HandleFunc("/track/play", protect(h.PlayTrackHandler)).Methods(http.MethodPatch)
	c.HandleFunc("/release/play", protect(h.PlayReleaseHandler)).Methods(http.MethodPatch)

	// 艺人视图
	c.HandleFunc("/artist-top", protect(h.ArtistTopHandler)).Methods(http.MethodGet)
	c.HandleFunc("/artist-recent", protect(h.ArtistRecentHandler)).Methods(http.MethodGet)
	c.HandleFunc("/catalog", protect(h.ArtistCatalogHandler)).Methods(http.MethodGet)

	// 全局榜单与发现
	c.HandleFunc("/top-streams", h.TopStreamsHandler).Methods(http.MethodGet)
	c.HandleFunc("/recent-uploads", h.RecentUploadsHandler).Methods(http.MethodGet)
	c.HandleFunc("/discover", protect(h.DiscoverHandler)).Methods(http.MethodGet)
	c.HandleFunc("/recent-plays", protect(h.RecentPlaysHandler)).Methods(http.MethodGet)
	c.HandleFunc("/metadata-options", h.MetadataOptionsHandler).Methods(http.MethodGet)

	// 上传
	c.HandleFunc("/upload-file", protect(h.UploadFileHandler)).Methods(http.MethodPost)
	c.HandleFunc("/upload-files", protect(h.UploadFilesHandler)).Methods(http.MethodPost)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", healthHandler(checks)).Methods(http.MethodGet)

	return corsMiddleware(router)
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := make(map[string]string, len(checks))
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		if !healthy {
			writeJSON(w, http.StatusServiceUnavailable, envelope{
				StatusCode: http.StatusServiceUnavailable,
				Message:    "unhealthy",
				Data:       status,
				Error:      http.StatusText(http.StatusServiceUnavailable),
			})
			return
		}
		writeSuccess(w, http.StatusOK, "ok", status)
	}
}

// Start serves handler on addr until ctx is cancelled, then shuts down
// gracefully.
func Start(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
