package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
)

// shutdownTimeout bounds the graceful shutdown of the metrics endpoint
const shutdownTimeout = 2 * time.Second

// NewHandler returns a handler serving GET /metrics with the series of all registries
// followed by the process metrics.
func NewHandler(debug bool, registries ...*Registry) http.Handler {
	mux := http.NewServeMux()

	handler := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		for _, r := range registries {
			r.WritePrometheus(w)
		}
		vm.WriteProcessMetrics(w)
	}

	if debug {
		mux.HandleFunc("GET /metrics", loggerMiddleware(handler))
	} else {
		mux.HandleFunc("GET /metrics", handler)
	}
	return mux
}

// Serve exposes the registries on endpoint until ctx is done. The listener is opened
// before Serve returns its address through ready (if not nil).
func Serve(ctx context.Context, endpoint string, debug bool, ready func(net.Addr), registries ...*Registry) error {
	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           NewHandler(debug, registries...),
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	Logger.Infof("Serving metrics on http://%s/metrics", listener.Addr())
	if ready != nil {
		ready(listener.Addr())
	}

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	}
}
