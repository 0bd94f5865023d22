package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// ============================================================================
// HTTP Server
// ============================================================================
// Routes:
//   GET  /ws          live state feed (state_ws.go)
//   GET  /api/state   current snapshot as JSON
//   POST /api/reset   zero the counter
// ============================================================================

// apiError is the JSON body of a failed API request.
type apiError struct {
	Error string `json:"error"`
}

// newRouter builds the HTTP routes. Every handler talks to the daemon loop through events.
func newRouter(ws *Server, events chan<- Event, logger *slog.Logger) *mux.Router {
	r := mux.NewRouter()

	if ws != nil {
		ws.Register(r, "/ws")
	}

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/state", func(w http.ResponseWriter, req *http.Request) {
		snap, err := requestSnapshot(req.Context(), events)
		if err != nil {
			logger.Warn("state snapshot request failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, apiError{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, snapshotPayload(snap))
	}).Methods(http.MethodGet)

	api.HandleFunc("/reset", func(w http.ResponseWriter, req *http.Request) {
		select {
		case events <- ResetCount{}:
			writeJSON(w, http.StatusAccepted, IPCResponse{Status: "ok"})
		default:
			writeJSON(w, http.StatusServiceUnavailable, apiError{Error: "event queue full"})
		}
	}).Methods(http.MethodPost)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// runHTTPServer serves handler on port and shuts it down gracefully when ctx is canceled.
func runHTTPServer(ctx context.Context, port int, handler http.Handler, logger *slog.Logger) error {
	listenAddr := fmt.Sprintf(":%d", port)
	logger.Info("HTTP server listening", "port", port)

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		<-errCh
		return nil

	case err := <-errCh:
		return err
	}
}
