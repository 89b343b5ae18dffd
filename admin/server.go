// Package admin implements the debug/admin HTTP surface: a healthcheck,
// a JSON state dump, and the Go pprof profiler, bound to an ephemeral
// loopback port the way the teacher's executor/httpserver.go does,
// generalized onto gorilla/mux.
package admin

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/hectorj2f/mesos-group-executor/logger"
)

// Server is the ephemeral loopback HTTP server exposing /healthz,
// /state, and /debug/pprof/*.
type Server struct {
	listener net.Listener
	router   *mux.Router
}

// New builds a Server wired to snapshot. snapshot is called fresh per
// request, so it should be cheap; the executor's own Snapshot round
// trips through its actor mailbox.
func New(snapshot func(ctx context.Context) (interface{}, error)) *Server {
	r := mux.NewRouter()
	s := &Server{router: r}

	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	r.HandleFunc("/state", stateHandler(snapshot)).Methods(http.MethodGet)
	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	r.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)

	return s
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK")) // nolint: errcheck
}

func stateHandler(snapshot func(ctx context.Context) (interface{}, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := snapshot(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			logger.G(r.Context()).WithError(err).Warn("Failed to encode /state response")
		}
	}
}

// ListenAndServe binds an ephemeral loopback port and serves until ctx
// is canceled. The bound address is logged so operators can discover
// it, mirroring the teacher's ephemeral-listener approach.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	s.listener = listener
	logger.G(ctx).WithField("addr", listener.Addr().String()).Info("Admin HTTP server listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- http.Serve(listener, s.router)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return listener.Close()
	}
}

// Addr returns the bound address once ListenAndServe has started, or
// nil before that.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close closes the bound listener directly, for callers that need to
// unblock ListenAndServe without canceling a shared context.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}
