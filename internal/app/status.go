package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"rlbench-env/internal/environment"
	"rlbench-env/internal/metrics"
)

type statusServer struct {
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

func newStatusRouter(env *environment.Environment, te *environment.TaskEnvironment, m *metrics.Metrics) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		running := env.Launched() && te.Sim != nil && te.Sim.Running()
		status := http.StatusOK
		if !running {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]any{
			"launched":          env.Launched(),
			"simulator_running": running,
			"session_id":        env.SessionID(),
		})
	}).Methods(http.MethodGet)

	r.HandleFunc("/task", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, te.Summary())
	}).Methods(http.MethodGet)

	r.HandleFunc("/tasks", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"tasks": env.Registry().Names()})
	}).Methods(http.MethodGet)

	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func startStatusServer(addr string, env *environment.Environment, te *environment.TaskEnvironment, m *metrics.Metrics) (*statusServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("status server: %w", err)
	}
	s := &statusServer{
		srv: &http.Server{
			Handler:           newStatusRouter(env, te, m),
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: ln,
		done:     make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logWarn(fmt.Sprintf("Status server stopped: %v", err))
		}
	}()
	logInfo(fmt.Sprintf("Status server listening on %s", ln.Addr()))
	return s, nil
}

func (s *statusServer) addr() string { return s.listener.Addr().String() }

func (s *statusServer) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		logWarn(fmt.Sprintf("Status server shutdown: %v", err))
	}
	<-s.done
}
