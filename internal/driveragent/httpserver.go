package driveragent

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trucklink-io/trucklink/internal/driveragent/core"
	"github.com/trucklink-io/trucklink/internal/driveragent/session"
	"github.com/trucklink-io/trucklink/pkg/log"
	pkgmqtt "github.com/trucklink-io/trucklink/pkg/mqtt"
	"github.com/trucklink-io/trucklink/pkg/options"
)

// opsServer exposes the agent's local operations API: health probes,
// Prometheus metrics, session lifecycle, and per-driver HOS state.
type opsServer struct {
	server   *http.Server
	sessions *session.Manager
	store    core.StatusStore
	client   pkgmqtt.Client
}

func newOpsServer(opts *options.HttpOptions, sessions *session.Manager, store core.StatusStore, client pkgmqtt.Client) *opsServer {
	s := &opsServer{
		sessions: sessions,
		store:    store,
		client:   client,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/sessions", s.handleStartSession).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{driverID}", s.handleEndSession).Methods(http.MethodDelete)
	v1.HandleFunc("/drivers/{driverID}/clocks", s.handleClocks).Methods(http.MethodGet)
	v1.HandleFunc("/drivers/{driverID}/status", s.handleStatusChange).Methods(http.MethodPost)
	v1.HandleFunc("/drivers/{driverID}/inactivity", s.handleInactivityState).Methods(http.MethodGet)
	v1.HandleFunc("/drivers/{driverID}/inactivity/ack", s.handleInactivityAck).Methods(http.MethodPost)

	s.server = &http.Server{
		Addr:    opts.Addr,
		Handler: r,
	}
	return s
}

func (s *opsServer) start(ctx context.Context) error {
	log.Info("Starting ops HTTP server", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *opsServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *opsServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.client.AwaitConnection(ctx); err != nil {
		http.Error(w, "broker not connected", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *opsServer) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DriverID  string `json:"driverId"`
		VehicleID string `json:"vehicleId"`
		DeviceID  string `json:"deviceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.DriverID == "" || req.VehicleID == "" || req.DeviceID == "" {
		http.Error(w, "driverId, vehicleId and deviceId are required", http.StatusBadRequest)
		return
	}

	if _, err := s.sessions.StartSession(context.Background(), req.DriverID, req.VehicleID, req.DeviceID); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *opsServer) handleEndSession(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["driverID"]
	if err := s.sessions.EndSession(driverID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *opsServer) handleClocks(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["driverID"]
	clocks, err := s.sessions.Clocks(r.Context(), driverID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, clocks)
}

func (s *opsServer) handleStatusChange(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["driverID"]

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	status := core.DutyStatus(req.Status)
	if !status.Valid() {
		http.Error(w, "unknown duty status", http.StatusBadRequest)
		return
	}
	if err := s.store.RequestStatusChange(r.Context(), driverID, status); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *opsServer) handleInactivityState(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["driverID"]
	sess, ok := s.sessions.Session(driverID)
	if !ok {
		http.Error(w, "no active session", http.StatusNotFound)
		return
	}
	writeJSON(w, sess.MonitorState())
}

func (s *opsServer) handleInactivityAck(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["driverID"]
	sess, ok := s.sessions.Session(driverID)
	if !ok {
		http.Error(w, "no active session", http.StatusNotFound)
		return
	}
	sess.HandleUserResponse(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error(err, "Encoding ops API response")
	}
}
