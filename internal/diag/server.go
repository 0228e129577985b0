package diag

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Redacted replaces identifying fields in diagnostics output.
const Redacted = "**REDACTED**"

// DeviceDiagnostics is the per-device entry in the diagnostics dump.
// Serial numbers are redacted before they reach this struct.
type DeviceDiagnostics struct {
	SN                 string `json:"device_sn"`
	Name               string `json:"name"`
	Model              string `json:"model"`
	DeviceType         string `json:"device_type"`
	Entities           int    `json:"entities"`
	Available          bool   `json:"available"`
	CoordinatorHasData bool   `json:"coordinator_has_data"`
}

// Diagnostics is the full dump served at /diagnostics.
type Diagnostics struct {
	WebsocketConnected bool                `json:"websocket_connected"`
	MQTTConnected      bool                `json:"mqtt_connected"`
	Devices            []DeviceDiagnostics `json:"devices"`
}

// Provider supplies the current diagnostics snapshot.
type Provider func() Diagnostics

// Server serves /metrics and /diagnostics.
type Server struct {
	srv *http.Server
	log *zap.SugaredLogger
}

// NewServer builds the HTTP server on the given listen address.
func NewServer(addr string, metrics *Metrics, provider Provider, log *zap.SugaredLogger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/diagnostics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(provider()); err != nil {
			log.Errorw("failed to encode diagnostics", "error", err)
		}
	})

	return &Server{
		srv: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		log: log,
	}
}

// Start begins serving in the background; Shutdown stops it.
func (s *Server) Start() {
	s.log.Infow("diagnostics server listening", "addr", s.srv.Addr)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorw("diagnostics server failed", "error", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
