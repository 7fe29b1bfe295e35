package provision

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/duckrelay/duckrelay-go/pkg/connectivity"
)

// Controller is the provisioning surface of the connectivity manager.
// The server is transport only: every decision (connection testing,
// persistence, secret validation) happens behind this interface.
type Controller interface {
	ScanNetworks() ([]connectivity.NetworkInfo, error)
	AttemptConnect(ssid, password string) (string, error)
	ClearCredentials() error
	SetControlSecret(secret string) error
}

// ServerConfig holds configuration for the provisioning HTTP server.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":80".
	Addr string

	// DeviceID identifies this device on the setup page and in the
	// mDNS announcement.
	DeviceID string
}

// Server is the HTTP server behind the provisioning access point. It
// serves the setup page and the JSON endpoints the page drives.
type Server struct {
	config ServerConfig
	ctrl   Controller
	logger *slog.Logger
	mux    *http.ServeMux
	server *http.Server
}

// NewServer creates a provisioning server. logger may be nil.
func NewServer(cfg ServerConfig, ctrl Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		config: cfg,
		ctrl:   ctrl,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.mux,
	}

	return s
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/scan", s.handleScan)
	s.mux.HandleFunc("/connect", s.handleConnect)
	s.mux.HandleFunc("/clear", s.handleClear)
	s.mux.HandleFunc("/setpassword", s.handleSetPassword)
}

// ListenAndServe starts the HTTP server. It blocks until the server
// is closed.
func (s *Server) ListenAndServe() error {
	s.logger.Info("provisioning server listening", "addr", s.config.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve accepts connections on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops the server immediately, dropping open connections. The
// provisioning flow shuts the server down right after a successful
// connection test, so there is nothing worth draining.
func (s *Server) Close() error {
	return s.server.Close()
}

// handleRoot serves the setup page.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, setupPage, s.config.DeviceID)
}

// handleScan handles GET /scan. Networks are returned in scan order.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	networks, err := s.ctrl.ScanNetworks()
	if err != nil {
		s.logger.Error("network scan failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Scan failed"})
		return
	}

	list := make([]ScannedNetwork, 0, len(networks))
	for _, n := range networks {
		list = append(list, ScannedNetwork{SSID: n.SSID, RSSI: n.RSSI})
	}
	writeJSON(w, http.StatusOK, list)
}

// handleConnect handles POST /connect with form fields ssid and
// password. The connection test is synchronous; the response reports
// the outcome in the body, always with status 200, so the setup page
// can render a message either way.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ssid := r.FormValue("ssid")
	password := r.FormValue("password")
	if ssid == "" {
		writeJSON(w, http.StatusOK, ConnectResponse{Success: false, Message: "SSID required"})
		return
	}

	s.logger.Info("connection test requested", "ssid", ssid)

	ip, err := s.ctrl.AttemptConnect(ssid, password)
	if err != nil {
		s.logger.Warn("connection test failed", "ssid", ssid, "err", err)
		writeJSON(w, http.StatusOK, ConnectResponse{Success: false, Message: "Failed to connect"})
		return
	}

	writeJSON(w, http.StatusOK, ConnectResponse{Success: true, IP: ip})
}

// handleClear handles POST /clear. The response is written before the
// wipe so the page gets its acknowledgement; the controller schedules
// the restart.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{Success: true})

	if err := s.ctrl.ClearCredentials(); err != nil {
		s.logger.Error("credential clear failed", "err", err)
	}
}

// handleSetPassword handles POST /setpassword with form field
// controlPassword.
func (s *Server) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	secret := r.FormValue("controlPassword")
	if err := s.ctrl.SetControlSecret(secret); err != nil {
		writeJSON(w, http.StatusOK, StatusResponse{Success: false, Message: "Password too short"})
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{Success: true})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// setupPage is a minimal placeholder; the real page content is owned
// by whoever styles the device.
const setupPage = `<!DOCTYPE html>
<html>
<head><title>Device Setup</title></head>
<body>
<h1>Device Setup: %s</h1>
<p>Use GET /scan, POST /connect (ssid, password), POST /setpassword
(controlPassword), POST /clear.</p>
</body>
</html>
`
