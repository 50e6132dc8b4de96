package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"vehiclelookup/internal/config"
	"vehiclelookup/internal/coordinator"
	"vehiclelookup/internal/lookup"
	"vehiclelookup/internal/metrics"
	"vehiclelookup/internal/regnr"
	"vehiclelookup/internal/vegvesen"
)

const (
	maxBodyBytes = 64 * 1024
	// lookupMargin is added to the registry timeout so the registry
	// client reports its own timeout first.
	lookupMargin = 5 * time.Second
)

// Server provides HTTP API endpoints for the vehicle lookup service
type Server struct {
	manager *lookup.Manager
	options *config.Loader
	logger  *zap.Logger
	router  *mux.Router
	server  *http.Server

	lookupTimeout time.Duration
}

// NewServer creates a new API server. options may be nil, which disables
// the options endpoints. registryTimeout is the registry client's request
// timeout; zero means vegvesen.DefaultTimeout.
func NewServer(manager *lookup.Manager, options *config.Loader, logger *zap.Logger, port int, registryTimeout time.Duration) *Server {
	if registryTimeout <= 0 {
		registryTimeout = vegvesen.DefaultTimeout
	}
	s := &Server{
		manager:       manager,
		options:       options,
		logger:        logger.Named("api"),
		lookupTimeout: registryTimeout + lookupMargin,
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleSitemap).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/vehicle", s.handleGetVehicle).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handleGetStatus).Methods(http.MethodGet)
	api.HandleFunc("/attributes", s.handleGetAttributes).Methods(http.MethodGet)
	api.HandleFunc("/regnr", s.handleSetRegnr).Methods(http.MethodPut)
	api.HandleFunc("/lookup", s.handleLookup).Methods(http.MethodPost)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	if options != nil {
		api.HandleFunc("/options", s.handleGetOptions).Methods(http.MethodGet)
		api.HandleFunc("/options", s.handlePutOptions).Methods(http.MethodPut)
	}

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})
	s.router = r

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: s.lookupTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// VehicleResponse represents the JSON response for the vehicle endpoint
type VehicleResponse struct {
	Regnr       string          `json:"regnr"`
	Status      string          `json:"status"`
	LastUpdated *time.Time      `json:"last_updated"`
	LookupID    string          `json:"lookup_id,omitempty"`
	Data        vegvesen.Record `json:"data"`
}

// StatusResponse represents the JSON response for the status endpoint
type StatusResponse struct {
	Regnr       string            `json:"regnr"`
	Status      string            `json:"status"`
	LastUpdated *time.Time        `json:"last_updated"`
	LookupID    string            `json:"lookup_id,omitempty"`
	HasData     bool              `json:"has_data"`
	Scheduler   SchedulerResponse `json:"scheduler"`
}

// SchedulerResponse describes the debounce/fallback timers
type SchedulerResponse struct {
	State           string  `json:"state"`
	Value           string  `json:"value"`
	Pending         *string `json:"pending"`
	DebounceSeconds float64 `json:"debounce_seconds"`
	FallbackSeconds float64 `json:"fallback_seconds"`
}

// RegnrRequest is the body of PUT /api/regnr and POST /api/lookup
type RegnrRequest struct {
	Regnr string `json:"regnr"`
}

// RegnrResponse is returned by PUT /api/regnr
type RegnrResponse struct {
	Regnr    string `json:"regnr"`
	Accepted bool   `json:"accepted"`
	Pending  bool   `json:"pending"`
}

// ErrorResponse is the body of every error reply from the /api endpoints
type ErrorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status,omitempty"`
}

func vehicleResponse(snap coordinator.Snapshot) VehicleResponse {
	data := snap.Record
	if data == nil {
		data = vegvesen.Record{}
	}
	return VehicleResponse{
		Regnr:       snap.Target,
		Status:      string(snap.Status),
		LastUpdated: lastUpdated(snap),
		LookupID:    snap.LookupID,
		Data:        data,
	}
}

func lastUpdated(snap coordinator.Snapshot) *time.Time {
	if snap.LastUpdated.IsZero() {
		return nil
	}
	t := snap.LastUpdated
	return &t
}

// handleGetVehicle returns the last fetched vehicle record
func (s *Server) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, vehicleResponse(s.manager.Snapshot()))
}

// handleGetStatus returns the lookup and scheduler state
func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.manager.Snapshot()
	sched := s.manager.Scheduler()
	opts := sched.Options()

	resp := StatusResponse{
		Regnr:       snap.Target,
		Status:      string(snap.Status),
		LastUpdated: lastUpdated(snap),
		LookupID:    snap.LookupID,
		HasData:     snap.HasData(),
		Scheduler: SchedulerResponse{
			State:           sched.State().String(),
			Value:           sched.Value(),
			DebounceSeconds: opts.Debounce.Seconds(),
			FallbackSeconds: opts.Fallback.Seconds(),
		},
	}
	if pending, ok := sched.Pending(); ok {
		resp.Scheduler.Pending = &pending
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleGetAttributes returns the value of every resolved attribute,
// including those disabled by default, plus diagnostics
func (s *Server) handleGetAttributes(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.manager.Values())
}

// handleSetRegnr behaves like typing into the text field: the lookup is
// debounced.
func (s *Server) handleSetRegnr(w http.ResponseWriter, r *http.Request) {
	var req RegnrRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err, "")
		return
	}

	number, ok := s.manager.Edit(req.Regnr)
	if !ok {
		s.writeJSON(w, http.StatusUnprocessableEntity, RegnrResponse{Regnr: number})
		return
	}

	_, pending := s.manager.Scheduler().Pending()
	s.logger.Debug("Registration number set",
		zap.String("regnr", number),
		zap.String("remote_addr", r.RemoteAddr))
	s.writeJSON(w, http.StatusAccepted, RegnrResponse{Regnr: number, Accepted: true, Pending: pending})
}

// handleLookup sets the registration number without debounce and returns
// the fresh result. An empty body refreshes the current number.
func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	var req RegnrRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err, "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.lookupTimeout)
	defer cancel()

	snap, err := s.manager.Lookup(ctx, req.Regnr)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, vehicleResponse(snap))
	case errors.Is(err, regnr.ErrInvalid):
		s.writeError(w, http.StatusBadRequest, err, "")
	case errors.Is(err, lookup.ErrNoTarget):
		s.writeError(w, http.StatusConflict, err, "")
	default:
		status := http.StatusBadGateway
		var refreshErr *coordinator.RefreshError
		if errors.As(err, &refreshErr) && refreshErr.Status == coordinator.StatusConnectionError {
			status = http.StatusGatewayTimeout
		}
		s.writeError(w, status, err, string(snap.Status))
	}
}

// handleRefresh queues a lookup of the current number, like the
// "Lookup Now" button.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Press(); err != nil {
		s.writeError(w, http.StatusConflict, err, "")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleGetOptions returns the active options file contents
func (s *Server) handleGetOptions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.options.Options())
}

// handlePutOptions validates, saves and applies new options
func (s *Server) handlePutOptions(w http.ResponseWriter, r *http.Request) {
	var opts config.Options
	if err := decodeBody(r, &opts); err != nil {
		s.writeError(w, http.StatusBadRequest, err, "")
		return
	}
	if err := s.options.Save(&opts); err != nil {
		s.writeError(w, http.StatusBadRequest, err, "")
		return
	}
	s.logger.Info("Options updated over HTTP", zap.String("remote_addr", r.RemoteAddr))
	s.writeJSON(w, http.StatusOK, s.options.Options())
}

// handleHealth returns a simple health check response
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":        "ok",
		"lookup_status": string(s.manager.Snapshot().Status),
	})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error, status string) {
	s.writeJSON(w, code, ErrorResponse{Error: err.Error(), Status: status})
}

// Endpoint represents an API endpoint with its documentation
type Endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

func (s *Server) endpoints() []Endpoint {
	endpoints := []Endpoint{
		{Path: "/", Method: "GET", Description: "This sitemap - lists all available API endpoints"},
		{Path: "/health", Method: "GET", Description: "Health check endpoint"},
		{Path: "/metrics", Method: "GET", Description: "Prometheus metrics"},
		{Path: "/api/vehicle", Method: "GET", Description: "Last fetched vehicle record"},
		{Path: "/api/status", Method: "GET", Description: "Lookup status and debounce timers"},
		{Path: "/api/attributes", Method: "GET", Description: "All enabled attribute values"},
		{Path: "/api/regnr", Method: "PUT", Description: "Set the registration number (debounced) - {\"regnr\": \"AB12345\"}"},
		{Path: "/api/lookup", Method: "POST", Description: "Set the registration number and look it up now"},
		{Path: "/api/refresh", Method: "POST", Description: "Look up the current registration number again"},
	}
	if s.options != nil {
		endpoints = append(endpoints,
			Endpoint{Path: "/api/options", Method: "GET", Description: "Current options"},
			Endpoint{Path: "/api/options", Method: "PUT", Description: "Replace the options"},
		)
	}
	return endpoints
}

// handleSitemap returns a list of all available API endpoints
func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	endpoints := s.endpoints()
	preferHTML := strings.Contains(r.Header.Get("Accept"), "text/html")

	if preferHTML {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>Vehicle Lookup API</title>
    <style>
        body { font-family: monospace; margin: 40px; background: #1e1e1e; color: #d4d4d4; }
        h1 { color: #4ec9b0; }
        .endpoint { background: #2d2d2d; padding: 15px; margin: 10px 0; border-left: 3px solid #007acc; }
        .method { color: #4ec9b0; font-weight: bold; }
        .path { color: #ce9178; }
        .description { color: #9cdcfe; margin-top: 5px; }
    </style>
</head>
<body>
    <h1>Vehicle Lookup API</h1>
`)
		for _, ep := range endpoints {
			fmt.Fprintf(w, `    <div class="endpoint">
        <div><span class="method">%s</span> <span class="path">%s</span></div>
        <div class="description">%s</div>
    </div>
`, ep.Method, ep.Path, ep.Description)
		}
		fmt.Fprintf(w, "</body>\n</html>\n")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "Vehicle Lookup API\n")
		fmt.Fprintf(w, "==================\n\n")
		fmt.Fprintf(w, "Available endpoints:\n\n")
		for _, ep := range endpoints {
			fmt.Fprintf(w, "  %-6s %-18s %s\n", ep.Method, ep.Path, ep.Description)
		}
		fmt.Fprintf(w, "\nExamples:\n\n")
		fmt.Fprintf(w, "  curl -X POST -d '{\"regnr\":\"AB12345\"}' http://localhost%s/api/lookup\n", s.server.Addr)
		fmt.Fprintf(w, "  curl http://localhost%s/api/attributes | jq\n", s.server.Addr)
	}

	s.logger.Debug("Sitemap request served",
		zap.String("remote_addr", r.RemoteAddr),
		zap.Bool("html_format", preferHTML))
}

// Run serves HTTP requests until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting HTTP API server", zap.String("addr", s.server.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		return s.Stop()
	}
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP API server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}
