package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tailot/taylored-orchestrator/pkg/health"
	"github.com/tailot/taylored-orchestrator/pkg/log"
	"github.com/tailot/taylored-orchestrator/pkg/metrics"
	"github.com/tailot/taylored-orchestrator/pkg/orchestrator"
	"github.com/tailot/taylored-orchestrator/pkg/types"
)

const sessionIDHeader = "X-Session-Id"

// Server is the control plane's HTTP surface: the provision, heartbeat,
// and deprovision handlers backed by an orchestrator.Service, plus the
// ambient /healthz and /metrics endpoints.
type Server struct {
	svc         *orchestrator.Service
	mux         *http.ServeMux
	runnersHost string
	production  bool
	checkers    []health.Checker
}

// NewServer wires svc behind a ServeMux. runnersHost is inserted into
// reported endpoints; production gates whether 500 responses include
// error details. checkers, if any, back the /healthz readiness check.
func NewServer(svc *orchestrator.Service, runnersHost string, production bool, checkers ...health.Checker) *Server {
	s := &Server{
		svc:         svc,
		mux:         http.NewServeMux(),
		runnersHost: runnersHost,
		production:  production,
		checkers:    checkers,
	}

	s.mux.HandleFunc("/", s.rootHandler)
	s.mux.HandleFunc("/api/runner/provision", s.provisionHandler)
	s.mux.HandleFunc("/api/runner/heartbeat", s.heartbeatHandler)
	s.mux.HandleFunc("/api/runner/deprovision", s.deprovisionHandler)
	s.mux.HandleFunc("/healthz", s.healthzHandler)
	s.mux.Handle("/metrics", metrics.Handler())

	return s
}

// Handler returns the HTTP handler to mount, e.g. behind http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Orchestrator service is running!"))
}

type provisionRequest struct {
	NetworkMode string `json:"networkMode"`
}

type provisionResponse struct {
	Message   string `json:"message"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

func (s *Server) provisionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body provisionRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	sessionID := r.Header.Get(sessionIDHeader)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	result, err := s.svc.Provision(r.Context(), sessionID, parseNetworkMode(body.NetworkMode))
	if err != nil {
		s.writeError(w, err)
		return
	}

	status := http.StatusOK
	if result.Fresh {
		status = http.StatusCreated
	}

	s.writeJSON(w, status, provisionResponse{
		Message:   result.Message,
		Endpoint:  result.Endpoint(s.runnersHost),
		SessionID: result.Runner.SessionID,
	})
}

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) heartbeatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := sessionIDFromRequest(r)
	if err := s.svc.Heartbeat(sessionID); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "Heartbeat received."})
}

func (s *Server) deprovisionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := sessionIDFromRequest(r)
	message, err := s.svc.Deprovision(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: message})
}

// sessionIDFromRequest reads the session id from the header if present,
// falling back to the JSON body's sessionId field.
func sessionIDFromRequest(r *http.Request) string {
	if id := r.Header.Get(sessionIDHeader); id != "" {
		return id
	}
	if r.Body == nil {
		return ""
	}
	var body sessionRequest
	_ = json.NewDecoder(r.Body).Decode(&body)
	return body.SessionID
}

func parseNetworkMode(raw string) types.NetworkMode {
	switch raw {
	case "", "default":
		return types.NetworkMode{Kind: types.NetworkModeDefault}
	case "none":
		return types.NetworkMode{Kind: types.NetworkModeNone}
	default:
		return types.NetworkMode{Kind: types.NetworkModeCustom, NetworkName: raw}
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	oerr, ok := err.(*types.OrchestratorError)
	if !ok {
		oerr = types.NewOrchestratorError(types.ErrServer, "unexpected error", err)
	}

	resp := errorResponse{Error: string(oerr.Kind), Message: oerr.Message}
	if !s.production && oerr.Cause != nil {
		resp.Details = oerr.Cause.Error()
	}

	if oerr.Kind == types.ErrServer {
		log.Error("request failed with a server error")
	}

	s.writeJSON(w, oerr.Status(), resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type healthzResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// healthzHandler reports liveness, plus any configured readiness checks.
func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := http.StatusOK
	for _, checker := range s.checkers {
		if result := checker.Check(r.Context()); !result.Healthy {
			status = http.StatusServiceUnavailable
		}
	}

	s.writeJSON(w, status, healthzResponse{Status: "ok", Timestamp: time.Now()})
}
