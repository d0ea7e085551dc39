// internal/webhook/server.go
package webhook

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/user/auticonnect/internal/escalation"
	"github.com/user/auticonnect/internal/state"
	"github.com/user/auticonnect/internal/types"
)

// Server is the operational HTTP surface: health, alert inspection and
// acknowledgement, and read-only group/turn views for supervisors.
type Server struct {
	alerts   types.AlertStore
	pipeline *escalation.Pipeline
	groups   types.GroupStore
	turns    types.TurnLog
	mux      *http.ServeMux
}

// NewServer creates a Server over the given stores and escalation pipeline.
func NewServer(alerts types.AlertStore, pipeline *escalation.Pipeline, groups types.GroupStore, turns types.TurnLog) *Server {
	s := &Server{
		alerts:   alerts,
		pipeline: pipeline,
		groups:   groups,
		turns:    turns,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/alerts", s.handleAPIAlerts)
	s.mux.HandleFunc("POST /api/alerts/", s.handleAPIAlertStatus)
	s.mux.HandleFunc("GET /api/groups", s.handleAPIGroups)
	s.mux.HandleFunc("GET /api/groups/", s.handleAPIGroupTurns)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleAPIAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.alerts.List(r.Context())
	if err != nil {
		slog.Error("list alerts failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filtered := alerts[:0]
		for _, a := range alerts {
			if string(a.Status) == status {
				filtered = append(filtered, a)
			}
		}
		alerts = filtered
	}

	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(alerts)
}

// statusRequest is the JSON body for POST /api/alerts/{id}/ack and
// /api/alerts/{id}/delivered.
type statusRequest struct {
	By string `json:"by"`
}

func (s *Server) handleAPIAlertStatus(w http.ResponseWriter, r *http.Request) {
	// Path: /api/alerts/{id}/ack or /api/alerts/{id}/delivered
	path := strings.TrimPrefix(r.URL.Path, "/api/alerts/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 2 || parts[0] == "" {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	id := types.AlertID(parts[0])

	var status types.AlertStatus
	switch parts[1] {
	case "ack":
		status = types.AlertAcknowledged
	case "delivered":
		status = types.AlertDelivered
	default:
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	// Body is optional; an empty or malformed body just means no actor.
	var req statusRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := s.pipeline.HandleStatus(r.Context(), id, status, types.ParticipantID(req.By)); err != nil {
		if errors.Is(err, state.ErrNotFound) {
			http.Error(w, `{"error":"alert not found"}`, http.StatusNotFound)
			return
		}
		slog.Warn("alert status update rejected", "alert_id", string(id), "error", err)
		http.Error(w, `{"error":"invalid status transition"}`, http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": string(status)})
}

func (s *Server) handleAPIGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.groups.List(r.Context())
	if err != nil {
		slog.Error("list groups failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(groups)
}

func (s *Server) handleAPIGroupTurns(w http.ResponseWriter, r *http.Request) {
	// Path: /api/groups/{id}/turns
	path := strings.TrimPrefix(r.URL.Path, "/api/groups/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 2 || parts[1] != "turns" {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	groupID := types.GroupID(parts[0])

	limit := 200
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	turns, err := s.turns.Tail(r.Context(), groupID, limit)
	if err != nil {
		slog.Error("tail turns failed", "group_id", string(groupID), "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if turns == nil {
		turns = []*types.Turn{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(turns)
}
