package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	contractx "github.com/relaycrew/switchboard/agent/contract"
	knowledgex "github.com/relaycrew/switchboard/agent/knowledge"
	nodex "github.com/relaycrew/switchboard/agent/nodes"
	orchestratorx "github.com/relaycrew/switchboard/agent/orchestrator"
)

const maxRequestBodyBytes = 1 << 20

type server struct {
	orchestrator *orchestratorx.Orchestrator
	events       contractx.EventLog
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/requests", s.handleRequest)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	return mux
}

func (s *server) handleRequest(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req contractx.InboundRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}

	out, err := s.orchestrator.HandleRequest(r.Context(), req)
	if err != nil {
		kind, status := classify(err)
		log.Warn().Err(err).Str("kind", kind).Str("request", out.RequestID).Msg("request failed")
		writeError(w, status, kind, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	tenant := contractx.TenantID(r.URL.Query().Get("tenant"))
	if tenant.IsZero() {
		writeError(w, http.StatusBadRequest, "invalid_request", errors.New("tenant query parameter is required"))
		return
	}
	stream := r.URL.Query().Get("stream")
	if stream == "" {
		stream = knowledgex.StreamKnowledge
	}
	since, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)

	events, err := s.events.Replay(r.Context(), tenant, stream, since, 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage_failure", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tenant": tenant,
		"stream": stream,
		"events": events,
	})
}

// classify maps a taxonomy error to its wire kind and status. Raw transport
// errors never reach the caller with a 200-family status.
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, contractx.ErrNoTenant):
		return "no_tenant", http.StatusUnprocessableEntity
	case errors.Is(err, contractx.ErrNoMatchingTeam):
		return "no_matching_team", http.StatusNotFound
	case errors.Is(err, nodex.ErrInvalidRequest):
		return "invalid_request", http.StatusBadRequest
	case errors.Is(err, contractx.ErrInvalidItem):
		return "invalid_item", http.StatusBadRequest
	case errors.Is(err, contractx.ErrAllSourcesUnavailable):
		return "all_sources_unavailable", http.StatusServiceUnavailable
	case errors.Is(err, contractx.ErrRemoteUnavailable):
		return "remote_unavailable", http.StatusServiceUnavailable
	case errors.Is(err, contractx.ErrTeamExecution):
		return "team_execution_failed", http.StatusBadGateway
	case errors.Is(err, contractx.ErrStorageFailure):
		return "storage_failure", http.StatusInternalServerError
	default:
		return "internal", http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, kind string, err error) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"kind":    kind,
			"message": err.Error(),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("encode response failed")
	}
}
