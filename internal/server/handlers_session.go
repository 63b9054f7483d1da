package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/riftlabs/rift-host/pkg/types"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getState returns the current webview state snapshot.
func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.StateUpdate{
		Type: "stateUpdate",
		Data: s.sessions.State().Get(),
	})
}

// sessionSummary is the REST projection of one session.
type sessionSummary struct {
	AgentID        string               `json:"agentId"`
	AgentType      string               `json:"agentType"`
	Status         types.AgentStatus    `json:"status"`
	CodeLensStatus types.CodeLensStatus `json:"codeLensStatus"`
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.sessions.List()
	out := make([]sessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionSummary{
			AgentID:        sess.ID,
			AgentType:      sess.AgentType,
			Status:         sess.Status(),
			CodeLensStatus: sess.CodeLensStatus(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type createSessionRequest struct {
	AgentType string `json:"agentType"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}
	if req.AgentType == "" {
		req.AgentType = s.config.DefaultAgent
	}

	sess, err := s.sessions.Create(r.Context(), req.AgentType)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionSummary{
		AgentID:        sess.ID,
		AgentType:      sess.AgentType,
		Status:         sess.Status(),
		CodeLensStatus: sess.CodeLensStatus(),
	})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "agentID")
	sess, err := s.sessions.Get(id)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionSummary{
		AgentID:        sess.ID,
		AgentType:      sess.AgentType,
		Status:         sess.Status(),
		CodeLensStatus: sess.CodeLensStatus(),
	})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "agentID")); err != nil {
		writeSessionError(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) selectSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.SendSelectedAgentChange(chi.URLParam(r, "agentID")); err != nil {
		writeSessionError(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) cancelSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Cancel(r.Context(), chi.URLParam(r, "agentID")); err != nil {
		writeSessionError(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) restartSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Restart(r.Context(), chi.URLParam(r, "agentID")); err != nil {
		writeSessionError(w, err)
		return
	}
	writeSuccess(w)
}

type textRequest struct {
	Text string `json:"text"`
}

func (s *Server) postChat(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}
	if err := s.sessions.SubmitChat(chi.URLParam(r, "agentID"), req.Text); err != nil {
		writeSessionError(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) postInput(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}
	if err := s.sessions.SubmitInput(chi.URLParam(r, "agentID"), req.Text); err != nil {
		writeSessionError(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) acceptSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.AcceptOrReject(r.Context(), chi.URLParam(r, "agentID"), true); err != nil {
		writeSessionError(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) rejectSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.AcceptOrReject(r.Context(), chi.URLParam(r, "agentID"), false); err != nil {
		writeSessionError(w, err)
		return
	}
	writeSuccess(w)
}

// listAvailableAgents refreshes the registrable agent types from the
// backend and returns them.
func (s *Server) listAvailableAgents(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.RefreshAvailableAgents(r.Context()); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessions.State().Get().AvailableAgents)
}
