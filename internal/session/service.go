// Package session is the host's core: it owns the set of running agent
// sessions, the webview state they project into, and the dynamic method
// registrations that route backend-initiated messages to the right session.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/riftlabs/rift-host/internal/editor"
	"github.com/riftlabs/rift-host/internal/event"
	"github.com/riftlabs/rift-host/internal/logging"
	"github.com/riftlabs/rift-host/internal/pubsub"
	"github.com/riftlabs/rift-host/internal/rpc"
	"github.com/riftlabs/rift-host/internal/storage"
	"github.com/riftlabs/rift-host/internal/store"
	"github.com/riftlabs/rift-host/pkg/types"
)

var (
	// ErrSessionNotFound is returned when an operation addresses a session
	// id the orchestrator does not know.
	ErrSessionNotFound = errors.New("session: not found")

	// ErrUnknownAgent is returned by state reducers addressing a missing
	// presentation record.
	ErrUnknownAgent = errors.New("session: unknown agent")

	// ErrNoActiveWorkspace is returned when a session is created without an
	// open workspace folder.
	ErrNoActiveWorkspace = errors.New("session: no active workspace")

	// ErrLastSession is returned when deleting the only remaining session.
	// The webview always has something to show; cancel it instead.
	ErrLastSession = errors.New("session: cannot delete the last session")
)

// Transport is the subset of the rpc client the orchestrator needs. Tests
// substitute an in-memory implementation.
type Transport interface {
	Call(ctx context.Context, method string, params, result any) error
	Notify(ctx context.Context, method string, params any) error
	Handle(method string, h rpc.Handler)
	Unhandle(method string)
	Connected() bool
}

// Service orchestrates agent sessions: creation and teardown against the
// backend, dynamic method routing, and every mutation of the webview state.
type Service struct {
	log         zerolog.Logger
	transport   Transport
	editor      editor.Capability
	bus         *event.Bus
	exchanges   *pubsub.Registry
	state       *store.Store[types.WebviewState]
	transcripts *storage.Transcripts

	mu       sync.Mutex
	sessions map[string]*AgentSession
}

// NewService creates an orchestrator. transcripts may be nil to disable
// persistence.
func NewService(transport Transport, ed editor.Capability, bus *event.Bus, transcripts *storage.Transcripts) *Service {
	return &Service{
		log:         logging.ForComponent("session"),
		transport:   transport,
		editor:      ed,
		bus:         bus,
		exchanges:   pubsub.NewRegistry(),
		state:       store.New(emptyState()),
		transcripts: transcripts,
		sessions:    make(map[string]*AgentSession),
	}
}

// State exposes the webview state store. Presentation surfaces subscribe to
// it and receive full snapshots; there is no diff protocol.
func (s *Service) State() *store.Store[types.WebviewState] {
	return s.state
}

// Get returns a session by id.
func (s *Service) Get(id string) (*AgentSession, error) {
	return s.lookup(id)
}

// List returns all live sessions, ordered by id.
func (s *Service) List() []*AgentSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*AgentSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Service) lookup(id string) (*AgentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Create starts a new agent session of the given type. The backend assigns
// the id; the editor context is captured at this moment and pinned to the
// session. Fails fast with rpc.ErrNotConnected while the backend is down.
func (s *Service) Create(ctx context.Context, agentType string) (*AgentSession, error) {
	if !s.transport.Connected() {
		return nil, rpc.ErrNotConnected
	}

	root := s.editor.WorkspaceRoot()
	if root == "" {
		return nil, ErrNoActiveWorkspace
	}
	edCtx := s.editor.ActiveContext()

	params := types.RunAgentParams{
		AgentType:   agentType,
		AgentParams: types.AgentParams{WorkspaceFolderPath: root},
	}
	if edCtx != nil {
		params.AgentParams.TextDocument = edCtx.Document
		params.AgentParams.Selection = edCtx.Selection
		params.AgentParams.Position = edCtx.Position
	}

	var result types.RunAgentResult
	if err := s.transport.Call(ctx, "morph/run", params, &result); err != nil {
		return nil, err
	}
	if result.ID == "" {
		return nil, fmt.Errorf("session: backend returned empty id for %s", agentType)
	}

	sess := newAgentSession(result.ID, agentType, edCtx, s)
	s.mu.Lock()
	s.sessions[result.ID] = sess
	s.mu.Unlock()
	s.registerMethods(sess)

	record := types.PresentationRecord{
		AgentID:     result.ID,
		AgentType:   agentType,
		ChatHistory: []types.ChatMessage{},
	}
	if s.transcripts != nil {
		if saved, err := s.transcripts.Load(result.ID); err == nil {
			record.ChatHistory = saved.Messages
		}
	}
	s.state.Update(func(st types.WebviewState) types.WebviewState {
		st = cloneState(st)
		st.Agents[result.ID] = record
		st.SelectedAgentID = result.ID
		return st
	})

	s.bus.Publish(event.Event{
		Type: event.SessionCreated,
		Data: event.SessionData{AgentID: result.ID, AgentType: agentType},
	})
	s.log.Info().Str("agent_id", result.ID).Str("agent_type", agentType).Msg("session created")
	return sess, nil
}

// Cancel asks the backend to stop a session. The session and its record
// stay around; the backend reports the outcome through progress and result
// notifications.
func (s *Service) Cancel(ctx context.Context, id string) error {
	if _, err := s.lookup(id); err != nil {
		return err
	}
	if err := s.transport.Call(ctx, "morph/cancel", types.AgentIDParams{ID: id}, nil); err != nil {
		return err
	}
	s.log.Info().Str("agent_id", id).Msg("session cancelled")
	return nil
}

// Delete cancels a session on the backend and removes it from the host. The
// record is flagged deleted for one snapshot (so surfaces can animate the
// removal) and then dropped. Deleting the last remaining session is refused.
func (s *Service) Delete(ctx context.Context, id string) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	last := len(s.sessions) <= 1
	s.mu.Unlock()
	if last {
		return ErrLastSession
	}

	// Cancellation is the deletion mechanism on the backend side; a down
	// backend must not block local cleanup.
	if err := s.transport.Call(ctx, "morph/cancel", types.AgentIDParams{ID: id}, nil); err != nil {
		s.log.Warn().Err(err).Str("agent_id", id).Msg("cancel during delete failed")
	}

	s.unregisterMethods(sess)
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	_ = s.mutateRecord(id, func(rec *types.PresentationRecord) {
		rec.IsDeleted = true
	})
	s.state.Update(func(st types.WebviewState) types.WebviewState {
		st = cloneState(st)
		delete(st.Agents, id)
		if st.SelectedAgentID == id {
			st.SelectedAgentID = firstAgentID(st.Agents)
		}
		return st
	})

	if s.transcripts != nil {
		if err := s.transcripts.Delete(id); err != nil {
			s.log.Warn().Err(err).Str("agent_id", id).Msg("transcript delete failed")
		}
	}

	s.bus.Publish(event.Event{
		Type: event.SessionDeleted,
		Data: event.SessionData{AgentID: id, AgentType: sess.AgentType},
	})
	s.log.Info().Str("agent_id", id).Msg("session deleted")
	return nil
}

// firstAgentID picks a deterministic fallback selection.
func firstAgentID(agents map[string]types.PresentationRecord) string {
	ids := make([]string, 0, len(agents))
	for id := range agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// Restart asks the backend to restart a session in place. The id survives;
// local state and the conversation reset to a fresh run.
func (s *Service) Restart(ctx context.Context, id string) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}
	if err := s.transport.Call(ctx, "morph/restart_agent", types.AgentIDParams{ID: id}, nil); err != nil {
		return err
	}

	sess.reset()
	_ = s.mutateRecord(id, func(rec *types.PresentationRecord) {
		rec.ChatHistory = []types.ChatMessage{}
		rec.IsStreaming = false
		rec.StreamingText = ""
		rec.Tasks = nil
		rec.HasNotification = false
		rec.DoesShowAcceptRejectBar = false
	})
	if s.transcripts != nil {
		if err := s.transcripts.Delete(id); err != nil {
			s.log.Warn().Err(err).Str("agent_id", id).Msg("transcript delete failed")
		}
	}

	s.bus.Publish(event.Event{
		Type: event.SessionRestarted,
		Data: event.SessionData{AgentID: id, AgentType: sess.AgentType},
	})
	s.log.Info().Str("agent_id", id).Msg("session restarted")
	return nil
}

// RefreshAvailableAgents fetches the registrable agent types from the
// backend. The backend lists oldest registrations first; surfaces want the
// newest on top, so the list is reversed.
func (s *Service) RefreshAvailableAgents(ctx context.Context) error {
	var list []types.AgentDescriptor
	if err := s.transport.Call(ctx, "morph/listAgents", nil, &list); err != nil {
		return err
	}

	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	s.state.Update(func(st types.WebviewState) types.WebviewState {
		st = cloneState(st)
		st.AvailableAgents = list
		return st
	})
	return nil
}

// AcceptOrReject settles a code edit proposal. The backend applies or
// discards the edit; the local decoration state settles immediately rather
// than waiting for the confirming decision notification.
func (s *Service) AcceptOrReject(ctx context.Context, id string, accept bool) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}

	method := "morph/reject"
	if accept {
		method = "morph/accept"
	}
	if err := s.transport.Call(ctx, method, types.AgentIDParams{ID: id}, nil); err != nil {
		return err
	}
	sess.resolveDecision(accept)
	return nil
}

// SubmitChat resumes a session suspended in a chat request with the
// operator's next message. Returns pubsub.ErrUnawaitedPublish when the
// session is not waiting for chat input.
func (s *Service) SubmitChat(id, text string) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}
	msg := types.ChatMessage{Role: "user", Content: text, ID: newMessageID()}
	return s.exchanges.Pub(sess.scopedKey("chat_request"), msg)
}

// SubmitInput resumes a session suspended in an input request.
func (s *Service) SubmitInput(id, text string) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}
	return s.exchanges.Pub(sess.scopedKey("input_request"), text)
}

// registerMethods wires the five dynamically named backend methods for one
// session. The method strings exist only here; every handler funnels into
// the session identified by id, so routing inside the host is by session,
// not by method name.
func (s *Service) registerMethods(sess *AgentSession) {
	id := sess.ID
	prefix := fmt.Sprintf("%s_%s_", sess.AgentType, sess.ID)

	s.transport.Handle(prefix+"request_input", s.inbound(id, func(ctx context.Context, sess *AgentSession, raw json.RawMessage) (any, error) {
		var p types.InputRequestParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return sess.HandleInputRequest(ctx, p)
	}))
	s.transport.Handle(prefix+"request_chat", s.inbound(id, func(ctx context.Context, sess *AgentSession, raw json.RawMessage) (any, error) {
		var p types.ChatRequestParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return sess.HandleChatRequest(ctx, p)
	}))
	s.transport.Handle(prefix+"send_update", s.inbound(id, func(ctx context.Context, sess *AgentSession, raw json.RawMessage) (any, error) {
		var p types.UpdateParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return nil, sess.HandleUpdate(p)
	}))
	s.transport.Handle(prefix+"send_progress", s.inbound(id, func(ctx context.Context, sess *AgentSession, raw json.RawMessage) (any, error) {
		var p types.AgentProgress
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return nil, sess.HandleProgress(ctx, p)
	}))
	s.transport.Handle(prefix+"send_result", s.inbound(id, func(ctx context.Context, sess *AgentSession, raw json.RawMessage) (any, error) {
		var p types.AgentResult
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return nil, sess.HandleResult(p)
	}))
}

func (s *Service) unregisterMethods(sess *AgentSession) {
	prefix := fmt.Sprintf("%s_%s_", sess.AgentType, sess.ID)
	for _, suffix := range []string{"request_input", "request_chat", "send_update", "send_progress", "send_result"} {
		s.transport.Unhandle(prefix + suffix)
	}
}

// inbound adapts a session-scoped handler to a transport handler, resolving
// the session at dispatch time. A message for a session that has since been
// deleted fails with ErrSessionNotFound instead of touching stale state.
func (s *Service) inbound(id string, fn func(ctx context.Context, sess *AgentSession, raw json.RawMessage) (any, error)) rpc.Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		sess, err := s.lookup(id)
		if err != nil {
			return nil, err
		}
		return fn(ctx, sess, raw)
	}
}
