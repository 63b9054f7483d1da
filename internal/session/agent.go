package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/riftlabs/rift-host/internal/editor"
	"github.com/riftlabs/rift-host/internal/event"
	"github.com/riftlabs/rift-host/internal/store"
	"github.com/riftlabs/rift-host/pkg/types"
)

// AgentSession is the host-side handle for one running agent. It carries the
// editor context captured at creation time and the session's fine-grained
// status, and it receives every backend-initiated message addressed to this
// session.
//
// The session never talks to the transport directly; replies travel back as
// the return values of its handler methods.
type AgentSession struct {
	ID        string
	AgentType string

	svc       *Service
	editorCtx *editor.Context

	mu       sync.Mutex
	status   types.AgentStatus
	codeLens types.CodeLensStatus
	additive []types.Range
	negative []types.Range

	statusChanges   *store.Store[types.AgentStatus]
	codeLensChanges *store.Store[types.CodeLensStatus]
}

func newAgentSession(id, agentType string, edCtx *editor.Context, svc *Service) *AgentSession {
	return &AgentSession{
		ID:              id,
		AgentType:       agentType,
		svc:             svc,
		editorCtx:       edCtx,
		status:          types.AgentRunning,
		codeLens:        types.CodeLensRunning,
		statusChanges:   store.New(types.AgentRunning),
		codeLensChanges: store.New(types.CodeLensRunning),
	}
}

// scopedKey builds the exchange key for one kind of pending interaction.
// Keys are scoped per agent type and id, so at most one exchange of each
// kind is outstanding per session.
func (a *AgentSession) scopedKey(suffix string) string {
	return fmt.Sprintf("%s_%s_%s", a.AgentType, a.ID, suffix)
}

// Status returns the coarse lifecycle state.
func (a *AgentSession) Status() types.AgentStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// CodeLensStatus returns the fine-grained accept/reject state.
func (a *AgentSession) CodeLensStatus() types.CodeLensStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.codeLens
}

// Ranges returns the current additive and negative decoration ranges.
func (a *AgentSession) Ranges() (additive, negative []types.Range) {
	a.mu.Lock()
	defer a.mu.Unlock()
	additive = append(additive, a.additive...)
	negative = append(negative, a.negative...)
	return additive, negative
}

// OnStatusChange registers a listener for status transitions. Returns an
// unsubscribe function.
func (a *AgentSession) OnStatusChange(fn func(types.AgentStatus)) func() {
	return a.statusChanges.Subscribe(fn)
}

// OnCodeLensChange registers a listener for code lens transitions. Returns
// an unsubscribe function.
func (a *AgentSession) OnCodeLensChange(fn func(types.CodeLensStatus)) func() {
	return a.codeLensChanges.Subscribe(fn)
}

func (a *AgentSession) setStatus(next types.AgentStatus) {
	a.mu.Lock()
	changed := a.status != next
	a.status = next
	a.mu.Unlock()

	if changed {
		a.statusChanges.Set(next)
	}
}

func (a *AgentSession) setCodeLens(next types.CodeLensStatus) {
	a.mu.Lock()
	changed := a.codeLens != next
	a.codeLens = next
	a.mu.Unlock()

	if changed {
		a.codeLensChanges.Set(next)
		a.svc.editor.RefreshCodeLens()
	}
}

// reset returns the session to its initial running state. Used on restart.
func (a *AgentSession) reset() {
	a.mu.Lock()
	a.additive = nil
	a.negative = nil
	doc := a.document()
	a.mu.Unlock()

	if doc != "" {
		a.svc.editor.ClearDecorations(doc)
	}
	a.setStatus(types.AgentRunning)
	a.setCodeLens(types.CodeLensRunning)
}

// document returns the URI of the session's document, or "". Callers hold
// no particular lock; editorCtx is immutable after creation.
func (a *AgentSession) document() string {
	if a.editorCtx == nil || a.editorCtx.Document == nil {
		return ""
	}
	return a.editorCtx.Document.URI
}

// HandleInputRequest suspends until the operator answers the prompt. Two
// surfaces can answer: the editor's modal input box, and the webview (which
// publishes through the exchange registry). Whichever replies first wins. A
// nil response means the prompt was dismissed, which is an expected outcome.
func (a *AgentSession) HandleInputRequest(ctx context.Context, params types.InputRequestParams) (types.InputRequestResult, error) {
	replies := make(chan *string, 2)

	modalCtx, cancelModal := context.WithCancel(ctx)
	defer cancelModal()
	go func() {
		value, ok, err := a.svc.editor.ShowInputBox(modalCtx, params.Msg, params.PlaceHolder)
		if err != nil || modalCtx.Err() != nil {
			return
		}
		if ok {
			v := value
			replies <- &v
			return
		}
		replies <- nil
	}()

	key := a.scopedKey("input_request")
	a.svc.exchanges.Sub(key, func(v any) {
		if text, ok := v.(string); ok {
			replies <- &text
		}
	})
	defer a.svc.exchanges.Unsub(key)

	select {
	case v := <-replies:
		return types.InputRequestResult{Response: v}, nil
	case <-ctx.Done():
		return types.InputRequestResult{}, ctx.Err()
	}
}

// HandleChatRequest overwrites the session's chat history with the
// backend-authoritative message list, flags the session as awaiting input,
// and suspends until the operator submits the next message.
func (a *AgentSession) HandleChatRequest(ctx context.Context, params types.ChatRequestParams) (types.ChatRequestResult, error) {
	if err := a.svc.SendChatHistoryChange(a.ID, params.Messages); err != nil {
		return types.ChatRequestResult{}, err
	}
	a.svc.SendHasNotificationChange(a.ID, true)

	v, err := a.svc.exchanges.Once(ctx, a.scopedKey("chat_request"))
	if err != nil {
		return types.ChatRequestResult{}, err
	}
	msg, ok := v.(types.ChatMessage)
	if !ok {
		return types.ChatRequestResult{}, fmt.Errorf("chat exchange carried %T, want ChatMessage", v)
	}

	a.svc.appendChatMessage(a.ID, msg)
	_ = a.svc.SendHasNotificationChange(a.ID, false)
	return types.ChatRequestResult{Message: msg.Content}, nil
}

// HandleUpdate surfaces a free-text informational message from the agent.
func (a *AgentSession) HandleUpdate(params types.UpdateParams) error {
	a.svc.editor.ShowInformation(fmt.Sprintf("%s: %s", a.ID, params.Msg))
	a.svc.bus.Publish(event.Event{
		Type: event.AgentUpdate,
		Data: event.AgentUpdateData{AgentID: a.ID, Msg: params.Msg},
	})
	return nil
}

// HandleProgress applies one progress notification: task status feeds the
// coarse lifecycle state, payloads feed decorations and the presentation
// record.
func (a *AgentSession) HandleProgress(ctx context.Context, progress types.AgentProgress) error {
	if progress.Tasks != nil {
		switch progress.Tasks.Task.Status {
		case "done":
			a.setStatus(types.AgentDone)
			a.finishCodeLens()
		case "error":
			a.setStatus(types.AgentError)
			a.setCodeLens(types.CodeLensError)
		}
	}

	switch p := progress.Payload.(type) {
	case types.CodeEditPayload:
		a.applyRanges(p)
		if p.Ready {
			a.setCodeLens(types.CodeLensReady)
		}
	case types.DecisionPayload:
		a.resolveDecision(p.Accepted)
	}

	return a.svc.SendProgressChange(a.ID, progress)
}

// HandleResult finalizes the session: the lifecycle state moves to done and
// any textual result is appended to the conversation.
func (a *AgentSession) HandleResult(result types.AgentResult) error {
	a.setStatus(types.AgentDone)
	a.finishCodeLens()

	if result.Result != nil && *result.Result != "" {
		a.svc.appendChatMessage(a.ID, types.ChatMessage{
			Role:    "assistant",
			Content: *result.Result,
			ID:      newMessageID(),
		})
	}
	return a.svc.finalizeRecord(a.ID)
}

// finishCodeLens moves an in-flight code lens to done, leaving terminal
// accept/reject/error states untouched.
func (a *AgentSession) finishCodeLens() {
	a.mu.Lock()
	inFlight := a.codeLens == types.CodeLensRunning || a.codeLens == types.CodeLensReady
	a.mu.Unlock()
	if inFlight {
		a.setCodeLens(types.CodeLensDone)
	}
}

// applyRanges replaces the decoration ranges the payload carries and mirrors
// them into the editor. A payload that omits a range kind leaves that kind
// alone.
func (a *AgentSession) applyRanges(p types.CodeEditPayload) {
	a.mu.Lock()
	if p.AdditiveRanges != nil {
		a.additive = p.AdditiveRanges
	}
	if p.NegativeRanges != nil {
		a.negative = p.NegativeRanges
	}
	doc := a.document()
	a.mu.Unlock()

	if doc == "" {
		return
	}
	if p.AdditiveRanges != nil {
		a.svc.editor.SetDecorations(doc, editor.DecorationAdditive, p.AdditiveRanges)
	}
	if p.NegativeRanges != nil {
		a.svc.editor.SetDecorations(doc, editor.DecorationNegative, p.NegativeRanges)
	}
}

// resolveDecision settles an accept/reject: decorations are cleared and the
// code lens lands on its terminal state.
func (a *AgentSession) resolveDecision(accepted bool) {
	a.mu.Lock()
	a.additive = nil
	a.negative = nil
	doc := a.document()
	a.mu.Unlock()

	if doc != "" {
		a.svc.editor.ClearDecorations(doc)
	}
	if accepted {
		a.setCodeLens(types.CodeLensAccepted)
	} else {
		a.setCodeLens(types.CodeLensRejected)
	}
	_ = a.svc.SendDoesShowAcceptRejectBarChange(a.ID, false)
}
