package session

import (
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/riftlabs/rift-host/pkg/types"
)

// This file holds the reducers over the webview state store. Every mutation
// goes through one of these methods; each one replaces the snapshot with a
// cloned copy, so subscribers never see a map mutated under them.

// newMessageID mints ids for host-authored chat messages.
func newMessageID() string {
	return ulid.Make().String()
}

func emptyState() types.WebviewState {
	return types.WebviewState{Agents: map[string]types.PresentationRecord{}}
}

// cloneState shallow-copies the snapshot with a fresh Agents map. Records
// are values and their slices are treated as immutable, so a map copy is
// enough.
func cloneState(st types.WebviewState) types.WebviewState {
	agents := make(map[string]types.PresentationRecord, len(st.Agents))
	for id, rec := range st.Agents {
		agents[id] = rec
	}
	st.Agents = agents
	return st
}

// mutateRecord applies fn to one presentation record under the store's
// update cycle. Returns ErrUnknownAgent when no record exists for id.
func (s *Service) mutateRecord(id string, fn func(rec *types.PresentationRecord)) error {
	var missing bool
	s.state.Update(func(st types.WebviewState) types.WebviewState {
		rec, ok := st.Agents[id]
		if !ok {
			missing = true
			return st
		}
		st = cloneState(st)
		fn(&rec)
		st.Agents[id] = rec
		return st
	})
	if missing {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	return nil
}

// SendChatHistoryChange replaces a session's chat history with the
// backend-authoritative list. The overwrite only happens when the lengths
// diverge; a same-length list is the echo of state the host already has,
// and skipping it avoids clobbering locally-appended message ids.
func (s *Service) SendChatHistoryChange(id string, messages []types.ChatMessage) error {
	changed := false
	err := s.mutateRecord(id, func(rec *types.PresentationRecord) {
		if len(rec.ChatHistory) == len(messages) {
			return
		}
		rec.ChatHistory = append([]types.ChatMessage(nil), messages...)
		changed = true
	})
	if err != nil {
		return err
	}
	if changed {
		s.persist(id)
	}
	return nil
}

// appendChatMessage appends one message to a session's history.
func (s *Service) appendChatMessage(id string, msg types.ChatMessage) {
	err := s.mutateRecord(id, func(rec *types.PresentationRecord) {
		history := append([]types.ChatMessage(nil), rec.ChatHistory...)
		rec.ChatHistory = append(history, msg)
	})
	if err != nil {
		s.log.Warn().Err(err).Str("agent_id", id).Msg("append to missing record")
		return
	}
	s.persist(id)
}

// SendProgressChange folds one progress notification into the presentation
// record: tasks merge into the existing tree, chat payloads drive the
// streaming text, and ready/decision payloads toggle the accept/reject bar.
func (s *Service) SendProgressChange(id string, progress types.AgentProgress) error {
	persist := false
	err := s.mutateRecord(id, func(rec *types.PresentationRecord) {
		if progress.Tasks != nil {
			rec.Tasks = mergeTasks(rec.Tasks, progress.Tasks)
		}

		switch p := progress.Payload.(type) {
		case types.ChatPayload:
			// Only payloads that carry the response field touch the
			// streaming text; done_streaming alone must not blank a
			// stream mid-flight.
			if p.Response != nil {
				rec.StreamingText = *p.Response
				rec.IsStreaming = true
			}
			if p.DoneStreaming {
				if rec.StreamingText != "" {
					history := append([]types.ChatMessage(nil), rec.ChatHistory...)
					rec.ChatHistory = append(history, types.ChatMessage{
						Role:    "assistant",
						Content: rec.StreamingText,
						ID:      newMessageID(),
					})
					persist = true
				}
				rec.IsStreaming = false
				rec.StreamingText = ""
			}
		case types.CodeEditPayload:
			if p.Ready {
				rec.DoesShowAcceptRejectBar = true
			}
		case types.DecisionPayload:
			rec.DoesShowAcceptRejectBar = false
		}
	})
	if err != nil {
		return err
	}
	if persist {
		s.persist(id)
	}
	return nil
}

// mergeTasks folds an incoming task tree into the stored one. Incoming
// fields win, but an incoming blank keeps the stored value, and subtasks
// are unioned by description so earlier subtasks survive partial reports.
func mergeTasks(stored, incoming *types.TaskTree) *types.TaskTree {
	if incoming == nil {
		return stored
	}
	if stored == nil {
		return incoming
	}

	merged := &types.TaskTree{Task: incoming.Task}
	if merged.Task.Description == "" {
		merged.Task.Description = stored.Task.Description
	}
	if merged.Task.Status == "" {
		merged.Task.Status = stored.Task.Status
	}

	seen := make(map[string]int, len(stored.Subtasks))
	for _, sub := range stored.Subtasks {
		seen[sub.Description] = len(merged.Subtasks)
		merged.Subtasks = append(merged.Subtasks, sub)
	}
	for _, sub := range incoming.Subtasks {
		if i, ok := seen[sub.Description]; ok {
			merged.Subtasks[i] = sub
			continue
		}
		merged.Subtasks = append(merged.Subtasks, sub)
	}
	return merged
}

// SendDoesShowAcceptRejectBarChange toggles the accept/reject bar.
func (s *Service) SendDoesShowAcceptRejectBarChange(id string, on bool) error {
	return s.mutateRecord(id, func(rec *types.PresentationRecord) {
		rec.DoesShowAcceptRejectBar = on
	})
}

// SendHasNotificationChange toggles the attention dot. Raising it on the
// currently selected session is a no-op: the operator is already looking
// at it.
func (s *Service) SendHasNotificationChange(id string, on bool) error {
	var missing bool
	s.state.Update(func(st types.WebviewState) types.WebviewState {
		rec, ok := st.Agents[id]
		if !ok {
			missing = true
			return st
		}
		if on && st.SelectedAgentID == id {
			return st
		}
		if rec.HasNotification == on {
			return st
		}
		st = cloneState(st)
		rec.HasNotification = on
		st.Agents[id] = rec
		return st
	})
	if missing {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	return nil
}

// SendSelectedAgentChange moves the selection and clears the newly selected
// session's notification dot.
func (s *Service) SendSelectedAgentChange(id string) error {
	var missing bool
	s.state.Update(func(st types.WebviewState) types.WebviewState {
		rec, ok := st.Agents[id]
		if !ok {
			missing = true
			return st
		}
		st = cloneState(st)
		st.SelectedAgentID = id
		rec.HasNotification = false
		st.Agents[id] = rec
		return st
	})
	if missing {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	return nil
}

// SendRecentlyOpenedFilesChange replaces the recently-opened file list.
func (s *Service) SendRecentlyOpenedFilesChange(files []types.FileDescriptor) {
	s.state.Update(func(st types.WebviewState) types.WebviewState {
		st = cloneState(st)
		st.Files.RecentlyOpenedFiles = files
		return st
	})
}

// SendWorkspaceFilesChange replaces the workspace-visible file list.
func (s *Service) SendWorkspaceFilesChange(files []types.FileDescriptor) {
	s.state.Update(func(st types.WebviewState) types.WebviewState {
		st = cloneState(st)
		st.Files.NonGitIgnoredFiles = files
		return st
	})
}

// SetOmnibarFocused tracks omnibar focus for the webview.
func (s *Service) SetOmnibarFocused(on bool) {
	s.state.Update(func(st types.WebviewState) types.WebviewState {
		st = cloneState(st)
		st.IsOmnibarFocused = on
		return st
	})
}

// finalizeRecord clears transient streaming state once a session finishes.
func (s *Service) finalizeRecord(id string) error {
	err := s.mutateRecord(id, func(rec *types.PresentationRecord) {
		rec.IsStreaming = false
		rec.StreamingText = ""
	})
	if err != nil {
		return err
	}
	s.persist(id)
	return nil
}

// persist writes a session's transcript to disk, when persistence is on.
func (s *Service) persist(id string) {
	if s.transcripts == nil {
		return
	}
	st := s.state.Get()
	rec, ok := st.Agents[id]
	if !ok {
		return
	}
	if err := s.transcripts.Save(id, rec.AgentType, rec.ChatHistory); err != nil {
		s.log.Warn().Err(err).Str("agent_id", id).Msg("transcript save failed")
	}
}
