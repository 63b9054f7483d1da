package event

import "github.com/riftlabs/rift-host/pkg/types"

// SessionData is the data for session.created, session.updated,
// session.restarted and session.deleted events.
type SessionData struct {
	AgentID   string `json:"agentId"`
	AgentType string `json:"agentType"`
}

// AgentUpdateData is the data for agent.update events: free-text
// informational messages from a running agent, surfaced in the log panel.
type AgentUpdateData struct {
	AgentID string `json:"agentId"`
	Msg     string `json:"msg"`
}

// StateUpdatedData is the data for state.updated events. It carries the
// full webview state snapshot; there is no diff protocol.
type StateUpdatedData struct {
	State types.WebviewState `json:"state"`
}

// BackendData is the data for backend.up and backend.down events.
type BackendData struct {
	Addr string `json:"addr"`
}
