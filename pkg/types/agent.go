// Package types defines the wire types shared between the host, the Rift
// agent backend, and the webview frontend.
package types

// Well-known agent type tags. The backend may register more at runtime;
// these are the ones the host has special behavior for.
const (
	AgentTypeChat     = "rift_chat"
	AgentTypeCodeEdit = "code_edit"
)

// AgentStatus is the coarse lifecycle state of a session.
type AgentStatus string

const (
	AgentRunning AgentStatus = "running"
	AgentDone    AgentStatus = "done"
	AgentError   AgentStatus = "error"
)

// CodeLensStatus drives the accept/reject affordances in the editor.
// It is finer grained than AgentStatus: a code-edit agent is "ready" while
// still running, because the proposed edit can already be accepted.
type CodeLensStatus string

const (
	CodeLensRunning  CodeLensStatus = "running"
	CodeLensReady    CodeLensStatus = "ready"
	CodeLensAccepted CodeLensStatus = "accepted"
	CodeLensRejected CodeLensStatus = "rejected"
	CodeLensError    CodeLensStatus = "error"
	CodeLensDone     CodeLensStatus = "done"
)

// AgentDescriptor describes a registrable agent type, as returned by
// morph/listAgents.
type AgentDescriptor struct {
	AgentType   string `json:"agent_type"`
	DisplayName string `json:"display_name"`
	Description string `json:"agent_description"`
	Icon        string `json:"agent_icon,omitempty"`
}

// AgentParams is the editor context captured when a session is created.
type AgentParams struct {
	AgentID             string                  `json:"agent_id,omitempty"`
	TextDocument        *TextDocumentIdentifier `json:"textDocument,omitempty"`
	Selection           *Selection              `json:"selection,omitempty"`
	Position            *Position               `json:"position,omitempty"`
	WorkspaceFolderPath string                  `json:"workspaceFolderPath"`
}

// RunAgentParams is the payload of the morph/run request.
type RunAgentParams struct {
	AgentType   string      `json:"agent_type"`
	AgentParams AgentParams `json:"agent_params"`
}

// RunAgentResult carries the backend-assigned session identifier.
type RunAgentResult struct {
	ID string `json:"id"`
}

// AgentIDParams addresses an existing session.
type AgentIDParams struct {
	ID string `json:"id"`
}

// ChatMessage is one role-tagged entry of a session's conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user" | "assistant" | "system"
	Content string `json:"content"`
	ID      string `json:"id,omitempty"`
}

// InputRequestParams is the payload of {type}_{id}_request_input.
type InputRequestParams struct {
	Msg         string `json:"msg"`
	PlaceHolder string `json:"place_holder"`
}

// InputRequestResult replies to an input request. A nil Response means the
// operator dismissed the prompt; that is an expected outcome, not an error.
type InputRequestResult struct {
	Response *string `json:"response"`
}

// ChatRequestParams is the payload of {type}_{id}_request_chat. The message
// history is server-authoritative.
type ChatRequestParams struct {
	Messages []ChatMessage `json:"messages"`
}

// ChatRequestResult carries the operator's next message back to the backend.
type ChatRequestResult struct {
	Message string `json:"message"`
}

// UpdateParams is the payload of {type}_{id}_send_update.
type UpdateParams struct {
	Msg string `json:"msg"`
}

// AgentResult is the payload of {type}_{id}_send_result.
type AgentResult struct {
	Type   string  `json:"type,omitempty"`
	Result *string `json:"result,omitempty"`
}
