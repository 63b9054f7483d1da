package types

import "encoding/json"

// PresentationRecord is the serializable, webview-facing subset of a
// session's state.
type PresentationRecord struct {
	AgentID                 string        `json:"agentId"`
	AgentType               string        `json:"type"`
	ChatHistory             []ChatMessage `json:"chatHistory"`
	IsStreaming             bool          `json:"isStreaming"`
	StreamingText           string        `json:"streamingText"`
	Tasks                   *TaskTree     `json:"tasks,omitempty"`
	HasNotification         bool          `json:"hasNotification"`
	IsDeleted               bool          `json:"isDeleted"`
	DoesShowAcceptRejectBar bool          `json:"doesShowAcceptRejectBar"`
}

// FileDescriptor identifies a file offered for @-mention autocomplete.
type FileDescriptor struct {
	URI     string `json:"uri"`
	Name    string `json:"name"`
	RelPath string `json:"relPath"`
}

// WebviewFiles holds the two file lists surfaced in the omnibar.
type WebviewFiles struct {
	RecentlyOpenedFiles []FileDescriptor `json:"recentlyOpenedFiles"`
	NonGitIgnoredFiles  []FileDescriptor `json:"nonGitIgnoredFiles"`
}

// WebviewState is the single source-of-truth projection pushed to
// presentation surfaces. It is always sent whole; there is no diff protocol.
type WebviewState struct {
	SelectedAgentID  string                        `json:"selectedAgentId"`
	Agents           map[string]PresentationRecord `json:"agents"`
	AvailableAgents  []AgentDescriptor             `json:"availableAgents"`
	Files            WebviewFiles                  `json:"files"`
	IsOmnibarFocused bool                          `json:"isOmnibarFocused"`
}

// WebviewMessage is a tagged inbound message from a presentation surface.
// Responses, when any, arrive as later state snapshots, never as replies.
type WebviewMessage struct {
	Type string `json:"type"`

	AgentID   string `json:"agentId,omitempty"`
	AgentType string `json:"agentType,omitempty"`
	Text      string `json:"text,omitempty"`
	On        *bool  `json:"on,omitempty"`

	// DoesAccept distinguishes accept from reject for acceptOrReject.
	DoesAccept *bool `json:"doesAccept,omitempty"`

	// Raw preserves unrecognized fields for forward compatibility.
	Raw json.RawMessage `json:"-"`
}

// Webview message type tags.
const (
	MsgSelectedAgentID    = "selectedAgentId"
	MsgCopyText           = "copyText"
	MsgCreateAgent        = "createAgent"
	MsgChatMessage        = "chatMessage"
	MsgInputRequest       = "inputRequest"
	MsgListAgents         = "listAgents"
	MsgRefreshState       = "refreshState"
	MsgNotificationChange = "notificationChange"
	MsgFocusOmnibar       = "focusOmnibar"
	MsgBlurOmnibar        = "blurOmnibar"
	MsgRestartAgent       = "restartAgent"
	MsgCancelAgent        = "cancelAgent"
	MsgDeleteAgent        = "deleteAgent"
	MsgAcceptOrReject     = "acceptOrReject"
)

// StateUpdate is the single outbound message shape to presentation surfaces.
type StateUpdate struct {
	Type string       `json:"type"` // always "stateUpdate"
	Data WebviewState `json:"data"`
}
