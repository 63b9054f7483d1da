package rpc

import "encoding/json"

// Request is an outgoing JSON-RPC 2.0 request or notification.
// A notification has no ID.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response is an outgoing JSON-RPC 2.0 response to a backend request.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is the error member of a JSON-RPC response.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSON-RPC error codes used by the host.
const (
	CodeMethodNotFound = -32601
	CodeInternalError  = -32603
)

// incoming is any message read from the backend: a response to one of our
// calls (ID + Result/Error, no Method) or a backend-initiated request or
// notification (Method, plus ID when a reply is expected).
type incoming struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// isResponse reports whether the message answers one of our calls.
func (m *incoming) isResponse() bool {
	return m.Method == "" && len(m.ID) > 0
}

// isRequest reports whether the backend expects a reply.
func (m *incoming) isRequest() bool {
	return m.Method != "" && len(m.ID) > 0
}
