package types

import (
	"encoding/json"
	"fmt"
)

// TaskInfo is one task or subtask reported by a progress notification.
type TaskInfo struct {
	Description string `json:"description"`
	Status      string `json:"status"` // "running" | "done" | "error"
}

// TaskTree is the task/subtask progress reported by an agent.
type TaskTree struct {
	Task     TaskInfo   `json:"task"`
	Subtasks []TaskInfo `json:"subtasks,omitempty"`
}

// ProgressPayload is the agent-type-specific portion of a progress
// notification. The concrete case is decided once, at deserialization time.
type ProgressPayload interface {
	progressPayload()
}

// ChatPayload streams assistant text for chat-style agents. Response is a
// pointer so an absent field can be told apart from an empty string; only
// payloads that carry the field touch the streaming text.
type ChatPayload struct {
	Response      *string `json:"response,omitempty"`
	DoneStreaming bool    `json:"done_streaming"`
}

// CodeEditPayload carries decoration ranges for the code-edit agent.
// Ready signals that the proposed edit can be accepted or rejected.
type CodeEditPayload struct {
	AdditiveRanges []Range   `json:"additive_ranges,omitempty"`
	NegativeRanges []Range   `json:"negative_ranges,omitempty"`
	Cursor         *Position `json:"cursor,omitempty"`
	Ready          bool      `json:"ready,omitempty"`
}

// DecisionPayload marks an accept/reject resolution. On the wire it is the
// bare string "accepted" or "rejected".
type DecisionPayload struct {
	Accepted bool
}

// RawPayload preserves payload shapes the host does not recognize.
type RawPayload struct {
	Data json.RawMessage
}

func (ChatPayload) progressPayload()     {}
func (CodeEditPayload) progressPayload() {}
func (DecisionPayload) progressPayload() {}
func (RawPayload) progressPayload()      {}

// AgentProgress is the primary state-sync notification,
// {type}_{id}_send_progress.
type AgentProgress struct {
	AgentID   string          `json:"agent_id"`
	AgentType string          `json:"agent_type"`
	Tasks     *TaskTree       `json:"tasks,omitempty"`
	Payload   ProgressPayload `json:"payload,omitempty"`
}

// agentProgressWire mirrors AgentProgress with the payload left raw.
type agentProgressWire struct {
	AgentID   string          `json:"agent_id"`
	AgentType string          `json:"agent_type"`
	Tasks     *TaskTree       `json:"tasks,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// UnmarshalJSON decodes the loosely-typed wire payload into a tagged variant.
// Field probing happens here and nowhere else.
func (p *AgentProgress) UnmarshalJSON(data []byte) error {
	var wire agentProgressWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	p.AgentID = wire.AgentID
	p.AgentType = wire.AgentType
	p.Tasks = wire.Tasks
	p.Payload = nil

	if len(wire.Payload) == 0 || string(wire.Payload) == "null" {
		return nil
	}

	payload, err := decodePayload(wire.Payload)
	if err != nil {
		return fmt.Errorf("progress payload: %w", err)
	}
	p.Payload = payload
	return nil
}

// MarshalJSON re-encodes the payload in its wire form.
func (p AgentProgress) MarshalJSON() ([]byte, error) {
	wire := agentProgressWire{
		AgentID:   p.AgentID,
		AgentType: p.AgentType,
		Tasks:     p.Tasks,
	}

	switch v := p.Payload.(type) {
	case nil:
	case DecisionPayload:
		s := "rejected"
		if v.Accepted {
			s = "accepted"
		}
		raw, _ := json.Marshal(s)
		wire.Payload = raw
	case RawPayload:
		wire.Payload = v.Data
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		wire.Payload = raw
	}

	return json.Marshal(wire)
}

func decodePayload(raw json.RawMessage) (ProgressPayload, error) {
	// Bare string payloads are accept/reject markers.
	var marker string
	if err := json.Unmarshal(raw, &marker); err == nil {
		switch marker {
		case "accepted":
			return DecisionPayload{Accepted: true}, nil
		case "rejected":
			return DecisionPayload{Accepted: false}, nil
		default:
			return RawPayload{Data: raw}, nil
		}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return RawPayload{Data: raw}, nil
	}

	if _, ok := fields["response"]; ok {
		var p ChatPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	}
	if _, ok := fields["done_streaming"]; ok {
		var p ChatPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	}

	_, hasAdd := fields["additive_ranges"]
	_, hasNeg := fields["negative_ranges"]
	_, hasReady := fields["ready"]
	if hasAdd || hasNeg || hasReady {
		var p CodeEditPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	}

	return RawPayload{Data: raw}, nil
}
