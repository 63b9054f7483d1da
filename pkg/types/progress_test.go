package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeProgress(t *testing.T, raw string) AgentProgress {
	t.Helper()
	var p AgentProgress
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return p
}

func TestAgentProgress_DecodeChatPayload(t *testing.T) {
	p := decodeProgress(t, `{"agent_id":"a1","agent_type":"rift_chat","payload":{"response":"Hello","done_streaming":false}}`)

	chat, ok := p.Payload.(ChatPayload)
	require.True(t, ok, "got %T", p.Payload)
	require.NotNil(t, chat.Response)
	assert.Equal(t, "Hello", *chat.Response)
	assert.False(t, chat.DoneStreaming)
}

func TestAgentProgress_DecodeDoneWithoutResponse(t *testing.T) {
	p := decodeProgress(t, `{"agent_id":"a1","agent_type":"rift_chat","payload":{"done_streaming":true}}`)

	chat, ok := p.Payload.(ChatPayload)
	require.True(t, ok, "got %T", p.Payload)
	assert.Nil(t, chat.Response)
	assert.True(t, chat.DoneStreaming)
}

func TestAgentProgress_DecodeCodeEditPayload(t *testing.T) {
	p := decodeProgress(t, `{"agent_id":"a2","agent_type":"code_edit","payload":{
		"additive_ranges":[{"start":{"line":1,"character":0},"end":{"line":2,"character":4}}],
		"negative_ranges":[],
		"cursor":{"line":1,"character":0},
		"ready":true
	}}`)

	edit, ok := p.Payload.(CodeEditPayload)
	require.True(t, ok, "got %T", p.Payload)
	require.Len(t, edit.AdditiveRanges, 1)
	assert.Equal(t, Position{Line: 1, Character: 0}, edit.AdditiveRanges[0].Start)
	assert.True(t, edit.Ready)
	require.NotNil(t, edit.Cursor)
}

func TestAgentProgress_DecodeDecisionPayload(t *testing.T) {
	accepted := decodeProgress(t, `{"agent_id":"a2","agent_type":"code_edit","payload":"accepted"}`)
	rejected := decodeProgress(t, `{"agent_id":"a2","agent_type":"code_edit","payload":"rejected"}`)

	a, ok := accepted.Payload.(DecisionPayload)
	require.True(t, ok)
	assert.True(t, a.Accepted)

	r, ok := rejected.Payload.(DecisionPayload)
	require.True(t, ok)
	assert.False(t, r.Accepted)
}

func TestAgentProgress_UnknownPayloadKeptRaw(t *testing.T) {
	p := decodeProgress(t, `{"agent_id":"a3","agent_type":"custom","payload":{"someField":42}}`)

	raw, ok := p.Payload.(RawPayload)
	require.True(t, ok, "got %T", p.Payload)
	assert.JSONEq(t, `{"someField":42}`, string(raw.Data))

	// Unknown bare strings stay raw too.
	p = decodeProgress(t, `{"agent_id":"a3","agent_type":"custom","payload":"maybe"}`)
	raw, ok = p.Payload.(RawPayload)
	require.True(t, ok)
	assert.Equal(t, `"maybe"`, string(raw.Data))
}

func TestAgentProgress_DecodeTasksWithoutPayload(t *testing.T) {
	p := decodeProgress(t, `{"agent_id":"a1","agent_type":"rift_chat","tasks":{"task":{"description":"respond","status":"running"},"subtasks":[{"description":"search","status":"done"}]}}`)

	assert.Nil(t, p.Payload)
	require.NotNil(t, p.Tasks)
	assert.Equal(t, "respond", p.Tasks.Task.Description)
	require.Len(t, p.Tasks.Subtasks, 1)
}

func TestAgentProgress_MarshalRoundTrip(t *testing.T) {
	response := "partial"
	original := AgentProgress{
		AgentID:   "a1",
		AgentType: "rift_chat",
		Payload:   ChatPayload{Response: &response},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded AgentProgress
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)

	// Decisions re-encode as bare strings.
	data, err = json.Marshal(AgentProgress{AgentID: "a2", AgentType: "code_edit", Payload: DecisionPayload{Accepted: true}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"payload":"accepted"`)
}

func TestSelection_RangeNormalizes(t *testing.T) {
	backwards := Selection{
		First:  Position{Line: 5, Character: 2},
		Second: Position{Line: 3, Character: 0},
	}
	r := backwards.Range()
	assert.Equal(t, Position{Line: 3, Character: 0}, r.Start)
	assert.Equal(t, Position{Line: 5, Character: 2}, r.End)
}
