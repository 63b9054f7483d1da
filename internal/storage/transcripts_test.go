package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftlabs/rift-host/pkg/types"
)

func TestTranscripts_SaveLoad(t *testing.T) {
	store := New(t.TempDir())

	messages := []types.ChatMessage{
		{Role: "assistant", Content: "Hello! How can I help you today?"},
		{Role: "user", Content: "explain this function"},
	}
	require.NoError(t, store.Save("a1", "rift_chat", messages))

	record, err := store.Load("a1")
	require.NoError(t, err)

	assert.Equal(t, "a1", record.AgentID)
	assert.Equal(t, "rift_chat", record.AgentType)
	assert.Equal(t, messages, record.Messages)
	assert.NotZero(t, record.UpdatedAt)
}

func TestTranscripts_LoadMissing(t *testing.T) {
	store := New(t.TempDir())

	_, err := store.Load("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTranscripts_SaveOverwrites(t *testing.T) {
	store := New(t.TempDir())

	require.NoError(t, store.Save("a1", "rift_chat", []types.ChatMessage{{Role: "user", Content: "one"}}))
	require.NoError(t, store.Save("a1", "rift_chat", []types.ChatMessage{
		{Role: "user", Content: "one"},
		{Role: "assistant", Content: "two"},
	}))

	record, err := store.Load("a1")
	require.NoError(t, err)
	assert.Len(t, record.Messages, 2)
}

func TestTranscripts_DeleteAndList(t *testing.T) {
	store := New(t.TempDir())

	require.NoError(t, store.Save("a1", "rift_chat", nil))
	require.NoError(t, store.Save("a2", "code_edit", nil))

	ids, err := store.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a1", "a2"}, ids)

	require.NoError(t, store.Delete("a1"))
	// Deleting twice is fine.
	require.NoError(t, store.Delete("a1"))

	ids, err = store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a2"}, ids)
}
