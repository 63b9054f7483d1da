package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftlabs/rift-host/internal/event"
	"github.com/riftlabs/rift-host/internal/storage"
	"github.com/riftlabs/rift-host/pkg/types"
)

func TestSendChatHistoryChange_OverwritesOnLengthDivergence(t *testing.T) {
	svc, _, _ := newTestService(t)

	sess, err := svc.Create(context.Background(), types.AgentTypeChat)
	require.NoError(t, err)

	incoming := []types.ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}
	require.NoError(t, svc.SendChatHistoryChange(sess.ID, incoming))
	assert.Equal(t, incoming, svc.State().Get().Agents[sess.ID].ChatHistory)

	// Same length: the echo of state the host already has is skipped, so
	// local message ids survive.
	svc.appendChatMessage(sess.ID, types.ChatMessage{Role: "user", Content: "next", ID: "local-id"})
	echo := []types.ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "next"},
	}
	require.NoError(t, svc.SendChatHistoryChange(sess.ID, echo))
	history := svc.State().Get().Agents[sess.ID].ChatHistory
	require.Len(t, history, 3)
	assert.Equal(t, "local-id", history[2].ID)
}

func TestSendChatHistoryChange_UnknownAgent(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.SendChatHistoryChange("ghost", nil)
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestSendSelectedAgentChange_UnknownAgent(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.SendSelectedAgentChange("ghost")
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestNotification_SuppressedOnSelectedAgent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, types.AgentTypeChat)
	require.NoError(t, err)
	second, err := svc.Create(ctx, types.AgentTypeChat)
	require.NoError(t, err)

	// Creation selects the newest session.
	require.Equal(t, second.ID, svc.State().Get().SelectedAgentID)

	require.NoError(t, svc.SendHasNotificationChange(second.ID, true))
	assert.False(t, svc.State().Get().Agents[second.ID].HasNotification)

	require.NoError(t, svc.SendHasNotificationChange(first.ID, true))
	assert.True(t, svc.State().Get().Agents[first.ID].HasNotification)

	// Selecting the session clears its dot.
	require.NoError(t, svc.SendSelectedAgentChange(first.ID))
	st := svc.State().Get()
	assert.Equal(t, first.ID, st.SelectedAgentID)
	assert.False(t, st.Agents[first.ID].HasNotification)
}

func TestMergeTasks(t *testing.T) {
	stored := &types.TaskTree{
		Task: types.TaskInfo{Description: "apply edit", Status: "running"},
		Subtasks: []types.TaskInfo{
			{Description: "plan", Status: "done"},
			{Description: "generate", Status: "running"},
		},
	}
	incoming := &types.TaskTree{
		Task: types.TaskInfo{Status: "running"},
		Subtasks: []types.TaskInfo{
			{Description: "generate", Status: "done"},
			{Description: "verify", Status: "running"},
		},
	}

	merged := mergeTasks(stored, incoming)
	require.NotNil(t, merged)
	// Incoming blank keeps the stored description.
	assert.Equal(t, "apply edit", merged.Task.Description)
	require.Len(t, merged.Subtasks, 3)
	assert.Equal(t, types.TaskInfo{Description: "plan", Status: "done"}, merged.Subtasks[0])
	assert.Equal(t, types.TaskInfo{Description: "generate", Status: "done"}, merged.Subtasks[1])
	assert.Equal(t, types.TaskInfo{Description: "verify", Status: "running"}, merged.Subtasks[2])

	assert.Same(t, incoming, mergeTasks(nil, incoming))
	assert.Same(t, stored, mergeTasks(stored, nil))
}

func TestFileListReducers(t *testing.T) {
	svc, _, _ := newTestService(t)

	recent := []types.FileDescriptor{{URI: "file:///a.go", Name: "a.go", RelPath: "a.go"}}
	all := []types.FileDescriptor{
		{URI: "file:///a.go", Name: "a.go", RelPath: "a.go"},
		{URI: "file:///b.go", Name: "b.go", RelPath: "b.go"},
	}
	svc.SendRecentlyOpenedFilesChange(recent)
	svc.SendWorkspaceFilesChange(all)

	st := svc.State().Get()
	assert.Equal(t, recent, st.Files.RecentlyOpenedFiles)
	assert.Equal(t, all, st.Files.NonGitIgnoredFiles)
}

func TestSetOmnibarFocused(t *testing.T) {
	svc, _, _ := newTestService(t)

	svc.SetOmnibarFocused(true)
	assert.True(t, svc.State().Get().IsOmnibarFocused)
	svc.SetOmnibarFocused(false)
	assert.False(t, svc.State().Get().IsOmnibarFocused)
}

func TestSnapshotIsolation(t *testing.T) {
	svc, _, _ := newTestService(t)

	sess, err := svc.Create(context.Background(), types.AgentTypeChat)
	require.NoError(t, err)

	before := svc.State().Get()
	svc.appendChatMessage(sess.ID, types.ChatMessage{Role: "user", Content: "hi"})

	// The earlier snapshot must not see the mutation.
	assert.Empty(t, before.Agents[sess.ID].ChatHistory)
	assert.Len(t, svc.State().Get().Agents[sess.ID].ChatHistory, 1)
}

func TestTranscriptPersistence(t *testing.T) {
	transport := newFakeTransport()
	bus := event.NewBus()
	t.Cleanup(func() { bus.Close() })
	transcripts := storage.New(t.TempDir())
	svc := NewService(transport, newFakeEditor(t.TempDir()), bus, transcripts)
	ctx := context.Background()

	sess, err := svc.Create(ctx, types.AgentTypeChat)
	require.NoError(t, err)
	svc.appendChatMessage(sess.ID, types.ChatMessage{Role: "user", Content: "remember me"})

	saved, err := transcripts.Load(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.AgentTypeChat, saved.AgentType)
	require.Len(t, saved.Messages, 1)
	assert.Equal(t, "remember me", saved.Messages[0].Content)

	// Deleting the session removes its transcript.
	_, err = svc.Create(ctx, types.AgentTypeChat)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, sess.ID))

	_, err = transcripts.Load(sess.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
