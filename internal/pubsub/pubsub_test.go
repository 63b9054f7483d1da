package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubWithoutSub(t *testing.T) {
	r := NewRegistry()

	err := r.Pub("rift_chat_a1_chat_request", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnawaitedPublish)
}

func TestLastSubscriberWins(t *testing.T) {
	r := NewRegistry()

	var got1, got2 any
	r.Sub("k", func(v any) { got1 = v })
	r.Sub("k", func(v any) { got2 = v })

	require.NoError(t, r.Pub("k", "value"))

	assert.Nil(t, got1)
	assert.Equal(t, "value", got2)
}

func TestPubConsumesRegistration(t *testing.T) {
	r := NewRegistry()

	r.Sub("k", func(v any) {})
	require.NoError(t, r.Pub("k", 1))

	assert.False(t, r.Pending("k"))
	assert.ErrorIs(t, r.Pub("k", 2), ErrUnawaitedPublish)
}

func TestOnce(t *testing.T) {
	r := NewRegistry()

	done := make(chan any, 1)
	go func() {
		v, err := r.Once(context.Background(), "k")
		require.NoError(t, err)
		done <- v
	}()

	// Wait for the subscriber to attach before publishing.
	require.Eventually(t, func() bool { return r.Pending("k") },
		time.Second, time.Millisecond)
	require.NoError(t, r.Pub("k", "reply"))

	select {
	case v := <-done:
		assert.Equal(t, "reply", v)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Once")
	}
}

func TestOnce_ContextCancelled(t *testing.T) {
	r := NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Once(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, r.Pending("k"))
}
