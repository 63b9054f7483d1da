package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a minimal framed JSON-RPC server for exercising the client.
type fakeBackend struct {
	t        *testing.T
	listener net.Listener

	mu    sync.Mutex
	conns []net.Conn

	// replies collects client responses to backend-initiated requests.
	replies chan *incoming

	// handler answers incoming requests; nil means echo params back.
	handler func(method string, params json.RawMessage) any
}

func newFakeBackend(t *testing.T) *fakeBackend {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	b := &fakeBackend{t: t, listener: l, replies: make(chan *incoming, 4)}
	go b.acceptLoop(l)
	return b
}

func (b *fakeBackend) addr() string { return b.listener.Addr().String() }

func (b *fakeBackend) acceptLoop(l net.Listener) {
	for {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		b.mu.Lock()
		b.conns = append(b.conns, conn)
		b.mu.Unlock()
		go b.serve(conn)
	}
}

func (b *fakeBackend) serve(conn net.Conn) {
	reader := bufio.NewReader(conn)
	for {
		msg, err := readMessage(reader)
		if err != nil {
			return
		}
		if msg.Method == "" {
			b.replies <- msg // response to a backend-initiated request
			continue
		}
		if len(msg.ID) == 0 {
			continue // notification, nothing to answer
		}

		var result any = msg.Params
		if b.handler != nil {
			result = b.handler(msg.Method, msg.Params)
		}
		b.send(conn, map[string]any{
			"jsonrpc": "2.0",
			"id":      json.RawMessage(msg.ID),
			"result":  result,
		})
	}
}

func (b *fakeBackend) send(conn net.Conn, msg any) {
	body, err := json.Marshal(msg)
	require.NoError(b.t, err)
	_, err = fmt.Fprintf(conn, "Content-Length: %d\r\n\r\n", len(body))
	if err != nil {
		return
	}
	_, _ = conn.Write(body)
}

// notifyClient pushes a backend-initiated message over the last connection.
func (b *fakeBackend) notifyClient(method string, params any) {
	b.mu.Lock()
	conn := b.conns[len(b.conns)-1]
	b.mu.Unlock()
	b.send(conn, map[string]any{"jsonrpc": "2.0", "method": method, "params": params})
}

func (b *fakeBackend) requestClient(id int, method string, params any) {
	b.mu.Lock()
	conn := b.conns[len(b.conns)-1]
	b.mu.Unlock()
	b.send(conn, map[string]any{"jsonrpc": "2.0", "id": id, "method": method, "params": params})
}

func (b *fakeBackend) dropConnections() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.conns {
		c.Close()
	}
	b.conns = nil
}

func (b *fakeBackend) close() {
	b.listener.Close()
	b.dropConnections()
}

func newTestClient(t *testing.T, addr string) *Client {
	c := NewClient(Config{Addr: addr, DialTimeout: time.Second, ReconnectCeiling: 5 * time.Second})
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient_CallRoundTrip(t *testing.T) {
	backend := newFakeBackend(t)
	defer backend.close()
	backend.handler = func(method string, params json.RawMessage) any {
		assert.Equal(t, "morph/run", method)
		return map[string]string{"id": "a1"}
	}

	c := newTestClient(t, backend.addr())
	require.NoError(t, c.Connect(context.Background()))

	var result struct {
		ID string `json:"id"`
	}
	err := c.Call(context.Background(), "morph/run", map[string]string{"agent_type": "rift_chat"}, &result)
	require.NoError(t, err)
	assert.Equal(t, "a1", result.ID)
}

func TestClient_CallWhileDisconnected(t *testing.T) {
	c := newTestClient(t, "127.0.0.1:1") // nothing listens here

	err := c.Call(context.Background(), "morph/run", nil, nil)
	assert.ErrorIs(t, err, ErrNotConnected)

	err = c.Notify(context.Background(), "morph/cancel", nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_InboundNotificationDispatch(t *testing.T) {
	backend := newFakeBackend(t)
	defer backend.close()

	c := newTestClient(t, backend.addr())

	received := make(chan json.RawMessage, 1)
	c.Handle("rift_chat_a1_send_update", func(ctx context.Context, params json.RawMessage) (any, error) {
		received <- params
		return nil, nil
	})

	require.NoError(t, c.Connect(context.Background()))
	backend.notifyClient("rift_chat_a1_send_update", map[string]string{"msg": "hello"})

	select {
	case params := <-received:
		assert.JSONEq(t, `{"msg":"hello"}`, string(params))
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not dispatched")
	}
}

func TestClient_InboundRequestGetsReply(t *testing.T) {
	backend := newFakeBackend(t)
	defer backend.close()

	c := newTestClient(t, backend.addr())
	c.Handle("rift_chat_a1_request_input", func(ctx context.Context, params json.RawMessage) (any, error) {
		return map[string]string{"response": "yes"}, nil
	})

	require.NoError(t, c.Connect(context.Background()))

	backend.requestClient(42, "rift_chat_a1_request_input", map[string]string{"msg": "proceed?"})

	select {
	case reply := <-backend.replies:
		assert.JSONEq(t, `42`, string(reply.ID))
		assert.JSONEq(t, `{"response":"yes"}`, string(reply.Result))
	case <-time.After(2 * time.Second):
		t.Fatal("no reply from client")
	}
}

func TestClient_UnhandledRequestReturnsMethodNotFound(t *testing.T) {
	backend := newFakeBackend(t)
	defer backend.close()

	c := newTestClient(t, backend.addr())
	require.NoError(t, c.Connect(context.Background()))

	backend.requestClient(7, "no_such_method", nil)

	select {
	case reply := <-backend.replies:
		require.NotNil(t, reply.Error)
		assert.Equal(t, CodeMethodNotFound, reply.Error.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("no reply from client")
	}
}

func TestClient_ReconnectAfterDrop(t *testing.T) {
	backend := newFakeBackend(t)
	defer backend.close()

	downs := make(chan struct{}, 1)
	ups := make(chan struct{}, 2)
	c := NewClient(Config{
		Addr:             backend.addr(),
		DialTimeout:      time.Second,
		ReconnectCeiling: 10 * time.Second,
		OnUp:             func() { ups <- struct{}{} },
		OnDown:           func() { downs <- struct{}{} },
	})
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))
	<-ups

	backend.dropConnections()

	select {
	case <-downs:
	case <-time.After(2 * time.Second):
		t.Fatal("OnDown was not called")
	}

	// The reconnect loop should find the still-listening backend.
	select {
	case <-ups:
	case <-time.After(5 * time.Second):
		t.Fatal("client did not reconnect")
	}

	require.Eventually(t, func() bool { return c.Connected() }, 2*time.Second, 10*time.Millisecond)

	err := c.Call(context.Background(), "morph/listAgents", nil, nil)
	assert.NoError(t, err)
}

func TestClient_PendingCallsFailOnDrop(t *testing.T) {
	backend := newFakeBackend(t)
	defer backend.close()
	backend.handler = func(method string, params json.RawMessage) any {
		// Never answered: the serve loop exits when the conn drops.
		select {}
	}

	c := newTestClient(t, backend.addr())
	require.NoError(t, c.Connect(context.Background()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Call(context.Background(), "morph/run", nil, nil)
	}()

	time.Sleep(100 * time.Millisecond)
	backend.dropConnections()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrNotConnected)
	case <-time.After(2 * time.Second):
		t.Fatal("pending call did not fail after drop")
	}
}
