package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/riftlabs/rift-host/pkg/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The server binds to loopback; the webview origin varies by editor.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

// wsClient holds the latest unsent snapshot for one websocket. Snapshots
// coalesce: a client that falls behind skips straight to the newest state,
// which is safe because every snapshot is the whole state.
type wsClient struct {
	conn *websocket.Conn

	mu     sync.Mutex
	latest *types.WebviewState
	kick   chan struct{}
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{conn: conn, kick: make(chan struct{}, 1)}
}

func (c *wsClient) push(st types.WebviewState) {
	c.mu.Lock()
	c.latest = &st
	c.mu.Unlock()

	select {
	case c.kick <- struct{}{}:
	default:
	}
}

func (c *wsClient) take() *types.WebviewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.latest
	c.latest = nil
	return st
}

// webviewSocket is the webview's channel: full state snapshots flow out,
// tagged messages flow in. There are no replies; the effect of an inbound
// message shows up in a later snapshot.
func (s *Server) webviewSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	client := newWSClient(conn)
	unsub := s.sessions.State().Subscribe(client.push)
	defer unsub()
	client.push(s.sessions.State().Get())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		s.writePump(ctx, client)
	}()

	s.readPump(ctx, conn)
	cancel()
	<-writeDone
}

func (s *Server) writePump(ctx context.Context, client *wsClient) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.kick:
			st := client.take()
			if st == nil {
				continue
			}
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteJSON(types.StateUpdate{Type: "stateUpdate", Data: *st}); err != nil {
				s.log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}

func (s *Server) readPump(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}

		var msg types.WebviewMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Warn().Err(err).Msg("malformed webview message")
			continue
		}
		msg.Raw = data

		if err := s.handleWebviewMessage(ctx, msg); err != nil {
			// Surfaces have no reply channel; errors are log-only and the
			// state snapshot stays authoritative.
			s.log.Warn().Err(err).Str("msg_type", msg.Type).Msg("webview message failed")
		}
	}
}

// handleWebviewMessage routes one inbound webview message.
func (s *Server) handleWebviewMessage(ctx context.Context, msg types.WebviewMessage) error {
	switch msg.Type {
	case types.MsgSelectedAgentID:
		return s.sessions.SendSelectedAgentChange(msg.AgentID)

	case types.MsgCreateAgent:
		agentType := msg.AgentType
		if agentType == "" {
			agentType = s.config.DefaultAgent
		}
		_, err := s.sessions.Create(ctx, agentType)
		return err

	case types.MsgChatMessage:
		return s.sessions.SubmitChat(msg.AgentID, msg.Text)

	case types.MsgInputRequest:
		return s.sessions.SubmitInput(msg.AgentID, msg.Text)

	case types.MsgListAgents:
		return s.sessions.RefreshAvailableAgents(ctx)

	case types.MsgRefreshState:
		// Re-publish the current snapshot to every surface.
		s.sessions.State().Set(s.sessions.State().Get())
		return nil

	case types.MsgNotificationChange:
		on := false
		if msg.On != nil {
			on = *msg.On
		}
		return s.sessions.SendHasNotificationChange(msg.AgentID, on)

	case types.MsgFocusOmnibar:
		s.sessions.SetOmnibarFocused(true)
		return nil

	case types.MsgBlurOmnibar:
		s.sessions.SetOmnibarFocused(false)
		return nil

	case types.MsgRestartAgent:
		return s.sessions.Restart(ctx, msg.AgentID)

	case types.MsgCancelAgent:
		return s.sessions.Cancel(ctx, msg.AgentID)

	case types.MsgDeleteAgent:
		return s.sessions.Delete(ctx, msg.AgentID)

	case types.MsgAcceptOrReject:
		accept := msg.DoesAccept != nil && *msg.DoesAccept
		return s.sessions.AcceptOrReject(ctx, msg.AgentID, accept)

	case types.MsgCopyText:
		// The clipboard lives on the editor side; nothing to do here.
		return nil

	default:
		s.log.Debug().Str("msg_type", msg.Type).Msg("unrecognized webview message")
		return nil
	}
}
