// Package rpc provides the JSON-RPC transport to the Rift agent backend.
//
// The backend speaks JSON-RPC 2.0 with LSP-style Content-Length framing
// over TCP. The client supports concurrent outgoing calls, dynamic
// registration of handlers for backend-initiated methods, and
// reconnect-on-drop: when the connection fails, pending calls fail, new
// calls are rejected with ErrNotConnected, and a background loop polls the
// backend port with capped exponential backoff until it is reachable again.
// Backend unavailability is retryable at the operation level; the transport
// does not replay anything.
package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/riftlabs/rift-host/internal/logging"
)

var (
	// ErrNotConnected is returned for calls issued while the backend
	// connection is down. Callers treat this as retryable.
	ErrNotConnected = errors.New("rpc: not connected to backend")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("rpc: client closed")
)

// Handler processes a backend-initiated request or notification. For
// notifications the returned result is discarded.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Config holds transport configuration.
type Config struct {
	// Addr is the backend address, host:port.
	Addr string
	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration
	// ReconnectCeiling bounds the total reconnect wait. Long by design:
	// the backend may take a while to come back, but not forever.
	ReconnectCeiling time.Duration
	// OnUp is called after a connection is (re)established.
	OnUp func()
	// OnDown is called when the connection drops.
	OnDown func()
}

// DefaultConfig returns the default transport configuration, pointed at the
// Rift backend's default port.
func DefaultConfig() Config {
	return Config{
		Addr:             "127.0.0.1:7797",
		DialTimeout:      3 * time.Second,
		ReconnectCeiling: 10 * time.Minute,
	}
}

// Client is a JSON-RPC client over a single TCP connection.
type Client struct {
	cfg Config
	log zerolog.Logger

	mu        sync.Mutex
	conn      net.Conn
	writeMu   sync.Mutex
	nextID    int64
	pending   map[int64]chan *incoming
	connected bool
	closed    bool

	handlerMu sync.RWMutex
	handlers  map[string]Handler

	// dispatchCtx is passed to inbound handlers and cancelled on Close,
	// releasing any handler still waiting on human input.
	dispatchCtx    context.Context
	dispatchCancel context.CancelFunc
}

// NewClient creates a client. Connect must be called before use.
func NewClient(cfg Config) *Client {
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultConfig().DialTimeout
	}
	if cfg.ReconnectCeiling == 0 {
		cfg.ReconnectCeiling = DefaultConfig().ReconnectCeiling
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:            cfg,
		log:            logging.ForComponent("rpc"),
		pending:        make(map[int64]chan *incoming),
		handlers:       make(map[string]Handler),
		dispatchCtx:    ctx,
		dispatchCancel: cancel,
	}
}

// Connect dials the backend and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	d := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.cfg.Addr)
	if err != nil {
		return fmt.Errorf("rpc: dial %s: %w", c.cfg.Addr, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(conn)

	c.log.Info().Str("addr", c.cfg.Addr).Msg("connected to backend")
	if c.cfg.OnUp != nil {
		c.cfg.OnUp()
	}
	return nil
}

// Connected reports whether the transport currently has a live connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Handle registers a handler for a backend-initiated method, replacing any
// existing registration. Registrations survive reconnects.
func (c *Client) Handle(method string, h Handler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.handlers[method] = h
}

// Unhandle removes the handler for a method.
func (c *Client) Unhandle(method string) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	delete(c.handlers, method)
}

// Call sends a request and decodes the response into result (which may be
// nil). It fails fast with ErrNotConnected while the connection is down.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.nextID++
	id := c.nextID
	ch := make(chan *incoming, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	req := Request{JSONRPC: "2.0", ID: &id, Method: method, Params: params}
	if err := c.write(req); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return err
	}

	select {
	case resp := <-ch:
		if resp == nil {
			return ErrNotConnected
		}
		if resp.Error != nil {
			return fmt.Errorf("rpc: %s: backend error %d: %s", method, resp.Error.Code, resp.Error.Message)
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("rpc: %s: decode result: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	}
}

// Notify sends a fire-and-forget notification.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.mu.Unlock()

	return c.write(Request{JSONRPC: "2.0", Method: method, Params: params})
}

// Close tears down the connection and stops reconnecting.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	c.dispatchCancel()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// write frames and sends one message. The write lock keeps frames from
// interleaving when calls are issued concurrently.
func (c *Client) write(msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	if _, err := io.WriteString(conn, header); err != nil {
		return fmt.Errorf("rpc: write header: %w", err)
	}
	if _, err := conn.Write(body); err != nil {
		return fmt.Errorf("rpc: write body: %w", err)
	}
	return nil
}

// readLoop reads framed messages until the connection fails, then hands
// off to the reconnect loop.
func (c *Client) readLoop(conn net.Conn) {
	reader := bufio.NewReader(conn)
	for {
		msg, err := readMessage(reader)
		if err != nil {
			c.onDisconnect(conn, err)
			return
		}

		switch {
		case msg.isResponse():
			c.deliverResponse(msg)
		case msg.Method != "":
			c.dispatch(msg)
		}
	}
}

func (c *Client) deliverResponse(msg *incoming) {
	var id int64
	if err := json.Unmarshal(msg.ID, &id); err != nil {
		c.log.Warn().Str("id", string(msg.ID)).Msg("response with non-numeric id")
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if ok {
		ch <- msg
	}
}

// dispatch routes a backend-initiated message. Notifications run inline so
// per-connection order is preserved; requests run in their own goroutine
// because their handlers may suspend indefinitely waiting on human input.
func (c *Client) dispatch(msg *incoming) {
	c.handlerMu.RLock()
	h, ok := c.handlers[msg.Method]
	c.handlerMu.RUnlock()

	if !ok {
		c.log.Warn().Str("method", msg.Method).Msg("no handler registered")
		if msg.isRequest() {
			c.reply(msg.ID, nil, &ResponseError{Code: CodeMethodNotFound, Message: "method not found: " + msg.Method})
		}
		return
	}

	if msg.isRequest() {
		go func() {
			result, err := h(c.dispatchCtx, msg.Params)
			if err != nil {
				c.reply(msg.ID, nil, &ResponseError{Code: CodeInternalError, Message: err.Error()})
				return
			}
			c.reply(msg.ID, result, nil)
		}()
		return
	}

	if _, err := h(c.dispatchCtx, msg.Params); err != nil {
		c.log.Error().Err(err).Str("method", msg.Method).Msg("notification handler failed")
	}
}

func (c *Client) reply(id json.RawMessage, result any, respErr *ResponseError) {
	resp := Response{JSONRPC: "2.0", ID: id, Result: result, Error: respErr}
	if err := c.write(resp); err != nil {
		c.log.Error().Err(err).Msg("failed to send reply")
	}
}

// onDisconnect fails all pending calls and starts the reconnect loop.
func (c *Client) onDisconnect(conn net.Conn, cause error) {
	conn.Close()

	c.mu.Lock()
	if c.conn != conn {
		// A newer connection already replaced this one.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.connected = false
	pending := c.pending
	c.pending = make(map[int64]chan *incoming)
	closed := c.closed
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}

	if closed {
		return
	}

	c.log.Warn().Err(cause).Msg("backend connection dropped")
	if c.cfg.OnDown != nil {
		c.cfg.OnDown()
	}

	go c.reconnect()
}

// reconnect polls the backend port until it is reachable again, with capped
// exponential backoff bounded by ReconnectCeiling. In-flight work during
// this window fails; callers retry at the operation level.
func (c *Client) reconnect() {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = c.cfg.ReconnectCeiling

	err := backoff.Retry(func() error {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return backoff.Permanent(ErrClosed)
		}

		// Liveness probe before committing to a full connect.
		probe, err := net.DialTimeout("tcp", c.cfg.Addr, c.cfg.DialTimeout)
		if err != nil {
			return err
		}
		probe.Close()

		return c.Connect(context.Background())
	}, policy)

	if err != nil && !errors.Is(err, ErrClosed) {
		c.log.Error().Err(err).Msg("gave up reconnecting to backend")
	}
}

// readMessage reads one Content-Length framed JSON-RPC message.
func readMessage(r *bufio.Reader) (*incoming, error) {
	var contentLength int
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "Content-Length:") {
			lenStr := strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:"))
			contentLength, _ = strconv.Atoi(lenStr)
		}
	}

	if contentLength == 0 {
		return nil, fmt.Errorf("rpc: missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	var msg incoming
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("rpc: decode message: %w", err)
	}
	return &msg, nil
}
