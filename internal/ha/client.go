package ha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"vehiclelookup/internal/metrics"
)

const (
	defaultRequestTimeout = 10 * time.Second
	reconnectInitial      = time.Second
	reconnectMax          = 30 * time.Second
)

// Errors returned by Client.
var (
	ErrNotConnected = errors.New("not connected to Home Assistant")
	ErrAuthInvalid  = errors.New("authentication failed: invalid token")
)

// HAClient defines the interface for Home Assistant WebSocket client
type HAClient interface {
	Connect() error
	Disconnect() error
	IsConnected() bool
	GetState(entityID string) (*State, error)
	CallService(domain, service string, data map[string]interface{}) error
	SubscribeStateChanges(entityID string, handler StateChangeHandler) (Subscription, error)
	SetInputText(entityID string, value string) error
	OnReconnect(fn func())
}

// Client implements HAClient over the Home Assistant WebSocket API
type Client struct {
	url            string
	token          string
	logger         *zap.Logger
	requestTimeout time.Duration

	conn      *websocket.Conn
	connected bool
	reconnect bool
	ctx       context.Context
	cancel    context.CancelFunc
	connMu    sync.RWMutex
	writeMu   sync.Mutex // gorilla allows one concurrent writer

	msgID   int
	msgIDMu sync.Mutex

	pending   map[int]chan Message
	pendingMu sync.Mutex

	subs *subscriberSet

	reconnectHooks []func()
	hooksMu        sync.Mutex
}

// NewClient creates a new Home Assistant WebSocket client
func NewClient(url, token string, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:            url,
		token:          token,
		logger:         logger.Named("ha"),
		requestTimeout: defaultRequestTimeout,
		pending:        make(map[int]chan Message),
		subs:           newSubscriberSet(),
		ctx:            ctx,
		cancel:         cancel,
		reconnect:      true,
	}
}

// Connect establishes the WebSocket connection, authenticates and
// subscribes to state_changed events
func (c *Client) Connect() error {
	c.connMu.Lock()

	if c.connected {
		c.connMu.Unlock()
		return fmt.Errorf("already connected")
	}

	conn, err := c.dialAndAuth()
	if err != nil {
		c.connMu.Unlock()
		return err
	}

	if c.cancel != nil {
		c.cancel()
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.conn = conn
	c.connected = true
	c.reconnect = true
	ctx := c.ctx
	c.logger.Info("Connected to Home Assistant", zap.String("url", c.url))
	metrics.HAConnected.Set(1)

	go c.receiveMessages(ctx, conn)

	// Release lock before subscribing; sendMessage takes a read lock
	c.connMu.Unlock()

	if err := c.subscribeToStateChanges(); err != nil {
		c.logger.Warn("Failed to subscribe to state changes", zap.Error(err))
	}

	return nil
}

// dialAndAuth opens the socket and runs the auth handshake
func (c *Client) dialAndAuth() (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WebSocket: %w", err)
	}

	fail := func(err error) (*websocket.Conn, error) {
		conn.Close()
		return nil, err
	}

	var authRequired Message
	if err := conn.ReadJSON(&authRequired); err != nil {
		return fail(fmt.Errorf("failed to read auth_required: %w", err))
	}
	if authRequired.Type != "auth_required" {
		return fail(fmt.Errorf("expected auth_required, got %s", authRequired.Type))
	}

	c.writeMu.Lock()
	err = conn.WriteJSON(AuthMessage{Type: "auth", AccessToken: c.token})
	c.writeMu.Unlock()
	if err != nil {
		return fail(fmt.Errorf("failed to send auth: %w", err))
	}

	var authResponse Message
	if err := conn.ReadJSON(&authResponse); err != nil {
		return fail(fmt.Errorf("failed to read auth response: %w", err))
	}
	switch authResponse.Type {
	case "auth_ok":
		if authResponse.Version != "" {
			c.logger.Debug("Authenticated", zap.String("ha_version", authResponse.Version))
		}
		return conn, nil
	case "auth_invalid":
		return fail(ErrAuthInvalid)
	default:
		return fail(fmt.Errorf("expected auth_ok, got %s", authResponse.Type))
	}
}

// Disconnect closes the WebSocket connection and stops reconnecting
func (c *Client) Disconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.reconnect = false
	c.cancel()

	if !c.connected {
		return nil
	}
	c.connected = false
	metrics.HAConnected.Set(0)

	if c.conn != nil {
		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		c.conn.Close()
		c.conn = nil
	}

	c.subs.clear()
	c.logger.Info("Disconnected from Home Assistant")
	return nil
}

// IsConnected returns true if client is connected
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// OnReconnect registers fn to run after every successful reconnect
func (c *Client) OnReconnect(fn func()) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.reconnectHooks = append(c.reconnectHooks, fn)
}

func (c *Client) nextMsgID() int {
	c.msgIDMu.Lock()
	defer c.msgIDMu.Unlock()
	c.msgID++
	return c.msgID
}

// sendMessage sends a request with the given ID and waits for its result
func (c *Client) sendMessage(msgID int, msg interface{}) (*Message, error) {
	c.connMu.RLock()
	if !c.connected {
		c.connMu.RUnlock()
		return nil, ErrNotConnected
	}
	conn := c.conn
	ctx := c.ctx
	c.connMu.RUnlock()

	respChan := make(chan Message, 1)
	c.pendingMu.Lock()
	c.pending[msgID] = respChan
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, msgID)
		c.pendingMu.Unlock()
	}()

	c.writeMu.Lock()
	err := conn.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	timer := time.NewTimer(c.requestTimeout)
	defer timer.Stop()

	select {
	case resp := <-respChan:
		if resp.Success != nil && !*resp.Success {
			if resp.Error != nil {
				return nil, fmt.Errorf("HA error: %s - %s", resp.Error.Code, resp.Error.Message)
			}
			return nil, fmt.Errorf("request failed")
		}
		return &resp, nil
	case <-timer.C:
		return nil, fmt.Errorf("timeout waiting for response")
	case <-ctx.Done():
		return nil, fmt.Errorf("client disconnected")
	}
}

// receiveMessages reads from conn until it fails or ctx is cancelled
func (c *Client) receiveMessages(ctx context.Context, conn *websocket.Conn) {
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("Failed to read message", zap.Error(err))
			c.handleDisconnect(ctx, conn)
			return
		}

		if msg.Type == "event" {
			c.handleEvent(&msg)
			continue
		}

		if msg.ID > 0 {
			c.pendingMu.Lock()
			if ch, ok := c.pending[msg.ID]; ok {
				select {
				case ch <- msg:
				default:
					c.logger.Warn("Response channel full", zap.Int("msg_id", msg.ID))
				}
			}
			c.pendingMu.Unlock()
		}
	}
}

// handleEvent fans a state_changed event out to subscribers
func (c *Client) handleEvent(msg *Message) {
	if msg.Event == nil || msg.Event.EventType != "state_changed" {
		return
	}

	var eventData StateChangedEvent
	if err := json.Unmarshal(msg.Event.Data, &eventData); err != nil {
		c.logger.Error("Failed to unmarshal state_changed event", zap.Error(err))
		return
	}

	c.subs.notify(eventData.EntityID, eventData.OldState, eventData.NewState)
}

// handleDisconnect marks the connection lost and starts reconnecting
func (c *Client) handleDisconnect(ctx context.Context, conn *websocket.Conn) {
	c.connMu.Lock()
	if c.conn != conn {
		c.connMu.Unlock()
		return
	}
	c.connected = false
	c.conn = nil
	reconnect := c.reconnect
	c.connMu.Unlock()

	conn.Close()
	metrics.HAConnected.Set(0)
	c.logger.Warn("Connection lost")

	if reconnect {
		go c.attemptReconnect(ctx)
	}
}

// attemptReconnect retries Connect with exponential backoff until it
// succeeds or the client is disconnected
func (c *Client) attemptReconnect(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = reconnectInitial
	b.MaxInterval = reconnectMax

	operation := func() (struct{}, error) {
		c.connMu.RLock()
		stop := !c.reconnect
		c.connMu.RUnlock()
		if stop {
			return struct{}{}, backoff.Permanent(errors.New("reconnect cancelled"))
		}

		c.logger.Info("Attempting to reconnect...")
		err := c.Connect()
		if errors.Is(err, ErrAuthInvalid) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	notify := func(err error, next time.Duration) {
		c.logger.Error("Reconnection failed", zap.Error(err), zap.Duration("retry_in", next))
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify))
	if err != nil {
		c.logger.Warn("Giving up reconnecting", zap.Error(err))
		return
	}

	c.logger.Info("Reconnected successfully")

	c.hooksMu.Lock()
	hooks := append(([]func())(nil), c.reconnectHooks...)
	c.hooksMu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (c *Client) subscribeToStateChanges() error {
	msgID := c.nextMsgID()
	_, err := c.sendMessage(msgID, &SubscribeEventsRequest{
		ID:        msgID,
		Type:      "subscribe_events",
		EventType: "state_changed",
	})
	return err
}

// GetState retrieves the state of an entity
func (c *Client) GetState(entityID string) (*State, error) {
	msgID := c.nextMsgID()
	resp, err := c.sendMessage(msgID, &GetStatesRequest{ID: msgID, Type: "get_states"})
	if err != nil {
		return nil, err
	}

	var states []*State
	if err := json.Unmarshal(resp.Result, &states); err != nil {
		return nil, fmt.Errorf("failed to unmarshal states: %w", err)
	}

	for _, state := range states {
		if state.EntityID == entityID {
			return state, nil
		}
	}
	return nil, fmt.Errorf("entity %s not found", entityID)
}

// CallService calls a Home Assistant service
func (c *Client) CallService(domain, service string, data map[string]interface{}) error {
	msgID := c.nextMsgID()
	_, err := c.sendMessage(msgID, &CallServiceRequest{
		ID:          msgID,
		Type:        "call_service",
		Domain:      domain,
		Service:     service,
		ServiceData: data,
	})
	return err
}

// SubscribeStateChanges registers handler for state changes of entityID
func (c *Client) SubscribeStateChanges(entityID string, handler StateChangeHandler) (Subscription, error) {
	return c.subs.add(entityID, handler), nil
}

// SetInputText sets the value of an input_text. entityID may omit the
// "input_text." prefix.
func (c *Client) SetInputText(entityID string, value string) error {
	return c.CallService("input_text", "set_value", map[string]interface{}{
		"entity_id": InputTextEntity(entityID),
		"value":     value,
	})
}

// InputTextEntity returns the full input_text entity ID for name
func InputTextEntity(name string) string {
	if strings.HasPrefix(name, "input_text.") {
		return name
	}
	return "input_text." + name
}
