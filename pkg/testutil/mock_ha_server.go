// Package testutil provides a mock Home Assistant WebSocket server, a mock
// vehicle registry and a wired test environment for integration tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"vehiclelookup/internal/ha"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// connWrapper wraps a WebSocket connection with its write mutex
type connWrapper struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (w *connWrapper) send(msg any) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	_ = w.conn.WriteJSON(msg)
}

// MockHAServer simulates the parts of the Home Assistant WebSocket API the
// lookup service uses: auth, get_states, subscribe_events and call_service
// for input_text and input_button.
type MockHAServer struct {
	server *httptest.Server
	token  string

	states   map[string]*ha.State
	statesMu sync.RWMutex

	connections []*connWrapper
	connsMu     sync.Mutex

	serviceCalls []ServiceCall
	callsMu      sync.Mutex
}

// NewMockHAServer starts a mock server on a random local port
func NewMockHAServer(token string) *MockHAServer {
	s := &MockHAServer{
		token:  token,
		states: make(map[string]*ha.State),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/websocket", s.handleWebSocket)
	s.server = httptest.NewServer(mux)
	return s
}

// URL returns the WebSocket endpoint
func (s *MockHAServer) URL() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http") + "/api/websocket"
}

// Stop closes every connection and the listener
func (s *MockHAServer) Stop() {
	s.DropConnections()
	s.server.Close()
}

// DropConnections closes every client connection without stopping the
// server, so clients reconnect.
func (s *MockHAServer) DropConnections() {
	s.connsMu.Lock()
	conns := s.connections
	s.connections = nil
	s.connsMu.Unlock()

	for _, w := range conns {
		w.conn.Close()
	}
}

// ConnectionCount returns the number of authenticated connections
func (s *MockHAServer) ConnectionCount() int {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	return len(s.connections)
}

// SetState sets a state and broadcasts a state_changed event
func (s *MockHAServer) SetState(entityID, state string, attributes map[string]interface{}) {
	oldState, newState := s.store(entityID, state, attributes)
	s.broadcastStateChange(entityID, oldState, newState)
}

// SetStateSilently changes a state without an event, as happens while a
// client is disconnected
func (s *MockHAServer) SetStateSilently(entityID, state string) {
	s.store(entityID, state, nil)
}

func (s *MockHAServer) store(entityID, state string, attributes map[string]interface{}) (*ha.State, *ha.State) {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()

	oldState := s.states[entityID]
	if attributes == nil {
		attributes = map[string]interface{}{}
		if oldState != nil {
			attributes = oldState.Attributes
		}
	}
	now := time.Now()
	newState := &ha.State{
		EntityID:    entityID,
		State:       state,
		Attributes:  attributes,
		LastChanged: now,
		LastUpdated: now,
	}
	s.states[entityID] = newState
	return oldState, newState
}

// GetState returns the current state or nil
func (s *MockHAServer) GetState(entityID string) *ha.State {
	s.statesMu.RLock()
	defer s.statesMu.RUnlock()
	return s.states[entityID]
}

// InitializeStates creates the helpers the lookup service expects
func (s *MockHAServer) InitializeStates(regnrEntity, buttonEntity string) {
	s.SetState(regnrEntity, "", map[string]interface{}{
		"friendly_name": "Registration number",
		"max":           7,
	})
	s.SetState(buttonEntity, "unknown", map[string]interface{}{
		"friendly_name": "Lookup Now",
	})
}

// PressButton simulates pressing an input_button
func (s *MockHAServer) PressButton(entityID string) {
	s.SetState(entityID, time.Now().UTC().Format(time.RFC3339Nano), nil)
}

// handleWebSocket handles WebSocket connections
func (s *MockHAServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	wrapper := &connWrapper{conn: conn}
	wrapper.send(ha.Message{Type: "auth_required"})

	var authMsg ha.AuthMessage
	if err := conn.ReadJSON(&authMsg); err != nil {
		return
	}
	if authMsg.AccessToken != s.token {
		wrapper.send(ha.Message{Type: "auth_invalid"})
		return
	}
	wrapper.send(ha.Message{Type: "auth_ok", Version: "2026.3.0"})

	s.connsMu.Lock()
	s.connections = append(s.connections, wrapper)
	s.connsMu.Unlock()

	defer func() {
		s.connsMu.Lock()
		for i, w := range s.connections {
			if w == wrapper {
				s.connections = append(s.connections[:i], s.connections[i+1:]...)
				break
			}
		}
		s.connsMu.Unlock()
	}()

	for {
		var raw json.RawMessage
		if err := conn.ReadJSON(&raw); err != nil {
			return
		}

		var base struct {
			ID   int    `json:"id"`
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &base); err != nil {
			continue
		}

		switch base.Type {
		case "subscribe_events":
			sendResult(wrapper, base.ID, nil)
		case "get_states":
			s.handleGetStates(wrapper, base.ID)
		case "call_service":
			s.handleCallService(wrapper, raw)
		default:
			success := false
			wrapper.send(ha.Message{
				ID:      base.ID,
				Type:    "result",
				Success: &success,
				Error:   &ha.Error{Code: "unknown_command", Message: base.Type},
			})
		}
	}
}

func sendResult(w *connWrapper, id int, result json.RawMessage) {
	success := true
	w.send(ha.Message{ID: id, Type: "result", Success: &success, Result: result})
}

func (s *MockHAServer) handleGetStates(wrapper *connWrapper, id int) {
	s.statesMu.RLock()
	states := make([]*ha.State, 0, len(s.states))
	for _, state := range s.states {
		states = append(states, state)
	}
	s.statesMu.RUnlock()

	data, _ := json.Marshal(states)
	sendResult(wrapper, id, data)
}

func (s *MockHAServer) handleCallService(wrapper *connWrapper, raw json.RawMessage) {
	var req ha.CallServiceRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return
	}

	s.callsMu.Lock()
	s.serviceCalls = append(s.serviceCalls, ServiceCall{
		Timestamp:   time.Now(),
		Domain:      req.Domain,
		Service:     req.Service,
		ServiceData: req.ServiceData,
	})
	s.callsMu.Unlock()

	entityID, _ := req.ServiceData["entity_id"].(string)
	switch {
	case req.Domain == "input_text" && req.Service == "set_value":
		if value, ok := req.ServiceData["value"].(string); ok && s.GetState(entityID) != nil {
			s.SetState(entityID, value, nil)
		}
	case req.Domain == "input_button" && req.Service == "press":
		if s.GetState(entityID) != nil {
			s.PressButton(entityID)
		}
	}

	sendResult(wrapper, req.ID, nil)
}

// broadcastStateChange sends a state_changed event to every connection
func (s *MockHAServer) broadcastStateChange(entityID string, oldState, newState *ha.State) {
	data, _ := json.Marshal(ha.StateChangedEvent{
		EntityID: entityID,
		NewState: newState,
		OldState: oldState,
	})
	msg := ha.Message{
		Type: "event",
		Event: &ha.Event{
			EventType: "state_changed",
			Data:      data,
			Origin:    "LOCAL",
			TimeFired: time.Now(),
		},
	}

	s.connsMu.Lock()
	wrappers := append([]*connWrapper(nil), s.connections...)
	s.connsMu.Unlock()

	for _, w := range wrappers {
		w.send(msg)
	}
}

// GetServiceCalls returns all service calls since last clear
func (s *MockHAServer) GetServiceCalls() []ServiceCall {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	return append([]ServiceCall(nil), s.serviceCalls...)
}

// ClearServiceCalls resets the service call log
func (s *MockHAServer) ClearServiceCalls() {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	s.serviceCalls = nil
}

// CountServiceCalls counts service calls matching domain and service
func (s *MockHAServer) CountServiceCalls(domain, service string) int {
	return len(FilterServiceCalls(s.GetServiceCalls(), domain, service))
}
