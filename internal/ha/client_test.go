package ha

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// mockHAServer creates a mock Home Assistant WebSocket server
func mockHAServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade connection: %v", err)
			return
		}
		defer conn.Close()

		handler(conn)
	}))
}

// standardAuthFlow handles the standard authentication flow
func standardAuthFlow(t *testing.T, conn *websocket.Conn, token string) {
	// Send auth_required
	err := conn.WriteJSON(Message{Type: "auth_required"})
	require.NoError(t, err)

	// Receive auth message
	var authMsg AuthMessage
	err = conn.ReadJSON(&authMsg)
	require.NoError(t, err)
	assert.Equal(t, "auth", authMsg.Type)
	assert.Equal(t, token, authMsg.AccessToken)

	// Send auth_ok
	err = conn.WriteJSON(Message{Type: "auth_ok", Version: "2025.10.1"})
	require.NoError(t, err)
}

// acceptSubscribe answers the subscribe_events request sent after auth
func acceptSubscribe(conn *websocket.Conn) {
	var subMsg SubscribeEventsRequest
	conn.ReadJSON(&subMsg)
	success := true
	conn.WriteJSON(Message{
		ID:      subMsg.ID,
		Type:    "result",
		Success: &success,
	})
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestClient_Connect(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	token := "test_token"

	t.Run("successful connection", func(t *testing.T) {
		server := mockHAServer(t, func(conn *websocket.Conn) {
			standardAuthFlow(t, conn, token)
			acceptSubscribe(conn)

			// Keep connection open
			time.Sleep(100 * time.Millisecond)
		})
		defer server.Close()

		client := NewClient(wsURL(server), token, logger)

		err := client.Connect()
		assert.NoError(t, err)
		assert.True(t, client.IsConnected())

		client.Disconnect()
		assert.False(t, client.IsConnected())
	})

	t.Run("invalid token", func(t *testing.T) {
		server := mockHAServer(t, func(conn *websocket.Conn) {
			conn.WriteJSON(Message{Type: "auth_required"})

			var authMsg AuthMessage
			conn.ReadJSON(&authMsg)

			conn.WriteJSON(Message{Type: "auth_invalid"})
		})
		defer server.Close()

		client := NewClient(wsURL(server), "wrong_token", logger)

		err := client.Connect()
		assert.ErrorIs(t, err, ErrAuthInvalid)
		assert.Contains(t, err.Error(), "authentication failed")
		assert.False(t, client.IsConnected())
	})

	t.Run("already connected", func(t *testing.T) {
		server := mockHAServer(t, func(conn *websocket.Conn) {
			standardAuthFlow(t, conn, token)
			acceptSubscribe(conn)
			time.Sleep(100 * time.Millisecond)
		})
		defer server.Close()

		client := NewClient(wsURL(server), token, logger)

		err := client.Connect()
		require.NoError(t, err)

		err = client.Connect()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "already connected")

		client.Disconnect()
	})

	t.Run("unreachable", func(t *testing.T) {
		client := NewClient("ws://127.0.0.1:1/api/websocket", token, logger)
		err := client.Connect()
		assert.Error(t, err)
		assert.False(t, client.IsConnected())
	})
}

func TestClient_GetState(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	token := "test_token"

	server := mockHAServer(t, func(conn *websocket.Conn) {
		standardAuthFlow(t, conn, token)
		acceptSubscribe(conn)

		success := true
		for i := 0; i < 2; i++ {
			var statesReq GetStatesRequest
			if err := conn.ReadJSON(&statesReq); err != nil {
				return
			}
			assert.Equal(t, "get_states", statesReq.Type)

			states := []*State{
				{EntityID: "input_text.vegvesen_regnr", State: "AB12345"},
				{EntityID: "input_button.vegvesen_lookup", State: "unknown"},
			}
			statesJSON, _ := json.Marshal(states)
			conn.WriteJSON(Message{
				ID:      statesReq.ID,
				Type:    "result",
				Success: &success,
				Result:  statesJSON,
			})
		}

		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	client := NewClient(wsURL(server), token, logger)

	err := client.Connect()
	require.NoError(t, err)
	defer client.Disconnect()

	state, err := client.GetState("input_text.vegvesen_regnr")
	assert.NoError(t, err)
	assert.Equal(t, "input_text.vegvesen_regnr", state.EntityID)
	assert.Equal(t, "AB12345", state.State)

	_, err = client.GetState("nonexistent")
	assert.Error(t, err)
}

func TestClient_CallServiceError(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	token := "test_token"

	server := mockHAServer(t, func(conn *websocket.Conn) {
		standardAuthFlow(t, conn, token)
		acceptSubscribe(conn)

		var serviceReq CallServiceRequest
		conn.ReadJSON(&serviceReq)

		failed := false
		conn.WriteJSON(Message{
			ID:      serviceReq.ID,
			Type:    "result",
			Success: &failed,
			Error:   &Error{Code: "not_found", Message: "Service not found."},
		})

		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	client := NewClient(wsURL(server), token, logger)
	require.NoError(t, client.Connect())
	defer client.Disconnect()

	err := client.CallService("input_text", "nope", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not_found")
}

func TestClient_NotConnected(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	client := NewClient("ws://127.0.0.1:1", "token", logger)

	err := client.SetInputText("vegvesen_regnr", "AB12345")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_SetInputText(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	token := "test_token"

	received := make(chan CallServiceRequest, 2)
	server := mockHAServer(t, func(conn *websocket.Conn) {
		standardAuthFlow(t, conn, token)
		acceptSubscribe(conn)

		success := true
		for i := 0; i < 2; i++ {
			var serviceReq CallServiceRequest
			if err := conn.ReadJSON(&serviceReq); err != nil {
				return
			}
			received <- serviceReq
			conn.WriteJSON(Message{
				ID:      serviceReq.ID,
				Type:    "result",
				Success: &success,
			})
		}

		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	client := NewClient(wsURL(server), token, logger)

	err := client.Connect()
	require.NoError(t, err)
	defer client.Disconnect()

	require.NoError(t, client.SetInputText("vegvesen_regnr", "AB12345"))
	require.NoError(t, client.SetInputText("input_text.other", "CD54321"))

	first := <-received
	assert.Equal(t, "input_text", first.Domain)
	assert.Equal(t, "set_value", first.Service)
	assert.Equal(t, "input_text.vegvesen_regnr", first.ServiceData["entity_id"])
	assert.Equal(t, "AB12345", first.ServiceData["value"])

	second := <-received
	assert.Equal(t, "input_text.other", second.ServiceData["entity_id"])
}

func TestClient_StateChangedEvent(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	token := "test_token"

	server := mockHAServer(t, func(conn *websocket.Conn) {
		standardAuthFlow(t, conn, token)
		acceptSubscribe(conn)

		data, _ := json.Marshal(StateChangedEvent{
			EntityID: "input_text.vegvesen_regnr",
			OldState: &State{EntityID: "input_text.vegvesen_regnr", State: "AB1234"},
			NewState: &State{EntityID: "input_text.vegvesen_regnr", State: "AB12345"},
		})
		conn.WriteJSON(Message{
			ID:   1,
			Type: "event",
			Event: &Event{
				EventType: "state_changed",
				Data:      data,
			},
		})

		time.Sleep(200 * time.Millisecond)
	})
	defer server.Close()

	client := NewClient(wsURL(server), token, logger)

	got := make(chan string, 1)
	_, err := client.SubscribeStateChanges("input_text.vegvesen_regnr", func(entityID string, oldState, newState *State) {
		got <- newState.State
	})
	require.NoError(t, err)

	require.NoError(t, client.Connect())
	defer client.Disconnect()

	select {
	case v := <-got:
		assert.Equal(t, "AB12345", v)
	case <-time.After(2 * time.Second):
		t.Fatal("state change was not delivered")
	}
}

func TestClient_Reconnect(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	token := "test_token"

	var connections atomic.Int32
	server := mockHAServer(t, func(conn *websocket.Conn) {
		n := connections.Add(1)
		standardAuthFlow(t, conn, token)
		acceptSubscribe(conn)

		if n == 1 {
			// Drop the first connection
			return
		}
		time.Sleep(2 * time.Second)
	})
	defer server.Close()

	client := NewClient(wsURL(server), token, logger)

	reconnected := make(chan struct{}, 1)
	client.OnReconnect(func() { reconnected <- struct{}{} })

	require.NoError(t, client.Connect())
	defer client.Disconnect()

	select {
	case <-reconnected:
	case <-time.After(5 * time.Second):
		t.Fatal("client did not reconnect")
	}
	assert.True(t, client.IsConnected())
	assert.Equal(t, int32(2), connections.Load())
}

func TestSubscription_Unsubscribe(t *testing.T) {
	set := newSubscriberSet()

	var a, b int
	subA := set.add("input_text.x", func(string, *State, *State) { a++ })
	set.add("input_text.x", func(string, *State, *State) { b++ })

	set.notify("input_text.x", nil, &State{})
	require.NoError(t, subA.Unsubscribe())
	set.notify("input_text.x", nil, &State{})
	set.notify("input_text.y", nil, &State{})

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)

	// unsubscribing twice is harmless
	assert.NoError(t, subA.Unsubscribe())
}

func TestInputTextEntity(t *testing.T) {
	assert.Equal(t, "input_text.vegvesen_regnr", InputTextEntity("vegvesen_regnr"))
	assert.Equal(t, "input_text.vegvesen_regnr", InputTextEntity("input_text.vegvesen_regnr"))
}

func TestMockClient(t *testing.T) {
	mock := NewMockClient()

	t.Run("connection", func(t *testing.T) {
		assert.False(t, mock.IsConnected())

		err := mock.Connect()
		assert.NoError(t, err)
		assert.True(t, mock.IsConnected())

		err = mock.Connect()
		assert.Error(t, err)

		err = mock.Disconnect()
		assert.NoError(t, err)
		assert.False(t, mock.IsConnected())
	})

	t.Run("state management", func(t *testing.T) {
		mock.SetState("input_text.vegvesen_regnr", "AB12345", map[string]interface{}{
			"friendly_name": "Registration number",
		})

		state, err := mock.GetState("input_text.vegvesen_regnr")
		assert.NoError(t, err)
		assert.Equal(t, "AB12345", state.State)

		_, err = mock.GetState("nonexistent")
		assert.Error(t, err)
	})

	t.Run("set input text notifies subscribers", func(t *testing.T) {
		mock.ClearServiceCalls()

		var seen []string
		sub, err := mock.SubscribeStateChanges("input_text.vegvesen_regnr", func(entityID string, oldState, newState *State) {
			seen = append(seen, newState.State)
		})
		require.NoError(t, err)
		defer sub.Unsubscribe()

		require.NoError(t, mock.SetInputText("vegvesen_regnr", "CD54321"))

		calls := mock.GetServiceCalls()
		require.Len(t, calls, 1)
		assert.Equal(t, "input_text", calls[0].Domain)
		assert.Equal(t, "set_value", calls[0].Service)
		assert.Equal(t, []string{"CD54321"}, seen)

		state, _ := mock.GetState("input_text.vegvesen_regnr")
		assert.Equal(t, "Registration number", state.Attributes["friendly_name"])
	})

	t.Run("injected error", func(t *testing.T) {
		mock.ClearServiceCalls()
		mock.SetCallServiceError(ErrNotConnected)
		defer mock.SetCallServiceError(nil)

		assert.ErrorIs(t, mock.SetInputText("vegvesen_regnr", "AB12345"), ErrNotConnected)
		assert.Empty(t, mock.GetServiceCalls())
	})

	t.Run("reconnect hooks", func(t *testing.T) {
		calls := 0
		mock.OnReconnect(func() { calls++ })
		mock.SimulateReconnect()
		assert.Equal(t, 1, calls)
	})
}
