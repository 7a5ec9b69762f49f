package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-httpservice/internal/httpservice"
)

func dial(t *testing.T, m *Manager) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(m.HandleConnection))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = ws.Close() })

	var hello ServerMessage
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, ws.ReadJSON(&hello))
	require.Equal(t, TypeHello, hello.Type)

	require.Eventually(t, func() bool { return m.ClientCount() > 0 }, time.Second, 10*time.Millisecond)
	return ws
}

func TestNewManager(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	assert.NotNil(t, m)
	assert.Equal(t, 0, m.ClientCount())
}

func TestManager_Close(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	ws := dial(t, m)

	m.Close()
	assert.Equal(t, 0, m.ClientCount())

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	assert.Error(t, err)
}

func TestManager_BroadcastsEvents(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	ws := dial(t, m)

	m.HandleEvent(httpservice.Event{Type: httpservice.EventRegistered, Alias: "/shop", ContextPath: "/shop", Owner: "a"})

	var msg ServerMessage
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, TypeEvent, msg.Type)
	assert.NotEmpty(t, msg.MessageID)
	require.NotNil(t, msg.Event)
	assert.Equal(t, "/shop", msg.Event.Alias)
	assert.Equal(t, httpservice.EventRegistered, msg.Event.Type)
}

func TestManager_SubscribeFilters(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	ws := dial(t, m)

	require.NoError(t, ws.WriteJSON(ClientMessage{
		MessageID: "sub-1",
		Subscribe: &Subscribe{Owner: "a", Types: []httpservice.EventType{httpservice.EventUnregistered}},
	}))

	var ack ServerMessage
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, ws.ReadJSON(&ack))
	assert.Equal(t, TypeSubscribed, ack.Type)
	assert.Equal(t, "sub-1", ack.MessageID)

	m.HandleEvent(httpservice.Event{Type: httpservice.EventUnregistered, Alias: "/x", Owner: "b"})
	m.HandleEvent(httpservice.Event{Type: httpservice.EventRegistered, Alias: "/x", Owner: "a"})
	m.HandleEvent(httpservice.Event{Type: httpservice.EventUnregistered, Alias: "/y", Owner: "a"})

	var msg ServerMessage
	require.NoError(t, ws.ReadJSON(&msg))
	require.NotNil(t, msg.Event)
	assert.Equal(t, "/y", msg.Event.Alias)
}

func TestManager_InvalidMessage(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	ws := dial(t, m)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))

	var msg ServerMessage
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, TypeError, msg.Type)

	require.NoError(t, ws.WriteJSON(ClientMessage{MessageID: "m1"}))
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, "m1", msg.MessageID)
}

func TestManager_DisconnectRemovesClient(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	ws := dial(t, m)

	require.NoError(t, ws.Close())
	assert.Eventually(t, func() bool { return m.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestManager_RejectsForeignOrigin(t *testing.T) {
	m := NewManager([]string{"https://admin.example.com"}, zap.NewNop())
	server := httptest.NewServer(http.HandlerFunc(m.HandleConnection))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestOriginChecker(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	assert.True(t, originChecker(nil)(req("https://any.example.com")))
	assert.True(t, originChecker([]string{"*"})(req("https://any.example.com")))

	check := originChecker([]string{"https://a.example.com"})
	assert.True(t, check(req("https://a.example.com")))
	assert.True(t, check(req("")))
	assert.False(t, check(req("https://b.example.com")))
}

func TestSubscribeMatches(t *testing.T) {
	ev := httpservice.Event{Type: httpservice.EventRegistered, Alias: "/shop/cart", ContextPath: "/shop", Owner: "a"}

	tests := []struct {
		name string
		sub  *Subscribe
		want bool
	}{
		{"nil matches", nil, true},
		{"empty matches", &Subscribe{}, true},
		{"owner match", &Subscribe{Owner: "a"}, true},
		{"owner mismatch", &Subscribe{Owner: "b"}, false},
		{"prefix on context", &Subscribe{Prefix: "/shop"}, true},
		{"prefix on alias", &Subscribe{Prefix: "/shop/cart"}, true},
		{"prefix segment boundary", &Subscribe{Prefix: "/sh"}, false},
		{"root prefix", &Subscribe{Prefix: "/"}, true},
		{"type match", &Subscribe{Types: []httpservice.EventType{httpservice.EventRegistered}}, true},
		{"type mismatch", &Subscribe{Types: []httpservice.EventType{httpservice.EventContextCreated}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sub.matches(ev))
		})
	}
}
