package futures

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// MockExchange is an in-process stand-in for the exchange's streaming
// endpoint, used by the package tests. It accepts websocket connections,
// records and acknowledges SUBSCRIBE frames, and can broadcast raw stream
// payloads or drop connections to exercise the reconnect path.
type MockExchange struct {
	server *httptest.Server
	url    string

	mu            sync.Mutex
	conns         map[*websocket.Conn]bool
	subscriptions [][]string
	connectCount  int

	rejectConnections bool
	onSubscribe       func(params []string)
}

// NewMockExchange starts the mock server.
func NewMockExchange() *MockExchange {
	m := &MockExchange{
		conns: make(map[*websocket.Conn]bool),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	m.url = "ws" + strings.TrimPrefix(m.server.URL, "http")
	return m
}

// URL returns the websocket endpoint of the mock.
func (m *MockExchange) URL() string { return m.url }

// Close shuts the mock down.
func (m *MockExchange) Close() {
	m.server.Close()
	m.DropConnections()
}

// SetRejectConnections makes the server refuse websocket upgrades.
func (m *MockExchange) SetRejectConnections(reject bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectConnections = reject
}

// OnSubscribe registers a callback invoked with the params of every
// SUBSCRIBE frame received.
func (m *MockExchange) OnSubscribe(callback func(params []string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSubscribe = callback
}

// ConnectCount returns how many connections the server has accepted in
// total.
func (m *MockExchange) ConnectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectCount
}

// OpenConnections returns the number of currently open connections.
func (m *MockExchange) OpenConnections() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// Subscriptions returns the params of every SUBSCRIBE frame received, in
// arrival order.
func (m *MockExchange) Subscriptions() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.subscriptions))
	copy(out, m.subscriptions)
	return out
}

// Broadcast sends a raw text frame to every open connection.
func (m *MockExchange) Broadcast(payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.conns {
		_ = conn.WriteMessage(websocket.TextMessage, payload)
	}
}

// DropConnections closes every open connection from the server side.
func (m *MockExchange) DropConnections() {
	m.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(m.conns))
	for conn := range m.conns {
		conns = append(conns, conn)
	}
	m.conns = make(map[*websocket.Conn]bool)
	m.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

func (m *MockExchange) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	reject := m.rejectConnections
	m.mu.Unlock()
	if reject {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	m.mu.Lock()
	m.conns[conn] = true
	m.connectCount++
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.conns, conn)
		m.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var frame subscribeFrame
		if err := json.Unmarshal(payload, &frame); err != nil || frame.Method != "SUBSCRIBE" {
			continue
		}

		m.mu.Lock()
		m.subscriptions = append(m.subscriptions, frame.Params)
		onSubscribe := m.onSubscribe
		m.mu.Unlock()
		if onSubscribe != nil {
			onSubscribe(frame.Params)
		}

		ack := map[string]interface{}{"result": nil, "id": frame.ID}
		data, _ := json.Marshal(ack)
		// Serialized with Broadcast writes on the same socket.
		m.mu.Lock()
		_ = conn.WriteMessage(websocket.TextMessage, data)
		m.mu.Unlock()
	}
}

// setupMockExchange creates a mock exchange that is torn down with the test.
func setupMockExchange(t *testing.T) *MockExchange {
	t.Helper()
	mock := NewMockExchange()
	t.Cleanup(mock.Close)
	return mock
}
