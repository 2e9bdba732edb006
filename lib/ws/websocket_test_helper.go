package ws

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// MockWebSocketConn is a scripted connection. Frames pushed with Deliver are
// returned by ReadMessage, text frames written by the server are recorded.
type MockWebSocketConn struct {
	mu        sync.Mutex
	closed    bool
	written   [][]byte
	incoming  chan []byte
	done      chan struct{}
	closeOnce sync.Once
	readLimit int64
}

func NewMockWebSocketConn() *MockWebSocketConn {
	return &MockWebSocketConn{
		incoming: make(chan []byte, 64),
		done:     make(chan struct{}),
	}
}

// Deliver queues a frame as if the peer had sent it.
func (m *MockWebSocketConn) Deliver(message []byte) {
	select {
	case m.incoming <- message:
	case <-m.done:
	}
}

func (m *MockWebSocketConn) SetReadLimit(size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readLimit = size
}

func (m *MockWebSocketConn) ReadMessage() (messageType int, p []byte, err error) {
	select {
	case message := <-m.incoming:
		return websocket.TextMessage, message, nil
	case <-m.done:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}
}

func (m *MockWebSocketConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return websocket.ErrCloseSent
	}
	if messageType == websocket.TextMessage {
		m.written = append(m.written, data)
	}
	return nil
}

// Written returns a copy of the text frames written so far.
func (m *MockWebSocketConn) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	written := make([][]byte, len(m.written))
	copy(written, m.written)
	return written
}

func (m *MockWebSocketConn) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.done)
	})
	return nil
}

func (m *MockWebSocketConn) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockWebSocketConn) SetWriteDeadline(t time.Time) error {
	return nil
}

func (m *MockWebSocketConn) SetReadDeadline(t time.Time) error {
	return nil
}

func (m *MockWebSocketConn) SetPongHandler(h func(appData string) error) {
}

func (m *MockWebSocketConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	return nil
}

func (m *MockWebSocketConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8080}
}

var _ WebSocketConn = (*MockWebSocketConn)(nil)
