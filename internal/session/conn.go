package session

// Conn is the minimal transport surface the session runtime depends on.
// *websocket.Conn satisfies it directly; tests supply a fake to drive the
// runtime without a real socket.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	Close() error
}

// Frame type constants, mirroring gorilla/websocket's message type values
// so callers built against *websocket.Conn need no translation.
const (
	BinaryMessage = 2
	TextMessage   = 1
)
