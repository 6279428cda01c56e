// Package hub fans dashboard updates out to websocket viewers. Each feed
// (status, conversation, camera) runs its own hub; viewers that fall
// behind are dropped rather than allowed to stall the broadcast.
package hub

// MessageType distinguishes text and binary websocket payloads.
type MessageType int

const (
	// JSONMessage carries an encoded JSON payload.
	JSONMessage MessageType = iota
	// BinaryMessage carries raw bytes, such as a JPEG preview frame.
	BinaryMessage
)

// Message is one broadcast payload.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage wraps already-encoded JSON for broadcast.
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage wraps raw bytes for broadcast.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}
