package watch

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// AppMessage commands.
const (
	appMsgPush byte = 0x01
	appMsgACK  byte = 0xff
	appMsgNACK byte = 0x7f
)

// buttonKey is the dictionary key the watch app stores the pressed button
// under.
const buttonKey uint32 = 0

// Button identifies a physical watch button.
type Button int

const (
	// ButtonUp is the top button.
	ButtonUp Button = iota
	// ButtonSelect is the middle button. A select press toggles the live
	// session.
	ButtonSelect
	// ButtonDown is the bottom button. A down press triggers a snapshot.
	ButtonDown
)

// String returns a human-readable button name.
func (b Button) String() string {
	switch b {
	case ButtonUp:
		return "up"
	case ButtonSelect:
		return "select"
	case ButtonDown:
		return "down"
	default:
		return "unknown"
	}
}

// ErrNotButtonPress is returned by parseButtonPress for app messages that
// do not carry a button code.
var ErrNotButtonPress = errors.New("watch: not a button press")

// appMessagePush is a decoded AppMessage push.
type appMessagePush struct {
	TransactionID byte
	UUID          [16]byte
	Tuples        map[uint32][]byte
}

// Tuple value types.
const (
	tupleTypeBytes   byte = 0
	tupleTypeCString byte = 1
	tupleTypeUint    byte = 2
	tupleTypeInt     byte = 3
)

// parseAppMessage decodes an AppMessage push payload: command, transaction
// id, app UUID, then a dictionary of length-prefixed tuples.
func parseAppMessage(payload []byte) (appMessagePush, error) {
	if len(payload) < 19 {
		return appMessagePush{}, fmt.Errorf("%w: app message %d bytes", ErrShortFrame, len(payload))
	}
	if payload[0] != appMsgPush {
		return appMessagePush{}, fmt.Errorf("watch: unexpected app message command 0x%02x", payload[0])
	}

	msg := appMessagePush{
		TransactionID: payload[1],
		Tuples:        make(map[uint32][]byte),
	}
	copy(msg.UUID[:], payload[2:18])

	count := int(payload[18])
	rest := payload[19:]
	for i := 0; i < count; i++ {
		if len(rest) < 7 {
			return appMessagePush{}, fmt.Errorf("%w: truncated tuple %d", ErrShortFrame, i)
		}
		key := binary.LittleEndian.Uint32(rest[0:4])
		length := int(binary.LittleEndian.Uint16(rest[5:7]))
		rest = rest[7:]
		if len(rest) < length {
			return appMessagePush{}, fmt.Errorf("%w: tuple %d value", ErrShortFrame, i)
		}
		msg.Tuples[key] = rest[:length]
		rest = rest[length:]
	}

	return msg, nil
}

// parseButtonPress extracts the button code from an app message push.
func parseButtonPress(msg appMessagePush) (Button, error) {
	value, ok := msg.Tuples[buttonKey]
	if !ok || len(value) == 0 {
		return 0, ErrNotButtonPress
	}

	switch value[0] {
	case 0:
		return ButtonUp, nil
	case 1:
		return ButtonSelect, nil
	case 2:
		return ButtonDown, nil
	default:
		return 0, fmt.Errorf("%w: code %d", ErrNotButtonPress, value[0])
	}
}

// ackFrame acknowledges an app message push so the watch app does not
// retry it.
func ackFrame(transactionID byte) Frame {
	return Frame{
		Endpoint: EndpointAppMessage,
		Payload:  []byte{appMsgACK, transactionID},
	}
}

// encodeButtonPush builds a button-press app message. Used by tests and
// the remote simulator.
func encodeButtonPush(transactionID byte, uuid [16]byte, b Button) []byte {
	payload := make([]byte, 0, 27)
	payload = append(payload, appMsgPush, transactionID)
	payload = append(payload, uuid[:]...)
	payload = append(payload, 1) // one tuple

	var tuple [8]byte
	binary.LittleEndian.PutUint32(tuple[0:4], buttonKey)
	tuple[4] = tupleTypeUint
	binary.LittleEndian.PutUint16(tuple[5:7], 1)
	tuple[7] = byte(b)
	return append(payload, tuple[:]...)
}
