package watch

import "fmt"

// Ping commands.
const (
	pingCmd byte = 0x00
	pongCmd byte = 0x01
)

// notificationPush is the only notification command we send.
const notificationPush byte = 0x01

// DefaultSender labels notifications on the watch.
const DefaultSender = "go-scout"

// maxNotificationField bounds each length-prefixed field.
const maxNotificationField = 255

// encodeNotification builds a notification payload: command byte, then
// length-prefixed sender, title, and body. The watch renders ASCII only,
// so other bytes are replaced.
func encodeNotification(sender, title, body string) ([]byte, error) {
	fields := []string{sender, title, body}
	payload := []byte{notificationPush}

	for _, f := range fields {
		clean := toASCII(f)
		if len(clean) > maxNotificationField {
			clean = clean[:maxNotificationField]
		}
		payload = append(payload, byte(len(clean)))
		payload = append(payload, clean...)
	}

	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: notification %d bytes", ErrPayloadTooLarge, len(payload))
	}
	return payload, nil
}

// toASCII replaces non-printable and non-ASCII bytes with '?'.
func toASCII(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r == '\n' || (r >= 0x20 && r < 0x7f) {
			out = append(out, byte(r))
		} else {
			out = append(out, '?')
		}
	}
	return out
}

// encodePing builds a ping or pong payload with a 4-byte cookie.
func encodePing(cmd byte, cookie []byte) []byte {
	payload := make([]byte, 0, 5)
	payload = append(payload, cmd)
	return append(payload, cookie...)
}
