package live

// Wire types for the BidiGenerateContent WebSocket protocol (v1beta).
// Every client message carries exactly one of Setup, ClientContent, or
// RealtimeInput; every server message carries exactly one of SetupComplete,
// ServerContent, or GoAway. The union is decoded once at the session
// boundary and exposed as typed ServerEvents.

// clientMessage is the envelope for messages sent to the server.
type clientMessage struct {
	Setup         *setupMessage  `json:"setup,omitempty"`
	ClientContent *clientContent `json:"clientContent,omitempty"`
	RealtimeInput *realtimeInput `json:"realtimeInput,omitempty"`
}

// setupMessage configures the session. Sent once, first.
type setupMessage struct {
	Model             string            `json:"model"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

// clientContent carries a complete user text turn.
type clientContent struct {
	Turns        []content `json:"turns,omitempty"`
	TurnComplete bool      `json:"turnComplete"`
}

// realtimeInput carries streamed media (audio or video frames).
type realtimeInput struct {
	MediaChunks []mediaBlob `json:"mediaChunks,omitempty"`
}

// mediaBlob is a base64-encoded media chunk.
type mediaBlob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts,omitempty"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// serverMessage is the envelope for messages received from the server.
type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
	GoAway        *goAway        `json:"goAway,omitempty"`
	Error         *serverError   `json:"error,omitempty"`
}

// serverContent is one increment of the model's reply stream.
type serverContent struct {
	ModelTurn    *content `json:"modelTurn,omitempty"`
	TurnComplete bool     `json:"turnComplete,omitempty"`
	Interrupted  bool     `json:"interrupted,omitempty"`
}

// goAway announces the server will drop the connection.
type goAway struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}

type serverError struct {
	Code    int    `json:"code,omitempty"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// EventKind discriminates ServerEvent variants.
type EventKind int

const (
	// EventAudio carries a chunk of reply audio (raw PCM, 24kHz mono).
	EventAudio EventKind = iota
	// EventText carries a fragment of reply text.
	EventText
	// EventTurnComplete marks the end of the current model turn.
	EventTurnComplete
	// EventInterrupted indicates the model turn was cut short by new input.
	// Buffered but unplayed audio for the turn is stale.
	EventInterrupted
	// EventGoAway indicates the server will close the connection soon.
	EventGoAway
)

// String returns a human-readable event kind.
func (k EventKind) String() string {
	switch k {
	case EventAudio:
		return "audio"
	case EventText:
		return "text"
	case EventTurnComplete:
		return "turn_complete"
	case EventInterrupted:
		return "interrupted"
	case EventGoAway:
		return "go_away"
	default:
		return "unknown"
	}
}

// ServerEvent is one demultiplexed event from the reply stream.
// Exactly one payload field is meaningful, selected by Kind.
type ServerEvent struct {
	Kind EventKind

	// Audio is raw PCM reply audio. Set for EventAudio.
	Audio []byte

	// Text is a reply text fragment. Set for EventText.
	Text string
}
