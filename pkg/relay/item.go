// Package relay coordinates the fixed set of concurrent tasks that move
// media between local devices and a live model session: capture tasks feed a
// bounded outbound queue, a single sender drains it in order, a receiver
// demultiplexes the reply stream, and a playback task drains reply audio to
// the speaker. When the model's turn completes (or is interrupted), audio
// still queued for playback is stale and is discarded rather than played
// late.
package relay

// ItemKind discriminates OutboundItem variants.
type ItemKind int

const (
	// ItemImage is a JPEG camera frame.
	ItemImage ItemKind = iota
	// ItemAudio is a chunk of raw PCM microphone audio.
	ItemAudio
	// ItemText is a typed user turn.
	ItemText
)

// String returns a human-readable item kind.
func (k ItemKind) String() string {
	switch k {
	case ItemImage:
		return "image"
	case ItemAudio:
		return "audio"
	case ItemText:
		return "text"
	default:
		return "unknown"
	}
}

// OutboundItem is one unit of input bound for the model. Exactly one
// variant's fields are meaningful, selected by Kind.
type OutboundItem struct {
	Kind ItemKind

	// MIME and Data are set for ItemImage and ItemAudio.
	MIME string
	Data []byte

	// Text and EndOfTurn are set for ItemText.
	Text      string
	EndOfTurn bool
}

// ImageItem wraps an encoded camera frame.
func ImageItem(mime string, data []byte) OutboundItem {
	return OutboundItem{Kind: ItemImage, MIME: mime, Data: data}
}

// AudioItem wraps a chunk of PCM microphone audio.
func AudioItem(mime string, pcm []byte) OutboundItem {
	return OutboundItem{Kind: ItemAudio, MIME: mime, Data: pcm}
}

// TextItem wraps a typed user turn.
func TextItem(text string, endOfTurn bool) OutboundItem {
	return OutboundItem{Kind: ItemText, Text: text, EndOfTurn: endOfTurn}
}

// InboundChunk is one unit of model reply audio queued for playback.
type InboundChunk struct {
	// PCM is raw reply audio (24kHz mono).
	PCM []byte
}
