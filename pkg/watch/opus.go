package watch

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// opusDecoder wraps libopus for dictation audio.
type opusDecoder struct {
	dec *opus.Decoder
}

func newOpusDecoder() (pcmDecoder, error) {
	dec, err := opus.NewDecoder(DictationSampleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("watch: create opus decoder: %w", err)
	}
	return &opusDecoder{dec: dec}, nil
}

func (d *opusDecoder) Decode(packet []byte, pcm []int16) (int, error) {
	return d.dec.Decode(packet, pcm)
}
