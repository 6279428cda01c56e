package watch

import (
	"encoding/binary"
	"fmt"

	"github.com/teslashibe/go-scout/pkg/audioio"
)

// DictationSampleRate is the rate the watch encodes dictation audio at.
const DictationSampleRate = 16000

// Voice control commands.
const (
	voiceSessionSetup    byte = 0x01
	voiceSetupResult     byte = 0x02
	voiceDictationResult byte = 0x03
)

// Voice setup / dictation results.
const (
	voiceResultSuccess byte = 0x00
	voiceResultFailure byte = 0x01
)

// Audio stream commands.
const (
	audioData byte = 0x02
	audioStop byte = 0x03
)

// maxDictationSamples caps a runaway session at roughly two minutes.
const maxDictationSamples = DictationSampleRate * 120

// EncoderInfo describes the opus stream the watch is about to send.
type EncoderInfo struct {
	SampleRate uint32
	BitRate    uint32
	FrameSize  uint16
}

// Dictation is one completed voice session, decoded to PCM.
type Dictation struct {
	// SessionID identifies the session for the result packet.
	SessionID uint16

	// Samples is the decoded mono PCM.
	Samples []int16

	// SampleRate is the PCM rate (DictationSampleRate).
	SampleRate int
}

// WAV returns the dictation as a WAV file. The watch mic records quiet,
// so the audio is normalized to full scale before transcription.
func (d Dictation) WAV() []byte {
	return audioio.EncodeWAV(audioio.NormalizeSamples(d.Samples), d.SampleRate, 1)
}

// pcmDecoder turns one compressed packet into PCM samples. The production
// implementation wraps libopus; tests substitute their own.
type pcmDecoder interface {
	Decode(packet []byte, pcm []int16) (int, error)
}

// voiceSession accumulates one dictation's audio.
type voiceSession struct {
	id       uint16
	dec      pcmDecoder
	frameBuf []int16
	samples  []int16
	dropped  int
}

func newVoiceSession(id uint16, dec pcmDecoder) *voiceSession {
	return &voiceSession{
		id:  id,
		dec: dec,
		// Max opus frame: 120ms at 48kHz.
		frameBuf: make([]int16, 5760),
	}
}

// ingest decodes one opus packet and appends its samples.
func (v *voiceSession) ingest(packet []byte) error {
	if len(v.samples) >= maxDictationSamples {
		v.dropped++
		return nil
	}

	n, err := v.dec.Decode(packet, v.frameBuf)
	if err != nil {
		return fmt.Errorf("watch: decode opus packet: %w", err)
	}
	v.samples = append(v.samples, v.frameBuf[:n]...)
	return nil
}

func (v *voiceSession) result() Dictation {
	return Dictation{
		SessionID:  v.id,
		Samples:    v.samples,
		SampleRate: DictationSampleRate,
	}
}

// parseSessionSetup decodes a session setup payload: command, session id,
// then the encoder info.
func parseSessionSetup(payload []byte) (uint16, EncoderInfo, error) {
	if len(payload) < 13 {
		return 0, EncoderInfo{}, fmt.Errorf("%w: session setup %d bytes", ErrShortFrame, len(payload))
	}
	id := binary.BigEndian.Uint16(payload[1:3])
	info := EncoderInfo{
		SampleRate: binary.BigEndian.Uint32(payload[3:7]),
		BitRate:    binary.BigEndian.Uint32(payload[7:11]),
		FrameSize:  binary.BigEndian.Uint16(payload[11:13]),
	}
	return id, info, nil
}

// encodeSessionSetup builds a session setup payload. Used by tests and the
// remote simulator.
func encodeSessionSetup(id uint16, info EncoderInfo) []byte {
	payload := make([]byte, 13)
	payload[0] = voiceSessionSetup
	binary.BigEndian.PutUint16(payload[1:3], id)
	binary.BigEndian.PutUint32(payload[3:7], info.SampleRate)
	binary.BigEndian.PutUint32(payload[7:11], info.BitRate)
	binary.BigEndian.PutUint16(payload[11:13], info.FrameSize)
	return payload
}

// encodeSetupResult builds the accept/reject reply to a session setup.
func encodeSetupResult(id uint16, result byte) []byte {
	payload := make([]byte, 4)
	payload[0] = voiceSetupResult
	binary.BigEndian.PutUint16(payload[1:3], id)
	payload[3] = result
	return payload
}

// encodeDictationResult builds the transcription packet sent back to the
// watch after a completed session.
func encodeDictationResult(id uint16, result byte, text string) ([]byte, error) {
	clean := toASCII(text)
	if len(clean) > MaxPayload-6 {
		clean = clean[:MaxPayload-6]
	}

	payload := make([]byte, 0, 6+len(clean))
	payload = append(payload, voiceDictationResult)
	payload = binary.BigEndian.AppendUint16(payload, id)
	payload = append(payload, result)
	payload = binary.BigEndian.AppendUint16(payload, uint16(len(clean)))
	return append(payload, clean...), nil
}

// audioPackets decodes an audio data payload: command, session id, packet
// count, then length-prefixed opus packets.
func audioPackets(payload []byte) (uint16, [][]byte, error) {
	if len(payload) < 4 {
		return 0, nil, fmt.Errorf("%w: audio data %d bytes", ErrShortFrame, len(payload))
	}
	id := binary.BigEndian.Uint16(payload[1:3])
	count := int(payload[3])

	packets := make([][]byte, 0, count)
	rest := payload[4:]
	for i := 0; i < count; i++ {
		if len(rest) < 2 {
			return 0, nil, fmt.Errorf("%w: truncated packet %d", ErrShortFrame, i)
		}
		n := int(binary.BigEndian.Uint16(rest[0:2]))
		rest = rest[2:]
		if len(rest) < n {
			return 0, nil, fmt.Errorf("%w: packet %d body", ErrShortFrame, i)
		}
		packets = append(packets, rest[:n])
		rest = rest[n:]
	}
	return id, packets, nil
}

// encodeAudioData builds an audio data payload. Used by tests and the
// remote simulator.
func encodeAudioData(id uint16, packets [][]byte) []byte {
	payload := make([]byte, 0, 64)
	payload = append(payload, audioData)
	payload = binary.BigEndian.AppendUint16(payload, id)
	payload = append(payload, byte(len(packets)))
	for _, p := range packets {
		payload = binary.BigEndian.AppendUint16(payload, uint16(len(p)))
		payload = append(payload, p...)
	}
	return payload
}

// encodeAudioStop builds a stop transfer payload.
func encodeAudioStop(id uint16) []byte {
	payload := make([]byte, 3)
	payload[0] = audioStop
	binary.BigEndian.PutUint16(payload[1:3], id)
	return payload
}
