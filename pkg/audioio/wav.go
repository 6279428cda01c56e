package audioio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// EncodeWAV wraps PCM16 samples in a minimal RIFF/WAVE container.
func EncodeWAV(samples []int16, sampleRate, channels int) []byte {
	dataSize := len(samples) * 2
	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))

	// RIFF header
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	// fmt chunk
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*channels*2))
	binary.Write(buf, binary.LittleEndian, uint16(channels*2))
	binary.Write(buf, binary.LittleEndian, uint16(16))

	// data chunk
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	for _, sample := range samples {
		binary.Write(buf, binary.LittleEndian, sample)
	}

	return buf.Bytes()
}

// WriteWAV writes PCM16 samples to a WAV file.
func WriteWAV(filename string, samples []int16, sampleRate, channels int) error {
	if err := os.WriteFile(filename, EncodeWAV(samples, sampleRate, channels), 0o644); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	return nil
}
