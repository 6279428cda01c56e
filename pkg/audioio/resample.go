package audioio

// Sample conversion helpers for the audio paths. The live session runs at
// fixed rates (16 kHz capture, 24 kHz playback) but real devices do not
// always match: a Bluetooth speaker may be pinned at 48 kHz stereo, the
// watch mic is quieter than a headset. These helpers adapt PCM16 streams
// between what the device speaks and what the session expects.

// Resample converts samples between rates by linear interpolation.
// Good enough for speech; not a polyphase filter.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	step := float64(fromRate) / float64(toRate)
	outLen := int(float64(len(samples)) / step)
	if outLen == 0 {
		return []int16{}
	}

	out := make([]int16, outLen)
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(j)
		a, b := float64(samples[j]), float64(samples[j+1])
		out[i] = int16(a + frac*(b-a))
	}
	return out
}

// MonoToStereo duplicates each sample into both channels, interleaved.
func MonoToStereo(samples []int16) []int16 {
	out := make([]int16, len(samples)*2)
	for i, s := range samples {
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}

// StereoToMono mixes interleaved stereo down to mono by averaging pairs.
func StereoToMono(samples []int16) []int16 {
	out := make([]int16, len(samples)/2)
	for i := range out {
		out[i] = int16((int32(samples[i*2]) + int32(samples[i*2+1])) / 2)
	}
	return out
}

// NormalizeSamples rescales so the loudest sample hits full amplitude.
// Silence comes back unchanged.
func NormalizeSamples(samples []int16) []int16 {
	if len(samples) == 0 {
		return samples
	}

	var peak int16
	for _, s := range samples {
		if s > peak {
			peak = s
		}
		if -s > peak {
			peak = -s
		}
	}
	if peak == 0 {
		return samples
	}

	gain := 32767.0 / float64(peak)
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = int16(float64(s) * gain)
	}
	return out
}

// CalculateRMS returns the signal power as a 0..1 fraction of full scale.
// Useful as a quick level meter when checking mic placement.
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return sum / float64(len(samples)) / (32767 * 32767)
}

// BytesToSamples decodes little-endian PCM16 bytes into samples.
func BytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples
}

// SamplesToBytes encodes samples as little-endian PCM16 bytes.
func SamplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}
	return data
}
