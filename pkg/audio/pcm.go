package audio

// PCM conversion helpers shared by the source adapters. All PCM is signed
// 16-bit; byte forms are little-endian.

// BytesToInt16s converts little-endian int16 PCM bytes to samples. A trailing
// odd byte is dropped.
func BytesToInt16s(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return out
}

// Int16sToBytes converts samples to little-endian int16 PCM bytes.
func Int16sToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// StereoToMono downmixes interleaved stereo samples by averaging each L/R
// pair. Uses int32 arithmetic so the sum cannot overflow; the average of two
// int16 values is always in range.
func StereoToMono(samples []int16) []int16 {
	frames := len(samples) / 2
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		out[i] = int16((int32(samples[i*2]) + int32(samples[i*2+1])) / 2)
	}
	return out
}

// ResampleMono linearly resamples mono PCM from fromRate to toRate. When the
// rates match, the input is returned unchanged. Linear interpolation is
// adequate for speech headed into a 16 kHz recognizer; adapters that need
// audiophile resampling should do it upstream.
func ResampleMono(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(samples) == 0 || fromRate <= 0 || toRate <= 0 {
		return samples
	}
	outLen := int(int64(len(samples)) * int64(toRate) / int64(fromRate))
	if outLen == 0 {
		return nil
	}
	out := make([]int16, outLen)
	ratio := float64(fromRate) / float64(toRate)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		a := float64(samples[idx])
		b := float64(samples[idx+1])
		out[i] = int16(a + (b-a)*frac)
	}
	return out
}

// ToMono16k converts mono or interleaved stereo PCM at the given rate to
// 16 kHz mono: downmix first (cheaper to resample one channel), then resample.
// Only channels == 2 is downmixed; any other count is treated as mono.
func ToMono16k(samples []int16, sampleRate, channels int) []int16 {
	if channels == 2 {
		samples = StereoToMono(samples)
	}
	return ResampleMono(samples, sampleRate, 16000)
}
