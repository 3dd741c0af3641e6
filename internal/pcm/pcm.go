// Package pcm converts base64-encoded 16-bit little-endian PCM payloads to
// normalized float samples and back.
package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"
)

// DefaultSampleRate is the implicit rate of inbound assistant audio (mono).
const DefaultSampleRate = 24000

// DecodeError reports a payload that is not valid base64 PCM16.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode pcm: %s: %v", e.Reason, e.Err)
	}
	return "decode pcm: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode turns base64 PCM16LE into samples in [-1.0, 1.0).
// Returns a *DecodeError and nil samples for malformed input.
func Decode(b64 string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, &DecodeError{Reason: "invalid base64", Err: err}
	}
	if len(raw)%2 != 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("odd byte length %d", len(raw))}
	}

	samples := make([]float32, len(raw)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(raw[2*i:]))
		samples[i] = float32(v) / 32768.0
	}
	return samples, nil
}

// Encode is the inverse of Decode. Samples are clamped to [-1, 1) and
// rounded to the nearest 16-bit step.
func Encode(samples []float32) string {
	return base64.StdEncoding.EncodeToString(ToS16LE(samples))
}

// ToS16LE converts samples to raw PCM16LE bytes.
func ToS16LE(samples []float32) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * 32768.0)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		}
		if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
	}
	return out
}

// Duration is the playback length of n mono samples at rate Hz.
func Duration(n, rate int) time.Duration {
	if rate <= 0 || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}
