// Package audio holds the pure codec helpers shared by the voice bridge:
// base64 transport encoding, PCM16 sample conversion and the nearest-neighbor
// downsampler used to feed the 16 kHz upstream capture rate.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// EncodeBase64 encodes raw bytes for websocket transport.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes transport payloads back to raw bytes.
func DecodeBase64(data string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("base64 decode failed: %w", err)
	}
	return decoded, nil
}

// FloatsToPCM16 converts float32 samples in [-1, 1] to little-endian 16-bit
// linear PCM, clamping out-of-range values.
func FloatsToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s*math.MaxInt16)))
	}
	return out
}

// PCM16ToFloats converts little-endian 16-bit linear PCM to float32 samples.
// A trailing odd byte is dropped.
func PCM16ToFloats(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		out[i] = float32(v) / math.MaxInt16
	}
	return out
}

// Downsample reduces the sample rate by nearest-neighbor decimation. Equal
// rates return the input unchanged. Output length is round(len*to/from).
func Downsample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	length := int(math.Round(float64(len(samples)) / ratio))
	out := make([]float32, length)
	for i := 0; i < length; i++ {
		idx := int(math.Round(float64(i) * ratio))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		out[i] = samples[idx]
	}
	return out
}

// PCM16Duration reports the playback duration in seconds of a PCM16 buffer at
// the given sample rate.
func PCM16Duration(data []byte, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(len(data)/2) / float64(sampleRate)
}

// SplitDataURI splits "data:<mime>;base64,<payload>" into its mime type and
// raw base64 payload. Plain base64 input is returned as-is with an empty mime.
func SplitDataURI(uri string) (mimeType, payload string) {
	if !strings.HasPrefix(uri, "data:") {
		return "", uri
	}
	rest := strings.TrimPrefix(uri, "data:")
	meta, data, ok := strings.Cut(rest, ",")
	if !ok {
		return "", uri
	}
	mimeType = strings.TrimSuffix(meta, ";base64")
	return mimeType, data
}

// DataURI assembles a base64 data URI for the given mime type.
func DataURI(mimeType, payload string) string {
	return "data:" + mimeType + ";base64," + payload
}
