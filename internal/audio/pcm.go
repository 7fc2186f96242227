// Package audio decodes the raw PCM the speech backend returns and drives
// playback on the device speaker.
package audio

import (
	"encoding/base64"

	"github.com/padhai-labs/guru/internal/apperrors"
)

const bytesPerSample = 2 // 16-bit signed little-endian

// Buffer holds de-interleaved normalized samples, one slice per channel.
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

func (b *Buffer) FrameCount() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

func (b *Buffer) DurationMs() int {
	if b.SampleRate == 0 {
		return 0
	}
	return b.FrameCount() * 1000 / b.SampleRate
}

// Decode interprets raw as consecutive little-endian int16 samples,
// channel-interleaved, and normalizes each by /32768 into [-1, 1).
func Decode(raw []byte, sampleRate, channelCount int) (*Buffer, error) {
	if sampleRate <= 0 || channelCount <= 0 {
		return nil, apperrors.Newf(apperrors.KindInvalidAudioData,
			"invalid audio parameters: rate=%d channels=%d", sampleRate, channelCount)
	}
	frameSize := bytesPerSample * channelCount
	if len(raw)%frameSize != 0 {
		return nil, apperrors.Newf(apperrors.KindInvalidAudioData,
			"audio byte length %d is not a multiple of frame size %d", len(raw), frameSize)
	}

	frameCount := len(raw) / frameSize
	channels := make([][]float32, channelCount)
	for c := range channels {
		channels[c] = make([]float32, frameCount)
	}

	for frame := 0; frame < frameCount; frame++ {
		for c := 0; c < channelCount; c++ {
			offset := (frame*channelCount + c) * bytesPerSample
			sample := int16(uint16(raw[offset]) | uint16(raw[offset+1])<<8)
			channels[c][frame] = float32(sample) / 32768
		}
	}

	return &Buffer{SampleRate: sampleRate, Channels: channels}, nil
}

// DecodeBase64 is Decode for the wire form the backend returns.
func DecodeBase64(encoded string, sampleRate, channelCount int) (*Buffer, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInvalidAudioData, "audio payload is not valid base64")
	}
	return Decode(raw, sampleRate, channelCount)
}

// Encode is the inverse of Decode: interleave the channels and quantize
// back to little-endian int16, clamping to the representable range.
func Encode(buf *Buffer) []byte {
	channelCount := len(buf.Channels)
	frameCount := buf.FrameCount()
	out := make([]byte, frameCount*channelCount*bytesPerSample)

	for frame := 0; frame < frameCount; frame++ {
		for c := 0; c < channelCount; c++ {
			sample := clampSample(buf.Channels[c][frame])
			offset := (frame*channelCount + c) * bytesPerSample
			out[offset] = byte(sample)
			out[offset+1] = byte(sample >> 8)
		}
	}
	return out
}

func clampSample(v float32) int16 {
	scaled := v * 32768
	if scaled >= 32767 {
		return 32767
	}
	if scaled <= -32768 {
		return -32768
	}
	return int16(scaled)
}
