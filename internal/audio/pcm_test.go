package audio

import (
	"math"
	"testing"

	"github.com/padhai-labs/guru/internal/apperrors"
)

func TestDecodeOddLength(t *testing.T) {
	_, err := Decode([]byte{0x01, 0x02, 0x03}, 24000, 1)
	if !apperrors.Is(err, apperrors.KindInvalidAudioData) {
		t.Fatalf("Decode(odd bytes) = %v, want invalid_audio_data", err)
	}
}

func TestDecodeLengthNotMultipleOfFrame(t *testing.T) {
	// 6 bytes = 3 samples = 1.5 stereo frames.
	_, err := Decode(make([]byte, 6), 24000, 2)
	if !apperrors.Is(err, apperrors.KindInvalidAudioData) {
		t.Fatalf("Decode() = %v, want invalid_audio_data", err)
	}
}

func TestDecodeNormalization(t *testing.T) {
	// Samples: -32768, 0, 32767 little-endian.
	raw := []byte{0x00, 0x80, 0x00, 0x00, 0xFF, 0x7F}
	buf, err := Decode(raw, 24000, 1)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if buf.FrameCount() != 3 {
		t.Fatalf("FrameCount() = %d, want 3", buf.FrameCount())
	}

	got := buf.Channels[0]
	want := []float32{-1.0, 0.0, 32767.0 / 32768.0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDecodeDeterministic(t *testing.T) {
	raw := []byte{0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC, 0xDE, 0xF0}

	first, err := Decode(raw, 24000, 1)
	if err != nil {
		t.Fatalf("first Decode() error: %v", err)
	}
	second, err := Decode(raw, 24000, 1)
	if err != nil {
		t.Fatalf("second Decode() error: %v", err)
	}

	for i := range first.Channels[0] {
		if first.Channels[0][i] != second.Channels[0][i] {
			t.Fatalf("sample %d differs between decodes", i)
		}
	}
}

func TestDecodeDeinterleavesStereo(t *testing.T) {
	// Frames: (L=1, R=2), (L=3, R=4) as int16 LE.
	raw := []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00, 0x04, 0x00}
	buf, err := Decode(raw, 48000, 2)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if buf.FrameCount() != 2 {
		t.Fatalf("FrameCount() = %d, want 2", buf.FrameCount())
	}

	left, right := buf.Channels[0], buf.Channels[1]
	if left[0] != 1.0/32768 || left[1] != 3.0/32768 {
		t.Errorf("left channel = %v", left)
	}
	if right[0] != 2.0/32768 || right[1] != 4.0/32768 {
		t.Errorf("right channel = %v", right)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	// A 24kHz mono sine sweep; round trip must hold within one
	// quantization step.
	const frames = 2400
	src := &Buffer{SampleRate: 24000, Channels: [][]float32{make([]float32, frames)}}
	for i := 0; i < frames; i++ {
		src.Channels[0][i] = float32(0.8 * math.Sin(2*math.Pi*440*float64(i)/24000))
	}

	decoded, err := Decode(Encode(src), 24000, 1)
	if err != nil {
		t.Fatalf("Decode(Encode()) error: %v", err)
	}

	const tolerance = 1.0 / 32768
	for i := 0; i < frames; i++ {
		diff := float64(decoded.Channels[0][i] - src.Channels[0][i])
		if math.Abs(diff) > tolerance {
			t.Fatalf("sample %d off by %v, tolerance %v", i, diff, tolerance)
		}
	}
}

func TestEncodeClampsOutOfRange(t *testing.T) {
	src := &Buffer{SampleRate: 24000, Channels: [][]float32{{1.5, -1.5}}}
	raw := Encode(src)

	buf, err := Decode(raw, 24000, 1)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if buf.Channels[0][0] != 32767.0/32768 {
		t.Errorf("clamped high sample = %v", buf.Channels[0][0])
	}
	if buf.Channels[0][1] != -1.0 {
		t.Errorf("clamped low sample = %v", buf.Channels[0][1])
	}
}

func TestDurationMs(t *testing.T) {
	buf := &Buffer{SampleRate: 24000, Channels: [][]float32{make([]float32, 12000)}}
	if got := buf.DurationMs(); got != 500 {
		t.Errorf("DurationMs() = %d, want 500", got)
	}
}
