package imagedata

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/padhai-labs/guru/internal/apperrors"
)

var tinyPNG = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}

func TestDecodeDataURL(t *testing.T) {
	enc := "data:image/png;base64," + base64.StdEncoding.EncodeToString(tinyPNG)

	img, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if img.MimeType != "image/png" {
		t.Errorf("MimeType = %q, want image/png", img.MimeType)
	}
	if len(img.Data) != len(tinyPNG) {
		t.Errorf("Data length = %d, want %d", len(img.Data), len(tinyPNG))
	}
}

func TestDecodeBareBase64(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01}
	img, err := Decode(base64.StdEncoding.EncodeToString(jpeg))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if img.MimeType != "image/jpeg" {
		t.Errorf("MimeType = %q, want image/jpeg", img.MimeType)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"not-base64!!", "data:image/png;base64", ""} {
		if _, err := Decode(bad); !apperrors.Is(err, apperrors.KindValidation) {
			t.Errorf("Decode(%q) = %v, want validation error", bad, err)
		}
	}
}

func TestDecodeAllPreservesOrder(t *testing.T) {
	first := "data:image/png;base64," + base64.StdEncoding.EncodeToString(tinyPNG)
	second := base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8, 0xFF, 0x01})

	images, err := DecodeAll(context.Background(), []string{first, second})
	if err != nil {
		t.Fatalf("DecodeAll() error: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("got %d images, want 2", len(images))
	}
	if images[0].MimeType != "image/png" || images[1].MimeType != "image/jpeg" {
		t.Errorf("order not preserved: %q, %q", images[0].MimeType, images[1].MimeType)
	}
}

func TestDecodeAllFailsOnBadPhoto(t *testing.T) {
	good := base64.StdEncoding.EncodeToString(tinyPNG)
	_, err := DecodeAll(context.Background(), []string{good, "@@@"})
	if err == nil {
		t.Fatal("DecodeAll() = nil, want error")
	}
	if !strings.Contains(err.Error(), "photo 2") {
		t.Errorf("error %q does not name the bad photo", err)
	}
}

func TestDataURLRoundTrip(t *testing.T) {
	url := DataURL(tinyPNG, "")
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Fatalf("DataURL prefix wrong: %q", url[:30])
	}
	img, err := Decode(url)
	if err != nil {
		t.Fatalf("Decode(DataURL()) error: %v", err)
	}
	if string(img.Data) != string(tinyPNG) {
		t.Error("round trip did not reproduce bytes")
	}
}
