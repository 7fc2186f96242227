package imagedata

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/padhai-labs/guru/internal/apperrors"
)

// Image is a decoded photo with its sniffed content type.
type Image struct {
	Data     []byte
	MimeType string
}

var (
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
)

// SniffMime detects PNG/JPEG from magic bytes, falling back to JPEG which
// is what phone cameras produce.
func SniffMime(data []byte) string {
	if bytes.HasPrefix(data, pngMagic) {
		return "image/png"
	}
	if bytes.HasPrefix(data, jpegMagic) {
		return "image/jpeg"
	}
	return "image/jpeg"
}

// Decode accepts a data URL ("data:image/png;base64,...") or bare base64
// and returns the raw bytes plus content type. The MIME from the data URL
// header is ignored in favor of sniffing — browsers lie about it.
func Decode(encoded string) (Image, error) {
	payload := encoded
	if strings.HasPrefix(encoded, "data:") {
		idx := strings.Index(encoded, ",")
		if idx < 0 {
			return Image{}, apperrors.New(apperrors.KindValidation, "malformed data URL")
		}
		payload = encoded[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, apperrors.Wrap(err, apperrors.KindValidation, "image is not valid base64")
	}
	if len(data) == 0 {
		return Image{}, apperrors.New(apperrors.KindValidation, "image is empty")
	}

	return Image{Data: data, MimeType: SniffMime(data)}, nil
}

// DecodeAll decodes a batch of encoded photos in parallel, preserving
// order. One bad photo fails the whole batch with its index in the message.
func DecodeAll(ctx context.Context, encoded []string) ([]Image, error) {
	images := make([]Image, len(encoded))

	g, _ := errgroup.WithContext(ctx)
	for i, enc := range encoded {
		i, enc := i, enc
		g.Go(func() error {
			img, err := Decode(enc)
			if err != nil {
				return apperrors.Wrap(err, apperrors.KindValidation, fmt.Sprintf("photo %d could not be decoded", i+1))
			}
			images[i] = img
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// DataURL wraps raw image bytes for direct display in an <img> tag.
func DataURL(data []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = SniffMime(data)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
