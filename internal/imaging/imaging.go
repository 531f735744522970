// Package imaging decodes uploaded images and prepares display thumbnails.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	// Extra decoders so format sniffing can name what it found.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultThumbnailSize bounds both thumbnail dimensions.
const DefaultThumbnailSize = 600

// DefaultMaxPixels caps the decoded width×height of an upload.
const DefaultMaxPixels = 178_956_970

var (
	// ErrInvalidImage is returned when data cannot be decoded as an image.
	ErrInvalidImage = errors.New("invalid image file")
	// ErrTooManyPixels is returned when the declared dimensions exceed the
	// pixel limit. The payload is never decoded.
	ErrTooManyPixels = errors.New("image exceeds pixel limit")
)

// AllowedExtensions lists the upload extensions the UI accepts.
var AllowedExtensions = []string{".png", ".jpg", ".jpeg"}

// HasAllowedExtension reports whether filename ends with an accepted extension.
func HasAllowedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Decode decodes data at full resolution. Unknown formats, corrupt and empty
// payloads wrap ErrInvalidImage. When maxPixels is positive the header is
// checked first and larger images fail with ErrTooManyPixels.
func Decode(data []byte, maxPixels int) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty file", ErrInvalidImage)
	}
	if maxPixels > 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > int64(maxPixels) {
			return nil, "", fmt.Errorf("%w: %dx%d is %d pixels, limit %d",
				ErrTooManyPixels, cfg.Width, cfg.Height, pixels, maxPixels)
		}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, format, nil
}

// Thumbnail scales img to fit within a maxW×maxH box, preserving aspect ratio.
// Images already inside the box are returned unchanged.
func Thumbnail(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH || w == 0 || h == 0 {
		return img
	}

	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := max(1, int(float64(w)*scale+0.5))
	nh := max(1, int(float64(h)*scale+0.5))

	dst := image.NewRGBA(image.Rect(0, 0, min(nw, maxW), min(nh, maxH)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// BaseName strips directories and the extension from filename.
func BaseName(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
