package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Brownie44l1/colourise-api/internal/failure"
)

// DefaultJPEGQuality is used when no quality is configured.
const DefaultJPEGQuality = 90

// DefaultMaxPixels bounds the canvas Decode accepts.
const DefaultMaxPixels = 50_000_000

// ErrTooManyPixels is returned for images whose declared canvas exceeds
// the decode limit.
var ErrTooManyPixels = errors.New("image has too many pixels")

// Decode reads a JPEG, PNG, GIF, BMP, TIFF or WebP image of at most
// DefaultMaxPixels pixels.
func Decode(r io.Reader) (*Image, string, error) {
	return DecodeLimit(r, DefaultMaxPixels)
}

// DecodeLimit is Decode with a pixel limit. The header is checked before any
// pixel is decoded, so small files that declare huge canvases are refused
// without allocating them. A maxPixels of zero or less uses DefaultMaxPixels.
func DecodeLimit(r io.Reader, maxPixels int) (*Image, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", failure.InvalidInput("read image", err)
	}
	return DecodeBytesLimit(data, maxPixels)
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(data []byte) (*Image, string, error) {
	return DecodeBytesLimit(data, DefaultMaxPixels)
}

// DecodeBytesLimit is DecodeLimit over an in-memory buffer.
func DecodeBytesLimit(data []byte, maxPixels int) (*Image, string, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", failure.InvalidInput("decode image", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxPixels/cfg.Height {
		return nil, format, failure.InvalidInput(
			fmt.Sprintf("%dx%d exceeds %d pixels", cfg.Width, cfg.Height, maxPixels), ErrTooManyPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, failure.InvalidInput("decode image", err)
	}
	img, err := FromImage(src)
	if err != nil {
		return nil, format, failure.InvalidInput("convert image", err)
	}
	return img, format, nil
}

// DecodeFile opens and decodes the image at path.
func DecodeFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, failure.InvalidInput("open "+path, err)
	}
	defer f.Close()

	img, _, err := Decode(f)
	return img, err
}

// EncodeJPEG writes m as a baseline JPEG.
func EncodeJPEG(w io.Writer, m *Image, quality int) error {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	dst, err := m.NRGBA()
	if err != nil {
		return err
	}
	if err := jpeg.Encode(w, dst, &jpeg.Options{Quality: quality}); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return nil
}

// JPEGBytes encodes m to an in-memory JPEG.
func JPEGBytes(m *Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeJPEG(&buf, m, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
