// Package imaging holds the float image types used by the colourisation
// pipeline, the sRGB <-> CIE L*a*b* codec and the resampling helpers that move
// images between the source resolution and the model resolution.
package imaging

import (
	"fmt"
	"image"
	"image/color"

	"github.com/Brownie44l1/colourise-api/internal/failure"
)

// Image is an interleaved float image with values in [0,1].
// Channels is 3 for RGB and 1 for a single lightness/gray channel.
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []float64
}

// NewImage allocates a zeroed image.
func NewImage(width, height, channels int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", failure.ErrInvalidShape, width, height)
	}
	if channels != 1 && channels != 3 {
		return nil, fmt.Errorf("%w: %d channels", failure.ErrInvalidShape, channels)
	}
	return &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]float64, width*height*channels),
	}, nil
}

// Validate checks that the dimensions and the pixel buffer agree.
func (m *Image) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil image", failure.ErrInvalidShape)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", failure.ErrInvalidShape, m.Width, m.Height)
	}
	if m.Channels != 1 && m.Channels != 3 {
		return fmt.Errorf("%w: %d channels", failure.ErrInvalidShape, m.Channels)
	}
	if len(m.Pix) != m.Width*m.Height*m.Channels {
		return fmt.Errorf("%w: %d values for %dx%dx%d", failure.ErrInvalidShape,
			len(m.Pix), m.Width, m.Height, m.Channels)
	}
	return nil
}

// At returns channel c of the pixel at (x, y).
func (m *Image) At(x, y, c int) float64 {
	return m.Pix[(y*m.Width+x)*m.Channels+c]
}

// Set stores v in channel c of the pixel at (x, y).
func (m *Image) Set(x, y, c int, v float64) {
	m.Pix[(y*m.Width+x)*m.Channels+c] = v
}

// ToRGB returns m with three channels. A gray image has its channel
// replicated; an RGB image is returned as is.
func (m *Image) ToRGB() (*Image, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.Channels == 3 {
		return m, nil
	}
	out, _ := NewImage(m.Width, m.Height, 3)
	for i, v := range m.Pix {
		out.Pix[3*i] = v
		out.Pix[3*i+1] = v
		out.Pix[3*i+2] = v
	}
	return out, nil
}

// FromImage converts a decoded image to a 3-channel float image.
// Gray sources are expanded to RGB; alpha is dropped.
func FromImage(src image.Image) (*Image, error) {
	b := src.Bounds()
	out, err := NewImage(b.Dx(), b.Dy(), 3)
	if err != nil {
		return nil, err
	}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBA64Model.Convert(src.At(x, y)).(color.NRGBA64)
			out.Pix[i] = float64(c.R) / 0xffff
			out.Pix[i+1] = float64(c.G) / 0xffff
			out.Pix[i+2] = float64(c.B) / 0xffff
			i += 3
		}
	}
	return out, nil
}

// RGBA64 renders m into a 16-bit image. Values are clamped to [0,1].
func (m *Image) RGBA64() (*image.RGBA64, error) {
	rgb, err := m.ToRGB()
	if err != nil {
		return nil, err
	}
	dst := image.NewRGBA64(image.Rect(0, 0, rgb.Width, rgb.Height))
	for y := 0; y < rgb.Height; y++ {
		for x := 0; x < rgb.Width; x++ {
			dst.SetRGBA64(x, y, color.RGBA64{
				R: to16(rgb.At(x, y, 0)),
				G: to16(rgb.At(x, y, 1)),
				B: to16(rgb.At(x, y, 2)),
				A: 0xffff,
			})
		}
	}
	return dst, nil
}

// NRGBA renders m into an 8-bit image, truncating like uint8(v*255).
func (m *Image) NRGBA() (*image.NRGBA, error) {
	rgb, err := m.ToRGB()
	if err != nil {
		return nil, err
	}
	dst := image.NewNRGBA(image.Rect(0, 0, rgb.Width, rgb.Height))
	for y := 0; y < rgb.Height; y++ {
		for x := 0; x < rgb.Width; x++ {
			dst.SetNRGBA(x, y, color.NRGBA{
				R: to8(rgb.At(x, y, 0)),
				G: to8(rgb.At(x, y, 1)),
				B: to8(rgb.At(x, y, 2)),
				A: 0xff,
			})
		}
	}
	return dst, nil
}

func to16(v float64) uint16 {
	return uint16(clamp01(v)*0xffff + 0.5)
}

func to8(v float64) uint8 {
	return uint8(clamp01(v) * 255)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Plane is a single float channel.
type Plane struct {
	Width  int
	Height int
	Pix    []float64
}

// NewPlane allocates a zeroed plane.
func NewPlane(width, height int) Plane {
	return Plane{Width: width, Height: height, Pix: make([]float64, width*height)}
}

func (p Plane) valid() bool {
	return p.Width > 0 && p.Height > 0 && len(p.Pix) == p.Width*p.Height
}

// At returns the value at (x, y).
func (p Plane) At(x, y int) float64 { return p.Pix[y*p.Width+x] }

// Lab is an image split into CIE L*, a* and b* planes of equal size.
type Lab struct {
	L Plane
	A Plane
	B Plane
}

// Chroma holds the a* and b* planes predicted by the model.
type Chroma struct {
	A Plane
	B Plane
}

// Size reports the chroma dimensions once both planes agree.
func (c Chroma) Size() (width, height int, err error) {
	if !c.A.valid() || !c.B.valid() || c.A.Width != c.B.Width || c.A.Height != c.B.Height {
		return 0, 0, fmt.Errorf("%w: chroma planes %dx%d and %dx%d", failure.ErrInvalidShape,
			c.A.Width, c.A.Height, c.B.Width, c.B.Height)
	}
	return c.A.Width, c.A.Height, nil
}

// Combine joins a lightness plane with chroma planes of the same size.
func Combine(l Plane, c Chroma) (*Lab, error) {
	w, h, err := c.Size()
	if err != nil {
		return nil, err
	}
	if !l.valid() || l.Width != w || l.Height != h {
		return nil, fmt.Errorf("%w: lightness %dx%d, chroma %dx%d", failure.ErrInvalidShape,
			l.Width, l.Height, w, h)
	}
	return &Lab{L: l, A: c.A, B: c.B}, nil
}
