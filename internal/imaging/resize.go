package imaging

import (
	"fmt"
	"image/color"

	"github.com/nfnt/resize"

	"github.com/Brownie44l1/colourise-api/internal/failure"
)

// ResizeTo resamples m to width x height with bilinear interpolation.
// A request for the current size returns an unchanged copy.
func ResizeTo(m *Image, height, width int) (*Image, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: resize target %dx%d", failure.ErrInvalidShape, width, height)
	}
	if m.Width == width && m.Height == height {
		return m.clone(), nil
	}

	src, err := m.RGBA64()
	if err != nil {
		return nil, err
	}
	resized := resize.Resize(uint(width), uint(height), src, resize.Bilinear)

	out, _ := NewImage(width, height, m.Channels)
	b := resized.Bounds()
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBA64Model.Convert(resized.At(x, y)).(color.RGBA64)
			if m.Channels == 1 {
				out.Pix[i] = float64(c.R) / 0xffff
				i++
				continue
			}
			out.Pix[i] = float64(c.R) / 0xffff
			out.Pix[i+1] = float64(c.G) / 0xffff
			out.Pix[i+2] = float64(c.B) / 0xffff
			i += 3
		}
	}
	return out, nil
}

// UpsampleTo resamples both chroma planes to width x height on one shared
// sampling grid, so a* and b* stay aligned for any scale ratio.
func UpsampleTo(c Chroma, height, width int) (Chroma, error) {
	srcW, srcH, err := c.Size()
	if err != nil {
		return Chroma{}, err
	}
	if width <= 0 || height <= 0 {
		return Chroma{}, fmt.Errorf("%w: upsample target %dx%d", failure.ErrInvalidShape, width, height)
	}
	if srcW == width && srcH == height {
		return Chroma{A: c.A.clone(), B: c.B.clone()}, nil
	}

	xs := axisWeights(srcW, width)
	ys := axisWeights(srcH, height)
	return Chroma{
		A: resamplePlane(c.A, xs, ys),
		B: resamplePlane(c.B, xs, ys),
	}, nil
}

type axisSample struct {
	lo, hi int
	t      float64
}

// axisWeights maps destination coordinates onto the source with the
// end samples aligned: in = out * (src-1) / (dst-1).
func axisWeights(src, dst int) []axisSample {
	out := make([]axisSample, dst)
	if dst == 1 || src == 1 {
		return out
	}
	scale := float64(src-1) / float64(dst-1)
	for i := range out {
		pos := float64(i) * scale
		lo := int(pos)
		if lo >= src-1 {
			lo = src - 1
			out[i] = axisSample{lo: lo, hi: lo}
			continue
		}
		out[i] = axisSample{lo: lo, hi: lo + 1, t: pos - float64(lo)}
	}
	return out
}

func resamplePlane(src Plane, xs, ys []axisSample) Plane {
	dst := NewPlane(len(xs), len(ys))
	for y, sy := range ys {
		for x, sx := range xs {
			top := lerp(src.At(sx.lo, sy.lo), src.At(sx.hi, sy.lo), sx.t)
			bottom := lerp(src.At(sx.lo, sy.hi), src.At(sx.hi, sy.hi), sx.t)
			dst.Pix[y*dst.Width+x] = lerp(top, bottom, sy.t)
		}
	}
	return dst
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func (m *Image) clone() *Image {
	out := *m
	out.Pix = append([]float64(nil), m.Pix...)
	return &out
}

func (p Plane) clone() Plane {
	p.Pix = append([]float64(nil), p.Pix...)
	return p
}
