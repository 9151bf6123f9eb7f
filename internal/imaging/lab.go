package imaging

import (
	"fmt"
	"math"

	"github.com/Brownie44l1/colourise-api/internal/failure"
)

// D65 reference white.
const (
	whiteX = 0.95047
	whiteY = 1.0
	whiteZ = 1.08883
)

// CIE constants in their exact rational form so that f and its inverse
// meet at the same threshold.
const (
	labEpsilon = 216.0 / 24389.0
	labKappa   = 24389.0 / 27.0
)

// ToLab converts an RGB image to CIE L*a*b* under D65.
func ToLab(m *Image) (*Lab, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.Channels != 3 {
		return nil, fmt.Errorf("%w: to lab needs 3 channels, got %d", failure.ErrInvalidShape, m.Channels)
	}

	n := m.Width * m.Height
	out := &Lab{
		L: NewPlane(m.Width, m.Height),
		A: NewPlane(m.Width, m.Height),
		B: NewPlane(m.Width, m.Height),
	}
	for i := 0; i < n; i++ {
		l, a, b := rgbToLab(m.Pix[3*i], m.Pix[3*i+1], m.Pix[3*i+2])
		out.L.Pix[i] = l
		out.A.Pix[i] = a
		out.B.Pix[i] = b
	}
	return out, nil
}

// Lightness returns the L* plane of an RGB image.
func Lightness(m *Image) (Plane, error) {
	lab, err := ToLab(m)
	if err != nil {
		return Plane{}, err
	}
	return lab.L, nil
}

// ToRGB converts L*a*b* back to RGB, clamped to [0,1].
func ToRGB(lab *Lab) (*Image, error) {
	out, err := ToRGBUnclamped(lab)
	if err != nil {
		return nil, err
	}
	for i, v := range out.Pix {
		out.Pix[i] = clamp01(v)
	}
	return out, nil
}

// ToRGBUnclamped is the raw inverse transform. Extrapolated chroma can
// leave values outside [0,1].
func ToRGBUnclamped(lab *Lab) (*Image, error) {
	if lab == nil {
		return nil, fmt.Errorf("%w: nil lab image", failure.ErrInvalidShape)
	}
	if !lab.L.valid() || !lab.A.valid() || !lab.B.valid() ||
		lab.A.Width != lab.L.Width || lab.A.Height != lab.L.Height ||
		lab.B.Width != lab.L.Width || lab.B.Height != lab.L.Height {
		return nil, fmt.Errorf("%w: lab planes L %dx%d, a %dx%d, b %dx%d", failure.ErrInvalidShape,
			lab.L.Width, lab.L.Height, lab.A.Width, lab.A.Height, lab.B.Width, lab.B.Height)
	}

	out, err := NewImage(lab.L.Width, lab.L.Height, 3)
	if err != nil {
		return nil, err
	}
	for i := range lab.L.Pix {
		r, g, b := labToRGB(lab.L.Pix[i], lab.A.Pix[i], lab.B.Pix[i])
		out.Pix[3*i] = r
		out.Pix[3*i+1] = g
		out.Pix[3*i+2] = b
	}
	return out, nil
}

func rgbToLab(r, g, b float64) (float64, float64, float64) {
	r, g, b = srgbToLinear(r), srgbToLinear(g), srgbToLinear(b)

	x := 0.4124564*r + 0.3575761*g + 0.1804375*b
	y := 0.2126729*r + 0.7151522*g + 0.0721750*b
	z := 0.0193339*r + 0.1191920*g + 0.9503041*b

	fx := labF(x / whiteX)
	fy := labF(y / whiteY)
	fz := labF(z / whiteZ)

	return 116*fy - 16, 500 * (fx - fy), 200 * (fy - fz)
}

func labToRGB(l, a, b float64) (float64, float64, float64) {
	fy := (l + 16) / 116
	fx := fy + a/500
	fz := fy - b/200
	if fz < 0 {
		fz = 0
	}

	x := labFInv(fx) * whiteX
	y := labFInv(fy) * whiteY
	z := labFInv(fz) * whiteZ

	r := 3.2404542*x - 1.5371385*y - 0.4985314*z
	g := -0.9692660*x + 1.8760108*y + 0.0415560*z
	bl := 0.0556434*x - 0.2040259*y + 1.0572252*z

	return linearToSRGB(r), linearToSRGB(g), linearToSRGB(bl)
}

func labF(t float64) float64 {
	if t > labEpsilon {
		return math.Cbrt(t)
	}
	return (labKappa*t + 16) / 116
}

func labFInv(f float64) float64 {
	if f3 := f * f * f; f3 > labEpsilon {
		return f3
	}
	return (116*f - 16) / labKappa
}

func srgbToLinear(v float64) float64 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

// Negative linear values stay on the linear segment and are clamped later.
func linearToSRGB(v float64) float64 {
	if v <= 0.0031308 {
		return 12.92 * v
	}
	return 1.055*math.Pow(v, 1/2.4) - 0.055
}
