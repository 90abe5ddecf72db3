package iblaux

import (
	"image/color"

	math "github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/math/ms1"
	"github.com/soypat/glpbr"
)

// HSV interpolation logic taken from Esme Lamb's (@dedelala)
// color manipulation work presented at Gophercon AU 2024.
// https://github.com/dedelala/disco/tree/main/color

// EnvFunc returns the linear radiance arriving from direction dir (not
// necessarily normalized) prefiltered for the given perceptual roughness.
type EnvFunc func(dir ms3.Vec, roughness float32) [3]float32

// FaceColors returns an environment where each cube face has a single flat
// linear color, indexed as returned by [glpbr.CubeFacef]. Roughness is ignored.
func FaceColors(faces [6][3]float32) EnvFunc {
	return func(dir ms3.Vec, _ float32) [3]float32 {
		return faces[glpbr.CubeFacef(dir)]
	}
}

// DefaultFaceColors has a distinct primary or secondary color on each face.
var DefaultFaceColors = [6][3]float32{
	{1, 0, 0}, // +X
	{0, 1, 0}, // +Y
	{0, 0, 1}, // +Z
	{0, 1, 1}, // -X
	{1, 0, 1}, // -Y
	{1, 1, 0}, // -Z
}

// SkyGradient returns an environment blending ground, horizon and zenith colors
// by elevation. Colors are interpolated in HSV space and the horizon
// transition widens as roughness grows.
func SkyGradient(ground, horizon, zenith color.Color) EnvFunc {
	gh, gs, gv := colorToHSV(ground)
	hh, hs, hv := colorToHSV(horizon)
	zh, zs, zv := colorToHSV(zenith)
	return func(dir ms3.Vec, roughness float32) [3]float32 {
		n := ms3.Norm(dir)
		if n == 0 {
			return [3]float32{}
		}
		elev := dir.Y / n
		width := 0.02 + roughness*roughness
		var h, s, v float32
		if elev < 0 {
			t := ms1.SmoothStep(0, width, -elev)
			h, s, v = interpHSV(hh, hs, hv, gh, gs, gv, t)
		} else {
			t := ms1.SmoothStep(0, 0.5+width, elev)
			h, s, v = interpHSV(hh, hs, hv, zh, zs, zv, t)
		}
		r, g, b := hsvToRGB(h, s, v)
		return [3]float32{glpbr.SRGBToLinearf(r), glpbr.SRGBToLinearf(g), glpbr.SRGBToLinearf(b)}
	}
}

// DefaultSky is a daylight [SkyGradient].
func DefaultSky() EnvFunc {
	return SkyGradient(
		color.RGBA{R: 0x4a, G: 0x3f, B: 0x35, A: 0xff},
		color.RGBA{R: 0xe8, G: 0xe4, B: 0xd8, A: 0xff},
		color.RGBA{R: 0x3d, G: 0x7c, B: 0xd6, A: 0xff},
	)
}

func interpHSV(h0, s0, v0, h1, s1, v1, t float32) (h, s, v float32) {
	switch {
	case h1-h0 > 0.5:
		h0 += 1.0
	case h1-h0 < -0.5:
		h1 += 1.0
	}
	h = ms1.Interp(h0, h1, t)
	if h > 1 {
		h -= 1
	}
	s = ms1.Interp(s0, s1, t)
	v = ms1.Interp(v0, v1, t)
	return h, s, v
}

func colorToHSV(c color.Color) (h, s, v float32) {
	r0, g0, b0, _ := c.RGBA()
	return rgbToHSV(float32(r0>>8)/math.MaxUint8, float32(g0>>8)/math.MaxUint8, float32(b0>>8)/math.MaxUint8)
}

// toNRGBA encodes linear color c with the sRGB transfer function.
func toNRGBA(c [3]float32, alpha uint8) color.NRGBA {
	return color.NRGBA{
		R: encode8(glpbr.LinearToSRGBf(c[0])),
		G: encode8(glpbr.LinearToSRGBf(c[1])),
		B: encode8(glpbr.LinearToSRGBf(c[2])),
		A: alpha,
	}
}

func encode8(v float32) uint8 {
	return uint8(ms1.Clamp(v, 0, 1)*math.MaxUint8 + 0.5)
}

// hsvToRGB converts hue, saturation and brightness values on the range of 0.0
// to 1.0 to RGB floating point values on the range of 0.0 to 1.0
func hsvToRGB(h, s, v float32) (r, g, b float32) {
	var (
		c = s * v
		x = c * (1 - math.Abs(math.Mod(h*6, 2)-1))
		m = v - c
	)

	switch {
	case h >= 0 && h <= 1.0/6:
		r, g, b = c, x, 0
	case h > 1.0/6 && h <= 2.0/6:
		r, g, b = x, c, 0
	case h > 2.0/6 && h <= 3.0/6:
		r, g, b = 0, c, x
	case h > 3.0/6 && h <= 4.0/6:
		r, g, b = 0, x, c
	case h > 4.0/6 && h <= 5.0/6:
		r, g, b = x, 0, c
	case h > 5.0/6 && h <= 1.0:
		r, g, b = c, 0, x
	}

	r, g, b = r+m, g+m, b+m
	return r, g, b
}

// rgbToHSV converts red, green, and blue floating point values on the range
// 0.0 to 1.0 to hue, saturation and brightness values on the range 0.0 to 1.0
func rgbToHSV(r, g, b float32) (h, s, v float32) {
	var (
		xmax = max(r, g, b)
		xmin = min(r, g, b)
		c    = xmax - xmin
	)
	v = xmax
	switch {
	case c == 0:
		h = 0
	case v == r:
		h = (g - b) / (c * 6)
	case v == g:
		h = 1.0/3 + (b-r)/(c*6)
	case v == b:
		h = 2.0/3 + (r-g)/(c*6)
	}
	if h < 0 {
		h += 1
	}
	if xmax > 0 {
		s = c / xmax
	}
	return
}
