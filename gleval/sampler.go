package gleval

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"
)

// Sampler returns the RGBA value of a texture at normalized texture coordinates.
// The first image row is sampled at v=0, matching a texture upload of the image's rows in order.
type Sampler interface {
	Sample(u, v float32) [4]float32
}

// Filter selects the texel interpolation of an [ImageSampler].
type Filter uint8

const (
	FilterNearest Filter = iota
	FilterLinear
)

// ImageSampler samples an image with clamp-to-edge wrapping. Channel values are
// returned non-premultiplied in the range [0,1] without any color space conversion.
type ImageSampler struct {
	texels []float32
	w, h   int
	filter Filter
}

var _ Sampler = (*ImageSampler)(nil)

// NewImageSampler decodes img into a float texel buffer for sampling.
func NewImageSampler(img image.Image, filter Filter) *ImageSampler {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	texels := make([]float32, 0, 4*w*h)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			texels = appendTexel(texels, img, x, y)
		}
	}
	return &ImageSampler{texels: texels, w: w, h: h, filter: filter}
}

func appendTexel(dst []float32, img image.Image, x, y int) []float32 {
	const inv8, inv16 = 1. / 0xff, 1. / 0xffff
	if nrgba, ok := img.(*image.NRGBA); ok {
		c := nrgba.NRGBAAt(x, y)
		return append(dst, float32(c.R)*inv8, float32(c.G)*inv8, float32(c.B)*inv8, float32(c.A)*inv8)
	}
	c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
	return append(dst, float32(c.R)*inv16, float32(c.G)*inv16, float32(c.B)*inv16, float32(c.A)*inv16)
}

// Size returns the width and height of the sampled image in texels.
func (s *ImageSampler) Size() (w, h int) { return s.w, s.h }

// Sample implements [Sampler].
func (s *ImageSampler) Sample(u, v float32) [4]float32 {
	if s.w == 0 || s.h == 0 {
		return [4]float32{}
	}
	if s.filter == FilterNearest {
		return s.texel(int(math32.Floor(u*float32(s.w))), int(math32.Floor(v*float32(s.h))))
	}
	x := u*float32(s.w) - 0.5
	y := v*float32(s.h) - 0.5
	x0, y0 := math32.Floor(x), math32.Floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int(x0), int(y0)
	t00 := s.texel(ix, iy)
	t10 := s.texel(ix+1, iy)
	t01 := s.texel(ix, iy+1)
	t11 := s.texel(ix+1, iy+1)
	var out [4]float32
	for i := range out {
		top := t00[i]*(1-fx) + t10[i]*fx
		bot := t01[i]*(1-fx) + t11[i]*fx
		out[i] = top*(1-fy) + bot*fy
	}
	return out
}

func (s *ImageSampler) texel(x, y int) [4]float32 {
	x = max(0, min(x, s.w-1))
	y = max(0, min(y, s.h-1))
	off := 4 * (y*s.w + x)
	return [4]float32(s.texels[off : off+4])
}

// ConstSampler samples the same value at every coordinate.
type ConstSampler [4]float32

// Sample implements [Sampler].
func (c ConstSampler) Sample(u, v float32) [4]float32 { return c }
