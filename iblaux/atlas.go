package iblaux

import (
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/chewxy/math32"
	"github.com/disintegration/imaging"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/math/ms1"
	"github.com/soypat/glpbr"
	"github.com/soypat/glpbr/gleval"
)

// AtlasConfig configures [BakeAtlas].
type AtlasConfig struct {
	// Workers is the amount of goroutines baking tiles. If zero runtime.NumCPU is used.
	Workers int
}

type atlasTile struct {
	face, mip int
}

// BakeAtlas renders env into a cube atlas with the layout read by
// [glpbr.Builder.TextureCubeUV]. Every face of every mip level in
// [glpbr.CubeUVMinMip, glpbr.CubeUVMaxMip] is filled with env prefiltered at
// the roughness [glpbr.MipToRoughnessf] assigns to the level. Texels are sRGB encoded.
func BakeAtlas(env EnvFunc, cfg AtlasConfig) (*image.NRGBA, error) {
	if env == nil {
		return nil, errors.New("nil environment")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	watch := stopwatch()
	img := image.NewNRGBA(image.Rect(0, 0, glpbr.CubeUVAtlasSize, glpbr.CubeUVAtlasSize))
	tiles := make(chan atlasTile)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tile := range tiles {
				bakeTile(img, env, tile)
			}
		}()
	}
	ntiles := 0
	for mip := glpbr.CubeUVMinMip; mip <= glpbr.CubeUVMaxMip; mip++ {
		for face := range 6 {
			tiles <- atlasTile{face: face, mip: mip}
			ntiles++
		}
	}
	close(tiles)
	wg.Wait()
	glpbr.Logger().Info("baked atlas", "tiles", ntiles, "workers", workers, "elapsed", watch())
	return img, nil
}

func bakeTile(dst *image.NRGBA, env EnvFunc, tile atlasTile) {
	x0, y0, size := glpbr.CubeUVTile(tile.face, tile.mip)
	roughness := glpbr.MipToRoughnessf(float32(tile.mip))
	inv := 1 / float32(size-1)
	for j := range size {
		for i := range size {
			dir := glpbr.CubeDirf(tile.face, ms2.Vec{X: float32(i) * inv, Y: float32(j) * inv})
			dst.SetNRGBA(x0+i, y0+j, toNRGBA(env(dir, roughness), 255))
		}
	}
}

// Equirect is an environment read from an equirectangular (latitude-longitude)
// image. Blurred copies are kept for each atlas mip level.
type Equirect struct {
	levels []equirectLevel
}

type equirectLevel struct {
	roughness float32
	sampler   *gleval.ImageSampler
}

// LoadEquirect opens the equirectangular image at path. See [NewEquirect].
func LoadEquirect(path string, width int) (*Equirect, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loading environment image: %w", err)
	}
	return NewEquirect(img, width)
}

// NewEquirect resamples the sRGB encoded equirectangular image img to width
// by width/2 texels and blurs a copy for every atlas mip level.
func NewEquirect(img image.Image, width int) (*Equirect, error) {
	if width < 4 {
		return nil, errors.New("equirect width too small")
	} else if img.Bounds().Empty() {
		return nil, errors.New("empty equirect image")
	}
	base := imaging.Resize(img, width, width/2, imaging.Lanczos)
	var e Equirect
	for mip := glpbr.CubeUVMinMip; mip <= glpbr.CubeUVMaxMip; mip++ {
		r := glpbr.MipToRoughnessf(float32(mip))
		sigma := float64(r*r) * float64(width) / 16
		level := base
		if sigma >= 0.5 {
			level = imaging.Blur(base, sigma)
		}
		e.levels = append(e.levels, equirectLevel{
			roughness: r,
			sampler:   gleval.NewImageSampler(level, gleval.FilterLinear),
		})
	}
	return &e, nil
}

// Radiance implements [EnvFunc] by sampling the level with closest roughness.
func (e *Equirect) Radiance(dir ms3.Vec, roughness float32) [3]float32 {
	n := ms3.Norm(dir)
	if n == 0 || len(e.levels) == 0 {
		return [3]float32{}
	}
	best := 0
	for i := range e.levels {
		if math32.Abs(e.levels[i].roughness-roughness) < math32.Abs(e.levels[best].roughness-roughness) {
			best = i
		}
	}
	u := 0.5 + math32.Atan2(dir.X, -dir.Z)/(2*math32.Pi)
	v := math32.Acos(ms1.Clamp(dir.Y/n, -1, 1)) / math32.Pi
	c := e.levels[best].sampler.Sample(u, v)
	return [3]float32{glpbr.SRGBToLinearf(c[0]), glpbr.SRGBToLinearf(c[1]), glpbr.SRGBToLinearf(c[2])}
}
