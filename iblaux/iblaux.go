// Package iblaux provides tooling around the glpbr shader: environment atlas
// baking, CPU preview renders, scene files and an interactive viewer.
package iblaux

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"time"

	math "github.com/chewxy/math32"
	"github.com/disintegration/imaging"
	"github.com/golang/freetype"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glpbr"
	"github.com/soypat/glpbr/glbuild"
	"github.com/soypat/glpbr/gleval"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// RenderConfig configures [RenderPreview].
type RenderConfig struct {
	// Output receives the PNG encoded preview. May be nil.
	Output io.Writer
	// Atlas is the sRGB encoded environment atlas, see [BakeAtlas].
	Atlas image.Image
	// BaseColor is the sRGB base color of all spheres.
	BaseColor [4]float32
	// Emissive is the sRGB emissive color of all spheres.
	Emissive [3]float32
	// Rows and Cols set the sphere grid. Metalness grows by row and roughness by column.
	Rows, Cols int
	// CellSize is the side length in pixels of a grid cell.
	CellSize int
	// Labels draws the roughness and metalness of each sphere.
	Labels bool
	// Background is the color of pixels not covered by a sphere. Transparent if nil.
	Background color.Color
	// Workers is the amount of goroutines evaluating a cell. If zero runtime.NumCPU is used.
	Workers int
}

// sphereDistance is the view space depth of sphere centers.
const sphereDistance = 3

// RenderPreview renders a grid of unit spheres lit by cfg.Atlas by evaluating
// the IBL shader on the CPU. The rendered image is returned and, if cfg.Output
// is set, written to it as a PNG.
func RenderPreview(cfg RenderConfig) (*image.NRGBA, error) {
	if cfg.Atlas == nil {
		return nil, errors.New("RenderPreview requires an environment atlas")
	} else if cfg.Rows <= 0 || cfg.Cols <= 0 || cfg.CellSize < 2 {
		return nil, fmt.Errorf("invalid preview grid %dx%d with cell size %d", cfg.Rows, cfg.Cols, cfg.CellSize)
	}
	watch := stopwatch()
	names := glpbr.DefaultTextureNames
	var reg Registry
	mat := NewMaterial("preview", &reg, names)
	bld := glpbr.Builder{NoContractPanic: true}
	inputs, err := mat.Inputs(&bld, reg.Texture(names.Env))
	if err != nil {
		return nil, err
	}
	shader, err := bld.Build(inputs)
	if err != nil {
		return nil, fmt.Errorf("building shader: %w", err)
	}
	reg.SetSampler(names.Env, gleval.NewImageSampler(cfg.Atlas, gleval.FilterLinear))
	reg.SetSampler(names.BaseColor, gleval.ConstSampler(cfg.BaseColor))
	reg.SetSampler(names.Normal, gleval.ConstSampler{0.5, 0.5, 1, 1})
	// Rebound per cell by bindPreviewCell.
	reg.SetSampler(names.ORM, gleval.ConstSampler{1, 0.5, 0, 1})
	reg.SetSampler(names.Emissive, gleval.ConstSampler{cfg.Emissive[0], cfg.Emissive[1], cfg.Emissive[2], 1})
	glpbr.Logger().Info("built preview shader", "nodes", glbuild.CountNodes(shader.Color), "elapsed", watch())

	watch = stopwatch()
	img := image.NewNRGBA(image.Rect(0, 0, cfg.Cols*cfg.CellSize, cfg.Rows*cfg.CellSize))
	if cfg.Background != nil {
		draw.Draw(img, img.Bounds(), image.NewUniform(cfg.Background), image.Point{}, draw.Src)
	}
	// All cells see the same sphere so share fragments.
	frags, pixels := sphereFragments(cfg.CellSize)
	results := make([]gleval.Value, len(frags))
	var batcher gleval.Batcher
	for row := range cfg.Rows {
		for col := range cfg.Cols {
			// Each cell binds its own ORM values.
			var b gleval.Bindings
			err = bindPreviewCell(&b, &reg, names, cfg.roughness(col), cfg.metalness(row))
			if err != nil {
				return nil, err
			}
			err = batcher.Configure(&b, gleval.BatcherConfig{Workers: cfg.Workers})
			if err != nil {
				return nil, err
			}
			err = batcher.Evaluate(shader.Color, frags, results)
			if err != nil {
				return nil, fmt.Errorf("cell %d,%d: %w", row, col, err)
			}
			x0, y0 := col*cfg.CellSize, row*cfg.CellSize
			for i, px := range pixels {
				img.SetNRGBA(x0+px.X, y0+px.Y, color8(results[i].Vec4()))
			}
		}
	}
	evals := batcher.Evaluations()
	glpbr.Logger().Info("rendered preview", "spheres", cfg.Rows*cfg.Cols, "evaluations", evals,
		"cachedPercent", percentUint64(batcher.CacheHits(), evals), "elapsed", watch())

	if cfg.Labels {
		err = drawLabels(img, cfg)
		if err != nil {
			return nil, err
		}
	}
	if cfg.Output != nil {
		err = imaging.Encode(cfg.Output, img, imaging.PNG)
		if err != nil {
			return nil, fmt.Errorf("encoding preview: %w", err)
		}
	}
	return img, nil
}

func (cfg RenderConfig) roughness(col int) float32 {
	if cfg.Cols == 1 {
		return 0.5
	}
	return float32(col) / float32(cfg.Cols-1)
}

func (cfg RenderConfig) metalness(row int) float32 {
	if cfg.Rows == 1 {
		return 0
	}
	return float32(row) / float32(cfg.Rows-1)
}

func bindPreviewCell(b *gleval.Bindings, reg *Registry, names glpbr.TextureNames, roughness, metalness float32) error {
	err := reg.Apply(b)
	if err != nil {
		return err
	}
	b.SetTexture(names.ORM, gleval.ConstSampler{1, roughness, metalness, 1})
	modelView := gleval.Identity4()
	modelView[14] = -sphereDistance
	for _, tf := range []struct {
		id glbuild.Builtin
		m  []float32
	}{
		{glbuild.BuiltinModelView, modelView},
		{glbuild.BuiltinNormal, gleval.Identity3()},
		{glbuild.BuiltinView, gleval.Identity4()},
		{glbuild.BuiltinProjection, gleval.Identity4()},
	} {
		err = b.SetTransform(tf.id, tf.m)
		if err != nil {
			return err
		}
	}
	return nil
}

// sphereFragments returns the fragments of the unit sphere seen orthographically
// in a size by size cell and the cell pixel each fragment covers.
func sphereFragments(size int) (frags []gleval.Fragment, pixels []image.Point) {
	const margin = 1.1
	scale := 2 * margin / float32(size)
	ndc := func(px, py int) (float32, float32) {
		return (float32(px)+0.5)*scale - margin, margin - (float32(py)+0.5)*scale
	}
	for py := range size {
		for px := range size {
			x, y := ndc(px, py)
			if x*x+y*y <= 1 {
				pixels = append(pixels, image.Point{X: px, Y: py})
			}
		}
	}
	frags = make([]gleval.Fragment, len(pixels))
	// Neighbours right and up for screen space derivatives.
	neighbours := make([]gleval.Fragment, 2*len(pixels))
	for i, p := range pixels {
		x, y := ndc(p.X, p.Y)
		dx, dy := &neighbours[2*i], &neighbours[2*i+1]
		spherePoint(&frags[i], x, y)
		spherePoint(dx, x+scale, y)
		spherePoint(dy, x, y+scale)
		frags[i].DX, frags[i].DY = dx, dy
	}
	return frags, pixels
}

// spherePoint sets the attributes of the unit sphere point visible at (x,y).
// Points off the sphere are clamped to its silhouette.
func spherePoint(f *gleval.Fragment, x, y float32) {
	r2 := x*x + y*y
	if r2 > 1 {
		inv := 1 / math.Sqrt(r2)
		x, y, r2 = x*inv, y*inv, 1
	}
	n := ms3.Vec{X: x, Y: y, Z: math.Sqrt(1 - r2)}
	t := ms3.Vec{X: n.Z, Y: 0, Z: -n.X}
	if tn := ms3.Norm(t); tn > 1e-6 {
		t = ms3.Scale(1/tn, t)
	} else {
		t = ms3.Vec{X: 1}
	}
	u := 0.5 + math.Atan2(n.X, n.Z)/(2*math.Pi)
	v := math.Acos(n.Y) / math.Pi
	f.SetAttribute(glbuild.AttrPosition, n.X, n.Y, n.Z)
	f.SetAttribute(glbuild.AttrNormal, n.X, n.Y, n.Z)
	f.SetAttribute(glbuild.AttrTangent, t.X, t.Y, t.Z, 1)
	f.SetAttribute(glbuild.AttrTexCoords, u, v)
	f.DX, f.DY = nil, nil
}

func color8(c [4]float32) color.NRGBA {
	return color.NRGBA{R: encode8(c[0]), G: encode8(c[1]), B: encode8(c[2]), A: encode8(c[3])}
}

func drawLabels(dst draw.Image, cfg RenderConfig) error {
	ttf, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return fmt.Errorf("parsing label font: %w", err)
	}
	fontSize := max(8, float64(cfg.CellSize)/12)
	ctx := freetype.NewContext()
	ctx.SetDPI(72)
	ctx.SetFont(ttf)
	ctx.SetFontSize(fontSize)
	ctx.SetClip(dst.Bounds())
	ctx.SetDst(dst)
	ctx.SetSrc(image.White)
	ctx.SetHinting(font.HintingFull)
	for row := range cfg.Rows {
		for col := range cfg.Cols {
			label := fmt.Sprintf("r=%.2f m=%.2f", cfg.roughness(col), cfg.metalness(row))
			pt := freetype.Pt(col*cfg.CellSize+2, (row+1)*cfg.CellSize-2)
			_, err = ctx.DrawString(label, pt)
			if err != nil {
				return fmt.Errorf("drawing label: %w", err)
			}
		}
	}
	return nil
}

func stopwatch() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}

func percentUint64(num, denom uint64) float32 {
	if denom == 0 {
		return 0
	}
	return math.Trunc(10000*float32(num)/float32(denom)) / 100
}
