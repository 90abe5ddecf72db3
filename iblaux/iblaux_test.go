package iblaux

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glpbr"
	"github.com/soypat/glpbr/glbuild"
	"github.com/soypat/glpbr/gleval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	faceAtlasOnce sync.Once
	faceAtlas     *image.NRGBA
	faceAtlasErr  error
)

func bakedFaceAtlas(t *testing.T) *image.NRGBA {
	t.Helper()
	faceAtlasOnce.Do(func() {
		faceAtlas, faceAtlasErr = BakeAtlas(FaceColors(DefaultFaceColors), AtlasConfig{Workers: 4})
	})
	require.NoError(t, faceAtlasErr)
	return faceAtlas
}

func TestBakeAtlasTiles(t *testing.T) {
	atlas := bakedFaceAtlas(t)
	require.Equal(t, image.Rect(0, 0, glpbr.CubeUVAtlasSize, glpbr.CubeUVAtlasSize), atlas.Bounds())
	for mip := glpbr.CubeUVMinMip; mip <= glpbr.CubeUVMaxMip; mip++ {
		for face := range 6 {
			x, y, size := glpbr.CubeUVTile(face, mip)
			want := toNRGBA(DefaultFaceColors[face], 255)
			got := atlas.NRGBAAt(x+size/2, y+size/2)
			assert.Equal(t, want, got, "face %d mip %d", face, mip)
		}
	}
	// Texels outside all tiles are left transparent.
	assert.Equal(t, color.NRGBA{}, atlas.NRGBAAt(glpbr.CubeUVAtlasSize-1, glpbr.CubeUVAtlasSize-1))
}

func TestAtlasFaceColorRoundTrip(t *testing.T) {
	atlas := bakedFaceAtlas(t)
	var b gleval.Bindings
	b.SetTexture("envMap", gleval.NewImageSampler(atlas, gleval.FilterLinear))
	e := gleval.NewEvaluator(&b)
	var bld glpbr.Builder
	env := glbuild.NewTexture("envMap")
	var frag gleval.Fragment
	for face := range 6 {
		dir := glpbr.CubeDirf(face, ms2.Vec{X: 0.5, Y: 0.5})
		for _, roughness := range []float32{0.1, 0.25, 0.5, 0.9, 1} {
			node := bld.TextureCubeUV(env, glbuild.Vec3(dir.X, dir.Y, dir.Z), glbuild.Float(roughness))
			v, err := e.Evaluate(node, &frag)
			require.NoError(t, err)
			got := v.Vec4()
			want := DefaultFaceColors[face]
			for i := range 3 {
				assert.InDelta(t, want[i], got[i], 1e-3, "face %d roughness %g channel %d", face, roughness, i)
			}
			assert.Equal(t, float32(1), got[3])
		}
	}
}

func TestBakeAtlasNilEnv(t *testing.T) {
	_, err := BakeAtlas(nil, AtlasConfig{})
	assert.Error(t, err)
}

func TestSkyGradient(t *testing.T) {
	sky := DefaultSky()
	up := sky(ms3.Vec{Y: 1}, 0)
	down := sky(ms3.Vec{Y: -1}, 0)
	// Zenith is blue, ground is warm.
	assert.Greater(t, up[2], up[0])
	assert.Greater(t, down[0], down[2])
	for _, c := range [][3]float32{up, down, sky(ms3.Vec{X: 1}, 1)} {
		for _, v := range c {
			assert.False(t, math32.IsNaN(v))
			assert.GreaterOrEqual(t, v, float32(0))
			assert.LessOrEqual(t, v, float32(1))
		}
	}
	assert.Equal(t, [3]float32{}, sky(ms3.Vec{}, 0))
}

func TestEquirect(t *testing.T) {
	const w, h = 64, 32
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h / 2 {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	for y := h / 2; y < h; y++ {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{A: 255})
		}
	}
	eq, err := NewEquirect(img, w)
	require.NoError(t, err)
	up := eq.Radiance(ms3.Vec{Y: 1}, 0.05)
	down := eq.Radiance(ms3.Vec{Y: -1}, 0.05)
	for i := range 3 {
		assert.InDelta(t, 1, up[i], 0.02)
		assert.InDelta(t, 0, down[i], 0.02)
	}
	_, err = NewEquirect(img, 2)
	assert.Error(t, err)
}

func TestRegistryAndMaterial(t *testing.T) {
	var reg Registry
	tex := reg.Texture("albedo")
	assert.Same(t, tex, reg.Texture("albedo"))
	assert.Equal(t, glbuild.KindSampler2D, tex.Kind())

	var b gleval.Bindings
	assert.Error(t, reg.Apply(&b), "albedo has no sampler")
	reg.SetSampler("albedo", gleval.ConstSampler{1, 1, 1, 1})
	assert.NoError(t, reg.Apply(&b))
	assert.Equal(t, []string{"albedo"}, reg.Names())

	mat := Material{Name: "test"}
	assert.Error(t, mat.SetTextureSlot(SlotBaseColor, glbuild.Float(1)))
	assert.Error(t, mat.SetTextureSlot(NumSlots, tex))
	require.NoError(t, mat.SetTextureSlot(SlotBaseColor, tex))
	assert.Same(t, tex, mat.TextureSlot(SlotBaseColor))

	var bld glpbr.Builder
	_, err := mat.Inputs(&bld, reg.Texture("env"))
	assert.Error(t, err, "missing slots")

	full := NewMaterial("full", &reg, glpbr.DefaultTextureNames)
	_, err = full.Inputs(&bld, glbuild.Float(0))
	assert.Error(t, err, "env is not a texture")
	in, err := full.Inputs(&bld, reg.Texture("envMap"))
	require.NoError(t, err)
	assert.Equal(t, glbuild.KindVec4, in.BaseColor.Kind())
	assert.Equal(t, glbuild.KindVec4, in.ORM.Kind())
}

func TestRenderPreview(t *testing.T) {
	atlas, err := BakeAtlas(DefaultSky(), AtlasConfig{})
	require.NoError(t, err)
	var buf bytes.Buffer
	const cell = 24
	cfg := RenderConfig{
		Output:     &buf,
		Atlas:      atlas,
		BaseColor:  [4]float32{0.9, 0.6, 0.2, 1},
		Rows:       1,
		Cols:       2,
		CellSize:   cell,
		Labels:     true,
		Background: color.Black,
		Workers:    2,
	}
	img, err := RenderPreview(cfg)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2*cell, cell), img.Bounds())
	for col := range 2 {
		c := img.NRGBAAt(col*cell+cell/2, cell/2)
		assert.Equal(t, uint8(255), c.A)
		assert.NotZero(t, int(c.R)+int(c.G)+int(c.B), "sphere %d is black", col)
	}
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())

	cfg.Atlas = nil
	_, err = RenderPreview(cfg)
	assert.Error(t, err)
}

const testScene = `
[environment]
kind = "faces"

[material]
base_color = [0.5, 0.5, 0.5, 1.0]
roughness = 0.3

[preview]
rows = 3
cols = 4
cell_size = 64
labels = false
`

func TestDecodeScene(t *testing.T) {
	scene, err := DecodeScene(strings.NewReader(testScene))
	require.NoError(t, err)
	assert.Equal(t, EnvFaces, scene.Environment.Kind)
	assert.Equal(t, [4]float32{0.5, 0.5, 0.5, 1}, scene.Material.BaseColor)
	assert.Equal(t, float32(0.3), scene.Material.Roughness)
	assert.Equal(t, PreviewConfig{Rows: 3, Cols: 4, CellSize: 64}, scene.Preview)
	// Unset fields keep defaults.
	assert.Equal(t, 512, scene.Environment.Width)

	env, err := scene.Env()
	require.NoError(t, err)
	assert.Equal(t, DefaultFaceColors[2], env(ms3.Vec{Z: 1}, 0))

	var buf bytes.Buffer
	require.NoError(t, scene.Encode(&buf))
	again, err := DecodeScene(&buf)
	require.NoError(t, err)
	assert.Equal(t, scene, again)
}

func TestDecodeSceneErrors(t *testing.T) {
	for name, src := range map[string]string{
		"unknown key":   "[preview]\nrow = 2\n",
		"unknown kind":  "[environment]\nkind = \"cube\"\n",
		"no image":      "[environment]\nkind = \"equirect\"\n",
		"bad grid":      "[preview]\nrows = 0\n",
		"bad color":     "[material]\nbase_color = [2.0, 0.0, 0.0, 1.0]\n",
		"bad roughness": "[material]\nroughness = 1.5\n",
		"syntax":        "[preview\n",
	} {
		_, err := DecodeScene(strings.NewReader(src))
		assert.Error(t, err, name)
	}
}

func TestViewerFragSource(t *testing.T) {
	reg := viewerTextures(UIConfig{
		Atlas:    image.NewNRGBA(image.Rect(0, 0, 1, 1)),
		Material: DefaultScene().Material,
	})
	src, err := makeFragSource(reg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(src, glbuild.VersionStr))
	assert.True(t, strings.HasSuffix(src, "\x00"))
	for _, want := range []string{
		"vec4 shade() {",
		"uniform sampler2D envMap;",
		"uniform sampler2D baseColor;",
		"uniform mat4 uView;",
		"vec3 aNormal;",
		"vec4 col = shade();",
	} {
		assert.Contains(t, src, want)
	}
	assert.Equal(t, 1, strings.Count(src, "uniform sampler2D envMap;"))
	for _, name := range reg.Names() {
		_, ok := reg.Image(name)
		assert.True(t, ok, name)
	}
}
