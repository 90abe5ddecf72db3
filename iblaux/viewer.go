package iblaux

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"

	"github.com/soypat/glpbr"
	"github.com/soypat/glpbr/glbuild"
)

// UIConfig configures the interactive viewer started by [UI].
type UIConfig struct {
	Width, Height int
	// Context cancels the viewer render loop. May be nil.
	Context context.Context
	// Atlas is the sRGB encoded environment atlas, see [BakeAtlas].
	Atlas image.Image
	// Material is used for texture slots without an image in Registry.
	Material MaterialConfig
	// Registry optionally holds material images keyed by [glpbr.DefaultTextureNames].
	Registry *Registry
}

// UI opens a window showing a sphere shaded with the IBL shader on the GPU.
// Drag to orbit the camera and scroll to zoom. Must be called from the main goroutine.
// Requires cgo.
func UI(cfg UIConfig) error {
	if cfg.Atlas == nil {
		return errors.New("UI requires an environment atlas")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 800, 600
	}
	return ui(cfg)
}

// viewerTextures fills in registry images missing from cfg.Registry with 1x1
// images of the constant material values.
func viewerTextures(cfg UIConfig) *Registry {
	reg := cfg.Registry
	if reg == nil {
		reg = new(Registry)
	}
	names := glpbr.DefaultTextureNames
	m := cfg.Material
	defaults := []struct {
		name string
		c    [4]float32
	}{
		{names.BaseColor, m.BaseColor},
		{names.Normal, [4]float32{0.5, 0.5, 1, 1}},
		{names.ORM, [4]float32{1, m.Roughness, m.Metalness, 1}},
		{names.Emissive, [4]float32{m.Emissive[0], m.Emissive[1], m.Emissive[2], 1}},
	}
	for _, d := range defaults {
		if _, ok := reg.Image(d.name); !ok {
			reg.SetImage(d.name, uniformImage(d.c))
		}
	}
	reg.SetImage(names.Env, cfg.Atlas)
	return reg
}

func uniformImage(c [4]float32) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: encode8(c[0]), G: encode8(c[1]), B: encode8(c[2]), A: encode8(c[3])})
	return img
}

// makeFragSource returns the viewer fragment shader source. The shading
// function built from reg's textures is called with the attributes of the
// unit sphere point under each pixel.
func makeFragSource(reg *Registry) (string, error) {
	names := glpbr.DefaultTextureNames
	mat := NewMaterial("viewer", reg, names)
	bld := glpbr.Builder{NoContractPanic: true}
	inputs, err := mat.Inputs(&bld, reg.Texture(names.Env))
	if err != nil {
		return "", err
	}
	shader, err := bld.Build(inputs)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	buf.WriteString(glbuild.VersionStr)
	_, err = glbuild.NewDefaultProgrammer().WriteFragmentFunc(&buf, "shade", shader.Color)
	if err != nil {
		return "", err
	}
	buf.WriteString(`
in vec2 vTexCoord;
out vec4 fragColor;

uniform vec2 uResolution;

void main() {
	vec2 fragCoord = vTexCoord * uResolution;
	vec2 p = 1.1 * (2.0 * fragCoord - uResolution) / uResolution.y;
	float r2 = dot(p, p);
	// Off-sphere pixels are shaded at the silhouette so derivatives stay defined.
	vec2 q = r2 > 1.0 ? p / sqrt(r2) : p;
	vec3 n = vec3(q, sqrt(max(0.0, 1.0 - dot(q, q))));
	vec3 t = vec3(n.z, 0.0, -n.x);
	t = dot(t, t) > 1e-12 ? normalize(t) : vec3(1.0, 0.0, 0.0);
	aPosition = n;
	aNormal = n;
	aTangent = vec4(t, 1.0);
	aTexCoords = vec2(0.5 + atan(n.x, n.z) / 6.28318530718, acos(n.y) / 3.14159265359);
	vec4 col = shade();
	fragColor = r2 > 1.0 ? vec4(0.12, 0.12, 0.12, 1.0) : col;
}
`)
	buf.WriteByte(0)
	return buf.String(), nil
}
