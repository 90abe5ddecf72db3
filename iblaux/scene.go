package iblaux

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Environment kinds of a [Scene].
const (
	EnvSky      = "sky"
	EnvFaces    = "faces"
	EnvEquirect = "equirect"
)

// Scene describes an environment and preview render. Scenes are stored as TOML:
//
//	[environment]
//	kind = "equirect"
//	image = "studio.jpg"
//
//	[material]
//	base_color = [0.9, 0.6, 0.2, 1.0]
//
//	[preview]
//	rows = 2
//	cols = 5
//	cell_size = 128
//	labels = true
type Scene struct {
	Environment EnvironmentConfig `toml:"environment"`
	Material    MaterialConfig    `toml:"material"`
	Preview     PreviewConfig     `toml:"preview"`
}

// EnvironmentConfig selects the environment baked into the atlas.
type EnvironmentConfig struct {
	// Kind is one of "sky", "faces" or "equirect".
	Kind string `toml:"kind"`
	// Image is the path of the equirectangular image of the "equirect" kind.
	Image string `toml:"image,omitempty"`
	// Width is the resampled width of the equirectangular image.
	Width int `toml:"width,omitempty"`
	// Sky colors as sRGB triplets. Zero values use [DefaultSky] colors.
	Ground  [3]float32 `toml:"ground,omitempty"`
	Horizon [3]float32 `toml:"horizon,omitempty"`
	Zenith  [3]float32 `toml:"zenith,omitempty"`
}

// MaterialConfig holds constant material parameters as sRGB colors.
// Roughness and metalness are used by the viewer, the preview sweeps them.
type MaterialConfig struct {
	BaseColor [4]float32 `toml:"base_color"`
	Emissive  [3]float32 `toml:"emissive,omitempty"`
	Roughness float32    `toml:"roughness"`
	Metalness float32    `toml:"metalness"`
}

// PreviewConfig sets the preview sphere grid.
type PreviewConfig struct {
	Rows     int  `toml:"rows"`
	Cols     int  `toml:"cols"`
	CellSize int  `toml:"cell_size"`
	Labels   bool `toml:"labels"`
}

// DefaultScene returns a sky lit 2 by 5 preview of an orange material.
func DefaultScene() Scene {
	return Scene{
		Environment: EnvironmentConfig{Kind: EnvSky, Width: 512},
		Material:    MaterialConfig{BaseColor: [4]float32{0.9, 0.6, 0.2, 1}, Roughness: 0.5},
		Preview:     PreviewConfig{Rows: 2, Cols: 5, CellSize: 128, Labels: true},
	}
}

// LoadScene reads the TOML scene file at path. Unset fields keep their [DefaultScene] values.
func LoadScene(path string) (Scene, error) {
	fp, err := os.Open(path)
	if err != nil {
		return Scene{}, err
	}
	defer fp.Close()
	return DecodeScene(fp)
}

// DecodeScene decodes and validates a TOML scene. Unknown keys are an error.
func DecodeScene(r io.Reader) (Scene, error) {
	scene := DefaultScene()
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	err := dec.Decode(&scene)
	if err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Scene{}, fmt.Errorf("scene: %s", strict.String())
		}
		return Scene{}, fmt.Errorf("decoding scene: %w", err)
	}
	return scene, scene.Validate()
}

// Encode writes the scene as TOML to w.
func (s Scene) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(s)
}

// Validate checks the scene for inconsistent values.
func (s Scene) Validate() error {
	var errs []error
	switch s.Environment.Kind {
	case EnvSky, EnvFaces:
	case EnvEquirect:
		if s.Environment.Image == "" {
			errs = append(errs, errors.New("equirect environment requires image"))
		}
		if s.Environment.Width < 4 {
			errs = append(errs, fmt.Errorf("equirect width %d too small", s.Environment.Width))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown environment kind %q", s.Environment.Kind))
	}
	if m := s.Material; m.Roughness < 0 || m.Roughness > 1 || m.Metalness < 0 || m.Metalness > 1 {
		errs = append(errs, fmt.Errorf("roughness %g and metalness %g must be in [0,1]", m.Roughness, m.Metalness))
	}
	for _, c := range s.Material.BaseColor {
		if c < 0 || c > 1 {
			errs = append(errs, fmt.Errorf("base color %v out of [0,1] range", s.Material.BaseColor))
			break
		}
	}
	p := s.Preview
	if p.Rows <= 0 || p.Cols <= 0 {
		errs = append(errs, fmt.Errorf("invalid preview grid %dx%d", p.Rows, p.Cols))
	}
	if p.CellSize < 2 {
		errs = append(errs, fmt.Errorf("preview cell size %d too small", p.CellSize))
	}
	return errors.Join(errs...)
}

// Env returns the environment function described by the scene.
func (s Scene) Env() (EnvFunc, error) {
	env := s.Environment
	switch env.Kind {
	case EnvFaces:
		return FaceColors(DefaultFaceColors), nil
	case EnvEquirect:
		eq, err := LoadEquirect(env.Image, env.Width)
		if err != nil {
			return nil, err
		}
		return eq.Radiance, nil
	case EnvSky:
		if env.Ground == ([3]float32{}) && env.Horizon == ([3]float32{}) && env.Zenith == ([3]float32{}) {
			return DefaultSky(), nil
		}
		return SkyGradient(rgb(env.Ground), rgb(env.Horizon), rgb(env.Zenith)), nil
	}
	return nil, fmt.Errorf("unknown environment kind %q", env.Kind)
}

// RenderConfig returns a preview configuration of the scene lit by atlas.
func (s Scene) RenderConfig(atlas image.Image) RenderConfig {
	return RenderConfig{
		Atlas:      atlas,
		BaseColor:  s.Material.BaseColor,
		Emissive:   s.Material.Emissive,
		Rows:       s.Preview.Rows,
		Cols:       s.Preview.Cols,
		CellSize:   s.Preview.CellSize,
		Labels:     s.Preview.Labels,
		Background: color.Gray{Y: 0x20},
	}
}

func rgb(c [3]float32) color.Color {
	return color.NRGBA{R: encode8(c[0]), G: encode8(c[1]), B: encode8(c[2]), A: 0xff}
}
