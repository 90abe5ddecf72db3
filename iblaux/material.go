package iblaux

import (
	"fmt"
	"image"
	"slices"

	"github.com/disintegration/imaging"
	"github.com/soypat/glpbr"
	"github.com/soypat/glpbr/glbuild"
	"github.com/soypat/glpbr/gleval"
)

// Slot is a texture input of a [Material].
type Slot uint8

const (
	SlotBaseColor Slot = iota
	SlotNormal
	SlotORM
	SlotEmissive
	NumSlots
)

func (s Slot) String() string {
	switch s {
	case SlotBaseColor:
		return "baseColor"
	case SlotNormal:
		return "normal"
	case SlotORM:
		return "orm"
	case SlotEmissive:
		return "emissive"
	}
	return fmt.Sprintf("Slot(%d)", uint8(s))
}

// Registry maps texture names to texture nodes and the CPU samplers or images bound to them.
// The zero value is ready to use.
type Registry struct {
	textures map[string]*glbuild.Node
	samplers map[string]gleval.Sampler
	images   map[string]image.Image
}

// Texture returns the texture node named name, creating it on first use.
// Repeated calls return the same node.
func (r *Registry) Texture(name string) *glbuild.Node {
	if tex, ok := r.textures[name]; ok {
		return tex
	}
	if r.textures == nil {
		r.textures = make(map[string]*glbuild.Node)
	}
	tex := glbuild.NewTexture(name)
	r.textures[name] = tex
	return tex
}

// SetSampler binds a CPU sampler to the texture named name.
func (r *Registry) SetSampler(name string, s gleval.Sampler) {
	r.Texture(name)
	if r.samplers == nil {
		r.samplers = make(map[string]gleval.Sampler)
	}
	r.samplers[name] = s
}

// SetImage binds an image to the texture named name. The image is sampled bilinearly on the CPU
// and is available to GPU uploads through [Registry.Image].
func (r *Registry) SetImage(name string, img image.Image) {
	if r.images == nil {
		r.images = make(map[string]image.Image)
	}
	r.images[name] = img
	r.SetSampler(name, gleval.NewImageSampler(img, gleval.FilterLinear))
}

// LoadImage opens the image file at path and binds it to the texture named name.
func (r *Registry) LoadImage(name, path string) error {
	img, err := imaging.Open(path)
	if err != nil {
		return fmt.Errorf("loading texture %q: %w", name, err)
	}
	r.SetImage(name, img)
	return nil
}

// Image returns the image bound to name with [Registry.SetImage].
func (r *Registry) Image(name string) (image.Image, bool) {
	img, ok := r.images[name]
	return img, ok
}

// Names returns the sorted names of all registered textures.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.textures))
	for name := range r.textures {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Apply binds all registered samplers to b.
func (r *Registry) Apply(b *gleval.Bindings) error {
	for _, name := range r.Names() {
		s, ok := r.samplers[name]
		if !ok {
			return fmt.Errorf("texture %q has no sampler bound", name)
		}
		b.SetTexture(name, s)
	}
	return nil
}

// Material binds texture nodes to the inputs of the IBL shader.
type Material struct {
	Name     string
	textures [NumSlots]*glbuild.Node
}

// SetTextureSlot sets the texture read by slot. tex must be a sampler2D node.
func (m *Material) SetTextureSlot(slot Slot, tex *glbuild.Node) error {
	if slot >= NumSlots {
		return fmt.Errorf("invalid %s", slot)
	} else if tex == nil || tex.Kind() != glbuild.KindSampler2D {
		return fmt.Errorf("material %q %s slot requires a texture", m.Name, slot)
	}
	m.textures[slot] = tex
	return nil
}

// TextureSlot returns the texture bound to slot or nil.
func (m *Material) TextureSlot(slot Slot) *glbuild.Node {
	if slot >= NumSlots {
		return nil
	}
	return m.textures[slot]
}

// Inputs returns shader inputs sampling the material textures at the vertex
// texture coordinates and reading the environment atlas env.
func (m *Material) Inputs(bld *glpbr.Builder, env *glbuild.Node) (glpbr.Inputs, error) {
	for slot, tex := range m.textures {
		if tex == nil {
			return glpbr.Inputs{}, fmt.Errorf("material %q missing %s texture", m.Name, Slot(slot))
		}
	}
	if env == nil || env.Kind() != glbuild.KindSampler2D {
		return glpbr.Inputs{}, fmt.Errorf("material %q requires an environment texture", m.Name)
	}
	uv := bld.Cache().Attribute(glbuild.AttrTexCoords)
	return glpbr.Inputs{
		BaseColor: glbuild.Sample(m.textures[SlotBaseColor], uv),
		Normal:    glbuild.Sample(m.textures[SlotNormal], uv),
		ORM:       glbuild.Sample(m.textures[SlotORM], uv),
		Emissive:  glbuild.Sample(m.textures[SlotEmissive], uv),
		Env:       env,
	}, nil
}

// NewMaterial creates a material whose slots read the textures named by
// names from the registry. names.Env is ignored.
func NewMaterial(name string, reg *Registry, names glpbr.TextureNames) *Material {
	m := &Material{Name: name}
	m.textures[SlotBaseColor] = reg.Texture(names.BaseColor)
	m.textures[SlotNormal] = reg.Texture(names.Normal)
	m.textures[SlotORM] = reg.Texture(names.ORM)
	m.textures[SlotEmissive] = reg.Texture(names.Emissive)
	return m
}
