package glpbr

import (
	"context"
	"log/slog"

	"github.com/soypat/glpbr/glbuild"
)

// Inputs are the texture samples and environment atlas shaded by [Builder.BuildShader].
type Inputs struct {
	BaseColor *glbuild.Node // vec4 base color sample, alpha is passed through to the output.
	Normal    *glbuild.Node // vec4 tangent space normal map sample.
	// ORM is the vec4 packed occlusion, roughness and metalness sample.
	// Roughness is read from green, metalness from blue. Occlusion is unused.
	ORM      *glbuild.Node
	Emissive *glbuild.Node // vec4 sRGB encoded emissive sample.
	Env      *glbuild.Node // sampler2D prefiltered cube atlas with sRGB encoded texels.
}

// TextureNames are the GLSL identifiers of the textures read by [Builder.SampleInputs].
type TextureNames struct {
	BaseColor string
	Normal    string
	ORM       string
	Emissive  string
	Env       string
}

// DefaultTextureNames is the texture naming used by the example programs.
var DefaultTextureNames = TextureNames{
	BaseColor: "baseColor",
	Normal:    "normalMap",
	ORM:       "ormMap",
	Emissive:  "emissiveMap",
	Env:       "envMap",
}

// SampleInputs returns inputs sampling the named material textures at the
// vertex texture coordinates.
func (bld *Builder) SampleInputs(names TextureNames) Inputs {
	uv := bld.cache.Attribute(glbuild.AttrTexCoords)
	sample := func(name string) *glbuild.Node {
		return glbuild.Sample(glbuild.NewTexture(name), uv)
	}
	return Inputs{
		BaseColor: sample(names.BaseColor),
		Normal:    sample(names.Normal),
		ORM:       sample(names.ORM),
		Emissive:  sample(names.Emissive),
		Env:       glbuild.NewTexture(names.Env),
	}
}

// Shader holds the outputs of a complete shading graph.
type Shader struct {
	// Color is the vec4 sRGB encoded shaded color.
	Color *glbuild.Node
	// ClipPosition is the vec4 clip space vertex position.
	ClipPosition *glbuild.Node
}

// BuildShader returns the vec4 sRGB encoded color of a surface lit by the
// prefiltered environment atlas in. The graph reads vertex attributes and transform
// uniforms cached by the Builder.
func (bld *Builder) BuildShader(in Inputs) *glbuild.Node {
	return bld.BuildShaderStages(in).Color
}

// Build is like [Builder.BuildShaderStages] but returns contract violations
// as an error when NoContractPanic is set.
func (bld *Builder) Build(in Inputs) (Shader, error) {
	s := bld.BuildShaderStages(in)
	if err := bld.Err(); err != nil {
		return Shader{}, err
	}
	return s, nil
}

// BuildShaderStages builds the vertex and fragment stage of the IBL shader.
func (bld *Builder) BuildShaderStages(in Inputs) Shader {
	const fn = "BuildShader"
	ok := bld.mustKind(fn, in.BaseColor, glbuild.KindVec4) &&
		bld.mustKind(fn, in.Normal, glbuild.KindVec4) &&
		bld.mustKind(fn, in.ORM, glbuild.KindVec4) &&
		bld.mustKind(fn, in.Emissive, glbuild.KindVec4) &&
		bld.mustKind(fn, in.Env, glbuild.KindSampler2D)
	if !ok {
		return Shader{Color: glbuild.Zero(glbuild.KindVec4), ClipPosition: glbuild.Zero(glbuild.KindVec4)}
	}
	vert := bld.VertexStage()

	baseColor := in.BaseColor
	roughnessFactor := in.ORM.Y()
	metalnessFactor := in.ORM.Z()

	normal := glbuild.Normalize(glbuild.FragmentStage(vert.Normal))
	tangent := glbuild.Normalize(glbuild.FragmentStage(vert.Tangent))
	bitangent := glbuild.Normalize(glbuild.FragmentStage(vert.Bitangent))
	viewPosition := glbuild.FragmentStage(vert.ViewPosition)
	geometryNormal := normal
	normal = bld.PerturbNormal(TBN(tangent, bitangent, normal), in.Normal)

	emissive := bld.Swizzle(bld.SRGBToLinear(in.Emissive), "rgb")
	geometryRoughness := bld.GeometryRoughness(geometryNormal)
	baseRGB := bld.Swizzle(baseColor, "rgb")
	mat := Material{
		DiffuseColor:      baseRGB.Mul(float(1).Sub(metalnessFactor)),
		SpecularRoughness: glbuild.Min(glbuild.Max(roughnessFactor, float(0.0525)).Add(geometryRoughness), float(1)),
		SpecularColor:     glbuild.Mix(vec3(0.04, 0.04, 0.04), baseRGB, metalnessFactor),
	}
	geo := Geometry{
		Position: bld.Swizzle(viewPosition.MulF(-1), "xyz"),
		Normal:   normal,
		ViewDir:  glbuild.Normalize(bld.Swizzle(viewPosition, "xyz")),
	}

	rl := NewReflectedLight()
	irradiance := vec3(0, 0, 0) // No direct lights.
	iblIrradiance := bld.IndirectIrradiance(geo, in.Env)
	radiance := bld.IndirectRadiance(geo.ViewDir, geo.Normal, mat.SpecularRoughness, in.Env)
	bld.AddIndirectDiffuse(&rl, irradiance, mat)
	bld.AddIndirectSpecular(&rl, radiance, iblIrradiance, geo, mat)

	outgoing := rl.Total().Add(emissive)
	color := bld.LinearToSRGB(glbuild.Pack(outgoing, baseColor.W()))
	if Logger().Enabled(context.Background(), slog.LevelDebug) {
		Logger().Debug("built shader", "nodes", glbuild.CountNodes(color), "cached", bld.cache.Len())
	}
	return Shader{Color: color, ClipPosition: vert.ClipPosition}
}

// GeometryRoughness estimates the curvature of the vec3 geometric normal from its
// screen space derivatives: the greatest lane of max(|dFdx(n)|, |dFdy(n)|).
func (bld *Builder) GeometryRoughness(normal *glbuild.Node) *glbuild.Node {
	if !bld.mustKind("GeometryRoughness", normal, glbuild.KindVec3) {
		return float(0)
	}
	dxy := glbuild.Max(glbuild.Abs(glbuild.DFdx(normal)), glbuild.Abs(glbuild.DFdy(normal)))
	return maxComponent(dxy)
}

// InverseTransformDirection transforms vec3 direction dir by the transpose of
// the vec4 matrix m and normalizes the result. For the view matrix this maps
// view space directions to world space.
func (bld *Builder) InverseTransformDirection(dir, m *glbuild.Node) *glbuild.Node {
	return glbuild.Normalize(bld.Swizzle(glbuild.MulVecMat(glbuild.Pack(dir, float(0)), m), "xyz"))
}

// IndirectIrradiance returns the vec3 diffuse irradiance of the environment
// in the direction of the geometry's world space normal.
func (bld *Builder) IndirectIrradiance(geo Geometry, env *glbuild.Node) *glbuild.Node {
	worldNormal := bld.InverseTransformDirection(geo.Normal, bld.cache.Transform(glbuild.BuiltinView))
	envColor := bld.TextureCubeUV(env, worldNormal, float(1))
	return bld.Swizzle(envColor, "rgb").MulF(pi * irradianceScale)
}

// IndirectRadiance returns the vec3 prefiltered environment radiance reflected
// about the normal. The reflection vector bends toward the normal as roughness increases.
func (bld *Builder) IndirectRadiance(viewDir, normal, roughness, env *glbuild.Node) *glbuild.Node {
	reflectVec := glbuild.Reflect(viewDir.MulF(-1), normal)
	reflectVec = glbuild.Normalize(glbuild.Mix(reflectVec, normal, roughness.Mul(roughness)))
	reflectVec = bld.InverseTransformDirection(reflectVec, bld.cache.Transform(glbuild.BuiltinView))
	return bld.Swizzle(bld.TextureCubeUV(env, reflectVec, roughness), "rgb")
}
