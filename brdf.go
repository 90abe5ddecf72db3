package glpbr

import "github.com/soypat/glpbr/glbuild"

// Geometry holds the view space shading geometry of a fragment.
type Geometry struct {
	Position *glbuild.Node // vec3 view space position.
	Normal   *glbuild.Node // vec3 shading normal, normalized.
	ViewDir  *glbuild.Node // vec3 direction from the fragment to the eye, normalized.
}

// Material holds the physical material parameters of a fragment.
type Material struct {
	DiffuseColor *glbuild.Node // vec3 linear diffuse albedo.
	// SpecularRoughness is the float perceptual roughness in [0.0525, 1]
	// including the geometry roughness term.
	SpecularRoughness *glbuild.Node
	SpecularColor     *glbuild.Node // vec3 reflectance at normal incidence, F0.
}

// ReflectedLight accumulates the outgoing radiance of a fragment split by
// light path. All fields are vec3 nodes.
type ReflectedLight struct {
	DirectDiffuse    *glbuild.Node
	DirectSpecular   *glbuild.Node
	IndirectDiffuse  *glbuild.Node
	IndirectSpecular *glbuild.Node
}

// NewReflectedLight returns an accumulator with all channels set to zero.
func NewReflectedLight() ReflectedLight {
	return ReflectedLight{
		DirectDiffuse:    vec3(0, 0, 0),
		DirectSpecular:   vec3(0, 0, 0),
		IndirectDiffuse:  vec3(0, 0, 0),
		IndirectSpecular: vec3(0, 0, 0),
	}
}

// Total returns the sum of all four channels.
func (rl ReflectedLight) Total() *glbuild.Node {
	return rl.DirectDiffuse.Add(rl.DirectSpecular).Add(rl.IndirectDiffuse).Add(rl.IndirectSpecular)
}

// Scattering is the result of [Builder.SpecularMultiscattering].
type Scattering struct {
	Single *glbuild.Node // vec3 single scattering energy, Fss*Ess.
	Multi  *glbuild.Node // vec3 multiple scattering energy, Fms*Ems.
}

// IntegrateSpecularBRDF returns the vec2 (scale, bias) pair approximating the
// split-sum environment BRDF integral for float dotNV and roughness.
func (bld *Builder) IntegrateSpecularBRDF(dotNV, roughness *glbuild.Node) *glbuild.Node {
	if !bld.mustKind("IntegrateSpecularBRDF", dotNV, glbuild.KindFloat) ||
		!bld.mustKind("IntegrateSpecularBRDF", roughness, glbuild.KindFloat) {
		return glbuild.Zero(glbuild.KindVec2)
	}
	c0 := glbuild.Vec4(-1, -0.0275, -0.572, 0.022)
	c1 := glbuild.Vec4(1, 0.0425, 1.04, -0.04)
	r := roughness.Mul(c0).Add(c1)
	rx := r.X()
	a004 := glbuild.Min(rx.Mul(rx), exp2(dotNV.MulF(-9.28))).Mul(rx).Add(r.Y())
	return glbuild.Vec2(-1.04, 1.04).Mul(a004).Add(bld.Swizzle(r, "zw"))
}

// FSchlickRoughness returns the vec3 roughness dependent Schlick Fresnel
// reflectance for reflectance at normal incidence vec3 f0.
func (bld *Builder) FSchlickRoughness(f0, dotNV, roughness *glbuild.Node) *glbuild.Node {
	if !bld.mustKind("FSchlickRoughness", f0, glbuild.KindVec3) {
		return glbuild.Zero(glbuild.KindVec3)
	}
	fresnel := exp2(dotNV.MulF(-5.55473).SubF(6.98316).Mul(dotNV))
	fr := glbuild.Max(float(1).Sub(roughness), f0).Sub(f0)
	return fr.Mul(fresnel).Add(f0)
}

// SpecularMultiscattering computes the single and multiple scattering
// energy of the environment specular lobe for the given shading normal and
// view direction.
func (bld *Builder) SpecularMultiscattering(normal, viewDir, specularColor, roughness *glbuild.Node) Scattering {
	if !bld.mustKind("SpecularMultiscattering", normal, glbuild.KindVec3) ||
		!bld.mustKind("SpecularMultiscattering", specularColor, glbuild.KindVec3) ||
		!bld.mustKind("SpecularMultiscattering", roughness, glbuild.KindFloat) {
		return Scattering{Single: glbuild.Zero(glbuild.KindVec3), Multi: glbuild.Zero(glbuild.KindVec3)}
	}
	dotNV := saturate(glbuild.Dot(normal, viewDir))
	F := bld.FSchlickRoughness(specularColor, dotNV, roughness)
	brdf := bld.IntegrateSpecularBRDF(dotNV, roughness)
	scale, bias := brdf.X(), brdf.Y()
	fssEss := F.Mul(scale).Add(bias)
	ess := scale.Add(bias)
	ems := float(1).Sub(ess)
	fAvg := specularColor.Add(float(1).Sub(specularColor).MulF(favg))
	fms := fssEss.Mul(fAvg).Div(float(1).Sub(ems.Mul(fAvg)))
	return Scattering{Single: fssEss, Multi: fms.Mul(ems)}
}

// BRDFDiffuseLambert returns the Lambertian diffuse BRDF diffuseColor/π.
func BRDFDiffuseLambert(diffuseColor *glbuild.Node) *glbuild.Node {
	return diffuseColor.MulF(recipPi)
}

// AddIndirectDiffuse accumulates the diffuse response to vec3 irradiance into rl.
func (bld *Builder) AddIndirectDiffuse(rl *ReflectedLight, irradiance *glbuild.Node, mat Material) {
	rl.IndirectDiffuse = rl.IndirectDiffuse.Add(irradiance.Mul(BRDFDiffuseLambert(mat.DiffuseColor)))
}

// AddIndirectSpecular accumulates the specular response to prefiltered vec3
// radiance and the multiscattered and energy compensated diffuse response to vec3 irradiance into rl.
func (bld *Builder) AddIndirectSpecular(rl *ReflectedLight, radiance, irradiance *glbuild.Node, geo Geometry, mat Material) {
	const clearcoatInv = 1
	scatter := bld.SpecularMultiscattering(geo.Normal, geo.ViewDir, mat.SpecularColor, mat.SpecularRoughness)
	cosineWeightedIrradiance := irradiance.MulF(recipPi)
	energyCompensation := float(1).Sub(scatter.Single.Add(scatter.Multi))
	diffuse := mat.DiffuseColor.Mul(energyCompensation)

	rl.IndirectSpecular = rl.IndirectSpecular.
		Add(radiance.Mul(scatter.Single).MulF(clearcoatInv)).
		Add(scatter.Multi.Mul(cosineWeightedIrradiance).MulF(clearcoatInv))
	rl.IndirectDiffuse = rl.IndirectDiffuse.Add(diffuse.Mul(cosineWeightedIrradiance))
}
