package glpbr

import "github.com/soypat/glpbr/glbuild"

// SRGBToLinear decodes the sRGB encoded rgb lanes of vec4 v to linear values.
// Alpha is passed through. Lanes at or above the 0.04045 threshold take the power curve.
func (bld *Builder) SRGBToLinear(v *glbuild.Node) *glbuild.Node {
	if !bld.mustKind("SRGBToLinear", v, glbuild.KindVec4) {
		return glbuild.Zero(glbuild.KindVec4)
	}
	rgb := bld.Swizzle(v, "rgb")
	low := rgb.MulF(0.0773993808)
	high := glbuild.Pow(rgb.MulF(0.9478672986).AddF(0.0521327014), float(2.4))
	lin := glbuild.Mix(low, high, glbuild.Step(float(0.04045), rgb))
	return glbuild.Pack(lin, v.W())
}

// LinearToSRGB encodes the linear rgb lanes of vec4 v with the sRGB transfer
// function. Alpha is passed through. Lanes at or above 0.0031308 take the power curve.
func (bld *Builder) LinearToSRGB(v *glbuild.Node) *glbuild.Node {
	if !bld.mustKind("LinearToSRGB", v, glbuild.KindVec4) {
		return glbuild.Zero(glbuild.KindVec4)
	}
	rgb := bld.Swizzle(v, "rgb")
	low := rgb.MulF(12.92)
	high := glbuild.Pow(rgb, float(0.41666)).MulF(1.055).SubF(0.055)
	enc := glbuild.Mix(low, high, glbuild.Step(float(0.0031308), rgb))
	return glbuild.Pack(enc, v.W())
}
