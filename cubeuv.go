package glpbr

import "github.com/soypat/glpbr/glbuild"

// RoughnessAnchor is a breakpoint of the roughness to mip curve.
type RoughnessAnchor struct {
	Roughness float32
	// Variance is the log-variance of the prefiltering kernel at this
	// roughness. Not used by the curve, kept as reference for atlas bakers.
	Variance float32
	Mip      float32
}

// RoughnessAnchors lists the curve breakpoints in descending roughness.
// Below the last anchor the curve follows mip = -2*log2(1.16*roughness).
var RoughnessAnchors = [...]RoughnessAnchor{
	{Roughness: 1.0, Variance: 0.339, Mip: -2},
	{Roughness: 0.8, Variance: 0.276, Mip: -1},
	{Roughness: 0.4, Variance: 0.046, Mip: 2},
	{Roughness: 0.305, Variance: 0.016, Mip: 3},
	{Roughness: 0.21, Variance: 0.0038, Mip: 4},
}

const (
	r0, m0 = 1.0, -2.0
	r1, m1 = 0.8, -1.0
	r4, m4 = 0.4, 2.0
	r5, m5 = 0.305, 3.0
	r6, m6 = 0.21, 4.0

	minAxisMagnitude = 1e-8
)

// CubeFace returns the float index in 0..5 of the cube face the vec3 direction
// dir points at: 0/3 for +X/-X, 1/4 for +Y/-Y and 2/5 for +Z/-Z.
// Ties between axes of equal magnitude resolve in favor of X, then Z, over Y.
func (bld *Builder) CubeFace(dir *glbuild.Node) *glbuild.Node {
	if !bld.mustKind("CubeFace", dir, glbuild.KindVec3) {
		return float(0)
	}
	abs := glbuild.Abs(dir)
	ax, ay, az := abs.X(), abs.Y(), abs.Z()
	zero := float(0)
	yFace := glbuild.Mix(float(4), float(1), glbuild.Step(zero, dir.Y()))
	zFace := glbuild.Mix(float(5), float(2), glbuild.Step(zero, dir.Z()))
	xFace := glbuild.Mix(float(3), float(0), glbuild.Step(zero, dir.X()))
	return glbuild.Mix(
		glbuild.Mix(yFace, zFace, glbuild.Step(ay, az)),
		glbuild.Mix(yFace, xFace, glbuild.Step(ay, ax)),
		glbuild.Step(az, ax),
	)
}

// CubeUV projects the vec3 direction dir onto the float face index face and
// returns the vec2 face coordinates in [0,1]².
func (bld *Builder) CubeUV(dir, face *glbuild.Node) *glbuild.Node {
	if !bld.mustKind("CubeUV", dir, glbuild.KindVec3) || !bld.mustKind("CubeUV", face, glbuild.KindFloat) {
		return glbuild.Zero(glbuild.KindVec2)
	}
	x, y, z := dir.X(), dir.Y(), dir.Z()
	abs := glbuild.Abs(dir)
	ax, ay, az := abs.X(), abs.Y(), abs.Z()
	nx, nz := x.MulF(-1), z.MulF(-1)
	// Projections onto faces not selected are still evaluated by mix on the GPU.
	// Keep them finite for axis aligned directions.
	ax = glbuild.Max(ax, float(minAxisMagnitude))
	ay = glbuild.Max(ay, float(minAxisMagnitude))
	az = glbuild.Max(az, float(minAxisMagnitude))
	faceUVs := [6]*glbuild.Node{
		glbuild.Pack(nz, y).Div(ax),
		glbuild.Pack(x, nz).Div(ay),
		glbuild.Pack(x, y).Div(az),
		glbuild.Pack(z, y).Div(ax),
		glbuild.Pack(x, z).Div(ay),
		glbuild.Pack(nx, y).Div(az),
	}
	uv := faceUVs[5]
	for i := 4; i >= 0; i-- {
		uv = glbuild.Mix(faceUVs[i], uv, glbuild.Step(float(float32(i)+0.5), face))
	}
	return uv.AddF(1).MulF(0.5)
}

// BilinearCubeUV samples the cube atlas env in direction dir at the integral
// float mip level mipInt and returns the bilinearly filtered linear vec3 color.
// Atlas texels are decoded from sRGB before filtering.
func (bld *Builder) BilinearCubeUV(env, dir, mipInt *glbuild.Node) *glbuild.Node {
	if !bld.mustKind("BilinearCubeUV", env, glbuild.KindSampler2D) ||
		!bld.mustKind("BilinearCubeUV", mipInt, glbuild.KindFloat) {
		return glbuild.Zero(glbuild.KindVec3)
	}
	face := bld.CubeFace(dir)
	filterInt := glbuild.Max(float(CubeUVMinMipLevel).Sub(mipInt), float(0))
	mipInt2 := glbuild.Max(mipInt, float(CubeUVMinMipLevel))
	faceSize := exp2(mipInt2)
	texelSize := float(CubeUVTexelSize)

	uv := bld.CubeUV(dir, face).Mul(faceSize.SubF(1))
	f := glbuild.Mod(uv, float(1))
	uv = uv.AddF(0.5).Sub(f)

	// Faces 3..5 are laid out in a second row.
	secondRow := glbuild.Step(float(2.1), face)
	face = glbuild.Mix(face, face.SubF(3), secondRow)
	u := uv.X().Add(face.Mul(faceSize))
	v := glbuild.Mix(uv.Y(), uv.Y().Add(faceSize), secondRow)

	// Mips below the largest are packed under the two rows of largest tiles.
	v = glbuild.Mix(v.AddF(2*CubeUVMaxTileSize), v, glbuild.Step(float(CubeUVMaxMipLevel), mipInt2))
	u = u.Add(glbuild.Max(float(0), float(CubeUVMaxTileSize).Sub(faceSize.MulF(2))).MulF(3))
	v = v.Add(filterInt.MulF(2 * CubeUVMinTileSize))

	uv = glbuild.Pack(u, v).Mul(texelSize)
	tl := bld.sampleLinear(env, uv)
	uv = glbuild.Pack(uv.X().Add(texelSize), uv.Y())
	tr := bld.sampleLinear(env, uv)
	uv = glbuild.Pack(uv.X(), uv.Y().Add(texelSize))
	br := bld.sampleLinear(env, uv)
	uv = glbuild.Pack(uv.X().Sub(texelSize), uv.Y())
	bl := bld.sampleLinear(env, uv)

	tm := glbuild.Mix(tl, tr, f.X())
	bm := glbuild.Mix(bl, br, f.X())
	return bld.Swizzle(glbuild.Mix(tm, bm, f.Y()), "xyz")
}

func (bld *Builder) sampleLinear(env, uv *glbuild.Node) *glbuild.Node {
	return bld.SRGBToLinear(glbuild.Sample(env, uv))
}

// RoughnessToMip maps float roughness to the float atlas mip level used to sample
// prefiltered radiance. The curve is monotonically non-increasing and passes
// through every [RoughnessAnchors] point.
func (bld *Builder) RoughnessToMip(roughness *glbuild.Node) *glbuild.Node {
	if !bld.mustKind("RoughnessToMip", roughness, glbuild.KindFloat) {
		return float(0)
	}
	r := roughness
	segment := func(rA, mA, rB, mB float32) *glbuild.Node {
		return float(rA).Sub(r).MulF(mB - mA).DivF(rA - rB).AddF(mA)
	}
	logBranch := log2(r.MulF(1.16)).MulF(-2)
	return glbuild.Mix(
		logBranch,
		glbuild.Mix(
			segment(r5, m5, r6, m6),
			glbuild.Mix(
				segment(r4, m4, r5, m5),
				glbuild.Mix(
					segment(r1, m1, r4, m4),
					segment(r0, m0, r1, m1),
					glbuild.Step(float(r1), r),
				),
				glbuild.Step(float(r4), r),
			),
			glbuild.Step(float(r5), r),
		),
		glbuild.Step(float(r6), r),
	)
}

// TextureCubeUV samples the cube atlas env in vec3 direction dir blurred
// according to float roughness. Two adjacent mip levels are sampled and
// blended. Returns linear color as a vec4 with alpha 1.
func (bld *Builder) TextureCubeUV(env, dir, roughness *glbuild.Node) *glbuild.Node {
	mip := glbuild.Clamp(bld.RoughnessToMip(roughness), float(CubeUVMinMip), float(CubeUVMaxMip))
	mipF := glbuild.Mod(mip, float(1))
	mipInt := glbuild.Floor(mip)
	color0 := bld.BilinearCubeUV(env, dir, mipInt)
	color1 := bld.BilinearCubeUV(env, dir, mipInt.AddF(1))
	return glbuild.Pack(glbuild.Mix(color0, color1, mipF), float(1))
}
