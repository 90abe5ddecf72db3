package glpbr

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

// The functions below evaluate the same math as their graph building
// counterparts on the host. They are used by atlas bakers and as reference
// implementations in tests.

// SRGBToLinearf decodes a single sRGB encoded channel value.
func SRGBToLinearf(c float32) float32 {
	if c >= 0.04045 {
		return math32.Pow(c*0.9478672986+0.0521327014, 2.4)
	}
	return c * 0.0773993808
}

// LinearToSRGBf encodes a single linear channel value with the sRGB transfer function.
func LinearToSRGBf(c float32) float32 {
	if c >= 0.0031308 {
		return math32.Pow(c, 0.41666)*1.055 - 0.055
	}
	return c * 12.92
}

// CubeFacef returns the cube face index dir points at. See [Builder.CubeFace].
func CubeFacef(dir ms3.Vec) int {
	ax, ay, az := math32.Abs(dir.X), math32.Abs(dir.Y), math32.Abs(dir.Z)
	yFace := 1
	if dir.Y < 0 {
		yFace = 4
	}
	if ax >= az {
		if ax >= ay {
			if dir.X < 0 {
				return 3
			}
			return 0
		}
		return yFace
	}
	if az >= ay {
		if dir.Z < 0 {
			return 5
		}
		return 2
	}
	return yFace
}

// CubeUVf projects dir onto cube face face returning coordinates in [0,1]². See [Builder.CubeUV].
func CubeUVf(dir ms3.Vec, face int) ms2.Vec {
	var uv ms2.Vec
	switch face {
	case 0:
		uv = ms2.Scale(1 / math32.Abs(dir.X), ms2.Vec{X: -dir.Z, Y: dir.Y})
	case 1:
		uv = ms2.Scale(1 / math32.Abs(dir.Y), ms2.Vec{X: dir.X, Y: -dir.Z})
	case 2:
		uv = ms2.Scale(1 / math32.Abs(dir.Z), ms2.Vec{X: dir.X, Y: dir.Y})
	case 3:
		uv = ms2.Scale(1 / math32.Abs(dir.X), ms2.Vec{X: dir.Z, Y: dir.Y})
	case 4:
		uv = ms2.Scale(1 / math32.Abs(dir.Y), ms2.Vec{X: dir.X, Y: dir.Z})
	case 5:
		uv = ms2.Scale(1 / math32.Abs(dir.Z), ms2.Vec{X: -dir.X, Y: dir.Y})
	default:
		panic("glpbr: invalid cube face")
	}
	return ms2.Vec{X: (uv.X + 1) * 0.5, Y: (uv.Y + 1) * 0.5}
}

// CubeDirf returns the (non normalized) direction that projects onto face
// coordinates uv of cube face face. It is the inverse of [CubeUVf].
func CubeDirf(face int, uv ms2.Vec) ms3.Vec {
	a, b := 2*uv.X-1, 2*uv.Y-1
	switch face {
	case 0:
		return ms3.Vec{X: 1, Y: b, Z: -a}
	case 1:
		return ms3.Vec{X: a, Y: 1, Z: -b}
	case 2:
		return ms3.Vec{X: a, Y: b, Z: 1}
	case 3:
		return ms3.Vec{X: -1, Y: b, Z: a}
	case 4:
		return ms3.Vec{X: a, Y: -1, Z: b}
	case 5:
		return ms3.Vec{X: -a, Y: b, Z: -1}
	}
	panic("glpbr: invalid cube face")
}

// CubeUVTile returns the atlas texel position of the top-left corner and the
// side length of the tile storing cube face face at integral mip level mipInt,
// which must be in the range [CubeUVMinMip, CubeUVMaxMip]. Texel i of a tile
// row corresponds to face coordinate i/(size-1).
func CubeUVTile(face, mipInt int) (x, y, size int) {
	if face < 0 || face > 5 {
		panic("glpbr: invalid cube face")
	} else if mipInt < CubeUVMinMip || mipInt > CubeUVMaxMip {
		panic("glpbr: mip out of atlas range")
	}
	filterInt := max(CubeUVMinMipLevel-mipInt, 0)
	mipInt2 := max(mipInt, CubeUVMinMipLevel)
	size = 1 << mipInt2
	if face > 2 {
		face -= 3
		y += size
	}
	x = face*size + 3*max(0, CubeUVMaxTileSize-2*size)
	if mipInt2 < CubeUVMaxMipLevel {
		y += 2 * CubeUVMaxTileSize
	}
	y += filterInt * 2 * CubeUVMinTileSize
	return x, y, size
}

// RoughnessToMipf evaluates the roughness to mip curve. See [Builder.RoughnessToMip].
func RoughnessToMipf(r float32) float32 {
	switch {
	case r >= r1:
		return (r0-r)*(m1-m0)/(r0-r1) + m0
	case r >= r4:
		return (r1-r)*(m4-m1)/(r1-r4) + m1
	case r >= r5:
		return (r4-r)*(m5-m4)/(r4-r5) + m4
	case r >= r6:
		return (r5-r)*(m6-m5)/(r5-r6) + m5
	}
	return -2 * math32.Log2(r*1.16)
}

// MipToRoughnessf inverts [RoughnessToMipf] for mip in [CubeUVMinMip, CubeUVMaxMip].
// Atlas bakers use it to find the roughness each mip level must be prefiltered for.
func MipToRoughnessf(mip float32) float32 {
	switch {
	case mip <= m0:
		return r0
	case mip <= m1:
		return r0 - (mip-m0)*(r0-r1)/(m1-m0)
	case mip <= m4:
		return r1 - (mip-m1)*(r1-r4)/(m4-m1)
	case mip <= m5:
		return r4 - (mip-m4)*(r4-r5)/(m5-m4)
	case mip <= m6:
		return r5 - (mip-m5)*(r5-r6)/(m6-m5)
	}
	return math32.Exp2(-mip/2) / 1.16
}

// IntegrateSpecularBRDFf returns the split-sum (scale, bias) pair. See [Builder.IntegrateSpecularBRDF].
func IntegrateSpecularBRDFf(dotNV, roughness float32) (scale, bias float32) {
	rx := roughness*-1 + 1
	ry := roughness*-0.0275 + 0.0425
	rz := roughness*-0.572 + 1.04
	rw := roughness*0.022 - 0.04
	a004 := math32.Min(rx*rx, math32.Exp2(-9.28*dotNV))*rx + ry
	return -1.04*a004 + rz, 1.04*a004 + rw
}

// FSchlickRoughnessf returns the roughness dependent Fresnel reflectance. See [Builder.FSchlickRoughness].
func FSchlickRoughnessf(f0 ms3.Vec, dotNV, roughness float32) ms3.Vec {
	fresnel := math32.Exp2((-5.55473*dotNV - 6.98316) * dotNV)
	oneMinusRough := 1 - roughness
	fr := ms3.Vec{
		X: math32.Max(oneMinusRough, f0.X) - f0.X,
		Y: math32.Max(oneMinusRough, f0.Y) - f0.Y,
		Z: math32.Max(oneMinusRough, f0.Z) - f0.Z,
	}
	return ms3.Add(ms3.Scale(fresnel, fr), f0)
}

// SpecularMultiscatteringf returns single and multiple scattering energy for
// a saturated dotNV. See [Builder.SpecularMultiscattering].
func SpecularMultiscatteringf(dotNV float32, specularColor ms3.Vec, roughness float32) (single, multi ms3.Vec) {
	F := FSchlickRoughnessf(specularColor, dotNV, roughness)
	scale, bias := IntegrateSpecularBRDFf(dotNV, roughness)
	single = ms3.AddScalar(bias, ms3.Scale(scale, F))
	ess := scale + bias
	ems := 1 - ess
	fAvg := ms3.Add(specularColor, ms3.Scale(favg, ms3.AddScalar(1, ms3.Scale(-1, specularColor))))
	fms := ms3.Vec{
		X: single.X * fAvg.X / (1 - ems*fAvg.X),
		Y: single.Y * fAvg.Y / (1 - ems*fAvg.Y),
		Z: single.Z * fAvg.Z / (1 - ems*fAvg.Z),
	}
	return single, ms3.Scale(ems, fms)
}
