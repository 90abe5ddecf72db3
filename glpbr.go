// Package glpbr builds image based lighting (IBL) physically based shading
// computations as expression graphs. Graphs are built from [glbuild.Node]
// primitives and may be emitted as GLSL with a [glbuild.Programmer] or
// evaluated on the CPU with the gleval package.
//
// Environment lighting is read from a single "PMREM" texture atlas holding
// a prefiltered cube map at decreasing resolutions, see [Builder.TextureCubeUV].
package glpbr

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/glpbr/glbuild"
)

// Cube atlas layout constants.
const (
	CubeUVMaxMipLevel = 8
	CubeUVMinMipLevel = 4
	CubeUVMaxTileSize = 256
	CubeUVMinTileSize = 16
	// CubeUVAtlasSize is the side length in texels of the square atlas.
	CubeUVAtlasSize = 3 * CubeUVMaxTileSize
	// CubeUVTexelSize is the normalized size of a single atlas texel.
	CubeUVTexelSize = 1.0 / CubeUVAtlasSize
	// CubeUVMinMip and CubeUVMaxMip bound the mip values of the roughness curve.
	CubeUVMinMip = -2
	CubeUVMaxMip = CubeUVMaxMipLevel
)

const (
	recipPi = 0.31830988618
	invLn2  = 1.4426950408889634
	pi      = math32.Pi
	// irradianceScale brightens the roughest atlas lookup used as diffuse irradiance.
	irradianceScale = 1.3
	// favg is the cosine weighted average of Schlick Fresnel used for multiscattering.
	favg = 0.047619
)

// Builder wraps all IBL shading graph generation. It owns a [NodeCache] so
// repeated requests for the same vertex attribute or transform in a build
// return the identical node.
// Provides error handling strategies with panics or error accumulation during graph generation.
// A Builder is not safe for concurrent use.
type Builder struct {
	// NoContractPanic makes contract violations, such as invalid swizzles or
	// arguments of the wrong kind, accumulate as errors returned by [Builder.Err]
	// instead of panicking. Violating calls return a zero node of the expected kind.
	NoContractPanic bool
	accumErrs       []error
	cache           NodeCache
}

// Err returns the contract violations accumulated by the Builder, if any.
func (bld *Builder) Err() error {
	if len(bld.accumErrs) == 0 {
		return nil
	}
	return errors.Join(bld.accumErrs...)
}

// Cache returns the Builder's node cache.
func (bld *Builder) Cache() *NodeCache { return &bld.cache }

func (bld *Builder) contractErrorf(msg string, args ...any) {
	if !bld.NoContractPanic {
		panic(fmt.Sprintf(msg, args...))
	}
	bld.accumErrs = append(bld.accumErrs, fmt.Errorf(msg, args...))
}

// mustKind checks n is of kind k. On failure the violation is reported and false returned.
func (bld *Builder) mustKind(fn string, n *glbuild.Node, k glbuild.Kind) bool {
	if n == nil {
		bld.contractErrorf("%s: nil %s argument", fn, k)
		return false
	} else if n.Kind() != k {
		bld.contractErrorf("%s: got %s argument, want %s", fn, n.Kind(), k)
		return false
	}
	return true
}

func float(v float32) *glbuild.Node { return glbuild.Float(v) }

func vec3(x, y, z float32) *glbuild.Node { return glbuild.Vec3(x, y, z) }

// log2 returns the base-2 logarithm of x.
func log2(x *glbuild.Node) *glbuild.Node { return glbuild.Log(x).MulF(invLn2) }

// exp2 returns 2 raised to x.
func exp2(x *glbuild.Node) *glbuild.Node { return glbuild.Pow(float(2), x) }

// saturate clamps x to [0,1].
func saturate(x *glbuild.Node) *glbuild.Node { return glbuild.Clamp(x, float(0), float(1)) }

// lessThan returns 1 where a < b and 0 otherwise.
func lessThan(a, b *glbuild.Node) *glbuild.Node { return float(1).Sub(glbuild.Step(b, a)) }

// maxComponent returns the greatest lane of vec3 v.
func maxComponent(v *glbuild.Node) *glbuild.Node {
	return glbuild.Max(glbuild.Max(v.X(), v.Y()), v.Z())
}
