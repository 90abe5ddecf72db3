package glpbr

import "github.com/soypat/glpbr/glbuild"

// Swizzle returns a new vector assembled from components of v selected by comps.
// Each character selects a lane of v (x,y,z,w or r,g,b,a) or the constants 0 and 1.
// comps must be 2 to 4 characters long. Scalars may be swizzled using lane x.
func (bld *Builder) Swizzle(v *glbuild.Node, comps string) *glbuild.Node {
	if v == nil || !v.Kind().IsVector() {
		bld.contractErrorf("swizzle of non-vector")
		return glbuild.Zero(glbuild.KindVec4)
	}
	if len(comps) < 2 || len(comps) > 4 {
		bld.contractErrorf("swizzle %q: want 2 to 4 components, got %d", comps, len(comps))
		return glbuild.Zero(glbuild.KindVec4)
	}
	var lanes [4]*glbuild.Node
	for i := 0; i < len(comps); i++ {
		c := comps[i]
		switch c {
		case '0':
			lanes[i] = float(0)
			continue
		case '1':
			lanes[i] = float(1)
			continue
		}
		idx := swizzleLane(c)
		if idx < 0 {
			bld.contractErrorf("swizzle %q: invalid component %q", comps, c)
			return glbuild.Zero(glbuild.VecKind(len(comps)))
		}
		switch {
		case v.Kind() == glbuild.KindFloat && idx == 0:
			lanes[i] = v
		case idx < v.Kind().Lanes() && v.Kind() != glbuild.KindFloat:
			lanes[i] = glbuild.Component(v, idx)
		default:
			bld.contractErrorf("swizzle %q: %s has no component %q", comps, v.Kind(), c)
			return glbuild.Zero(glbuild.VecKind(len(comps)))
		}
	}
	return glbuild.Pack(lanes[:len(comps)]...)
}

func swizzleLane(c byte) int {
	switch c {
	case 'x', 'r':
		return 0
	case 'y', 'g':
		return 1
	case 'z', 'b':
		return 2
	case 'w', 'a':
		return 3
	}
	return -1
}
