package glpbr

import "github.com/soypat/glpbr/glbuild"

// VertexOutput holds the view space vectors computed per vertex.
type VertexOutput struct {
	Normal    *glbuild.Node // vec3 view space normal, normalized.
	Tangent   *glbuild.Node // vec3 view space tangent, normalized.
	Bitangent *glbuild.Node // vec3 view space bitangent with tangent handedness applied.
	// ViewPosition is the vec4 negated view space position: the vector from
	// the vertex to the eye with w=-1.
	ViewPosition *glbuild.Node
	// ClipPosition is the vec4 clip space position, projection·modelView·position.
	ClipPosition *glbuild.Node
}

// VertexStage transforms the object space normal, tangent and position
// attributes into view space.
func (bld *Builder) VertexStage() VertexOutput {
	c := &bld.cache
	mv := c.Transform(glbuild.BuiltinModelView)
	normalMat := c.Transform(glbuild.BuiltinNormal)
	tangentAttr := c.Attribute(glbuild.AttrTangent)

	normal := glbuild.Normalize(glbuild.MulMatVec(normalMat, c.Attribute(glbuild.AttrNormal)))
	tangent4 := glbuild.MulMatVec(mv, glbuild.Pack(bld.Swizzle(tangentAttr, "xyz"), float(0)))
	tangent := glbuild.Normalize(bld.Swizzle(tangent4, "xyz"))
	bitangent := glbuild.Normalize(glbuild.Cross(normal, tangent).Mul(tangentAttr.W()))
	mvPosition := glbuild.MulMatVec(mv, glbuild.Pack(c.Attribute(glbuild.AttrPosition), float(1)))
	return VertexOutput{
		Normal:       normal,
		Tangent:      tangent,
		Bitangent:    bitangent,
		ViewPosition: mvPosition.MulF(-1),
		ClipPosition: glbuild.MulMatVec(c.Transform(glbuild.BuiltinProjection), mvPosition),
	}
}

// Mat3Rows is a 3x3 matrix stored as three vec3 row nodes.
type Mat3Rows struct {
	R0, R1, R2 *glbuild.Node
}

// TBN returns the tangent space basis with rows tangent, bitangent and normal.
func TBN(tangent, bitangent, normal *glbuild.Node) Mat3Rows {
	return Mat3Rows{R0: tangent, R1: bitangent, R2: normal}
}

// MulVec returns the row vector product v·M, that is
// v.x*R0 + v.y*R1 + v.z*R2.
func (m Mat3Rows) MulVec(v *glbuild.Node) *glbuild.Node {
	vx, vy, vz := v.X(), v.Y(), v.Z()
	lane := func(i int) *glbuild.Node {
		return vx.Mul(glbuild.Component(m.R0, i)).
			Add(vy.Mul(glbuild.Component(m.R1, i))).
			Add(vz.Mul(glbuild.Component(m.R2, i)))
	}
	return glbuild.Pack(lane(0), lane(1), lane(2))
}

// PerturbNormal rotates the tangent space normal encoded in the rgb lanes of
// the vec4 normal map sample into the space of basis tbn. The result is normalized.
func (bld *Builder) PerturbNormal(tbn Mat3Rows, normalMap *glbuild.Node) *glbuild.Node {
	if !bld.mustKind("PerturbNormal", normalMap, glbuild.KindVec4) {
		return glbuild.Zero(glbuild.KindVec3)
	}
	mapN := bld.Swizzle(normalMap, "rgb").MulF(2).SubF(1)
	return glbuild.Normalize(tbn.MulVec(mapN))
}
