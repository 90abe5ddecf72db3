package glbuild_test

import (
	"testing"

	"github.com/soypat/glpbr/glbuild"
	"github.com/stretchr/testify/assert"
)

func TestNodeKinds(t *testing.T) {
	v3 := glbuild.Vec3(1, 2, 3)
	f := glbuild.Float(2)
	for _, test := range []struct {
		n    *glbuild.Node
		want glbuild.Kind
	}{
		{n: glbuild.Add(v3, f), want: glbuild.KindVec3},
		{n: glbuild.Mul(f, v3), want: glbuild.KindVec3},
		{n: glbuild.Step(f, v3), want: glbuild.KindVec3},
		{n: glbuild.Mix(v3, v3, f), want: glbuild.KindVec3},
		{n: glbuild.Mix(f, f, v3), want: glbuild.KindVec3},
		{n: glbuild.Clamp(v3, f, f), want: glbuild.KindVec3},
		{n: glbuild.Pack(v3, f), want: glbuild.KindVec4},
		{n: glbuild.Pack(f, f), want: glbuild.KindVec2},
		{n: glbuild.Dot(v3, v3), want: glbuild.KindFloat},
		{n: glbuild.Length(v3), want: glbuild.KindFloat},
		{n: v3.Z(), want: glbuild.KindFloat},
		{n: glbuild.Cross(v3, v3), want: glbuild.KindVec3},
		{n: glbuild.MulMatVec(glbuild.VertexTransform(glbuild.BuiltinNormal), v3), want: glbuild.KindVec3},
		{n: glbuild.Sample(glbuild.NewTexture("t"), glbuild.Vec2(0, 0)), want: glbuild.KindVec4},
		{n: glbuild.FragmentStage(v3), want: glbuild.KindVec3},
		{n: glbuild.VertexAttribute(glbuild.AttrTangent), want: glbuild.KindVec4},
	} {
		assert.Equal(t, test.want, test.n.Kind(), test.n.String())
	}
}

func TestNodeContractPanics(t *testing.T) {
	v2 := glbuild.Vec2(1, 2)
	v3 := glbuild.Vec3(1, 2, 3)
	v4 := glbuild.Vec4(1, 2, 3, 4)
	for name, fn := range map[string]func(){
		"mismatched add":   func() { glbuild.Add(v2, v3) },
		"pack too wide":    func() { glbuild.Pack(v4, v2) },
		"pack single":      func() { glbuild.Pack(glbuild.Float(1)) },
		"missing lane":     func() { v2.Z() },
		"float component":  func() { glbuild.Float(1).X() },
		"cross vec4":       func() { glbuild.Cross(v4, v4) },
		"matvec mismatch":  func() { glbuild.MulMatVec(glbuild.VertexTransform(glbuild.BuiltinView), v3) },
		"sample non-vec2":  func() { glbuild.Sample(glbuild.NewTexture("t"), v3) },
		"bad texture name": func() { glbuild.NewTexture("1t") },
		"nil argument":     func() { glbuild.Add(nil, v2) },
		"unknown attr":     func() { glbuild.VertexAttribute(glbuild.NumAttributes) },
		"dot of float":     func() { glbuild.Dot(glbuild.Float(1), glbuild.Float(1)) },
	} {
		assert.Panics(t, fn, name)
	}
}

func TestNodeIdentity(t *testing.T) {
	a := glbuild.Float(1)
	b := glbuild.Float(1)
	assert.NotSame(t, a, b)
	assert.Less(t, a.ID(), b.ID())
	sum := glbuild.Add(a, b)
	assert.Same(t, a, sum.Args()[0])
	assert.Greater(t, sum.ID(), b.ID())
	attr, ok := glbuild.VertexAttribute(glbuild.AttrTexCoords).Attribute()
	assert.True(t, ok)
	assert.Equal(t, glbuild.AttrTexCoords, attr)
	_, ok = a.Builtin()
	assert.False(t, ok)
}
