package glbuild

import "fmt"

// Attribute is a semantic identifier naming a per-vertex input.
type Attribute uint8

const (
	AttrPosition Attribute = iota // vec3 object space position.
	AttrNormal                    // vec3 object space normal.
	AttrTangent                   // vec4 object space tangent, w is handedness.
	AttrTexCoords                 // vec2 texture coordinates.
	NumAttributes
)

// Builtin is a semantic identifier naming a built-in transform uniform.
type Builtin uint8

const (
	BuiltinModelView  Builtin = iota // mat4 model-view matrix.
	BuiltinNormal                    // mat3 normal matrix, inverse transpose of model-view.
	BuiltinView                      // mat4 view matrix.
	BuiltinProjection                // mat4 projection matrix.
	NumBuiltins
)

var attributeDefs = [NumAttributes]struct {
	ident string
	kind  Kind
}{
	AttrPosition:  {"aPosition", KindVec3},
	AttrNormal:    {"aNormal", KindVec3},
	AttrTangent:   {"aTangent", KindVec4},
	AttrTexCoords: {"aTexCoords", KindVec2},
}

var builtinDefs = [NumBuiltins]struct {
	ident string
	kind  Kind
}{
	BuiltinModelView:  {"uModelView", KindMat4},
	BuiltinNormal:     {"uNormalMatrix", KindMat3},
	BuiltinView:       {"uView", KindMat4},
	BuiltinProjection: {"uProjection", KindMat4},
}

// Ident returns the GLSL identifier of the attribute.
func (a Attribute) Ident() string {
	if a >= NumAttributes {
		return fmt.Sprintf("Attribute(%d)", uint8(a))
	}
	return attributeDefs[a].ident
}

// Kind returns the type of the attribute's value.
func (a Attribute) Kind() Kind {
	if a >= NumAttributes {
		return 0
	}
	return attributeDefs[a].kind
}

func (a Attribute) String() string { return a.Ident() }

// Ident returns the GLSL identifier of the builtin uniform.
func (b Builtin) Ident() string {
	if b >= NumBuiltins {
		return fmt.Sprintf("Builtin(%d)", uint8(b))
	}
	return builtinDefs[b].ident
}

// Kind returns the type of the builtin uniform's value.
func (b Builtin) Kind() Kind {
	if b >= NumBuiltins {
		return 0
	}
	return builtinDefs[b].kind
}

func (b Builtin) String() string { return b.Ident() }

// VertexAttribute returns a new node referencing the vertex attribute a.
// Panics if a is not a known attribute.
func VertexAttribute(a Attribute) *Node {
	if a >= NumAttributes {
		panic(fmt.Sprintf("glbuild: unknown vertex attribute %d", uint8(a)))
	}
	n := newNode(OpAttribute, a.Kind())
	n.name = a.Ident()
	n.lane = uint8(a)
	return n
}

// VertexTransform returns a new node referencing the builtin transform uniform b.
// Panics if b is not a known builtin.
func VertexTransform(b Builtin) *Node {
	if b >= NumBuiltins {
		panic(fmt.Sprintf("glbuild: unknown builtin uniform %d", uint8(b)))
	}
	n := newNode(OpUniform, b.Kind())
	n.name = b.Ident()
	n.lane = uint8(b)
	return n
}

// Attribute returns the semantic identifier of an attribute node.
func (n *Node) Attribute() (Attribute, bool) {
	return Attribute(n.lane), n.op == OpAttribute
}

// Builtin returns the semantic identifier of a builtin uniform node.
func (n *Node) Builtin() (Builtin, bool) {
	return Builtin(n.lane), n.op == OpUniform
}
