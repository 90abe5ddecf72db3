package glbuild

import (
	"fmt"
	"sync/atomic"
)

// Kind is the GLSL type of the value a [Node] computes.
type Kind uint8

const (
	KindFloat Kind = iota + 1
	KindVec2
	KindVec3
	KindVec4
	KindMat3
	KindMat4
	KindSampler2D
)

// Lanes returns the amount of float components stored by a value of kind k.
// Matrices return their element count and samplers return 0.
func (k Kind) Lanes() int {
	switch k {
	case KindFloat:
		return 1
	case KindVec2:
		return 2
	case KindVec3:
		return 3
	case KindVec4:
		return 4
	case KindMat3:
		return 9
	case KindMat4:
		return 16
	}
	return 0
}

// IsVector returns true for float and vec2..vec4 kinds, which support
// per-lane arithmetic.
func (k Kind) IsVector() bool { return k >= KindFloat && k <= KindVec4 }

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindVec2:
		return "vec2"
	case KindVec3:
		return "vec3"
	case KindVec4:
		return "vec4"
	case KindMat3:
		return "mat3"
	case KindMat4:
		return "mat4"
	case KindSampler2D:
		return "sampler2D"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// VecKind returns the float/vector kind with the given amount of lanes. Panics if lanes not in 1..4.
func VecKind(lanes int) Kind {
	if lanes < 1 || lanes > 4 {
		panic(fmt.Sprintf("glbuild: no vector kind with %d lanes", lanes))
	}
	return KindFloat + Kind(lanes-1)
}

// Op identifies the primitive operation a [Node] performs.
type Op uint8

const (
	OpConst Op = iota + 1
	OpAttribute
	OpUniform
	OpTexture
	OpPack
	OpComponent
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpStep
	OpMix
	OpClamp
	OpMin
	OpMax
	OpAbs
	OpMod
	OpFloor
	OpPow
	OpLog
	OpDot
	OpCross
	OpNormalize
	OpReflect
	OpLength
	OpDFdx
	OpDFdy
	OpSample
	OpMulMatVec
	OpMulVecMat
	OpFragment
)

var opNames = [...]string{
	OpConst:     "const",
	OpAttribute: "attribute",
	OpUniform:   "uniform",
	OpTexture:   "texture",
	OpPack:      "pack",
	OpComponent: "component",
	OpAdd:       "add",
	OpSub:       "sub",
	OpMul:       "mul",
	OpDiv:       "div",
	OpStep:      "step",
	OpMix:       "mix",
	OpClamp:     "clamp",
	OpMin:       "min",
	OpMax:       "max",
	OpAbs:       "abs",
	OpMod:       "mod",
	OpFloor:     "floor",
	OpPow:       "pow",
	OpLog:       "log",
	OpDot:       "dot",
	OpCross:     "cross",
	OpNormalize: "normalize",
	OpReflect:   "reflect",
	OpLength:    "length",
	OpDFdx:      "dFdx",
	OpDFdy:      "dFdy",
	OpSample:    "texture",
	OpMulMatVec: "matvec",
	OpMulVecMat: "vecmat",
	OpFragment:  "fragment",
}

func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", uint8(op))
}

// Node is an immutable handle to a pure computation. Nodes are shared
// freely between the graph positions that use them: composing a node with
// an operation always yields a new node and never modifies its arguments.
// Node identity is pointer identity.
type Node struct {
	op    Op
	kind  Kind
	lane  uint8
	value [4]float32
	name  string
	args  []*Node
	id    uint64
}

var lastID atomic.Uint64

func newNode(op Op, kind Kind, args ...*Node) *Node {
	for i, a := range args {
		if a == nil {
			panic(fmt.Sprintf("glbuild: nil argument %d to %s", i, op))
		}
	}
	if len(args) > 0 {
		args = append([]*Node(nil), args...) // Callers may reuse variadic slices.
	}
	return &Node{op: op, kind: kind, args: args, id: lastID.Add(1)}
}

// Op returns the operation performed by the node.
func (n *Node) Op() Op { return n.op }

// Kind returns the GLSL type of the node's value.
func (n *Node) Kind() Kind { return n.kind }

// Args returns the node's operands. The returned slice must not be modified.
func (n *Node) Args() []*Node { return n.args }

// Value returns the lanes of a constant node.
func (n *Node) Value() [4]float32 { return n.value }

// Lane returns the selected lane of a component node.
func (n *Node) Lane() int { return int(n.lane) }

// Name returns the GLSL identifier of attribute, uniform and texture nodes.
func (n *Node) Name() string { return n.name }

// ID returns a process-unique identifier assigned at node creation. IDs
// increase monotonically so children always have smaller IDs than their parents.
func (n *Node) ID() uint64 { return n.id }

func (n *Node) String() string {
	switch n.op {
	case OpConst:
		return fmt.Sprintf("%s%v", n.kind, n.value[:n.kind.Lanes()])
	case OpAttribute, OpUniform, OpTexture:
		return n.kind.String() + " " + n.name
	case OpComponent:
		return fmt.Sprintf("%s.%c", n.op, "xyzw"[n.lane])
	}
	return fmt.Sprintf("%s %s#%d", n.kind, n.op, n.id)
}

// Float returns a scalar constant node.
func Float(v float32) *Node {
	n := newNode(OpConst, KindFloat)
	n.value[0] = v
	return n
}

// Vec2 returns a vec2 constant node.
func Vec2(x, y float32) *Node {
	n := newNode(OpConst, KindVec2)
	n.value = [4]float32{x, y}
	return n
}

// Vec3 returns a vec3 constant node.
func Vec3(x, y, z float32) *Node {
	n := newNode(OpConst, KindVec3)
	n.value = [4]float32{x, y, z}
	return n
}

// Vec4 returns a vec4 constant node.
func Vec4(x, y, z, w float32) *Node {
	n := newNode(OpConst, KindVec4)
	n.value = [4]float32{x, y, z, w}
	return n
}

// Pack concatenates the lanes of scalar and vector arguments into a single vector,
// i.e: Pack(vec3, float) is a vec4. The total amount of lanes must be 2, 3 or 4.
func Pack(args ...*Node) *Node {
	lanes := 0
	for _, a := range args {
		mustVector(OpPack, a)
		lanes += a.kind.Lanes()
	}
	if lanes < 2 || lanes > 4 {
		panic(fmt.Sprintf("glbuild: pack of %d lanes, want 2..4", lanes))
	}
	return newNode(OpPack, VecKind(lanes), args...)
}

// Component selects a single lane of a vector. Panics if the vector has no such lane.
func Component(v *Node, lane int) *Node {
	mustVector(OpComponent, v)
	if lane < 0 || lane >= v.kind.Lanes() || v.kind == KindFloat {
		panic(fmt.Sprintf("glbuild: %s has no lane %d", v.kind, lane))
	}
	n := newNode(OpComponent, KindFloat, v)
	n.lane = uint8(lane)
	return n
}

func (n *Node) X() *Node { return Component(n, 0) }
func (n *Node) Y() *Node { return Component(n, 1) }
func (n *Node) Z() *Node { return Component(n, 2) }
func (n *Node) W() *Node { return Component(n, 3) }

// Add returns n+b. Scalars broadcast over vectors.
func (n *Node) Add(b *Node) *Node { return Add(n, b) }

// Sub returns n-b. Scalars broadcast over vectors.
func (n *Node) Sub(b *Node) *Node { return Sub(n, b) }

// Mul returns the lane-wise product n*b. Scalars broadcast over vectors.
func (n *Node) Mul(b *Node) *Node { return Mul(n, b) }

// Div returns the lane-wise quotient n/b. Scalars broadcast over vectors.
func (n *Node) Div(b *Node) *Node { return Div(n, b) }

func (n *Node) AddF(f float32) *Node { return Add(n, Float(f)) }
func (n *Node) SubF(f float32) *Node { return Sub(n, Float(f)) }
func (n *Node) MulF(f float32) *Node { return Mul(n, Float(f)) }
func (n *Node) DivF(f float32) *Node { return Div(n, Float(f)) }

func Add(a, b *Node) *Node { return newNode(OpAdd, broadcast(OpAdd, a, b), a, b) }
func Sub(a, b *Node) *Node { return newNode(OpSub, broadcast(OpSub, a, b), a, b) }
func Mul(a, b *Node) *Node { return newNode(OpMul, broadcast(OpMul, a, b), a, b) }
func Div(a, b *Node) *Node { return newNode(OpDiv, broadcast(OpDiv, a, b), a, b) }

// Step returns 0 where x < edge and 1 otherwise, lane-wise.
func Step(edge, x *Node) *Node { return newNode(OpStep, broadcast(OpStep, edge, x), edge, x) }

// Mix linearly interpolates a and b by t: a*(1-t) + b*t.
func Mix(a, b, t *Node) *Node {
	mustVector(OpMix, t)
	k := broadcastKind(OpMix, broadcast(OpMix, a, b), t.kind)
	return newNode(OpMix, k, a, b, t)
}

// Clamp limits x lane-wise to [lo, hi].
func Clamp(x, lo, hi *Node) *Node {
	mustVector(OpClamp, hi)
	k := broadcastKind(OpClamp, broadcast(OpClamp, x, lo), hi.kind)
	return newNode(OpClamp, k, x, lo, hi)
}

func Min(a, b *Node) *Node { return newNode(OpMin, broadcast(OpMin, a, b), a, b) }
func Max(a, b *Node) *Node { return newNode(OpMax, broadcast(OpMax, a, b), a, b) }

// Mod returns a - b*floor(a/b), lane-wise.
func Mod(a, b *Node) *Node { return newNode(OpMod, broadcast(OpMod, a, b), a, b) }

// Pow returns base raised to exp, lane-wise.
func Pow(base, exp *Node) *Node { return newNode(OpPow, broadcast(OpPow, base, exp), base, exp) }

func Abs(a *Node) *Node   { return unary(OpAbs, a) }
func Floor(a *Node) *Node { return unary(OpFloor, a) }

// Log returns the natural logarithm, lane-wise.
func Log(a *Node) *Node { return unary(OpLog, a) }

func Normalize(a *Node) *Node { return unary(OpNormalize, a) }

// DFdx returns the screen-space derivative of a in x. Only valid in fragment stage.
func DFdx(a *Node) *Node { return unary(OpDFdx, a) }

// DFdy returns the screen-space derivative of a in y. Only valid in fragment stage.
func DFdy(a *Node) *Node { return unary(OpDFdy, a) }

func Length(a *Node) *Node {
	mustVector(OpLength, a)
	return newNode(OpLength, KindFloat, a)
}

func Dot(a, b *Node) *Node {
	mustSameVector(OpDot, a, b)
	return newNode(OpDot, KindFloat, a, b)
}

func Cross(a, b *Node) *Node {
	if a.kind != KindVec3 || b.kind != KindVec3 {
		panic(fmt.Sprintf("glbuild: cross of %s and %s, want vec3", a.kind, b.kind))
	}
	return newNode(OpCross, KindVec3, a, b)
}

// Reflect returns the reflection of incident vector i about the normal nrm: i - 2*dot(nrm,i)*nrm.
func Reflect(i, nrm *Node) *Node {
	mustSameVector(OpReflect, i, nrm)
	return newNode(OpReflect, i.kind, i, nrm)
}

// MulMatVec returns the column vector product m*v.
func MulMatVec(m, v *Node) *Node {
	mustMatVec(OpMulMatVec, m, v)
	return newNode(OpMulMatVec, v.kind, m, v)
}

// MulVecMat returns the row vector product v*m, equivalent to transpose(m)*v.
func MulVecMat(v, m *Node) *Node {
	mustMatVec(OpMulVecMat, m, v)
	return newNode(OpMulVecMat, v.kind, v, m)
}

// FragmentStage promotes a vertex stage value to the fragment stage (a varying).
func FragmentStage(a *Node) *Node {
	mustVector(OpFragment, a)
	return newNode(OpFragment, a.kind, a)
}

// NewTexture returns a sampler2D node identified by the GLSL identifier name.
func NewTexture(name string) *Node {
	mustIdent(name)
	n := newNode(OpTexture, KindSampler2D)
	n.name = name
	return n
}

// Sample samples the texture at the vec2 uv coordinate and returns a vec4.
func Sample(tex, uv *Node) *Node {
	if tex.kind != KindSampler2D {
		panic(fmt.Sprintf("glbuild: sampling %s, want sampler2D", tex.kind))
	} else if uv.kind != KindVec2 {
		panic(fmt.Sprintf("glbuild: texture coordinate of kind %s, want vec2", uv.kind))
	}
	return newNode(OpSample, KindVec4, tex, uv)
}

// Zero returns a constant zero of kind k.
func Zero(k Kind) *Node {
	if !k.IsVector() {
		panic("glbuild: zero of non-vector kind " + k.String())
	}
	n := newNode(OpConst, k)
	return n
}

func unary(op Op, a *Node) *Node {
	mustVector(op, a)
	return newNode(op, a.kind, a)
}

// broadcast returns the resulting kind of a lane-wise binary operation.
// Operands must share kind or one of them must be a scalar.
func broadcast(op Op, a, b *Node) Kind {
	mustVector(op, a)
	mustVector(op, b)
	return broadcastKind(op, a.kind, b.kind)
}

func broadcastKind(op Op, a, b Kind) Kind {
	switch {
	case a == b:
		return a
	case a == KindFloat:
		return b
	case b == KindFloat:
		return a
	}
	panic(fmt.Sprintf("glbuild: %s of mismatched kinds %s and %s", op, a, b))
}

func mustVector(op Op, a *Node) {
	if a == nil {
		panic(fmt.Sprintf("glbuild: nil argument to %s", op))
	} else if !a.kind.IsVector() {
		panic(fmt.Sprintf("glbuild: %s of non-vector kind %s", op, a.kind))
	}
}

func mustSameVector(op Op, a, b *Node) {
	mustVector(op, a)
	mustVector(op, b)
	if a.kind != b.kind || a.kind == KindFloat {
		panic(fmt.Sprintf("glbuild: %s of %s and %s, want matching vectors", op, a.kind, b.kind))
	}
}

func mustMatVec(op Op, m, v *Node) {
	ok := (m.kind == KindMat4 && v.kind == KindVec4) || (m.kind == KindMat3 && v.kind == KindVec3)
	if !ok {
		panic(fmt.Sprintf("glbuild: %s of %s and %s", op, m.kind, v.kind))
	}
}

func mustIdent(name string) {
	if name == "" {
		panic("glbuild: empty identifier")
	}
	for i, c := range name {
		alpha := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if !alpha && (i == 0 || c < '0' || c > '9') {
			panic(fmt.Sprintf("glbuild: invalid GLSL identifier %q", name))
		}
	}
}
