package gleval

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glpbr/glbuild"
)

// Value is the result of evaluating a [glbuild.Node]. Vectors occupy the first
// lanes of V, matrices are stored in column major order.
type Value struct {
	Kind glbuild.Kind
	V    [16]float32
}

// Float returns the first lane of the value.
func (v Value) Float() float32 { return v.V[0] }

// Vec3 returns the first three lanes of the value.
func (v Value) Vec3() ms3.Vec { return ms3.Vec{X: v.V[0], Y: v.V[1], Z: v.V[2]} }

// Vec4 returns the first four lanes of the value.
func (v Value) Vec4() [4]float32 { return [4]float32{v.V[0], v.V[1], v.V[2], v.V[3]} }

// Lanes returns the used lanes of the value.
func (v Value) Lanes() []float32 { return v.V[:v.Kind.Lanes()] }

// Fragment holds the interpolated vertex attributes of a single fragment and,
// optionally, the neighbouring fragments one pixel to the right (DX) and one
// pixel up (DY) used to approximate screen space derivatives.
type Fragment struct {
	Attrs [glbuild.NumAttributes][4]float32
	DX    *Fragment
	DY    *Fragment
}

// SetAttribute stores the value of vertex attribute a.
func (f *Fragment) SetAttribute(a glbuild.Attribute, v ...float32) {
	if a >= glbuild.NumAttributes || len(v) > 4 {
		panic("gleval: bad attribute")
	}
	f.Attrs[a] = [4]float32{}
	copy(f.Attrs[a][:], v)
}

// Bindings holds the uniform and texture values of a shader invocation.
// Bindings may be shared by many [Evaluator]s once configured.
type Bindings struct {
	transforms [glbuild.NumBuiltins][16]float32
	set        [glbuild.NumBuiltins]bool
	textures   map[string]Sampler
}

// SetTransform sets the column major matrix value of a builtin transform uniform.
func (b *Bindings) SetTransform(id glbuild.Builtin, m []float32) error {
	if id >= glbuild.NumBuiltins {
		return fmt.Errorf("unknown builtin %d", id)
	}
	if len(m) != id.Kind().Lanes() {
		return fmt.Errorf("%s wants %d values, got %d", id, id.Kind().Lanes(), len(m))
	}
	b.transforms[id] = [16]float32{}
	copy(b.transforms[id][:], m)
	b.set[id] = true
	return nil
}

// SetTexture binds a sampler to the texture identified by name.
func (b *Bindings) SetTexture(name string, s Sampler) {
	if b.textures == nil {
		b.textures = make(map[string]Sampler)
	}
	b.textures[name] = s
}

// Identity4 returns the column major 4x4 identity matrix.
func Identity4() []float32 {
	return []float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
}

// Identity3 returns the 3x3 identity matrix.
func Identity3() []float32 {
	return []float32{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

var (
	errNilRoot              = errors.New("nil root node")
	errEmptyBuffers         = errors.New("empty buffers")
	errMismatchBufferLength = errors.New("fragment and result buffer length mismatch")
)

type memoKey struct {
	frag *Fragment
	node *glbuild.Node
}

// Evaluator evaluates expression graphs on the CPU. Evaluation results are
// memoized per fragment so shared subexpressions are evaluated once.
// An Evaluator is not safe for concurrent use; use one per goroutine.
//
// Mix with a blend factor of exactly 0 or 1 returns the selected operand even
// if the other is NaN or infinite, whereas GLSL mix yields NaN. Graphs meant for
// the GPU should keep discarded operands finite.
type Evaluator struct {
	b     *Bindings
	memo  map[memoKey]Value
	evals uint64
	hits  uint64
}

// NewEvaluator returns an evaluator reading uniforms and textures from b.
func NewEvaluator(b *Bindings) *Evaluator {
	if b == nil {
		b = new(Bindings)
	}
	return &Evaluator{b: b, memo: make(map[memoKey]Value)}
}

// Evaluate evaluates root for a single fragment.
func (e *Evaluator) Evaluate(root *glbuild.Node, frag *Fragment) (Value, error) {
	if root == nil {
		return Value{}, errNilRoot
	} else if frag == nil {
		return Value{}, errors.New("nil fragment")
	}
	clear(e.memo)
	return e.eval(root, frag)
}

// EvaluateFragments evaluates root over frags storing results in dst.
// frags and dst must be of same length.
func (e *Evaluator) EvaluateFragments(root *glbuild.Node, frags []Fragment, dst []Value) (err error) {
	if len(frags) != len(dst) {
		return errMismatchBufferLength
	} else if len(frags) == 0 {
		return errEmptyBuffers
	}
	for i := range frags {
		dst[i], err = e.Evaluate(root, &frags[i])
		if err != nil {
			return fmt.Errorf("fragment %d: %w", i, err)
		}
	}
	return nil
}

// Evaluations returns total node evaluations performed during the evaluator's lifetime, including memoized.
func (e *Evaluator) Evaluations() uint64 { return e.evals }

// CacheHits returns total amount of memoized node evaluations.
func (e *Evaluator) CacheHits() uint64 { return e.hits }

func (e *Evaluator) eval(n *glbuild.Node, frag *Fragment) (Value, error) {
	e.evals++
	key := memoKey{frag: frag, node: n}
	if v, ok := e.memo[key]; ok {
		e.hits++
		return v, nil
	}
	v, err := e.compute(n, frag)
	if err != nil {
		return v, err
	}
	e.memo[key] = v
	return v, nil
}

func (e *Evaluator) compute(n *glbuild.Node, frag *Fragment) (Value, error) {
	out := Value{Kind: n.Kind()}
	switch n.Op() {
	case glbuild.OpConst:
		c := n.Value()
		copy(out.V[:], c[:])
		return out, nil
	case glbuild.OpAttribute:
		a, _ := n.Attribute()
		copy(out.V[:], frag.Attrs[a][:])
		return out, nil
	case glbuild.OpUniform:
		id, _ := n.Builtin()
		if !e.b.set[id] {
			return out, fmt.Errorf("uniform %s not set", id)
		}
		out.V = e.b.transforms[id]
		return out, nil
	case glbuild.OpTexture:
		if _, ok := e.b.textures[n.Name()]; !ok {
			return out, fmt.Errorf("texture %q not bound", n.Name())
		}
		return out, nil
	case glbuild.OpDFdx, glbuild.OpDFdy:
		return e.derivative(n, frag)
	}

	var argbuf [3]Value
	args := argbuf[:0]
	for _, a := range n.Args() {
		v, err := e.eval(a, frag)
		if err != nil {
			return out, err
		}
		args = append(args, v)
	}
	lanes := n.Kind().Lanes()
	switch n.Op() {
	case glbuild.OpFragment:
		return args[0], nil
	case glbuild.OpComponent:
		out.V[0] = args[0].V[n.Lane()]
	case glbuild.OpPack:
		i := 0
		for _, a := range args {
			i += copy(out.V[i:], a.Lanes())
		}
	case glbuild.OpAdd, glbuild.OpSub, glbuild.OpMul, glbuild.OpDiv,
		glbuild.OpStep, glbuild.OpMin, glbuild.OpMax, glbuild.OpMod, glbuild.OpPow:
		op := n.Op()
		for i := 0; i < lanes; i++ {
			out.V[i] = binop(op, lane(args[0], i), lane(args[1], i))
		}
	case glbuild.OpMix:
		for i := 0; i < lanes; i++ {
			out.V[i] = mix(lane(args[0], i), lane(args[1], i), lane(args[2], i))
		}
	case glbuild.OpClamp:
		for i := 0; i < lanes; i++ {
			out.V[i] = math32.Min(math32.Max(lane(args[0], i), lane(args[1], i)), lane(args[2], i))
		}
	case glbuild.OpAbs:
		for i := 0; i < lanes; i++ {
			out.V[i] = math32.Abs(args[0].V[i])
		}
	case glbuild.OpFloor:
		for i := 0; i < lanes; i++ {
			out.V[i] = math32.Floor(args[0].V[i])
		}
	case glbuild.OpLog:
		for i := 0; i < lanes; i++ {
			out.V[i] = math32.Log(args[0].V[i])
		}
	case glbuild.OpLength:
		out.V[0] = math32.Sqrt(dot(args[0], args[0]))
	case glbuild.OpNormalize:
		inv := 1 / math32.Sqrt(dot(args[0], args[0]))
		for i := 0; i < lanes; i++ {
			out.V[i] = args[0].V[i] * inv
		}
	case glbuild.OpDot:
		out.V[0] = dot(args[0], args[1])
	case glbuild.OpCross:
		a, b := args[0].V, args[1].V
		out.V[0] = a[1]*b[2] - a[2]*b[1]
		out.V[1] = a[2]*b[0] - a[0]*b[2]
		out.V[2] = a[0]*b[1] - a[1]*b[0]
	case glbuild.OpReflect:
		i, nrm := args[0], args[1]
		d := 2 * dot(nrm, i)
		for k := 0; k < lanes; k++ {
			out.V[k] = i.V[k] - d*nrm.V[k]
		}
	case glbuild.OpMulMatVec:
		m, v := args[0], args[1]
		for r := 0; r < lanes; r++ {
			var sum float32
			for c := 0; c < lanes; c++ {
				sum += m.V[c*lanes+r] * v.V[c]
			}
			out.V[r] = sum
		}
	case glbuild.OpMulVecMat:
		v, m := args[0], args[1]
		for c := 0; c < lanes; c++ {
			var sum float32
			for r := 0; r < lanes; r++ {
				sum += v.V[r] * m.V[c*lanes+r]
			}
			out.V[c] = sum
		}
	case glbuild.OpSample:
		s := e.b.textures[n.Args()[0].Name()]
		rgba := s.Sample(args[1].V[0], args[1].V[1])
		copy(out.V[:], rgba[:])
	default:
		return out, fmt.Errorf("unsupported operation %s", n.Op())
	}
	return out, nil
}

// derivative approximates dFdx and dFdy with forward differences between a
// fragment and its neighbour. Fragments without a neighbour have zero derivative.
func (e *Evaluator) derivative(n *glbuild.Node, frag *Fragment) (Value, error) {
	out := Value{Kind: n.Kind()}
	neighbour := frag.DX
	if n.Op() == glbuild.OpDFdy {
		neighbour = frag.DY
	}
	if neighbour == nil {
		return out, nil
	}
	arg := n.Args()[0]
	v0, err := e.eval(arg, frag)
	if err != nil {
		return out, err
	}
	v1, err := e.eval(arg, neighbour)
	if err != nil {
		return out, err
	}
	for i := range v0.Lanes() {
		out.V[i] = v1.V[i] - v0.V[i]
	}
	return out, nil
}

// lane returns lane i of v, broadcasting scalars.
func lane(v Value, i int) float32 {
	if v.Kind == glbuild.KindFloat {
		return v.V[0]
	}
	return v.V[i]
}

func binop(op glbuild.Op, a, b float32) float32 {
	switch op {
	case glbuild.OpAdd:
		return a + b
	case glbuild.OpSub:
		return a - b
	case glbuild.OpMul:
		return a * b
	case glbuild.OpDiv:
		return a / b
	case glbuild.OpStep:
		if b < a {
			return 0
		}
		return 1
	case glbuild.OpMin:
		return math32.Min(a, b)
	case glbuild.OpMax:
		return math32.Max(a, b)
	case glbuild.OpMod:
		return a - b*math32.Floor(a/b)
	case glbuild.OpPow:
		return math32.Pow(a, b)
	}
	panic("unreachable")
}

// mix returns a*(1-t)+b*t. Blends at exactly t=0 and t=1 return the selected
// operand so non-finite values in the discarded operand do not propagate.
// GLSL mix does propagate them, see [Evaluator].
func mix(a, b, t float32) float32 {
	switch t {
	case 0:
		return a
	case 1:
		return b
	}
	return a*(1-t) + b*t
}

func dot(a, b Value) (sum float32) {
	for i := range a.Lanes() {
		sum += a.V[i] * b.V[i]
	}
	return sum
}
