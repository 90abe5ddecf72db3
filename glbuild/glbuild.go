package glbuild

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

const VersionStr = "#version 430\n"

// Programmer implements GLSL generation logic for [Node] graphs.
// A Programmer reuses its buffers between calls and is not safe for concurrent use.
type Programmer struct {
	scratch  []byte
	nodes    []*Node
	vnodes   []*Node
	locals   map[*Node]int
	varyings map[*Node]string
	visited  map[*Node]struct{}
	stack    []dfsFrame
}

// NewDefaultProgrammer returns a Programmer with reasonable default buffer sizes.
func NewDefaultProgrammer() *Programmer {
	return &Programmer{
		scratch:  make([]byte, 0, 4096),
		nodes:    make([]*Node, 0, 512),
		locals:   make(map[*Node]int),
		varyings: make(map[*Node]string),
		visited:  make(map[*Node]struct{}),
	}
}

type dfsFrame struct {
	n    *Node
	next int
}

// AppendNodes appends root and all of its descendants to dst in dependency
// order: a node is appended after all of its arguments. Shared nodes are appended once.
func AppendNodes(dst []*Node, root *Node) []*Node {
	var p Programmer
	p.visited = make(map[*Node]struct{})
	return p.appendNodes(dst, []*Node{root}, nil)
}

// CountNodes returns the amount of distinct nodes in the graph rooted at root.
func CountNodes(root *Node) int {
	return len(AppendNodes(nil, root))
}

// appendNodes performs an iterative post-order DFS over roots. Nodes for which
// stop returns true are appended but their arguments are not traversed.
func (p *Programmer) appendNodes(dst []*Node, roots []*Node, stop func(*Node) bool) []*Node {
	clear(p.visited)
	for _, root := range roots {
		if root == nil {
			continue
		}
		if _, ok := p.visited[root]; ok {
			continue
		}
		p.visited[root] = struct{}{}
		p.stack = append(p.stack[:0], dfsFrame{n: root})
		for len(p.stack) > 0 {
			top := &p.stack[len(p.stack)-1]
			var args []*Node
			if stop == nil || !stop(top.n) {
				args = top.n.args
			}
			if top.next < len(args) {
				child := args[top.next]
				top.next++
				if _, ok := p.visited[child]; !ok {
					p.visited[child] = struct{}{}
					p.stack = append(p.stack, dfsFrame{n: child})
				}
				continue
			}
			dst = append(dst, top.n)
			p.stack = p.stack[:len(p.stack)-1]
		}
	}
	return dst
}

// WriteFragmentFunc writes the declarations needed by the graph rooted at root
// followed by a GLSL function "vec4 <fnName>()" that evaluates it. Fragment stage
// promotions are transparent: the whole graph is evaluated inside the function.
// Attributes are declared as global variables the caller must assign before calling the function.
func (p *Programmer) WriteFragmentFunc(w io.Writer, fnName string, root *Node) (int, error) {
	if root == nil {
		return 0, errors.New("nil root node")
	} else if root.kind != KindVec4 {
		return 0, fmt.Errorf("fragment function root must be vec4, got %s", root.kind)
	} else if err := checkIdent(fnName); err != nil {
		return 0, err
	}
	p.reset()
	p.nodes = p.appendNodes(p.nodes[:0], []*Node{root}, nil)
	b := p.scratch[:0]
	b, err := appendDecls(b, p.nodes, "", false)
	if err != nil {
		return 0, err
	}
	b = append(b, "\nvec4 "...)
	b = append(b, fnName...)
	b = append(b, "() {\n"...)
	b = p.appendLocals(b, p.nodes)
	b = append(b, "\treturn "...)
	b = p.appendRef(b, root)
	b = append(b, ";\n}\n"...)
	p.scratch = b
	return w.Write(b)
}

// WriteStages writes a vertex and fragment shader pair. The vertex shader writes
// clipPos to gl_Position and computes every value promoted with [FragmentStage],
// which the fragment shader reads as varyings. Attributes read directly by the
// fragment stage are passed through as varyings. The fragment shader writes color to fragColor.
func (p *Programmer) WriteStages(vert, frag io.Writer, color, clipPos *Node) error {
	if color == nil || clipPos == nil {
		return errors.New("nil color or clip position node")
	} else if color.kind != KindVec4 || clipPos.kind != KindVec4 {
		return fmt.Errorf("want vec4 color and clip position, got %s and %s", color.kind, clipPos.kind)
	}
	p.reset()
	// Fragment stage traversal stops at varyings.
	isVarying := func(n *Node) bool { return n.op == OpFragment || n.op == OpAttribute }
	p.nodes = p.appendNodes(p.nodes[:0], []*Node{color}, isVarying)
	type varying struct {
		name string
		kind Kind
		src  *Node
	}
	var varyings []varying
	seenAttr := make(map[string]bool)
	vroots := []*Node{clipPos}
	for _, n := range p.nodes {
		switch n.op {
		case OpFragment:
			v := varying{name: "v" + strconv.Itoa(len(varyings)), kind: n.kind, src: n.args[0]}
			p.varyings[n] = v.name
			varyings = append(varyings, v)
			vroots = append(vroots, v.src)
		case OpAttribute:
			name := "v_" + n.name
			p.varyings[n] = name
			if !seenAttr[name] {
				seenAttr[name] = true
				varyings = append(varyings, varying{name: name, kind: n.kind, src: n})
				vroots = append(vroots, n)
			}
		}
	}
	p.vnodes = p.appendNodes(p.vnodes[:0], vroots, nil)
	for _, n := range p.vnodes {
		switch n.op {
		case OpDFdx, OpDFdy, OpSample:
			return fmt.Errorf("%s not supported in vertex stage", n.op)
		case OpFragment:
			return errors.New("nested fragment stage promotion in vertex stage")
		}
	}

	// Vertex shader.
	b := append(p.scratch[:0], VersionStr...)
	b, err := appendDecls(b, p.vnodes, "in", false)
	if err != nil {
		return err
	}
	for _, v := range varyings {
		b = appendVaryingDecl(b, "out", v.kind, v.name)
	}
	b = append(b, "\nvoid main() {\n"...)
	fragVaryings := p.varyings
	p.varyings = nil // Vertex stage computes varying sources directly.
	b = p.appendLocals(b, p.vnodes)
	for _, v := range varyings {
		b = append(b, '\t')
		b = append(b, v.name...)
		b = append(b, '=')
		b = p.appendRef(b, v.src)
		b = append(b, ";\n"...)
	}
	b = append(b, "\tgl_Position="...)
	b = p.appendRef(b, clipPos)
	b = append(b, ";\n}\n"...)
	p.varyings = fragVaryings
	if _, err = vert.Write(b); err != nil {
		p.scratch = b
		return err
	}

	// Fragment shader.
	clear(p.locals)
	b = append(b[:0], VersionStr...)
	for _, v := range varyings {
		b = appendVaryingDecl(b, "in", v.kind, v.name)
	}
	b, err = appendDecls(b, p.nodes, "", true)
	if err != nil {
		return err
	}
	b = append(b, "out vec4 fragColor;\n\nvoid main() {\n"...)
	b = p.appendLocals(b, p.nodes)
	b = append(b, "\tfragColor="...)
	b = p.appendRef(b, color)
	b = append(b, ";\n}\n"...)
	p.scratch = b
	_, err = frag.Write(b)
	return err
}

func (p *Programmer) reset() {
	if p.locals == nil {
		p.locals = make(map[*Node]int)
		p.varyings = make(map[*Node]string)
		p.visited = make(map[*Node]struct{})
	}
	clear(p.locals)
	clear(p.varyings)
}

// appendDecls declares attributes, uniforms and samplers referenced by nodes.
// attrQualifier is prepended to attribute declarations; skipAttrs omits them.
func appendDecls(b []byte, nodes []*Node, attrQualifier string, skipAttrs bool) ([]byte, error) {
	declared := make(map[string]Kind)
	for _, n := range nodes {
		var qualifier string
		switch n.op {
		case OpAttribute:
			if skipAttrs {
				continue
			}
			qualifier = attrQualifier
		case OpUniform, OpTexture:
			qualifier = "uniform"
		default:
			continue
		}
		if k, ok := declared[n.name]; ok {
			if k != n.kind {
				return b, fmt.Errorf("identifier %q declared as both %s and %s", n.name, k, n.kind)
			}
			continue
		}
		declared[n.name] = n.kind
		if qualifier != "" {
			b = append(b, qualifier...)
			b = append(b, ' ')
		}
		b = append(b, n.kind.String()...)
		b = append(b, ' ')
		b = append(b, n.name...)
		b = append(b, ";\n"...)
	}
	return b, nil
}

func appendVaryingDecl(b []byte, qualifier string, k Kind, name string) []byte {
	b = append(b, qualifier...)
	b = append(b, ' ')
	b = append(b, k.String()...)
	b = append(b, ' ')
	b = append(b, name...)
	b = append(b, ";\n"...)
	return b
}

// appendLocals declares a local variable for every node that is not inlined.
func (p *Programmer) appendLocals(b []byte, nodes []*Node) []byte {
	for _, n := range nodes {
		if p.inlined(n) {
			continue
		}
		idx := len(p.locals)
		b = append(b, '\t')
		b = append(b, n.kind.String()...)
		b = append(b, " t"...)
		b = strconv.AppendInt(b, int64(idx), 10)
		b = append(b, '=')
		b = p.appendExpr(b, n)
		b = append(b, ";\n"...)
		p.locals[n] = idx
	}
	return b
}

func (p *Programmer) inlined(n *Node) bool {
	if _, ok := p.varyings[n]; ok {
		return true
	}
	switch n.op {
	case OpConst, OpAttribute, OpUniform, OpTexture, OpComponent, OpFragment:
		return true
	}
	return false
}

// appendRef appends the expression by which n is referenced after its declaration.
func (p *Programmer) appendRef(b []byte, n *Node) []byte {
	if name, ok := p.varyings[n]; ok {
		return append(b, name...)
	}
	if idx, ok := p.locals[n]; ok {
		b = append(b, 't')
		return strconv.AppendInt(b, int64(idx), 10)
	}
	switch n.op {
	case OpConst:
		return appendConst(b, n.kind, n.value)
	case OpAttribute, OpUniform, OpTexture:
		return append(b, n.name...)
	case OpComponent:
		b = p.appendRef(b, n.args[0])
		return append(b, '.', "xyzw"[n.lane])
	case OpFragment:
		return p.appendRef(b, n.args[0])
	}
	panic("glbuild: reference to undeclared node " + n.String())
}

// appendArg appends a reference to arg, converted to kind k when arg is a scalar
// since GLSL builtins such as mix and pow require matching operand types.
func (p *Programmer) appendArg(b []byte, arg *Node, k Kind) []byte {
	if arg.kind == k || arg.kind != KindFloat {
		return p.appendRef(b, arg)
	}
	b = append(b, k.String()...)
	b = append(b, '(')
	b = p.appendRef(b, arg)
	return append(b, ')')
}

func (p *Programmer) appendExpr(b []byte, n *Node) []byte {
	args := n.args
	switch n.op {
	case OpAdd, OpSub, OpMul, OpDiv:
		b = p.appendRef(b, args[0])
		b = append(b, "+-*/"[n.op-OpAdd])
		return p.appendRef(b, args[1])
	case OpMulMatVec, OpMulVecMat:
		b = p.appendRef(b, args[0])
		b = append(b, '*')
		return p.appendRef(b, args[1])
	case OpPack:
		b = append(b, n.kind.String()...)
		b = append(b, '(')
		for i, a := range args {
			if i > 0 {
				b = append(b, ',')
			}
			b = p.appendRef(b, a)
		}
		return append(b, ')')
	case OpStep, OpMix, OpClamp, OpMin, OpMax, OpMod, OpPow:
		b = append(b, n.op.String()...)
		b = append(b, '(')
		for i, a := range args {
			if i > 0 {
				b = append(b, ',')
			}
			b = p.appendArg(b, a, n.kind)
		}
		return append(b, ')')
	case OpAbs, OpFloor, OpLog, OpNormalize, OpLength, OpDFdx, OpDFdy,
		OpDot, OpCross, OpReflect, OpSample:
		b = append(b, n.op.String()...)
		b = append(b, '(')
		for i, a := range args {
			if i > 0 {
				b = append(b, ',')
			}
			b = p.appendRef(b, a)
		}
		return append(b, ')')
	}
	panic("glbuild: no expression for " + n.String())
}

func appendConst(b []byte, k Kind, v [4]float32) []byte {
	if k == KindFloat {
		return appendLiteral(b, v[0])
	}
	b = append(b, k.String()...)
	b = append(b, '(')
	b = AppendFloats(b, ',', '-', '.', v[:k.Lanes()]...)
	return append(b, ')')
}

// appendLiteral appends a float literal, parenthesized when negative so it may follow a binary operator.
func appendLiteral(b []byte, v float32) []byte {
	if v < 0 {
		b = append(b, '(')
		b = AppendFloat(b, '-', '.', v)
		return append(b, ')')
	}
	return AppendFloat(b, '-', '.', v)
}

const decimalDigits = 9

func AppendFloat(b []byte, neg, decimal byte, v float32) []byte {
	start := len(b)
	b = strconv.AppendFloat(b, float64(v), 'f', decimalDigits, 32)
	idx := bytes.IndexByte(b[start:], '.')
	if decimal != '.' && idx >= 0 {
		b[start+idx] = decimal
	}
	if b[start] == '-' {
		b[start] = neg
	}
	// Finally trim zeroes.
	end := len(b)
	for i := len(b) - 1; idx >= 0 && i > idx+start && b[i] == '0'; i-- {
		end--
	}
	return b[:end]
}

func AppendFloats(b []byte, sep, neg, decimal byte, s ...float32) []byte {
	for i, v := range s {
		b = AppendFloat(b, neg, decimal, v)
		if sep != 0 && i != len(s)-1 {
			b = append(b, sep)
		}
	}
	return b
}

func checkIdent(name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	mustIdent(name)
	return nil
}
