package glpbr

import "github.com/soypat/glpbr/glbuild"

// NodeCache memoizes vertex attribute and transform nodes so every request
// for the same semantic identifier returns the identical node. Entries are
// never evicted. A NodeCache is not safe for concurrent use.
type NodeCache struct {
	attrs      [glbuild.NumAttributes]*glbuild.Node
	transforms [glbuild.NumBuiltins]*glbuild.Node
}

// Attribute returns the node for vertex attribute id, creating it on first request.
func (c *NodeCache) Attribute(id glbuild.Attribute) *glbuild.Node {
	if id >= glbuild.NumAttributes {
		panic("glpbr: unknown vertex attribute " + id.String())
	}
	n := c.attrs[id]
	if n == nil {
		n = glbuild.VertexAttribute(id)
		c.attrs[id] = n
		Logger().Debug("node cache miss", "attribute", id.Ident())
	}
	return n
}

// Transform returns the node for builtin transform uniform id, creating it on first request.
func (c *NodeCache) Transform(id glbuild.Builtin) *glbuild.Node {
	if id >= glbuild.NumBuiltins {
		panic("glpbr: unknown builtin transform " + id.String())
	}
	n := c.transforms[id]
	if n == nil {
		n = glbuild.VertexTransform(id)
		c.transforms[id] = n
		Logger().Debug("node cache miss", "transform", id.Ident())
	}
	return n
}

// Len returns the amount of cached nodes.
func (c *NodeCache) Len() (n int) {
	for _, a := range c.attrs {
		if a != nil {
			n++
		}
	}
	for _, t := range c.transforms {
		if t != nil {
			n++
		}
	}
	return n
}
