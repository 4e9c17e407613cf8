// Package eval resolves caller-supplied value expressions to runtime values.
// Nodes describe constants, closures, static bindings, member chains, calls,
// indexing and construction; Evaluate folds them into a plain Go value.
package eval

import (
	"fmt"
	"reflect"
	"strings"
)

// Node is a value expression. The set of nodes is closed; expressions of
// other shapes implement Compiler and are wrapped by Value.
type Node interface {
	// String renders the node for error messages.
	String() string
	node()
}

// Compiler is implemented by expressions that Evaluate does not know
// structurally. They are compiled into a zero-argument callable which is then
// invoked.
type Compiler interface {
	String() string
	Compile() (func() (interface{}, error), error)
}

// Lazy is the node for a Compiler.
type Lazy struct {
	C Compiler
}

func (l Lazy) String() string { return l.C.String() }

// Const is a literal value.
type Const struct {
	Value interface{}
}

func (c Const) String() string {
	if s, ok := c.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", c.Value)
}

// Func is a closure evaluated on demand; it captures local variables.
type Func func() interface{}

func (f Func) String() string { return "func()" }

// Static is a named binding resolved from a Scope.
type Static struct {
	Name string
}

func (s Static) String() string { return s.Name }

// Member accesses a field, zero-argument method or map key on X.
type Member struct {
	X    Node
	Name string
}

func (m Member) String() string { return m.X.String() + "." + m.Name }

// Index indexes a slice, array, string or map.
type Index struct {
	X Node
	I Node
}

func (ix Index) String() string { return ix.X.String() + "[" + ix.I.String() + "]" }

// Array builds a slice of Elem from its element nodes. A nil Elem builds []interface{}.
type Array struct {
	Elem  reflect.Type
	Elems []Node
}

func (a Array) String() string { return "[" + joinNodes(a.Elems) + "]" }

// New constructs a struct of Type, assigning Args to its exported fields in
// declaration order. A pointer Type yields a pointer to the new struct.
type New struct {
	Type reflect.Type
	Args []Node
}

func (n New) String() string { return fmt.Sprintf("%v{%s}", n.Type, joinNodes(n.Args)) }

// Call invokes Fn, or Method on Recv when Fn is nil. A trailing error result is
// returned as the evaluation error.
type Call struct {
	Fn     interface{}
	Recv   Node
	Method string
	Args   []Node
}

func (c Call) String() string {
	name := "func"
	if c.Fn == nil && c.Recv != nil {
		name = c.Recv.String() + "." + c.Method
	} else if c.Fn != nil {
		name = reflect.TypeOf(c.Fn).String()
	}
	return name + "(" + joinNodes(c.Args) + ")"
}

// Value wraps v in a Const unless it is already a Node. Closures become
// Func and Compilers become Lazy.
func Value(v interface{}) Node {
	switch x := v.(type) {
	case Node:
		return x
	case Compiler:
		return Lazy{C: x}
	case func() interface{}:
		return Func(x)
	}
	return Const{Value: v}
}

// Values wraps each element of vs with Value.
func Values(vs ...interface{}) []Node {
	nodes := make([]Node, len(vs))
	for i, v := range vs {
		nodes[i] = Value(v)
	}
	return nodes
}

func (Const) node()  {}
func (Func) node()   {}
func (Static) node() {}
func (Member) node() {}
func (Index) node()  {}
func (Array) node()  {}
func (New) node()    {}
func (Call) node()   {}
func (Lazy) node()   {}

func joinNodes(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, ", ")
}
