// Package graph builds Earth Engine computation graphs. Nodes are opaque
// descriptions of server-side values; nothing here evaluates them.
package graph

type kind int

const (
	kindConstant kind = iota
	kindInvocation
	kindArray
	kindDictionary
	kindFunction
	kindArgument
)

// Node is an immutable vertex of a computation graph.
type Node struct {
	kind   kind
	value  interface{}
	name   string
	args   map[string]*Node
	items  []*Node
	params []string
	body   *Node
}

// Args names the arguments of a function invocation.
type Args map[string]*Node

// Constant wraps a JSON-encodable literal.
func Constant(v interface{}) *Node {
	return &Node{kind: kindConstant, value: v}
}

// Invoke calls a server-side algorithm such as "Image.select".
func Invoke(name string, args Args) *Node {
	copied := make(map[string]*Node, len(args))
	for k, v := range args {
		copied[k] = v
	}
	return &Node{kind: kindInvocation, name: name, args: copied}
}

func Array(items ...*Node) *Node {
	return &Node{kind: kindArray, items: append([]*Node(nil), items...)}
}

func Dict(values map[string]*Node) *Node {
	copied := make(map[string]*Node, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &Node{kind: kindDictionary, args: copied}
}

// Lambda defines a server-side function, as used by Collection.map.
func Lambda(body *Node, params ...string) *Node {
	return &Node{kind: kindFunction, body: body, params: append([]string(nil), params...)}
}

// Arg references a parameter of an enclosing Lambda.
func Arg(name string) *Node {
	return &Node{kind: kindArgument, name: name}
}

// FunctionName returns the invoked algorithm, or "" for other node kinds.
func (n *Node) FunctionName() string {
	if n == nil || n.kind != kindInvocation {
		return ""
	}
	return n.name
}

// Argument returns a named argument of an invocation.
func (n *Node) Argument(name string) *Node {
	if n == nil || n.kind != kindInvocation {
		return nil
	}
	return n.args[name]
}
