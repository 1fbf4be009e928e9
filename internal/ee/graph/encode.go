package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

var (
	ErrNilNode         = errors.New("graph: nil node")
	ErrNoFunctionName  = errors.New("graph: invocation without function name")
	ErrUnboundArgument = errors.New("graph: argument reference outside of function body")
)

// Expression is the wire form accepted by the Earth Engine REST API.
type Expression struct {
	Result string               `json:"result"`
	Values map[string]ValueNode `json:"values"`
}

type ValueNode struct {
	ConstantValue           json.RawMessage     `json:"constantValue,omitempty"`
	ArrayValue              *ArrayValue         `json:"arrayValue,omitempty"`
	DictionaryValue         *DictionaryValue    `json:"dictionaryValue,omitempty"`
	FunctionDefinitionValue *FunctionDefinition `json:"functionDefinitionValue,omitempty"`
	FunctionInvocationValue *FunctionInvocation `json:"functionInvocationValue,omitempty"`
	ArgumentReference       string              `json:"argumentReference,omitempty"`
	ValueReference          string              `json:"valueReference,omitempty"`
}

type ArrayValue struct {
	Values []ValueNode `json:"values"`
}

type DictionaryValue struct {
	Values map[string]ValueNode `json:"values"`
}

type FunctionDefinition struct {
	ArgumentNames []string `json:"argumentNames"`
	Body          string   `json:"body"`
}

type FunctionInvocation struct {
	FunctionName string               `json:"functionName"`
	Arguments    map[string]ValueNode `json:"arguments,omitempty"`
}

// Encode serializes the graph rooted at root. Identical subtrees share one
// entry in Values, so a collection loaded for twelve monthly composites is
// sent once.
func Encode(root *Node) (*Expression, error) {
	e := &encoder{
		values: make(map[string]ValueNode),
		ids:    make(map[string]string),
	}
	vn, err := e.encode(root)
	if err != nil {
		return nil, err
	}
	result := vn.ValueReference
	if result == "" {
		ref, err := e.intern(vn)
		if err != nil {
			return nil, err
		}
		result = ref.ValueReference
	}
	return &Expression{Result: result, Values: e.values}, nil
}

// MarshalIndent is a convenience for printing an encoded graph.
func MarshalIndent(root *Node) ([]byte, error) {
	expr, err := Encode(root)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(expr, "", "  ")
}

type encoder struct {
	values map[string]ValueNode
	ids    map[string]string
	scope  []string
}

func (e *encoder) encode(n *Node) (ValueNode, error) {
	if n == nil {
		return ValueNode{}, ErrNilNode
	}
	switch n.kind {
	case kindConstant:
		raw, err := json.Marshal(n.value)
		if err != nil {
			return ValueNode{}, fmt.Errorf("encode constant %v: %w", n.value, err)
		}
		return ValueNode{ConstantValue: raw}, nil

	case kindArgument:
		if !e.bound(n.name) {
			return ValueNode{}, fmt.Errorf("%w: %q", ErrUnboundArgument, n.name)
		}
		return ValueNode{ArgumentReference: n.name}, nil

	case kindArray:
		values := make([]ValueNode, len(n.items))
		for i, item := range n.items {
			vn, err := e.encode(item)
			if err != nil {
				return ValueNode{}, fmt.Errorf("array item %d: %w", i, err)
			}
			values[i] = vn
		}
		return ValueNode{ArrayValue: &ArrayValue{Values: values}}, nil

	case kindDictionary:
		values, err := e.encodeMap(n.args)
		if err != nil {
			return ValueNode{}, err
		}
		return ValueNode{DictionaryValue: &DictionaryValue{Values: values}}, nil

	case kindInvocation:
		if n.name == "" {
			return ValueNode{}, ErrNoFunctionName
		}
		args, err := e.encodeMap(n.args)
		if err != nil {
			return ValueNode{}, fmt.Errorf("%s: %w", n.name, err)
		}
		return e.intern(ValueNode{FunctionInvocationValue: &FunctionInvocation{
			FunctionName: n.name,
			Arguments:    args,
		}})

	case kindFunction:
		e.scope = append(e.scope, n.params...)
		body, err := e.encode(n.body)
		e.scope = e.scope[:len(e.scope)-len(n.params)]
		if err != nil {
			return ValueNode{}, fmt.Errorf("function body: %w", err)
		}
		if body.ValueReference == "" {
			body, err = e.intern(body)
			if err != nil {
				return ValueNode{}, err
			}
		}
		params := n.params
		if params == nil {
			params = []string{}
		}
		return e.intern(ValueNode{FunctionDefinitionValue: &FunctionDefinition{
			ArgumentNames: params,
			Body:          body.ValueReference,
		}})
	}
	return ValueNode{}, fmt.Errorf("graph: unknown node kind %d", n.kind)
}

func (e *encoder) encodeMap(in map[string]*Node) (map[string]ValueNode, error) {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]ValueNode, len(in))
	for _, k := range keys {
		vn, err := e.encode(in[k])
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", k, err)
		}
		out[k] = vn
	}
	return out, nil
}

// intern stores vn under a fresh id unless an identical value is already
// present, and returns a reference to it.
func (e *encoder) intern(vn ValueNode) (ValueNode, error) {
	key, err := json.Marshal(vn)
	if err != nil {
		return ValueNode{}, err
	}
	if id, ok := e.ids[string(key)]; ok {
		return ValueNode{ValueReference: id}, nil
	}
	id := strconv.Itoa(len(e.values))
	e.values[id] = vn
	e.ids[string(key)] = id
	return ValueNode{ValueReference: id}, nil
}

func (e *encoder) bound(name string) bool {
	for _, p := range e.scope {
		if p == name {
			return true
		}
	}
	return false
}
