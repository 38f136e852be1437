package simhost

import "github.com/danmuck/graphctl/internal/literal"

// Document is the persisted form of a built graph.
type Document struct {
	Name       string        `json:"name"`
	Kind       string        `json:"kind"`
	Interfaces []string      `json:"interfaces"`
	Nodes      []NodeDoc     `json:"nodes"`
	Edges      []EdgeDoc     `json:"edges"`
	Inputs     []GraphPinDoc `json:"inputs"`
	Outputs    []GraphPinDoc `json:"outputs"`
	Variables  []VariableDoc `json:"variables"`
	PresetOf   string        `json:"preset_of,omitempty"`
}

type NodeDoc struct {
	ID       string                     `json:"id"`
	Class    string                     `json:"class"`
	X        float64                    `json:"x"`
	Y        float64                    `json:"y"`
	Variable string                     `json:"variable,omitempty"`
	Defaults map[string]literal.Literal `json:"defaults,omitempty"`
}

type EdgeDoc struct {
	FromNode string `json:"from_node"`
	FromPin  string `json:"from_pin"`
	ToNode   string `json:"to_node"`
	ToPin    string `json:"to_pin"`
}

type GraphPinDoc struct {
	Name     string          `json:"name"`
	DataType string          `json:"data_type"`
	Node     string          `json:"node"`
	Default  literal.Literal `json:"default,omitzero"`
}

type VariableDoc struct {
	Name     string          `json:"name"`
	DataType string          `json:"data_type"`
	Default  literal.Literal `json:"default,omitzero"`
}
