package session

import (
	"github.com/danmuck/graphctl/internal/graphhost"
	"github.com/danmuck/graphctl/internal/literal"
)

// State is the lifecycle position of the session.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateAuditioning
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateAuditioning:
		return "auditioning"
	default:
		return "uninitialized"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Classes recorded for variable accessor handles.
const (
	ClassVariableGet        = "Core::Variables::Get"
	ClassVariableGetDelayed = "Core::Variables::GetDelayed"
	ClassVariableSet        = "Core::Variables::Set"
)

// NodeHandle maps a caller-chosen id to a host node.
type NodeHandle struct {
	ID    string            `json:"id"`
	Class string            `json:"class"`
	X     float64           `json:"x"`
	Y     float64           `json:"y"`
	Ref   graphhost.NodeRef `json:"-"`
}

// GraphInput is a graph-level input. It produces values, so it resolves to
// an output pin.
type GraphInput struct {
	Name      string              `json:"name"`
	DataType  string              `json:"data_type"`
	Default   literal.Literal     `json:"default,omitzero"`
	Interface string              `json:"interface,omitempty"`
	Output    graphhost.OutputRef `json:"-"`
}

// GraphOutput is a graph-level output. It consumes values, so it resolves to
// an input pin.
type GraphOutput struct {
	Name      string             `json:"name"`
	DataType  string             `json:"data_type"`
	Interface string             `json:"interface,omitempty"`
	Input     graphhost.InputRef `json:"-"`
}

// Variable is graph-scoped state.
type Variable struct {
	Name     string          `json:"name"`
	DataType string          `json:"data_type"`
	Default  literal.Literal `json:"default,omitzero"`
}

// Snapshot is a read-only copy of session state.
type Snapshot struct {
	SessionID    string        `json:"session_id,omitempty"`
	Name         string        `json:"name,omitempty"`
	Kind         string        `json:"kind,omitempty"`
	State        State         `json:"state"`
	Materialized bool          `json:"materialized"`
	BuiltAssets  []string      `json:"built_assets"`
	Interfaces   []string      `json:"interfaces"`
	Nodes        []NodeHandle  `json:"nodes"`
	Inputs       []GraphInput  `json:"inputs"`
	Outputs      []GraphOutput `json:"outputs"`
	Variables    []Variable    `json:"variables"`
	LiveUpdates  bool          `json:"live_updates"`
	PresetOf     string        `json:"preset_of,omitempty"`
	PlaybackID   string        `json:"playback_id,omitempty"`
}
