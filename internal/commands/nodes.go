package commands

import (
	"github.com/danmuck/graphctl/internal/protocol"
	"github.com/danmuck/graphctl/internal/session"
)

// positionParams accepts either position: [x, y] or separate x/y numbers.
type positionParams struct {
	Position []float64 `json:"position" validate:"omitempty,min=2"`
	X        *float64  `json:"x"`
	Y        *float64  `json:"y"`
}

func (p positionParams) given() bool {
	return len(p.Position) > 0 || p.X != nil || p.Y != nil
}

func (p positionParams) xy() (float64, float64) {
	if len(p.Position) >= 2 {
		return p.Position[0], p.Position[1]
	}
	var x, y float64
	if p.X != nil {
		x = *p.X
	}
	if p.Y != nil {
		y = *p.Y
	}
	return x, y
}

func nodePayload(resp protocol.Response, h session.NodeHandle) protocol.Response {
	return resp.
		With("id", h.ID).
		With("class", h.Class).
		With("position", []float64{h.X, h.Y})
}

type addNodeParams struct {
	ID       string `json:"id" validate:"required"`
	NodeType string `json:"node_type" validate:"required"`
	positionParams
}

func handleAddNode(cmd protocol.Command, st *State) protocol.Response {
	var p addNodeParams
	if resp, ok := bind(cmd, &p); !ok {
		return resp
	}
	x, y := p.xy()
	h, err := st.Session.AddNode(p.ID, p.NodeType, x, y)
	if err != nil {
		return protocol.Fail(err)
	}
	resp := protocol.OKf("Added node '%s' (%s) at (%g, %g)", p.ID, p.NodeType, x, y).
		With("node_type", p.NodeType)
	return nodePayload(resp, h)
}

type setNodePositionParams struct {
	ID string `json:"id" validate:"required"`
	positionParams
}

func handleSetNodePosition(cmd protocol.Command, st *State) protocol.Response {
	var p setNodePositionParams
	if resp, ok := bind(cmd, &p); !ok {
		return resp
	}
	if !p.given() {
		return protocol.Failf(protocol.KindValidation, "Missing required param 'position'")
	}
	x, y := p.xy()
	h, err := st.Session.SetNodePosition(p.ID, x, y)
	if err != nil {
		return protocol.Fail(err)
	}
	return nodePayload(protocol.OKf("Moved node '%s' to (%g, %g)", p.ID, x, y), h)
}

type setDefaultParams struct {
	NodeID string `json:"node_id" validate:"required"`
	Input  string `json:"input" validate:"required"`
}

func handleSetDefault(cmd protocol.Command, st *State) protocol.Response {
	var p setDefaultParams
	if resp, ok := bind(cmd, &p); !ok {
		return resp
	}
	if !cmd.Has("value") {
		return protocol.Failf(protocol.KindValidation, "Missing required param 'value'")
	}
	raw, _ := cmd.Raw("value")
	value, err := st.Session.SetDefault(p.NodeID, p.Input, raw)
	if err != nil {
		return protocol.Fail(err)
	}
	return protocol.OKf("Set default %s.%s", p.NodeID, p.Input).
		With("node_id", p.NodeID).
		With("input", p.Input).
		With("value", value)
}

type connectParams struct {
	FromNode string `json:"from_node" validate:"required"`
	FromPin  string `json:"from_pin" validate:"required"`
	ToNode   string `json:"to_node" validate:"required"`
	ToPin    string `json:"to_pin" validate:"required"`
}

func handleConnect(cmd protocol.Command, st *State) protocol.Response {
	var p connectParams
	if resp, ok := bind(cmd, &p); !ok {
		return resp
	}
	if err := st.Session.Connect(p.FromNode, p.FromPin, p.ToNode, p.ToPin); err != nil {
		return protocol.Fail(err)
	}
	return protocol.OKf("Connected %s.%s -> %s.%s", p.FromNode, p.FromPin, p.ToNode, p.ToPin).
		With("from_node", p.FromNode).
		With("from_pin", p.FromPin).
		With("to_node", p.ToNode).
		With("to_pin", p.ToPin)
}

func handleAddGraphVariable(cmd protocol.Command, st *State) protocol.Response {
	var p graphPinParams
	if resp, ok := bind(cmd, &p); !ok {
		return resp
	}
	def, err := defaultText("default", p.Default)
	if err != nil {
		return protocol.Fail(err)
	}
	v, err := st.Session.AddGraphVariable(p.Name, p.Type, def)
	if err != nil {
		return protocol.Fail(err)
	}
	resp := protocol.OKf("Added graph variable '%s' (%s)", p.Name, p.Type).
		With("name", v.Name).
		With("type", v.DataType)
	if !v.Default.IsZero() {
		resp = resp.With("default", v.Default)
	}
	return resp
}

type variableNodeParams struct {
	ID           string `json:"id" validate:"required"`
	VariableName string `json:"variable_name" validate:"required"`
	Delayed      bool   `json:"delayed"`
	positionParams
}

func handleAddVariableGetNode(cmd protocol.Command, st *State) protocol.Response {
	var p variableNodeParams
	if resp, ok := bind(cmd, &p); !ok {
		return resp
	}
	x, y := p.xy()
	h, err := st.Session.AddVariableGetNode(p.ID, p.VariableName, p.Delayed, x, y)
	if err != nil {
		return protocol.Fail(err)
	}
	resp := protocol.OKf("Added get node '%s' for variable '%s'", p.ID, p.VariableName).
		With("variable_name", p.VariableName).
		With("delayed", p.Delayed)
	return nodePayload(resp, h)
}

func handleAddVariableSetNode(cmd protocol.Command, st *State) protocol.Response {
	var p variableNodeParams
	if resp, ok := bind(cmd, &p); !ok {
		return resp
	}
	x, y := p.xy()
	h, err := st.Session.AddVariableSetNode(p.ID, p.VariableName, x, y)
	if err != nil {
		return protocol.Fail(err)
	}
	resp := protocol.OKf("Added set node '%s' for variable '%s'", p.ID, p.VariableName).
		With("variable_name", p.VariableName)
	return nodePayload(resp, h)
}

func handleGetNodeLocations(_ protocol.Command, st *State) protocol.Response {
	if st.Session.State() == session.StateUninitialized {
		return protocol.Failf(protocol.KindValidation, "No active builder. Call create_builder first")
	}
	nodes := st.Session.Nodes()
	locations := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		locations = append(locations, map[string]any{
			"id":    n.ID,
			"class": n.Class,
			"x":     n.X,
			"y":     n.Y,
		})
	}
	return protocol.OKf("%d node locations", len(locations)).
		With("nodes", locations).
		With("count", len(locations))
}
