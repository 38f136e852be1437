// Package commands holds the wire-level handlers. Each handler binds its
// parameters, calls into the session and shapes the response payload.
package commands

import (
	"encoding/json"
	"maps"
	"slices"
	"strconv"

	"github.com/danmuck/graphctl/internal/dispatch"
	"github.com/danmuck/graphctl/internal/graphhost"
	"github.com/danmuck/graphctl/internal/literal"
	"github.com/danmuck/graphctl/internal/protocol"
	"github.com/danmuck/graphctl/internal/registry"
	"github.com/danmuck/graphctl/internal/session"
)

// State is the value handed to every handler. It is owned by the host
// context.
type State struct {
	Session  *session.Session
	Registry *registry.Registry
	Host     graphhost.Host
}

func NewState(host graphhost.Host, reg *registry.Registry, cfg session.Config) *State {
	return &State{
		Session:  session.New(host, reg, cfg),
		Registry: reg,
		Host:     host,
	}
}

type handlerFunc = dispatch.Handler[*State]

// Handlers returns a fresh action table.
func Handlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		"ping":                  handlePing,
		"create_builder":        handleCreateBuilder,
		"add_interface":         handleAddInterface,
		"add_graph_input":       handleAddGraphInput,
		"add_graph_output":      handleAddGraphOutput,
		"add_node":              handleAddNode,
		"set_default":           handleSetDefault,
		"connect":               handleConnect,
		"build_to_asset":        handleBuildToAsset,
		"audition":              handleAudition,
		"stop_audition":         handleStopAudition,
		"add_graph_variable":    handleAddGraphVariable,
		"add_variable_get_node": handleAddVariableGetNode,
		"add_variable_set_node": handleAddVariableSetNode,
		"convert_to_preset":     handleConvertToPreset,
		"convert_from_preset":   handleConvertFromPreset,
		"get_graph_input_names": handleGetGraphInputNames,
		"set_live_updates":      handleSetLiveUpdates,
		"list_node_classes":     handleListNodeClasses,
		"list_assets":           handleListAssets,
		"get_node_locations":    handleGetNodeLocations,
		"set_node_position":     handleSetNodePosition,
		"get_session":           handleGetSession,
		"reload_node_types":     handleReloadNodeTypes,
	}
}

// Actions lists every action name, sorted.
func Actions() []string {
	return slices.Sorted(maps.Keys(Handlers()))
}

// Register installs every handler on d.
func Register(d *dispatch.Dispatcher[*State]) {
	for action, h := range Handlers() {
		d.Register(action, h)
	}
}

// bind decodes params into dst, returning a ready error response on failure.
func bind(cmd protocol.Command, dst any) (protocol.Response, bool) {
	if err := cmd.Bind(dst); err != nil {
		return protocol.Fail(err), false
	}
	return protocol.Response{}, true
}

// defaultText turns an optional JSON default into the textual form the
// session parses. Numbers and booleans are accepted alongside strings.
func defaultText(name string, raw json.RawMessage) (*string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	v, err := literal.FromJSON(raw)
	if err != nil {
		return nil, protocol.Validationf("Invalid param '%s': must be a number, boolean, or string", name)
	}
	var text string
	if f, ok := v.AsFloat(); ok {
		text = strconv.FormatFloat(f, 'f', -1, 64)
	} else {
		text = v.String()
	}
	return &text, nil
}
