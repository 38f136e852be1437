// Package session holds the builder session: the live graph under
// construction and the tables mapping wire identifiers to host handles.
//
// A Session is not safe for concurrent use. It is owned by the exclusive
// execution context and every call must come from there.
package session

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/danmuck/graphctl/internal/graphhost"
	"github.com/danmuck/graphctl/internal/literal"
	"github.com/danmuck/graphctl/internal/protocol"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Resolver maps node type names to canonical class identifiers.
type Resolver interface {
	Resolve(name string) (string, error)
}

// Config configures a Session. Zero fields take defaults.
type Config struct {
	ContentRoot string
	Logger      *zerolog.Logger
}

type Session struct {
	host        graphhost.Host
	resolver    Resolver
	contentRoot string
	logger      zerolog.Logger

	id         string
	name       string
	kind       graphhost.AssetKind
	builder    graphhost.Builder
	interfaces []string

	nodes     map[string]*NodeHandle
	nodeOrder []string
	inputs    []*GraphInput
	outputs   []*GraphOutput
	variables []*Variable

	liveUpdates bool
	presetOf    string
	built       []string
	playback    graphhost.Playback
}

func New(host graphhost.Host, resolver Resolver, cfg Config) *Session {
	root := cfg.ContentRoot
	if strings.TrimSpace(root) == "" {
		root = protocol.DefaultContentRoot
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Session{
		host:        host,
		resolver:    resolver,
		contentRoot: root,
		logger:      logger.With().Str("component", "session").Logger(),
		nodes:       make(map[string]*NodeHandle),
	}
}

// ContentRoot returns the asset namespace root enforced by BuildToAsset.
func (s *Session) ContentRoot() string { return s.contentRoot }

func (s *Session) State() State {
	switch {
	case s.builder == nil:
		return StateUninitialized
	case s.playback != nil && s.playback.Playing():
		return StateAuditioning
	default:
		return StateActive
	}
}

// Materialized reports whether the current session has been built at least once.
func (s *Session) Materialized() bool { return len(s.built) > 0 }

func (s *Session) requireActive() error {
	if s.builder == nil {
		return protocol.Validationf("No active builder. Call create_builder first")
	}
	return nil
}

func (s *Session) reset() {
	s.id = ""
	s.name = ""
	s.kind = 0
	s.builder = nil
	s.interfaces = nil
	s.nodes = make(map[string]*NodeHandle)
	s.nodeOrder = nil
	s.inputs = nil
	s.outputs = nil
	s.variables = nil
	s.liveUpdates = false
	s.presetOf = ""
	s.built = nil
}

// CreateBuilder replaces the session with a fresh one of the given kind.
func (s *Session) CreateBuilder(kindName, name string) error {
	kind, err := graphhost.ParseAssetKind(kindName)
	if err != nil {
		return protocol.Validationf("Invalid asset_type '%s'. Must be Source, Patch, or Preset", kindName)
	}
	if strings.TrimSpace(name) == "" {
		return protocol.Validationf("Invalid param 'name': must not be empty")
	}
	builder, err := s.host.CreateBuilder(kind, name)
	if err != nil {
		return protocol.Hostf("Failed to create %s builder '%s': %v", kind, name, err)
	}

	s.stopAudition()
	s.reset()
	s.id = uuid.NewString()
	s.name = name
	s.kind = kind
	s.builder = builder

	s.logger.Info().
		Str("session_id", s.id).
		Str("kind", kind.String()).
		Str("name", name).
		Msg("session.Session.CreateBuilder ok")
	return nil
}

// AddInterface attaches an interface bundle and records the boundary pins it adds.
func (s *Session) AddInterface(name string) (graphhost.InterfacePins, error) {
	if err := s.requireActive(); err != nil {
		return graphhost.InterfacePins{}, err
	}
	pins, err := s.builder.AddInterface(name)
	if err != nil {
		return graphhost.InterfacePins{}, protocol.Hostf("Failed to add interface '%s': %v", name, err)
	}
	for _, p := range pins.Inputs {
		s.inputs = append(s.inputs, &GraphInput{Name: p.Name, DataType: p.DataType, Interface: name, Output: p.Output})
	}
	for _, p := range pins.Outputs {
		s.outputs = append(s.outputs, &GraphOutput{Name: p.Name, DataType: p.DataType, Interface: name, Input: p.Input})
	}
	s.interfaces = append(s.interfaces, name)
	s.logger.Info().Str("interface", name).Int("inputs", len(pins.Inputs)).Int("outputs", len(pins.Outputs)).
		Msg("session.Session.AddInterface ok")
	return pins, nil
}

func (s *Session) findInput(name string) *GraphInput {
	for _, in := range s.inputs {
		if in.Name == name {
			return in
		}
	}
	return nil
}

func (s *Session) findOutput(name string) *GraphOutput {
	for _, out := range s.outputs {
		if out.Name == name {
			return out
		}
	}
	return nil
}

func (s *Session) findVariable(name string) *Variable {
	for _, v := range s.variables {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// AddGraphInput declares a graph input. A default that the host refuses is
// reported as a warning and the input is kept.
func (s *Session) AddGraphInput(name, dataType string, rawDefault *string) (GraphInput, string, error) {
	if err := s.requireActive(); err != nil {
		return GraphInput{}, "", err
	}
	if s.findInput(name) != nil {
		return GraphInput{}, "", protocol.Validationf("Graph input '%s' already exists", name)
	}
	pin, err := s.builder.AddGraphInput(name, dataType)
	if err != nil {
		return GraphInput{}, "", protocol.Hostf("Failed to add graph input '%s' of type '%s': %v", name, dataType, err)
	}
	in := &GraphInput{Name: name, DataType: dataType, Output: pin.Output}
	s.inputs = append(s.inputs, in)

	var warning string
	if rawDefault != nil {
		value := literal.ParseDefault(*rawDefault)
		if err := s.builder.SetGraphInputDefault(name, value); err != nil {
			warning = fmt.Sprintf("Default '%s' was not applied to graph input '%s': %v", *rawDefault, name, err)
			s.logger.Warn().Str("input", name).Str("default", *rawDefault).Err(err).
				Msg("session.Session.AddGraphInput default not applied")
		} else {
			in.Default = value
		}
	}

	s.logger.Info().Str("input", name).Str("data_type", dataType).Msg("session.Session.AddGraphInput ok")
	return *in, warning, nil
}

// AddGraphOutput declares a graph output.
func (s *Session) AddGraphOutput(name, dataType string) (GraphOutput, error) {
	if err := s.requireActive(); err != nil {
		return GraphOutput{}, err
	}
	if s.findOutput(name) != nil {
		return GraphOutput{}, protocol.Validationf("Graph output '%s' already exists", name)
	}
	pin, err := s.builder.AddGraphOutput(name, dataType)
	if err != nil {
		return GraphOutput{}, protocol.Hostf("Failed to add graph output '%s' of type '%s': %v", name, dataType, err)
	}
	out := &GraphOutput{Name: name, DataType: dataType, Input: pin.Input}
	s.outputs = append(s.outputs, out)
	s.logger.Info().Str("output", name).Str("data_type", dataType).Msg("session.Session.AddGraphOutput ok")
	return *out, nil
}

func (s *Session) checkNewNodeID(id string) error {
	if strings.TrimSpace(id) == "" {
		return protocol.Validationf("Invalid param 'id': must not be empty")
	}
	if id == protocol.GraphBoundary {
		return protocol.Validationf("Node ID '%s' is reserved for the graph boundary", id)
	}
	if _, exists := s.nodes[id]; exists {
		return protocol.Validationf("Duplicate node ID '%s'", id)
	}
	return nil
}

func (s *Session) storeNode(h *NodeHandle) {
	if err := s.builder.SetNodeLocation(h.Ref, h.X, h.Y); err != nil {
		s.logger.Warn().Str("node_id", h.ID).Err(err).Msg("session.Session.storeNode location not applied")
	}
	s.nodes[h.ID] = h
	s.nodeOrder = append(s.nodeOrder, h.ID)
}

// AddNode resolves typeName and adds a node under the caller-chosen id.
func (s *Session) AddNode(id, typeName string, x, y float64) (NodeHandle, error) {
	if err := s.requireActive(); err != nil {
		return NodeHandle{}, err
	}
	if err := s.checkNewNodeID(id); err != nil {
		return NodeHandle{}, err
	}
	class, err := s.resolver.Resolve(typeName)
	if err != nil {
		return NodeHandle{}, err
	}
	ref, err := s.builder.AddNode(class)
	if err != nil {
		return NodeHandle{}, protocol.Hostf("Failed to add node '%s' of class '%s': %v", id, class, err)
	}
	h := &NodeHandle{ID: id, Class: class, X: x, Y: y, Ref: ref}
	s.storeNode(h)
	s.logger.Info().Str("node_id", id).Str("class", class).Msg("session.Session.AddNode ok")
	return *h, nil
}

// SetNodePosition moves an existing node.
func (s *Session) SetNodePosition(id string, x, y float64) (NodeHandle, error) {
	if err := s.requireActive(); err != nil {
		return NodeHandle{}, err
	}
	h, ok := s.nodes[id]
	if !ok {
		return NodeHandle{}, protocol.NotFoundf("Node '%s' not found", id)
	}
	if err := s.builder.SetNodeLocation(h.Ref, x, y); err != nil {
		return NodeHandle{}, protocol.Hostf("Failed to move node '%s': %v", id, err)
	}
	h.X, h.Y = x, y
	return *h, nil
}

// SetDefault assigns a literal to a node input, or to a graph input when
// nodeID is the boundary sentinel.
func (s *Session) SetDefault(nodeID, input string, raw json.RawMessage) (literal.Literal, error) {
	if err := s.requireActive(); err != nil {
		return literal.Literal{}, err
	}

	if nodeID == protocol.GraphBoundary {
		in := s.findInput(input)
		if in == nil {
			return literal.Literal{}, protocol.NotFoundf("Graph input '%s' not found", input)
		}
		value, err := parseValue(raw)
		if err != nil {
			return literal.Literal{}, err
		}
		if err := s.builder.SetGraphInputDefault(input, value); err != nil {
			return literal.Literal{}, protocol.Hostf("Failed to set default on graph input '%s': %v", input, err)
		}
		in.Default = value
		return value, nil
	}

	h, ok := s.nodes[nodeID]
	if !ok {
		return literal.Literal{}, protocol.NotFoundf("Node '%s' not found", nodeID)
	}
	pin, err := s.builder.FindNodeInput(h.Ref, input)
	if err != nil {
		return literal.Literal{}, protocol.NotFoundf("Input '%s' not found on node '%s'", input, nodeID)
	}
	value, err := parseValue(raw)
	if err != nil {
		return literal.Literal{}, err
	}
	if err := s.builder.SetInputDefault(pin, value); err != nil {
		return literal.Literal{}, protocol.Hostf("Failed to set default on '%s.%s': %v", nodeID, input, err)
	}
	s.logger.Info().Str("node_id", nodeID).Str("input", input).Str("value", value.String()).
		Msg("session.Session.SetDefault ok")
	return value, nil
}

func parseValue(raw json.RawMessage) (literal.Literal, error) {
	value, err := literal.FromJSON(raw)
	if err != nil {
		return literal.Literal{}, protocol.Validationf("Invalid param 'value': must be a number, boolean, or string")
	}
	return value, nil
}

// resolveSource finds the value-producing end of a connection. The sentinel
// resolves against graph inputs.
func (s *Session) resolveSource(nodeID, pin string) (graphhost.OutputRef, error) {
	if nodeID == protocol.GraphBoundary {
		in := s.findInput(pin)
		if in == nil {
			return graphhost.OutputRef{}, protocol.NotFoundf("Graph input '%s' not found", pin)
		}
		return in.Output, nil
	}
	h, ok := s.nodes[nodeID]
	if !ok {
		return graphhost.OutputRef{}, protocol.NotFoundf("Source node '%s' not found", nodeID)
	}
	ref, err := s.builder.FindNodeOutput(h.Ref, pin)
	if err != nil {
		return graphhost.OutputRef{}, protocol.NotFoundf("Output '%s' not found on node '%s'", pin, nodeID)
	}
	return ref, nil
}

// resolveTarget finds the value-consuming end of a connection. The sentinel
// resolves against graph outputs.
func (s *Session) resolveTarget(nodeID, pin string) (graphhost.InputRef, error) {
	if nodeID == protocol.GraphBoundary {
		out := s.findOutput(pin)
		if out == nil {
			return graphhost.InputRef{}, protocol.NotFoundf("Graph output '%s' not found", pin)
		}
		return out.Input, nil
	}
	h, ok := s.nodes[nodeID]
	if !ok {
		return graphhost.InputRef{}, protocol.NotFoundf("Target node '%s' not found", nodeID)
	}
	ref, err := s.builder.FindNodeInput(h.Ref, pin)
	if err != nil {
		return graphhost.InputRef{}, protocol.NotFoundf("Input '%s' not found on node '%s'", pin, nodeID)
	}
	return ref, nil
}

// Connect wires fromNode.fromPin into toNode.toPin.
func (s *Session) Connect(fromNode, fromPin, toNode, toPin string) error {
	if err := s.requireActive(); err != nil {
		return err
	}
	src, err := s.resolveSource(fromNode, fromPin)
	if err != nil {
		return err
	}
	dst, err := s.resolveTarget(toNode, toPin)
	if err != nil {
		return err
	}
	if err := s.builder.Connect(src, dst); err != nil {
		return protocol.Hostf("Failed to connect %s.%s -> %s.%s: %v", fromNode, fromPin, toNode, toPin, err)
	}
	s.logger.Info().
		Str("from", fromNode+"."+fromPin).
		Str("to", toNode+"."+toPin).
		Msg("session.Session.Connect ok")
	return nil
}

// AddGraphVariable declares a graph variable.
func (s *Session) AddGraphVariable(name, dataType string, rawDefault *string) (Variable, error) {
	if err := s.requireActive(); err != nil {
		return Variable{}, err
	}
	if s.findVariable(name) != nil {
		return Variable{}, protocol.Validationf("Variable '%s' already exists", name)
	}
	var value literal.Literal
	if rawDefault != nil {
		value = literal.ParseDefault(*rawDefault)
	}
	if err := s.builder.AddGraphVariable(name, dataType, value); err != nil {
		return Variable{}, protocol.Hostf("Failed to add variable '%s' of type '%s': %v", name, dataType, err)
	}
	v := &Variable{Name: name, DataType: dataType, Default: value}
	s.variables = append(s.variables, v)
	s.logger.Info().Str("variable", name).Str("data_type", dataType).Msg("session.Session.AddGraphVariable ok")
	return *v, nil
}

// AddVariableGetNode adds a reader for variable. Delayed readers observe the
// previous block's value.
func (s *Session) AddVariableGetNode(id, variable string, delayed bool, x, y float64) (NodeHandle, error) {
	if err := s.requireActive(); err != nil {
		return NodeHandle{}, err
	}
	if err := s.checkNewNodeID(id); err != nil {
		return NodeHandle{}, err
	}
	if s.findVariable(variable) == nil {
		return NodeHandle{}, protocol.NotFoundf("Variable '%s' not found", variable)
	}
	ref, err := s.builder.AddVariableGetNode(variable, delayed)
	if err != nil {
		return NodeHandle{}, protocol.Hostf("Failed to add get node for variable '%s': %v", variable, err)
	}
	class := ClassVariableGet
	if delayed {
		class = ClassVariableGetDelayed
	}
	h := &NodeHandle{ID: id, Class: class, X: x, Y: y, Ref: ref}
	s.storeNode(h)
	s.logger.Info().Str("node_id", id).Str("variable", variable).Bool("delayed", delayed).
		Msg("session.Session.AddVariableGetNode ok")
	return *h, nil
}

// AddVariableSetNode adds a writer for variable.
func (s *Session) AddVariableSetNode(id, variable string, x, y float64) (NodeHandle, error) {
	if err := s.requireActive(); err != nil {
		return NodeHandle{}, err
	}
	if err := s.checkNewNodeID(id); err != nil {
		return NodeHandle{}, err
	}
	if s.findVariable(variable) == nil {
		return NodeHandle{}, protocol.NotFoundf("Variable '%s' not found", variable)
	}
	ref, err := s.builder.AddVariableSetNode(variable)
	if err != nil {
		return NodeHandle{}, protocol.Hostf("Failed to add set node for variable '%s': %v", variable, err)
	}
	h := &NodeHandle{ID: id, Class: ClassVariableSet, X: x, Y: y, Ref: ref}
	s.storeNode(h)
	s.logger.Info().Str("node_id", id).Str("variable", variable).Msg("session.Session.AddVariableSetNode ok")
	return *h, nil
}

// ConvertToPreset turns the document into an override of referencedAsset.
func (s *Session) ConvertToPreset(referencedAsset string) error {
	if err := s.requireActive(); err != nil {
		return err
	}
	if err := ValidateAssetPath(s.contentRoot, referencedAsset); err != nil {
		return err
	}
	if err := s.builder.ConvertToPreset(referencedAsset); err != nil {
		return protocol.Hostf("Failed to convert to preset of '%s': %v", referencedAsset, err)
	}
	s.presetOf = referencedAsset
	s.logger.Info().Str("referenced_asset", referencedAsset).Msg("session.Session.ConvertToPreset ok")
	return nil
}

// ConvertFromPreset makes the document fully editable again.
func (s *Session) ConvertFromPreset() error {
	if err := s.requireActive(); err != nil {
		return err
	}
	if err := s.builder.ConvertFromPreset(); err != nil {
		return protocol.Hostf("Failed to convert from preset: %v", err)
	}
	s.presetOf = ""
	s.logger.Info().Msg("session.Session.ConvertFromPreset ok")
	return nil
}

// BuildToAsset materializes the document. Path and name are validated
// before the host is called.
func (s *Session) BuildToAsset(name, path string) (string, error) {
	if err := s.requireActive(); err != nil {
		return "", err
	}
	if err := ValidateAssetName(name); err != nil {
		return "", err
	}
	if err := ValidateAssetPath(s.contentRoot, path); err != nil {
		return "", err
	}
	objectPath, err := s.builder.BuildToAsset(name, path)
	if err != nil {
		return "", protocol.Hostf("Failed to build asset '%s': %v", ObjectPath(path, name), err)
	}
	if !slices.Contains(s.built, objectPath) {
		s.built = append(s.built, objectPath)
	}
	s.logger.Info().Str("object_path", objectPath).Msg("session.Session.BuildToAsset ok")
	return objectPath, nil
}

// Audition starts live playback, stopping any previous playback first.
func (s *Session) Audition() (string, error) {
	if err := s.requireActive(); err != nil {
		return "", err
	}
	s.stopAudition()
	p, err := s.builder.Audition()
	if err != nil {
		return "", protocol.Hostf("Failed to start audition: %v", err)
	}
	s.playback = p
	s.logger.Info().Str("playback_id", p.ID()).Msg("session.Session.Audition ok")
	return p.ID(), nil
}

// StopAudition stops live playback. It succeeds when nothing is playing.
func (s *Session) StopAudition() bool {
	return s.stopAudition()
}

func (s *Session) stopAudition() bool {
	if s.playback == nil {
		return false
	}
	p := s.playback
	s.playback = nil
	wasPlaying := p.Playing()
	if err := p.Stop(); err != nil {
		s.logger.Warn().Str("playback_id", p.ID()).Err(err).Msg("session.Session.stopAudition stop failed")
	}
	s.logger.Info().Str("playback_id", p.ID()).Msg("session.Session.stopAudition released")
	return wasPlaying
}

// GraphInputNames lists graph inputs in declaration order.
func (s *Session) GraphInputNames() ([]string, error) {
	if err := s.requireActive(); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(s.inputs))
	for _, in := range s.inputs {
		names = append(names, in.Name)
	}
	return names, nil
}

// SetLiveUpdates toggles live propagation of edits to running auditions.
func (s *Session) SetLiveUpdates(enabled bool) error {
	if err := s.requireActive(); err != nil {
		return err
	}
	if err := s.builder.SetLiveUpdates(enabled); err != nil {
		return protocol.Hostf("Failed to set live updates: %v", err)
	}
	s.liveUpdates = enabled
	return nil
}

// Nodes returns node handles in creation order.
func (s *Session) Nodes() []NodeHandle {
	out := make([]NodeHandle, 0, len(s.nodeOrder))
	for _, id := range s.nodeOrder {
		out = append(out, *s.nodes[id])
	}
	return out
}

// Node returns one handle by id.
func (s *Session) Node(id string) (NodeHandle, bool) {
	h, ok := s.nodes[id]
	if !ok {
		return NodeHandle{}, false
	}
	return *h, true
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID:    s.id,
		Name:         s.name,
		State:        s.State(),
		Materialized: s.Materialized(),
		BuiltAssets:  slices.Clone(s.built),
		Interfaces:   slices.Clone(s.interfaces),
		Nodes:        s.Nodes(),
		LiveUpdates:  s.liveUpdates,
		PresetOf:     s.presetOf,
	}
	if s.builder != nil {
		snap.Kind = s.kind.String()
	}
	if s.playback != nil && s.playback.Playing() {
		snap.PlaybackID = s.playback.ID()
	}
	for _, in := range s.inputs {
		snap.Inputs = append(snap.Inputs, *in)
	}
	for _, out := range s.outputs {
		snap.Outputs = append(snap.Outputs, *out)
	}
	for _, v := range s.variables {
		snap.Variables = append(snap.Variables, *v)
	}
	return snap
}

// Close releases the playback and drops the session.
func (s *Session) Close() {
	s.stopAudition()
	if s.builder != nil {
		s.logger.Info().Str("session_id", s.id).Msg("session.Session.Close")
	}
	s.reset()
}
