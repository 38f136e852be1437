package simhost

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/danmuck/graphctl/internal/graphhost"
	"github.com/danmuck/graphctl/internal/literal"
)

var (
	ErrPresetLocked    = errors.New("simhost: builder is a preset; convert_from_preset first")
	ErrNotPreset       = errors.New("simhost: builder is not a preset")
	ErrUnknownClass    = errors.New("simhost: node class not registered")
	ErrUnknownNode     = errors.New("simhost: unknown node")
	ErrUnknownPin      = errors.New("simhost: unknown pin")
	ErrTypeMismatch    = errors.New("simhost: type mismatch")
	ErrDuplicateName   = errors.New("simhost: duplicate name")
	ErrUnknownType     = errors.New("simhost: unsupported data type")
	ErrUnknownVariable = errors.New("simhost: unknown variable")
	ErrInterface       = errors.New("simhost: interface error")
	ErrInterfaceMatch  = errors.New("simhost: interface mismatch")
)

type nodeState struct {
	id       string
	spec     ClassSpec
	x, y     float64
	variable string
	defaults map[string]literal.Literal
}

type boundaryState struct {
	name     string
	dataType string
	node     string
	def      literal.Literal
}

type variableState struct {
	name     string
	dataType string
	def      literal.Literal
}

type pinKey struct {
	node string
	pin  string
}

// Builder implements graphhost.Builder over an in-memory document.
type Builder struct {
	host *Host
	kind graphhost.AssetKind
	name string
	seq  int

	nodes      map[string]*nodeState
	order      []string
	interfaces []string
	inputs     []*boundaryState
	outputs    []*boundaryState
	variables  []*variableState
	edges      map[pinKey]graphhost.OutputRef
	presetOf   string
	live       bool
}

var _ graphhost.Builder = (*Builder)(nil)

func newBuilder(h *Host, kind graphhost.AssetKind, name string) *Builder {
	return &Builder{
		host:  h,
		kind:  kind,
		name:  name,
		nodes: make(map[string]*nodeState),
		edges: make(map[pinKey]graphhost.OutputRef),
	}
}

func (b *Builder) newNode(spec ClassSpec) *nodeState {
	b.seq++
	n := &nodeState{
		id:       fmt.Sprintf("node-%d", b.seq),
		spec:     spec,
		defaults: make(map[string]literal.Literal),
	}
	b.nodes[n.id] = n
	b.order = append(b.order, n.id)
	return n
}

func (b *Builder) node(ref graphhost.NodeRef) (*nodeState, error) {
	n, ok := b.nodes[ref.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNode, ref.ID)
	}
	return n, nil
}

func (b *Builder) checkEditable() error {
	if b.presetOf != "" {
		return ErrPresetLocked
	}
	return nil
}

func findBoundary(list []*boundaryState, name string) *boundaryState {
	for _, p := range list {
		if p.name == name {
			return p
		}
	}
	return nil
}

func (b *Builder) AddInterface(name string) (graphhost.InterfacePins, error) {
	spec, ok := interfaceSpecs[name]
	if !ok {
		return graphhost.InterfacePins{}, fmt.Errorf("%w: unknown interface %q (available: %s)",
			ErrInterface, name, strings.Join(Interfaces(), ", "))
	}
	if slices.Contains(b.interfaces, name) {
		return graphhost.InterfacePins{}, fmt.Errorf("%w: interface %q already added", ErrInterface, name)
	}
	for _, p := range spec.Inputs {
		if existing := findBoundary(b.inputs, p.Name); existing != nil && existing.dataType != p.DataType {
			return graphhost.InterfacePins{}, fmt.Errorf("%w: graph input %q already declared as %s",
				ErrTypeMismatch, p.Name, existing.dataType)
		}
	}
	for _, p := range spec.Outputs {
		if existing := findBoundary(b.outputs, p.Name); existing != nil && existing.dataType != p.DataType {
			return graphhost.InterfacePins{}, fmt.Errorf("%w: graph output %q already declared as %s",
				ErrTypeMismatch, p.Name, existing.dataType)
		}
	}

	var added graphhost.InterfacePins
	for _, p := range spec.Inputs {
		if findBoundary(b.inputs, p.Name) != nil {
			continue
		}
		added.Inputs = append(added.Inputs, b.addInput(p.Name, p.DataType))
	}
	for _, p := range spec.Outputs {
		if findBoundary(b.outputs, p.Name) != nil {
			continue
		}
		added.Outputs = append(added.Outputs, b.addOutput(p.Name, p.DataType))
	}
	b.interfaces = append(b.interfaces, name)
	return added, nil
}

func (b *Builder) addInput(name, dataType string) graphhost.BoundaryInput {
	n := b.newNode(ClassSpec{Class: ClassGraphInput, Outputs: pins(out(name, dataType))})
	b.inputs = append(b.inputs, &boundaryState{name: name, dataType: dataType, node: n.id})
	ref := graphhost.NodeRef{ID: n.id}
	return graphhost.BoundaryInput{
		Name:     name,
		DataType: dataType,
		Node:     ref,
		Output:   graphhost.OutputRef{Node: ref, Pin: name, DataType: dataType},
	}
}

func (b *Builder) addOutput(name, dataType string) graphhost.BoundaryOutput {
	n := b.newNode(ClassSpec{Class: ClassGraphOutput, Inputs: pins(in(name, dataType))})
	b.outputs = append(b.outputs, &boundaryState{name: name, dataType: dataType, node: n.id})
	ref := graphhost.NodeRef{ID: n.id}
	return graphhost.BoundaryOutput{
		Name:     name,
		DataType: dataType,
		Node:     ref,
		Input:    graphhost.InputRef{Node: ref, Pin: name, DataType: dataType},
	}
}

func (b *Builder) AddGraphInput(name, dataType string) (graphhost.BoundaryInput, error) {
	if err := b.checkEditable(); err != nil {
		return graphhost.BoundaryInput{}, err
	}
	if !KnownDataType(dataType) {
		return graphhost.BoundaryInput{}, fmt.Errorf("%w: %q", ErrUnknownType, dataType)
	}
	if findBoundary(b.inputs, name) != nil {
		return graphhost.BoundaryInput{}, fmt.Errorf("%w: graph input %q", ErrDuplicateName, name)
	}
	return b.addInput(name, dataType), nil
}

func (b *Builder) AddGraphOutput(name, dataType string) (graphhost.BoundaryOutput, error) {
	if err := b.checkEditable(); err != nil {
		return graphhost.BoundaryOutput{}, err
	}
	if !KnownDataType(dataType) {
		return graphhost.BoundaryOutput{}, fmt.Errorf("%w: %q", ErrUnknownType, dataType)
	}
	if findBoundary(b.outputs, name) != nil {
		return graphhost.BoundaryOutput{}, fmt.Errorf("%w: graph output %q", ErrDuplicateName, name)
	}
	return b.addOutput(name, dataType), nil
}

func (b *Builder) SetGraphInputDefault(name string, value literal.Literal) error {
	p := findBoundary(b.inputs, name)
	if p == nil {
		return fmt.Errorf("%w: graph input %q", ErrUnknownPin, name)
	}
	if err := checkLiteral(p.dataType, value); err != nil {
		return err
	}
	p.def = value
	return nil
}

func (b *Builder) AddNode(class string) (graphhost.NodeRef, error) {
	if err := b.checkEditable(); err != nil {
		return graphhost.NodeRef{}, err
	}
	switch class {
	case ClassVariableGet, ClassVariableGetD, ClassVariableSet:
		return graphhost.NodeRef{}, fmt.Errorf("%w: %q must be created through a variable accessor", ErrUnknownClass, class)
	}
	spec, ok := b.host.catalog.Lookup(class)
	if !ok {
		return graphhost.NodeRef{}, fmt.Errorf("%w: %q", ErrUnknownClass, class)
	}
	n := b.newNode(spec)
	return graphhost.NodeRef{ID: n.id}, nil
}

func (b *Builder) SetNodeLocation(ref graphhost.NodeRef, x, y float64) error {
	n, err := b.node(ref)
	if err != nil {
		return err
	}
	n.x, n.y = x, y
	return nil
}

func (b *Builder) FindNodeInput(ref graphhost.NodeRef, pin string) (graphhost.InputRef, error) {
	n, err := b.node(ref)
	if err != nil {
		return graphhost.InputRef{}, err
	}
	p, ok := n.spec.input(pin)
	if !ok {
		return graphhost.InputRef{}, fmt.Errorf("%w: input %q on %s", ErrUnknownPin, pin, n.spec.Class)
	}
	return graphhost.InputRef{Node: ref, Pin: p.Name, DataType: p.DataType}, nil
}

func (b *Builder) FindNodeOutput(ref graphhost.NodeRef, pin string) (graphhost.OutputRef, error) {
	n, err := b.node(ref)
	if err != nil {
		return graphhost.OutputRef{}, err
	}
	p, ok := n.spec.output(pin)
	if !ok {
		return graphhost.OutputRef{}, fmt.Errorf("%w: output %q on %s", ErrUnknownPin, pin, n.spec.Class)
	}
	return graphhost.OutputRef{Node: ref, Pin: p.Name, DataType: p.DataType}, nil
}

func (b *Builder) SetInputDefault(pin graphhost.InputRef, value literal.Literal) error {
	n, err := b.node(pin.Node)
	if err != nil {
		return err
	}
	p, ok := n.spec.input(pin.Pin)
	if !ok {
		return fmt.Errorf("%w: input %q on %s", ErrUnknownPin, pin.Pin, n.spec.Class)
	}
	if err := checkLiteral(p.DataType, value); err != nil {
		return err
	}
	n.defaults[p.Name] = value
	return nil
}

func (b *Builder) Connect(from graphhost.OutputRef, to graphhost.InputRef) error {
	if err := b.checkEditable(); err != nil {
		return err
	}
	src, err := b.node(from.Node)
	if err != nil {
		return err
	}
	dst, err := b.node(to.Node)
	if err != nil {
		return err
	}
	if src.id == dst.id {
		return fmt.Errorf("%w: cannot connect node %s to itself", ErrTypeMismatch, src.id)
	}
	op, ok := src.spec.output(from.Pin)
	if !ok {
		return fmt.Errorf("%w: output %q on %s", ErrUnknownPin, from.Pin, src.spec.Class)
	}
	ip, ok := dst.spec.input(to.Pin)
	if !ok {
		return fmt.Errorf("%w: input %q on %s", ErrUnknownPin, to.Pin, dst.spec.Class)
	}
	if op.DataType != ip.DataType {
		return fmt.Errorf("%w: cannot connect %s output %q to %s input %q",
			ErrTypeMismatch, op.DataType, op.Name, ip.DataType, ip.Name)
	}
	b.edges[pinKey{node: dst.id, pin: ip.Name}] = graphhost.OutputRef{Node: from.Node, Pin: op.Name, DataType: op.DataType}
	return nil
}

func (b *Builder) variable(name string) *variableState {
	for _, v := range b.variables {
		if v.name == name {
			return v
		}
	}
	return nil
}

func (b *Builder) AddGraphVariable(name, dataType string, value literal.Literal) error {
	if err := b.checkEditable(); err != nil {
		return err
	}
	if !KnownDataType(dataType) {
		return fmt.Errorf("%w: %q", ErrUnknownType, dataType)
	}
	if b.variable(name) != nil {
		return fmt.Errorf("%w: variable %q", ErrDuplicateName, name)
	}
	if !value.IsZero() {
		if err := checkLiteral(dataType, value); err != nil {
			return err
		}
	}
	b.variables = append(b.variables, &variableState{name: name, dataType: dataType, def: value})
	return nil
}

func (b *Builder) AddVariableGetNode(name string, delayed bool) (graphhost.NodeRef, error) {
	if err := b.checkEditable(); err != nil {
		return graphhost.NodeRef{}, err
	}
	v := b.variable(name)
	if v == nil {
		return graphhost.NodeRef{}, fmt.Errorf("%w: %q", ErrUnknownVariable, name)
	}
	class := ClassVariableGet
	if delayed {
		class = ClassVariableGetD
	}
	n := b.newNode(ClassSpec{Class: class, Outputs: pins(out("Value", v.dataType))})
	n.variable = name
	return graphhost.NodeRef{ID: n.id}, nil
}

func (b *Builder) AddVariableSetNode(name string) (graphhost.NodeRef, error) {
	if err := b.checkEditable(); err != nil {
		return graphhost.NodeRef{}, err
	}
	v := b.variable(name)
	if v == nil {
		return graphhost.NodeRef{}, fmt.Errorf("%w: %q", ErrUnknownVariable, name)
	}
	n := b.newNode(ClassSpec{Class: ClassVariableSet, Inputs: pins(in("Value", v.dataType))})
	n.variable = name
	return graphhost.NodeRef{ID: n.id}, nil
}

func (b *Builder) ConvertToPreset(referencedAsset string) error {
	ref, err := b.host.store.Get(referencedAsset)
	if err != nil {
		return err
	}
	want := slices.Sorted(slices.Values(ref.Interfaces))
	have := slices.Sorted(slices.Values(b.interfaces))
	if !slices.Equal(want, have) {
		return fmt.Errorf("%w: %q implements [%s], builder implements [%s]",
			ErrInterfaceMatch, referencedAsset, strings.Join(want, ", "), strings.Join(have, ", "))
	}
	b.presetOf = referencedAsset
	return nil
}

func (b *Builder) ConvertFromPreset() error {
	if b.presetOf == "" {
		return ErrNotPreset
	}
	b.presetOf = ""
	return nil
}

func (b *Builder) BuildToAsset(name, path string) (string, error) {
	objectPath := strings.TrimRight(path, "/") + "/" + name
	doc := b.Document()
	doc.Name = name
	if err := b.host.store.Put(objectPath, doc); err != nil {
		return "", err
	}
	b.host.logger.Info().Str("object_path", objectPath).Int("nodes", len(doc.Nodes)).Msg("simhost.Builder.BuildToAsset")
	return objectPath, nil
}

func (b *Builder) Audition() (graphhost.Playback, error) {
	return b.host.startPlayback(b.Document()), nil
}

func (b *Builder) SetLiveUpdates(enabled bool) error {
	b.live = enabled
	return nil
}

// LiveUpdates reports the live-update flag.
func (b *Builder) LiveUpdates() bool { return b.live }

// PresetOf returns the referenced asset while the builder is a preset.
func (b *Builder) PresetOf() string { return b.presetOf }

// Document snapshots the builder state.
func (b *Builder) Document() Document {
	doc := Document{
		Name:       b.name,
		Kind:       b.kind.String(),
		Interfaces: slices.Clone(b.interfaces),
		PresetOf:   b.presetOf,
	}
	for _, id := range b.order {
		n := b.nodes[id]
		nd := NodeDoc{ID: n.id, Class: n.spec.Class, X: n.x, Y: n.y, Variable: n.variable}
		if len(n.defaults) > 0 {
			nd.Defaults = maps.Clone(n.defaults)
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	for _, key := range slices.SortedFunc(maps.Keys(b.edges), func(a, c pinKey) int {
		if a.node != c.node {
			return strings.Compare(a.node, c.node)
		}
		return strings.Compare(a.pin, c.pin)
	}) {
		src := b.edges[key]
		doc.Edges = append(doc.Edges, EdgeDoc{FromNode: src.Node.ID, FromPin: src.Pin, ToNode: key.node, ToPin: key.pin})
	}
	for _, p := range b.inputs {
		doc.Inputs = append(doc.Inputs, GraphPinDoc{Name: p.name, DataType: p.dataType, Node: p.node, Default: p.def})
	}
	for _, p := range b.outputs {
		doc.Outputs = append(doc.Outputs, GraphPinDoc{Name: p.name, DataType: p.dataType, Node: p.node})
	}
	for _, v := range b.variables {
		doc.Variables = append(doc.Variables, VariableDoc{Name: v.name, DataType: v.dataType, Default: v.def})
	}
	return doc
}

// checkLiteral enforces which literal types a pin data type accepts.
func checkLiteral(dataType string, value literal.Literal) error {
	ok := false
	switch dataType {
	case TypeFloat, TypeTime:
		ok = value.Type() == literal.TypeFloat
	case TypeInt32:
		f, isFloat := value.AsFloat()
		ok = isFloat && f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32
	case TypeBool:
		ok = value.Type() == literal.TypeBool
	case TypeString, TypeWave:
		ok = value.Type() == literal.TypeString
	case TypeTrigger, TypeAudio:
		return fmt.Errorf("%w: %s pins take no literal default", ErrTypeMismatch, dataType)
	}
	if !ok {
		return fmt.Errorf("%w: cannot assign %s literal %q to %s pin", ErrTypeMismatch, value.Type(), value.String(), dataType)
	}
	return nil
}
