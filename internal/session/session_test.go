package session

import (
	"encoding/json"
	"testing"

	"github.com/danmuck/graphctl/internal/graphhost"
	"github.com/danmuck/graphctl/internal/literal"
	"github.com/danmuck/graphctl/internal/protocol"
	"github.com/danmuck/graphctl/internal/registry"
	"github.com/danmuck/graphctl/internal/simhost"
	"github.com/danmuck/graphctl/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

type countingBuilder struct {
	graphhost.Builder
	builds int
}

func (c *countingBuilder) BuildToAsset(name, path string) (string, error) {
	c.builds++
	return c.Builder.BuildToAsset(name, path)
}

type countingHost struct {
	*simhost.Host
	last *countingBuilder
}

func (h *countingHost) CreateBuilder(kind graphhost.AssetKind, name string) (graphhost.Builder, error) {
	b, err := h.Host.CreateBuilder(kind, name)
	if err != nil {
		return nil, err
	}
	h.last = &countingBuilder{Builder: b}
	return h.last, nil
}

func newTestSession(t *testing.T) (*Session, *countingHost) {
	t.Helper()
	testlog.Start(t)
	host := &countingHost{Host: simhost.New(simhost.Options{})}
	return New(host, registry.New(nil), Config{}), host
}

func mustCreate(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.CreateBuilder("Source", "Test"))
}

func requireKind(t *testing.T, err error, kind protocol.Kind, msg string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, protocol.KindOf(err), "unexpected kind for %v", err)
	if msg != "" {
		require.Equal(t, msg, err.Error())
	}
}

func TestCreateBuilderRejectsUnknownKind(t *testing.T) {
	s, _ := newTestSession(t)
	err := s.CreateBuilder("Blueprint", "Test")
	requireKind(t, err, protocol.KindValidation, "Invalid asset_type 'Blueprint'. Must be Source, Patch, or Preset")
	require.Equal(t, StateUninitialized, s.State())
}

func TestOperationsRequireActiveBuilder(t *testing.T) {
	s, _ := newTestSession(t)
	_, err := s.AddNode("osc", "Sine", 0, 0)
	requireKind(t, err, protocol.KindValidation, "No active builder. Call create_builder first")
	_, err = s.AddInterface("Source")
	requireKind(t, err, protocol.KindValidation, "")
	_, err = s.GraphInputNames()
	requireKind(t, err, protocol.KindValidation, "")
	require.False(t, s.StopAudition())
}

func TestDuplicateNodeIDKeepsOriginal(t *testing.T) {
	s, _ := newTestSession(t)
	mustCreate(t, s)

	first, err := s.AddNode("osc", "Sine", 10, 20)
	require.NoError(t, err)
	require.Equal(t, "Core::Generators::Sine", first.Class)

	_, err = s.AddNode("osc", "Saw", 99, 99)
	requireKind(t, err, protocol.KindValidation, "Duplicate node ID 'osc'")

	h, ok := s.Node("osc")
	require.True(t, ok)
	require.Equal(t, first.Class, h.Class)
	require.Equal(t, 10.0, h.X)
	require.Equal(t, 20.0, h.Y)
	require.Len(t, s.Nodes(), 1)
}

func TestAddNodeRejectsSentinelAndUnknownType(t *testing.T) {
	s, _ := newTestSession(t)
	mustCreate(t, s)

	_, err := s.AddNode(protocol.GraphBoundary, "Sine", 0, 0)
	requireKind(t, err, protocol.KindValidation, "Node ID '__graph__' is reserved for the graph boundary")

	_, err = s.AddNode("x", "NotAType", 0, 0)
	requireKind(t, err, protocol.KindNotFound, "")

	_, err = s.AddNode("y", "Vendor::Missing", 0, 0)
	requireKind(t, err, protocol.KindHost, "")
	require.Empty(t, s.Nodes(), "failed adds must not leave handles")

	h, err := s.AddNode("z", "Core::Filters::Ladder", 0, 0)
	require.NoError(t, err, "qualified names bypass the alias table")
	require.Equal(t, "Core::Filters::Ladder", h.Class)
}

func TestGraphInputConnectThroughSentinel(t *testing.T) {
	s, _ := newTestSession(t)
	mustCreate(t, s)
	_, err := s.AddNode("osc", "Sine", 0, 0)
	require.NoError(t, err)

	def := "440"
	in, warning, err := s.AddGraphInput("Freq", "Float", &def)
	require.NoError(t, err)
	require.Empty(t, warning)
	require.Equal(t, literal.Float(440), in.Default)

	require.NoError(t, s.Connect(protocol.GraphBoundary, "Freq", "osc", "Frequency"))

	err = s.Connect(protocol.GraphBoundary, "Missing", "osc", "Frequency")
	requireKind(t, err, protocol.KindNotFound, "Graph input 'Missing' not found")
}

func TestSentinelAsymmetry(t *testing.T) {
	s, _ := newTestSession(t)
	mustCreate(t, s)
	_, _ = s.AddNode("osc", "Sine", 0, 0)
	_, _, err := s.AddGraphInput("Freq", "Float", nil)
	require.NoError(t, err)
	_, err = s.AddGraphOutput("Out", "Audio")
	require.NoError(t, err)

	require.NoError(t, s.Connect("osc", "Audio", protocol.GraphBoundary, "Out"))

	err = s.Connect("osc", "Audio", protocol.GraphBoundary, "Freq")
	requireKind(t, err, protocol.KindNotFound, "Graph output 'Freq' not found")

	err = s.Connect(protocol.GraphBoundary, "Out", "osc", "Frequency")
	requireKind(t, err, protocol.KindNotFound, "Graph input 'Out' not found")
}

func TestConnectErrors(t *testing.T) {
	s, _ := newTestSession(t)
	mustCreate(t, s)
	_, _ = s.AddNode("osc", "Sine", 0, 0)
	_, _ = s.AddNode("gain", "Gain", 0, 0)

	requireKind(t, s.Connect("nope", "Audio", "gain", "In"), protocol.KindNotFound, "Source node 'nope' not found")
	requireKind(t, s.Connect("osc", "Audio", "nope", "In"), protocol.KindNotFound, "Target node 'nope' not found")
	requireKind(t, s.Connect("osc", "Bogus", "gain", "In"), protocol.KindNotFound, "Output 'Bogus' not found on node 'osc'")
	requireKind(t, s.Connect("osc", "Audio", "gain", "Bogus"), protocol.KindNotFound, "Input 'Bogus' not found on node 'gain'")
	requireKind(t, s.Connect("osc", "Audio", "gain", "Gain"), protocol.KindHost, "")
	require.NoError(t, s.Connect("osc", "Audio", "gain", "In"))
}

func TestSetDefault(t *testing.T) {
	s, _ := newTestSession(t)
	mustCreate(t, s)
	_, _ = s.AddNode("osc", "Sine", 0, 0)

	v, err := s.SetDefault("osc", "Frequency", json.RawMessage(`880`))
	require.NoError(t, err)
	require.Equal(t, literal.Float(880), v)

	_, err = s.SetDefault("osc", "Frequency", json.RawMessage(`[1,2]`))
	requireKind(t, err, protocol.KindValidation, "Invalid param 'value': must be a number, boolean, or string")

	_, err = s.SetDefault("osc", "Nope", json.RawMessage(`1`))
	requireKind(t, err, protocol.KindNotFound, "Input 'Nope' not found on node 'osc'")

	_, err = s.SetDefault("ghost", "Frequency", json.RawMessage(`1`))
	requireKind(t, err, protocol.KindNotFound, "Node 'ghost' not found")

	_, err = s.SetDefault("osc", "Frequency", json.RawMessage(`"fast"`))
	requireKind(t, err, protocol.KindHost, "")

	_, _, err = s.AddGraphInput("Gain", "Float", nil)
	require.NoError(t, err)
	v, err = s.SetDefault(protocol.GraphBoundary, "Gain", json.RawMessage(`0.5`))
	require.NoError(t, err)
	require.Equal(t, literal.Float(0.5), v)
	require.Equal(t, literal.Float(0.5), s.Snapshot().Inputs[0].Default)
}

func TestGraphInputDefaultFailureIsWarning(t *testing.T) {
	s, _ := newTestSession(t)
	mustCreate(t, s)

	def := "loud"
	in, warning, err := s.AddGraphInput("Freq", "Float", &def)
	require.NoError(t, err)
	require.NotEmpty(t, warning)
	require.True(t, in.Default.IsZero())

	names, err := s.GraphInputNames()
	require.NoError(t, err)
	require.Equal(t, []string{"Freq"}, names)
}

func TestGraphInputNamesRoundTrip(t *testing.T) {
	s, _ := newTestSession(t)
	mustCreate(t, s)
	def := "1.5"
	_, _, err := s.AddGraphInput("x", "Float", &def)
	require.NoError(t, err)

	_, _, err = s.AddGraphInput("x", "Float", nil)
	requireKind(t, err, protocol.KindValidation, "Graph input 'x' already exists")

	names, err := s.GraphInputNames()
	require.NoError(t, err)
	count := 0
	for _, n := range names {
		if n == "x" {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestAddInterfaceRecordsBoundaryPins(t *testing.T) {
	s, _ := newTestSession(t)
	mustCreate(t, s)
	_, err := s.AddInterface("Source.OneShot")
	require.NoError(t, err)
	_, err = s.AddInterface("OutputFormat.Mono")
	require.NoError(t, err)

	names, _ := s.GraphInputNames()
	require.Equal(t, []string{"OnPlay"}, names)

	_, _ = s.AddNode("osc", "Sine", 0, 0)
	require.NoError(t, s.Connect("osc", "Audio", protocol.GraphBoundary, "Out Mono"))

	_, err = s.AddInterface("Imaginary")
	requireKind(t, err, protocol.KindHost, "")
}

func TestBuildToAssetPathRules(t *testing.T) {
	s, host := newTestSession(t)
	mustCreate(t, s)

	path, err := s.BuildToAsset("MySound", "/Content/Generated")
	require.NoError(t, err)
	require.Equal(t, "/Content/Generated/MySound", path)
	require.True(t, s.Materialized())
	require.Equal(t, StateActive, s.State())
	require.Equal(t, 1, host.last.builds)

	for _, bad := range []string{"/etc/../x", "/Content/../etc", "/Game/Sounds", "", `/Content\x`, "/Content/./x"} {
		_, err := s.BuildToAsset("MySound", bad)
		requireKind(t, err, protocol.KindValidation, "")
	}
	_, err = s.BuildToAsset("a/b", "/Content/Generated")
	requireKind(t, err, protocol.KindValidation, "")
	require.Equal(t, 1, host.last.builds, "rejected paths must not reach the host")
}

func TestAuditionOwnership(t *testing.T) {
	s, host := newTestSession(t)
	mustCreate(t, s)

	first, err := s.Audition()
	require.NoError(t, err)
	require.Equal(t, StateAuditioning, s.State())
	second, err := s.Audition()
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	require.Equal(t, 1, host.ActivePlaybacks(), "previous playback must be stopped first")

	require.True(t, s.StopAudition())
	require.False(t, s.StopAudition())
	require.Equal(t, 0, host.ActivePlaybacks())
	require.Equal(t, StateActive, s.State())
}

func TestCreateBuilderResetsState(t *testing.T) {
	s, host := newTestSession(t)
	mustCreate(t, s)
	_, _ = s.AddNode("osc", "Sine", 0, 0)
	_, _, _ = s.AddGraphInput("Freq", "Float", nil)
	_, _ = s.AddGraphOutput("Out", "Audio")
	_, _ = s.AddGraphVariable("Level", "Float", nil)
	_, err := s.Audition()
	require.NoError(t, err)
	firstID := s.Snapshot().SessionID

	require.NoError(t, s.CreateBuilder("patch", "Second"))
	snap := s.Snapshot()
	require.NotEqual(t, firstID, snap.SessionID)
	require.Equal(t, "Patch", snap.Kind)
	require.Empty(t, snap.Nodes)
	require.Empty(t, snap.Inputs)
	require.Empty(t, snap.Outputs)
	require.Empty(t, snap.Variables)
	require.Equal(t, 0, host.ActivePlaybacks())
	require.Equal(t, StateActive, s.State())

	_, err = s.AddNode("osc", "Sine", 0, 0)
	require.NoError(t, err, "ids are free again after reset")
}

func TestFailedCreateBuilderKeepsSession(t *testing.T) {
	s, _ := newTestSession(t)
	mustCreate(t, s)
	_, _ = s.AddNode("osc", "Sine", 0, 0)

	requireKind(t, s.CreateBuilder("Source", "  "), protocol.KindValidation, "")
	require.Len(t, s.Nodes(), 1)
}

func TestVariables(t *testing.T) {
	s, _ := newTestSession(t)
	mustCreate(t, s)
	def := "0.25"
	v, err := s.AddGraphVariable("Level", "Float", &def)
	require.NoError(t, err)
	require.Equal(t, literal.Float(0.25), v.Default)

	_, err = s.AddGraphVariable("Level", "Float", nil)
	requireKind(t, err, protocol.KindValidation, "Variable 'Level' already exists")

	get, err := s.AddVariableGetNode("get", "Level", true, 0, 0)
	require.NoError(t, err)
	require.Equal(t, ClassVariableGetDelayed, get.Class)
	set, err := s.AddVariableSetNode("set", "Level", 0, 0)
	require.NoError(t, err)
	require.Equal(t, ClassVariableSet, set.Class)

	require.NoError(t, s.Connect("get", "Value", "set", "Value"))

	_, err = s.AddVariableGetNode("get2", "Missing", false, 0, 0)
	requireKind(t, err, protocol.KindNotFound, "Variable 'Missing' not found")
	_, err = s.AddVariableSetNode("get", "Level", 0, 0)
	requireKind(t, err, protocol.KindValidation, "Duplicate node ID 'get'")
}

func TestPresetConversion(t *testing.T) {
	s, _ := newTestSession(t)
	mustCreate(t, s)
	_, _ = s.AddInterface("OutputFormat.Stereo")
	_, err := s.BuildToAsset("Base", "/Content/Lib")
	require.NoError(t, err)

	require.NoError(t, s.CreateBuilder("Preset", "Variant"))
	_, _ = s.AddInterface("OutputFormat.Stereo")

	requireKind(t, s.ConvertToPreset("/Content/../Lib/Base"), protocol.KindValidation, "")
	requireKind(t, s.ConvertToPreset("/Content/Lib/Nope"), protocol.KindHost, "")
	require.NoError(t, s.ConvertToPreset("/Content/Lib/Base"))
	require.Equal(t, "/Content/Lib/Base", s.Snapshot().PresetOf)

	require.NoError(t, s.ConvertFromPreset())
	require.Empty(t, s.Snapshot().PresetOf)
	requireKind(t, s.ConvertFromPreset(), protocol.KindHost, "")
}

func TestSetNodePositionAndLiveUpdates(t *testing.T) {
	s, _ := newTestSession(t)
	mustCreate(t, s)
	_, _ = s.AddNode("osc", "Sine", 0, 0)

	h, err := s.SetNodePosition("osc", 300, -40)
	require.NoError(t, err)
	require.Equal(t, 300.0, h.X)
	_, err = s.SetNodePosition("nope", 0, 0)
	requireKind(t, err, protocol.KindNotFound, "Node 'nope' not found")

	require.NoError(t, s.SetLiveUpdates(true))
	require.True(t, s.Snapshot().LiveUpdates)
}

func TestCloseReleasesPlayback(t *testing.T) {
	s, host := newTestSession(t)
	mustCreate(t, s)
	_, err := s.Audition()
	require.NoError(t, err)
	s.Close()
	require.Equal(t, 0, host.ActivePlaybacks())
	require.Equal(t, StateUninitialized, s.State())
}

func TestValidateAssetPath(t *testing.T) {
	testlog.Start(t)
	ok := []string{"/Content", "/Content/", "/Content/Generated", "/Content/A/B/C"}
	for _, p := range ok {
		require.NoError(t, ValidateAssetPath("/Content/", p), p)
	}
	bad := []string{"/Contents/X", "Content/X", "/Content/../X", "/Content/A/..", "/x/Content/A"}
	for _, p := range bad {
		require.Error(t, ValidateAssetPath("/Content/", p), p)
	}
}
