package simhost

import (
	"errors"
	"testing"

	"github.com/danmuck/graphctl/internal/graphhost"
	"github.com/danmuck/graphctl/internal/literal"
	"github.com/danmuck/graphctl/internal/registry"
	"github.com/danmuck/graphctl/internal/testutil/testlog"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func newSourceBuilder(t *testing.T, h *Host) *Builder {
	t.Helper()
	b, err := h.CreateBuilder(graphhost.KindSource, "Test")
	require.NoError(t, err)
	return b.(*Builder)
}

func TestCatalogCoversBuiltinAliases(t *testing.T) {
	testlog.Start(t)
	cat := DefaultCatalog()
	for _, a := range registry.New(nil).Aliases("") {
		if a.Class == ClassVariableGet || a.Class == ClassVariableSet {
			continue
		}
		if _, ok := cat.Lookup(a.Class); !ok {
			t.Fatalf("alias %q maps to class %q missing from catalog", a.Name, a.Class)
		}
	}
}

func TestCreateBuilderRequiresName(t *testing.T) {
	testlog.Start(t)
	_, err := New(Options{}).CreateBuilder(graphhost.KindSource, " ")
	require.ErrorIs(t, err, ErrEmptyBuilderName)
}

func TestBuildGraphAndPersist(t *testing.T) {
	testlog.Start(t)
	h := New(Options{})
	b := newSourceBuilder(t, h)

	pinsAdded, err := b.AddInterface("OutputFormat.Mono")
	require.NoError(t, err)
	require.Len(t, pinsAdded.Outputs, 1)
	require.Equal(t, "Out Mono", pinsAdded.Outputs[0].Name)

	freq, err := b.AddGraphInput("Freq", TypeFloat)
	require.NoError(t, err)
	require.NoError(t, b.SetGraphInputDefault("Freq", literal.Float(440)))

	osc, err := b.AddNode("Core::Generators::Sine")
	require.NoError(t, err)
	require.NoError(t, b.SetNodeLocation(osc, 100, 50))

	freqIn, err := b.FindNodeInput(osc, "Frequency")
	require.NoError(t, err)
	require.NoError(t, b.Connect(freq.Output, freqIn))

	audio, err := b.FindNodeOutput(osc, "Audio")
	require.NoError(t, err)
	require.NoError(t, b.Connect(audio, pinsAdded.Outputs[0].Input))

	path, err := b.BuildToAsset("MySound", "/Content/Generated/")
	require.NoError(t, err)
	require.Equal(t, "/Content/Generated/MySound", path)

	doc, err := h.Store().Get(path)
	require.NoError(t, err)
	require.Equal(t, "MySound", doc.Name)
	require.Equal(t, []string{"OutputFormat.Mono"}, doc.Interfaces)
	require.Len(t, doc.Edges, 2)
	require.Equal(t, literal.Float(440), doc.Inputs[0].Default)

	listed, err := h.Store().List("/Content/")
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"/Content/Generated/MySound"}, listed); diff != "" {
		t.Fatalf("unexpected listing (-want +got):\n%s", diff)
	}
}

func TestConnectRejectsTypeMismatch(t *testing.T) {
	testlog.Start(t)
	b := newSourceBuilder(t, New(Options{}))
	osc, _ := b.AddNode("Core::Generators::Sine")
	gain, _ := b.AddNode("Core::MathOps::Gain")

	audio, err := b.FindNodeOutput(osc, "Audio")
	require.NoError(t, err)
	gainAmount, err := b.FindNodeInput(gain, "Gain")
	require.NoError(t, err)
	require.ErrorIs(t, b.Connect(audio, gainAmount), ErrTypeMismatch)

	gainIn, _ := b.FindNodeInput(gain, "In")
	require.NoError(t, b.Connect(audio, gainIn))

	_, err = b.FindNodeInput(osc, "Cutoff")
	require.ErrorIs(t, err, ErrUnknownPin)
}

func TestLiteralDefaultsAreTypeChecked(t *testing.T) {
	testlog.Start(t)
	b := newSourceBuilder(t, New(Options{}))
	osc, _ := b.AddNode("Core::Generators::Sine")
	freq, _ := b.FindNodeInput(osc, "Frequency")
	enabled, _ := b.FindNodeInput(osc, "Enabled")
	sync, _ := b.FindNodeInput(osc, "Sync")

	require.NoError(t, b.SetInputDefault(freq, literal.Float(880)))
	require.ErrorIs(t, b.SetInputDefault(freq, literal.String("loud")), ErrTypeMismatch)
	require.NoError(t, b.SetInputDefault(enabled, literal.Bool(false)))
	require.ErrorIs(t, b.SetInputDefault(sync, literal.Bool(true)), ErrTypeMismatch)

	noise, _ := b.AddNode("Core::Generators::WhiteNoise")
	seed, _ := b.FindNodeInput(noise, "Seed")
	require.NoError(t, b.SetInputDefault(seed, literal.Float(7)))
	require.ErrorIs(t, b.SetInputDefault(seed, literal.Float(7.5)), ErrTypeMismatch)
}

func TestInterfacesMergeSharedPins(t *testing.T) {
	testlog.Start(t)
	b := newSourceBuilder(t, New(Options{}))
	first, err := b.AddInterface("Source.OneShot")
	require.NoError(t, err)
	require.Len(t, first.Inputs, 1)
	second, err := b.AddInterface("Source.Looping")
	require.NoError(t, err)
	require.Empty(t, second.Inputs, "OnPlay is already declared")

	_, err = b.AddInterface("Source.OneShot")
	require.ErrorIs(t, err, ErrInterface)
	_, err = b.AddInterface("Nope")
	require.ErrorIs(t, err, ErrInterface)
}

func TestVariablesAndAccessors(t *testing.T) {
	testlog.Start(t)
	b := newSourceBuilder(t, New(Options{}))
	require.NoError(t, b.AddGraphVariable("Level", TypeFloat, literal.Float(0.5)))
	require.ErrorIs(t, b.AddGraphVariable("Level", TypeFloat, literal.Literal{}), ErrDuplicateName)
	require.ErrorIs(t, b.AddGraphVariable("Bad", TypeFloat, literal.Bool(true)), ErrTypeMismatch)

	get, err := b.AddVariableGetNode("Level", true)
	require.NoError(t, err)
	set, err := b.AddVariableSetNode("Level")
	require.NoError(t, err)

	value, err := b.FindNodeOutput(get, "Value")
	require.NoError(t, err)
	require.Equal(t, TypeFloat, value.DataType)
	_, err = b.FindNodeInput(set, "Value")
	require.NoError(t, err)

	_, err = b.AddVariableGetNode("Missing", false)
	require.ErrorIs(t, err, ErrUnknownVariable)

	doc := b.Document()
	require.Equal(t, ClassVariableGetD, doc.Nodes[0].Class)
	require.Equal(t, "Level", doc.Nodes[0].Variable)
}

func TestPresetRequiresMatchingInterfaces(t *testing.T) {
	testlog.Start(t)
	h := New(Options{})
	base := newSourceBuilder(t, h)
	_, err := base.AddInterface("OutputFormat.Stereo")
	require.NoError(t, err)
	_, err = base.BuildToAsset("Base", "/Content/Lib")
	require.NoError(t, err)

	mismatch := newSourceBuilder(t, h)
	_, _ = mismatch.AddInterface("OutputFormat.Mono")
	require.ErrorIs(t, mismatch.ConvertToPreset("/Content/Lib/Base"), ErrInterfaceMatch)
	require.ErrorIs(t, mismatch.ConvertToPreset("/Content/Lib/Missing"), ErrAssetNotFound)

	preset := newSourceBuilder(t, h)
	_, _ = preset.AddInterface("OutputFormat.Stereo")
	require.NoError(t, preset.ConvertToPreset("/Content/Lib/Base"))
	require.Equal(t, "/Content/Lib/Base", preset.PresetOf())

	_, err = preset.AddNode("Core::Generators::Sine")
	require.ErrorIs(t, err, ErrPresetLocked)

	require.NoError(t, preset.ConvertFromPreset())
	require.ErrorIs(t, preset.ConvertFromPreset(), ErrNotPreset)
	_, err = preset.AddNode("Core::Generators::Sine")
	require.NoError(t, err)
}

func TestPlaybackLifecycle(t *testing.T) {
	testlog.Start(t)
	h := New(Options{})
	b := newSourceBuilder(t, h)
	p, err := b.Audition()
	require.NoError(t, err)
	require.True(t, p.Playing())
	require.Equal(t, 1, h.ActivePlaybacks())

	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())
	require.False(t, p.Playing())
	require.Equal(t, 0, h.ActivePlaybacks())

	_, _ = b.Audition()
	require.NoError(t, h.Close())
	require.Equal(t, 0, h.ActivePlaybacks())
}

func TestVariableClassesCannotBeAddedDirectly(t *testing.T) {
	testlog.Start(t)
	b := newSourceBuilder(t, New(Options{}))
	_, err := b.AddNode(ClassVariableGet)
	require.ErrorIs(t, err, ErrUnknownClass)
	_, err = b.AddNode("Vendor::Missing")
	require.True(t, errors.Is(err, ErrUnknownClass))
}
