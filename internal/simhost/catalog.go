package simhost

import (
	"sort"
	"sync"

	"github.com/danmuck/graphctl/internal/literal"
)

// Pin data types understood by the reference host.
const (
	TypeFloat   = "Float"
	TypeInt32   = "Int32"
	TypeBool    = "Bool"
	TypeString  = "String"
	TypeTrigger = "Trigger"
	TypeAudio   = "Audio"
	TypeTime    = "Time"
	TypeWave    = "WaveAsset"
)

// Classes the host creates itself.
const (
	ClassGraphInput   = "Core::Graph::Input"
	ClassGraphOutput  = "Core::Graph::Output"
	ClassVariableGet  = "Core::Variables::Get"
	ClassVariableGetD = "Core::Variables::GetDelayed"
	ClassVariableSet  = "Core::Variables::Set"
)

var dataTypes = map[string]struct{}{
	TypeFloat: {}, TypeInt32: {}, TypeBool: {}, TypeString: {},
	TypeTrigger: {}, TypeAudio: {}, TypeTime: {}, TypeWave: {},
}

// KnownDataType reports whether t is a pin data type.
func KnownDataType(t string) bool {
	_, ok := dataTypes[t]
	return ok
}

// PinSpec describes one pin on a node class.
type PinSpec struct {
	Name     string          `json:"name"`
	DataType string          `json:"data_type"`
	Default  literal.Literal `json:"default,omitzero"`
}

// ClassSpec is the pin layout of a node class.
type ClassSpec struct {
	Class   string    `json:"class"`
	Inputs  []PinSpec `json:"inputs"`
	Outputs []PinSpec `json:"outputs"`
}

func (c ClassSpec) input(name string) (PinSpec, bool) {
	for _, p := range c.Inputs {
		if p.Name == name {
			return p, true
		}
	}
	return PinSpec{}, false
}

func (c ClassSpec) output(name string) (PinSpec, bool) {
	for _, p := range c.Outputs {
		if p.Name == name {
			return p, true
		}
	}
	return PinSpec{}, false
}

// Catalog holds node classes the host can instantiate.
type Catalog struct {
	mu      sync.RWMutex
	classes map[string]ClassSpec
}

func NewCatalog() *Catalog {
	return &Catalog{classes: make(map[string]ClassSpec)}
}

func (c *Catalog) Register(spec ClassSpec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.classes[spec.Class] = spec
}

func (c *Catalog) Lookup(class string) (ClassSpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	spec, ok := c.classes[class]
	return spec, ok
}

// Classes returns registered class names in order.
func (c *Catalog) Classes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.classes))
	for name := range c.classes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func in(name, dataType string) PinSpec { return PinSpec{Name: name, DataType: dataType} }

func inF(name string, def float64) PinSpec {
	return PinSpec{Name: name, DataType: TypeFloat, Default: literal.Float(def)}
}

func inB(name string, def bool) PinSpec {
	return PinSpec{Name: name, DataType: TypeBool, Default: literal.Bool(def)}
}

func out(name, dataType string) PinSpec { return PinSpec{Name: name, DataType: dataType} }

func pins(p ...PinSpec) []PinSpec { return p }

func oscillator(class string) ClassSpec {
	return ClassSpec{
		Class: class,
		Inputs: pins(
			inB("Enabled", true), inB("Bi Polar", true), inF("Frequency", 440),
			in("Modulation", TypeAudio), in("Sync", TypeTrigger),
			inF("Phase Offset", 0), inF("Glide", 0),
		),
		Outputs: pins(out("Audio", TypeAudio)),
	}
}

func audioFilter(class string, extra ...PinSpec) ClassSpec {
	return ClassSpec{
		Class:   class,
		Inputs:  append(pins(in("In", TypeAudio), inF("Cutoff Frequency", 1000)), extra...),
		Outputs: pins(out("Out", TypeAudio)),
	}
}

func binary(class, dataType string) ClassSpec {
	return ClassSpec{
		Class:   class,
		Inputs:  pins(in("A", dataType), in("B", dataType)),
		Outputs: pins(out("Out", dataType)),
	}
}

func audioEffect(class string, params ...PinSpec) ClassSpec {
	return ClassSpec{
		Class:   class,
		Inputs:  append(pins(in("In Audio", TypeAudio)), params...),
		Outputs: pins(out("Out Audio", TypeAudio)),
	}
}

func stereoEffect(class string, params ...PinSpec) ClassSpec {
	return ClassSpec{
		Class:   class,
		Inputs:  append(pins(in("In Left", TypeAudio), in("In Right", TypeAudio)), params...),
		Outputs: pins(out("Out Left", TypeAudio), out("Out Right", TypeAudio)),
	}
}

func trigger(class string, inputs []PinSpec, outputs ...PinSpec) ClassSpec {
	return ClassSpec{Class: class, Inputs: inputs, Outputs: outputs}
}

func convert(class, from, to string) ClassSpec {
	return ClassSpec{Class: class, Inputs: pins(in("In", from)), Outputs: pins(out("Out", to))}
}

// DefaultCatalog returns the classes behind the builtin alias table.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, spec := range []ClassSpec{
		oscillator("Core::Generators::Sine"),
		oscillator("Core::Generators::Saw"),
		oscillator("Core::Generators::Square"),
		oscillator("Core::Generators::Triangle"),
		oscillator("Core::Generators::Oscillator"),
		{
			Class:   "Core::Generators::Pulse",
			Inputs:  pins(inB("Enabled", true), inF("Frequency", 440), inF("Width", 0.5), in("Sync", TypeTrigger)),
			Outputs: pins(out("Audio", TypeAudio)),
		},
		{
			Class:   "Core::Generators::Noise",
			Inputs:  pins(in("Seed", TypeInt32), in("Type", TypeInt32)),
			Outputs: pins(out("Audio", TypeAudio)),
		},
		{
			Class:   "Core::Generators::WhiteNoise",
			Inputs:  pins(in("Seed", TypeInt32)),
			Outputs: pins(out("Audio", TypeAudio)),
		},
		{
			Class:   "Core::Generators::LFO",
			Inputs:  pins(inF("Frequency", 1), inF("Min Value", 0), inF("Max Value", 1), in("Sync", TypeTrigger), inF("Phase Offset", 0)),
			Outputs: pins(out("Out", TypeFloat)),
		},
		{
			Class:   "Core::Generators::WaveTable",
			Inputs:  pins(inF("Frequency", 440), inF("Table Index", 0), in("Sync", TypeTrigger)),
			Outputs: pins(out("Audio", TypeAudio)),
		},
		{
			Class: "Core::Generators::Granulator",
			Inputs: pins(in("Wave Asset", TypeWave), in("Play", TypeTrigger), in("Stop", TypeTrigger),
				inF("Grain Duration", 0.1), inF("Grains Per Second", 20), inF("Pitch Shift", 0)),
			Outputs: pins(out("Out Left", TypeAudio), out("Out Right", TypeAudio)),
		},
		{
			Class: "Core::WavePlayer::Mono",
			Inputs: pins(in("Play", TypeTrigger), in("Stop", TypeTrigger), in("Wave Asset", TypeWave),
				in("Start Time", TypeTime), inF("Pitch Shift", 0), inB("Loop", false)),
			Outputs: pins(out("On Play", TypeTrigger), out("On Finished", TypeTrigger), out("Out Mono", TypeAudio)),
		},
		{
			Class: "Core::WavePlayer::Stereo",
			Inputs: pins(in("Play", TypeTrigger), in("Stop", TypeTrigger), in("Wave Asset", TypeWave),
				in("Start Time", TypeTime), inF("Pitch Shift", 0), inB("Loop", false)),
			Outputs: pins(out("On Play", TypeTrigger), out("On Finished", TypeTrigger),
				out("Out Left", TypeAudio), out("Out Right", TypeAudio)),
		},
		{
			Class:   "Core::Envelopes::AD",
			Inputs:  pins(in("Trigger", TypeTrigger), inF("Attack Time", 0.01), inF("Decay Time", 1), inF("Attack Curve", 1), inF("Decay Curve", 1)),
			Outputs: pins(out("On Trigger", TypeTrigger), out("On Done", TypeTrigger), out("Out Envelope", TypeFloat)),
		},
		{
			Class: "Core::Envelopes::ADSR",
			Inputs: pins(in("Trigger Attack", TypeTrigger), in("Trigger Release", TypeTrigger),
				inF("Attack Time", 0.01), inF("Decay Time", 0.2), inF("Sustain Level", 0.5), inF("Release Time", 1)),
			Outputs: pins(out("On Attack Triggered", TypeTrigger), out("On Done", TypeTrigger), out("Out Envelope", TypeFloat)),
		},
		audioFilter("Core::Filters::Biquad", in("Filter Type", TypeInt32), inF("Bandwidth", 1), inF("Gain", 0)),
		audioFilter("Core::Filters::StateVariable", inF("Resonance", 0)),
		audioFilter("Core::Filters::Lowpass", inF("Resonance", 0)),
		audioFilter("Core::Filters::Highpass", inF("Resonance", 0)),
		audioFilter("Core::Filters::Bandpass", inF("Bandwidth", 1)),
		audioFilter("Core::Filters::Ladder", inF("Resonance", 1)),
		audioFilter("Core::Filters::OnePoleLowpass"),
		audioFilter("Core::Filters::OnePoleHighpass"),
		{
			Class:   "Core::MathOps::Gain",
			Inputs:  pins(in("In", TypeAudio), inF("Gain", 1)),
			Outputs: pins(out("Out", TypeAudio)),
		},
		binary("Core::MathOps::Multiply", TypeFloat),
		binary("Core::MathOps::Multiply::Audio", TypeAudio),
		binary("Core::MathOps::Add", TypeFloat),
		binary("Core::MathOps::Add::Audio", TypeAudio),
		binary("Core::MathOps::Subtract", TypeFloat),
		binary("Core::MathOps::Divide", TypeFloat),
		{
			Class:   "Core::MathOps::Clamp",
			Inputs:  pins(in("In", TypeFloat), inF("Min", 0), inF("Max", 1)),
			Outputs: pins(out("Out", TypeFloat)),
		},
		{
			Class: "Core::MathOps::MapRange",
			Inputs: pins(in("In", TypeFloat), inF("In Range A", 0), inF("In Range B", 1),
				inF("Out Range A", 0), inF("Out Range B", 1), inB("Clamped", true)),
			Outputs: pins(out("Out", TypeFloat)),
		},
		{
			Class:   "Core::MathOps::Interpolate",
			Inputs:  pins(in("Target", TypeFloat), inF("Interp Time", 0.1)),
			Outputs: pins(out("Value", TypeFloat)),
		},
		{
			Class:   "Core::MathOps::SampleAndHold",
			Inputs:  pins(in("Sample And Hold", TypeTrigger), in("In", TypeAudio)),
			Outputs: pins(out("Out", TypeAudio)),
		},
		{
			Class:   "Core::Random::Float",
			Inputs:  pins(in("Next", TypeTrigger), in("Reset", TypeTrigger), in("Seed", TypeInt32), inF("Min", 0), inF("Max", 1)),
			Outputs: pins(out("On Next", TypeTrigger), out("On Reset", TypeTrigger), out("Value", TypeFloat)),
		},
		{
			Class:   "Core::Random::GetFloat",
			Inputs:  pins(in("Next", TypeTrigger), in("Seed", TypeInt32)),
			Outputs: pins(out("Value", TypeFloat)),
		},
		{
			Class: "Core::Mixing::StereoMixer",
			Inputs: pins(in("In 0 L", TypeAudio), in("In 0 R", TypeAudio), inF("Gain 0", 1),
				in("In 1 L", TypeAudio), in("In 1 R", TypeAudio), inF("Gain 1", 1)),
			Outputs: pins(out("Out L", TypeAudio), out("Out R", TypeAudio)),
		},
		{
			Class:   "Core::Mixing::MonoMixer",
			Inputs:  pins(in("In 0", TypeAudio), inF("Gain 0", 1), in("In 1", TypeAudio), inF("Gain 1", 1)),
			Outputs: pins(out("Out", TypeAudio)),
		},
		binary("Core::Mixing::Mix", TypeAudio),
		audioEffect("Core::Effects::Delay", in("Delay Time", TypeTime), inF("Dry Level", 0), inF("Wet Level", 1), inF("Feedback", 0)),
		stereoEffect("Core::Effects::StereoDelay", in("Delay Time", TypeTime), inF("Feedback", 0), inF("Wet Level", 1)),
		stereoEffect("Core::Effects::Reverb", inF("Wet Level", 0.3), inF("Decay", 1)),
		stereoEffect("Core::Effects::Chorus", inF("Depth", 0.5), inF("Frequency", 2), inF("Wet Level", 0.5)),
		audioEffect("Core::Effects::Phaser", inF("Frequency", 0.5), inF("Feedback", 0.5)),
		audioEffect("Core::Effects::Flanger", inF("Frequency", 0.5), inF("Depth", 0.5)),
		audioEffect("Core::Dynamics::Compressor", inF("Ratio", 1.5), inF("Threshold dB", -6), inF("Attack Time", 0.01), inF("Release Time", 0.1)),
		audioEffect("Core::Dynamics::Limiter", inF("Input Gain dB", 0), inF("Threshold dB", 0), inF("Release Time", 0.1)),
		audioEffect("Core::Dynamics::Gate", inF("Threshold dB", -60), inF("Attack Time", 0.01), inF("Release Time", 0.1)),
		trigger("Core::Triggers::Repeat", pins(in("Start", TypeTrigger), in("Stop", TypeTrigger), in("Period", TypeTime)),
			out("RepeatOut", TypeTrigger)),
		trigger("Core::Triggers::Counter", pins(in("In", TypeTrigger), in("Reset", TypeTrigger), inF("Start Value", 0), inF("Step Size", 1)),
			out("On Trigger", TypeTrigger), out("Count", TypeInt32)),
		trigger("Core::Triggers::Control", pins(in("Trigger In", TypeTrigger), in("Open", TypeTrigger), in("Close", TypeTrigger)),
			out("Trigger Out", TypeTrigger)),
		trigger("Core::Triggers::OnThreshold", pins(in("In", TypeAudio), inF("Threshold", 0.5)),
			out("Out", TypeTrigger)),
		trigger("Core::Triggers::Delay", pins(in("In", TypeTrigger), in("Reset", TypeTrigger), in("Delay Time", TypeTime)),
			out("Out", TypeTrigger)),
		trigger("Core::Triggers::Route", pins(in("Set 0", TypeTrigger), in("Set 1", TypeTrigger), in("In", TypeTrigger)),
			out("Out 0", TypeTrigger), out("Out 1", TypeTrigger)),
		convert("Core::Timing::BPMToSeconds", TypeFloat, TypeTime),
		convert("Core::Conversions::FreqToMIDI", TypeFloat, TypeFloat),
		convert("Core::Conversions::MIDIToFreq", TypeFloat, TypeFloat),
		convert("Core::Conversions::SemitonesToFreqMultiplier", TypeFloat, TypeFloat),
		convert("Core::Conversions::DecibelsToLinear", TypeFloat, TypeFloat),
		convert("Core::Conversions::LinearToDecibels", TypeFloat, TypeFloat),
		convert("Core::Conversions::FloatToAudio", TypeFloat, TypeAudio),
		convert("Core::Conversions::AudioToFloat", TypeAudio, TypeFloat),
		{
			Class:   "Core::Routing::MonoToStereo",
			Inputs:  pins(in("In", TypeAudio)),
			Outputs: pins(out("Out Left", TypeAudio), out("Out Right", TypeAudio)),
		},
		{
			Class:   "Core::Routing::StereoToMono",
			Inputs:  pins(in("In Left", TypeAudio), in("In Right", TypeAudio)),
			Outputs: pins(out("Out", TypeAudio)),
		},
		{
			Class:   "Core::Routing::Send",
			Inputs:  pins(in("Address", TypeString), in("Audio", TypeAudio)),
			Outputs: pins(),
		},
		{
			Class:   "Core::Routing::Receive",
			Inputs:  pins(in("Address", TypeString)),
			Outputs: pins(out("Audio", TypeAudio)),
		},
		{
			Class:   "Core::Spatialization::ITDPanner",
			Inputs:  pins(in("In", TypeAudio), inF("Angle", 90), inF("Distance Factor", 0), inF("Head Width", 34)),
			Outputs: pins(out("Out Left", TypeAudio), out("Out Right", TypeAudio)),
		},
		{
			Class:   "Core::Spatialization::StereoPanner",
			Inputs:  pins(in("In", TypeAudio), inF("Pan Amount", 0)),
			Outputs: pins(out("Out Left", TypeAudio), out("Out Right", TypeAudio)),
		},
	} {
		c.Register(spec)
	}
	return c
}
