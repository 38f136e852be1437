package registry

// builtinAliases maps display names to canonical class identifiers.
var builtinAliases = map[string]string{
	// Generators
	"Sine":        "Core::Generators::Sine",
	"Noise":       "Core::Generators::Noise",
	"White Noise": "Core::Generators::WhiteNoise",
	"LFO":         "Core::Generators::LFO",
	"Oscillator":  "Core::Generators::Oscillator",
	"Saw":         "Core::Generators::Saw",
	"Square":      "Core::Generators::Square",
	"Triangle":    "Core::Generators::Triangle",
	"Pulse":       "Core::Generators::Pulse",
	"WaveTable":   "Core::Generators::WaveTable",
	"Granulator":  "Core::Generators::Granulator",

	"Wave Player (Mono)":   "Core::WavePlayer::Mono",
	"Wave Player (Stereo)": "Core::WavePlayer::Stereo",

	// Envelopes
	"AD Envelope":   "Core::Envelopes::AD",
	"ADSR Envelope": "Core::Envelopes::ADSR",

	// Filters
	"Biquad Filter":         "Core::Filters::Biquad",
	"State Variable Filter": "Core::Filters::StateVariable",
	"Lowpass Filter":        "Core::Filters::Lowpass",
	"Highpass Filter":       "Core::Filters::Highpass",
	"Bandpass Filter":       "Core::Filters::Bandpass",
	"Ladder Filter":         "Core::Filters::Ladder",
	"One-Pole Lowpass":      "Core::Filters::OnePoleLowpass",
	"One-Pole Highpass":     "Core::Filters::OnePoleHighpass",

	// Math
	"Gain":             "Core::MathOps::Gain",
	"Multiply":         "Core::MathOps::Multiply",
	"Multiply (Audio)": "Core::MathOps::Multiply::Audio",
	"Add":              "Core::MathOps::Add",
	"Add (Audio)":      "Core::MathOps::Add::Audio",
	"Subtract":         "Core::MathOps::Subtract",
	"Divide":           "Core::MathOps::Divide",
	"Clamp":            "Core::MathOps::Clamp",
	"Map Range":        "Core::MathOps::MapRange",
	"Interpolate":      "Core::MathOps::Interpolate",
	"Sample And Hold":  "Core::MathOps::SampleAndHold",

	"Random (Float)":     "Core::Random::Float",
	"Random Get (Float)": "Core::Random::GetFloat",

	// Mixing
	"Stereo Mixer": "Core::Mixing::StereoMixer",
	"Mono Mixer":   "Core::Mixing::MonoMixer",
	"Mix":          "Core::Mixing::Mix",

	// Effects
	"Delay":        "Core::Effects::Delay",
	"Stereo Delay": "Core::Effects::StereoDelay",
	"Reverb":       "Core::Effects::Reverb",
	"Chorus":       "Core::Effects::Chorus",
	"Phaser":       "Core::Effects::Phaser",
	"Flanger":      "Core::Effects::Flanger",

	// Dynamics
	"Compressor": "Core::Dynamics::Compressor",
	"Limiter":    "Core::Dynamics::Limiter",
	"Gate":       "Core::Dynamics::Gate",

	// Triggers
	"Trigger Repeat":       "Core::Triggers::Repeat",
	"Trigger Counter":      "Core::Triggers::Counter",
	"Trigger Control":      "Core::Triggers::Control",
	"Trigger On Threshold": "Core::Triggers::OnThreshold",
	"Trigger Delay":        "Core::Triggers::Delay",
	"Trigger Route":        "Core::Triggers::Route",

	// Conversions
	"BPM To Seconds":               "Core::Timing::BPMToSeconds",
	"Freq To MIDI":                 "Core::Conversions::FreqToMIDI",
	"MIDI To Freq":                 "Core::Conversions::MIDIToFreq",
	"Semitones To Freq Multiplier": "Core::Conversions::SemitonesToFreqMultiplier",
	"dB To Linear":                 "Core::Conversions::DecibelsToLinear",
	"Linear To dB":                 "Core::Conversions::LinearToDecibels",
	"Float To Audio":               "Core::Conversions::FloatToAudio",
	"Audio To Float":               "Core::Conversions::AudioToFloat",

	// Routing
	"Mono To Stereo": "Core::Routing::MonoToStereo",
	"Stereo To Mono": "Core::Routing::StereoToMono",
	"Send":           "Core::Routing::Send",
	"Receive":        "Core::Routing::Receive",

	// Spatialization
	"ITD Panner":    "Core::Spatialization::ITDPanner",
	"Stereo Panner": "Core::Spatialization::StereoPanner",

	// Variables
	"Get": "Core::Variables::Get",
	"Set": "Core::Variables::Set",
}

// Builtin returns a copy of the compiled-in alias table.
func Builtin() Table {
	return Table(builtinAliases).Clone()
}
