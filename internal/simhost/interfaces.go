package simhost

import "sort"

type interfaceSpec struct {
	Inputs  []PinSpec
	Outputs []PinSpec
}

var interfaceSpecs = map[string]interfaceSpec{
	"Source": {
		Inputs:  pins(in("OnPlay", TypeTrigger)),
		Outputs: pins(out("OnFinished", TypeTrigger)),
	},
	"Source.OneShot": {
		Inputs:  pins(in("OnPlay", TypeTrigger)),
		Outputs: pins(out("OnFinished", TypeTrigger)),
	},
	"Source.Looping": {
		Inputs: pins(in("OnPlay", TypeTrigger)),
	},
	"OutputFormat.Mono": {
		Outputs: pins(out("Out Mono", TypeAudio)),
	},
	"OutputFormat.Stereo": {
		Outputs: pins(out("Out Left", TypeAudio), out("Out Right", TypeAudio)),
	},
	"Attenuation": {
		Inputs: pins(in("Distance", TypeFloat)),
	},
	"Spatialization": {
		Inputs: pins(in("Azimuth", TypeFloat), in("Elevation", TypeFloat)),
	},
}

// Interfaces lists the interface bundles the host can attach.
func Interfaces() []string {
	out := make([]string, 0, len(interfaceSpecs))
	for name := range interfaceSpecs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
