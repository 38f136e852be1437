package commands

import (
	"encoding/json"

	"github.com/danmuck/graphctl/internal/protocol"
)

type createBuilderParams struct {
	AssetType string `json:"asset_type" validate:"required"`
	Name      string `json:"name" validate:"required"`
}

func handleCreateBuilder(cmd protocol.Command, st *State) protocol.Response {
	var p createBuilderParams
	if resp, ok := bind(cmd, &p); !ok {
		return resp
	}
	if err := st.Session.CreateBuilder(p.AssetType, p.Name); err != nil {
		return protocol.Fail(err)
	}
	snap := st.Session.Snapshot()
	return protocol.OKf("Created %s builder '%s'", snap.Kind, p.Name).
		With("asset_type", snap.Kind).
		With("name", p.Name).
		With("session_id", snap.SessionID)
}

type addInterfaceParams struct {
	Interface string `json:"interface" validate:"required"`
}

func handleAddInterface(cmd protocol.Command, st *State) protocol.Response {
	var p addInterfaceParams
	if resp, ok := bind(cmd, &p); !ok {
		return resp
	}
	pins, err := st.Session.AddInterface(p.Interface)
	if err != nil {
		return protocol.Fail(err)
	}
	inputs := make([]string, 0, len(pins.Inputs))
	for _, in := range pins.Inputs {
		inputs = append(inputs, in.Name)
	}
	outputs := make([]string, 0, len(pins.Outputs))
	for _, out := range pins.Outputs {
		outputs = append(outputs, out.Name)
	}
	return protocol.OKf("Added interface '%s'", p.Interface).
		With("interface", p.Interface).
		With("inputs", inputs).
		With("outputs", outputs)
}

type graphPinParams struct {
	Name    string          `json:"name" validate:"required"`
	Type    string          `json:"type" validate:"required"`
	Default json.RawMessage `json:"default"`
}

func handleAddGraphInput(cmd protocol.Command, st *State) protocol.Response {
	var p graphPinParams
	if resp, ok := bind(cmd, &p); !ok {
		return resp
	}
	def, err := defaultText("default", p.Default)
	if err != nil {
		return protocol.Fail(err)
	}
	in, warning, err := st.Session.AddGraphInput(p.Name, p.Type, def)
	if err != nil {
		return protocol.Fail(err)
	}
	resp := protocol.OKf("Added graph input '%s' (%s)", p.Name, p.Type).
		With("name", in.Name).
		With("type", in.DataType)
	if !in.Default.IsZero() {
		resp = resp.With("default", in.Default)
	}
	if warning != "" {
		resp = resp.With("warning", warning)
	}
	return resp
}

func handleAddGraphOutput(cmd protocol.Command, st *State) protocol.Response {
	var p graphPinParams
	if resp, ok := bind(cmd, &p); !ok {
		return resp
	}
	out, err := st.Session.AddGraphOutput(p.Name, p.Type)
	if err != nil {
		return protocol.Fail(err)
	}
	return protocol.OKf("Added graph output '%s' (%s)", p.Name, p.Type).
		With("name", out.Name).
		With("type", out.DataType)
}

type buildToAssetParams struct {
	Name string `json:"name" validate:"required"`
	Path string `json:"path" validate:"required"`
}

func handleBuildToAsset(cmd protocol.Command, st *State) protocol.Response {
	var p buildToAssetParams
	if resp, ok := bind(cmd, &p); !ok {
		return resp
	}
	objectPath, err := st.Session.BuildToAsset(p.Name, p.Path)
	if err != nil {
		return protocol.Fail(err)
	}
	return protocol.OKf("Built asset '%s' at '%s'", p.Name, p.Path).
		With("name", p.Name).
		With("path", p.Path).
		With("object_path", objectPath)
}

func handleAudition(_ protocol.Command, st *State) protocol.Response {
	id, err := st.Session.Audition()
	if err != nil {
		return protocol.Fail(err)
	}
	name := st.Session.Snapshot().Name
	return protocol.OKf("Auditioning '%s'", name).With("playback_id", id)
}

func handleStopAudition(_ protocol.Command, st *State) protocol.Response {
	stopped := st.Session.StopAudition()
	msg := "Audition stopped"
	if !stopped {
		msg = "No audition playing"
	}
	return protocol.OK(msg).With("stopped", stopped)
}

type convertToPresetParams struct {
	ReferencedAsset string `json:"referenced_asset" validate:"required"`
}

func handleConvertToPreset(cmd protocol.Command, st *State) protocol.Response {
	var p convertToPresetParams
	if resp, ok := bind(cmd, &p); !ok {
		return resp
	}
	if err := st.Session.ConvertToPreset(p.ReferencedAsset); err != nil {
		return protocol.Fail(err)
	}
	return protocol.OKf("Converted to preset of '%s'", p.ReferencedAsset).
		With("referenced_asset", p.ReferencedAsset)
}

func handleConvertFromPreset(_ protocol.Command, st *State) protocol.Response {
	if err := st.Session.ConvertFromPreset(); err != nil {
		return protocol.Fail(err)
	}
	return protocol.OK("Converted from preset to full graph")
}

type setLiveUpdatesParams struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

func handleSetLiveUpdates(cmd protocol.Command, st *State) protocol.Response {
	var p setLiveUpdatesParams
	if resp, ok := bind(cmd, &p); !ok {
		return resp
	}
	if err := st.Session.SetLiveUpdates(*p.Enabled); err != nil {
		return protocol.Fail(err)
	}
	state := "disabled"
	if *p.Enabled {
		state = "enabled"
	}
	return protocol.OKf("Live updates %s", state).With("enabled", *p.Enabled)
}
