package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeCommand(t *testing.T) {
	cmd, err := DecodeCommand([]byte(`{"action":"add_node","id":"osc","node_type":"Sine"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cmd.Action() != "add_node" {
		t.Fatalf("unexpected action: %q", cmd.Action())
	}
	if !cmd.Has("id") || cmd.Has("position") {
		t.Fatalf("unexpected field presence")
	}
}

func TestDecodeCommandProtocolErrors(t *testing.T) {
	cases := map[string]error{
		`not json`:          ErrInvalidJSON,
		`[1,2]`:             ErrInvalidJSON,
		`null`:              ErrInvalidJSON,
		`{"name":"x"}`:      ErrMissingAction,
		`{"action":""}`:     ErrMissingAction,
		`{"action":42}`:     ErrMissingAction,
		`{"action":"   "}`:  ErrMissingAction,
	}
	for body, want := range cases {
		_, err := DecodeCommand([]byte(body))
		if !errors.Is(err, want) {
			t.Fatalf("body=%s expected %v, got %v", body, want, err)
		}
		if !errors.Is(err, ErrProtocol) || KindOf(err) != KindProtocol {
			t.Fatalf("body=%s expected protocol kind, got %v", body, err)
		}
	}
}

type bindParams struct {
	Name     string    `json:"name" validate:"required"`
	Enabled  *bool     `json:"enabled" validate:"required"`
	Position []float64 `json:"position" validate:"omitempty,min=2"`
}

func TestBindValidation(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"action":"x","enabled":true}`, "Missing required param 'name'"},
		{`{"action":"x","name":"a"}`, "Missing required param 'enabled'"},
		{`{"action":"x","name":"a","enabled":"yes"}`, "Invalid param 'enabled': expected boolean"},
		{`{"action":"x","name":"a","enabled":true,"position":[1]}`, "Invalid param 'position': expected at least 2 values"},
	}
	for _, tc := range cases {
		cmd, err := DecodeCommand([]byte(tc.body))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		var p bindParams
		err = cmd.Bind(&p)
		if err == nil {
			t.Fatalf("body=%s expected error", tc.body)
		}
		if err.Error() != tc.want {
			t.Fatalf("body=%s unexpected message: %q", tc.body, err.Error())
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation kind, got %v", KindOf(err))
		}
	}

	cmd, _ := NewCommand("x", map[string]any{"name": "a", "enabled": false, "position": []float64{1, 2}})
	var p bindParams
	if err := cmd.Bind(&p); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if p.Name != "a" || p.Enabled == nil || *p.Enabled || len(p.Position) != 2 {
		t.Fatalf("unexpected bind result: %+v", p)
	}
}

func TestResponseMarshalFlattensFields(t *testing.T) {
	resp := OK("Added node 'osc'").With("id", "osc").With("status", "shadowed").Stamp("add_node")
	body, err := resp.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["status"] != "ok" || raw["action"] != "add_node" || raw["id"] != "osc" {
		t.Fatalf("unexpected body: %s", body)
	}
	if _, ok := raw["kind"]; ok {
		t.Fatalf("ok response must not carry kind: %s", body)
	}

	var back Response
	if err := json.Unmarshal(body, &back); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !back.IsOK() || back.Message != "Added node 'osc'" {
		t.Fatalf("unexpected decoded response: %+v", back)
	}
	if v, _ := back.Field("id"); v != "osc" {
		t.Fatalf("unexpected id field: %v", v)
	}
}

func TestFailCarriesKind(t *testing.T) {
	resp := Fail(NotFoundf("Node '%s' not found", "osc")).Stamp("connect")
	body, _ := resp.Encode()
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	if raw["status"] != "error" || raw["kind"] != "not_found" || raw["message"] != "Node 'osc' not found" {
		t.Fatalf("unexpected error body: %s", body)
	}
	if KindOf(errors.New("plain")) != KindHost {
		t.Fatalf("unclassified errors should be host errors")
	}
}

func TestWithDoesNotMutateOriginal(t *testing.T) {
	base := OK("ok").With("a", 1)
	_ = base.With("b", 2)
	if _, ok := base.Field("b"); ok {
		t.Fatalf("With mutated the original response")
	}
}
