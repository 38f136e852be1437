// Package graphhost declares the external graph host the bridge drives.
//
// Every method is called from the exclusive execution context only.
package graphhost

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/graphctl/internal/literal"
)

var ErrUnknownAssetKind = errors.New("graphhost: unknown asset kind")

// AssetKind selects which document type a builder produces.
type AssetKind int

const (
	KindSource AssetKind = iota + 1
	KindPatch
	KindPreset
)

func (k AssetKind) String() string {
	switch k {
	case KindSource:
		return "Source"
	case KindPatch:
		return "Patch"
	case KindPreset:
		return "Preset"
	default:
		return "Unknown"
	}
}

// ParseAssetKind accepts Source, Patch or Preset in any case.
func ParseAssetKind(raw string) (AssetKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "source":
		return KindSource, nil
	case "patch":
		return KindPatch, nil
	case "preset":
		return KindPreset, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAssetKind, raw)
	}
}

// NodeRef is an opaque host node handle.
type NodeRef struct {
	ID string
}

func (n NodeRef) Valid() bool { return n.ID != "" }

// OutputRef is a value-producing pin. Graph inputs resolve to outputs.
type OutputRef struct {
	Node     NodeRef
	Pin      string
	DataType string
}

// InputRef is a value-consuming pin. Graph outputs resolve to inputs.
type InputRef struct {
	Node     NodeRef
	Pin      string
	DataType string
}

// BoundaryInput is a graph input pin added by the host.
type BoundaryInput struct {
	Name     string
	DataType string
	Node     NodeRef
	Output   OutputRef
}

// BoundaryOutput is a graph output pin added by the host.
type BoundaryOutput struct {
	Name     string
	DataType string
	Node     NodeRef
	Input    InputRef
}

// InterfacePins lists the boundary pins an interface bundle contributes.
type InterfacePins struct {
	Inputs  []BoundaryInput
	Outputs []BoundaryOutput
}

// Info describes the host for ping responses.
type Info struct {
	Name     string
	Version  string
	Features []string
}

// Host creates builders.
type Host interface {
	Info() Info
	CreateBuilder(kind AssetKind, name string) (Builder, error)
}

// AssetLister is implemented by hosts that can enumerate built assets.
type AssetLister interface {
	ListAssets(prefix string) ([]string, error)
}

// Builder edits one in-progress graph document.
type Builder interface {
	AddInterface(name string) (InterfacePins, error)
	AddGraphInput(name, dataType string) (BoundaryInput, error)
	AddGraphOutput(name, dataType string) (BoundaryOutput, error)
	SetGraphInputDefault(name string, value literal.Literal) error

	AddNode(class string) (NodeRef, error)
	SetNodeLocation(node NodeRef, x, y float64) error
	FindNodeInput(node NodeRef, pin string) (InputRef, error)
	FindNodeOutput(node NodeRef, pin string) (OutputRef, error)
	SetInputDefault(pin InputRef, value literal.Literal) error
	Connect(from OutputRef, to InputRef) error

	AddGraphVariable(name, dataType string, value literal.Literal) error
	AddVariableGetNode(variable string, delayed bool) (NodeRef, error)
	AddVariableSetNode(variable string) (NodeRef, error)

	ConvertToPreset(referencedAsset string) error
	ConvertFromPreset() error

	// BuildToAsset persists the document and returns its object path.
	BuildToAsset(name, path string) (string, error)
	Audition() (Playback, error)
	SetLiveUpdates(enabled bool) error
}

// Playback is a live audition. The session holds it until Stop.
type Playback interface {
	ID() string
	Playing() bool
	Stop() error
}
