package protocol

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Status is the literal wire status string.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

var reservedKeys = map[string]struct{}{
	"status":  {},
	"action":  {},
	"message": {},
	"kind":    {},
}

// Response is one reply. Fields are flattened next to the envelope keys on the wire.
type Response struct {
	Status  Status
	Action  string
	Message string
	Kind    Kind
	Fields  map[string]any
}

// OK builds a success response.
func OK(message string) Response {
	return Response{Status: StatusOK, Message: message}
}

// OKf builds a success response with a formatted message.
func OKf(format string, args ...any) Response {
	return OK(fmt.Sprintf(format, args...))
}

// Fail converts err into an error response classified by KindOf.
func Fail(err error) Response {
	return Response{Status: StatusError, Message: err.Error(), Kind: KindOf(err)}
}

// Failf builds an error response of the given kind.
func Failf(kind Kind, format string, args ...any) Response {
	return Fail(Errorf(kind, format, args...))
}

// IsOK reports whether the response carries status "ok".
func (r Response) IsOK() bool {
	return r.Status == StatusOK
}

// With returns a copy of r carrying one more payload field.
func (r Response) With(key string, value any) Response {
	fields := make(map[string]any, len(r.Fields)+1)
	maps.Copy(fields, r.Fields)
	fields[key] = value
	r.Fields = fields
	return r
}

// Stamp returns a copy of r echoing the originating action.
func (r Response) Stamp(action string) Response {
	r.Action = action
	return r
}

// Field returns one payload field.
func (r Response) Field(key string) (any, bool) {
	v, ok := r.Fields[key]
	return v, ok
}

func (r Response) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+4)
	for k, v := range r.Fields {
		if _, reserved := reservedKeys[k]; reserved {
			continue
		}
		out[k] = v
	}
	out["status"] = r.Status
	out["action"] = r.Action
	out["message"] = r.Message
	if r.Status == StatusError && r.Kind != "" {
		out["kind"] = r.Kind
	}
	return json.Marshal(out)
}

func (r *Response) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Response{}
	if v, ok := raw["status"].(string); ok {
		r.Status = Status(v)
	}
	if v, ok := raw["action"].(string); ok {
		r.Action = v
	}
	if v, ok := raw["message"].(string); ok {
		r.Message = v
	}
	if v, ok := raw["kind"].(string); ok {
		r.Kind = Kind(v)
	}
	for k, v := range raw {
		if _, reserved := reservedKeys[k]; reserved {
			continue
		}
		if r.Fields == nil {
			r.Fields = make(map[string]any)
		}
		r.Fields[k] = v
	}
	return nil
}

// Encode marshals the response body for the wire.
func (r Response) Encode() ([]byte, error) {
	return json.Marshal(r)
}
