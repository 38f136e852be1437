package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Command is one decoded request. It is immutable after decode.
type Command struct {
	action string
	body   []byte
	fields map[string]json.RawMessage
}

// DecodeCommand parses a request body into a Command.
func DecodeCommand(body []byte) (Command, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return Command{}, &Error{Kind: KindProtocol, Message: fmt.Sprintf("Invalid JSON: %v", err), Err: ErrInvalidJSON}
	}
	if fields == nil {
		return Command{}, &Error{Kind: KindProtocol, Message: "Invalid JSON: expected an object", Err: ErrInvalidJSON}
	}
	raw, ok := fields["action"]
	if !ok {
		return Command{}, &Error{Kind: KindProtocol, Message: "Missing 'action' field", Err: ErrMissingAction}
	}
	var action string
	if err := json.Unmarshal(raw, &action); err != nil || strings.TrimSpace(action) == "" {
		return Command{}, &Error{Kind: KindProtocol, Message: "Field 'action' must be a non-empty string", Err: ErrMissingAction}
	}
	return Command{action: action, body: bytes.Clone(body), fields: fields}, nil
}

// NewCommand builds a Command from an action and parameter map.
func NewCommand(action string, params map[string]any) (Command, error) {
	msg := make(map[string]any, len(params)+1)
	for k, v := range params {
		msg[k] = v
	}
	msg["action"] = action
	body, err := json.Marshal(msg)
	if err != nil {
		return Command{}, err
	}
	return DecodeCommand(body)
}

func (c Command) Action() string {
	return c.action
}

// Body returns a copy of the raw request body.
func (c Command) Body() []byte {
	return bytes.Clone(c.body)
}

// Has reports whether the request carries a non-null field.
func (c Command) Has(key string) bool {
	raw, ok := c.fields[key]
	return ok && string(raw) != "null"
}

// Raw returns the undecoded JSON for one field.
func (c Command) Raw(key string) (json.RawMessage, bool) {
	raw, ok := c.fields[key]
	return raw, ok
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Bind decodes the request into dst and runs its validate tags. Failures are
// validation errors naming the offending parameter.
func (c Command) Bind(dst any) error {
	if err := json.Unmarshal(c.body, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Validationf("Invalid param '%s': expected %s", typeErr.Field, jsonKind(typeErr.Type))
		}
		return Validationf("Invalid params: %v", err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return describeFieldError(verrs[0])
		}
		return Validationf("Invalid params: %v", err)
	}
	return nil
}

func describeFieldError(fe validator.FieldError) error {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return Validationf("Missing required param '%s'", name)
	case "min":
		if fe.Kind() == reflect.Slice || fe.Kind() == reflect.Array {
			return Validationf("Invalid param '%s': expected at least %s values", name, fe.Param())
		}
		return Validationf("Invalid param '%s': must be at least %s", name, fe.Param())
	case "max":
		return Validationf("Invalid param '%s': must be at most %s", name, fe.Param())
	case "oneof":
		return Validationf("Invalid param '%s': must be one of [%s]", name, fe.Param())
	case "ne":
		return Validationf("Invalid param '%s': value '%v' is reserved", name, fe.Value())
	default:
		return Validationf("Invalid param '%s': failed %s", name, fe.Tag())
	}
}

func jsonKind(t reflect.Type) string {
	if t == nil {
		return "value"
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Pointer:
		return jsonKind(t.Elem())
	default:
		return t.String()
	}
}
