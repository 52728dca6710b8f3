// Package tool defines the side-effecting operations workers can invoke:
// HTTP APIs, local commands and plain Go functions.
//
// Every tool describes its arguments with a JSON-schema document so that
// LLM workers can offer it to the model, and receives those arguments as a
// map. Typed tools decode the map with DecodeArgs.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"

	"github.com/randalmurphal/agentrouter/pkg/agentrouter/llm"
)

// Tool is one invocable operation.
type Tool interface {
	Name() string
	Description() string
	// Parameters is a JSON-schema object describing the arguments.
	Parameters() json.RawMessage
	Call(ctx context.Context, args map[string]any) (any, error)
}

// Error reports a failed tool call. Workers turn it into message content
// rather than failing the run.
type Error struct {
	Tool string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Definition describes t for a completion request.
func Definition(t Tool) llm.Tool {
	return llm.Tool{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Parameters(),
	}
}

// Schema builds an object schema from property types such as "string" or
// "number". Every name in required must appear in props.
func Schema(props map[string]string, required ...string) json.RawMessage {
	properties := make(map[string]any, len(props))
	for name, typ := range props {
		properties[name] = map[string]string{"type": typ}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		req := append([]string(nil), required...)
		sort.Strings(req)
		schema["required"] = req
	}
	data, _ := json.Marshal(schema)
	return data
}

// DecodeArgs decodes a tool argument map into out, a pointer to a struct.
// Fields match on their json tag and scalar types are converted loosely,
// so "720" fills an int.
func DecodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("decode tool args: %w", err)
	}
	return nil
}

// Render formats a tool result as message content. Strings pass through
// and everything else is encoded as JSON.
func Render(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
