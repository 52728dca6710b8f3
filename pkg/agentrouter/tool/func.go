package tool

import (
	"context"
	"encoding/json"
)

type funcTool[T any] struct {
	name        string
	description string
	params      json.RawMessage
	fn          func(ctx context.Context, args T) (any, error)
}

// Func wraps a Go function as a Tool. Arguments are decoded into T with
// DecodeArgs before fn is called.
func Func[T any](name, description string, params json.RawMessage, fn func(ctx context.Context, args T) (any, error)) Tool {
	if params == nil {
		params = Schema(nil)
	}
	return &funcTool[T]{name: name, description: description, params: params, fn: fn}
}

func (t *funcTool[T]) Name() string                { return t.name }
func (t *funcTool[T]) Description() string         { return t.description }
func (t *funcTool[T]) Parameters() json.RawMessage { return t.params }

func (t *funcTool[T]) Call(ctx context.Context, args map[string]any) (any, error) {
	var in T
	if err := DecodeArgs(args, &in); err != nil {
		return nil, &Error{Tool: t.name, Err: err}
	}
	out, err := t.fn(ctx, in)
	if err != nil {
		return nil, &Error{Tool: t.name, Err: err}
	}
	return out, nil
}
