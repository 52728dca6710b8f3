package llm

import (
	"context"
	"sync"
)

// ScriptedClient replays a fixed sequence of responses and records every
// request. When the script runs out the last response repeats.
type ScriptedClient struct {
	mu        sync.Mutex
	responses []CompletionResponse
	respond   func(CompletionRequest) (*CompletionResponse, error)
	err       error
	next      int

	// Calls holds every request in arrival order.
	Calls []CompletionRequest
}

// NewScriptedClient returns a client that answers with contents in order.
func NewScriptedClient(contents ...string) *ScriptedClient {
	c := &ScriptedClient{}
	for _, content := range contents {
		c.responses = append(c.responses, CompletionResponse{Content: content, FinishReason: "stop"})
	}
	return c
}

// WithResponses appends full responses (for tool calls) to the script.
func (c *ScriptedClient) WithResponses(responses ...CompletionResponse) *ScriptedClient {
	c.responses = append(c.responses, responses...)
	return c
}

// WithFunc answers every request with fn instead of the script.
func (c *ScriptedClient) WithFunc(fn func(CompletionRequest) (*CompletionResponse, error)) *ScriptedClient {
	c.respond = fn
	return c
}

// WithError makes every call fail with err.
func (c *ScriptedClient) WithError(err error) *ScriptedClient {
	c.err = err
	return c
}

// Complete implements Client.
func (c *ScriptedClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Calls = append(c.Calls, req)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.err != nil {
		return nil, c.err
	}
	if c.respond != nil {
		return c.respond(req)
	}
	if len(c.responses) == 0 {
		return &CompletionResponse{FinishReason: "stop"}, nil
	}

	i := c.next
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	} else {
		c.next++
	}
	resp := c.responses[i]
	return &resp, nil
}

// CallCount returns the number of calls made.
func (c *ScriptedClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}

// LastCall returns the most recent request, or nil.
func (c *ScriptedClient) LastCall() *CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Calls) == 0 {
		return nil
	}
	req := c.Calls[len(c.Calls)-1]
	return &req
}
