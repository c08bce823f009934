package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/nugget/thane-mcpbridge/internal/mcp"
	"github.com/nugget/thane-mcpbridge/internal/tools"
)

// Session is the slice of an MCP session the catalog needs. *mcp.Client
// satisfies it.
type Session interface {
	ListTools(ctx context.Context, forceRefresh bool) ([]mcp.ToolDescriptor, error)
	CallTool(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error)
}

// Tool is one remote tool exposed to the agent under a unique key.
type Tool struct {
	Key           string
	EndpointLabel string
	EndpointURL   string
	RemoteName    string
	Description   string
	InputSchema   json.RawMessage

	session Session
}

// Result is the outcome of invoking a tool. Invocation never returns a
// Go error; failures are reported with Success false and the message in
// Error. Err keeps the underlying error for callers that need to tell
// cancellation apart from a failed call.
type Result struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
	Err     error           `json:"-"`
}

// Cancelled reports whether the invocation was abandoned because its
// context ended.
func (r Result) Cancelled() bool {
	return r.Err != nil && mcp.IsCancellation(r.Err)
}

// Invoke calls the remote tool through its endpoint's session.
func (t *Tool) Invoke(ctx context.Context, args json.RawMessage) Result {
	result, err := t.session.CallTool(ctx, t.RemoteName, args)
	if err != nil {
		return Result{Success: false, Error: err.Error(), Err: err}
	}
	return Result{Success: true, Result: result}
}

// withKey returns a copy of t under a different key.
func (t *Tool) withKey(key string) *Tool {
	c := *t
	c.Key = key
	return &c
}

// Toolset is an ordered collection of tools with unique keys.
type Toolset struct {
	keys  []string
	byKey map[string]*Tool
}

func newToolset() *Toolset {
	return &Toolset{byKey: make(map[string]*Tool)}
}

// add inserts t, renaming it with a numeric suffix if its key is taken,
// and returns the key it was stored under.
func (s *Toolset) add(t *Tool) string {
	key := uniqueKey(t.Key, func(k string) bool {
		_, ok := s.byKey[k]
		return ok
	})
	if key != t.Key {
		t = t.withKey(key)
	}
	s.keys = append(s.keys, key)
	s.byKey[key] = t
	return key
}

// Len returns the number of tools in the set.
func (s *Toolset) Len() int {
	return len(s.keys)
}

// Get returns the tool stored under key.
func (s *Toolset) Get(key string) (*Tool, bool) {
	t, ok := s.byKey[key]
	return t, ok
}

// Keys returns the tool keys in materialization order.
func (s *Toolset) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// All iterates the tools in materialization order.
func (s *Toolset) All() iter.Seq2[string, *Tool] {
	return func(yield func(string, *Tool) bool) {
		for _, k := range s.keys {
			if !yield(k, s.byKey[k]) {
				return
			}
		}
	}
}

// Invoke calls the tool stored under key. An unknown key yields a failed
// Result wrapping *tools.ErrToolUnavailable.
func (s *Toolset) Invoke(ctx context.Context, key string, args json.RawMessage) Result {
	t, ok := s.byKey[key]
	if !ok {
		err := fmt.Errorf("invoke: %w", &tools.ErrToolUnavailable{ToolName: key})
		return Result{Success: false, Error: err.Error(), Err: err}
	}
	return t.Invoke(ctx, args)
}
