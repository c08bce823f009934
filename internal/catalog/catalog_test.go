package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nugget/thane-mcpbridge/internal/mcp"
)

type fakeCall struct {
	name string
	args string
}

// fakeSession is an in-memory Session.
type fakeSession struct {
	mu        sync.Mutex
	tools     []mcp.ToolDescriptor
	listErr   error
	listCalls int
	forced    int
	results   map[string]json.RawMessage
	callErrs  map[string]error
	calls     []fakeCall
}

func (f *fakeSession) ListTools(_ context.Context, forceRefresh bool) ([]mcp.ToolDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if forceRefresh {
		f.forced++
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.tools, nil
}

func (f *fakeSession) CallTool(_ context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{name: name, args: string(args)})
	if err := f.callErrs[name]; err != nil {
		return nil, err
	}
	if r, ok := f.results[name]; ok {
		return r, nil
	}
	return json.RawMessage(`null`), nil
}

// fakeFactory hands out one fakeSession per URL and counts how often
// each URL was opened.
type fakeFactory struct {
	mu       sync.Mutex
	sessions map[string]*fakeSession
	opened   map[string]int
}

func newFakeFactory(sessions map[string]*fakeSession) *fakeFactory {
	return &fakeFactory{sessions: sessions, opened: make(map[string]int)}
}

func (f *fakeFactory) open(ep Endpoint) Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened[ep.URL]++
	if s, ok := f.sessions[ep.URL]; ok {
		return s
	}
	return &fakeSession{listErr: errors.New("connection refused")}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMaterializer(f *fakeFactory) *Materializer {
	return New(NewCache(), f.open, quietLogger())
}

func TestMaterialize_SingleEndpoint(t *testing.T) {
	docs := &fakeSession{
		tools: []mcp.ToolDescriptor{{
			Name:        "fetch_doc",
			Description: "Fetch a document",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
		}},
		results: map[string]json.RawMessage{
			"fetch_doc": json.RawMessage(`{"content":[{"type":"text","text":"hello"}]}`),
		},
	}
	f := newFakeFactory(map[string]*fakeSession{"https://docs.example.com/mcp": docs})
	m := newTestMaterializer(f)

	set := m.Materialize(context.Background(), []Endpoint{
		{Label: "docs", URL: "https://docs.example.com/mcp", Enabled: true},
	})

	require.Equal(t, []string{"mcp__docs__fetch_doc"}, set.Keys())

	tool, ok := set.Get("mcp__docs__fetch_doc")
	require.True(t, ok)
	assert.Equal(t, "fetch_doc", tool.RemoteName)
	assert.Equal(t, "docs", tool.EndpointLabel)
	assert.Contains(t, tool.Description, "Fetch a document")
	assert.Contains(t, tool.Description, "[MCP: docs]")
	assert.Contains(t, tool.Description, "id (string, required)")

	res := tool.Invoke(context.Background(), json.RawMessage(`{"id":"42"}`))
	assert.True(t, res.Success)
	assert.JSONEq(t, `{"content":[{"type":"text","text":"hello"}]}`, string(res.Result))
	require.Len(t, docs.calls, 1)
	assert.Equal(t, "fetch_doc", docs.calls[0].name)
	assert.JSONEq(t, `{"id":"42"}`, docs.calls[0].args)

	docs.callErrs = map[string]error{
		"fetch_doc": &mcp.RemoteToolError{Tool: "fetch_doc", Code: -32000, Message: "not found"},
	}
	res = tool.Invoke(context.Background(), json.RawMessage(`{"id":"missing"}`))
	assert.False(t, res.Success)
	assert.Equal(t, "not found", res.Error)
	assert.False(t, res.Cancelled())
}

func TestMaterialize_SameToolOnTwoEndpoints(t *testing.T) {
	search := []mcp.ToolDescriptor{{Name: "search"}}
	f := newFakeFactory(map[string]*fakeSession{
		"https://a.example.com/mcp": {tools: search},
		"https://b.example.com/mcp": {tools: search},
	})
	m := newTestMaterializer(f)

	set := m.Materialize(context.Background(), []Endpoint{
		{Label: "alpha", URL: "https://a.example.com/mcp", Enabled: true},
		{Label: "beta", URL: "https://b.example.com/mcp", Enabled: true},
	})

	assert.Equal(t, []string{"mcp__alpha__search", "mcp__beta__search"}, set.Keys())
}

func TestMaterialize_SameLabelOnTwoEndpoints(t *testing.T) {
	search := []mcp.ToolDescriptor{{Name: "search"}}
	f := newFakeFactory(map[string]*fakeSession{
		"https://a.example.com/mcp": {tools: search},
		"https://b.example.com/mcp": {tools: search},
	})
	m := newTestMaterializer(f)

	set := m.Materialize(context.Background(), []Endpoint{
		{Label: "dup", URL: "https://a.example.com/mcp", Enabled: true},
		{Label: "dup", URL: "https://b.example.com/mcp", Enabled: true},
	})

	require.Equal(t, []string{"mcp__dup__search", "mcp__dup__search_1"}, set.Keys())

	first, _ := set.Get("mcp__dup__search")
	second, _ := set.Get("mcp__dup__search_1")
	assert.Equal(t, "https://a.example.com/mcp", first.EndpointURL)
	assert.Equal(t, "https://b.example.com/mcp", second.EndpointURL)
	assert.Equal(t, "search", second.RemoteName)
}

func TestMaterialize_SanitizedNamesCollide(t *testing.T) {
	f := newFakeFactory(map[string]*fakeSession{
		"https://x.example.com/mcp": {tools: []mcp.ToolDescriptor{
			{Name: "a.b"},
			{Name: "a b"},
			{Name: ""},
		}},
	})
	m := newTestMaterializer(f)

	set := m.Materialize(context.Background(), []Endpoint{
		{Label: "x", URL: "https://x.example.com/mcp", Enabled: true},
	})

	assert.Equal(t, []string{"mcp__x__a_b", "mcp__x__a_b_1"}, set.Keys())

	second, _ := set.Get("mcp__x__a_b_1")
	assert.Equal(t, "a b", second.RemoteName)
}

func TestMaterialize_FailingEndpointIsIsolated(t *testing.T) {
	f := newFakeFactory(map[string]*fakeSession{
		"https://good.example.com/mcp": {tools: []mcp.ToolDescriptor{{Name: "ok"}}},
		"https://bad.example.com/mcp": {listErr: &mcp.InitializationError{
			Endpoint: "https://bad.example.com/mcp",
			Err:      &mcp.RPCError{Code: -32600, Message: "unsupported protocol version"},
		}},
	})
	m := newTestMaterializer(f)

	set := m.Materialize(context.Background(), []Endpoint{
		{Label: "bad", URL: "https://bad.example.com/mcp", Enabled: true},
		{Label: "good", URL: "https://good.example.com/mcp", Enabled: true},
		{Label: "down", URL: "https://down.example.com/mcp", Enabled: true},
	})

	assert.Equal(t, []string{"mcp__good__ok"}, set.Keys())
	assert.Equal(t, []string{"https://good.example.com/mcp"}, m.Cache().Endpoints())
}

func TestMaterialize_SkipsDisabledAndBlank(t *testing.T) {
	f := newFakeFactory(nil)
	m := newTestMaterializer(f)

	set := m.Materialize(context.Background(), []Endpoint{
		{Label: "off", URL: "https://off.example.com/mcp", Enabled: false},
		{Label: "blank", URL: "   ", Enabled: true},
	})

	assert.Zero(t, set.Len())
	assert.Empty(t, f.opened)
}

func TestMaterialize_DuplicateURLFirstWins(t *testing.T) {
	search := []mcp.ToolDescriptor{{Name: "search"}}
	f := newFakeFactory(map[string]*fakeSession{
		"https://a.example.com/mcp": {tools: search},
		"https://b.example.com/mcp": {tools: search},
	})
	m := newTestMaterializer(f)

	set := m.Materialize(context.Background(), []Endpoint{
		{Label: "off", URL: "https://a.example.com/mcp", Enabled: false},
		{Label: "first", URL: "https://a.example.com/mcp", Enabled: true},
		{Label: "other", URL: "https://b.example.com/mcp", Enabled: true},
		{Label: "again", URL: " https://a.example.com/mcp ", Enabled: true},
	})

	assert.Equal(t, []string{"mcp__first__search", "mcp__other__search"}, set.Keys())
	assert.Equal(t, 1, f.opened["https://a.example.com/mcp"])
}

func TestMaterialize_ReusesCachedEndpoint(t *testing.T) {
	docs := &fakeSession{tools: []mcp.ToolDescriptor{{Name: "fetch_doc"}}}
	f := newFakeFactory(map[string]*fakeSession{"https://docs.example.com/mcp": docs})
	m := newTestMaterializer(f)
	eps := []Endpoint{{Label: "docs", URL: "https://docs.example.com/mcp", Enabled: true}}

	first := m.Materialize(context.Background(), eps)
	second := m.Materialize(context.Background(), eps)

	assert.Equal(t, first.Keys(), second.Keys())
	assert.Equal(t, 1, f.opened["https://docs.example.com/mcp"])
	assert.Equal(t, 1, docs.listCalls)

	docs.tools = append(docs.tools, mcp.ToolDescriptor{Name: "search"})
	refreshed := m.Refresh(context.Background(), eps)

	assert.Equal(t, []string{"mcp__docs__fetch_doc", "mcp__docs__search"}, refreshed.Keys())
	assert.Equal(t, 1, f.opened["https://docs.example.com/mcp"], "refresh must reuse the session")
	assert.Equal(t, 1, docs.forced)

	require.True(t, m.Cache().Forget("https://docs.example.com/mcp"))
	m.Materialize(context.Background(), eps)
	assert.Equal(t, 2, f.opened["https://docs.example.com/mcp"])
}

func TestMaterializeConfig_LegacyRecord(t *testing.T) {
	f := newFakeFactory(map[string]*fakeSession{
		"https://www.legacy.example.com/mcp": {tools: []mcp.ToolDescriptor{{Name: "lookup"}}},
	})
	m := newTestMaterializer(f)

	set := m.MaterializeConfig(context.Background(),
		[]byte(`{"enabled":true,"endpoint":"https://www.legacy.example.com/mcp"}`))

	assert.Equal(t, []string{"mcp__legacyexamplecom__lookup"}, set.Keys())
}

func TestMaterializeConfig_List(t *testing.T) {
	f := newFakeFactory(map[string]*fakeSession{
		"https://docs.example.com/mcp": {tools: []mcp.ToolDescriptor{{Name: "fetch_doc"}}},
	})
	m := newTestMaterializer(f)

	set := m.MaterializeConfig(context.Background(), []byte(`[
		{"label":"Docs","endpointUrl":"https://docs.example.com/mcp","enabled":true},
		{"label":"Other","endpointUrl":"https://other.example.com/mcp","enabled":false}
	]`))

	assert.Equal(t, []string{"mcp__docs__fetch_doc"}, set.Keys())
}

func TestMaterializeConfig_Invalid(t *testing.T) {
	f := newFakeFactory(nil)
	m := newTestMaterializer(f)

	set := m.MaterializeConfig(context.Background(), []byte(`"nope"`))
	assert.Zero(t, set.Len())
	assert.Empty(t, f.opened)
}

func TestToolset_InvokeUnknownKey(t *testing.T) {
	set := newToolset()
	res := set.Invoke(context.Background(), "mcp__nope__tool", nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "mcp__nope__tool")
}

func TestResult_Cancelled(t *testing.T) {
	sess := &fakeSession{callErrs: map[string]error{
		"slow": &mcp.CancellationError{Method: "tools/call", Err: context.Canceled},
	}}
	tool := &Tool{Key: "mcp__x__slow", RemoteName: "slow", session: sess}

	res := tool.Invoke(context.Background(), nil)
	assert.False(t, res.Success)
	assert.True(t, res.Cancelled())
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestResult_JSON(t *testing.T) {
	ok, err := json.Marshal(Result{Success: true, Result: json.RawMessage(`{"n":1}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"result":{"n":1}}`, string(ok))

	failed, err := json.Marshal(Result{Success: false, Error: "not found", Err: errors.New("not found")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"not found"}`, string(failed))
}
