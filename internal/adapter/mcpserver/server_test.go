package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docroute/internal/domain"
	"docroute/internal/usecase"
)

type fakeAnswerer struct {
	got  usecase.AnswerRequest
	resp *usecase.AnswerResponse
	err  error
}

func (f *fakeAnswerer) Answer(_ context.Context, req usecase.AnswerRequest) (*usecase.AnswerResponse, error) {
	f.got = req
	return f.resp, f.err
}

type fakeAgents struct {
	defs []domain.AgentDefinition
	err  error
}

func (f fakeAgents) EnsureLoaded(context.Context) error   { return f.err }
func (f fakeAgents) ListActive() []domain.AgentDefinition { return f.defs }

func call(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return text.Text
}

func newTestServer(t *testing.T, a Answerer, agents AgentLister) *Server {
	t.Helper()
	s, err := New(a, agents, "test", nil)
	require.NoError(t, err)
	return s
}

func TestAnswerQuestion(t *testing.T) {
	fa := &fakeAnswerer{resp: &usecase.AnswerResponse{
		SynthesizedResult: domain.SynthesizedResult{Answer: "Rent is 1200.", Confidence: 0.8, Citations: []domain.Citation{{DocID: "d1"}}},
		CycleID:           "01HZY",
	}}
	s := newTestServer(t, fa, fakeAgents{})

	res, err := s.handleAnswerQuestion(context.Background(), call(toolAnswerQuestion, map[string]any{
		"question": "how much is rent?",
		"history":  []any{map[string]any{"role": "user", "content": "hi"}},
		"memory":   map[string]any{"focus_doc_ids": []any{"d1"}},
		"documents": []any{
			map[string]any{"id": "d1", "title": "Lease", "content": "Rent is 1200 per month."},
		},
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	assert.Equal(t, "how much is rent?", fa.got.Question)
	require.Len(t, fa.got.Documents, 1)
	assert.Equal(t, "Lease", fa.got.Documents[0].Title)
	assert.Equal(t, []string{"d1"}, fa.got.Memory.FocusDocIDs)
	assert.Len(t, fa.got.History, 1)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, "Rent is 1200.", out["answer"])
	assert.Equal(t, "01HZY", out["cycle_id"])
}

func TestAnswerQuestion_InvalidArguments(t *testing.T) {
	fa := &fakeAnswerer{}
	s := newTestServer(t, fa, fakeAgents{})

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing question", map[string]any{}},
		{"empty question", map[string]any{"question": ""}},
		{"document without id", map[string]any{"question": "q", "documents": []any{map[string]any{"title": "x"}}}},
		{"bad role", map[string]any{"question": "q", "history": []any{map[string]any{"role": "system", "content": "x"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.handleAnswerQuestion(context.Background(), call(toolAnswerQuestion, tt.args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
			assert.Contains(t, resultText(t, res), "schema validation failed")
		})
	}
	assert.Empty(t, fa.got.Question)
}

func TestAnswerQuestion_AnswererError(t *testing.T) {
	fa := &fakeAnswerer{err: domain.NewSubSystemError("registry", "Registry.EnsureLoaded", domain.ErrRegistryLoad, "db down")}
	s := newTestServer(t, fa, fakeAgents{})

	res, err := s.handleAnswerQuestion(context.Background(), call(toolAnswerQuestion, map[string]any{"question": "q"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "db down")
}

func TestListAgents(t *testing.T) {
	s := newTestServer(t, &fakeAnswerer{}, fakeAgents{defs: []domain.AgentDefinition{
		{Key: domain.AgentContent, Name: "Content", IsActive: true},
	}})

	res, err := s.handleListAgents(context.Background(), call(toolListAgents, nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), `"key": "content"`)

	s = newTestServer(t, &fakeAnswerer{}, fakeAgents{err: errors.New("store down")})
	res, err = s.handleListAgents(context.Background(), call(toolListAgents, nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestNew_RegistersTools(t *testing.T) {
	s := newTestServer(t, &fakeAnswerer{}, fakeAgents{})
	assert.NotNil(t, s.MCP())
	assert.Len(t, s.schemas, 2)
}
