// Package mcpserver exposes the answer cycle as Model Context Protocol tools.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"docroute/internal/domain"
	"docroute/internal/infra/logger"
	"docroute/internal/usecase"
)

const (
	toolAnswerQuestion = "answer_question"
	toolListAgents     = "list_agents"
)

// Answerer runs one question cycle. usecase.Answerer implements it.
type Answerer interface {
	Answer(ctx context.Context, req usecase.AnswerRequest) (*usecase.AnswerResponse, error)
}

// AgentLister reports the active agents. multiagent.Registry implements it.
type AgentLister interface {
	EnsureLoaded(ctx context.Context) error
	ListActive() []domain.AgentDefinition
}

// Server wraps an MCP server with the docroute tools registered.
type Server struct {
	mcp      *mcpserver.MCPServer
	answerer Answerer
	agents   AgentLister
	schemas  map[string]*jsonschema.Schema
	logger   *slog.Logger
}

// New creates a Server and registers its tools.
func New(answerer Answerer, agents AgentLister, version string, log *slog.Logger) (*Server, error) {
	s := &Server{
		mcp:      mcpserver.NewMCPServer("docroute", version, mcpserver.WithToolCapabilities(false)),
		answerer: answerer,
		agents:   agents,
		schemas:  make(map[string]*jsonschema.Schema),
		logger:   logger.Component(logger.OrDiscard(log), "mcp"),
	}

	tools := []struct {
		name, description, schema string
		handler                   mcpserver.ToolHandlerFunc
	}{
		{toolAnswerQuestion, "Answer a question about the supplied documents. Routes the question to the best agent, runs corroborating agents within a time budget and returns a cited answer with its confidence.", answerQuestionSchema, s.handleAnswerQuestion},
		{toolListAgents, "List the answering agents that are currently active.", listAgentsSchema, s.handleListAgents},
	}
	for _, t := range tools {
		compiled, err := compileSchema(t.name, t.schema)
		if err != nil {
			return nil, err
		}
		s.schemas[t.name] = compiled
		s.mcp.AddTool(mcp.NewToolWithRawSchema(t.name, t.description, json.RawMessage(t.schema)), t.handler)
	}
	return s, nil
}

func compileSchema(name, raw string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name+".json", bytes.NewReader([]byte(raw))); err != nil {
		return nil, fmt.Errorf("add schema resource for %q: %w", name, err)
	}
	compiled, err := compiler.Compile(name + ".json")
	if err != nil {
		return nil, fmt.Errorf("compile schema for %q: %w", name, err)
	}
	return compiled, nil
}

// MCP returns the underlying server.
func (s *Server) MCP() *mcpserver.MCPServer { return s.mcp }

// ServeStdio serves the tools over stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	return mcpserver.ServeStdio(s.mcp)
}

// decodeArgs validates the call arguments against the tool's schema and
// decodes them into out.
func (s *Server) decodeArgs(tool string, req mcp.CallToolRequest, out any) error {
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if v == nil {
		v = map[string]any{}
	}
	if err := s.schemas[tool].Validate(v); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (s *Server) handleAnswerQuestion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in usecase.AnswerRequest
	if err := s.decodeArgs(toolAnswerQuestion, req, &in); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := s.answerer.Answer(ctx, in)
	if err != nil {
		s.logger.Error("answer_question failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("answer failed [%s]: %v", domain.ErrorCodeOf(err), err)), nil
	}
	return jsonResult(resp)
}

func (s *Server) handleListAgents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.decodeArgs(toolListAgents, req, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.agents.EnsureLoaded(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load agents [%s]: %v", domain.ErrorCodeOf(err), err)), nil
	}
	return jsonResult(map[string]any{"agents": s.agents.ListActive()})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

const answerQuestionSchema = `{
  "type": "object",
  "required": ["question"],
  "properties": {
    "question": {"type": "string", "minLength": 1, "description": "The user's question"},
    "history": {
      "type": "array",
      "description": "Earlier conversation turns, oldest first",
      "items": {
        "type": "object",
        "required": ["role", "content"],
        "properties": {
          "role": {"type": "string", "enum": ["user", "assistant"]},
          "content": {"type": "string"}
        }
      }
    },
    "memory": {
      "type": "object",
      "description": "Conversation memory returned by the previous turn",
      "properties": {
        "focus_doc_ids": {"type": "array", "items": {"type": "string"}},
        "last_cited_doc_ids": {"type": "array", "items": {"type": "string"}},
        "last_list_doc_ids": {"type": "array", "items": {"type": "string"}},
        "active_filters": {"type": "object", "additionalProperties": {"type": "string"}}
      }
    },
    "documents": {
      "type": "array",
      "description": "Candidate documents, most relevant first",
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "title": {"type": "string"},
          "snippet": {"type": "string"},
          "content": {"type": "string"},
          "document_type": {"type": "string"},
          "metadata": {"type": "object", "additionalProperties": {"type": "string"}}
        }
      }
    }
  }
}`

const listAgentsSchema = `{"type": "object", "properties": {}}`
