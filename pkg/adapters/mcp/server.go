// Package mcp exposes an arbor engine as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/runner"
)

// SessionsURI is the resource listing stored session ids.
const SessionsURI = "arbor://sessions"

// Engine is the part of *arbor.Engine exposed as tools.
type Engine interface {
	Ask(ctx context.Context, sessionID, task string) (*domain.ExecutionState, error)
	Answer(ctx context.Context, sessionID, stepNumber, answer string) (*domain.ExecutionState, error)
	State(ctx context.Context, sessionID string) (*domain.ExecutionState, error)
	Sessions(ctx context.Context) ([]string, error)
}

// SessionResponse is the structured result of every tool.
type SessionResponse struct {
	SessionID  string       `json:"session_id" jsonschema_description:"The session the run belongs to"`
	Phase      domain.Phase `json:"phase" jsonschema_description:"suspended while a question is open, done once concluded"`
	Step       string       `json:"step,omitempty" jsonschema_description:"Step number of the open question"`
	Question   string       `json:"question,omitempty" jsonschema_description:"The question to answer with the answer tool"`
	Conclusion string       `json:"conclusion,omitempty" jsonschema_description:"The final answer once the run is done"`
	Citations  []string     `json:"citations,omitempty" jsonschema_description:"Sources cited by the conclusion"`
	Revision   int          `json:"revision" jsonschema_description:"Checkpoint revision of the session"`
}

// AskArgs are the arguments of the ask tool.
type AskArgs struct {
	SessionID string `json:"session_id"`
	Task      string `json:"task"`
}

// AnswerArgs are the arguments of the answer tool.
type AnswerArgs struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
	Step      string `json:"step"`
}

// StateArgs are the arguments of the get_state tool.
type StateArgs struct {
	SessionID string `json:"session_id"`
}

// Server wraps the engine and exposes it as an MCP server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP server instance.
func NewServer(engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		engine:    engine,
		logger:    logger,
		mcpServer: server.NewMCPServer("arbor-mcp", strings.TrimSpace(arbor.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio serves on stdin and stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("mcp server listening (sse)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("ask",
		mcp.WithDescription("Start answering a task in a session. Returns the first open question or the conclusion."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier chosen by the client")),
		mcp.WithString("task", mcp.Required(), mcp.Description("The question to answer")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleAsk))

	s.mcpServer.AddTool(mcp.NewTool("answer",
		mcp.WithDescription("Answer the open question of a suspended session and continue the run."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithString("answer", mcp.Required(), mcp.Description("Answer to the open question")),
		mcp.WithString("step", mcp.Required(), mcp.Description("Step number of the open question, e.g. #E1; a repeated answer to it is ignored")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleAnswer))

	s.mcpServer.AddTool(mcp.NewTool("get_state",
		mcp.WithDescription("Read the current phase, open question or conclusion of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetState))
}

func (s *Server) handleAsk(ctx context.Context, _ mcp.CallToolRequest, args AskArgs) (SessionResponse, error) {
	task, err := runner.SanitizeInput(args.Task)
	if err != nil {
		s.logger.Warn("mcp ask: input rejected", "error", err, "size", len(args.Task))
		return SessionResponse{}, fmt.Errorf("input rejected: %w", err)
	}
	state, err := s.engine.Ask(ctx, args.SessionID, task)
	return s.respond("ask", state, err)
}

func (s *Server) handleAnswer(ctx context.Context, _ mcp.CallToolRequest, args AnswerArgs) (SessionResponse, error) {
	answer, err := runner.SanitizeInput(args.Answer)
	if err != nil {
		s.logger.Warn("mcp answer: input rejected", "error", err, "size", len(args.Answer))
		return SessionResponse{}, fmt.Errorf("input rejected: %w", err)
	}
	state, err := s.engine.Answer(ctx, args.SessionID, args.Step, answer)
	return s.respond("answer", state, err)
}

func (s *Server) handleGetState(ctx context.Context, _ mcp.CallToolRequest, args StateArgs) (SessionResponse, error) {
	state, err := s.engine.State(ctx, args.SessionID)
	return s.respond("get_state", state, err)
}

func (s *Server) respond(tool string, state *domain.ExecutionState, err error) (SessionResponse, error) {
	if err != nil {
		s.logger.Error("mcp tool failed", "tool", tool, "error", err)
		return SessionResponse{}, fmt.Errorf("%s %w", domain.Describe(err), err)
	}
	return NewSessionResponse(state), nil
}

// NewSessionResponse summarises state for a tool client.
func NewSessionResponse(state *domain.ExecutionState) SessionResponse {
	resp := SessionResponse{
		SessionID: state.SessionID,
		Phase:     state.Phase,
		Revision:  state.Revision,
	}
	if state.Pending != nil {
		resp.Step = state.Pending.StepNumber
		resp.Question = state.Pending.Question
	}
	if state.Conclusion != nil {
		resp.Conclusion = state.Conclusion.Conclusion
		resp.Citations = state.Conclusion.Citations
	}
	return resp
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(SessionsURI, "Stored sessions",
		mcp.WithMIMEType("application/json"),
	), s.readSessions)
}

func (s *Server) readSessions(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	ids, err := s.engine.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      SessionsURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
