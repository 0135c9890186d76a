// Package llm implements the planner and reasoning ports on top of langchaingo models.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
)

// SearchTool is the function the planner model calls once per retrieval request.
const SearchTool = "search_database"

// Client adapts an llms.Model to ports.Planner and ports.Reasoner.
type Client struct {
	model       llms.Model
	logger      *slog.Logger
	temperature float64
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTemperature sets the sampling temperature of every call.
func WithTemperature(t float64) Option {
	return func(c *Client) { c.temperature = t }
}

// New wraps model.
func New(model llms.Model, opts ...Option) *Client {
	c := &Client{
		model:  model,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchQueries asks the model for one search_database call per sub-question of task.
// A model that makes no usable call yields a single unfiltered request for the whole task.
func (c *Client) SearchQueries(ctx context.Context, task string) ([]domain.RetrievalRequest, error) {
	system, err := render("search", nil)
	if err != nil {
		return nil, err
	}

	choice, err := c.generate(ctx, system, task, llms.WithTools([]llms.Tool{searchTool()}))
	if err != nil {
		return nil, fmt.Errorf("search queries: %w", err)
	}

	var reqs []domain.RetrievalRequest
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil || tc.FunctionCall.Name != SearchTool {
			continue
		}
		req, err := decodeRequest(tc.FunctionCall.Arguments)
		if err != nil {
			c.logger.Warn("discarding search call", "err", err, "arguments", tc.FunctionCall.Arguments)
			continue
		}
		reqs = append(reqs, req)
	}

	if len(reqs) == 0 {
		return []domain.RetrievalRequest{{Query: task}}, nil
	}
	return reqs, nil
}

// Plan returns the raw plan text for task.
func (c *Client) Plan(ctx context.Context, task, retrieved string) (string, error) {
	prompt, err := render("planner", map[string]string{"Task": task, "Context": retrieved})
	if err != nil {
		return "", err
	}
	choice, err := c.generate(ctx, "", prompt)
	if err != nil {
		return "", fmt.Errorf("plan: %w", err)
	}
	return choice.Content, nil
}

// Answer responds to instruction using only the retrieval context.
func (c *Client) Answer(ctx context.Context, instruction, retrieved string) (string, error) {
	prompt, err := render("reason", map[string]string{"Task": instruction, "Context": retrieved})
	if err != nil {
		return "", err
	}
	choice, err := c.generate(ctx, "", prompt)
	if err != nil {
		return "", fmt.Errorf("answer: %w", err)
	}
	return choice.Content, nil
}

// Extract keeps only what question asked for out of a human answer.
func (c *Client) Extract(ctx context.Context, question, answer string) (string, error) {
	prompt, err := render("extract", map[string]string{"Question": question, "Answer": answer})
	if err != nil {
		return "", err
	}
	choice, err := c.generate(ctx, "", prompt)
	if err != nil {
		return "", fmt.Errorf("extract: %w", err)
	}
	return strings.TrimSpace(choice.Content), nil
}

// Formulate states problem as LaTeX and plain text.
func (c *Client) Formulate(ctx context.Context, problem, variables string) (domain.Calculation, error) {
	prompt, err := render("formulate", map[string]string{"Task": problem, "Variables": variables})
	if err != nil {
		return domain.Calculation{}, err
	}
	choice, err := c.generate(ctx, "", prompt, llms.WithJSONMode())
	if err != nil {
		return domain.Calculation{}, fmt.Errorf("formulate: %w", err)
	}

	var calc domain.Calculation
	if err := decodeJSON(choice.Content, &calc); err != nil {
		return domain.Calculation{}, fmt.Errorf("formulate: %w", err)
	}
	return calc, calc.Validate()
}

// Conclude writes the cited answer for a finished plan.
func (c *Client) Conclude(ctx context.Context, req domain.ConclusionRequest) (domain.Conclusion, error) {
	prompt, err := render("conclude", map[string]any{
		"Task":    req.Task,
		"Context": req.Context,
		"Sources": req.Sources,
		"Plan":    req.PlanSummary(),
		"Results": req.ResultSummary(),
	})
	if err != nil {
		return domain.Conclusion{}, err
	}
	choice, err := c.generate(ctx, "", prompt, llms.WithJSONMode())
	if err != nil {
		return domain.Conclusion{}, fmt.Errorf("conclude: %w", err)
	}

	var out domain.Conclusion
	if err := decodeJSON(choice.Content, &out); err != nil {
		return domain.Conclusion{}, fmt.Errorf("conclude: %w", err)
	}
	if err := out.Validate(); err != nil {
		return domain.Conclusion{}, err
	}
	return out, nil
}

func (c *Client) generate(ctx context.Context, system, prompt string, opts ...llms.CallOption) (*llms.ContentChoice, error) {
	var messages []llms.MessageContent
	if system != "" {
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(system)},
		})
	}
	messages = append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(prompt)},
	})

	opts = append(opts, llms.WithTemperature(c.temperature))
	resp, err := c.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: model returned no choices", domain.ErrInvalidOutput)
	}
	return resp.Choices[0], nil
}

func searchTool() llms.Tool {
	dataTypes := make([]string, 0, len(domain.DataTypes))
	for _, d := range domain.DataTypes {
		dataTypes = append(dataTypes, string(d))
	}
	categories := make([]string, 0, len(domain.Categories))
	for _, cat := range domain.Categories {
		categories = append(categories, string(cat))
	}

	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        SearchTool,
			Description: "Search the engineering knowledge base for one subject.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The search query.",
					},
					"data_type": map[string]any{
						"type":        "string",
						"enum":        dataTypes,
						"description": "The kind of content searched for.",
					},
					"category": map[string]any{
						"type":        "string",
						"enum":        categories,
						"description": "The standard the content belongs to.",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

func decodeRequest(arguments string) (domain.RetrievalRequest, error) {
	raw := map[string]any{}
	if err := json.Unmarshal([]byte(arguments), &raw); err != nil {
		return domain.RetrievalRequest{}, fmt.Errorf("%w: %v", domain.ErrInvalidOutput, err)
	}
	var req domain.RetrievalRequest
	if err := decodeMap(raw, &req); err != nil {
		return domain.RetrievalRequest{}, err
	}
	if err := req.Validate(); err != nil {
		return domain.RetrievalRequest{}, fmt.Errorf("%w: %v", domain.ErrInvalidOutput, err)
	}
	return req, nil
}
