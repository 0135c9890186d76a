// Package testutils provides scripted collaborators for engine tests.
package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// Planner returns a fixed plan and search requests.
type Planner struct {
	PlanText string
	Searches []domain.RetrievalRequest
	Err      error

	mu       sync.Mutex
	Contexts []string
}

func (p *Planner) SearchQueries(ctx context.Context, task string) ([]domain.RetrievalRequest, error) {
	return p.Searches, p.Err
}

func (p *Planner) Plan(ctx context.Context, task, context string) (string, error) {
	p.mu.Lock()
	p.Contexts = append(p.Contexts, context)
	p.mu.Unlock()
	return p.PlanText, p.Err
}

// Retriever answers every query with "retrieved(<query>)" unless Answers has an entry.
// The first Failures calls fail with Err.
type Retriever struct {
	Answers  map[string]string
	Failures int
	Err      error

	mu      sync.Mutex
	Queries []string
}

func (r *Retriever) Retrieve(ctx context.Context, req domain.RetrievalRequest) (domain.Retrieval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Queries = append(r.Queries, req.Query)
	if r.Failures > 0 {
		r.Failures--
		return domain.Retrieval{}, r.Err
	}
	if a, ok := r.Answers[req.Query]; ok {
		return domain.Retrieval{Text: a}, nil
	}
	return domain.Retrieval{Text: fmt.Sprintf("retrieved(%s)", req.Query)}, nil
}

// Calls returns the number of Retrieve calls.
func (r *Retriever) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Queries)
}

// Solver returns "solved(<problem>)" or Err.
type Solver struct {
	Err error

	mu       sync.Mutex
	Problems []string
}

func (s *Solver) Solve(ctx context.Context, problem string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Problems = append(s.Problems, problem)
	if s.Err != nil {
		return "", s.Err
	}
	return fmt.Sprintf("solved(%s)", problem), nil
}

// Reasoner produces deterministic outputs derived from its inputs.
// Conclusions is consumed in order; once exhausted a default conclusion citing every source is returned.
type Reasoner struct {
	Conclusions []domain.Conclusion
	ExtractErr  error
	// Block makes Answer wait for ctx cancellation.
	Block bool

	mu           sync.Mutex
	Instructions []string
	Extractions  []string
	Variables    []string
	Requests     []domain.ConclusionRequest
}

func (r *Reasoner) Answer(ctx context.Context, instruction, context string) (string, error) {
	r.mu.Lock()
	r.Instructions = append(r.Instructions, instruction)
	block := r.Block
	r.mu.Unlock()
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return fmt.Sprintf("answer(%s)", instruction), nil
}

func (r *Reasoner) Extract(ctx context.Context, question, answer string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Extractions = append(r.Extractions, answer)
	if r.ExtractErr != nil {
		return "", r.ExtractErr
	}
	return fmt.Sprintf("extracted(%s)", answer), nil
}

func (r *Reasoner) Formulate(ctx context.Context, problem, variables string) (domain.Calculation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Variables = append(r.Variables, variables)
	plain := problem
	if v := strings.TrimSpace(variables); v != "" {
		plain = problem + " where " + strings.ReplaceAll(v, "\n", ", ")
	}
	return domain.Calculation{Formal: "$" + problem + "$", Plain: plain}, nil
}

func (r *Reasoner) Conclude(ctx context.Context, req domain.ConclusionRequest) (domain.Conclusion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Requests = append(r.Requests, req)
	if len(r.Conclusions) > 0 {
		c := r.Conclusions[0]
		r.Conclusions = r.Conclusions[1:]
		return c, nil
	}
	return domain.Conclusion{
		Conclusion: "concluded(" + req.Task + ")",
		Citations:  []string{fmt.Sprintf("%d source(s)", len(req.Sources))},
	}, nil
}
