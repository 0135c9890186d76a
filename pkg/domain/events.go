package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepStart    EventType = "step_start"
	EventStepComplete EventType = "step_complete"
	EventSuspend      EventType = "suspend"
	EventResume       EventType = "resume"
	EventUnresolved   EventType = "unresolved_dependency"
	EventConclude     EventType = "conclude"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// StepEvent represents entry into or exit from a step.
type StepEvent struct {
	EventBase
	StepNumber string        `json:"step_number"`
	StepType   StepType      `json:"step_type"`
	Cursor     int           `json:"cursor"`
	Duration   time.Duration `json:"duration,omitempty"`
	Err        error         `json:"-"`
}

// DependencyEvent reports a dependency token that had no result at resolution time.
type DependencyEvent struct {
	EventBase
	StepNumber string `json:"step_number"`
	Token      string `json:"token"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnStepStart            func(context.Context, *StepEvent)
	OnStepComplete         func(context.Context, *StepEvent)
	OnSuspend              func(context.Context, *StepEvent)
	OnResume               func(context.Context, *StepEvent)
	OnUnresolvedDependency func(context.Context, *DependencyEvent)
	OnConclude             func(context.Context, *ExecutionState)
}

// Merge returns hooks that call h first and then other, for every callback either defines.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStepStart:            chainStep(h.OnStepStart, other.OnStepStart),
		OnStepComplete:         chainStep(h.OnStepComplete, other.OnStepComplete),
		OnSuspend:              chainStep(h.OnSuspend, other.OnSuspend),
		OnResume:               chainStep(h.OnResume, other.OnResume),
		OnUnresolvedDependency: chainDependency(h.OnUnresolvedDependency, other.OnUnresolvedDependency),
		OnConclude:             chainState(h.OnConclude, other.OnConclude),
	}
}

func chainStep(a, b func(context.Context, *StepEvent)) func(context.Context, *StepEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *StepEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainDependency(a, b func(context.Context, *DependencyEvent)) func(context.Context, *DependencyEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *DependencyEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainState(a, b func(context.Context, *ExecutionState)) func(context.Context, *ExecutionState) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, s *ExecutionState) {
		a(ctx, s)
		b(ctx, s)
	}
}
