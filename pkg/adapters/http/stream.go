package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/arbor/pkg/domain"
)

// StreamEventState is published after every request that changed a session.
const StreamEventState = "state"

// StreamEvent is the data of one server-sent event.
type StreamEvent struct {
	Type       string          `json:"type"`
	SessionID  string          `json:"session_id"`
	StepNumber string          `json:"step_number,omitempty"`
	StepType   domain.StepType `json:"step_type,omitempty"`
	Phase      domain.Phase    `json:"phase,omitempty"`
	Revision   int             `json:"revision,omitempty"`
	Question   string          `json:"question,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// StreamManager fans session events out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan StreamEvent]struct{}
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan StreamEvent]struct{}),
		logger:      slog.Default(),
	}
}

// Subscribe registers a buffered channel for sessionID. The returned func unregisters and closes it.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan StreamEvent, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan StreamEvent, 16)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan StreamEvent]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sessionID]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, sessionID)
			}
		}
	}
}

// Subscribers returns the number of listeners of sessionID.
func (sm *StreamManager) Subscribers(sessionID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[sessionID])
}

// Broadcast delivers ev to every subscriber of its session. Slow clients drop events.
func (sm *StreamManager) Broadcast(ev StreamEvent) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[ev.SessionID] {
		select {
		case ch <- ev:
		default:
			sm.logger.Warn("sse client buffer full, dropping event", "session_id", ev.SessionID, "type", ev.Type)
		}
	}
}

// PublishState broadcasts the phase and revision of state.
func (sm *StreamManager) PublishState(sessionID string, state *domain.ExecutionState) {
	ev := StreamEvent{
		Type:      StreamEventState,
		SessionID: sessionID,
		Phase:     state.Phase,
		Revision:  state.Revision,
	}
	if state.Pending != nil {
		ev.StepNumber = state.Pending.StepNumber
		ev.Question = state.Pending.Question
	}
	sm.Broadcast(ev)
}

// Hooks returns lifecycle hooks that stream step progress to subscribers.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	step := func(ctx context.Context, e *domain.StepEvent) {
		ev := StreamEvent{
			Type:       string(e.Type),
			SessionID:  e.SessionID,
			StepNumber: e.StepNumber,
			StepType:   e.StepType,
		}
		if e.Err != nil {
			ev.Error = e.Err.Error()
		}
		sm.Broadcast(ev)
	}
	return domain.LifecycleHooks{
		OnStepStart:    step,
		OnStepComplete: step,
		OnSuspend:      step,
		OnResume:       step,
		OnConclude: func(ctx context.Context, s *domain.ExecutionState) {
			sm.Broadcast(StreamEvent{Type: string(domain.EventConclude), SessionID: s.SessionID, Phase: s.Phase})
		},
	}
}

// events handles GET /sessions/{id}/events. An optional "types" query parameter
// keeps only the listed event types.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var filter map[string]bool
	if types := r.URL.Query().Get("types"); types != "" {
		filter = make(map[string]bool)
		for _, t := range strings.Split(types, ",") {
			filter[strings.TrimSpace(t)] = true
		}
	}

	id := chi.URLParam(r, "id")
	ch, cancel := s.Streams.Subscribe(id)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if filter != nil && !filter[ev.Type] {
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}
