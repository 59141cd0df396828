// Package session owns conversation lifecycle: each session wraps one state
// machine instance, its transcript state and the externally acquired
// resources (such as a browser handle) that back its tools.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/sidekick/core"
	"github.com/hupe1980/sidekick/flow"
	"github.com/hupe1980/sidekick/logging"
	"github.com/hupe1980/sidekick/tool"
)

// Resource is an externally acquired handle a session must release on
// disposal, such as a browser context or its automation host.
type Resource interface {
	// Name identifies the resource in log output.
	Name() string
	// Release frees the resource. Implementations should tolerate being
	// called more than once.
	Release(ctx context.Context) error
}

// Provider supplies tools together with the resources backing them.
type Provider interface {
	// Acquire provisions the provider's tools and the resource handles that
	// must be released when the session is disposed, in release order.
	Acquire(ctx context.Context) ([]Tool, []Resource, error)
}

// Tool aliases the tool interface so provider signatures read naturally from
// this package.
type Tool = tool.Tool

// TranscriptEntry is one externally visible conversation entry.
type TranscriptEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session binds a state machine to per-conversation state and resources.
// A session runs at most one turn at a time; concurrent RunTurn calls on the
// same session are serialized.
type Session struct {
	id        string
	graph     *flow.Graph
	resources []Resource
	logger    logging.Logger

	mu    sync.Mutex
	state *core.State
}

// NewSession creates a session around a compiled graph and the resources to
// release on disposal.
func NewSession(graph *flow.Graph, resources []Resource, logger logging.Logger) *Session {
	return &Session{
		id:        core.NewID(),
		graph:     graph,
		resources: resources,
		logger:    logging.OrNoOp(logger),
		state:     core.NewState(),
	}
}

// ID returns the unique session identifier.
func (s *Session) ID() string { return s.id }

// State returns a snapshot of the session state.
func (s *Session) State() *core.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// RunTurn executes one full conversation turn: it seeds the state with the
// user message and resolved success criterion, resets the verdict fields,
// drives the state machine to completion, and returns history extended with
// the three new externally visible entries (user message, final answer,
// evaluator feedback).
func (s *Session) RunTurn(ctx context.Context, message, successCriterion string, history []TranscriptEntry) ([]TranscriptEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	criterion := successCriterion
	if criterion == "" {
		criterion = core.DefaultSuccessCriterion
	}

	s.state.Messages = append(s.state.Messages, core.NewUserMessage(message))
	s.state.SuccessCriterion = criterion
	s.state.FeedbackOnWork = ""
	s.state.SuccessCriteriaMet = false
	s.state.UserInputNeeded = false

	s.logger.Info("running turn", "session_id", s.id, "criterion", criterion)

	if err := s.graph.Run(ctx, s.state); err != nil {
		return nil, fmt.Errorf("run turn: %w", err)
	}

	msgs := s.state.Messages
	if len(msgs) < 2 {
		return nil, fmt.Errorf("run turn: state machine produced no reply")
	}

	updated := make([]TranscriptEntry, 0, len(history)+3)
	updated = append(updated, history...)
	updated = append(updated,
		TranscriptEntry{Role: "user", Content: message},
		TranscriptEntry{Role: "assistant", Content: msgs[len(msgs)-2].Content},
		TranscriptEntry{Role: "assistant", Content: msgs[len(msgs)-1].Content},
	)
	return updated, nil
}

// Dispose releases all session resources in order. Release failures are
// logged and swallowed; one resource failing never prevents releasing the
// next. Dispose is safe to call repeatedly and with no resources attached.
func (s *Session) Dispose(ctx context.Context) {
	if len(s.resources) == 0 {
		s.logger.Debug("no resources to release", "session_id", s.id)
		return
	}

	s.logger.Info("releasing session resources", "session_id", s.id, "resources", len(s.resources))

	for _, res := range s.resources {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("resource release panicked", "session_id", s.id, "resource", res.Name(), "panic", fmt.Sprintf("%v", r))
				}
			}()
			if err := res.Release(ctx); err != nil {
				s.logger.Error("failed to release resource", "session_id", s.id, "resource", res.Name(), "error", err.Error())
				return
			}
			s.logger.Debug("released resource", "session_id", s.id, "resource", res.Name())
		}()
	}
}
