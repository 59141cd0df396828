package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/sidekick/flow"
	"github.com/hupe1980/sidekick/invoke"
	"github.com/hupe1980/sidekick/logging"
	"github.com/hupe1980/sidekick/model"
	"github.com/hupe1980/sidekick/tool"
)

// ManagerOptions configures session construction.
type ManagerOptions struct {
	// Tools are registered in every session in addition to provider tools.
	Tools []tool.Tool
	// Providers contribute tools plus the resources backing them.
	Providers []Provider
	// MaxWorkerPasses bounds worker passes per turn (0 means unlimited).
	MaxWorkerPasses int
	// MaxToolConcurrency bounds parallel tool executions per batch.
	MaxToolConcurrency int
	// Retry customizes the LLM invocation retry policy for all nodes.
	Retry []func(o *invoke.Options)
	// Logger receives manager and session diagnostics.
	Logger logging.Logger
}

// Manager owns all live sessions, keyed by id. Each created session gets its
// own state, tool registry, error registry and provider resources, so
// sessions never share mutable state.
//
// Safe for concurrent use.
type Manager struct {
	workerModel model.Model
	judgeModel  model.Model
	opts        ManagerOptions
	logger      logging.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager building sessions on the given worker
// and judge models.
func NewManager(workerModel, judgeModel model.Model, optFns ...func(o *ManagerOptions)) *Manager {
	opts := ManagerOptions{
		MaxWorkerPasses:    20,
		MaxToolConcurrency: 4,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Manager{
		workerModel: workerModel,
		judgeModel:  judgeModel,
		opts:        opts,
		logger:      logging.OrNoOp(opts.Logger),
		sessions:    make(map[string]*Session),
	}
}

// Create provisions a new session: provider resources are acquired, tools
// are registered and the state machine is assembled. If any provider fails,
// resources acquired so far are released before the error is returned.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	registry := tool.NewRegistry(m.opts.Tools...)

	var resources []Resource
	for _, provider := range m.opts.Providers {
		tools, res, err := provider.Acquire(ctx)
		if err != nil {
			releaseAll(ctx, resources, m.logger)
			return nil, fmt.Errorf("acquire provider resources: %w", err)
		}
		registry.Register(tools...)
		resources = append(resources, res...)
	}

	errRegistry := tool.NewErrorRegistry()

	worker := flow.NewWorker(m.workerModel, registry, func(o *flow.WorkerOptions) {
		o.Retry = m.opts.Retry
		o.Logger = m.logger
	})
	toolNode := flow.NewToolNode(registry, errRegistry, func(o *flow.ToolNodeOptions) {
		o.MaxConcurrency = m.opts.MaxToolConcurrency
		o.Logger = m.logger
	})
	evaluator := flow.NewEvaluator(m.judgeModel, func(o *flow.EvaluatorOptions) {
		o.Retry = m.opts.Retry
		o.Logger = m.logger
	})
	graph := flow.NewGraph(worker, toolNode, evaluator, func(o *flow.GraphOptions) {
		o.MaxWorkerPasses = m.opts.MaxWorkerPasses
		o.Logger = m.logger
	})

	sess := NewSession(graph, resources, m.logger)

	m.mu.Lock()
	m.sessions[sess.ID()] = sess
	m.mu.Unlock()

	m.logger.Info("session created", "session_id", sess.ID(), "tools", registry.Len())

	return sess, nil
}

// Get returns the session with the given id, or false when unknown.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Dispose releases the session's resources and removes it from the manager.
// Unknown ids are a no-op.
func (m *Manager) Dispose(ctx context.Context, id string) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		m.logger.Debug("dispose of unknown session", "session_id", id)
		return
	}

	sess.Dispose(ctx)
	m.logger.Info("session disposed", "session_id", id)
}

// DisposeAll releases every live session. Used on shutdown.
func (m *Manager) DisposeAll(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.Dispose(ctx)
	}

	m.logger.Info("all sessions disposed", "count", len(sessions))
}

func releaseAll(ctx context.Context, resources []Resource, logger logging.Logger) {
	for _, res := range resources {
		if err := res.Release(ctx); err != nil {
			logger.Error("failed to release resource", "resource", res.Name(), "error", err.Error())
		}
	}
}
