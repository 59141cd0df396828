package flow

import (
	"context"
	"fmt"

	"github.com/hupe1980/sidekick/core"
	"github.com/hupe1980/sidekick/logging"
)

// Phase identifies a state of the task-execution machine.
type Phase string

const (
	// PhaseWorker invokes the worker model.
	PhaseWorker Phase = "worker"
	// PhaseTools executes pending tool calls.
	PhaseTools Phase = "tools"
	// PhaseEvaluator judges the latest answer.
	PhaseEvaluator Phase = "evaluator"
	// PhaseDone terminates the turn.
	PhaseDone Phase = "done"
)

// GraphOptions configures the state machine.
type GraphOptions struct {
	// MaxWorkerPasses bounds how often the worker may run within one turn
	// (0 means unlimited). Without a bound a worker/evaluator disagreement
	// could loop and burn tokens indefinitely.
	MaxWorkerPasses int
	// Logger receives transition-level diagnostics.
	Logger logging.Logger
}

// Graph wires worker, tool node and evaluator into the execution loop:
// worker output with tool calls goes to the tool node and back to the worker;
// plain answers go to the evaluator, which either terminates the turn or
// sends the worker back to work with feedback attached.
type Graph struct {
	worker          *Worker
	tools           *ToolNode
	evaluator       *Evaluator
	maxWorkerPasses int
	logger          logging.Logger
}

// NewGraph assembles the state machine from its three nodes.
func NewGraph(worker *Worker, tools *ToolNode, evaluator *Evaluator, optFns ...func(o *GraphOptions)) *Graph {
	opts := GraphOptions{
		MaxWorkerPasses: 20,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Graph{
		worker:          worker,
		tools:           tools,
		evaluator:       evaluator,
		maxWorkerPasses: opts.MaxWorkerPasses,
		logger:          logging.OrNoOp(opts.Logger),
	}
}

// RouteAfterWorker decides the phase following a worker pass: tool calls go
// to the tool node, anything else to the evaluator.
func RouteAfterWorker(state *core.State) Phase {
	if last, ok := state.LastMessage(); ok && last.HasToolCalls() {
		return PhaseTools
	}
	return PhaseEvaluator
}

// RouteAfterEvaluator decides the phase following an evaluator pass: the turn
// ends when the criteria are met or user input is needed, otherwise the
// worker continues with feedback.
func RouteAfterEvaluator(state *core.State) Phase {
	if state.SuccessCriteriaMet || state.UserInputNeeded {
		return PhaseDone
	}
	return PhaseWorker
}

// Run drives the state machine from the worker phase to completion, mutating
// state through each node's update. Only programmer errors propagate; model
// and tool failures are contained by the nodes themselves.
func (g *Graph) Run(ctx context.Context, state *core.State) error {
	limiter := core.NewLoopLimiter(g.maxWorkerPasses)
	phase := PhaseWorker

	for phase != PhaseDone {
		if err := ctx.Err(); err != nil {
			return err
		}

		g.logger.Debug("entering phase", "phase", string(phase))

		switch phase {
		case PhaseWorker:
			if err := limiter.Increment(); err != nil {
				g.logger.Warn("worker pass limit reached", "limit", g.maxWorkerPasses)
				state.Apply(core.Update{
					Messages: []core.Message{core.NewAssistantMessage(fmt.Sprintf(
						"This task stopped after reaching the limit of %d worker passes. Please provide guidance on how to proceed.",
						g.maxWorkerPasses,
					))},
					UserInputNeeded: core.BoolPtr(true),
				})
				phase = PhaseDone
				continue
			}

			update, err := g.worker.Run(ctx, state)
			if err != nil {
				return fmt.Errorf("worker phase: %w", err)
			}
			state.Apply(update)
			phase = RouteAfterWorker(state)

		case PhaseTools:
			update, err := g.tools.Run(ctx, state)
			if err != nil {
				return fmt.Errorf("tools phase: %w", err)
			}
			state.Apply(update)
			phase = PhaseWorker

		case PhaseEvaluator:
			update, err := g.evaluator.Run(ctx, state)
			if err != nil {
				return fmt.Errorf("evaluator phase: %w", err)
			}
			state.Apply(update)
			phase = RouteAfterEvaluator(state)

		default:
			return fmt.Errorf("unknown phase: %s", phase)
		}
	}

	return nil
}
