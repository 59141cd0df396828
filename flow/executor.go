package flow

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/sidekick/core"
	"github.com/hupe1980/sidekick/logging"
	"github.com/hupe1980/sidekick/tool"
)

// ToolNodeOptions configures the tool execution node.
type ToolNodeOptions struct {
	// MaxConcurrency bounds parallel tool executions (default 4).
	MaxConcurrency int
	// Logger receives node-level diagnostics.
	Logger logging.Logger
}

// ToolNode executes the tool calls carried by the latest assistant message.
// Every request produces exactly one tool-role message: a result on success,
// a formatted error block on failure. Failures never abort the batch and are
// recorded in the error registry for the evaluator.
type ToolNode struct {
	registry       *tool.Registry
	errors         *tool.ErrorRegistry
	maxConcurrency int
	logger         logging.Logger
}

// NewToolNode creates a tool execution node dispatching against registry and
// recording failures in errRegistry.
func NewToolNode(registry *tool.Registry, errRegistry *tool.ErrorRegistry, optFns ...func(o *ToolNodeOptions)) *ToolNode {
	opts := ToolNodeOptions{
		MaxConcurrency: 4,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	if errRegistry == nil {
		errRegistry = tool.NewErrorRegistry()
	}

	return &ToolNode{
		registry:       registry,
		errors:         errRegistry,
		maxConcurrency: opts.MaxConcurrency,
		logger:         logging.OrNoOp(opts.Logger),
	}
}

// Errors exposes the error registry accumulating tool failures.
func (n *ToolNode) Errors() *tool.ErrorRegistry { return n.errors }

// Run executes all tool calls from the state's latest message. An input
// without tool calls yields an empty update.
func (n *ToolNode) Run(ctx context.Context, state *core.State) (core.Update, error) {
	last, ok := state.LastMessage()
	if !ok || !last.HasToolCalls() {
		return core.Update{}, nil
	}

	calls := last.ToolCalls
	results := make([]core.Message, len(calls))

	var wg sync.WaitGroup
	sem := make(chan struct{}, n.maxConcurrency)

	for i, call := range calls {
		wg.Add(1)
		go func(idx int, tc core.ToolCall) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = n.execute(ctx, tc)
		}(i, call)
	}

	wg.Wait()

	return core.Update{Messages: results}, nil
}

// execute runs one tool call, converting every failure mode (unknown tool,
// returned error, panic) into a tool-role message.
func (n *ToolNode) execute(ctx context.Context, tc core.ToolCall) (msg core.Message) {
	defer func() {
		if r := recover(); r != nil {
			err := tool.NewToolError(tc.Name, fmt.Sprintf("tool panicked: %v", r), tool.CodeExecutionError)
			n.errors.Record(tc.Name, err)
			n.logger.Error("tool panicked", "tool", tc.Name, "panic", fmt.Sprintf("%v", r))
			msg = core.NewToolResultMessage(tc.ID, tc.Name, tool.FormatErrorForLLM(tc.Name, err))
		}
	}()

	t, ok := n.registry.Get(tc.Name)
	if !ok {
		err := tool.NewToolError(tc.Name, fmt.Sprintf("tool %q is not registered", tc.Name), tool.CodeUnknownTool)
		n.errors.Record(tc.Name, err)
		n.logger.Warn("unknown tool requested", "tool", tc.Name)
		return core.NewToolResultMessage(tc.ID, tc.Name, tool.FormatErrorForLLM(tc.Name, err))
	}

	n.logger.Debug("executing tool", "tool", tc.Name, "call_id", tc.ID)

	result, err := t.Call(ctx, tc.Arguments)
	if err != nil {
		count := n.errors.Record(tc.Name, err)
		n.logger.Warn("tool execution failed", "tool", tc.Name, "error", err.Error(), "failure_count", count)
		return core.NewToolResultMessage(tc.ID, tc.Name, tool.FormatErrorForLLM(tc.Name, err))
	}

	return core.NewToolResultMessage(tc.ID, tc.Name, result)
}
