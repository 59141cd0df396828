// Package flow implements the task-execution state machine: a worker model
// produces answers or tool calls, a tool node executes the calls, and an
// evaluator model judges the answer against the success criterion, looping
// until the criterion is met or user input is needed.
package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/sidekick/core"
	"github.com/hupe1980/sidekick/invoke"
	"github.com/hupe1980/sidekick/logging"
	"github.com/hupe1980/sidekick/model"
	"github.com/hupe1980/sidekick/tool"
)

const workerSystemPrompt = `You are a helpful assistant that can use tools to complete tasks.
You keep working on a task until either you have a question or clarification for the user, or the success criteria is met.
You have many tools to help you, including tools to browse the internet, navigating and retrieving web pages.
You have tools to read and write files in a sandbox directory, and may have a tool to run shell commands.
The current date and time is %s

This is the success criteria:
%s
You should reply either with a question for the user about this assignment, or with your final response.
If you have a question for the user, you need to reply by clearly stating your question. An example might be:

Question: please clarify whether you want a summary or a detailed answer

If you've finished, reply with the final answer, and don't ask a question; simply reply with the answer.`

const workerFeedbackPrompt = `
Previously you thought you completed the assignment, but your reply was rejected because the success criteria was not met.
Here is the feedback on why this was rejected:
%s
With this feedback, please continue the assignment, ensuring that you meet the success criteria or have a question for the user.`

// WorkerOptions configures the worker node.
type WorkerOptions struct {
	// Retry customizes the invocation retry policy.
	Retry []func(o *invoke.Options)
	// Logger receives node-level diagnostics.
	Logger logging.Logger
	// Now supplies the timestamp embedded in the system instruction.
	Now func() time.Time
}

// Worker asks the tool-capable model for the next assistant message. Terminal
// invocation failures are contained: they become an in-band message rather
// than an error, so the conversation keeps going.
type Worker struct {
	model    model.Model
	tools    *tool.Registry
	retryFns []func(o *invoke.Options)
	logger   logging.Logger
	now      func() time.Time
}

// NewWorker creates a worker node backed by the given model and tool registry.
func NewWorker(m model.Model, tools *tool.Registry, optFns ...func(o *WorkerOptions)) *Worker {
	opts := WorkerOptions{
		Now: time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := logging.OrNoOp(opts.Logger)
	retryFns := append([]func(o *invoke.Options){func(o *invoke.Options) {
		o.Operation = "Worker LLM invocation"
		o.Logger = logger
	}}, opts.Retry...)

	return &Worker{
		model:    m,
		tools:    tools,
		retryFns: retryFns,
		logger:   logger,
		now:      opts.Now,
	}
}

// SystemInstruction renders the system message for the current state.
func (w *Worker) SystemInstruction(state *core.State) string {
	instruction := fmt.Sprintf(workerSystemPrompt, w.now().Format("2006-01-02 15:04:05"), state.SuccessCriterion)
	if state.FeedbackOnWork != "" {
		instruction += fmt.Sprintf(workerFeedbackPrompt, state.FeedbackOnWork)
	}
	return instruction
}

// Run builds the system instruction, rewrites or prepends it as the first
// system message, and invokes the model with bounded retries. The returned
// update appends exactly one message: the model's reply, or an explanatory
// substitute when invocation fails terminally.
func (w *Worker) Run(ctx context.Context, state *core.State) (core.Update, error) {
	state.SetSystemMessage(w.SystemInstruction(state))

	req := model.Request{
		Messages: state.Messages,
		Tools:    w.tools.Definitions(),
	}

	resp, err := invoke.Do(ctx, func(ctx context.Context) (*model.Response, error) {
		return w.model.Generate(ctx, req)
	}, w.retryFns...)
	if err != nil {
		var invErr *invoke.Error
		if !errors.As(err, &invErr) {
			return core.Update{}, err
		}

		w.logger.Error("worker invocation failed", "error", invErr.Error())

		// Contain the failure as a conversational message so the turn can
		// still reach the evaluator.
		errMsg := core.NewUserMessage(fmt.Sprintf(
			"I encountered an error while processing your request: %s. Please try again or rephrase your request. Details: %v",
			invErr.CauseType(), invErr.Err,
		))
		return core.Update{Messages: []core.Message{errMsg}}, nil
	}

	w.logger.Debug("worker produced message", "tool_calls", len(resp.Message.ToolCalls))

	return core.Update{Messages: []core.Message{resp.Message}}, nil
}
