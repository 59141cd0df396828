package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/sidekick/core"
	"github.com/hupe1980/sidekick/internal/util"
	"github.com/hupe1980/sidekick/invoke"
	"github.com/hupe1980/sidekick/logging"
	"github.com/hupe1980/sidekick/model"
)

const evaluatorSystemPrompt = `You are an evaluator that determines if a task has been completed successfully by an Assistant.
Assess the Assistant's last response based on the given criteria. Respond with your feedback, and with your decision on whether the success criteria has been met,
and whether more input is needed from the user.`

const evaluatorUserPrompt = `You are evaluating a conversation between the User and Assistant. You decide what action to take based on the last response from the Assistant.

The entire conversation with the assistant, with the user's original request and all replies, is:
%s

The success criteria for this assignment is:
%s

And the final response from the Assistant that you are evaluating is:
%s

Respond with your feedback, and decide if the success criteria is met by this response.
Also, decide if more user input is required, either because the assistant has a question, needs clarification, or seems to be stuck and unable to answer without help.

The Assistant has access to a tool to write files. If the Assistant says they have written a file, then you can assume they have done so.
Overall you should give the Assistant the benefit of the doubt if they say they've done something. But you should reject if you feel that more work should go into this.

`

const evaluatorFeedbackPrompt = `Also, note that in a prior attempt from the Assistant, you provided this feedback: %s
If you're seeing the Assistant repeating the same mistakes, then consider responding that user input is required.`

// jsonFallbackPrompt instructs models without structured output support to
// answer with bare JSON that can be decoded into an EvaluatorVerdict.
const jsonFallbackPrompt = `

Respond with a single JSON object and nothing else, using exactly these fields:
{"feedback": "<your feedback>", "success_criteria_met": <true|false>, "user_input_needed": <true|false>}`

// EvaluatorOptions configures the evaluator node.
type EvaluatorOptions struct {
	// Retry customizes the invocation retry policy.
	Retry []func(o *invoke.Options)
	// Logger receives node-level diagnostics.
	Logger logging.Logger
}

// Evaluator judges the assistant's latest answer against the success
// criterion using a judge model. Models implementing model.StructuredModel
// get a schema-constrained call; everything else falls back to prompt
// engineered JSON with parse validation, where a malformed reply counts as a
// retryable failure.
type Evaluator struct {
	model    model.Model
	retryFns []func(o *invoke.Options)
	logger   logging.Logger
}

// NewEvaluator creates an evaluator node backed by the given judge model.
func NewEvaluator(m model.Model, optFns ...func(o *EvaluatorOptions)) *Evaluator {
	opts := EvaluatorOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := logging.OrNoOp(opts.Logger)
	retryFns := append([]func(o *invoke.Options){func(o *invoke.Options) {
		o.Operation = "Evaluator LLM invocation"
		o.Logger = logger
	}}, opts.Retry...)

	return &Evaluator{
		model:    m,
		retryFns: retryFns,
		logger:   logger,
	}
}

// FormatConversation renders the transcript as alternating User/Assistant
// lines. Assistant turns without text content render as a tool use placeholder.
func FormatConversation(messages []core.Message) string {
	var sb strings.Builder
	sb.WriteString("Conversation history:\n\n")
	for _, msg := range messages {
		switch msg.Role {
		case core.RoleUser:
			fmt.Fprintf(&sb, "User: %s\n", msg.Content)
		case core.RoleAssistant:
			text := msg.Content
			if text == "" {
				text = "[Tools use]"
			}
			fmt.Fprintf(&sb, "Assistant: %s\n", text)
		}
	}
	return sb.String()
}

// Run evaluates the latest assistant answer. The returned update appends one
// assistant-visible feedback message and replaces the verdict fields. On
// terminal invocation failure it fails safe: criteria not met, user input
// needed.
func (e *Evaluator) Run(ctx context.Context, state *core.State) (core.Update, error) {
	lastResponse := ""
	if last, ok := state.LastMessage(); ok {
		lastResponse = last.Content
	}

	userPrompt := fmt.Sprintf(evaluatorUserPrompt, FormatConversation(state.Messages), state.SuccessCriterion, lastResponse)
	if state.FeedbackOnWork != "" {
		userPrompt += fmt.Sprintf(evaluatorFeedbackPrompt, state.FeedbackOnWork)
	}

	verdict, err := e.judge(ctx, userPrompt)
	if err != nil {
		var invErr *invoke.Error
		if !errors.As(err, &invErr) {
			return core.Update{}, err
		}

		e.logger.Error("evaluator invocation failed", "error", invErr.Error())

		return core.Update{
			Messages: []core.Message{core.NewAssistantMessage(fmt.Sprintf(
				"Evaluator encountered an error: %s. Requesting user input to proceed.", invErr.CauseType(),
			))},
			FeedbackOnWork:     core.StringPtr(fmt.Sprintf("Evaluation failed: %s. Please try again.", invErr.CauseType())),
			SuccessCriteriaMet: core.BoolPtr(false),
			UserInputNeeded:    core.BoolPtr(true),
		}, nil
	}

	e.logger.Debug("evaluator verdict",
		"success_criteria_met", verdict.SuccessCriteriaMet,
		"user_input_needed", verdict.UserInputNeeded,
	)

	return core.Update{
		Messages: []core.Message{core.NewAssistantMessage(
			fmt.Sprintf("Evaluator Feedback on this answer: %s", verdict.Feedback),
		)},
		FeedbackOnWork:     core.StringPtr(verdict.Feedback),
		SuccessCriteriaMet: core.BoolPtr(verdict.SuccessCriteriaMet),
		UserInputNeeded:    core.BoolPtr(verdict.UserInputNeeded),
	}, nil
}

// judge asks the model for a structured verdict, preferring provider-side
// schema coercion when available.
func (e *Evaluator) judge(ctx context.Context, userPrompt string) (*core.EvaluatorVerdict, error) {
	if sm, ok := e.model.(model.StructuredModel); ok {
		return e.judgeStructured(ctx, sm, userPrompt)
	}
	return e.judgeJSON(ctx, userPrompt)
}

func (e *Evaluator) judgeStructured(ctx context.Context, sm model.StructuredModel, userPrompt string) (*core.EvaluatorVerdict, error) {
	req := model.Request{
		Messages: []core.Message{
			core.NewSystemMessage(evaluatorSystemPrompt),
			core.NewUserMessage(userPrompt),
		},
	}
	schema := model.ResponseSchema{
		Name:        "evaluator_verdict",
		Description: "Verdict on whether the assistant's response meets the success criteria",
		Schema:      util.CreateStrictSchema(core.EvaluatorVerdict{}),
	}

	return invoke.Do(ctx, func(ctx context.Context) (*core.EvaluatorVerdict, error) {
		raw, err := sm.GenerateStructured(ctx, req, schema)
		if err != nil {
			return nil, err
		}
		var verdict core.EvaluatorVerdict
		if err := json.Unmarshal(raw, &verdict); err != nil {
			return nil, invoke.Retryable(fmt.Errorf("decode verdict: %w", err))
		}
		return &verdict, nil
	}, e.retryFns...)
}

func (e *Evaluator) judgeJSON(ctx context.Context, userPrompt string) (*core.EvaluatorVerdict, error) {
	req := model.Request{
		Messages: []core.Message{
			core.NewSystemMessage(evaluatorSystemPrompt),
			core.NewUserMessage(userPrompt + jsonFallbackPrompt),
		},
	}

	return invoke.Do(ctx, func(ctx context.Context) (*core.EvaluatorVerdict, error) {
		resp, err := e.model.Generate(ctx, req)
		if err != nil {
			return nil, err
		}
		verdict, err := parseVerdict(resp.Message.Content)
		if err != nil {
			// Malformed model output is worth another attempt.
			return nil, invoke.Retryable(err)
		}
		return verdict, nil
	}, e.retryFns...)
}

// parseVerdict decodes a JSON verdict from model text, tolerating surrounding
// prose and markdown fences by extracting the outermost JSON object.
func parseVerdict(content string) (*core.EvaluatorVerdict, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in verdict reply: %q", content)
	}

	var verdict core.EvaluatorVerdict
	if err := json.Unmarshal([]byte(content[start:end+1]), &verdict); err != nil {
		return nil, fmt.Errorf("decode verdict: %w", err)
	}
	return &verdict, nil
}
