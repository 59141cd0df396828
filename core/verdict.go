package core

// EvaluatorVerdict is the structured judgement produced by the evaluator
// model. The json and description tags feed the reflection schema builder so
// structured-output capable providers can decode directly into this shape.
type EvaluatorVerdict struct {
	Feedback           string `json:"feedback" description:"Feedback on the assistant's response"`
	SuccessCriteriaMet bool   `json:"success_criteria_met" description:"Whether the success criteria have been met"`
	UserInputNeeded    bool   `json:"user_input_needed" description:"True if more input is needed from the user, or clarifications, or the assistant is stuck"`
}
