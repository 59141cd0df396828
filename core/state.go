package core

// DefaultSuccessCriterion is used when a turn is started without an explicit
// success criterion.
const DefaultSuccessCriterion = "The answer should be clear and accurate"

// State is the per-conversation aggregate driven through the state machine.
// It has exactly one writer at a time (the currently executing node); access
// is serialized per session by the session layer.
type State struct {
	Messages           []Message `json:"messages"`
	SuccessCriterion   string    `json:"success_criterion"`
	FeedbackOnWork     string    `json:"feedback_on_work,omitempty"`
	SuccessCriteriaMet bool      `json:"success_criteria_met"`
	UserInputNeeded    bool      `json:"user_input_needed"`
}

// NewState creates an empty state with both termination flags cleared.
func NewState() *State {
	return &State{SuccessCriterion: DefaultSuccessCriterion}
}

// Update is the partial state delta returned by a state-machine node. The
// reducer semantics are explicit: Messages append to the transcript, scalar
// pointer fields replace the corresponding state field when non-nil.
type Update struct {
	Messages           []Message
	FeedbackOnWork     *string
	SuccessCriteriaMet *bool
	UserInputNeeded    *bool
}

// Apply merges an Update into the state.
func (s *State) Apply(u Update) {
	s.Messages = append(s.Messages, u.Messages...)
	if u.FeedbackOnWork != nil {
		s.FeedbackOnWork = *u.FeedbackOnWork
	}
	if u.SuccessCriteriaMet != nil {
		s.SuccessCriteriaMet = *u.SuccessCriteriaMet
	}
	if u.UserInputNeeded != nil {
		s.UserInputNeeded = *u.UserInputNeeded
	}
}

// SetSystemMessage rewrites the content of the first system message in place,
// or prepends a new one when the transcript has none. This is the one
// exception to append-only transcript semantics. It reports whether a new
// message was prepended.
func (s *State) SetSystemMessage(content string) bool {
	for i := range s.Messages {
		if s.Messages[i].Role == RoleSystem {
			s.Messages[i].Content = content
			return false
		}
	}
	s.Messages = append([]Message{NewSystemMessage(content)}, s.Messages...)
	return true
}

// LastMessage returns the most recent transcript entry.
func (s *State) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Clone returns a deep copy of the state safe for independent mutation.
func (s *State) Clone() *State {
	clone := *s
	clone.Messages = make([]Message, len(s.Messages))
	copy(clone.Messages, s.Messages)
	for i := range clone.Messages {
		if len(clone.Messages[i].ToolCalls) > 0 {
			calls := make([]ToolCall, len(clone.Messages[i].ToolCalls))
			copy(calls, clone.Messages[i].ToolCalls)
			clone.Messages[i].ToolCalls = calls
		}
	}
	return &clone
}

// StringPtr returns a pointer to s; helper for building Updates.
func StringPtr(s string) *string { return &s }

// BoolPtr returns a pointer to b; helper for building Updates.
func BoolPtr(b bool) *bool { return &b }
