package tool

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// maxRecordedMessageLen bounds stored error messages so the registry cannot
// grow unbounded from huge provider payloads.
const maxRecordedMessageLen = 200

// ErrorRecord captures one observed tool failure.
type ErrorRecord struct {
	Tool      string    `json:"tool"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorRegistry tracks tool failures across a session so repeated mistakes
// become visible to the evaluator. Failures are keyed by tool name and error
// type; hitting the same key again bumps the count instead of appending.
//
// Safe for concurrent use.
type ErrorRegistry struct {
	mu      sync.RWMutex
	records map[string]*ErrorRecord
	now     func() time.Time
}

// NewErrorRegistry creates an empty error registry.
func NewErrorRegistry() *ErrorRegistry {
	return &ErrorRegistry{
		records: make(map[string]*ErrorRecord),
		now:     time.Now,
	}
}

// Record registers a tool failure and returns the updated occurrence count
// for this tool/error-type pair.
func (r *ErrorRegistry) Record(toolName string, err error) int {
	errType := ErrorType(err)
	msg := err.Error()
	if len(msg) > maxRecordedMessageLen {
		msg = msg[:maxRecordedMessageLen]
	}

	key := toolName + ":" + errType

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[key]
	if !ok {
		rec = &ErrorRecord{Tool: toolName, Type: errType}
		r.records[key] = rec
	}
	rec.Count++
	rec.Message = msg
	rec.Timestamp = r.now()
	return rec.Count
}

// Count returns how many times the given tool has failed with the given
// error type.
func (r *ErrorRegistry) Count(toolName, errType string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rec, ok := r.records[toolName+":"+errType]; ok {
		return rec.Count
	}
	return 0
}

// ErrorsForTool returns all recorded failures for a tool.
func (r *ErrorRegistry) ErrorsForTool(toolName string) []ErrorRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ErrorRecord
	for _, rec := range r.records {
		if rec.Tool == toolName {
			out = append(out, *rec)
		}
	}
	return out
}

// Summary renders a compact human-readable digest of all recorded failures,
// or the empty string when nothing has failed yet.
func (r *ErrorRegistry) Summary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.records) == 0 {
		return ""
	}
	s := "Tool errors observed this session:"
	for _, rec := range r.records {
		s += fmt.Sprintf("\n- %s (%s, %dx): %s", rec.Tool, rec.Type, rec.Count, rec.Message)
	}
	return s
}

// Reset discards all recorded failures.
func (r *ErrorRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[string]*ErrorRecord)
}

// ErrorType derives a stable categorization string for an error. Tool errors
// report their code; everything else falls back to the dynamic Go type.
func ErrorType(err error) string {
	var toolErr *ToolError
	if errors.As(err, &toolErr) && toolErr.Code != "" {
		return toolErr.Code
	}
	return fmt.Sprintf("%T", err)
}

// FormatErrorForLLM renders a tool failure as the message placed into the
// transcript in lieu of a result, telling the model the tool is unusable for
// this request rather than surfacing a raw stack of wrapped errors.
func FormatErrorForLLM(toolName string, err error) string {
	message := err.Error()
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		message = toolErr.Message
	}
	return fmt.Sprintf(
		"Tool Execution Failed\nTool: %s\nError Type: %s\nMessage: %s\n\nThe tool failed and cannot be used for this request.",
		toolName, ErrorType(err), message,
	)
}
