package core

import "github.com/google/uuid"

// NewID generates a unique identifier used for sessions and synthesized
// tool-call correlation tokens.
func NewID() string { return uuid.NewString() }
