package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RunID   ID
	BatchID ID
	// SuiteName is the user-facing identifier of an expectation suite.
	SuiteName string
)

func (id RunID) String() string    { return ID(id).String() }
func (id BatchID) String() string  { return ID(id).String() }
func (n SuiteName) String() string { return string(n) }

// NewRunID creates a time-ordered identifier for one validation run
func NewRunID() RunID {
	return RunID(NewID())
}

// ParseSuiteName parses a string into SuiteName
func ParseSuiteName(s string) (SuiteName, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("suite name cannot be empty")
	}
	return SuiteName(s), nil
}
