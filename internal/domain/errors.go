package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionComplete is returned when input arrives after the queue is exhausted
	ErrSessionComplete = errors.New("session complete: all annotations done with current settings")
	// ErrUnknownRow is returned for row keys that are not in the table
	ErrUnknownRow = errors.New("unknown row")
	// ErrNotFocal is returned when a label arrives for a row other than the focal one
	ErrNotFocal = errors.New("row is not the focal row")
)

// InputNotFoundError is returned when a supplied table or metadata path does not exist
type InputNotFoundError struct {
	Path string
}

func (e *InputNotFoundError) Error() string {
	return fmt.Sprintf("could not find %s", e.Path)
}

// SchemaError is returned when a table misses a mandatory column or holds malformed values
type SchemaError struct {
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Column == "" {
		return "schema: " + e.Reason
	}
	return fmt.Sprintf("schema: column %q: %s", e.Column, e.Reason)
}

// ConfigurationError is returned for invalid session options
type ConfigurationError struct {
	Option string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Option, e.Reason)
}

// IndexResolutionError is returned when a legacy integer label has no vocabulary entry
type IndexResolutionError struct {
	Row   string
	Index int
	Size  int
}

func (e *IndexResolutionError) Error() string {
	return fmt.Sprintf("label index %d of row %q is out of range for a vocabulary of %d labels", e.Index, e.Row, e.Size)
}
