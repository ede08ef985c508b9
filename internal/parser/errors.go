package parser

import "fmt"

// ParseError marks a raw record that could not be decoded into a canonical
// transaction. The record is dropped; the batch continues.
type ParseError struct {
	Provider string
	Field    string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: failed to parse field %q: %v", e.Provider, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: failed to parse field %q", e.Provider, e.Field)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
