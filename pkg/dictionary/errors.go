package dictionary

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the store, importers and engine.
var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrNoRecords       = errors.New("archive produced no records")
	ErrNoFormatMatched = errors.New("no format matched")
	ErrAmbiguousFormat = errors.New("ambiguous format")
	ErrSpanBoundary    = errors.New("span is not on a character boundary")
)

// DecodeError reports a stored record payload that could not be decoded.
type DecodeError struct {
	Source DictionaryID
	Name   string
	Term   Term
	Kind   RecordKind
	Err    error
}

func (e *DecodeError) Error() string {
	src := fmt.Sprintf("dictionary %d", e.Source)
	if e.Name != "" {
		src = fmt.Sprintf("dictionary %d (%s)", e.Source, e.Name)
	}
	return fmt.Sprintf("%s: term %s: %s: %v", src, e.Term, e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
