package dictionary

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// TermVariant says which parts of a Term are present.
type TermVariant int

const (
	// TermHeadword has only a headword.
	TermHeadword TermVariant = iota + 1
	// TermReading has only a reading.
	TermReading
	// TermFull has both a headword and a reading.
	TermFull
)

func (v TermVariant) String() string {
	switch v {
	case TermHeadword:
		return "headword"
	case TermReading:
		return "reading"
	case TermFull:
		return "full"
	default:
		return "invalid"
	}
}

// Term identifies a word by its headword, its reading, or both.
//
// Both parts are trimmed and NFC-normalized; a part that is empty after
// trimming is treated as absent. Terms are comparable and can be used as map
// keys. The zero Term is invalid and is never returned by the constructors.
type Term struct {
	headword string
	reading  string
}

// normalizePart trims s and NFC-normalizes it. It returns "" for blank input.
func normalizePart(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return norm.NFC.String(s)
}

// NewTerm builds a Term from a headword/reading pair. It returns false when
// both parts are blank.
func NewTerm(headword, reading string) (Term, bool) {
	t := Term{headword: normalizePart(headword), reading: normalizePart(reading)}
	if !t.IsValid() {
		return Term{}, false
	}
	return t, true
}

// HeadwordTerm builds a headword-only Term.
func HeadwordTerm(headword string) (Term, bool) {
	return NewTerm(headword, "")
}

// ReadingTerm builds a reading-only Term.
func ReadingTerm(reading string) (Term, bool) {
	return NewTerm("", reading)
}

// MustTerm is NewTerm for fixtures and constants; it panics on blank input.
func MustTerm(headword, reading string) Term {
	t, ok := NewTerm(headword, reading)
	if !ok {
		panic("dictionary: blank term")
	}
	return t
}

// IsValid reports whether at least one part is present.
func (t Term) IsValid() bool {
	return t.headword != "" || t.reading != ""
}

// Variant reports which parts are present.
func (t Term) Variant() TermVariant {
	switch {
	case t.headword != "" && t.reading != "":
		return TermFull
	case t.headword != "":
		return TermHeadword
	case t.reading != "":
		return TermReading
	default:
		return 0
	}
}

// Headword returns the headword and whether it is present.
func (t Term) Headword() (string, bool) {
	return t.headword, t.headword != ""
}

// Reading returns the reading and whether it is present.
func (t Term) Reading() (string, bool) {
	return t.reading, t.reading != ""
}

// SetHeadword replaces the headword, promoting a reading-only term to a full
// one. Blank input leaves the term unchanged and returns false.
func (t *Term) SetHeadword(headword string) bool {
	h := normalizePart(headword)
	if h == "" {
		return false
	}
	t.headword = h
	return true
}

// SetReading replaces the reading, promoting a headword-only term to a full
// one. Blank input leaves the term unchanged and returns false.
func (t *Term) SetReading(reading string) bool {
	r := normalizePart(reading)
	if r == "" {
		return false
	}
	t.reading = r
	return true
}

// String renders the term as "headword[reading]", "headword" or "[reading]".
func (t Term) String() string {
	switch t.Variant() {
	case TermFull:
		return t.headword + "[" + t.reading + "]"
	case TermHeadword:
		return t.headword
	case TermReading:
		return "[" + t.reading + "]"
	default:
		return "<invalid term>"
	}
}
