package dictionary

import "fmt"

// Span is a half-open [Start, End) range of offsets.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns End - Start.
func (s Span) Len() int { return s.End - s.Start }

func (s Span) String() string { return fmt.Sprintf("%d..%d", s.Start, s.End) }

// RecordEntry is one lookup result. SpanBytes and SpanChars always refer to
// the text passed to the lookup, not to the lemma that matched.
type RecordEntry struct {
	Source                  DictionaryID
	RecordID                RecordID
	Term                    Term
	Record                  Record
	SpanBytes               Span
	SpanChars               Span
	ProfileSortingFrequency *FrequencyValue
	SourceSortingFrequency  *FrequencyValue
}
