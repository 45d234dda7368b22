package dictionary

import (
	"fmt"
	"strings"
)

// DictionaryID identifies an imported dictionary. Values are assigned by the store.
type DictionaryID int64

// ProfileID identifies a profile. Values are assigned by the store.
type ProfileID int64

// RecordID identifies a stored record. Values are assigned by the store.
type RecordID int64

// Kind is the archive format a dictionary was imported from.
type Kind string

const (
	KindYomitan       Kind = "yomitan"
	KindYomichanAudio Kind = "yomichan_audio"
	KindJmdict        Kind = "jmdict"
)

// Kinds lists every known dictionary kind in detection order.
func Kinds() []Kind {
	return []Kind{KindYomitan, KindYomichanAudio, KindJmdict}
}

// ParseKind parses a kind name as used on the command line and in storage.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown dictionary kind %q", s)
}

// Meta describes an imported dictionary.
type Meta struct {
	Kind        Kind   `json:"kind"`
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Attribution string `json:"attribution,omitempty"`
}

// NewMeta returns a Meta with the required fields set.
func NewMeta(kind Kind, name string) Meta {
	return Meta{Kind: kind, Name: strings.TrimSpace(name)}
}

// Dictionary is a persisted, imported dictionary.
type Dictionary struct {
	ID       DictionaryID
	Meta     Meta
	Position int64
}

// ProfileConfig holds the per-profile display and export settings.
type ProfileConfig struct {
	FontFamily   string `json:"font_family,omitempty" yaml:"font_family,omitempty"`
	AnkiDeck     string `json:"anki_deck,omitempty" yaml:"anki_deck,omitempty"`
	AnkiNoteType string `json:"anki_note_type,omitempty" yaml:"anki_note_type,omitempty"`
}

// Profile is a named bundle of user configuration.
type Profile struct {
	ID                  ProfileID
	Name                string
	EnabledDictionaries map[DictionaryID]struct{}
	SortingDictionary   *DictionaryID
	Config              ProfileConfig
}

// IsEnabled reports whether the dictionary is enabled in this profile.
func (p Profile) IsEnabled(id DictionaryID) bool {
	_, ok := p.EnabledDictionaries[id]
	return ok
}

// FrequencyMode says which direction of a frequency value means "more common".
type FrequencyMode int

const (
	// FrequencyRank values are ranks: lower is more common.
	FrequencyRank FrequencyMode = 0
	// FrequencyOccurrence values are occurrence counts: higher is more common.
	FrequencyOccurrence FrequencyMode = 1
)

func (m FrequencyMode) String() string {
	if m == FrequencyOccurrence {
		return "occurrence"
	}
	return "rank"
}

// FrequencyValue is a sortable frequency figure.
type FrequencyValue struct {
	Mode  FrequencyMode `json:"mode"`
	Value int64         `json:"value"`
}

// Rank returns a rank-based frequency value.
func Rank(v int64) FrequencyValue { return FrequencyValue{Mode: FrequencyRank, Value: v} }

// Occurrence returns an occurrence-based frequency value.
func Occurrence(v int64) FrequencyValue {
	return FrequencyValue{Mode: FrequencyOccurrence, Value: v}
}

// SortKey maps the value onto a scale where smaller always sorts first.
// Rank values keep their sign, occurrence values are negated.
func (v FrequencyValue) SortKey() int64 {
	if v.Mode == FrequencyOccurrence {
		return -v.Value
	}
	return v.Value
}

func (v FrequencyValue) String() string {
	return fmt.Sprintf("%s:%d", v.Mode, v.Value)
}
