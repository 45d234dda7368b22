package dictionary

import (
	"encoding/json"
	"fmt"
)

// RecordKind is the persisted discriminant of a Record. Values are stored in
// the database and must never be renumbered.
type RecordKind int

const (
	KindYomitanGlossary          RecordKind = 1
	KindYomitanFrequency         RecordKind = 2
	KindYomitanPitch             RecordKind = 3
	KindYomitanKanji             RecordKind = 4
	KindYomichanAudioForvo       RecordKind = 5
	KindYomichanAudioJpod        RecordKind = 6
	KindYomichanAudioNhk16       RecordKind = 7
	KindYomichanAudioShinmeikai8 RecordKind = 8
	KindJmdictGlossary           RecordKind = 9
)

// RecordKinds lists every record kind.
func RecordKinds() []RecordKind {
	return []RecordKind{
		KindYomitanGlossary,
		KindYomitanFrequency,
		KindYomitanPitch,
		KindYomitanKanji,
		KindYomichanAudioForvo,
		KindYomichanAudioJpod,
		KindYomichanAudioNhk16,
		KindYomichanAudioShinmeikai8,
		KindJmdictGlossary,
	}
}

func (k RecordKind) String() string {
	switch k {
	case KindYomitanGlossary:
		return "yomitan_glossary"
	case KindYomitanFrequency:
		return "yomitan_frequency"
	case KindYomitanPitch:
		return "yomitan_pitch"
	case KindYomitanKanji:
		return "yomitan_kanji"
	case KindYomichanAudioForvo:
		return "yomichan_audio_forvo"
	case KindYomichanAudioJpod:
		return "yomichan_audio_jpod"
	case KindYomichanAudioNhk16:
		return "yomichan_audio_nhk16"
	case KindYomichanAudioShinmeikai8:
		return "yomichan_audio_shinmeikai8"
	case KindJmdictGlossary:
		return "jmdict_glossary"
	default:
		return fmt.Sprintf("record_kind(%d)", int(k))
	}
}

// Record is one piece of dictionary data. The set of implementations is
// closed: only types in this package satisfy it.
type Record interface {
	Kind() RecordKind
	isRecord()
}

// Tag is a dictionary-defined label attached to glossaries and kanji.
type Tag struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Order    int64  `json:"order,omitempty"`
	Notes    string `json:"notes,omitempty"`
	Score    int64  `json:"score,omitempty"`
}

// ContentType discriminates GlossaryContent.
type ContentType string

const (
	ContentText         ContentType = "text"
	ContentStructured   ContentType = "structured"
	ContentImage        ContentType = "image"
	ContentDeinflection ContentType = "deinflection"
)

// ContentNode is a normalized node of HTML-like structured content. A node is
// either a text leaf (Tag empty) or an element.
type ContentNode struct {
	Tag      string            `json:"tag,omitempty"`
	Text     string            `json:"text,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Style    map[string]string `json:"style,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
	Children []ContentNode     `json:"children,omitempty"`
}

// PlainText flattens the node tree into its text content.
func (n ContentNode) PlainText() string {
	if n.Tag == "" {
		return n.Text
	}
	if n.Tag == "br" {
		return "\n"
	}
	var out string
	for _, c := range n.Children {
		out += c.PlainText()
	}
	return out
}

// Image references an image file inside the source archive.
type Image struct {
	Path        string `json:"path"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Alt         string `json:"alt,omitempty"`
}

// DeinflectionHint marks a glossary entry as an inflected form of another term.
type DeinflectionHint struct {
	Uninflected string   `json:"uninflected"`
	Rules       []string `json:"rules,omitempty"`
}

// GlossaryContent is one definition item of a glossary.
type GlossaryContent struct {
	Type         ContentType       `json:"type"`
	Text         string            `json:"text,omitempty"`
	Structured   *ContentNode      `json:"structured,omitempty"`
	Image        *Image            `json:"image,omitempty"`
	Deinflection *DeinflectionHint `json:"deinflection,omitempty"`
}

// YomitanGlossary is a term definition from a Yomitan term bank.
type YomitanGlossary struct {
	Popularity int64             `json:"popularity"`
	Tags       []Tag             `json:"tags,omitempty"`
	Content    []GlossaryContent `json:"content"`
}

// YomitanFrequency is a frequency entry from a Yomitan term meta bank. Value is
// nil when the source only carried a display string.
type YomitanFrequency struct {
	Value   *FrequencyValue `json:"value,omitempty"`
	Display string          `json:"display,omitempty"`
}

// YomitanPitch is one pitch-accent pattern of a term. Positions are mora indices.
type YomitanPitch struct {
	Position int      `json:"position"`
	Nasal    []int    `json:"nasal"`
	Devoice  []int    `json:"devoice"`
	Tags     []string `json:"tags,omitempty"`
}

// YomitanKanji is a kanji entry from a Yomitan kanji bank.
type YomitanKanji struct {
	Onyomi   []string          `json:"onyomi,omitempty"`
	Kunyomi  []string          `json:"kunyomi,omitempty"`
	Tags     []Tag             `json:"tags,omitempty"`
	Meanings []string          `json:"meanings,omitempty"`
	Stats    map[string]string `json:"stats,omitempty"`
}

// AudioFormat is the encoding of an audio clip.
type AudioFormat string

const (
	AudioOpus AudioFormat = "opus"
	AudioMP3  AudioFormat = "mp3"
	AudioAAC  AudioFormat = "aac"
	AudioOgg  AudioFormat = "ogg"
)

// Audio is an encoded audio clip.
type Audio struct {
	Format AudioFormat `json:"format"`
	Data   []byte      `json:"data"`
}

// YomichanAudioForvo is a user-contributed Forvo pronunciation.
type YomichanAudioForvo struct {
	Username string `json:"username"`
	Audio    Audio  `json:"audio"`
}

// YomichanAudioJpod is a JapanesePod101 pronunciation.
type YomichanAudioJpod struct {
	Audio Audio `json:"audio"`
}

// YomichanAudioNhk16 is an NHK 2016 accent dictionary pronunciation.
type YomichanAudioNhk16 struct {
	Audio          Audio `json:"audio"`
	PitchPositions []int `json:"pitch_positions,omitempty"`
}

// YomichanAudioShinmeikai8 is a Shinmeikai 8th edition pronunciation.
type YomichanAudioShinmeikai8 struct {
	Audio        Audio  `json:"audio"`
	PitchNumber  *int   `json:"pitch_number,omitempty"`
	PitchPattern string `json:"pitch_pattern,omitempty"`
}

// JmdictSense is one sense of a JMdict entry.
type JmdictSense struct {
	PartOfSpeech []string `json:"pos,omitempty"`
	Glosses      []string `json:"glosses"`
	Misc         []string `json:"misc,omitempty"`
	Info         []string `json:"info,omitempty"`
}

// JmdictGlossary is a JMdict entry as seen from one of its spellings.
type JmdictGlossary struct {
	EntryID string        `json:"entry_id"`
	Common  bool          `json:"common,omitempty"`
	Senses  []JmdictSense `json:"senses"`
}

func (YomitanGlossary) Kind() RecordKind          { return KindYomitanGlossary }
func (YomitanFrequency) Kind() RecordKind         { return KindYomitanFrequency }
func (YomitanPitch) Kind() RecordKind             { return KindYomitanPitch }
func (YomitanKanji) Kind() RecordKind             { return KindYomitanKanji }
func (YomichanAudioForvo) Kind() RecordKind       { return KindYomichanAudioForvo }
func (YomichanAudioJpod) Kind() RecordKind        { return KindYomichanAudioJpod }
func (YomichanAudioNhk16) Kind() RecordKind       { return KindYomichanAudioNhk16 }
func (YomichanAudioShinmeikai8) Kind() RecordKind { return KindYomichanAudioShinmeikai8 }
func (JmdictGlossary) Kind() RecordKind           { return KindJmdictGlossary }

func (YomitanGlossary) isRecord()          {}
func (YomitanFrequency) isRecord()         {}
func (YomitanPitch) isRecord()             {}
func (YomitanKanji) isRecord()             {}
func (YomichanAudioForvo) isRecord()       {}
func (YomichanAudioJpod) isRecord()        {}
func (YomichanAudioNhk16) isRecord()       {}
func (YomichanAudioShinmeikai8) isRecord() {}
func (JmdictGlossary) isRecord()           {}

// EncodeRecord serializes a record into its discriminant and payload.
func EncodeRecord(r Record) (RecordKind, []byte, error) {
	if r == nil {
		return 0, nil, fmt.Errorf("encode record: nil record")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return 0, nil, fmt.Errorf("encode %s: %w", r.Kind(), err)
	}
	return r.Kind(), data, nil
}

// DecodeRecord deserializes a payload stored under the given discriminant.
func DecodeRecord(kind RecordKind, data []byte) (Record, error) {
	switch kind {
	case KindYomitanGlossary:
		return decodeAs[YomitanGlossary](kind, data)
	case KindYomitanFrequency:
		return decodeAs[YomitanFrequency](kind, data)
	case KindYomitanPitch:
		return decodeAs[YomitanPitch](kind, data)
	case KindYomitanKanji:
		return decodeAs[YomitanKanji](kind, data)
	case KindYomichanAudioForvo:
		return decodeAs[YomichanAudioForvo](kind, data)
	case KindYomichanAudioJpod:
		return decodeAs[YomichanAudioJpod](kind, data)
	case KindYomichanAudioNhk16:
		return decodeAs[YomichanAudioNhk16](kind, data)
	case KindYomichanAudioShinmeikai8:
		return decodeAs[YomichanAudioShinmeikai8](kind, data)
	case KindJmdictGlossary:
		return decodeAs[JmdictGlossary](kind, data)
	default:
		return nil, fmt.Errorf("unknown record kind %d", int(kind))
	}
}

func decodeAs[T Record](kind RecordKind, data []byte) (Record, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return v, nil
}
