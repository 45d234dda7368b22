// Package deinflect turns a cursor position in Japanese text into candidate
// dictionary-form lemmas using the kagome morphological analyzer.
package deinflect

import (
	"strings"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// Token represents a single analyzed unit of text.
type Token struct {
	Surface       string   // The text as it appears (e.g. "行っ")
	BaseForm      string   // The dictionary form (e.g. "行く")
	Reading       string   // The pronunciation (katakana, e.g. "イッ")
	PartsOfSpeech []string // e.g. ["動詞", "自立", "*", "*"] (Kagome POS labels)
	// PrimaryPOS stores the first (primary) part of speech if available.
	PrimaryPOS string
	// ConjugationType and ConjugationForm are "" for uninflected words.
	ConjugationType string
	ConjugationForm string

	// Start and End are byte offsets into the analyzed text.
	Start, End int

	// malformed is set for tokens that lack the IPA feature set.
	malformed bool
}

// Sentence represents a sentence containing tokens.
type Sentence struct {
	Text   string
	Tokens []Token
}

// Analyzer handles text segmentation. It is safe for concurrent use.
type Analyzer struct {
	t *tokenizer.Tokenizer
}

// NewAnalyzer creates a new tokenizer instance backed by the IPA dictionary.
func NewAnalyzer() (*Analyzer, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &Analyzer{t: t}, nil
}

// Kagome IPA features:
// 0: Part of Speech
// 1: Sub-POS 1
// 2: Sub-POS 2
// 3: Sub-POS 3
// 4: Conjugation Type
// 5: Conjugation Form
// 6: Base Form (Lemma)
// 7: Reading (Pronunciation)
// 8: Pronunciation (often same as 7)
const minFeatures = 7

func feature(features []string, i int) string {
	if i < len(features) && features[i] != "*" {
		return features[i]
	}
	return ""
}

// tokens analyzes text and returns every token, including malformed ones,
// with byte offsets into text.
func (a *Analyzer) tokens(text string) []Token {
	raw := a.t.Tokenize(text)
	out := make([]Token, 0, len(raw))
	offset := 0
	for _, tok := range raw {
		start := offset
		if i := strings.Index(text[offset:], tok.Surface); i >= 0 {
			start = offset + i
		}
		end := start + len(tok.Surface)
		offset = end

		features := tok.Features()
		t := Token{
			Surface:       tok.Surface,
			BaseForm:      tok.Surface,
			PartsOfSpeech: features,
			Start:         start,
			End:           end,
		}
		if tok.Class == tokenizer.DUMMY || len(features) < minFeatures || tok.Surface == "" {
			t.malformed = true
			out = append(out, t)
			continue
		}
		if base := feature(features, 6); base != "" {
			t.BaseForm = base
		}
		t.Reading = feature(features, 7)
		t.PrimaryPOS = features[0]
		t.ConjugationType = feature(features, 4)
		t.ConjugationForm = feature(features, 5)
		out = append(out, t)
	}
	return out
}

// Analyze breaks text into tokens with readings and base forms. Whitespace
// and tokens the dictionary cannot describe are left out.
func (a *Analyzer) Analyze(text string) []Token {
	var result []Token
	for _, t := range a.tokens(text) {
		if t.malformed || strings.TrimSpace(t.Surface) == "" {
			continue
		}
		result = append(result, t)
	}
	return result
}

// AnalyzeDocument splits the text into sentences and tokenizes each sentence.
func (a *Analyzer) AnalyzeDocument(text string) []Sentence {
	var result []Sentence
	for _, s := range SplitSentences(text) {
		if strings.TrimSpace(s) == "" {
			continue
		}
		result = append(result, Sentence{
			Text:   s,
			Tokens: a.Analyze(s),
		})
	}
	return result
}

// SplitSentences splits text after 。！？ and newlines, keeping the delimiter.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if r == '。' || r == '！' || r == '？' || r == '\n' {
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}
