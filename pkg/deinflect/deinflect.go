package deinflect

import (
	"strings"
	"unicode/utf8"

	"github.com/japaniel/jpdict/pkg/dictionary"
)

// DefaultMaxLookahead is the number of leading tokens joined into the longest
// candidate.
const DefaultMaxLookahead = 8

// Deinflection is one interpretation of the text at a cursor: a lemma to look
// up and the byte span of the sentence it accounts for.
type Deinflection struct {
	Lemma string
	Span  dictionary.Span
}

// Deinflector enumerates lemma candidates for a cursor position.
type Deinflector struct {
	analyzer     *Analyzer
	maxLookahead int
}

// NewDeinflector returns a Deinflector joining at most maxLookahead tokens.
// A non-positive maxLookahead selects DefaultMaxLookahead.
func NewDeinflector(a *Analyzer, maxLookahead int) *Deinflector {
	if maxLookahead <= 0 {
		maxLookahead = DefaultMaxLookahead
	}
	return &Deinflector{analyzer: a, maxLookahead: maxLookahead}
}

// Deinflect analyzes sentence from the byte offset cursor onwards.
//
// For each lookahead depth N, from the longest down to 1, it joins the base
// forms of the first N tokens into one candidate and their surface forms into
// another. Both share a span that starts at cursor and covers the N tokens
// plus any grammatical continuation of the last one (auxiliaries after a verb,
// suffixes after an adjective), up to and including a token in terminal form.
//
// A cursor outside the sentence or inside a UTF-8 sequence yields nothing, as
// does text with no analyzable token. Malformed tokens are skipped, and so is
// whitespace ahead of the first word. Identical (lemma, span) pairs are
// reported once.
func (d *Deinflector) Deinflect(sentence string, cursor int) []Deinflection {
	if cursor < 0 || cursor >= len(sentence) || !utf8.RuneStart(sentence[cursor]) {
		return nil
	}
	text := sentence[cursor:]

	toks := usable(d.analyzer.tokens(text))
	if len(toks) == 0 {
		return nil
	}

	type key struct {
		lemma string
		end   int
	}
	seen := make(map[key]struct{})
	var out []Deinflection
	add := func(lemma string, end int) {
		if strings.TrimSpace(lemma) == "" {
			return
		}
		k := key{lemma, end}
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		out = append(out, Deinflection{
			Lemma: lemma,
			Span:  dictionary.Span{Start: cursor, End: cursor + end},
		})
	}

	for depth := min(d.maxLookahead, len(toks)); depth >= 1; depth-- {
		var lemma, ortho strings.Builder
		for _, t := range toks[:depth] {
			lemma.WriteString(t.BaseForm)
			ortho.WriteString(t.Surface)
		}
		end := toks[extend(toks, depth)-1].End
		add(lemma.String(), end)
		add(ortho.String(), end)
	}
	return out
}

// usable drops malformed tokens and any whitespace before the first word.
func usable(toks []Token) []Token {
	out := make([]Token, 0, len(toks))
	for _, t := range toks {
		if t.malformed {
			continue
		}
		if len(out) == 0 && strings.TrimSpace(t.Surface) == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

// extend returns how many tokens the span of a depth-token candidate covers.
func extend(toks []Token, depth int) int {
	end := depth
	last := toks[depth-1]
	if last.terminal() {
		return end
	}
	for end < len(toks) && continues(last, toks[end]) {
		last = toks[end]
		end++
		if last.terminal() {
			break
		}
	}
	return end
}

func (t Token) pos(i int) string {
	if i < len(t.PartsOfSpeech) {
		return t.PartsOfSpeech[i]
	}
	return ""
}

// terminal reports whether the token is in dictionary (plain) form.
func (t Token) terminal() bool {
	return t.ConjugationForm == "基本形"
}

func (t Token) inflecting() bool {
	switch t.PrimaryPOS {
	case "動詞", "形容詞", "助動詞":
		return true
	}
	return false
}

// continues reports whether next grammatically attaches to prev.
func continues(prev, next Token) bool {
	switch next.PrimaryPOS {
	case "助動詞":
		return prev.inflecting()
	case "動詞":
		if sub := next.pos(1); sub == "非自立" || sub == "接尾" {
			return prev.inflecting() || isTeParticle(prev)
		}
	case "形容詞":
		if next.pos(1) == "非自立" {
			return prev.inflecting() || isTeParticle(prev)
		}
	case "助詞":
		if next.pos(1) == "接続助詞" {
			switch next.Surface {
			case "て", "で", "ば":
				return prev.inflecting()
			}
		}
	case "名詞":
		if next.pos(1) == "接尾" {
			return prev.PrimaryPOS == "形容詞"
		}
	}
	return false
}

func isTeParticle(t Token) bool {
	return t.PrimaryPOS == "助詞" && t.pos(1) == "接続助詞" && (t.Surface == "て" || t.Surface == "で")
}
