package yomitan

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/japaniel/jpdict/pkg/dictionary"
)

type bankKind int

const (
	bankTag bankKind = iota
	bankTerm
	bankTermMeta
	bankKanji
	bankKanjiMeta
)

var bankPattern = regexp.MustCompile(`^(tag|term|term_meta|kanji|kanji_meta)_bank_(\d+)\.json$`)

var bankKinds = map[string]bankKind{
	"tag":        bankTag,
	"term":       bankTerm,
	"term_meta":  bankTermMeta,
	"kanji":      bankKanji,
	"kanji_meta": bankKanjiMeta,
}

type bankFile struct {
	name string
	kind bankKind
	num  int
}

// matchBank recognizes bank members at the archive root.
func matchBank(name string) (bankFile, bool) {
	m := bankPattern.FindStringSubmatch(name)
	if m == nil {
		return bankFile{}, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return bankFile{}, false
	}
	return bankFile{name: name, kind: bankKinds[m[1]], num: n}, true
}

func sortBanks(banks []bankFile) {
	sort.Slice(banks, func(i, j int) bool {
		if banks[i].kind != banks[j].kind {
			return banks[i].kind < banks[j].kind
		}
		return banks[i].num < banks[j].num
	})
}

// item is a parsed record and the terms it is filed under.
type item struct {
	rec   dictionary.Record
	terms []dictionary.Term
}

// bankRows validates a bank file and returns its top-level entries.
func bankRows(name string, data []byte) ([]gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.Errorf("%s: invalid JSON", name)
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, errors.Errorf("%s: expected an array", name)
	}
	return root.Array(), nil
}

// parser turns bank entries into records for one dictionary.
type parser struct {
	schema Schema
	tags   *tagSet
}

func (p *parser) parse(b bankFile, data []byte) ([]item, int, error) {
	rows, err := bankRows(b.name, data)
	if err != nil {
		return nil, 0, err
	}
	var (
		out     []item
		skipped int
	)
	for i, row := range rows {
		if !row.IsArray() {
			return nil, 0, errors.Errorf("%s: entry %d: not an array", b.name, i)
		}
		f := row.Array()
		var items []item
		switch b.kind {
		case bankTerm:
			items, err = p.termEntry(f)
		case bankTermMeta:
			items, err = p.metaEntry(f, true)
		case bankKanji:
			items, err = p.kanjiEntry(f)
		case bankKanjiMeta:
			items, err = p.metaEntry(f, false)
		}
		if err != nil {
			return nil, 0, errors.Wrapf(err, "%s: entry %d", b.name, i)
		}
		if items == nil {
			skipped++
		}
		out = append(out, items...)
	}
	return out, skipped, nil
}

// termEntry reads [expression, reading, definitionTags, rules, score,
// glossary, sequence, termTags]. Format 1 has the glossary strings inline
// from index 5 and no sequence or term tags.
func (p *parser) termEntry(f []gjson.Result) ([]item, error) {
	if len(f) < 5 {
		return nil, errors.Errorf("term entry has %d fields", len(f))
	}
	term, ok := dictionary.NewTerm(f[0].String(), f[1].String())
	if !ok {
		return nil, nil
	}

	var raw []gjson.Result
	tagText := f[2].String()
	if p.schema.Version == 1 {
		raw = f[5:]
	} else {
		if len(f) < 6 || !f[5].IsArray() {
			return nil, errors.New("term entry without a glossary array")
		}
		raw = f[5].Array()
		if len(f) > 7 {
			tagText = strings.TrimSpace(tagText + " " + f[7].String())
		}
	}

	g := dictionary.YomitanGlossary{
		Popularity: f[4].Int(),
		Tags:       p.tags.resolve(tagText),
		Content:    make([]dictionary.GlossaryContent, 0, len(raw)),
	}
	for _, r := range raw {
		c, err := parseGlossary(r)
		if err != nil {
			return nil, err
		}
		g.Content = append(g.Content, c)
	}
	return []item{{rec: g, terms: []dictionary.Term{term}}}, nil
}

// metaEntry reads [expression, mode, data] from term and kanji meta banks.
// Kanji meta banks only carry frequencies.
func (p *parser) metaEntry(f []gjson.Result, term bool) ([]item, error) {
	if len(f) < 3 {
		return nil, errors.Errorf("meta entry has %d fields", len(f))
	}
	expression := f[0].String()
	data := f[2]
	switch mode := f[1].String(); {
	case mode == "freq":
		reading := ""
		value := data
		if term && data.IsObject() && data.Get("reading").Exists() {
			reading = data.Get("reading").String()
			value = data.Get("frequency")
		}
		t, ok := dictionary.NewTerm(expression, reading)
		if !ok {
			return nil, nil
		}
		freq, err := p.frequency(value)
		if err != nil {
			return nil, err
		}
		return []item{{rec: freq, terms: []dictionary.Term{t}}}, nil
	case mode == "pitch" && term:
		t, ok := dictionary.NewTerm(expression, data.Get("reading").String())
		if !ok {
			return nil, nil
		}
		var out []item
		for _, pitch := range data.Get("pitches").Array() {
			out = append(out, item{
				rec: dictionary.YomitanPitch{
					Position: int(pitch.Get("position").Int()),
					Nasal:    positions(pitch.Get("nasal")),
					Devoice:  positions(pitch.Get("devoice")),
					Tags:     strs(pitch.Get("tags")),
				},
				terms: []dictionary.Term{t},
			})
		}
		return out, nil
	default:
		// ipa and future modes are not stored
		return nil, nil
	}
}

// frequency reads a number, a string, or {value, displayValue}.
func (p *parser) frequency(v gjson.Result) (dictionary.YomitanFrequency, error) {
	var out dictionary.YomitanFrequency
	switch {
	case v.Type == gjson.Number:
		out.Value = p.value(v.Num)
	case v.Type == gjson.String:
		out.Display = v.Str
		if n, ok := parseNumber(v.Str); ok {
			out.Value = p.value(n)
		}
	case v.IsObject():
		out.Display = v.Get("displayValue").String()
		if val := v.Get("value"); val.Type == gjson.Number {
			out.Value = p.value(val.Num)
		} else if n, ok := parseNumber(val.String()); ok {
			out.Value = p.value(n)
		}
	default:
		return out, errors.Errorf("unexpected frequency value %s", v.Raw)
	}
	if out.Value == nil && out.Display == "" {
		return out, errors.Errorf("empty frequency value %s", v.Raw)
	}
	return out, nil
}

func (p *parser) value(n float64) *dictionary.FrequencyValue {
	return &dictionary.FrequencyValue{Mode: p.schema.FrequencyMode, Value: int64(math.Round(n))}
}

func parseNumber(s string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// positions reads a mora position given as a single number or a list.
func positions(v gjson.Result) []int {
	out := []int{}
	switch {
	case v.Type == gjson.Number:
		out = append(out, int(v.Int()))
	case v.IsArray():
		for _, n := range v.Array() {
			out = append(out, int(n.Int()))
		}
	}
	return out
}

func strs(v gjson.Result) []string {
	var out []string
	for _, s := range v.Array() {
		out = append(out, s.String())
	}
	return out
}

// kanjiEntry reads [character, onyomi, kunyomi, tags, meanings, stats].
func (p *parser) kanjiEntry(f []gjson.Result) ([]item, error) {
	if len(f) < 5 {
		return nil, errors.Errorf("kanji entry has %d fields", len(f))
	}
	t, ok := dictionary.HeadwordTerm(f[0].String())
	if !ok {
		return nil, nil
	}
	k := dictionary.YomitanKanji{
		Onyomi:   strings.Fields(f[1].String()),
		Kunyomi:  strings.Fields(f[2].String()),
		Tags:     p.tags.resolve(f[3].String()),
		Meanings: strs(f[4]),
	}
	if len(f) > 5 {
		k.Stats = flatten(f[5])
	}
	return []item{{rec: k, terms: []dictionary.Term{t}}}, nil
}
