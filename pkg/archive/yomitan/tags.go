package yomitan

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/japaniel/jpdict/pkg/dictionary"
)

// tagSet resolves tag abbreviations. Tags are kept longest name first so that
// greedy prefix matching prefers "vs-i" over "vs".
type tagSet struct {
	tags []dictionary.Tag
}

func newTagSet(tags []dictionary.Tag) *tagSet {
	sorted := append([]dictionary.Tag(nil), tags...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Name) > len(sorted[j].Name)
	})
	return &tagSet{tags: sorted}
}

// resolve splits a tag string such as "n vs-i P" into tags. At each position
// the longest known tag name that prefixes the rest wins; an unknown word up
// to the next space becomes a bare tag.
func (s *tagSet) resolve(raw string) []dictionary.Tag {
	var out []dictionary.Tag
	seen := make(map[string]struct{})
	add := func(t dictionary.Tag) {
		if _, dup := seen[t.Name]; dup {
			return
		}
		seen[t.Name] = struct{}{}
		out = append(out, t)
	}

	rest := strings.TrimSpace(raw)
	for rest != "" {
		matched := false
		for _, t := range s.tags {
			if t.Name == "" || !strings.HasPrefix(rest, t.Name) {
				continue
			}
			// A match must end at a word boundary.
			after := rest[len(t.Name):]
			if after != "" && after[0] != ' ' {
				continue
			}
			add(t)
			rest = strings.TrimLeft(after, " ")
			matched = true
			break
		}
		if matched {
			continue
		}
		word, after, _ := strings.Cut(rest, " ")
		add(dictionary.Tag{Name: word})
		rest = strings.TrimLeft(after, " ")
	}
	return out
}

// parseTagBank reads [name, category, order, notes, score] tuples.
func parseTagBank(name string, data []byte) ([]dictionary.Tag, error) {
	rows, err := bankRows(name, data)
	if err != nil {
		return nil, err
	}
	tags := make([]dictionary.Tag, 0, len(rows))
	for i, row := range rows {
		if !row.IsArray() {
			return nil, errors.Errorf("%s: entry %d: not an array", name, i)
		}
		f := row.Array()
		if len(f) < 1 || f[0].Type != gjson.String {
			return nil, errors.Errorf("%s: entry %d: missing tag name", name, i)
		}
		t := dictionary.Tag{Name: strings.TrimSpace(f[0].Str)}
		if len(f) > 1 {
			t.Category = f[1].String()
		}
		if len(f) > 2 {
			t.Order = f[2].Int()
		}
		if len(f) > 3 {
			t.Notes = f[3].String()
		}
		if len(f) > 4 {
			t.Score = f[4].Int()
		}
		if t.Name != "" {
			tags = append(tags, t)
		}
	}
	return tags, nil
}
