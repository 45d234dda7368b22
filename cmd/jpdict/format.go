package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/japaniel/jpdict/pkg/dictionary"
	"github.com/japaniel/jpdict/pkg/engine"
)

func printEntries(w io.Writer, snap *engine.Snapshot, text string, entries []dictionary.RecordEntry) {
	for _, en := range entries {
		name := fmt.Sprintf("#%d", en.Source)
		if d, ok := snap.Dictionary(en.Source); ok {
			name = d.Meta.Name
		}
		matched := text
		if en.SpanBytes.End <= len(text) {
			matched = text[en.SpanBytes.Start:en.SpanBytes.End]
		}
		fmt.Fprintf(w, "%s\t%s\t(%s)\n", matched, en.Term, name)
		fmt.Fprintf(w, "\t%s\n", summarize(en.Record))
	}
}

// summarize renders a record on one line.
func summarize(r dictionary.Record) string {
	switch r := r.(type) {
	case dictionary.YomitanGlossary:
		parts := make([]string, 0, len(r.Content))
		for _, c := range r.Content {
			switch {
			case c.Structured != nil:
				parts = append(parts, strings.ReplaceAll(c.Structured.PlainText(), "\n", " "))
			case c.Image != nil:
				parts = append(parts, "[image "+c.Image.Path+"]")
			case c.Deinflection != nil:
				parts = append(parts, "→ "+c.Deinflection.Uninflected)
			default:
				parts = append(parts, c.Text)
			}
		}
		return strings.Join(parts, "; ")
	case dictionary.YomitanFrequency:
		if r.Display != "" {
			return "frequency " + r.Display
		}
		if r.Value != nil {
			return "frequency " + r.Value.String()
		}
		return "frequency"
	case dictionary.YomitanPitch:
		return fmt.Sprintf("pitch [%d]", r.Position)
	case dictionary.YomitanKanji:
		return fmt.Sprintf("%s (on: %s; kun: %s)",
			strings.Join(r.Meanings, ", "), strings.Join(r.Onyomi, " "), strings.Join(r.Kunyomi, " "))
	case dictionary.YomichanAudioForvo:
		return fmt.Sprintf("audio forvo/%s (%s, %d bytes)", r.Username, r.Audio.Format, len(r.Audio.Data))
	case dictionary.YomichanAudioJpod:
		return fmt.Sprintf("audio jpod (%s, %d bytes)", r.Audio.Format, len(r.Audio.Data))
	case dictionary.YomichanAudioNhk16:
		return fmt.Sprintf("audio nhk16 %v (%s, %d bytes)", r.PitchPositions, r.Audio.Format, len(r.Audio.Data))
	case dictionary.YomichanAudioShinmeikai8:
		return fmt.Sprintf("audio shinmeikai8 %s (%s, %d bytes)", r.PitchPattern, r.Audio.Format, len(r.Audio.Data))
	case dictionary.JmdictGlossary:
		senses := make([]string, 0, len(r.Senses))
		for i, s := range r.Senses {
			senses = append(senses, fmt.Sprintf("%d. %s", i+1, strings.Join(s.Glosses, ", ")))
		}
		return strings.Join(senses, " ")
	default:
		return fmt.Sprintf("%T", r)
	}
}
