// Package jmdict imports the jmdict-simplified JSON export of JMdict.
package jmdict

import (
	"context"
	"io"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/japaniel/jpdict/pkg/archive"
	"github.com/japaniel/jpdict/pkg/dictionary"
	"github.com/japaniel/jpdict/pkg/ingest"
)

// Importer reads jmdict-simplified JSON, raw or packed as .json.gz, .tgz or
// .zip.
type Importer struct {
	opts archive.Options
}

// New returns an Importer.
func New(opts archive.Options) *Importer {
	return &Importer{opts: opts.WithDefaults()}
}

func (*Importer) Kind() dictionary.Kind { return dictionary.KindJmdict }

// Validate checks that the archive holds a words array whose first element
// looks like a JMdict word.
func (*Importer) Validate(data []byte) error {
	doc, err := open(data)
	if err != nil {
		return err
	}
	e, err := doc.next()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}
	if len(e.Kanji) == 0 && len(e.Kana) == 0 {
		return errors.New("first word has neither kanji nor kana")
	}
	return nil
}

func (*Importer) ReadMeta(data []byte) (dictionary.Meta, error) {
	doc, err := open(data)
	if err != nil {
		return dictionary.Meta{}, err
	}
	name := "JMdict"
	if doc.version != "" {
		name = "JMdict (" + doc.version + ")"
	}
	meta := dictionary.NewMeta(dictionary.KindJmdict, name)
	meta.Version = doc.version
	meta.Description = "Japanese-Multilingual Dictionary (jmdict-simplified)"
	meta.URL = "https://github.com/scriptin/jmdict-simplified"
	meta.Attribution = "JMdict by the Electronic Dictionary Research and Development Group, CC BY-SA 4.0"
	return meta, nil
}

type item struct {
	rec   dictionary.JmdictGlossary
	terms []dictionary.Term
}

// Import decodes every word, then writes one record per word filed under
// each of its spellings.
func (im *Importer) Import(ctx context.Context, data []byte, meta dictionary.Meta, target archive.Target, progress ingest.ProgressSink) (dictionary.DictionaryID, error) {
	if progress == nil {
		progress = ingest.Discard
	}
	log := im.opts.Logger.With(slog.String("dictionary", meta.Name))

	doc, err := open(data)
	if err != nil {
		return 0, err
	}
	var (
		items   []item
		skipped int
	)
	for n := 0; ; n++ {
		if n%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		e, err := doc.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, errors.Wrapf(err, "word %d", n)
		}
		rec, terms := convert(e)
		if len(terms) == 0 || len(rec.Senses) == 0 {
			skipped++
			continue
		}
		items = append(items, item{rec: rec, terms: terms})
	}
	progress.Report(0.5)
	log.Debug("words decoded", slog.Int("words", len(items)), slog.Int("skipped", skipped))

	return archive.Write(ctx, target, meta, im.opts, len(items), ingest.Scaled(progress, 0.5, 1),
		func(ctx context.Context, emit archive.Emit) error {
			for _, it := range items {
				if err := emit(it.rec, it.terms...); err != nil {
					return err
				}
			}
			return nil
		})
}

// convert builds the record for a word and the terms it is reachable by.
// Kanji spellings are paired with the readings that apply to them; a word
// written only in kana uses each reading as its own headword.
func convert(e Entry) (dictionary.JmdictGlossary, []dictionary.Term) {
	rec := dictionary.JmdictGlossary{EntryID: e.ID}
	for _, el := range append(append([]Element(nil), e.Kanji...), e.Kana...) {
		if el.Common {
			rec.Common = true
		}
	}
	for _, s := range e.Sense {
		sense := dictionary.JmdictSense{
			PartOfSpeech: s.PartOfSpeech,
			Misc:         s.Misc,
			Info:         s.Info,
		}
		for _, g := range s.Gloss {
			if g.Text != "" {
				sense.Glosses = append(sense.Glosses, g.Text)
			}
		}
		if len(sense.Glosses) > 0 {
			rec.Senses = append(rec.Senses, sense)
		}
	}

	var terms []dictionary.Term
	seen := make(map[dictionary.Term]struct{})
	add := func(t dictionary.Term, ok bool) {
		if !ok {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}

	if len(e.Kanji) == 0 {
		for _, r := range e.Kana {
			add(dictionary.NewTerm(r.Text, r.Text))
		}
		return rec, terms
	}
	for _, k := range e.Kanji {
		paired := false
		for _, r := range e.Kana {
			if appliesTo(r, k.Text) {
				add(dictionary.NewTerm(k.Text, r.Text))
				paired = true
			}
		}
		if !paired {
			add(dictionary.HeadwordTerm(k.Text))
		}
	}
	return rec, terms
}

func appliesTo(reading Element, kanji string) bool {
	if len(reading.AppliesToKanji) == 0 {
		return true
	}
	for _, k := range reading.AppliesToKanji {
		if k == "*" || k == kanji {
			return true
		}
	}
	return false
}
