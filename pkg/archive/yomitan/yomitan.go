// Package yomitan imports Yomitan (formerly Yomichan) dictionary zips: term
// definitions, term frequencies, pitch accents and kanji.
package yomitan

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/japaniel/jpdict/pkg/archive"
	"github.com/japaniel/jpdict/pkg/dictionary"
	"github.com/japaniel/jpdict/pkg/ingest"
)

const indexName = "index.json"

// Importer reads Yomitan dictionary zips.
type Importer struct {
	opts archive.Options
}

// New returns an Importer.
func New(opts archive.Options) *Importer {
	return &Importer{opts: opts.WithDefaults()}
}

func (*Importer) Kind() dictionary.Kind { return dictionary.KindYomitan }

// Validate checks for a zip with an index.json at its root.
func (*Importer) Validate(data []byte) error {
	zr, err := archive.OpenZip(data)
	if err != nil {
		return err
	}
	if archive.FindZipFile(zr, indexName) == nil {
		return errors.New("no index.json at the archive root")
	}
	return nil
}

func (im *Importer) ReadMeta(data []byte) (dictionary.Meta, error) {
	idx, err := readIndex(data)
	if err != nil {
		return dictionary.Meta{}, err
	}
	return idx.meta, nil
}

func readIndex(data []byte) (index, error) {
	zr, err := archive.OpenZip(data)
	if err != nil {
		return index{}, err
	}
	f := archive.FindZipFile(zr, indexName)
	if f == nil {
		return index{}, errors.New("no index.json at the archive root")
	}
	raw, err := archive.ReadZipFile(f)
	if err != nil {
		return index{}, err
	}
	return parseIndex(raw)
}

// Import parses every bank in parallel, then writes the records in one
// transaction. Parsing reports the first half of progress, writing the second.
// Any malformed bank fails the whole import before the transaction opens.
func (im *Importer) Import(ctx context.Context, data []byte, meta dictionary.Meta, target archive.Target, progress ingest.ProgressSink) (dictionary.DictionaryID, error) {
	if progress == nil {
		progress = ingest.Discard
	}
	log := im.opts.Logger.With(slog.String("dictionary", meta.Name))

	idx, err := readIndex(data)
	if err != nil {
		return 0, err
	}
	zr, err := archive.OpenZip(data)
	if err != nil {
		return 0, err
	}

	var (
		tagBanks []bankFile
		banks    []bankFile
		files    = make(map[string][]byte)
	)
	for _, f := range zr.File {
		b, ok := matchBank(f.Name)
		if !ok {
			continue
		}
		raw, err := archive.ReadZipFile(f)
		if err != nil {
			return 0, err
		}
		files[b.name] = raw
		if b.kind == bankTag {
			tagBanks = append(tagBanks, b)
		} else {
			banks = append(banks, b)
		}
	}
	sortBanks(tagBanks)
	sortBanks(banks)

	var tags []dictionary.Tag
	for _, b := range tagBanks {
		t, err := parseTagBank(b.name, files[b.name])
		if err != nil {
			return 0, err
		}
		tags = append(tags, t...)
	}
	p := &parser{schema: idx.schema, tags: newTagSet(tags)}

	results, err := im.parseBanks(ctx, log, p, banks, files, ingest.Scaled(progress, 0, 0.5))
	if err != nil {
		return 0, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	log.Debug("banks parsed",
		slog.Int("banks", len(banks)),
		slog.Int("tags", len(tags)),
		slog.Int("records", total))

	return archive.Write(ctx, target, meta, im.opts, total, ingest.Scaled(progress, 0.5, 1),
		func(ctx context.Context, emit archive.Emit) error {
			for _, items := range results {
				for _, it := range items {
					if err := emit(it.rec, it.terms...); err != nil {
						return err
					}
				}
			}
			return nil
		})
}

// parseBanks parses banks on the worker pool. Results keep bank order.
func (im *Importer) parseBanks(ctx context.Context, log *slog.Logger, p *parser, banks []bankFile, files map[string][]byte, progress ingest.ProgressSink) ([][]item, error) {
	results := make([][]item, len(banks))
	counter := ingest.NewCounter(progress, len(banks))

	pool := ingest.NewWorkerPool(im.opts.Workers, len(banks))
	pool.Start(ctx)
	for i, b := range banks {
		err := pool.SubmitCtx(ctx, func(ctx context.Context) error {
			items, skipped, err := p.parse(b, files[b.name])
			if err != nil {
				return err
			}
			if skipped > 0 {
				log.Debug("bank entries skipped",
					slog.String("bank", b.name),
					slog.Int("skipped", skipped))
			}
			results[i] = items
			counter.Add(1)
			return nil
		})
		if err != nil {
			break
		}
	}
	if err := pool.Close(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
