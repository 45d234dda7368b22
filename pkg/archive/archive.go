// Package archive defines the contract shared by dictionary archive importers
// and the plumbing they use to detect formats and write records.
package archive

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/japaniel/jpdict/pkg/dictionary"
	"github.com/japaniel/jpdict/pkg/ingest"
	"github.com/japaniel/jpdict/pkg/store"
)

// Importer reads one archive format.
type Importer interface {
	// Kind names the format.
	Kind() dictionary.Kind
	// Validate cheaply checks whether archive is in this format. It reads
	// directory listings and markers, not the full content.
	Validate(archive []byte) error
	// ReadMeta parses just enough of archive to describe the dictionary.
	ReadMeta(archive []byte) (dictionary.Meta, error)
	// Import parses archive and writes it through a transaction opened on
	// target. progress receives hints in [0, 1]. The returned id is only
	// valid when err is nil; on error nothing has been committed.
	Import(ctx context.Context, archive []byte, meta dictionary.Meta, target Target, progress ingest.ProgressSink) (dictionary.DictionaryID, error)
}

// Tx is an open import transaction.
type Tx interface {
	ingest.Sink
	Commit(ctx context.Context) (dictionary.DictionaryID, error)
	Rollback()
}

// Target opens import transactions.
type Target interface {
	Begin(ctx context.Context, meta dictionary.Meta) (Tx, error)
}

type storeTarget struct{ s *store.Store }

// StoreTarget adapts a store so importers can write into it.
func StoreTarget(s *store.Store) Target { return storeTarget{s} }

func (t storeTarget) Begin(ctx context.Context, meta dictionary.Meta) (Tx, error) {
	tx, err := t.s.BeginImport(ctx, meta)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// Options tunes importers.
type Options struct {
	// Workers bounds parallel parsing. Zero means runtime.NumCPU().
	Workers int
	// BatchSize is the number of distinct records per insert batch.
	BatchSize int
	Logger    *slog.Logger
}

// WithDefaults fills unset fields.
func (o Options) WithDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 512
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Emit queues one record under the given terms.
type Emit func(rec dictionary.Record, terms ...dictionary.Term) error

// Write opens a transaction on target, runs produce to emit records into it
// through a deduplicating batch writer, and commits. total is the number of
// emits produce is expected to make and only drives progress. Any error,
// including cancellation of ctx, rolls the transaction back.
func Write(ctx context.Context, target Target, meta dictionary.Meta, opts Options, total int, progress ingest.ProgressSink, produce func(ctx context.Context, emit Emit) error) (dictionary.DictionaryID, error) {
	opts = opts.WithDefaults()
	if progress == nil {
		progress = ingest.Discard
	}
	tx, err := target.Begin(ctx, meta)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	counter := ingest.NewCounter(progress, total)
	bw := ingest.NewBatchWriter(tx, opts.BatchSize)
	bw.OnFlush = counter.Set

	emit := func(rec dictionary.Record, terms ...dictionary.Term) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return bw.Submit(ctx, rec, terms...)
	}
	if err := produce(ctx, emit); err != nil {
		return 0, err
	}
	if err := bw.Close(ctx); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	id, err := tx.Commit(ctx)
	if err != nil {
		return 0, err
	}
	committed = true
	progress.Report(1)
	opts.Logger.Debug("records written",
		slog.String("dictionary", meta.Name),
		slog.Int("records", bw.Written()))
	return id, nil
}
