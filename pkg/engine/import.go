package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/japaniel/jpdict/pkg/archive"
	"github.com/japaniel/jpdict/pkg/dictionary"
	"github.com/japaniel/jpdict/pkg/ingest"
	"github.com/japaniel/jpdict/pkg/store"
)

// EventType discriminates Event.
type EventType int

const (
	EventDeterminedKind EventType = iota
	EventParsedMeta
	EventProgress
	EventDone
	EventFailed
)

func (t EventType) String() string {
	switch t {
	case EventDeterminedKind:
		return "determined_kind"
	case EventParsedMeta:
		return "parsed_meta"
	case EventProgress:
		return "progress"
	case EventDone:
		return "done"
	case EventFailed:
		return "failed"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// Event is one step of an import as seen through Import.Events.
type Event struct {
	Type       EventType
	Kind       dictionary.Kind
	Meta       dictionary.Meta
	Progress   float64
	Dictionary dictionary.DictionaryID
	Err        error
}

// Import is a running dictionary import.
type Import struct {
	// ID correlates the import's log lines.
	ID   uuid.UUID
	Kind dictionary.Kind
	Meta dictionary.Meta

	progress *ingest.ChanProgress
	cancel   context.CancelFunc
	done     chan struct{}
	dict     dictionary.DictionaryID
	err      error

	eventsOnce sync.Once
	events     chan Event
}

// Progress delivers best-effort progress fractions. Updates may be dropped
// and the channel is closed when the import ends; use Wait for the outcome.
func (im *Import) Progress() <-chan float64 { return im.progress.C() }

// Done is closed when the import has finished.
func (im *Import) Done() <-chan struct{} { return im.done }

// Cancel aborts the import. It has no effect once the import has committed.
func (im *Import) Cancel() { im.cancel() }

// Wait blocks until the import ends and returns the new dictionary's id.
func (im *Import) Wait() (dictionary.DictionaryID, error) {
	<-im.done
	return im.dict, im.err
}

// Events adapts the import to a single stream: the detected kind, the parsed
// meta, progress updates, then Done or Failed. The channel is closed after
// the final event and must be drained. Events and Progress share updates, so
// use one or the other.
func (im *Import) Events() <-chan Event {
	im.eventsOnce.Do(func() {
		im.events = make(chan Event, 4)
		go func() {
			defer close(im.events)
			im.events <- Event{Type: EventDeterminedKind, Kind: im.Kind}
			im.events <- Event{Type: EventParsedMeta, Kind: im.Kind, Meta: im.Meta}
			for f := range im.progress.C() {
				im.events <- Event{Type: EventProgress, Kind: im.Kind, Progress: f}
			}
			id, err := im.Wait()
			if err != nil {
				im.events <- Event{Type: EventFailed, Kind: im.Kind, Meta: im.Meta, Err: err}
				return
			}
			im.events <- Event{Type: EventDone, Kind: im.Kind, Meta: im.Meta, Dictionary: id}
		}()
	})
	return im.events
}

// ImportDictionary detects the archive's kind and starts importing it.
// Detection, meta parsing and the name check happen before it returns; the
// parse and insert run in the background until ctx is done or the import is
// cancelled.
func (e *Engine) ImportDictionary(ctx context.Context, data []byte) (*Import, error) {
	imp, err := archive.Detect(data, e.importers)
	if err != nil {
		return nil, err
	}
	return e.start(ctx, imp, data)
}

// ImportDictionaryAs imports an archive of a known kind without detection.
func (e *Engine) ImportDictionaryAs(ctx context.Context, kind dictionary.Kind, data []byte) (*Import, error) {
	imp, err := archive.ByKind(kind, e.importers)
	if err != nil {
		return nil, err
	}
	if err := imp.Validate(data); err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	return e.start(ctx, imp, data)
}

func (e *Engine) start(ctx context.Context, imp archive.Importer, data []byte) (*Import, error) {
	id := uuid.New()
	log := e.log.With(slog.String("import", id.String()), slog.String("kind", string(imp.Kind())))
	log.Info("dictionary kind detected")

	meta, err := imp.ReadMeta(data)
	if err != nil {
		return nil, fmt.Errorf("read %s meta: %w", imp.Kind(), err)
	}
	exists, err := e.store.DictionaryExists(ctx, meta.Name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &store.AlreadyExistsError{Name: meta.Name}
	}
	log.Info("dictionary meta parsed", slog.String("name", meta.Name), slog.String("version", meta.Version))

	jobCtx, cancel := context.WithCancel(ctx)
	im := &Import{
		ID:       id,
		Kind:     imp.Kind(),
		Meta:     meta,
		progress: ingest.NewChanProgress(e.opts.ProgressBuffer),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go func() {
		defer close(im.done)
		defer cancel()
		defer im.progress.Close()

		started := time.Now()
		im.dict, im.err = imp.Import(jobCtx, data, meta, archive.StoreTarget(e.store), im.progress)
		if im.err != nil {
			log.Error("import failed", slog.String("error", im.err.Error()))
			return
		}
		log.Info("import committed",
			slog.Int64("dictionary", int64(im.dict)),
			slog.Duration("duration", time.Since(started)))
		if err := e.Refresh(context.WithoutCancel(ctx)); err != nil {
			log.Warn("refresh after import", slog.String("error", err.Error()))
		}
	}()
	return im, nil
}
