// Package engine ties the deinflector, the record store and the archive
// importers together behind one API.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/japaniel/jpdict/pkg/archive"
	"github.com/japaniel/jpdict/pkg/archive/jmdict"
	"github.com/japaniel/jpdict/pkg/archive/yomichanaudio"
	"github.com/japaniel/jpdict/pkg/archive/yomitan"
	"github.com/japaniel/jpdict/pkg/deinflect"
	"github.com/japaniel/jpdict/pkg/dictionary"
	"github.com/japaniel/jpdict/pkg/store"
)

// Options configures an Engine.
type Options struct {
	Logger *slog.Logger
	// MaxLookahead bounds how many tokens the deinflector joins.
	MaxLookahead int
	// Import is passed to the default importers.
	Import archive.Options
	// ProgressBuffer is the capacity of each import's progress channel.
	ProgressBuffer int
	// MaxConcurrentLookups bounds the per-lemma queries one Lookup runs at
	// once. Zero means one per candidate.
	MaxConcurrentLookups int
	// Importers replaces the default importer set.
	Importers []archive.Importer
	// Analyzer reuses an existing tokenizer instead of loading one.
	Analyzer *deinflect.Analyzer
}

// Snapshot is an immutable view of the dictionaries and profiles. It is
// replaced wholesale on Refresh and must not be modified.
type Snapshot struct {
	Dictionaries   []dictionary.Dictionary
	Profiles       []dictionary.Profile
	CurrentProfile dictionary.ProfileID
}

// Profile returns the profile with the given id.
func (s *Snapshot) Profile(id dictionary.ProfileID) (dictionary.Profile, bool) {
	for _, p := range s.Profiles {
		if p.ID == id {
			return p, true
		}
	}
	return dictionary.Profile{}, false
}

// Dictionary returns the dictionary with the given id.
func (s *Snapshot) Dictionary(id dictionary.DictionaryID) (dictionary.Dictionary, bool) {
	for _, d := range s.Dictionaries {
		if d.ID == id {
			return d, true
		}
	}
	return dictionary.Dictionary{}, false
}

// Engine answers lookups and manages dictionaries. It is safe for concurrent
// use.
type Engine struct {
	store       *store.Store
	deinflector *deinflect.Deinflector
	importers   []archive.Importer
	log         *slog.Logger
	opts        Options

	refreshMu sync.Mutex
	snapshot  atomic.Pointer[Snapshot]
}

// New builds an Engine over an open store and loads the first snapshot.
func New(ctx context.Context, s *store.Store, opts Options) (*Engine, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ProgressBuffer <= 0 {
		opts.ProgressBuffer = 16
	}
	if opts.Import.Logger == nil {
		opts.Import.Logger = opts.Logger
	}
	a := opts.Analyzer
	if a == nil {
		var err error
		if a, err = deinflect.NewAnalyzer(); err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
	}
	importers := opts.Importers
	if importers == nil {
		importers = DefaultImporters(opts.Import)
	}

	e := &Engine{
		store:       s,
		deinflector: deinflect.NewDeinflector(a, opts.MaxLookahead),
		importers:   importers,
		log:         opts.Logger,
		opts:        opts,
	}
	if err := e.Refresh(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// DefaultImporters returns one importer per known dictionary kind.
func DefaultImporters(opts archive.Options) []archive.Importer {
	return []archive.Importer{
		yomitan.New(opts),
		yomichanaudio.New(opts),
		jmdict.New(opts),
	}
}

// Store exposes the underlying store.
func (e *Engine) Store() *store.Store { return e.store }

// Snapshot returns the current cached view.
func (e *Engine) Snapshot() *Snapshot { return e.snapshot.Load() }

// Refresh reloads dictionaries and profiles from the store and swaps in a
// new snapshot. Lookups in flight keep the snapshot they started with.
func (e *Engine) Refresh(ctx context.Context) error {
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	dicts, err := e.store.Dictionaries(ctx)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	profiles, err := e.store.Profiles(ctx)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	current, err := e.store.CurrentProfileID(ctx)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	e.snapshot.Store(&Snapshot{Dictionaries: dicts, Profiles: profiles, CurrentProfile: current})
	return nil
}

// Deinflect returns the lemma candidates at cursor, longest first.
func (e *Engine) Deinflect(sentence string, cursor int) []deinflect.Deinflection {
	return e.deinflector.Deinflect(sentence, cursor)
}

// LookupLemma returns the ranked entries for one lemma. Spans cover the
// whole lemma.
func (e *Engine) LookupLemma(ctx context.Context, profile dictionary.ProfileID, lemma string) ([]dictionary.RecordEntry, error) {
	entries, err := e.store.LookupLemma(ctx, profile, lemma)
	span := dictionary.Span{Start: 0, End: len(lemma)}
	chars := dictionary.Span{Start: 0, End: utf8.RuneCountInString(lemma)}
	for i := range entries {
		entries[i].SpanBytes = span
		entries[i].SpanChars = chars
	}
	return entries, err
}

// Lookup finds the records for the word at the byte offset cursor. Every
// deinflection candidate is looked up concurrently; results are concatenated
// in candidate order and each record appears once, carrying the span of the
// first candidate that found it.
func (e *Engine) Lookup(ctx context.Context, profile dictionary.ProfileID, sentence string, cursor int) ([]dictionary.RecordEntry, error) {
	candidates := e.deinflector.Deinflect(sentence, cursor)
	if len(candidates) == 0 {
		return nil, nil
	}

	results := make([][]dictionary.RecordEntry, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	if e.opts.MaxConcurrentLookups > 0 {
		g.SetLimit(e.opts.MaxConcurrentLookups)
	}
	for i, c := range candidates {
		g.Go(func() error {
			entries, err := e.store.LookupLemma(gctx, profile, c.Lemma)
			if err != nil {
				return fmt.Errorf("lookup %q: %w", c.Lemma, err)
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[dictionary.RecordID]struct{})
	var out []dictionary.RecordEntry
	for i, c := range candidates {
		if len(results[i]) == 0 {
			continue
		}
		chars, err := charSpan(sentence, c.Span)
		if err != nil {
			return nil, err
		}
		for _, entry := range results[i] {
			if _, dup := seen[entry.RecordID]; dup {
				continue
			}
			seen[entry.RecordID] = struct{}{}
			entry.SpanBytes = c.Span
			entry.SpanChars = chars
			out = append(out, entry)
		}
	}
	return out, nil
}

// charSpan converts a byte span of s into a span of runes.
func charSpan(s string, span dictionary.Span) (dictionary.Span, error) {
	if span.Start < 0 || span.End > len(s) || span.Start > span.End ||
		!onBoundary(s, span.Start) || !onBoundary(s, span.End) {
		return dictionary.Span{}, fmt.Errorf("%w: %s in %d bytes", dictionary.ErrSpanBoundary, span, len(s))
	}
	start := utf8.RuneCountInString(s[:span.Start])
	return dictionary.Span{Start: start, End: start + utf8.RuneCountInString(s[span.Start:span.End])}, nil
}

func onBoundary(s string, i int) bool {
	return i == len(s) || utf8.RuneStart(s[i])
}
