package ingest

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/japaniel/jpdict/pkg/dictionary"
	"github.com/japaniel/jpdict/pkg/store"
)

// Sink receives flushed batches. *store.ImportTx satisfies it.
type Sink interface {
	InsertRecords(ctx context.Context, entries []store.Entry) error
	InsertFrequencies(ctx context.Context, rows []store.FrequencyRow) error
}

type pendingRecord struct {
	kind  dictionary.RecordKind
	data  []byte
	terms []dictionary.Term
	seen  map[dictionary.Term]struct{}
}

type frequencyKey struct {
	term  dictionary.Term
	value dictionary.FrequencyValue
}

// BatchWriter buffers (term, record) pairs and flushes them to a Sink in
// batches of bounded size.
//
// Within a batch, records with an identical kind and payload are stored once
// and indexed by every term they were submitted under; resubmitting the same
// (term, record) pair is a no-op. A YomitanFrequency with a sortable value
// also yields a row for the frequency sorting table.
type BatchWriter struct {
	mu     sync.Mutex
	sink   Sink
	cap    int
	closed bool

	pending []*pendingRecord
	byHash  map[uint64][]int
	freqs   []store.FrequencyRow
	freqSet map[frequencyKey]struct{}

	submitted int
	written   int

	// OnFlush, if set, is called after every successful flush with the total
	// number of submissions flushed so far.
	OnFlush func(submitted int)
}

// NewBatchWriter creates a BatchWriter that flushes to sink whenever
// bufferSize distinct records are pending.
func NewBatchWriter(sink Sink, bufferSize int) *BatchWriter {
	if bufferSize <= 0 {
		bufferSize = 512
	}
	return &BatchWriter{
		sink:    sink,
		cap:     bufferSize,
		byHash:  make(map[uint64][]int),
		freqSet: make(map[frequencyKey]struct{}),
	}
}

// Submit encodes rec and queues it under the given terms.
func (bw *BatchWriter) Submit(ctx context.Context, rec dictionary.Record, terms ...dictionary.Term) error {
	kind, data, err := dictionary.EncodeRecord(rec)
	if err != nil {
		return err
	}

	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return ErrBatchWriterClosed
	}
	bw.submitted++

	p := bw.find(kind, data)
	if p == nil {
		p = &pendingRecord{kind: kind, data: data, seen: make(map[dictionary.Term]struct{}, len(terms))}
		h := xxhash.Sum64(data)
		bw.byHash[h] = append(bw.byHash[h], len(bw.pending))
		bw.pending = append(bw.pending, p)
	}
	for _, term := range terms {
		if !term.IsValid() {
			continue
		}
		if _, dup := p.seen[term]; dup {
			continue
		}
		p.seen[term] = struct{}{}
		p.terms = append(p.terms, term)
	}

	if f, ok := rec.(dictionary.YomitanFrequency); ok && f.Value != nil {
		for _, term := range terms {
			key := frequencyKey{term: term, value: *f.Value}
			if _, dup := bw.freqSet[key]; dup || !term.IsValid() {
				continue
			}
			bw.freqSet[key] = struct{}{}
			bw.freqs = append(bw.freqs, store.FrequencyRow{Term: term, Value: *f.Value})
		}
	}

	if len(bw.pending) >= bw.cap || len(bw.freqs) >= bw.cap {
		return bw.flushLocked(ctx)
	}
	return nil
}

func (bw *BatchWriter) find(kind dictionary.RecordKind, data []byte) *pendingRecord {
	for _, i := range bw.byHash[xxhash.Sum64(data)] {
		p := bw.pending[i]
		if p.kind == kind && bytes.Equal(p.data, data) {
			return p
		}
	}
	return nil
}

// Flush writes everything pending to the sink.
func (bw *BatchWriter) Flush(ctx context.Context) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return bw.flushLocked(ctx)
}

// flushLocked assumes bw.mu is held.
func (bw *BatchWriter) flushLocked(ctx context.Context) error {
	if len(bw.pending) == 0 && len(bw.freqs) == 0 {
		return nil
	}
	if len(bw.pending) > 0 {
		entries := make([]store.Entry, len(bw.pending))
		for i, p := range bw.pending {
			entries[i] = store.Entry{Terms: p.terms, Kind: p.kind, Data: p.data}
		}
		if err := bw.sink.InsertRecords(ctx, entries); err != nil {
			return fmt.Errorf("flush %d records: %w", len(entries), err)
		}
	}
	if len(bw.freqs) > 0 {
		if err := bw.sink.InsertFrequencies(ctx, bw.freqs); err != nil {
			return fmt.Errorf("flush %d frequency rows: %w", len(bw.freqs), err)
		}
	}

	bw.written += len(bw.pending)
	bw.pending = bw.pending[:0]
	bw.byHash = make(map[uint64][]int)
	bw.freqs = nil
	bw.freqSet = make(map[frequencyKey]struct{})
	if bw.OnFlush != nil {
		bw.OnFlush(bw.submitted)
	}
	return nil
}

// Written returns the number of distinct records flushed so far.
func (bw *BatchWriter) Written() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return bw.written
}

// Close flushes pending records and stops accepting submissions.
func (bw *BatchWriter) Close(ctx context.Context) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return ErrBatchWriterClosed
	}
	bw.closed = true
	return bw.flushLocked(ctx)
}

var ErrBatchWriterClosed = &BatchWriterError{"batch writer closed"}

type BatchWriterError struct{ msg string }

func (e *BatchWriterError) Error() string { return e.msg }
