package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/japaniel/jpdict/pkg/dictionary"
	"github.com/japaniel/jpdict/pkg/store"
)

type memSink struct {
	batches [][]store.Entry
	freqs   []store.FrequencyRow
	err     error
}

func (m *memSink) InsertRecords(ctx context.Context, entries []store.Entry) error {
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, append([]store.Entry(nil), entries...))
	return nil
}

func (m *memSink) InsertFrequencies(ctx context.Context, rows []store.FrequencyRow) error {
	if m.err != nil {
		return m.err
	}
	m.freqs = append(m.freqs, rows...)
	return nil
}

func (m *memSink) entries() []store.Entry {
	var out []store.Entry
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

func audio(data string) dictionary.Record {
	return dictionary.YomichanAudioJpod{Audio: dictionary.Audio{Format: dictionary.AudioMP3, Data: []byte(data)}}
}

func TestBatchWriterDedupesIdenticalPayloads(t *testing.T) {
	sink := &memSink{}
	bw := NewBatchWriter(sink, 10)
	ctx := context.Background()

	inu := dictionary.MustTerm("犬", "いぬ")
	kanaOnly := dictionary.MustTerm("", "いぬ")

	if err := bw.Submit(ctx, audio("a"), inu); err != nil {
		t.Fatalf("submit: %v", err)
	}
	// Same file reachable through a second index entry.
	if err := bw.Submit(ctx, audio("a"), kanaOnly); err != nil {
		t.Fatalf("submit: %v", err)
	}
	// Exact duplicate of the first pair.
	if err := bw.Submit(ctx, audio("a"), inu); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := bw.Submit(ctx, audio("b"), inu); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := bw.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := sink.entries()
	if len(got) != 2 {
		t.Fatalf("expected 2 distinct records, got %d", len(got))
	}
	if len(got[0].Terms) != 2 || got[0].Terms[0] != inu || got[0].Terms[1] != kanaOnly {
		t.Fatalf("unexpected terms for shared record: %v", got[0].Terms)
	}
	if len(got[1].Terms) != 1 {
		t.Fatalf("unexpected terms for second record: %v", got[1].Terms)
	}
	if bw.Written() != 2 {
		t.Fatalf("expected 2 written, got %d", bw.Written())
	}
}

func TestBatchWriterKindIsPartOfIdentity(t *testing.T) {
	sink := &memSink{}
	bw := NewBatchWriter(sink, 10)
	ctx := context.Background()
	term := dictionary.MustTerm("犬", "")

	// Both payloads encode to the same JSON, only the kind differs.
	a := dictionary.YomichanAudioJpod{Audio: dictionary.Audio{Format: dictionary.AudioOpus, Data: []byte("x")}}
	b := dictionary.YomichanAudioNhk16{Audio: dictionary.Audio{Format: dictionary.AudioOpus, Data: []byte("x")}}
	if err := bw.Submit(ctx, a, term); err != nil {
		t.Fatal(err)
	}
	if err := bw.Submit(ctx, b, term); err != nil {
		t.Fatal(err)
	}
	if err := bw.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(sink.entries()); n != 2 {
		t.Fatalf("expected 2 records, got %d", n)
	}
}

func TestBatchWriterFlushesAtCapacity(t *testing.T) {
	sink := &memSink{}
	bw := NewBatchWriter(sink, 2)
	ctx := context.Background()
	var flushed []int
	bw.OnFlush = func(n int) { flushed = append(flushed, n) }

	for i, data := range []string{"a", "b", "c", "d", "e"} {
		term := dictionary.MustTerm(data, "")
		if err := bw.Submit(ctx, audio(data), term); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	if len(sink.batches) != 2 {
		t.Fatalf("expected 2 batches before close, got %d", len(sink.batches))
	}
	if err := bw.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(sink.batches) != 3 || len(sink.batches[2]) != 1 {
		t.Fatalf("unexpected batches: %d", len(sink.batches))
	}
	if want := []int{2, 4, 5}; len(flushed) != 3 || flushed[0] != want[0] || flushed[1] != want[1] || flushed[2] != want[2] {
		t.Fatalf("unexpected flush counts %v", flushed)
	}
	if err := bw.Submit(ctx, audio("z"), dictionary.MustTerm("z", "")); err != ErrBatchWriterClosed {
		t.Fatalf("expected ErrBatchWriterClosed, got %v", err)
	}
}

func TestBatchWriterFrequencyRows(t *testing.T) {
	sink := &memSink{}
	bw := NewBatchWriter(sink, 10)
	ctx := context.Background()

	v := dictionary.Rank(120)
	term := dictionary.MustTerm("犬", "いぬ")
	if err := bw.Submit(ctx, dictionary.YomitanFrequency{Value: &v, Display: "120"}, term); err != nil {
		t.Fatal(err)
	}
	if err := bw.Submit(ctx, dictionary.YomitanFrequency{Value: &v, Display: "120"}, term); err != nil {
		t.Fatal(err)
	}
	if err := bw.Submit(ctx, dictionary.YomitanFrequency{Display: "★★"}, term); err != nil {
		t.Fatal(err)
	}
	if err := bw.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if len(sink.entries()) != 2 {
		t.Fatalf("expected 2 frequency records, got %d", len(sink.entries()))
	}
	if len(sink.freqs) != 1 || sink.freqs[0].Value != v || sink.freqs[0].Term != term {
		t.Fatalf("unexpected sorting rows %+v", sink.freqs)
	}
}

func TestBatchWriterSinkError(t *testing.T) {
	boom := errors.New("disk full")
	sink := &memSink{err: boom}
	bw := NewBatchWriter(sink, 1)
	err := bw.Submit(context.Background(), audio("a"), dictionary.MustTerm("a", ""))
	if !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
}
