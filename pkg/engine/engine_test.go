package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/jpdict/pkg/archive"
	"github.com/japaniel/jpdict/pkg/deinflect"
	"github.com/japaniel/jpdict/pkg/dictionary"
	"github.com/japaniel/jpdict/pkg/ingest"
	"github.com/japaniel/jpdict/pkg/store"
)

var (
	analyzerOnce sync.Once
	analyzer     *deinflect.Analyzer
	analyzerErr  error
)

func newTestEngine(t *testing.T, importers ...archive.Importer) *Engine {
	t.Helper()
	analyzerOnce.Do(func() { analyzer, analyzerErr = deinflect.NewAnalyzer() })
	require.NoError(t, analyzerErr)

	ctx := context.Background()
	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "test.db"), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	e, err := New(ctx, s, Options{Analyzer: analyzer, Importers: importers})
	require.NoError(t, err)
	return e
}

// yomitanZip builds a minimal Yomitan archive. Each term is
// [expression, reading, gloss].
func yomitanZip(t *testing.T, title string, terms ...[3]string) []byte {
	t.Helper()
	var bank bytes.Buffer
	bank.WriteString("[")
	for i, term := range terms {
		if i > 0 {
			bank.WriteString(",")
		}
		fmt.Fprintf(&bank, `[%q, %q, "", "", 0, [%q], %d, ""]`, term[0], term[1], term[2], i)
	}
	bank.WriteString("]")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range map[string]string{
		"index.json":       fmt.Sprintf(`{"title": %q, "revision": "1", "format": 3}`, title),
		"term_bank_1.json": bank.String(),
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func importZip(t *testing.T, e *Engine, data []byte) dictionary.DictionaryID {
	t.Helper()
	im, err := e.ImportDictionary(context.Background(), data)
	require.NoError(t, err)
	id, err := im.Wait()
	require.NoError(t, err)
	return id
}

func gloss(t *testing.T, entry dictionary.RecordEntry) string {
	t.Helper()
	g, ok := entry.Record.(dictionary.YomitanGlossary)
	require.True(t, ok, "record is %T", entry.Record)
	require.NotEmpty(t, g.Content)
	return g.Content[0].Text
}

func TestNewSeedsSnapshot(t *testing.T) {
	e := newTestEngine(t)
	snap := e.Snapshot()
	require.NotNil(t, snap)
	assert.Empty(t, snap.Dictionaries)
	require.Len(t, snap.Profiles, 1)

	p, err := e.CurrentProfile()
	require.NoError(t, err)
	assert.Equal(t, snap.CurrentProfile, p.ID)
}

func TestImportDictionaryRefreshesSnapshot(t *testing.T) {
	e := newTestEngine(t)
	before := e.Snapshot()

	id := importZip(t, e, yomitanZip(t, "Test", [3]string{"猫", "ねこ", "cat"}))

	after := e.Snapshot()
	assert.Empty(t, before.Dictionaries, "old snapshot must not change")
	d, ok := after.Dictionary(id)
	require.True(t, ok)
	assert.Equal(t, "Test", d.Meta.Name)

	p, err := e.CurrentProfile()
	require.NoError(t, err)
	assert.True(t, p.IsEnabled(id))
}

func TestImportEvents(t *testing.T) {
	e := newTestEngine(t)
	im, err := e.ImportDictionary(context.Background(), yomitanZip(t, "Events", [3]string{"猫", "ねこ", "cat"}))
	require.NoError(t, err)
	assert.Equal(t, dictionary.KindYomitan, im.Kind)
	assert.Equal(t, "Events", im.Meta.Name)

	var events []Event
	for ev := range im.Events() {
		events = append(events, ev)
	}
	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, EventDeterminedKind, events[0].Type)
	assert.Equal(t, dictionary.KindYomitan, events[0].Kind)
	assert.Equal(t, EventParsedMeta, events[1].Type)
	assert.Equal(t, "Events", events[1].Meta.Name)

	last := events[len(events)-1]
	require.Equal(t, EventDone, last.Type, "error: %v", last.Err)
	id, err := im.Wait()
	require.NoError(t, err)
	assert.Equal(t, id, last.Dictionary)

	prev := 0.0
	for _, ev := range events[2 : len(events)-1] {
		require.Equal(t, EventProgress, ev.Type)
		assert.GreaterOrEqual(t, ev.Progress, prev)
		prev = ev.Progress
	}
}

func TestImportAlreadyExists(t *testing.T) {
	e := newTestEngine(t)
	importZip(t, e, yomitanZip(t, "Twice", [3]string{"猫", "ねこ", "cat"}))

	_, err := e.ImportDictionary(context.Background(), yomitanZip(t, "Twice", [3]string{"犬", "いぬ", "dog"}))
	require.ErrorIs(t, err, dictionary.ErrAlreadyExists)
	var ae *store.AlreadyExistsError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "Twice", ae.Name)
}

func TestImportUnknownFormat(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ImportDictionary(context.Background(), []byte("definitely not a dictionary"))
	require.ErrorIs(t, err, dictionary.ErrNoFormatMatched)

	_, err = e.ImportDictionaryAs(context.Background(), dictionary.KindYomitan, []byte("nope"))
	require.Error(t, err)
}

// blockingImporter accepts anything and imports until its context ends.
type blockingImporter struct{}

func (blockingImporter) Kind() dictionary.Kind  { return "blocking" }
func (blockingImporter) Validate([]byte) error { return nil }
func (blockingImporter) ReadMeta([]byte) (dictionary.Meta, error) {
	return dictionary.NewMeta("blocking", "Blocking"), nil
}
func (blockingImporter) Import(ctx context.Context, _ []byte, _ dictionary.Meta, _ archive.Target, progress ingest.ProgressSink) (dictionary.DictionaryID, error) {
	progress.Report(0.25)
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestImportCancel(t *testing.T) {
	e := newTestEngine(t, blockingImporter{})
	im, err := e.ImportDictionary(context.Background(), []byte("anything"))
	require.NoError(t, err)

	select {
	case <-im.Done():
		t.Fatal("import finished before it was cancelled")
	default:
	}
	im.Cancel()
	_, err = im.Wait()
	require.ErrorIs(t, err, context.Canceled)

	// Progress is closed once the import ends.
	for range im.Progress() {
	}
	assert.Empty(t, e.Dictionaries())
}

func TestImportFailedEvent(t *testing.T) {
	e := newTestEngine(t, blockingImporter{})
	ctx, cancel := context.WithCancel(context.Background())
	im, err := e.ImportDictionary(ctx, []byte("anything"))
	require.NoError(t, err)
	cancel()

	var last Event
	for ev := range im.Events() {
		last = ev
	}
	assert.Equal(t, EventFailed, last.Type)
	assert.ErrorIs(t, last.Err, context.Canceled)
}

func TestLookupSpans(t *testing.T) {
	e := newTestEngine(t)
	importZip(t, e, yomitanZip(t, "Verbs", [3]string{"食べる", "たべる", "to eat"}))

	sentence := "私は食べなかった。"
	cursor := len("私は")
	entries, err := e.Lookup(context.Background(), 1, sentence, cursor)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, "to eat", gloss(t, got))
	assert.Equal(t, dictionary.Span{Start: cursor, End: len("私は食べなかった")}, got.SpanBytes)
	assert.Equal(t, dictionary.Span{Start: 2, End: 8}, got.SpanChars)
	assert.Equal(t, "食べなかった", sentence[got.SpanBytes.Start:got.SpanBytes.End])
}

func TestLookupFirstCandidateWins(t *testing.T) {
	e := newTestEngine(t)
	// Identical glossaries collapse into one record filed under both
	// terms, so the compound and its first token both find it.
	importZip(t, e, yomitanZip(t, "Places",
		[3]string{"東京都", "とうきょうと", "capital"},
		[3]string{"東京", "とうきょう", "capital"},
		[3]string{"東京", "とうきょう", "Tokyo"},
	))

	entries, err := e.Lookup(context.Background(), 1, "東京都に住む", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "capital", gloss(t, entries[0]))
	assert.Equal(t, dictionary.Span{Start: 0, End: len("東京都")}, entries[0].SpanBytes)
	assert.Equal(t, dictionary.Span{Start: 0, End: 3}, entries[0].SpanChars)

	assert.Equal(t, "Tokyo", gloss(t, entries[1]))
	assert.Equal(t, dictionary.Span{Start: 0, End: len("東京")}, entries[1].SpanBytes)
	assert.Equal(t, dictionary.Span{Start: 0, End: 2}, entries[1].SpanChars)
}

func TestLookupDisabledDictionary(t *testing.T) {
	e := newTestEngine(t)
	id := importZip(t, e, yomitanZip(t, "Cats", [3]string{"猫", "ねこ", "cat"}))
	ctx := context.Background()

	entries, err := e.Lookup(ctx, 1, "猫がいる", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, e.DisableDictionary(ctx, 1, id))
	p, err := e.CurrentProfile()
	require.NoError(t, err)
	assert.False(t, p.IsEnabled(id))

	entries, err = e.Lookup(ctx, 1, "猫がいる", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLookupNothing(t *testing.T) {
	e := newTestEngine(t)
	entries, err := e.Lookup(context.Background(), 1, "猫", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLookupLemmaSpans(t *testing.T) {
	e := newTestEngine(t)
	importZip(t, e, yomitanZip(t, "Cats", [3]string{"猫", "ねこ", "cat"}))

	entries, err := e.LookupLemma(context.Background(), 1, "ねこ")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, dictionary.Span{Start: 0, End: len("ねこ")}, entries[0].SpanBytes)
	assert.Equal(t, dictionary.Span{Start: 0, End: 2}, entries[0].SpanChars)
}

func TestManagementRefreshes(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	a := importZip(t, e, yomitanZip(t, "A", [3]string{"猫", "ねこ", "cat"}))
	b := importZip(t, e, yomitanZip(t, "B", [3]string{"犬", "いぬ", "dog"}))

	require.NoError(t, e.SwapDictionaryPositions(ctx, a, b))
	dicts := e.Dictionaries()
	require.Len(t, dicts, 2)
	assert.Equal(t, b, dicts[0].ID)

	require.NoError(t, e.SetSortingDictionary(ctx, 1, &a))
	p, err := e.CurrentProfile()
	require.NoError(t, err)
	require.NotNil(t, p.SortingDictionary)
	assert.Equal(t, a, *p.SortingDictionary)

	pid, err := e.CopyProfile(ctx, 1, "Copy")
	require.NoError(t, err)
	require.NoError(t, e.SetCurrentProfile(ctx, pid))
	p, err = e.CurrentProfile()
	require.NoError(t, err)
	assert.Equal(t, "Copy", p.Name)
	assert.True(t, p.IsEnabled(a))

	require.NoError(t, e.RemoveDictionary(ctx, a))
	dicts = e.Dictionaries()
	require.Len(t, dicts, 1)
	assert.Equal(t, b, dicts[0].ID)
}

func TestCharSpan(t *testing.T) {
	s := "aé猫"
	tests := []struct {
		span    dictionary.Span
		want    dictionary.Span
		wantErr bool
	}{
		{dictionary.Span{Start: 0, End: 1}, dictionary.Span{Start: 0, End: 1}, false},
		{dictionary.Span{Start: 1, End: 3}, dictionary.Span{Start: 1, End: 2}, false},
		{dictionary.Span{Start: 3, End: 6}, dictionary.Span{Start: 2, End: 3}, false},
		{dictionary.Span{Start: 6, End: 6}, dictionary.Span{Start: 3, End: 3}, false},
		{dictionary.Span{Start: 2, End: 3}, dictionary.Span{}, true},
		{dictionary.Span{Start: 0, End: 4}, dictionary.Span{}, true},
		{dictionary.Span{Start: 0, End: 7}, dictionary.Span{}, true},
	}
	for _, tt := range tests {
		got, err := charSpan(s, tt.span)
		if tt.wantErr {
			assert.ErrorIs(t, err, dictionary.ErrSpanBoundary, tt.span.String())
			continue
		}
		require.NoError(t, err, tt.span.String())
		assert.Equal(t, tt.want, got, tt.span.String())
	}
}
