package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/japaniel/jpdict/pkg/dictionary"
	"github.com/japaniel/jpdict/pkg/store"
)

func BenchmarkBatchWriterImport(b *testing.B) {
	ctx := context.Background()
	s, err := store.Open(ctx, filepath.Join(b.TempDir(), "bench.db"), store.Options{})
	if err != nil {
		b.Fatalf("open store: %v", err)
	}
	defer s.Close()

	records := make([]dictionary.YomitanGlossary, 1000)
	for i := range records {
		records[i] = dictionary.YomitanGlossary{Content: []dictionary.GlossaryContent{{
			Type: dictionary.ContentText,
			Text: fmt.Sprintf("definition %d", i),
		}}}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tx, err := s.BeginImport(ctx, dictionary.NewMeta(dictionary.KindYomitan, fmt.Sprintf("bench_%d", i)))
		if err != nil {
			b.Fatalf("begin import: %v", err)
		}
		bw := NewBatchWriter(tx, 256)
		for j, rec := range records {
			term := dictionary.MustTerm(fmt.Sprintf("語%d", j), fmt.Sprintf("ご%d", j))
			if err := bw.Submit(ctx, rec, term); err != nil {
				b.Fatalf("submit: %v", err)
			}
		}
		if err := bw.Close(ctx); err != nil {
			b.Fatalf("close: %v", err)
		}
		if _, err := tx.Commit(ctx); err != nil {
			b.Fatalf("commit: %v", err)
		}
	}
}
