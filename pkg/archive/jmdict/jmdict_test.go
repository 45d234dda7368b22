package jmdict

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/jpdict/pkg/archive"
	"github.com/japaniel/jpdict/pkg/dictionary"
	"github.com/japaniel/jpdict/pkg/store"
)

const testDoc = `{
	"version": "3.5.0",
	"languages": ["eng"],
	"tags": {"v1": "Ichidan verb", "n": "noun"},
	"words": [
		{"id": "1358280", "kanji": [{"common": true, "text": "食べる", "tags": []}, {"common": false, "text": "喰べる", "tags": ["iK"]}],
		 "kana": [{"common": true, "text": "たべる", "tags": [], "appliesToKanji": ["*"]}],
		 "sense": [{"partOfSpeech": ["v1", "vt"], "misc": [], "info": [], "gloss": [{"lang": "eng", "text": "to eat"}]},
		           {"partOfSpeech": ["v1"], "misc": [], "info": ["fig."], "gloss": [{"lang": "eng", "text": "to live on"}]}]},
		{"id": "1000060", "kanji": [{"common": false, "text": "〃", "tags": []}, {"common": false, "text": "仝", "tags": []}],
		 "kana": [{"common": false, "text": "おなじ", "appliesToKanji": ["仝"]}, {"common": false, "text": "どうじょう", "appliesToKanji": ["〃"]}],
		 "sense": [{"partOfSpeech": ["n"], "gloss": [{"lang": "eng", "text": "ditto mark"}]}]},
		{"id": "1000220", "kanji": [], "kana": [{"common": true, "text": "する", "appliesToKanji": ["*"]}],
		 "sense": [{"partOfSpeech": ["vs-i"], "gloss": [{"lang": "eng", "text": "to do"}]}]},
		{"id": "9999999", "kanji": [], "kana": [{"text": "からっぽ"}], "sense": [{"gloss": []}]}
	]
}`

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func tgz(t *testing.T, name string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(data)), Typeflag: tar.TypeReg}))
	_, err := tw.Write(data)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	return gzipBytes(t, buf.Bytes())
}

func zipped(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestValidateContainers(t *testing.T) {
	im := New(archive.Options{})
	doc := []byte(testDoc)
	tests := map[string][]byte{
		"raw":     doc,
		"gzip":    gzipBytes(t, doc),
		"tgz":     tgz(t, "jmdict-eng-3.5.0.json", doc),
		"zip":     zipped(t, map[string]string{"jmdict-eng-3.5.0.json": testDoc}),
		"array":   []byte(`[{"id": "1", "kana": [{"text": "ね"}], "sense": []}]`),
		"empty":   []byte(`{"words": []}`),
		"leading": []byte(`{"dictDate": "2024-01-01", "tags": {"x": "y"}, "words": [{"id": "1", "kanji": [{"text": "猫"}]}]}`),
	}
	for name, data := range tests {
		assert.NoError(t, im.Validate(data), name)
	}
}

func TestValidateRejects(t *testing.T) {
	im := New(archive.Options{})
	tests := map[string][]byte{
		"yomitan zip": zipped(t, map[string]string{"index.json": `{"title": "x"}`, "term_bank_1.json": `[]`}),
		"no words":    []byte(`{"version": "1"}`),
		"term bank":   []byte(`[["猫", "ねこ", "", "", 0, ["cat"]]]`),
		"not json":    []byte("hello"),
		"word shape":  []byte(`{"words": [{"id": "1"}]}`),
		"tar no json": tgz(t, "README", []byte("x")),
	}
	for name, data := range tests {
		assert.Error(t, im.Validate(data), name)
	}
}

func TestReadMeta(t *testing.T) {
	meta, err := New(archive.Options{}).ReadMeta(tgz(t, "jmdict.json", []byte(testDoc)))
	require.NoError(t, err)
	assert.Equal(t, dictionary.KindJmdict, meta.Kind)
	assert.Equal(t, "JMdict (3.5.0)", meta.Name)
	assert.Equal(t, "3.5.0", meta.Version)

	meta, err = New(archive.Options{}).ReadMeta([]byte(`[]`))
	require.NoError(t, err)
	assert.Equal(t, "JMdict", meta.Name)
}

func TestConvert(t *testing.T) {
	doc, err := open([]byte(testDoc))
	require.NoError(t, err)

	e, err := doc.next()
	require.NoError(t, err)
	rec, terms := convert(e)
	assert.Equal(t, "1358280", rec.EntryID)
	assert.True(t, rec.Common)
	require.Len(t, rec.Senses, 2)
	assert.Equal(t, []string{"to eat"}, rec.Senses[0].Glosses)
	assert.Equal(t, []string{"v1", "vt"}, rec.Senses[0].PartOfSpeech)
	assert.Equal(t, []string{"fig."}, rec.Senses[1].Info)
	assert.Equal(t, []dictionary.Term{
		dictionary.MustTerm("食べる", "たべる"),
		dictionary.MustTerm("喰べる", "たべる"),
	}, terms)

	e, err = doc.next()
	require.NoError(t, err)
	rec, terms = convert(e)
	assert.False(t, rec.Common)
	assert.Equal(t, []dictionary.Term{
		dictionary.MustTerm("〃", "どうじょう"),
		dictionary.MustTerm("仝", "おなじ"),
	}, terms)

	e, err = doc.next()
	require.NoError(t, err)
	_, terms = convert(e)
	assert.Equal(t, []dictionary.Term{dictionary.MustTerm("する", "する")}, terms)

	e, err = doc.next()
	require.NoError(t, err)
	rec, _ = convert(e)
	assert.Empty(t, rec.Senses)

	_, err = doc.next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestImport(t *testing.T) {
	s := newTestStore(t)
	im := New(archive.Options{BatchSize: 1})
	data := gzipBytes(t, []byte(testDoc))
	meta, err := im.ReadMeta(data)
	require.NoError(t, err)
	id, err := im.Import(context.Background(), data, meta, archive.StoreTarget(s), nil)
	require.NoError(t, err)

	d, err := s.Dictionary(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "JMdict (3.5.0)", d.Meta.Name)

	entries, err := s.LookupLemma(context.Background(), 1, "たべる")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	g, ok := entries[0].Record.(dictionary.JmdictGlossary)
	require.True(t, ok)
	assert.Equal(t, "1358280", g.EntryID)

	entries, err = s.LookupLemma(context.Background(), 1, "する")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, dictionary.MustTerm("する", "する"), entries[0].Term)

	entries, err = s.LookupLemma(context.Background(), 1, "からっぽ")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestImportMalformedWord(t *testing.T) {
	s := newTestStore(t)
	data := []byte(`{"version": "1", "words": [{"id": "1", "kana": [{"text": "ね"}], "sense": [{"gloss": [{"text": "x"}]}]}, {"id": 2}]}`)
	im := New(archive.Options{})
	meta, err := im.ReadMeta(data)
	require.NoError(t, err)
	_, err = im.Import(context.Background(), data, meta, archive.StoreTarget(s), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "word 1")

	exists, err := s.DictionaryExists(context.Background(), meta.Name)
	require.NoError(t, err)
	assert.False(t, exists)
}
