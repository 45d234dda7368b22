// Package yomichanaudio imports local audio archives in the layout of the
// Yomichan local audio server: a tar tree with one directory per source.
package yomichanaudio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/japaniel/jpdict/pkg/archive"
	"github.com/japaniel/jpdict/pkg/dictionary"
	"github.com/japaniel/jpdict/pkg/ingest"
)

// Importer reads audio tar archives, optionally xz or gzip compressed.
type Importer struct {
	opts archive.Options
}

// New returns an Importer.
func New(opts archive.Options) *Importer {
	return &Importer{opts: opts.WithDefaults()}
}

func (*Importer) Kind() dictionary.Kind { return dictionary.KindYomichanAudio }

// Validate succeeds as soon as one member sits under a known source directory.
func (*Importer) Validate(data []byte) error {
	found := false
	err := archive.WalkTar(data, func(name string, _ io.Reader) error {
		if _, ok := classify(name); ok {
			found = true
			return archive.ErrStopWalk
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !found {
		return errors.New("no audio source directories in archive")
	}
	return nil
}

// ReadMeta names the dictionary after the sources present in the archive.
func (*Importer) ReadMeta(data []byte) (dictionary.Meta, error) {
	seen := make(map[source]struct{})
	err := archive.WalkTar(data, func(name string, _ io.Reader) error {
		if m, ok := classify(name); ok {
			seen[m.source] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return dictionary.Meta{}, err
	}
	if len(seen) == 0 {
		return dictionary.Meta{}, errors.New("no audio source directories in archive")
	}
	names := make([]string, 0, len(seen))
	for s := range seen {
		names = append(names, string(s))
	}
	sort.Strings(names)
	meta := dictionary.NewMeta(dictionary.KindYomichanAudio,
		fmt.Sprintf("Yomichan Audio (%s)", strings.Join(names, ", ")))
	meta.Description = "Local audio pronunciations"
	return meta, nil
}

// scan is the result of the first pass over an archive.
type scan struct {
	indexes map[source]mediaIndex
	total   int
}

// resolve returns the terms and metadata for a media member, or false when
// nothing points at it.
func (s *scan) resolve(m member) (*fileInfo, bool) {
	if m.source == sourceForvo {
		// forvo_files/<username>/<headword>.<ext>
		user, file, ok := strings.Cut(m.rel, "/")
		if !ok || user == "" || strings.Contains(file, "/") {
			return nil, false
		}
		hw := strings.TrimSuffix(file, path.Ext(file))
		t, ok := dictionary.HeadwordTerm(hw)
		if !ok {
			return nil, false
		}
		return &fileInfo{terms: []dictionary.Term{t}, username: user}, true
	}
	fi, ok := s.indexes[m.source][path.Base(m.rel)]
	if !ok || len(fi.terms) == 0 {
		return nil, false
	}
	return fi, true
}

func (im *Importer) firstPass(data []byte, log *slog.Logger) (*scan, error) {
	s := &scan{indexes: make(map[source]mediaIndex)}
	var media []member
	err := archive.WalkTar(data, func(name string, r io.Reader) error {
		if src, ok := indexSource(name); ok {
			raw, err := io.ReadAll(r)
			if err != nil {
				return errors.Wrapf(err, "read %s", name)
			}
			var idx mediaIndex
			if src == sourceNhk16 {
				idx, err = parseNhk16(name, raw)
			} else {
				idx, err = parseHeadwordIndex(name, raw)
			}
			if err != nil {
				return err
			}
			s.indexes[src] = idx
			return nil
		}
		if m, ok := classify(name); ok {
			if _, ok := formatOf(m.rel); ok {
				media = append(media, m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, m := range media {
		if _, ok := s.resolve(m); ok {
			s.total++
		}
	}
	log.Debug("audio archive indexed",
		slog.Int("indexes", len(s.indexes)),
		slog.Int("media", len(media)),
		slog.Int("resolvable", s.total))
	return s, nil
}

// Import makes two passes over the archive. The first reads the index files
// and counts media; the second reads each media file and writes it under the
// terms its index names. Media with an unknown extension or without an index
// entry is skipped with a warning.
func (im *Importer) Import(ctx context.Context, data []byte, meta dictionary.Meta, target archive.Target, progress ingest.ProgressSink) (dictionary.DictionaryID, error) {
	log := im.opts.Logger.With(slog.String("dictionary", meta.Name))

	s, err := im.firstPass(data, log)
	if err != nil {
		return 0, err
	}

	return archive.Write(ctx, target, meta, im.opts, s.total, progress, func(ctx context.Context, emit archive.Emit) error {
		skipped := 0
		err := archive.WalkTar(data, func(name string, r io.Reader) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, ok := indexSource(name); ok {
				return nil
			}
			m, ok := classify(name)
			if !ok {
				return nil
			}
			format, ok := formatOf(m.rel)
			if !ok {
				log.Warn("skipping audio file with unknown format", slog.String("path", name))
				skipped++
				return nil
			}
			fi, ok := s.resolve(m)
			if !ok {
				log.Warn("skipping audio file without index entry", slog.String("path", name))
				skipped++
				return nil
			}
			raw, err := io.ReadAll(r)
			if err != nil {
				return errors.Wrapf(err, "read %s", name)
			}
			return emit(record(m.source, fi, dictionary.Audio{Format: format, Data: raw}), fi.terms...)
		})
		if skipped > 0 {
			log.Info("audio files skipped", slog.Int("count", skipped))
		}
		return err
	})
}

func record(src source, fi *fileInfo, audio dictionary.Audio) dictionary.Record {
	switch src {
	case sourceForvo:
		return dictionary.YomichanAudioForvo{Username: fi.username, Audio: audio}
	case sourceNhk16:
		return dictionary.YomichanAudioNhk16{Audio: audio, PitchPositions: fi.pitches}
	case sourceShinmeikai8:
		return dictionary.YomichanAudioShinmeikai8{Audio: audio, PitchNumber: fi.pitchNumber, PitchPattern: fi.pitchPattern}
	default:
		return dictionary.YomichanAudioJpod{Audio: audio}
	}
}
