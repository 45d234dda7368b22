package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/japaniel/jpdict/pkg/dictionary"
)

// frequencyRank ranks, per matched term, the frequency rows of the
// dictionary given by %s. A row matches when it shares at least one part with
// the term and does not contradict the other one. Rows naming both parts win
// over partial ones, then the most common value wins; rn = 1 is the best row.
const frequencyRank = `
	SELECT e.source, e.headword, e.reading, e.record, f.mode, f.value,
		ROW_NUMBER() OVER (
			PARTITION BY e.source, e.headword, e.reading, e.record
			ORDER BY (f.headword IS e.headword) + (f.reading IS e.reading) DESC,
			         CASE WHEN f.mode = 1 THEN -f.value ELSE f.value END,
			         f.rowid
		) AS rn
	FROM enabled e
	JOIN frequency f
	  ON f.source = %s
	 AND (f.headword = e.headword OR f.reading = e.reading)
	 AND (f.headword IS NULL OR e.headword IS NULL OR f.headword = e.headword)
	 AND (f.reading IS NULL OR e.reading IS NULL OR f.reading = e.reading)`

// lookupQuery finds every record indexed under a term whose headword or
// reading equals :lemma, restricted to the dictionaries enabled for :profile.
//
// Rows are ordered by match tier:
//
//	0  headword and reading both equal the lemma
//	1  the term has a single part, which equals the lemma
//	2  one part equals the lemma and the other differs
//
// then by dictionary position, then by the profile sorting dictionary's
// frequency, then by the source dictionary's own frequency. A missing
// frequency sorts last. Mode 1 is occurrence, whose values are negated so
// that ascending order always means "more common first".
var lookupQuery = fmt.Sprintf(`
WITH matches AS (
	SELECT tr.source, tr.headword, tr.reading, tr.record
	FROM term_record tr
	WHERE tr.headword = :lemma
	UNION
	SELECT tr.source, tr.headword, tr.reading, tr.record
	FROM term_record tr
	WHERE tr.reading = :lemma
),
enabled AS (
	SELECT m.source, d.name, d.position, m.headword, m.reading, m.record,
		CASE
			WHEN m.headword = :lemma AND m.reading = :lemma THEN 0
			WHEN m.headword IS NULL OR m.reading IS NULL THEN 1
			ELSE 2
		END AS tier
	FROM matches m
	JOIN dictionary d ON d.id = m.source
	JOIN profile_enabled_dictionary ped ON ped.dictionary = m.source AND ped.profile = :profile
),
profile_freq AS (%s),
source_freq AS (%s)
SELECT e.source, e.name, e.headword, e.reading,
	r.id AS record_id, r.kind, r.data,
	pf.mode AS profile_mode, pf.value AS profile_value,
	sf.mode AS source_mode, sf.value AS source_value
FROM enabled e
JOIN record r ON r.id = e.record
LEFT JOIN profile_freq pf
	ON pf.rn = 1 AND pf.source = e.source AND pf.record = e.record
	AND pf.headword IS e.headword AND pf.reading IS e.reading
LEFT JOIN source_freq sf
	ON sf.rn = 1 AND sf.source = e.source AND sf.record = e.record
	AND sf.headword IS e.headword AND sf.reading IS e.reading
ORDER BY e.tier,
	e.position,
	pf.mode IS NULL,
	CASE WHEN pf.mode = 1 THEN -pf.value ELSE pf.value END,
	sf.mode IS NULL,
	CASE WHEN sf.mode = 1 THEN -sf.value ELSE sf.value END,
	r.id,
	e.headword IS NULL, e.headword, e.reading`,
	fmt.Sprintf(frequencyRank, "(SELECT p.sorting_dictionary FROM profile p WHERE p.id = :profile)"),
	fmt.Sprintf(frequencyRank, "e.source"),
)

type lookupRow struct {
	Source       int64          `db:"source"`
	Name         string         `db:"name"`
	Headword     sql.NullString `db:"headword"`
	Reading      sql.NullString `db:"reading"`
	RecordID     int64          `db:"record_id"`
	Kind         int            `db:"kind"`
	Data         []byte         `db:"data"`
	ProfileMode  sql.NullInt64  `db:"profile_mode"`
	ProfileValue sql.NullInt64  `db:"profile_value"`
	SourceMode   sql.NullInt64  `db:"source_mode"`
	SourceValue  sql.NullInt64  `db:"source_value"`
}

func frequencyOf(mode, value sql.NullInt64) *dictionary.FrequencyValue {
	if !mode.Valid || !value.Valid {
		return nil
	}
	return &dictionary.FrequencyValue{Mode: dictionary.FrequencyMode(mode.Int64), Value: value.Int64}
}

// LookupLemma returns one entry per stored record indexed under a term whose
// headword or reading equals lemma, in ranked order. Only dictionaries enabled
// for the profile take part; an unknown profile yields no entries.
//
// A record whose payload cannot be decoded is logged and left out. With
// Options.StrictDecode the decode errors are also returned, joined, next to
// the entries that did decode. Spans on the returned entries are zero.
func (s *Store) LookupLemma(ctx context.Context, profile dictionary.ProfileID, lemma string) ([]dictionary.RecordEntry, error) {
	if lemma == "" {
		return nil, nil
	}
	query, args, err := sqlx.Named(lookupQuery, map[string]any{
		"lemma":   lemma,
		"profile": int64(profile),
	})
	if err != nil {
		return nil, fmt.Errorf("bind lookup query: %w", err)
	}

	var rows []lookupRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("lookup %q: %w", lemma, err)
	}

	seen := make(map[int64]struct{}, len(rows))
	entries := make([]dictionary.RecordEntry, 0, len(rows))
	var decodeErrs []error
	for _, row := range rows {
		if _, dup := seen[row.RecordID]; dup {
			continue
		}
		seen[row.RecordID] = struct{}{}

		entry, err := row.toEntry()
		if err != nil {
			s.log.Warn("skipping undecodable record",
				slog.Int64("record", row.RecordID),
				slog.String("error", err.Error()))
			decodeErrs = append(decodeErrs, err)
			continue
		}
		entries = append(entries, entry)
	}

	if s.strict && len(decodeErrs) > 0 {
		return entries, errors.Join(decodeErrs...)
	}
	return entries, nil
}

func (row lookupRow) toEntry() (dictionary.RecordEntry, error) {
	term, ok := dictionary.NewTerm(row.Headword.String, row.Reading.String)
	kind := dictionary.RecordKind(row.Kind)
	if !ok {
		return dictionary.RecordEntry{}, &dictionary.DecodeError{
			Source: dictionary.DictionaryID(row.Source),
			Name:   row.Name,
			Kind:   kind,
			Err:    errors.New("stored term has neither headword nor reading"),
		}
	}
	rec, err := dictionary.DecodeRecord(kind, row.Data)
	if err != nil {
		return dictionary.RecordEntry{}, &dictionary.DecodeError{
			Source: dictionary.DictionaryID(row.Source),
			Name:   row.Name,
			Term:   term,
			Kind:   kind,
			Err:    err,
		}
	}
	return dictionary.RecordEntry{
		Source:                  dictionary.DictionaryID(row.Source),
		RecordID:                dictionary.RecordID(row.RecordID),
		Term:                    term,
		Record:                  rec,
		ProfileSortingFrequency: frequencyOf(row.ProfileMode, row.ProfileValue),
		SourceSortingFrequency:  frequencyOf(row.SourceMode, row.SourceValue),
	}, nil
}
