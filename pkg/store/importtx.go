package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/japaniel/jpdict/pkg/dictionary"
)

// maxRowsPerInsert bounds multi-row INSERT statements so that the number of
// bound parameters stays well below SQLite's variable limit.
const maxRowsPerInsert = 1000

// Entry is one encoded record together with every term it is reachable by.
type Entry struct {
	Terms []dictionary.Term
	Kind  dictionary.RecordKind
	Data  []byte
}

// FrequencyRow feeds the flat frequency table used for sorting.
type FrequencyRow struct {
	Term  dictionary.Term
	Value dictionary.FrequencyValue
}

// ImportTx is the single open write transaction of a dictionary import. It
// holds the store's writer permit until Commit or Rollback.
type ImportTx struct {
	store      *Store
	tx         *sqlx.Tx
	id         dictionary.DictionaryID
	meta       dictionary.Meta
	recordStmt *sqlx.Stmt
	records    int
	started    time.Time

	once sync.Once
}

// BeginImport checks that no dictionary named meta.Name exists, then opens
// the import transaction and inserts the dictionary row at the end of the
// position order. The name check runs before the transaction opens and fails
// with *AlreadyExistsError.
func (s *Store) BeginImport(ctx context.Context, meta dictionary.Meta) (*ImportTx, error) {
	if strings.TrimSpace(meta.Name) == "" {
		return nil, fmt.Errorf("begin import: dictionary name is empty")
	}
	if err := s.acquireWriter(ctx); err != nil {
		return nil, err
	}
	release := true
	defer func() {
		if release {
			s.releaseWriter()
		}
	}()

	exists, err := s.DictionaryExists(ctx, meta.Name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &AlreadyExistsError{Name: meta.Name}
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode meta: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin import tx: %w", err)
	}

	var position int64
	if err := tx.GetContext(ctx, &position, `SELECT COALESCE(MAX(position) + 1, 0) FROM dictionary`); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("next dictionary position: %w", err)
	}
	res, err := exec(ctx, tx, builder.Insert("dictionary").
		Columns("name", "kind", "position", "meta").
		Values(meta.Name, string(meta.Kind), position, string(metaJSON)))
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("insert dictionary %q: %w", meta.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("dictionary id: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO record (source, kind, data) VALUES (?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("prepare record insert: %w", err)
	}

	release = false
	s.log.Debug("import transaction opened", slog.String("dictionary", meta.Name), slog.Int64("id", id))
	return &ImportTx{
		store:      s,
		tx:         tx,
		id:         dictionary.DictionaryID(id),
		meta:       meta,
		recordStmt: stmt,
		started:    time.Now(),
	}, nil
}

// ID is the id the dictionary will have once committed.
func (t *ImportTx) ID() dictionary.DictionaryID { return t.id }

// Records is the number of records inserted so far.
func (t *ImportTx) Records() int { return t.records }

// InsertRecords inserts each entry's record and its term index rows.
func (t *ImportTx) InsertRecords(ctx context.Context, entries []Entry) error {
	terms := builder.Insert("term_record").Columns("source", "headword", "reading", "record")
	pending := 0
	flush := func() error {
		if pending == 0 {
			return nil
		}
		if _, err := exec(ctx, t.tx, terms); err != nil {
			return fmt.Errorf("insert term rows: %w", err)
		}
		terms = builder.Insert("term_record").Columns("source", "headword", "reading", "record")
		pending = 0
		return nil
	}

	for _, e := range entries {
		res, err := t.recordStmt.ExecContext(ctx, t.id, int(e.Kind), e.Data)
		if err != nil {
			return fmt.Errorf("insert %s record: %w", e.Kind, err)
		}
		recordID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("record id: %w", err)
		}
		t.records++

		for _, term := range e.Terms {
			h, hok := term.Headword()
			r, rok := term.Reading()
			terms = terms.Values(t.id, nullable(h, hok), nullable(r, rok), recordID)
			pending++
			if pending == maxRowsPerInsert {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
	return flush()
}

// InsertFrequencies adds rows to the sorting frequency table.
func (t *ImportTx) InsertFrequencies(ctx context.Context, rows []FrequencyRow) error {
	for start := 0; start < len(rows); start += maxRowsPerInsert {
		end := min(start+maxRowsPerInsert, len(rows))
		ins := builder.Insert("frequency").Columns("source", "headword", "reading", "mode", "value")
		for _, row := range rows[start:end] {
			h, hok := row.Term.Headword()
			r, rok := row.Term.Reading()
			ins = ins.Values(t.id, nullable(h, hok), nullable(r, rok), int(row.Value.Mode), row.Value.Value)
		}
		if _, err := exec(ctx, t.tx, ins); err != nil {
			return fmt.Errorf("insert frequency rows: %w", err)
		}
	}
	return nil
}

// Commit enables the new dictionary on the current profile and commits. An
// import that inserted no records is rolled back with dictionary.ErrNoRecords.
func (t *ImportTx) Commit(ctx context.Context) (dictionary.DictionaryID, error) {
	if t.records == 0 {
		t.Rollback()
		return 0, fmt.Errorf("import %q: %w", t.meta.Name, dictionary.ErrNoRecords)
	}

	var err error
	ran := false
	t.once.Do(func() {
		ran = true
		defer t.store.releaseWriter()
		defer t.recordStmt.Close()

		_, err = exec(ctx, t.tx, sq.Expr(
			`INSERT OR IGNORE INTO profile_enabled_dictionary (profile, dictionary)
			 SELECT current_profile, ? FROM config WHERE id = 1`, t.id))
		if err != nil {
			_ = t.tx.Rollback()
			err = fmt.Errorf("enable dictionary on current profile: %w", err)
			return
		}
		if err = t.tx.Commit(); err != nil {
			err = fmt.Errorf("commit import %q: %w", t.meta.Name, err)
			return
		}
		t.store.log.Info("dictionary imported",
			slog.String("dictionary", t.meta.Name),
			slog.Int64("id", int64(t.id)),
			slog.Int("records", t.records),
			slog.Duration("duration", time.Since(t.started)))
	})
	if !ran {
		return 0, fmt.Errorf("import %q: transaction already closed", t.meta.Name)
	}
	if err != nil {
		return 0, err
	}
	return t.id, nil
}

// Rollback aborts the import. It is safe to call after Commit.
func (t *ImportTx) Rollback() {
	t.once.Do(func() {
		defer t.store.releaseWriter()
		_ = t.recordStmt.Close()
		_ = t.tx.Rollback()
	})
}
