package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/japaniel/jpdict/pkg/dictionary"
)

type dictionaryRow struct {
	ID       int64  `db:"id"`
	Position int64  `db:"position"`
	Meta     string `db:"meta"`
}

func (r dictionaryRow) toDictionary() (dictionary.Dictionary, error) {
	var meta dictionary.Meta
	if err := json.Unmarshal([]byte(r.Meta), &meta); err != nil {
		return dictionary.Dictionary{}, fmt.Errorf("dictionary %d: decode meta: %w", r.ID, err)
	}
	return dictionary.Dictionary{
		ID:       dictionary.DictionaryID(r.ID),
		Meta:     meta,
		Position: r.Position,
	}, nil
}

// AlreadyExistsError reports an import of a dictionary whose name is taken.
type AlreadyExistsError struct {
	Name string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("dictionary %q already exists", e.Name)
}

func (e *AlreadyExistsError) Unwrap() error { return dictionary.ErrAlreadyExists }

// Dictionaries returns every dictionary ordered by position.
func (s *Store) Dictionaries(ctx context.Context) ([]dictionary.Dictionary, error) {
	query, args, err := builder.Select("id", "position", "meta").
		From("dictionary").
		OrderBy("position ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []dictionaryRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list dictionaries: %w", err)
	}
	out := make([]dictionary.Dictionary, 0, len(rows))
	for _, r := range rows {
		d, err := r.toDictionary()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Dictionary returns one dictionary or dictionary.ErrNotFound.
func (s *Store) Dictionary(ctx context.Context, id dictionary.DictionaryID) (dictionary.Dictionary, error) {
	query, args, err := builder.Select("id", "position", "meta").
		From("dictionary").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return dictionary.Dictionary{}, fmt.Errorf("build query: %w", err)
	}
	var row dictionaryRow
	if err := sqlx.GetContext(ctx, s.db, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dictionary.Dictionary{}, fmt.Errorf("dictionary %d: %w", id, dictionary.ErrNotFound)
		}
		return dictionary.Dictionary{}, fmt.Errorf("get dictionary %d: %w", id, err)
	}
	return row.toDictionary()
}

// DictionaryExists reports whether a dictionary with exactly this name exists.
func (s *Store) DictionaryExists(ctx context.Context, name string) (bool, error) {
	return dictionaryExists(ctx, s.db, name)
}

func dictionaryExists(ctx context.Context, q Executor, name string) (bool, error) {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM dictionary WHERE name = ?`, name); err != nil {
		return false, fmt.Errorf("check dictionary name: %w", err)
	}
	return n > 0, nil
}

func requireDictionary(ctx context.Context, q Executor, id dictionary.DictionaryID) error {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM dictionary WHERE id = ?`, id); err != nil {
		return fmt.Errorf("check dictionary %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("dictionary %d: %w", id, dictionary.ErrNotFound)
	}
	return nil
}

// SetDictionaryPosition moves a dictionary to the given position.
func (s *Store) SetDictionaryPosition(ctx context.Context, id dictionary.DictionaryID, position int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := requireDictionary(ctx, tx, id); err != nil {
			return err
		}
		_, err := exec(ctx, tx, builder.Update("dictionary").Set("position", position).Where(sq.Eq{"id": id}))
		if err != nil {
			return fmt.Errorf("set position of dictionary %d: %w", id, err)
		}
		return nil
	})
}

// SwapDictionaryPositions exchanges the positions of two dictionaries.
func (s *Store) SwapDictionaryPositions(ctx context.Context, a, b dictionary.DictionaryID) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var pa, pb int64
		if err := sqlx.GetContext(ctx, tx, &pa, `SELECT position FROM dictionary WHERE id = ?`, a); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("dictionary %d: %w", a, dictionary.ErrNotFound)
			}
			return err
		}
		if err := sqlx.GetContext(ctx, tx, &pb, `SELECT position FROM dictionary WHERE id = ?`, b); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("dictionary %d: %w", b, dictionary.ErrNotFound)
			}
			return err
		}
		if _, err := exec(ctx, tx, builder.Update("dictionary").Set("position", pb).Where(sq.Eq{"id": a})); err != nil {
			return fmt.Errorf("swap positions: %w", err)
		}
		if _, err := exec(ctx, tx, builder.Update("dictionary").Set("position", pa).Where(sq.Eq{"id": b})); err != nil {
			return fmt.Errorf("swap positions: %w", err)
		}
		return nil
	})
}

// RemoveDictionary deletes a dictionary with all of its records, then
// vacuums the database.
func (s *Store) RemoveDictionary(ctx context.Context, id dictionary.DictionaryID) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := requireDictionary(ctx, tx, id); err != nil {
			return err
		}
		for _, table := range []string{"term_record", "frequency", "record"} {
			if _, err := exec(ctx, tx, builder.Delete(table).Where(sq.Eq{"source": id})); err != nil {
				return fmt.Errorf("delete from %s: %w", table, err)
			}
		}
		if _, err := exec(ctx, tx, builder.Delete("dictionary").Where(sq.Eq{"id": id})); err != nil {
			return fmt.Errorf("delete dictionary %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	// VACUUM fails while readers hold the database; the delete itself is
	// already committed, so that only costs disk space.
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		s.log.Warn("vacuum after dictionary removal failed", slog.Int64("dictionary", int64(id)), slog.String("error", err.Error()))
	}
	return nil
}
