package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/japaniel/jpdict/pkg/dictionary"
)

// ErrLastProfile is returned when removing the only remaining profile.
var ErrLastProfile = errors.New("cannot remove the last profile")

type profileRow struct {
	ID                int64         `db:"id"`
	Name              string        `db:"name"`
	SortingDictionary sql.NullInt64 `db:"sorting_dictionary"`
	Config            string        `db:"config"`
}

type enabledRow struct {
	Profile    int64 `db:"profile"`
	Dictionary int64 `db:"dictionary"`
}

func (r profileRow) toProfile() (dictionary.Profile, error) {
	p := dictionary.Profile{
		ID:                  dictionary.ProfileID(r.ID),
		Name:                r.Name,
		EnabledDictionaries: map[dictionary.DictionaryID]struct{}{},
	}
	if r.SortingDictionary.Valid {
		id := dictionary.DictionaryID(r.SortingDictionary.Int64)
		p.SortingDictionary = &id
	}
	if r.Config != "" {
		if err := json.Unmarshal([]byte(r.Config), &p.Config); err != nil {
			return dictionary.Profile{}, fmt.Errorf("profile %d: decode config: %w", r.ID, err)
		}
	}
	return p, nil
}

// Profiles returns every profile with its enabled dictionaries, ordered by id.
func (s *Store) Profiles(ctx context.Context) ([]dictionary.Profile, error) {
	var rows []profileRow
	if err := sqlx.SelectContext(ctx, s.db, &rows,
		`SELECT id, name, sorting_dictionary, config FROM profile ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	var enabled []enabledRow
	if err := sqlx.SelectContext(ctx, s.db, &enabled,
		`SELECT profile, dictionary FROM profile_enabled_dictionary`); err != nil {
		return nil, fmt.Errorf("list enabled dictionaries: %w", err)
	}

	out := make([]dictionary.Profile, 0, len(rows))
	index := make(map[int64]int, len(rows))
	for _, r := range rows {
		p, err := r.toProfile()
		if err != nil {
			return nil, err
		}
		index[r.ID] = len(out)
		out = append(out, p)
	}
	for _, e := range enabled {
		if i, ok := index[e.Profile]; ok {
			out[i].EnabledDictionaries[dictionary.DictionaryID(e.Dictionary)] = struct{}{}
		}
	}
	return out, nil
}

// Profile returns one profile or dictionary.ErrNotFound.
func (s *Store) Profile(ctx context.Context, id dictionary.ProfileID) (dictionary.Profile, error) {
	var row profileRow
	if err := sqlx.GetContext(ctx, s.db, &row,
		`SELECT id, name, sorting_dictionary, config FROM profile WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dictionary.Profile{}, fmt.Errorf("profile %d: %w", id, dictionary.ErrNotFound)
		}
		return dictionary.Profile{}, fmt.Errorf("get profile %d: %w", id, err)
	}
	p, err := row.toProfile()
	if err != nil {
		return dictionary.Profile{}, err
	}
	var ids []int64
	if err := sqlx.SelectContext(ctx, s.db, &ids,
		`SELECT dictionary FROM profile_enabled_dictionary WHERE profile = ?`, id); err != nil {
		return dictionary.Profile{}, fmt.Errorf("enabled dictionaries of profile %d: %w", id, err)
	}
	for _, d := range ids {
		p.EnabledDictionaries[dictionary.DictionaryID(d)] = struct{}{}
	}
	return p, nil
}

// CurrentProfileID returns the id of the current profile.
func (s *Store) CurrentProfileID(ctx context.Context) (dictionary.ProfileID, error) {
	var id int64
	if err := sqlx.GetContext(ctx, s.db, &id, `SELECT current_profile FROM config WHERE id = 1`); err != nil {
		return 0, fmt.Errorf("current profile: %w", err)
	}
	return dictionary.ProfileID(id), nil
}

func requireProfile(ctx context.Context, q Executor, id dictionary.ProfileID) error {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM profile WHERE id = ?`, id); err != nil {
		return fmt.Errorf("check profile %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("profile %d: %w", id, dictionary.ErrNotFound)
	}
	return nil
}

// CreateProfile adds an empty profile.
func (s *Store) CreateProfile(ctx context.Context, name string) (dictionary.ProfileID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("create profile: empty name")
	}
	var id int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := exec(ctx, tx, builder.Insert("profile").Columns("name").Values(name))
		if err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return dictionary.ProfileID(id), nil
}

// CopyProfile creates a profile named name with the settings and enabled
// dictionaries of from.
func (s *Store) CopyProfile(ctx context.Context, from dictionary.ProfileID, name string) (dictionary.ProfileID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("copy profile: empty name")
	}
	var id int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := requireProfile(ctx, tx, from); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO profile (name, sorting_dictionary, config)
			 SELECT ?, sorting_dictionary, config FROM profile WHERE id = ?`, name, from)
		if err != nil {
			return fmt.Errorf("copy profile %d: %w", from, err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO profile_enabled_dictionary (profile, dictionary)
			 SELECT ?, dictionary FROM profile_enabled_dictionary WHERE profile = ?`, id, from)
		if err != nil {
			return fmt.Errorf("copy enabled dictionaries: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return dictionary.ProfileID(id), nil
}

// RemoveProfile deletes a profile. The last profile cannot be removed. When
// the current profile is removed, the remaining profile with the lowest id
// becomes current.
func (s *Store) RemoveProfile(ctx context.Context, id dictionary.ProfileID) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := requireProfile(ctx, tx, id); err != nil {
			return err
		}
		var others sql.NullInt64
		if err := tx.GetContext(ctx, &others, `SELECT MIN(id) FROM profile WHERE id <> ?`, id); err != nil {
			return fmt.Errorf("find other profile: %w", err)
		}
		if !others.Valid {
			return ErrLastProfile
		}
		_, err := exec(ctx, tx, builder.Update("config").
			Set("current_profile", others.Int64).
			Where(sq.Eq{"id": 1, "current_profile": id}))
		if err != nil {
			return fmt.Errorf("move current profile: %w", err)
		}
		if _, err := exec(ctx, tx, builder.Delete("profile").Where(sq.Eq{"id": id})); err != nil {
			return fmt.Errorf("delete profile %d: %w", id, err)
		}
		return nil
	})
}

// SetCurrentProfile makes id the current profile.
func (s *Store) SetCurrentProfile(ctx context.Context, id dictionary.ProfileID) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := requireProfile(ctx, tx, id); err != nil {
			return err
		}
		_, err := exec(ctx, tx, builder.Update("config").Set("current_profile", id).Where(sq.Eq{"id": 1}))
		return err
	})
}

// EnableDictionary enables a dictionary for a profile. Enabling an enabled
// dictionary is a no-op.
func (s *Store) EnableDictionary(ctx context.Context, profile dictionary.ProfileID, dict dictionary.DictionaryID) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := requireProfile(ctx, tx, profile); err != nil {
			return err
		}
		if err := requireDictionary(ctx, tx, dict); err != nil {
			return err
		}
		_, err := exec(ctx, tx, builder.Insert("profile_enabled_dictionary").
			Options("OR IGNORE").
			Columns("profile", "dictionary").
			Values(profile, dict))
		if err != nil {
			return fmt.Errorf("enable dictionary %d: %w", dict, err)
		}
		return nil
	})
}

// DisableDictionary disables a dictionary for a profile. Disabling a disabled
// dictionary is a no-op.
func (s *Store) DisableDictionary(ctx context.Context, profile dictionary.ProfileID, dict dictionary.DictionaryID) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := requireProfile(ctx, tx, profile); err != nil {
			return err
		}
		if err := requireDictionary(ctx, tx, dict); err != nil {
			return err
		}
		_, err := exec(ctx, tx, builder.Delete("profile_enabled_dictionary").
			Where(sq.Eq{"profile": profile, "dictionary": dict}))
		if err != nil {
			return fmt.Errorf("disable dictionary %d: %w", dict, err)
		}
		return nil
	})
}

// SetSortingDictionary sets or, with a nil dict, clears the dictionary whose
// frequencies rank every lookup of the profile.
func (s *Store) SetSortingDictionary(ctx context.Context, profile dictionary.ProfileID, dict *dictionary.DictionaryID) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := requireProfile(ctx, tx, profile); err != nil {
			return err
		}
		var value any
		if dict != nil {
			if err := requireDictionary(ctx, tx, *dict); err != nil {
				return err
			}
			value = int64(*dict)
		}
		_, err := exec(ctx, tx, builder.Update("profile").Set("sorting_dictionary", value).Where(sq.Eq{"id": profile}))
		if err != nil {
			return fmt.Errorf("set sorting dictionary: %w", err)
		}
		return nil
	})
}

// SetProfileConfig replaces the display and export settings of a profile.
func (s *Store) SetProfileConfig(ctx context.Context, profile dictionary.ProfileID, cfg dictionary.ProfileConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode profile config: %w", err)
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := requireProfile(ctx, tx, profile); err != nil {
			return err
		}
		_, err := exec(ctx, tx, builder.Update("profile").Set("config", string(data)).Where(sq.Eq{"id": profile}))
		return err
	})
}
