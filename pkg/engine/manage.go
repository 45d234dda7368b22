package engine

import (
	"context"

	"github.com/japaniel/jpdict/pkg/dictionary"
)

// Every mutation below refreshes the snapshot once the store has accepted it.

func (e *Engine) refreshAfter(ctx context.Context, err error) error {
	if err != nil {
		return err
	}
	return e.Refresh(ctx)
}

// Dictionaries lists dictionaries in position order.
func (e *Engine) Dictionaries() []dictionary.Dictionary {
	return e.Snapshot().Dictionaries
}

// Profiles lists every profile.
func (e *Engine) Profiles() []dictionary.Profile {
	return e.Snapshot().Profiles
}

// CurrentProfile returns the active profile.
func (e *Engine) CurrentProfile() (dictionary.Profile, error) {
	snap := e.Snapshot()
	p, ok := snap.Profile(snap.CurrentProfile)
	if !ok {
		return dictionary.Profile{}, dictionary.ErrNotFound
	}
	return p, nil
}

// RemoveDictionary deletes a dictionary and all of its records.
func (e *Engine) RemoveDictionary(ctx context.Context, id dictionary.DictionaryID) error {
	return e.refreshAfter(ctx, e.store.RemoveDictionary(ctx, id))
}

func (e *Engine) EnableDictionary(ctx context.Context, profile dictionary.ProfileID, id dictionary.DictionaryID) error {
	return e.refreshAfter(ctx, e.store.EnableDictionary(ctx, profile, id))
}

func (e *Engine) DisableDictionary(ctx context.Context, profile dictionary.ProfileID, id dictionary.DictionaryID) error {
	return e.refreshAfter(ctx, e.store.DisableDictionary(ctx, profile, id))
}

// SetSortingDictionary picks the dictionary whose frequencies rank every
// lookup for the profile. A nil id clears it.
func (e *Engine) SetSortingDictionary(ctx context.Context, profile dictionary.ProfileID, id *dictionary.DictionaryID) error {
	return e.refreshAfter(ctx, e.store.SetSortingDictionary(ctx, profile, id))
}

func (e *Engine) SwapDictionaryPositions(ctx context.Context, a, b dictionary.DictionaryID) error {
	return e.refreshAfter(ctx, e.store.SwapDictionaryPositions(ctx, a, b))
}

func (e *Engine) SetDictionaryPosition(ctx context.Context, id dictionary.DictionaryID, position int64) error {
	return e.refreshAfter(ctx, e.store.SetDictionaryPosition(ctx, id, position))
}

func (e *Engine) CreateProfile(ctx context.Context, name string) (dictionary.ProfileID, error) {
	id, err := e.store.CreateProfile(ctx, name)
	return id, e.refreshAfter(ctx, err)
}

func (e *Engine) CopyProfile(ctx context.Context, from dictionary.ProfileID, name string) (dictionary.ProfileID, error) {
	id, err := e.store.CopyProfile(ctx, from, name)
	return id, e.refreshAfter(ctx, err)
}

func (e *Engine) RemoveProfile(ctx context.Context, id dictionary.ProfileID) error {
	return e.refreshAfter(ctx, e.store.RemoveProfile(ctx, id))
}

func (e *Engine) SetCurrentProfile(ctx context.Context, id dictionary.ProfileID) error {
	return e.refreshAfter(ctx, e.store.SetCurrentProfile(ctx, id))
}

func (e *Engine) SetProfileConfig(ctx context.Context, id dictionary.ProfileID, cfg dictionary.ProfileConfig) error {
	return e.refreshAfter(ctx, e.store.SetProfileConfig(ctx, id, cfg))
}
