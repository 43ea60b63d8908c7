// Package preferences persists UserPreferences under their own key in the
// key-value area, merged over the defaults on every load.
package preferences

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/teashelf/pkg/types"
)

// Key is the key-value entry holding the preferences object.
const Key = "userPreferences"

var (
	errMissingKV = errors.New("key-value store is required")

	// ErrInvalidPreference is returned for an unknown theme, layout, or
	// brewing time.
	ErrInvalidPreference = errors.New("invalid preference")
)

// KV is the subset of the key-value area used for preferences.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
}

// Config wires a Store.
type Config struct {
	KV     KV
	Logger *zap.Logger
}

// Store loads and saves preferences. Read-modify-write cycles are
// serialized.
type Store struct {
	mu     sync.Mutex
	kv     KV
	logger *zap.Logger
}

// New returns a Store over cfg.KV.
func New(cfg Config) (*Store, error) {
	if cfg.KV == nil {
		return nil, errMissingKV
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{kv: cfg.KV, logger: logger}, nil
}

// Load returns the stored preferences merged over the defaults. A missing
// or unreadable entry yields the defaults.
func (s *Store) Load() (types.UserPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (types.UserPreferences, error) {
	prefs := types.DefaultPreferences()

	data, ok, err := s.kv.Get(Key)
	if err != nil {
		return prefs, fmt.Errorf("reading preferences: %w", err)
	}
	if !ok {
		return prefs, nil
	}

	var stored types.UserPreferences
	if err := json.Unmarshal(data, &stored); err != nil {
		s.logger.Warn("stored preferences are unreadable; using defaults", zap.Error(err))
		return prefs, nil
	}
	return merge(prefs, stored), nil
}

// merge overlays the recognised fields of stored onto defaults.
func merge(defaults, stored types.UserPreferences) types.UserPreferences {
	out := defaults
	if ParseTheme(string(stored.Theme)) == nil {
		out.Theme = stored.Theme
	}
	if ParseLayout(string(stored.DashboardLayout)) == nil {
		out.DashboardLayout = stored.DashboardLayout
	}
	for tt, secs := range stored.DefaultBrewingTimes {
		if slices.Contains(types.TeaTypes, tt) && secs > 0 {
			out.DefaultBrewingTimes[tt] = secs
		}
	}
	if stored.FavoriteTeaIDs != nil {
		out.FavoriteTeaIDs = compact(stored.FavoriteTeaIDs)
	}
	return out
}

// Save writes prefs.
func (s *Store) Save(prefs types.UserPreferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(prefs)
}

func (s *Store) save(prefs types.UserPreferences) error {
	if prefs.FavoriteTeaIDs == nil {
		prefs.FavoriteTeaIDs = []string{}
	}
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	if err := s.kv.Set(Key, data); err != nil {
		return fmt.Errorf("writing preferences: %w", err)
	}
	return nil
}

// Update loads the preferences, applies fn, and saves the result. If fn
// returns an error nothing is written.
func (s *Store) Update(fn func(*types.UserPreferences) error) (types.UserPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs, err := s.load()
	if err != nil {
		return prefs, err
	}
	if err := fn(&prefs); err != nil {
		return prefs, err
	}
	if err := s.save(prefs); err != nil {
		return prefs, err
	}
	return prefs, nil
}

// ToggleFavorite flips id in the favorite set and reports whether it is now
// a favorite.
func (s *Store) ToggleFavorite(id string) (bool, error) {
	var now bool
	_, err := s.Update(func(p *types.UserPreferences) error {
		if i := slices.Index(p.FavoriteTeaIDs, id); i >= 0 {
			p.FavoriteTeaIDs = slices.Delete(p.FavoriteTeaIDs, i, i+1)
			return nil
		}
		p.FavoriteTeaIDs = append(p.FavoriteTeaIDs, id)
		now = true
		return nil
	})
	return now, err
}

// RemoveFavorite drops id from the favorite set. Removing an id that is not
// a favorite is a no-op and writes nothing.
func (s *Store) RemoveFavorite(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs, err := s.load()
	if err != nil {
		return err
	}
	i := slices.Index(prefs.FavoriteTeaIDs, id)
	if i < 0 {
		return nil
	}
	prefs.FavoriteTeaIDs = slices.Delete(prefs.FavoriteTeaIDs, i, i+1)
	return s.save(prefs)
}

// SetBrewingTime sets the default steep time for a tea type.
func SetBrewingTime(p *types.UserPreferences, tt types.TeaType, seconds int) error {
	if !slices.Contains(types.TeaTypes, tt) {
		return fmt.Errorf("%w: unknown tea type %q", ErrInvalidPreference, tt)
	}
	if seconds <= 0 {
		return fmt.Errorf("%w: brewing time must be positive", ErrInvalidPreference)
	}
	if p.DefaultBrewingTimes == nil {
		p.DefaultBrewingTimes = map[types.TeaType]int{}
	}
	p.DefaultBrewingTimes[tt] = seconds
	return nil
}

// ParseTheme checks that s names a theme.
func ParseTheme(s string) error {
	switch types.Theme(s) {
	case types.ThemeLight, types.ThemeDark:
		return nil
	}
	return fmt.Errorf("%w: unknown theme %q", ErrInvalidPreference, s)
}

// ParseLayout checks that s names a dashboard layout.
func ParseLayout(s string) error {
	switch types.DashboardLayout(s) {
	case types.LayoutGrid, types.LayoutList:
		return nil
	}
	return fmt.Errorf("%w: unknown layout %q", ErrInvalidPreference, s)
}

// compact drops blank and repeated ids, keeping first occurrences.
func compact(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
