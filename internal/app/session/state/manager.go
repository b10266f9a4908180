package state

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/streambox/internal/domain/user"
	"github.com/osa030/streambox/internal/infra/store"
)

// Store is the subset of store.Store used for account state.
type Store interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Remove(ctx context.Context, key string) error
}

// Manager manages account state with thread-safe access.
// Every change is written through to the store.
type Manager struct {
	mu    sync.RWMutex
	store Store

	session *user.Session
	theme   Theme
}

// New creates a signed-out manager with the light theme.
func New(st Store) *Manager {
	return &Manager{
		store: st,
		theme: ThemeLight,
	}
}

// Restore loads the stored user, favorites and theme.
// Corrupt entries are dropped and logged; they never fail the restore.
func (m *Manager) Restore(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var theme string
	if m.load(ctx, store.KeyTheme, &theme) {
		if t, err := ParseTheme(theme); err == nil {
			m.theme = t
		} else {
			zlog.Warn().Msgf("state: ignoring stored theme: %v", err)
		}
	}

	var s user.Session
	if !m.load(ctx, store.KeyUser, &s) || s.ID == "" {
		m.session = nil
		return nil
	}
	var favorites []string
	m.load(ctx, store.KeyFavorites, &favorites)
	s.SetFavorites(favorites)
	m.session = &s
	zlog.Info().Msgf("state: restored user %s", s.Username)
	return nil
}

func (m *Manager) load(ctx context.Context, key string, dst any) bool {
	ok, err := m.store.Get(ctx, key, dst)
	if err != nil {
		zlog.Warn().Msgf("state: dropping %s: %v", key, err)
		return false
	}
	return ok
}

// Phase returns the account phase.
func (m *Manager) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return PhaseSignedOut
	}
	return PhaseSignedIn
}

// Session returns a copy of the signed-in user, or nil.
func (m *Manager) Session() *user.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Clone()
}

// SignIn replaces the current user and persists it with its favorites.
func (m *Manager) SignIn(ctx context.Context, s *user.Session) error {
	if s == nil || s.ID == "" {
		return errors.New("sign in without a user id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s.Clone()
	return errors.CombineErrors(
		m.store.Set(ctx, store.KeyUser, m.session),
		m.store.Set(ctx, store.KeyFavorites, m.session.FavoriteIDs()),
	)
}

// SignOut forgets the user and its favorites.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return errors.CombineErrors(
		m.store.Remove(ctx, store.KeyUser),
		m.store.Remove(ctx, store.KeyFavorites),
	)
}

// IsFavorite reports whether songID is a favorite of the signed-in user.
func (m *Manager) IsFavorite(songID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session != nil && m.session.IsFavorite(songID)
}

// FavoriteIDs returns the signed-in user's favorites, or nil.
func (m *Manager) FavoriteIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	return m.session.FavoriteIDs()
}

// SetFavorites replaces the favorites set.
func (m *Manager) SetFavorites(ctx context.Context, ids []string) error {
	return m.updateFavorites(ctx, func(s *user.Session) { s.SetFavorites(ids) })
}

// SetFavorite adds or removes a single favorite.
func (m *Manager) SetFavorite(ctx context.Context, songID string, on bool) error {
	return m.updateFavorites(ctx, func(s *user.Session) {
		if on {
			s.AddFavorite(songID)
		} else {
			s.RemoveFavorite(songID)
		}
	})
}

func (m *Manager) updateFavorites(ctx context.Context, fn func(*user.Session)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	fn(m.session)
	return m.store.Set(ctx, store.KeyFavorites, m.session.FavoriteIDs())
}

// Theme returns the UI theme.
func (m *Manager) Theme() Theme {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.theme
}

// SetTheme sets and persists the UI theme.
func (m *Manager) SetTheme(ctx context.Context, t Theme) error {
	if _, err := ParseTheme(string(t)); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.theme = t
	return m.store.Set(ctx, store.KeyTheme, string(t))
}

// ToggleTheme flips the theme and returns the new one.
func (m *Manager) ToggleTheme(ctx context.Context) (Theme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.theme = m.theme.Toggle()
	return m.theme, m.store.Set(ctx, store.KeyTheme, string(m.theme))
}
