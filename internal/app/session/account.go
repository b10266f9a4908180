package session

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/streambox/internal/app/notification"
	"github.com/osa030/streambox/internal/app/session/state"
	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/domain/user"
	"github.com/osa030/streambox/internal/infra/store"
)

// Login signs in and loads the user's favorites.
func (m *Manager) Login(ctx context.Context, username, password string) (*user.Session, error) {
	s, err := m.api.Login(ctx, username, password)
	if err != nil {
		return nil, m.report(err)
	}

	if favs, err := m.api.Favorites(ctx, s.ID); err != nil {
		zlog.Warn().Msgf("session: failed to load favorites for %s: %v", s.Username, err)
	} else {
		ids := make([]string, 0, len(favs))
		for _, t := range favs {
			ids = append(ids, t.ID)
		}
		s.SetFavorites(ids)
	}

	if err := m.account.SignIn(ctx, s); err != nil {
		zlog.Warn().Msgf("session: failed to persist user: %v", err)
	}
	zlog.Info().Msgf("session: signed in: user=%s id=%s favorites=%d", s.Username, s.ID, len(s.FavoriteIDs()))
	m.notify(notification.LevelSuccess, "login_success")
	return m.account.Session(), nil
}

// Register creates an account. The user still has to log in afterwards.
func (m *Manager) Register(ctx context.Context, username, email, password string) error {
	if err := user.ValidateRegistration(username, email, password); err != nil {
		return m.report(err)
	}
	if err := m.api.Register(ctx, username, email, password); err != nil {
		return m.report(err)
	}
	zlog.Info().Msgf("session: registered %s", username)
	m.notify(notification.LevelSuccess, "register_success")
	return nil
}

// ForgotPassword starts a password reset and returns the backend's answer.
func (m *Manager) ForgotPassword(ctx context.Context, email string) (string, error) {
	msg, err := m.api.ForgotPassword(ctx, email)
	if err != nil {
		return "", m.report(err)
	}
	if msg == "" {
		msg = m.config.GetMessage("password_reset_sent")
	}
	m.notifyText(notification.LevelInfo, "password_reset_sent", msg)
	return msg, nil
}

// Logout stops the player, forgets the queue and signs out.
// The theme and volume survive.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.playback.Clear(ctx); err != nil {
		return m.report(err)
	}
	var errs error
	for _, key := range []string{store.KeyQueue, store.KeyOriginalOrder, store.KeyCurrentSong} {
		errs = errors.CombineErrors(errs, m.store.Remove(ctx, key))
	}
	errs = errors.CombineErrors(errs, m.account.SignOut(ctx))
	if errs != nil {
		zlog.Warn().Msgf("session: logout left stored state behind: %v", errs)
	}
	zlog.Info().Msg("session: signed out")
	m.notify(notification.LevelInfo, "logged_out")
	return nil
}

// CurrentUser returns the signed-in user, or nil.
func (m *Manager) CurrentUser() *user.Session {
	return m.account.Session()
}

func (m *Manager) requireUser() (*user.Session, error) {
	u := m.account.Session()
	if u == nil {
		return nil, ErrLoginRequired
	}
	return u, nil
}

// ToggleFavorite adds or removes songID from the user's favorites and
// returns whether it is a favorite afterwards.
func (m *Manager) ToggleFavorite(ctx context.Context, songID string) (bool, error) {
	u, err := m.requireUser()
	if err != nil {
		return false, m.report(err)
	}

	if u.IsFavorite(songID) {
		if err := m.api.RemoveFavorite(ctx, u.ID, songID); err != nil {
			return true, m.report(err)
		}
		if err := m.account.SetFavorite(ctx, songID, false); err != nil {
			zlog.Warn().Msgf("session: failed to persist favorites: %v", err)
		}
		m.notify(notification.LevelInfo, "removed_from_favorites")
		return false, nil
	}

	if err := m.api.AddFavorite(ctx, u.ID, songID); err != nil {
		return false, m.report(err)
	}
	if err := m.account.SetFavorite(ctx, songID, true); err != nil {
		zlog.Warn().Msgf("session: failed to persist favorites: %v", err)
	}
	m.notify(notification.LevelSuccess, "added_to_favorites")
	return true, nil
}

// IsFavorite reports whether songID is a favorite of the signed-in user.
func (m *Manager) IsFavorite(songID string) bool {
	return m.account.IsFavorite(songID)
}

// Favorites fetches the user's favorite songs and refreshes the local set.
func (m *Manager) Favorites(ctx context.Context) ([]*track.Track, error) {
	u, err := m.requireUser()
	if err != nil {
		return nil, m.report(err)
	}
	tracks, err := m.api.Favorites(ctx, u.ID)
	if err != nil {
		return nil, m.report(err)
	}
	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		ids = append(ids, t.ID)
	}
	if err := m.account.SetFavorites(ctx, ids); err != nil {
		zlog.Warn().Msgf("session: failed to persist favorites: %v", err)
	}
	return tracks, nil
}

// Theme returns the UI theme.
func (m *Manager) Theme() state.Theme {
	return m.account.Theme()
}

// ToggleTheme switches between the light and dark theme.
func (m *Manager) ToggleTheme(ctx context.Context) (state.Theme, error) {
	t, err := m.account.ToggleTheme(ctx)
	if err != nil {
		zlog.Warn().Msgf("session: failed to persist theme: %v", err)
	}
	m.notifyText(notification.LevelInfo, "theme_changed", fmt.Sprintf(m.config.GetMessage("theme_changed"), t))
	return t, nil
}
