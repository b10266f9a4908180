// Package user provides the signed-in user domain entity.
package user

import (
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidRegistration is returned when registration input is rejected locally.
var ErrInvalidRegistration = errors.New("invalid registration")

// Session represents the signed-in user.
type Session struct {
	ID         string    `json:"id"`       // Catalog user ID (temporary ID when the backend does not expose one)
	Username   string    `json:"username"` // Login name
	Email      string    `json:"email"`    // Email address (may be a placeholder)
	LoggedInAt time.Time `json:"loginTime"`

	favorites map[string]struct{}
}

// NewSession creates a new user session.
func NewSession(id, username, email string) *Session {
	return &Session{
		ID:         id,
		Username:   username,
		Email:      email,
		LoggedInAt: time.Now(),
		favorites:  make(map[string]struct{}),
	}
}

// IsFavorite reports whether the song is in the user's favorites.
func (s *Session) IsFavorite(songID string) bool {
	_, ok := s.favorites[songID]
	return ok
}

// SetFavorites replaces the favorites set.
func (s *Session) SetFavorites(songIDs []string) {
	s.favorites = make(map[string]struct{}, len(songIDs))
	for _, id := range songIDs {
		s.favorites[id] = struct{}{}
	}
}

// AddFavorite marks a song as favorite.
func (s *Session) AddFavorite(songID string) {
	if s.favorites == nil {
		s.favorites = make(map[string]struct{})
	}
	s.favorites[songID] = struct{}{}
}

// RemoveFavorite unmarks a song.
func (s *Session) RemoveFavorite(songID string) {
	delete(s.favorites, songID)
}

// FavoriteIDs returns the favorite song IDs in ascending order.
func (s *Session) FavoriteIDs() []string {
	ids := make([]string, 0, len(s.favorites))
	for id := range s.favorites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a copy that shares no favorites storage with s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.SetFavorites(s.FavoriteIDs())
	return &c
}

// Registration holds sign-up input.
type Registration struct {
	Username string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

// ValidateRegistration checks sign-up input before it is sent to the backend.
func ValidateRegistration(username, email, password string) error {
	r := Registration{Username: username, Email: email, Password: password}
	if err := validator.New().Struct(r); err != nil {
		return errors.Mark(errors.Wrap(err, "registration rejected"), ErrInvalidRegistration)
	}
	return nil
}
