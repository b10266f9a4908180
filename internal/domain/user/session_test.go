package user

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestNewSession(t *testing.T) {
	s := NewSession("12", "alice", "alice@example.com")

	assert.Equal(t, "12", s.ID)
	assert.Equal(t, "alice", s.Username)
	assert.Equal(t, "alice@example.com", s.Email)
	assert.False(t, s.LoggedInAt.IsZero())
	assert.Empty(t, s.FavoriteIDs())
}

func TestSession_Favorites(t *testing.T) {
	s := NewSession("1", "bob", "")

	s.SetFavorites([]string{"3", "1"})
	assert.True(t, s.IsFavorite("1"))
	assert.True(t, s.IsFavorite("3"))
	assert.False(t, s.IsFavorite("2"))

	s.AddFavorite("2")
	assert.Equal(t, []string{"1", "2", "3"}, s.FavoriteIDs())

	s.RemoveFavorite("1")
	assert.Equal(t, []string{"2", "3"}, s.FavoriteIDs())
}

func TestSession_AddFavoriteOnZeroValue(t *testing.T) {
	var s Session
	s.AddFavorite("5")
	assert.True(t, s.IsFavorite("5"))
}

func TestSession_Clone(t *testing.T) {
	s := NewSession("1", "bob", "bob@example.com")
	s.SetFavorites([]string{"7"})

	c := s.Clone()
	c.AddFavorite("8")
	assert.Equal(t, []string{"7"}, s.FavoriteIDs())
	assert.Equal(t, []string{"7", "8"}, c.FavoriteIDs())
	assert.Equal(t, s.LoggedInAt, c.LoggedInAt)

	var nilSession *Session
	assert.Nil(t, nilSession.Clone())
}

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
		wantErr  bool
	}{
		{name: "valid", username: "carol", email: "carol@example.com", password: "secret1", wantErr: false},
		{name: "missing username", username: "", email: "carol@example.com", password: "secret1", wantErr: true},
		{name: "invalid email", username: "carol", email: "carol.example.com", password: "secret1", wantErr: true},
		{name: "short password", username: "carol", email: "carol@example.com", password: "12345", wantErr: true},
		{name: "exactly six characters", username: "carol", email: "carol@example.com", password: "123456", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegistration(tt.username, tt.email, tt.password)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidRegistration))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
