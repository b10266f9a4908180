package state

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/streambox/internal/domain/user"
	"github.com/osa030/streambox/internal/infra/store"
)

func TestParseTheme(t *testing.T) {
	tests := []struct {
		in      string
		want    Theme
		wantErr bool
	}{
		{in: "light", want: ThemeLight},
		{in: " Dark ", want: ThemeDark},
		{in: "solarized", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTheme(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidTheme))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestManager_SignInPersists(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := New(st)
	assert.Equal(t, PhaseSignedOut, m.Phase())
	assert.Nil(t, m.Session())

	s := user.NewSession("5", "alice", "alice@example.com")
	s.SetFavorites([]string{"2", "1"})
	require.NoError(t, m.SignIn(ctx, s))
	assert.Equal(t, PhaseSignedIn, m.Phase())
	assert.True(t, m.IsFavorite("1"))

	restored := New(st)
	require.NoError(t, restored.Restore(ctx))
	got := restored.Session()
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, []string{"1", "2"}, got.FavoriteIDs())
}

func TestManager_SignInRequiresID(t *testing.T) {
	m := New(store.NewMemory())
	assert.Error(t, m.SignIn(context.Background(), user.NewSession("", "x", "")))
	assert.Error(t, m.SignIn(context.Background(), nil))
}

func TestManager_SessionIsACopy(t *testing.T) {
	ctx := context.Background()
	m := New(store.NewMemory())
	require.NoError(t, m.SignIn(ctx, user.NewSession("5", "alice", "")))

	m.Session().AddFavorite("9")
	assert.False(t, m.IsFavorite("9"))
}

func TestManager_Favorites(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := New(st)

	require.NoError(t, m.SetFavorite(ctx, "1", true), "no-op while signed out")
	assert.Nil(t, m.FavoriteIDs())

	require.NoError(t, m.SignIn(ctx, user.NewSession("5", "alice", "")))
	require.NoError(t, m.SetFavorite(ctx, "3", true))
	require.NoError(t, m.SetFavorite(ctx, "1", true))
	require.NoError(t, m.SetFavorite(ctx, "3", false))
	assert.Equal(t, []string{"1"}, m.FavoriteIDs())

	var stored []string
	ok, err := st.Get(ctx, store.KeyFavorites, &stored)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"1"}, stored)

	require.NoError(t, m.SetFavorites(ctx, []string{"7", "8"}))
	assert.Equal(t, []string{"7", "8"}, m.FavoriteIDs())
}

func TestManager_SignOutRemovesKeys(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := New(st)
	require.NoError(t, m.SignIn(ctx, user.NewSession("5", "alice", "")))
	require.NoError(t, m.SetTheme(ctx, ThemeDark))

	require.NoError(t, m.SignOut(ctx))
	assert.Equal(t, PhaseSignedOut, m.Phase())

	var s user.Session
	ok, err := st.Get(ctx, store.KeyUser, &s)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, ThemeDark, m.Theme(), "theme survives sign out")
}

func TestManager_Theme(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := New(st)
	assert.Equal(t, ThemeLight, m.Theme())

	got, err := m.ToggleTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, got)

	assert.Error(t, m.SetTheme(ctx, Theme("neon")))
	assert.Equal(t, ThemeDark, m.Theme())

	restored := New(st)
	require.NoError(t, restored.Restore(ctx))
	assert.Equal(t, ThemeDark, restored.Theme())
}

func TestManager_RestoreCorrupt(t *testing.T) {
	st := store.NewMemory()
	st.SetRaw(store.KeyUser, []byte(`{"id":`))
	st.SetRaw(store.KeyTheme, []byte(`"sepia"`))

	m := New(st)
	require.NoError(t, m.Restore(context.Background()))
	assert.Equal(t, PhaseSignedOut, m.Phase())
	assert.Equal(t, ThemeLight, m.Theme())
}
