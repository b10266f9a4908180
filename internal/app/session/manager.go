// Package session provides the session manager, the object that ties the
// player, the catalog backend, the account state and the notification stream
// together.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/streambox/internal/app/filter"
	"github.com/osa030/streambox/internal/app/notification"
	"github.com/osa030/streambox/internal/app/playback"
	"github.com/osa030/streambox/internal/app/radio"
	"github.com/osa030/streambox/internal/app/session/state"
	"github.com/osa030/streambox/internal/domain/lyrics"
	"github.com/osa030/streambox/internal/domain/playlist"
	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/domain/user"
	"github.com/osa030/streambox/internal/infra/api"
	"github.com/osa030/streambox/internal/infra/config"
	"github.com/osa030/streambox/internal/infra/store"
)

// backendTimeout bounds the backend calls the manager makes on its own behalf.
const backendTimeout = 10 * time.Second

// CatalogAPI is the catalog backend used by the session.
type CatalogAPI interface {
	Login(ctx context.Context, username, password string) (*user.Session, error)
	Register(ctx context.Context, username, email, password string) error
	ForgotPassword(ctx context.Context, email string) (string, error)

	Songs(ctx context.Context, q api.SongQuery) ([]*track.Track, error)
	Song(ctx context.Context, id string) (*track.Track, error)
	Artists(ctx context.Context) ([]api.Artist, error)
	Albums(ctx context.Context) ([]api.Album, error)
	Genres(ctx context.Context) ([]api.Genre, error)

	Playlists(ctx context.Context) ([]*playlist.Playlist, error)
	PlaylistSongs(ctx context.Context, playlistID string) ([]*track.Track, error)
	CreatePlaylist(ctx context.Context, userID, name, description string) (*playlist.Playlist, error)
	DeletePlaylist(ctx context.Context, id string) error
	AddSongToPlaylist(ctx context.Context, playlistID, songID string) error
	RemoveSongFromPlaylist(ctx context.Context, playlistID, songID string) error

	Favorites(ctx context.Context, userID string) ([]*track.Track, error)
	AddFavorite(ctx context.Context, userID, songID string) error
	RemoveFavorite(ctx context.Context, userID, songID string) error

	AddPlayHistory(ctx context.Context, userID, songID string, playedAt time.Time) error
	PlayHistory(ctx context.Context, userID string) ([]api.HistoryEntry, error)

	Lyrics(ctx context.Context, songID string) (*lyrics.Lyrics, error)
	SyncedLyrics(ctx context.Context, songID string) (*lyrics.Synced, error)
}

// Deps carries the collaborators built by the caller.
type Deps struct {
	API   CatalogAPI
	Store store.Backend
	Media playback.Media
	Radio *radio.ProviderChain // nil disables radio
}

// Manager manages the player session.
type Manager struct {
	config *config.Config
	api    CatalogAPI
	store  store.Backend

	account      *state.Manager
	playback     *playback.Controller
	filterChain  *filter.Chain
	notification *notification.Manager
	station      *radio.Station

	lyricsMu  sync.RWMutex
	lyricsFor string         // song whose synced lyrics are wanted
	synced    *lyrics.Synced // synced lyrics of the current track, if any

	radioMu      sync.Mutex
	radioFilling bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
	once   sync.Once
}

// queueView exposes the published queue to the filters.
type queueView struct {
	c *playback.Controller
}

func (q queueView) Tracks() []track.QueuedTrack {
	return q.c.Snapshot().Queue
}

// NewManager creates a new session manager.
func NewManager(cfg *config.Config, deps Deps) (*Manager, error) {
	if deps.API == nil || deps.Store == nil || deps.Media == nil {
		return nil, errors.New("session: api, store and media are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:       cfg,
		api:          deps.API,
		store:        deps.Store,
		account:      state.New(deps.Store),
		notification: notification.NewManager(),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	m.playback = playback.NewController(deps.Media, deps.Store, playback.Config{
		DefaultVolume:    cfg.Playback.DefaultVolume,
		VolumeStep:       cfg.Playback.VolumeStep,
		SeekStep:         cfg.SeekStep(),
		RestartThreshold: cfg.RestartThreshold(),
		PlayTimeout:      cfg.PlayTimeout(),
	})

	chain, err := filter.Build(cfg.EnabledFilters(), filter.Deps{Queue: queueView{c: m.playback}})
	if err != nil {
		m.playback.Close()
		cancel()
		return nil, errors.Wrap(err, "failed to build filter chain")
	}
	m.filterChain = chain

	if cfg.Radio.Enabled && deps.Radio != nil {
		m.station = radio.NewStation(deps.Radio, chain, cfg.Radio.CandidateCount, cfg.Radio.RecentArtistCount)
	}

	return m, nil
}

// Start restores persisted state and starts the event and progress loops.
// Playback is never resumed automatically.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.account.Restore(ctx); err != nil {
		return errors.Wrap(err, "failed to restore account")
	}
	if err := m.playback.Restore(ctx); err != nil {
		return errors.Wrap(err, "failed to restore player")
	}

	m.wg.Add(2)
	go m.playbackLoop()
	go m.progressLoop()

	snap := m.playback.Snapshot()
	zlog.Info().Msgf("session: started: queue=%d state=%s radio=%t", len(snap.Queue), snap.State, m.station != nil)
	return nil
}

// Done is closed once the manager has been closed.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Close stops the loops and the player. It is safe to call more than once.
func (m *Manager) Close() {
	m.once.Do(func() {
		m.cancel()
		m.playback.Close()
		m.wg.Wait()
		m.notification.Close()
		close(m.done)
		zlog.Info().Msg("session: closed")
	})
}

// Player returns the transport controller.
func (m *Manager) Player() *playback.Controller {
	return m.playback
}

// Notifications returns the notification manager.
func (m *Manager) Notifications() *notification.Manager {
	return m.notification
}

// Filters returns the enabled enqueue filters.
func (m *Manager) Filters() []filter.Filter {
	return m.filterChain.Filters()
}

// Status is a point-in-time view of the session.
type Status struct {
	Phase    state.Phase
	User     *user.Session
	Theme    state.Theme
	Player   playback.Snapshot
	Progress playback.Progress
	Radio    bool
}

// GetStatus returns the current session status.
func (m *Manager) GetStatus() *Status {
	return &Status{
		Phase:    m.account.Phase(),
		User:     m.account.Session(),
		Theme:    m.account.Theme(),
		Player:   m.playback.Snapshot(),
		Progress: m.playback.Progress(),
		Radio:    m.station != nil,
	}
}

// backendContext derives a bounded context for calls the manager starts itself.
func (m *Manager) backendContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(m.ctx, backendTimeout)
}
