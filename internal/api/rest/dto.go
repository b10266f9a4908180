package rest

import (
	"time"

	"github.com/osa030/streambox/internal/app/playback"
	"github.com/osa030/streambox/internal/app/session"
	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/domain/user"
)

// UserInfo is the signed-in account.
type UserInfo struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	Favorites []string `json:"favorites"`
}

// PlayerInfo is the transport state.
type PlayerInfo struct {
	State      string              `json:"state"`
	Current    *track.QueuedTrack  `json:"current,omitempty"`
	Cursor     int                 `json:"cursor"`
	Queue      []track.QueuedTrack `json:"queue"`
	Shuffled   bool                `json:"shuffled"`
	Repeat     string              `json:"repeat"`
	Volume     float64             `json:"volume"`
	Muted      bool                `json:"muted"`
	PositionMs int64               `json:"positionMs"`
	DurationMs int64               `json:"durationMs"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Phase  string     `json:"phase"`
	User   *UserInfo  `json:"user,omitempty"`
	Theme  string     `json:"theme"`
	Radio  bool       `json:"radio"`
	Player PlayerInfo `json:"player"`
}

// QueueResponse is returned by GET /queue.
type QueueResponse struct {
	Cursor int                 `json:"cursor"`
	Tracks []track.QueuedTrack `json:"tracks"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// MessageResponse carries a human-readable result.
type MessageResponse struct {
	Message string `json:"message"`
}

// SongRequest names a catalog song.
type SongRequest struct {
	SongID string `json:"songId" validate:"required"`
}

// SeekRequest moves the playback position. Exactly one field is set.
type SeekRequest struct {
	PositionMs *int64   `json:"positionMs,omitempty" validate:"omitempty,gte=0"`
	Percent    *float64 `json:"percent,omitempty" validate:"omitempty,gte=0,lte=100"`
	Steps      *int     `json:"steps,omitempty"`
}

// VolumeRequest sets the volume or moves it by steps.
type VolumeRequest struct {
	Volume *float64 `json:"volume,omitempty" validate:"omitempty,gte=0,lte=1"`
	Steps  *int     `json:"steps,omitempty"`
}

// ShuffleRequest sets shuffle. A nil On toggles.
type ShuffleRequest struct {
	On *bool `json:"on,omitempty"`
}

// ShuffleResponse reports the shuffle flag.
type ShuffleResponse struct {
	Shuffled bool `json:"shuffled"`
}

// RepeatRequest sets the repeat mode. An empty mode cycles.
type RepeatRequest struct {
	Mode string `json:"mode,omitempty" validate:"omitempty,oneof=none all one"`
}

// RepeatResponse reports the repeat mode.
type RepeatResponse struct {
	Mode string `json:"mode"`
}

// JumpRequest selects a queue position.
type JumpRequest struct {
	Index int `json:"index" validate:"gte=0"`
}

// PlaylistRequest creates a playlist.
type PlaylistRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description,omitempty" validate:"max=500"`
}

// PlayPlaylistRequest starts a playlist at Start.
type PlayPlaylistRequest struct {
	Start int `json:"start" validate:"gte=0"`
}

// LoginRequest signs a user in.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest creates an account. Field rules are enforced by the session.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotRequest asks for a password reset link.
type ForgotRequest struct {
	Email string `json:"email" validate:"required"`
}

// FavoriteResponse reports a song's favorite flag after a toggle.
type FavoriteResponse struct {
	SongID   string `json:"songId"`
	Favorite bool   `json:"favorite"`
}

// ThemeResponse reports the UI theme.
type ThemeResponse struct {
	Theme string `json:"theme"`
}

// FilterInfo describes an enabled enqueue filter.
type FilterInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Codes       []string `json:"codes"`
}

// PlayEntry is a locally recorded play.
type PlayEntry struct {
	SongID   string    `json:"songId"`
	UserID   string    `json:"userId,omitempty"`
	PlayedAt time.Time `json:"playedAt"`
}

func toUserInfo(u *user.Session) *UserInfo {
	if u == nil {
		return nil
	}
	return &UserInfo{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Favorites: u.FavoriteIDs(),
	}
}

func toPlayerInfo(snap playback.Snapshot, p playback.Progress) PlayerInfo {
	info := PlayerInfo{
		State:    snap.State.String(),
		Current:  snap.Current,
		Cursor:   snap.Cursor,
		Queue:    snap.Queue,
		Shuffled: snap.Shuffled,
		Repeat:   snap.Repeat.String(),
		Volume:   snap.Volume,
		Muted:    snap.Muted,
	}
	if info.Queue == nil {
		info.Queue = []track.QueuedTrack{}
	}
	if snap.Current != nil && p.TrackID == snap.Current.ID() {
		info.PositionMs = p.Position.Milliseconds()
		info.DurationMs = p.Duration.Milliseconds()
	}
	return info
}

func toStatusResponse(st *session.Status) *StatusResponse {
	return &StatusResponse{
		Phase:  st.Phase.String(),
		User:   toUserInfo(st.User),
		Theme:  string(st.Theme),
		Radio:  st.Radio,
		Player: toPlayerInfo(st.Player, st.Progress),
	}
}
