// Package main provides the user CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/streambox/internal/api/rest"
	"github.com/osa030/streambox/internal/app/notification"
	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/infra/api"
	"github.com/osa030/streambox/internal/infra/logger"
	"github.com/osa030/streambox/internal/ui"
)

var (
	app    = kingpin.New("streambox-usercli", "streambox library and account client")
	server = app.Flag("server", "Server address").Default(rest.DefaultServerURL).Envar("STREAMBOX_SERVER").String()
	token  = app.Flag("token", "Control token (or set STREAMBOX_CONTROL_TOKEN env)").Envar("STREAMBOX_CONTROL_TOKEN").String()

	// account
	loginCmd      = app.Command("login", "Log in to the catalog backend")
	loginUser     = loginCmd.Arg("username", "Username").Required().String()
	loginPassword = loginCmd.Arg("password", "Password").Required().String()

	registerCmd      = app.Command("register", "Register a new account")
	registerUser     = registerCmd.Arg("username", "Username").Required().String()
	registerEmail    = registerCmd.Arg("email", "Email address").Required().String()
	registerPassword = registerCmd.Arg("password", "Password").Required().String()

	forgotCmd   = app.Command("forgot", "Request a password reset")
	forgotEmail = forgotCmd.Arg("email", "Email address").Required().String()

	logoutCmd = app.Command("logout", "Log out")

	// library
	searchCmd    = app.Command("search", "Search the catalog")
	searchTerm   = searchCmd.Arg("query", "Title search term").String()
	searchGenre  = searchCmd.Flag("genre", "Genre filter").String()
	searchArtist = searchCmd.Flag("artist", "Artist filter").String()

	songCmd = app.Command("song", "Show a song")
	songID  = songCmd.Arg("song-id", "Catalog song ID").Required().String()

	genresCmd  = app.Command("genres", "List genres")
	artistsCmd = app.Command("artists", "List artists")
	albumsCmd  = app.Command("albums", "List albums")

	lyricsCmd  = app.Command("lyrics", "Show lyrics of a song, or of the current track")
	lyricsSong = lyricsCmd.Arg("song-id", "Catalog song ID").String()

	enqueueCmd  = app.Command("enqueue", "Add a song to the end of the queue").Alias("request")
	enqueueSong = enqueueCmd.Arg("song-id", "Catalog song ID").Required().String()

	// favorites
	favoriteCmd      = app.Command("favorite", "Toggle a song in favorites")
	favoriteSong     = favoriteCmd.Arg("song-id", "Catalog song ID").Required().String()
	favoritesCmd     = app.Command("favorites", "List favorite songs")
	playFavoritesCmd = app.Command("play-favorites", "Replace the queue with favorites and play")

	// playlists
	playlistCmd = app.Command("playlist", "Manage playlists")

	playlistListCmd = playlistCmd.Command("list", "List playlists").Default()

	playlistSongsCmd = playlistCmd.Command("songs", "List songs in a playlist")
	playlistSongsID  = playlistSongsCmd.Arg("playlist-id", "Playlist ID").Required().String()

	playlistCreateCmd  = playlistCmd.Command("create", "Create a playlist")
	playlistCreateName = playlistCreateCmd.Arg("name", "Playlist name").Required().String()
	playlistCreateDesc = playlistCreateCmd.Flag("description", "Playlist description").String()

	playlistDeleteCmd = playlistCmd.Command("delete", "Delete a playlist")
	playlistDeleteID  = playlistDeleteCmd.Arg("playlist-id", "Playlist ID").Required().String()

	playlistAddCmd  = playlistCmd.Command("add", "Add a song to a playlist")
	playlistAddID   = playlistAddCmd.Arg("playlist-id", "Playlist ID").Required().String()
	playlistAddSong = playlistAddCmd.Arg("song-id", "Catalog song ID").Required().String()

	playlistRemoveCmd  = playlistCmd.Command("remove", "Remove a song from a playlist")
	playlistRemoveID   = playlistRemoveCmd.Arg("playlist-id", "Playlist ID").Required().String()
	playlistRemoveSong = playlistRemoveCmd.Arg("song-id", "Catalog song ID").Required().String()

	playlistPlayCmd   = playlistCmd.Command("play", "Replace the queue with a playlist and play")
	playlistPlayID    = playlistPlayCmd.Arg("playlist-id", "Playlist ID").Required().String()
	playlistPlayStart = playlistPlayCmd.Flag("start", "Start position (1-based)").Default("1").Int()

	// history
	historyCmd   = app.Command("history", "Show play history")
	historyLocal = historyCmd.Flag("local", "Show the locally recorded history").Bool()
	historyLimit = historyCmd.Flag("limit", "Number of local entries").Default("20").Int()

	themeCmd = app.Command("theme", "Toggle the light/dark theme")

	// live views
	watchCmd     = app.Command("watch", "Open the now-playing view")
	watchLogfile = watchCmd.Flag("logfile", "Write client logs to this file").String()

	subscribeCmd   = app.Command("subscribe", "Print notifications as they arrive")
	subscribeTypes = subscribeCmd.Flag("type", "Only print this notification type (repeatable)").Enums(
		"track_changed", "state_changed", "queue_changed", "progress", "message")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := rest.NewClient(*server, *token)

	if command == watchCmd.FullCommand() || command == subscribeCmd.FullCommand() {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var err error
		if command == watchCmd.FullCommand() {
			err = watch(ctx, client)
		} else {
			err = subscribe(ctx, client)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := runCommand(ctx, client, command); err != nil {
		if code := rest.ErrorCode(err); code != "" {
			fmt.Printf("Error [%s]: %v\n", code, err)
		} else {
			fmt.Printf("Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, client *rest.Client, command string) error {
	switch command {
	case loginCmd.FullCommand():
		user, err := client.Login(ctx, *loginUser, *loginPassword)
		if err != nil {
			return err
		}
		fmt.Printf("Logged in as %s (user ID: %s, %d favorites)\n", user.Username, user.ID, len(user.Favorites))
	case registerCmd.FullCommand():
		msg, err := client.Register(ctx, *registerUser, *registerEmail, *registerPassword)
		if err != nil {
			return err
		}
		fmt.Println(msg)
	case forgotCmd.FullCommand():
		msg, err := client.ForgotPassword(ctx, *forgotEmail)
		if err != nil {
			return err
		}
		fmt.Println(msg)
	case logoutCmd.FullCommand():
		if err := client.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("Logged out")

	case searchCmd.FullCommand():
		songs, err := client.Search(ctx, api.SongQuery{SearchTerm: *searchTerm, Genre: *searchGenre, Artist: *searchArtist})
		if err != nil {
			return err
		}
		printTracks(songs)
	case songCmd.FullCommand():
		t, err := client.Song(ctx, *songID)
		if err != nil {
			return err
		}
		printTrack(t)
	case genresCmd.FullCommand():
		genres, err := client.Genres(ctx)
		if err != nil {
			return err
		}
		for _, g := range genres {
			fmt.Printf("  %-6s %s\n", g.ID, g.Name)
		}
	case artistsCmd.FullCommand():
		artists, err := client.Artists(ctx)
		if err != nil {
			return err
		}
		for _, a := range artists {
			fmt.Printf("  %-6s %s\n", a.ID, a.Name)
		}
	case albumsCmd.FullCommand():
		albums, err := client.Albums(ctx)
		if err != nil {
			return err
		}
		for _, a := range albums {
			fmt.Printf("  %-6s %s - %s\n", a.ID, a.Title, a.ArtistName)
		}
	case lyricsCmd.FullCommand():
		return showLyrics(ctx, client, *lyricsSong)
	case enqueueCmd.FullCommand():
		q, err := client.Enqueue(ctx, *enqueueSong)
		if err != nil {
			return err
		}
		fmt.Printf("Queued (%d track(s) in queue)\n", len(q.Tracks))

	case favoriteCmd.FullCommand():
		on, err := client.ToggleFavorite(ctx, *favoriteSong)
		if err != nil {
			return err
		}
		if on {
			fmt.Println("Added to favorites")
		} else {
			fmt.Println("Removed from favorites")
		}
	case favoritesCmd.FullCommand():
		songs, err := client.Favorites(ctx)
		if err != nil {
			return err
		}
		printTracks(songs)
	case playFavoritesCmd.FullCommand():
		return printState(client.PlayFavorites(ctx))

	case playlistListCmd.FullCommand():
		lists, err := client.Playlists(ctx)
		if err != nil {
			return err
		}
		if len(lists) == 0 {
			fmt.Println("(no playlists)")
		}
		for _, p := range lists {
			fmt.Printf("  %-8s %s", p.ID, p.Name)
			if p.Description != "" {
				fmt.Printf(" - %s", p.Description)
			}
			fmt.Println()
		}
	case playlistSongsCmd.FullCommand():
		songs, err := client.PlaylistSongs(ctx, *playlistSongsID)
		if err != nil {
			return err
		}
		printTracks(songs)
	case playlistCreateCmd.FullCommand():
		p, err := client.CreatePlaylist(ctx, *playlistCreateName, *playlistCreateDesc)
		if err != nil {
			return err
		}
		fmt.Printf("Created playlist %s (ID: %s)\n", p.Name, p.ID)
	case playlistDeleteCmd.FullCommand():
		if err := client.DeletePlaylist(ctx, *playlistDeleteID); err != nil {
			return err
		}
		fmt.Println("Playlist deleted")
	case playlistAddCmd.FullCommand():
		if err := client.AddToPlaylist(ctx, *playlistAddID, *playlistAddSong); err != nil {
			return err
		}
		fmt.Println("Song added")
	case playlistRemoveCmd.FullCommand():
		if err := client.RemoveFromPlaylist(ctx, *playlistRemoveID, *playlistRemoveSong); err != nil {
			return err
		}
		fmt.Println("Song removed")
	case playlistPlayCmd.FullCommand():
		return printState(client.PlayPlaylist(ctx, *playlistPlayID, *playlistPlayStart-1))

	case historyCmd.FullCommand():
		return showHistory(ctx, client)
	case themeCmd.FullCommand():
		theme, err := client.ToggleTheme(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Theme: %s\n", theme)
	}
	return nil
}

func showLyrics(ctx context.Context, client *rest.Client, songID string) error {
	if songID != "" {
		l, err := client.Lyrics(ctx, songID)
		if err != nil {
			return err
		}
		fmt.Println(l.Text)
		return nil
	}

	synced, err := client.CurrentLyrics(ctx)
	if err != nil {
		return err
	}
	for _, line := range synced.Lines {
		fmt.Printf("[%s] %s\n", clock(line.At), line.Text)
	}
	return nil
}

func showHistory(ctx context.Context, client *rest.Client) error {
	if *historyLocal {
		entries, err := client.LocalHistory(ctx, *historyLimit)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("  %s  song %s (user %s)\n", e.PlayedAt.Local().Format(time.DateTime), e.SongID, e.UserID)
		}
		return nil
	}

	entries, err := client.History(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		title := e.SongID
		if e.Track != nil {
			title = fmt.Sprintf("%s - %s", e.Track.Title, e.Track.ArtistName())
		}
		fmt.Printf("  %s  %s\n", e.PlayedAt.Local().Format(time.DateTime), title)
	}
	return nil
}

// watch runs the now-playing view fed by the event stream.
func watch(ctx context.Context, client *rest.Client) error {
	// Keep log output off the terminal while the view is drawn
	logCfg := logger.Config{Output: logger.OutputDiscard, Level: "info"}
	if *watchLogfile != "" {
		logCfg = logger.Config{Output: logger.OutputFile, Level: "debug", File: *watchLogfile}
	}
	closer, err := logger.Init(logCfg)
	if err != nil {
		return errors.Wrap(err, "failed to create file logger")
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan *notification.Notification, 64)
	go func() {
		defer close(events)
		err := client.Subscribe(ctx, func(n *notification.Notification) error {
			select {
			case events <- n:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			zlog.Error().Msgf("watch: event stream ended: %v", err)
		}
	}()

	p := tea.NewProgram(ui.NewModel(ctx, client, events), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "error running now-playing view")
	}
	return nil
}

func subscribe(ctx context.Context, client *rest.Client) error {
	fmt.Println("Subscribed to notifications. Press Ctrl+C to exit.")
	types, err := notification.ParseTypes(*subscribeTypes)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	err = client.Subscribe(ctx, func(n *notification.Notification) error {
		fmt.Printf("\n[Sequence: %d] === %s ===\n", n.SequenceNo, strings.ToUpper(string(n.Type)))
		return enc.Encode(n)
	}, types...)
	if errors.Is(err, context.Canceled) {
		fmt.Println("\nUnsubscribing...")
		return nil
	}
	return err
}

func printTracks(tracks []*track.Track) {
	if len(tracks) == 0 {
		fmt.Println("(no songs)")
		return
	}
	for _, t := range tracks {
		playable := ""
		if !t.IsPlayable() {
			playable = " (not playable)"
		}
		fmt.Printf("  %-6s %s - %s [%s]%s\n", t.ID, t.Title, t.ArtistName(), clock(t.Duration), playable)
	}
}

func printTrack(t *track.Track) {
	fmt.Printf("Song ID: %s\n", t.ID)
	fmt.Printf("Title: %s\n", t.Title)
	fmt.Printf("Artist: %s\n", t.ArtistName())
	fmt.Printf("Duration: %s\n", clock(t.Duration))
	fmt.Printf("Playable: %v\n", t.IsPlayable())
}

func printState(info *rest.PlayerInfo, err error) error {
	if err != nil {
		return err
	}
	fmt.Printf("State: %s, queue %d track(s)\n", info.State, len(info.Queue))
	if info.Current != nil && info.Current.Track != nil {
		fmt.Printf("Now playing: %s - %s\n", info.Current.Track.Title, info.Current.Track.ArtistName())
	}
	return nil
}

func clock(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
