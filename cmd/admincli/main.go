// Package main provides the admin CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/osa030/streambox/internal/api/rest"
)

var (
	app    = kingpin.New("streambox-admincli", "streambox transport control client")
	server = app.Flag("server", "Server address").Default(rest.DefaultServerURL).Envar("STREAMBOX_SERVER").String()
	token  = app.Flag("token", "Control token (or set STREAMBOX_CONTROL_TOKEN env)").Envar("STREAMBOX_CONTROL_TOKEN").String()

	statusCmd = app.Command("status", "Show player status")

	playCmd  = app.Command("play", "Play a song now, or resume when no song is given")
	playSong = playCmd.Arg("song-id", "Catalog song ID").String()

	pauseCmd  = app.Command("pause", "Pause playback")
	toggleCmd = app.Command("toggle", "Toggle play/pause")
	nextCmd   = app.Command("next", "Skip to the next track").Alias("skip")
	prevCmd   = app.Command("prev", "Restart the track or go back one").Alias("previous")
	stopCmd   = app.Command("stop", "Stop playback")

	seekCmd     = app.Command("seek", "Seek within the current track")
	seekTo      = seekCmd.Flag("to", "Absolute position (e.g. 1m30s)").Duration()
	seekPercent = seekCmd.Flag("percent", "Position as a percentage of the track").Float64()
	seekSteps   = seekCmd.Flag("steps", "Number of seek steps (negative goes back)").Int()

	volumeCmd   = app.Command("volume", "Set or step the volume")
	volumeLevel = volumeCmd.Flag("set", "Volume level 0-100").Default("-1").Int()
	volumeSteps = volumeCmd.Flag("steps", "Number of volume steps (negative lowers)").Int()

	muteCmd = app.Command("mute", "Toggle mute")

	shuffleCmd = app.Command("shuffle", "Set or toggle shuffle")
	shuffleArg = shuffleCmd.Arg("mode", "on, off or toggle").Default("toggle").Enum("on", "off", "toggle")

	repeatCmd  = app.Command("repeat", "Set or cycle the repeat mode")
	repeatMode = repeatCmd.Arg("mode", "none, all, one or cycle").Default("cycle").Enum("none", "all", "one", "cycle")

	queueCmd = app.Command("queue", "Show the play queue").Alias("list")

	removeCmd   = app.Command("remove", "Remove a queued track")
	removeIndex = removeCmd.Arg("position", "Queue position (1-based)").Required().Int()

	clearCmd = app.Command("clear", "Stop playback and empty the queue")

	jumpCmd   = app.Command("jump", "Play the queued track at a position")
	jumpIndex = jumpCmd.Arg("position", "Queue position (1-based)").Required().Int()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" && command != statusCmd.FullCommand() && command != queueCmd.FullCommand() {
		fmt.Println("Error: control token is required (use --token or STREAMBOX_CONTROL_TOKEN env)")
		os.Exit(1)
	}

	client := rest.NewClient(*server, *token)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	switch command {
	case statusCmd.FullCommand():
		err = status(ctx, client)
	case playCmd.FullCommand():
		if *playSong == "" {
			err = printPlayer(client.Resume(ctx))
		} else {
			err = printPlayer(client.Play(ctx, *playSong))
		}
	case pauseCmd.FullCommand():
		err = printPlayer(client.Pause(ctx))
	case toggleCmd.FullCommand():
		err = printPlayer(client.TogglePlayPause(ctx))
	case nextCmd.FullCommand():
		err = printPlayer(client.Next(ctx))
	case prevCmd.FullCommand():
		err = printPlayer(client.Previous(ctx))
	case stopCmd.FullCommand():
		err = printPlayer(client.Stop(ctx))
	case seekCmd.FullCommand():
		err = seek(ctx, client)
	case volumeCmd.FullCommand():
		err = volume(ctx, client)
	case muteCmd.FullCommand():
		err = printPlayer(client.ToggleMute(ctx))
	case shuffleCmd.FullCommand():
		err = shuffle(ctx, client, *shuffleArg)
	case repeatCmd.FullCommand():
		err = repeat(ctx, client, *repeatMode)
	case queueCmd.FullCommand():
		err = showQueue(ctx, client)
	case removeCmd.FullCommand():
		var q *rest.QueueResponse
		if q, err = client.RemoveAt(ctx, *removeIndex-1); err == nil {
			printQueue(q)
		}
	case clearCmd.FullCommand():
		if err = client.ClearQueue(ctx); err == nil {
			fmt.Println("Queue cleared")
		}
	case jumpCmd.FullCommand():
		err = printPlayer(client.Jump(ctx, *jumpIndex-1))
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func status(ctx context.Context, client *rest.Client) error {
	s, err := client.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Println("\n=== PLAYER STATUS ===")
	fmt.Printf("Phase: %s\n", s.Phase)
	if s.User != nil {
		fmt.Printf("User: %s (%s)\n", s.User.Username, s.User.ID)
		fmt.Printf("Favorites: %d\n", len(s.User.Favorites))
	}
	fmt.Printf("Theme: %s\n", s.Theme)
	fmt.Printf("Radio: %v\n", s.Radio)
	fmt.Println()
	printPlayerInfo(&s.Player)
	return nil
}

func seek(ctx context.Context, client *rest.Client) error {
	switch {
	case *seekTo > 0:
		return printPlayer(client.SeekTo(ctx, *seekTo))
	case *seekPercent > 0:
		return printPlayer(client.SeekPercent(ctx, *seekPercent))
	case *seekSteps != 0:
		return printPlayer(client.SeekSteps(ctx, *seekSteps))
	default:
		return fmt.Errorf("one of --to, --percent or --steps is required")
	}
}

func volume(ctx context.Context, client *rest.Client) error {
	switch {
	case *volumeLevel > 100:
		return fmt.Errorf("volume must be between 0 and 100")
	case *volumeLevel >= 0:
		return printPlayer(client.SetVolume(ctx, float64(*volumeLevel)/100))
	case *volumeSteps != 0:
		return printPlayer(client.VolumeSteps(ctx, *volumeSteps))
	default:
		return fmt.Errorf("one of --set or --steps is required")
	}
}

func shuffle(ctx context.Context, client *rest.Client, mode string) error {
	var on *bool
	switch mode {
	case "on":
		v := true
		on = &v
	case "off":
		v := false
		on = &v
	}
	shuffled, err := client.SetShuffle(ctx, on)
	if err != nil {
		return err
	}
	fmt.Printf("Shuffle: %v\n", shuffled)
	return nil
}

func repeat(ctx context.Context, client *rest.Client, mode string) error {
	if mode == "cycle" {
		mode = ""
	}
	got, err := client.SetRepeat(ctx, mode)
	if err != nil {
		return err
	}
	fmt.Printf("Repeat: %s\n", got)
	return nil
}

func showQueue(ctx context.Context, client *rest.Client) error {
	q, err := client.Queue(ctx)
	if err != nil {
		return err
	}
	printQueue(q)
	return nil
}

func printPlayer(info *rest.PlayerInfo, err error) error {
	if err != nil {
		return err
	}
	printPlayerInfo(info)
	return nil
}

func printPlayerInfo(p *rest.PlayerInfo) {
	fmt.Printf("State: %s\n", p.State)
	if p.Current != nil && p.Current.Track != nil {
		t := p.Current.Track
		fmt.Println("Currently Playing:")
		fmt.Printf("  Song ID: %s\n", t.ID)
		fmt.Printf("  Title: %s\n", t.Title)
		fmt.Printf("  Artist: %s\n", t.ArtistName())
		fmt.Printf("  Position: %s / %s\n", msToDuration(p.PositionMs), msToDuration(p.DurationMs))
		fmt.Printf("  Source: %s\n", p.Current.Source)
	}
	volume := fmt.Sprintf("%d%%", int(p.Volume*100+0.5))
	if p.Muted {
		volume += " (muted)"
	}
	fmt.Printf("Volume: %s\n", volume)
	fmt.Printf("Shuffle: %v  Repeat: %s\n", p.Shuffled, p.Repeat)
	fmt.Printf("Queue: %d track(s), position %d\n", len(p.Queue), p.Cursor+1)
}

func printQueue(q *rest.QueueResponse) {
	fmt.Printf("\n=== QUEUE (%d) ===\n", len(q.Tracks))
	if len(q.Tracks) == 0 {
		fmt.Println("(empty)")
		return
	}
	for i, qt := range q.Tracks {
		marker := "  "
		if i == q.Cursor {
			marker = "▶ "
		}
		if qt.Track == nil {
			continue
		}
		fmt.Printf("%s%3d. %s - %s [%s] (%s)\n", marker, i+1, qt.Track.Title, qt.Track.ArtistName(), qt.Track.Duration.Round(time.Second), qt.Source)
	}
}

func msToDuration(ms int64) time.Duration {
	return (time.Duration(ms) * time.Millisecond).Round(time.Second)
}
