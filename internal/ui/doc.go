// Package ui implements the terminal now-playing view using bubbletea's Elm architecture.
//
// The [Model] is fed by the control server's notification stream: state, track,
// queue and progress notifications update the view, message notifications show
// in the status line. Keys are turned into calls on a [Remote], normally a
// rest.Client.
//
// Keys: space play/pause, n/p next/previous, ←/→ seek, +/- volume, m mute,
// s shuffle, r repeat, q quit.
package ui
