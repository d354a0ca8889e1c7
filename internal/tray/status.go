package tray

import (
	"fmt"
	"strings"
)

// AppTitle is shown when nothing is playing.
const AppTitle = "TrayWave"

// State is everything the tray shows, collected from the controller, the
// catalog and the settings.
type State struct {
	Station      string
	URL          string
	Artist       string
	Track        string
	Playing      bool
	Muted        bool
	Volume       int
	ShowSongInfo bool

	SleepActive bool
	SleepLeft   int
	SleepQuit   bool

	// LastStation is offered for resuming while stopped.
	LastName string
	LastURL  string
}

// SongLine joins artist and track as "artist - track"; the track alone when
// the artist is unknown.
func SongLine(artist, track string) string {
	artist, track = strings.TrimSpace(artist), strings.TrimSpace(track)
	switch {
	case track == "":
		return ""
	case artist == "":
		return track
	}
	return artist + " - " + track
}

// StatusText renders the tray tooltip.
func StatusText(s State) string {
	status := "Stopped"
	if s.Station != "" {
		status = "Playing: " + s.Station
		if song := SongLine(s.Artist, s.Track); song != "" {
			status += "\n" + song
		}
	}
	if s.SleepActive && s.SleepLeft > 0 {
		status += fmt.Sprintf("\nSleep timer: %d min left", s.SleepLeft)
	}
	muted := ""
	if s.Muted {
		muted = " (Muted)"
	}
	return fmt.Sprintf("%s\n%s\nVolume: %d%%%s", AppTitle, status, s.Volume, muted)
}

// HeaderLines returns the disabled lines at the top of the menu: the station
// (or the app name) and, when enabled, the current song.
func HeaderLines(s State) []string {
	title := AppTitle
	if s.Station != "" {
		title = s.Station
	}
	lines := []string{truncate(title, maxHeaderLen)}
	if s.ShowSongInfo {
		if song := SongLine(s.Artist, s.Track); song != "" {
			lines = append(lines, truncate(song, maxHeaderLen))
		}
	}
	return lines
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
