package tray

import (
	"strings"
	"testing"

	"fyne.io/fyne/v2"

	"github.com/edward-ap/traywave/internal/stations"
)

func testCatalog() stations.List {
	return stations.List{
		{Name: "Jazz", Stations: []stations.Station{
			{Name: "Smooth", URL: "http://jazz.example/smooth"},
			{Name: "A station name that is far too long for any tray menu", URL: "http://jazz.example/long"},
		}},
		{Name: "Empty"},
		{Name: "A category with a long name", Stations: []stations.Station{
			{Name: "Other", URL: "http://other.example/"},
		}},
	}
}

func TestBuildMenuLayout(t *testing.T) {
	m := BuildMenu(State{Volume: 50, ShowSongInfo: true}, testCatalog(), Actions{})
	labels := menuLabels(m)
	joined := strings.Join(labels, "\n")

	if labels[0] != AppTitle {
		t.Fatalf("first item = %q", labels[0])
	}
	if strings.Contains(joined, "Empty") {
		t.Fatalf("empty category shown:\n%s", joined)
	}
	for _, want := range []string{
		"Jazz/Smooth",
		"Jazz/A station name that is far too long...",
		"A category with a lo.../Other",
		"Sleep timer/15 minutes",
		"Sleep timer/60 minutes",
		"Sleep timer/Quit when timer ends",
		"Sleep timer/Cancel timer",
		"Volume up (50%)",
		"Volume down",
		"Show song info",
		"Reload stations",
		"Stop",
		"Mute",
		"Quit",
	} {
		if findItem(m, want) == nil {
			t.Fatalf("missing %q in\n%s", want, joined)
		}
	}
	if !findItem(m, "Quit").IsQuit {
		t.Fatal("quit item not marked IsQuit")
	}
	if !findItem(m, "Show song info").Checked {
		t.Fatal("song info should be checked")
	}
}

func TestBuildMenuPlayingState(t *testing.T) {
	s := State{
		Station: "Smooth", URL: "http://jazz.example/smooth",
		Artist: "Miles Davis", Track: "So What",
		Playing: true, Muted: true, Volume: 100, ShowSongInfo: true,
		SleepActive: true, SleepLeft: 7,
	}
	var played []string
	act := Actions{
		Play:         func(st stations.Station) { played = append(played, st.URL) },
		Stop:         func() {},
		ToggleMute:   func() {},
		ChangeVolume: func(int) {},
		CancelSleep:  func() {},
	}
	m := BuildMenu(s, testCatalog(), act)

	if m.Items[0].Label != "Smooth" || m.Items[1].Label != "Miles Davis - So What" {
		t.Fatalf("header = %q, %q", m.Items[0].Label, m.Items[1].Label)
	}
	if !m.Items[0].Disabled {
		t.Fatal("header should be disabled")
	}
	if !findItem(m, "Jazz/Smooth").Checked {
		t.Fatal("current station not checked")
	}
	if findItem(m, "Jazz/A station name that is far too long...").Checked {
		t.Fatal("other station checked")
	}
	if findItem(m, "Unmute") == nil {
		t.Fatal("muted state should offer Unmute")
	}
	if !findItem(m, "Volume up (100%)").Disabled {
		t.Fatal("volume up enabled at 100%")
	}
	if findItem(m, "Sleep timer (7 min left)/Cancel timer").Disabled {
		t.Fatal("cancel timer disabled while active")
	}
	if findItem(m, "Resume Smooth") != nil {
		t.Fatal("resume offered while playing")
	}

	findItem(m, "A category with a lo.../Other").Action()
	if len(played) != 1 || played[0] != "http://other.example/" {
		t.Fatalf("played = %v", played)
	}
}

func TestBuildMenuActions(t *testing.T) {
	var deltas, sleeps []int
	var resumed stations.Station
	act := Actions{
		Play:         func(st stations.Station) { resumed = st },
		ChangeVolume: func(d int) { deltas = append(deltas, d) },
		SetSleep:     func(m int) { sleeps = append(sleeps, m) },
	}
	s := State{Volume: 50, LastName: "Smooth", LastURL: "http://jazz.example/smooth"}
	m := BuildMenu(s, testCatalog(), act)

	findItem(m, "Volume up (50%)").Action()
	findItem(m, "Volume down").Action()
	if len(deltas) != 2 || deltas[0] != volumeStep || deltas[1] != -volumeStep {
		t.Fatalf("deltas = %v", deltas)
	}
	findItem(m, "Sleep timer/45 minutes").Action()
	if len(sleeps) != 1 || sleeps[0] != 45 {
		t.Fatalf("sleeps = %v", sleeps)
	}
	findItem(m, "Resume Smooth").Action()
	if resumed.URL != "http://jazz.example/smooth" {
		t.Fatalf("resumed = %+v", resumed)
	}
	if !findItem(m, "Stop").Disabled {
		t.Fatal("stop enabled while stopped")
	}
	if !findItem(m, "Quit").Disabled {
		t.Fatal("quit without action should be disabled")
	}
}

// menuLabels flattens a menu into "parent/child" labels, separators omitted.
func menuLabels(m *fyne.Menu) []string {
	var out []string
	for _, it := range m.Items {
		if it.IsSeparator {
			continue
		}
		out = append(out, it.Label)
		if it.ChildMenu != nil {
			for _, child := range menuLabels(it.ChildMenu) {
				out = append(out, it.Label+"/"+child)
			}
		}
	}
	return out
}

// findItem returns the first item whose label path has the given prefix.
func findItem(m *fyne.Menu, path string) *fyne.MenuItem {
	head, rest, nested := strings.Cut(path, "/")
	for _, it := range m.Items {
		if it.IsSeparator || it.Label != head {
			continue
		}
		if !nested {
			return it
		}
		if it.ChildMenu != nil {
			return findItem(it.ChildMenu, rest)
		}
	}
	return nil
}
