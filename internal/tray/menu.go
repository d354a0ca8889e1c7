package tray

import (
	"fmt"

	"fyne.io/fyne/v2"

	"github.com/edward-ap/traywave/internal/player"
	"github.com/edward-ap/traywave/internal/stations"
)

const (
	maxCategoryLen = 20
	maxStationLen  = 35
	maxHeaderLen   = 45

	volumeStep = 5
)

// Actions are the callbacks behind menu items. Nil entries disable the item.
type Actions struct {
	Play            func(st stations.Station)
	Stop            func()
	ToggleMute      func()
	ChangeVolume    func(delta int)
	SetSleep        func(minutes int)
	CancelSleep     func()
	ToggleSleepQuit func()
	ToggleSongInfo  func()
	ReloadStations  func()
	Quit            func()
}

// BuildMenu lays out the tray menu for s. Empty categories are skipped.
func BuildMenu(s State, catalog stations.List, act Actions) *fyne.Menu {
	var items []*fyne.MenuItem
	for _, line := range HeaderLines(s) {
		items = append(items, disabled(line))
	}
	if s.Station == "" && s.LastURL != "" && act.Play != nil {
		last := stations.Station{Name: s.LastName, URL: s.LastURL}
		items = append(items, fyne.NewMenuItem("Resume "+truncate(s.LastName, maxStationLen), func() { act.Play(last) }))
	}
	items = append(items, fyne.NewMenuItemSeparator())

	for _, cat := range catalog {
		if len(cat.Stations) == 0 {
			continue
		}
		sub := make([]*fyne.MenuItem, 0, len(cat.Stations))
		for _, st := range cat.Stations {
			st := st
			it := action(truncate(st.Name, maxStationLen), act.Play != nil, func() { act.Play(st) })
			it.Checked = s.Station != "" && st.URL == s.URL
			sub = append(sub, it)
		}
		parent := fyne.NewMenuItem(truncate(cat.Name, maxCategoryLen), nil)
		parent.ChildMenu = fyne.NewMenu("", sub...)
		items = append(items, parent)
	}
	items = append(items, fyne.NewMenuItemSeparator())

	items = append(items, sleepMenu(s, act))
	items = append(items,
		action(fmt.Sprintf("Volume up (%d%%)", s.Volume), act.ChangeVolume != nil && s.Volume < 100, func() { act.ChangeVolume(volumeStep) }),
		action("Volume down", act.ChangeVolume != nil && s.Volume > 0, func() { act.ChangeVolume(-volumeStep) }),
	)
	songInfo := action("Show song info", act.ToggleSongInfo != nil, act.ToggleSongInfo)
	songInfo.Checked = s.ShowSongInfo
	items = append(items, songInfo,
		action("Reload stations", act.ReloadStations != nil, act.ReloadStations),
		fyne.NewMenuItemSeparator(),
		action("Stop", act.Stop != nil && s.Station != "", act.Stop),
		action(muteLabel(s.Muted), act.ToggleMute != nil, act.ToggleMute),
		fyne.NewMenuItemSeparator(),
	)
	quit := action("Quit", act.Quit != nil, act.Quit)
	quit.IsQuit = true
	items = append(items, quit)

	return fyne.NewMenu(AppTitle, items...)
}

func sleepMenu(s State, act Actions) *fyne.MenuItem {
	var sub []*fyne.MenuItem
	for _, m := range player.SleepPresets {
		m := m
		sub = append(sub, action(fmt.Sprintf("%d minutes", m), act.SetSleep != nil, func() { act.SetSleep(m) }))
	}
	quit := action("Quit when timer ends", act.ToggleSleepQuit != nil, act.ToggleSleepQuit)
	quit.Checked = s.SleepQuit
	sub = append(sub,
		fyne.NewMenuItemSeparator(),
		quit,
		action("Cancel timer", act.CancelSleep != nil && s.SleepActive, act.CancelSleep),
	)

	label := "Sleep timer"
	if s.SleepActive {
		label = fmt.Sprintf("Sleep timer (%d min left)", s.SleepLeft)
	}
	it := fyne.NewMenuItem(label, nil)
	it.ChildMenu = fyne.NewMenu("", sub...)
	return it
}

func muteLabel(muted bool) string {
	if muted {
		return "Unmute"
	}
	return "Mute"
}

func disabled(label string) *fyne.MenuItem {
	it := fyne.NewMenuItem(label, nil)
	it.Disabled = true
	return it
}

func action(label string, enabled bool, fn func()) *fyne.MenuItem {
	it := fyne.NewMenuItem(label, fn)
	it.Disabled = !enabled
	return it
}
