package player

import "github.com/pkg/errors"

// ErrNotInitialized is returned by backends used before Init.
var ErrNotInitialized = errors.New("player backend not initialized")

// Backend is the platform media player the Controller drives. Implementations
// must be safe for use from multiple goroutines.
type Backend interface {
	Init(volume int, muted bool) error
	// Load replaces the current media without starting playback.
	Load(url string) error
	Play() error
	Stop() error
	SetVolume(v int) error
	SetMute(muted bool) error
	// NowPlaying returns the now-playing string the backend extracted from
	// the stream itself, if any.
	NowPlaying() (string, bool)
	Release()
}
