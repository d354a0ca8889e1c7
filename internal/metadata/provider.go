// Package metadata reads "now playing" information for internet radio
// streams: ICY blocks interleaved in the audio, with sibling-mount and
// Icecast status fallbacks for streams that carry none.
package metadata

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// NowPlaying is one metadata update. Station alone is set when only the
// station name is known.
type NowPlaying struct {
	Artist  string
	Track   string
	Station string
}

// Title joins artist and track the way the stream usually sends them.
func (n NowPlaying) Title() string {
	switch {
	case n.Artist != "" && n.Track != "":
		return n.Artist + " - " + n.Track
	case n.Track != "":
		return n.Track
	}
	return n.Artist
}

// Empty reports whether neither artist nor track is known.
func (n NowPlaying) Empty() bool { return strings.TrimSpace(n.Artist+n.Track) == "" }

// Strategy names the source that produced metadata.
type Strategy string

const (
	StrategyICY        Strategy = "icy"
	StrategySibling    Strategy = "sibling"
	StrategyStatusJSON Strategy = "status-json"
)

// Provider watches metadata for a stream. Watch blocks until ctx is done or
// every strategy has failed.
type Provider interface {
	Watch(ctx context.Context, streamURL string, onUpdate func(NowPlaying), onStrategy func(Strategy)) error
}

// Logger is a small logging interface used by strategies for non-fatal errors.
type Logger interface {
	Printf(format string, args ...any)
}

// ProviderOptions configures NewProvider.
type ProviderOptions struct {
	Reader ReaderOptions
	// Fallbacks enables sibling and status-json discovery when the stream
	// itself has no ICY metadata.
	Fallbacks bool
}

// NewProvider builds the dispatcher that tries strategies in order.
func NewProvider(client *http.Client, log Logger, opts ProviderOptions) Provider {
	if client == nil {
		client = newStreamClient(7 * time.Second)
	}
	if log == nil {
		log = nopLogger{}
	}
	return &dispatcher{
		fallbacks: opts.Fallbacks,
		direct:    NewReader(client, log, opts.Reader),
		status:    newStatusJSONStrategy(client, log),
		sibling:   newSiblingStrategy(client, log),
	}
}

// dispatcher chains direct ICY, sibling discovery and JSON status strategies
// until one produces data.
type dispatcher struct {
	fallbacks bool
	direct    *Reader
	status    *statusJSONStrategy
	sibling   *siblingStrategy
}

// Watch tries, in order:
//  1. ICY metadata on the stream URL.
//  2. Sibling discovery (common mount patterns on aggregator hosts).
//  3. Icecast status-json.xsl on the same host.
func (d *dispatcher) Watch(ctx context.Context, streamURL string, onUpdate func(NowPlaying), onStrategy func(Strategy)) error {
	if streamURL == "" || onUpdate == nil {
		return errors.New("metadata: missing url or callback")
	}
	var once sync.Once
	report := func(s Strategy) func() {
		return func() {
			once.Do(func() {
				if onStrategy != nil {
					onStrategy(s)
				}
			})
		}
	}

	err := d.direct.watch(ctx, streamURL, report(StrategyICY), onUpdate)
	if !errors.Is(err, ErrNoICY) || !d.fallbacks {
		return err
	}

	if target, np, err := d.sibling.Discover(ctx, streamURL); err == nil {
		report(StrategySibling)()
		if !np.Empty() {
			onUpdate(np)
		}
		return d.direct.watch(ctx, target, nil, onUpdate)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return d.status.Watch(ctx, streamURL, "", report(StrategyStatusJSON), onUpdate)
}
