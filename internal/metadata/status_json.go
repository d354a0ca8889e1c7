package metadata

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// statusJSONStrategy polls Icecast-style /status-json.xsl endpoints on the same
// host as the stream.
type statusJSONStrategy struct {
	client   *http.Client
	logger   Logger
	interval time.Duration
}

func newStatusJSONStrategy(client *http.Client, log Logger) *statusJSONStrategy {
	return &statusJSONStrategy{client: client, logger: log, interval: 10 * time.Second}
}

// Watch sends the first update after a successful poll and then refreshes
// every interval until ctx is cancelled. Unchanged titles are not repeated.
func (s *statusJSONStrategy) Watch(ctx context.Context, streamURL, apiURL string, onReady func(), onUpdate func(NowPlaying)) error {
	if strings.TrimSpace(apiURL) == "" {
		var err error
		if apiURL, err = buildStatusURL(streamURL); err != nil {
			return err
		}
	}
	np, ok := s.pollOnce(ctx, streamURL, apiURL)
	if !ok {
		return errors.New("status-json unavailable")
	}
	if onReady != nil {
		onReady()
	}
	var filter changeFilter
	filter.changed(np)
	onUpdate(np)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if np, ok := s.pollOnce(ctx, streamURL, apiURL); ok && filter.changed(np) {
				onUpdate(np)
			}
		}
	}
}

// pollOnce performs a single request. When several mounts are listed, the one
// matching the stream path wins; otherwise the first source with a title.
func (s *statusJSONStrategy) pollOnce(ctx context.Context, streamURL, apiURL string) (NowPlaying, bool) {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return NowPlaying{}, false
	}
	req.Header.Set("User-Agent", defaultUA)
	resp, err := s.client.Do(req)
	if err != nil {
		return NowPlaying{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return NowPlaying{}, false
	}
	var st iceStats
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&st); err != nil {
		s.logger.Printf("status-json %s: %v", apiURL, err)
		return NowPlaying{}, false
	}

	sources := extractSources(st.IceStats.Source)
	var mount string
	if u, err := url.Parse(streamURL); err == nil {
		mount = u.Path
	}
	pick := -1
	for i, src := range sources {
		if strings.TrimSpace(src.Title) == "" {
			continue
		}
		if pick < 0 {
			pick = i
		}
		if mount != "" && strings.HasSuffix(src.ListenURL, mount) {
			pick = i
			break
		}
	}
	if pick < 0 {
		return NowPlaying{}, false
	}
	src := sources[pick]
	station := src.Server
	if strings.TrimSpace(station) == "" {
		station = src.IcyName
	}
	artist, track := strings.TrimSpace(src.Artist), ""
	if artist != "" {
		track = strings.TrimSpace(src.Title)
	} else {
		artist, track = SplitTitle(src.Title)
	}
	return NowPlaying{Artist: artist, Track: track, Station: strings.TrimSpace(station)}, true
}

// buildStatusURL converts a stream URL ("/live/rock") into its sibling JSON
// endpoint ("/live/status-json.xsl").
func buildStatusURL(streamURL string) (string, error) {
	u, err := url.Parse(streamURL)
	if err != nil {
		return "", errors.Wrap(err, "parse stream url")
	}
	u.Path = path.Join("/", path.Dir(u.Path), "status-json.xsl")
	u.RawQuery = ""
	return u.String(), nil
}

type iceStats struct {
	IceStats struct {
		Source json.RawMessage `json:"source"`
	} `json:"icestats"`
}

type iceSource struct {
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Server    string `json:"server_name"`
	IcyName   string `json:"icy-name"`
	ListenURL string `json:"listenurl"`
}

// extractSources normalizes Icecast's `source` field which may be a single
// object or an array depending on mount counts.
func extractSources(raw json.RawMessage) []iceSource {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		return nil
	}
	if raw[0] == '[' {
		var list []iceSource
		if json.Unmarshal(raw, &list) == nil {
			return list
		}
		return nil
	}
	var one iceSource
	if json.Unmarshal(raw, &one) == nil {
		return []iceSource{one}
	}
	return nil
}
