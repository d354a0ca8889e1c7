package metadata

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// siblingStrategy scans for adjacent mount points (e.g. replacing "-flac" with
// "-128k") that may expose ICY metadata when the primary stream does not.
type siblingStrategy struct {
	client *http.Client
	logger Logger
	pause  time.Duration
}

var siblingCache sync.Map // family key -> sibling URL

func newSiblingStrategy(client *http.Client, log Logger) *siblingStrategy {
	return &siblingStrategy{client: client, logger: log, pause: 80 * time.Millisecond}
}

// Discover attempts to find a sibling stream that exposes ICY metadata and
// returns its URL with the first sample read while probing.
func (s *siblingStrategy) Discover(ctx context.Context, streamURL string) (string, NowPlaying, error) {
	key := stationCacheKey(streamURL)
	if key != "" {
		if cached, ok := siblingCache.Load(key); ok {
			if target, _ := cached.(string); target != "" {
				return target, NowPlaying{}, nil
			}
		}
	}
	target, np, err := s.scanCandidates(ctx, streamURL)
	if err == nil && key != "" {
		siblingCache.Store(key, target)
	}
	return target, np, err
}

func (s *siblingStrategy) scanCandidates(ctx context.Context, streamURL string) (string, NowPlaying, error) {
	u, err := url.Parse(streamURL)
	if err != nil || u == nil {
		return "", NowPlaying{}, errors.New("invalid url")
	}
	candidates := buildSiblingCandidates(u.Path)
	if len(candidates) == 0 {
		return "", NowPlaying{}, errors.New("no candidates")
	}
	for i, p := range candidates {
		if p == u.Path {
			continue
		}
		select {
		case <-ctx.Done():
			return "", NowPlaying{}, ctx.Err()
		default:
		}
		cand := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: p}).String()
		if np, ok := s.probeCandidate(ctx, cand); ok {
			return cand, np, nil
		}
		if i < len(candidates)-1 && s.pause > 0 {
			time.Sleep(s.pause)
		}
	}
	return "", NowPlaying{}, errors.New("no sibling metadata")
}

// probeCandidate only downloads up to the first metadata block to confirm
// viability.
func (s *siblingStrategy) probeCandidate(ctx context.Context, candidate string) (NowPlaying, bool) {
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, http.MethodGet, candidate, nil)
	if err != nil {
		return NowPlaying{}, false
	}
	req.Header.Set("Icy-MetaData", "1")
	req.Header.Set("User-Agent", defaultUA)
	resp, err := s.client.Do(req)
	if err != nil {
		return NowPlaying{}, false
	}
	defer resp.Body.Close()
	metaInt, ok := parseMetaInt(resp.Header)
	if !ok {
		return NowPlaying{}, false
	}
	title, err := FirstTitle(resp.Body, metaInt, nil)
	if err != nil {
		s.logger.Printf("sibling probe %s: %v", candidate, err)
		return NowPlaying{}, false
	}
	artist, track := SplitTitle(title)
	station := strings.TrimSpace(resp.Header.Get("icy-name"))
	return NowPlaying{Artist: artist, Track: track, Station: station}, true
}

// buildSiblingCandidates generates prioritized sibling mount paths by swapping
// the bitrate or codec suffix (e.g. "-flac" -> "-320").
func buildSiblingCandidates(originalPath string) []string {
	if originalPath == "" {
		return nil
	}
	orig := originalPath
	if !strings.HasPrefix(orig, "/") {
		orig = "/" + orig
	}
	suffix := detectSiblingSuffix(orig)
	if suffix == "" {
		return nil
	}
	at := strings.LastIndex(orig, suffix)
	priorities := []string{
		"320", "320k",
		"256", "256k",
		"192", "192k",
		"128", "128k",
		"stream", "live", "aac", "aacp", "mp3",
	}
	result := make([]string, 0, len(priorities))
	for _, label := range priorities {
		result = append(result, orig[:at]+label+orig[at+len(suffix):])
	}
	return result
}

// detectSiblingSuffix extracts the trailing token (bitrate/codec) to swap.
func detectSiblingSuffix(path string) string {
	if path == "" {
		return ""
	}
	lastSep := strings.LastIndexAny(path, "-_.")
	if lastSep >= 0 && lastSep+1 < len(path) {
		return path[lastSep+1:]
	}
	return strings.Trim(path, "/")
}
