package metadata

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

// defaultUA stays generic: ICY sources often reject exotic user agents.
var defaultUA = "TrayWave/1.0"

const defaultReadTimeout = 10 * time.Second

// newStreamClient builds an HTTP/1.1 client suitable for long-lived audio
// responses. Old Shoutcast servers still speak TLS 1.0 and break on h2.
func newStreamClient(dialTimeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			ForceAttemptHTTP2: false,
			Proxy:             http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   dialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: dialTimeout,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS10},
		},
	}
}

// parseMetaInt reads icy-metaint and reports whether it is a usable interval.
func parseMetaInt(h http.Header) (int, bool) {
	raw := strings.TrimSpace(h.Get("icy-metaint"))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// baseNameFromURL returns the lowercase mount name without numeric suffixes.
func baseNameFromURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	p := path.Base(u.Path)
	p = strings.TrimSuffix(p, path.Ext(p))
	if i := strings.IndexAny(p, "-_"); i >= 0 {
		return strings.ToLower(p[:i])
	}
	return strings.ToLower(p)
}

// stationCacheKey creates a host+basename key for the sibling discovery cache.
func stationCacheKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u == nil {
		return ""
	}

	return strings.ToLower(u.Host) + "|" + baseNameFromURL(u)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// changeFilter drops repeated (artist, track) pairs.
type changeFilter struct {
	last NowPlaying
	seen bool
}

func (c *changeFilter) changed(np NowPlaying) bool {
	if c.seen && c.last.Artist == np.Artist && c.last.Track == np.Track {
		return false
	}
	c.last, c.seen = np, true
	return true
}
