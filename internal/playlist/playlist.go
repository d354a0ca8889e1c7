// Package playlist resolves .pls and .m3u station links to the stream URL
// they point at.
package playlist

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// Kind identifies a playlist format.
type Kind int

const (
	None Kind = iota
	PLS
	M3U
)

func (k Kind) String() string {
	switch k {
	case PLS:
		return "pls"
	case M3U:
		return "m3u"
	}
	return "none"
}

// MaxSize caps how much of a response is read when parsing a playlist.
const MaxSize = 64 << 10

// SniffLen is the number of leading body bytes Detect looks at.
const SniffLen = 512

// ErrNotPlaylist is returned by Resolve when the target is not a playlist.
var ErrNotPlaylist = errors.New("not a playlist")

// Detect guesses the playlist kind from the content type, the URL path and
// the first bytes of the body. head may be nil.
func Detect(contentType, rawURL string, head []byte) Kind {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "scpls"), strings.Contains(ct, "pls+xml"):
		return PLS
	case strings.Contains(ct, "mpegurl"):
		return M3U
	}

	if u, err := url.Parse(rawURL); err == nil {
		switch strings.ToLower(path.Ext(u.Path)) {
		case ".pls":
			return PLS
		case ".m3u", ".m3u8":
			return M3U
		}
	}

	head = bytes.TrimSpace(head)
	switch {
	case bytes.HasPrefix(bytes.ToLower(head), []byte("[playlist]")), bytes.Contains(head, []byte("File1=")):
		return PLS
	case bytes.HasPrefix(head, []byte("#EXTM3U")):
		return M3U
	case bytes.HasPrefix(head, []byte("http://")), bytes.HasPrefix(head, []byte("https://")):
		return M3U
	}
	return None
}

// Entries returns every stream URL listed in r, in file order. Relative
// entries are resolved against base.
func Entries(kind Kind, r io.Reader, base string) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(io.LimitReader(r, MaxSize))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		var entry string
		switch kind {
		case PLS:
			key, val, ok := strings.Cut(line, "=")
			if !ok || !strings.HasPrefix(strings.ToLower(key), "file") {
				continue
			}
			entry = strings.TrimSpace(val)
		case M3U:
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			entry = line
		default:
			return nil, ErrNotPlaylist
		}
		if entry == "" {
			continue
		}
		out = append(out, absolute(base, entry))
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read playlist")
	}
	if len(out) == 0 {
		return nil, errors.Errorf("no stream URL found in %s playlist", kind)
	}
	return out, nil
}

// First returns the first stream URL of a playlist.
func First(kind Kind, r io.Reader, base string) (string, error) {
	entries, err := Entries(kind, r, base)
	if err != nil {
		return "", err
	}
	return entries[0], nil
}

// Resolve fetches rawURL and, when it is a playlist, returns its first entry.
// Streams are returned unchanged together with ErrNotPlaylist.
func Resolve(ctx context.Context, client *http.Client, rawURL, userAgent string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "*/*")
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "fetch %s", rawURL)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.Errorf("fetch %s: status %s", rawURL, resp.Status)
	}
	if resp.Header.Get("icy-metaint") != "" {
		return rawURL, ErrNotPlaylist
	}

	br := bufio.NewReaderSize(resp.Body, SniffLen)
	head, _ := br.Peek(SniffLen)
	kind := Detect(resp.Header.Get("Content-Type"), rawURL, head)
	if kind == None {
		return rawURL, ErrNotPlaylist
	}
	base := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL.String()
	}
	return First(kind, br, base)
}

func absolute(base, entry string) string {
	ref, err := url.Parse(entry)
	if err != nil || ref.IsAbs() {
		return entry
	}
	b, err := url.Parse(base)
	if err != nil {
		return entry
	}
	return b.ResolveReference(ref).String()
}
