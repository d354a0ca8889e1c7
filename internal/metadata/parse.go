package metadata

import (
	"bytes"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
)

const streamTitleKey = "StreamTitle="

// titleSeparators are tried in order when splitting a title.
var titleSeparators = []string{" - ", ": "}

// DecodeBlock converts a raw metadata block into text. Trailing NUL padding is
// removed. Blocks that are not valid UTF-8 go through fallback when one is
// given; otherwise invalid sequences are dropped.
func DecodeBlock(raw []byte, fallback encoding.Encoding) string {
	raw = bytes.TrimRight(raw, "\x00")
	if utf8.Valid(raw) {
		return string(raw)
	}
	if fallback != nil {
		if out, err := fallback.NewDecoder().Bytes(raw); err == nil {
			return string(out)
		}
	}
	return strings.ToValidUTF8(string(raw), "")
}

// CharsetEncoding resolves a WHATWG charset label such as "windows-1251".
// An empty label yields a nil encoding and no error.
func CharsetEncoding(label string) (encoding.Encoding, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, nil
	}
	enc, _ := charset.Lookup(label)
	if enc == nil {
		return nil, errors.Errorf("unknown charset %q", label)
	}
	return enc, nil
}

// ExtractStreamTitle returns the StreamTitle value of a metadata block.
//
// The value starts after the first quote following "StreamTitle=" and ends at
// the quote that terminates the field, i.e. the one followed by ';' and another
// key, or by the end of the block. Apostrophes inside titles are kept.
func ExtractStreamTitle(meta string) (string, bool) {
	idx := strings.Index(meta, streamTitleKey)
	if idx < 0 {
		return "", false
	}
	rest := strings.TrimLeft(meta[idx+len(streamTitleKey):], " \t")
	if rest == "" {
		return "", false
	}

	quote := byte('\'')
	switch rest[0] {
	case '\'', '"':
		quote = rest[0]
		rest = rest[1:]
	default:
		i := strings.IndexByte(rest, quote)
		if i < 0 {
			return "", false
		}
		rest = rest[i+1:]
	}

	end := closingQuote(rest, quote)
	if end < 0 {
		return "", false
	}
	title := strings.TrimSpace(html.UnescapeString(rest[:end]))
	return title, title != ""
}

func closingQuote(s string, quote byte) int {
	last := -1
	for i := 0; i < len(s); i++ {
		if s[i] != quote {
			continue
		}
		last = i
		j := i + 1
		for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
			j++
		}
		if j >= len(s) {
			return i
		}
		if s[j] == ';' {
			tail := strings.TrimSpace(s[j+1:])
			if tail == "" || strings.Contains(tail, "=") {
				return i
			}
		}
	}
	return last
}

// SplitTitle splits "Artist - Track" (or "Artist: Track") into its parts.
// Titles without a separator are returned as the track with no artist.
func SplitTitle(title string) (artist, track string) {
	title = strings.TrimSpace(title)
	for _, sep := range titleSeparators {
		if i := strings.Index(title, sep); i >= 0 {
			return strings.TrimSpace(title[:i]), strings.TrimSpace(title[i+len(sep):])
		}
	}
	return "", title
}

// ParseNowPlaying accepts either a full ICY block or the bare now-playing
// string a media backend reports, and returns the split title.
func ParseNowPlaying(raw string) (artist, track string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", false
	}
	title := raw
	if strings.Contains(raw, streamTitleKey) {
		if title, ok = ExtractStreamTitle(raw); !ok {
			return "", "", false
		}
	} else {
		title = strings.TrimSpace(html.UnescapeString(raw))
	}
	if title == "" || title == "-" {
		return "", "", false
	}
	artist, track = SplitTitle(title)
	return artist, track, artist != "" || track != ""
}
