package metadata

import (
	"testing"

	"golang.org/x/text/encoding/charmap"
)

func TestExtractStreamTitle(t *testing.T) {
	tests := []struct {
		name   string
		meta   string
		want   string
		wantOK bool
	}{
		{
			name:   "single quotes simple",
			meta:   "StreamTitle='Artist - Track';",
			want:   "Artist - Track",
			wantOK: true,
		},
		{
			name:   "followed by stream url",
			meta:   "StreamTitle='Artist - Track';StreamUrl='http://example/x';",
			want:   "Artist - Track",
			wantOK: true,
		},
		{
			name:   "quoted apostrophe",
			meta:   "StreamTitle='JANE'S ADDICTION - BEEN CAUGHT STEALING';",
			want:   "JANE'S ADDICTION - BEEN CAUGHT STEALING",
			wantOK: true,
		},
		{
			name:   "double quotes",
			meta:   `StreamTitle="Double Quoted Title";`,
			want:   "Double Quoted Title",
			wantOK: true,
		},
		{
			name:   "missing closing quote",
			meta:   "StreamTitle='No Terminator",
			wantOK: false,
		},
		{
			name:   "trim spaces and HTML entities",
			meta:   "StreamTitle=' AC/DC &amp; Friends ';",
			want:   "AC/DC & Friends",
			wantOK: true,
		},
		{
			name:   "empty result",
			meta:   "StreamTitle='';",
			wantOK: false,
		},
		{
			name:   "no stream title present",
			meta:   "StreamUrl='http://example'",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractStreamTitle(tt.meta)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("ExtractStreamTitle(%q) = %q, %v, want %q, %v", tt.meta, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSplitTitle(t *testing.T) {
	tests := []struct {
		title, artist, track string
	}{
		{"Daft Punk - Around the World", "Daft Punk", "Around the World"},
		{"Artist - Track - Remix", "Artist", "Track - Remix"},
		{"Station News: Weather", "Station News", "Weather"},
		{"Prefers Dash: Over - Colon", "Prefers Dash: Over", "Colon"},
		{"Just a jingle", "", "Just a jingle"},
		{"  padded - values  ", "padded", "values"},
	}
	for _, tt := range tests {
		artist, track := SplitTitle(tt.title)
		if artist != tt.artist || track != tt.track {
			t.Errorf("SplitTitle(%q) = (%q, %q), want (%q, %q)", tt.title, artist, track, tt.artist, tt.track)
		}
	}
}

func TestDecodeBlock(t *testing.T) {
	if got := DecodeBlock([]byte("StreamTitle='Đorđe - Pesma';\x00\x00\x00"), nil); got != "StreamTitle='Đorđe - Pesma';" {
		t.Fatalf("utf-8 block = %q", got)
	}

	latin := []byte("StreamTitle='Caf\xe9';\x00")
	if got := DecodeBlock(latin, nil); got != "StreamTitle='Caf';" {
		t.Fatalf("invalid bytes should be dropped, got %q", got)
	}
	if got := DecodeBlock(latin, charmap.ISO8859_1); got != "StreamTitle='Café';" {
		t.Fatalf("fallback decode = %q", got)
	}
}

func TestCharsetEncoding(t *testing.T) {
	enc, err := CharsetEncoding("")
	if err != nil || enc != nil {
		t.Fatalf("empty label = %v, %v", enc, err)
	}
	enc, err = CharsetEncoding("windows-1251")
	if err != nil || enc == nil {
		t.Fatalf("windows-1251 = %v, %v", enc, err)
	}
	out, err := enc.NewDecoder().String("\xcf\xf0\xe8\xe2\xe5\xf2")
	if err != nil || out != "Привет" {
		t.Fatalf("decode = %q, %v", out, err)
	}
	if _, err := CharsetEncoding("no-such-charset"); err == nil {
		t.Fatal("expected error for unknown label")
	}
}

func TestParseNowPlaying(t *testing.T) {
	tests := []struct {
		raw           string
		artist, track string
		ok            bool
	}{
		{"StreamTitle='A - B';", "A", "B", true},
		{"A - B", "A", "B", true},
		{"Rock &amp; Roll Radio", "", "Rock & Roll Radio", true},
		{"StreamTitle='';", "", "", false},
		{" - ", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		artist, track, ok := ParseNowPlaying(tt.raw)
		if artist != tt.artist || track != tt.track || ok != tt.ok {
			t.Errorf("ParseNowPlaying(%q) = (%q, %q, %v), want (%q, %q, %v)", tt.raw, artist, track, ok, tt.artist, tt.track, tt.ok)
		}
	}
}
