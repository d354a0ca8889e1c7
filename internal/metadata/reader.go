package metadata

import (
	"bufio"
	"context"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"

	"github.com/edward-ap/traywave/internal/playlist"
)

var (
	// ErrNoICY means the stream does not interleave metadata.
	ErrNoICY = errors.New("icy metadata unavailable")
	// ErrStalled means no bytes arrived within the read timeout.
	ErrStalled = errors.New("stream stalled")
	// ErrStreamEnded means the server closed the response.
	ErrStreamEnded = errors.New("stream ended")
)

// ReaderOptions tunes a Reader. Zero values pick defaults.
type ReaderOptions struct {
	UserAgent   string
	ReadTimeout time.Duration
	// Charset decodes blocks that are not valid UTF-8.
	Charset   encoding.Encoding
	AudioSink io.Writer
	OnHeaders func(http.Header)
	OnBlock   func(raw string)
}

// Reader follows a station's ICY metadata on its own HTTP connection,
// independently of the audio player.
type Reader struct {
	client *http.Client
	logger Logger
	opts   ReaderOptions
}

// NewReader builds a Reader. A nil client gets a streaming-friendly default.
func NewReader(client *http.Client, log Logger, opts ReaderOptions) *Reader {
	if client == nil {
		client = newStreamClient(7 * time.Second)
	}
	if log == nil {
		log = nopLogger{}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUA
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}
	return &Reader{client: client, logger: log, opts: opts}
}

// Watch streams streamURL and reports every change of (artist, track). The
// station name from icy-name is reported once on its own. Watch returns
// ErrNoICY when the server does not advertise icy-metaint; any other error
// ends the watch for good.
func (r *Reader) Watch(ctx context.Context, streamURL string, onUpdate func(NowPlaying)) error {
	return r.watch(ctx, streamURL, nil, onUpdate)
}

func (r *Reader) watch(ctx context.Context, streamURL string, onReady func(), onUpdate func(NowPlaying)) error {
	err := r.run(ctx, streamURL, onReady, onUpdate, true)
	if err != nil && ctx.Err() == nil && !errors.Is(err, ErrNoICY) {
		r.logger.Printf("icy reader %s: %v", streamURL, err)
	}
	return err
}

func (r *Reader) run(ctx context.Context, streamURL string, onReady func(), onUpdate func(NowPlaying), followPlaylist bool) error {
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	watchdog := time.AfterFunc(r.opts.ReadTimeout, cancel)
	defer watchdog.Stop()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Icy-MetaData", "1")
	req.Header.Set("User-Agent", r.opts.UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return failure(ctx, cctx, err, "connect")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("unexpected status %s", resp.Status)
	}
	if r.opts.OnHeaders != nil {
		r.opts.OnHeaders(resp.Header)
	}

	body := bufio.NewReaderSize(&idleReader{r: resp.Body, timer: watchdog, timeout: r.opts.ReadTimeout}, 16<<10)

	metaInt, ok := parseMetaInt(resp.Header)
	if !ok {
		if !followPlaylist {
			return ErrNoICY
		}
		head, _ := body.Peek(playlist.SniffLen)
		kind := playlist.Detect(resp.Header.Get("Content-Type"), streamURL, head)
		if kind == playlist.None {
			return ErrNoICY
		}
		target, err := playlist.First(kind, body, resp.Request.URL.String())
		if err != nil {
			return errors.Wrap(err, "resolve playlist")
		}
		resp.Body.Close()
		watchdog.Stop()
		return r.run(ctx, target, onReady, onUpdate, false)
	}

	station := strings.TrimSpace(html.UnescapeString(resp.Header.Get("icy-name")))
	if station != "" {
		onUpdate(NowPlaying{Station: station})
	}
	if onReady != nil {
		onReady()
	}

	var filter changeFilter
	d := NewDeinterleaver(metaInt, func(block []byte) {
		text := DecodeBlock(block, r.opts.Charset)
		if r.opts.OnBlock != nil {
			r.opts.OnBlock(text)
		}
		title, ok := ExtractStreamTitle(text)
		if !ok {
			return
		}
		artist, track := SplitTitle(title)
		np := NowPlaying{Artist: artist, Track: track, Station: station}
		if filter.changed(np) {
			onUpdate(np)
		}
	}, r.opts.AudioSink)

	if _, err := io.CopyBuffer(d, onlyReader{body}, make([]byte, 8<<10)); err != nil {
		return failure(ctx, cctx, err, "read stream")
	}
	return ErrStreamEnded
}

// failure maps a transport error, telling caller cancellation apart from the
// watchdog firing on the request context.
func failure(parent, req context.Context, err error, op string) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if req.Err() != nil {
		return ErrStalled
	}
	return errors.Wrap(err, op)
}

// FirstTitle reads from an ICY body until the first StreamTitle, giving up
// after a few metadata intervals.
func FirstTitle(body io.Reader, metaInt int, enc encoding.Encoding) (string, error) {
	var title string
	d := NewDeinterleaver(metaInt, func(block []byte) {
		if title != "" {
			return
		}
		title, _ = ExtractStreamTitle(DecodeBlock(block, enc))
	}, nil)

	limit := int64(3 * (metaInt + 1 + 255*16))
	buf := make([]byte, 4096)
	var read int64
	for title == "" && read < limit {
		n, err := body.Read(buf)
		read += int64(n)
		d.Write(buf[:n])
		if err != nil {
			if title != "" {
				break
			}
			return "", errors.Wrap(err, "read first block")
		}
	}
	if title == "" {
		return "", errors.New("no title within probe window")
	}
	return title, nil
}

// idleReader re-arms timer before every read so a stalled body cancels the
// request.
type idleReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (ir *idleReader) Read(p []byte) (int, error) {
	ir.timer.Reset(ir.timeout)
	return ir.r.Read(p)
}

// onlyReader hides WriterTo so io.CopyBuffer uses the supplied buffer.
type onlyReader struct{ io.Reader }
