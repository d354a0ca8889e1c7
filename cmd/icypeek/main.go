// Command icypeek connects to a stream the way the tray does and prints the
// response headers, every raw metadata block and the parsed now-playing data.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/edward-ap/traywave/internal/metadata"
)

func main() {
	var (
		charset   string
		dump      string
		timeout   time.Duration
		blocks    int
		fallbacks bool
		verbose   bool
	)
	flag.StringVar(&charset, "charset", "", "decode non-UTF-8 blocks with this charset (e.g. windows-1251)")
	flag.StringVar(&dump, "dump", "", "write the de-interleaved audio to this file")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "give up when no bytes arrive for this long")
	flag.IntVar(&blocks, "blocks", 0, "stop after this many metadata blocks (0 = run until interrupted)")
	flag.BoolVar(&fallbacks, "fallbacks", false, "try sibling mounts and status-json when the stream has no ICY metadata")
	flag.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: icypeek [flags] <stream-url>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, flag.Arg(0), charset, dump, timeout, blocks, fallbacks); err != nil {
		log.Error().Err(err).Msg("icypeek")
		os.Exit(1)
	}
}

func run(ctx context.Context, url, charset, dump string, timeout time.Duration, limit int, fallbacks bool) error {
	enc, err := metadata.CharsetEncoding(charset)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := metadata.ReaderOptions{
		UserAgent:   "icypeek/1.0",
		ReadTimeout: timeout,
		Charset:     enc,
		OnHeaders:   printHeaders,
	}
	if dump != "" {
		f, err := os.Create(dump)
		if err != nil {
			return errors.Wrap(err, "create dump file")
		}
		defer f.Close()
		opts.AudioSink = f
	}

	n := 0
	opts.OnBlock = func(raw string) {
		n++
		fmt.Printf("\n[Block %d] RAW: %q\n", n, raw)
		if limit > 0 && n >= limit {
			cancel()
		}
	}
	onUpdate := func(np metadata.NowPlaying) {
		switch {
		case np.Empty() && np.Station != "":
			fmt.Printf("Station: %s\n", np.Station)
		case np.Artist != "":
			fmt.Printf("[Block %d] Artist: %s\n[Block %d] Track:  %s\n", n, np.Artist, n, np.Track)
		default:
			fmt.Printf("[Block %d] Title:  %s\n", n, np.Track)
		}
	}

	metaLog := log.Logger.With().Str("component", "metadata").Logger()
	if fallbacks {
		prov := metadata.NewProvider(nil, &metaLog, metadata.ProviderOptions{Reader: opts, Fallbacks: true})
		err = prov.Watch(ctx, url, onUpdate, func(s metadata.Strategy) {
			fmt.Printf("Strategy: %s\n", s)
		})
	} else {
		err = metadata.NewReader(nil, &metaLog, opts).Watch(ctx, url, onUpdate)
	}

	switch {
	case errors.Is(err, metadata.ErrNoICY):
		fmt.Println("No icy-metaint => server does not send ICY metadata")
		return nil
	case ctx.Err() != nil:
		return nil
	}
	return err
}

func printHeaders(h http.Header) {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Println("=== Response Headers ===")
	for _, k := range keys {
		fmt.Printf("%s: %s\n", k, strings.Join(h[k], ", "))
	}
	fmt.Println("========================")
}
