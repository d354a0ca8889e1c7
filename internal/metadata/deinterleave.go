package metadata

import (
	"io"

	"github.com/pkg/errors"
)

type deinterleaveState int

const (
	stateAudio deinterleaveState = iota
	stateLength
	stateBlock
)

// Deinterleaver separates an ICY byte stream into audio and metadata blocks.
// It keeps its position between writes, so input may be split anywhere.
type Deinterleaver struct {
	metaInt int
	onBlock func([]byte)
	audio   io.Writer

	state deinterleaveState
	left  int
	block []byte
}

// NewDeinterleaver returns a Deinterleaver for the given icy-metaint. Non-empty
// metadata blocks are passed to onBlock; audio bytes go to audio when it is
// not nil. A metaInt below 1 means the stream carries no metadata and every
// byte is audio.
func NewDeinterleaver(metaInt int, onBlock func([]byte), audio io.Writer) *Deinterleaver {
	return &Deinterleaver{metaInt: metaInt, onBlock: onBlock, audio: audio, left: metaInt}
}

// Write consumes p. It only fails when the audio writer fails.
func (d *Deinterleaver) Write(p []byte) (int, error) {
	if d.metaInt <= 0 {
		if d.audio == nil {
			return len(p), nil
		}
		n, err := d.audio.Write(p)
		return n, errors.Wrap(err, "write audio")
	}
	total := len(p)
	for len(p) > 0 {
		switch d.state {
		case stateAudio:
			k := min(d.left, len(p))
			if d.audio != nil {
				if _, err := d.audio.Write(p[:k]); err != nil {
					return total - len(p), errors.Wrap(err, "write audio")
				}
			}
			p = p[k:]
			d.left -= k
			if d.left == 0 {
				d.state = stateLength
			}
		case stateLength:
			size := int(p[0]) * 16
			p = p[1:]
			if size == 0 {
				d.state, d.left = stateAudio, d.metaInt
				continue
			}
			d.state, d.left = stateBlock, size
			d.block = d.block[:0]
		case stateBlock:
			k := min(d.left, len(p))
			d.block = append(d.block, p[:k]...)
			p = p[k:]
			d.left -= k
			if d.left == 0 {
				if d.onBlock != nil {
					d.onBlock(append([]byte(nil), d.block...))
				}
				d.state, d.left = stateAudio, d.metaInt
			}
		}
	}
	return total, nil
}
