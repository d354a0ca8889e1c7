package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"sync"

	"fyne.io/fyne/v2"
	"golang.org/x/image/vector"
)

// IconKind selects the tray icon variant.
type IconKind int

const (
	IconIdle IconKind = iota
	IconPlaying
	IconMuted
)

const iconSize = 64

var (
	colIdle    = color.RGBA{0x6b, 0x72, 0x80, 0xff}
	colPlaying = color.RGBA{0x1e, 0x88, 0xe5, 0xff}
	colMuted   = color.RGBA{0x9e, 0x9e, 0x9e, 0xff}
	colGlyph   = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colSlash   = color.RGBA{0xe5, 0x39, 0x35, 0xff}
)

var (
	iconMu    sync.Mutex
	iconCache = map[IconKind]fyne.Resource{}
)

// Icon returns the PNG resource for kind, rendering it on first use.
func Icon(kind IconKind) fyne.Resource {
	iconMu.Lock()
	defer iconMu.Unlock()
	if res, ok := iconCache[kind]; ok {
		return res
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, renderIcon(kind, iconSize)); err != nil {
		return nil
	}
	res := fyne.NewStaticResource(iconName(kind), buf.Bytes())
	iconCache[kind] = res
	return res
}

func iconName(kind IconKind) string {
	switch kind {
	case IconPlaying:
		return "traywave-playing.png"
	case IconMuted:
		return "traywave-muted.png"
	}
	return "traywave-idle.png"
}

// IconFor picks the variant matching the playback state.
func IconFor(s State) IconKind {
	switch {
	case s.Muted:
		return IconMuted
	case s.Station != "":
		return IconPlaying
	}
	return IconIdle
}

// renderIcon draws a disc with three level bars; muted adds a slash.
func renderIcon(kind IconKind, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	s := float32(size)

	bg := colIdle
	switch kind {
	case IconPlaying:
		bg = colPlaying
	case IconMuted:
		bg = colMuted
	}
	fill(dst, bg, func(z *vector.Rasterizer) { circle(z, s/2, s/2, s/2-1) })

	bars := []float32{0.30, 0.50, 0.38}
	if kind == IconIdle {
		bars = []float32{0.16, 0.16, 0.16}
	}
	barW := s * 0.12
	gap := s * 0.06
	left := s/2 - (3*barW+2*gap)/2
	for i, h := range bars {
		x := left + float32(i)*(barW+gap)
		top, bottom := s/2-s*h/2, s/2+s*h/2
		fill(dst, colGlyph, func(z *vector.Rasterizer) {
			polygon(z, x, top, x+barW, top, x+barW, bottom, x, bottom)
		})
	}

	if kind == IconMuted {
		fill(dst, colSlash, func(z *vector.Rasterizer) {
			thickLine(z, s*0.2, s*0.2, s*0.8, s*0.8, s*0.1)
		})
	}
	return dst
}

func fill(dst *image.RGBA, c color.RGBA, path func(z *vector.Rasterizer)) {
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over
	path(z)
	z.Draw(dst, b, image.NewUniform(c), image.Point{})
}

// kappa places cubic control points so four segments approximate a circle.
const kappa = 0.5522847

func circle(z *vector.Rasterizer, cx, cy, r float32) {
	k := r * kappa
	z.MoveTo(cx+r, cy)
	z.CubeTo(cx+r, cy+k, cx+k, cy+r, cx, cy+r)
	z.CubeTo(cx-k, cy+r, cx-r, cy+k, cx-r, cy)
	z.CubeTo(cx-r, cy-k, cx-k, cy-r, cx, cy-r)
	z.CubeTo(cx+k, cy-r, cx+r, cy-k, cx+r, cy)
	z.ClosePath()
}

func polygon(z *vector.Rasterizer, pts ...float32) {
	if len(pts) < 6 {
		return
	}
	z.MoveTo(pts[0], pts[1])
	for i := 2; i+1 < len(pts); i += 2 {
		z.LineTo(pts[i], pts[i+1])
	}
	z.ClosePath()
}

func thickLine(z *vector.Rasterizer, x0, y0, x1, y1, w float32) {
	dx, dy := x1-x0, y1-y0
	l := float32(math.Hypot(float64(dx), float64(dy)))
	if l == 0 {
		return
	}
	nx, ny := -dy/l*w/2, dx/l*w/2
	polygon(z, x0+nx, y0+ny, x1+nx, y1+ny, x1-nx, y1-ny, x0-nx, y0-ny)
}
