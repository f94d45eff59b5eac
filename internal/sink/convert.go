package sink

import (
	"image"
	"image/color"
	"sync"
	"time"

	"golang.org/x/image/draw"
)

var background = color.RGBA{20, 20, 20, 255}

// Converter is the format-conversion stage of the software path. It turns
// any decoded image into RGBA, scaled to fit Width x Height while keeping
// the aspect ratio. A zero size keeps the source size.
type Converter struct {
	Width, Height int
	Scaler        draw.Scaler
}

// Convert returns src as a fresh RGBA frame.
func (c Converter) Convert(src image.Image) *image.RGBA {
	sb := src.Bounds()
	if c.Width <= 0 || c.Height <= 0 {
		dst := image.NewRGBA(image.Rect(0, 0, sb.Dx(), sb.Dy()))
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Src)
		return dst
	}

	dst := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)
	if sb.Empty() {
		return dst
	}

	scaler := c.Scaler
	if scaler == nil {
		scaler = draw.ApproxBiLinear
	}
	scaler.Scale(dst, fit(sb, dst.Bounds()), src, sb, draw.Src, nil)
	return dst
}

// fit returns the largest rectangle with src's aspect ratio centred in box.
func fit(src, box image.Rectangle) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	bw, bh := box.Dx(), box.Dy()
	w, h := bw, sh*bw/sw
	if h > bh {
		w, h = sw*bh/sh, bh
	}
	x := box.Min.X + (bw-w)/2
	y := box.Min.Y + (bh-h)/2
	return image.Rect(x, y, x+w, y+h)
}

// Placeholder is the frame shown while nothing has been rendered.
func Placeholder(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)
	return img
}

// Composite is the software video sink: a conversion stage linked to a base
// frame sink.
type Composite struct {
	convert  Converter
	base     FrameSink
	interval time.Duration

	mu     sync.Mutex
	closed bool
}

func NewComposite(convert Converter, base FrameSink) *Composite {
	return &Composite{convert: convert, base: base}
}

func (c *Composite) Name() string      { return "software" }
func (c *Composite) Accelerated() bool { return false }

// Interval is how often pipelines should push a frame. Zero lets the
// frame pump pick its default.
func (c *Composite) Interval() time.Duration { return c.interval }

// Width is the width frames are converted to, or 0 for the source size.
func (c *Composite) Width() int { return c.convert.Width }

// Push converts a decoded frame and presents it. Frames pushed after Close
// are dropped.
func (c *Composite) Push(frame image.Image) {
	out := c.convert.Convert(frame)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.base.Present(out)
}

// Clear presents the placeholder frame.
func (c *Composite) Clear() {
	w, h := c.convert.Width, c.convert.Height
	if w <= 0 || h <= 0 {
		w, h = 320, 180
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.base.Present(Placeholder(w, h))
}

func (c *Composite) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}
