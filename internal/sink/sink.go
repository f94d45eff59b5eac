// Package sink builds the audio/video rendering graph a pipeline renders
// into. The graph is decided once per engine: either a direct sink bound to
// a hardware-backed rendering context, or a software path where a
// conversion stage feeds frames to a base image sink. Pipelines see both
// through the same Video interface.
package sink

import (
	"errors"
	"image"

	"go.uber.org/multierr"
)

// ErrSinkUnavailable means no rendering graph can be constructed for the
// window, so nothing can ever be played in it.
var ErrSinkUnavailable = errors.New("sink unavailable")

// Platform names the windowing system a native handle belongs to.
type Platform string

const (
	PlatformX11     Platform = "x11"
	PlatformWayland Platform = "wayland"
	PlatformWindows Platform = "windows"
	PlatformDarwin  Platform = "darwin"
)

// Context is a hardware-backed rendering context exposed by a surface.
type Context struct {
	Platform Platform
	Handle   uintptr
}

// FrameSink is the terminal stage of the software path.
type FrameSink interface {
	Present(frame *image.RGBA)
}

// Surface is the presentation-side area video is rendered to.
type Surface interface {
	// AcceleratedContext reports the native rendering context, if the
	// surface can expose one.
	AcceleratedContext() (Context, bool)
	// FrameSink returns the base image sink used by the software path.
	FrameSink() (FrameSink, error)
	// Bind hands the constructed video sink to the presentation layer.
	Bind(v Video)
}

// Audio is an audio output.
type Audio interface {
	Name() string
	Close() error
}

// Video is the video end of the graph.
type Video interface {
	Name() string
	Accelerated() bool
	Close() error
}

// Graph is the constructed rendering graph. It is immutable once built.
type Graph struct {
	Audio Audio
	Video Video
}

// Accelerated reports whether video goes straight to a hardware context.
func (g *Graph) Accelerated() bool {
	return g != nil && g.Video != nil && g.Video.Accelerated()
}

// Close releases both ends of the graph.
func (g *Graph) Close() error {
	if g == nil {
		return nil
	}
	var err error
	if g.Video != nil {
		err = multierr.Append(err, g.Video.Close())
	}
	if g.Audio != nil {
		err = multierr.Append(err, g.Audio.Close())
	}
	return err
}

// Output is an Audio implemented by a backend-owned device.
type Output struct {
	label   string
	release func() error
}

// NewOutput wraps a backend audio device. release may be nil.
func NewOutput(label string, release func() error) *Output {
	return &Output{label: label, release: release}
}

func (o *Output) Name() string { return o.label }

func (o *Output) Close() error {
	if o.release == nil {
		return nil
	}
	r := o.release
	o.release = nil
	return r()
}

// Direct renders straight into a native window handle.
type Direct struct {
	ctx Context
}

func NewDirect(ctx Context) *Direct { return &Direct{ctx: ctx} }

func (d *Direct) Name() string      { return "direct/" + string(d.ctx.Platform) }
func (d *Direct) Accelerated() bool { return true }
func (d *Direct) Context() Context  { return d.ctx }
func (d *Direct) Close() error      { return nil }
