package sink

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Mode selects how the builder chooses the video path.
type Mode int

const (
	// ModeAuto uses the accelerated path when the surface offers a context.
	ModeAuto Mode = iota
	// ModeAccelerated prefers the accelerated path and warns when it falls back.
	ModeAccelerated
	// ModeSoftware always uses the conversion path.
	ModeSoftware
)

func (m Mode) String() string {
	switch m {
	case ModeAccelerated:
		return "on"
	case ModeSoftware:
		return "off"
	default:
		return "auto"
	}
}

// ParseMode accepts the config spellings auto, on and off.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "on", "accelerated", "true":
		return ModeAccelerated, nil
	case "off", "software", "false":
		return ModeSoftware, nil
	}
	return ModeAuto, fmt.Errorf("unknown acceleration mode %q (valid: auto, on, off)", s)
}

// Builder constructs a sink graph.
type Builder interface {
	Build() (*Graph, error)
}

// GraphBuilder probes a surface and builds the matching graph.
type GraphBuilder struct {
	Surface   Surface
	Audio     func() (Audio, error)
	Mode      Mode
	Converter Converter
	// FrameInterval paces the software path.
	FrameInterval time.Duration
	Log           *logrus.Entry
}

var _ Builder = (*GraphBuilder)(nil)

// Build constructs the graph and binds its video end to the surface. Any
// sink element that cannot be constructed yields ErrSinkUnavailable.
func (b *GraphBuilder) Build() (*Graph, error) {
	log := b.Log
	if log == nil {
		log = logrus.WithField("component", "sink")
	}
	if b.Surface == nil {
		return nil, fmt.Errorf("%w: no rendering surface", ErrSinkUnavailable)
	}
	if b.Audio == nil {
		return nil, fmt.Errorf("%w: no audio output", ErrSinkUnavailable)
	}

	audio, err := b.Audio()
	if err == nil && audio == nil {
		err = errors.New("backend returned no output")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: audio: %v", ErrSinkUnavailable, err)
	}

	video, err := b.video(log)
	if err != nil {
		_ = audio.Close()
		return nil, fmt.Errorf("%w: video: %v", ErrSinkUnavailable, err)
	}

	b.Surface.Bind(video)
	log.WithFields(logrus.Fields{
		"audio":       audio.Name(),
		"video":       video.Name(),
		"accelerated": video.Accelerated(),
	}).Info("sink graph built")
	return &Graph{Audio: audio, Video: video}, nil
}

func (b *GraphBuilder) video(log *logrus.Entry) (Video, error) {
	if b.Mode != ModeSoftware {
		if ctx, ok := b.Surface.AcceleratedContext(); ok && ctx.Handle != 0 {
			return NewDirect(ctx), nil
		}
		if b.Mode == ModeAccelerated {
			log.Warn("surface has no hardware rendering context, using the conversion path")
		}
	}

	base, err := b.Surface.FrameSink()
	if err != nil {
		return nil, err
	}
	if base == nil {
		return nil, errors.New("surface returned no frame sink")
	}
	c := NewComposite(b.Converter, base)
	c.interval = b.FrameInterval
	return c, nil
}
