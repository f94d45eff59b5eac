package sink

import (
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSurface struct {
	ctx     Context
	hasCtx  bool
	sinkErr error

	mu     sync.Mutex
	bound  Video
	frames []*image.RGBA
}

func (s *fakeSurface) AcceleratedContext() (Context, bool) { return s.ctx, s.hasCtx }

func (s *fakeSurface) FrameSink() (FrameSink, error) {
	if s.sinkErr != nil {
		return nil, s.sinkErr
	}
	return s, nil
}

func (s *fakeSurface) Bind(v Video) { s.bound = v }

func (s *fakeSurface) Present(frame *image.RGBA) {
	s.mu.Lock()
	s.frames = append(s.frames, frame)
	s.mu.Unlock()
}

func (s *fakeSurface) presented() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

type fakeAudio struct{ closed bool }

func (a *fakeAudio) Name() string { return "fake" }

func (a *fakeAudio) Close() error {
	a.closed = true
	return nil
}

func quietLog() *logrus.Entry {
	l, _ := logtest.NewNullLogger()
	return logrus.NewEntry(l)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"auto", ModeAuto, false},
		{"ON", ModeAccelerated, false},
		{"software", ModeSoftware, false},
		{"off", ModeSoftware, false},
		{"gpu", ModeAuto, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildAcceleratedWhenContextAvailable(t *testing.T) {
	surface := &fakeSurface{ctx: Context{Platform: PlatformX11, Handle: 42}, hasCtx: true}
	b := &GraphBuilder{
		Surface: surface,
		Audio:   func() (Audio, error) { return &fakeAudio{}, nil },
		Log:     quietLog(),
	}

	g, err := b.Build()
	require.NoError(t, err)
	assert.True(t, g.Accelerated())
	direct, ok := g.Video.(*Direct)
	require.True(t, ok)
	assert.Equal(t, uintptr(42), direct.Context().Handle)
	assert.Same(t, g.Video, surface.bound, "surface must be bound before Build returns")
}

func TestBuildSoftwareFallback(t *testing.T) {
	tests := []struct {
		name    string
		surface *fakeSurface
		mode    Mode
	}{
		{"no context", &fakeSurface{}, ModeAuto},
		{"zero handle", &fakeSurface{hasCtx: true}, ModeAuto},
		{"forced software", &fakeSurface{ctx: Context{Handle: 7}, hasCtx: true}, ModeSoftware},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &GraphBuilder{
				Surface:       tt.surface,
				Audio:         func() (Audio, error) { return &fakeAudio{}, nil },
				Mode:          tt.mode,
				Converter:     Converter{Width: 64, Height: 36},
				FrameInterval: 100 * time.Millisecond,
				Log:           quietLog(),
			}
			g, err := b.Build()
			require.NoError(t, err)
			assert.False(t, g.Accelerated())
			composite, ok := g.Video.(*Composite)
			require.True(t, ok)
			assert.Equal(t, 100*time.Millisecond, composite.Interval())
			assert.Equal(t, 64, composite.Width())

			composite.Push(image.NewRGBA(image.Rect(0, 0, 16, 9)))
			require.Equal(t, 1, tt.surface.presented())
			assert.Equal(t, image.Rect(0, 0, 64, 36), tt.surface.frames[0].Bounds())
		})
	}
}

func TestBuildForcedAccelerationWarnsOnFallback(t *testing.T) {
	l, hook := logtest.NewNullLogger()
	b := &GraphBuilder{
		Surface: &fakeSurface{},
		Audio:   func() (Audio, error) { return &fakeAudio{}, nil },
		Mode:    ModeAccelerated,
		Log:     logrus.NewEntry(l),
	}
	g, err := b.Build()
	require.NoError(t, err)
	assert.False(t, g.Accelerated())
	require.NotEmpty(t, hook.Entries)
	assert.Equal(t, logrus.WarnLevel, hook.Entries[0].Level)
}

func TestBuildSinkUnavailable(t *testing.T) {
	t.Run("no surface", func(t *testing.T) {
		_, err := (&GraphBuilder{Audio: func() (Audio, error) { return &fakeAudio{}, nil }}).Build()
		assert.ErrorIs(t, err, ErrSinkUnavailable)
	})

	t.Run("audio fails", func(t *testing.T) {
		surface := &fakeSurface{}
		b := &GraphBuilder{
			Surface: surface,
			Audio:   func() (Audio, error) { return nil, errors.New("no device") },
			Log:     quietLog(),
		}
		_, err := b.Build()
		assert.ErrorIs(t, err, ErrSinkUnavailable)
		assert.Nil(t, surface.bound)
	})

	t.Run("frame sink fails", func(t *testing.T) {
		audio := &fakeAudio{}
		surface := &fakeSurface{sinkErr: errors.New("no canvas")}
		b := &GraphBuilder{
			Surface: surface,
			Audio:   func() (Audio, error) { return audio, nil },
			Log:     quietLog(),
		}
		_, err := b.Build()
		assert.ErrorIs(t, err, ErrSinkUnavailable)
		assert.True(t, audio.closed, "audio output must be released")
		assert.Nil(t, surface.bound)
	})
}

func TestGraphClose(t *testing.T) {
	audio := &fakeAudio{}
	surface := &fakeSurface{}
	composite := NewComposite(Converter{}, surface)
	g := &Graph{Audio: audio, Video: composite}

	require.NoError(t, g.Close())
	assert.True(t, audio.closed)

	composite.Push(image.NewRGBA(image.Rect(0, 0, 2, 2)))
	assert.Zero(t, surface.presented(), "closed composite drops frames")
}
