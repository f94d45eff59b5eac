package playback

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"gemini/internal/engine"
	"gemini/internal/engine/enginetest"
	"gemini/internal/poller"
	"gemini/internal/sink"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepTicker struct {
	c chan time.Time
}

func (t *stepTicker) C() <-chan time.Time { return t.c }
func (t *stepTicker) Stop()               {}

type stepClock struct {
	mu     sync.Mutex
	latest *stepTicker
	armed  int
}

func (c *stepClock) NewTicker(time.Duration) poller.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = &stepTicker{c: make(chan time.Time)}
	c.armed++
	return c.latest
}

func (c *stepClock) tick(t *testing.T) {
	t.Helper()
	c.mu.Lock()
	tk := c.latest
	c.mu.Unlock()
	require.NotNil(t, tk)
	select {
	case tk.c <- time.Now():
	case <-time.After(time.Second):
		t.Fatal("poller is not reading its ticker")
	}
}

type fixture struct {
	ctl     *Controller
	loop    *enginetest.Loop
	pipe    *enginetest.Pipeline
	builder *enginetest.Builder
	backend *enginetest.Backend
	clock   *stepClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l, _ := logtest.NewNullLogger()
	f := &fixture{
		loop:    enginetest.NewLoop(),
		pipe:    enginetest.NewPipeline(),
		builder: &enginetest.Builder{},
		clock:   &stepClock{},
	}
	f.backend = &enginetest.Backend{Pipe: f.pipe}
	ctl, err := New(Config{
		Builder:      f.builder,
		Backend:      f.backend,
		Dispatch:     f.loop.Do,
		PollInterval: time.Second,
		NewTicker:    f.clock.NewTicker,
		Log:          logrus.NewEntry(l),
	})
	require.NoError(t, err)
	f.ctl = ctl
	t.Cleanup(func() { _ = ctl.Close() })
	return f
}

// emit posts ev from the pipeline and runs it on the loop.
func (f *fixture) emit(t *testing.T, ev engine.Event) {
	t.Helper()
	f.pipe.Emit(ev)
	require.True(t, f.loop.Await(1, time.Second), "event %s not delivered", ev.Kind)
}

func (f *fixture) load(t *testing.T, uri string, total time.Duration) {
	t.Helper()
	f.ctl.LoadSource(uri)
	f.emit(t, engine.Duration(f.pipe.LastGen(), total))
	require.Equal(t, Ready, f.ctl.State().Get())
}

func (f *fixture) playing(t *testing.T, uri string, total time.Duration) {
	t.Helper()
	f.load(t, uri, total)
	f.ctl.TogglePlay()
	require.Equal(t, Playing, f.ctl.State().Get())
}

func TestStartupWithoutSink(t *testing.T) {
	builder := &enginetest.Builder{Err: fmt.Errorf("%w: no audio device", sink.ErrSinkUnavailable)}
	backend := &enginetest.Backend{Pipe: enginetest.NewPipeline()}
	loop := enginetest.NewLoop()

	ctl, err := New(Config{Builder: builder, Backend: backend, Dispatch: loop.Do})
	require.ErrorIs(t, err, sink.ErrSinkUnavailable)
	assert.Nil(t, ctl)
	assert.Zero(t, backend.Opens())
	assert.Empty(t, backend.Pipe.Loads())
}

func TestInitialState(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, Idle, f.ctl.State().Get())
	assert.False(t, f.ctl.ControlsEnabled().Get())
	assert.Equal(t, IconPlay, f.ctl.Icon().Get())
	assert.Equal(t, "00:00", f.ctl.ElapsedText().Get())
	assert.False(t, f.ctl.Polling())
	assert.True(t, f.ctl.Accelerated())
	assert.Equal(t, 1, f.builder.Builds())
}

func TestLoadThenDurationKnown(t *testing.T) {
	f := newFixture(t)

	f.ctl.LoadSource("file:///a.mp4")
	assert.Equal(t, Loading, f.ctl.State().Get())
	assert.False(t, f.ctl.ControlsEnabled().Get())
	assert.Equal(t, "file:///a.mp4", f.ctl.URI().Get())
	require.Len(t, f.pipe.Loads(), 1)

	f.emit(t, engine.Duration(f.pipe.LastGen(), 120*time.Second))
	assert.Equal(t, Ready, f.ctl.State().Get())
	assert.True(t, f.ctl.ControlsEnabled().Get())
	assert.Equal(t, Controls{PlayPause: true, Seek: true, Skip: true}, f.ctl.Controls().Get())
	assert.Equal(t, Range{Min: 0, Max: 120}, f.ctl.SliderRange().Get())
	assert.Equal(t, "02:00", f.ctl.DurationText().Get())
	assert.False(t, f.ctl.Polling())
}

func TestTogglePlayFromReady(t *testing.T) {
	f := newFixture(t)
	f.load(t, "file:///a.mp4", 120*time.Second)

	f.ctl.TogglePlay()
	assert.Equal(t, Playing, f.ctl.State().Get())
	assert.True(t, f.ctl.Playing().Get())
	assert.True(t, f.ctl.Polling())
	assert.Equal(t, IconPause, f.ctl.Icon().Get())
	assert.Equal(t, 1, f.pipe.Plays())
}

func TestTogglePlayPauses(t *testing.T) {
	f := newFixture(t)
	f.playing(t, "file:///a.mp4", 120*time.Second)

	f.ctl.TogglePlay()
	assert.Equal(t, Paused, f.ctl.State().Get())
	assert.False(t, f.ctl.Polling())
	assert.Equal(t, IconPlay, f.ctl.Icon().Get())
	assert.Equal(t, 1, f.pipe.Pauses())

	f.ctl.TogglePlay()
	assert.Equal(t, Playing, f.ctl.State().Get())
	assert.True(t, f.ctl.Polling())
	assert.Equal(t, 2, f.clock.armed)
}

func TestTogglePlayIgnoredWhileLoading(t *testing.T) {
	f := newFixture(t)
	f.ctl.TogglePlay()
	assert.Equal(t, Idle, f.ctl.State().Get())

	f.ctl.LoadSource("file:///a.mp4")
	f.ctl.TogglePlay()
	assert.Equal(t, Loading, f.ctl.State().Get())
	assert.Zero(t, f.pipe.Plays())
	assert.False(t, f.ctl.Polling())
}

func TestSeekClampsWhilePlaying(t *testing.T) {
	f := newFixture(t)
	f.playing(t, "file:///a.mp4", 120*time.Second)

	assert.Equal(t, SeekApplied, f.ctl.Seek(200))
	assert.Equal(t, Playing, f.ctl.State().Get())
	assert.Equal(t, 120.0, f.ctl.SliderPosition().Get())
	assert.Equal(t, "02:00", f.ctl.ElapsedText().Get())

	assert.Equal(t, SeekApplied, f.ctl.Seek(-5))
	assert.Equal(t, 0.0, f.ctl.SliderPosition().Get())
	assert.Equal(t, []time.Duration{120 * time.Second, 0}, f.pipe.Seeks())
}

func TestSeekWhileDurationUnknown(t *testing.T) {
	f := newFixture(t)
	f.ctl.LoadSource("file:///a.mp4")

	assert.Equal(t, SeekRejected, f.ctl.Seek(10))
	assert.Equal(t, Loading, f.ctl.State().Get())
	assert.Zero(t, f.ctl.SliderPosition().Get())
	assert.Empty(t, f.pipe.Seeks())
}

func TestSeekIgnoredWithoutSource(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, SeekIgnored, f.ctl.Seek(10))
	f.load(t, "file:///a.mp4", time.Minute)
	assert.Equal(t, SeekIgnored, f.ctl.Seek(math.NaN()))
}

func TestSeekByIsRelative(t *testing.T) {
	f := newFixture(t)
	f.load(t, "file:///a.mp4", time.Minute)

	assert.Equal(t, SeekApplied, f.ctl.SeekBy(5*time.Second))
	assert.Equal(t, SeekApplied, f.ctl.SeekBy(5*time.Second))
	assert.Equal(t, 10.0, f.ctl.SliderPosition().Get())
	assert.Equal(t, SeekApplied, f.ctl.SeekBy(-time.Minute))
	assert.Zero(t, f.ctl.SliderPosition().Get())
}

func TestNewSourceWhilePlaying(t *testing.T) {
	f := newFixture(t)
	f.playing(t, "file:///a.mp4", 120*time.Second)
	genA := f.pipe.LastGen()
	f.ctl.Seek(30)

	var pollingWhenLoading []bool
	cancel := f.ctl.State().Subscribe(func(s State) {
		if s == Loading {
			pollingWhenLoading = append(pollingWhenLoading, f.ctl.Polling())
		}
	})
	defer cancel()

	f.ctl.LoadSource("file:///b.mp4")
	assert.Equal(t, []bool{false}, pollingWhenLoading, "poller stops before Loading is published")
	assert.Equal(t, Loading, f.ctl.State().Get())
	assert.False(t, f.ctl.ControlsEnabled().Get())
	assert.Zero(t, f.ctl.SliderPosition().Get())
	assert.Equal(t, Range{}, f.ctl.SliderRange().Get())

	f.emit(t, engine.Duration(genA, 90*time.Second))
	f.emit(t, engine.Position(genA, 45*time.Second))
	assert.Equal(t, Loading, f.ctl.State().Get())
	assert.Equal(t, Range{}, f.ctl.SliderRange().Get())
	assert.Zero(t, f.ctl.SliderPosition().Get())

	f.emit(t, engine.Duration(f.pipe.LastGen(), 60*time.Second))
	assert.Equal(t, Ready, f.ctl.State().Get())
	assert.Equal(t, Range{Max: 60}, f.ctl.SliderRange().Get())
}

func TestTickUpdatesPosition(t *testing.T) {
	f := newFixture(t)
	f.playing(t, "file:///a.mp4", 2*time.Hour)

	f.pipe.SetPosition(time.Hour + 2*time.Minute + 3*time.Second + 400*time.Millisecond)
	f.clock.tick(t)
	require.True(t, f.loop.Await(1, time.Second))
	assert.Equal(t, "1:02:03", f.ctl.ElapsedText().Get())
	assert.InDelta(t, 3723.4, f.ctl.SliderPosition().Get(), 1e-9)
}

func TestPositionEventUpdatesDisplay(t *testing.T) {
	f := newFixture(t)
	f.playing(t, "file:///a.mp4", time.Minute)

	f.emit(t, engine.Position(f.pipe.LastGen(), 12*time.Second))
	assert.Equal(t, "00:12", f.ctl.ElapsedText().Get())
}

func TestPlaybackErrorFromPlaying(t *testing.T) {
	f := newFixture(t)
	f.playing(t, "file:///a.mp4", time.Minute)

	boom := errors.New("decoder crashed")
	f.emit(t, engine.Failure(f.pipe.LastGen(), boom))
	assert.Equal(t, Errored, f.ctl.State().Get())
	assert.False(t, f.ctl.ControlsEnabled().Get())
	assert.False(t, f.ctl.Polling())
	assert.ErrorIs(t, f.ctl.Error().Get(), boom)

	f.ctl.TogglePlay()
	assert.Equal(t, Errored, f.ctl.State().Get(), "no retry")

	f.ctl.LoadSource("file:///b.mp4")
	assert.Equal(t, Loading, f.ctl.State().Get())
	assert.NoError(t, f.ctl.Error().Get())
}

func TestLoadFailure(t *testing.T) {
	f := newFixture(t)
	f.pipe.LoadErr = errors.New("no such file")

	f.ctl.LoadSource("file:///missing.mp4")
	require.Equal(t, 1, f.loop.Drain())
	assert.Equal(t, Errored, f.ctl.State().Get())
	assert.ErrorIs(t, f.ctl.Error().Get(), engine.ErrSourceLoad)
}

func TestEndReached(t *testing.T) {
	f := newFixture(t)
	f.playing(t, "file:///a.mp4", time.Minute)

	f.emit(t, engine.End(f.pipe.LastGen()))
	assert.Equal(t, Ready, f.ctl.State().Get())
	assert.False(t, f.ctl.Polling())
	assert.Equal(t, 60.0, f.ctl.SliderPosition().Get())

	f.ctl.TogglePlay()
	assert.Equal(t, Playing, f.ctl.State().Get())
	assert.Zero(t, f.ctl.SliderPosition().Get())
	assert.Equal(t, []time.Duration{0}, f.pipe.Seeks())
}

func TestFullscreenIsOrthogonal(t *testing.T) {
	f := newFixture(t)
	f.playing(t, "file:///a.mp4", time.Minute)

	f.ctl.ToggleFullscreen()
	assert.True(t, f.ctl.Fullscreen().Get())
	assert.Equal(t, Playing, f.ctl.State().Get())
	assert.True(t, f.ctl.Polling())

	f.ctl.ToggleFullscreen()
	assert.False(t, f.ctl.Fullscreen().Get())
	f.ctl.SetFullscreen(true)
	assert.True(t, f.ctl.Fullscreen().Get())
}

func TestOpenUsesFirstCandidate(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ctl.Open([]string{"file:///a.mp4", "file:///b.mp4"}, nil))
	assert.Equal(t, "file:///a.mp4", f.ctl.URI().Get())
	require.Len(t, f.pipe.Loads(), 1)
}

func TestOpenFailureLeavesState(t *testing.T) {
	f := newFixture(t)
	f.load(t, "file:///a.mp4", time.Minute)

	tests := []struct {
		name    string
		uris    []string
		readErr error
	}{
		{"empty list", nil, nil},
		{"blank entry", []string{" "}, nil},
		{"read failure", []string{"file:///b.mp4"}, errors.New("permission denied")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.ctl.Open(tt.uris, tt.readErr)
			require.Error(t, err)
			assert.Equal(t, Ready, f.ctl.State().Get())
			assert.True(t, f.ctl.ControlsEnabled().Get())
			assert.Equal(t, "file:///a.mp4", f.ctl.URI().Get())
		})
	}
	assert.Len(t, f.pipe.Loads(), 1)
}

func TestCloseStopsEverything(t *testing.T) {
	f := newFixture(t)
	f.playing(t, "file:///a.mp4", time.Minute)
	f.pipe.Emit(engine.Position(f.pipe.LastGen(), 5*time.Second))
	require.Eventually(t, func() bool { return f.loop.Pending() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, f.ctl.Close())
	assert.False(t, f.ctl.Polling())
	assert.True(t, f.pipe.Closed())
	assert.Equal(t, 1, f.builder.Released())

	f.loop.Drain()
	assert.Equal(t, "00:00", f.ctl.ElapsedText().Get())

	f.ctl.LoadSource("file:///b.mp4")
	f.ctl.TogglePlay()
	assert.Equal(t, SeekIgnored, f.ctl.Seek(1))
	assert.Len(t, f.pipe.Loads(), 1)
	require.NoError(t, f.ctl.Close())
}
