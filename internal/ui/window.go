// Package ui is the fyne presentation of a player window: the video
// surface, the transport bar and file intake. It holds no playback state of
// its own; every widget follows an observable of the controller.
package ui

import (
	"time"

	"gemini/internal/engine"
	"gemini/internal/observe"
	"gemini/internal/playback"
	"gemini/internal/sink"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"
)

// Options configures a window.
type Options struct {
	Title         string
	Width, Height int
	Fullscreen    bool

	Backend       engine.Backend
	Mode          sink.Mode
	Converter     sink.Converter
	FrameInterval time.Duration
	PollInterval  time.Duration

	// Open is loaded once the window has started.
	Open []string
	Log  *logrus.Entry
}

// Window is one player window.
type Window struct {
	win     fyne.Window
	opts    Options
	log     *logrus.Entry
	surface *Surface
	ctl     *playback.Controller

	title   binding.String
	elapsed binding.String
	total   binding.String
	status  binding.String
	pos     binding.Float

	playBtn *widget.Button
	prevBtn *widget.Button
	nextBtn *widget.Button
	fullBtn *widget.Button
	slider  *widget.Slider

	cancels []func()
	onClose []func()
}

// New lays out the window. Nothing can be played before Start.
func New(a fyne.App, opts Options) *Window {
	log := opts.Log
	if log == nil {
		log = logrus.WithField("component", "ui")
	}
	if opts.Title == "" {
		opts.Title = "Gemini"
	}
	w := &Window{
		win:     a.NewWindow(opts.Title),
		opts:    opts,
		log:     log,
		title:   binding.NewString(),
		elapsed: binding.NewString(),
		total:   binding.NewString(),
		status:  binding.NewString(),
		pos:     binding.NewFloat(),
	}
	_ = w.elapsed.Set(playback.FormatClock(0))
	_ = w.total.Set(playback.FormatClock(0))

	fw, fh := opts.Converter.Width, opts.Converter.Height
	if fw <= 0 || fh <= 0 {
		fw, fh = 640, 360
	}
	w.surface = NewSurface(w.win, fw, fh)

	w.playBtn = widget.NewButtonWithIcon("", theme.MediaPlayIcon(), func() { w.intent(func(c *playback.Controller) { c.TogglePlay() }) })
	w.prevBtn = widget.NewButtonWithIcon("", theme.MediaSkipPreviousIcon(), func() { w.intent(func(c *playback.Controller) { c.Previous() }) })
	w.nextBtn = widget.NewButtonWithIcon("", theme.MediaSkipNextIcon(), func() { w.intent(func(c *playback.Controller) { c.Next() }) })
	w.fullBtn = widget.NewButtonWithIcon("", theme.ViewFullScreenIcon(), func() { w.intent(func(c *playback.Controller) { c.ToggleFullscreen() }) })
	openBtn := widget.NewButtonWithIcon("Open", theme.FolderOpenIcon(), w.showOpenDialog)

	w.slider = widget.NewSliderWithData(0, 1, w.pos)
	w.slider.Step = 0.1
	w.slider.OnChangeEnded = func(v float64) {
		w.intent(func(c *playback.Controller) { c.Seek(v) })
	}
	for _, o := range []fyne.Disableable{w.playBtn, w.prevBtn, w.nextBtn, w.slider} {
		o.Disable()
	}

	titleLbl := widget.NewLabelWithData(w.title)
	titleLbl.Truncation = fyne.TextTruncateEllipsis
	titleLbl.TextStyle = fyne.TextStyle{Bold: true}
	statusLbl := widget.NewLabelWithData(w.status)
	statusLbl.Truncation = fyne.TextTruncateEllipsis

	timeline := container.NewBorder(nil, nil,
		widget.NewLabelWithData(w.elapsed), widget.NewLabelWithData(w.total), w.slider)
	transport := container.NewBorder(nil, nil,
		container.NewHBox(w.prevBtn, w.playBtn, w.nextBtn),
		container.NewHBox(openBtn, w.fullBtn),
		container.NewVBox(titleLbl, statusLbl))
	w.win.SetContent(container.NewBorder(nil, container.NewVBox(timeline, transport), nil, nil,
		container.NewStack(w.surface.Object())))

	w.win.Resize(fyne.NewSize(float32(opts.Width), float32(opts.Height)))
	w.win.SetMaster()
	w.win.SetOnClosed(w.Close)
	return w
}

// Start probes the native window, builds the controller and connects the
// widgets to it. It runs on the main goroutine once the app has started.
// The error wraps sink.ErrSinkUnavailable when no graph could be built.
func (w *Window) Start() (*playback.Controller, error) {
	w.surface.Probe()
	ctl, err := playback.New(playback.Config{
		Builder: &sink.GraphBuilder{
			Surface:       w.surface,
			Audio:         w.opts.Backend.OpenAudio,
			Mode:          w.opts.Mode,
			Converter:     w.opts.Converter,
			FrameInterval: w.opts.FrameInterval,
			Log:           w.log.WithField("component", "sink"),
		},
		Backend:      w.opts.Backend,
		Dispatch:     fyne.Do,
		PollInterval: w.opts.PollInterval,
		Log:          w.log.WithField("component", "playback"),
	})
	if err != nil {
		return nil, err
	}
	w.ctl = ctl
	w.follow(ctl)

	w.win.SetOnDropped(func(_ fyne.Position, uris []fyne.URI) {
		_ = ctl.Open(uriStrings(uris), nil)
	})
	w.win.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) { w.handleKey(ev.Name) })

	if w.opts.Fullscreen {
		ctl.SetFullscreen(true)
	}
	if len(w.opts.Open) > 0 {
		_ = ctl.Open(w.opts.Open, nil)
	}
	w.log.WithFields(logrus.Fields{
		"backend":     w.opts.Backend.Name(),
		"accelerated": ctl.Accelerated(),
	}).Info("window ready")
	return ctl, nil
}

// follow subscribes every widget to the controller.
func (w *Window) follow(ctl *playback.Controller) {
	w.cancels = append(w.cancels,
		set(ctl.ElapsedText(), w.elapsed),
		set(ctl.DurationText(), w.total),
		set(ctl.SliderPosition(), w.pos),
		ctl.URI().Subscribe(func(uri string) {
			_ = w.title.Set(displayName(uri))
			if uri == "" {
				w.win.SetTitle(w.opts.Title)
			} else {
				w.win.SetTitle(displayName(uri) + " - " + w.opts.Title)
			}
		}),
		ctl.SliderRange().Subscribe(func(r playback.Range) {
			w.slider.Min, w.slider.Max = r.Min, max(r.Max, r.Min+1)
			w.slider.Refresh()
		}),
		ctl.Controls().Subscribe(func(c playback.Controls) {
			enable(w.playBtn, c.PlayPause)
			enable(w.slider, c.Seek)
			enable(w.prevBtn, c.Skip)
			enable(w.nextBtn, c.Skip)
		}),
		ctl.Icon().Subscribe(func(icon string) {
			if icon == playback.IconPause {
				w.playBtn.SetIcon(theme.MediaPauseIcon())
			} else {
				w.playBtn.SetIcon(theme.MediaPlayIcon())
			}
		}),
		ctl.Fullscreen().Subscribe(func(on bool) {
			w.win.SetFullScreen(on)
			if on {
				w.fullBtn.SetIcon(theme.ViewRestoreIcon())
			} else {
				w.fullBtn.SetIcon(theme.ViewFullScreenIcon())
			}
		}),
		ctl.State().Subscribe(func(s playback.State) {
			if s == playback.Loading {
				_ = w.status.Set("Loading...")
			} else if s != playback.Errored {
				_ = w.status.Set("")
			}
		}),
		ctl.Error().Subscribe(func(err error) {
			if err != nil {
				_ = w.status.Set(err.Error())
			}
		}),
	)
}

func set[T any](v *observe.Value[T], b interface{ Set(T) error }) func() {
	return v.Subscribe(func(x T) { _ = b.Set(x) })
}

func enable(o fyne.Disableable, on bool) {
	if on {
		o.Enable()
	} else {
		o.Disable()
	}
}

// intent forwards a user action once the controller exists.
func (w *Window) intent(fn func(*playback.Controller)) {
	if w.ctl != nil {
		fn(w.ctl)
	}
}

func (w *Window) handleKey(key fyne.KeyName) {
	w.intent(func(c *playback.Controller) {
		switch keyAction(key) {
		case togglePlay:
			c.TogglePlay()
		case toggleFullscreen:
			c.ToggleFullscreen()
		case leaveFullscreen:
			c.SetFullscreen(false)
		case seekBack:
			c.SeekBy(-SeekStep)
		case seekForward:
			c.SeekBy(SeekStep)
		}
	})
}

func (w *Window) showOpenDialog() {
	dialog.ShowFileOpen(func(r fyne.URIReadCloser, err error) {
		uris, ok, readErr := pickedFile(r, err)
		if !ok {
			return
		}
		w.intent(func(c *playback.Controller) { _ = c.Open(uris, readErr) })
	}, w.win)
}

// OnClose registers fn to run when the window closes.
func (w *Window) OnClose(fn func()) {
	w.onClose = append(w.onClose, fn)
}

// ShowAndRun shows the window and runs the app until it quits.
func (w *Window) ShowAndRun() {
	w.win.ShowAndRun()
}

// Close unsubscribes the widgets and releases the controller.
func (w *Window) Close() {
	for i := len(w.onClose) - 1; i >= 0; i-- {
		w.onClose[i]()
	}
	w.onClose = nil
	for _, cancel := range w.cancels {
		cancel()
	}
	w.cancels = nil
	if w.ctl != nil {
		if err := w.ctl.Close(); err != nil {
			w.log.WithError(err).Warn("closing playback failed")
		}
	}
}
