package ui

import (
	"image"
	"sync"

	"gemini/internal/sink"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver"
)

// Surface is the video area of a window. It offers the window's native
// handle to the accelerated path and a canvas.Image to the software path.
type Surface struct {
	win   fyne.Window
	image *canvas.Image
	do    func(func())

	mu     sync.Mutex
	ctx    sink.Context
	native bool
	bound  sink.Video
}

var (
	_ sink.Surface   = (*Surface)(nil)
	_ sink.FrameSink = (*Surface)(nil)
)

// NewSurface creates the surface for win. Frames are handed to the canvas
// with fyne.Do.
func NewSurface(win fyne.Window, w, h int) *Surface {
	return newSurface(win, w, h, fyne.Do)
}

func newSurface(win fyne.Window, w, h int, do func(func())) *Surface {
	img := canvas.NewImageFromImage(sink.Placeholder(w, h))
	img.FillMode = canvas.ImageFillContain
	img.ScaleMode = canvas.ImageScaleFastest
	img.SetMinSize(fyne.NewSize(float32(w), float32(h)))
	return &Surface{win: win, image: img, do: do}
}

// Object is the canvas object to place in the layout.
func (s *Surface) Object() fyne.CanvasObject { return s.image }

// Probe asks the window for its native handle. It must run on the main
// goroutine after the window was shown; until the driver answers, the
// surface reports no accelerated context.
func (s *Surface) Probe() {
	nw, ok := s.win.(driver.NativeWindow)
	if !ok {
		return
	}
	nw.RunNative(func(native any) {
		ctx, ok := nativeContext(native)
		s.mu.Lock()
		s.ctx, s.native = ctx, ok
		s.mu.Unlock()
	})
}

// nativeContext maps a fyne native window context to a sink context.
// Wayland surfaces cannot be embedded into and are left to the software path.
func nativeContext(native any) (sink.Context, bool) {
	var ctx sink.Context
	switch c := native.(type) {
	case driver.X11WindowContext:
		ctx = sink.Context{Platform: sink.PlatformX11, Handle: c.WindowHandle}
	case driver.WindowsWindowContext:
		ctx = sink.Context{Platform: sink.PlatformWindows, Handle: c.HWND}
	case driver.MacWindowContext:
		ctx = sink.Context{Platform: sink.PlatformDarwin, Handle: c.NSWindow}
	default:
		return sink.Context{}, false
	}
	return ctx, ctx.Handle != 0
}

func (s *Surface) AcceleratedContext() (sink.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx, s.native
}

func (s *Surface) FrameSink() (sink.FrameSink, error) { return s, nil }

// Present shows frame on the canvas. It may be called from any goroutine.
func (s *Surface) Present(frame *image.RGBA) {
	s.do(func() {
		s.image.Image = frame
		s.image.Refresh()
	})
}

// Bind hides the canvas image when video is drawn straight into the window.
func (s *Surface) Bind(v sink.Video) {
	s.mu.Lock()
	s.bound = v
	s.mu.Unlock()
	s.do(func() {
		if v.Accelerated() {
			s.image.Hide()
		} else {
			s.image.Show()
		}
	})
}

// Bound returns the video sink the graph bound, or nil.
func (s *Surface) Bound() sink.Video {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}
