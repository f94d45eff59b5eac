package sink

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
)

// Grabber decodes a single frame of a source at a position.
type Grabber interface {
	Grab(ctx context.Context, uri string, at time.Duration) (image.Image, error)
}

// FFmpeg grabs frames by running ffmpeg once per frame.
type FFmpeg struct {
	// Bin defaults to "ffmpeg".
	Bin string
	// Width scales frames down before they leave ffmpeg; 0 keeps the size.
	Width int
}

func (f FFmpeg) Grab(ctx context.Context, uri string, at time.Duration) (image.Image, error) {
	bin := f.Bin
	if bin == "" {
		bin = "ffmpeg"
	}
	args := []string{
		"-loglevel", "quiet",
		// -ss before -i for faster seeking
		"-ss", fmt.Sprintf("%.3f", at.Seconds()),
		"-i", uri,
		"-vframes", "1",
	}
	if f.Width > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:-1", f.Width))
	}
	args = append(args, "-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "8", "-")

	var buf bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &buf
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame at %s: %w", at, err)
	}
	return jpeg.Decode(&buf)
}

// FramePump feeds a Composite sink while a pipeline plays without a
// hardware context: every Interval it grabs the frame at the pipeline's
// current position and pushes it through the conversion stage.
type FramePump struct {
	Grabber  Grabber
	Sink     *Composite
	Interval time.Duration
	Log      *logrus.Entry

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     *conc.WaitGroup
}

// Start stops any running loop and starts a new one for uri. position
// reports the current playback position and whether it is known.
func (p *FramePump) Start(uri string, position func() (time.Duration, bool)) {
	p.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()

	interval := p.Interval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg = conc.NewWaitGroup()
	p.wg.Go(func() { p.loop(ctx, uri, interval, position) })
}

// Stop cancels the loop and waits for it to exit. It is a no-op when the
// pump is not running or nil.
func (p *FramePump) Stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	cancel, wg := p.cancel, p.wg
	p.cancel, p.wg = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	wg.Wait()
}

func (p *FramePump) loop(ctx context.Context, uri string, interval time.Duration, position func() (time.Duration, bool)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			at, ok := position()
			if !ok || at < 0 {
				continue
			}
			frame, err := p.Grabber.Grab(ctx, uri, at)
			if err != nil {
				if ctx.Err() == nil && p.Log != nil {
					p.Log.WithError(err).Debug("frame grab failed")
				}
				continue
			}
			p.Sink.Push(frame)
		}
	}
}
