package ui

import (
	"path/filepath"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/storage"
	"github.com/samber/lo"
)

// SeekStep is how far the arrow keys move the position.
const SeekStep = 5 * time.Second

type action int

const (
	noAction action = iota
	togglePlay
	toggleFullscreen
	leaveFullscreen
	seekBack
	seekForward
)

// keyAction maps a typed key to a transport action.
func keyAction(key fyne.KeyName) action {
	switch key {
	case fyne.KeySpace:
		return togglePlay
	case fyne.KeyF11, fyne.KeyF:
		return toggleFullscreen
	case fyne.KeyEscape:
		return leaveFullscreen
	case fyne.KeyLeft:
		return seekBack
	case fyne.KeyRight:
		return seekForward
	}
	return noAction
}

// ArgURI turns a command line argument into a source URI. Arguments that
// already carry a scheme are kept; paths become file URIs.
func ArgURI(arg string) string {
	arg = strings.TrimSpace(arg)
	if arg == "" || strings.Contains(arg, "://") {
		return arg
	}
	if abs, err := filepath.Abs(arg); err == nil {
		arg = abs
	}
	return storage.NewFileURI(arg).String()
}

func uriStrings(uris []fyne.URI) []string {
	return lo.FilterMap(uris, func(u fyne.URI, _ int) (string, bool) {
		if u == nil {
			return "", false
		}
		return u.String(), true
	})
}

// pickedFile converts a file dialog result to intake candidates. ok is
// false when the dialog was cancelled.
func pickedFile(r fyne.URIReadCloser, err error) (uris []string, ok bool, readErr error) {
	if err != nil {
		return nil, true, err
	}
	if r == nil {
		return nil, false, nil
	}
	defer r.Close()
	return []string{r.URI().String()}, true, nil
}

// displayName is the window title part for uri.
func displayName(uri string) string {
	if uri == "" {
		return ""
	}
	if u, err := storage.ParseURI(uri); err == nil && u.Name() != "" {
		return u.Name()
	}
	return filepath.Base(uri)
}
