package playback

import (
	"fmt"
	"time"
)

// State is the playback state of a window.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Playing
	Paused
	Errored
)

var stateNames = [...]string{
	Idle:    "idle",
	Loading: "loading",
	Ready:   "ready",
	Playing: "playing",
	Paused:  "paused",
	Errored: "errored",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// ControlsEnabled reports whether transport controls apply in s.
func (s State) ControlsEnabled() bool {
	return s == Ready || s == Playing || s == Paused
}

// Icon names used by the play/pause button.
const (
	IconPlay  = "play"
	IconPause = "pause"
)

// Icon returns the play/pause button icon for s.
func Icon(s State) string {
	if s == Playing {
		return IconPause
	}
	return IconPlay
}

// Controls says which transport widgets are enabled. Opening a source is
// always possible and not part of it.
type Controls struct {
	PlayPause bool
	Seek      bool
	Skip      bool
}

var controlsByState = map[State]Controls{
	Idle:    {},
	Loading: {},
	Ready:   {PlayPause: true, Seek: true, Skip: true},
	Playing: {PlayPause: true, Seek: true, Skip: true},
	Paused:  {PlayPause: true, Seek: true, Skip: true},
	Errored: {},
}

// ControlsFor returns the widget policy for s.
func ControlsFor(s State) Controls { return controlsByState[s] }

// Range is the slider range in seconds.
type Range struct {
	Min, Max float64
}

// FormatClock renders d to whole seconds as MM:SS, or H:MM:SS from one hour
// on. Negative durations render as 00:00.
func FormatClock(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}
	s := int(d / time.Second)
	h, m, ss := s/3600, s/60%60, s%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, ss)
	}
	return fmt.Sprintf("%02d:%02d", m, ss)
}
