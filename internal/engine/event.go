package engine

import (
	"fmt"
	"time"

	"github.com/samber/mo"
)

// Kind identifies an engine event.
type Kind int

const (
	// DurationKnown carries the total duration of the current source.
	DurationKnown Kind = iota + 1
	// PositionAdvanced carries a new playback position.
	PositionAdvanced
	// PlaybackError carries the reason the current source failed.
	PlaybackError
	// EndReached reports the end of the stream.
	EndReached
)

func (k Kind) String() string {
	switch k {
	case DurationKnown:
		return "DurationKnown"
	case PositionAdvanced:
		return "PositionAdvanced"
	case PlaybackError:
		return "PlaybackError"
	case EndReached:
		return "EndReached"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Event is posted by a pipeline and delivered by the engine. Gen is the
// generation of the load that produced it.
type Event struct {
	Gen  uint64
	Kind Kind
	// Value is the duration for DurationKnown and the position for
	// PositionAdvanced.
	Value time.Duration
	Err   error
}

// Duration returns a DurationKnown event.
func Duration(gen uint64, total time.Duration) Event {
	return Event{Gen: gen, Kind: DurationKnown, Value: total}
}

// Position returns a PositionAdvanced event.
func Position(gen uint64, current time.Duration) Event {
	return Event{Gen: gen, Kind: PositionAdvanced, Value: current}
}

// Failure returns a PlaybackError event.
func Failure(gen uint64, err error) Event {
	return Event{Gen: gen, Kind: PlaybackError, Err: err}
}

// End returns an EndReached event.
func End(gen uint64) Event {
	return Event{Gen: gen, Kind: EndReached}
}

// PositionSample is the latest known position and duration of the current
// source. Either may be absent.
type PositionSample struct {
	Elapsed  mo.Option[time.Duration]
	Duration mo.Option[time.Duration]
}
