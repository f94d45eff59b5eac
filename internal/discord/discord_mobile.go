//go:build android || ios

package discord

import (
	"gemini/internal/observe"

	"github.com/sirupsen/logrus"
)

const DefaultClientID = ""

type Config struct {
	ClientID string
	Log      *logrus.Entry
}

// Presence is a no-op: there is no Discord IPC on mobile.
type Presence struct{}

func New(Config) *Presence { return &Presence{} }

func (*Presence) Follow(*observe.Value[string], *observe.Value[bool]) func() { return func() {} }
func (*Presence) Close()                                                   {}
