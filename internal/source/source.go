// Package source wires an audio input to a view: it builds the capture
// resource, the matching data handler, and the controls a host exposes.
package source

import (
	"fmt"
	"time"

	"github.com/olivier-w/bubblewave/internal/handler"
)

// Source is what a host drives. Done is closed when the source has
// nothing left to visualize; live sources return nil.
type Source interface {
	Title() string
	Status() string
	Toggle() error
	Skip(delta int)
	Done() <-chan struct{}
	Close()
}

// Linker is the view side of a source.
type Linker interface {
	Link(h handler.DataHandler)
}

func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
