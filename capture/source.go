// Package capture provides the video sources the sampler reads frames from.
package capture

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNoFrames    = errors.New("capture: no frames available")
	ErrNotAcquired = errors.New("capture: source not acquired")
)

type Constraints struct {
	Width  int
	Height int
}

// DefaultConstraints matches the ideal camera resolution the tracker asks for.
var DefaultConstraints = Constraints{Width: 1280, Height: 720}

type Frame struct {
	Seq         int64
	Data        []byte
	ContentType string
	CapturedAt  time.Time
}

// Source is a live frame source. Acquire must succeed before Frame is
// called; Release is safe to call more than once.
type Source interface {
	Acquire(ctx context.Context, c Constraints) error
	Frame(ctx context.Context) (Frame, error)
	Release() error
}
