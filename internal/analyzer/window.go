package analyzer

import (
	"errors"
	"fmt"

	"github.com/RomanchenkoAS/ethusdt-monitor/internal/model"
)

// ErrWindowGap marks a window whose elements are no longer contiguous
// at 1-minute spacing. A gap means a backfill cycle was missed; the
// window is cleared and must be reseeded from storage before the
// signal can be trusted again.
var ErrWindowGap = errors.New("window gap")

// Window is an ordered sequence of the most recent closed-candle close
// prices for one instrument, insertion order = chronological.
type Window struct {
	capacity int
	points   []model.ClosePoint
}

// NewWindow creates a window holding at most capacity points.
func NewWindow(capacity int) *Window {
	return &Window{
		capacity: capacity,
		points:   make([]model.ClosePoint, 0, capacity),
	}
}

// Append adds a newly closed candle's point. Once the window is full,
// each append evicts exactly one oldest element. A point that repeats
// the newest open time is ignored (idempotent re-delivery); a point
// that is not exactly one interval past the newest clears the window
// and returns ErrWindowGap.
func (w *Window) Append(p model.ClosePoint) error {
	if n := len(w.points); n > 0 {
		newest := w.points[n-1].OpenTime
		switch {
		case p.OpenTime.Equal(newest):
			return nil
		case !p.OpenTime.Equal(newest.Add(model.Interval)):
			w.points = w.points[:0]
			return fmt.Errorf("%w: %v does not follow %v", ErrWindowGap, p.OpenTime, newest)
		}
	}

	if len(w.points) == w.capacity {
		copy(w.points, w.points[1:])
		w.points = w.points[:w.capacity-1]
	}
	w.points = append(w.points, p)
	return nil
}

// Seed replaces the window contents with points, which must be
// ascending and contiguous. On a gap the window is left empty and
// ErrWindowGap is returned.
func (w *Window) Seed(points []model.ClosePoint) error {
	w.points = w.points[:0]
	for _, p := range points {
		if err := w.Append(p); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the current number of points: min(capacity, observed).
func (w *Window) Len() int {
	return len(w.points)
}

// Full reports whether the window holds capacity points.
func (w *Window) Full() bool {
	return len(w.points) == w.capacity
}

// Anchor returns the oldest point, the element exactly capacity
// positions behind the newest once the window is full.
func (w *Window) Anchor() (model.ClosePoint, bool) {
	if !w.Full() {
		return model.ClosePoint{}, false
	}
	return w.points[0], true
}
