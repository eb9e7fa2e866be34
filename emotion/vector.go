package emotion

import (
	"errors"
	"math"
)

// Vector maps each label to a confidence score in [0,1]. Labels the
// detector did not report are simply absent.
type Vector map[Label]float64

type Dominant struct {
	Label      Label   `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

// Dominant picks the label with the strictly highest score, walking Labels
// in order so that ties resolve to the earliest label. ok is false for an
// empty vector.
func (v Vector) Dominant() (d Dominant, ok bool) {
	for _, l := range Labels {
		s, present := v[l]
		if !present {
			continue
		}
		if !ok || s > d.Confidence {
			d = Dominant{Label: l, Confidence: s}
			ok = true
		}
	}
	return d, ok
}

// Clamp returns a copy with NaN dropped and scores forced into [0,1].
func (v Vector) Clamp() Vector {
	out := make(Vector, len(v))
	for l, s := range v {
		if math.IsNaN(s) {
			continue
		}
		out[l] = math.Max(0, math.Min(1, s))
	}
	return out
}

// Percent rounds score*100 half up, the way the confidence and bar texts
// are rendered.
func Percent(score float64) int {
	return int(math.Floor(score*100 + 0.5))
}

// ErrNoSubject is what a detector returns when the frame holds no face.
// It is a normal outcome, not a failure.
var ErrNoSubject = errors.New("no face detected")
