// Package display holds the slots the sampler writes to and the surfaces
// that render them.
package display

import (
	"fmt"

	"github.com/maastricht-university/moodcam/emotion"
)

type StatusClass string

const (
	Idle    StatusClass = "idle"
	Loading StatusClass = "loading"
	Success StatusClass = "success"
	Warning StatusClass = "warning"
	Error   StatusClass = "error"
)

type Status struct {
	Text  string      `json:"text"`
	Class StatusClass `json:"class"`
}

type Bar struct {
	WidthPercent int    `json:"width_percent"`
	Text         string `json:"text"`
}

type DominantSlot struct {
	Label          emotion.Label `json:"label"`
	Name           string        `json:"name"`
	Icon           string        `json:"icon"`
	ConfidenceText string        `json:"confidence_text"`
	Confidence     float64       `json:"confidence"`
}

// Update is one write to the board. A nil Dominant leaves the dominant
// slots alone; Bars only carries the labels the detector reported.
type Update struct {
	Status   Status                `json:"status"`
	Dominant *DominantSlot         `json:"dominant,omitempty"`
	Bars     map[emotion.Label]Bar `json:"bars,omitempty"`
	Reset    bool                  `json:"reset,omitempty"`
}

func StatusOnly(text string, class StatusClass) Update {
	return Update{Status: Status{Text: text, Class: class}}
}

func BarFor(score float64) Bar {
	p := emotion.Percent(score)
	return Bar{WidthPercent: p, Text: fmt.Sprintf("%d%%", p)}
}

// Detection builds the update for one analysed frame.
func Detection(v emotion.Vector, d emotion.Dominant) Update {
	info := emotion.Info(d.Label)
	u := Update{
		Status: Status{Text: "Detecting emotions...", Class: Success},
		Dominant: &DominantSlot{
			Label:          d.Label,
			Name:           info.Name,
			Icon:           info.Icon,
			ConfidenceText: fmt.Sprintf("Confidence: %d%%", emotion.Percent(d.Confidence)),
			Confidence:     d.Confidence,
		},
		Bars: make(map[emotion.Label]Bar, len(v)),
	}
	for l, s := range v {
		u.Bars[l] = BarFor(s)
	}
	return u
}

// Cleared is the update sent when capture stops.
func Cleared() Update {
	return Update{Status: Status{Text: "Camera stopped", Class: Idle}, Reset: true}
}
