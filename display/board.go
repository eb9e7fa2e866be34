package display

import (
	"sync"

	"github.com/maastricht-university/moodcam/emotion"
)

// Snapshot is the full content of every named slot.
type Snapshot struct {
	Status         Status                `json:"status"`
	Label          emotion.Label         `json:"label,omitempty"`
	Name           string                `json:"name"`
	Icon           string                `json:"icon"`
	ConfidenceText string                `json:"confidence_text"`
	Bars           map[emotion.Label]Bar `json:"bars"`
	Seq            uint64                `json:"seq"`
}

// Board owns the named slots. Apply writes only what an update carries.
type Board struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewBoard() *Board {
	b := &Board{}
	b.reset()
	b.snap.Status = Status{Text: "Camera idle", Class: Idle}
	return b
}

func (b *Board) reset() {
	b.snap.Label = ""
	b.snap.Name = "--"
	b.snap.Icon = ""
	b.snap.ConfidenceText = "Confidence: 0%"
	b.snap.Bars = make(map[emotion.Label]Bar, len(emotion.Labels))
	for _, l := range emotion.Labels {
		b.snap.Bars[l] = BarFor(0)
	}
}

func (b *Board) Apply(u Update) Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	if u.Reset {
		b.reset()
	}
	b.snap.Status = u.Status
	if d := u.Dominant; d != nil {
		b.snap.Label = d.Label
		b.snap.Name = d.Name
		b.snap.Icon = d.Icon
		b.snap.ConfidenceText = d.ConfidenceText
	}
	for l, bar := range u.Bars {
		if _, ok := b.snap.Bars[l]; ok {
			b.snap.Bars[l] = bar
		}
	}
	b.snap.Seq++
	return b.copyLocked()
}

func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.copyLocked()
}

func (b *Board) copyLocked() Snapshot {
	s := b.snap
	s.Bars = make(map[emotion.Label]Bar, len(b.snap.Bars))
	for l, bar := range b.snap.Bars {
		s.Bars[l] = bar
	}
	return s
}
