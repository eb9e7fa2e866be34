package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/maastricht-university/moodcam/emotion"
)

// --- Mood records (/mood-records, /stats/emotions) ---
type MoodRecord struct {
	ID         int64   `json:"id"`
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
	Timestamp  string  `json:"timestamp"`
}

type EmotionStat struct {
	Emotion       string  `json:"emotion"`
	Count         int     `json:"count"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// SaveMood stores one dominant-emotion sample. Any 2xx is a confirmed save.
func (h *HTTP) SaveMood(ctx context.Context, d emotion.Dominant) error {
	if !h.Authenticated() {
		return ErrNotLoggedIn
	}
	return h.do(ctx, "mood save", http.MethodPost, "/mood-records", d, nil)
}

func (h *HTTP) MoodRecords(ctx context.Context, limit int) ([]MoodRecord, error) {
	if !h.Authenticated() {
		return nil, ErrNotLoggedIn
	}
	path := "/mood-records"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	var out []MoodRecord
	if err := h.do(ctx, "mood list", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *HTTP) MoodRecord(ctx context.Context, id int64) (*MoodRecord, error) {
	if !h.Authenticated() {
		return nil, ErrNotLoggedIn
	}
	var out MoodRecord
	if err := h.do(ctx, "mood get", http.MethodGet, fmt.Sprintf("/mood-records/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *HTTP) DeleteMoodRecord(ctx context.Context, id int64) error {
	if !h.Authenticated() {
		return ErrNotLoggedIn
	}
	return h.do(ctx, "mood delete", http.MethodDelete, fmt.Sprintf("/mood-records/%d", id), nil, nil)
}

func (h *HTTP) EmotionStats(ctx context.Context) ([]EmotionStat, error) {
	if !h.Authenticated() {
		return nil, ErrNotLoggedIn
	}
	var out []EmotionStat
	if err := h.do(ctx, "emotion stats", http.MethodGet, "/stats/emotions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
