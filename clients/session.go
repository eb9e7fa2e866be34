package clients

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// --- Sessions (/sessions) ---
type SessionInfo struct {
	ID               int64   `json:"id"`
	Duration         *int64  `json:"duration"`
	EmotionsDetected int     `json:"emotions_detected"`
	StartTime        string  `json:"start_time"`
	EndTime          *string `json:"end_time"`
}

type sessionStartResp struct {
	Message   string `json:"message"`
	SessionID int64  `json:"session_id"`
}

type sessionUpdateReq struct {
	EmotionsDetected int  `json:"emotions_detected"`
	EndSession       bool `json:"end_session"`
}

// StartSession opens a tracking session and returns its id.
func (h *HTTP) StartSession(ctx context.Context) (string, error) {
	if !h.Authenticated() {
		return "", ErrNotLoggedIn
	}
	var out sessionStartResp
	if err := h.do(ctx, "session start", http.MethodPost, "/sessions", nil, &out); err != nil {
		return "", err
	}
	return strconv.FormatInt(out.SessionID, 10), nil
}

// EndSession closes the session, recording how many samples were saved.
func (h *HTTP) EndSession(ctx context.Context, id string, count int) error {
	if !h.Authenticated() {
		return ErrNotLoggedIn
	}
	if id == "" {
		return fmt.Errorf("session end: empty session id")
	}
	in := sessionUpdateReq{EmotionsDetected: count, EndSession: true}
	return h.do(ctx, "session end", http.MethodPut, "/sessions/"+id, in, nil)
}

func (h *HTTP) Sessions(ctx context.Context) ([]SessionInfo, error) {
	if !h.Authenticated() {
		return nil, ErrNotLoggedIn
	}
	var out []SessionInfo
	if err := h.do(ctx, "sessions", http.MethodGet, "/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
