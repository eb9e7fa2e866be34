package clients

import (
	"context"
	"fmt"
	"net/http"
)

// --- User profile (/users/{id}) ---
type Profile struct {
	User
	CreatedAt string `json:"created_at"`
}

// User fetches a profile. The backend answers 403 for any id other than
// the caller's own.
func (h *HTTP) User(ctx context.Context, id int64) (*Profile, error) {
	if !h.Authenticated() {
		return nil, ErrNotLoggedIn
	}
	var out Profile
	if err := h.do(ctx, "user get", http.MethodGet, fmt.Sprintf("/users/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *HTTP) UpdateUser(ctx context.Context, id int64, fullname string) error {
	if !h.Authenticated() {
		return ErrNotLoggedIn
	}
	in := struct {
		Fullname string `json:"fullname"`
	}{fullname}
	return h.do(ctx, "user update", http.MethodPut, fmt.Sprintf("/users/%d", id), in, nil)
}

// DeleteUser removes the account along with its sessions and mood records.
func (h *HTTP) DeleteUser(ctx context.Context, id int64) error {
	if !h.Authenticated() {
		return ErrNotLoggedIn
	}
	return h.do(ctx, "user delete", http.MethodDelete, fmt.Sprintf("/users/%d", id), nil, nil)
}
