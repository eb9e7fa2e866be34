package clients

import (
	"context"
	"errors"
	"net/http"
)

var ErrNotLoggedIn = errors.New("not logged in")

// --- Auth (/signup, /login) ---
type SignupReq struct {
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
type SignupResp struct {
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
}

type User struct {
	ID       int64  `json:"id" yaml:"id"`
	Fullname string `json:"fullname" yaml:"fullname"`
	Email    string `json:"email" yaml:"email"`
}
type LoginResp struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    User   `json:"user"`
}

func (h *HTTP) Signup(ctx context.Context, req SignupReq) (*SignupResp, error) {
	var out SignupResp
	if err := h.do(ctx, "signup", http.MethodPost, "/signup", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *HTTP) Login(ctx context.Context, email, password string) (*LoginResp, error) {
	in := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{email, password}
	var out LoginResp
	if err := h.do(ctx, "login", http.MethodPost, "/login", in, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, errors.New("login: backend returned no token")
	}
	return &out, nil
}
