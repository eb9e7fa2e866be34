package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// APIError is a non-2xx answer from the backend. Message carries the
// backend's "message" field when it sent one, the raw body otherwise.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %d %s: %s", e.Op, e.Status, http.StatusText(e.Status), e.Message)
}

// HTTP talks to the mood backend. Calls that need a user go out with the
// bearer token set through WithToken.
type HTTP struct {
	c     *http.Client
	base  string
	token string
	log   logrus.FieldLogger
}

func NewHTTP(baseURL string, timeout time.Duration, log logrus.FieldLogger) *HTTP {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &HTTP{
		c:    &http.Client{Timeout: timeout},
		base: strings.TrimRight(baseURL, "/"),
		log:  log.WithField("component", "api"),
	}
}

// WithToken returns a copy that authenticates as the token's user.
func (h *HTTP) WithToken(token string) *HTTP {
	cp := *h
	cp.token = token
	return &cp
}

func (h *HTTP) Authenticated() bool { return h.token != "" }

// do sends in (if non-nil) as JSON and decodes a 2xx body into out (if
// non-nil). Any other status is returned as *APIError.
func (h *HTTP) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s encode: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	rid := uuid.NewString()
	req.Header.Set("X-Request-ID", rid)
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	start := time.Now()
	resp, err := h.c.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	h.log.WithFields(logrus.Fields{
		"op":         op,
		"status":     resp.StatusCode,
		"request_id": rid,
		"took":       time.Since(start).Round(time.Millisecond),
	}).Debug("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode: %w", op, err)
	}
	return nil
}

func apiError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(b))
	var m struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(b, &m) == nil && m.Message != "" {
		msg = m.Message
	}
	return &APIError{Op: op, Status: resp.StatusCode, Message: msg}
}

type Health struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *HTTP) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := h.do(ctx, "health", http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
