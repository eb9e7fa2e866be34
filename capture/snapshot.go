package capture

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// SnapshotSource pulls one still image per frame from an HTTP camera
// snapshot endpoint. The requested resolution is passed as width/height
// query parameters; cameras that ignore them still work.
type SnapshotSource struct {
	URL string

	c        *http.Client
	mu       sync.Mutex
	acquired bool
	target   string
	seq      int64
}

func NewSnapshotSource(rawURL string, timeout time.Duration) *SnapshotSource {
	return &SnapshotSource{URL: rawURL, c: &http.Client{Timeout: timeout}}
}

func (s *SnapshotSource) Acquire(ctx context.Context, c Constraints) error {
	u, err := url.Parse(s.URL)
	if err != nil {
		return fmt.Errorf("capture snapshot url: %w", err)
	}
	q := u.Query()
	if c.Width > 0 {
		q.Set("width", strconv.Itoa(c.Width))
	}
	if c.Height > 0 {
		q.Set("height", strconv.Itoa(c.Height))
	}
	u.RawQuery = q.Encode()

	s.mu.Lock()
	s.target = u.String()
	s.acquired = true
	s.mu.Unlock()

	// first frame doubles as the ready signal
	if _, err := s.fetch(ctx); err != nil {
		_ = s.Release()
		return err
	}
	return nil
}

func (s *SnapshotSource) Frame(ctx context.Context) (Frame, error) {
	return s.fetch(ctx)
}

func (s *SnapshotSource) fetch(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	if !s.acquired {
		s.mu.Unlock()
		return Frame{}, ErrNotAcquired
	}
	target := s.target
	s.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Frame{}, err
	}
	resp, err := s.c.Do(req)
	if err != nil {
		return Frame{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Frame{}, fmt.Errorf("snapshot %s: %s", resp.Status, string(body))
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return Frame{}, fmt.Errorf("snapshot read: %w", err)
	}
	if len(b) == 0 {
		return Frame{}, fmt.Errorf("snapshot: %w", ErrNoFrames)
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()
	return Frame{Seq: seq, Data: b, ContentType: resp.Header.Get("Content-Type"), CapturedAt: time.Now()}, nil
}

func (s *SnapshotSource) Release() error {
	s.mu.Lock()
	s.acquired = false
	s.mu.Unlock()
	return nil
}
