package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/moodcam/capture"
	"github.com/maastricht-university/moodcam/emotion"
)

// --- Expression inference (/load, /detect) ---
type loadReq struct {
	ModelURL string `json:"model_url,omitempty"`
}

type DetectResp struct {
	FaceDetected bool               `json:"face_detected"`
	Expressions  map[string]float64 `json:"expressions"`
}

// Expressions is the face-expression model service. Load is idempotent:
// once it succeeds later calls return immediately.
type Expressions struct {
	c        *http.Client
	url      string
	modelURL string
	log      logrus.FieldLogger

	mu     sync.Mutex
	loaded bool
}

func NewExpressions(url, modelURL string, timeout time.Duration, log logrus.FieldLogger) *Expressions {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Expressions{
		c:        &http.Client{Timeout: timeout},
		url:      strings.TrimRight(url, "/"),
		modelURL: modelURL,
		log:      log.WithField("component", "inference"),
	}
}

func (e *Expressions) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		return nil
	}

	b, _ := json.Marshal(loadReq{ModelURL: e.modelURL})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url+"/load", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.c.Do(req)
	if err != nil {
		return fmt.Errorf("model load: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("model load %s: %s", resp.Status, string(body))
	}
	e.loaded = true
	e.log.WithField("model_url", e.modelURL).Info("expression model loaded")
	return nil
}

// Analyze uploads one frame and returns its expression vector, or
// emotion.ErrNoSubject when no face was found. Labels
// outside the known set are dropped.
func (e *Expressions) Analyze(ctx context.Context, f capture.Frame) (emotion.Vector, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="frame-%d"`, f.Seq))
	hdr.Set("Content-Type", ct)
	fw, err := w.CreatePart(hdr)
	if err != nil {
		return nil, err
	}
	if _, err = fw.Write(f.Data); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url+"/detect", &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := e.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("detect %s: %s", resp.Status, string(body))
	}

	var out DetectResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("detect decode: %w", err)
	}
	if !out.FaceDetected || len(out.Expressions) == 0 {
		return nil, emotion.ErrNoSubject
	}

	vec := make(emotion.Vector, len(out.Expressions))
	for k, s := range out.Expressions {
		l, err := emotion.ParseLabel(k)
		if err != nil {
			e.log.WithField("label", k).Debug("dropping unknown expression label")
			continue
		}
		vec[l] = s
	}
	if len(vec) == 0 {
		return nil, emotion.ErrNoSubject
	}
	return vec.Clamp(), nil
}
