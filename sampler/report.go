package sampler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Report summarises one capture run.
type Report struct {
	RunID            string    `json:"run_id"`
	SessionID        string    `json:"session_id,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	StoppedAt        time.Time `json:"stopped_at"`
	SamplesPersisted int       `json:"samples_persisted"`
	Counters
}

func mkRunDir(outputsRoot string, at time.Time) (string, error) {
	dir := filepath.Join(outputsRoot, "run_"+at.Format("20060102-150405"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeReport(outputsRoot string, r Report) (string, error) {
	dir, err := mkRunDir(outputsRoot, r.StartedAt)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "report.json")
	if err := writeJSON(path, r); err != nil {
		return "", err
	}
	return path, nil
}
