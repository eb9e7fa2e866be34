package capture

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

var frameExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// DirSource replays the image files of a directory in name order, looping
// back to the first file after the last.
type DirSource struct {
	Dir string

	mu    sync.Mutex
	files []string
	next  int
	seq   int64
}

func NewDirSource(dir string) *DirSource { return &DirSource{Dir: dir} }

func (d *DirSource) Acquire(ctx context.Context, _ Constraints) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return fmt.Errorf("capture dir %s: %w", d.Dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !frameExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(d.Dir, e.Name()))
	}
	if len(files) == 0 {
		return fmt.Errorf("capture dir %s: %w", d.Dir, ErrNoFrames)
	}
	sort.Strings(files)

	d.mu.Lock()
	d.files, d.next, d.seq = files, 0, 0
	d.mu.Unlock()
	return nil
}

func (d *DirSource) Frame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	d.mu.Lock()
	if len(d.files) == 0 {
		d.mu.Unlock()
		return Frame{}, ErrNotAcquired
	}
	path := d.files[d.next]
	d.next = (d.next + 1) % len(d.files)
	d.seq++
	seq := d.seq
	d.mu.Unlock()

	b, err := os.ReadFile(path)
	if err != nil {
		return Frame{}, fmt.Errorf("capture read %s: %w", filepath.Base(path), err)
	}
	return Frame{
		Seq:         seq,
		Data:        b,
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		CapturedAt:  time.Now(),
	}, nil
}

func (d *DirSource) Release() error {
	d.mu.Lock()
	d.files = nil
	d.mu.Unlock()
	return nil
}
