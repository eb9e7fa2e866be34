package sampler

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/moodcam/capture"
	"github.com/maastricht-university/moodcam/display"
	"github.com/maastricht-university/moodcam/emotion"
)

// loop runs one cycle per tick on a single goroutine, so cycles never
// overlap; ticks that arrive during a slow cycle are dropped.
func (s *Sampler) loop(ctx context.Context, src capture.Source, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(s.cfg.FrameInterval)
	defer t.Stop()

	s.cycle(ctx, src)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.cycle(ctx, src)
		}
	}
}

// cycle analyses one frame. Once past the cancellation check it runs to
// completion: Stop does not abort the frame read or inference in flight.
func (s *Sampler) cycle(ctx context.Context, src capture.Source) {
	if ctx.Err() != nil {
		return
	}
	work := context.WithoutCancel(ctx)
	s.state.count(func(c *Counters) { c.Cycles++ })

	frame, err := src.Frame(work)
	if err != nil {
		s.state.count(func(c *Counters) { c.FrameErrors++ })
		s.log.WithError(err).Warn("frame read failed")
		return
	}

	vec, err := s.inf.Analyze(work, frame)
	if errors.Is(err, emotion.ErrNoSubject) {
		s.noSubject()
		return
	}
	if err != nil {
		s.state.count(func(c *Counters) { c.InferenceErrors++ })
		s.log.WithError(err).WithFields(logrus.Fields{
			"frame":     frame.Seq,
			"frame_age": s.now().Sub(frame.CapturedAt).Round(time.Millisecond),
		}).Warn("detection failed")
		return
	}
	d, ok := vec.Dominant()
	if !ok {
		s.noSubject()
		return
	}

	s.state.count(func(c *Counters) { c.Detections++ })
	s.emit(display.Detection(vec, d))
	s.maybePersist(d)
}

func (s *Sampler) noSubject() {
	s.state.count(func(c *Counters) { c.NoSubject++ })
	s.emit(display.StatusOnly("No face detected", display.Warning))
}

// maybePersist saves d in the background when the throttle allows it. The
// next cycle does not wait for the save; a single in-flight save at a time
// keeps a slow backend from receiving one request per frame.
func (s *Sampler) maybePersist(d emotion.Dominant) {
	if s.store == nil {
		return
	}
	now := s.now()
	gen, ok := s.state.beginPersist(now, s.cfg.SaveInterval)
	if !ok {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		err := s.store.SaveMood(ctx, d)
		s.state.endPersist(gen, now, err == nil)

		entry := s.log.WithFields(logrus.Fields{
			"emotion":    d.Label,
			"confidence": d.Confidence,
		})
		if err != nil {
			entry.WithError(err).Warn("mood save failed, retrying next window")
			return
		}
		entry.Debug("mood saved")
	}()
}
