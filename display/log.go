package display

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// LogSurface writes status changes and dominant-emotion changes to the
// log instead of logging every frame.
type LogSurface struct {
	log logrus.FieldLogger

	mu         sync.Mutex
	lastStatus Status
	lastLabel  string
}

func NewLogSurface(log logrus.FieldLogger) *LogSurface {
	return &LogSurface{log: log.WithField("component", "display")}
}

func (s *LogSurface) Render(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Status != s.lastStatus {
		s.lastStatus = u.Status
		entry := s.log.WithField("class", u.Status.Class)
		switch u.Status.Class {
		case Error:
			entry.Error(u.Status.Text)
		case Warning:
			entry.Warn(u.Status.Text)
		default:
			entry.Info(u.Status.Text)
		}
	}
	if u.Reset {
		s.lastLabel = ""
	}
	if d := u.Dominant; d != nil && string(d.Label) != s.lastLabel {
		s.lastLabel = string(d.Label)
		s.log.WithFields(logrus.Fields{
			"emotion":    d.Label,
			"confidence": d.ConfidenceText,
		}).Infof("%s %s", d.Icon, d.Name)
	}
}
