package sink

import (
	log "github.com/sirupsen/logrus"

	"takecam/video/source"
)

// Tee writes every frame to a primary sink and, best effort, to any number of
// secondary sinks. Only the primary's errors are returned; a secondary that
// fails is logged and detached.
type Tee struct {
	primary     Sink
	secondaries []Sink
}

func NewTee(primary Sink, secondaries ...Sink) *Tee {
	return &Tee{
		primary:     primary,
		secondaries: secondaries,
	}
}

func (t *Tee) Put(f source.Frame) error {
	if err := t.primary.Put(f); err != nil {
		return err
	}
	kept := t.secondaries[:0]
	for _, s := range t.secondaries {
		if err := s.Put(f); err != nil {
			log.Warnf("Detaching secondary sink after error: %v", err)
			s.Close()
			continue
		}
		kept = append(kept, s)
	}
	t.secondaries = kept
	return nil
}

func (t *Tee) Close() error {
	for _, s := range t.secondaries {
		if err := s.Close(); err != nil {
			log.Warnf("Failed to close secondary sink: %v", err)
		}
	}
	t.secondaries = nil
	return t.primary.Close()
}
