package video

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"takecam/video/sink"
	"takecam/video/source"
)

// KeyEvent is one global keyboard event.
type KeyEvent struct {
	Kind    string
	Keycode uint16
	When    time.Time
}

// KeySource delivers global keyboard events. The channel is closed when the
// source shuts down.
type KeySource interface {
	Events() <-chan KeyEvent
}

// TakeSettings configure a single take. They are read when the take starts.
type TakeSettings struct {
	Source   source.Opener
	Producer sink.Producer
	FourCC   string
	FPS      float64
}

// Take is one recording bounded by a start and a key event.
type Take struct {
	Session string
	Index   int
	Path    string

	Started time.Time
	Ended   time.Time
	Result  Result
}

// TakeListener receives take lifecycle updates. Calls are made from the
// controller goroutine and must not block for long.
type TakeListener interface {
	TakeStarted(t *Take)
	TakeEnded(t *Take)
}

// Controller records takes back to back into one session directory. Each key
// event ends the current take and starts the next one.
type Controller struct {
	FS        *Filesystem
	Keys      KeySource
	Settings  func() TakeSettings
	Listeners []TakeListener

	index int
}

// Run records takes until ctx is done or the key source closes. The take in
// progress is stopped, and its handles released, before Run returns.
func (c *Controller) Run(ctx context.Context) error {
	log.Infof("Recording session into %v", c.FS.Dir)
	for {
		t := &Take{
			Session: c.FS.Name(),
			Index:   c.index,
			Path:    c.FS.TakePath(c.index),
		}
		rec := c.startTake(t)

		stop := c.waitForKey(ctx, t, rec)
		if rec != nil {
			res := rec.Stop()
			c.endTake(t, res)
		}
		if stop {
			log.Infof("Session %v finished after %d takes", c.FS.Name(), c.index+1)
			return nil
		}
		c.index++
	}
}

func (c *Controller) startTake(t *Take) *Recorder {
	s := c.Settings()
	tlog := log.WithField("take", t.Index)
	t.Started = time.Now()

	rec, err := c.openRecorder(t, s)
	if err == nil {
		err = rec.Start()
	}
	if err != nil {
		tlog.Errorf("Failed to start take: %v", err)
		c.endTake(t, Result{Status: StatusOpenFailure, Err: err})
		return nil
	}

	tlog.Infof("Recording %v, press any key to start the next take", t.Path)
	for _, l := range c.Listeners {
		l.TakeStarted(t)
	}
	return rec
}

func (c *Controller) openRecorder(t *Take, s TakeSettings) (*Recorder, error) {
	src, err := s.Source()
	if err != nil {
		return nil, fmt.Errorf("opening source: %w", err)
	}
	return NewRecorder(src, s.Producer, RecorderOptions{
		Path:   t.Path,
		FourCC: s.FourCC,
		FPS:    s.FPS,
	})
}

// endTake publishes the end of a take once.
func (c *Controller) endTake(t *Take, r Result) {
	if !t.Ended.IsZero() {
		return
	}
	t.Ended = time.Now()
	t.Result = r
	observeTakeEnded(r)
	for _, l := range c.Listeners {
		l.TakeEnded(t)
	}
}

// waitForKey blocks until a key event arrives and reports whether the session
// should stop instead of starting another take. A take that ends early is
// reported right away, but the next take still waits for the key.
func (c *Controller) waitForKey(ctx context.Context, t *Take, rec *Recorder) bool {
	var done <-chan struct{}
	if rec != nil {
		done = rec.Done()
	}
	tlog := log.WithField("take", t.Index)
	for {
		select {
		case <-ctx.Done():
			tlog.Infof("Stopping: %v", ctx.Err())
			return true
		case ev, ok := <-c.Keys.Events():
			if !ok {
				tlog.Warnf("Key source closed")
				return true
			}
			tlog.Debugf("Key event %v (code %d)", ev.Kind, ev.Keycode)
			return false
		case <-done:
			done = nil
			res := rec.Result()
			tlog.Warnf("Take ended early (%v): %v; waiting for a key to start the next take", res.Status, res.Err)
			c.endTake(t, res)
		}
	}
}
