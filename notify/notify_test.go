package notify

import (
	"errors"
	"sync"
	"testing"
	"time"

	"takecam/video"
)

type collector struct {
	mu  sync.Mutex
	got []*Notification
	err error
}

func (c *collector) Notify(n *Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, n)
	return c.err
}

func TestNotifierOnlyReportsEarlyEnds(t *testing.T) {
	a := &collector{}
	b := &collector{err: errors.New("push service down")}
	n := &Notifier{Listeners: []NotifyListener{a, b}}

	ended := time.Date(2024, 5, 1, 21, 3, 9, 0, time.UTC)
	n.TakeEnded(&video.Take{Index: 0, Ended: ended, Result: video.Result{Status: video.StatusStopped}})
	n.TakeEnded(&video.Take{
		Session: "2024-05-01_20-00-00",
		Index:   1,
		Ended:   ended,
		Result: video.Result{
			Status: video.StatusReadFailure,
			Err:    errors.New("device 0: failed to read frame"),
			Stats:  video.Stats{Frames: 42},
		},
	})
	n.Wait()

	for name, c := range map[string]*collector{"a": a, "b": b} {
		if len(c.got) != 1 {
			t.Fatalf("listener %s got %d notifications, want 1", name, len(c.got))
		}
		got := c.got[0]
		if got.Index != 1 || got.Status != "read_failure" || got.Frames != 42 {
			t.Errorf("listener %s got %+v", name, got)
		}
		if got.TimeString != "9:03:09 PM" {
			t.Errorf("TimeString = %q", got.TimeString)
		}
		if got.Error == "" {
			t.Errorf("missing error text")
		}
	}
}
