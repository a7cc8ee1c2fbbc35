package notify

import (
	"sync"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"

	"takecam/video"
)

// Notification is sent to all NotifyListeners registered with Notifier.
type Notification struct {
	TimeString string
	Session    string
	Index      int
	Status     string
	Error      string
	Frames     int
}

type NotifyListener interface {
	Notify(n *Notification) error
}

// Notifier is a video.TakeListener that tells its listeners about takes which
// ended without being asked to, so a truncated file doesn't go unnoticed.
type Notifier struct {
	Listeners []NotifyListener

	wg sync.WaitGroup
}

func (n *Notifier) TakeStarted(t *video.Take) {}

func (n *Notifier) TakeEnded(t *video.Take) {
	if !t.Result.Status.Early() {
		return
	}
	notification := &Notification{
		TimeString: t.Ended.Format("3:04:05 PM"),
		Session:    t.Session,
		Index:      t.Index,
		Status:     t.Result.Status.String(),
		Frames:     t.Result.Stats.Frames,
	}
	if t.Result.Err != nil {
		notification.Error = t.Result.Err.Error()
	}
	log.Infof("Sending notification: %v", spew.Sdump(notification))
	for _, l := range n.Listeners {
		n.wg.Add(1)
		go func(l NotifyListener) {
			defer n.wg.Done()
			if err := l.Notify(notification); err != nil {
				log.Errorf("Failed to send notification: %v", err)
			}
		}(l)
	}
}

// Wait blocks until all notifications sent so far are delivered.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
