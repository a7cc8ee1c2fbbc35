package serve

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/pillash/mp4util"
	log "github.com/sirupsen/logrus"

	"takecam/video"
)

type MetaEntry struct {
	Index     int
	Timestamp int64
	Recording bool

	HaveVideo bool
	HaveThumb bool
	Size      int64

	DurationSec int
	Frames      int
	MeanFPS     float64
	Status      string
	Error       string `json:",omitempty"`
}

type MetaResponse struct {
	Session string
	Items   []*MetaEntry

	ItemsTotalSize int64
	ItemsCount     int
}

// MetaServer lists the takes of the current session. It is a
// video.TakeListener so it can report takes that are still recording and why
// finished takes ended.
type MetaServer struct {
	FS *video.Filesystem
	// Duration reads the length of a finished take in seconds. Defaults to
	// mp4util.Duration.
	Duration func(path string) (int, error)

	l         sync.Mutex
	takes     map[int]video.Take
	durations map[int]int
}

func (s *MetaServer) TakeStarted(t *video.Take) {
	s.l.Lock()
	defer s.l.Unlock()
	if s.takes == nil {
		s.takes = make(map[int]video.Take)
	}
	s.takes[t.Index] = *t
}

func (s *MetaServer) TakeEnded(t *video.Take) {
	s.l.Lock()
	defer s.l.Unlock()
	if s.takes == nil {
		s.takes = make(map[int]video.Take)
	}
	s.takes[t.Index] = *t
}

// Recording reports whether take index is still being written.
func (s *MetaServer) Recording(index int) bool {
	s.l.Lock()
	defer s.l.Unlock()
	t, ok := s.takes[index]
	return ok && t.Ended.IsZero()
}

func (s *MetaServer) duration(t video.Take) int {
	if d, ok := s.durations[t.Index]; ok {
		return d
	}
	fn := s.Duration
	if fn == nil {
		fn = mp4util.Duration
	}
	d, err := fn(t.Path)
	if err != nil {
		log.Debugf("Failed to read duration of %v: %v", t.Path, err)
		return 0
	}
	if s.durations == nil {
		s.durations = make(map[int]int)
	}
	s.durations[t.Index] = d
	return d
}

func (s *MetaServer) BuildResponse() (*MetaResponse, error) {
	records, err := s.FS.Records()
	if err != nil {
		return nil, err
	}

	s.l.Lock()
	defer s.l.Unlock()

	resp := &MetaResponse{Session: s.FS.Name()}
	for _, r := range records {
		me := &MetaEntry{
			Index:     r.Index,
			Timestamp: r.ModTime.Unix(),
			HaveVideo: true,
			HaveThumb: r.ThumbPath != "",
			Size:      r.Size,
		}
		if t, ok := s.takes[r.Index]; ok {
			me.Timestamp = t.Started.Unix()
			me.Recording = t.Ended.IsZero()
			if me.Recording {
				me.Status = video.StatusRecording.String()
			} else {
				me.Status = t.Result.Status.String()
				me.Frames = t.Result.Stats.Frames
				me.MeanFPS = t.Result.Stats.MeanFPS()
				me.DurationSec = s.duration(t)
				if t.Result.Err != nil {
					me.Error = t.Result.Err.Error()
				}
			}
		}
		resp.Items = append(resp.Items, me)
		resp.ItemsTotalSize += r.Size
	}
	resp.ItemsCount = len(resp.Items)
	return resp, nil
}

func (s *MetaServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp, err := s.BuildResponse()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	js, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(js)
}
