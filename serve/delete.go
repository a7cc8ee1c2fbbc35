package serve

import (
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"takecam/video"
)

type DeleteServer struct {
	FS *video.Filesystem
	// Recording reports whether a take is still being written; such takes
	// cannot be deleted.
	Recording func(index int) bool
}

func (s *DeleteServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	if s.Recording != nil && s.Recording(index) {
		http.Error(w, fmt.Sprintf("take %v is still recording", index), http.StatusConflict)
		return
	}
	vr := s.FS.Record(index)
	if vr == nil {
		http.Error(w, fmt.Sprintf("No take found for index %v", index), http.StatusNotFound)
		return
	}

	if err := vr.Delete(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	log.Infof("Deleted take %v (%v)", index, vr.VideoPath)
}
