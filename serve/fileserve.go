package serve

import (
	"fmt"
	"net/http"
	"os"
	"strconv"

	"takecam/video"
)

// indexParam parses the "index" form value naming a take.
func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, false
	}
	index, err := strconv.Atoi(r.Form.Get("index"))
	if err != nil || index < 0 {
		http.Error(w, fmt.Sprintf("invalid take index %q", r.Form.Get("index")), http.StatusBadRequest)
		return 0, false
	}
	return index, true
}

type FileServer struct {
	FS          *video.Filesystem
	PathFunc    func(r *video.VideoRecord) string
	ContentType string
}

func NewVideoServer(fs *video.Filesystem) *FileServer {
	return &FileServer{
		FS: fs,
		PathFunc: func(r *video.VideoRecord) string {
			return r.VideoPath
		},
		ContentType: "video/mp4",
	}
}

func NewThumbServer(fs *video.Filesystem) *FileServer {
	return &FileServer{
		FS: fs,
		PathFunc: func(r *video.VideoRecord) string {
			return r.ThumbPath
		},
		ContentType: "image/jpeg",
	}
}

func (s *FileServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	vr := s.FS.Record(index)
	if vr == nil {
		http.Error(w, fmt.Sprintf("No take found for index %v", index), http.StatusNotFound)
		return
	}

	p := s.PathFunc(vr)
	if p == "" {
		http.Error(w, "file not available", http.StatusNotFound)
		return
	}
	f, err := os.Open(p)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", s.ContentType)
	// ServeContent handles range requests, which browsers need for seeking.
	http.ServeContent(w, r, st.Name(), st.ModTime(), f)
}
