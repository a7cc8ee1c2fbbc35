package video

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// SessionTimeLayout names the per-run directory.
	// See https://golang.org/src/time/format.go.
	SessionTimeLayout = "2006-01-02_15-04-05"

	TakePrefix = "video_"
	ExtVideo   = ".mp4"
	ExtThumb   = ".jpg"
)

// VideoRecord is a take file found on disk.
type VideoRecord struct {
	Index int

	VideoPath string
	// ThumbPath is empty when no thumbnail exists.
	ThumbPath string

	Size    int64
	ModTime time.Time
}

// Filesystem is the directory of one recording session.
type Filesystem struct {
	BasePath string
	Dir      string
	Started  time.Time
}

// NewFilesystem creates (if absent) the session directory under base, named
// after t.
func NewFilesystem(base string, t time.Time) (*Filesystem, error) {
	dir := filepath.Join(base, t.Format(SessionTimeLayout))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	return &Filesystem{
		BasePath: base,
		Dir:      dir,
		Started:  t,
	}, nil
}

// Name is the session directory name.
func (f *Filesystem) Name() string {
	return filepath.Base(f.Dir)
}

// TakePath is the output file of take index.
func (f *Filesystem) TakePath(index int) string {
	return filepath.Join(f.Dir, TakePrefix+strconv.Itoa(index)+ExtVideo)
}

// ThumbPath is the thumbnail file belonging to a take file.
func ThumbPath(videoPath string) string {
	return strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ExtThumb
}

func parseTakeIndex(name string) (int, bool) {
	if !strings.HasPrefix(name, TakePrefix) || !strings.HasSuffix(name, ExtVideo) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, TakePrefix), ExtVideo))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Records lists the session's take files, ordered by index.
func (f *Filesystem) Records() ([]*VideoRecord, error) {
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		return nil, err
	}

	var records []*VideoRecord
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n, ok := parseTakeIndex(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		v := &VideoRecord{
			Index:     n,
			VideoPath: filepath.Join(f.Dir, e.Name()),
			Size:      info.Size(),
			ModTime:   info.ModTime(),
		}
		if _, err := os.Stat(ThumbPath(v.VideoPath)); err == nil {
			v.ThumbPath = ThumbPath(v.VideoPath)
		}
		records = append(records, v)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Index < records[j].Index
	})
	return records, nil
}

// Record returns the take file with the given index, or nil.
func (f *Filesystem) Record(index int) *VideoRecord {
	p := f.TakePath(index)
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return nil
	}
	v := &VideoRecord{
		Index:     index,
		VideoPath: p,
		Size:      info.Size(),
		ModTime:   info.ModTime(),
	}
	if _, err := os.Stat(ThumbPath(p)); err == nil {
		v.ThumbPath = ThumbPath(p)
	}
	return v
}

// Delete removes a take file and its thumbnail.
func (v *VideoRecord) Delete() error {
	if err := os.Remove(v.VideoPath); err != nil {
		return err
	}
	if v.ThumbPath != "" {
		if err := os.Remove(v.ThumbPath); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
