package cv

import (
	"fmt"
	"image"
	"os"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"takecam/video/sink"
	"takecam/video/source"
)

// ThumbSize is the size of take thumbnails.
var ThumbSize = image.Point{X: 240, Y: 135}

func WriteThumb(path string, img gocv.Mat) error {
	tmat := gocv.NewMat()
	defer tmat.Close()
	gocv.Resize(img, &tmat, ThumbSize, 0, 0, gocv.InterpolationArea)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, tmat)
	if err != nil {
		return fmt.Errorf("encoding thumbnail: %w", err)
	}
	defer buf.Close()

	return os.WriteFile(path, buf.GetBytes(), 0644)
}

// ThumbSink writes the first frame of a take as a JPEG thumbnail, then passes
// every frame on unchanged.
type ThumbSink struct {
	path    string
	next    sink.Sink
	written bool
}

func NewThumbSink(path string, next sink.Sink) *ThumbSink {
	return &ThumbSink{
		path: path,
		next: next,
	}
}

func (s *ThumbSink) Put(f source.Frame) error {
	if !s.written {
		s.written = true
		if m, release, err := toMat(f); err != nil {
			log.Errorf("failed to generate thumbnail: %v", err)
		} else {
			if err := WriteThumb(s.path, m); err != nil {
				log.Errorf("failed to generate thumbnail: %v", err)
			} else {
				log.Infof("thumbnail written to %v", s.path)
			}
			release()
		}
	}
	return s.next.Put(f)
}

func (s *ThumbSink) Close() error {
	return s.next.Close()
}
