package cv

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"takecam/video/sink"
	"takecam/video/source"
)

// VideoWriterProducer creates sinks that wrap OpenCV's VideoWriter, letting
// OpenCV pick the container from the file extension and the codec from the
// FourCC tag.
type VideoWriterProducer struct{}

func (VideoWriterProducer) New(path string, o sink.Options) (sink.Sink, error) {
	return NewVideoWriter(path, o)
}

type VideoWriter struct {
	path   string
	opts   sink.Options
	writer *gocv.VideoWriter
}

func NewVideoWriter(path string, o sink.Options) (*VideoWriter, error) {
	w, err := gocv.VideoWriterFile(path, o.FourCC, o.FPS, o.Size.X, o.Size.Y, true)
	if err != nil {
		return nil, fmt.Errorf("opening video writer %v: %w", path, err)
	}
	if !w.IsOpened() {
		w.Close()
		return nil, fmt.Errorf("video writer %v (%s) did not open", path, o.FourCC)
	}
	log.Infof("Writing %v (%s, %dx%d @ %g fps)", path, o.FourCC, o.Size.X, o.Size.Y, o.FPS)
	return &VideoWriter{
		path:   path,
		opts:   o,
		writer: w,
	}, nil
}

func (v *VideoWriter) Put(f source.Frame) error {
	if sz := source.Size(f); sz != v.opts.Size {
		return fmt.Errorf("frame size %v does not match output size %v", sz, v.opts.Size)
	}
	m, release, err := toMat(f)
	if err != nil {
		return err
	}
	defer release()
	return v.writer.Write(m)
}

func (v *VideoWriter) Close() error {
	if !v.writer.IsOpened() {
		return nil
	}
	return v.writer.Close()
}
