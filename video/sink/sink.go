package sink

import (
	"image"

	"takecam/video/source"
)

// Sink defines a destination for a stream of frames, such as a video file or
// monitor.
type Sink interface {
	// Put writes a frame to the sink. The caller keeps ownership of the frame;
	// the sink must not hold any references to it after Put returns.
	Put(f source.Frame) error

	// Close should be called to finalize the Sink.
	Close() error
}

// Options describe the output container of a video Sink.
type Options struct {
	// FourCC is the four character codec tag, e.g. "mp4v".
	FourCC string
	FPS    float64
	// Size is the frame size (X = width, Y = height) every frame must match.
	Size image.Point
}

// Producer opens a new Sink writing to path.
type Producer interface {
	New(path string, o Options) (Sink, error)
}

// ProducerFunc adapts a function to the Producer interface.
type ProducerFunc func(path string, o Options) (Sink, error)

func (f ProducerFunc) New(path string, o Options) (Sink, error) {
	return f(path, o)
}
