package source

import (
	"errors"
	"fmt"
	"image"
)

// ErrReadFailed is returned by Source.Read when the device did not produce a
// frame.
var ErrReadFailed = errors.New("failed to read frame")

// Frame is one captured image. Pixel data is row-major with interleaved
// channels (BGR order for 3-channel frames).
type Frame interface {
	Rows() int
	Cols() int
	Channels() int

	// ToBytes returns the raw pixel data. The returned slice is only valid
	// until the frame is closed.
	ToBytes() []byte

	// Close releases the frame. The frame must not be used afterwards.
	Close() error
}

// Size returns the frame dimensions as a point (X = width, Y = height).
func Size(f Frame) image.Point {
	return image.Point{X: f.Cols(), Y: f.Rows()}
}

// Shape formats frame dimensions as "(rows, cols, channels)".
func Shape(f Frame) string {
	return fmt.Sprintf("(%d, %d, %d)", f.Rows(), f.Cols(), f.Channels())
}

// Source defines a stream of frames, such as a camera.
type Source interface {
	// Read blocks until the next frame is available. The caller owns the
	// returned frame and must Close it. A failed read returns an error
	// wrapping ErrReadFailed.
	Read() (Frame, error)

	// Close disconnects from the capture source and frees up all resources.
	Close() error
}

// Opener opens a fresh Source. One is called per take.
type Opener func() (Source, error)
