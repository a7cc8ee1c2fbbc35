package cv

import (
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"takecam/video/sink"
	"takecam/video/source"
)

var (
	colorTime = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorBG   = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

// DrawTimestamp draws "name - time" in the top left corner of img.
func DrawTimestamp(name string, t time.Time, img *gocv.Mat) {
	text := t.Format("2006-01-02 15:04:05 MST")
	if name != "" {
		text = name + " - " + text
	}

	font := gocv.FontHersheySimplex
	scale := 0.5
	thickness := 1

	sz := gocv.GetTextSize(text, font, scale, thickness)

	pad := 2

	gocv.Rectangle(img, image.Rectangle{Min: image.Point{X: 0, Y: 0}, Max: image.Point{X: sz.X + pad*2, Y: sz.Y + pad*2}}, colorBG, -1)

	gocv.PutText(img, text, image.Point{X: pad, Y: sz.Y + pad}, font, scale, colorTime, thickness)
}

// TimestampSink stamps the wall clock time onto each frame before passing it
// on.
type TimestampSink struct {
	Name string
	next sink.Sink
}

func NewTimestampSink(name string, next sink.Sink) *TimestampSink {
	return &TimestampSink{
		Name: name,
		next: next,
	}
}

func (s *TimestampSink) Put(f source.Frame) error {
	m, release, err := toMat(f)
	if err != nil {
		return err
	}
	defer release()
	DrawTimestamp(s.Name, time.Now(), &m)
	// No pool: the wrapper is never closed, release owns the Mat.
	return s.next.Put(&Frame{Mat: m})
}

func (s *TimestampSink) Close() error {
	return s.next.Close()
}
