package cv

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"takecam/video/source"
)

// Frame is a source.Frame backed by a pooled gocv.Mat.
type Frame struct {
	gocv.Mat
	pool *MatPool
}

// Close hands the Mat back to its pool.
func (f *Frame) Close() error {
	if f.pool == nil {
		return f.Mat.Close()
	}
	f.pool.ReleaseMat(f.Mat)
	f.pool = nil
	return nil
}

// Capture reads frames from a camera device through OpenCV.
type Capture struct {
	Device int

	cap  *gocv.VideoCapture
	pool *MatPool
	once sync.Once
}

// OpenDevice opens the camera with the given index.
func OpenDevice(index int) (*Capture, error) {
	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("opening capture device %d: %w", index, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("capture device %d did not open", index)
	}
	log.Infof("Opened capture device %d", index)
	return &Capture{
		Device: index,
		cap:    vc,
		pool:   NewMatPool(),
	}, nil
}

// Opener returns a source.Opener for the device index.
func Opener(index int) source.Opener {
	return func() (source.Source, error) {
		return OpenDevice(index)
	}
}

func (c *Capture) Read() (source.Frame, error) {
	m, err := c.pool.NewMat()
	if err != nil {
		return nil, fmt.Errorf("device %d: %w: %v", c.Device, source.ErrReadFailed, err)
	}
	if ok := c.cap.Read(&m); !ok || m.Empty() {
		c.pool.ReleaseMat(m)
		return nil, fmt.Errorf("device %d: %w", c.Device, source.ErrReadFailed)
	}
	return &Frame{Mat: m, pool: c.pool}, nil
}

func (c *Capture) Close() error {
	var err error
	c.once.Do(func() {
		if c.cap.IsOpened() {
			err = c.cap.Close()
		}
		c.pool.Close()
		log.Debugf("Released capture device %d", c.Device)
	})
	return err
}

// toMat returns f as a Mat, converting foreign frames. release must be called
// when the Mat is no longer needed.
func toMat(f source.Frame) (m gocv.Mat, release func(), err error) {
	if cf, ok := f.(*Frame); ok {
		return cf.Mat, func() {}, nil
	}
	var mt gocv.MatType
	switch f.Channels() {
	case 1:
		mt = gocv.MatTypeCV8UC1
	case 3:
		mt = gocv.MatTypeCV8UC3
	case 4:
		mt = gocv.MatTypeCV8UC4
	default:
		return gocv.Mat{}, nil, fmt.Errorf("unsupported channel count %d", f.Channels())
	}
	m, err = gocv.NewMatFromBytes(f.Rows(), f.Cols(), mt, f.ToBytes())
	if err != nil {
		return gocv.Mat{}, nil, err
	}
	return m, func() { m.Close() }, nil
}
