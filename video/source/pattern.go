package source

import (
	"errors"
	"image"
	"sync"
	"time"
)

// Pattern is a synthetic Source producing a moving bar test pattern at a fixed
// rate. It stands in for a camera when none is attached.
type Pattern struct {
	size  image.Point
	tick  *time.Ticker
	frame int

	closed chan struct{}
	once   sync.Once
}

// NewPattern creates a test pattern source of the given size. fps <= 0 means
// frames are produced as fast as they are read.
func NewPattern(size image.Point, fps int) *Pattern {
	p := &Pattern{
		size:   size,
		closed: make(chan struct{}),
	}
	if fps > 0 {
		p.tick = time.NewTicker(time.Second / time.Duration(fps))
	}
	return p
}

func (p *Pattern) Read() (Frame, error) {
	if p.tick != nil {
		select {
		case <-p.closed:
			return nil, errors.Join(ErrReadFailed, errors.New("pattern source closed"))
		case <-p.tick.C:
		}
	} else {
		select {
		case <-p.closed:
			return nil, errors.Join(ErrReadFailed, errors.New("pattern source closed"))
		default:
		}
	}

	b := NewBuffer(p.size.X, p.size.Y, 3)
	bar := 0
	if p.size.X > 0 {
		bar = (p.frame * 4) % p.size.X
	}
	for y := 0; y < p.size.Y; y++ {
		for x := 0; x < p.size.X; x++ {
			i := (y*p.size.X + x) * 3
			b.Data[i] = byte(x * 255 / max(p.size.X, 1))
			b.Data[i+1] = byte(y * 255 / max(p.size.Y, 1))
			if x >= bar && x < bar+8 {
				b.Data[i+2] = 255
			}
		}
	}
	p.frame++
	return b, nil
}

func (p *Pattern) Close() error {
	p.once.Do(func() {
		if p.tick != nil {
			p.tick.Stop()
		}
		close(p.closed)
	})
	return nil
}
