package cv

import (
	"fmt"

	"gocv.io/x/gocv"
)

// maxPoolAllocations bounds the number of live Mats. Exceeding it means a
// Frame isn't being closed.
const maxPoolAllocations = 64

type MatPool struct {
	new   chan chan matResult
	free  chan gocv.Mat
	close chan chan bool

	allocated int
	available []gocv.Mat
}

type matResult struct {
	m   gocv.Mat
	err error
}

func NewMatPool() *MatPool {
	p := &MatPool{
		new:   make(chan chan matResult),
		free:  make(chan gocv.Mat),
		close: make(chan chan bool),
	}
	go func() {
		closed := false
		for {
			select {
			case c := <-p.close:
				closed = true
				for _, m := range p.available {
					m.Close()
					p.allocated--
				}
				p.available = nil
				c <- true
			case m := <-p.free:
				if closed {
					m.Close()
					p.allocated--
				} else {
					p.available = append(p.available, m)
				}
			case r := <-p.new:
				if closed {
					r <- matResult{err: fmt.Errorf("mat pool closed")}
					continue
				}
				var m gocv.Mat
				if len(p.available) > 0 {
					m, p.available = p.available[0], p.available[1:]
				} else if p.allocated >= maxPoolAllocations {
					r <- matResult{err: fmt.Errorf("too many mat pool allocations (%d); is a frame not being closed?", p.allocated)}
					continue
				} else {
					m = gocv.NewMat()
					p.allocated++
				}
				r <- matResult{m: m}
			}
		}
	}()
	return p
}

func (p *MatPool) NewMat() (gocv.Mat, error) {
	r := make(chan matResult)
	p.new <- r
	res := <-r
	return res.m, res.err
}

func (p *MatPool) ReleaseMat(m gocv.Mat) {
	p.free <- m
}

// Close frees pooled Mats. Mats released after Close are freed immediately.
func (p *MatPool) Close() {
	c := make(chan bool)
	p.close <- c
	<-c
}
