package video

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"takecam/video/sink"
	"takecam/video/source"
)

// testFrame is a 4x2 frame whose first byte carries its read number.
func testFrame(id, chans int) source.Frame {
	b := source.NewBuffer(4, 2, chans)
	b.Data[0] = byte(id)
	return b
}

// fakeSource calls read with the number of the read, starting at 0 for the
// probe frame.
type fakeSource struct {
	read   func(n int) (source.Frame, error)
	n      int
	closes atomic.Int32
}

func (s *fakeSource) Read() (source.Frame, error) {
	n := s.n
	s.n++
	return s.read(n)
}

func (s *fakeSource) Close() error {
	s.closes.Add(1)
	return nil
}

// endless produces valid frames forever.
func endless(n int) (source.Frame, error) {
	return testFrame(n, 3), nil
}

// failAt produces valid frames until read k, which fails or is malformed.
func failAt(k int, malformed bool) func(int) (source.Frame, error) {
	return func(n int) (source.Frame, error) {
		if n == k {
			if malformed {
				return testFrame(n, 4), nil
			}
			return nil, fmt.Errorf("device unplugged: %w", source.ErrReadFailed)
		}
		return testFrame(n, 3), nil
	}
}

type fakeSink struct {
	opts sink.Options

	mu       sync.Mutex
	ids      []int
	closes   int
	closeErr error
	// onPut runs after a frame is recorded, with the number written so far.
	onPut func(written int) error
}

func (s *fakeSink) Put(f source.Frame) error {
	s.mu.Lock()
	s.ids = append(s.ids, int(f.ToBytes()[0]))
	n := len(s.ids)
	hook := s.onPut
	s.mu.Unlock()
	if hook != nil {
		return hook(n)
	}
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return s.closeErr
}

func (s *fakeSink) written() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.ids...)
}

func (s *fakeSink) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// fakeProducer hands out fakeSinks and remembers them by path.
type fakeProducer struct {
	mu    sync.Mutex
	sinks map[string]*fakeSink
	paths []string
	err   error
	setup func(s *fakeSink)
}

func (p *fakeProducer) New(path string, o sink.Options) (sink.Sink, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	if p.sinks == nil {
		p.sinks = make(map[string]*fakeSink)
	}
	s := &fakeSink{opts: o}
	if p.setup != nil {
		p.setup(s)
	}
	p.sinks[path] = s
	p.paths = append(p.paths, path)
	return s, nil
}

func (p *fakeProducer) sink(path string) *fakeSink {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sinks[path]
}

func waitDone(r *Recorder, d time.Duration) error {
	select {
	case <-r.Done():
		return nil
	case <-time.After(d):
		return errors.New("recorder did not finish in time")
	}
}
