package video

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"takecam/util"
	"takecam/video/sink"
	"takecam/video/source"
)

type RecorderOptions struct {
	// Path is the output video file.
	Path   string
	FourCC string
	FPS    float64
}

// Recorder records one take: it reads frames from a Source on a background
// goroutine and writes them, in capture order, to a Sink until it is stopped
// or the source fails.
type Recorder struct {
	opts RecorderOptions
	src  source.Source
	out  sink.Sink
	log  *log.Entry

	// open is cleared to ask the capture loop to exit.
	open     atomic.Bool
	started  atomic.Bool
	teardown sync.Once
	done     *util.Event

	l      sync.Mutex
	stats  Stats
	result Result
}

// NewRecorder takes ownership of src. It reads one probe frame to learn the
// frame size and opens the output through p. On error src is closed.
func NewRecorder(src source.Source, p sink.Producer, o RecorderOptions) (*Recorder, error) {
	probe, err := src.Read()
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("%w: %w", ErrProbeFailed, err)
	}
	size := source.Size(probe)
	probe.Close()

	out, err := p.New(o.Path, sink.Options{
		FourCC: o.FourCC,
		FPS:    o.FPS,
		Size:   size,
	})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("opening output %v: %w", o.Path, err)
	}

	r := &Recorder{
		opts: o,
		src:  src,
		out:  out,
		log:  log.WithField("path", o.Path),
		done: util.NewEvent(),
	}
	r.open.Store(true)
	return r, nil
}

// Start begins recording on a background goroutine and returns immediately.
// A Recorder can only be started once.
func (r *Recorder) Start() error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	r.l.Lock()
	r.stats.Start = time.Now()
	r.l.Unlock()

	go r.record()
	return nil
}

func (r *Recorder) record() {
	recording.Set(1)
	status, err := r.loop()
	r.finish(status, err)
}

func (r *Recorder) loop() (Status, error) {
	for r.open.Load() {
		f, err := r.src.Read()
		if err != nil {
			r.log.Errorf("Failed to capture video frame: %v", err)
			return StatusReadFailure, err
		}

		if c := f.Channels(); c != 3 {
			f.Close()
			r.log.Warnf("Frame does not have 3 channels (got %d), ending take", c)
			return StatusMalformedFrame, fmt.Errorf("%w: got %d", ErrMalformedFrame, c)
		}

		st := r.recordStatus()
		r.log.Debugf("Frame shape: %v", source.Shape(f))
		err = r.out.Put(f)
		f.Close()
		if err != nil {
			r.log.Errorf("Failed to write video frame: %v", err)
			return StatusWriteFailure, err
		}
		framesWritten.Inc()
		r.log.Debugf("%d frames written in %.2f seconds, mean FPS %.2f", st.Frames, st.Elapsed.Seconds(), st.MeanFPS())
	}
	return StatusStopped, nil
}

// recordStatus counts a frame and refreshes the elapsed time.
func (r *Recorder) recordStatus() Stats {
	r.l.Lock()
	defer r.l.Unlock()
	r.stats.Frames++
	r.stats.Elapsed = time.Since(r.stats.Start)
	return r.stats
}

// finish releases the output and the source exactly once and publishes the
// result.
func (r *Recorder) finish(status Status, cause error) {
	r.teardown.Do(func() {
		errs := []error{cause}
		if err := r.out.Close(); err != nil {
			r.log.Errorf("Failed to release video writer: %v", err)
			errs = append(errs, fmt.Errorf("closing output: %w", err))
		}
		if err := r.src.Close(); err != nil {
			r.log.Errorf("Failed to release capture device: %v", err)
			errs = append(errs, fmt.Errorf("closing source: %w", err))
		}

		r.l.Lock()
		r.result = Result{
			Status: status,
			Err:    errors.Join(errs...),
			Stats:  r.stats,
		}
		r.l.Unlock()

		r.log.Infof("Take finished (%v): %d frames in %.2f seconds, mean FPS %.2f",
			status, r.stats.Frames, r.stats.Elapsed.Seconds(), r.stats.MeanFPS())
		r.done.Notify()
	})
}

// Stop asks the capture loop to exit and blocks until both handles are
// released. Stopping a Recorder that was never started releases its handles.
// Every call returns the same Result.
func (r *Recorder) Stop() Result {
	r.open.Store(false)
	if r.started.CompareAndSwap(false, true) {
		r.finish(StatusStopped, nil)
	}
	r.done.Wait()
	return r.Result()
}

// Done is closed once the Recorder has finished and released its handles,
// whether or not Stop was called.
func (r *Recorder) Done() <-chan struct{} {
	return r.done.C()
}

// Result reports how the Recorder finished. Before Done is closed the status
// is StatusRecording.
func (r *Recorder) Result() Result {
	r.l.Lock()
	defer r.l.Unlock()
	if !r.done.HasBeenNotified() {
		return Result{Status: StatusRecording, Stats: r.stats}
	}
	return r.result
}

// Stats returns a snapshot of the frame counter and elapsed time.
func (r *Recorder) Stats() Stats {
	r.l.Lock()
	defer r.l.Unlock()
	return r.stats
}

func (r *Recorder) Path() string {
	return r.opts.Path
}
