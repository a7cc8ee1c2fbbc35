package video

import (
	"errors"
	"image"
	"testing"
	"time"

	"takecam/video/source"
)

func newTestRecorder(t *testing.T, src *fakeSource) (*Recorder, *fakeSink) {
	t.Helper()
	p := &fakeProducer{}
	r, err := NewRecorder(src, p, RecorderOptions{Path: "video_0.mp4", FourCC: "mp4v", FPS: 20})
	if err != nil {
		t.Fatalf("NewRecorder() error: %v", err)
	}
	return r, p.sink("video_0.mp4")
}

func TestNewRecorderSizesOutputFromProbe(t *testing.T) {
	p := &fakeProducer{}
	src := &fakeSource{read: endless}
	r, err := NewRecorder(src, p, RecorderOptions{Path: "out.mp4", FourCC: "avc1", FPS: 15})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	s := p.sink("out.mp4")
	if s.opts.Size != (image.Point{X: 4, Y: 2}) {
		t.Errorf("output size = %v, want 4x2", s.opts.Size)
	}
	if s.opts.FourCC != "avc1" || s.opts.FPS != 15 {
		t.Errorf("output options = %+v", s.opts)
	}
	if len(s.written()) != 0 {
		t.Errorf("probe frame must not be written")
	}
}

func TestNewRecorderProbeFailureReleasesSource(t *testing.T) {
	src := &fakeSource{read: failAt(0, false)}
	_, err := NewRecorder(src, &fakeProducer{}, RecorderOptions{Path: "x.mp4", FPS: 20})
	if !errors.Is(err, ErrProbeFailed) || !errors.Is(err, source.ErrReadFailed) {
		t.Fatalf("NewRecorder() = %v, want ErrProbeFailed wrapping ErrReadFailed", err)
	}
	if got := src.closes.Load(); got != 1 {
		t.Errorf("source closed %d times, want 1", got)
	}
}

func TestNewRecorderProducerErrorReleasesSource(t *testing.T) {
	want := errors.New("codec not available")
	src := &fakeSource{read: endless}
	_, err := NewRecorder(src, &fakeProducer{err: want}, RecorderOptions{Path: "x.mp4", FPS: 20})
	if !errors.Is(err, want) {
		t.Fatalf("NewRecorder() = %v, want %v", err, want)
	}
	if got := src.closes.Load(); got != 1 {
		t.Errorf("source closed %d times, want 1", got)
	}
}

func TestRecorderWritesFramesInOrderUntilStopped(t *testing.T) {
	const n = 10
	src := &fakeSource{read: endless}
	r, out := newTestRecorder(t, src)

	reached := make(chan struct{})
	release := make(chan struct{})
	out.onPut = func(written int) error {
		if written == n {
			close(reached)
			<-release
		}
		return nil
	}

	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	<-reached

	resc := make(chan Result)
	go func() { resc <- r.Stop() }()

	// Wait for Stop to clear the flag while the loop is inside Put.
	for r.open.Load() {
		time.Sleep(time.Millisecond)
	}
	select {
	case <-resc:
		t.Fatalf("Stop returned while a frame was still being written")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)

	res := <-resc
	if res.Status != StatusStopped || res.Err != nil {
		t.Fatalf("Stop() = %+v, want stopped without error", res)
	}
	ids := out.written()
	if len(ids) != n {
		t.Fatalf("wrote %d frames, want %d", len(ids), n)
	}
	for i, id := range ids {
		if id != i+1 {
			t.Fatalf("frame %d has id %d, frames out of capture order: %v", i, id, ids)
		}
	}
	if res.Stats.Frames != n {
		t.Errorf("Stats.Frames = %d, want %d", res.Stats.Frames, n)
	}
	if out.closeCount() != 1 || src.closes.Load() != 1 {
		t.Errorf("closes: sink=%d source=%d, want 1 each", out.closeCount(), src.closes.Load())
	}
}

func TestRecorderEndsEarly(t *testing.T) {
	tests := []struct {
		name      string
		k         int
		malformed bool
		status    Status
		err       error
	}{
		{"read failure first frame", 1, false, StatusReadFailure, source.ErrReadFailed},
		{"read failure", 7, false, StatusReadFailure, source.ErrReadFailed},
		{"malformed first frame", 1, true, StatusMalformedFrame, ErrMalformedFrame},
		{"malformed", 5, true, StatusMalformedFrame, ErrMalformedFrame},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := &fakeSource{read: failAt(tc.k, tc.malformed)}
			r, out := newTestRecorder(t, src)
			if err := r.Start(); err != nil {
				t.Fatal(err)
			}
			if err := waitDone(r, 2*time.Second); err != nil {
				t.Fatal(err)
			}

			res := r.Result()
			if res.Status != tc.status {
				t.Errorf("status = %v, want %v", res.Status, tc.status)
			}
			if !res.Status.Early() {
				t.Errorf("status %v should be early", res.Status)
			}
			if !errors.Is(res.Err, tc.err) {
				t.Errorf("err = %v, want %v", res.Err, tc.err)
			}
			if got := len(out.written()); got != tc.k-1 {
				t.Errorf("wrote %d frames, want %d", got, tc.k-1)
			}
			if out.closeCount() != 1 || src.closes.Load() != 1 {
				t.Errorf("closes: sink=%d source=%d, want 1 each", out.closeCount(), src.closes.Load())
			}

			// Stop after an early end is harmless and reports the same result.
			if again := r.Stop(); again.Status != tc.status {
				t.Errorf("Stop() after early end = %v, want %v", again.Status, tc.status)
			}
			if out.closeCount() != 1 || src.closes.Load() != 1 {
				t.Errorf("teardown ran more than once")
			}
		})
	}
}

func TestRecorderFiftyFramesThenReadFailure(t *testing.T) {
	src := &fakeSource{read: failAt(51, false)}
	r, out := newTestRecorder(t, src)
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	if err := waitDone(r, 2*time.Second); err != nil {
		t.Fatal(err)
	}
	res := r.Stop()
	if res.Status != StatusReadFailure {
		t.Errorf("status = %v, want read failure", res.Status)
	}
	if got := len(out.written()); got != 50 {
		t.Errorf("wrote %d frames, want 50", got)
	}
	if res.Stats.Frames != 50 {
		t.Errorf("Stats.Frames = %d, want 50", res.Stats.Frames)
	}
	if out.closeCount() != 1 || src.closes.Load() != 1 {
		t.Errorf("closes: sink=%d source=%d, want 1 each", out.closeCount(), src.closes.Load())
	}
}

func TestRecorderStopWaitsForInFlightRead(t *testing.T) {
	const k = 3
	inRead := make(chan struct{})
	release := make(chan struct{})
	src := &fakeSource{read: func(n int) (source.Frame, error) {
		if n == k {
			close(inRead)
			<-release
		}
		return testFrame(n, 3), nil
	}}
	r, out := newTestRecorder(t, src)
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	<-inRead

	resc := make(chan Result)
	go func() { resc <- r.Stop() }()
	select {
	case <-resc:
		t.Fatalf("Stop returned while a read was in flight")
	case <-time.After(30 * time.Millisecond):
	}
	if src.closes.Load() != 0 {
		t.Fatalf("source released while a read was in flight")
	}
	close(release)

	res := <-resc
	if res.Status != StatusStopped {
		t.Errorf("status = %v, want stopped", res.Status)
	}
	// The in-flight frame completes and is written before the loop sees the flag.
	if got := len(out.written()); got != k {
		t.Errorf("wrote %d frames, want %d", got, k)
	}
	if out.closeCount() != 1 || src.closes.Load() != 1 {
		t.Errorf("closes: sink=%d source=%d, want 1 each", out.closeCount(), src.closes.Load())
	}
}

func TestRecorderWriteFailure(t *testing.T) {
	want := errors.New("disk full")
	src := &fakeSource{read: endless}
	r, out := newTestRecorder(t, src)
	out.onPut = func(written int) error {
		if written == 4 {
			return want
		}
		return nil
	}
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	if err := waitDone(r, 2*time.Second); err != nil {
		t.Fatal(err)
	}
	res := r.Result()
	if res.Status != StatusWriteFailure || !errors.Is(res.Err, want) {
		t.Errorf("result = %+v, want write failure wrapping %v", res, want)
	}
}

func TestRecorderReleaseErrorIsReported(t *testing.T) {
	want := errors.New("moov atom write failed")
	src := &fakeSource{read: endless}
	r, out := newTestRecorder(t, src)
	out.closeErr = want
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	res := r.Stop()
	if res.Status != StatusStopped {
		t.Errorf("status = %v, want stopped", res.Status)
	}
	if !errors.Is(res.Err, want) {
		t.Errorf("err = %v, want %v", res.Err, want)
	}
	if src.closes.Load() != 1 {
		t.Errorf("source must still be released after a writer release failure")
	}
}

func TestRecorderStopWithoutStart(t *testing.T) {
	src := &fakeSource{read: endless}
	r, out := newTestRecorder(t, src)

	if got := r.Result().Status; got != StatusRecording {
		t.Errorf("status before stop = %v, want recording", got)
	}
	res := r.Stop()
	if res.Status != StatusStopped || res.Stats.Frames != 0 {
		t.Errorf("Stop() = %+v", res)
	}
	if out.closeCount() != 1 || src.closes.Load() != 1 {
		t.Errorf("closes: sink=%d source=%d, want 1 each", out.closeCount(), src.closes.Load())
	}
	if err := r.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Start() after Stop = %v, want ErrAlreadyStarted", err)
	}
	r.Stop()
	if out.closeCount() != 1 {
		t.Errorf("second Stop released handles again")
	}
}

func TestRecorderStartTwice(t *testing.T) {
	r, _ := newTestRecorder(t, &fakeSource{read: endless})
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()
	if err := r.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() = %v, want ErrAlreadyStarted", err)
	}
}

func TestRecorderStatsAreMonotonic(t *testing.T) {
	src := &fakeSource{read: failAt(40, false)}
	r, out := newTestRecorder(t, src)

	var snaps []Stats
	out.onPut = func(int) error {
		snaps = append(snaps, r.Stats())
		return nil
	}
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	if err := waitDone(r, 2*time.Second); err != nil {
		t.Fatal(err)
	}

	if len(snaps) != 39 {
		t.Fatalf("got %d snapshots, want 39", len(snaps))
	}
	for i := 1; i < len(snaps); i++ {
		if snaps[i].Frames < snaps[i-1].Frames || snaps[i].Elapsed < snaps[i-1].Elapsed {
			t.Fatalf("stats went backwards: %+v then %+v", snaps[i-1], snaps[i])
		}
		if !snaps[i].Start.Equal(snaps[0].Start) {
			t.Fatalf("start time changed during the take")
		}
	}
	final := r.Result().Stats
	if final.Frames != 39 || final.Elapsed < snaps[len(snaps)-1].Elapsed {
		t.Errorf("final stats %+v inconsistent with last snapshot %+v", final, snaps[len(snaps)-1])
	}
}
