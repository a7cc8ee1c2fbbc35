package video

import (
	"errors"
	"time"
)

var (
	ErrAlreadyStarted = errors.New("recorder already started or stopped")
	ErrProbeFailed    = errors.New("failed to read probe frame")
	ErrMalformedFrame = errors.New("frame does not have 3 channels")
)

// Status is the reason a take ended.
type Status int

const (
	// StatusRecording means the take has not ended yet.
	StatusRecording Status = iota
	// StatusStopped means the take was stopped on request.
	StatusStopped
	StatusReadFailure
	StatusMalformedFrame
	StatusWriteFailure
	// StatusOpenFailure means the capture device or the writer could not be
	// opened, so no recording happened.
	StatusOpenFailure
)

var statusNames = map[Status]string{
	StatusRecording:      "recording",
	StatusStopped:        "stopped",
	StatusReadFailure:    "read_failure",
	StatusMalformedFrame: "malformed_frame",
	StatusWriteFailure:   "write_failure",
	StatusOpenFailure:    "open_failure",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

// Early reports whether the take ended without being asked to.
func (s Status) Early() bool {
	return s != StatusRecording && s != StatusStopped
}

// Stats are the running counters of one Recorder.
type Stats struct {
	Frames  int
	Start   time.Time
	Elapsed time.Duration
}

// MeanFPS is the average rate frames were captured at.
func (s Stats) MeanFPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Frames) / s.Elapsed.Seconds()
}

// Result describes how a Recorder finished.
type Result struct {
	Status Status
	// Err is the cause of an early end, joined with any release failures.
	Err   error
	Stats Stats
}
