package util

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	log "github.com/sirupsen/logrus"
)

// EnvFFmpeg overrides the ffmpeg binary location.
const EnvFFmpeg = "FFMPEG"

var ErrFFmpegNotFound = errors.New("ffmpeg binary not found")

// LocateFFmpeg finds the ffmpeg binary, preferring $FFMPEG over $PATH.
func LocateFFmpeg() (string, error) {
	if p := os.Getenv(EnvFFmpeg); p != "" {
		st, err := os.Stat(p)
		if err != nil {
			return "", fmt.Errorf("%s=%q: %w", EnvFFmpeg, p, err)
		}
		if st.IsDir() {
			return "", fmt.Errorf("%s=%q is a directory: %w", EnvFFmpeg, p, ErrFFmpegNotFound)
		}
		return p, nil
	}
	p, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFFmpegNotFound, err)
	}
	return p, nil
}

func LocateFFmpegOrDie() string {
	p, err := LocateFFmpeg()
	if err != nil {
		log.Fatalf("Unable to locate ffmpeg: %v", err)
	}
	return p
}
