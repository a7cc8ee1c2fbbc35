package config

import (
	"fmt"
)

const (
	EncoderOpenCV = "opencv"
	EncoderFFmpeg = "ffmpeg"
)

type Config struct {
	// Device is the camera index passed to OpenCV.
	Device int
	// Synthetic records a generated test pattern instead of a camera.
	Synthetic bool

	FPS    float64
	FourCC string
	// Encoder is "opencv" (VideoWriter) or "ffmpeg" (piped to ffmpeg).
	Encoder      string
	FFmpegPreset string

	// BasePath is where session directories are created.
	BasePath string

	// KeyMode is "any" (press, hold or release ends a take) or "press".
	KeyMode string

	// If non-empty, frames are stamped with this label and the time.
	TimestampLabel string
	Thumbnails     bool

	// DatabaseDSN enables the take catalog and web push (MySQL DSN).
	DatabaseDSN    string
	PushSubscriber string
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Device:         0,
		FPS:            20,
		FourCC:         "mp4v",
		Encoder:        EncoderOpenCV,
		BasePath:       ".",
		KeyMode:        "any",
		Thumbnails:     true,
		PushSubscriber: "takecam@localhost",
	}
}

func (c *Config) Validate() error {
	if c.FPS <= 0 {
		return fmt.Errorf("FPS must be positive, got %v", c.FPS)
	}
	if len(c.FourCC) != 4 {
		return fmt.Errorf("FourCC must be 4 characters, got %q", c.FourCC)
	}
	switch c.Encoder {
	case EncoderOpenCV, EncoderFFmpeg:
	default:
		return fmt.Errorf("unknown encoder %q", c.Encoder)
	}
	switch c.KeyMode {
	case "any", "press":
	default:
		return fmt.Errorf("unknown key mode %q", c.KeyMode)
	}
	if c.Device < 0 {
		return fmt.Errorf("device index must not be negative, got %d", c.Device)
	}
	if c.BasePath == "" {
		return fmt.Errorf("BasePath must not be empty")
	}
	return nil
}
