package sink

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"

	"takecam/util"
	"takecam/video/source"
)

// ffmpegCodecs maps FourCC tags to ffmpeg encoder names.
var ffmpegCodecs = map[string]string{
	"mp4v": "mpeg4",
	"xvid": "mpeg4",
	"avc1": "libx264",
	"h264": "libx264",
	"x264": "libx264",
	"mjpg": "mjpeg",
}

// FFmpegProducer creates sinks which pipe raw frames into an ffmpeg process.
type FFmpegProducer struct {
	// Binary is the ffmpeg executable. If empty it is located with
	// util.LocateFFmpeg.
	Binary string
	// Preset is passed to x264 based encoders. Defaults to "superfast".
	Preset string
}

func (p *FFmpegProducer) New(path string, o Options) (Sink, error) {
	bin := p.Binary
	if bin == "" {
		var err error
		if bin, err = util.LocateFFmpeg(); err != nil {
			return nil, err
		}
	}
	return NewFFmpegSink(bin, path, o, p.Preset)
}

type putReq struct {
	b    []byte
	errc chan error
}

type FFmpegSink struct {
	opts Options

	b     chan putReq
	close chan chan error
	done  chan struct{}
}

func ffmpegArgs(path string, o Options, preset string) []string {
	codec, ok := ffmpegCodecs[strings.ToLower(o.FourCC)]
	if !ok {
		codec = "libx264"
	}
	args := []string{
		"-y",
		"-loglevel", "error",
		// Configure ffmpeg to read raw frames from the pipe.
		"-f", "rawvideo",
		"-pixel_format", "bgr24",
		"-video_size", fmt.Sprintf("%dx%d", o.Size.X, o.Size.Y),
		"-framerate", fmt.Sprintf("%g", o.FPS),
		"-i", "-", // Read from stdin.
		"-c:v", codec,
	}
	if codec == "libx264" {
		if preset == "" {
			preset = "superfast"
		}
		args = append(args, "-preset", preset, "-pix_fmt", "yuv420p")
	}
	// Enable fast-start so videos can be played back without full download.
	args = append(args, "-movflags", "+faststart", path)
	return args
}

// NewFFmpegSink starts ffmpeg writing to path. Frames must be 3-channel BGR of
// size o.Size.
func NewFFmpegSink(bin, path string, o Options, preset string) (*FFmpegSink, error) {
	if o.Size.X <= 0 || o.Size.Y <= 0 {
		return nil, fmt.Errorf("invalid frame size %v", o.Size)
	}
	if o.FPS <= 0 {
		return nil, fmt.Errorf("invalid frame rate %v", o.FPS)
	}

	c := exec.Command(bin, ffmpegArgs(path, o, preset)...)
	var stderr strings.Builder
	c.Stderr = &stderr

	pipe, err := c.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin: %w", err)
	}
	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("starting ffmpeg: %w", err)
	}
	log.Debugf("Started ffmpeg (pid %d) writing to %v", c.Process.Pid, path)

	f := &FFmpegSink{
		opts:  o,
		b:     make(chan putReq),
		close: make(chan chan error),
		done:  make(chan struct{}),
	}
	go f.run(c, pipe, &stderr)
	return f, nil
}

func (f *FFmpegSink) run(c *exec.Cmd, pipe io.WriteCloser, stderr *strings.Builder) {
	defer close(f.done)

	var werr error
	var closer chan error
loop:
	for {
		select {
		case closer = <-f.close:
			break loop
		case req := <-f.b:
			if werr == nil {
				if _, err := pipe.Write(req.b); err != nil {
					werr = fmt.Errorf("writing to ffmpeg: %w", err)
				}
			}
			req.errc <- werr
		}
	}

	pipe.Close()
	log.Debugf("Waiting for ffmpeg shutdown.")
	err := c.Wait()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		err = fmt.Errorf("ffmpeg exited: %w: %s", err, msg)
		log.Errorf("%v", err)
	}
	closer <- errors.Join(werr, err)
}

func (f *FFmpegSink) Put(frame source.Frame) error {
	if frame.Channels() != 3 {
		return fmt.Errorf("ffmpeg sink needs 3 channels, got %d", frame.Channels())
	}
	if sz := source.Size(frame); sz != f.opts.Size {
		return fmt.Errorf("frame size %v does not match output size %v", sz, f.opts.Size)
	}
	req := putReq{b: frame.ToBytes(), errc: make(chan error, 1)}
	select {
	case f.b <- req:
	case <-f.done:
		return errors.New("ffmpeg sink closed")
	}
	return <-req.errc
}

// Close finishes the stream and waits for ffmpeg to exit.
func (f *FFmpegSink) Close() error {
	c := make(chan error)
	select {
	case f.close <- c:
		return <-c
	case <-f.done:
		return nil
	}
}
