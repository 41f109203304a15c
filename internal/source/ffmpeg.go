package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"time"

	"github.com/ivlev/vectorscope/internal/ingest"
)

// FFmpegSource captures a device, or decodes a file or URL, through ffmpeg as raw BGRA
// frames of the configured size.
type FFmpegSource struct {
	input string
	opts  Options
}

// NewFFmpegSource reads input, or the capture device when input is empty.
func NewFFmpegSource(input string, opts Options) *FFmpegSource {
	return &FFmpegSource{input: input, opts: opts.withDefaults()}
}

func (s *FFmpegSource) Args() ([]string, error) {
	return buildCaptureArgs(runtime.GOOS, s.input, s.opts)
}

func buildCaptureArgs(goos, input string, o Options) ([]string, error) {
	var args []string
	if input != "" {
		args = append(args, "-re")
		if o.Loop {
			args = append(args, "-stream_loop", "-1")
		}
		args = append(args, "-i", input)
	} else {
		dev := o.Device
		switch goos {
		case "linux":
			if dev == "" {
				dev = "/dev/video0"
			}
			args = []string{"-f", "v4l2", "-i", dev}
		case "darwin":
			if dev == "" {
				dev = "0"
			}
			args = []string{"-f", "avfoundation", "-i", dev}
		case "windows":
			if dev == "" {
				dev = "Integrated Webcam"
			}
			args = []string{"-f", "dshow", "-i", "video=" + dev}
		default:
			return nil, fmt.Errorf("unsupported OS: %s", goos)
		}
	}

	return append(args,
		"-hide_banner", "-loglevel", "error",
		"-fflags", "nobuffer", "-flags", "low_delay",
		"-an",
		"-vf", fmt.Sprintf("scale=%d:%d", o.Width, o.Height),
		"-f", "rawvideo", "-pix_fmt", "bgra", "-",
	), nil
}

func (s *FFmpegSource) Run(ctx context.Context, out chan<- *ingest.Frame) error {
	args, err := s.Args()
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get FFmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start FFmpeg: %w", err)
	}

	readErr := readFrames(ctx, stdout, s.opts.Width, s.opts.Height, out)
	waitErr := cmd.Wait()
	if readErr != nil {
		return readErr
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if waitErr != nil {
		return fmt.Errorf("ffmpeg wait error: %w", waitErr)
	}
	return nil
}

// readFrames reads w×h BGRA frames from r until EOF. A trailing partial frame is
// dropped.
func readFrames(ctx context.Context, r io.Reader, w, h int, out chan<- *ingest.Frame) error {
	size := w * h * 4
	var seq uint64
	for {
		// every frame gets its own buffer since the scheduler may keep the last one
		buf := make([]byte, size)
		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("error reading from FFmpeg: %w", err)
		}
		seq++
		f := &ingest.Frame{Pix: buf, Width: w, Height: h, Format: ingest.BGRA8, Seq: seq, Timestamp: time.Now()}
		if err := send(ctx, out, f); err != nil {
			return err
		}
	}
}

func (s *FFmpegSource) Close() error { return nil }
