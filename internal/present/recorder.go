package present

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"sync"

	xdraw "golang.org/x/image/draw"
)

var ErrRecorderClosed = errors.New("present: recorder closed")

// RecorderOptions describes the encoded output.
type RecorderOptions struct {
	Path    string
	Width   int
	Height  int
	FPS     int
	Encoder string // libx264, h264_nvenc, h264_videotoolbox
	Quality int
}

// RecorderSurface pipes every presented image to ffmpeg as raw RGBA. Images that do not
// match the recording size are scaled to fit.
type RecorderSurface struct {
	opts RecorderOptions

	mu     sync.Mutex
	stdin  io.WriteCloser
	wait   func() error
	frame  *image.RGBA
	frames uint64
	closed bool
}

// NewRecorder starts ffmpeg writing to opts.Path.
func NewRecorder(ctx context.Context, opts RecorderOptions) (*RecorderSurface, error) {
	opts = opts.withDefaults()
	cmd := exec.CommandContext(ctx, "ffmpeg", buildFFmpegArgs(opts)...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}
	return newRecorder(opts, stdin, cmd.Wait), nil
}

func newRecorder(opts RecorderOptions, stdin io.WriteCloser, wait func() error) *RecorderSurface {
	opts = opts.withDefaults()
	return &RecorderSurface{
		opts:  opts,
		stdin: stdin,
		wait:  wait,
		frame: image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height)),
	}
}

func (o RecorderOptions) withDefaults() RecorderOptions {
	if o.FPS <= 0 {
		o.FPS = 30
	}
	if o.Encoder == "" {
		o.Encoder = "libx264"
	}
	if o.Quality <= 0 {
		o.Quality = 20
	}
	// yuv420p needs even dimensions
	o.Width &^= 1
	o.Height &^= 1
	return o
}

func buildFFmpegArgs(o RecorderOptions) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", o.Width, o.Height),
		"-framerate", fmt.Sprintf("%d", o.FPS),
		"-i", "-",
		"-pix_fmt", "yuv420p",
		"-c:v", o.Encoder,
	}

	// Качество в зависимости от энкодера
	switch o.Encoder {
	case "h264_videotoolbox":
		args = append(args, "-b:v", fmt.Sprintf("%dk", o.Quality*100))
	case "h264_nvenc":
		args = append(args, "-cq", fmt.Sprintf("%d", o.Quality))
	default: // libx264
		args = append(args, "-crf", fmt.Sprintf("%d", o.Quality), "-preset", "veryfast")
	}

	return append(args, o.Path)
}

func (r *RecorderSurface) Size() (int, int) {
	return r.opts.Width, r.opts.Height
}

func (r *RecorderSurface) Present(img *image.RGBA) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRecorderClosed
	}

	src := img
	if img.Rect.Size() != r.frame.Rect.Size() {
		xdraw.ApproxBiLinear.Scale(r.frame, r.frame.Rect, img, img.Rect, xdraw.Src, nil)
		src = r.frame
	}
	if err := writeRawRGBA(r.stdin, src); err != nil {
		return fmt.Errorf("write raw error: %w", err)
	}
	r.frames++
	return nil
}

// Frames returns how many frames were written.
func (r *RecorderSurface) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close ends the stream and waits for ffmpeg to finish the file.
func (r *RecorderSurface) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.stdin.Close()
	if err := r.wait(); err != nil {
		return fmt.Errorf("ffmpeg wait error: %w", err)
	}
	return nil
}

// writeRawRGBA writes img row by row, skipping any stride padding.
func writeRawRGBA(w io.Writer, img *image.RGBA) error {
	b := img.Rect
	rowLen := b.Dx() * 4
	if img.Stride == rowLen {
		_, err := w.Write(img.Pix[:rowLen*b.Dy()])
		return err
	}
	for y := 0; y < b.Dy(); y++ {
		off := y * img.Stride
		if _, err := w.Write(img.Pix[off : off+rowLen]); err != nil {
			return err
		}
	}
	return nil
}
