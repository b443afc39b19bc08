package video

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrWriterStart means ffmpeg could not be launched.
	ErrWriterStart = errors.New("failed to start video writer")

	// ErrFrameSize means an appended frame does not match the negotiated
	// buffer dimensions.
	ErrFrameSize = errors.New("frame does not match writer dimensions")
)

// writerQueueDepth bounds how many frames may sit between the assembler
// and the encoder before Ready reports backpressure.
const writerQueueDepth = 8

// ContainerWriter receives rendered frames and flushes them into a video
// container. Ready reports whether Append may be called without queueing
// beyond the writer's buffer.
type ContainerWriter interface {
	Start() error
	Ready() bool
	Append(frame *image.RGBA) error
	Finalize() error
}

// FFmpegWriter streams raw RGBA frames into an ffmpeg child process that
// encodes H.264 in an MP4 container.
type FFmpegWriter struct {
	binary string
	path   string
	width  int
	height int
	fps    int
	logger *slog.Logger

	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stderr    bytes.Buffer
	queue     chan []byte
	group     errgroup.Group
	closeOnce sync.Once
}

func NewFFmpegWriter(binary, path string, width, height, fps int, logger *slog.Logger) *FFmpegWriter {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegWriter{
		binary: binary,
		path:   path,
		width:  width,
		height: height,
		fps:    fps,
		logger: logger,
		queue:  make(chan []byte, writerQueueDepth),
	}
}

// Args returns the ffmpeg invocation for this writer's geometry.
func (w *FFmpegWriter) Args() []string {
	return []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", w.width, w.height),
		"-framerate", strconv.Itoa(w.fps),
		"-i", "-",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		w.path,
	}
}

// Start launches ffmpeg and the pump feeding it from the frame queue.
func (w *FFmpegWriter) Start() error {
	w.cmd = exec.Command(w.binary, w.Args()...)
	w.cmd.Stderr = &w.stderr

	stdin, err := w.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriterStart, err)
	}
	w.stdin = stdin

	if err := w.cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrWriterStart, err)
	}

	if w.logger != nil {
		w.logger.Debug("started video writer", "path", w.path,
			"size", fmt.Sprintf("%dx%d", w.width, w.height), "fps", w.fps)
	}

	w.group.Go(func() error {
		for frame := range w.queue {
			if _, err := w.stdin.Write(frame); err != nil {
				// Keep draining so Append never blocks forever; the
				// error surfaces at Finalize.
				for range w.queue {
				}
				return fmt.Errorf("failed to write frame: %w", err)
			}
		}
		return nil
	})
	return nil
}

// Ready reports whether the queue can take another frame without
// blocking.
func (w *FFmpegWriter) Ready() bool {
	return len(w.queue) < cap(w.queue)
}

// Append queues one frame. The frame's pixel data is handed off to the
// pump and must not be reused by the caller.
func (w *FFmpegWriter) Append(frame *image.RGBA) error {
	if frame.Bounds().Dx() != w.width || frame.Bounds().Dy() != w.height {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrFrameSize,
			frame.Bounds().Dx(), frame.Bounds().Dy(), w.width, w.height)
	}
	w.queue <- frame.Pix
	return nil
}

// Finalize drains the queue, closes ffmpeg's input and waits for the
// encode to finish. Deferred pump or encoder errors surface here.
func (w *FFmpegWriter) Finalize() error {
	w.closeOnce.Do(func() { close(w.queue) })
	pumpErr := w.group.Wait()

	if err := w.stdin.Close(); err != nil && pumpErr == nil {
		pumpErr = fmt.Errorf("failed to close writer input: %w", err)
	}

	if err := w.cmd.Wait(); err != nil {
		return fmt.Errorf("video writer failed: %v\n%s", err, tail(w.stderr.String(), 512))
	}
	return pumpErr
}

// Cancel kills the encoder process without flushing.
func (w *FFmpegWriter) Cancel() {
	w.closeOnce.Do(func() { close(w.queue) })
	if w.cmd != nil && w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
		_ = w.cmd.Wait()
	}
	_ = w.group.Wait()
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
