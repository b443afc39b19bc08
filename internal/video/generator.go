package video

import (
	"context"
	"errors"
	"image"
	"image/draw"
	"log/slog"
	"time"

	"github.com/realexport/realexport/internal/merge"
	"github.com/realexport/realexport/internal/models"
)

// ErrNoFrames means the date filter left nothing to encode. It is raised
// before any writer is created.
var ErrNoFrames = errors.New("no images found to include in the video")

// readinessPollInterval is how long the assembler sleeps between writer
// readiness checks. Each check is also a cancellation point.
const readinessPollInterval = 10 * time.Millisecond

// Generator drives the time-lapse render: filter, probe, stream, finalize.
type Generator struct {
	renderer  *Renderer
	newWriter func(width, height, fps int) ContainerWriter
	logger    *slog.Logger
}

func NewGenerator(renderer *Renderer, ffmpegBinary, destination string, logger *slog.Logger) *Generator {
	return &Generator{
		renderer: renderer,
		newWriter: func(width, height, fps int) ContainerWriter {
			return NewFFmpegWriter(ffmpegBinary, destination, width, height, fps, logger)
		},
		logger: logger,
	}
}

// WithWriterFactory overrides container writer construction.
func (g *Generator) WithWriterFactory(factory func(width, height, fps int) ContainerWriter) *Generator {
	g.newWriter = factory
	return g
}

// Generate renders the filtered pairs into the destination container,
// emitting one progress event per appended frame.
func (g *Generator) Generate(
	ctx context.Context,
	pairs []merge.CapturePair,
	opts models.VideoOptions,
	progress func(models.ExportProgress),
) error {
	frames := FilterRange(pairs, opts.StartDate, opts.EndDate)
	if len(frames) == 0 {
		return ErrNoFrames
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// Probe the first frame for the native output size.
	first, err := g.renderer.RenderFrame(ctx, frames[0], opts)
	if err != nil {
		return err
	}

	// H.264 requires even dimensions; odd frames are centered on a black
	// canvas one pixel larger.
	videoWidth := evenUp(first.Bounds().Dx())
	videoHeight := evenUp(first.Bounds().Dy())

	writer := g.newWriter(videoWidth, videoHeight, opts.FramesPerSecond)
	if err := writer.Start(); err != nil {
		return err
	}

	cancelled := true
	if c, ok := writer.(interface{ Cancel() }); ok {
		defer func() {
			if cancelled {
				c.Cancel()
			}
		}()
	}

	total := len(frames)
	for i, frame := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}

		rendered := first
		if i > 0 {
			rendered, err = g.renderer.RenderFrame(ctx, frame, opts)
			if err != nil {
				return err
			}
		}

		for !writer.Ready() {
			if err := ctx.Err(); err != nil {
				return err
			}
			time.Sleep(readinessPollInterval)
		}

		if err := writer.Append(frameBuffer(rendered, videoWidth, videoHeight)); err != nil {
			return err
		}

		progress(models.ExportProgress{
			Current:     i + 1,
			Total:       total,
			CurrentItem: frame.Date.Format("2006-01-02"),
		})
	}

	cancelled = false
	if err := writer.Finalize(); err != nil {
		return err
	}

	if g.logger != nil {
		g.logger.Info("video generation completed", "frames", total)
	}
	return nil
}

// frameBuffer copies the rendered image onto a black RGBA canvas of the
// padded output size, centered.
func frameBuffer(frame image.Image, width, height int) *image.RGBA {
	buf := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 3; i < len(buf.Pix); i += 4 {
		buf.Pix[i] = 0xff
	}

	offsetX := (width - frame.Bounds().Dx()) / 2
	offsetY := (height - frame.Bounds().Dy()) / 2
	target := frame.Bounds().Add(image.Pt(offsetX-frame.Bounds().Min.X, offsetY-frame.Bounds().Min.Y))
	draw.Draw(buf, target, frame, frame.Bounds().Min, draw.Src)
	return buf
}

func evenUp(v int) int {
	if v%2 != 0 {
		return v + 1
	}
	return v
}
