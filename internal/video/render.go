package video

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/realexport/realexport/internal/compositor"
	"github.com/realexport/realexport/internal/merge"
	"github.com/realexport/realexport/internal/models"
	"github.com/realexport/realexport/internal/placement"
)

// dateStampFormat is the human-readable date drawn onto frames.
const dateStampFormat = "Jan 2, 2006"

// Renderer produces one video frame per capture pair.
type Renderer struct {
	analyzer *placement.Analyzer
	font     *truetype.Font
	logger   *slog.Logger
}

func NewRenderer(analyzer *placement.Analyzer, logger *slog.Logger) (*Renderer, error) {
	font, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded font: %w", err)
	}
	return &Renderer{analyzer: analyzer, font: font, logger: logger}, nil
}

// RenderFrame resolves the content mode, optionally stamps the date, and
// scales to the target resolution.
func (r *Renderer) RenderFrame(ctx context.Context, item merge.CapturePair, opts models.VideoOptions) (image.Image, error) {
	frame, err := r.renderContent(ctx, item, opts)
	if err != nil {
		return nil, err
	}

	if opts.DateOverlay {
		frame = r.drawDateStamp(frame, item.Date)
	}

	if opts.TargetWidth > 0 && opts.TargetHeight > 0 {
		frame = fitToCanvas(frame, opts.TargetWidth, opts.TargetHeight)
	}
	return frame, nil
}

func (r *Renderer) renderContent(ctx context.Context, item merge.CapturePair, opts models.VideoOptions) (image.Image, error) {
	switch opts.Content {
	case models.ContentBackOnly:
		return compositor.LoadImage(item.BackPath)
	case models.ContentFrontOnly:
		return compositor.LoadImage(item.FrontPath)
	case models.ContentCombinedBackMain, models.ContentCombinedFrontMain:
		bgPath, fgPath := item.BackPath, item.FrontPath
		if opts.Content == models.ContentCombinedFrontMain {
			bgPath, fgPath = item.FrontPath, item.BackPath
		}

		bg, err := compositor.LoadImage(bgPath)
		if err != nil {
			return nil, err
		}
		fg, err := compositor.LoadImage(fgPath)
		if err != nil {
			return nil, err
		}

		corner := r.analyzer.ResolveCorner(ctx, bg, bgPath, fg.Bounds().Size(), opts.OverlayPosition)
		return compositor.Compose(bg, fg, corner)
	default:
		return nil, fmt.Errorf("unknown video content mode %q", opts.Content)
	}
}

// drawDateStamp draws a rounded semi-transparent pill with the capture
// date in the bottom-left corner of the frame.
func (r *Renderer) drawDateStamp(frame image.Image, date time.Time) image.Image {
	bounds := frame.Bounds()
	height := bounds.Dy()

	fontSize := float64(height) / 28
	if fontSize < 12 {
		fontSize = 12
	}
	margin := fontSize

	dc := gg.NewContextForImage(frame)
	dc.SetFontFace(truetype.NewFace(r.font, &truetype.Options{Size: fontSize}))

	text := date.Format(dateStampFormat)
	textWidth, textHeight := dc.MeasureString(text)

	padX, padY := fontSize*0.8, fontSize*0.5
	pillWidth := textWidth + 2*padX
	pillHeight := textHeight + 2*padY
	pillX := margin
	pillY := float64(height) - margin - pillHeight

	dc.SetRGBA(0, 0, 0, 0.45)
	dc.DrawRoundedRectangle(pillX, pillY, pillWidth, pillHeight, pillHeight/2)
	dc.Fill()

	textX := pillX + padX
	textY := pillY + padY + textHeight

	dc.SetRGBA(0, 0, 0, 0.6)
	dc.DrawString(text, textX+1, textY+1)
	dc.SetRGB(1, 1, 1)
	dc.DrawString(text, textX, textY)

	return dc.Image()
}

// fitToCanvas scales the frame to fit width×height preserving aspect
// ratio, centered on a black canvas.
func fitToCanvas(frame image.Image, width, height int) image.Image {
	fitted := imaging.Fit(frame, width, height, imaging.Lanczos)
	canvas := imaging.New(width, height, color.NRGBA{A: 255})
	return imaging.PasteCenter(canvas, fitted)
}
