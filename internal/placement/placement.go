package placement

import (
	"context"
	"image"
	"log/slog"

	"github.com/realexport/realexport/internal/models"
)

// Weights scale the detection penalties added to the saliency score of a
// corner. Faces weigh heaviest, then bodies, then text.
type Weights struct {
	Face float64
	Body float64
	Text float64
}

// DefaultWeights are the standard penalty weights.
var DefaultWeights = Weights{Face: 10.0, Body: 5.0, Text: 3.0}

// faceOverlapThreshold is the share of a face box that must be covered by
// a corner region before the face penalty applies.
const faceOverlapThreshold = 0.15

// Geometry describes the inset rectangle relative to its background.
type Geometry struct {
	OverlayWidth  int
	OverlayHeight int
	Padding       int
}

// OverlayGeometry derives the inset geometry from the background width and
// the overlay's native aspect ratio.
func OverlayGeometry(bgWidth int, overlayNative image.Point) Geometry {
	overlayWidth := bgWidth / 3
	overlayHeight := overlayWidth
	if overlayNative.X > 0 {
		overlayHeight = int(float64(overlayWidth) * float64(overlayNative.Y) / float64(overlayNative.X))
	}
	return Geometry{
		OverlayWidth:  overlayWidth,
		OverlayHeight: overlayHeight,
		Padding:       bgWidth / 30,
	}
}

// Rect returns the inset rectangle for a corner inside a bgWidth×bgHeight
// background.
func (g Geometry) Rect(corner models.OverlayPosition, bgWidth, bgHeight int) image.Rectangle {
	var x, y int
	switch corner {
	case models.PositionTopLeft:
		x, y = g.Padding, g.Padding
	case models.PositionTopRight:
		x, y = bgWidth-g.Padding-g.OverlayWidth, g.Padding
	case models.PositionBottomLeft:
		x, y = g.Padding, bgHeight-g.Padding-g.OverlayHeight
	case models.PositionBottomRight:
		x, y = bgWidth-g.Padding-g.OverlayWidth, bgHeight-g.Padding-g.OverlayHeight
	}
	return image.Rect(x, y, x+g.OverlayWidth, y+g.OverlayHeight)
}

// Analyzer resolves the overlay corner for a background image.
type Analyzer struct {
	visual  VisualAnalyzer
	cache   *Cache
	weights Weights
	logger  *slog.Logger
}

func NewAnalyzer(visual VisualAnalyzer, logger *slog.Logger) *Analyzer {
	if visual == nil {
		visual = StubAnalyzer{}
	}
	return &Analyzer{visual: visual, weights: DefaultWeights, logger: logger}
}

// WithCache attaches a persistent corner cache.
func (a *Analyzer) WithCache(c *Cache) *Analyzer {
	a.cache = c
	return a
}

// WithWeights overrides the penalty weights.
func (a *Analyzer) WithWeights(w Weights) *Analyzer {
	a.weights = w
	return a
}

// ResolveCorner picks the corner for overlaying an image of native size
// overlayNative onto bg. A fixed requested position bypasses all analysis
// and is returned unchanged. The result is deterministic for identical
// inputs and is never Auto or All.
func (a *Analyzer) ResolveCorner(
	ctx context.Context,
	bg image.Image,
	bgPath string,
	overlayNative image.Point,
	requested models.OverlayPosition,
) models.OverlayPosition {
	if requested.IsFixed() {
		return requested
	}

	bounds := bg.Bounds()
	geom := OverlayGeometry(bounds.Dx(), overlayNative)

	if a.cache != nil {
		if corner, ok := a.cache.Get(bgPath, geom); ok {
			return corner
		}
	}

	corner := a.analyze(ctx, bg, bgPath, geom)

	if a.cache != nil {
		if err := a.cache.Put(bgPath, geom, corner); err != nil && a.logger != nil {
			a.logger.Warn("failed to cache placement", "path", bgPath, "error", err)
		}
	}
	return corner
}

func (a *Analyzer) analyze(ctx context.Context, bg image.Image, bgPath string, geom Geometry) models.OverlayPosition {
	bounds := bg.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	attention, err := a.visual.AttentionMap(ctx, bgPath)
	if err != nil && a.logger != nil {
		a.logger.Debug("attention map unavailable", "error", err)
		attention = nil
	}
	objectness, err := a.visual.ObjectnessMap(ctx, bgPath)
	if err != nil && a.logger != nil {
		a.logger.Debug("objectness map unavailable", "error", err)
		objectness = nil
	}

	penalties := a.cornerPenalties(ctx, bgPath, geom, width, height)

	if attention == nil && objectness == nil {
		return a.luminanceFallback(bg, geom, penalties)
	}

	best := models.PositionTopLeft
	bestScore := 0.0
	for i, corner := range models.Corners {
		region := geom.Rect(corner, width, height)

		var saliency float64
		switch {
		case attention != nil && objectness != nil:
			saliency = (meanInRegion(attention, region, width, height) +
				meanInRegion(objectness, region, width, height)) / 2
		case attention != nil:
			saliency = meanInRegion(attention, region, width, height)
		default:
			saliency = meanInRegion(objectness, region, width, height)
		}

		score := saliency + penalties[corner]
		if i == 0 || score < bestScore {
			best = corner
			bestScore = score
		}
	}

	if a.logger != nil {
		a.logger.Debug("resolved overlay corner", "path", bgPath, "corner", best)
	}
	return best
}

// cornerPenalties combines face, body and text detections into one
// weighted penalty per corner. Detection failures count as no detections.
func (a *Analyzer) cornerPenalties(ctx context.Context, bgPath string, geom Geometry, width, height int) map[models.OverlayPosition]float64 {
	faces, _ := a.visual.DetectFaces(ctx, bgPath)
	bodies, _ := a.visual.DetectBodies(ctx, bgPath)
	text, _ := a.visual.DetectText(ctx, bgPath)

	penalties := make(map[models.OverlayPosition]float64, len(models.Corners))
	for _, corner := range models.Corners {
		region := normalizeRect(geom.Rect(corner, width, height), width, height)

		faceScore := 0.0
		for _, face := range faces {
			if area := face.Area(); area > 0 && region.Intersection(face)/area > faceOverlapThreshold {
				faceScore = 1.0
				break
			}
		}

		bodyScore := 0.0
		for _, body := range bodies {
			bodyScore += region.Intersection(body)
		}

		textScore := 0.0
		for _, box := range text {
			textScore += region.Intersection(box)
		}

		penalties[corner] = a.weights.Face*faceScore + a.weights.Body*bodyScore + a.weights.Text*textScore
	}
	return penalties
}

// meanInRegion averages grid values over a pixel region, mapping pixel
// coordinates into grid cells by the scale between the two spaces.
func meanInRegion(grid *ScoreGrid, region image.Rectangle, imgWidth, imgHeight int) float64 {
	if grid == nil || imgWidth == 0 || imgHeight == 0 {
		return 0
	}

	scaleX := float64(grid.Width) / float64(imgWidth)
	scaleY := float64(grid.Height) / float64(imgHeight)

	x0 := int(float64(region.Min.X) * scaleX)
	y0 := int(float64(region.Min.Y) * scaleY)
	x1 := int(float64(region.Max.X) * scaleX)
	y1 := int(float64(region.Max.Y) * scaleY)

	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}

	var sum float64
	var count int
	for y := y0; y < y1 && y < grid.Height; y++ {
		for x := x0; x < x1 && x < grid.Width; x++ {
			sum += grid.At(x, y)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func normalizeRect(r image.Rectangle, width, height int) NormalizedRect {
	return NormalizedRect{
		X: float64(r.Min.X) / float64(width),
		Y: float64(r.Min.Y) / float64(height),
		W: float64(r.Dx()) / float64(width),
		H: float64(r.Dy()) / float64(height),
	}
}
