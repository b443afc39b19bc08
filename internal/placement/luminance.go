package placement

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/realexport/realexport/internal/models"
)

// luminanceWorkingWidth is the downscale target for the fallback analysis.
const luminanceWorkingWidth = 400

// penaltyScale lifts detection penalties into the same magnitude range as
// raw luminance variance.
const penaltyScale = 1000.0

// luminanceFallback ranks corners by luminance variance when no saliency
// signal is available. The flattest region is assumed least interesting.
// Detection penalties still apply, scaled up to compete with variance.
func (a *Analyzer) luminanceFallback(bg image.Image, geom Geometry, penalties map[models.OverlayPosition]float64) models.OverlayPosition {
	bounds := bg.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return models.PositionTopLeft
	}

	gray := imaging.Grayscale(imaging.Resize(bg, luminanceWorkingWidth, 0, imaging.Box))
	scaled := gray.Bounds()
	if scaled.Dx() <= 0 || scaled.Dy() <= 0 {
		return models.PositionTopLeft
	}

	scale := float64(scaled.Dx()) / float64(bounds.Dx())
	scaledGeom := Geometry{
		OverlayWidth:  int(float64(geom.OverlayWidth) * scale),
		OverlayHeight: int(float64(geom.OverlayHeight) * scale),
		Padding:       int(float64(geom.Padding) * scale),
	}

	best := models.PositionTopLeft
	bestScore := 0.0
	for i, corner := range models.Corners {
		region := scaledGeom.Rect(corner, scaled.Dx(), scaled.Dy())
		score := lumaVariance(gray, region) + penaltyScale*penalties[corner]
		if i == 0 || score < bestScore {
			best = corner
			bestScore = score
		}
	}
	return best
}

// lumaVariance computes the variance of gray pixel values inside region.
func lumaVariance(gray *image.NRGBA, region image.Rectangle) float64 {
	region = region.Intersect(gray.Bounds())
	if region.Empty() {
		return 0
	}

	var sum, sumSq float64
	count := 0
	for y := region.Min.Y; y < region.Max.Y; y++ {
		row := gray.Pix[gray.PixOffset(region.Min.X, y) : gray.PixOffset(region.Max.X, y):gray.PixOffset(region.Max.X, y)]
		for i := 0; i < len(row); i += 4 {
			v := float64(row[i])
			sum += v
			sumSq += v * v
			count++
		}
	}
	if count == 0 {
		return 0
	}

	mean := sum / float64(count)
	return sumSq/float64(count) - mean*mean
}
