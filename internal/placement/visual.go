// Package placement picks the picture-in-picture corner that least
// obscures salient content in a background image.
package placement

import "context"

// ScoreGrid is a coarse per-cell saliency map over an image.
type ScoreGrid struct {
	Width  int
	Height int
	Values []float64
}

// At returns the score at cell (x, y), 0 outside the grid.
func (g *ScoreGrid) At(x, y int) float64 {
	if g == nil || x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return 0
	}
	return g.Values[y*g.Width+x]
}

// NormalizedRect is a detection box in [0,1] image coordinates.
type NormalizedRect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Area returns the normalized area of the box.
func (r NormalizedRect) Area() float64 {
	return r.W * r.H
}

// Intersection returns the overlapping area of two boxes.
func (r NormalizedRect) Intersection(o NormalizedRect) float64 {
	w := min(r.X+r.W, o.X+o.W) - max(r.X, o.X)
	h := min(r.Y+r.H, o.Y+o.H) - max(r.Y, o.Y)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// VisualAnalyzer is the pluggable analysis capability. Implementations may
// wrap any computer-vision backend; returning nil maps and empty detection
// lists is valid and triggers the luminance fallback.
type VisualAnalyzer interface {
	// AttentionMap estimates where a viewer's gaze is drawn.
	AttentionMap(ctx context.Context, imagePath string) (*ScoreGrid, error)

	// ObjectnessMap estimates where foreground objects sit.
	ObjectnessMap(ctx context.Context, imagePath string) (*ScoreGrid, error)

	DetectFaces(ctx context.Context, imagePath string) ([]NormalizedRect, error)
	DetectBodies(ctx context.Context, imagePath string) ([]NormalizedRect, error)
	DetectText(ctx context.Context, imagePath string) ([]NormalizedRect, error)
}

// StubAnalyzer produces no signal at all, forcing the luminance fallback.
type StubAnalyzer struct{}

func (StubAnalyzer) AttentionMap(context.Context, string) (*ScoreGrid, error)  { return nil, nil }
func (StubAnalyzer) ObjectnessMap(context.Context, string) (*ScoreGrid, error) { return nil, nil }
func (StubAnalyzer) DetectFaces(context.Context, string) ([]NormalizedRect, error) {
	return nil, nil
}
func (StubAnalyzer) DetectBodies(context.Context, string) ([]NormalizedRect, error) {
	return nil, nil
}
func (StubAnalyzer) DetectText(context.Context, string) ([]NormalizedRect, error) {
	return nil, nil
}
