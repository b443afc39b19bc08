// Package compositor renders the output images for one capture pair:
// re-encoded separate files and picture-in-picture composites, all tagged
// with EXIF metadata.
package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/realexport/realexport/internal/models"
	"github.com/realexport/realexport/internal/placement"
)

// Failure taxonomy. Each aborts the whole run when it surfaces.
var (
	ErrImageLoad         = errors.New("failed to load image")
	ErrContextCreation   = errors.New("failed to create graphics context")
	ErrCompositeCreation = errors.New("failed to create combined image")
	ErrWrite             = errors.New("failed to write output image")
)

// jpegQuality is the fixed output compression quality.
const jpegQuality = 90

// Metadata is embedded into every output file of one capture pair.
type Metadata struct {
	Date     time.Time
	Location *models.Location
	Caption  string
}

// Compositor renders and writes output images.
type Compositor struct {
	analyzer *placement.Analyzer
	logger   *slog.Logger
}

func NewCompositor(analyzer *placement.Analyzer, logger *slog.Logger) *Compositor {
	return &Compositor{analyzer: analyzer, logger: logger}
}

// ProcessAndSave writes the outputs for one capture pair. outputPath is
// the base path (with extension) from which the real filenames derive
// their qualifiers.
func (c *Compositor) ProcessAndSave(
	ctx context.Context,
	backPath, frontPath, outputPath string,
	style models.ImageStyle,
	position models.OverlayPosition,
	meta Metadata,
) error {
	switch style {
	case models.StyleSeparate:
		return c.saveSeparate(backPath, frontPath, outputPath, meta)
	case models.StyleCombined:
		return c.saveCombined(ctx, backPath, frontPath, outputPath, position, meta)
	case models.StyleBoth:
		if err := c.saveSeparate(backPath, frontPath, outputPath, meta); err != nil {
			return err
		}
		return c.saveCombined(ctx, backPath, frontPath, outputPath, position, meta)
	default:
		return fmt.Errorf("unknown image style %q", style)
	}
}

func (c *Compositor) saveSeparate(backPath, frontPath, outputPath string, meta Metadata) error {
	back, err := loadImage(backPath)
	if err != nil {
		return err
	}
	front, err := loadImage(frontPath)
	if err != nil {
		return err
	}

	if err := writeJPEG(back, qualifiedPath(outputPath, "_back"), meta); err != nil {
		return err
	}
	return writeJPEG(front, qualifiedPath(outputPath, "_front"), meta)
}

func (c *Compositor) saveCombined(
	ctx context.Context,
	backPath, frontPath, outputPath string,
	position models.OverlayPosition,
	meta Metadata,
) error {
	back, err := loadImage(backPath)
	if err != nil {
		return err
	}
	front, err := loadImage(frontPath)
	if err != nil {
		return err
	}

	renders := []struct {
		bg, fg    image.Image
		bgPath    string
		qualifier string
	}{
		{back, front, backPath, "_combined_back"},
		{front, back, frontPath, "_combined_front"},
	}

	for _, r := range renders {
		fgSize := r.fg.Bounds().Size()

		if position == models.PositionAll {
			for _, corner := range models.Corners {
				if err := c.renderOne(r.bg, r.fg, corner,
					qualifiedPath(outputPath, r.qualifier+"_"+string(corner)), meta); err != nil {
					return err
				}
			}
			continue
		}

		// Placement depends on which image is the background, so it is
		// resolved per render.
		corner := c.analyzer.ResolveCorner(ctx, r.bg, r.bgPath, fgSize, position)
		if err := c.renderOne(r.bg, r.fg, corner, qualifiedPath(outputPath, r.qualifier), meta); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compositor) renderOne(bg, fg image.Image, corner models.OverlayPosition, path string, meta Metadata) error {
	combined, err := Compose(bg, fg, corner)
	if err != nil {
		return err
	}
	return writeJPEG(combined, path, meta)
}

// Compose draws fg as a rounded, shadowed inset over bg at the given
// fixed corner.
func Compose(bg, fg image.Image, corner models.OverlayPosition) (image.Image, error) {
	bounds := bg.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: empty background", ErrContextCreation)
	}
	if fg.Bounds().Dx() <= 0 {
		return nil, fmt.Errorf("%w: overlay has zero width", ErrImageLoad)
	}

	geom := placement.OverlayGeometry(width, fg.Bounds().Size())
	rect := geom.Rect(corner, width, height)
	radius := float64(geom.OverlayWidth) / 12

	dc := gg.NewContext(width, height)
	dc.DrawImage(bg, 0, 0)

	drawShadow(dc, width, height, rect, radius)

	inset := imaging.Resize(fg, geom.OverlayWidth, geom.OverlayHeight, imaging.Lanczos)
	dc.DrawRoundedRectangle(float64(rect.Min.X), float64(rect.Min.Y),
		float64(geom.OverlayWidth), float64(geom.OverlayHeight), radius)
	dc.Clip()
	dc.DrawImage(inset, rect.Min.X, rect.Min.Y)
	dc.ResetClip()

	return dc.Image(), nil
}

// drawShadow renders a blurred dark rounded rectangle slightly below the
// inset position.
func drawShadow(dc *gg.Context, width, height int, rect image.Rectangle, radius float64) {
	offset := float64(rect.Dy()) / 40
	sigma := float64(rect.Dx()) / 50

	sdc := gg.NewContext(width, height)
	sdc.SetRGBA(0, 0, 0, 0.55)
	sdc.DrawRoundedRectangle(float64(rect.Min.X), float64(rect.Min.Y)+offset,
		float64(rect.Dx()), float64(rect.Dy()), radius)
	sdc.Fill()

	dc.DrawImage(imaging.Blur(sdc.Image(), sigma), 0, 0)
}

// LoadImage decodes an image file (jpeg, png or webp).
func LoadImage(path string) (image.Image, error) {
	return loadImage(path)
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrImageLoad, path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrImageLoad, path, err)
	}
	return img, nil
}

// qualifiedPath inserts a qualifier between the base name and extension,
// normalizing the extension to .jpg.
func qualifiedPath(outputPath, qualifier string) string {
	ext := filepath.Ext(outputPath)
	base := strings.TrimSuffix(outputPath, ext)
	return base + qualifier + ".jpg"
}
