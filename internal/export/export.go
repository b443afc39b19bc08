// Package export sequences the full pipeline: merge, composite,
// copy-through, comments, with stable progress totals and cooperative
// cancellation.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/realexport/realexport/internal/compositor"
	"github.com/realexport/realexport/internal/merge"
	"github.com/realexport/realexport/internal/models"
)

var (
	ErrNoDestination   = errors.New("no destination folder selected")
	ErrCreateDirectory = errors.New("failed to create output directory")
)

// filenameTimeFormat stamps output filenames with the capture time.
const filenameTimeFormat = "2006-01-02_150405"

// ProgressFunc receives one event per completed unit of work.
type ProgressFunc func(models.ExportProgress)

// Exporter drives a photo export run. One run exclusively owns its
// destination tree; nothing written is rolled back on failure or cancel.
type Exporter struct {
	merger     *merge.Merger
	compositor *compositor.Compositor
	logger     *slog.Logger
}

func NewExporter(merger *merge.Merger, comp *compositor.Compositor, logger *slog.Logger) *Exporter {
	return &Exporter{merger: merger, compositor: comp, logger: logger}
}

// Export runs the pipeline to completion, cancellation or first fatal
// error. Items are processed strictly in merged order; progress totals
// are fixed before the first unit starts.
func (e *Exporter) Export(
	ctx context.Context,
	data *models.Export,
	opts models.ExportOptions,
	progress ProgressFunc,
) error {
	if opts.Destination == "" {
		return ErrNoDestination
	}

	merged := e.merger.Merge(data)

	videos := merged.Videos
	if !opts.IncludeVideos {
		videos = nil
	}
	bts := merged.BTS
	if !opts.IncludeBTS {
		bts = nil
	}
	conversations := data.ConversationImages
	if !opts.IncludeConversations {
		conversations = nil
	}

	total := len(merged.Pairs) + len(videos) + len(bts) + len(conversations)
	current := 0

	emit := func(label string) {
		current++
		if progress != nil {
			progress(models.ExportProgress{Current: current, Total: total, CurrentItem: label})
		}
	}

	// capture folders feed comment grouping after the media pass
	folders := make(map[string]commentTarget)

	for _, pair := range merged.Pairs {
		if err := ctx.Err(); err != nil {
			return err
		}

		outputPath, err := e.buildOutputPath(opts.Destination, pair.Date, pair.Type, opts.FolderStructure)
		if err != nil {
			return err
		}

		meta := compositor.Metadata{Date: pair.Date, Location: pair.Location, Caption: pair.Caption}
		if err := e.compositor.ProcessAndSave(ctx, pair.BackPath, pair.FrontPath, outputPath,
			opts.ImageStyle, opts.OverlayPosition, meta); err != nil {
			return err
		}

		stem := strings.TrimSuffix(path.Base(pair.Key), ".webp")
		folders[stem] = commentTarget{
			dir:      filepath.Dir(outputPath),
			filename: filepath.Base(outputPath),
		}

		emit(filepath.Base(outputPath))
	}

	for _, item := range videos {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.copyVideoItem(item, opts); err != nil {
			return err
		}
		emit(filepath.Base(item.BackPath))
	}

	for _, item := range bts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.copyBTSItem(item, opts); err != nil {
			return err
		}
		emit(filepath.Base(item.Path))
	}

	if len(conversations) > 0 {
		conversationsDir := filepath.Join(opts.Destination, "Conversations")
		if err := os.MkdirAll(conversationsDir, 0755); err != nil {
			return fmt.Errorf("%w: %v", ErrCreateDirectory, err)
		}

		for _, img := range conversations {
			if err := ctx.Err(); err != nil {
				return err
			}

			target := filepath.Join(conversationsDir, img.Filename)
			if _, err := os.Stat(target); os.IsNotExist(err) {
				if err := copyFile(img.Path, target); err != nil {
					return err
				}
			}
			emit("Conversations/" + img.Filename)
		}
	}

	if opts.IncludeComments {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeComments(data.Comments, folders); err != nil {
			return err
		}
	}

	if e.logger != nil {
		e.logger.Info("export completed", "items", current)
	}
	return nil
}

func (e *Exporter) buildOutputPath(dest string, date time.Time, itemType string, layout models.FolderStructure) (string, error) {
	filename := fmt.Sprintf("export_%s_%s.jpg", itemType, date.Format(filenameTimeFormat))

	outputDir := dest
	if layout == models.FoldersByDate {
		outputDir = filepath.Join(dest,
			fmt.Sprintf("%04d", date.Year()),
			fmt.Sprintf("%02d", int(date.Month())),
			fmt.Sprintf("%02d", date.Day()))
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCreateDirectory, err)
	}
	return filepath.Join(outputDir, filename), nil
}

// copyVideoItem copies the raw capture files of a video-bearing moment.
func (e *Exporter) copyVideoItem(item merge.VideoItem, opts models.ExportOptions) error {
	base, err := e.buildOutputPath(opts.Destination, item.Date, "video", opts.FolderStructure)
	if err != nil {
		return err
	}
	base = strings.TrimSuffix(base, ".jpg")

	if err := copyFile(item.BackPath, base+"_back"+filepath.Ext(item.BackPath)); err != nil {
		return err
	}
	return copyFile(item.FrontPath, base+"_front"+filepath.Ext(item.FrontPath))
}

func (e *Exporter) copyBTSItem(item merge.BTSItem, opts models.ExportOptions) error {
	base, err := e.buildOutputPath(opts.Destination, item.Date, "bts", opts.FolderStructure)
	if err != nil {
		return err
	}
	return copyFile(item.Path, strings.TrimSuffix(base, ".jpg")+filepath.Ext(item.Path))
}

type commentTarget struct {
	dir      string
	filename string
}

type commentLine struct {
	filename string
	content  string
}

// writeComments groups comments by the output folder of their capture and
// writes one comments.txt per populated folder, sorted by the filename
// the comment attaches to.
func writeComments(comments []models.Comment, folders map[string]commentTarget) error {
	grouped := make(map[string][]commentLine)
	for _, comment := range comments {
		target, ok := folders[comment.PostID]
		if !ok {
			continue
		}
		grouped[target.dir] = append(grouped[target.dir], commentLine{
			filename: target.filename,
			content:  comment.Content,
		})
	}

	for dir, lines := range grouped {
		sort.SliceStable(lines, func(i, j int) bool { return lines[i].filename < lines[j].filename })

		var sb strings.Builder
		for _, line := range lines {
			fmt.Fprintf(&sb, "%s: %s\n", line.filename, line.content)
		}

		if err := os.WriteFile(filepath.Join(dir, "comments.txt"), []byte(sb.String()), 0644); err != nil {
			return fmt.Errorf("failed to write comments file: %w", err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
