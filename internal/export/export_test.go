package export

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realexport/realexport/internal/compositor"
	"github.com/realexport/realexport/internal/merge"
	"github.com/realexport/realexport/internal/models"
	"github.com/realexport/realexport/internal/placement"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestExporter(t *testing.T) *Exporter {
	t.Helper()
	logger := discardLogger()
	analyzer := placement.NewAnalyzer(nil, logger)
	return NewExporter(merge.NewMerger(logger), compositor.NewCompositor(analyzer, logger), logger)
}

func writeTestImage(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

// testExport builds an export with n image posts captured a minute apart,
// backed by real files under a temp dir.
func testExport(t *testing.T, n int) *models.Export {
	t.Helper()
	baseDir := t.TempDir()

	data := &models.Export{BaseDir: baseDir}
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	for i := 0; i < n; i++ {
		backRel := "Photos/2024-03/back-" + string(rune('a'+i)) + ".webp"
		frontRel := "Photos/2024-03/front-" + string(rune('a'+i)) + ".webp"
		writeTestImage(t, filepath.Join(baseDir, filepath.FromSlash(backRel)), 120, 160, color.RGBA{R: 200, A: 255})
		writeTestImage(t, filepath.Join(baseDir, filepath.FromSlash(frontRel)), 60, 80, color.RGBA{B: 200, A: 255})

		data.Posts = append(data.Posts, models.Post{
			Primary:   models.MediaReference{Path: backRel},
			Secondary: models.MediaReference{Path: frontRel},
			TakenAt:   base.Add(time.Duration(i) * time.Minute),
		})
	}
	return data
}

func defaultOptions(dest string) models.ExportOptions {
	return models.ExportOptions{
		ImageStyle:      models.StyleCombined,
		OverlayPosition: models.PositionTopLeft,
		FolderStructure: models.FoldersFlat,
		Destination:     dest,
	}
}

func TestExportWritesPairs(t *testing.T) {
	exporter := newTestExporter(t)
	data := testExport(t, 2)
	dest := t.TempDir()

	var events []models.ExportProgress
	err := exporter.Export(context.Background(), data, defaultOptions(dest), func(p models.ExportProgress) {
		events = append(events, p)
	})
	require.NoError(t, err)

	require.Len(t, events, 2)
	for i, e := range events {
		assert.Equal(t, i+1, e.Current)
		assert.Equal(t, 2, e.Total)
		assert.NotEmpty(t, e.CurrentItem)
	}

	assert.FileExists(t, filepath.Join(dest, "export_post_2024-03-15_100000_combined_back.jpg"))
	assert.FileExists(t, filepath.Join(dest, "export_post_2024-03-15_100000_combined_front.jpg"))
	assert.FileExists(t, filepath.Join(dest, "export_post_2024-03-15_100100_combined_back.jpg"))
}

func TestExportByDateLayout(t *testing.T) {
	exporter := newTestExporter(t)
	data := testExport(t, 1)
	dest := t.TempDir()

	opts := defaultOptions(dest)
	opts.FolderStructure = models.FoldersByDate

	require.NoError(t, exporter.Export(context.Background(), data, opts, func(models.ExportProgress) {}))
	assert.FileExists(t, filepath.Join(dest, "2024", "03", "15", "export_post_2024-03-15_100000_combined_back.jpg"))
}

func TestExportNoDestination(t *testing.T) {
	exporter := newTestExporter(t)
	err := exporter.Export(context.Background(), testExport(t, 1), models.ExportOptions{}, func(models.ExportProgress) {})
	assert.ErrorIs(t, err, ErrNoDestination)
}

func TestExportComments(t *testing.T) {
	exporter := newTestExporter(t)
	data := testExport(t, 2)
	data.Comments = []models.Comment{
		{PostID: "back-b", Content: "looking good"},
		{PostID: "back-a", Content: "where is this?"},
		{PostID: "unmatched", Content: "dropped"},
	}
	dest := t.TempDir()

	opts := defaultOptions(dest)
	opts.IncludeComments = true

	require.NoError(t, exporter.Export(context.Background(), data, opts, func(models.ExportProgress) {}))

	raw, err := os.ReadFile(filepath.Join(dest, "comments.txt"))
	require.NoError(t, err)
	assert.Equal(t,
		"export_post_2024-03-15_100000.jpg: where is this?\n"+
			"export_post_2024-03-15_100100.jpg: looking good\n",
		string(raw))
}

func TestExportConversationCopySkipsExisting(t *testing.T) {
	exporter := newTestExporter(t)
	data := testExport(t, 0)

	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "chat.webp")
	require.NoError(t, os.WriteFile(src, []byte("fresh"), 0644))
	data.ConversationImages = []models.ConversationImage{{Filename: "chat.webp", Path: src}}

	dest := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dest, "Conversations"), 0755))
	existing := filepath.Join(dest, "Conversations", "chat.webp")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0644))

	opts := defaultOptions(dest)
	opts.IncludeConversations = true

	require.NoError(t, exporter.Export(context.Background(), data, opts, func(models.ExportProgress) {}))

	raw, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "old", string(raw))
}

func TestExportVideoAndBTSCopy(t *testing.T) {
	exporter := newTestExporter(t)
	baseDir := t.TempDir()
	taken := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

	backVid := filepath.Join(baseDir, "Photos", "2024-06", "clip-back.mp4")
	frontVid := filepath.Join(baseDir, "Photos", "2024-06", "clip-front.mp4")
	btsFile := filepath.Join(baseDir, "Photos", "bts", "moment.mp4")
	for _, p := range []string{backVid, frontVid, btsFile} {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte("video-bytes"), 0644))
	}

	video := "video"
	data := &models.Export{
		BaseDir: baseDir,
		Posts: []models.Post{{
			Primary:   models.MediaReference{Path: "Photos/2024-06/clip-back.mp4", MediaType: &video},
			Secondary: models.MediaReference{Path: "Photos/2024-06/clip-front.mp4", MediaType: &video},
			BTSMedia:  &models.MediaReference{Path: "Photos/bts/moment.mp4"},
			TakenAt:   taken,
		}},
	}

	dest := t.TempDir()
	opts := defaultOptions(dest)
	opts.IncludeVideos = true
	opts.IncludeBTS = true

	var count int
	require.NoError(t, exporter.Export(context.Background(), data, opts, func(models.ExportProgress) { count++ }))
	assert.Equal(t, 2, count)

	assert.FileExists(t, filepath.Join(dest, "export_video_2024-06-01_083000_back.mp4"))
	assert.FileExists(t, filepath.Join(dest, "export_video_2024-06-01_083000_front.mp4"))
	assert.FileExists(t, filepath.Join(dest, "export_bts_2024-06-01_083000.mp4"))
}

func TestExportExcludedCategoriesLeaveTotalStable(t *testing.T) {
	exporter := newTestExporter(t)
	data := testExport(t, 1)

	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "chat.webp")
	require.NoError(t, os.WriteFile(src, []byte("img"), 0644))
	data.ConversationImages = []models.ConversationImage{{Filename: "chat.webp", Path: src}}

	var totals []int
	opts := defaultOptions(t.TempDir())
	require.NoError(t, exporter.Export(context.Background(), data, opts, func(p models.ExportProgress) {
		totals = append(totals, p.Total)
	}))

	require.Len(t, totals, 1)
	assert.Equal(t, 1, totals[0])
}

func TestJobCancellation(t *testing.T) {
	exporter := newTestExporter(t)
	data := testExport(t, 5)
	dest := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := exporter.Start(ctx, data, defaultOptions(dest), func(p models.ExportProgress) {
		if p.Current == 2 {
			cancel()
		}
	})

	outcome := job.Wait()
	assert.Equal(t, StateCancelled, outcome.State)
	assert.Equal(t, 2, outcome.ItemsCompleted)

	// finished items stay on disk
	assert.FileExists(t, filepath.Join(dest, "export_post_2024-03-15_100000_combined_back.jpg"))
	assert.FileExists(t, filepath.Join(dest, "export_post_2024-03-15_100100_combined_back.jpg"))
	assert.NoFileExists(t, filepath.Join(dest, "export_post_2024-03-15_100200_combined_back.jpg"))
}

func TestJobCompleted(t *testing.T) {
	exporter := newTestExporter(t)
	data := testExport(t, 2)

	job := exporter.Start(context.Background(), data, defaultOptions(t.TempDir()), nil)
	outcome := job.Wait()

	assert.Equal(t, StateCompleted, outcome.State)
	assert.Equal(t, 2, outcome.ItemsCompleted)
	assert.NoError(t, outcome.Err)
}

func TestJobFailed(t *testing.T) {
	exporter := newTestExporter(t)
	job := exporter.Start(context.Background(), testExport(t, 1), models.ExportOptions{}, nil)
	outcome := job.Wait()

	assert.Equal(t, StateFailed, outcome.State)
	assert.ErrorIs(t, outcome.Err, ErrNoDestination)
}
