package video

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realexport/realexport/internal/merge"
	"github.com/realexport/realexport/internal/models"
	"github.com/realexport/realexport/internal/placement"
)

func day(yyyy int, mm time.Month, dd int) time.Time {
	return time.Date(yyyy, mm, dd, 12, 0, 0, 0, time.UTC)
}

func timePtr(t time.Time) *time.Time { return &t }

func TestFilterRange(t *testing.T) {
	pairs := []merge.CapturePair{
		{Key: "a", Date: day(2024, 1, 1)},
		{Key: "b", Date: day(2024, 1, 15)},
		{Key: "c", Date: day(2024, 2, 1)},
	}

	start := day(2024, 1, 10)
	end := day(2024, 1, 20)

	filtered := FilterRange(pairs, timePtr(start), timePtr(end))
	require.Len(t, filtered, 1)
	assert.Equal(t, "b", filtered[0].Key)
}

func TestFilterRangeNormalizesToWholeDays(t *testing.T) {
	pairs := []merge.CapturePair{
		{Key: "early", Date: time.Date(2024, 1, 10, 0, 30, 0, 0, time.UTC)},
		{Key: "late", Date: time.Date(2024, 1, 20, 23, 30, 0, 0, time.UTC)},
	}

	// Bounds given mid-day must still admit the whole start and end days.
	start := time.Date(2024, 1, 10, 18, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 20, 6, 0, 0, 0, time.UTC)

	filtered := FilterRange(pairs, timePtr(start), timePtr(end))
	assert.Len(t, filtered, 2)
}

func TestFilterRangeOpenBounds(t *testing.T) {
	pairs := []merge.CapturePair{
		{Key: "a", Date: day(2024, 1, 1)},
		{Key: "b", Date: day(2024, 6, 1)},
	}

	assert.Len(t, FilterRange(pairs, nil, nil), 2)
	assert.Len(t, FilterRange(pairs, timePtr(day(2024, 3, 1)), nil), 1)
	assert.Len(t, FilterRange(pairs, nil, timePtr(day(2024, 3, 1))), 1)
}

// fakeWriter collects appended frames in memory.
type fakeWriter struct {
	started    bool
	finalized  bool
	cancelled  bool
	frames     []*image.RGBA
	notReady   int // number of initial Ready calls that report false
	readyCalls int
	failStart  bool
	failFinal  error
}

func (f *fakeWriter) Start() error {
	if f.failStart {
		return ErrWriterStart
	}
	f.started = true
	return nil
}

func (f *fakeWriter) Ready() bool {
	f.readyCalls++
	return f.readyCalls > f.notReady
}

func (f *fakeWriter) Append(frame *image.RGBA) error {
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeWriter) Finalize() error {
	f.finalized = true
	return f.failFinal
}

func (f *fakeWriter) Cancel() { f.cancelled = true }

func writePairFiles(t *testing.T, dir, name string, date time.Time) merge.CapturePair {
	t.Helper()

	backPath := filepath.Join(dir, name+"_back.jpg")
	frontPath := filepath.Join(dir, name+"_front.jpg")
	for _, spec := range []struct {
		path string
		col  color.RGBA
		size int
	}{
		{backPath, color.RGBA{R: 200, A: 255}, 120},
		{frontPath, color.RGBA{B: 200, A: 255}, 80},
	} {
		img := image.NewRGBA(image.Rect(0, 0, spec.size, spec.size))
		for i := 0; i < len(img.Pix); i += 4 {
			img.Pix[i] = spec.col.R
			img.Pix[i+2] = spec.col.B
			img.Pix[i+3] = 255
		}
		f, err := os.Create(spec.path)
		require.NoError(t, err)
		require.NoError(t, jpeg.Encode(f, img, nil))
		require.NoError(t, f.Close())
	}

	return merge.CapturePair{Key: name, Date: date, BackPath: backPath, FrontPath: frontPath}
}

func testGenerator(t *testing.T, writer ContainerWriter) *Generator {
	t.Helper()

	renderer, err := NewRenderer(placement.NewAnalyzer(placement.StubAnalyzer{}, nil), nil)
	require.NoError(t, err)

	return NewGenerator(renderer, "", "out.mp4", nil).
		WithWriterFactory(func(int, int, int) ContainerWriter { return writer })
}

func defaultOpts() models.VideoOptions {
	return models.VideoOptions{
		Content:         models.ContentCombinedBackMain,
		OverlayPosition: models.PositionTopLeft,
		FramesPerSecond: 8,
	}
}

func TestGenerateEmitsOneProgressPerFrame(t *testing.T) {
	dir := t.TempDir()
	pairs := []merge.CapturePair{
		writePairFiles(t, dir, "a", day(2024, 1, 1)),
		writePairFiles(t, dir, "b", day(2024, 1, 2)),
		writePairFiles(t, dir, "c", day(2024, 1, 3)),
	}

	writer := &fakeWriter{}
	var events []models.ExportProgress

	err := testGenerator(t, writer).Generate(context.Background(), pairs, defaultOpts(),
		func(p models.ExportProgress) { events = append(events, p) })
	require.NoError(t, err)

	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, i+1, e.Current)
		assert.Equal(t, 3, e.Total)
		assert.LessOrEqual(t, e.Percentage(), 1.0)
	}
	assert.Len(t, writer.frames, 3)
	assert.True(t, writer.finalized)
	assert.False(t, writer.cancelled)
}

func TestGenerateNoFrames(t *testing.T) {
	writer := &fakeWriter{}
	opts := defaultOpts()
	start := day(2030, 1, 1)
	opts.StartDate = &start

	err := testGenerator(t, writer).Generate(context.Background(),
		[]merge.CapturePair{{Key: "a", Date: day(2024, 1, 1)}}, opts, func(models.ExportProgress) {})

	assert.ErrorIs(t, err, ErrNoFrames)
	assert.False(t, writer.started, "no writer may be created when there is nothing to encode")
}

func TestGenerateCancellation(t *testing.T) {
	dir := t.TempDir()
	pairs := []merge.CapturePair{
		writePairFiles(t, dir, "a", day(2024, 1, 1)),
		writePairFiles(t, dir, "b", day(2024, 1, 2)),
	}

	ctx, cancel := context.WithCancel(context.Background())
	writer := &fakeWriter{}

	err := testGenerator(t, writer).Generate(ctx, pairs, defaultOpts(),
		func(p models.ExportProgress) {
			if p.Current == 1 {
				cancel()
			}
		})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, writer.frames, 1)
	assert.False(t, writer.finalized)
	assert.True(t, writer.cancelled)
}

func TestGenerateWaitsForWriterReadiness(t *testing.T) {
	dir := t.TempDir()
	pairs := []merge.CapturePair{writePairFiles(t, dir, "a", day(2024, 1, 1))}

	writer := &fakeWriter{notReady: 3}
	err := testGenerator(t, writer).Generate(context.Background(), pairs, defaultOpts(),
		func(models.ExportProgress) {})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, writer.readyCalls, 4)
	assert.Len(t, writer.frames, 1)
}

func TestGenerateSurfacesDeferredWriterError(t *testing.T) {
	dir := t.TempDir()
	pairs := []merge.CapturePair{writePairFiles(t, dir, "a", day(2024, 1, 1))}

	wantErr := errors.New("moov atom write failed")
	writer := &fakeWriter{failFinal: wantErr}

	err := testGenerator(t, writer).Generate(context.Background(), pairs, defaultOpts(),
		func(models.ExportProgress) {})
	assert.ErrorIs(t, err, wantErr)
}

func TestFrameBufferPadsAndCenters(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 3, 3))
	for i := 0; i < len(frame.Pix); i += 4 {
		frame.Pix[i] = 255 // red
		frame.Pix[i+3] = 255
	}

	buf := frameBuffer(frame, 4, 4)
	require.Equal(t, 4, buf.Bounds().Dx())

	// Padding column is opaque black.
	_, _, _, a := buf.At(3, 3).RGBA()
	assert.Equal(t, uint32(0xffff), a)
	r, _, _, _ := buf.At(3, 3).RGBA()
	assert.Zero(t, r)

	// Frame content lands inside.
	r, _, _, _ = buf.At(1, 1).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}

func TestEvenUp(t *testing.T) {
	assert.Equal(t, 4, evenUp(3))
	assert.Equal(t, 4, evenUp(4))
}

func TestFFmpegWriterArgs(t *testing.T) {
	w := NewFFmpegWriter("", "/tmp/out.mp4", 1920, 1080, 8, nil)

	args := w.Args()
	assert.Contains(t, args, "rawvideo")
	assert.Contains(t, args, "1920x1080")
	assert.Contains(t, args, "libx264")
	assert.Contains(t, args, "yuv420p")
	assert.Equal(t, "/tmp/out.mp4", args[len(args)-1])
}

func TestRenderFrameFitsTargetResolution(t *testing.T) {
	dir := t.TempDir()
	pair := writePairFiles(t, dir, "a", day(2024, 1, 1))

	renderer, err := NewRenderer(placement.NewAnalyzer(placement.StubAnalyzer{}, nil), nil)
	require.NoError(t, err)

	opts := defaultOpts()
	opts.TargetWidth = 200
	opts.TargetHeight = 100
	opts.DateOverlay = true

	frame, err := renderer.RenderFrame(context.Background(), pair, opts)
	require.NoError(t, err)
	assert.Equal(t, 200, frame.Bounds().Dx())
	assert.Equal(t, 100, frame.Bounds().Dy())
}
