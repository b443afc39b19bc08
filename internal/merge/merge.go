// Package merge folds the posts and memories collections into ordered,
// deduplicated work lists for the export pipeline.
package merge

import (
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/realexport/realexport/internal/models"
)

// CapturePair is one exportable moment with both captures resolved to
// existing local image files.
type CapturePair struct {
	Type      string // "post" or "memory"
	Key       string // back-camera media path, the dedup identity
	Date      time.Time
	BackPath  string
	FrontPath string
	Location  *models.Location
	Caption   string
}

// VideoItem is a moment whose captures include a video. The raw files are
// copied through verbatim, never composited.
type VideoItem struct {
	Type      string
	Key       string
	Date      time.Time
	BackPath  string
	FrontPath string
}

// BTSItem is a single behind-the-scenes file exported on its own.
type BTSItem struct {
	Type string
	Key  string
	Date time.Time
	Path string
}

// Result holds the three time-ordered work lists produced by one merge.
type Result struct {
	Pairs  []CapturePair
	Videos []VideoItem
	BTS    []BTSItem
}

// FileExists abstracts the filesystem probe so tests can run without
// touching disk.
type FileExists func(path string) bool

// Merger deduplicates and orders raw moments. Posts take priority over
// memories sharing the same identity key; missing files exclude an item
// without failing the run.
type Merger struct {
	exists FileExists
	logger *slog.Logger
}

func NewMerger(logger *slog.Logger) *Merger {
	return &Merger{
		exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
		logger: logger,
	}
}

// WithFileExists overrides the filesystem probe.
func (m *Merger) WithFileExists(fn FileExists) *Merger {
	m.exists = fn
	return m
}

// Merge produces the ordered work lists for an export.
func (m *Merger) Merge(e *models.Export) Result {
	return Result{
		Pairs:  m.mergePairs(e),
		Videos: m.mergeVideos(e),
		BTS:    m.mergeBTS(e),
	}
}

func (m *Merger) mergePairs(e *models.Export) []CapturePair {
	seen := make(map[string]struct{})
	var pairs []CapturePair

	for _, post := range e.Posts {
		if !post.HasBothImages() {
			continue
		}
		backPath := post.Primary.LocalPath(e.BaseDir)
		frontPath := post.Secondary.LocalPath(e.BaseDir)
		if !m.bothExist(backPath, frontPath) {
			continue
		}

		key := post.Primary.Path
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		pairs = append(pairs, CapturePair{
			Type:      "post",
			Key:       key,
			Date:      post.TakenAt,
			BackPath:  backPath,
			FrontPath: frontPath,
			Location:  post.Location,
			Caption:   deref(post.Caption),
		})
	}

	for _, memory := range e.Memories {
		if !memory.HasBothImages() {
			continue
		}
		back := memory.BackImageForExport()
		front := memory.FrontImageForExport()
		backPath := back.LocalPath(e.BaseDir)
		frontPath := front.LocalPath(e.BaseDir)
		if !m.bothExist(backPath, frontPath) {
			continue
		}

		key := back.Path
		if _, dup := seen[key]; dup {
			if m.logger != nil {
				m.logger.Debug("dropping duplicate memory", "key", key)
			}
			continue
		}
		seen[key] = struct{}{}

		pairs = append(pairs, CapturePair{
			Type:      "memory",
			Key:       key,
			Date:      memory.TakenTime,
			BackPath:  backPath,
			FrontPath: frontPath,
			Caption:   deref(memory.Caption),
		})
	}

	stableSortByDate(pairs, func(p CapturePair) time.Time { return p.Date })
	return pairs
}

func (m *Merger) mergeVideos(e *models.Export) []VideoItem {
	seen := make(map[string]struct{})
	var items []VideoItem

	add := func(itemType, key string, date time.Time, backPath, frontPath string) {
		if !m.bothExist(backPath, frontPath) {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		items = append(items, VideoItem{
			Type:      itemType,
			Key:       key,
			Date:      date,
			BackPath:  backPath,
			FrontPath: frontPath,
		})
	}

	for _, post := range e.Posts {
		if post.Primary.IsVideo() || post.Secondary.IsVideo() {
			add("post", post.Primary.Path, post.TakenAt,
				post.Primary.LocalPath(e.BaseDir), post.Secondary.LocalPath(e.BaseDir))
		}
	}
	for _, memory := range e.Memories {
		if memory.BackImage.IsVideo() || memory.FrontImage.IsVideo() {
			add("memory", memory.BackImage.Path, memory.TakenTime,
				memory.BackImage.LocalPath(e.BaseDir), memory.FrontImage.LocalPath(e.BaseDir))
		}
	}

	stableSortByDate(items, func(v VideoItem) time.Time { return v.Date })
	return items
}

func (m *Merger) mergeBTS(e *models.Export) []BTSItem {
	seen := make(map[string]struct{})
	var items []BTSItem

	add := func(itemType string, ref *models.MediaReference, date time.Time) {
		if ref == nil {
			return
		}
		path := ref.LocalPath(e.BaseDir)
		if !m.exists(path) {
			return
		}
		if _, dup := seen[ref.Path]; dup {
			return
		}
		seen[ref.Path] = struct{}{}
		items = append(items, BTSItem{Type: itemType, Key: ref.Path, Date: date, Path: path})
	}

	for _, post := range e.Posts {
		add("post", post.BTSMedia, post.TakenAt)
	}
	for _, memory := range e.Memories {
		add("memory", memory.BTSMedia, memory.TakenTime)
	}

	stableSortByDate(items, func(b BTSItem) time.Time { return b.Date })
	return items
}

func (m *Merger) bothExist(a, b string) bool {
	if m.exists(a) && m.exists(b) {
		return true
	}
	if m.logger != nil {
		m.logger.Debug("excluding item with missing files", "back", a, "front", b)
	}
	return false
}

func stableSortByDate[T any](items []T, date func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return date(items[i]).Before(date(items[j]))
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
