package models

import (
	"path"
	"path/filepath"
	"strings"
)

// MediaReference points at one file inside the export archive.
type MediaReference struct {
	Bucket    string  `json:"bucket"`
	Height    int     `json:"height"`
	Width     int     `json:"width"`
	Path      string  `json:"path"`
	MediaType *string `json:"mediaType,omitempty"`
	MimeType  *string `json:"mimeType,omitempty"`
}

// IsVideo reports whether the reference points at a video file.
func (m MediaReference) IsVideo() bool {
	if m.MediaType != nil && *m.MediaType == "video" {
		return true
	}
	return m.MimeType != nil && strings.Contains(*m.MimeType, "video")
}

// Filename returns the last path component of the media path.
func (m MediaReference) Filename() string {
	return path.Base(m.Path)
}

// LocalPath resolves the reference to a file under baseDir.
//
// Export archives reference media as Photos/<userID>/<year-month-id>/<file>
// but ship the files as Photos/<year-month-id>/<file>; paths of that shape
// are simplified accordingly. Anything else is appended as-is.
func (m MediaReference) LocalPath(baseDir string) string {
	clean := strings.TrimPrefix(m.Path, "/")

	components := strings.Split(clean, "/")
	if len(components) >= 4 && components[0] == "Photos" {
		return filepath.Join(baseDir, "Photos", components[2], components[3])
	}

	return filepath.Join(baseDir, filepath.FromSlash(clean))
}

// Location is a GPS coordinate attached to a post.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
