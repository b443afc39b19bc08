// Package loader reads a data export from a folder or ZIP archive into
// the in-memory model.
package loader

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/realexport/realexport/internal/models"
)

var (
	ErrInvalidPath      = errors.New("the selected path is not valid")
	ErrMissingUserJSON  = errors.New("missing user.json file")
	ErrMissingPostsJSON = errors.New("missing posts.json file")
	ErrMissingMemories  = errors.New("missing memories.json file")
	ErrMissingPhotos    = errors.New("missing Photos folder")
	ErrNoDataFolder     = errors.New("could not find export data folder")
)

var imageExtensions = map[string]bool{
	".webp": true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".heic": true,
}

// Loader ingests exports from disk.
type Loader struct {
	logger *slog.Logger
}

func NewLoader(logger *slog.Logger) *Loader {
	return &Loader{logger: logger}
}

// Load reads an export from a directory or a .zip archive.
func (l *Loader) Load(path string) (*models.Export, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	if info.IsDir() {
		return l.LoadFolder(path)
	}
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return l.LoadZip(path)
	}
	return nil, ErrInvalidPath
}

// LoadFolder locates the data folder under dir and parses it.
func (l *Loader) LoadFolder(dir string) (*models.Export, error) {
	dataDir, err := findDataFolder(dir)
	if err != nil {
		return nil, err
	}
	return l.parseDataFolder(dataDir)
}

// LoadZip extracts the archive into a temporary directory and parses the
// data folder inside it. The extracted tree lives for the process; one
// export/import cycle owns it.
func (l *Loader) LoadZip(zipPath string) (*models.Export, error) {
	tempDir := filepath.Join(os.TempDir(), "realexport-"+uuid.NewString())
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create extraction directory: %w", err)
	}

	if err := extractZip(zipPath, tempDir); err != nil {
		return nil, err
	}

	dataDir, err := findDataFolder(tempDir)
	if err != nil {
		return nil, err
	}
	return l.parseDataFolder(dataDir)
}

// findDataFolder walks the tree looking for the directory holding
// user.json.
func findDataFolder(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoDataFolder, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		sub := filepath.Join(dir, entry.Name())
		if fileExists(filepath.Join(sub, "user.json")) {
			return sub, nil
		}
		if nested, err := findDataFolder(sub); err == nil {
			return nested, nil
		}
	}

	if fileExists(filepath.Join(dir, "user.json")) {
		return dir, nil
	}
	return "", ErrNoDataFolder
}

func (l *Loader) parseDataFolder(dir string) (*models.Export, error) {
	checks := []struct {
		name string
		err  error
	}{
		{"user.json", ErrMissingUserJSON},
		{"posts.json", ErrMissingPostsJSON},
		{"memories.json", ErrMissingMemories},
		{"Photos", ErrMissingPhotos},
	}
	for _, check := range checks {
		if !fileExists(filepath.Join(dir, check.name)) {
			return nil, check.err
		}
	}

	var user models.User
	if err := decodeJSONFile(filepath.Join(dir, "user.json"), &user); err != nil {
		return nil, err
	}

	var posts []models.Post
	if err := decodeJSONFile(filepath.Join(dir, "posts.json"), &posts); err != nil {
		return nil, err
	}

	var memories []models.Memory
	if err := decodeJSONFile(filepath.Join(dir, "memories.json"), &memories); err != nil {
		return nil, err
	}

	// comments.json is optional; older exports do not carry it.
	var comments []models.Comment
	commentsPath := filepath.Join(dir, "comments.json")
	if fileExists(commentsPath) {
		if err := decodeJSONFile(commentsPath, &comments); err != nil {
			if l.logger != nil {
				l.logger.Warn("skipping unreadable comments.json", "error", err)
			}
			comments = nil
		}
	}

	export := &models.Export{
		User:               user,
		Posts:              posts,
		Memories:           memories,
		ConversationImages: l.loadConversationImages(dir),
		Comments:           comments,
		BaseDir:            dir,
	}

	if l.logger != nil {
		l.logger.Info("loaded export",
			"username", user.Username,
			"posts", len(posts),
			"memories", len(memories),
			"conversationImages", len(export.ConversationImages))
	}
	return export, nil
}

// loadConversationImages scans conversations/<id>/ for image files.
func (l *Loader) loadConversationImages(dir string) []models.ConversationImage {
	conversationsDir := filepath.Join(dir, "conversations")

	folders, err := os.ReadDir(conversationsDir)
	if err != nil {
		return nil
	}

	var images []models.ConversationImage
	for _, folder := range folders {
		if !folder.IsDir() || strings.HasPrefix(folder.Name(), ".") {
			continue
		}
		conversationID := folder.Name()

		files, err := os.ReadDir(filepath.Join(conversationsDir, conversationID))
		if err != nil {
			continue
		}
		for _, file := range files {
			if file.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(file.Name()))] {
				continue
			}
			images = append(images, models.ConversationImage{
				ID:             conversationID + "_" + file.Name(),
				Path:           filepath.Join(conversationsDir, conversationID, file.Name()),
				ConversationID: conversationID,
				Filename:       file.Name(),
			})
		}
	}
	return images
}

func decodeJSONFile(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// extractZip unpacks the archive, refusing entries that escape the
// destination.
func extractZip(zipPath, dest string) error {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		target := filepath.Join(dest, filepath.FromSlash(file.Name))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry escapes destination: %s", file.Name)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := extractFile(file, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(file *zip.File, target string) error {
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to read archive entry %s: %w", file.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
