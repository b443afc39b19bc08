package loader

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userJSON = `{"username":"alice","fullname":"Alice"}`

const postsJSON = `[
  {
    "primary": {"bucket":"b","width":1500,"height":2000,"path":"Photos/u1/2024-01/back.webp"},
    "secondary": {"bucket":"b","width":1500,"height":2000,"path":"Photos/u1/2024-01/front.webp"},
    "caption": "hello",
    "location": {"latitude": 48.8566, "longitude": 2.3522},
    "takenAt": "2024-01-15T12:00:00Z"
  }
]`

const memoriesJSON = `[
  {
    "frontImage": {"bucket":"b","width":1500,"height":2000,"path":"Photos/u1/2024-02/mfront.webp"},
    "backImage": {"bucket":"b","width":1500,"height":2000,"path":"Photos/u1/2024-02/mback.webp"},
    "date": "2024-02-01T00:00:00Z",
    "takenTime": "2024-02-01T08:30:00Z"
  }
]`

func writeExportTree(t *testing.T, root string) string {
	t.Helper()

	dataDir := filepath.Join(root, "export-data")
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "Photos"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "user.json"), []byte(userJSON), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "posts.json"), []byte(postsJSON), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "memories.json"), []byte(memoriesJSON), 0644))
	return dataDir
}

func TestLoadFolder(t *testing.T) {
	root := t.TempDir()
	dataDir := writeExportTree(t, root)

	export, err := NewLoader(nil).Load(root)
	require.NoError(t, err)

	assert.Equal(t, "alice", export.User.Username)
	assert.Equal(t, dataDir, export.BaseDir)
	require.Len(t, export.Posts, 1)
	require.Len(t, export.Memories, 1)

	post := export.Posts[0]
	assert.Equal(t, "hello", *post.Caption)
	assert.InDelta(t, 48.8566, post.Location.Latitude, 1e-9)
	assert.Equal(t, 2024, post.TakenAt.Year())
}

func TestLoadFindsNestedDataFolder(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "outer", "inner")
	require.NoError(t, os.MkdirAll(nested, 0755))
	writeExportTree(t, nested)

	export, err := NewLoader(nil).Load(root)
	require.NoError(t, err)
	assert.Equal(t, "alice", export.User.Username)
}

func TestLoadMissingFiles(t *testing.T) {
	root := t.TempDir()
	dataDir := filepath.Join(root, "export-data")
	require.NoError(t, os.MkdirAll(dataDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "user.json"), []byte(userJSON), 0644))

	_, err := NewLoader(nil).Load(root)
	assert.ErrorIs(t, err, ErrMissingPostsJSON)
}

func TestLoadRejectsUnknownFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "export.tar")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	_, err := NewLoader(nil).Load(path)
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestLoadConversationImages(t *testing.T) {
	root := t.TempDir()
	dataDir := writeExportTree(t, root)

	convDir := filepath.Join(dataDir, "conversations", "chat-1")
	require.NoError(t, os.MkdirAll(convDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(convDir, "photo.webp"), []byte("img"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(convDir, "notes.txt"), []byte("text"), 0644))

	export, err := NewLoader(nil).Load(root)
	require.NoError(t, err)

	require.Len(t, export.ConversationImages, 1)
	img := export.ConversationImages[0]
	assert.Equal(t, "chat-1", img.ConversationID)
	assert.Equal(t, "photo.webp", img.Filename)
	assert.FileExists(t, img.Path)
}

func TestLoadOptionalComments(t *testing.T) {
	root := t.TempDir()
	dataDir := writeExportTree(t, root)
	commentsJSON := `[{"postId":"back.webp","content":"nice one"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "comments.json"), []byte(commentsJSON), 0644))

	export, err := NewLoader(nil).Load(root)
	require.NoError(t, err)

	require.Len(t, export.Comments, 1)
	assert.Equal(t, "back.webp", export.Comments[0].PostID)
}

func TestLoadZip(t *testing.T) {
	root := t.TempDir()
	zipPath := filepath.Join(root, "export.zip")

	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range map[string]string{
		"data/user.json":     userJSON,
		"data/posts.json":    postsJSON,
		"data/memories.json": memoriesJSON,
		"data/Photos/.keep":  "",
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	export, err := NewLoader(nil).Load(zipPath)
	require.NoError(t, err)
	assert.Equal(t, "alice", export.User.Username)
	require.Len(t, export.Posts, 1)
}

func TestExtractZipRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	zipPath := filepath.Join(root, "evil.zip")

	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("../escape.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("nope"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	dest := filepath.Join(root, "dest")
	require.NoError(t, os.MkdirAll(dest, 0755))
	assert.Error(t, extractZip(zipPath, dest))
}
