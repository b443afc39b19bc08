package placement

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/realexport/realexport/internal/models"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS placements (
	key        TEXT PRIMARY KEY,
	corner     TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// Cache persists resolved corners so re-running an export skips repeated
// analysis of unchanged backgrounds.
type Cache struct {
	conn   *sql.DB
	logger *slog.Logger
}

// OpenCache opens (creating if needed) the placement cache at dbPath.
func OpenCache(dbPath string, logger *slog.Logger) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping cache: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(cacheSchema); err != nil {
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &Cache{conn: conn, logger: logger}, nil
}

func (c *Cache) Close() error {
	return c.conn.Close()
}

// Get looks up a previously resolved corner.
func (c *Cache) Get(bgPath string, geom Geometry) (models.OverlayPosition, bool) {
	var corner string
	err := c.conn.QueryRow(
		"SELECT corner FROM placements WHERE key = ?", cacheKey(bgPath, geom),
	).Scan(&corner)
	if err != nil {
		if err != sql.ErrNoRows && c.logger != nil {
			c.logger.Warn("placement cache read failed", "error", err)
		}
		return "", false
	}

	pos := models.OverlayPosition(corner)
	if !pos.IsFixed() {
		return "", false
	}
	return pos, true
}

// Put records a resolved corner, replacing any prior entry.
func (c *Cache) Put(bgPath string, geom Geometry, corner models.OverlayPosition) error {
	_, err := c.conn.Exec(
		"INSERT OR REPLACE INTO placements (key, corner) VALUES (?, ?)",
		cacheKey(bgPath, geom), string(corner),
	)
	return err
}

func cacheKey(bgPath string, geom Geometry) string {
	return fmt.Sprintf("%s|%dx%d|%d", bgPath, geom.OverlayWidth, geom.OverlayHeight, geom.Padding)
}
