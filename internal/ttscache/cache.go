package ttscache

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/windoze95/voicepack-api/internal/logger"
	"go.uber.org/zap"
)

// DefaultSuffix is the file extension used for synthesized speech.
const DefaultSuffix = ".mp3"

var (
	// ErrInvalidName is returned by Open for names that are not a plain file
	// name inside the cache directory.
	ErrInvalidName = errors.New("ttscache: invalid entry name")
	// ErrNotFound is returned by Open when no entry exists under the name.
	ErrNotFound = errors.New("ttscache: entry not found")
)

// Cache maps synthesis requests to files in a single directory. Entries are
// named by the fingerprint of the request parameters so identical requests
// share one file.
type Cache struct {
	dir      string
	now      func() time.Time
	onRemove func(name string)
}

// New creates the cache directory if needed.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir %s: %w", dir, err)
	}
	return &Cache{dir: dir, now: time.Now}, nil
}

// OnRemove registers fn to run for every entry Prune deletes.
func (c *Cache) OnRemove(fn func(name string)) {
	c.onRemove = fn
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// Fingerprint returns the lowercase hex SHA-1 of params encoded as JSON.
// encoding/json writes map keys in sorted order, so the result does not
// depend on how the map was built.
func Fingerprint(params map[string]interface{}) string {
	b, err := json.Marshal(params)
	if err != nil {
		// unencodable values fall back to their printed form
		b = []byte(fmt.Sprintf("%v", params))
	}
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}

// PathFor returns <dir>/<fingerprint><suffix>. It does not touch the disk.
func (c *Cache) PathFor(params map[string]interface{}, suffix string) string {
	return filepath.Join(c.dir, Fingerprint(params)+suffix)
}

// Exists reports whether path names a non-empty regular file.
func (c *Cache) Exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

// Write stores the contents of r at path. Data goes to a temp file in the
// cache directory which is then renamed over path, so readers see either the
// old file or the complete new one.
func (c *Cache) Write(path string, r io.Reader) error {
	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close cache entry: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move cache entry into place: %w", err)
	}
	return nil
}

// Open opens the entry called name for reading.
func (c *Cache) Open(name string) (*os.File, error) {
	if !validName(name) {
		return nil, ErrInvalidName
	}
	f, err := os.Open(filepath.Join(c.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open cache entry: %w", err)
	}
	return f, nil
}

// Prune removes entries whose modification time is older than maxAge and
// returns how many were removed.
func (c *Cache) Prune(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read cache dir: %w", err)
	}

	cutoff := c.now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Get().Warn("failed to prune cache entry", zap.String("name", e.Name()), zap.Error(err))
			continue
		}
		removed++
		if c.onRemove != nil {
			c.onRemove(e.Name())
		}
	}
	return removed, nil
}

// RunPruner calls Prune every interval until stop is closed.
func (c *Cache) RunPruner(maxAge, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n, err := c.Prune(maxAge)
			if err != nil {
				logger.Get().Error("cache prune failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Get().Info("pruned tts cache", zap.Int("removed", n))
			}
		}
	}
}

func validName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return filepath.Base(name) == name
}
