// deepsignature_utils.go
package deepsignature

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"unicode/utf8"

	"go.etcd.io/bbolt"
)

// ============================================================================
// Logging & Path Helpers
// ============================================================================

// ParseLogLevel converts a level name (debug, info, warn, error) to slog.Level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// ValidateAndGetFilePath converts a file:// URI into a clean absolute path.
func ValidateAndGetFilePath(uri string) (string, error) {
	if uri == "" {
		return "", fmt.Errorf("%w: empty URI", ErrInvalidURI)
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURI, err)
	}
	if parsed.Scheme != "file" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURI, parsed.Scheme)
	}
	path := parsed.Path
	// file:///C:/dir/file.go parses with a leading slash before the drive letter.
	if runtime.GOOS == "windows" && len(path) > 2 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}
	path = filepath.Clean(filepath.FromSlash(path))
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: path %q is not absolute", ErrInvalidURI, path)
	}
	return path, nil
}

// PathToURI converts a filesystem path to a file:// URI.
func PathToURI(path string) (string, error) {
	if path == "" {
		return "", errors.New("empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	slashed := filepath.ToSlash(abs)
	if !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}
	return (&url.URL{Scheme: "file", Path: slashed}).String(), nil
}

// ============================================================================
// Position Conversion Helpers
// ============================================================================

// Utf16OffsetToRunes converts a 0-based UTF-16 offset within line to a codepoint
// offset. Offsets past the end return the line length with ErrPositionOutOfRange.
func Utf16OffsetToRunes(line string, utf16Offset int) (int, error) {
	if utf16Offset < 0 {
		return 0, fmt.Errorf("%w: invalid utf16Offset: %d (must be >= 0)", ErrInvalidPositionInput, utf16Offset)
	}
	runes, units := 0, 0
	for byteOffset := 0; byteOffset < len(line); {
		if units >= utf16Offset {
			return runes, nil
		}
		r, size := utf8.DecodeRuneInString(line[byteOffset:])
		if r == utf8.RuneError && size <= 1 {
			return runes, fmt.Errorf("%w at byte offset %d", ErrInvalidUTF8, byteOffset)
		}
		width := 1
		if r > 0xFFFF {
			width = 2 // Surrogate pair.
		}
		if units+width > utf16Offset {
			return runes, nil // Offset points into the middle of a surrogate pair.
		}
		units += width
		runes++
		byteOffset += size
	}
	if units < utf16Offset {
		return runes, fmt.Errorf("%w: utf16Offset %d is beyond the line length in UTF-16 units (%d)", ErrPositionOutOfRange, utf16Offset, units)
	}
	return runes, nil
}

// RunesToUTF16Offset converts a codepoint offset within line to UTF-16 units.
// Offsets past the end are clamped to the line length.
func RunesToUTF16Offset(line string, runeOffset int) int {
	units, runes := 0, 0
	for _, r := range line {
		if runes >= runeOffset {
			break
		}
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
		runes++
	}
	return units
}

// runeOffsetToBytes converts a codepoint offset within line to a byte offset.
func runeOffsetToBytes(line string, runeOffset int) int {
	runes := 0
	for i := range line {
		if runes == runeOffset {
			return i
		}
		runes++
	}
	return len(line)
}

// byteOffsetToRunes converts a byte offset within line to a codepoint offset.
func byteOffsetToRunes(line string, byteOffset int) int {
	if byteOffset > len(line) {
		byteOffset = len(line)
	}
	if byteOffset < 0 {
		return 0
	}
	return utf8.RuneCountInString(line[:byteOffset])
}

// ============================================================================
// Cache Helper Functions
// ============================================================================

// hashContent returns the hex SHA256 of a document snapshot.
func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// deleteCacheEntryByKey removes a disk cache entry directly using the key.
func deleteCacheEntryByKey(db *bbolt.DB, cacheKey []byte, logger *slog.Logger) error {
	if db == nil {
		return errors.New("cannot delete cache entry: db is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("cache_key", string(cacheKey))

	err := db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(cacheBucketName)
		if b == nil {
			logger.Warn("Cache bucket not found during delete attempt.")
			return nil
		}
		if b.Get(cacheKey) == nil {
			logger.Debug("Cache key not found during delete attempt.")
			return nil
		}
		logger.Debug("Deleting cache entry")
		return b.Delete(cacheKey)
	})
	if err != nil {
		logger.Warn("Failed to delete cache entry", "error", err)
		return fmt.Errorf("%w: failed to delete entry %s: %w", ErrCacheWrite, string(cacheKey), err)
	}
	return nil
}

// deleteCacheEntriesWithPrefix removes every disk cache entry whose key starts with prefix.
func deleteCacheEntriesWithPrefix(db *bbolt.DB, prefix []byte, logger *slog.Logger) (int, error) {
	if db == nil {
		return 0, errors.New("cannot delete cache entries: db is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	var keys [][]byte
	err := db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(cacheBucketName)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: scanning prefix %s: %w", ErrCacheRead, string(prefix), err)
	}
	var errs []error
	for _, k := range keys {
		if delErr := deleteCacheEntryByKey(db, k, logger); delErr != nil {
			errs = append(errs, delErr)
		}
	}
	return len(keys) - len(errs), errors.Join(errs...)
}
