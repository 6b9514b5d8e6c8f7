// deepsignature/helpers_cache.go
// Contains helper functions for memory caching (Ristretto) and cache keys.
package deepsignature

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// memoryCacher is the slice of the caching finder that withMemoryCache needs.
type memoryCacher interface {
	GetMemoryCache(key string) (any, bool)
	SetMemoryCache(key string, value any, cost int64, ttl time.Duration) bool
	MemoryCacheEnabled() bool
}

// declarationCacheKey builds the cache key for a lookup. Keys start with the
// document path so every entry for one document shares a prefix.
// Format: path::tool:sig:dirFingerprint:contentHash:line:char
func declarationCacheKey(req DeclarationRequest, dirFingerprint string) string {
	path := req.Path
	if path == "" {
		path = "[unknown-path]"
	}
	sig := 0
	if req.WantSignature {
		sig = 1
	}
	return fmt.Sprintf("%s::%s:%d:%s:%s:%d:%d",
		path, req.DocsTool, sig, shortHash(dirFingerprint), shortHash(hashContent(req.Content)),
		req.Position.Line, req.Position.Character)
}

// cacheKeyPrefix returns the key prefix shared by every entry for path.
func cacheKeyPrefix(path string) string { return path + "::" }

func shortHash(h string) string {
	if len(h) > 16 {
		return h[:16]
	}
	return h
}

// packageDirFingerprint summarises the Go sources and go.mod next to path so
// cached declarations are dropped when a sibling file changes on disk.
func packageDirFingerprint(path string, logger *slog.Logger) string {
	dir := filepath.Dir(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Debug("Could not read package dir for fingerprint", "dir", dir, "error", err)
		return "no-dir"
	}
	var parts []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || (!strings.HasSuffix(name, ".go") && name != "go.mod") {
			continue
		}
		info, infoErr := e.Info()
		if infoErr != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s:%d:%d", name, info.Size(), info.ModTime().UnixNano()))
	}
	sort.Strings(parts)
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// withMemoryCache wraps a function call with caching logic.
// Tries to fetch from cache using cacheKey. If miss, calls computeFn,
// stores the result with cost and ttl, and returns it.
// Returns the result (cached or computed), a boolean indicating cache hit, and any error from computeFn.
func withMemoryCache[T any](
	cache memoryCacher,
	cacheKey string,
	cost int64, // Ristretto cost; <= 0 estimates it from the computed value
	ttl time.Duration,
	computeFn func() (T, error),
	logger *slog.Logger,
) (T, bool, error) {
	var zero T
	if logger == nil {
		logger = slog.Default()
	}
	cacheLogger := logger.With("cache_key", cacheKey)

	if cache == nil || !cache.MemoryCacheEnabled() {
		cacheLogger.Debug("Memory cache check skipped (cache disabled)")
		result, err := computeFn()
		return result, false, err
	}

	cachedResult, found := cache.GetMemoryCache(cacheKey)
	if found {
		if typedResult, ok := cachedResult.(T); ok {
			cacheLogger.Debug("Memory cache hit")
			recordCacheProbe("memory", "hit")
			return typedResult, true, nil
		}
		// The invalid entry will expire with its TTL.
		cacheLogger.Error("Memory cache type assertion failed", "expected_type", fmt.Sprintf("%T", zero), "actual_type", fmt.Sprintf("%T", cachedResult))
		recordCacheProbe("memory", "error")
	} else {
		cacheLogger.Debug("Memory cache miss")
		recordCacheProbe("memory", "miss")
	}

	computedResult, err := computeFn()
	if err != nil {
		return zero, false, err
	}

	if cost <= 0 {
		cost = estimateCost(computedResult)
	}
	if cost <= 0 {
		cost = 1 // Ristretto cost must be positive
	}
	if !cache.SetMemoryCache(cacheKey, computedResult, cost, ttl) {
		cacheLogger.Warn("Memory cache Set failed, item not cached", "cost", cost, "ttl", ttl)
	}
	return computedResult, false, nil
}

// estimateCost approximates the memory held by a cached value.
func estimateCost(v any) int64 {
	switch val := v.(type) {
	case string:
		return int64(len(val))
	case []byte:
		return int64(len(val))
	case []string:
		cost := int64(0)
		for _, s := range val {
			cost += int64(len(s))
		}
		return cost
	case *DeclarationResult:
		if val == nil {
			return 1
		}
		return int64(len(val.File)+len(val.Name)+len(val.Doc)) + estimateCost(val.DeclarationLines)
	default:
		return 1
	}
}
