// deepsignature.go
// Package deepsignature provides signature help for Go call sites: it finds the
// call enclosing a cursor, resolves the called function's declaration and
// reports its parameters with the one being filled in.
package deepsignature

import (
	"bytes"
	"context"
	"encoding/gob" // For cache serialization
	"encoding/json"
	"errors"
	"fmt"
	stdslog "log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.etcd.io/bbolt"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Global Variables (Package Level)
// =============================================================================

var (
	cacheBucketName = []byte("DeclarationCache") // Name of the bbolt bucket for caching.

	errConfigParse = errors.New("parsing config file")
)

// =============================================================================
// Configuration Loading
// =============================================================================

// GetConfigPaths returns the primary (user config dir) and secondary
// (~/.config) config file paths. In each directory config.yaml is preferred
// over config.json when it exists.
func GetConfigPaths(logger *stdslog.Logger) (primary, secondary string, err error) {
	if logger == nil {
		logger = stdslog.Default()
	}
	var pathErrors []error

	if userDir, dirErr := os.UserConfigDir(); dirErr == nil {
		primary = configFileIn(filepath.Join(userDir, configDirName))
	} else {
		pathErrors = append(pathErrors, fmt.Errorf("user config dir: %w", dirErr))
		logger.Debug("Could not determine user config dir", "error", dirErr)
	}
	if home, homeErr := os.UserHomeDir(); homeErr == nil {
		secondary = configFileIn(filepath.Join(home, ".config", configDirName))
	} else {
		pathErrors = append(pathErrors, fmt.Errorf("home dir: %w", homeErr))
		logger.Debug("Could not determine home dir", "error", homeErr)
	}

	if primary == "" && secondary == "" {
		return "", "", fmt.Errorf("%w: %w", ErrConfig, errors.Join(pathErrors...))
	}
	return primary, secondary, nil
}

func configFileIn(dir string) string {
	yamlPath := filepath.Join(dir, defaultYAMLConfigFileName)
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}
	return filepath.Join(dir, defaultConfigFileName)
}

// LoadAndMergeConfig reads the config file at path and merges the fields it
// sets into cfg. A missing file reports loaded=false without error.
func LoadAndMergeConfig(path string, cfg *Config, logger *stdslog.Logger) (loaded bool, err error) {
	if logger == nil {
		logger = stdslog.Default()
	}
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		if errors.Is(readErr, os.ErrNotExist) {
			logger.Debug("Config file not found", "path", path)
			return false, nil
		}
		return false, fmt.Errorf("reading config file %s: %w", path, readErr)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		logger.Warn("Config file is empty, ignoring", "path", path)
		return false, nil
	}

	var fileCfg FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return false, fmt.Errorf("%w YAML %s: %w", errConfigParse, path, err)
		}
	default:
		if err := json.Unmarshal(data, &fileCfg); err != nil {
			return false, fmt.Errorf("%w JSON %s: %w", errConfigParse, path, err)
		}
	}
	merged := fileCfg.mergeInto(cfg)
	logger.Debug("Merged config file", "path", path, "fields_merged", merged)
	return true, nil
}

// WriteDefaultConfig writes cfg to path unless a file already exists there.
func WriteDefaultConfig(path string, cfg Config, logger *stdslog.Logger) error {
	if logger == nil {
		logger = stdslog.Default()
	}
	if _, err := os.Stat(path); err == nil {
		logger.Debug("Config file already exists, not overwriting", "path", path)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encoding default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	logger.Info("Wrote default config file", "path", path)
	return nil
}

// LoadConfig loads configuration from standard locations, merges with defaults,
// validates, and attempts to write a default config if needed.
func LoadConfig(logger *stdslog.Logger) (Config, error) {
	if logger == nil {
		logger = stdslog.Default()
	}
	cfg := getDefaultConfig()
	var loadedFromFile bool
	var loadErrors []error
	var configParseError error

	primaryPath, secondaryPath, pathErr := GetConfigPaths(logger)
	if pathErr != nil {
		loadErrors = append(loadErrors, pathErr)
		logger.Warn("Could not determine config paths, using defaults", "error", pathErr)
	}

	paths := []string{primaryPath}
	if secondaryPath != primaryPath {
		paths = append(paths, secondaryPath)
	}
	for _, path := range paths {
		if path == "" || loadedFromFile {
			continue
		}
		logger.Debug("Attempting to load config", "path", path)
		loaded, loadErr := LoadAndMergeConfig(path, &cfg, logger)
		if loadErr != nil {
			if configParseError == nil && errors.Is(loadErr, errConfigParse) {
				configParseError = loadErr
			}
			loadErrors = append(loadErrors, fmt.Errorf("loading %s failed: %w", path, loadErr))
			logger.Warn("Failed to load or merge config", "path", path, "error", loadErr)
			continue
		}
		if loaded {
			loadedFromFile = true
			logger.Info("Loaded config", "path", path)
		}
	}

	if !loadedFromFile {
		writePath := primaryPath
		if writePath == "" {
			writePath = secondaryPath
		}
		if writePath != "" {
			if configParseError != nil {
				logger.Warn("Existing config file failed to parse, keeping it and using defaults.", "path", writePath, "error", configParseError)
			} else {
				logger.Info("No valid config file found. Attempting to write default.", "path", writePath)
			}
			if err := WriteDefaultConfig(writePath, getDefaultConfig(), logger); err != nil {
				logger.Warn("Failed to write default config", "path", writePath, "error", err)
				loadErrors = append(loadErrors, fmt.Errorf("writing default config failed: %w", err))
			}
		} else {
			logger.Warn("Cannot determine path to write default config.")
			loadErrors = append(loadErrors, errors.New("cannot determine default config path"))
		}
		cfg = getDefaultConfig()
	}

	if err := cfg.Validate(logger); err != nil {
		logger.Warn("Configuration had invalid values, defaults applied for them", "error", err)
		loadErrors = append(loadErrors, fmt.Errorf("post-load config validation failed: %w", err))
	}

	if len(loadErrors) > 0 {
		return cfg, fmt.Errorf("%w: %w", ErrConfig, errors.Join(loadErrors...))
	}
	return cfg, nil
}

// =============================================================================
// Caching Declaration Finder
// =============================================================================

// CachingFinder wraps a DeclarationFinder with a ristretto memory cache, a
// bbolt disk cache and singleflight deduplication of identical lookups.
// Results are shared between callers and must be treated as read-only.
type CachingFinder struct {
	next        DeclarationFinder
	db          *bbolt.DB        // Persistent disk cache (bbolt), nil when disabled
	memoryCache *ristretto.Cache // In-memory cache (ristretto)
	group       singleflight.Group
	mu          sync.RWMutex // Protects db/memoryCache handles AND config
	logger      *stdslog.Logger
	config      Config
}

var _ DeclarationFinder = (*CachingFinder)(nil)

type sharedLookup struct {
	result *DeclarationResult
	source string
}

// NewCachingFinder opens the caches under the user cache directory.
func NewCachingFinder(next DeclarationFinder, cfg Config, logger *stdslog.Logger) *CachingFinder {
	if logger == nil {
		logger = stdslog.Default()
	}
	dbPath := ""
	if cfg.DiskCacheEnabled {
		userCacheDir, err := os.UserCacheDir()
		if err == nil {
			dbPath = filepath.Join(userCacheDir, configDirName, "bboltdb", fmt.Sprintf("v%d", cacheSchemaVersion), "declaration_cache.db")
		} else {
			logger.Warn("Could not determine user cache directory, disk caching disabled.", "error", err)
		}
	}
	return newCachingFinder(next, cfg, dbPath, logger)
}

// newCachingFinder is NewCachingFinder with an explicit database path; an
// empty dbPath disables the disk cache.
func newCachingFinder(next DeclarationFinder, cfg Config, dbPath string, logger *stdslog.Logger) *CachingFinder {
	if logger == nil {
		logger = stdslog.Default()
	}
	finderLogger := logger.With("component", "CachingFinder")

	var db *bbolt.DB
	if dbPath != "" {
		db = openDiskCache(dbPath, finderLogger)
	}

	memCache, cacheErr := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e6,
		MaxCost:     64 << 20, // 64MB
		BufferItems: 64,
		Metrics:     true,
	})
	if cacheErr != nil {
		finderLogger.Warn("Failed to create ristretto memory cache, in-memory caching disabled.", "error", cacheErr)
		memCache = nil
	} else {
		finderLogger.Info("Initialized ristretto in-memory cache", "max_cost", "64MB")
	}

	return &CachingFinder{
		next:        next,
		db:          db,
		memoryCache: memCache,
		logger:      finderLogger,
		config:      cfg,
	}
}

func openDiskCache(dbPath string, logger *stdslog.Logger) *bbolt.DB {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		logger.Warn("Could not create bbolt cache directory, disk caching disabled.", "path", filepath.Dir(dbPath), "error", err)
		return nil
	}
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		logger.Warn("Failed to open bbolt cache file, disk caching disabled.", "path", dbPath, "error", err)
		return nil
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(cacheBucketName); err != nil {
			return fmt.Errorf("failed to create cache bucket %s: %w", string(cacheBucketName), err)
		}
		return nil
	})
	if err != nil {
		logger.Warn("Failed to ensure bbolt bucket exists, disk caching disabled.", "error", err)
		db.Close()
		return nil
	}
	logger.Info("Using bbolt disk cache", "path", dbPath, "schema_version", cacheSchemaVersion)
	return db
}

// UpdateConfig updates the finder's config reference.
func (c *CachingFinder) UpdateConfig(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config = cfg
	c.logger.Info("Caching finder configuration updated", "new_ttl_seconds", cfg.MemoryCacheTTLSeconds)
}

func (c *CachingFinder) getConfig() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

// Close releases the disk and memory caches.
func (c *CachingFinder) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var closeErrors []error

	if c.db != nil {
		c.logger.Info("Closing bbolt cache database.")
		if err := c.db.Close(); err != nil {
			c.logger.Error("Error closing bbolt database", "error", err)
			closeErrors = append(closeErrors, fmt.Errorf("bbolt close failed: %w", err))
		}
		c.db = nil
	}
	if c.memoryCache != nil {
		c.logger.Info("Closing ristretto memory cache.")
		c.memoryCache.Close()
		c.memoryCache = nil
	}
	return errors.Join(closeErrors...)
}

// FindDeclaration implements DeclarationFinder.
func (c *CachingFinder) FindDeclaration(ctx context.Context, req DeclarationRequest) (*DeclarationResult, error) {
	cfg := c.getConfig()
	logger := c.logger.With("op", "FindDeclaration", "path", req.Path, "pos", req.Position.String())
	key := declarationCacheKey(req, packageDirFingerprint(req.Path, logger))

	start := time.Now()
	source := "memory"
	result, _, err := withMemoryCache(c, key, 0, cfg.MemoryCacheTTL, func() (*DeclarationResult, error) {
		res, src, err := c.findShared(ctx, key, req, cfg.LookupTimeout, logger)
		source = src
		return res, err
	}, logger)
	if err != nil {
		return nil, err
	}
	recordLookup(req.DocsTool, source, time.Since(start))
	return result, nil
}

// findShared collapses concurrent identical lookups into one. The shared
// lookup keeps the first caller's values but not its cancellation, bounded by
// timeout instead; every caller stops waiting when its own context ends.
func (c *CachingFinder) findShared(ctx context.Context, key string, req DeclarationRequest, timeout time.Duration, logger *stdslog.Logger) (*DeclarationResult, string, error) {
	if timeout <= 0 {
		timeout = time.Duration(defaultLookupTimeoutMillis) * time.Millisecond
	}
	ch := c.group.DoChan(key, func() (any, error) {
		if res, ok := c.readDisk(key, logger); ok {
			return sharedLookup{result: res, source: "disk"}, nil
		}
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		res, err := c.next.FindDeclaration(lookupCtx, req)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, ErrNoDeclaration
		}
		c.writeDisk(key, res, logger)
		return sharedLookup{result: res, source: "loader"}, nil
	})

	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, "", r.Err
		}
		lookup := r.Val.(sharedLookup)
		source := lookup.source
		if r.Shared {
			source = "shared"
		}
		return lookup.result, source, nil
	}
}

func (c *CachingFinder) readDisk(key string, logger *stdslog.Logger) (*DeclarationResult, bool) {
	c.mu.RLock()
	db := c.db
	c.mu.RUnlock()
	if db == nil {
		return nil, false
	}

	var raw []byte
	err := db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(cacheBucketName)
		if b == nil {
			return fmt.Errorf("%w: bucket %s missing", ErrCacheRead, cacheBucketName)
		}
		if v := b.Get([]byte(key)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		logger.Warn("Disk cache read failed", "error", err)
		recordCacheProbe("disk", "error")
		return nil, false
	}
	if raw == nil {
		recordCacheProbe("disk", "miss")
		return nil, false
	}

	var entry CachedDeclarationEntry
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&entry); err != nil || entry.SchemaVersion != cacheSchemaVersion {
		logger.Warn("Disk cache entry unusable, deleting", "decode_error", err, "schema_version", entry.SchemaVersion)
		recordCacheProbe("disk", "error")
		_ = deleteCacheEntryByKey(db, []byte(key), logger)
		return nil, false
	}
	recordCacheProbe("disk", "hit")
	return &entry.Result, true
}

func (c *CachingFinder) writeDisk(key string, res *DeclarationResult, logger *stdslog.Logger) {
	c.mu.RLock()
	db := c.db
	c.mu.RUnlock()
	if db == nil || res == nil {
		return
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(CachedDeclarationEntry{SchemaVersion: cacheSchemaVersion, Result: *res}); err != nil {
		logger.Warn("Disk cache encode failed", "error", fmt.Errorf("%w: %w", ErrCacheEncode, err))
		return
	}
	err := db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(cacheBucketName)
		if b == nil {
			return fmt.Errorf("%w: bucket %s missing", ErrCacheWrite, cacheBucketName)
		}
		return b.Put([]byte(key), buf.Bytes())
	})
	if err != nil {
		logger.Warn("Disk cache write failed", "error", err)
	}
}

// GetMemoryCache returns the memory cache entry for key.
func (c *CachingFinder) GetMemoryCache(key string) (any, bool) {
	c.mu.RLock()
	cache := c.memoryCache
	c.mu.RUnlock()
	if cache == nil {
		return nil, false
	}
	return cache.Get(key)
}

// SetMemoryCache stores value in the memory cache.
func (c *CachingFinder) SetMemoryCache(key string, value any, cost int64, ttl time.Duration) bool {
	c.mu.RLock()
	cache := c.memoryCache
	c.mu.RUnlock()
	if cache == nil {
		return false
	}
	return cache.SetWithTTL(key, value, cost, ttl)
}

// MemoryCacheEnabled returns true if the Ristretto cache is initialized and available.
func (c *CachingFinder) MemoryCacheEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.memoryCache != nil
}

// GetMemoryCacheMetrics returns the performance metrics collected by Ristretto.
func (c *CachingFinder) GetMemoryCacheMetrics() *ristretto.Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.memoryCache != nil {
		return c.memoryCache.Metrics
	}
	return nil
}

// InvalidateDocument drops cached declarations for path. Ristretto cannot
// delete by prefix, so the whole memory cache is cleared.
func (c *CachingFinder) InvalidateDocument(path string) error {
	logger := c.logger.With("path", path, "op", "InvalidateDocument")
	c.mu.RLock()
	db, memCache := c.db, c.memoryCache
	c.mu.RUnlock()

	if memCache != nil {
		logger.Debug("Clearing ristretto memory cache")
		memCache.Clear()
	}
	if db == nil {
		return nil
	}
	removed, err := deleteCacheEntriesWithPrefix(db, []byte(cacheKeyPrefix(path)), logger)
	logger.Debug("Disk cache entries removed", "count", removed)
	return err
}

// =============================================================================
// SignatureHelper Service
// =============================================================================

// SignatureHelper answers signature help requests.
type SignatureHelper struct {
	finder   DeclarationFinder
	caching  *CachingFinder // Set when the helper owns its finder.
	splitter ParameterSplitter
	config   Config
	configMu sync.RWMutex // Protects config and splitter.
	logger   *stdslog.Logger
}

// NewSignatureHelper loads the user configuration and builds a helper backed
// by go/packages with caching. A returned error wrapping ErrConfig is a
// warning; the helper is usable.
func NewSignatureHelper(logger *stdslog.Logger) (*SignatureHelper, error) {
	if logger == nil {
		logger = stdslog.Default()
	}
	cfg, configErr := LoadConfig(logger.With("service", "SignatureHelper"))
	if configErr != nil && !errors.Is(configErr, ErrConfig) {
		return nil, configErr
	}
	h, err := NewSignatureHelperWithConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	return h, configErr
}

// NewSignatureHelperWithConfig creates a helper with a specific config.
func NewSignatureHelperWithConfig(config Config, logger *stdslog.Logger) (*SignatureHelper, error) {
	if logger == nil {
		logger = stdslog.Default()
	}
	if err := config.Validate(logger); err != nil {
		return nil, fmt.Errorf("provided config validation failed: %w", err)
	}
	caching := NewCachingFinder(NewPackagesFinder(logger), config, logger)
	h := newSignatureHelper(config, caching, logger)
	h.caching = caching
	return h, nil
}

// NewSignatureHelperWithFinder creates a helper around a caller-supplied finder.
func NewSignatureHelperWithFinder(config Config, finder DeclarationFinder, logger *stdslog.Logger) (*SignatureHelper, error) {
	if finder == nil {
		return nil, errors.New("declaration finder is nil")
	}
	if logger == nil {
		logger = stdslog.Default()
	}
	if err := config.Validate(logger); err != nil {
		return nil, fmt.Errorf("provided config validation failed: %w", err)
	}
	return newSignatureHelper(config, finder, logger), nil
}

func newSignatureHelper(config Config, finder DeclarationFinder, logger *stdslog.Logger) *SignatureHelper {
	serviceLogger := logger.With("service", "SignatureHelper")
	return &SignatureHelper{
		finder:   finder,
		splitter: NewParameterSplitter(config.UseTreeSitter, serviceLogger),
		config:   config,
		logger:   serviceLogger,
	}
}

// Close cleans up resources used by the helper.
func (h *SignatureHelper) Close() error {
	h.logger.Info("Closing SignatureHelper service")
	if h.caching != nil {
		return h.caching.Close()
	}
	return nil
}

// UpdateConfig atomically updates the helper's configuration.
func (h *SignatureHelper) UpdateConfig(newConfig Config) error {
	if err := newConfig.Validate(h.logger); err != nil {
		h.logger.Error("Invalid configuration provided for update", "error", err)
		return fmt.Errorf("invalid configuration update: %w", err)
	}

	h.configMu.Lock()
	h.config = newConfig
	h.splitter = NewParameterSplitter(newConfig.UseTreeSitter, h.logger)
	h.configMu.Unlock()

	if h.caching != nil {
		h.caching.UpdateConfig(newConfig)
	}

	h.logger.Info("SignatureHelper configuration updated",
		stdslog.Group("new_config",
			stdslog.String("docs_tool", string(newConfig.DocsTool)),
			stdslog.String("log_level", newConfig.LogLevel),
			stdslog.Int("memory_cache_ttl_seconds", newConfig.MemoryCacheTTLSeconds),
			stdslog.Bool("disk_cache_enabled", newConfig.DiskCacheEnabled),
			stdslog.Int("lookup_timeout_ms", newConfig.LookupTimeoutMillis),
			stdslog.Bool("use_tree_sitter", newConfig.UseTreeSitter),
		),
	)
	return nil
}

// GetCurrentConfig returns a copy of the current configuration.
func (h *SignatureHelper) GetCurrentConfig() Config {
	h.configMu.RLock()
	defer h.configMu.RUnlock()
	return h.config
}

func (h *SignatureHelper) currentSplitter() ParameterSplitter {
	h.configMu.RLock()
	defer h.configMu.RUnlock()
	return h.splitter
}

// Finder returns the declaration finder used for lookups.
func (h *SignatureHelper) Finder() DeclarationFinder { return h.finder }

// CachingFinder returns the owned caching finder, or nil.
func (h *SignatureHelper) CachingFinder() *CachingFinder { return h.caching }

// InvalidateDocument drops cached lookups for path.
func (h *SignatureHelper) InvalidateDocument(path string) error {
	if h.caching == nil {
		return nil
	}
	return h.caching.InvalidateDocument(path)
}

// SignatureHelp returns signature help for the call enclosing cursor in the
// document at path with the given content, or nil when none applies. Failures
// of any stage are logged and yield nil.
func (h *SignatureHelper) SignatureHelp(ctx context.Context, path string, content []byte, cursor Position) *SignatureResult {
	result, err := h.Resolve(ctx, path, content, cursor)
	recordSignatureHelp(err)
	if err != nil {
		h.logger.Debug("No signature help", "path", path, "cursor", cursor.String(), "reason", err)
		return nil
	}
	return result
}

// Resolve is SignatureHelp with the reason for a missing result.
func (h *SignatureHelper) Resolve(ctx context.Context, path string, content []byte, cursor Position) (*SignatureResult, error) {
	doc := NewTextDocument(string(content))

	call, ok := LocateCallSite(doc, cursor)
	if !ok {
		return nil, ErrNoCallSite
	}
	tokenPos, ok := PrecedingToken(doc, call.OpenParen)
	if !ok {
		return nil, ErrNoPrecedingToken
	}

	cfg := h.GetCurrentConfig()
	lookupCtx, cancel := context.WithTimeout(ctx, cfg.LookupTimeout)
	defer cancel()

	decl, err := h.finder.FindDeclaration(lookupCtx, DeclarationRequest{
		Path:          path,
		Content:       content,
		Position:      tokenPos,
		DocsTool:      cfg.DocsTool.ForSignatureHelp(),
		WantSignature: true,
	})
	switch {
	case err == nil && decl == nil:
		return nil, ErrNoDeclaration
	case err == nil:
	case errors.Is(err, ErrNoDeclaration), errors.Is(err, ErrDeclarationLookup), isContextErr(err):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: %w", ErrDeclarationLookup, err)
	}

	// The cursor is in the function's own header, not at a call.
	if decl.Line == tokenPos.Line {
		return nil, ErrSelfDeclaration
	}

	text := joinDeclarationLines(decl.DeclarationLines)
	if text == "" {
		return nil, ErrEmptyDeclaration
	}
	format, ok := FormatForTool(decl.ToolUsed)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDeclarationFormat, decl.ToolUsed)
	}
	sig, err := ParseSignature(RawDeclaration{
		Text:          text,
		Format:        format,
		FunctionName:  decl.Name,
		Documentation: decl.Doc,
	}, h.currentSplitter())
	if err != nil {
		return nil, err
	}

	return &SignatureResult{
		Signatures:      []ParsedSignature{*sig},
		ActiveSignature: 0,
		ActiveParameter: activeParameter(len(call.Commas), len(sig.Parameters)),
	}, nil
}

// activeParameter is min(commas, params-1) floored at zero, so a call with
// no declared parameters still yields a valid index.
func activeParameter(commas, params int) int {
	return max(0, min(commas, params-1))
}

func joinDeclarationLines(lines []string) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, " ")
}
