// deepsignature/deepsignature_types.go
// Contains core type definitions used throughout the deepsignature package.
package deepsignature

import (
	"errors"
	"fmt"
	stdslog "log/slog"
	"net"
	"time"
)

// =============================================================================
// Configuration Types & Constants
// =============================================================================

const (
	defaultDocsTool            = DocsToolGodoc
	defaultLogLevel            = "info"              // Default log level.
	defaultMemoryCacheTTLSecs  = 300                 // Default TTL for memory cache items (5 minutes).
	defaultLookupTimeoutMillis = 5000                // Default budget for one declaration lookup.
	defaultDebugAddr           = "localhost:6061"    // Default pprof/expvar/metrics listen address.
	defaultConfigFileName      = "config.json"       // Default config file name.
	defaultYAMLConfigFileName  = "config.yaml"       // Alternate config file name, preferred when present.
	configDirName              = "deepsignature"     // Subdirectory name for config/data.
	cacheSchemaVersion         = 1                   // Used to invalidate cache if internal formats change.
	maxCallSiteScanLines       = 30                  // Preceding lines scanned besides the cursor line.
	serverDisplayName          = "DeepSignature LSP" // Reported in initialize.
	settingsSectionName        = "deepsignature"     // Key of our section in workspace settings.
)

// DocsTool names the documentation backend whose output format a declaration follows.
type DocsTool string

const (
	// DocsToolGodef produces "<name> func(<params>) <ret>".
	DocsToolGodef DocsTool = "godef"
	// DocsToolGodoc produces "func <name>(<params>) <ret>".
	DocsToolGodoc DocsTool = "godoc"
	// DocsToolGogetdoc produces "func <name>(<params>) <ret>".
	DocsToolGogetdoc DocsTool = "gogetdoc"
	// DocsToolGuru cannot serve signature help and is downgraded to godoc.
	DocsToolGuru DocsTool = "guru"
)

// Known reports whether t is one of the recognised docs tools.
func (t DocsTool) Known() bool {
	switch t {
	case DocsToolGodef, DocsToolGodoc, DocsToolGogetdoc, DocsToolGuru:
		return true
	}
	return false
}

// ForSignatureHelp applies the guru -> godoc downgrade used for signature lookups.
func (t DocsTool) ForSignatureHelp() DocsTool {
	if t == DocsToolGuru {
		return DocsToolGodoc
	}
	return t
}

// Config holds the active configuration for the signature help service.
type Config struct {
	DocsTool              DocsTool      `json:"docs_tool" yaml:"docs_tool"`
	LogLevel              string        `json:"log_level" yaml:"log_level"`                               // Log level (debug, info, warn, error).
	MemoryCacheTTLSeconds int           `json:"memory_cache_ttl_seconds" yaml:"memory_cache_ttl_seconds"` // TTL for memory cache items.
	DiskCacheEnabled      bool          `json:"disk_cache_enabled" yaml:"disk_cache_enabled"`             // Persist declarations in bbolt.
	LookupTimeoutMillis   int           `json:"lookup_timeout_ms" yaml:"lookup_timeout_ms"`               // Per-lookup deadline.
	UseTreeSitter         bool          `json:"use_tree_sitter" yaml:"use_tree_sitter"`                   // Split parameters with tree-sitter.
	DebugAddr             string        `json:"debug_addr" yaml:"debug_addr"`                             // Debug HTTP server address, empty disables it.
	MemoryCacheTTL        time.Duration `json:"-" yaml:"-"`                                               // Derived duration, not from file.
	LookupTimeout         time.Duration `json:"-" yaml:"-"`                                               // Derived duration, not from file.
}

// FileConfig represents the structure of the config file for unmarshalling.
// Uses pointers to distinguish between unset fields and zero-value fields.
type FileConfig struct {
	DocsTool              *DocsTool `json:"docs_tool" yaml:"docs_tool"`
	LogLevel              *string   `json:"log_level" yaml:"log_level"`
	MemoryCacheTTLSeconds *int      `json:"memory_cache_ttl_seconds" yaml:"memory_cache_ttl_seconds"`
	DiskCacheEnabled      *bool     `json:"disk_cache_enabled" yaml:"disk_cache_enabled"`
	LookupTimeoutMillis   *int      `json:"lookup_timeout_ms" yaml:"lookup_timeout_ms"`
	UseTreeSitter         *bool     `json:"use_tree_sitter" yaml:"use_tree_sitter"`
	DebugAddr             *string   `json:"debug_addr" yaml:"debug_addr"`
}

// mergeInto copies every field set in fc onto cfg and returns how many were set.
func (fc FileConfig) mergeInto(cfg *Config) int {
	merged := 0
	if fc.DocsTool != nil {
		cfg.DocsTool = *fc.DocsTool
		merged++
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
		merged++
	}
	if fc.MemoryCacheTTLSeconds != nil {
		cfg.MemoryCacheTTLSeconds = *fc.MemoryCacheTTLSeconds
		merged++
	}
	if fc.DiskCacheEnabled != nil {
		cfg.DiskCacheEnabled = *fc.DiskCacheEnabled
		merged++
	}
	if fc.LookupTimeoutMillis != nil {
		cfg.LookupTimeoutMillis = *fc.LookupTimeoutMillis
		merged++
	}
	if fc.UseTreeSitter != nil {
		cfg.UseTreeSitter = *fc.UseTreeSitter
		merged++
	}
	if fc.DebugAddr != nil {
		cfg.DebugAddr = *fc.DebugAddr
		merged++
	}
	return merged
}

// getDefaultConfig returns a new instance of the default configuration.
func getDefaultConfig() Config {
	return Config{
		DocsTool:              defaultDocsTool,
		LogLevel:              defaultLogLevel,
		MemoryCacheTTLSeconds: defaultMemoryCacheTTLSecs,
		DiskCacheEnabled:      true,
		LookupTimeoutMillis:   defaultLookupTimeoutMillis,
		UseTreeSitter:         true,
		DebugAddr:             defaultDebugAddr,
		MemoryCacheTTL:        time.Duration(defaultMemoryCacheTTLSecs) * time.Second,
		LookupTimeout:         time.Duration(defaultLookupTimeoutMillis) * time.Millisecond,
	}
}

// Validate checks if configuration values are valid, applying defaults for some fields.
func (c *Config) Validate(logger *stdslog.Logger) error {
	var validationErrors []error
	if logger == nil {
		logger = stdslog.Default()
	}

	if c.DocsTool == "" {
		logger.Warn("Config validation: docs_tool is empty, applying default.", "default", defaultDocsTool)
		c.DocsTool = defaultDocsTool
	} else if !c.DocsTool.Known() {
		logger.Warn("Config validation: unknown docs_tool, applying default.", "configured_value", c.DocsTool, "default", defaultDocsTool)
		validationErrors = append(validationErrors, fmt.Errorf("unknown docs_tool '%s'", c.DocsTool))
		c.DocsTool = defaultDocsTool
	}
	if c.MemoryCacheTTLSeconds <= 0 {
		logger.Warn("Config validation: memory_cache_ttl_seconds is not positive, applying default.", "configured_value", c.MemoryCacheTTLSeconds, "default", defaultMemoryCacheTTLSecs)
		c.MemoryCacheTTLSeconds = defaultMemoryCacheTTLSecs
	}
	if c.LookupTimeoutMillis <= 0 {
		logger.Warn("Config validation: lookup_timeout_ms is not positive, applying default.", "configured_value", c.LookupTimeoutMillis, "default", defaultLookupTimeoutMillis)
		c.LookupTimeoutMillis = defaultLookupTimeoutMillis
	}
	c.MemoryCacheTTL = time.Duration(c.MemoryCacheTTLSeconds) * time.Second
	c.LookupTimeout = time.Duration(c.LookupTimeoutMillis) * time.Millisecond

	if c.DebugAddr != "" {
		if _, _, err := net.SplitHostPort(c.DebugAddr); err != nil {
			logger.Warn("Config validation: invalid debug_addr, applying default.", "configured_value", c.DebugAddr, "default", defaultDebugAddr, "error", err)
			validationErrors = append(validationErrors, fmt.Errorf("invalid debug_addr '%s': %w", c.DebugAddr, err))
			c.DebugAddr = defaultDebugAddr
		}
	}

	if c.LogLevel == "" {
		logger.Warn("Config validation: log_level is empty, applying default.", "default", defaultLogLevel)
		c.LogLevel = defaultLogLevel
	} else if _, err := ParseLogLevel(c.LogLevel); err != nil {
		logger.Warn("Config validation: Invalid log_level found, applying default.", "configured_value", c.LogLevel, "default", defaultLogLevel, "error", err)
		validationErrors = append(validationErrors, fmt.Errorf("invalid log_level '%s': %w", c.LogLevel, err))
		c.LogLevel = defaultLogLevel
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(validationErrors...))
	}
	return nil
}

// =============================================================================
// Document Positions
// =============================================================================

// Position is a zero-based line and a zero-based codepoint offset within that line.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Compare orders positions by line, then character.
func (p Position) Compare(o Position) int {
	switch {
	case p.Line < o.Line:
		return -1
	case p.Line > o.Line:
		return 1
	case p.Character < o.Character:
		return -1
	case p.Character > o.Character:
		return 1
	}
	return 0
}

// Less reports whether p sorts before o.
func (p Position) Less(o Position) bool { return p.Compare(o) < 0 }

func (p Position) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Character) }

// Range is a half-open span [Start, End) within one document.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Empty reports whether the range covers no characters.
func (r Range) Empty() bool { return r.Start.Compare(r.End) >= 0 }

// =============================================================================
// Call Site & Signature Types
// =============================================================================

// CallSite is one level of enclosing call syntax around a cursor.
type CallSite struct {
	OpenParen Position   `json:"openParen"`
	Commas    []Position `json:"commas"` // Top-level separators only, ascending.
}

// RawDeclaration is declaration text as produced by a docs tool.
type RawDeclaration struct {
	Text          string
	Format        DeclarationFormat
	FunctionName  string
	Documentation string
}

// ParameterFragment is the text of one parameter from a signature's parameter list.
type ParameterFragment struct {
	Label         string `json:"label"`
	Documentation string `json:"documentation,omitempty"`
}

// ParsedSignature is a declaration reduced to display text and parameters.
type ParsedSignature struct {
	Label         string              `json:"label"`
	Parameters    []ParameterFragment `json:"parameters"`
	ReturnType    string              `json:"returnType,omitempty"`
	Documentation string              `json:"documentation,omitempty"`
}

// SignatureResult is the answer to one signature help request.
type SignatureResult struct {
	Signatures      []ParsedSignature `json:"signatures"`
	ActiveSignature int               `json:"activeSignature"`
	ActiveParameter int               `json:"activeParameter"`
}

// SplitResult holds the pieces of a "(<params>) <ret>" signature substring.
type SplitResult struct {
	Params     []string
	ReturnType string
}

// =============================================================================
// Declaration Lookup Types
// =============================================================================

// DeclarationRequest asks a DeclarationFinder about the identifier at Position.
type DeclarationRequest struct {
	Path          string   // Absolute path of the document.
	Content       []byte   // Current buffer content; may differ from disk.
	Position      Position // Zero-based line, codepoint column.
	DocsTool      DocsTool // Selects the declaration text format.
	WantSignature bool     // Render callable objects as signatures.
}

// DeclarationResult is what a DeclarationFinder knows about one declaration.
type DeclarationResult struct {
	File             string   `json:"file"`
	Line             int      `json:"line"`   // Zero-based line of the declaring identifier.
	Column           int      `json:"column"` // Zero-based codepoint column.
	DeclarationLines []string `json:"declarationLines"`
	ToolUsed         DocsTool `json:"toolUsed"`
	Name             string   `json:"name"`
	Doc              string   `json:"doc"`
}

// CachedDeclarationEntry is the gob payload stored in the disk cache.
type CachedDeclarationEntry struct {
	SchemaVersion int
	Result        DeclarationResult
}
