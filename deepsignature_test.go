// deepsignature/deepsignature_test.go
package deepsignature

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Helpers
// ============================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeFinder is a scripted DeclarationFinder that records its requests.
type fakeFinder struct {
	mu       sync.Mutex
	calls    int
	requests []DeclarationRequest
	result   *DeclarationResult
	err      error
	lookup   func(ctx context.Context, req DeclarationRequest) (*DeclarationResult, error)
}

func (f *fakeFinder) FindDeclaration(ctx context.Context, req DeclarationRequest) (*DeclarationResult, error) {
	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, req)
	lookup, result, err := f.lookup, f.result, f.err
	f.mu.Unlock()
	if lookup != nil {
		return lookup(ctx, req)
	}
	if result == nil {
		return nil, err
	}
	copied := *result
	return &copied, err
}

func (f *fakeFinder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFinder) lastRequest() DeclarationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return DeclarationRequest{}
	}
	return f.requests[len(f.requests)-1]
}

func newTestHelper(t *testing.T, cfg Config, finder DeclarationFinder) *SignatureHelper {
	t.Helper()
	h, err := NewSignatureHelperWithFinder(cfg, finder, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

// callerSource places callLine at line 5, below Add's declaration on line 2.
func callerSource(callLine string) string {
	return "package main\n\nfunc Add(a int, b int) int { return a + b }\n\nfunc main() {\n" + callLine + "\n}\n"
}

func addDeclaration() *DeclarationResult {
	return &DeclarationResult{
		File:             "/src/main.go",
		Line:             2,
		Column:           5,
		DeclarationLines: []string{"func Add(a int, b int) int"},
		ToolUsed:         DocsToolGodoc,
		Name:             "Add",
		Doc:              "Add returns the sum of a and b.",
	}
}

// ============================================================================
// Signature Help Tests
// ============================================================================

// TestSignatureHelper_Resolve runs the whole pipeline against a scripted finder.
func TestSignatureHelper_Resolve(t *testing.T) {
	tests := []struct {
		name       string
		callLine   string
		decl       *DeclarationResult
		findErr    error
		wantErr    error
		wantLabel  string
		wantParams []string
		wantActive int
		wantLookup bool
	}{
		{
			name:       "Second argument",
			callLine:   "\tAdd(1, 2",
			decl:       addDeclaration(),
			wantLabel:  "Add(a int, b int) int",
			wantParams: []string{"a int", "b int"},
			wantActive: 1,
			wantLookup: true,
		},
		{
			name:       "First argument",
			callLine:   "\tAdd(",
			decl:       addDeclaration(),
			wantLabel:  "Add(a int, b int) int",
			wantParams: []string{"a int", "b int"},
			wantActive: 0,
			wantLookup: true,
		},
		{
			name:       "Surplus commas clamp to last parameter",
			callLine:   "\tAdd(1, 2, 3",
			decl:       addDeclaration(),
			wantLabel:  "Add(a int, b int) int",
			wantParams: []string{"a int", "b int"},
			wantActive: 1,
			wantLookup: true,
		},
		{
			name:     "No parameters clamps to zero",
			callLine: "\tNow(x",
			decl: &DeclarationResult{
				Line: 2, DeclarationLines: []string{"func Now() time.Time"}, ToolUsed: DocsToolGodoc, Name: "Now",
			},
			wantLabel:  "Now() time.Time",
			wantParams: []string{},
			wantActive: 0,
			wantLookup: true,
		},
		{
			name:     "Grouped parameters two commas",
			callLine: "\tThree(1, 2, ",
			decl: &DeclarationResult{
				Line: 2, DeclarationLines: []string{"func Three(a, b, c int)"}, ToolUsed: DocsToolGogetdoc, Name: "Three",
			},
			wantLabel:  "Three(a, b, c int)",
			wantParams: []string{"a int", "b int", "c int"},
			wantActive: 2,
			wantLookup: true,
		},
		{
			name:     "Name func layout",
			callLine: "\tAdd(1, ",
			decl: &DeclarationResult{
				Line: 2, DeclarationLines: []string{"Add func(a int, b int) int"}, ToolUsed: DocsToolGodef, Name: "Add",
			},
			wantLabel:  "Add(a int, b int) int",
			wantParams: []string{"a int", "b int"},
			wantActive: 1,
			wantLookup: true,
		},
		{
			name:     "Multi-line declaration joined",
			callLine: `	strings.Join(parts, "`,
			decl: &DeclarationResult{
				Line:             430,
				DeclarationLines: []string{"func Join(", "\telems []string,", "", "\tsep string,", ") string"},
				ToolUsed:         DocsToolGodoc,
				Name:             "Join",
			},
			wantLabel:  "Join( elems []string, sep string, ) string",
			wantParams: []string{"elems []string", "sep string"},
			wantActive: 1,
			wantLookup: true,
		},
		{
			name:       "Declaration on the call line",
			callLine:   "\tAdd(1, 2",
			decl:       &DeclarationResult{Line: 5, DeclarationLines: []string{"func Add(a int, b int) int"}, ToolUsed: DocsToolGodoc, Name: "Add"},
			wantErr:    ErrSelfDeclaration,
			wantLookup: true,
		},
		{
			name:       "Blank declaration text",
			callLine:   "\tAdd(1, 2",
			decl:       &DeclarationResult{Line: 2, DeclarationLines: []string{"", "   "}, ToolUsed: DocsToolGodoc, Name: "Add"},
			wantErr:    ErrEmptyDeclaration,
			wantLookup: true,
		},
		{
			name:       "Missing declaration text",
			callLine:   "\tAdd(1, 2",
			decl:       &DeclarationResult{Line: 2, ToolUsed: DocsToolGodoc, Name: "Add"},
			wantErr:    ErrEmptyDeclaration,
			wantLookup: true,
		},
		{
			name:       "Unsupported tool output",
			callLine:   "\tAdd(1, 2",
			decl:       &DeclarationResult{Line: 2, DeclarationLines: []string{"func Add(a int, b int) int"}, ToolUsed: DocsToolGuru, Name: "Add"},
			wantErr:    ErrUnknownDeclarationFormat,
			wantLookup: true,
		},
		{
			name:       "Malformed declaration",
			callLine:   "\tAdd(1, 2",
			decl:       &DeclarationResult{Line: 2, DeclarationLines: []string{"Add"}, ToolUsed: DocsToolGodef, Name: "Add"},
			wantErr:    ErrMalformedDeclaration,
			wantLookup: true,
		},
		{
			name:       "Lookup failure",
			callLine:   "\tAdd(1, 2",
			findErr:    errors.New("backend exploded"),
			wantErr:    ErrDeclarationLookup,
			wantLookup: true,
		},
		{
			name:       "Lookup found nothing",
			callLine:   "\tAdd(1, 2",
			wantErr:    ErrNoDeclaration,
			wantLookup: true,
		},
		{
			name:       "Lookup cancelled",
			callLine:   "\tAdd(1, 2",
			findErr:    context.Canceled,
			wantErr:    context.Canceled,
			wantLookup: true,
		},
		{
			name:     "No enclosing call",
			callLine: "\tx := Add(1, 2)",
			decl:     addDeclaration(),
			wantErr:  ErrNoCallSite,
		},
		{
			name:     "Nothing before the paren",
			callLine: "\t(1, 2",
			decl:     addDeclaration(),
			wantErr:  ErrNoPrecedingToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finder := &fakeFinder{result: tt.decl, err: tt.findErr}
			h := newTestHelper(t, getDefaultConfig(), finder)
			cursor := Position{Line: 5, Character: utf8.RuneCountInString(tt.callLine)}

			got, err := h.Resolve(context.Background(), "/src/main.go", []byte(callerSource(tt.callLine)), cursor)

			if tt.wantLookup {
				assert.Equal(t, 1, finder.callCount(), "lookup calls")
			} else {
				assert.Zero(t, finder.callCount(), "lookup calls")
			}
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got error %v, want %v", err, tt.wantErr)
				assert.Nil(t, got)
				assert.Nil(t, h.SignatureHelp(context.Background(), "/src/main.go", []byte(callerSource(tt.callLine)), cursor))
				return
			}

			require.NoError(t, err)
			require.Len(t, got.Signatures, 1)
			assert.Zero(t, got.ActiveSignature)
			assert.Equal(t, tt.wantActive, got.ActiveParameter)
			sig := got.Signatures[0]
			assert.Equal(t, tt.wantLabel, sig.Label)
			labels := make([]string, 0, len(sig.Parameters))
			for _, p := range sig.Parameters {
				labels = append(labels, p.Label)
			}
			assert.Equal(t, tt.wantParams, labels)
			assert.Equal(t, tt.decl.Doc, sig.Documentation)
		})
	}
}

// TestSignatureHelper_LookupRequest checks what the finder is asked for.
func TestSignatureHelper_LookupRequest(t *testing.T) {
	content := []byte(callerSource("\tAdd(1, 2"))

	t.Run("Token before the open paren", func(t *testing.T) {
		finder := &fakeFinder{result: addDeclaration()}
		h := newTestHelper(t, getDefaultConfig(), finder)
		require.NotNil(t, h.SignatureHelp(context.Background(), "/src/main.go", content, Position{Line: 5, Character: 9}))

		req := finder.lastRequest()
		assert.Equal(t, "/src/main.go", req.Path)
		assert.Equal(t, content, req.Content)
		assert.Equal(t, Position{Line: 5, Character: 1}, req.Position)
		assert.Equal(t, DocsToolGodoc, req.DocsTool)
		assert.True(t, req.WantSignature)
	})

	t.Run("Guru is asked for as godoc", func(t *testing.T) {
		cfg := getDefaultConfig()
		cfg.DocsTool = DocsToolGuru
		finder := &fakeFinder{result: addDeclaration()}
		h := newTestHelper(t, cfg, finder)
		require.NotNil(t, h.SignatureHelp(context.Background(), "/src/main.go", content, Position{Line: 5, Character: 9}))

		assert.Equal(t, DocsToolGodoc, finder.lastRequest().DocsTool)
		assert.Equal(t, DocsToolGuru, h.GetCurrentConfig().DocsTool, "configured tool is unchanged")
	})

	t.Run("Godef is passed through", func(t *testing.T) {
		cfg := getDefaultConfig()
		cfg.DocsTool = DocsToolGodef
		finder := &fakeFinder{result: addDeclaration()}
		h := newTestHelper(t, cfg, finder)
		h.SignatureHelp(context.Background(), "/src/main.go", content, Position{Line: 5, Character: 9})
		assert.Equal(t, DocsToolGodef, finder.lastRequest().DocsTool)
	})
}

// TestSignatureHelper_LookupTimeout verifies the lookup deadline comes from config.
func TestSignatureHelper_LookupTimeout(t *testing.T) {
	cfg := getDefaultConfig()
	cfg.LookupTimeoutMillis = 20
	finder := &fakeFinder{lookup: func(ctx context.Context, _ DeclarationRequest) (*DeclarationResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	h := newTestHelper(t, cfg, finder)

	start := time.Now()
	got, err := h.Resolve(context.Background(), "/src/main.go", []byte(callerSource("\tAdd(1, 2")), Position{Line: 5, Character: 9})
	assert.Nil(t, got)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

// TestSignatureHelper_Concurrent runs independent requests in parallel.
func TestSignatureHelper_Concurrent(t *testing.T) {
	finder := &fakeFinder{result: addDeclaration()}
	h := newTestHelper(t, getDefaultConfig(), finder)

	lines := []string{"\tAdd(", "\tAdd(1, ", "\tAdd(1, 2, 3"}
	want := []int{0, 1, 1}
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			line := lines[i%len(lines)]
			cursor := Position{Line: 5, Character: utf8.RuneCountInString(line)}
			res := h.SignatureHelp(context.Background(), "/src/main.go", []byte(callerSource(line)), cursor)
			if assert.NotNil(t, res) {
				assert.Equal(t, want[i%len(lines)], res.ActiveParameter)
			}
		}(i)
	}
	wg.Wait()
}

func TestActiveParameter(t *testing.T) {
	tests := []struct {
		commas, params, want int
	}{
		{0, 0, 0},
		{3, 0, 0},
		{0, 1, 0},
		{1, 1, 0},
		{1, 2, 1},
		{2, 3, 2},
		{5, 3, 2},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d commas %d params", tt.commas, tt.params), func(t *testing.T) {
			assert.Equal(t, tt.want, activeParameter(tt.commas, tt.params))
		})
	}
}

func TestJoinDeclarationLines(t *testing.T) {
	assert.Equal(t, "", joinDeclarationLines(nil))
	assert.Equal(t, "", joinDeclarationLines([]string{" ", "\t"}))
	assert.Equal(t, "func F(a int) error", joinDeclarationLines([]string{"func F(a int) error"}))
	assert.Equal(t, "func F( a int, ) error", joinDeclarationLines([]string{"func F(", "\ta int,", ") error "}))
}

// TestSignatureHelper_UpdateConfig tests dynamic config updates.
func TestSignatureHelper_UpdateConfig(t *testing.T) {
	h := newTestHelper(t, getDefaultConfig(), &fakeFinder{})

	t.Run("ValidUpdate", func(t *testing.T) {
		cfg := getDefaultConfig()
		cfg.DocsTool = DocsToolGodef
		cfg.UseTreeSitter = false
		cfg.LookupTimeoutMillis = 1500
		require.NoError(t, h.UpdateConfig(cfg))

		got := h.GetCurrentConfig()
		assert.Equal(t, DocsToolGodef, got.DocsTool)
		assert.Equal(t, 1500*time.Millisecond, got.LookupTimeout)
		_, isScanner := h.currentSplitter().(scanSplitter)
		assert.True(t, isScanner, "splitter follows use_tree_sitter")
	})

	t.Run("InvalidUpdate", func(t *testing.T) {
		before := h.GetCurrentConfig()
		cfg := getDefaultConfig()
		cfg.LogLevel = "loud"
		err := h.UpdateConfig(cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfig)
		assert.Equal(t, before, h.GetCurrentConfig(), "config changed after invalid update")
	})
}

func TestNewSignatureHelperWithFinder_NilFinder(t *testing.T) {
	h, err := NewSignatureHelperWithFinder(getDefaultConfig(), nil, discardLogger())
	assert.Error(t, err)
	assert.Nil(t, h)
}

func TestOutcomeFor(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, outcomeResult},
		{ErrNoCallSite, outcomeNoCallSite},
		{ErrNoPrecedingToken, outcomeNoToken},
		{ErrSelfDeclaration, outcomeSelfDeclaration},
		{fmt.Errorf("%w: %q", ErrUnknownDeclarationFormat, "guru"), outcomeUnknownFormat},
		{fmt.Errorf("%w: boom", ErrDeclarationLookup), outcomeLookupFailed},
		{context.DeadlineExceeded, outcomeCancelled},
		{errors.New("other"), outcomeLookupFailed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, outcomeFor(tt.err), "outcomeFor(%v)", tt.err)
	}
}

// TestMetricNames checks the exported metric names dashboards rely on.
func TestMetricNames(t *testing.T) {
	recordSignatureHelp(ErrNoCallSite)
	recordLookup(DocsToolGodoc, "loader", time.Millisecond)
	recordCacheProbe("memory", "miss")

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"deepsignature_signature_help_total",
		"deepsignature_lookup_duration_seconds",
		"deepsignature_cache_requests_total",
	} {
		assert.True(t, names[want], "metric %s not registered", want)
	}
}

// ============================================================================
// Configuration Tests
// ============================================================================

// TestLoadConfig tests configuration loading and default file writing.
func TestLoadConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tempHome, ".config"))
	t.Setenv("HOME", tempHome)
	t.Setenv("USERPROFILE", tempHome)
	fakeConfigDir := filepath.Join(tempHome, ".config", configDirName)
	jsonFile := filepath.Join(fakeConfigDir, defaultConfigFileName)
	yamlFile := filepath.Join(fakeConfigDir, defaultYAMLConfigFileName)

	writeFile := func(path, data string) func(t *testing.T) {
		return func(t *testing.T) {
			require.NoError(t, os.MkdirAll(fakeConfigDir, 0o755))
			require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
		}
	}
	withDefaults := func(mod func(c *Config)) Config {
		c := getDefaultConfig()
		mod(&c)
		return c
	}

	tests := []struct {
		name        string
		setup       func(t *testing.T)
		wantConfig  Config
		wantErr     error
		wantWritten bool
		wantContent string
	}{
		{
			name:        "No config files - writes default",
			setup:       func(t *testing.T) {},
			wantConfig:  getDefaultConfig(),
			wantWritten: true,
		},
		{
			name:  "JSON config",
			setup: writeFile(jsonFile, `{"docs_tool": "godef", "lookup_timeout_ms": 250, "use_tree_sitter": false}`),
			wantConfig: withDefaults(func(c *Config) {
				c.DocsTool = DocsToolGodef
				c.LookupTimeoutMillis = 250
				c.LookupTimeout = 250 * time.Millisecond
				c.UseTreeSitter = false
			}),
			wantContent: `{"docs_tool": "godef", "lookup_timeout_ms": 250, "use_tree_sitter": false}`,
		},
		{
			name:  "YAML config",
			setup: writeFile(yamlFile, "docs_tool: gogetdoc\nmemory_cache_ttl_seconds: 60\ndisk_cache_enabled: false\n"),
			wantConfig: withDefaults(func(c *Config) {
				c.DocsTool = DocsToolGogetdoc
				c.MemoryCacheTTLSeconds = 60
				c.MemoryCacheTTL = time.Minute
				c.DiskCacheEnabled = false
			}),
		},
		{
			name: "YAML preferred over JSON",
			setup: func(t *testing.T) {
				writeFile(jsonFile, `{"docs_tool": "godef"}`)(t)
				writeFile(yamlFile, "docs_tool: gogetdoc\n")(t)
			},
			wantConfig: withDefaults(func(c *Config) { c.DocsTool = DocsToolGogetdoc }),
		},
		{
			name:        "Invalid JSON - returns defaults, keeps file",
			setup:       writeFile(jsonFile, `{"docs_tool": "bad json",`),
			wantConfig:  getDefaultConfig(),
			wantErr:     ErrConfig,
			wantContent: `{"docs_tool": "bad json",`,
		},
		{
			name:       "Invalid YAML - returns defaults",
			setup:      writeFile(yamlFile, "docs_tool: [unterminated\n"),
			wantConfig: getDefaultConfig(),
			wantErr:    ErrConfig,
		},
		{
			name:        "Empty JSON object - returns defaults, no rewrite",
			setup:       writeFile(jsonFile, "{}"),
			wantConfig:  getDefaultConfig(),
			wantContent: "{}",
		},
		{
			name:  "Unknown fields ignored",
			setup: writeFile(jsonFile, `{"unknown_field": 123, "log_level": "debug"}`),
			wantConfig: withDefaults(func(c *Config) {
				c.LogLevel = "debug"
			}),
		},
		{
			name:       "Invalid values replaced by defaults",
			setup:      writeFile(jsonFile, `{"docs_tool": "gopls", "memory_cache_ttl_seconds": -5}`),
			wantConfig: getDefaultConfig(),
			wantErr:    ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, os.RemoveAll(fakeConfigDir))
			tt.setup(t)

			gotConfig, err := LoadConfig(discardLogger())
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrConfig)
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantConfig, gotConfig)

			if tt.wantWritten {
				_, statErr := os.Stat(jsonFile)
				assert.NoError(t, statErr, "default config not written")
				reloaded := getDefaultConfig()
				loaded, loadErr := LoadAndMergeConfig(jsonFile, &reloaded, discardLogger())
				require.NoError(t, loadErr)
				assert.True(t, loaded)
				require.NoError(t, reloaded.Validate(discardLogger()))
				assert.Equal(t, getDefaultConfig(), reloaded)
			}
			if tt.wantContent != "" {
				data, readErr := os.ReadFile(jsonFile)
				require.NoError(t, readErr)
				assert.Equal(t, tt.wantContent, string(data), "existing config file was rewritten")
			}
		})
	}
}

func TestLoadAndMergeConfig_MissingAndEmpty(t *testing.T) {
	dir := t.TempDir()
	cfg := getDefaultConfig()

	loaded, err := LoadAndMergeConfig(filepath.Join(dir, "absent.json"), &cfg, discardLogger())
	assert.NoError(t, err)
	assert.False(t, loaded)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o644))
	loaded, err = LoadAndMergeConfig(empty, &cfg, discardLogger())
	assert.NoError(t, err)
	assert.False(t, loaded)
	assert.Equal(t, getDefaultConfig(), cfg)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mod     func(c *Config)
		check   func(t *testing.T, c Config)
		wantErr bool
	}{
		{"Defaults are valid", func(c *Config) {}, func(t *testing.T, c Config) {
			assert.Equal(t, getDefaultConfig(), c)
		}, false},
		{"Empty docs tool defaulted", func(c *Config) { c.DocsTool = "" }, func(t *testing.T, c Config) {
			assert.Equal(t, defaultDocsTool, c.DocsTool)
		}, false},
		{"Guru accepted", func(c *Config) { c.DocsTool = DocsToolGuru }, func(t *testing.T, c Config) {
			assert.Equal(t, DocsToolGuru, c.DocsTool)
		}, false},
		{"Unknown docs tool", func(c *Config) { c.DocsTool = "gopls" }, func(t *testing.T, c Config) {
			assert.Equal(t, defaultDocsTool, c.DocsTool)
		}, true},
		{"Non-positive TTL defaulted", func(c *Config) { c.MemoryCacheTTLSeconds = 0 }, func(t *testing.T, c Config) {
			assert.Equal(t, time.Duration(defaultMemoryCacheTTLSecs)*time.Second, c.MemoryCacheTTL)
		}, false},
		{"Durations derived", func(c *Config) {
			c.LookupTimeoutMillis = 42
			c.LookupTimeout = 0
		}, func(t *testing.T, c Config) {
			assert.Equal(t, 42*time.Millisecond, c.LookupTimeout)
		}, false},
		{"Bad debug address", func(c *Config) { c.DebugAddr = "no-port" }, func(t *testing.T, c Config) {
			assert.Equal(t, defaultDebugAddr, c.DebugAddr)
		}, true},
		{"Debug server disabled", func(c *Config) { c.DebugAddr = "" }, func(t *testing.T, c Config) {
			assert.Empty(t, c.DebugAddr)
		}, false},
		{"Bad log level", func(c *Config) { c.LogLevel = "loud" }, func(t *testing.T, c Config) {
			assert.Equal(t, defaultLogLevel, c.LogLevel)
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getDefaultConfig()
			tt.mod(&cfg)
			err := cfg.Validate(discardLogger())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
			tt.check(t, cfg)
		})
	}
}

// ============================================================================
// Utility Tests
// ============================================================================

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{" INFO ", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		assert.Equal(t, tt.want, got, "ParseLogLevel(%q)", tt.in)
		assert.Equal(t, tt.wantErr, err != nil, "ParseLogLevel(%q) error = %v", tt.in, err)
	}
}

func TestURIConversion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")

	uri, err := PathToURI(path)
	require.NoError(t, err)
	back, err := ValidateAndGetFilePath(uri)
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(path), back)

	for _, bad := range []string{"", "http://example.com/main.go", "file:main.go"} {
		_, err := ValidateAndGetFilePath(bad)
		assert.ErrorIs(t, err, ErrInvalidURI, "ValidateAndGetFilePath(%q)", bad)
	}
	_, err = PathToURI("")
	assert.Error(t, err)
}

func TestPositionConversion(t *testing.T) {
	line := "a😂é b"

	t.Run("Utf16OffsetToRunes", func(t *testing.T) {
		tests := []struct {
			name    string
			offset  int
			want    int
			wantErr error
		}{
			{"Start", 0, 0, nil},
			{"After ASCII", 1, 1, nil},
			{"Inside surrogate pair", 2, 1, nil},
			{"After surrogate pair", 3, 2, nil},
			{"After two-byte rune", 4, 3, nil},
			{"End", 6, 5, nil},
			{"Past end", 7, 5, ErrPositionOutOfRange},
			{"Negative", -1, 0, ErrInvalidPositionInput},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := Utf16OffsetToRunes(line, tt.offset)
				assert.Equal(t, tt.want, got)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.NoError(t, err)
				}
			})
		}
	})

	t.Run("RunesToUTF16Offset", func(t *testing.T) {
		assert.Equal(t, 0, RunesToUTF16Offset(line, 0))
		assert.Equal(t, 1, RunesToUTF16Offset(line, 1))
		assert.Equal(t, 3, RunesToUTF16Offset(line, 2))
		assert.Equal(t, 6, RunesToUTF16Offset(line, 5))
		assert.Equal(t, 6, RunesToUTF16Offset(line, 50))
	})

	t.Run("Byte offsets", func(t *testing.T) {
		assert.Equal(t, 5, runeOffsetToBytes(line, 2))
		assert.Equal(t, len(line), runeOffsetToBytes(line, 99))
		assert.Equal(t, 2, byteOffsetToRunes(line, 5))
		assert.Equal(t, 0, byteOffsetToRunes(line, -3))
		assert.Equal(t, 5, byteOffsetToRunes(line, 999))
	})

	t.Run("Invalid UTF-8", func(t *testing.T) {
		_, err := Utf16OffsetToRunes("a\xffb", 3)
		assert.ErrorIs(t, err, ErrInvalidUTF8)
	})
}
