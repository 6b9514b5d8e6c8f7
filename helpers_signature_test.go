// deepsignature/helpers_signature_test.go
package deepsignature

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fragments(labels ...string) []ParameterFragment {
	out := make([]ParameterFragment, 0, len(labels))
	for _, l := range labels {
		out = append(out, ParameterFragment{Label: l})
	}
	return out
}

// TestParseSignature covers both declaration layouts and their error paths.
func TestParseSignature(t *testing.T) {
	tests := []struct {
		name       string
		raw        RawDeclaration
		wantLabel  string
		wantParams []ParameterFragment
		wantReturn string
		wantErr    error
	}{
		{
			name:       "Name func layout",
			raw:        RawDeclaration{Text: "Add func(a int, b int) int", Format: FormatNameFunc, FunctionName: "Add"},
			wantLabel:  "Add(a int, b int) int",
			wantParams: fragments("a int", "b int"),
			wantReturn: "int",
		},
		{
			name:       "Func name layout",
			raw:        RawDeclaration{Text: "func Add(a int, b int) int", Format: FormatFuncName, FunctionName: "Add"},
			wantLabel:  "Add(a int, b int) int",
			wantParams: fragments("a int", "b int"),
			wantReturn: "int",
		},
		{
			name:       "Receiver dropped from label",
			raw:        RawDeclaration{Text: "func (b *Buffer) Write(p []byte) (n int, err error)", Format: FormatFuncName, FunctionName: "Write"},
			wantLabel:  "Write(p []byte) (n int, err error)",
			wantParams: fragments("p []byte"),
			wantReturn: "(n int, err error)",
		},
		{
			name:       "Generic function",
			raw:        RawDeclaration{Text: "func Map[T, U any](xs []T, f func(T) U) []U", Format: FormatFuncName, FunctionName: "Map"},
			wantLabel:  "Map[T, U any](xs []T, f func(T) U) []U",
			wantParams: fragments("xs []T", "f func(T) U"),
			wantReturn: "[]U",
		},
		{
			name:       "No parameters",
			raw:        RawDeclaration{Text: "Now func() time.Time", Format: FormatNameFunc, FunctionName: "Now"},
			wantLabel:  "Now() time.Time",
			wantParams: fragments(),
			wantReturn: "time.Time",
		},
		{
			name:       "Surrounding whitespace trimmed",
			raw:        RawDeclaration{Text: "  func Close() error \n", Format: FormatFuncName, FunctionName: "Close"},
			wantLabel:  "Close() error",
			wantParams: fragments(),
			wantReturn: "error",
		},
		{
			name:    "Blank text",
			raw:     RawDeclaration{Text: "  \t", Format: FormatFuncName, FunctionName: "Add"},
			wantErr: ErrEmptyDeclaration,
		},
		{
			name:    "No format",
			raw:     RawDeclaration{Text: "func Add(a int) int", FunctionName: "Add"},
			wantErr: ErrUnknownDeclarationFormat,
		},
		{
			name:    "Name func layout without space",
			raw:     RawDeclaration{Text: "Add", Format: FormatNameFunc, FunctionName: "Add"},
			wantErr: ErrMalformedDeclaration,
		},
		{
			name:    "Name func layout truncated",
			raw:     RawDeclaration{Text: "Add fu", Format: FormatNameFunc, FunctionName: "Add"},
			wantErr: ErrMalformedDeclaration,
		},
		{
			name:    "Func name layout shorter than keyword",
			raw:     RawDeclaration{Text: "fun", Format: FormatFuncName, FunctionName: "fun"},
			wantErr: ErrMalformedDeclaration,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSignature(tt.raw, scanSplitter{})
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got error %v, want %v", err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLabel, got.Label)
			assert.Equal(t, tt.wantParams, got.Parameters)
			assert.Equal(t, tt.wantReturn, got.ReturnType)
		})
	}
}

// TestParseSignature_Documentation checks documentation attaches to the
// signature only.
func TestParseSignature_Documentation(t *testing.T) {
	got, err := ParseSignature(RawDeclaration{
		Text:          "func Println(a ...any) (n int, err error)",
		Format:        FormatFuncName,
		FunctionName:  "Println",
		Documentation: "Println formats using the default formats.",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Println formats using the default formats.", got.Documentation)
	require.Len(t, got.Parameters, 1)
	assert.Equal(t, "a ...any", got.Parameters[0].Label)
	assert.Empty(t, got.Parameters[0].Documentation)
}

// TestFormatForTool maps docs tools to declaration layouts.
func TestFormatForTool(t *testing.T) {
	tests := []struct {
		tool   DocsTool
		want   DeclarationFormat
		wantOK bool
	}{
		{DocsToolGodef, FormatNameFunc, true},
		{DocsToolGodoc, FormatFuncName, true},
		{DocsToolGogetdoc, FormatFuncName, true},
		{DocsToolGuru, nil, false},
		{DocsTool("gopls"), nil, false},
		{DocsTool(""), nil, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.tool), func(t *testing.T) {
			got, ok := FormatForTool(tt.tool)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDocsToolForSignatureHelp(t *testing.T) {
	assert.Equal(t, DocsToolGodoc, DocsToolGuru.ForSignatureHelp())
	assert.Equal(t, DocsToolGodef, DocsToolGodef.ForSignatureHelp())
	assert.Equal(t, DocsToolGodoc, DocsToolGodoc.ForSignatureHelp())
	assert.Equal(t, DocsToolGogetdoc, DocsToolGogetdoc.ForSignatureHelp())
	assert.True(t, DocsToolGuru.Known())
	assert.False(t, DocsTool("gopls").Known())
}

// TestScanSplitter covers the bracket-depth parameter scanner.
func TestScanSplitter(t *testing.T) {
	tests := []struct {
		name      string
		signature string
		want      SplitResult
	}{
		{"Two parameters", "(a int, b int) int", SplitResult{Params: []string{"a int", "b int"}, ReturnType: "int"}},
		{"Grouped names stay separate", "(a, b int)", SplitResult{Params: []string{"a", "b int"}}},
		{"Empty list", "()", SplitResult{}},
		{"Variadic and result list", "(format string, args ...any) (n int, err error)",
			SplitResult{Params: []string{"format string", "args ...any"}, ReturnType: "(n int, err error)"}},
		{"Func typed parameter", "(f func(a, b int) error, n int)", SplitResult{Params: []string{"f func(a, b int) error", "n int"}}},
		{"Map and struct types", "(m map[string]int, s struct{ a, b int })", SplitResult{Params: []string{"m map[string]int", "s struct{ a, b int }"}}},
		{"Type parameters skipped", "[K comparable, V any](m map[K]V) []K", SplitResult{Params: []string{"m map[K]V"}, ReturnType: "[]K"}},
		{"No parameter list", "int", SplitResult{}},
		{"Unterminated list", "(a int, b", SplitResult{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scanSplitter{}.Split(tt.signature))
		})
	}
}

// TestTreeSitterSplitter covers the syntax-tree splitter and its fallback.
func TestTreeSitterSplitter(t *testing.T) {
	splitter := NewParameterSplitter(true, slog.Default())
	_, isTreeSitter := splitter.(*treeSitterSplitter)
	require.True(t, isTreeSitter)

	tests := []struct {
		name       string
		signature  string
		wantParams []string
		wantReturn string
	}{
		{"Grouped names expanded", "(a, b int, c string) error", []string{"a int", "b int", "c string"}, "error"},
		{"Variadic", "(format string, args ...any) (int, error)", []string{"format string", "args ...any"}, "(int, error)"},
		{"Unnamed parameters", "(int, string)", []string{"int", "string"}, ""},
		{"Func typed parameter", "(fn func(int) bool, n int)", []string{"fn func(int) bool", "n int"}, ""},
		{"No parameters", "() error", nil, "error"},
		{"Type parameters", "[T any](x T) T", []string{"x T"}, "T"},
		{"Grouped names with type parameters", "[K comparable, V any](a, b map[K]V) bool", []string{"a map[K]V", "b map[K]V"}, "bool"},
		{"Grouped func typed names", "(f, g func(int) int)", []string{"f func(int) int", "g func(int) int"}, ""},
		{"Syntax error uses scanner", "(a int, b)) oops(", []string{"a int", "b"}, ") oops("},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitter.Split(tt.signature)
			if len(tt.wantParams) == 0 {
				assert.Empty(t, got.Params)
			} else {
				assert.Equal(t, tt.wantParams, got.Params)
			}
			assert.Equal(t, tt.wantReturn, got.ReturnType)
		})
	}
}

func TestNewParameterSplitter_Scanner(t *testing.T) {
	_, isScanner := NewParameterSplitter(false, nil).(scanSplitter)
	assert.True(t, isScanner)
}
