// deepsignature/helpers_loader.go
// Declaration lookup backed by go/packages type information.
package deepsignature

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/ast/astutil"
	"golang.org/x/tools/go/packages"
)

// DeclarationFinder resolves the identifier at a position to its declaration.
type DeclarationFinder interface {
	FindDeclaration(ctx context.Context, req DeclarationRequest) (*DeclarationResult, error)
}

// PackagesFinder type-checks the package containing the document, with the
// editor's unsaved buffer overlaid, and renders the declaration the way the
// requested docs tool would print it.
type PackagesFinder struct {
	logger *slog.Logger
}

var _ DeclarationFinder = (*PackagesFinder)(nil)

// NewPackagesFinder creates a finder that loads packages on every call.
func NewPackagesFinder(logger *slog.Logger) *PackagesFinder {
	if logger == nil {
		logger = slog.Default()
	}
	return &PackagesFinder{logger: logger.With("component", "PackagesFinder")}
}

// FindDeclaration implements DeclarationFinder.
func (f *PackagesFinder) FindDeclaration(ctx context.Context, req DeclarationRequest) (*DeclarationResult, error) {
	logger := f.logger.With("path", req.Path, "pos", req.Position.String(), "tool", req.DocsTool)
	if !filepath.IsAbs(req.Path) {
		return nil, fmt.Errorf("%w: path %q is not absolute", ErrDeclarationLookup, req.Path)
	}

	content := req.Content
	if content == nil {
		var err error
		if content, err = os.ReadFile(req.Path); err != nil {
			return nil, fmt.Errorf("%w: reading %s: %w", ErrDeclarationLookup, req.Path, err)
		}
	}

	fset := token.NewFileSet()
	pkg, astFile, tokFile, err := loadPackageAndFile(ctx, req.Path, content, fset, logger)
	if err != nil {
		return nil, err
	}

	pos, err := tokenPosFor(tokFile, content, req.Position)
	if err != nil {
		return nil, err
	}
	ident := identAt(astFile, pos)
	if ident == nil {
		return nil, fmt.Errorf("%w: no identifier at %s", ErrNoDeclaration, req.Position)
	}
	obj := pkg.TypesInfo.ObjectOf(ident)
	if obj == nil || !obj.Pos().IsValid() {
		return nil, fmt.Errorf("%w: %s has no resolvable object", ErrNoDeclaration, ident.Name)
	}

	tool := req.DocsTool.ForSignatureHelp()
	if !tool.Known() {
		tool = defaultDocsTool
	}
	text, ok := renderDeclaration(obj, tool, req.WantSignature, types.RelativeTo(pkg.Types))
	if !ok {
		return nil, fmt.Errorf("%w: %s is not callable", ErrNoDeclaration, obj.Name())
	}

	declPos := fset.Position(obj.Pos())
	column := declPos.Column - 1
	if line, ok := fileLine(declPos.Filename, req.Path, content, declPos.Line-1); ok {
		column = byteOffsetToRunes(line, column)
	}
	logger.Debug("Declaration resolved", "name", obj.Name(), "file", declPos.Filename, "line", declPos.Line)

	return &DeclarationResult{
		File:             declPos.Filename,
		Line:             declPos.Line - 1,
		Column:           column,
		DeclarationLines: []string{text},
		ToolUsed:         tool,
		Name:             obj.Name(),
		Doc:              docFor(pkg, fset, obj),
	}, nil
}

// renderDeclaration prints obj in the layout of tool. With wantSignature set
// only objects of function type are rendered.
func renderDeclaration(obj types.Object, tool DocsTool, wantSignature bool, qf types.Qualifier) (string, bool) {
	sig, isSig := obj.Type().Underlying().(*types.Signature)
	if wantSignature && !isSig {
		return "", false
	}
	if _, isFunc := obj.(*types.Func); !isSig || (isFunc && tool != DocsToolGodef) {
		// godoc/gogetdoc print functions and methods as declared.
		return types.ObjectString(obj, qf), true
	}
	sigText := types.TypeString(sig, qf)
	if tool == DocsToolGodef {
		return obj.Name() + " " + sigText, true
	}
	return "func " + obj.Name() + strings.TrimPrefix(sigText, "func"), true
}

// tokenPosFor maps a zero-based line and codepoint column onto tokFile.
func tokenPosFor(tokFile *token.File, content []byte, p Position) (token.Pos, error) {
	if p.Line < 0 || p.Line >= tokFile.LineCount() {
		return token.NoPos, fmt.Errorf("%w: line %d not in file with %d lines", ErrPositionOutOfRange, p.Line, tokFile.LineCount())
	}
	lineText := NewTextDocument(string(content)).LineAt(p.Line)
	return tokFile.LineStart(p.Line+1) + token.Pos(runeOffsetToBytes(lineText, p.Character)), nil
}

// identAt returns the identifier enclosing pos, if any.
func identAt(file *ast.File, pos token.Pos) *ast.Ident {
	path, _ := astutil.PathEnclosingInterval(file, pos, pos)
	for _, n := range path {
		if id, ok := n.(*ast.Ident); ok {
			return id
		}
	}
	return nil
}

// docFor returns the doc comment of obj when its declaration is in pkg's syntax.
func docFor(pkg *packages.Package, fset *token.FileSet, obj types.Object) string {
	declFile := fset.File(obj.Pos())
	if declFile == nil {
		return ""
	}
	for _, file := range pkg.Syntax {
		if fset.File(file.Pos()) != declFile {
			continue
		}
		path, _ := astutil.PathEnclosingInterval(file, obj.Pos(), obj.Pos())
		for _, n := range path {
			var doc *ast.CommentGroup
			switch d := n.(type) {
			case *ast.FuncDecl:
				doc = d.Doc
			case *ast.Field:
				doc = d.Doc
			case *ast.ValueSpec:
				doc = d.Doc
			case *ast.TypeSpec:
				doc = d.Doc
			case *ast.GenDecl:
				doc = d.Doc
			}
			if doc != nil {
				return strings.TrimSpace(doc.Text())
			}
		}
	}
	return ""
}

// fileLine returns a zero-based line of filename, preferring the in-memory
// buffer when filename is the requesting document.
func fileLine(filename, bufferPath string, buffer []byte, line int) (string, bool) {
	if filename == "" || line < 0 {
		return "", false
	}
	content := buffer
	if filepath.Clean(filename) != filepath.Clean(bufferPath) {
		var err error
		if content, err = os.ReadFile(filename); err != nil {
			return "", false
		}
	}
	doc := NewTextDocument(string(content))
	if line >= doc.LineCount() {
		return "", false
	}
	return doc.LineAt(line), true
}

// loadPackageAndFile loads the package containing absFilename with content
// overlaid and returns the package plus the file's AST and token.File.
// Type errors in the package are logged, not returned: code being edited
// rarely type-checks.
func loadPackageAndFile(
	ctx context.Context,
	absFilename string,
	content []byte,
	fset *token.FileSet,
	logger *slog.Logger,
) (*packages.Package, *ast.File, *token.File, error) {
	dir := filepath.Dir(absFilename)
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("loadDir", dir)

	loadCfg := &packages.Config{
		Context: ctx,
		Dir:     dir,
		Fset:    fset,
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
			packages.NeedImports | packages.NeedTypes | packages.NeedTypesSizes |
			packages.NeedSyntax | packages.NeedTypesInfo,
		Tests:   strings.HasSuffix(absFilename, "_test.go"),
		Overlay: map[string][]byte{absFilename: content},
		Logf:    func(format string, args ...interface{}) { logger.Debug(fmt.Sprintf(format, args...)) },
	}

	logger.Debug("Calling packages.Load")
	pkgs, err := packages.Load(loadCfg, fmt.Sprintf("file=%s", absFilename))
	if err != nil {
		if isContextErr(err) {
			return nil, nil, nil, err
		}
		logger.Error("packages.Load failed critically", "error", err)
		return nil, nil, nil, fmt.Errorf("%w: packages.Load: %w", ErrDeclarationLookup, err)
	}
	if len(pkgs) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: no packages for %s", ErrDeclarationLookup, absFilename)
	}

	for _, p := range pkgs {
		if p == nil {
			continue
		}
		for _, pkgErr := range p.Errors {
			logger.Debug("Package loading error encountered", "package", p.PkgPath, "error", pkgErr.Error())
		}
	}

	for _, p := range pkgs {
		if p == nil || p.TypesInfo == nil || p.Types == nil {
			continue
		}
		for _, astFile := range p.Syntax {
			if astFile == nil {
				continue
			}
			tokFile := fset.File(astFile.Pos())
			if tokFile == nil {
				continue
			}
			astFilePath, _ := filepath.Abs(tokFile.Name())
			if astFilePath == absFilename {
				logger.Debug("Found target file in package", "package", p.PkgPath)
				return p, astFile, tokFile, nil
			}
		}
	}
	return nil, nil, nil, fmt.Errorf("%w: %s not found in loaded packages", ErrDeclarationLookup, absFilename)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
