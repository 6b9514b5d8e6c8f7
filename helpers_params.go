// deepsignature/helpers_params.go
// Splits a "(<params>) <ret>" signature substring into parameter fragments.
package deepsignature

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// ParameterSplitter turns the parameter list of a signature into fragments.
type ParameterSplitter interface {
	Split(signature string) SplitResult
}

// NewParameterSplitter returns the splitter selected by config. The tree-sitter
// splitter falls back to the bracket scanner when it cannot parse the input.
func NewParameterSplitter(useTreeSitter bool, logger *slog.Logger) ParameterSplitter {
	if !useTreeSitter {
		return scanSplitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &treeSitterSplitter{fallback: scanSplitter{}, logger: logger.With("component", "treeSitterSplitter")}
}

// ============================================================================
// Bracket Scanner
// ============================================================================

// scanSplitter splits on commas at bracket depth zero. Grouped names such as
// "a, b int" come back as "a" and "b int".
type scanSplitter struct{}

func (scanSplitter) Split(signature string) SplitResult {
	open := paramListStart(signature)
	if open < 0 {
		return SplitResult{}
	}

	var params []string
	depth := 0
	lastStart := open + 1
	for i := open + 1; i < len(signature); i++ {
		switch signature[i] {
		case '(', '[', '{':
			depth++
		case ']', '}':
			depth--
		case ')':
			depth--
			if depth < 0 {
				if p := strings.TrimSpace(signature[lastStart:i]); p != "" {
					params = append(params, p)
				}
				return SplitResult{Params: params, ReturnType: strings.TrimSpace(signature[i+1:])}
			}
		case ',':
			if depth == 0 {
				params = append(params, strings.TrimSpace(signature[lastStart:i]))
				lastStart = i + 1
			}
		}
	}
	return SplitResult{}
}

// paramListStart returns the index of the '(' opening the parameter list,
// skipping a leading type parameter list, or -1.
func paramListStart(signature string) int {
	i := 0
	if strings.HasPrefix(signature, "[") {
		depth := 0
		for ; i < len(signature); i++ {
			if signature[i] == '[' {
				depth++
			} else if signature[i] == ']' {
				depth--
				if depth == 0 {
					break
				}
			}
		}
		i++
	}
	if i >= len(signature) || signature[i] != '(' {
		return -1
	}
	return i
}

// ============================================================================
// Tree-sitter Splitter
// ============================================================================

var (
	goLangOnce sync.Once
	goLang     *sitter.Language
)

func goLanguage() *sitter.Language {
	goLangOnce.Do(func() { goLang = golang.GetLanguage() })
	return goLang
}

// treeSitterSplitter parses the signature as the header of a Go function
// declaration. Each name in a grouped declaration gets its own fragment
// carrying the shared type.
type treeSitterSplitter struct {
	fallback ParameterSplitter
	logger   *slog.Logger
}

// A function type leaves "(a, b int)" ambiguous and tree-sitter reads "a" as
// an unnamed type there; a declaration header does not.
const (
	funcDeclPrefix = "package p\nfunc _"
	funcDeclSuffix = " {}"
)

func (s *treeSitterSplitter) Split(signature string) SplitResult {
	if !strings.HasPrefix(signature, "(") && !strings.HasPrefix(signature, "[") {
		return s.fallback.Split(signature)
	}
	code := []byte(funcDeclPrefix + signature + funcDeclSuffix)

	// Parsers are not safe for concurrent use; one per call.
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(goLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, code)
	if err != nil {
		s.logger.Debug("tree-sitter parse failed, using scanner", "error", err)
		return s.fallback.Split(signature)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		s.logger.Debug("tree-sitter reported syntax errors, using scanner", "signature", signature)
		return s.fallback.Split(signature)
	}
	fn := findNodeOfType(root, "function_declaration")
	if fn == nil {
		return s.fallback.Split(signature)
	}

	var result SplitResult
	if list := fn.ChildByFieldName("parameters"); list != nil {
		for i := 0; i < int(list.NamedChildCount()); i++ {
			result.Params = append(result.Params, parameterFragments(list.NamedChild(i), code)...)
		}
	}
	if ret := fn.ChildByFieldName("result"); ret != nil {
		result.ReturnType = strings.TrimSpace(ret.Content(code))
	}
	return result
}

// parameterFragments renders one parameter_declaration node.
func parameterFragments(decl *sitter.Node, code []byte) []string {
	switch decl.Type() {
	case "parameter_declaration":
	case "variadic_parameter_declaration":
		return []string{strings.TrimSpace(decl.Content(code))}
	default:
		return nil
	}

	typeNode := decl.ChildByFieldName("type")
	var names []string
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		if child := decl.NamedChild(i); child.Type() == "identifier" {
			names = append(names, child.Content(code))
		}
	}
	if len(names) <= 1 || typeNode == nil {
		return []string{strings.TrimSpace(decl.Content(code))}
	}
	typeText := typeNode.Content(code)
	frags := make([]string, 0, len(names))
	for _, n := range names {
		frags = append(frags, n+" "+typeText)
	}
	return frags
}

func findNodeOfType(node *sitter.Node, nodeType string) *sitter.Node {
	if node == nil {
		return nil
	}
	if node.Type() == nodeType {
		return node
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if found := findNodeOfType(node.NamedChild(i), nodeType); found != nil {
			return found
		}
	}
	return nil
}
