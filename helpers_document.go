// deepsignature/helpers_document.go
// In-memory Document implementation over a buffer snapshot.
package deepsignature

import (
	"strings"
	"unicode"
)

// TextDocument is an immutable snapshot of a document's lines.
type TextDocument struct {
	lines []string
}

var _ Document = (*TextDocument)(nil)

// NewTextDocument splits content into lines on "\n", dropping a trailing "\r".
func NewTextDocument(content string) *TextDocument {
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return &TextDocument{lines: lines}
}

func (d *TextDocument) LineCount() int { return len(d.lines) }

func (d *TextDocument) LineAt(line int) string {
	if line < 0 || line >= len(d.lines) {
		return ""
	}
	return d.lines[line]
}

// Text joins the lines back with "\n".
func (d *TextDocument) Text() string { return strings.Join(d.lines, "\n") }

// WordRangeAt returns the word containing pos or ending exactly at pos.
// Words are runs of letters, digits and underscores.
func (d *TextDocument) WordRangeAt(pos Position) (Range, bool) {
	if pos.Line < 0 || pos.Line >= len(d.lines) || pos.Character < 0 {
		return Range{}, false
	}
	line := []rune(d.lines[pos.Line])
	if pos.Character > len(line) {
		return Range{}, false
	}

	start, end := pos.Character, pos.Character
	for start > 0 && isWordRune(line[start-1]) {
		start--
	}
	for end < len(line) && isWordRune(line[end]) {
		end++
	}
	if start == end {
		return Range{}, false
	}
	return Range{
		Start: Position{Line: pos.Line, Character: start},
		End:   Position{Line: pos.Line, Character: end},
	}, true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
