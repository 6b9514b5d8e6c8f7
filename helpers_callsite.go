// deepsignature/helpers_callsite.go
// Backward scan from a cursor to the innermost enclosing call.
package deepsignature

// Document is a read-only, line-addressable text buffer.
type Document interface {
	// LineCount returns the number of lines in the document.
	LineCount() int
	// LineAt returns the text of a zero-based line without its terminator.
	LineAt(line int) string
	// WordRangeAt returns the identifier-like word touching pos, if any.
	WordRangeAt(pos Position) (Range, bool)
}

// LocateCallSite finds the open paren of the innermost call enclosing cursor
// and the top-level commas between it and the cursor.
//
// The scan walks backwards through the cursor line (truncated at the cursor)
// and up to maxCallSiteScanLines preceding lines, keeping a paren balance
// across lines. A '(' that drives the balance negative is the call's open
// paren. Commas count only at balance zero and outside quote literals on
// their own line. The returned commas are in ascending document order.
func LocateCallSite(doc Document, cursor Position) (*CallSite, bool) {
	if doc == nil || cursor.Line < 0 || cursor.Line >= doc.LineCount() || cursor.Character < 0 {
		return nil, false
	}

	var commas []Position
	balance := 0
	for lineNr, budget := cursor.Line, maxCallSiteScanLines; lineNr >= 0 && budget >= 0; lineNr, budget = lineNr-1, budget-1 {
		line := []rune(doc.LineAt(lineNr))
		if lineNr == cursor.Line && cursor.Character < len(line) {
			line = line[:cursor.Character]
		}
		lits := scanLineLiterals(line)

		for char := len(line) - 1; char >= 0; char-- {
			switch line[char] {
			case '(':
				balance--
				if balance < 0 {
					return &CallSite{
						OpenParen: Position{Line: lineNr, Character: char},
						Commas:    commas,
					}, true
				}
			case ')':
				balance++
			case ',':
				if balance == 0 && !lits.contains(char) {
					commas = append([]Position{{Line: lineNr, Character: char}}, commas...)
				}
			}
		}
	}
	return nil, false
}
