// deepsignature/helpers_token.go
package deepsignature

// PrecedingToken walks left from pos one character at a time and returns the
// start of the first word it touches. The called function's name is found
// this way from a call's open paren.
func PrecedingToken(doc Document, pos Position) (Position, bool) {
	if doc == nil {
		return Position{}, false
	}
	for pos.Character > 0 {
		if word, ok := doc.WordRangeAt(pos); ok && !word.Empty() {
			return word.Start, true
		}
		pos.Character--
	}
	return Position{}, false
}
