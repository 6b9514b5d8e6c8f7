// deepsignature/helpers_quotes.go
// Per-line literal boundary detection used to ignore commas inside quotes.
package deepsignature

// literalQuotes are the quote styles tracked independently on each line.
var literalQuotes = [...]rune{'\'', '"', '`'}

// quoteBoundaries returns, in ascending order, the indices in line that open or
// close a literal of the given quote style. Index 0 is never a boundary and a
// quote preceded by a backslash is treated as escaped. An escaped backslash
// before a quote is not recognised.
func quoteBoundaries(line []rune, quote rune) []int {
	var bounds []int
	for i := 1; i < len(line); i++ {
		if line[i] == quote && line[i-1] != '\\' {
			bounds = append(bounds, i)
		}
	}
	return bounds
}

// withinPairRange reports whether idx lies inside a literal described by
// bounds. Boundaries pair up as (0,1), (2,3), ...; an index past the last
// boundary is inside when an odd number of boundaries leaves a literal open.
func withinPairRange(bounds []int, idx int) bool {
	if len(bounds) == 0 {
		return false
	}
	if idx > bounds[len(bounds)-1] {
		return len(bounds)%2 == 1
	}
	for i := 0; i+1 < len(bounds); i += 2 {
		if idx > bounds[i] && idx < bounds[i+1] {
			return true
		}
	}
	return false
}

// lineLiterals holds the boundary lists of every tracked quote style for one line.
type lineLiterals [len(literalQuotes)][]int

func scanLineLiterals(line []rune) lineLiterals {
	var lits lineLiterals
	for i, q := range literalQuotes {
		lits[i] = quoteBoundaries(line, q)
	}
	return lits
}

// contains reports whether idx is inside a literal of any tracked style.
func (l *lineLiterals) contains(idx int) bool {
	for _, bounds := range l {
		if withinPairRange(bounds, idx) {
			return true
		}
	}
	return false
}
