package parser

import "github.com/cogreason/reasoner/pkg/term"

// ToKIF renders t back to its textual form. Atoms matching the bare-atom
// character class print unquoted; everything else is quoted with escapes.
// For a list this prints every subterm space-separated inside parentheses.
func ToKIF(t *term.Term) string {
	return t.String()
}
