// Package escape normalizes the backslash escaping of command strings in
// generated symbol tables.
package escape

import (
	"errors"
	"fmt"
	"regexp"
)

// Rule names the field whose string literals are checked and the at-risk
// prefix that must be preceded by exactly two backslashes.
type Rule struct {
	Field  string
	Prefix string
}

// DefaultRule matches icon-font command strings: { cmd: '\\fa-home' }.
var DefaultRule = Rule{Field: "cmd", Prefix: "fa"}

// ErrInvalidRule is returned when a Rule cannot be compiled into a pattern.
var ErrInvalidRule = errors.New("invalid rule")

var (
	identRe  = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
	letterRe = regexp.MustCompile(`^[A-Za-z]+$`)
)

// Validate reports whether r names an identifier field and a letter prefix.
func (r Rule) Validate() error {
	if !identRe.MatchString(r.Field) {
		return fmt.Errorf("%w: field %q is not an identifier", ErrInvalidRule, r.Field)
	}
	if !letterRe.MatchString(r.Prefix) {
		return fmt.Errorf("%w: prefix %q must be ASCII letters", ErrInvalidRule, r.Prefix)
	}
	return nil
}
