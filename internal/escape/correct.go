package escape

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultSnippetWidth is the number of runes kept in a Diagnostic snippet.
const DefaultSnippetWidth = 60

// Location identifies a backslash-run inside a document.
type Location struct {
	Offset int // byte offset of the first backslash
	Line   int // 1-based
	Column int // 1-based, in runes
}

// Diagnostic describes a literal whose backslash-run is neither one nor two
// backslashes long. Such literals are never rewritten.
type Diagnostic struct {
	Location
	Run     int
	Snippet string
}

// Result is the outcome of a single correction pass.
type Result struct {
	Document    string
	Changed     int // literals rewritten from one backslash to two
	Matched     int // literals matching the rule, whatever their run length
	Fixes       []Location
	Diagnostics []Diagnostic
}

// Clean reports whether the pass found nothing to fix and nothing to review.
func (r Result) Clean() bool {
	return r.Changed == 0 && len(r.Diagnostics) == 0
}

// Option configures a Corrector.
type Option func(*Corrector)

// WithSnippetWidth limits diagnostic snippets to n runes. n <= 0 disables truncation.
func WithSnippetWidth(n int) Option {
	return func(c *Corrector) { c.snippetWidth = n }
}

// Corrector rewrites single-backslash prefixes inside the literals selected by
// its Rule. It holds no mutable state and is safe for concurrent use.
type Corrector struct {
	rule         Rule
	marker       *regexp.Regexp
	snippetWidth int
}

// New compiles rule into a Corrector.
func New(rule Rule, opts ...Option) (*Corrector, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	c := &Corrector{
		rule:         rule,
		marker:       markerPattern(rule.Field),
		snippetWidth: DefaultSnippetWidth,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MustNew is like New but panics on an invalid rule.
func MustNew(rule Rule, opts ...Option) *Corrector {
	c, err := New(rule, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

var defaultCorrector = MustNew(DefaultRule)

// Correct runs the default rule over doc.
func Correct(doc string) Result {
	return defaultCorrector.Correct(doc)
}

// Rule returns the rule c was built from.
func (c *Corrector) Rule() Rule {
	return c.rule
}

// markerPattern matches, at the start of its input, the field key (bare or
// wrapped in matching quotes), the colon, and the opening quote of its value.
// Group 1 is the opening quote.
func markerPattern(field string) *regexp.Regexp {
	f := regexp.QuoteMeta(field)
	return regexp.MustCompile(`^(?:"` + f + `"|'` + f + `'|` + f + `)\s*:\s*(['"` + "`" + `])`)
}

// Correct scans doc left to right and returns the corrected document.
// Bytes outside rewritten backslash-runs are copied unchanged. The field key
// is only recognized outside string literals; every other literal is
// skipped whole.
func (c *Corrector) Correct(doc string) Result {
	res := Result{}
	loc := locator{doc: doc, line: 1}

	var out strings.Builder
	last := 0
	first := c.rule.Field[0]

	for i := 0; i < len(doc); {
		b := doc[i]
		if b != first && !isQuote(b) {
			i++
			continue
		}

		var m []int
		if atBoundary(doc, i) {
			m = c.marker.FindStringSubmatchIndex(doc[i:])
		}
		if m != nil {
			open := i + m[2]
			body := open + 1
			end := closingQuote(doc, body, doc[open])
			if end < 0 {
				// Not a literal we can delimit; resume after the opening quote.
				i = body
				continue
			}
			// The value is a literal either way; nothing inside it is a key.
			i = end + 1

			run := 0
			for body+run < end && doc[body+run] == '\\' {
				run++
			}
			if run == 0 || !strings.HasPrefix(doc[body+run:end], c.rule.Prefix) {
				continue
			}
			res.Matched++

			switch {
			case run == 1:
				if res.Changed == 0 {
					out.Grow(len(doc) + 16)
				}
				out.WriteString(doc[last:body])
				out.WriteByte('\\')
				last = body
				res.Changed++
				res.Fixes = append(res.Fixes, loc.at(body))
			case run == 2:
				// already safe
			default:
				res.Diagnostics = append(res.Diagnostics, Diagnostic{
					Location: loc.at(body),
					Run:      run,
					Snippet:  c.snippet(doc[open : end+1]),
				})
			}
			continue
		}

		if isQuote(b) {
			// A literal of some other field, or a bare string: skip it whole.
			if end := closingQuote(doc, i+1, b); end >= 0 {
				i = end + 1
				continue
			}
		}
		i++
	}

	if res.Changed == 0 {
		res.Document = doc
		return res
	}
	out.WriteString(doc[last:])
	res.Document = out.String()
	return res
}

// atBoundary reports whether a key starting at start is not the tail of a
// longer identifier (subcmd, _cmd).
func atBoundary(doc string, start int) bool {
	if start == 0 {
		return true
	}
	return !isIdentByte(doc[start-1])
}

func isQuote(b byte) bool {
	return b == '\'' || b == '"' || b == '`'
}

func (c *Corrector) snippet(lit string) string {
	if c.snippetWidth <= 0 || utf8.RuneCountInString(lit) <= c.snippetWidth {
		return lit
	}
	runes := []rune(lit)
	return string(runes[:c.snippetWidth]) + "…"
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '$' ||
		('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

// closingQuote returns the index of the quote closing a literal whose body
// starts at from, or -1. A backslash escapes the byte after it. Only
// template literals may span lines.
func closingQuote(doc string, from int, quote byte) int {
	for i := from; i < len(doc); i++ {
		switch doc[i] {
		case '\\':
			i++
		case quote:
			return i
		case '\n':
			if quote != '`' {
				return -1
			}
		}
	}
	return -1
}

// locator converts increasing byte offsets to line/column positions in one pass.
type locator struct {
	doc       string
	pos       int
	line      int
	lineStart int
}

func (l *locator) at(offset int) Location {
	for ; l.pos < offset; l.pos++ {
		if l.doc[l.pos] == '\n' {
			l.line++
			l.lineStart = l.pos + 1
		}
	}
	return Location{
		Offset: offset,
		Line:   l.line,
		Column: utf8.RuneCountInString(l.doc[l.lineStart:offset]) + 1,
	}
}
