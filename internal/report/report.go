// Package report renders the outcome of correction runs for people.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/Presto-io/symfix/internal/escape"
)

// Summary is the outcome of correcting one artifact.
type Summary struct {
	Path string
	escape.Result
	Before string // digest of the content read
	After  string // digest of the content written (equal to Before when unchanged)
	DryRun bool
	Err    error
}

// FromResult builds a Summary for path out of a correction result. The
// corrected document itself is not kept.
func FromResult(path string, res escape.Result, before, after string) Summary {
	res.Document = ""
	return Summary{
		Path:   path,
		Result: res,
		Before: before,
		After:  after,
	}
}

// Clean reports whether the file was read and needs neither a fix nor a
// manual review.
func (s Summary) Clean() bool {
	return s.Err == nil && s.Result.Clean()
}

// Headline is the one-line outcome for s.
func (s Summary) Headline() string {
	switch {
	case s.Err != nil:
		return fmt.Sprintf("%s: failed: %v", s.Path, s.Err)
	case s.Changed == 0:
		return fmt.Sprintf("%s: no changes", s.Path)
	case s.DryRun:
		return fmt.Sprintf("%s: would fix %s", s.Path, plural(s.Changed))
	default:
		return fmt.Sprintf("%s: fixed %s", s.Path, plural(s.Changed))
	}
}

func plural(n int) string {
	if n == 1 {
		return "1 occurrence"
	}
	return fmt.Sprintf("%d occurrences", n)
}

// Text renders the terminal form of summaries: one headline per file and one
// indented line per literal left for manual review.
func Text(summaries ...Summary) string {
	var buf strings.Builder
	for _, s := range summaries {
		buf.WriteString(s.Headline())
		buf.WriteByte('\n')
		if len(s.Diagnostics) == 0 {
			continue
		}
		fmt.Fprintf(&buf, "  %d unresolved (left unchanged):\n", len(s.Diagnostics))
		for _, d := range s.Diagnostics {
			fmt.Fprintf(&buf, "    %s:%d:%d offset %d: run of %d backslashes: %s\n",
				s.Path, d.Line, d.Column, d.Offset, d.Run, d.Snippet)
		}
	}
	return buf.String()
}

// Markdown renders one section per summary: the headline, digests, and a
// table of literals left for manual review.
func Markdown(summaries ...Summary) string {
	var buf strings.Builder
	buf.WriteString("# Escape correction report\n\n")

	for _, s := range summaries {
		fmt.Fprintf(&buf, "## %s\n\n", escapeCell(s.Path))
		fmt.Fprintf(&buf, "%s\n\n", escapeCell(s.Headline()))
		if s.Err != nil {
			continue
		}
		fmt.Fprintf(&buf, "- matched: %d\n", s.Matched)
		fmt.Fprintf(&buf, "- fixed: %d\n", s.Changed)
		fmt.Fprintf(&buf, "- unresolved: %d\n", len(s.Diagnostics))
		if s.Before != "" {
			fmt.Fprintf(&buf, "- blake3 before: `%s`\n", s.Before)
			fmt.Fprintf(&buf, "- blake3 after: `%s`\n", s.After)
		}
		buf.WriteString("\n")

		if len(s.Fixes) > 0 {
			lines := make([]string, 0, len(s.Fixes))
			for _, f := range s.Fixes {
				lines = append(lines, fmt.Sprintf("%d:%d", f.Line, f.Column))
			}
			fmt.Fprintf(&buf, "Fixed at: %s\n\n", strings.Join(lines, ", "))
		}

		if len(s.Diagnostics) == 0 {
			continue
		}
		buf.WriteString("Unresolved literals (backslash run is not 1 or 2, left unchanged):\n\n")
		buf.WriteString("| Line | Column | Offset | Run | Literal |\n")
		buf.WriteString("|---:|---:|---:|---:|---|\n")
		for _, d := range s.Diagnostics {
			fmt.Fprintf(&buf, "| %d | %d | %d | %d | `%s` |\n",
				d.Line, d.Column, d.Offset, d.Run, escapeCode(d.Snippet))
		}
		buf.WriteString("\n")
	}
	return buf.String()
}

// HTML converts a Markdown report to a standalone HTML fragment.
func HTML(markdown string) (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.Table),
	)
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}

// escapeCell escapes s for a Markdown table cell or heading.
// Neutralizes |, `, and line breaks.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, `|`, `\|`)
	s = strings.ReplaceAll(s, "`", "\\`")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

// escapeCode prepares s for a code span inside a table cell. Backslashes are
// literal inside code spans, so only the cell delimiter and line breaks change.
func escapeCode(s string) string {
	s = strings.ReplaceAll(s, `|`, `\|`)
	s = strings.ReplaceAll(s, "`", "'")
	s = strings.ReplaceAll(s, "\n", "⏎")
	return s
}
