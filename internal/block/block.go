// Package block locates, renders, and splices the managed related-notes
// region inside a note. All operations are pure text surgery: content outside
// the block span is never altered except for whitespace immediately adjacent
// to the block.
package block

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kanren/internal/index"
)

// Marker lines delimiting the managed block. These must match existing
// documents exactly.
const (
	StartMarker = "<!-- auto-related:start -->"
	EndMarker   = "<!-- auto-related:end -->"
)

const placeholder = "*No related notes found*"

const edgeCutset = " \t\r\n"

// Locate returns the [start, end) byte span of the managed block: the first
// start marker and the first end marker at or after it. A start marker with no
// following end marker means no block, not a parse error; Update then takes
// the append path.
func Locate(text string) (start, end int, ok bool) {
	s := strings.Index(text, StartMarker)
	if s < 0 {
		return 0, 0, false
	}
	rel := strings.Index(text[s:], EndMarker)
	if rel < 0 {
		return 0, 0, false
	}
	return s, s + rel + len(EndMarker), true
}

// RenderOptions controls block rendering.
type RenderOptions struct {
	Heading      string
	ShowScores   bool
	UsePathLinks bool
}

// Render produces the block text: start marker, heading, one link line per
// result in input order (or a placeholder when empty), end marker. Ordering is
// the caller's concern; lines mirror the input exactly.
func Render(results []index.Result, opts RenderOptions) string {
	lines := make([]string, 0, len(results)+3)
	lines = append(lines, StartMarker, opts.Heading)
	if len(results) == 0 {
		lines = append(lines, placeholder)
	}
	for _, r := range results {
		line := "- " + link(r.Path, opts.UsePathLinks)
		if opts.ShowScores {
			line += fmt.Sprintf(" (%.3f)", r.Score)
		}
		lines = append(lines, line)
	}
	lines = append(lines, EndMarker)
	return strings.Join(lines, "\n")
}

// link renders a wiki link for path: the full-path form, or a piped form whose
// display name is the final path segment without a ".md" suffix.
func link(path string, usePathLinks bool) string {
	if usePathLinks {
		return "[[" + path + "]]"
	}
	name := path
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, ".md")
	return "[[" + path + "|" + name + "]]"
}

// Update returns original with its managed block replaced by blockText, or
// with blockText appended when no block exists. Exactly one blank line
// separates the block from non-empty surrounding content on each side, and
// repeated calls with the same blockText are byte-for-byte idempotent.
func Update(original, blockText string) string {
	start, end, ok := Locate(original)
	if !ok {
		trimmed := strings.TrimRight(original, edgeCutset)
		if trimmed == "" {
			return blockText + "\n"
		}
		return trimmed + "\n\n" + blockText + "\n"
	}
	before := strings.TrimRight(original[:start], edgeCutset)
	after := strings.TrimLeft(original[end:], edgeCutset)
	var b strings.Builder
	if before != "" {
		b.WriteString(before)
		b.WriteString("\n\n")
	}
	b.WriteString(blockText)
	if after != "" {
		b.WriteString("\n\n")
		b.WriteString(after)
	} else {
		b.WriteString("\n")
	}
	return b.String()
}

// Remove splices the managed block out of text, joining the remaining sides
// with one blank line. Text without a block is returned unchanged.
func Remove(text string) string {
	start, end, ok := Locate(text)
	if !ok {
		return text
	}
	before := strings.TrimRight(text[:start], edgeCutset)
	after := strings.TrimLeft(text[end:], edgeCutset)
	switch {
	case before == "" && after == "":
		return ""
	case before == "":
		return after
	case after == "":
		return before + "\n"
	default:
		return before + "\n\n" + after
	}
}
