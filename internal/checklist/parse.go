package checklist

import (
	"regexp"
	"strconv"
	"strings"
)

// Parsing patterns. A task line is a list item with a checkbox recognized
// only at line start after optional leading whitespace. Checkbox-like text
// inside prose or fenced code blocks never counts.
var (
	// taskLineRe matches: indent, list marker (-, *, + or "N." / "N)"),
	// checkbox marker, then the task text.
	taskLineRe = regexp.MustCompile(`^(\s*)(?:[-*+]|\d+[.)])\s+\[([ xX])\]\s*(.*)$`)

	// fenceRe matches an opening or closing code fence of backticks or tildes.
	fenceRe = regexp.MustCompile("^\\s*(```|~~~)")

	// annotationRe matches one trailing HTML comment annotation.
	annotationRe = regexp.MustCompile(`<!--([^>]*)-->\s*$`)

	// groupRe and modelRe extract annotation values; annotations may appear
	// in either order, in one comment or separate trailing comments.
	groupRe = regexp.MustCompile(`(?i)\bgroup:\s*(-?\d+)`)
	modelRe = regexp.MustCompile(`(?i)\bmodel:\s*([A-Za-z0-9._/-]+)`)
)

// Parse extracts the ordered task list from a checklist document. It is
// deterministic and re-entrant: parsing the same source always yields the
// same records in document order.
func Parse(source string) []Task {
	var tasks []Task
	inFence := false

	lines := strings.Split(source, "\n")
	for i, line := range lines {
		if fenceRe.MatchString(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		m := taskLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		lineNo := i + 1
		text := m[3]
		text, group, model := stripAnnotations(text)

		status := StatusPending
		if m[2] == "x" || m[2] == "X" {
			status = StatusComplete
		}

		tasks = append(tasks, Task{
			ID:          taskID(lineNo),
			Line:        lineNo,
			Description: text,
			Status:      status,
			Group:       group,
			Model:       model,
		})
	}
	return tasks
}

// stripAnnotations removes trailing annotation comments from the task text
// and returns the cleaned text plus any group/model values found. The
// remaining description is trimmed of surrounding whitespace only; embedded
// quotes and backslashes are left untouched.
func stripAnnotations(text string) (string, *int, string) {
	var group *int
	var model string

	for {
		m := annotationRe.FindStringSubmatchIndex(text)
		if m == nil {
			break
		}
		body := text[m[2]:m[3]]

		if gm := groupRe.FindStringSubmatch(body); gm != nil && group == nil {
			if n, err := strconv.Atoi(gm[1]); err == nil && n >= 0 {
				g := n
				group = &g
			}
		}
		if mm := modelRe.FindStringSubmatch(body); mm != nil && model == "" {
			model = mm[1]
		}

		text = text[:m[0]]
	}

	return strings.TrimSpace(text), group, model
}
