package fdiff

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sergi/go-diff/diffmatchpatch"
)

const diffContextLines = 3

// RenderUnifiedDiff returns a unified diff from before to after. An empty
// fromName marks a file that does not exist yet and is rendered as
// /dev/null. Identical inputs produce an empty string.
func RenderUnifiedDiff(fromName, toName, before, after string) string {
	if before == after {
		return ""
	}

	from := "/dev/null"
	if fromName != "" {
		from = "a/" + fromName
	}

	diff := difflib.UnifiedDiff{
		A:        splitDiffLines(before),
		B:        splitDiffLines(after),
		FromFile: from,
		ToFile:   "b/" + toName,
		Context:  diffContextLines,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return text
}

// splitDiffLines splits s into lines that all end in a newline, which is
// what the unified diff writer expects.
func splitDiffLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	} else {
		lines[len(lines)-1] += "\n"
	}
	return lines
}

// ComputeStats counts added and removed lines between two versions.
func ComputeStats(before, after string) DiffStats {
	if before == after {
		return DiffStats{}
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var stats DiffStats
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			stats.Added += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			stats.Removed += countLines(d.Text)
		}
	}
	return stats
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
