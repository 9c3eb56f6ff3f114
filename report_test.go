package fdiff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatReport(t *testing.T) {
	DisableColor()
	verbatim := Verbatim
	fuzzy := Method{Fuzzy: true, Score: 0.93}
	report := Report{
		Batches: []BatchResult{
			{
				Filename: "a.py",
				Outcomes: []Outcome{
					{Index: 0, Status: StatusAppliedModification, Method: &verbatim, Context: "def f():"},
					{Index: 1, Status: StatusAppliedModification, Method: &fuzzy, Context: "return x"},
					{Index: 2, Status: StatusFailedToLocate, Reason: "no match found", Context: "missing()"},
				},
				Stats: DiffStats{Added: 3, Removed: 2},
			},
			{
				Filename: "b.py",
				Outcomes: []Outcome{{Index: 0, Status: StatusAppliedCreation}},
			},
		},
	}

	out := FormatReport(report)

	assert.Contains(t, out, "--- Summary for a.py ---\n")
	assert.Contains(t, out, `[✓] Chunk #1: APPLIED patch for "def f():..." via verbatim match.`)
	assert.Contains(t, out, `[✓] Chunk #2: APPLIED patch for "return x..." via fuzzy (0.93) match.`)
	assert.Contains(t, out, `[x] Chunk #3: FAILED for "missing()...". Reason: no match found`)
	assert.Contains(t, out, "Result: 2 of 3 chunk(s) applied (+3 -2).")
	assert.Contains(t, out, "[✓] Chunk #1: CREATED file with new content.")
	assert.Contains(t, out, "Applied 3 of 4 chunk(s) across 2 file(s).")
}

func TestFormatReportDryRunAndDiagnostics(t *testing.T) {
	DisableColor()
	report := Report{
		DryRun:      true,
		Diagnostics: []Diagnostic{{Line: 3, Message: "bad"}},
		Filtered:    2,
		Batches: []BatchResult{{
			Filename: "c.txt",
			Outcomes: []Outcome{{Index: 0, Status: StatusAppliedReplacement}},
		}},
	}

	out := FormatReport(report)

	assert.Contains(t, out, "[✓] Chunk #1: REPLACED file content.")
	assert.Contains(t, out, "Result: 1 of 1 chunk(s) would apply")
	assert.Contains(t, out, "Skipped 1 malformed block(s).")
	assert.Contains(t, out, "Ignored 2 block(s) excluded by filters.")
	assert.Contains(t, out, "Dry run: would apply 1 of 1 chunk(s) across 1 file(s).")
}

func TestFormatOutcomeFullContentFailure(t *testing.T) {
	DisableColor()
	out := formatOutcome(Outcome{Index: 0, Status: StatusFailedAmbiguous, Reason: reasonMixedReplace})
	assert.Equal(t, "[x] Chunk #1: FAILED for full file content. Reason: "+reasonMixedReplace, out)
}

func TestFormatSummary(t *testing.T) {
	DisableColor()
	out := FormatSummary(Summary{Message: "Undone", Modified: []string{"a.go"}, Deleted: []string{"b.go"}})

	assert.Contains(t, out, "Undone\n")
	assert.Contains(t, out, "Modified:\n  a.go\n")
	assert.Contains(t, out, "Deleted:\n  b.go\n")
	assert.NotContains(t, out, "Failed:")
}
