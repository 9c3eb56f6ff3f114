package fdiff

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	createdStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	deletedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func disableReportColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

const contextPreviewLen = 40

func previewContext(ctx string) string {
	r := []rune(ctx)
	if len(r) > contextPreviewLen {
		return string(r[:contextPreviewLen])
	}
	return ctx
}

func formatOutcome(o Outcome) string {
	chunk := fmt.Sprintf("Chunk #%d:", o.Index+1)
	switch o.Status {
	case StatusAppliedCreation:
		return successStyle.Render(fmt.Sprintf("[✓] %s CREATED file with new content.", chunk))
	case StatusAppliedReplacement:
		return successStyle.Render(fmt.Sprintf("[✓] %s REPLACED file content.", chunk))
	case StatusAppliedModification:
		method := Verbatim
		if o.Method != nil {
			method = *o.Method
		}
		return successStyle.Render(fmt.Sprintf("[✓] %s APPLIED patch for %q via %s match.", chunk, previewContext(o.Context)+"...", method))
	}

	target := "full file content"
	if o.Context != "" {
		target = fmt.Sprintf("%q", previewContext(o.Context)+"...")
	}
	return errorStyle.Render(fmt.Sprintf("[x] %s FAILED for %s. Reason: %s", chunk, target, o.Reason))
}

// FormatBatch renders the per-file section of a report.
func FormatBatch(r BatchResult, dryRun bool) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("--- Summary for %s ---", r.Filename)) + "\n")
	for _, o := range r.Outcomes {
		b.WriteString(formatOutcome(o) + "\n")
	}

	applied := r.AppliedCount()
	verb := "applied"
	if dryRun {
		verb = "would apply"
	}
	result := fmt.Sprintf("Result: %d of %d chunk(s) %s", applied, len(r.Outcomes), verb)
	if applied > 0 {
		result += fmt.Sprintf(" (+%d -%d)", r.Stats.Added, r.Stats.Removed)
	}
	style := successStyle
	if applied < len(r.Outcomes) {
		style = errorStyle
	}
	b.WriteString(style.Render(result+".") + "\n")
	return b.String()
}

// FormatReport renders every batch followed by the overall summary.
func FormatReport(r Report) string {
	var b strings.Builder
	if r.Message != "" {
		b.WriteString(headerStyle.Render(r.Message) + "\n\n")
	}
	for _, batch := range r.Batches {
		b.WriteString(FormatBatch(batch, r.DryRun) + "\n")
	}

	if len(r.Diagnostics) > 0 {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Skipped %d malformed block(s).", len(r.Diagnostics))) + "\n")
	}
	if r.Filtered > 0 {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("Ignored %d block(s) excluded by filters.", r.Filtered)) + "\n")
	}

	prefix := "Applied"
	if r.DryRun {
		prefix = "Dry run: would apply"
	}
	total := fmt.Sprintf("%s %d of %d chunk(s) across %d file(s).", prefix, r.Applied(), r.Total(), len(r.Batches))
	if r.Complete() {
		b.WriteString(successStyle.Render(total) + "\n")
	} else {
		b.WriteString(errorStyle.Render(total) + "\n")
	}
	return b.String()
}

// FormatSummary renders the result of an undo or redo.
func FormatSummary(s Summary) string {
	var b strings.Builder
	if s.Message != "" {
		b.WriteString(headerStyle.Render(s.Message) + "\n\n")
	}

	renderList := func(title string, style lipgloss.Style, list []string) {
		if len(list) == 0 {
			return
		}
		b.WriteString(style.Render(title) + "\n")
		for _, f := range list {
			b.WriteString(fmt.Sprintf("  %s\n", f))
		}
	}

	renderList("Created:", createdStyle, s.Created)
	renderList("Modified:", successStyle, s.Modified)
	renderList("Deleted:", deletedStyle, s.Deleted)
	renderList("Failed:", errorStyle, s.Failed)

	return b.String()
}
