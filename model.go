package fdiff

import "fmt"

// PatchBlock is one parsed edit targeting a single file.
type PatchBlock struct {
	Filename string
	Original string
	New      string
	// Line is the 1-based line of the block's open marker.
	Line int
}

// IsFullContent reports whether the block carries no original context,
// meaning it creates or replaces the whole file.
func (b PatchBlock) IsFullContent() bool {
	return isBlank(b.Original)
}

// Method describes how a patch was located.
type Method struct {
	Fuzzy bool
	Score float64
}

// Verbatim is the method of an exact, unique match.
var Verbatim = Method{Score: 1}

func (m Method) String() string {
	if !m.Fuzzy {
		return "verbatim"
	}
	return fmt.Sprintf("fuzzy (%.2f)", m.Score)
}

// LocatedPatch is a block together with the span it replaces in the
// unmodified file snapshot.
type LocatedPatch struct {
	Index  int
	Block  PatchBlock
	Start  int
	End    int
	Method Method
}

type Status string

const (
	StatusAppliedCreation     Status = "applied_creation"
	StatusAppliedReplacement  Status = "applied_replacement"
	StatusAppliedModification Status = "applied_modification"
	StatusFailedToLocate      Status = "failed_to_locate"
	StatusFailedAmbiguous     Status = "failed_ambiguous"
	StatusSkippedConflict     Status = "skipped_due_to_conflict"
	StatusFailedToRead        Status = "failed_to_read"
	StatusFailedToCreate      Status = "failed_to_create"
	StatusFailedToWrite       Status = "failed_to_write"
)

// Applied reports whether the status is one of the applied_* states.
func (s Status) Applied() bool {
	switch s {
	case StatusAppliedCreation, StatusAppliedReplacement, StatusAppliedModification:
		return true
	}
	return false
}

// Outcome is the final result for one patch block.
type Outcome struct {
	Index    int
	Filename string
	Status   Status
	Reason   string
	Method   *Method
	// Context is the first line of the block's original text, empty for
	// full-content blocks.
	Context string
	Start   int
	End     int
}

// FileBatch groups every block that targets the same file.
type FileBatch struct {
	Filename string
	Blocks   []PatchBlock
}

// DiffStats counts changed lines between two versions of a file.
type DiffStats struct {
	Added   int
	Removed int
}

// BatchResult is what applying one FileBatch produced.
type BatchResult struct {
	Filename string
	Outcomes []Outcome
	// Preview holds the unified diff rendered in dry-run mode.
	Preview string
	Written bool
	Created bool
	Before  string
	After   string
	Stats   DiffStats
}

// AppliedCount returns how many outcomes in the batch were applied.
func (r BatchResult) AppliedCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status.Applied() {
			n++
		}
	}
	return n
}

// Diagnostic describes a malformed block skipped by the parser.
type Diagnostic struct {
	Line    int
	State   string
	Message string
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("line %d: %s", d.Line, d.Message)
	}
	return d.Message
}

// Report summarises a whole run.
type Report struct {
	Batches     []BatchResult
	Diagnostics []Diagnostic
	Filtered    int
	DryRun      bool
	Message     string
}

// Total returns the number of patch blocks processed.
func (r Report) Total() int {
	n := 0
	for _, b := range r.Batches {
		n += len(b.Outcomes)
	}
	return n
}

// Applied returns the number of applied patch blocks.
func (r Report) Applied() int {
	n := 0
	for _, b := range r.Batches {
		n += b.AppliedCount()
	}
	return n
}

// Complete reports whether every processed block was applied.
func (r Report) Complete() bool {
	return r.Applied() == r.Total()
}

// Summary holds the results of an undo or redo for display.
type Summary struct {
	Created  []string
	Modified []string
	Deleted  []string
	Failed   []string
	Message  string
}
