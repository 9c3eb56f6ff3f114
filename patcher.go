package fdiff

import (
	"fmt"
	"strings"
)

// ApplyOptions controls how a batch is applied.
type ApplyOptions struct {
	// Threshold is the minimum similarity accepted for fuzzy matches.
	Threshold float64
	// DryRun renders a unified diff instead of writing.
	DryRun bool
}

const (
	reasonMissingFile     = "file not found and patch targets existing content"
	reasonMixedReplace    = "a full file replacement cannot be combined with other patches for the same file"
	reasonBatchAborted    = "batch aborted: other patches in this file overlap"
	reasonOverlapTemplate = "overlaps with patch at [%d:%d]"
)

// ApplyBatch applies every block of one file against a single snapshot of
// that file. The file is written at most once, and only when no located
// patches overlap.
func ApplyBatch(store Storage, batch FileBatch, opts ApplyOptions) BatchResult {
	res := BatchResult{Filename: batch.Filename, Outcomes: make([]Outcome, len(batch.Blocks))}
	for i, b := range batch.Blocks {
		res.Outcomes[i] = Outcome{Index: i, Filename: batch.Filename, Context: blockContext(b)}
	}
	if len(batch.Blocks) == 0 {
		return res
	}

	allFull, anyFull := true, false
	for _, b := range batch.Blocks {
		if b.IsFullContent() {
			anyFull = true
		} else {
			allFull = false
		}
	}

	if !store.Exists(batch.Filename) {
		if !allFull {
			res.failAll(StatusFailedToLocate, reasonMissingFile)
			return res
		}
		applyCreation(store, batch, opts, &res)
		return res
	}

	snapshot, err := store.Read(batch.Filename)
	if err != nil {
		res.failAll(StatusFailedToRead, err.Error())
		return res
	}
	res.Before = snapshot
	eol := detectLineEnding(snapshot)

	switch {
	case anyFull && len(batch.Blocks) > 1:
		res.failAll(StatusFailedAmbiguous, reasonMixedReplace)
	case anyFull:
		applyReplacement(store, batch, eol, opts, &res)
	default:
		applyModification(store, batch, eol, opts, &res)
	}
	return res
}

// lineEnding records whether a file uses CRLF. Blocks are parsed with LF
// endings, so a CRLF file is matched and spliced as LF text and converted
// back before it is written.
type lineEnding bool

const crlf lineEnding = true

func detectLineEnding(content string) lineEnding {
	return lineEnding(strings.Contains(content, "\r\n"))
}

func (e lineEnding) normalize(content string) string {
	if e != crlf {
		return content
	}
	return strings.ReplaceAll(content, "\r\n", "\n")
}

func (e lineEnding) restore(content string) string {
	if e != crlf {
		return content
	}
	return strings.ReplaceAll(strings.ReplaceAll(content, "\r\n", "\n"), "\n", "\r\n")
}

func applyCreation(store Storage, batch FileBatch, opts ApplyOptions, res *BatchResult) {
	var b strings.Builder
	for _, block := range batch.Blocks {
		b.WriteString(block.New)
	}
	res.After = b.String()
	res.Created = true

	if !opts.DryRun {
		if err := store.MkdirParents(batch.Filename); err != nil {
			res.failAll(StatusFailedToCreate, err.Error())
			return
		}
		if err := store.Write(batch.Filename, res.After); err != nil {
			res.failAll(StatusFailedToCreate, err.Error())
			return
		}
		res.Written = true
	}
	res.setAll(StatusAppliedCreation)
	res.finish(opts)
}

func applyReplacement(store Storage, batch FileBatch, eol lineEnding, opts ApplyOptions, res *BatchResult) {
	res.After = eol.restore(batch.Blocks[0].New)
	if !opts.DryRun {
		if err := store.Write(batch.Filename, res.After); err != nil {
			res.failAll(StatusFailedToWrite, err.Error())
			return
		}
		res.Written = true
	}
	res.setAll(StatusAppliedReplacement)
	res.finish(opts)
}

// applyModification locates every block in the LF form of the snapshot.
// Outcome offsets refer to that form.
func applyModification(store Storage, batch FileBatch, eol lineEnding, opts ApplyOptions, res *BatchResult) {
	snapshot := eol.normalize(res.Before)
	var located []LocatedPatch
	for i, block := range batch.Blocks {
		loc, err := Locate(snapshot, block.Original, opts.Threshold)
		if err != nil {
			res.Outcomes[i].Status = StatusFailedToLocate
			res.Outcomes[i].Reason = err.Error()
			continue
		}
		located = append(located, LocatedPatch{
			Index:  i,
			Block:  block,
			Start:  loc.Start,
			End:    loc.End,
			Method: loc.Method,
		})
	}

	for _, lp := range located {
		m := lp.Method
		res.Outcomes[lp.Index].Method = &m
		res.Outcomes[lp.Index].Start = lp.Start
		res.Outcomes[lp.Index].End = lp.End
	}

	sorted, conflicts := ResolveConflicts(located)
	if len(conflicts) > 0 {
		for _, lp := range sorted {
			o := &res.Outcomes[lp.Index]
			o.Status = StatusSkippedConflict
			if other, ok := conflicts[lp.Index]; ok {
				o.Reason = fmt.Sprintf(reasonOverlapTemplate, other.Start, other.End)
			} else {
				o.Reason = reasonBatchAborted
			}
		}
		res.After = res.Before
		return
	}

	if len(sorted) == 0 {
		res.After = res.Before
		return
	}

	content := snapshot
	for i := len(sorted) - 1; i >= 0; i-- {
		lp := sorted[i]
		content = content[:lp.Start] + lp.Block.New + content[lp.End:]
	}
	res.After = eol.restore(content)

	if !opts.DryRun {
		if err := store.Write(batch.Filename, res.After); err != nil {
			for _, lp := range sorted {
				res.Outcomes[lp.Index].Status = StatusFailedToWrite
				res.Outcomes[lp.Index].Reason = err.Error()
			}
			res.After = res.Before
			return
		}
		res.Written = true
	}
	for _, lp := range sorted {
		res.Outcomes[lp.Index].Status = StatusAppliedModification
	}
	res.finish(opts)
}

func (r *BatchResult) failAll(status Status, reason string) {
	for i := range r.Outcomes {
		r.Outcomes[i].Status = status
		r.Outcomes[i].Reason = reason
	}
}

func (r *BatchResult) setAll(status Status) {
	for i := range r.Outcomes {
		r.Outcomes[i].Status = status
	}
}

// finish computes stats and, in dry-run mode, the preview for a batch whose
// new content is known.
func (r *BatchResult) finish(opts ApplyOptions) {
	r.Stats = ComputeStats(r.Before, r.After)
	if !opts.DryRun {
		return
	}
	from := r.Filename
	if r.Created {
		from = ""
	}
	r.Preview = RenderUnifiedDiff(from, r.Filename, r.Before, r.After)
}

// blockContext is the first non-blank line of the block's original text.
func blockContext(b PatchBlock) string {
	for _, line := range strings.Split(strings.TrimSpace(b.Original), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

