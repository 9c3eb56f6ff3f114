package fdiff

import (
	"fmt"
	"iter"
	"path/filepath"
	"sort"
	"strings"
)

const (
	openMarker  = "#>>>>>"
	fenceMarker = "```"
	sepMarker   = "#====="
	closeMarker = "#<<<<< end"
)

type parseState int

const (
	stateSeekStart parseState = iota
	stateExpectFenceOpen
	stateInOriginal
	stateExpectSeparator
	stateExpectNewFenceOpen
	stateInNew
	stateExpectCloseMarker
)

var stateNames = map[parseState]string{
	stateSeekStart:          "SEEK_START",
	stateExpectFenceOpen:    "EXPECT_FENCE_OPEN",
	stateInOriginal:         "IN_ORIGINAL",
	stateExpectSeparator:    "EXPECT_SEPARATOR",
	stateExpectNewFenceOpen: "EXPECT_NEW_FENCE_OPEN",
	stateInNew:              "IN_NEW",
	stateExpectCloseMarker:  "EXPECT_CLOSE_MARKER",
}

func (s parseState) String() string {
	return stateNames[s]
}

// blockParser is the line-driven state machine behind ParseBlocks. One
// instance parses one input; it holds no global state.
type blockParser struct {
	state   parseState
	block   PatchBlock
	origBuf strings.Builder
	newBuf  strings.Builder
	report  func(Diagnostic)
}

func newBlockParser(report func(Diagnostic)) *blockParser {
	if report == nil {
		report = func(Diagnostic) {}
	}
	return &blockParser{report: report}
}

// feed consumes one line (with its line ending) and returns a block when
// the line completed one.
func (p *blockParser) feed(lineNum int, line string) (PatchBlock, bool) {
	trimmed := strings.TrimSpace(line)

	switch p.state {
	case stateSeekStart:
		if !strings.HasPrefix(trimmed, openMarker) {
			return PatchBlock{}, false
		}
		filename := strings.TrimSpace(trimmed[len(openMarker):])
		if filename == "" {
			p.report(Diagnostic{Line: lineNum, State: p.state.String(), Message: fmt.Sprintf("missing filename after '%s'. Skipping block.", openMarker)})
			return PatchBlock{}, false
		}
		p.start(filename, lineNum)

	case stateExpectFenceOpen:
		switch {
		case trimmed == fenceMarker:
			p.state = stateInOriginal
		case trimmed != "":
			return p.abort(lineNum, line, fmt.Sprintf("expected '%s' after '%s' line", fenceMarker, openMarker))
		}

	case stateInOriginal:
		switch trimmed {
		case sepMarker:
			p.state = stateInNew
		case fenceMarker:
			p.state = stateExpectSeparator
		default:
			p.origBuf.WriteString(line)
		}

	case stateExpectSeparator:
		switch {
		case trimmed == sepMarker:
			p.state = stateExpectNewFenceOpen
		case trimmed == closeMarker:
			// No separator: the fenced text is the whole new content.
			p.newBuf.Reset()
			p.newBuf.WriteString(p.origBuf.String())
			p.origBuf.Reset()
			return p.emit(), true
		case trimmed != "":
			return p.abort(lineNum, line, fmt.Sprintf("expected '%s' or '%s' after closing '%s'", sepMarker, closeMarker, fenceMarker))
		}

	case stateExpectNewFenceOpen:
		switch {
		case trimmed == fenceMarker:
			p.state = stateInNew
		case trimmed != "":
			return p.abort(lineNum, line, fmt.Sprintf("expected '%s' after '%s'", fenceMarker, sepMarker))
		}

	case stateInNew:
		if trimmed == fenceMarker {
			p.state = stateExpectCloseMarker
		} else {
			p.newBuf.WriteString(line)
		}

	case stateExpectCloseMarker:
		switch {
		case trimmed == closeMarker:
			return p.emit(), true
		case trimmed != "":
			return p.abort(lineNum, line, fmt.Sprintf("expected '%s' after closing '%s'", closeMarker, fenceMarker))
		}
	}
	return PatchBlock{}, false
}

func (p *blockParser) start(filename string, lineNum int) {
	p.block = PatchBlock{Filename: filename, Line: lineNum}
	p.origBuf.Reset()
	p.newBuf.Reset()
	p.state = stateExpectFenceOpen
}

func (p *blockParser) emit() PatchBlock {
	block := p.block
	block.Original = p.origBuf.String()
	block.New = p.newBuf.String()
	p.reset()
	return block
}

func (p *blockParser) reset() {
	p.block = PatchBlock{}
	p.origBuf.Reset()
	p.newBuf.Reset()
	p.state = stateSeekStart
}

// abort drops the partial block and rescans the offending line from
// SEEK_START so an open marker that interrupted a broken block still
// starts the next one.
func (p *blockParser) abort(lineNum int, line, msg string) (PatchBlock, bool) {
	p.report(Diagnostic{
		Line:    lineNum,
		State:   p.state.String(),
		Message: fmt.Sprintf("malformed patch for %s: %s. Skipping block.", p.block.Filename, msg),
	})
	p.reset()
	return p.feed(lineNum, line)
}

func (p *blockParser) finish() {
	if p.state == stateSeekStart {
		return
	}
	p.report(Diagnostic{
		State:   p.state.String(),
		Message: fmt.Sprintf("diff content ended unexpectedly inside block for %s (line %d). Check for missing markers or '%s'. Final state: %s", p.block.Filename, p.block.Line, fenceMarker, p.state),
	})
	p.reset()
}

// ParseBlocks lazily yields the patch blocks found in content. Malformed
// blocks are skipped and described through report, which may be nil.
func ParseBlocks(content string, report func(Diagnostic)) iter.Seq[PatchBlock] {
	return func(yield func(PatchBlock) bool) {
		p := newBlockParser(report)
		for i, line := range splitLinesKeepEnds(content) {
			if block, ok := p.feed(i+1, line); ok {
				if !yield(block) {
					return
				}
			}
		}
		p.finish()
	}
}

// ParseAll collects every block and diagnostic from content.
func ParseAll(content string) ([]PatchBlock, []Diagnostic) {
	var diags []Diagnostic
	var blocks []PatchBlock
	for b := range ParseBlocks(content, func(d Diagnostic) { diags = append(diags, d) }) {
		blocks = append(blocks, b)
	}
	return blocks, diags
}

func splitLinesKeepEnds(content string) []string {
	if content == "" {
		return nil
	}
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.SplitAfter(normalized, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// PlanOptions restricts which blocks take part in a run.
type PlanOptions struct {
	// Extensions keeps only files with one of these extensions (".go").
	Extensions []string
	// Files keeps only these file names.
	Files []string
}

// Plan is the parsed input grouped into per-file batches.
type Plan struct {
	Batches     []FileBatch
	Diagnostics []Diagnostic
	Filtered    int
}

// Blocks returns the number of blocks across all batches.
func (p *Plan) Blocks() int {
	n := 0
	for _, b := range p.Batches {
		n += len(b.Blocks)
	}
	return n
}

// CreatePlan parses content and groups the resulting blocks by filename.
func CreatePlan(content string, opts PlanOptions) (*Plan, error) {
	unwrapped, err := UnwrapEnvelope(content)
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown envelope: %w", err)
	}

	allowedFiles := make(map[string]struct{}, len(opts.Files))
	for _, f := range opts.Files {
		allowedFiles[filepath.Clean(f)] = struct{}{}
	}

	plan := &Plan{}
	grouped := make(map[string][]PatchBlock)
	report := func(d Diagnostic) { plan.Diagnostics = append(plan.Diagnostics, d) }
	for block := range ParseBlocks(unwrapped, report) {
		if !HasAllowedExtension(block.Filename, opts.Extensions) {
			plan.Filtered++
			continue
		}
		if len(allowedFiles) > 0 {
			if _, ok := allowedFiles[filepath.Clean(block.Filename)]; !ok {
				plan.Filtered++
				continue
			}
		}
		name := filepath.Clean(block.Filename)
		grouped[name] = append(grouped[name], block)
	}

	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		plan.Batches = append(plan.Batches, FileBatch{Filename: name, Blocks: grouped[name]})
	}
	return plan, nil
}

func HasAllowedExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := filepath.Ext(path)
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}
