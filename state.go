package fdiff

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	stateDirName   = ".fdiff"
	stateFileName  = "states.fdiff"
	BlobsDir       = "blobs"
	entrySeparator = "\n===\n"
	opSeparator    = "\n---\n"
	none           = "-"
)

const (
	ActionCreate = "create"
	ActionModify = "modify"
)

// Operation is one file write recorded in the journal.
type Operation struct {
	Timestamp      int64
	Action         string
	Path           string
	OldContentHash string
	ContentHash    string
}

type HistoryEntry struct {
	Operations []Operation
}

type State struct {
	History      []HistoryEntry
	CurrentIndex int
}

// Change is a committed write handed to the journal.
type Change struct {
	Path    string
	Before  string
	After   string
	Created bool
}

// Journal is the undo/redo history stored under <root>/.fdiff.
type Journal struct {
	statePath string
	state     *State
	Dir       string
}

// FindProjectRoot returns the git toplevel containing wd, or wd itself
// outside a repository.
func FindProjectRoot(wd string) string {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = wd
	out, err := cmd.Output()
	if err != nil {
		return wd
	}
	return strings.TrimSpace(string(out))
}

func OpenJournal(root string) (*Journal, error) {
	dir := filepath.Join(root, stateDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	j := &Journal{statePath: filepath.Join(dir, stateFileName), Dir: dir}
	j.state = &State{CurrentIndex: -1, History: []HistoryEntry{}}
	_ = j.load()
	return j, nil
}

// State returns the loaded history.
func (j *Journal) State() State {
	return *j.state
}

func (j *Journal) load() error {
	data, err := os.ReadFile(j.statePath)
	if err != nil {
		return err
	}

	blocks := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), entrySeparator)
	idx, _ := strconv.Atoi(strings.TrimSpace(blocks[0]))
	j.state = &State{CurrentIndex: idx, History: []HistoryEntry{}}

	val := func(s string) string {
		s = strings.TrimSpace(s)
		if s == none {
			return ""
		}
		return s
	}

	for _, b := range blocks[1:] {
		entry := HistoryEntry{}
		for _, opBlock := range strings.Split(strings.TrimSpace(b), opSeparator) {
			lines := strings.Split(strings.TrimSpace(opBlock), "\n")
			if len(lines) < 5 {
				continue
			}
			entry.Operations = append(entry.Operations, Operation{
				Timestamp:      parseTimestamp(lines[0]),
				Action:         val(lines[1]),
				Path:           val(lines[2]),
				OldContentHash: val(lines[3]),
				ContentHash:    val(lines[4]),
			})
		}
		j.state.History = append(j.state.History, entry)
	}
	if j.state.CurrentIndex >= len(j.state.History) {
		j.state.CurrentIndex = len(j.state.History) - 1
	}
	return nil
}

func parseTimestamp(s string) int64 {
	ts, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return ts
}

func (j *Journal) save() error {
	placeholder := func(s string) string {
		if s == "" {
			return none
		}
		return s
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d", j.state.CurrentIndex)
	for _, e := range j.state.History {
		b.WriteString(entrySeparator)
		for i, op := range e.Operations {
			fmt.Fprintf(&b, "%d\n%s\n%s\n%s\n%s", op.Timestamp, placeholder(op.Action), placeholder(op.Path), placeholder(op.OldContentHash), placeholder(op.ContentHash))
			if i < len(e.Operations)-1 {
				b.WriteString(opSeparator)
			}
		}
	}
	return os.WriteFile(j.statePath, []byte(b.String()), 0644)
}

// Sync drops history entries that no longer describe the files on disk, so
// undo never rewinds past an edit made outside fdiff.
func (j *Journal) Sync(store Storage) error {
	if j.state.CurrentIndex < 0 {
		return nil
	}

	for i := j.state.CurrentIndex; i >= 0; i-- {
		if j.matchState(store, i) {
			if i < j.state.CurrentIndex {
				j.state.History = j.state.History[:i+1]
				j.state.CurrentIndex = i
				return j.save()
			}
			return nil
		}
	}

	j.state.History = []HistoryEntry{}
	j.state.CurrentIndex = -1
	return j.save()
}

func (j *Journal) matchState(store Storage, idx int) bool {
	for _, op := range j.state.History[idx].Operations {
		content, err := store.Read(op.Path)
		if err != nil || HashContent(content) != op.ContentHash {
			return false
		}
	}
	return true
}

// Record stores the blobs of every change and appends them as one history
// entry, discarding entries that were undone. Callers Sync before writing
// the files the changes describe.
func (j *Journal) Record(changes []Change) error {
	if len(changes) == 0 {
		return nil
	}

	now := time.Now().UTC().Unix()
	ops := make([]Operation, 0, len(changes))
	for _, c := range changes {
		op := Operation{
			Timestamp:   now,
			Action:      ActionModify,
			Path:        c.Path,
			ContentHash: HashContent(c.After),
		}
		if c.Created {
			op.Action = ActionCreate
		} else {
			op.OldContentHash = HashContent(c.Before)
			if err := WriteBlob(j.Dir, op.OldContentHash, []byte(c.Before)); err != nil {
				return fmt.Errorf("failed to store blob for %s: %w", c.Path, err)
			}
		}
		if err := WriteBlob(j.Dir, op.ContentHash, []byte(c.After)); err != nil {
			return fmt.Errorf("failed to store blob for %s: %w", c.Path, err)
		}
		ops = append(ops, op)
	}
	sort.Slice(ops, func(a, b int) bool { return ops[a].Path < ops[b].Path })

	if j.state.CurrentIndex < len(j.state.History)-1 {
		j.state.History = j.state.History[:j.state.CurrentIndex+1]
	}
	j.state.History = append(j.state.History, HistoryEntry{Operations: ops})
	j.state.CurrentIndex++
	return j.save()
}

func (j *Journal) OperationsToUndo() ([]Operation, error) {
	if j.state.CurrentIndex < 0 {
		return nil, nil
	}
	ops := j.state.History[j.state.CurrentIndex].Operations
	j.state.CurrentIndex--
	return ops, j.save()
}

func (j *Journal) OperationsToRedo() ([]Operation, error) {
	if j.state.CurrentIndex+1 >= len(j.state.History) {
		return nil, nil
	}
	j.state.CurrentIndex++
	return j.state.History[j.state.CurrentIndex].Operations, j.save()
}
