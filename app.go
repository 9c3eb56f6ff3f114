package fdiff

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// DefaultJobs is how many files are patched concurrently.
const DefaultJobs = 4

var ErrIncomplete = errors.New("not all patches were applied")

type Config struct {
	Paste      bool
	DiffFile   string
	Threshold  float64
	DryRun     bool
	Extensions []string
	Files      []string
	Jobs       int
	Nvim       bool
	Undo       bool
	Redo       bool
	Verbose    bool
	// WorkDir is where relative patch filenames resolve. Empty means the
	// current directory.
	WorkDir string
	// NoHistory skips the undo journal.
	NoHistory bool
}

// DefaultConfig returns the configuration used when no flags are given.
func DefaultConfig() *Config {
	return &Config{Threshold: DefaultThreshold, Jobs: DefaultJobs}
}

type App struct {
	cfg            *Config
	pathResolver   *PathResolver
	store          Storage
	journal        *Journal
	sourceProvider *SourceProvider
	closer         func()
}

type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string { return e.Err.Error() }

func (e *DetailedError) Unwrap() error { return e.Err }

// Result is what one Execute produced: a patch report, or an undo/redo
// summary.
type Result struct {
	Report  *Report
	Summary *Summary
}

func NewApp(cfg *Config) (*App, error) {
	pr, err := NewPathResolver(cfg.WorkDir)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:            cfg,
		pathResolver:   pr,
		sourceProvider: NewSourceProvider(cfg.Paste, cfg.DiffFile),
		closer:         func() {},
	}

	if cfg.Nvim {
		ns, err := NewNvimStorage(pr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to neovim: %w", err)
		}
		a.store = ns
		a.closer = ns.Close
		cfg.Jobs = 1
	} else {
		a.store = NewOSStorage(pr)
	}

	if !cfg.NoHistory && !(cfg.DryRun && !cfg.Undo && !cfg.Redo) {
		j, err := OpenJournal(FindProjectRoot(pr.wd))
		if err != nil {
			a.closer()
			return nil, err
		}
		a.journal = j
	}
	return a, nil
}

// SetSourceProvider replaces where diff text is read from.
func (a *App) SetSourceProvider(sp *SourceProvider) { a.sourceProvider = sp }

func (a *App) Close() { a.closer() }

func (a *App) Execute(ctx context.Context) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DetailedError{Err: fmt.Errorf("panic: %v", r), Stack: debug.Stack()}
		}
	}()

	switch {
	case a.cfg.Undo:
		s, err := a.undoLastOperation()
		return Result{Summary: &s}, err
	case a.cfg.Redo:
		s, err := a.redoLastOperation()
		return Result{Summary: &s}, err
	default:
		r, err := a.processContent(ctx)
		return Result{Report: &r}, err
	}
}

func (a *App) processContent(ctx context.Context) (Report, error) {
	c, err := a.sourceProvider.GetContent()
	if err != nil {
		return Report{}, err
	}
	return a.processAndApply(ctx, c)
}

func (a *App) processAndApply(ctx context.Context, content string) (Report, error) {
	plan, err := CreatePlan(content, PlanOptions{Extensions: a.cfg.Extensions, Files: a.cfg.Files})
	if err != nil {
		return Report{}, err
	}
	for _, d := range plan.Diagnostics {
		Warning("%s", d)
	}

	if a.cfg.Verbose {
		Info("Parsed %d block(s) for %d file(s)", plan.Blocks(), len(plan.Batches))
	}

	report := Report{Diagnostics: plan.Diagnostics, Filtered: plan.Filtered, DryRun: a.cfg.DryRun}
	if len(plan.Batches) == 0 {
		report.Message = "Nothing to do"
		return report, nil
	}

	if a.journal != nil && !a.cfg.DryRun {
		if err := a.journal.Sync(a.store); err != nil {
			Warning("failed to sync history: %v", err)
		}
	}

	opts := ApplyOptions{Threshold: a.cfg.Threshold, DryRun: a.cfg.DryRun}
	results, err := RunBatches(ctx, a.store, plan.Batches, opts, a.cfg.Jobs)
	if err != nil {
		return report, err
	}
	report.Batches = results

	if a.cfg.Verbose {
		a.logLocations(results)
	}
	a.recordHistory(results)
	return report, nil
}

// RunBatches applies each batch with at most jobs files in flight. Results
// keep the order of batches.
func RunBatches(ctx context.Context, store Storage, batches []FileBatch, opts ApplyOptions, jobs int) ([]BatchResult, error) {
	if jobs <= 0 {
		jobs = DefaultJobs
	}
	results := make([]BatchResult, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, batch := range batches {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = ApplyBatch(store, batch, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (a *App) logLocations(results []BatchResult) {
	for _, r := range results {
		for _, o := range r.Outcomes {
			if o.Method == nil {
				continue
			}
			Info("%s: chunk #%d located at [%d:%d] via %s", r.Filename, o.Index+1, o.Start, o.End, o.Method)
		}
	}
}

func (a *App) recordHistory(results []BatchResult) {
	if a.journal == nil {
		return
	}

	var changes []Change
	for _, r := range results {
		if !r.Written {
			continue
		}
		changes = append(changes, Change{
			Path:    a.pathResolver.Resolve(r.Filename),
			Before:  r.Before,
			After:   r.After,
			Created: r.Created,
		})
	}
	if err := a.journal.Record(changes); err != nil {
		Warning("failed to record history: %v", err)
	}
}

func (a *App) undoLastOperation() (Summary, error) {
	if a.journal == nil {
		return Summary{}, fmt.Errorf("history is disabled")
	}
	ops, err := a.journal.OperationsToUndo()
	if err != nil {
		return Summary{}, fmt.Errorf("failed to update history: %w", err)
	}
	if len(ops) == 0 {
		return Summary{Message: "Nothing to undo"}, nil
	}
	s := NewFileManager(a.store, a.journal.Dir).Undo(ops)
	s.Message = "Undone"
	a.relativizeSummaryPaths(&s)
	return s, nil
}

func (a *App) redoLastOperation() (Summary, error) {
	if a.journal == nil {
		return Summary{}, fmt.Errorf("history is disabled")
	}
	ops, err := a.journal.OperationsToRedo()
	if err != nil {
		return Summary{}, fmt.Errorf("failed to update history: %w", err)
	}
	if len(ops) == 0 {
		return Summary{Message: "Nothing to redo"}, nil
	}
	s := NewFileManager(a.store, a.journal.Dir).Redo(ops)
	s.Message = "Redone"
	a.relativizeSummaryPaths(&s)
	return s, nil
}

func (a *App) relativizeSummaryPaths(s *Summary) {
	relList := func(paths []string) []string {
		var res []string
		for _, p := range paths {
			res = append(res, a.pathResolver.Rel(p))
		}
		return res
	}
	s.Created = relList(s.Created)
	s.Modified = relList(s.Modified)
	s.Deleted = relList(s.Deleted)
	s.Failed = relList(s.Failed)
}
