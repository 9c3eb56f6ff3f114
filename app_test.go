package fdiff

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePatch = `#>>>>> a.txt
` + "```" + `
foo
` + "```" + `
#=====
` + "```" + `
baz
` + "```" + `
#<<<<< end

#>>>>> sub/c.txt
` + "```" + `
brand new
` + "```" + `
#<<<<< end
`

func captureConsole(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Console
	Console = &buf
	t.Cleanup(func() { Console = prev })
	return &buf
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func newTestApp(t *testing.T, dir string, mutate func(*Config)) *App {
	t.Helper()
	cfg := DefaultConfig()
	cfg.WorkDir = dir
	cfg.DiffFile = filepath.Join(dir, "patch.txt")
	if mutate != nil {
		mutate(cfg)
	}
	app, err := NewApp(cfg)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func TestAppApplyUndoRedo(t *testing.T) {
	captureConsole(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "foo\nbar\n")
	writeFile(t, filepath.Join(dir, "patch.txt"), samplePatch)

	res, err := newTestApp(t, dir, nil).Execute(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Report)
	assert.True(t, res.Report.Complete())
	assert.Equal(t, 2, res.Report.Applied())
	assert.Equal(t, "baz\nbar\n", readFile(t, filepath.Join(dir, "a.txt")))
	assert.Equal(t, "brand new\n", readFile(t, filepath.Join(dir, "sub", "c.txt")))

	res, err = newTestApp(t, dir, func(c *Config) { c.Undo = true }).Execute(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Summary)
	assert.Equal(t, "Undone", res.Summary.Message)
	assert.Equal(t, []string{"a.txt"}, res.Summary.Modified)
	assert.Equal(t, []string{filepath.Join("sub", "c.txt")}, res.Summary.Deleted)
	assert.Equal(t, "foo\nbar\n", readFile(t, filepath.Join(dir, "a.txt")))
	assert.NoFileExists(t, filepath.Join(dir, "sub", "c.txt"))

	res, err = newTestApp(t, dir, func(c *Config) { c.Redo = true }).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Redone", res.Summary.Message)
	assert.Equal(t, "baz\nbar\n", readFile(t, filepath.Join(dir, "a.txt")))
	assert.FileExists(t, filepath.Join(dir, "sub", "c.txt"))

	res, err = newTestApp(t, dir, func(c *Config) { c.Redo = true }).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Nothing to redo", res.Summary.Message)
}

func TestAppDryRunWritesNothing(t *testing.T) {
	captureConsole(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "foo\nbar\n")
	writeFile(t, filepath.Join(dir, "patch.txt"), samplePatch)

	res, err := newTestApp(t, dir, func(c *Config) { c.DryRun = true }).Execute(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Report)
	assert.True(t, res.Report.DryRun)
	require.Len(t, res.Report.Batches, 2)
	assert.Contains(t, res.Report.Batches[0].Preview, "+baz\n")
	assert.Contains(t, res.Report.Batches[1].Preview, "--- /dev/null\n")

	assert.Equal(t, "foo\nbar\n", readFile(t, filepath.Join(dir, "a.txt")))
	assert.NoFileExists(t, filepath.Join(dir, "sub", "c.txt"))
	assert.NoDirExists(t, filepath.Join(dir, stateDirName))
}

func TestAppReportsDiagnosticsAndFilters(t *testing.T) {
	console := captureConsole(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "foo\nbar\n")
	writeFile(t, filepath.Join(dir, "patch.txt"), "#>>>>> broken.txt\noops\n"+samplePatch)

	app := newTestApp(t, dir, func(c *Config) {
		c.Extensions = []string{".txt"}
		c.Files = []string{"a.txt"}
		c.Verbose = true
	})
	res, err := app.Execute(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Report.Diagnostics, 1)
	assert.Equal(t, 1, res.Report.Filtered)
	require.Len(t, res.Report.Batches, 1)
	assert.Equal(t, "a.txt", res.Report.Batches[0].Filename)
	assert.Contains(t, console.String(), "broken.txt")
	assert.Contains(t, console.String(), "a.txt: chunk #1 located at [0:4] via verbatim")
}

func TestAppNothingToDo(t *testing.T) {
	captureConsole(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "patch.txt"), "just some prose\n")

	res, err := newTestApp(t, dir, nil).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Nothing to do", res.Report.Message)
	assert.True(t, res.Report.Complete())
}

func TestAppNoContent(t *testing.T) {
	dir := t.TempDir()
	app := newTestApp(t, dir, func(c *Config) { c.NoHistory = true })
	app.SetSourceProvider(&SourceProvider{})

	_, err := app.Execute(context.Background())
	require.ErrorIs(t, err, ErrNoContent)
}

func TestAppRecoversPanics(t *testing.T) {
	dir := t.TempDir()
	app := newTestApp(t, dir, func(c *Config) { c.NoHistory = true })
	app.SetSourceProvider(&SourceProvider{
		Paste:     true,
		Clipboard: func() (string, error) { panic("clipboard exploded") },
	})

	_, err := app.Execute(context.Background())
	var de *DetailedError
	require.ErrorAs(t, err, &de)
	assert.Contains(t, de.Error(), "clipboard exploded")
	assert.NotEmpty(t, de.Stack)
}

func TestRunBatchesKeepsOrder(t *testing.T) {
	files := map[string]string{}
	var batches []FileBatch
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		files[name] = "old " + name + "\n"
		batches = append(batches, FileBatch{Filename: name, Blocks: []PatchBlock{
			{Filename: name, Original: "old " + name + "\n", New: "new " + name + "\n"},
		}})
	}
	store := NewMemoryStorage(files)

	results, err := RunBatches(context.Background(), store, batches, ApplyOptions{Threshold: DefaultThreshold}, 3)
	require.NoError(t, err)
	require.Len(t, results, len(batches))
	for i, r := range results {
		assert.Equal(t, batches[i].Filename, r.Filename)
		assert.Equal(t, 1, r.AppliedCount())
	}
	for name, content := range store.Files() {
		assert.Equal(t, "new "+name+"\n", content)
	}
}

func TestRunBatchesHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batches := []FileBatch{{Filename: "a", Blocks: []PatchBlock{{Filename: "a", New: "x"}}}}
	_, err := RunBatches(ctx, NewMemoryStorage(nil), batches, ApplyOptions{}, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestAppAppliesEditsToOneFileNamedTwoWays(t *testing.T) {
	captureConsole(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.go"), "alpha\nbeta\n")
	patch := "#>>>>> a.go\n```\nalpha\n#=====\nALPHA\n```\n#<<<<< end\n" +
		"#>>>>> ./a.go\n```\nbeta\n#=====\nBETA\n```\n#<<<<< end\n"
	writeFile(t, filepath.Join(dir, "patch.txt"), patch)

	res, err := newTestApp(t, dir, func(c *Config) { c.Jobs = 4 }).Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Report.Batches, 1)
	assert.True(t, res.Report.Complete())
	assert.Equal(t, "ALPHA\nBETA\n", readFile(t, filepath.Join(dir, "a.go")))
}
