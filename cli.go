package fdiff

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	envThreshold = "FDIFF_THRESHOLD"
	envJobs      = "FDIFF_JOBS"
)

type CLIConfig struct {
	Paste      bool
	Threshold  float64
	DryRun     bool
	Extensions []string
	Files      []string
	Jobs       int
	Nvim       bool
	Undo       bool
	Redo       bool
	Verbose    bool
	NoColor    bool
	Completion string
}

// loadEnvDefaults reads FDIFF_* defaults from the environment and an
// optional .env file in the working directory.
func loadEnvDefaults() (*CLIConfig, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := &CLIConfig{Threshold: DefaultThreshold, Jobs: DefaultJobs}
	if v := strings.TrimSpace(os.Getenv(envThreshold)); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", envThreshold, v, err)
		}
		cfg.Threshold = t
	}
	if v := strings.TrimSpace(os.Getenv(envJobs)); v != "" {
		j, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", envJobs, v, err)
		}
		cfg.Jobs = j
	}
	return cfg, nil
}

// NewRootCmd builds the fdiff command. Defaults come from the environment
// when it is built.
func NewRootCmd() *cobra.Command {
	cfg, envErr := loadEnvDefaults()
	if envErr != nil {
		cfg = &CLIConfig{Threshold: DefaultThreshold, Jobs: DefaultJobs}
	}

	cmd := &cobra.Command{
		Use:   "fdiff [diff_file]",
		Short: "Apply fuzzy patch blocks to files.",
		Long: `Apply patch blocks to files, tolerating drift between the quoted
original text and the current file content.

The blocks are read from diff_file ("-" for stdin), from piped stdin, or
from the clipboard with --paste.

Example: pbpaste | fdiff -n`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if envErr != nil {
				return envErr
			}
			if cfg.Completion != "" {
				return handleCompletion(cmd, cfg.Completion)
			}
			if err := validate(cfg); err != nil {
				return err
			}
			if cfg.NoColor {
				DisableColor()
			}

			appCfg := &Config{
				Paste:      cfg.Paste,
				Threshold:  cfg.Threshold,
				DryRun:     cfg.DryRun,
				Extensions: normalizeExtensions(cfg.Extensions),
				Files:      cfg.Files,
				Jobs:       cfg.Jobs,
				Nvim:       cfg.Nvim,
				Undo:       cfg.Undo,
				Redo:       cfg.Redo,
				Verbose:    cfg.Verbose,
			}
			if len(args) == 1 {
				appCfg.DiffFile = args[0]
			}

			app, err := NewApp(appCfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer app.Close()
			app.sourceProvider.Stdin = cmd.InOrStdin()

			res, err := app.Execute(cmd.Context())
			if errors.Is(err, ErrNoContent) {
				_ = cmd.Usage()
				return err
			}
			if err != nil {
				return err
			}
			return printResult(cmd, res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Completion, "completion", "", "Generate completion script (bash, zsh, fish, powershell)")
	f.BoolVarP(&cfg.Paste, "paste", "p", false, "Read the diff from the clipboard")
	f.Float64VarP(&cfg.Threshold, "threshold", "t", cfg.Threshold, "Minimum similarity for fuzzy matches, between 0 and 1")
	f.BoolVarP(&cfg.DryRun, "dry-run", "n", false, "Print a unified diff instead of writing files")
	f.StringSliceVarP(&cfg.Extensions, "extension", "e", []string{}, "Only patch files with these extensions")
	f.StringSliceVarP(&cfg.Files, "file", "f", []string{}, "Only patch these files")
	f.IntVarP(&cfg.Jobs, "jobs", "j", cfg.Jobs, "Number of files patched in parallel")
	f.BoolVar(&cfg.Nvim, "nvim", false, "Write through Neovim buffers")
	f.BoolVarP(&cfg.Undo, "undo", "u", false, "Undo the last run")
	f.BoolVarP(&cfg.Redo, "redo", "r", false, "Redo the last undone run")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Log where each patch was located")
	f.BoolVar(&cfg.NoColor, "no-color", false, "Disable coloured output")
	cmd.MarkFlagsMutuallyExclusive("undo", "redo")

	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	return cmd
}

func validate(cfg *CLIConfig) error {
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %g", cfg.Threshold)
	}
	if cfg.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", cfg.Jobs)
	}
	return nil
}

func printResult(cmd *cobra.Command, res Result) error {
	if res.Summary != nil {
		fmt.Fprint(cmd.OutOrStdout(), FormatSummary(*res.Summary))
		return nil
	}

	report := res.Report
	for _, b := range report.Batches {
		if b.Preview != "" {
			fmt.Fprint(cmd.OutOrStdout(), b.Preview)
		}
	}
	fmt.Fprint(cmd.ErrOrStderr(), FormatReport(*report))
	if !report.Complete() {
		return ErrIncomplete
	}
	return nil
}

func handleCompletion(cmd *cobra.Command, shell string) error {
	switch shell {
	case "bash":
		return cmd.Root().GenBashCompletion(cmd.OutOrStdout())
	case "zsh":
		return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
	case "fish":
		return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
	case "powershell":
		return cmd.Root().GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
	default:
		return fmt.Errorf("unsupported shell for completion: %s", shell)
	}
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if ext[0] != '.' {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

func Execute() error {
	return NewRootCmd().Execute()
}
