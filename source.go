package fdiff

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
)

var ErrNoContent = errors.New("no diff content provided")

// SourceProvider picks where the diff text comes from: the clipboard when
// Paste is set, then Path ("-" is stdin), then piped stdin.
type SourceProvider struct {
	Paste bool
	Path  string
	Stdin io.Reader
	// Piped reports whether stdin is a pipe or file rather than a terminal.
	Piped func() bool
	// Clipboard reads the system clipboard.
	Clipboard func() (string, error)
}

func NewSourceProvider(paste bool, path string) *SourceProvider {
	return &SourceProvider{
		Paste:     paste,
		Path:      path,
		Stdin:     os.Stdin,
		Piped:     stdinPiped,
		Clipboard: clipboard.ReadAll,
	}
}

func stdinPiped() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

func (sp *SourceProvider) GetContent() (string, error) {
	var (
		content string
		err     error
	)
	switch {
	case sp.Paste:
		content, err = sp.Clipboard()
		if err != nil {
			return "", fmt.Errorf("failed to read clipboard: %w", err)
		}
	case sp.Path == "-":
		content, err = readAll(sp.Stdin)
	case sp.Path != "":
		var b []byte
		b, err = os.ReadFile(sp.Path)
		if err != nil {
			return "", fmt.Errorf("failed to read diff file: %w", err)
		}
		content = string(b)
	case sp.Piped != nil && sp.Piped():
		content, err = readAll(sp.Stdin)
	default:
		return "", ErrNoContent
	}
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(content) == "" {
		return "", ErrNoContent
	}
	return content, nil
}

func readAll(r io.Reader) (string, error) {
	c, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(c), nil
}
