package fdiff

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/neovim/go-client/nvim"
)

const undoDir = "~/.local/state/nvim/undo/"

// NvimStorage writes through a Neovim instance so that open buffers and
// their undo trees follow the patched files. Reads go to disk.
type NvimStorage struct {
	*OSStorage
	v             *nvim.Nvim
	isSelfStarted bool
	cmd           *exec.Cmd
	socketPath    string
}

// NewNvimStorage attaches to $NVIM_LISTEN_ADDRESS when set, otherwise it
// starts a headless instance that Close shuts down.
func NewNvimStorage(resolver *PathResolver) (*NvimStorage, error) {
	base := NewOSStorage(resolver)
	if addr := os.Getenv("NVIM_LISTEN_ADDRESS"); addr != "" {
		v, err := nvim.Dial(addr)
		if err == nil {
			return &NvimStorage{OSStorage: base, v: v}, nil
		}
	}

	tmpDir, err := os.MkdirTemp("", "fdiff-nvim-")
	if err != nil {
		return nil, err
	}
	socketPath := filepath.Join(tmpDir, "nvim.sock")

	cmd := exec.Command("nvim", "--headless", "--clean", "--listen", socketPath)
	if err := cmd.Start(); err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("failed to start nvim: %w", err)
	}

	for i := 0; i < 20; i++ {
		if _, err := os.Stat(socketPath); err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	v, err := nvim.Dial(socketPath)
	if err != nil {
		cmd.Process.Kill()
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("failed to connect to nvim: %w", err)
	}

	s := &NvimStorage{OSStorage: base, v: v, isSelfStarted: true, cmd: cmd, socketPath: socketPath}
	s.configureTempInstance()
	return s, nil
}

func (s *NvimStorage) configureTempInstance() {
	home, _ := os.UserHomeDir()
	expandedUndoDir := strings.Replace(undoDir, "~", home, 1)
	os.MkdirAll(expandedUndoDir, 0755)

	b := s.v.NewBatch()
	b.Command("set undofile")
	b.Command(fmt.Sprintf("set undodir=%s", expandedUndoDir))
	b.Command("set noswapfile")
	b.Execute()
}

func (s *NvimStorage) Close() {
	if s.v != nil {
		s.v.Close()
	}
	if s.isSelfStarted && s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
		s.cmd.Wait()
		os.RemoveAll(filepath.Dir(s.socketPath))
	}
}

// bufferLines splits content the way Neovim stores it: without the final
// newline, which 'endofline' represents instead.
func bufferLines(content string) ([][]byte, bool) {
	eol := strings.HasSuffix(content, "\n")
	content = strings.TrimSuffix(content, "\n")
	parts := strings.Split(content, "\n")
	lines := make([][]byte, len(parts))
	for i, p := range parts {
		lines[i] = []byte(p)
	}
	return lines, eol
}

// Write loads the file into a buffer, replaces its lines and saves it.
func (s *NvimStorage) Write(path, content string) error {
	abs := s.resolver.Resolve(path)
	lines, eol := bufferLines(content)

	b := s.v.NewBatch()
	b.Command(fmt.Sprintf("edit! %s", fnameEscape(abs)))
	b.SetBufferLines(0, 0, -1, true, lines)
	if eol {
		b.Command("setlocal endofline fixendofline")
	} else {
		b.Command("setlocal noendofline nofixendofline")
	}
	b.Command("write")
	if err := b.Execute(); err != nil {
		return fmt.Errorf("nvim failed to write %s: %w", path, err)
	}
	return nil
}

// Remove deletes the file and wipes any buffer still showing it.
func (s *NvimStorage) Remove(path string) error {
	if err := s.OSStorage.Remove(path); err != nil {
		return err
	}
	abs := s.resolver.Resolve(path)
	_ = s.v.Command(fmt.Sprintf("silent! bwipeout! %s", fnameEscape(abs)))
	return nil
}

func fnameEscape(path string) string {
	return strings.NewReplacer(" ", `\ `, "%", `\%`, "#", `\#`).Replace(path)
}
