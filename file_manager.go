package fdiff

import "fmt"

// FileManager replays journal operations against a storage.
type FileManager struct {
	store    Storage
	stateDir string
}

func NewFileManager(store Storage, stateDir string) *FileManager {
	return &FileManager{store: store, stateDir: stateDir}
}

func (m *FileManager) currentHash(path string) string {
	if !m.store.Exists(path) {
		return ""
	}
	content, err := m.store.Read(path)
	if err != nil {
		return ""
	}
	return HashContent(content)
}

func (m *FileManager) Undo(ops []Operation) Summary {
	var s Summary
	for _, op := range ops {
		if m.undoFile(op) != nil {
			s.Failed = append(s.Failed, op.Path)
			continue
		}

		switch op.Action {
		case ActionCreate:
			s.Deleted = append(s.Deleted, op.Path)
		case ActionModify:
			s.Modified = append(s.Modified, op.Path)
		}
	}
	return s
}

func (m *FileManager) undoFile(op Operation) error {
	if m.currentHash(op.Path) != op.ContentHash {
		return fmt.Errorf("file changed since it was patched")
	}

	if op.Action == ActionCreate {
		remover, ok := m.store.(Remover)
		if !ok {
			return fmt.Errorf("storage cannot remove files")
		}
		return remover.Remove(op.Path)
	}

	content, err := ReadBlob(m.stateDir, op.OldContentHash)
	if err != nil {
		return fmt.Errorf("missing blob: %w", err)
	}
	return m.store.Write(op.Path, string(content))
}

func (m *FileManager) Redo(ops []Operation) Summary {
	var s Summary
	for _, op := range ops {
		if m.redoFile(op) != nil {
			s.Failed = append(s.Failed, op.Path)
			continue
		}

		switch op.Action {
		case ActionCreate:
			s.Created = append(s.Created, op.Path)
		case ActionModify:
			s.Modified = append(s.Modified, op.Path)
		}
	}
	return s
}

func (m *FileManager) redoFile(op Operation) error {
	if m.currentHash(op.Path) != op.OldContentHash {
		return fmt.Errorf("file changed since it was undone")
	}

	content, err := ReadBlob(m.stateDir, op.ContentHash)
	if err != nil {
		return fmt.Errorf("missing blob: %w", err)
	}

	if op.Action == ActionCreate {
		if err := m.store.MkdirParents(op.Path); err != nil {
			return err
		}
	}
	return m.store.Write(op.Path, string(content))
}
