package sink

import (
	"context"
	"os"
	"path/filepath"
)

// FS writes frames as files under a root directory.
type FS struct {
	root string
}

// NewFS returns a store rooted at root, creating it if needed.
func NewFS(root string) (*FS, error) {
	if root == "" {
		root = "."
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FS{root: root}, nil
}

// Root returns the directory keys are resolved against.
func (s *FS) Root() string { return s.root }

func (s *FS) pathFor(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(k)), nil
}

// Prepare creates the directory for prefix.
func (s *FS) Prepare(_ context.Context, prefix string) error {
	dir, err := s.pathFor(prefix)
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// Put writes data to key, replacing any previous file.
func (s *FS) Put(_ context.Context, key string, data []byte) error {
	p, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}
