package workdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// ErrManagerClosed is returned when acquiring from a manager after CleanupAll.
var ErrManagerClosed = errors.New("workdir manager is closed")

// Manager issues scoped working directories and tracks them until released.
type Manager struct {
	mu     sync.Mutex
	root   string
	issued map[string]struct{}
	closed bool
}

// NewManager creates a manager rooted at the given directory. An empty root
// falls back to the OS temp directory. The root is created if missing.
func NewManager(root string) (*Manager, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workdir root %q: %w", root, err)
	}

	return &Manager{
		root:   root,
		issued: make(map[string]struct{}),
	}, nil
}

// TempDir creates a freshly named directory and returns its path together
// with a release function. The release is idempotent and removes the
// directory recursively.
func (m *Manager) TempDir() (string, func() error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", nil, ErrManagerClosed
	}

	path := filepath.Join(m.root, "work-"+uuid.NewString())
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", nil, fmt.Errorf("failed to create working directory %q: %w", path, err)
	}
	m.issued[path] = struct{}{}

	var once sync.Once
	release := func() error {
		var err error
		once.Do(func() {
			err = m.release(path)
		})
		return err
	}

	return path, release, nil
}

// CleanupAll force-releases every directory the manager has issued and not
// yet released, then closes the manager. Calling it again is a no-op.
func (m *Manager) CleanupAll() error {
	m.mu.Lock()
	outstanding := make([]string, 0, len(m.issued))
	for path := range m.issued {
		outstanding = append(outstanding, path)
	}
	m.issued = make(map[string]struct{})
	m.closed = true
	m.mu.Unlock()

	var errs []error
	for _, path := range outstanding {
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %q: %w", path, err))
		}
	}

	return errors.Join(errs...)
}

// Len returns the number of directories issued and not yet released.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.issued)
}

func (m *Manager) release(path string) error {
	m.mu.Lock()
	delete(m.issued, path)
	m.mu.Unlock()

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove working directory %q: %w", path, err)
	}
	return nil
}
