// Package blob stores raw audio assets on the local filesystem, one file
// per diary entry, named by entry id with the original extension preserved.
package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtension is used when an upload carries no usable extension.
const DefaultExtension = ".webm"

// Store writes and removes audio blobs under a single directory.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir. The directory is created lazily
// on the first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

// Staged is a blob written to its permanent path but still owned by the
// writer: the caller must either Promote it (the entry persisted) or
// Discard it (a later pipeline step failed). The write itself acquires the
// release obligation.
type Staged struct {
	path    string
	settled bool
}

// Path returns the blob's location on disk.
func (b *Staged) Path() string {
	return b.path
}

// Promote hands ownership of the blob to the persisted entry.
func (b *Staged) Promote() {
	b.settled = true
}

// Discard removes the blob unless it was promoted. Best-effort: a missing
// file is fine, any other failure is returned for logging.
func (b *Staged) Discard() error {
	if b.settled {
		return nil
	}
	b.settled = true
	if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("discard blob %s: %w", b.path, err)
	}
	return nil
}

// Stage writes data to "<dir>/<id><ext>" where ext comes from filename,
// falling back to DefaultExtension.
func (s *Store) Stage(id string, filename string, data []byte) (*Staged, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory %s: %w", s.dir, err)
	}

	path := filepath.Join(s.dir, id+ExtensionFor(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write blob %s: %w", path, err)
	}

	return &Staged{path: path}, nil
}

// Remove deletes a blob by path. A missing file is not an error, per the
// delete-cascade contract.
func (s *Store) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove blob %s: %w", path, err)
	}
	return nil
}

// ExtensionFor extracts a file extension from an upload filename,
// defaulting to DefaultExtension when absent.
func ExtensionFor(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || ext == "." {
		return DefaultExtension
	}
	return ext
}
