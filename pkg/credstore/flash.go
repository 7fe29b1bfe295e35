package credstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RegionSize is the size of the persistent byte region in bytes.
// The layout (see Store) addresses offsets up to 301+49, so 512 bytes
// matches the region the legacy firmware reserved.
const RegionSize = 512

// Flash is the logical non-volatile byte region the store persists to.
// Writes are buffered until Commit; a fault at any point is reported to
// the caller and never retried here.
type Flash interface {
	// ReadAt copies len(p) bytes starting at off into p.
	ReadAt(p []byte, off int) error

	// WriteAt buffers len(p) bytes starting at off.
	WriteAt(p []byte, off int) error

	// Commit flushes all buffered writes to the backing medium.
	Commit() error
}

// MemFlash is an in-memory Flash for tests and ephemeral deployments.
type MemFlash struct {
	mu   sync.Mutex
	data [RegionSize]byte

	// Commits counts successful Commit calls.
	Commits int

	// FailReads makes ReadAt return an error when set.
	FailReads bool

	// FailWrites makes WriteAt return an error when set.
	FailWrites bool

	// FailCommit makes Commit return an error when set.
	FailCommit bool
}

// NewMemFlash creates a zeroed in-memory flash region.
func NewMemFlash() *MemFlash {
	return &MemFlash{}
}

var errFault = fmt.Errorf("flash: simulated I/O fault")

// ReadAt copies bytes out of the in-memory region.
func (m *MemFlash) ReadAt(p []byte, off int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailReads {
		return errFault
	}
	if off < 0 || off+len(p) > RegionSize {
		return fmt.Errorf("flash: read [%d, %d) outside region", off, off+len(p))
	}
	copy(p, m.data[off:off+len(p)])
	return nil
}

// WriteAt copies bytes into the in-memory region.
func (m *MemFlash) WriteAt(p []byte, off int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites {
		return errFault
	}
	if off < 0 || off+len(p) > RegionSize {
		return fmt.Errorf("flash: write [%d, %d) outside region", off, off+len(p))
	}
	copy(m.data[off:off+len(p)], p)
	return nil
}

// Commit records the commit; in-memory writes are already visible.
func (m *MemFlash) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailCommit {
		return errFault
	}
	m.Commits++
	return nil
}

// Snapshot returns a copy of the full region, for test assertions.
func (m *MemFlash) Snapshot() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]byte, RegionSize)
	copy(out, m.data[:])
	return out
}

// FileFlash persists the byte region as a single file image. The image
// is held in memory and rewritten atomically (temp file + rename) on
// Commit, so a crash mid-commit leaves the previous image intact.
type FileFlash struct {
	mu   sync.Mutex
	path string
	data [RegionSize]byte
}

// NewFileFlash opens (or creates) a flash image at path. A missing or
// short file is treated as a zeroed region.
func NewFileFlash(path string) (*FileFlash, error) {
	f := &FileFlash{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("flash: open image: %w", err)
	}

	copy(f.data[:], data)
	return f, nil
}

// ReadAt copies bytes out of the cached image.
func (f *FileFlash) ReadAt(p []byte, off int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if off < 0 || off+len(p) > RegionSize {
		return fmt.Errorf("flash: read [%d, %d) outside region", off, off+len(p))
	}
	copy(p, f.data[off:off+len(p)])
	return nil
}

// WriteAt buffers bytes into the cached image.
func (f *FileFlash) WriteAt(p []byte, off int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if off < 0 || off+len(p) > RegionSize {
		return fmt.Errorf("flash: write [%d, %d) outside region", off, off+len(p))
	}
	copy(f.data[off:off+len(p)], p)
	return nil
}

// Commit atomically rewrites the image file.
func (f *FileFlash) Commit() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("flash: ensure dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".flash-*")
	if err != nil {
		return fmt.Errorf("flash: temp image: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(f.data[:]); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flash: write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("flash: close image: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("flash: replace image: %w", err)
	}
	return nil
}

// Compile-time interface satisfaction checks.
var (
	_ Flash = (*MemFlash)(nil)
	_ Flash = (*FileFlash)(nil)
)
