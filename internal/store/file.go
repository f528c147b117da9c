package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"

	"lightmixer/internal/mathx"
	"lightmixer/internal/persist"
)

// fileRecord is the on-disk form of one namespace.
type fileRecord struct {
	Enabled    *bool `yaml:"pwm_en"`
	Brightness *int  `yaml:"pwm_val"`
}

// File stores state in a YAML document. Commits write a temporary file,
// fsync it and rename it over the target, so a crash leaves either the old
// or the new document. An exclusive flock on a sidecar lock file keeps a
// second process from opening the same store.
type File struct {
	path      string
	namespace string
	lock      *os.File

	mu sync.Mutex
}

// OpenFile opens (without creating) the YAML store at path and takes its lock.
func OpenFile(path, namespace string) (*File, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	lock, err := os.OpenFile(path+".lock", os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open store lock: %w", err)
	}
	if err := unix.Flock(int(lock.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = lock.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("lock store: %w", err)
	}
	return &File{path: path, namespace: namespace, lock: lock}, nil
}

// Path returns the document path.
func (f *File) Path() string { return f.path }

func (f *File) readDoc() (map[string]fileRecord, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	doc := map[string]fileRecord{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}
	return doc, nil
}

// Load returns the stored state, or persist.ErrNotFound when the document
// or either key is missing.
func (f *File) Load(ctx context.Context) (persist.LedState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readDoc()
	if errors.Is(err, fs.ErrNotExist) {
		return persist.LedState{}, persist.ErrNotFound
	}
	if err != nil {
		return persist.LedState{}, fmt.Errorf("load state: %w", err)
	}
	rec, ok := doc[f.namespace]
	if !ok || rec.Enabled == nil || rec.Brightness == nil {
		return persist.LedState{}, persist.ErrNotFound
	}
	return persist.LedState{
		Enabled:    *rec.Enabled,
		Brightness: mathx.ClampLevel(*rec.Brightness),
	}, nil
}

// Commit replaces this namespace's record, preserving other namespaces.
func (f *File) Commit(ctx context.Context, s persist.LedState) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readDoc()
	if errors.Is(err, fs.ErrNotExist) {
		doc = map[string]fileRecord{}
	} else if err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	enabled, brightness := s.Enabled, int(s.Brightness)
	doc[f.namespace] = fileRecord{Enabled: &enabled, Brightness: &brightness}
	return f.writeDoc(doc)
}

// Erase removes this namespace's record.
func (f *File) Erase(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readDoc()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("erase state: %w", err)
	}
	if _, ok := doc[f.namespace]; !ok {
		return nil
	}
	delete(doc, f.namespace)
	return f.writeDoc(doc)
}

func (f *File) writeDoc(doc map[string]fileRecord) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return syncDir(dir)
}

func syncDir(dir string) error {
	fd, err := unix.Open(dir, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		return fmt.Errorf("open directory: %w", err)
	}
	defer unix.Close(fd)
	if err := unix.Fsync(fd); err != nil {
		return fmt.Errorf("sync directory: %w", err)
	}
	return nil
}

// Close releases the lock.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lock == nil {
		return nil
	}
	_ = unix.Flock(int(f.lock.Fd()), unix.LOCK_UN)
	err := f.lock.Close()
	f.lock = nil
	return err
}
