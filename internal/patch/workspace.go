// Package patch applies candidate function bodies to source files and
// returns the tree to its pristine state afterwards.
package patch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Target names the functions to replace in one file.
type Target struct {
	File  string   `yaml:"file" json:"file" validate:"required"`
	Names []string `yaml:"names" json:"names" validate:"required,min=1"`
}

// Workspace remembers the pristine content of every file it touches and
// the files it created, so the tree can always be put back.
type Workspace struct {
	root     string
	pristine map[string][]byte
	created  map[string]struct{}
	mu       sync.Mutex
	logger   *slog.Logger
}

// NewWorkspace creates a workspace rooted at root.
func NewWorkspace(root string, logger *slog.Logger) *Workspace {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{
		root:     root,
		pristine: make(map[string][]byte),
		created:  make(map[string]struct{}),
		logger:   logger,
	}
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string {
	return w.root
}

func (w *Workspace) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(w.root, path)
}

// Read returns the current content of path.
func (w *Workspace) Read(path string) ([]byte, error) {
	return os.ReadFile(w.abs(path))
}

// Pristine returns the content path had when the workspace first touched it.
// Untouched files are read from disk.
func (w *Workspace) Pristine(path string) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pristineLocked(w.abs(path))
}

func (w *Workspace) pristineLocked(abs string) ([]byte, error) {
	if content, ok := w.pristine[abs]; ok {
		return content, nil
	}
	if _, ok := w.created[abs]; ok {
		return nil, os.ErrNotExist
	}
	return os.ReadFile(abs)
}

// Write atomically replaces path with content, recording the pristine
// content on first touch.
func (w *Workspace) Write(path string, content []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	abs := w.abs(path)
	if err := w.trackLocked(abs); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := writeAtomic(abs, content); err != nil {
		return err
	}
	w.logger.Debug("wrote file", "path", abs, "size", len(content))
	return nil
}

func (w *Workspace) trackLocked(abs string) error {
	if _, ok := w.pristine[abs]; ok {
		return nil
	}
	if _, ok := w.created[abs]; ok {
		return nil
	}
	existing, err := os.ReadFile(abs)
	switch {
	case err == nil:
		w.pristine[abs] = existing
	case errors.Is(err, os.ErrNotExist):
		w.created[abs] = struct{}{}
	default:
		return fmt.Errorf("failed to snapshot %s: %w", abs, err)
	}
	return nil
}

// Restore returns the given paths, or every touched path when none are
// given, to their pristine content. Files the workspace created are removed.
func (w *Workspace) Restore(paths ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	targets := make([]string, 0, len(paths))
	if len(paths) == 0 {
		for p := range w.pristine {
			targets = append(targets, p)
		}
		for p := range w.created {
			targets = append(targets, p)
		}
	} else {
		for _, p := range paths {
			targets = append(targets, w.abs(p))
		}
	}
	sort.Strings(targets)

	var errs []error
	for _, abs := range targets {
		if content, ok := w.pristine[abs]; ok {
			current, err := os.ReadFile(abs)
			if err == nil && string(current) == string(content) {
				continue
			}
			if err := writeAtomic(abs, content); err != nil {
				errs = append(errs, fmt.Errorf("%w: %s: %v", ErrRestore, abs, err))
				continue
			}
			w.logger.Debug("restored file", "path", abs)
			continue
		}
		if _, ok := w.created[abs]; ok {
			if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, fmt.Errorf("%w: remove %s: %v", ErrRestore, abs, err))
				continue
			}
			delete(w.created, abs)
			w.logger.Debug("removed created file", "path", abs)
		}
	}
	return errors.Join(errs...)
}

// Commit forgets the pristine content of paths, making their current
// content the new baseline. Restore will no longer touch them.
func (w *Workspace) Commit(paths ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range paths {
		abs := w.abs(p)
		delete(w.pristine, abs)
		delete(w.created, abs)
	}
}

// Touched returns the paths the workspace currently tracks.
func (w *Workspace) Touched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.pristine)+len(w.created))
	for p := range w.pristine {
		out = append(out, p)
	}
	for p := range w.created {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Apply writes candidate into every target file. The first target must
// receive at least one replacement; the others may be left unchanged when
// the candidate does not redefine any of their functions.
func (w *Workspace) Apply(p Patcher, targets []Target, candidate string) error {
	for i, t := range targets {
		original, err := w.Pristine(t.File)
		if err != nil {
			return &PatchError{File: t.File, Err: err}
		}
		patched, err := p.Apply(original, t.Names, candidate)
		if err != nil {
			if i > 0 && errors.Is(err, ErrNoReplacement) {
				continue
			}
			return &PatchError{File: t.File, Err: err}
		}
		if err := w.Write(t.File, patched); err != nil {
			return &PatchError{File: t.File, Err: err}
		}
	}
	return nil
}

// WithPatch applies candidate to targets, runs fn, and restores every
// target file afterwards, including when fn panics.
func (w *Workspace) WithPatch(p Patcher, targets []Target, candidate string, fn func() error) (err error) {
	paths := make([]string, 0, len(targets))
	for _, t := range targets {
		paths = append(paths, t.File)
	}
	defer func() {
		if rerr := w.Restore(paths...); rerr != nil {
			w.logger.Error("failed to restore patched files", "error", rerr)
			err = errors.Join(err, rerr)
		}
	}()

	if err := w.Apply(p, targets, candidate); err != nil {
		return err
	}
	return fn()
}

func writeAtomic(path string, content []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	tmp := path + ".llm-optimizer.tmp"
	if err := os.WriteFile(tmp, content, mode); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
