// Package registry keeps the open workbooks of a process behind integer
// handles.
//
// The handle table is guarded by one mutex and each workbook by its own, so
// calls on different handles run in parallel while calls on the same handle
// take turns. File reads and writes happen under the workbook lock only.
package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/models"
	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/ooxml"
)

// ErrInvalidHandle indicates a handle that was never issued or is closed.
var ErrInvalidHandle = errors.New("invalid workbook handle")

// ErrFileNotFound indicates a workbook file that does not exist or cannot
// be read.
var ErrFileNotFound = errors.New("file not found")

// ErrWrite indicates a failure storing an encoded workbook.
var ErrWrite = errors.New("write failed")

// ErrEncode indicates a workbook model that cannot be serialized.
var ErrEncode = errors.New("serialization failed")

// Handle identifies an open workbook. Zero is never issued.
type Handle int64

// Mode tells Open what to do when the file does not exist.
type Mode int

const (
	// MustExist fails with ErrFileNotFound for a missing file.
	MustExist Mode = iota
	// CreateIfMissing starts a new workbook with one empty sheet.
	CreateIfMissing
)

// Registry owns open workbooks.
type Registry struct {
	log *zap.Logger

	mu      sync.Mutex
	next    Handle
	entries map[Handle]*entry
}

type entry struct {
	mu     sync.Mutex
	doc    *ooxml.Document
	closed bool
}

// New returns an empty registry logging to log; nil disables logging.
func New(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{log: log, entries: make(map[Handle]*entry)}
}

// Open reads the workbook at path and returns its handle.
func (r *Registry) Open(path string, mode Mode) (Handle, error) {
	doc, created, err := load(path, mode)
	if err != nil {
		r.log.Debug("open failed", zap.String("path", path), zap.Error(err))
		return 0, err
	}

	r.mu.Lock()
	r.next++
	h := r.next
	r.entries[h] = &entry{doc: doc}
	r.mu.Unlock()

	r.log.Info("workbook opened",
		zap.Int64("handle", int64(h)), zap.String("path", path),
		zap.Bool("created", created), zap.Strings("sheets", doc.Workbook.SheetNames()))
	return h, nil
}

func load(path string, mode Mode) (doc *ooxml.Document, created bool, err error) {
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && mode == CreateIfMissing:
		doc, err = ooxml.New(path)
		return doc, true, err
	case err != nil:
		return nil, false, fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}
	if doc, err = ooxml.Decode(data, path); err != nil && !errors.Is(err, ooxml.ErrCorrupt) {
		err = fmt.Errorf("%w: %v", ooxml.ErrCorrupt, err)
	}
	return doc, false, err
}

// Save encodes the workbook and writes it to path. The file is replaced
// only once the whole package is written; a failed save leaves both the
// file and the open workbook unchanged.
func (r *Registry) Save(h Handle, path string) error {
	e, err := r.lock(h)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	data, err := e.doc.Encode()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if err := writeFile(path, data); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := e.doc.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	e.doc.Workbook.Path = path
	r.log.Info("workbook saved",
		zap.Int64("handle", int64(h)), zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

// Close releases a workbook. Unsaved changes are discarded.
func (r *Registry) Close(h Handle) error {
	r.mu.Lock()
	e, ok := r.entries[h]
	delete(r.entries, h)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	e.mu.Lock()
	e.closed, e.doc = true, nil
	e.mu.Unlock()
	r.log.Info("workbook closed", zap.Int64("handle", int64(h)))
	return nil
}

// CloseAll releases every open workbook and returns how many there were.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	handles := make([]Handle, 0, len(r.entries))
	for h := range r.entries {
		handles = append(handles, h)
	}
	r.mu.Unlock()
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	n := 0
	for _, h := range handles {
		if r.Close(h) == nil {
			n++
		}
	}
	return n
}

// Handles returns the open handles in ascending order.
func (r *Registry) Handles() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Handle, 0, len(r.entries))
	for h := range r.entries {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// With runs fn with exclusive access to one workbook.
func (r *Registry) With(h Handle, fn func(wb *models.Workbook) error) error {
	e, err := r.lock(h)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()
	return fn(e.doc.Workbook)
}

// WithPair runs fn with exclusive access to two workbooks. Locks are taken
// in handle order so concurrent pairs cannot deadlock. a and b may be the
// same handle.
func (r *Registry) WithPair(a, b Handle, fn func(wa, wb *models.Workbook) error) error {
	if a == b {
		return r.With(a, func(wb *models.Workbook) error { return fn(wb, wb) })
	}
	first, second := a, b
	if second < first {
		first, second = second, first
	}
	e1, err := r.lock(first)
	if err != nil {
		return err
	}
	defer e1.mu.Unlock()
	e2, err := r.lock(second)
	if err != nil {
		return err
	}
	defer e2.mu.Unlock()

	if first == a {
		return fn(e1.doc.Workbook, e2.doc.Workbook)
	}
	return fn(e2.doc.Workbook, e1.doc.Workbook)
}

// lock returns the live entry for h with its mutex held.
func (r *Registry) lock(h Handle) (*entry, error) {
	r.mu.Lock()
	e, ok := r.entries[h]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	return e, nil
}
