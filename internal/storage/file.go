package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fileDocument is the on-disk layout of the file store
type fileDocument struct {
	UpdatedAt string             `json:"updated_at"`
	Records   map[string]*Record `json:"records"`
}

// File implements Store on a single JSON file keyed by unique id
type File struct {
	path string

	mu      sync.Mutex
	loaded  bool
	records map[string]*Record
}

// NewFile creates a file store at path, expanding a leading ~/
func NewFile(path string) (*File, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &File{path: path}, nil
}

// Path returns the resolved file path
func (f *File) Path() string {
	return f.path
}

// FindByUniqueID returns a copy of the stored record
func (f *File) FindByUniqueID(ctx context.Context, uniqueID string) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.load(); err != nil {
		return nil, err
	}
	rec, ok := f.records[uniqueID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *rec
	return &c, nil
}

// Create stores a new record under a fresh id
func (f *File) Create(ctx context.Context, rec Record) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.load(); err != nil {
		return "", err
	}
	if _, exists := f.records[rec.UniqueID]; exists {
		return "", fmt.Errorf("creating record %s: %w", rec.UniqueID, ErrExists)
	}

	rec.ID = uuid.NewString()
	f.records[rec.UniqueID] = &rec
	if err := f.save(); err != nil {
		delete(f.records, rec.UniqueID)
		return "", err
	}
	return rec.ID, nil
}

// Update replaces the record with the given id
func (f *File) Update(ctx context.Context, id string, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.load(); err != nil {
		return err
	}

	var oldKey string
	for key, r := range f.records {
		if r.ID == id {
			oldKey = key
			break
		}
	}
	if oldKey == "" {
		return ErrNotFound
	}

	rec.ID = id
	delete(f.records, oldKey)
	f.records[rec.UniqueID] = &rec
	return f.save()
}

// Close is a no-op
func (f *File) Close() error {
	return nil
}

func (f *File) load() error {
	if f.loaded {
		return nil
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			f.records = make(map[string]*Record)
			f.loaded = true
			return nil
		}
		return fmt.Errorf("reading store file: %w", err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing store file: %w", err)
	}
	if doc.Records == nil {
		doc.Records = make(map[string]*Record)
	}

	f.records = doc.Records
	f.loaded = true
	return nil
}

// save writes through a temporary file so a crash never leaves a torn file
func (f *File) save() error {
	doc := fileDocument{
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		Records:   f.records,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding store file: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing store file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replacing store file: %w", err)
	}
	return nil
}
