package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/tracks/pkg/models"
)

// ErrSchemaNotFound is returned by Load when no document exists for a name.
var ErrSchemaNotFound = errors.New("schema not found")

// SchemaStore persists activity schema documents as YAML files, one per
// activity, under a single directory.
type SchemaStore interface {
	// Load returns the raw document for name. Validation is left to the
	// caller so that a broken file is reported with schema errors.
	Load(name string) ([]byte, error)
	Save(doc models.SchemaDocument) error
	List() ([]string, error)
	// Init writes data as the document for name unless one already exists.
	// It reports whether a file was written.
	Init(name string, data []byte) (bool, error)
	Path(name string) string
}

type fileSchemaStore struct {
	dir string
}

// NewSchemaStore creates a SchemaStore that keeps documents in dir.
func NewSchemaStore(dir string) SchemaStore {
	return &fileSchemaStore{dir: dir}
}

func (s *fileSchemaStore) Path(name string) string {
	return filepath.Join(s.dir, name+".yaml")
}

func (s *fileSchemaStore) Load(name string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("loading schema %q: %w", name, ErrSchemaNotFound)
		}
		return nil, fmt.Errorf("loading schema %q: %w", name, err)
	}
	return data, nil
}

func (s *fileSchemaStore) Save(doc models.SchemaDocument) error {
	if doc.Name == "" {
		return fmt.Errorf("saving schema: document has no name")
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("saving schema %q: encoding: %w", doc.Name, err)
	}
	return s.write(doc.Name, data, true)
}

func (s *fileSchemaStore) Init(name string, data []byte) (bool, error) {
	if _, err := os.Stat(s.Path(name)); err == nil {
		return false, nil
	}
	if err := s.write(name, data, false); err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// write replaces the document atomically through a temp file and rename.
func (s *fileSchemaStore) write(name string, data []byte, overwrite bool) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("saving schema %q: creating directory: %w", name, err)
	}
	path := s.Path(name)

	unlock, err := lockPath(path)
	if err != nil {
		return fmt.Errorf("saving schema %q: %w", name, err)
	}
	defer unlock()

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("saving schema %q: %w", name, os.ErrExist)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("saving schema %q: writing: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("saving schema %q: replacing: %w", name, err)
	}
	return nil
}

func (s *fileSchemaStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing schemas: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names, nil
}
