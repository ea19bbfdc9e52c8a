package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"docverify/internal/verification/policy"
	"docverify/pkg/platform/sentinel"
)

// FileStore reads policies from a directory tree laid out as
// <root>/<id>/<version>.yaml (or .yml, .json). The file's version must match
// its name.
type FileStore struct {
	root string
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

func (s *FileStore) Get(_ context.Context, id, version string) (*policy.Policy, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	files, err := s.versionFiles(id)
	if err != nil {
		return nil, err
	}
	path, ok := files[version]
	if !ok {
		return nil, fmt.Errorf("policy %s@%s: %w", id, version, sentinel.ErrNotFound)
	}
	return s.load(id, version, path)
}

func (s *FileStore) Latest(_ context.Context, id string) (*policy.Policy, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	files, err := s.versionFiles(id)
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(files))
	for v := range files {
		versions = append(versions, v)
	}
	latest, ok := policy.Latest(versions)
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", id, sentinel.ErrNotFound)
	}
	return s.load(id, latest, files[latest])
}

// LoadAll parses every policy under the root. Any defective file fails the
// whole load, so a bad deployment is caught at startup.
func (s *FileStore) LoadAll(_ context.Context) ([]*policy.Policy, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read policy dir: %w", err)
	}
	var out []*policy.Policy
	for _, e := range entries {
		if !e.IsDir() || !ValidID(e.Name()) {
			continue
		}
		files, err := s.versionFiles(e.Name())
		if err != nil {
			return nil, err
		}
		for version, path := range files {
			p, err := s.load(e.Name(), version, path)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
	}
	return out, nil
}

// versionFiles maps canonical versions to file paths for id.
func (s *FileStore) versionFiles(id string) (map[string]string, error) {
	dir := filepath.Join(s.root, id)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("policy %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w: %w", id, sentinel.ErrUnavailable, err)
	}
	files := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if _, ok := policy.FormatFromPath(name); !ok {
			continue
		}
		v, err := policy.CanonicalVersion(strings.TrimSuffix(name, filepath.Ext(name)))
		if err != nil {
			continue
		}
		files[v] = filepath.Join(dir, name)
	}
	return files, nil
}

func (s *FileStore) load(id, version, path string) (*policy.Policy, error) {
	p, err := policy.ParseFile(path)
	if err != nil {
		return nil, err
	}
	got, err := policy.CanonicalVersion(p.Version)
	if err != nil || p.ID != id || got != version {
		return nil, &policy.PolicyError{
			PolicyID: p.ID,
			Reason:   fmt.Sprintf("file %s declares %s@%s", path, p.ID, p.Version),
		}
	}
	p.Version = got
	return p, nil
}
