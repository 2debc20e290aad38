package assetviewer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chalkpe/assetviewer/internal/pathutil"
	"github.com/chalkpe/assetviewer/internal/versions"
)

const (
	indexesDir  = "indexes"
	objectsDir  = "objects"
	manifestExt = ".json"

	// assetsDir is the store's location inside a game directory.
	assetsDir = "assets"
)

// Store is a validated asset store: a directory holding indexes/ and objects/.
type Store struct {
	root    string
	indexes string
	objects string
}

// OpenStore validates root and returns a Store for it.
//
// Both root/indexes and root/objects must exist and be directories; otherwise
// the returned error wraps ErrInvalidStore.
func OpenStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidStore)
	}
	s := &Store{
		root:    root,
		indexes: filepath.Join(root, indexesDir),
		objects: filepath.Join(root, objectsDir),
	}
	for _, dir := range []string{root, s.indexes, s.objects} {
		if err := requireDir(dir); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ResolveStore opens path as a store, falling back to path/assets so that a
// game directory can be given directly.
func ResolveStore(path string) (*Store, error) {
	s, err := OpenStore(path)
	if err == nil {
		return s, nil
	}
	if nested, nestedErr := OpenStore(filepath.Join(path, assetsDir)); nestedErr == nil {
		return nested, nil
	}
	return nil, err
}

func requireDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidStore, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidStore, dir)
	}
	return nil
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

// Versions lists the identifiers of every manifest under indexes/, ordered
// with semantic versions first.
func (s *Store) Versions() ([]string, error) {
	entries, err := os.ReadDir(s.indexes)
	if err != nil {
		return nil, fmt.Errorf("read indexes: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || len(name) <= len(manifestExt) {
			continue
		}
		ext := name[len(name)-len(manifestExt):]
		if !strings.EqualFold(ext, manifestExt) {
			continue
		}
		ids = append(ids, name[:len(name)-len(manifestExt)])
	}
	versions.Sort(ids)
	return ids, nil
}

// LatestVersion returns the highest version in the store.
func (s *Store) LatestVersion() (string, error) {
	ids, err := s.Versions()
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", ErrNoVersions
	}
	return versions.Latest(ids), nil
}

// ManifestPath returns the manifest file for version.
func (s *Store) ManifestPath(version string) (string, error) {
	if err := validateVersion(version); err != nil {
		return "", err
	}
	return filepath.Join(s.indexes, version+manifestExt), nil
}

// ObjectPath returns the object file for hash: objects/<hash[:2]>/<hash>.
func (s *Store) ObjectPath(hash string) (string, error) {
	path, err := pathutil.ObjectPath(s.objects, hash, pathutil.DefaultShardPrefixLen)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedEntry, err)
	}
	return path, nil
}

// LoadManifest loads the manifest for version. All errors are *ManifestError.
func (s *Store) LoadManifest(version string) (*Manifest, error) {
	path, err := s.ManifestPath(version)
	if err != nil {
		return nil, &ManifestError{Version: version, Err: err}
	}
	m, err := LoadManifest(path)
	if err != nil {
		var me *ManifestError
		if errors.As(err, &me) {
			me.Version = version
		}
		return nil, err
	}
	m.Version = version
	return m, nil
}

func validateVersion(version string) error {
	switch {
	case version == "":
		return fmt.Errorf("%w: empty", ErrInvalidVersion)
	case version == "." || version == "..":
		return fmt.Errorf("%w: %q", ErrInvalidVersion, version)
	case strings.ContainsAny(version, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidVersion, version)
	}
	return nil
}
