// Package testutil builds asset store fixtures for tests.
package testutil

import (
	"crypto/sha1" //nolint:gosec // matches the store's content addressing
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Store is an on-disk asset store rooted at Root with indexes/ and objects/.
type Store struct {
	Root string
	t    testing.TB
}

// NewStore creates an empty store in a fresh temp directory.
func NewStore(t testing.TB) *Store {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "indexes"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "objects"), 0o755))
	return &Store{Root: root, t: t}
}

// Hash returns the lowercase hex SHA-1 of content.
func Hash(content []byte) string {
	sum := sha1.Sum(content) //nolint:gosec // content address
	return hex.EncodeToString(sum[:])
}

// ObjectPath returns where an object with hash is stored.
func (s *Store) ObjectPath(hash string) string {
	return filepath.Join(s.Root, "objects", hash[:2], hash)
}

// PutObject stores content under its hash and returns the hash.
func (s *Store) PutObject(content []byte) string {
	s.t.Helper()
	hash := Hash(content)
	s.PutObjectAs(hash, content)
	return hash
}

// PutObjectAs stores content under an arbitrary hash.
func (s *Store) PutObjectAs(hash string, content []byte) {
	s.t.Helper()
	path := s.ObjectPath(hash)
	require.NoError(s.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(s.t, os.WriteFile(path, content, 0o644))
}

// RemoveObject deletes a stored object.
func (s *Store) RemoveObject(hash string) {
	s.t.Helper()
	require.NoError(s.t, os.Remove(s.ObjectPath(hash)))
}

// AddVersion writes every asset as an object and a manifest naming them.
// It returns the hash assigned to each name.
func (s *Store) AddVersion(version string, assets map[string][]byte) map[string]string {
	s.t.Helper()
	hashes := make(map[string]string, len(assets))
	objects := make(map[string]any, len(assets))
	for name, content := range assets {
		hash := s.PutObject(content)
		hashes[name] = hash
		objects[name] = map[string]any{"hash": hash, "size": len(content)}
	}
	data, err := json.Marshal(map[string]any{"objects": objects})
	require.NoError(s.t, err)
	s.WriteManifest(version, string(data))
	return hashes
}

// WriteManifest writes raw manifest JSON for version.
func (s *Store) WriteManifest(version, raw string) {
	s.t.Helper()
	path := filepath.Join(s.Root, "indexes", version+".json")
	require.NoError(s.t, os.WriteFile(path, []byte(raw), 0o644))
}

// ReadTree returns every regular file under dir keyed by slash-separated
// relative path.
func ReadTree(t testing.TB, dir string) map[string][]byte {
	t.Helper()
	files := make(map[string][]byte)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path) //nolint:gosec // test fixture path
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = data
		return nil
	})
	require.NoError(t, err)
	return files
}
