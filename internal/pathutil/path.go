// Package pathutil provides path manipulation for slash-separated logical names
// and content-addressed object paths.
package pathutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
)

// ErrUnsafe is returned when a logical name cannot be placed under a root
// without escaping it.
var ErrUnsafe = errors.New("unsafe logical name")

// ErrBadHash is returned when a hash cannot address an object.
var ErrBadHash = errors.New("invalid object hash")

// DefaultShardPrefixLen is the number of hash characters used for the
// object fan-out directory.
const DefaultShardPrefixLen = 2

// Normalize converts a logical name to fs.ValidPath form.
//
// It performs the following transformations:
//   - Strips leading slashes: "/icons/a.png" → "icons/a.png"
//   - Strips trailing slashes: "icons/" → "icons"
//   - Collapses consecutive slashes: "icons//a.png" → "icons/a.png"
//   - Converts empty string to root: "" → "."
//
// Elements "." and ".." are preserved so that Clean can reject them.
func Normalize(name string) string {
	name = strings.Trim(name, "/")
	if name == "" {
		return "."
	}

	parts := strings.Split(name, "/")
	result := parts[:0]
	for _, part := range parts {
		if part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return "."
	}
	return strings.Join(result, "/")
}

// Clean normalizes name and rejects anything that could resolve outside
// the destination root: empty names, "." or ".." elements, backslashes
// and NUL bytes.
func Clean(name string) (string, error) {
	if strings.ContainsAny(name, "\\\x00") {
		return "", ErrUnsafe
	}
	clean := Normalize(name)
	if clean == "." || !fs.ValidPath(clean) {
		return "", ErrUnsafe
	}
	return clean, nil
}

// Join cleans name and joins it onto root using the OS separator.
func Join(root, name string) (string, error) {
	clean, err := Clean(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, filepath.FromSlash(clean)), nil
}

// DirPrefix converts a path to its directory prefix form.
// For "." or "", returns "" (empty prefix matches all).
// For other paths, appends "/" to match children.
func DirPrefix(name string) string {
	name = Normalize(name)
	if name == "." {
		return ""
	}
	return name + "/"
}

// HasPrefix reports whether name equals dir or lies beneath it.
// An empty prefix matches every name.
func HasPrefix(name, prefix string) bool {
	if prefix == "" {
		return true
	}
	return name+"/" == prefix || strings.HasPrefix(name, prefix)
}

// ObjectPath returns the sharded location of hash under dir:
// dir/<hash[:prefixLen]>/<hash>.
func ObjectPath(dir, hash string, prefixLen int) (string, error) {
	if hash == "" || len(hash) < prefixLen || strings.ContainsAny(hash, "/\\.\x00") {
		return "", ErrBadHash
	}
	if prefixLen <= 0 {
		return filepath.Join(dir, hash), nil
	}
	return filepath.Join(dir, hash[:prefixLen], hash), nil
}
