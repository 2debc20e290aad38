package assetviewer

import (
	"bytes"
	_ "crypto/sha256" // registers digest.Canonical
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/opencontainers/go-digest"
)

// SizeUnknown is the Size of an entry whose manifest record has no usable size.
const SizeUnknown = -1

// AssetEntry is one manifest record.
type AssetEntry struct {
	// Hash is the content address of the object.
	Hash string

	// Size is the declared content size, or SizeUnknown.
	Size int64
}

// Manifest maps logical names to content-addressed objects for one version.
type Manifest struct {
	// Version is the identifier the manifest was loaded under, if any.
	Version string

	// Digest is the sha256 digest of the raw manifest bytes.
	Digest digest.Digest

	// Entries holds every well-formed record keyed by logical name.
	Entries map[string]AssetEntry

	// Invalid holds the parse error of every malformed record keyed by
	// logical name. Each error wraps ErrMalformedEntry.
	Invalid map[string]error

	// Virtual and MapToResources are flags carried by legacy indexes.
	Virtual        bool
	MapToResources bool
}

// ParseManifest parses manifest JSON.
//
// It fails if data is not a JSON object or its "objects" member is missing or
// not an object; those errors wrap ErrManifest. Malformed individual records do
// not fail the parse and are collected in Manifest.Invalid: a record is
// malformed when it is not an object, or its hash is missing, not a string,
// shorter than two characters, or not hex. Hashes are stored lowercased.
// Unknown members are ignored at every level.
func ParseManifest(data []byte) (*Manifest, error) {
	top, err := decodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("%w: top level: %w", ErrManifest, err)
	}
	rawObjects, ok := top["objects"]
	if !ok {
		return nil, fmt.Errorf("%w: missing \"objects\"", ErrManifest)
	}
	objects, err := decodeObject(rawObjects)
	if err != nil {
		return nil, fmt.Errorf("%w: \"objects\": %w", ErrManifest, err)
	}

	m := &Manifest{
		Digest:         digest.FromBytes(data),
		Entries:        make(map[string]AssetEntry, len(objects)),
		Invalid:        make(map[string]error),
		Virtual:        decodeBool(top["virtual"]),
		MapToResources: decodeBool(top["map_to_resources"]),
	}
	for name, raw := range objects {
		entry, err := parseEntry(raw)
		if err != nil {
			m.Invalid[name] = err
			continue
		}
		m.Entries[name] = entry
	}
	return m, nil
}

// LoadManifest reads and parses a manifest file.
// All errors are *ManifestError.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // caller-chosen manifest path
	if err != nil {
		return nil, &ManifestError{Path: path, Err: err}
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, &ManifestError{Path: path, Err: err}
	}
	return m, nil
}

// Names returns every logical name in the manifest, valid or not, sorted.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Entries)+len(m.Invalid))
	for name := range m.Entries {
		names = append(names, name)
	}
	for name := range m.Invalid {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of records, valid or not.
func (m *Manifest) Len() int {
	return len(m.Entries) + len(m.Invalid)
}

// TotalSize returns the sum of all known entry sizes.
func (m *Manifest) TotalSize() int64 {
	var total int64
	for _, e := range m.Entries {
		if e.Size > 0 {
			total += e.Size
		}
	}
	return total
}

var errNotObject = errors.New("not a JSON object")

// decodeObject decodes a JSON object, treating null as not an object.
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w (got %s)", errNotObject, typeErr.Value)
		}
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("%w (got null)", errNotObject)
	}
	return obj, nil
}

func decodeBool(raw json.RawMessage) bool {
	var b bool
	if len(raw) == 0 || json.Unmarshal(raw, &b) != nil {
		return false
	}
	return b
}

func parseEntry(raw json.RawMessage) (AssetEntry, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return AssetEntry{}, fmt.Errorf("%w: %w", ErrMalformedEntry, err)
	}

	rawHash, ok := fields["hash"]
	if !ok {
		return AssetEntry{}, fmt.Errorf("%w: missing hash", ErrMalformedEntry)
	}
	var hash string
	if isNull(rawHash) || json.Unmarshal(rawHash, &hash) != nil {
		return AssetEntry{}, fmt.Errorf("%w: hash is not a string", ErrMalformedEntry)
	}
	hash = strings.ToLower(hash)
	if len(hash) < 2 {
		return AssetEntry{}, fmt.Errorf("%w: hash %q is too short", ErrMalformedEntry, hash)
	}
	if !isLowerHex(hash) {
		return AssetEntry{}, fmt.Errorf("%w: hash %q is not hex", ErrMalformedEntry, hash)
	}

	size := int64(SizeUnknown)
	if rawSize, ok := fields["size"]; ok && !isNull(rawSize) {
		var n int64
		if json.Unmarshal(rawSize, &n) == nil && n >= 0 {
			size = n
		}
	}
	return AssetEntry{Hash: hash, Size: size}, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isLowerHex(s string) bool {
	for i := range len(s) {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
