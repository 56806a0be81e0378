package asset

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ManifestName is the playlist file the storage service publishes for every asset.
const ManifestName = "index.m3u8"

var (
	// ErrEmptyID is returned when an operation is given an empty identifier.
	ErrEmptyID = errors.New("asset identifier is empty")

	// ErrInvalidID is returned for identifiers that would address a different path.
	ErrInvalidID = errors.New("asset identifier is invalid")
)

// ID names a stored video asset on the server. It is opaque to the client and
// only ever held in memory.
type ID string

// Validate reports ErrEmptyID for an empty or all-blank identifier and
// ErrInvalidID for the dot segments "." and "..".
func (id ID) Validate() error {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return ErrEmptyID
	}
	if s == "." || s == ".." {
		return ErrInvalidID
	}
	return nil
}

func (id ID) String() string { return string(id) }

// ManifestURL returns <base>/video/<id>/index.m3u8 with the id path-escaped.
func ManifestURL(base string, id ID) (string, error) {
	if err := id.Validate(); err != nil {
		return "", err
	}
	raw := strings.TrimRight(base, "/") + "/video/" + url.PathEscape(string(id)) + "/" + ManifestName
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("manifest url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("manifest url: base %q is not absolute", base)
	}
	return u.String(), nil
}
