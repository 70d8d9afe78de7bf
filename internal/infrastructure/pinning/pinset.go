// Package pinning decides whether a server's certificate chain is trusted by
// comparing it against a fixed set of pinned DER certificates.
package pinning

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
)

// DefaultPinName is the pin resource loaded when no names are configured.
const DefaultPinName = "g1sr"

// PinExtension is appended to each pin name to form its resource path.
const PinExtension = ".der"

// LoadError reports a pin resource that could not be used.
type LoadError struct {
	Name string
	Err  error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("pin %q: %v", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// PinnedSet is an immutable set of raw DER certificates. It is safe for
// concurrent use.
type PinnedSet struct {
	// raw DER -> hex SHA-256 fingerprint
	pins map[string]string
}

// NewPinnedSet builds a set from DER certificates. Duplicates collapse.
func NewPinnedSet(certs ...[]byte) *PinnedSet {
	s := &PinnedSet{pins: make(map[string]string, len(certs))}
	for _, der := range certs {
		if len(der) == 0 {
			continue
		}
		s.pins[string(der)] = Fingerprint(der)
	}
	return s
}

// LoadPinnedSet reads <name>.der from fsys for each name, DefaultPinName if
// none are given. Resources that are missing or do not parse as X.509 are
// left out of the set and reported as *LoadError values; loading never
// fails outright, so an empty set is possible.
func LoadPinnedSet(fsys fs.FS, names ...string) (*PinnedSet, []error) {
	if len(names) == 0 {
		names = []string{DefaultPinName}
	}

	var (
		certs [][]byte
		errs  []error
	)
	for _, name := range names {
		der, err := fs.ReadFile(fsys, path.Clean(name+PinExtension))
		if err != nil {
			errs = append(errs, &LoadError{Name: name, Err: err})
			continue
		}
		if _, err := x509.ParseCertificate(der); err != nil {
			errs = append(errs, &LoadError{Name: name, Err: fmt.Errorf("parse certificate: %w", err)})
			continue
		}
		certs = append(certs, der)
	}

	return NewPinnedSet(certs...), errs
}

// Len returns the number of distinct pinned certificates.
func (s *PinnedSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.pins)
}

// Match reports whether der is pinned and, if so, its fingerprint.
func (s *PinnedSet) Match(der []byte) (string, bool) {
	if s == nil {
		return "", false
	}
	fp, ok := s.pins[string(der)]
	return fp, ok
}

// Fingerprints returns the fingerprints of every pinned certificate.
func (s *PinnedSet) Fingerprints() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.pins))
	for _, fp := range s.pins {
		out = append(out, fp)
	}
	return out
}

// Fingerprint returns the hex SHA-256 digest of a DER certificate.
func Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}
