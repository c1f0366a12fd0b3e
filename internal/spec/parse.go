package spec

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

// Parse decodes a single TOML document into a Specification. It does not
// validate the result; callers combine Parse with Validate.
func Parse(r io.Reader) (*Specification, error) {
	var s Specification
	if _, err := toml.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("spec: failed to parse TOML: %w", err)
	}
	return &s, nil
}

// ParseFile loads and decodes a single spec file from disk.
func ParseFile(path string) (*Specification, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("spec: failed to open %s: %w", path, err)
	}
	defer f.Close()

	s, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("spec: %s: %w", path, err)
	}
	return s, nil
}

// LoadFiles parses and concatenates spec files in order, producing one
// Specification whose Deceit list is the ordered concatenation of each
// file's Deceits. Used both by the CLI's positional spec file arguments
// and by the APATHE_SPECS_FILE* environment variable list.
func LoadFiles(paths []string) (*Specification, error) {
	result := Empty()
	for _, path := range paths {
		s, err := ParseFile(path)
		if err != nil {
			return nil, err
		}
		result = Concatenate(result, s)
	}
	return result, nil
}

// Encode re-serializes a Specification back to TOML, used by the admin
// GET /apate/specs endpoint.
func Encode(s *Specification) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("spec: failed to encode TOML: %w", err)
	}
	return buf.Bytes(), nil
}
