// Package override loads manually curated coordinates that take precedence
// over cached and provider results.
package override

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Override pins a record code to fixed coordinates.
type Override struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	Note      string  `json:"note,omitempty" yaml:"note,omitempty"`
}

// Store is a read-only code -> Override lookup.
type Store struct {
	byCode map[string]Override
}

// NewStore builds a store from an in-memory map.
func NewStore(m map[string]Override) *Store {
	byCode := make(map[string]Override, len(m))
	for k, v := range m {
		byCode[k] = v
	}
	return &Store{byCode: byCode}
}

// Load reads overrides from path. Files ending in .yaml or .yml are parsed as
// YAML, anything else as JSON. A missing file or empty path yields an empty store.
func Load(path string) (*Store, error) {
	if path == "" {
		return NewStore(nil), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewStore(nil), nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "override: read %s", path)
	}

	m := make(map[string]Override)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, eris.Wrapf(err, "override: parse yaml %s", path)
		}
	default:
		if len(strings.TrimSpace(string(data))) > 0 {
			if err := json.Unmarshal(data, &m); err != nil {
				return nil, eris.Wrapf(err, "override: parse json %s", path)
			}
		}
	}

	for code, o := range m {
		if err := validate(o); err != nil {
			return nil, eris.Wrapf(err, "override: %s", code)
		}
	}
	return &Store{byCode: m}, nil
}

func validate(o Override) error {
	if o.Latitude < -90 || o.Latitude > 90 {
		return eris.Errorf("latitude %f out of range", o.Latitude)
	}
	if o.Longitude < -180 || o.Longitude > 180 {
		return eris.Errorf("longitude %f out of range", o.Longitude)
	}
	return nil
}

// Lookup returns the override for code.
func (s *Store) Lookup(code string) (Override, bool) {
	o, ok := s.byCode[code]
	return o, ok
}

// Len returns the number of overrides.
func (s *Store) Len() int { return len(s.byCode) }
