// Package catalog reads and writes the resort record files that flow
// through the geocoding run.
package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/resort-geocoder/internal/fileutil"
	"github.com/sells-group/resort-geocoder/internal/model"
)

// DefaultFailedName is the failure report file name placed beside the output.
const DefaultFailedName = "geocode_failed.json"

// LoadResorts reads a JSON array of resort records.
func LoadResorts(path string) ([]model.Resort, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}

	var resorts []model.Resort
	if err := json.Unmarshal(data, &resorts); err != nil {
		return nil, eris.Wrapf(err, "catalog: parse %s", path)
	}
	return resorts, nil
}

// WriteResorts writes records as an indented JSON array, atomically.
func WriteResorts(path string, resorts []model.Resort) error {
	if resorts == nil {
		resorts = []model.Resort{}
	}
	return writeJSON(path, resorts)
}

// WriteFailed writes the failure report.
func WriteFailed(path string, failed []model.FailedRecord) error {
	if failed == nil {
		failed = []model.FailedRecord{}
	}
	return writeJSON(path, failed)
}

// FailedPath returns the default failure report path for an output file.
func FailedPath(outputPath string) string {
	return filepath.Join(filepath.Dir(outputPath), DefaultFailedName)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "catalog: marshal %s", path)
	}
	if err := fileutil.WriteAtomic(path, append(data, '\n')); err != nil {
		return eris.Wrapf(err, "catalog: write %s", path)
	}
	return nil
}
