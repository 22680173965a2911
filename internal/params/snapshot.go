package params

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Snapshot persists a full parameter set.
type Snapshot interface {
	Read() (map[string]float64, error)
	Write(values map[string]float64) error
}

// JSONFile stores the set as one JSON object of name to value.
type JSONFile struct {
	Path string
}

func (f JSONFile) Read() (map[string]float64, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	values := make(map[string]float64)
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, errors.WithMessagef(err, "parse %s", f.Path)
	}
	return values, nil
}

func (f JSONFile) Write(values map[string]float64) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.Path, data, 0644)
}
