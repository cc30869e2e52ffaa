package functions

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/mandelsoft/vfs/pkg/vfs"

	"github.com/stratadb/strata/pkg/utils"
)

// EmbedModel is the stored form of a trained linear embedding. It
// maps rows with the given input columns into a lower dimensional
// space by centering them and applying the projection matrix, one
// matrix row per input column.
type EmbedModel struct {
	InputColumns []string    `json:"inputColumns"`
	Mean         []float64   `json:"mean"`
	Projection   [][]float64 `json:"projection"`
}

func (m *EmbedModel) OutputDimensions() int {
	if len(m.Projection) == 0 {
		return 0
	}
	return len(m.Projection[0])
}

// Embed maps one input vector given in input column order.
func (m *EmbedModel) Embed(in []float64) []float64 {
	out := make([]float64, m.OutputDimensions())
	for i := range m.Projection {
		c := in[i] - m.Mean[i]
		for j, w := range m.Projection[i] {
			out[j] += c * w
		}
	}
	return out
}

// StoreModel writes a model artifact and returns its content digest.
func StoreModel(fs vfs.FileSystem, path string, m *EmbedModel) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := fs.MkdirAll(dir, 0o700); err != nil {
			return "", fmt.Errorf("cannot store model %q: %w", path, err)
		}
	}
	if err := vfs.WriteFile(fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("cannot store model %q: %w", path, err)
	}
	return utils.HashData(data), nil
}

// LoadModel reads a stored model artifact.
func LoadModel(fs vfs.FileSystem, path string) (*EmbedModel, error) {
	data, err := vfs.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("cannot load model %q: %w", path, err)
	}
	var m EmbedModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("cannot load model %q: %w", path, err)
	}
	if len(m.Mean) != len(m.InputColumns) || len(m.Projection) != len(m.InputColumns) {
		return nil, fmt.Errorf("cannot load model %q: inconsistent dimensions", path)
	}
	return &m, nil
}
