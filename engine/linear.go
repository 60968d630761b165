package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Linear is intercept + Σ coefficient·feature.
type Linear struct {
	Intercept float64
	Weights   []float64
}

type linearFile struct {
	Intercept    float64            `json:"intercept"`
	Coefficients map[string]float64 `json:"coefficients"`
}

// LoadLinear reads a linear model file and aligns its coefficients to columns.
func LoadLinear(path string, columns []string) (*Linear, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("engine: read linear model %q: %w", path, err)
	}
	return ParseLinear(data, columns)
}

// ParseLinear decodes {"intercept": f, "coefficients": {"column": w}}.
// A coefficient naming a column outside the list is an error; columns
// without a coefficient weigh 0.
func ParseLinear(data []byte, columns []string) (*Linear, error) {
	var f linearFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("engine: decode linear model: %w", err)
	}
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}
	weights := make([]float64, len(columns))
	for name, w := range f.Coefficients {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("engine: linear model coefficient %q is not a known column", name)
		}
		weights[i] = w
	}
	return &Linear{Intercept: f.Intercept, Weights: weights}, nil
}

func (m *Linear) Predict(ctx context.Context, rows [][]float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkRows(rows, len(m.Weights)); err != nil {
		return nil, err
	}
	out := make([]float64, len(rows))
	for i, r := range rows {
		sum := m.Intercept
		for j, w := range m.Weights {
			sum += w * r[j]
		}
		out[i] = sum
	}
	return out, nil
}
