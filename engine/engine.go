package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Predictor is a trained regression model. Each row must be laid out in the
// column order the model was trained on; one output is returned per row.
type Predictor interface {
	Predict(ctx context.Context, rows [][]float64) ([]float64, error)
}

// Func adapts a plain function to Predictor.
type Func func(ctx context.Context, rows [][]float64) ([]float64, error)

func (f Func) Predict(ctx context.Context, rows [][]float64) ([]float64, error) {
	return f(ctx, rows)
}

// Model types accepted by Load.
const (
	TypeXGBoost = "xgboost"
	TypeLinear  = "linear"
	TypeHTTP    = "http"
)

// ModelConfig describes where a model artifact lives.
type ModelConfig struct {
	Type    string
	Path    string
	URL     string
	Timeout time.Duration
}

// Load opens the model described by cfg and checks it against columns.
func Load(cfg ModelConfig, columns []string) (Predictor, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case TypeXGBoost, "xgb":
		return LoadXGBoost(cfg.Path, columns)
	case TypeLinear:
		return LoadLinear(cfg.Path, columns)
	case TypeHTTP, "remote":
		return NewRemote(cfg.URL, columns, cfg.Timeout)
	default:
		return nil, fmt.Errorf("engine: unsupported model type %q", cfg.Type)
	}
}

// LoadColumns reads the ordered list of trained column names. The file is
// either a JSON array of strings or plain text with one name per line.
func LoadColumns(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("engine: read columns %q: %w", path, err)
	}
	cols, err := ParseColumns(data)
	if err != nil {
		return nil, fmt.Errorf("engine: columns %q: %w", path, err)
	}
	return cols, nil
}

// ParseColumns decodes a column list, see LoadColumns.
func ParseColumns(data []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(data)
	var cols []string

	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &cols); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	} else {
		sc := bufio.NewScanner(bytes.NewReader(trimmed))
		for sc.Scan() {
			line := strings.TrimRight(sc.Text(), "\r")
			if strings.TrimSpace(line) == "" {
				continue
			}
			cols = append(cols, line)
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
	}

	if len(cols) == 0 {
		return nil, errors.New("no columns")
	}
	seen := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		if c == "" {
			return nil, errors.New("empty column name")
		}
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		seen[c] = struct{}{}
	}
	return cols, nil
}

func checkRows(rows [][]float64, width int) error {
	for i, r := range rows {
		if len(r) != width {
			return fmt.Errorf("engine: row %d has %d features, model expects %d", i, len(r), width)
		}
	}
	return nil
}
