package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Remote forwards rows to a prediction server over HTTP.
//
// Request:  POST {"columns": [...], "rows": [[...], ...]}
// Response: {"predictions": [...]}
type Remote struct {
	url     string
	columns []string
	client  *http.Client
}

type remoteRequest struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

type remoteResponse struct {
	Predictions []float64 `json:"predictions"`
	Error       string    `json:"error,omitempty"`
}

// NewRemote returns a Remote predictor posting to url.
func NewRemote(url string, columns []string, timeout time.Duration) (*Remote, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("engine: remote model requires a url")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Remote{
		url:     url,
		columns: columns,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (m *Remote) Predict(ctx context.Context, rows [][]float64) ([]float64, error) {
	if err := checkRows(rows, len(m.columns)); err != nil {
		return nil, err
	}
	body, err := json.Marshal(remoteRequest{Columns: m.columns, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("engine: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("engine: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engine: remote predict: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("engine: read response: %w", err)
	}

	var out remoteResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode/100 != 2 {
			return nil, fmt.Errorf("engine: remote predict: status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("engine: decode response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		msg := strings.TrimSpace(out.Error)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("engine: remote predict: status %d: %s", resp.StatusCode, msg)
	}
	if len(out.Predictions) != len(rows) {
		return nil, fmt.Errorf("engine: remote returned %d predictions for %d rows", len(out.Predictions), len(rows))
	}
	return out.Predictions, nil
}
