package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"car-price-app/models"
)

var estimateHeader = []string{
	"id", "created_at", "year", "mileage", "engine_power",
	"brand", "fuel", "gearbox", "vehicle_condition", "location",
	"log_price", "base_price", "multiplier", "price", "imputed", "comparables",
}

// CSVWriter appends estimates to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter opens (or creates) the CSV file at the given path in append
// mode and writes the header row when the file is new. Intermediate
// directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv: open file %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: stat %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(estimateHeader); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
		w.Flush()
	}

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteEstimate appends one row.
func (c *CSVWriter) WriteEstimate(_ context.Context, e *models.Estimate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	row := []string{
		e.ID,
		e.CreatedAt.Format(time.RFC3339),
		string(e.Input.Year),
		string(e.Input.Mileage),
		string(e.Input.EnginePower),
		e.Input.Brand,
		e.Input.Fuel,
		e.Input.Gearbox,
		e.Input.VehicleCondition,
		e.Input.Location,
		formatFloat(e.LogPrice),
		formatFloat(e.BasePrice),
		formatFloat(e.Multiplier),
		formatFloat(e.Price),
		strings.Join(e.Imputed, "|"),
		strconv.Itoa(len(e.Comparables)),
	}
	if err := c.writer.Write(row); err != nil {
		return fmt.Errorf("csv: write row: %w", err)
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	return c.file.Close()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
