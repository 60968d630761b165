package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"car-price-app/models"
)

// CSVListingReader reads reference listings from a CSV file whose header
// names the columns label, price and description (any order, extra
// columns ignored).
type CSVListingReader struct {
	path string
}

// NewCSVListingReader returns a reader for path.
func NewCSVListingReader(path string) *CSVListingReader {
	return &CSVListingReader{path: path}
}

// ReadRaw returns every data row as a RawListing; prices stay unparsed.
func (r *CSVListingReader) ReadRaw(_ context.Context) ([]*models.RawListing, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", r.path, err)
	}
	defer f.Close()
	return readRawListings(f)
}

func readRawListings(src io.Reader) ([]*models.RawListing, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv: empty file")
		}
		return nil, fmt.Errorf("csv: read header: %w", err)
	}

	idx := map[string]int{"label": -1, "price": -1, "description": -1}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, ok := idx[name]; ok {
			idx[name] = i
		}
	}
	if idx["label"] < 0 || idx["price"] < 0 {
		return nil, errors.New("csv: header must contain label and price")
	}

	var out []*models.RawListing
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}
		out = append(out, &models.RawListing{
			Label:       field(rec, idx["label"]),
			RawPrice:    field(rec, idx["price"]),
			Description: field(rec, idx["description"]),
		})
	}
	return out, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}
