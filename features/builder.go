// Package features turns vehicle inputs into model-ready rows whose columns
// match the trained column list exactly.
package features

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"car-price-app/models"
)

// Mapper translates a categorical label into a training token.
type Mapper interface {
	Map(field, label string) string
}

// Vector is one aligned feature row.
type Vector struct {
	// Columns is the target column list, shared and read-only.
	Columns []string
	Values  []float64
	// Numeric holds the coerced numeric inputs after substitution.
	Numeric map[string]float64
	// Tokens holds the mapped categorical tokens.
	Tokens map[string]string
	// Imputed lists numeric fields whose submitted value was replaced.
	Imputed []string
}

// Value returns the value of a named column and whether it exists.
func (v Vector) Value(column string) (float64, bool) {
	for i, c := range v.Columns {
		if c == column {
			return v.Values[i], true
		}
	}
	return 0, false
}

// Builder produces Vectors for a fixed column list. It holds no mutable state.
type Builder struct {
	mapper  Mapper
	columns []string
}

// NewBuilder validates the column list and returns a Builder.
func NewBuilder(mapper Mapper, columns []string) (*Builder, error) {
	if len(columns) == 0 {
		return nil, errors.New("features: empty column list")
	}
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if c == "" {
			return nil, errors.New("features: empty column name")
		}
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("features: duplicate column %q", c)
		}
		seen[c] = struct{}{}
	}
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Builder{mapper: mapper, columns: cols}, nil
}

// Columns returns the target column list.
func (b *Builder) Columns() []string {
	out := make([]string, len(b.columns))
	copy(out, b.columns)
	return out
}

// Build encodes a single submission.
func (b *Builder) Build(in models.VehicleInput) Vector {
	return b.BuildBatch([]models.VehicleInput{in})[0]
}

// BuildBatch encodes several submissions together. Malformed numeric values
// take the median of their field across the batch.
func (b *Builder) BuildBatch(inputs []models.VehicleInput) []Vector {
	rows := Coerce(inputs)
	for i := range rows {
		rows[i].Tokens = MapTokens(b.mapper, inputs[i])
	}
	encoded := Encode(rows)

	out := make([]Vector, len(rows))
	for i, row := range rows {
		out[i] = Vector{
			Columns: b.columns,
			Values:  Reindex(encoded[i], b.columns),
			Numeric: row.Numeric,
			Tokens:  row.Tokens,
			Imputed: row.Imputed,
		}
	}
	return out
}

// Row is an intermediate, not yet encoded record.
type Row struct {
	Numeric map[string]float64
	Tokens  map[string]string
	Imputed []string
}

// Coerce parses numeric fields. A value that does not parse to a finite
// number is replaced by the median of the valid values of that field in the
// batch. When no row has a valid value the field is set to 0. Either way the
// field is reported in Imputed.
func Coerce(inputs []models.VehicleInput) []Row {
	rows := make([]Row, len(inputs))
	for i := range rows {
		rows[i].Numeric = make(map[string]float64, len(models.NumericFields))
	}

	for _, field := range models.NumericFields {
		parsed := make([]float64, len(inputs))
		valid := make([]bool, len(inputs))
		var pool []float64
		for i, in := range inputs {
			v, ok := parseNumber(in.Numeric(field))
			parsed[i], valid[i] = v, ok
			if ok {
				pool = append(pool, v)
			}
		}

		fill := 0.0
		if len(pool) > 0 {
			fill = median(pool)
		}
		for i := range inputs {
			if valid[i] {
				rows[i].Numeric[field] = parsed[i]
				continue
			}
			rows[i].Numeric[field] = fill
			rows[i].Imputed = append(rows[i].Imputed, field)
		}
	}
	return rows
}

// MapTokens normalises and maps every categorical field of in.
func MapTokens(m Mapper, in models.VehicleInput) map[string]string {
	tokens := make(map[string]string, len(models.CategoricalFields))
	for _, field := range models.CategoricalFields {
		label := strings.ToLower(strings.TrimSpace(in.Categorical(field)))
		if m != nil {
			label = m.Map(field, label)
		}
		tokens[field] = label
	}
	return tokens
}

// ColumnName is the one-hot column for a categorical token.
func ColumnName(field, token string) string {
	return field + "_" + token
}

// Encode expands each row into named columns: numeric fields keep their
// name, each categorical field becomes a single indicator column set to 1.
func Encode(rows []Row) []map[string]float64 {
	out := make([]map[string]float64, len(rows))
	for i, row := range rows {
		enc := make(map[string]float64, len(row.Numeric)+len(row.Tokens))
		for field, v := range row.Numeric {
			enc[field] = v
		}
		for field, tok := range row.Tokens {
			enc[ColumnName(field, tok)] = 1
		}
		out[i] = enc
	}
	return out
}

// Reindex lays out an encoded row in exactly the given column order.
// Missing columns are 0; columns not listed are dropped.
func Reindex(encoded map[string]float64, columns []string) []float64 {
	values := make([]float64, len(columns))
	for i, c := range columns {
		values[i] = encoded[c]
	}
	return values
}

func parseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	// ParseFloat also reads hex floats such as 0x1p11; those are not numbers here.
	if digits := strings.TrimLeft(s, "+-"); len(digits) > 1 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
