package server

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"car-price-app/models"
)

var printer = message.NewPrinter(language.English)

// formatPrice renders a price rounded to the unit with thousands
// separators, e.g. "39,500 TND".
func formatPrice(price float64, currency string) string {
	return printer.Sprintf("%.0f %s", price, currency)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message, code, param string) {
	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorEnvelope{Error: errorBody{Message: msg, Code: code, Param: param}})
}

// boundsError reports a numeric input that parses but lies outside the
// form's range.
type boundsError struct {
	Field string
	Value float64
	Bound models.NumericBound
}

func (e *boundsError) Error() string {
	return fmt.Sprintf("%s must be between %d and %d, got %v", e.Field, e.Bound.Min, e.Bound.Max, e.Value)
}

// checkBounds rejects parseable numbers outside the form bounds. Values
// that do not parse are left to the feature builder, which substitutes them.
func checkBounds(in models.VehicleInput) error {
	for _, f := range models.NumericFields {
		raw := strings.TrimSpace(in.Numeric(f))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		b := models.NumericBounds[f]
		if v < float64(b.Min) || v > float64(b.Max) {
			return &boundsError{Field: f, Value: v, Bound: b}
		}
	}
	return nil
}
