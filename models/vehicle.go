package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Field names shared by the form, the mapping table and the feature columns.
const (
	FieldYear             = "year"
	FieldMileage          = "mileage"
	FieldEnginePower      = "engine_power"
	FieldBrand            = "brand"
	FieldFuel             = "fuel"
	FieldGearbox          = "gearbox"
	FieldVehicleCondition = "vehicle_condition"
	FieldLocation         = "location"
)

// NumericFields lists the numeric inputs in feature order.
var NumericFields = []string{FieldYear, FieldMileage, FieldEnginePower}

// CategoricalFields lists the categorical inputs in encoding order.
var CategoricalFields = []string{FieldBrand, FieldFuel, FieldGearbox, FieldVehicleCondition, FieldLocation}

// RawNumber is numeric input kept as submitted. It unmarshals from a JSON
// number or a JSON string so malformed values reach the feature builder
// instead of failing decoding.
type RawNumber string

func (n *RawNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = RawNumber(s)
		return nil
	}
	*n = RawNumber(b)
	return nil
}

// VehicleInput is one submission. It is created per request and never mutated.
type VehicleInput struct {
	Year             RawNumber `json:"year"`
	Mileage          RawNumber `json:"mileage"`
	EnginePower      RawNumber `json:"engine_power"`
	Brand            string    `json:"brand"`
	Fuel             string    `json:"fuel"`
	Gearbox          string    `json:"gearbox"`
	VehicleCondition string    `json:"vehicle_condition"`
	Location         string    `json:"location"`
}

// Numeric returns the raw text of a numeric field.
func (v VehicleInput) Numeric(field string) string {
	switch field {
	case FieldYear:
		return string(v.Year)
	case FieldMileage:
		return string(v.Mileage)
	case FieldEnginePower:
		return string(v.EnginePower)
	}
	return ""
}

// Categorical returns the raw label of a categorical field.
func (v VehicleInput) Categorical(field string) string {
	switch field {
	case FieldBrand:
		return v.Brand
	case FieldFuel:
		return v.Fuel
	case FieldGearbox:
		return v.Gearbox
	case FieldVehicleCondition:
		return v.VehicleCondition
	case FieldLocation:
		return v.Location
	}
	return ""
}

// NumericBound is the accepted range of a numeric form field.
type NumericBound struct {
	Min     int `json:"min"`
	Max     int `json:"max"`
	Default int `json:"default"`
	Step    int `json:"step"`
}

// NumericBounds are the widget limits of the input form.
var NumericBounds = map[string]NumericBound{
	FieldYear:        {Min: 1990, Max: 2025, Default: 2015, Step: 1},
	FieldMileage:     {Min: 0, Max: 1_000_000, Default: 120_000, Step: 1000},
	FieldEnginePower: {Min: 30, Max: 600, Default: 110, Step: 1},
}

// Estimate is the outcome of one successful submission.
type Estimate struct {
	ID         string            `json:"id"`
	Input      VehicleInput      `json:"input"`
	Tokens     map[string]string `json:"tokens"`
	LogPrice   float64           `json:"log_price"`
	BasePrice  float64           `json:"base_price"`
	Multiplier float64           `json:"multiplier"`
	Price      float64           `json:"price"`
	Imputed    []string          `json:"imputed,omitempty"`
	// Comparables is nil until computed; an empty slice means none matched.
	Comparables []*Listing        `json:"comparables"`
	Summary     *ComparableReport `json:"summary,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
