package mapping

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func defaultTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	return tbl
}

func TestMapKnownLabels(t *testing.T) {
	tbl := defaultTable(t)

	tests := []struct {
		field string
		label string
		want  string
	}{
		{"brand", "renault", "Renault"},
		{"brand", "  Mercedes-Benz ", "Mercedes-Benz"},
		{"brand", "LAND ROVER", "Land Rover"},
		{"brand", "inconnu", "unknown"},
		{"fuel", "essence", "Essence"},
		{"gearbox", "manuelle", "Manuelle"},
		{"gearbox", "automatique", "unknown"},
		{"vehicle_condition", "bon", "Non dédouanné"},
		{"vehicle_condition", "Très bon", "RS"},
		{"location", "tunis", "Tunis"},
		{"location", "Gabès", "Gabès"},
	}

	for _, tt := range tests {
		if got := tbl.Map(tt.field, tt.label); got != tt.want {
			t.Errorf("Map(%q, %q) = %q; want %q", tt.field, tt.label, got, tt.want)
		}
	}
}

func TestMapEveryDefaultEntry(t *testing.T) {
	tbl := defaultTable(t)

	fields := tbl.Fields()
	if len(fields) == 0 {
		t.Fatal("default table has no fields")
	}
	for _, f := range fields {
		entries := tbl.Entries(f)
		if len(entries) == 0 {
			t.Errorf("%s: no entries", f)
		}
		for _, e := range entries {
			variants := []string{e.Label, strings.ToUpper(e.Label), "  " + strings.ToUpper(e.Label) + " "}
			for _, label := range variants {
				if got := tbl.Map(f, label); got != e.Token {
					t.Errorf("Map(%q, %q): got %q, want %q", f, label, got, e.Token)
				}
			}
		}
	}
}

func TestMapUnknownPassesThroughNormalised(t *testing.T) {
	tbl := defaultTable(t)

	tests := []struct {
		field string
		label string
		want  string
	}{
		{"brand", " Tesla ", "tesla"},
		{"fuel", "Hybride", "hybride"},
		{"colour", " Red", "red"},
		{"", "X", "x"},
	}

	for _, tt := range tests {
		if got := tbl.Map(tt.field, tt.label); got != tt.want {
			t.Errorf("Map(%q, %q) = %q; want %q", tt.field, tt.label, got, tt.want)
		}
	}
}

func TestNilTablePassesThrough(t *testing.T) {
	var tbl *Table
	if got := tbl.Map("brand", " Renault "); got != "renault" {
		t.Errorf("nil table Map: got %q, want %q", got, "renault")
	}
}

func TestDefaultOrder(t *testing.T) {
	tbl := defaultTable(t)

	fields := tbl.Fields()
	want := []string{"brand", "fuel", "gearbox", "vehicle_condition", "location"}
	if len(fields) != len(want) {
		t.Fatalf("Fields: got %v, want %v", fields, want)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("Fields[%d]: got %q, want %q", i, fields[i], want[i])
		}
	}

	brands := tbl.Labels("brand")
	if len(brands) != 27 {
		t.Errorf("brand labels: got %d, want 27", len(brands))
	}
	if brands[0] != "renault" || brands[len(brands)-1] != "inconnu" {
		t.Errorf("brand order: first %q last %q", brands[0], brands[len(brands)-1])
	}
	if n := len(tbl.Labels("location")); n != 23 {
		t.Errorf("location labels: got %d, want 23", n)
	}
}

func TestParseRejectsBadDocuments(t *testing.T) {
	tests := map[string]string{
		"list at top":     "- a\n- b\n",
		"scalar field":    "brand: renault\n",
		"duplicate label": "brand:\n  Renault: Renault\n  renault: Other\n",
		"nested token":    "brand:\n  renault:\n    x: y\n",
		"duplicate field": "brand:\n  renault: Renault\nfuel:\n  essence: Essence\nbrand:\n  peugeot: Peugeot\n",
		"padded field":    "brand:\n  renault: Renault\n' brand ':\n  peugeot: Peugeot\n",
	}
	for name, doc := range tests {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestParseEmptyDocument(t *testing.T) {
	tbl, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil): %v", err)
	}
	if got := tbl.Map("brand", "Renault"); got != "renault" {
		t.Errorf("empty table Map: got %q", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	doc := "fuel:\n  GPL: LPG\n  essence: Petrol\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := tbl.Map("fuel", "gpl"); got != "LPG" {
		t.Errorf("Map(fuel, gpl): got %q, want LPG", got)
	}
	entries := tbl.Entries("fuel")
	if len(entries) != 2 || entries[0].Label != "gpl" || entries[1].Token != "Petrol" {
		t.Errorf("Entries: got %+v", entries)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBuilderInCode(t *testing.T) {
	tbl, err := NewBuilder().
		Add("gearbox", "Auto", "Automatique").
		Add("gearbox", "Manual", "Manuelle").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := tbl.Map("gearbox", "AUTO"); got != "Automatique" {
		t.Errorf("Map: got %q", got)
	}

	if _, err := NewBuilder().Add(" ", "a", "b").Build(); err == nil {
		t.Error("expected error for empty field name")
	}
}
