package engine

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

var cols = []string{"year", "mileage", "brand_Renault"}

const xgbModelJSON = `{
  "learner": {
    "feature_names": ["year", "mileage", "brand_Renault"],
    "gradient_booster": {
      "name": "gbtree",
      "model": {
        "gbtree_model_param": {"num_trees": "2"},
        "tree_info": [0, 0],
        "trees": [
          {
            "left_children": [1, -1, -1],
            "right_children": [2, -1, -1],
            "split_indices": [0, 0, 0],
            "split_conditions": [2015, 0.5, 1.0],
            "default_left": [1, 0, 0]
          },
          {
            "left_children": [1, -1, -1],
            "right_children": [2, -1, -1],
            "split_indices": [2, 0, 0],
            "split_conditions": [0.5, -0.25, 0.25],
            "default_left": [false, false, false]
          }
        ]
      }
    },
    "learner_model_param": {"base_score": "5E-1", "num_feature": "3", "num_class": "0"},
    "objective": {"name": "reg:squarederror"}
  },
  "version": [1, 7, 6]
}`

func TestXGBoostPredict(t *testing.T) {
	m, err := ParseXGBoost([]byte(xgbModelJSON), cols)
	if err != nil {
		t.Fatalf("ParseXGBoost: %v", err)
	}
	if m.NumTrees() != 2 {
		t.Fatalf("NumTrees: got %d, want 2", m.NumTrees())
	}

	got, err := m.Predict(context.Background(), [][]float64{
		{2018, 1000, 1},
		{2010, 1000, 0},
		{math.NaN(), 0, 1},
	})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	want := []float64{1.75, 0.75, 1.25}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Predict: got %v, want %v", got, want)
	}
}

func TestXGBoostBracketedBaseScoreAndExpObjective(t *testing.T) {
	doc := strings.Replace(xgbModelJSON, `"5E-1"`, `"[1E0]"`, 1)
	doc = strings.Replace(doc, `"reg:squarederror"`, `"reg:gamma"`, 1)

	m, err := ParseXGBoost([]byte(doc), cols)
	if err != nil {
		t.Fatalf("ParseXGBoost: %v", err)
	}
	got, err := m.Predict(context.Background(), [][]float64{{2018, 0, 1}})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	want := math.Exp(1.25)
	if math.Abs(got[0]-want) > 1e-12 {
		t.Errorf("Predict: got %v, want %v", got[0], want)
	}
}

func TestXGBoostBestIteration(t *testing.T) {
	tests := []struct {
		name       string
		attributes string
		trees      int
		want       float64
	}{
		{"first round only", `"attributes": {"best_iteration": "0", "best_score": "0.1"},`, 1, 1.5},
		{"last round", `"attributes": {"best_iteration": "1"},`, 2, 1.75},
		{"beyond the trees", `"attributes": {"best_iteration": "9"},`, 2, 1.75},
		{"no attributes", ``, 2, 1.75},
	}
	for _, tt := range tests {
		doc := strings.Replace(xgbModelJSON, `"gradient_booster": {`, tt.attributes+` "gradient_booster": {`, 1)
		m, err := ParseXGBoost([]byte(doc), cols)
		if err != nil {
			t.Fatalf("%s: ParseXGBoost: %v", tt.name, err)
		}
		if m.NumTrees() != tt.trees {
			t.Errorf("%s: NumTrees: got %d, want %d", tt.name, m.NumTrees(), tt.trees)
		}
		got, err := m.Predict(context.Background(), [][]float64{{2018, 1000, 1}})
		if err != nil {
			t.Fatalf("%s: Predict: %v", tt.name, err)
		}
		if got[0] != tt.want {
			t.Errorf("%s: Predict: got %v, want %v", tt.name, got[0], tt.want)
		}
	}

	bad := strings.Replace(xgbModelJSON, `"gradient_booster": {`, `"attributes": {"best_iteration": "x"}, "gradient_booster": {`, 1)
	if _, err := ParseXGBoost([]byte(bad), cols); err == nil {
		t.Error("expected error for a non-numeric best_iteration")
	}
}

func TestXGBoostBestIterationParallelTrees(t *testing.T) {
	doc := strings.Replace(xgbModelJSON, `{"num_trees": "2"}`, `{"num_trees": "2", "num_parallel_tree": "2"}`, 1)
	doc = strings.Replace(doc, `"gradient_booster": {`, `"attributes": {"best_iteration": "0"}, "gradient_booster": {`, 1)
	m, err := ParseXGBoost([]byte(doc), cols)
	if err != nil {
		t.Fatalf("ParseXGBoost: %v", err)
	}
	if m.NumTrees() != 2 {
		t.Errorf("NumTrees: got %d, want 2", m.NumTrees())
	}
}

func TestXGBoostRejectsMismatchedColumns(t *testing.T) {
	if _, err := ParseXGBoost([]byte(xgbModelJSON), []string{"year", "mileage"}); err == nil {
		t.Error("expected error for feature count mismatch")
	}
	if _, err := ParseXGBoost([]byte(xgbModelJSON), []string{"mileage", "year", "brand_Renault"}); err == nil {
		t.Error("expected error for feature name mismatch")
	}
}

func TestXGBoostRejectsBrokenTrees(t *testing.T) {
	cyclic := strings.Replace(xgbModelJSON, `"left_children": [1, -1, -1]`, `"left_children": [0, -1, -1]`, 1)
	if _, err := ParseXGBoost([]byte(cyclic), cols); err == nil {
		t.Error("expected error for a self-referencing node")
	}

	badFeature := strings.Replace(xgbModelJSON, `"split_indices": [2, 0, 0]`, `"split_indices": [7, 0, 0]`, 1)
	if _, err := ParseXGBoost([]byte(badFeature), cols); err == nil {
		t.Error("expected error for an out of range split feature")
	}

	multiclass := strings.Replace(xgbModelJSON, `"num_class": "0"`, `"num_class": "3"`, 1)
	if _, err := ParseXGBoost([]byte(multiclass), cols); err == nil {
		t.Error("expected error for a multi-class model")
	}
}

func TestXGBoostRowWidth(t *testing.T) {
	m, err := ParseXGBoost([]byte(xgbModelJSON), cols)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Predict(context.Background(), [][]float64{{1, 2}}); err == nil {
		t.Error("expected error for a short row")
	}
}

func TestLinearPredict(t *testing.T) {
	doc := `{"intercept": 10, "coefficients": {"year": 0.5, "brand_Renault": -2}}`
	m, err := ParseLinear([]byte(doc), cols)
	if err != nil {
		t.Fatalf("ParseLinear: %v", err)
	}
	got, err := m.Predict(context.Background(), [][]float64{{2, 100, 1}, {0, 0, 0}})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if want := []float64{9, 10}; !reflect.DeepEqual(got, want) {
		t.Errorf("Predict: got %v, want %v", got, want)
	}

	if _, err := ParseLinear([]byte(`{"coefficients": {"colour_red": 1}}`), cols); err == nil {
		t.Error("expected error for unknown coefficient")
	}
}

func TestParseColumns(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []string
	}{
		{"json", `["year", "brand_Land Rover"]`, []string{"year", "brand_Land Rover"}},
		{"lines", "year\r\nmileage\n\nbrand_Renault\n", []string{"year", "mileage", "brand_Renault"}},
	}
	for _, tt := range tests {
		got, err := ParseColumns([]byte(tt.data))
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}

	for _, bad := range []string{"", "[]", `["a","a"]`, `["a",""]`, `[1,2]`} {
		if _, err := ParseColumns([]byte(bad)); err == nil {
			t.Errorf("ParseColumns(%q): expected error", bad)
		}
	}
}

func TestLoadColumnsAndModelFromDisk(t *testing.T) {
	dir := t.TempDir()
	colsPath := filepath.Join(dir, "model_columns.json")
	modelPath := filepath.Join(dir, "model.json")
	if err := os.WriteFile(colsPath, []byte(`["year","mileage","brand_Renault"]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(modelPath, []byte(xgbModelJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadColumns(colsPath)
	if err != nil {
		t.Fatalf("LoadColumns: %v", err)
	}
	p, err := Load(ModelConfig{Type: "XGBoost", Path: modelPath}, loaded)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := p.(*XGBoost); !ok {
		t.Errorf("Load returned %T, want *XGBoost", p)
	}

	if _, err := LoadColumns(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing columns file")
	}
	if _, err := Load(ModelConfig{Type: "pickle"}, loaded); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func TestRemotePredict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req remoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.Columns) != 3 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"bad columns"}`))
			return
		}
		preds := make([]float64, len(req.Rows))
		for i, row := range req.Rows {
			preds[i] = row[0] / 1000
		}
		_ = json.NewEncoder(w).Encode(remoteResponse{Predictions: preds})
	}))
	defer srv.Close()

	m, err := NewRemote(srv.URL, cols, time.Second)
	if err != nil {
		t.Fatalf("NewRemote: %v", err)
	}
	got, err := m.Predict(context.Background(), [][]float64{{2000, 0, 0}, {3000, 0, 1}})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if want := []float64{2, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("Predict: got %v, want %v", got, want)
	}

	bad, _ := NewRemote(srv.URL, []string{"a", "b"}, time.Second)
	_, err = bad.Predict(context.Background(), [][]float64{{1, 2}})
	if err == nil || !strings.Contains(err.Error(), "bad columns") {
		t.Errorf("expected remote error message, got %v", err)
	}

	if _, err := NewRemote(" ", cols, 0); err == nil {
		t.Error("expected error for empty url")
	}
}

func TestFuncAdapter(t *testing.T) {
	var p Predictor = Func(func(_ context.Context, rows [][]float64) ([]float64, error) {
		return make([]float64, len(rows)), nil
	})
	out, err := p.Predict(context.Background(), [][]float64{{1}, {2}})
	if err != nil || len(out) != 2 {
		t.Errorf("Func adapter: got %v, %v", out, err)
	}
}
