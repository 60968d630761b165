package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// XGBoost evaluates a gradient boosted tree ensemble exported with
// Booster.save_model("model.json").
type XGBoost struct {
	trees     []tree
	weights   []float64
	baseScore float64
	transform func(float64) float64
	width     int
}

type tree struct {
	left        []int
	right       []int
	splitIndex  []int
	splitValue  []float64
	defaultLeft []bool
}

// xgbNumber decodes the string encoded numbers xgboost writes, such as
// "5E-1" or "[4.2E0]", as well as plain JSON numbers.
type xgbNumber float64

func (n *xgbNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		*n = 0
		return nil
	}
	if s[0] == '"' {
		u, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		s = u
	}
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "[]"))
	if s == "" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("xgboost number %q: %w", s, err)
	}
	*n = xgbNumber(v)
	return nil
}

// xgbFlags decodes default_left, written as 0/1 integers or booleans
// depending on the xgboost version.
type xgbFlags []bool

func (f *xgbFlags) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make([]bool, len(raw))
	for i, r := range raw {
		switch s := string(bytes.TrimSpace(r)); s {
		case "true", "1":
			out[i] = true
		case "false", "0":
		default:
			return fmt.Errorf("xgboost default_left[%d]: unexpected %s", i, s)
		}
	}
	*f = out
	return nil
}

type xgbTree struct {
	LeftChildren    []int     `json:"left_children"`
	RightChildren   []int     `json:"right_children"`
	SplitIndices    []int     `json:"split_indices"`
	SplitConditions []float64 `json:"split_conditions"`
	DefaultLeft     xgbFlags  `json:"default_left"`
}

type xgbModel struct {
	Param struct {
		NumParallelTree xgbNumber `json:"num_parallel_tree"`
	} `json:"gbtree_model_param"`
	Trees    []xgbTree `json:"trees"`
	TreeInfo []int     `json:"tree_info"`
}

type xgbFile struct {
	Learner struct {
		FeatureNames []string `json:"feature_names"`
		Attributes   struct {
			BestIteration string `json:"best_iteration"`
		} `json:"attributes"`
		GradientBooster struct {
			Name   string    `json:"name"`
			Model  *xgbModel `json:"model"`
			GBTree *struct {
				Model xgbModel `json:"model"`
			} `json:"gbtree"`
			WeightDrop []float64 `json:"weight_drop"`
		} `json:"gradient_booster"`
		LearnerModelParam struct {
			BaseScore  xgbNumber `json:"base_score"`
			NumFeature xgbNumber `json:"num_feature"`
			NumClass   xgbNumber `json:"num_class"`
		} `json:"learner_model_param"`
		Objective struct {
			Name string `json:"name"`
		} `json:"objective"`
	} `json:"learner"`
}

// bestTreeCount is the number of leading trees a model trained with early
// stopping predicts with: (best_iteration+1) rounds of parallel trees.
func bestTreeCount(bestIteration string, parallel int) (int, error) {
	it, err := strconv.Atoi(bestIteration)
	if err != nil || it < 0 {
		return 0, fmt.Errorf("engine: invalid best_iteration %q", bestIteration)
	}
	if parallel < 1 {
		parallel = 1
	}
	return (it + 1) * parallel, nil
}

// LoadXGBoost reads an XGBoost JSON model and checks it against columns.
func LoadXGBoost(path string, columns []string) (*XGBoost, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("engine: read xgboost model %q: %w", path, err)
	}
	return ParseXGBoost(data, columns)
}

// ParseXGBoost decodes an XGBoost JSON model. Only single-output regression
// style objectives with a gbtree or dart booster are supported.
func ParseXGBoost(data []byte, columns []string) (*XGBoost, error) {
	var f xgbFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("engine: decode xgboost model: %w", err)
	}
	l := f.Learner

	if n := int(l.LearnerModelParam.NumClass); n > 1 {
		return nil, fmt.Errorf("engine: xgboost model has %d classes, want a regressor", n)
	}
	if n := int(l.LearnerModelParam.NumFeature); n > 0 && n != len(columns) {
		return nil, fmt.Errorf("engine: xgboost model expects %d features, column list has %d", n, len(columns))
	}
	if len(l.FeatureNames) > 0 {
		if len(l.FeatureNames) != len(columns) {
			return nil, fmt.Errorf("engine: xgboost model names %d features, column list has %d", len(l.FeatureNames), len(columns))
		}
		for i, name := range l.FeatureNames {
			if name != columns[i] {
				return nil, fmt.Errorf("engine: feature %d is %q in the model but %q in the column list", i, name, columns[i])
			}
		}
	}

	var model xgbModel
	var weights []float64
	switch l.GradientBooster.Name {
	case "gbtree", "":
		if l.GradientBooster.Model == nil {
			return nil, errors.New("engine: xgboost model has no trees")
		}
		model = *l.GradientBooster.Model
	case "dart":
		if l.GradientBooster.GBTree == nil {
			return nil, errors.New("engine: dart booster has no gbtree section")
		}
		model = l.GradientBooster.GBTree.Model
		weights = l.GradientBooster.WeightDrop
	default:
		return nil, fmt.Errorf("engine: unsupported booster %q", l.GradientBooster.Name)
	}

	base := float64(l.LearnerModelParam.BaseScore)
	m := &XGBoost{width: len(columns)}
	switch l.Objective.Name {
	case "reg:squarederror", "reg:linear", "reg:squaredlogerror", "reg:pseudohubererror",
		"reg:absoluteerror", "":
		m.baseScore = base
		m.transform = func(v float64) float64 { return v }
	case "reg:logistic", "binary:logistic":
		if base <= 0 || base >= 1 {
			return nil, fmt.Errorf("engine: logistic base_score %v out of (0,1)", base)
		}
		m.baseScore = math.Log(base / (1 - base))
		m.transform = func(v float64) float64 { return 1 / (1 + math.Exp(-v)) }
	case "count:poisson", "reg:gamma", "reg:tweedie":
		if base <= 0 {
			return nil, fmt.Errorf("engine: %s base_score %v must be positive", l.Objective.Name, base)
		}
		m.baseScore = math.Log(base)
		m.transform = math.Exp
	default:
		return nil, fmt.Errorf("engine: unsupported objective %q", l.Objective.Name)
	}

	if weights != nil && len(weights) != len(model.Trees) {
		return nil, fmt.Errorf("engine: dart has %d weights for %d trees", len(weights), len(model.Trees))
	}
	if it := strings.TrimSpace(l.Attributes.BestIteration); it != "" {
		n, err := bestTreeCount(it, int(model.Param.NumParallelTree))
		if err != nil {
			return nil, err
		}
		if n < len(model.Trees) {
			model.Trees = model.Trees[:n]
			if len(model.TreeInfo) > n {
				model.TreeInfo = model.TreeInfo[:n]
			}
			if weights != nil {
				weights = weights[:n]
			}
		}
	}
	for i, g := range model.TreeInfo {
		if g != 0 {
			return nil, fmt.Errorf("engine: tree %d belongs to output group %d, want 0", i, g)
		}
	}

	for i, t := range model.Trees {
		tr, err := buildTree(t, len(columns))
		if err != nil {
			return nil, fmt.Errorf("engine: tree %d: %w", i, err)
		}
		m.trees = append(m.trees, tr)
	}
	m.weights = weights
	return m, nil
}

func buildTree(t xgbTree, width int) (tree, error) {
	n := len(t.LeftChildren)
	if n == 0 {
		return tree{}, errors.New("no nodes")
	}
	if len(t.RightChildren) != n || len(t.SplitIndices) != n || len(t.SplitConditions) != n {
		return tree{}, errors.New("node arrays differ in length")
	}
	defaultLeft := []bool(t.DefaultLeft)
	if len(defaultLeft) == 0 {
		defaultLeft = make([]bool, n)
	}
	if len(defaultLeft) != n {
		return tree{}, errors.New("default_left length differs")
	}

	for i := 0; i < n; i++ {
		l, r := t.LeftChildren[i], t.RightChildren[i]
		if l == -1 {
			continue
		}
		// Children always follow their parent, which also rules out cycles.
		if l <= i || l >= n || r <= i || r >= n {
			return tree{}, fmt.Errorf("node %d has invalid children %d/%d", i, l, r)
		}
		if idx := t.SplitIndices[i]; idx < 0 || idx >= width {
			return tree{}, fmt.Errorf("node %d splits on feature %d of %d", i, idx, width)
		}
	}

	return tree{
		left:        t.LeftChildren,
		right:       t.RightChildren,
		splitIndex:  t.SplitIndices,
		splitValue:  t.SplitConditions,
		defaultLeft: defaultLeft,
	}, nil
}

// leaf walks the tree for one row. A NaN feature follows the default branch.
func (t tree) leaf(row []float64) float64 {
	node := 0
	for t.left[node] != -1 {
		v := row[t.splitIndex[node]]
		switch {
		case math.IsNaN(v):
			if t.defaultLeft[node] {
				node = t.left[node]
			} else {
				node = t.right[node]
			}
		case v < t.splitValue[node]:
			node = t.left[node]
		default:
			node = t.right[node]
		}
	}
	// For leaves xgboost stores the leaf value in split_conditions.
	return t.splitValue[node]
}

// NumTrees returns the size of the ensemble.
func (m *XGBoost) NumTrees() int {
	return len(m.trees)
}

func (m *XGBoost) Predict(ctx context.Context, rows [][]float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkRows(rows, m.width); err != nil {
		return nil, err
	}
	out := make([]float64, len(rows))
	for i, r := range rows {
		margin := m.baseScore
		for j, t := range m.trees {
			v := t.leaf(r)
			if m.weights != nil {
				v *= m.weights[j]
			}
			margin += v
		}
		out[i] = m.transform(margin)
	}
	return out, nil
}
