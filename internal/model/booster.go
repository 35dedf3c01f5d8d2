// Package model evaluates gradient-boosted tree classifiers exported by
// XGBoost in its JSON format.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// ErrModelNotLoaded is returned when no model is registered for a market.
var ErrModelNotLoaded = errors.New("model not loaded")

// LabelColumns never reach a classifier.
var LabelColumns = []string{
	"result", "team", "opponent", "date",
	"team_spread", "opp_spread", "game_total",
	"points", "opponent_points",
}

// StripLabels returns the inputs without label columns.
func StripLabels(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	for _, k := range LabelColumns {
		delete(out, k)
	}
	return out
}

// Booster is a binary:logistic tree ensemble.
type Booster struct {
	features  []string
	baseScore float64
	trees     []tree
}

type tree struct {
	left, right []int
	splitIndex  []int
	splitCond   []float64
	defaultLeft []bool
}

// flags decodes default_left, which older exports write as 0/1.
type flags []bool

func (f *flags) UnmarshalJSON(data []byte) error {
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]bool, len(raw))
	for i, v := range raw {
		switch b := v.(type) {
		case bool:
			out[i] = b
		case float64:
			out[i] = b != 0
		default:
			return fmt.Errorf("default_left[%d]: unexpected %T", i, v)
		}
	}
	*f = out
	return nil
}

type jsonModel struct {
	Learner struct {
		FeatureNames    []string `json:"feature_names"`
		GradientBooster struct {
			Model struct {
				Trees []struct {
					LeftChildren    []int     `json:"left_children"`
					RightChildren   []int     `json:"right_children"`
					SplitIndices    []int     `json:"split_indices"`
					SplitConditions []float64 `json:"split_conditions"`
					DefaultLeft     flags     `json:"default_left"`
					BaseWeights     []float64 `json:"base_weights"`
				} `json:"trees"`
			} `json:"model"`
		} `json:"gradient_booster"`
		LearnerModelParam struct {
			BaseScore  string `json:"base_score"`
			NumFeature string `json:"num_feature"`
		} `json:"learner_model_param"`
		Objective struct {
			Name string `json:"name"`
		} `json:"objective"`
	} `json:"learner"`
}

// Load reads an XGBoost JSON model file.
func Load(path string) (*Booster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model %s: %w", path, err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return b, nil
}

// Parse decodes an XGBoost JSON model.
func Parse(data []byte) (*Booster, error) {
	var m jsonModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}
	l := m.Learner
	if obj := l.Objective.Name; obj != "" && obj != "binary:logistic" {
		return nil, fmt.Errorf("unsupported objective %q", obj)
	}

	b := &Booster{features: l.FeatureNames, baseScore: 0.5}
	if s := l.LearnerModelParam.BaseScore; s != "" {
		v, err := strconv.ParseFloat(strings.Trim(s, "[]"), 64)
		if err != nil {
			return nil, fmt.Errorf("base_score %q: %w", s, err)
		}
		b.baseScore = v
	}
	if len(b.features) == 0 {
		n, _ := strconv.Atoi(l.LearnerModelParam.NumFeature)
		for i := 0; i < n; i++ {
			b.features = append(b.features, "f"+strconv.Itoa(i))
		}
	}

	for i, t := range l.GradientBooster.Model.Trees {
		n := len(t.LeftChildren)
		if n == 0 || len(t.RightChildren) != n || len(t.SplitIndices) != n ||
			len(t.SplitConditions) != n || len(t.DefaultLeft) != n {
			return nil, fmt.Errorf("tree %d: inconsistent node arrays", i)
		}
		for node, idx := range t.SplitIndices {
			if t.LeftChildren[node] != -1 && (idx < 0 || idx >= len(b.features)) {
				return nil, fmt.Errorf("tree %d node %d: split on unknown feature %d", i, node, idx)
			}
		}
		b.trees = append(b.trees, tree{
			left:        t.LeftChildren,
			right:       t.RightChildren,
			splitIndex:  t.SplitIndices,
			splitCond:   t.SplitConditions,
			defaultLeft: t.DefaultLeft,
		})
	}
	if len(b.trees) == 0 {
		return nil, errors.New("model has no trees")
	}
	return b, nil
}

// Features lists the inputs the model was trained on, in order.
func (b *Booster) Features() []string {
	return append([]string(nil), b.features...)
}

// PredictProba returns the probability of the positive class. Inputs the
// model does not know are ignored; missing or NaN inputs follow each
// split's default branch.
func (b *Booster) PredictProba(in map[string]float64) (float64, error) {
	x := make([]float64, len(b.features))
	for i, name := range b.features {
		v, ok := in[name]
		if !ok {
			v = math.NaN()
		}
		x[i] = v
	}

	margin := logit(b.baseScore)
	for _, t := range b.trees {
		margin += t.leaf(x)
	}
	p := 1 / (1 + math.Exp(-margin))
	if math.IsNaN(p) {
		return 0, errors.New("prediction is NaN")
	}
	return p, nil
}

func (t tree) leaf(x []float64) float64 {
	node := 0
	for t.left[node] != -1 {
		v := x[t.splitIndex[node]]
		switch {
		case math.IsNaN(v):
			if t.defaultLeft[node] {
				node = t.left[node]
			} else {
				node = t.right[node]
			}
		case v < t.splitCond[node]:
			node = t.left[node]
		default:
			node = t.right[node]
		}
	}
	return t.splitCond[node]
}

func logit(p float64) float64 {
	switch {
	case p <= 0:
		return math.Inf(-1)
	case p >= 1:
		return math.Inf(1)
	}
	return math.Log(p / (1 - p))
}
