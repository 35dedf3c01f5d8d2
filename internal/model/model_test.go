package model

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/fortuna/augur/internal/sport"
)

// stump splits on elo < 1500 (missing goes right) and then on rest < 2
// (missing goes left).
const stump = `{
  "learner": {
    "feature_names": ["elo", "rest"],
    "learner_model_param": {"base_score": "%s", "num_feature": "2"},
    "objective": {"name": "binary:logistic"},
    "gradient_booster": {"model": {"trees": [
      {
        "left_children":   [1, -1, -1],
        "right_children":  [2, -1, -1],
        "split_indices":   [0, 0, 0],
        "split_conditions":[1500, -0.4, 0.3],
        "default_left":    [0, 0, 0],
        "base_weights":    [0, -0.4, 0.3]
      },
      {
        "left_children":   [1, -1, -1],
        "right_children":  [2, -1, -1],
        "split_indices":   [1, 0, 0],
        "split_conditions":[2, 0.1, -0.2],
        "default_left":    [true, false, false],
        "base_weights":    [0, 0.1, -0.2]
      }
    ]}}
  }
}`

func model(baseScore string) []byte {
	return []byte(fmt.Sprintf(stump, baseScore))
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func TestPredictProba(t *testing.T) {
	b, err := Parse(model("5E-1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"elo", "rest"}, b.Features())

	tests := []struct {
		name string
		in   map[string]float64
		want float64
	}{
		{"low elo short rest", map[string]float64{"elo": 1400, "rest": 1}, sigmoid(-0.4 + 0.1)},
		{"high elo long rest", map[string]float64{"elo": 1600, "rest": 3}, sigmoid(0.3 - 0.2)},
		{"split value goes right", map[string]float64{"elo": 1500, "rest": 2}, sigmoid(0.3 - 0.2)},
		{"missing follows default", map[string]float64{}, sigmoid(0.3 + 0.1)},
		{"NaN is missing", map[string]float64{"elo": math.NaN(), "rest": math.NaN()}, sigmoid(0.3 + 0.1)},
		{"unknown inputs ignored", map[string]float64{"elo": 1400, "rest": 1, "x": 9}, sigmoid(-0.4 + 0.1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := b.PredictProba(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, p, 1e-12)
		})
	}
}

func TestBaseScoreShiftsMargin(t *testing.T) {
	b, err := Parse(model("[7.5E-1]"))
	require.NoError(t, err)
	p, err := b.PredictProba(map[string]float64{"elo": 1400, "rest": 1})
	require.NoError(t, err)
	assert.InDelta(t, sigmoid(math.Log(3)-0.3), p, 1e-12)
}

func TestParseRejectsBadModels(t *testing.T) {
	_, err := Parse([]byte(`{"learner":{"objective":{"name":"reg:squarederror"}}}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"learner":{"feature_names":["a"],"gradient_booster":{"model":{"trees":[]}}}}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"learner":{"feature_names":["a"],"gradient_booster":{"model":{"trees":[
		{"left_children":[1,-1,-1],"right_children":[2,-1,-1],"split_indices":[4,0,0],
		 "split_conditions":[1,0,0],"default_left":[0,0,0]}]}}}}`))
	assert.Error(t, err, "split on a feature the model does not name")
}

func TestStripLabels(t *testing.T) {
	in := map[string]float64{"result": 1, "team_spread": -3, "points": 101, "last_5_team_points": 110}
	out := StripLabels(in)
	assert.Equal(t, map[string]float64{"last_5_team_points": 110}, out)
	assert.Len(t, in, 4, "input untouched")
}

func writeModel(t *testing.T, path, baseScore string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, model(baseScore), 0o644))
	require.NoError(t, os.Rename(tmp, path))
}

func TestRegistry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "moneyline.json")
	writeModel(t, path, "5E-1")

	r := NewRegistry(nil)
	_, err := r.Get(sport.NBA, sport.Moneyline)
	assert.ErrorIs(t, err, ErrModelNotLoaded)

	loaded := r.LoadAll(sport.NBA, map[string]string{
		"moneyline": path,
		"spread":    filepath.Join(dir, "missing.json"),
	})
	assert.Equal(t, 1, loaded)
	assert.Equal(t, []sport.Market{sport.Moneyline}, r.Markets(sport.NBA))

	p, err := r.Predict(sport.NBA, sport.Moneyline, map[string]float64{"elo": 1400, "rest": 1, "result": 1})
	require.NoError(t, err)
	assert.InDelta(t, sigmoid(-0.3), p, 1e-12)
}

func TestWatchReloadsModel(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "moneyline.json")
	writeModel(t, path, "5E-1")

	r := NewRegistry(nil)
	require.NoError(t, r.Load(sport.UFC, sport.Moneyline, path))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx) }()

	in := map[string]float64{"elo": 1400, "rest": 1}
	require.Eventually(t, func() bool {
		writeModel(t, path, "7.5E-1")
		p, err := r.Predict(sport.UFC, sport.Moneyline, in)
		return err == nil && math.Abs(p-sigmoid(math.Log(3)-0.3)) < 1e-12
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
