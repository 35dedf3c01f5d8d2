package oddsmath

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmericanToProbability(t *testing.T) {
	tests := []struct {
		name     string
		american int
		want     float64
	}{
		{"even money", 100, 0.5},
		{"favourite", -150, 0.6},
		{"underdog", 150, 0.4},
		{"heavy favourite", -400, 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AmericanToProbability(tt.american)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	_, err := AmericanToProbability(0)
	assert.True(t, errors.Is(err, ErrInvalidOdds))
}

func TestProbabilityToAmericanPair(t *testing.T) {
	tests := []struct {
		name      string
		p         float64
		wantSide  int
		wantOther int
	}{
		{"favourite", 0.6, -150, 150},
		{"underdog", 0.4, 150, -150},
		{"coin flip", 0.5, -100, 100},
		{"strong favourite", 0.8, -400, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			side, other, err := ProbabilityToAmericanPair(tt.p)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSide, side)
			assert.Equal(t, tt.wantOther, other)
		})
	}

	for _, p := range []float64{0, 1, -0.2, 1.3} {
		_, _, err := ProbabilityToAmericanPair(p)
		assert.ErrorIs(t, err, ErrInvalidOdds, "p=%v", p)
	}
}

func TestDecimalToAmerican(t *testing.T) {
	tests := []struct {
		name    string
		decimal float64
		want    int
	}{
		{"plus money", 2.5, 150},
		{"even", 2.0, 100},
		{"minus money", 1.5, -200},
		{"standard juice floors", 1.91, -110},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecimalToAmerican(tt.decimal)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := DecimalToAmerican(1.0)
	assert.ErrorIs(t, err, ErrInvalidOdds)
}

func TestAmericanToDecimal(t *testing.T) {
	got, err := AmericanToDecimal(150)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, got, 1e-9)

	got, err = AmericanToDecimal(-200)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, got, 1e-9)
}

func TestIsPick(t *testing.T) {
	assert.True(t, IsPick(-150, -110, -120))
	assert.False(t, IsPick(-150, 105, -120), "book must favour the side")
	assert.False(t, IsPick(-115, -130, -120), "model price not strong enough")
}

func TestEdge(t *testing.T) {
	edge, err := Edge(0.65, -150)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, edge, 1e-9)
}
