package oddsmath

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidOdds is returned for prices or probabilities outside their domain.
var ErrInvalidOdds = errors.New("invalid odds")

// AmericanToProbability converts American odds to an implied probability.
// American -150 → 0.60
// American +150 → 0.40
func AmericanToProbability(american int) (float64, error) {
	if american == 0 {
		return 0, fmt.Errorf("%w: american odds cannot be 0", ErrInvalidOdds)
	}

	if american < 0 {
		o := float64(-american)
		return o / (o + 100.0), nil
	}

	return 100.0 / (float64(american) + 100.0), nil
}

// ProbabilityToAmericanPair converts a model win probability into the
// two-sided fair American line: the first price is for the side the
// probability describes, the second for its opponent.
// 0.60 → (-150, +150)
// 0.40 → (+150, -150)
func ProbabilityToAmericanPair(p float64) (int, int, error) {
	if p <= 0 || p >= 1 || math.IsNaN(p) {
		return 0, 0, fmt.Errorf("%w: probability %v outside (0, 1)", ErrInvalidOdds, p)
	}

	if p < 0.5 {
		side := int(math.RoundToEven(100.0/p - 100.0))
		other := -int(math.RoundToEven(1.0 / (1.0/(1.0-p) - 1.0) * 100.0))
		return side, other, nil
	}

	side := -int(math.RoundToEven(1.0 / (1.0/p - 1.0) * 100.0))
	other := int(math.RoundToEven(100.0/(1.0-p) - 100.0))
	return side, other, nil
}

// DecimalToAmerican converts sportsbook decimal odds to American odds,
// truncating toward negative infinity the way the feed's own display does.
// Decimal 2.50 → American +150
// Decimal 1.91 → American -110
func DecimalToAmerican(decimal float64) (int, error) {
	if decimal <= 1.0 || math.IsNaN(decimal) {
		return 0, fmt.Errorf("%w: decimal odds must be > 1.0, got %v", ErrInvalidOdds, decimal)
	}

	if decimal >= 2.0 {
		return int(math.Floor((decimal - 1.0) * 100.0)), nil
	}

	return int(math.Floor(-100.0 / (decimal - 1.0))), nil
}

// AmericanToDecimal converts American odds to decimal odds.
// American +150 → Decimal 2.50
// American -150 → Decimal 1.67
func AmericanToDecimal(american int) (float64, error) {
	if american == 0 {
		return 0, fmt.Errorf("%w: american odds cannot be 0", ErrInvalidOdds)
	}

	if american > 0 {
		return (float64(american) / 100.0) + 1.0, nil
	}

	return (100.0 / float64(-american)) + 1.0, nil
}

// IsPick reports whether the model's fair price for a side is strong enough
// to recommend: the model must price the side below threshold (e.g. -120)
// and the book must also have it as the favourite.
func IsPick(modelOdds, bookOdds, threshold int) bool {
	return modelOdds < threshold && bookOdds < 0
}

// Edge is the model probability minus the book's implied probability.
func Edge(modelProb float64, bookOdds int) (float64, error) {
	implied, err := AmericanToProbability(bookOdds)
	if err != nil {
		return 0, err
	}
	return modelProb - implied, nil
}
