package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fortuna/augur/internal/ingest/fetch"
	"github.com/fortuna/augur/internal/sport"
)

var _ fetch.PageCache = (*RedisCache)(nil)

func TestPredictionsKey(t *testing.T) {
	assert.Equal(t, "predictions:atp", PredictionsKey(sport.ATP))
}
