package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fortuna/augur/internal/sport"
	"github.com/fortuna/augur/internal/store"
)

func TestStreamNames(t *testing.T) {
	assert.Equal(t, "predictions.nba", PredictionStream(sport.NBA))
	assert.Equal(t, "settlements.ufc", SettlementStream(sport.UFC))
}

func TestValues(t *testing.T) {
	at := time.Date(2024, 7, 14, 9, 0, 0, 0, time.UTC)
	v := Values([]byte(`{"a":1}`), at)
	assert.Equal(t, `{"a":1}`, v["data"])
	assert.Equal(t, at.Unix(), v["timestamp"])
}

type sinkFunc struct {
	err   error
	calls int
}

func (s *sinkFunc) PublishPrediction(context.Context, sport.Sport, store.Prediction) error {
	s.calls++
	return s.err
}

func (s *sinkFunc) PublishSettlement(context.Context, sport.Sport, Settlement) error {
	s.calls++
	return s.err
}

func TestFanout(t *testing.T) {
	bad := &sinkFunc{err: errors.New("stream down")}
	good := &sinkFunc{}
	f := Fanout{bad, good}

	err := f.PublishPrediction(context.Background(), sport.NBA, store.Prediction{})
	assert.ErrorContains(t, err, "stream down")
	assert.NoError(t, Fanout{good}.PublishSettlement(context.Background(), sport.NBA, Settlement{}))
	assert.Equal(t, 2, good.calls)
	assert.Equal(t, 1, bad.calls)
}
