package publisher

import (
	"context"
	"errors"

	"github.com/fortuna/augur/internal/sport"
	"github.com/fortuna/augur/internal/store"
)

// Sink receives predictions and settlements.
type Sink interface {
	PublishPrediction(ctx context.Context, s sport.Sport, p store.Prediction) error
	PublishSettlement(ctx context.Context, s sport.Sport, st Settlement) error
}

// Fanout publishes to every sink. A failing sink does not stop the others.
type Fanout []Sink

// PublishPrediction sends a prediction to every sink.
func (f Fanout) PublishPrediction(ctx context.Context, s sport.Sport, p store.Prediction) error {
	var errs []error
	for _, sink := range f {
		if err := sink.PublishPrediction(ctx, s, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishSettlement sends a settlement to every sink.
func (f Fanout) PublishSettlement(ctx context.Context, s sport.Sport, st Settlement) error {
	var errs []error
	for _, sink := range f {
		if err := sink.PublishSettlement(ctx, s, st); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
