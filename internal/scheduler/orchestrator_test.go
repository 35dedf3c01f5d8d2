package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/fortuna/augur/internal/config"
	"github.com/fortuna/augur/internal/ingest"
	"github.com/fortuna/augur/internal/service"
	"github.com/fortuna/augur/internal/sport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePipeline struct {
	mu          sync.Mutex
	scrapes     int
	odds        int
	predicts    int
	settles     int
	scrapeFails int
	predictErr  error
	block       chan struct{}
}

func (f *fakePipeline) Scrape(ctx context.Context, s sport.Sport) (ingest.Summary, error) {
	f.mu.Lock()
	f.scrapes++
	fail := f.scrapes <= f.scrapeFails
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ingest.Summary{}, ctx.Err()
		}
	}
	if fail {
		return ingest.Summary{}, errors.New("blocked")
	}
	return ingest.Summary{Sport: s, Games: 12}, nil
}

func (f *fakePipeline) Odds(context.Context, sport.Sport) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.odds++
	return 4, nil
}

func (f *fakePipeline) predictor() Predictor { return predictStage{f} }
func (f *fakePipeline) settler() Settler     { return settleStage{f} }

type predictStage struct{ f *fakePipeline }

func (s predictStage) Run(_ context.Context, sp sport.Sport) (*service.RunSummary, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	s.f.predicts++
	if s.f.predictErr != nil {
		return nil, s.f.predictErr
	}
	return &service.RunSummary{Sport: sp, Events: 3}, nil
}

type settleStage struct{ f *fakePipeline }

func (s settleStage) Run(_ context.Context, sp sport.Sport) (*service.SettleSummary, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	s.f.settles++
	return &service.SettleSummary{Sport: sp, Settled: 1}, nil
}

func (f *fakePipeline) counts() (int, int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scrapes, f.odds, f.predicts, f.settles
}

// onlyNBA enables a single sport with a long odds interval.
func onlyNBA() *config.Config {
	sports := config.DefaultSports()
	for s, sc := range sports {
		sc.Enabled = s == sport.NBA
		sc.OddsPollInterval = time.Hour
		sports[s] = sc
	}
	return &config.Config{Sports: sports}
}

func statusOf(t *testing.T, o *Orchestrator) SportStatus {
	t.Helper()
	st := o.Status()
	require.Len(t, st, 1)
	return st[0]
}

func TestTriggerNow(t *testing.T) {
	f := &fakePipeline{scrapeFails: 1}
	o := NewOrchestrator(onlyNBA(), f, f.predictor(), f.settler(),
		&Config{EnableDaily: true, EnableOddsPolling: true, MaxRetries: 2, RetryDelay: time.Millisecond}, nil)

	assert.ErrorIs(t, o.TriggerNow(sport.NBA), ErrNotStarted)

	o.Start(context.Background())
	defer o.Stop()

	require.NoError(t, o.TriggerNow(sport.NBA))
	assert.Error(t, o.TriggerNow(sport.NFL), "disabled sport")

	require.Eventually(t, func() bool {
		st := statusOf(t, o)
		return !st.Running && !st.LastRun.IsZero()
	}, 2*time.Second, 5*time.Millisecond)

	scrapes, odds, predicts, settles := f.counts()
	assert.Equal(t, 2, scrapes, "first attempt retried")
	assert.GreaterOrEqual(t, odds, 1)
	assert.Equal(t, 1, predicts)
	assert.Equal(t, 1, settles)

	st := statusOf(t, o)
	assert.Empty(t, st.LastError)
	assert.Equal(t, 12, st.LastScrape.Games)
	assert.Equal(t, 3, st.LastPredict.Events)
	assert.Equal(t, 1, st.LastSettle.Settled)
	assert.Equal(t, 9, st.DailyHour)
	assert.False(t, st.NextRun.IsZero())
}

func TestTriggerNowWhileRunning(t *testing.T) {
	f := &fakePipeline{block: make(chan struct{})}
	o := NewOrchestrator(onlyNBA(), f, f.predictor(), f.settler(),
		&Config{MaxRetries: 1}, nil)
	o.Start(context.Background())

	require.NoError(t, o.TriggerNow(sport.NBA))
	assert.ErrorIs(t, o.TriggerNow(sport.NBA), ErrAlreadyRunning)
	assert.True(t, statusOf(t, o).Running)

	close(f.block)
	require.Eventually(t, func() bool { return !statusOf(t, o).Running }, 2*time.Second, 5*time.Millisecond)
	o.Stop()
}

func TestStopCancelsRetries(t *testing.T) {
	f := &fakePipeline{scrapeFails: 100}
	o := NewOrchestrator(onlyNBA(), f, f.predictor(), f.settler(),
		&Config{MaxRetries: 5, RetryDelay: time.Hour}, nil)
	o.Start(context.Background())
	require.NoError(t, o.TriggerNow(sport.NBA))

	require.Eventually(t, func() bool {
		s, _, _, _ := f.counts()
		return s == 1
	}, 2*time.Second, 5*time.Millisecond)
	o.Stop()

	st := statusOf(t, o)
	assert.Contains(t, st.LastError, "context canceled")
	_, _, predicts, _ := f.counts()
	assert.Zero(t, predicts)
}

func TestSettlesAfterPredictFailure(t *testing.T) {
	f := &fakePipeline{predictErr: errors.New("model missing")}
	o := NewOrchestrator(onlyNBA(), f, f.predictor(), f.settler(), &Config{MaxRetries: 1}, nil)
	o.Start(context.Background())
	defer o.Stop()

	require.NoError(t, o.TriggerNow(sport.NBA))
	require.Eventually(t, func() bool {
		st := statusOf(t, o)
		return !st.Running && !st.LastRun.IsZero()
	}, 2*time.Second, 5*time.Millisecond)

	_, _, predicts, settles := f.counts()
	assert.Equal(t, 1, predicts)
	assert.Equal(t, 1, settles)

	st := statusOf(t, o)
	assert.Contains(t, st.LastError, "model missing")
	require.NotNil(t, st.LastSettle)
	assert.Equal(t, 1, st.LastSettle.Settled)
}

func TestRestartAfterStop(t *testing.T) {
	f := &fakePipeline{}
	o := NewOrchestrator(onlyNBA(), f, f.predictor(), f.settler(), &Config{MaxRetries: 1}, nil)

	o.Start(context.Background())
	o.Stop()
	assert.ErrorIs(t, o.TriggerNow(sport.NBA), ErrNotStarted)

	o.Start(context.Background())
	defer o.Stop()
	require.NoError(t, o.TriggerNow(sport.NBA))
	require.Eventually(t, func() bool {
		_, _, _, settles := f.counts()
		return settles == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestNextRun(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		now  time.Time
		hour int
		want time.Time
	}{
		{time.Date(2024, 3, 1, 8, 0, 0, 0, loc), 9, time.Date(2024, 3, 1, 9, 0, 0, 0, loc)},
		{time.Date(2024, 3, 1, 9, 0, 0, 0, loc), 9, time.Date(2024, 3, 2, 9, 0, 0, 0, loc)},
		{time.Date(2024, 12, 31, 23, 0, 0, 0, loc), 6, time.Date(2025, 1, 1, 6, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NextRun(tt.now, tt.hour))
	}
}
