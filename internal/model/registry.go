package model

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/sport"
)

type key struct {
	sport  sport.Sport
	market sport.Market
}

type entry struct {
	path    string
	booster *Booster
}

// Registry holds one booster per sport and market.
type Registry struct {
	mu     sync.RWMutex
	models map[key]entry
	logger *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		models: make(map[key]entry),
		logger: logger.Named("model"),
	}
}

// Load reads a model file and registers it for a market.
func (r *Registry) Load(s sport.Sport, m sport.Market, path string) error {
	b, err := Load(path)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	r.mu.Lock()
	r.models[key{s, m}] = entry{path: abs, booster: b}
	r.mu.Unlock()

	r.logger.Info("loaded model",
		zap.String("sport", s.String()),
		zap.String("market", string(m)),
		zap.String("path", path),
		zap.Int("features", len(b.features)),
		zap.Int("trees", len(b.trees)),
	)
	return nil
}

// LoadAll loads every configured model of a sport. Missing files are
// logged and skipped so the other markets still predict.
func (r *Registry) LoadAll(s sport.Sport, paths map[string]string) int {
	loaded := 0
	for market, path := range paths {
		if err := r.Load(s, sport.Market(market), path); err != nil {
			r.logger.Warn("⚠ model unavailable",
				zap.String("sport", s.String()),
				zap.String("market", market),
				zap.Error(err),
			)
			continue
		}
		loaded++
	}
	return loaded
}

// Get returns the booster of a market.
func (r *Registry) Get(s sport.Sport, m sport.Market) (*Booster, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.models[key{s, m}]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", s, m, ErrModelNotLoaded)
	}
	return e.booster, nil
}

// Predict scores inputs with the booster of a market.
func (r *Registry) Predict(s sport.Sport, m sport.Market, in map[string]float64) (float64, error) {
	b, err := r.Get(s, m)
	if err != nil {
		return 0, err
	}
	return b.PredictProba(StripLabels(in))
}

// Markets lists the markets with a loaded model.
func (r *Registry) Markets(s sport.Sport) []sport.Market {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []sport.Market
	for k := range r.models {
		if k.sport == s {
			out = append(out, k.market)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Watch reloads registered model files when they are written or replaced.
// A file that fails to parse keeps the previous model. Watch blocks until
// ctx is done.
func (r *Registry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating model watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range r.dirs() {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			r.reload(event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("model watcher error", zap.Error(err))
		}
	}
}

func (r *Registry) dirs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	var dirs []string
	for _, e := range r.models {
		d := filepath.Dir(e.path)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	sort.Strings(dirs)
	return dirs
}

func (r *Registry) reload(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	r.mu.RLock()
	var keys []key
	for k, e := range r.models {
		if e.path == abs {
			keys = append(keys, k)
		}
	}
	r.mu.RUnlock()
	if len(keys) == 0 {
		return
	}

	b, err := Load(abs)
	if err != nil {
		r.logger.Warn("model reload failed", zap.String("path", abs), zap.Error(err))
		return
	}

	r.mu.Lock()
	for _, k := range keys {
		r.models[k] = entry{path: abs, booster: b}
	}
	r.mu.Unlock()
	r.logger.Info("reloaded model", zap.String("path", abs))
}
