package engine

import (
	"golang.org/x/sync/errgroup"
)

// ============================================================================
// ENGINE OPTIONS: Functional options for Aggregate()
// ============================================================================

// Option configures engine behavior via functional options pattern.
type Option func(*config)

type config struct {
	shards      int
	concurrency int // max shards accumulated at once; 0 = all
}

// WithShards splits the view into n contiguous shards accumulated in parallel.
// n <= 1 runs a single pass.
func WithShards(n int) Option {
	return func(c *config) {
		c.shards = n
	}
}

// WithConcurrency bounds how many shards are accumulated at the same time.
func WithConcurrency(n int) Option {
	return func(c *config) {
		c.concurrency = n
	}
}

// applyOptions creates a config from functional options.
func applyOptions(opts []Option) *config {
	cfg := &config{shards: 1}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// ============================================================================
// SHARDED EXECUTION
// ============================================================================

func aggregateSharded(view RecordView, q Query, cfg *config) ([]AggregateRow, error) {
	if err := Validate(view, q); err != nil {
		return nil, err
	}

	partials := make([]*Partial, cfg.shards)
	var g errgroup.Group
	if cfg.concurrency > 0 {
		g.SetLimit(cfg.concurrency)
	}
	for s := 0; s < cfg.shards; s++ {
		g.Go(func() error {
			p, err := Accumulate(Shard(view, s, cfg.shards), q)
			if err != nil {
				return err
			}
			partials[s] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := partials[0]
	for _, p := range partials[1:] {
		if err := merged.Merge(p); err != nil {
			return nil, err
		}
	}
	return merged.Rows(), nil
}
