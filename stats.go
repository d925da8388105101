package seqio

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// statsAccumulator is one partial aggregate of split statistics. All
// of its fields combine associatively and commutatively (sum, sum,
// max), so partials from independent workers can be merged in any
// order and any tree shape.
type statsAccumulator struct {
	examples  int64
	tokens    map[string]int64
	maxTokens map[string]int64
}

func newStatsAccumulator() *statsAccumulator {
	return &statsAccumulator{
		tokens:    make(map[string]int64),
		maxTokens: make(map[string]int64),
	}
}

// observe folds one record into the partial. Token statistics cover
// only declared output features whose actual value is an integer
// array; "tokens" are elements greater than 1, a proxy for
// non-padding, non-sentinel content.
func (a *statsAccumulator) observe(rec Record, features map[string]Feature) {
	a.examples++
	for name := range features {
		v, ok := rec[name]
		if !ok {
			continue
		}
		n, ok := tokenCount(v)
		if !ok {
			continue
		}
		a.tokens[name] += n
		if cur, ok := a.maxTokens[name]; !ok || n > cur {
			a.maxTokens[name] = n
		}
	}
}

// merge folds another partial into a.
func (a *statsAccumulator) merge(b *statsAccumulator) {
	a.examples += b.examples
	for name, n := range b.tokens {
		a.tokens[name] += n
	}
	for name, n := range b.maxTokens {
		if cur, ok := a.maxTokens[name]; !ok || n > cur {
			a.maxTokens[name] = n
		}
	}
}

// finalize merges the three sub-aggregates into the stats dictionary.
// A key collision between sub-aggregates is an internal-consistency
// violation and fails loudly instead of letting one value overwrite
// another.
func (a *statsAccumulator) finalize() (map[string]int64, error) {
	merged := make(map[string]int64, 1+len(a.tokens)+len(a.maxTokens))
	merged["examples"] = a.examples

	for name, n := range a.tokens {
		key := name + "_tokens"
		if _, dup := merged[key]; dup {
			return nil, &StatsKeyError{Key: key}
		}
		merged[key] = n
	}
	for name, n := range a.maxTokens {
		key := name + "_max_tokens"
		if _, dup := merged[key]; dup {
			return nil, &StatsKeyError{Key: key}
		}
		merged[key] = n
	}
	return merged, nil
}

// computeStats consumes the full record stream for one split and
// writes its statistics file. Records are folded into per-worker
// partials in parallel and the partials are reduced afterwards; shard
// outputs arrive from independent workers with no ordering, which the
// combine tolerates by construction.
func (p *Pipeline) computeStats(ctx context.Context, in <-chan Record, task *Task, taskDir, split string) error {
	partials := make([]*statsAccumulator, p.parallelism)
	g, gctx := errgroup.WithContext(ctx)
	for i := range partials {
		partials[i] = newStatsAccumulator()
		i := i
		g.Go(func() error {
			for rec := range in {
				partials[i].observe(rec, task.OutputFeatures)
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	total := partials[0]
	for _, partial := range partials[1:] {
		total.merge(partial)
	}
	stats, err := total.finalize()
	if err != nil {
		return err
	}
	if err := p.writeJSON(statsPath(taskDir, split), stats); err != nil {
		return fmt.Errorf("failed to write stats: %w", err)
	}
	return nil
}
