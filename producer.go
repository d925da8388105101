package seqio

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// produceRecords fans a split's work out across its shards and funnels
// every transformed record into out, the reshuffle channel. The shard
// count is fixed from the source's partitioning at planning time and
// is not renegotiated here. out is closed when all shards are done, or
// on failure.
func (p *Pipeline) produceRecords(ctx context.Context, log *zap.Logger, task *Task, split string, numShards, perShard int, capped bool, out chan<- Record) error {
	defer close(out)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)
	for i := 0; i < numShards; i++ {
		shard := ShardInfo{Index: i, NumShards: numShards}
		g.Go(func() error {
			if err := p.emitShard(gctx, log, task, split, shard, perShard, capped, out); err != nil {
				return fmt.Errorf("shard %d of %d: %w", shard.Index, shard.NumShards, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// emitShard reads one shard's raw records, applies the task's
// transform, and sends the transformed records downstream. With a cap
// in effect the shard repeats its stream from the start until it has
// consumed exactly perShard raw records, or stops early if the shard
// is empty.
func (p *Pipeline) emitShard(ctx context.Context, log *zap.Logger, task *Task, split string, shard ShardInfo, perShard int, capped bool, out chan<- Record) error {
	namespace := fmt.Sprintf("%s_%s", task.Name, split)
	p.counters.Inc(namespace, "input-shards")
	log.Debug("processing shard",
		zap.String("task", task.Name),
		zap.String("split", split),
		zap.Int("shard", shard.Index))

	if capped && perShard == 0 {
		return nil
	}

	consumed := 0
	emitted := 0
	for {
		it, err := task.Source.OpenShard(split, shard)
		if err != nil {
			return fmt.Errorf("failed to open shard: %w", err)
		}
		readAny := false
		for {
			raw, err := it.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				it.Close()
				return fmt.Errorf("failed to read record: %w", err)
			}
			readAny = true

			recs, err := task.Transform(raw)
			if err != nil {
				it.Close()
				return fmt.Errorf("transform failed: %w", err)
			}
			for _, rec := range recs {
				p.counters.Inc(namespace, "examples")
				// Log every power of two.
				if emitted&(emitted-1) == 0 {
					log.Debug("example",
						zap.String("namespace", namespace),
						zap.Int("index", emitted),
						zap.String("record", spew.Sdump(rec)))
				}
				emitted++
				select {
				case out <- rec:
				case <-ctx.Done():
					it.Close()
					return ctx.Err()
				}
			}

			consumed++
			if capped && consumed >= perShard {
				return it.Close()
			}
		}
		if err := it.Close(); err != nil {
			return fmt.Errorf("failed to close shard: %w", err)
		}
		// An uncapped shard ends with its stream; an empty shard can
		// never satisfy its cap, so it ends too.
		if !capped || !readAny {
			return nil
		}
	}
}

// broadcastRecords multicasts the reshuffled record stream to each
// consumer channel, so the three sinks observe the same logical stream
// without re-running the transform. All consumer channels are closed
// on return.
func broadcastRecords(ctx context.Context, in <-chan Record, outs ...chan Record) error {
	defer func() {
		for _, out := range outs {
			close(out)
		}
	}()

	for rec := range in {
		for _, out := range outs {
			select {
			case out <- rec:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}
