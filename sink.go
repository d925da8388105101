package seqio

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// sinkRecords persists the reshuffled record stream for one split as
// numShards partition files. Output partitioning is coupled to input
// partitioning by design; each partition is written by an independent
// worker and records are distributed round-robin. Every partition file
// is created even when it receives no records, so an empty split still
// produces its full artifact set.
func (p *Pipeline) sinkRecords(ctx context.Context, in <-chan Record, taskDir, split string, numShards int) error {
	if numShards == 0 {
		for range in {
		}
		return ctx.Err()
	}

	prefix := recordsPrefix(taskDir, split)
	parts := make([]chan Record, numShards)
	g, gctx := errgroup.WithContext(ctx)
	for i := range parts {
		parts[i] = make(chan Record, 1)
		path := partitionPath(prefix, i, numShards)
		i := i
		g.Go(func() error {
			if err := p.writePartition(parts[i], path); err != nil {
				return fmt.Errorf("partition %s: %w", path, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			for _, part := range parts {
				close(part)
			}
		}()
		next := 0
		for rec := range in {
			select {
			case parts[next] <- rec:
			case <-gctx.Done():
				return gctx.Err()
			}
			next = (next + 1) % numShards
		}
		return nil
	})

	return g.Wait()
}

// writePartition writes one partition file from its record channel.
func (p *Pipeline) writePartition(in <-chan Record, path string) error {
	f, err := p.fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create partition file: %w", err)
	}

	w := p.codec.NewWriter(f)
	for rec := range in {
		if err := w.Write(rec); err != nil {
			w.Close()
			f.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to finalize partition: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close partition file: %w", err)
	}
	return nil
}
