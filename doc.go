/*
Package seqio precomputes and durably caches the output of expensive
per-example data preparation for named tasks, each task yielding one or
more named splits.

# Overview

A Pipeline runs the transformation exactly once per (task, split) and
stores the transformed records plus derived metadata, so downstream
consumers can detect a usable cache instead of recomputing on the fly.
A task's cache is all-or-nothing: the per-task COMPLETED marker is the
only authoritative signal that every split's artifacts are complete and
mutually consistent.

# Cache Layout

Each task writes under {cacheRoot}/{taskDirName}/:

	{split}.records-00000-of-NNNNN  - one file per record partition
	info.{split}.json               - schema descriptor (features, shard count, version)
	stats.{split}.json              - statistics (example and token counts)
	COMPLETED                       - marker, written last

The partition count equals the input shard count of the split's source.
Record order is never meaningful: shards are processed in parallel and
funneled through an explicit reshuffle boundary for load balancing.

# Basic Usage

Registering a task and running the pipeline:

	registry := seqio.NewRegistry()
	err := registry.Add(&seqio.Task{
	    Name:            "my_task",
	    Splits:          []string{"train", "validation"},
	    OutputFeatures:  map[string]seqio.Feature{"targets": {DType: seqio.DTypeInt32}},
	    Source:          seqio.NewLineSource(nil, map[string][]string{
	        "train":      {"data/train-*.txt"},
	        "validation": {"data/validation.txt"},
	    }),
	    Transform:       tokenize,
	    SupportsCaching: true,
	})
	if err != nil {
	    log.Fatal(err)
	}

	p := seqio.New(registry)
	dirs, err := p.Run(ctx, seqio.RunRequest{
	    IncludePatterns: []string{"my_*"},
	    OutputDir:       "/path/to/cache",
	})

Tasks already cached at the output directory (or at any additional
cache directory) are skipped unless overwriting is requested;
overwriting is refused when the existing cache lives somewhere other
than the requested output directory.

# Concurrency

Tasks, splits within a task, and shards within a split all execute
concurrently. A failed task never blocks its siblings and never writes
its marker; partial files it may leave behind are untrusted by
contract.
*/
package seqio
