package seqio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pipeline precomputes and durably caches the transformed records of
// registered tasks. Each run selects tasks by name pattern, applies
// the per-task cache decision, and for every task that proceeds writes
// one CacheArtifactSet per split plus a single completion marker.
type Pipeline struct {
	registry *Registry
	fs       afero.Fs
	log      *zap.Logger
	stdout   io.Writer
	codec    Codec
	counters *Counters
	nowFunc  func() time.Time

	parallelism       int
	bufferSize        int
	completedContents string
}

// New creates a pipeline over the given task registry.
func New(registry *Registry, options ...Option) *Pipeline {
	p := &Pipeline{
		registry:    registry,
		fs:          afero.NewOsFs(),
		log:         zap.NewNop(),
		stdout:      os.Stdout,
		codec:       BinaryCodec{},
		counters:    NewCounters(),
		nowFunc:     time.Now,
		parallelism: runtime.NumCPU(),
		bufferSize:  256,
	}

	// Apply options
	for _, option := range options {
		option(p)
	}

	return p
}

// Counters returns the pipeline's counter registry.
func (p *Pipeline) Counters() *Counters {
	return p.counters
}

// RunRequest describes one cache run.
type RunRequest struct {
	// IncludePatterns selects tasks by name (full-string wildcard
	// matches). Empty means all registered tasks.
	IncludePatterns []string

	// ExcludePatterns removes tasks from the selection. Exclusion takes
	// precedence over inclusion.
	ExcludePatterns []string

	// OutputDir is the cache root; each task writes under
	// OutputDir/TaskDirName(task).
	OutputDir string

	// MaxInputExamples caps the raw records consumed per task split.
	// The cap is divided evenly across shards, each shard repeating and
	// truncating its own stream independently, so it is approximate
	// rather than an exact global limit. Zero means no cap.
	MaxInputExamples int

	// AdditionalCacheDirs are extra roots searched for existing caches
	// after OutputDir.
	AdditionalCacheDirs []string

	// Overwrite requests recomputation of already-cached tasks. It only
	// succeeds when the existing cache lives at the requested output
	// location; caches found elsewhere are refused.
	Overwrite bool
}

// Run executes one cache run and returns the output directories that
// were (re)populated, in task registration order. A directory appears
// in the result only if every split's artifacts and the task's
// completion marker were durably written. Failures of individual tasks
// do not abort their siblings; they are joined into the returned
// error.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) ([]string, error) {
	start := p.nowFunc()
	log := p.log.With(zap.String("run_id", uuid.NewString()))

	if req.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if err := p.fs.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	tasks, err := p.registry.Select(req.IncludePatterns, req.ExcludePatterns)
	if err != nil {
		return nil, err
	}

	// Plan phase: every decision and conflict is resolved and reported
	// before any transformation work starts.
	searchDirs := append([]string{req.OutputDir}, req.AdditionalCacheDirs...)
	var plans []*taskPlan
	for _, task := range tasks {
		plan, err := p.planTask(log, task, req.OutputDir, searchDirs, req.Overwrite)
		if err != nil {
			return nil, err
		}
		if plan != nil {
			plans = append(plans, plan)
		}
	}

	// Execute phase: tasks run concurrently, each fully independent
	// once planned. A failed task must not cancel its siblings, so the
	// group carries no shared cancellation; failures are collected per
	// task instead.
	results := make([]error, len(plans))
	var g errgroup.Group
	g.SetLimit(p.parallelism)
	for i, plan := range plans {
		i, plan := i, plan
		g.Go(func() error {
			results[i] = p.runTask(ctx, log, plan, req.MaxInputExamples)
			return nil
		})
	}
	_ = g.Wait()

	var dirs []string
	var errs []error
	for i, plan := range plans {
		if results[i] != nil {
			errs = append(errs, fmt.Errorf("task %q: %w", plan.task.Name, results[i]))
			continue
		}
		dirs = append(dirs, plan.outputDir)
	}

	log.Info("run finished",
		zap.Int("tasks_planned", len(plans)),
		zap.Int("tasks_cached", len(dirs)),
		zap.Int("tasks_failed", len(errs)),
		zap.Duration("elapsed", p.nowFunc().Sub(start)))
	return dirs, errors.Join(errs...)
}

// planTask applies the cache decision for one task. It returns nil for
// tasks that are skipped or refused. On an overwrite decision the
// existing artifacts are deleted here, before any work begins.
func (p *Pipeline) planTask(log *zap.Logger, task *Task, outputRoot string, searchDirs []string, overwrite bool) (*taskPlan, error) {
	outputDir := filepath.Join(outputRoot, TaskDirName(task.Name))
	cacheDir, err := p.discoverCacheDir(searchDirs, task.Name)
	if err != nil {
		return nil, err
	}

	decision := p.decide(log, task, outputDir, cacheDir, overwrite)
	switch decision {
	case DecisionSkip, DecisionRefuse:
		return nil, nil
	case DecisionOverwrite:
		if err := p.fs.RemoveAll(outputDir); err != nil {
			return nil, fmt.Errorf("failed to delete cached task %q: %w", task.Name, err)
		}
	}

	fmt.Fprintf(p.stdout, "Caching task '%s' with splits: %v\n", task.Name, task.Splits)
	return &taskPlan{task: task, outputDir: outputDir, decision: decision}, nil
}

// runTask executes one planned task: all splits concurrently, then the
// completion marker. The marker is written only after every split's
// record, info and stats artifacts are durably written; on any failure
// it is suppressed and whatever partial files exist stay untrusted.
func (p *Pipeline) runTask(ctx context.Context, log *zap.Logger, plan *taskPlan, maxInputExamples int) error {
	task := plan.task
	if !task.Source.Shardable() {
		log.Warn("task source cannot be sharded; processing with a single shard",
			zap.String("task", task.Name))
	}
	if err := p.fs.MkdirAll(plan.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create task dir: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, split := range task.Splits {
		split := split
		g.Go(func() error {
			if err := p.runSplit(gctx, log, task, split, plan.outputDir, maxInputExamples); err != nil {
				return fmt.Errorf("split %q: %w", split, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := p.writeCompleted(plan.outputDir); err != nil {
		return err
	}
	log.Info("task cached",
		zap.String("task", task.Name),
		zap.String("output_dir", plan.outputDir))
	return nil
}

// runSplit wires one split's sub-pipeline: sharded production feeding
// a reshuffle channel, multicast to the three consumers, and the
// consumers themselves. The transform runs exactly once per raw
// record; the consumers observe the same logical stream.
func (p *Pipeline) runSplit(ctx context.Context, log *zap.Logger, task *Task, split, taskDir string, maxInputExamples int) error {
	shards, err := task.Source.ListShards(split)
	if err != nil {
		return fmt.Errorf("failed to list shards: %w", err)
	}
	numShards := len(shards)
	log.Info("processing split",
		zap.String("task", task.Name),
		zap.String("split", split),
		zap.Int("num_shards", numShards),
		zap.Strings("shards", shards))

	// The cap is split evenly across shards; each shard repeats and
	// truncates its own stream independently.
	perShard := 0
	capped := maxInputExamples > 0
	if capped && numShards > 0 {
		perShard = maxInputExamples / numShards
	}

	// The records channel is the reshuffle boundary: shard workers on
	// one side, the fan-out to consumers on the other.
	records := make(chan Record, p.bufferSize)
	sinkCh := make(chan Record, p.bufferSize)
	infoCh := make(chan Record, p.bufferSize)
	statsCh := make(chan Record, p.bufferSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.produceRecords(gctx, log, task, split, numShards, perShard, capped, records)
	})
	g.Go(func() error {
		return broadcastRecords(gctx, records, sinkCh, infoCh, statsCh)
	})
	g.Go(func() error {
		return p.sinkRecords(gctx, sinkCh, taskDir, split, numShards)
	})
	g.Go(func() error {
		return p.computeInfo(gctx, infoCh, taskDir, split, numShards)
	})
	g.Go(func() error {
		return p.computeStats(gctx, statsCh, task, taskDir, split)
	})
	return g.Wait()
}

// writeCompleted writes the task's completion marker. The body is the
// configured contents verbatim, with no trailing line terminator.
func (p *Pipeline) writeCompleted(taskDir string) error {
	if err := afero.WriteFile(p.fs, completedPath(taskDir), []byte(p.completedContents), 0o644); err != nil {
		return fmt.Errorf("failed to write completion marker: %w", err)
	}
	return nil
}
