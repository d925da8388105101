package seqio

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Decision is the outcome of the per-task cache check performed before
// any transformation work begins.
type Decision int

const (
	// DecisionSkip excludes the task: it is already cached, does not
	// support caching, or declares no splits.
	DecisionSkip Decision = iota

	// DecisionFresh recomputes a task with no existing cache.
	DecisionFresh

	// DecisionOverwrite recomputes a task whose existing cache lives at
	// the requested output directory; the old artifacts are deleted
	// first.
	DecisionOverwrite

	// DecisionRefuse excludes the task: overwrite was requested but the
	// existing cache lives elsewhere, so it cannot be safely removed.
	DecisionRefuse
)

// String returns the decision name for logs.
func (d Decision) String() string {
	switch d {
	case DecisionSkip:
		return "skip"
	case DecisionFresh:
		return "recompute-fresh"
	case DecisionOverwrite:
		return "recompute-overwrite"
	case DecisionRefuse:
		return "refuse"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// taskPlan is one task's planned sub-pipeline, produced by the plan
// phase for every task that proceeds.
type taskPlan struct {
	task      *Task
	outputDir string
	decision  Decision
}

// discoverCacheDir returns the directory holding an existing complete
// cache for the task, searching dirs in order, or "" if none exists.
// Only a directory containing the task's completion marker counts;
// partial artifacts without a marker are untrusted by contract.
func (p *Pipeline) discoverCacheDir(dirs []string, taskName string) (string, error) {
	for _, dir := range dirs {
		taskDir := filepath.Join(dir, TaskDirName(taskName))
		exists, err := afero.Exists(p.fs, completedPath(taskDir))
		if err != nil {
			return "", fmt.Errorf("failed to check cache dir %s: %w", taskDir, err)
		}
		if exists {
			return taskDir, nil
		}
	}
	return "", nil
}

// decide applies the cache decision for one task: skip, recompute
// fresh, recompute with overwrite, or refuse. It performs no
// transformation work, only presence checks and path comparison.
func (p *Pipeline) decide(log *zap.Logger, task *Task, outputDir, cacheDir string, overwrite bool) Decision {
	if !task.SupportsCaching {
		log.Info("skipping task that does not support caching",
			zap.String("task", task.Name))
		return DecisionSkip
	}

	if cacheDir != "" && !overwrite {
		log.Info("skipping task that already exists in cache dir",
			zap.String("task", task.Name),
			zap.String("cache_dir", cacheDir))
		return DecisionSkip
	}

	if cacheDir != "" && overwrite && cacheDir != outputDir {
		log.Warn("not overwriting cached data that lives outside the output dir",
			zap.String("task", task.Name),
			zap.String("cache_dir", cacheDir),
			zap.String("output_dir", outputDir))
		return DecisionRefuse
	}

	if len(task.Splits) == 0 {
		log.Warn("skipping task with no splits",
			zap.String("task", task.Name))
		return DecisionSkip
	}

	if cacheDir != "" {
		log.Warn("overwriting cached data",
			zap.String("task", task.Name),
			zap.String("output_dir", outputDir))
		return DecisionOverwrite
	}
	return DecisionFresh
}
