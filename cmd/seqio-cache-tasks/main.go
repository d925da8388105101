// Command seqio-cache-tasks dumps preprocessed tasks to a durable
// cache directory.
//
// Usage:
//
//	seqio-cache-tasks \
//	  --task-manifest=tasks.yaml \
//	  --tasks='my_task_*,your_task' \
//	  --excluded-tasks=my_task_5 \
//	  --output-cache-dir=/path/to/cache_dir
package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/craffel/seqio"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type cacheFlags struct {
	taskManifest          string
	tasks                 []string
	excludedTasks         []string
	outputCacheDir        string
	maxInputExamples      int
	additionalCacheDirs   []string
	overwrite             bool
	completedFileContents string
	parallelism           int
	verbose               bool
}

func newRootCommand() *cobra.Command {
	flags := &cacheFlags{}

	cmd := &cobra.Command{
		Use:          "seqio-cache-tasks",
		Short:        "Preprocess tasks and cache the results",
		Long:         "Runs each selected task's transform once per split and caches the records, schema info and statistics, finishing with a COMPLETED marker per task.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCache(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.taskManifest, "task-manifest", "", "YAML file declaring the tasks to register")
	cmd.Flags().StringSliceVar(&flags.tasks, "tasks", nil, "Patterns matching task(s) to build a preprocessed dataset for; all registered tasks if unset")
	cmd.Flags().StringSliceVar(&flags.excludedTasks, "excluded-tasks", nil, "Patterns matching task(s) to skip")
	cmd.Flags().StringVar(&flags.outputCacheDir, "output-cache-dir", "", "The directory to output cached tasks to")
	cmd.Flags().IntVar(&flags.maxInputExamples, "max-input-examples", 0, "The maximum number of input examples to use per split; no limit if 0")
	cmd.Flags().StringSliceVar(&flags.additionalCacheDirs, "additional-cache-dirs", nil, "Additional directories to search for cached tasks after the output cache dir")
	cmd.Flags().BoolVar(&flags.overwrite, "overwrite", false, "Overwrite the cached task even if it exists in the cache directories")
	cmd.Flags().StringVar(&flags.completedFileContents, "completed-file-contents", "", "Contents of the per-task COMPLETED marker files")
	cmd.Flags().IntVar(&flags.parallelism, "parallelism", 0, "Maximum concurrent tasks and per-split workers; number of CPUs if 0")
	cmd.Flags().BoolVar(&flags.verbose, "verbose", false, "Enable debug logging")
	cobra.CheckErr(cmd.MarkFlagRequired("task-manifest"))
	cobra.CheckErr(cmd.MarkFlagRequired("output-cache-dir"))

	return cmd
}

func runCache(cmd *cobra.Command, flags *cacheFlags) error {
	log, err := newLogger(flags.verbose)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck // stderr sync failure is uninteresting

	fs := afero.NewOsFs()
	registry, err := loadTaskManifest(fs, flags.taskManifest)
	if err != nil {
		return err
	}

	options := []seqio.Option{
		seqio.WithFs(fs),
		seqio.WithLogger(log),
		seqio.WithCompletedFileContents(flags.completedFileContents),
	}
	if flags.parallelism > 0 {
		options = append(options, seqio.WithParallelism(flags.parallelism))
	}

	p := seqio.New(registry, options...)
	dirs, err := p.Run(cmd.Context(), seqio.RunRequest{
		IncludePatterns:     flags.tasks,
		ExcludePatterns:     flags.excludedTasks,
		OutputDir:           flags.outputCacheDir,
		MaxInputExamples:    flags.maxInputExamples,
		AdditionalCacheDirs: flags.additionalCacheDirs,
		Overwrite:           flags.overwrite,
	})
	for _, dir := range dirs {
		fmt.Fprintln(cmd.OutOrStdout(), dir)
	}
	return err
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
