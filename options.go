package seqio

import (
	"io"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Option defines a function that configures a Pipeline.
type Option func(*Pipeline)

// WithFs sets a custom filesystem for all artifact I/O.
// This is primarily useful for testing with in-memory filesystems.
//
// Example:
//
//	p := seqio.New(registry, seqio.WithFs(afero.NewMemMapFs()))
func WithFs(fs afero.Fs) Option {
	return func(p *Pipeline) {
		p.fs = fs
	}
}

// WithLogger sets the structured logger. The default is a no-op
// logger; callers that want decision and progress reporting must
// provide one.
func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) {
		p.log = log
	}
}

// WithStdout sets the writer for the one-line per-task plan report
// printed before work starts. The default is os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(p *Pipeline) {
		p.stdout = w
	}
}

// WithParallelism caps the number of concurrently running tasks, and
// the number of concurrent shard workers and statistics workers within
// each split. The default is runtime.NumCPU().
func WithParallelism(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.parallelism = n
		}
	}
}

// WithBufferSize sets the capacity of the reshuffle and fan-out
// channels between pipeline stages. Larger buffers absorb more skew
// between producer and consumer speeds at the cost of memory.
func WithBufferSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.bufferSize = n
		}
	}
}

// WithCodec sets the partition file encoding. The default is
// BinaryCodec without compression.
func WithCodec(codec Codec) Option {
	return func(p *Pipeline) {
		p.codec = codec
	}
}

// WithCompletedFileContents sets the body text of the completion
// marker files. The default is empty; the marker's existence, not its
// contents, is the completion signal.
func WithCompletedFileContents(contents string) Option {
	return func(p *Pipeline) {
		p.completedContents = contents
	}
}

// WithCounters sets a shared counter registry, letting callers observe
// the pipeline's counters or aggregate them across pipelines.
func WithCounters(counters *Counters) Option {
	return func(p *Pipeline) {
		p.counters = counters
	}
}

// WithNowFunc sets a custom time function.
// This is primarily useful for testing with deterministic timestamps.
func WithNowFunc(nowFunc func() time.Time) Option {
	return func(p *Pipeline) {
		p.nowFunc = nowFunc
	}
}
