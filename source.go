package seqio

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/afero"
)

// ShardInfo identifies one shard of a split's raw data. Shards are
// created fresh for each pipeline run and never persisted.
type ShardInfo struct {
	Index     int // Zero-based shard index
	NumShards int // Total shard count for the split
}

// RecordIterator is a finite, non-restartable sequence of raw records.
// Next returns io.EOF after the last record. Re-reading a shard means
// opening a fresh iterator via Source.OpenShard.
type RecordIterator interface {
	Next() ([]byte, error)
	Close() error
}

// Source provides the raw records for a task's splits, partitioned
// into independent shards. The set of implementations is closed:
// SliceSource and LineSource are shardable, FuncSource is not and
// degrades to a single shard.
type Source interface {
	// ListShards returns one descriptor per shard of the split. The
	// pipeline's shard count is fixed from this list at planning time.
	ListShards(split string) ([]string, error)

	// OpenShard opens an iterator over one shard's raw records. The
	// shard descriptor must match the partitioning returned by
	// ListShards for the same split.
	OpenShard(split string, shard ShardInfo) (RecordIterator, error)

	// Shardable reports whether the source can be partitioned into
	// independent shards. Unshardable sources are processed with a
	// single shard, which is a performance warning but not an error.
	Shardable() bool
}

// sliceIterator iterates over an in-memory slice of records.
type sliceIterator struct {
	records [][]byte
	pos     int
}

func (it *sliceIterator) Next() ([]byte, error) {
	if it.pos >= len(it.records) {
		return nil, io.EOF
	}
	rec := it.records[it.pos]
	it.pos++
	return rec, nil
}

func (it *sliceIterator) Close() error { return nil }

// SliceSource is an in-memory source with explicit per-split sharding.
// It is primarily useful for tests and small ad-hoc tasks.
type SliceSource struct {
	splits map[string][][][]byte // split -> shard -> records
}

// NewSliceSource creates a source from pre-sharded in-memory records:
// splits maps a split name to its shards, each shard a slice of raw
// records.
func NewSliceSource(splits map[string][][][]byte) *SliceSource {
	copied := make(map[string][][][]byte, len(splits))
	for split, shards := range splits {
		copied[split] = shards
	}
	return &SliceSource{splits: copied}
}

// ListShards implements Source.
func (s *SliceSource) ListShards(split string) ([]string, error) {
	shards, ok := s.splits[split]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSplit, split)
	}
	names := make([]string, len(shards))
	for i := range shards {
		names[i] = fmt.Sprintf("%05d", i)
	}
	return names, nil
}

// OpenShard implements Source.
func (s *SliceSource) OpenShard(split string, shard ShardInfo) (RecordIterator, error) {
	shards, ok := s.splits[split]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSplit, split)
	}
	if shard.NumShards != len(shards) || shard.Index < 0 || shard.Index >= len(shards) {
		return nil, fmt.Errorf("%w: shard %d of %d, split %q has %d shards",
			ErrShardOutOfRange, shard.Index, shard.NumShards, split, len(shards))
	}
	return &sliceIterator{records: shards[shard.Index]}, nil
}

// Shardable implements Source.
func (s *SliceSource) Shardable() bool { return true }

// LineSource reads raw records as lines of text files, one shard per
// matching file. Files are matched per split by glob patterns against
// the given filesystem and sorted for a stable shard order.
type LineSource struct {
	fs     afero.Fs
	splits map[string][]string // split -> file glob patterns
}

// NewLineSource creates a line-oriented file source. splits maps a
// split name to the glob patterns of its input files.
func NewLineSource(fs afero.Fs, splits map[string][]string) *LineSource {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &LineSource{fs: fs, splits: splits}
}

// ListShards implements Source. Each file matched by the split's glob
// patterns is one shard.
func (s *LineSource) ListShards(split string) ([]string, error) {
	patterns, ok := s.splits[split]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSplit, split)
	}
	var files []string
	for _, pattern := range patterns {
		matches, err := afero.Glob(s.fs, pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to expand pattern %q: %w", pattern, err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// OpenShard implements Source.
func (s *LineSource) OpenShard(split string, shard ShardInfo) (RecordIterator, error) {
	files, err := s.ListShards(split)
	if err != nil {
		return nil, err
	}
	if shard.NumShards != len(files) || shard.Index < 0 || shard.Index >= len(files) {
		return nil, fmt.Errorf("%w: shard %d of %d, split %q has %d files",
			ErrShardOutOfRange, shard.Index, shard.NumShards, split, len(files))
	}
	f, err := s.fs.Open(files[shard.Index])
	if err != nil {
		return nil, fmt.Errorf("failed to open shard file: %w", err)
	}
	return &lineIterator{file: f, scanner: bufio.NewScanner(f)}, nil
}

// Shardable implements Source.
func (s *LineSource) Shardable() bool { return true }

// lineIterator yields one record per line of an open file.
type lineIterator struct {
	file    afero.File
	scanner *bufio.Scanner
}

func (it *lineIterator) Next() ([]byte, error) {
	if !it.scanner.Scan() {
		if err := it.scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read line: %w", err)
		}
		return nil, io.EOF
	}
	// Scanner reuses its buffer; copy the line out.
	line := it.scanner.Bytes()
	return append([]byte(nil), line...), nil
}

func (it *lineIterator) Close() error {
	return it.file.Close()
}

// FuncSource wraps a function that materializes a whole split at once.
// It cannot be partitioned into independent shards, so the pipeline
// processes it with a single shard.
type FuncSource struct {
	fn func(split string) ([][]byte, error)
}

// NewFuncSource creates an unshardable source from a per-split record
// function. The function may be invoked more than once per split when
// an input cap requires repeating the stream.
func NewFuncSource(fn func(split string) ([][]byte, error)) *FuncSource {
	return &FuncSource{fn: fn}
}

// ListShards implements Source. A function source is always exactly
// one shard.
func (s *FuncSource) ListShards(split string) ([]string, error) {
	return []string{split}, nil
}

// OpenShard implements Source.
func (s *FuncSource) OpenShard(split string, shard ShardInfo) (RecordIterator, error) {
	if shard.NumShards != 1 || shard.Index != 0 {
		return nil, fmt.Errorf("%w: shard %d of %d, function sources have a single shard",
			ErrShardOutOfRange, shard.Index, shard.NumShards)
	}
	records, err := s.fn(split)
	if err != nil {
		return nil, fmt.Errorf("failed to materialize split %q: %w", split, err)
	}
	return &sliceIterator{records: records}, nil
}

// Shardable implements Source.
func (s *FuncSource) Shardable() bool { return false }
