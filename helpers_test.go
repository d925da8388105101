package seqio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/spf13/afero"
)

// newTestPipeline creates a pipeline over an in-memory filesystem.
func newTestPipeline(t *testing.T, registry *Registry, options ...Option) (*Pipeline, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	options = append([]Option{WithFs(fs), WithStdout(io.Discard), WithParallelism(4)}, options...)
	return New(registry, options...), fs
}

// newRegistry registers the given tasks, failing the test on error.
func newRegistry(t *testing.T, tasks ...*Task) *Registry {
	t.Helper()
	registry := NewRegistry()
	for _, task := range tasks {
		if err := registry.Add(task); err != nil {
			t.Fatalf("failed to register task %q: %v", task.Name, err)
		}
	}
	return registry
}

// lineRecords builds raw records from strings.
func lineRecords(lines ...string) [][]byte {
	records := make([][]byte, len(lines))
	for i, line := range lines {
		records[i] = []byte(line)
	}
	return records
}

// echoTransform emits one record per raw input: the raw bytes as
// "text" and one int32 token id (2) per input byte as "tokens".
func echoTransform(raw []byte) ([]Record, error) {
	tokens := make(Int32s, len(raw))
	for i := range tokens {
		tokens[i] = 2
	}
	return []Record{{
		"text":   Bytes(raw),
		"tokens": tokens,
	}}, nil
}

// echoFeatures declares echoTransform's output features.
func echoFeatures() map[string]Feature {
	return map[string]Feature{
		"text":   {DType: DTypeString},
		"tokens": {DType: DTypeInt32},
	}
}

// simpleTask builds a cacheable task over pre-sharded in-memory
// records, one split named "train".
func simpleTask(name string, shards ...[][]byte) *Task {
	return &Task{
		Name:            name,
		Splits:          []string{"train"},
		OutputFeatures:  echoFeatures(),
		Source:          NewSliceSource(map[string][][][]byte{"train": shards}),
		Transform:       echoTransform,
		SupportsCaching: true,
	}
}

// readJSONFile unmarshals a JSON artifact into out.
func readJSONFile(t *testing.T, fs afero.Fs, path string, out any) {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	if data[len(data)-1] != '\n' {
		t.Errorf("%s is missing its trailing newline", path)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("failed to unmarshal %s: %v", path, err)
	}
}

// readSplitStats reads back a split's statistics file.
func readSplitStats(t *testing.T, fs afero.Fs, taskDir, split string) map[string]int64 {
	t.Helper()
	stats := make(map[string]int64)
	readJSONFile(t, fs, statsPath(taskDir, split), &stats)
	return stats
}

// readPartitions decodes every record partition file of a split.
func readPartitions(t *testing.T, fs afero.Fs, codec Codec, taskDir, split string, numShards int) []Record {
	t.Helper()
	var records []Record
	prefix := recordsPrefix(taskDir, split)
	for i := 0; i < numShards; i++ {
		path := partitionPath(prefix, i, numShards)
		f, err := fs.Open(path)
		if err != nil {
			t.Fatalf("failed to open partition %s: %v", path, err)
		}
		r, err := codec.NewReader(f)
		if err != nil {
			t.Fatalf("failed to open reader for %s: %v", path, err)
		}
		for {
			rec, err := r.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				t.Fatalf("failed to read record from %s: %v", path, err)
			}
			records = append(records, rec)
		}
		r.Close()
		f.Close()
	}
	return records
}

// assertFileExists fails the test when the path is absent.
func assertFileExists(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	exists, err := afero.Exists(fs, path)
	if err != nil {
		t.Fatalf("failed to check %s: %v", path, err)
	}
	if !exists {
		t.Fatalf("expected %s to exist", path)
	}
}

// assertFileAbsent fails the test when the path is present.
func assertFileAbsent(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	exists, err := afero.Exists(fs, path)
	if err != nil {
		t.Fatalf("failed to check %s: %v", path, err)
	}
	if exists {
		t.Fatalf("expected %s to be absent", path)
	}
}

// failingTransform always errors.
func failingTransform([]byte) ([]Record, error) {
	return nil, fmt.Errorf("transform exploded")
}
