package main

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/craffel/seqio"
)

const manifestYAML = `
tasks:
  - name: wiki_lines
    feature: targets
    vocab_size: 100
    splits:
      - name: train
        files: ["data/train-*.txt"]
      - name: validation
        files: ["data/validation.txt"]
`

func writeTestFile(t *testing.T, fs afero.Fs, path, contents string) {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestLoadTaskManifest(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTestFile(t, fs, "tasks.yaml", manifestYAML)

	registry, err := loadTaskManifest(fs, "tasks.yaml")
	if err != nil {
		t.Fatalf("loadTaskManifest failed: %v", err)
	}

	task, err := registry.Get("wiki_lines")
	if err != nil {
		t.Fatalf("task not registered: %v", err)
	}
	if got, want := len(task.Splits), 2; got != want {
		t.Errorf("got %d splits, want %d", got, want)
	}
	if task.Splits[0] != "train" || task.Splits[1] != "validation" {
		t.Errorf("splits out of declared order: %v", task.Splits)
	}
	if !task.SupportsCaching {
		t.Error("manifest tasks should support caching")
	}
	if _, ok := task.OutputFeatures["targets"]; !ok {
		t.Error("token feature not declared")
	}
	if _, ok := task.OutputFeatures["targets_pretokenized"]; !ok {
		t.Error("pretokenized feature not declared")
	}
}

func TestLoadTaskManifestRejectsBadDeclarations(t *testing.T) {
	fs := afero.NewMemMapFs()

	writeTestFile(t, fs, "empty.yaml", "tasks: []\n")
	if _, err := loadTaskManifest(fs, "empty.yaml"); err == nil {
		t.Error("manifest without tasks accepted, want error")
	}

	writeTestFile(t, fs, "tiny-vocab.yaml", `
tasks:
  - name: bad
    vocab_size: 2
    splits:
      - name: train
        files: ["x.txt"]
`)
	if _, err := loadTaskManifest(fs, "tiny-vocab.yaml"); err == nil {
		t.Error("manifest with reserved-only vocab accepted, want error")
	}

	writeTestFile(t, fs, "no-files.yaml", `
tasks:
  - name: bad
    splits:
      - name: train
        files: []
`)
	if _, err := loadTaskManifest(fs, "no-files.yaml"); err == nil {
		t.Error("manifest split without files accepted, want error")
	}
}

func TestHashTokenizer(t *testing.T) {
	transform := hashTokenizer("targets", 100)
	recs, err := transform([]byte("the quick the"))
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}

	ids := recs[0]["targets"].(seqio.Int32s)
	if len(ids) != 3 {
		t.Fatalf("got %d token ids, want 3", len(ids))
	}
	for i, id := range ids {
		if id < 2 || id >= 100 {
			t.Errorf("token id %d out of range [2, 100): %d", i, id)
		}
	}
	if ids[0] != ids[2] {
		t.Errorf("same token hashed to different ids: %d vs %d", ids[0], ids[2])
	}
	if got := string(recs[0]["targets_pretokenized"].(seqio.Bytes)); got != "the quick the" {
		t.Errorf("pretokenized = %q, want the raw line", got)
	}
}

func TestManifestTasksCacheEndToEnd(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTestFile(t, fs, "tasks.yaml", manifestYAML)
	writeTestFile(t, fs, "data/train-00.txt", "hello world\nsecond line\n")
	writeTestFile(t, fs, "data/train-01.txt", "third line\n")
	writeTestFile(t, fs, "data/validation.txt", "validation line\n")

	registry, err := loadTaskManifest(fs, "tasks.yaml")
	if err != nil {
		t.Fatalf("loadTaskManifest failed: %v", err)
	}

	p := seqio.New(registry, seqio.WithFs(fs), seqio.WithStdout(io.Discard))
	dirs, err := p.Run(context.Background(), seqio.RunRequest{OutputDir: "cache"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(dirs) != 1 {
		t.Fatalf("run populated %d dirs, want 1", len(dirs))
	}

	taskDir := filepath.Join("cache", "wiki_lines")
	for _, path := range []string{
		filepath.Join(taskDir, "train.records-00000-of-00002"),
		filepath.Join(taskDir, "train.records-00001-of-00002"),
		filepath.Join(taskDir, "validation.records-00000-of-00001"),
		filepath.Join(taskDir, "info.train.json"),
		filepath.Join(taskDir, "stats.train.json"),
		filepath.Join(taskDir, "info.validation.json"),
		filepath.Join(taskDir, "stats.validation.json"),
		filepath.Join(taskDir, "COMPLETED"),
	} {
		exists, err := afero.Exists(fs, path)
		if err != nil {
			t.Fatalf("failed to check %s: %v", path, err)
		}
		if !exists {
			t.Errorf("expected %s to exist", path)
		}
	}
}
