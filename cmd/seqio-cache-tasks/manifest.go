package main

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/craffel/seqio"
)

// taskManifest declares the tasks to register, replacing dynamic
// module imports: Go tasks are linked statically, so line-oriented
// text tasks are the manifest's unit of declaration.
type taskManifest struct {
	Tasks []taskDecl `yaml:"tasks"`
}

type taskDecl struct {
	Name      string      `yaml:"name"`
	Splits    []splitDecl `yaml:"splits"`
	Feature   string      `yaml:"feature"`
	VocabSize int         `yaml:"vocab_size"`
}

type splitDecl struct {
	Name  string   `yaml:"name"`
	Files []string `yaml:"files"`
}

const (
	defaultFeature   = "targets"
	defaultVocabSize = 32000
)

// loadTaskManifest parses a manifest file and builds the registry.
// Each declared task reads its splits' files line by line and
// tokenizes every line with a whitespace hash tokenizer.
func loadTaskManifest(fs afero.Fs, path string) (*seqio.Registry, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task manifest: %w", err)
	}
	var manifest taskManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse task manifest: %w", err)
	}
	if len(manifest.Tasks) == 0 {
		return nil, fmt.Errorf("task manifest %s declares no tasks", path)
	}

	registry := seqio.NewRegistry()
	for _, decl := range manifest.Tasks {
		task, err := buildTask(fs, decl)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", decl.Name, err)
		}
		if err := registry.Add(task); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func buildTask(fs afero.Fs, decl taskDecl) (*seqio.Task, error) {
	feature := decl.Feature
	if feature == "" {
		feature = defaultFeature
	}
	vocabSize := decl.VocabSize
	if vocabSize == 0 {
		vocabSize = defaultVocabSize
	}
	if vocabSize < 3 {
		return nil, fmt.Errorf("vocab_size %d is too small; ids 0 and 1 are reserved", vocabSize)
	}

	splits := make([]string, 0, len(decl.Splits))
	globs := make(map[string][]string, len(decl.Splits))
	for _, split := range decl.Splits {
		if len(split.Files) == 0 {
			return nil, fmt.Errorf("split %q declares no files", split.Name)
		}
		splits = append(splits, split.Name)
		globs[split.Name] = split.Files
	}

	pretokenized := feature + "_pretokenized"
	return &seqio.Task{
		Name:   decl.Name,
		Splits: splits,
		OutputFeatures: map[string]seqio.Feature{
			feature:      {DType: seqio.DTypeInt32},
			pretokenized: {DType: seqio.DTypeString},
		},
		Source:          seqio.NewLineSource(fs, globs),
		Transform:       hashTokenizer(feature, vocabSize),
		SupportsCaching: true,
	}, nil
}

// hashTokenizer splits a line on whitespace and maps each token to a
// stable id in [2, vocabSize); ids 0 and 1 stay reserved for padding
// and sentinel values, so every real token counts toward token
// statistics.
func hashTokenizer(feature string, vocabSize int) seqio.Transform {
	pretokenized := feature + "_pretokenized"
	return func(raw []byte) ([]seqio.Record, error) {
		fields := strings.Fields(string(raw))
		ids := make(seqio.Int32s, len(fields))
		for i, field := range fields {
			ids[i] = int32(2 + xxhash.Sum64String(field)%uint64(vocabSize-2))
		}
		return []seqio.Record{{
			feature:      ids,
			pretokenized: seqio.Bytes(raw),
		}}, nil
	}
}
