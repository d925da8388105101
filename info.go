package seqio

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
)

// FeatureInfo describes one feature in a split's schema descriptor.
// Every shape dimension is unknown (null): only one record is sampled,
// so per-example variable-length dimensions cannot be assumed fixed.
type FeatureInfo struct {
	DType string `json:"dtype"`
	Shape []*int `json:"shape"`
}

// SplitInfo is the schema descriptor written for one split.
type SplitInfo struct {
	Features  map[string]FeatureInfo `json:"features"`
	NumShards int                    `json:"num_shards"`
	Version   string                 `json:"seqio_version"`
}

// computeInfo samples one record from the stream (which one is
// arbitrary, since it arrives after reshuffling) and writes the
// split's info descriptor. A split with zero records writes an empty
// descriptor, which is a valid, expected output.
func (p *Pipeline) computeInfo(ctx context.Context, in <-chan Record, taskDir, split string, numShards int) error {
	var sample Record
	for rec := range in {
		if sample == nil {
			sample = rec
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var payload any
	if sample == nil {
		payload = struct{}{}
	} else {
		info := SplitInfo{
			Features:  make(map[string]FeatureInfo, len(sample)),
			NumShards: numShards,
			Version:   Version,
		}
		for name, v := range sample {
			info.Features[name] = FeatureInfo{
				DType: string(v.DType()),
				Shape: make([]*int, v.Rank()),
			}
		}
		payload = info
	}

	if err := p.writeJSON(infoPath(taskDir, split), payload); err != nil {
		return fmt.Errorf("failed to write info: %w", err)
	}
	return nil
}

// writeJSON writes a pretty-printed JSON file with a trailing newline.
func (p *Pipeline) writeJSON(path string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	data = append(data, '\n')
	if err := afero.WriteFile(p.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
