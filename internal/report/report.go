// Package report aggregates confirmed pairs into the output mapping and
// writes the final JSON artifact.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rcliao/change-correlator/internal/model"
)

// Build converts pair counts into the output mapping keyed by
// "<incident_title> ||| <change_title>". Pairs without a positive count
// are omitted.
func Build(pairs map[model.Pair]int) map[string]int {
	out := make(map[string]int, len(pairs))
	for pair, count := range pairs {
		if count <= 0 {
			continue
		}
		out[pair.Key()] = count
	}
	return out
}

// Write serializes the mapping to path as indented JSON. Map keys marshal
// in sorted order, so identical results produce byte-identical files. The
// file appears atomically: it is written to a temp file in the same
// directory and renamed into place, so a failed run leaves no partial
// artifact.
func Write(path string, out map[string]int) error {
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	b = append(b, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".results-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename results: %w", err)
	}
	return nil
}
