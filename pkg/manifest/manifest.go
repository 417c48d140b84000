// Package manifest implements the on-disk envelope every persisted
// artifact is wrapped in: {apiVersion, kind, content}. It plays the
// role persist.Codec/SaveState/LoadState play in the teacher repo,
// retargeted from JSON/gob to the canonical YAML manifest format.
package manifest

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// APIVersion is the only envelope version this codebase understands.
const APIVersion = 1

// Supported manifest kind values.
const (
	KindDatasetSnapshot = "DatasetSnapshot"
	KindDatasetSummary  = "DatasetSummary"
	KindMetadataBlock   = "MetadataBlock"
)

// ErrKindMismatch is wrapped into the error Load returns when a
// manifest's kind field does not match what the caller expected. This
// is an assertion failure — it signals a corrupted workspace or a
// caller bug, not a recoverable domain condition.
var ErrKindMismatch = errors.New("manifest: kind mismatch")

type envelope struct {
	APIVersion int       `yaml:"apiVersion"`
	Kind       string    `yaml:"kind"`
	Content    yaml.Node `yaml:"content"`
}

type writeEnvelope struct {
	APIVersion int    `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
	Content    any    `yaml:"content"`
}

// Marshal wraps content in the canonical envelope and returns its YAML
// bytes.
func Marshal(kind string, content any) ([]byte, error) {
	data, err := yaml.Marshal(writeEnvelope{APIVersion: APIVersion, Kind: kind, Content: content})
	if err != nil {
		return nil, fmt.Errorf("manifest: marshal %s: %w", kind, err)
	}

	return data, nil
}

// Unmarshal reads an enveloped manifest, checks its kind against
// wantKind, and decodes its content into out (a pointer).
func Unmarshal(data []byte, wantKind string, out any) error {
	var env envelope
	if err := yaml.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("manifest: unmarshal envelope: %w", err)
	}

	if env.Kind != wantKind {
		return fmt.Errorf("%w: want %q got %q", ErrKindMismatch, wantKind, env.Kind)
	}

	if err := env.Content.Decode(out); err != nil {
		return fmt.Errorf("manifest: decode %s content: %w", wantKind, err)
	}

	return nil
}

// Save marshals content as an enveloped manifest of the given kind and
// writes it to path on fs.
func Save(fs afero.Fs, path string, kind string, content any) error {
	data, err := Marshal(kind, content)
	if err != nil {
		return err
	}

	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("manifest: write %s: %w", path, err)
	}

	return nil
}

// Load reads the manifest at path on fs, verifies its kind, and
// decodes its content into out.
func Load(fs afero.Fs, path string, wantKind string, out any) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("manifest: read %s: %w", path, err)
	}

	return Unmarshal(data, wantKind, out)
}
