package persist

import "github.com/spf13/afero"

// Persister handles I/O for a specific state type using a Codec.
type Persister[T any] struct {
	basename string
	codec    Codec
}

// NewPersister creates a persister with the given basename and codec.
func NewPersister[T any](basename string, codec Codec) *Persister[T] {
	return &Persister[T]{
		basename: basename,
		codec:    codec,
	}
}

// Save writes state to the given directory on fs using the provided build function.
func (p *Persister[T]) Save(fs afero.Fs, dir string, buildState func() *T) error {
	state := buildState()

	return SaveState(fs, dir, p.basename, p.codec, state)
}

// Load restores state from the given directory on fs using the provided restore function.
func (p *Persister[T]) Load(fs afero.Fs, dir string, restoreState func(*T)) error {
	var state T

	err := LoadState(fs, dir, p.basename, p.codec, &state)
	if err != nil {
		return err
	}

	restoreState(&state)

	return nil
}
