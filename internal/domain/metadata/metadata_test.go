package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/odfcore/internal/domain/id"
)

func TestDatasetSource_Kind(t *testing.T) {
	t.Parallel()

	root := DatasetSource{Root: &RootSource{}}
	assert.Equal(t, DatasetKindRoot, root.Kind())

	derivative := DatasetSource{Derivative: &DerivativeSource{
		Inputs: []id.DatasetID{id.MustParse("a")},
	}}
	assert.Equal(t, DatasetKindDerivative, derivative.Kind())
}

func TestBlock_IsGenesis(t *testing.T) {
	t.Parallel()

	genesis := Block{PrevBlockHash: ""}
	assert.True(t, genesis.IsGenesis())

	child := Block{PrevBlockHash: "abc123"}
	assert.False(t, child.IsGenesis())
}
