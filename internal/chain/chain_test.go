package chain

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/odfcore/internal/domain/metadata"
)

func newGenesis(t time.Time) metadata.Block {
	return metadata.Block{
		SystemTime: t,
		Source:     &metadata.DatasetSource{Root: &metadata.RootSource{}},
	}
}

func TestCreate_RequiresEmptyPrevHashAndSource(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()

	_, err := Create(fs, "/ws/datasets/a", metadata.Block{PrevBlockHash: "x"})
	require.Error(t, err)

	_, err = Create(fs, "/ws/datasets/a", metadata.Block{})
	require.Error(t, err)
}

func TestAppend_AdvancesHeadAndIsReadableBack(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	now := time.Now().UTC()

	c, err := Create(fs, "/ws/datasets/a", newGenesis(now))
	require.NoError(t, err)

	head, err := c.ReadRef(HeadRef)
	require.NoError(t, err)
	assert.NotEmpty(t, head)

	block, err := c.GetBlock(head)
	require.NoError(t, err)
	assert.True(t, block.IsGenesis())
	assert.Equal(t, head, block.BlockHash)
}

func TestAppend_RejectsStalePrevBlockHash(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	now := time.Now().UTC()

	c, err := Create(fs, "/ws/datasets/a", newGenesis(now))
	require.NoError(t, err)

	_, err = c.Append(metadata.Block{PrevBlockHash: "not-head", SystemTime: now})
	require.Error(t, err)
}

func TestIterBlocks_YieldsHeadFirstThenGenesis(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	t0 := time.Now().UTC()
	t1 := t0.Add(time.Hour)

	c, err := Create(fs, "/ws/datasets/a", newGenesis(t0))
	require.NoError(t, err)

	head, err := c.ReadRef(HeadRef)
	require.NoError(t, err)

	second, err := c.Append(metadata.Block{PrevBlockHash: head, SystemTime: t1})
	require.NoError(t, err)

	it, err := c.IterBlocks()
	require.NoError(t, err)

	first, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, second, first.BlockHash)

	genesis, ok := it.Next()
	require.True(t, ok)
	assert.True(t, genesis.IsGenesis())

	_, ok = it.Next()
	assert.False(t, ok)
	assert.NoError(t, it.Err())
}

func TestHashBlock_InjectiveForDistinctContent(t *testing.T) {
	t.Parallel()

	t0 := time.Now().UTC()
	t1 := t0.Add(time.Minute)

	h0, err := HashBlock(newGenesis(t0))
	require.NoError(t, err)

	h1, err := HashBlock(newGenesis(t1))
	require.NoError(t, err)

	assert.NotEqual(t, h0, h1)

	h0Again, err := HashBlock(newGenesis(t0))
	require.NoError(t, err)
	assert.Equal(t, h0, h0Again)
}
