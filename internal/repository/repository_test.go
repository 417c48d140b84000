package repository

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/Sumatoshi-tech/odfcore/internal/domain/errors"
	"github.com/Sumatoshi-tech/odfcore/internal/domain/id"
	"github.com/Sumatoshi-tech/odfcore/internal/domain/metadata"
)

func newRepo() *Repository {
	fs := afero.NewMemMapFs()
	layout := WorkspaceLayout{
		DatasetsDir:    "/ws/datasets",
		DataDir:        "/ws/vol/data",
		CheckpointsDir: "/ws/vol/checkpoints",
		CacheDir:       "/ws/vol/cache",
	}

	return New(fs, layout)
}

func rootSnapshot(name string) metadata.DatasetSnapshot {
	return metadata.DatasetSnapshot{
		ID:     id.MustParse(name),
		Source: metadata.DatasetSource{Root: &metadata.RootSource{}},
	}
}

func derivativeSnapshot(name string, inputs ...string) metadata.DatasetSnapshot {
	ids := make([]id.DatasetID, len(inputs))
	for i, in := range inputs {
		ids[i] = id.MustParse(in)
	}

	return metadata.DatasetSnapshot{
		ID: id.MustParse(name),
		Source: metadata.DatasetSource{
			Derivative: &metadata.DerivativeSource{Inputs: ids},
		},
	}
}

func TestAddDataset_RootThenDerivative(t *testing.T) {
	t.Parallel()

	r := newRepo()

	require.NoError(t, r.AddDataset(rootSnapshot("r")))
	require.NoError(t, r.AddDataset(derivativeSnapshot("d", "r")))

	summary, err := r.GetSummary(id.MustParse("d"))
	require.NoError(t, err)
	assert.Equal(t, metadata.DatasetKindDerivative, summary.Kind)
	assert.Equal(t, []id.DatasetID{id.MustParse("r")}, summary.Dependencies)
}

func TestAddDataset_MissingInputIsMissingReference(t *testing.T) {
	t.Parallel()

	r := newRepo()

	err := r.AddDataset(derivativeSnapshot("d", "nope"))
	require.Error(t, err)

	var domainErr *domainerrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.MissingReference, domainErr.Kind)
}

func TestAddDataset_DuplicateIsAlreadyExists(t *testing.T) {
	t.Parallel()

	r := newRepo()
	require.NoError(t, r.AddDataset(rootSnapshot("r")))

	err := r.AddDataset(rootSnapshot("r"))
	require.Error(t, err)

	var domainErr *domainerrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.AlreadyExists, domainErr.Kind)
}

// TestAddDatasets_OrdersDerivativeAfterItsInput verifies that a batch
// containing a derivative and its input, submitted in arbitrary order,
// is always added input-first.
func TestAddDatasets_OrdersDerivativeAfterItsInput(t *testing.T) {
	t.Parallel()

	r := newRepo()

	results := r.AddDatasets([]metadata.DatasetSnapshot{
		derivativeSnapshot("d", "r"),
		rootSnapshot("r"),
	})

	require.Len(t, results, 2)
	assert.Equal(t, "r", results[0].ID.String())
	assert.Equal(t, "d", results[1].ID.String())
	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[1].Err)
}

func TestAddDatasets_CycleFailsAllWithCircularDependencyError(t *testing.T) {
	t.Parallel()

	r := newRepo()

	results := r.AddDatasets([]metadata.DatasetSnapshot{
		derivativeSnapshot("a", "b"),
		derivativeSnapshot("b", "a"),
	})

	require.Len(t, results, 2)

	for _, res := range results {
		require.Error(t, res.Err)

		var circularErr *domainerrors.CircularDependencyError
		assert.ErrorAs(t, res.Err, &circularErr)
	}
}

// TestDeleteDataset_DanglingReference verifies that deleting a
// dataset still referenced as another's input is rejected.
func TestDeleteDataset_DanglingReference(t *testing.T) {
	t.Parallel()

	r := newRepo()
	require.NoError(t, r.AddDataset(rootSnapshot("a")))
	require.NoError(t, r.AddDataset(derivativeSnapshot("d.out", "a")))

	err := r.DeleteDataset(id.MustParse("a"))
	require.Error(t, err)

	var domainErr *domainerrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.DanglingReference, domainErr.Kind)
	require.Len(t, domainErr.FromKindsIDs, 1)
	assert.Equal(t, "d.out", domainErr.FromKindsIDs[0].ID)

	_, err = r.GetSummary(id.MustParse("a"))
	assert.NoError(t, err, "a must remain intact after a failed delete")
}

func TestDeleteDataset_RemovesChain(t *testing.T) {
	t.Parallel()

	r := newRepo()
	require.NoError(t, r.AddDataset(rootSnapshot("a")))

	require.NoError(t, r.DeleteDataset(id.MustParse("a")))

	_, err := r.GetMetadataChain(id.MustParse("a"))
	require.Error(t, err)

	var domainErr *domainerrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.DoesNotExist, domainErr.Kind)
}

func TestListDatasets_SortedByID(t *testing.T) {
	t.Parallel()

	r := newRepo()
	require.NoError(t, r.AddDataset(rootSnapshot("b")))
	require.NoError(t, r.AddDataset(rootSnapshot("a")))

	ids, err := r.ListDatasets()
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, "a", ids[0].String())
	assert.Equal(t, "b", ids[1].String())
}
