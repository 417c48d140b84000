package engine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/odfcore/internal/domain/metadata"
)

func TestMarshal_UsesLowerCamelCaseKeys(t *testing.T) {
	t.Parallel()

	data, err := Marshal(IngestRequest{DatasetID: "kamu.test", IngestPath: "/tmp/x"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"datasetID"`)
	assert.Contains(t, string(data), `"ingestPath"`)
	assert.NotContains(t, string(data), `"eventTime"`, "absent optional fields must be omitted")
}

func TestDecodeResponse_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	body := bytes.NewBufferString(`{"block":{"blockHash":"h"},"unexpectedField":true}`)

	var resp IngestResponse

	err := DecodeResponse(body, &resp)
	require.Error(t, err)
}

func TestDecodeResponse_RoundTripsBlock(t *testing.T) {
	t.Parallel()

	var resp IngestResponse

	body := bytes.NewBufferString(`{"block":{"blockHash":"h","prevBlockHash":""}}`)
	require.NoError(t, DecodeResponse(body, &resp))
	assert.Equal(t, "h", resp.Block.BlockHash)
	assert.True(t, resp.Block.IsGenesis())
}

func TestExecuteQueryRequest_RoundTrip(t *testing.T) {
	t.Parallel()

	req := ExecuteQueryRequest{
		DatasetID:      "d.out",
		CheckpointsDir: "/ws/checkpoints/d.out",
		DatasetVocabs:  map[string]metadata.DatasetVocab{"a": {}},
		InputSlices:    map[string]InputDataSlice{"a": {}},
		DataDirs:       map[string]string{"a": "/ws/data/a"},
	}

	data, err := Marshal(req)
	require.NoError(t, err)

	var resp ExecuteQueryRequest
	require.NoError(t, DecodeResponse(bytes.NewReader(data), &resp))
	assert.Equal(t, req.DatasetID, resp.DatasetID)
	assert.Equal(t, req.DataDirs, resp.DataDirs)
}
