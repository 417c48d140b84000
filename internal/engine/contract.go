// Package engine implements the engine broker and the
// out-of-process engine contract: canonical, unknown-field-
// rejecting JSON request/response DTOs exchanged over a bilateral
// channel with a per-engine subprocess.
package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Sumatoshi-tech/odfcore/internal/domain/interval"
	"github.com/Sumatoshi-tech/odfcore/internal/domain/metadata"
)

// IngestRequest is sent to an engine to drive a root dataset's
// fetch/prepare/read/preprocess/merge pipeline.
type IngestRequest struct {
	DatasetID      string                `json:"datasetID"`
	IngestPath     string                `json:"ingestPath"`
	EventTime      *string               `json:"eventTime,omitempty"`
	Source         metadata.RootSource   `json:"source"`
	DatasetVocab   metadata.DatasetVocab `json:"datasetVocab"`
	CheckpointsDir string                `json:"checkpointsDir"`
	DataDir        string                `json:"dataDir"`
}

// IngestResponse carries the block an engine proposes to append. Its
// PrevBlockHash is unset; the ingest service stitches it to HEAD.
type IngestResponse struct {
	Block metadata.Block `json:"block"`
}

// InputDataSlice is one input's contribution to an ExecuteQueryRequest:
// the interval of records to process and any watermarks observed
// within it.
type InputDataSlice struct {
	Interval           interval.Interval    `json:"interval"`
	ExplicitWatermarks []metadata.Watermark `json:"explicitWatermarks,omitempty"`
}

// ExecuteQueryRequest drives a derivative dataset's transform.
type ExecuteQueryRequest struct {
	DatasetID      string                           `json:"datasetID"`
	Source         metadata.DerivativeSource        `json:"source"`
	DatasetVocabs  map[string]metadata.DatasetVocab `json:"datasetVocabs"`
	InputSlices    map[string]InputDataSlice        `json:"inputSlices"`
	DataDirs       map[string]string                `json:"dataDirs"`
	CheckpointsDir string                            `json:"checkpointsDir"`
}

// ExecuteQueryResponse carries the block an engine proposes to append.
type ExecuteQueryResponse struct {
	Block        metadata.Block `json:"block"`
	DataFileName *string        `json:"dataFileName,omitempty"`
}

// EncodeRequest writes req to w as canonical JSON: lowerCamelCase
// keys (via the struct tags above), absent optional fields omitted.
func EncodeRequest(w io.Writer, req any) error {
	if err := json.NewEncoder(w).Encode(req); err != nil {
		return fmt.Errorf("engine: encode request: %w", err)
	}

	return nil
}

// DecodeResponse reads a single canonical JSON value from r into resp,
// rejecting unknown fields.
func DecodeResponse(r io.Reader, resp any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	if err := dec.Decode(resp); err != nil {
		return fmt.Errorf("engine: decode response: %w", err)
	}

	return nil
}

// Marshal is EncodeRequest into a byte slice, for transports that want
// a single framed message rather than a stream.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeRequest(&buf, v); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
