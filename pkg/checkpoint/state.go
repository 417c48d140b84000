// Package checkpoint manages, per dataset, the directory an engine
// writes its opaque incremental-processing state into across ingest
// and transform runs. The engine subprocess owns the bytes inside that
// directory; Manager only tracks the provenance sidecar needed to tell
// a reusable checkpoint from a stale one and enforces a size/age bound
// on how long one is kept around.
package checkpoint

// Metadata is the sidecar Manager writes alongside the engine's own
// opaque checkpoint bytes, recording which engine produced the
// checkpoint and which chain block it was produced against.
type Metadata struct {
	Version    int               `json:"version"`
	DatasetID  string            `json:"dataset_id"`
	EngineName string            `json:"engine_name"`
	BlockHash  string            `json:"block_hash"`
	CreatedAt  string            `json:"created_at"`
	Checksums  map[string]string `json:"checksums"`
}
