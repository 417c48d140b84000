package metadata

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// snapshotSchema constrains the shape a DatasetSnapshot manifest's
// content must have, independent of what Go's own YAML/JSON struct
// tags happen to tolerate (e.g. a caller leaving out "source" entirely
// decodes to a zero DatasetSource, which Kind() silently reports as
// Root rather than rejecting).
const snapshotSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["id", "source"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"source": {
			"type": "object",
			"properties": {
				"root": {
					"type": "object",
					"required": ["fetch", "read", "merge"],
					"properties": {
						"fetch": {"$ref": "#/definitions/step"},
						"read": {"$ref": "#/definitions/step"},
						"merge": {"$ref": "#/definitions/step"}
					}
				},
				"derivative": {
					"type": "object",
					"required": ["inputs", "transform"],
					"properties": {
						"inputs": {"type": "array", "minItems": 1, "items": {"type": "string"}},
						"transform": {
							"type": "object",
							"required": ["engine"],
							"properties": {"engine": {"type": "string", "minLength": 1}}
						}
					}
				}
			}
		}
	},
	"definitions": {
		"step": {
			"type": "object",
			"required": ["kind"],
			"properties": {"kind": {"type": "string", "minLength": 1}}
		}
	}
}`

// ErrInvalidSnapshot wraps a snapshot's schema validation failures.
type ErrInvalidSnapshot struct {
	Errors []string
}

func (e *ErrInvalidSnapshot) Error() string {
	return fmt.Sprintf("invalid dataset snapshot: %s", strings.Join(e.Errors, "; "))
}

// ValidateSnapshot checks snapshot against the structural schema every
// DatasetSnapshot manifest must satisfy before Repository.AddDataset(s)
// is allowed to act on it — a snapshot with neither root nor
// derivative filled in, or a fetch/read/merge step missing its "kind",
// is rejected here rather than producing a confusing failure deep
// inside the ingest/transform pipeline later.
func ValidateSnapshot(snapshot DatasetSnapshot) error {
	schemaLoader := gojsonschema.NewStringLoader(snapshotSchema)
	docLoader := gojsonschema.NewGoLoader(snapshot)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("validate snapshot schema: %w", err)
	}

	if result.Valid() {
		if snapshot.Source.Root == nil && snapshot.Source.Derivative == nil {
			return &ErrInvalidSnapshot{Errors: []string{"source must set exactly one of root or derivative"}}
		}

		if snapshot.Source.Root != nil && snapshot.Source.Derivative != nil {
			return &ErrInvalidSnapshot{Errors: []string{"source must not set both root and derivative"}}
		}

		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}

	return &ErrInvalidSnapshot{Errors: errs}
}
