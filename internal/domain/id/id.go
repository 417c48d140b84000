// Package id validates and carries dataset identifiers.
package id

import (
	"fmt"
	"regexp"
)

// grammarPattern matches exactly the dataset_id grammar: the first
// dot-separated segment must start with a letter, every segment is
// non-empty and drawn from lowercase/uppercase alphanumerics plus '-'
// and '_'. Later segments may start with a digit (e.g. "10m" in
// "com.naturalearthdata.10m.admin0"). Uppercase is accepted even though
// the grammar is usually described as lowercase-only: the upstream
// grammar this is ported from permits it, and rejecting it would break
// otherwise-valid ids with no compensating safety benefit.
var grammarPattern = regexp.MustCompile(
	`^[A-Za-z][A-Za-z0-9_-]*(\.[A-Za-z0-9][A-Za-z0-9_-]*)*$`,
)

// DatasetID is a validated dataset identifier. The zero value is not a
// valid identifier; construct one with Parse or MustParse.
type DatasetID struct {
	value string
}

// InvalidDatasetIDError reports a string that failed grammar validation.
type InvalidDatasetIDError struct {
	InvalidID string
}

func (e *InvalidDatasetIDError) Error() string {
	return fmt.Sprintf("invalid dataset id: %q", e.InvalidID)
}

// Parse validates s against the dataset_id grammar and returns a DatasetID.
func Parse(s string) (DatasetID, error) {
	if !grammarPattern.MatchString(s) {
		return DatasetID{}, &InvalidDatasetIDError{InvalidID: s}
	}

	return DatasetID{value: s}, nil
}

// MustParse is like Parse but panics on an invalid identifier. Intended
// for literals known to be valid at compile time (tests, constants).
func MustParse(s string) DatasetID {
	parsed, err := Parse(s)
	if err != nil {
		panic(err)
	}

	return parsed
}

// String returns the identifier's textual form.
func (d DatasetID) String() string {
	return d.value
}

// IsZero reports whether d is the unconstructed zero value.
func (d DatasetID) IsZero() bool {
	return d.value == ""
}

// Compare returns -1, 0, or 1 using lexicographic order over the string form,
// establishing the total order DatasetID is documented to have.
func (d DatasetID) Compare(other DatasetID) int {
	switch {
	case d.value < other.value:
		return -1
	case d.value > other.value:
		return 1
	default:
		return 0
	}
}

// Equal reports whether d and other identify the same dataset.
func (d DatasetID) Equal(other DatasetID) bool {
	return d.value == other.value
}

// MarshalYAML implements yaml.Marshaler, encoding a DatasetID as its
// plain string form rather than the unexported-field struct yaml.v3
// would otherwise see.
func (d DatasetID) MarshalYAML() (any, error) {
	return d.value, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *DatasetID) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	parsed, err := Parse(s)
	if err != nil {
		return err
	}

	*d = parsed

	return nil
}

// MarshalJSON implements json.Marshaler.
func (d DatasetID) MarshalJSON() ([]byte, error) {
	return fmt.Appendf(nil, "%q", d.value), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *DatasetID) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	parsed, err := Parse(s)
	if err != nil {
		return err
	}

	*d = parsed

	return nil
}
