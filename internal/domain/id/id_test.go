package id

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParse_Valid(t *testing.T) {
	t.Parallel()

	cases := []string{
		"kamu.test",
		"com.naturalearthdata.10m.admin0",
		"a",
		"a1",
		"a-b_c.d1-e_f",
	}

	for _, s := range cases {
		s := s
		t.Run(s, func(t *testing.T) {
			t.Parallel()

			got, err := Parse(s)
			require.NoError(t, err)
			assert.Equal(t, s, got.String())
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	cases := []string{
		"",
		"1bad",
		"a..b",
		"a b",
		".a",
		"a.",
		"a_b.",
	}

	for _, s := range cases {
		s := s
		t.Run(s, func(t *testing.T) {
			t.Parallel()

			_, err := Parse(s)
			require.Error(t, err)

			var invalid *InvalidDatasetIDError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, s, invalid.InvalidID)
		})
	}
}

func TestMustParse_PanicsOnInvalid(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		MustParse("1bad")
	})
}

func TestDatasetID_Compare(t *testing.T) {
	t.Parallel()

	a := MustParse("a.one")
	b := MustParse("b.two")

	assert.Negative(t, a.Compare(b))
	assert.Positive(t, b.Compare(a))
	assert.Zero(t, a.Compare(a))
	assert.True(t, a.Equal(MustParse("a.one")))
}

func TestDatasetID_YAMLRoundTrip(t *testing.T) {
	t.Parallel()

	type wrapper struct {
		ID DatasetID `yaml:"id"`
	}

	want := wrapper{ID: MustParse("com.naturalearthdata.10m.admin0")}

	out, err := yaml.Marshal(want)
	require.NoError(t, err)
	assert.Contains(t, string(out), "com.naturalearthdata.10m.admin0")

	var got wrapper
	require.NoError(t, yaml.Unmarshal(out, &got))
	assert.True(t, want.ID.Equal(got.ID))
}

func TestDatasetID_YAMLUnmarshal_Invalid(t *testing.T) {
	t.Parallel()

	type wrapper struct {
		ID DatasetID `yaml:"id"`
	}

	var got wrapper
	err := yaml.Unmarshal([]byte("id: \"1bad\"\n"), &got)
	require.Error(t, err)

	var invalid *InvalidDatasetIDError
	require.ErrorAs(t, err, &invalid)
}

func TestDatasetID_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	type wrapper struct {
		ID DatasetID `json:"id"`
	}

	want := wrapper{ID: MustParse("kamu.test")}

	out, err := json.Marshal(want)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"kamu.test"}`, string(out))

	var got wrapper
	require.NoError(t, json.Unmarshal(out, &got))
	assert.True(t, want.ID.Equal(got.ID))
}

func TestDatasetID_JSONUnmarshal_Invalid(t *testing.T) {
	t.Parallel()

	type wrapper struct {
		ID DatasetID `json:"id"`
	}

	var got wrapper

	err := json.Unmarshal([]byte(`{"id":"1bad"}`), &got)
	require.Error(t, err)

	var invalid *InvalidDatasetIDError
	require.ErrorAs(t, err, &invalid)
}
