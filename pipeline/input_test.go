package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverLocal(t *testing.T) {
	r := Resolver{Local: true, LocalFile: "aqi_data.csv", DIDs: `["ignored"]`}
	path, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "aqi_data.csv", path)
}

func TestResolverNoInput(t *testing.T) {
	for _, dids := range []string{"", "[]"} {
		r := Resolver{InputsDir: "data/inputs", DIDs: dids}
		_, err := r.Resolve()
		assert.ErrorIs(t, err, ErrNoInput, "DIDS=%q", dids)

		_, err = r.ResolveAll()
		assert.ErrorIs(t, err, ErrNoInput, "DIDS=%q", dids)
	}
}

func TestResolverFirstAssetOnly(t *testing.T) {
	r := Resolver{InputsDir: "data/inputs", DIDs: `["did-a","did-b"]`}

	path, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("data", "inputs", "did-a", "0"), path)

	all, err := r.ResolveAll()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("data", "inputs", "did-a", "0"),
		filepath.Join("data", "inputs", "did-b", "0"),
	}, all)
}

func TestResolverMalformedDIDs(t *testing.T) {
	tests := []string{`did-a`, `{"a":1}`, `[1,2]`, `[""]`}
	for _, dids := range tests {
		t.Run(dids, func(t *testing.T) {
			_, err := Resolver{DIDs: dids}.Resolve()
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrNoInput)
		})
	}
}
