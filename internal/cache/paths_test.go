package cache

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathResolution(t *testing.T) {
	store, err := NewStore(Config{Enabled: true, Root: "/cache"}, WithFs(afero.NewMemMapFs()))
	require.NoError(t, err)

	assert.Equal(t, "/cache/42", store.PathFor("42"))
	assert.Equal(t, "/cache/tmp/42", store.StagingPathFor("42"))
	assert.Equal(t, "/cache/tmp", store.Config().StagingDir())
}

func TestParseID(t *testing.T) {
	cases := []struct {
		name string
		ok   bool
	}{
		{"42", true},
		{"0", true},
		{"7d444840-9dc0-11d1-b245-5ffdce74fad2", true},
		{"7D444840-9DC0-11D1-B245-5FFDCE74FAD2", true},
		{"{7d444840-9dc0-11d1-b245-5ffdce74fad2}", false},
		{"-1", false},
		{"tmp", false},
		{".cache-123", false},
		{"", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, ok := ParseID(tc.name)
			assert.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.name, id)
			}
		})
	}
}

func TestEnsureReadyIsIdempotent(t *testing.T) {
	fsys := afero.NewMemMapFs()
	cfg := Config{Enabled: true, Root: "/var/cache/objects"}

	require.NoError(t, EnsureReady(fsys, cfg, nil))
	require.NoError(t, EnsureReady(fsys, cfg, nil))

	ok, err := afero.DirExists(fsys, "/var/cache/objects/tmp")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnsureReadyDisabledIsNoop(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, EnsureReady(fsys, Config{Root: "/cache"}, nil))

	ok, err := afero.Exists(fsys, "/cache")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnsureReadyRejectsFileAtStagingPath(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/cache/tmp", []byte("x"), 0o644))
	assert.Error(t, EnsureReady(fsys, Config{Enabled: true, Root: "/cache"}, nil))
}
