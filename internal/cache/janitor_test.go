package cache

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitorSweepsOnlyStaleStagingFiles(t *testing.T) {
	h := newMemStore(t)
	now := time.Now()

	require.NoError(t, afero.WriteFile(h.fs, h.store.StagingPathFor("1"), []byte("old"), 0o644))
	require.NoError(t, afero.WriteFile(h.fs, h.store.StagingPathFor("2"), []byte("new"), 0o644))
	old := now.Add(-3 * time.Hour)
	require.NoError(t, h.fs.Chtimes(h.store.StagingPathFor("1"), old, old))
	writeObject(t, h.store, "3", "", "committed")

	janitor := NewJanitor(h.store, time.Hour)
	janitor.now = func() time.Time { return now }

	removed, err := janitor.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.False(t, stagingExists(t, h.store, "1"))
	assert.True(t, stagingExists(t, h.store, "2"))
	assert.True(t, h.store.Exists("3"))
}

func TestJanitorDisabledWithoutMaxAge(t *testing.T) {
	h := newMemStore(t)
	janitor := NewJanitor(h.store, 0)

	removed, err := janitor.Sweep()
	require.NoError(t, err)
	assert.Zero(t, removed)
	require.NoError(t, janitor.Start("@every 1m"))
	<-janitor.Stop().Done()
}

func TestJanitorRejectsBadSchedule(t *testing.T) {
	h := newMemStore(t)
	janitor := NewJanitor(h.store, time.Hour)

	assert.Error(t, janitor.Start("not a cron spec"))

	require.NoError(t, janitor.Start("@every 1h"))
	<-janitor.Stop().Done()
}
