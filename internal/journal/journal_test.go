package journal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordAndRecentActivity(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	j.Record("sync", "success next=60s errors=0")
	j.Record("task", "t-1 standard completed")
	j.Record("sync", "transient-error next=120s errors=1")

	entries, err := j.RecentActivity(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first.
	require.Equal(t, "sync", entries[0].Kind)
	require.Equal(t, "transient-error next=120s errors=1", entries[0].Detail)
	require.Equal(t, "task", entries[1].Kind)
}

func TestNilJournalIsNoOp(t *testing.T) {
	var j *Journal
	j.Record("sync", "ignored")
	entries, err := j.RecentActivity(10)
	require.NoError(t, err)
	require.Empty(t, entries)
	require.NoError(t, j.Close())
}

func TestOpenReusesExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	j.Record("sync", "first run")
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()
	entries, err := j.RecentActivity(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "first run", entries[0].Detail)
}
