package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"miner-agent/internal/journal"
)

func TestRecentActivityLines(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	j.Record("sync", "success next=60s errors=0")
	j.Record("task", "t-1 standard completed")

	lines := recentActivityLines(j, 5)
	require.Len(t, lines, 2)
	// Newest first, each line carrying timestamp, kind and detail.
	require.Contains(t, lines[0], "task t-1 standard completed")
	require.Contains(t, lines[1], "sync success next=60s errors=0")
}

func TestRecentActivityLinesWithoutJournal(t *testing.T) {
	require.Empty(t, recentActivityLines(nil, 3))
}
