package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportArchiveSaveAndOpen(t *testing.T) {
	archive, err := NewReportArchive(t.TempDir())
	require.NoError(t, err)

	rel, err := archive.Save("registro.csv", []byte("Data,Firma\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(time.Now().UTC().Format("2006/01"), "registro.csv"), rel)

	file, err := archive.Open(rel)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck

	content, err := os.ReadFile(file.Name())
	require.NoError(t, err)
	assert.Equal(t, "Data,Firma\n", string(content))
}

func TestReportArchiveDeleteIsIdempotent(t *testing.T) {
	archive, err := NewReportArchive(t.TempDir())
	require.NoError(t, err)

	rel, err := archive.Save("registro.csv", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, archive.Delete(rel))
	require.NoError(t, archive.Delete(rel), "deleting a missing file is not an error")

	_, err = archive.Open(rel)
	require.Error(t, err)
}

func TestReportArchiveRejectsEscapingPaths(t *testing.T) {
	archive, err := NewReportArchive(t.TempDir())
	require.NoError(t, err)

	for _, path := range []string{"", "/etc/passwd", "../outside.csv", "2026/08/../../../outside.csv"} {
		_, err := archive.Open(path)
		assert.Errorf(t, err, "path %q must not resolve", path)
	}
}

func TestReportArchiveCleanupRemovesOnlyExpired(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewReportArchive(dir)
	require.NoError(t, err)

	oldRel, err := archive.Save("vecchio.csv", []byte("x"))
	require.NoError(t, err)
	freshRel, err := archive.Save("nuovo.csv", []byte("y"))
	require.NoError(t, err)

	// Age one file past the TTL.
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, oldRel), past, past))

	deleted, err := archive.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{oldRel}, deleted)

	_, err = archive.Open(freshRel)
	assert.NoError(t, err, "fresh files survive cleanup")
}
