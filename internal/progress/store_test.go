package progress

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return strings.Fields(string(data))
}

func TestOpen_MissingFilesAreEmpty(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")

	s, err := Open(dir)
	require.NoError(t, err)

	assert.DirExists(t, dir)
	assert.Empty(t, s.Processed())
	assert.Empty(t, s.Errored())
	assert.False(t, s.ContainsProcessed("a.gz"))
	assert.False(t, s.ContainsErrored("a.gz"))
}

func TestLoad_ReadsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProcessedFile), []byte("logs/a.gz\r\n\nlogs/b.gz\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ErroredFile), []byte("logs/c.gz\n"), 0o644))

	s, err := Open(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"logs/a.gz", "logs/b.gz"}, s.Processed())
	assert.Equal(t, []string{"logs/c.gz"}, s.Errored())
	assert.True(t, s.ContainsProcessed("logs/b.gz"))
	assert.True(t, s.ContainsErrored("logs/c.gz"))
}

func TestRecord_FlushAppendsOnlyNewKeys(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProcessedFile), []byte("logs/a.gz\n"), 0o644))

	s, err := Open(dir)
	require.NoError(t, err)

	assert.False(t, s.RecordProcessed("logs/a.gz"), "loaded key must not be re-queued")
	assert.True(t, s.RecordProcessed("logs/b.gz"))
	assert.False(t, s.RecordProcessed("logs/b.gz"))
	assert.Equal(t, 1, s.Pending())

	require.NoError(t, s.Flush())
	assert.Equal(t, 0, s.Pending())

	// A second flush with nothing new must not touch the file
	require.NoError(t, s.Flush())
	s.RecordProcessed("logs/b.gz")
	require.NoError(t, s.Flush())

	assert.Equal(t, []string{"logs/a.gz", "logs/b.gz"}, readLines(t, filepath.Join(dir, ProcessedFile)))
}

func TestRecord_AtMostOnceAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	s.RecordErrored("logs/b.gz")
	s.RecordErrored("logs/b.gz")
	require.NoError(t, s.Flush())

	reopened, err := Open(dir)
	require.NoError(t, err)
	reopened.RecordErrored("logs/b.gz")
	require.NoError(t, reopened.Flush())

	assert.Equal(t, []string{"logs/b.gz"}, readLines(t, filepath.Join(dir, ErroredFile)))
}

func TestErrored_ClearedByLaterProcessed(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	s.RecordErrored("logs/b.gz")
	require.NoError(t, s.Flush())
	assert.True(t, s.ContainsErrored("logs/b.gz"))

	s.RecordProcessed("logs/b.gz")
	require.NoError(t, s.Flush())

	assert.False(t, s.ContainsErrored("logs/b.gz"))
	assert.Empty(t, s.Errored())

	// The errored history line is kept, the reopened view still excludes it
	assert.Equal(t, []string{"logs/b.gz"}, readLines(t, filepath.Join(dir, ErroredFile)))
	reopened, err := Open(dir)
	require.NoError(t, err)
	assert.Empty(t, reopened.Errored())
	assert.True(t, reopened.ContainsProcessed("logs/b.gz"))
}

func TestFlush_FailureKeepsMemoryStateAndRetries(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	s.RecordProcessed("logs/a.gz")

	// Make the processed file unopenable by putting a directory in its place
	blocker := filepath.Join(dir, ProcessedFile)
	require.NoError(t, os.Mkdir(blocker, 0o755))

	err = s.Flush()
	require.Error(t, err)
	assert.True(t, s.ContainsProcessed("logs/a.gz"))
	assert.Equal(t, 1, s.Pending())

	require.NoError(t, os.Remove(blocker))
	require.NoError(t, s.Flush())
	assert.Equal(t, 0, s.Pending())
	assert.Equal(t, []string{"logs/a.gz"}, readLines(t, blocker))
}

func TestLoad_UnreadableFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ErroredFile), 0o755))

	_, err := Open(dir)
	assert.Error(t, err)
}

func TestRecord_UnusualKeysSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	keys := []string{
		"logs/a\nb.gz",
		"logs/ trailing.gz ",
		"  logs/leading.gz",
		"logs/cr\r.gz",
		`"quoted".gz`,
		"logs/tab\tsep.gz",
	}

	s, err := Open(dir)
	require.NoError(t, err)
	for _, k := range keys {
		s.RecordProcessed(k)
	}
	s.RecordProcessed("logs/plain.gz")
	require.NoError(t, s.Flush())

	reopened, err := Open(dir)
	require.NoError(t, err)
	for _, k := range keys {
		assert.True(t, reopened.ContainsProcessed(k), "key %q", k)
		assert.False(t, reopened.RecordProcessed(k), "key %q must not be re-queued", k)
	}
	assert.Len(t, reopened.Processed(), len(keys)+1)
	assert.False(t, reopened.ContainsProcessed("logs/a"))
	assert.False(t, reopened.ContainsProcessed("b.gz"))

	data, err := os.ReadFile(filepath.Join(dir, ProcessedFile))
	require.NoError(t, err)
	assert.Equal(t, len(keys)+1, strings.Count(string(data), "\n"), "one line per key")
	assert.Contains(t, string(data), "logs/plain.gz\n")
	assert.Contains(t, string(data), "logs/ trailing.gz \n")
}
