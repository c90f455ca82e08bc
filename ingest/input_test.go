package ingest

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, members map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestOpenArchiveJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"concepts":[]}`), 0644))

	rc, err := OpenArchive(path)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, `{"concepts":[]}`, string(data))
}

func TestOpenArchiveZipSingleMember(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.zip")
	writeZip(t, path, map[string]string{"export.json": `{"concepts":[]}`})

	rc, err := OpenArchive(path)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, `{"concepts":[]}`, string(data))
}

func TestOpenArchiveZipMultipleMembers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.zip")
	writeZip(t, path, map[string]string{"a.json": `{}`, "b.json": `{}`})

	_, err := OpenArchive(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one file")
}

func TestOpenArchiveUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.xml")
	require.NoError(t, os.WriteFile(path, []byte("<x/>"), 0644))

	_, err := OpenArchive(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip or json")
}

func TestFindIntakeFile(t *testing.T) {
	dir := t.TempDir()

	path, err := FindIntakeFile(dir)
	require.NoError(t, err)
	assert.Empty(t, path)

	archive := filepath.Join(dir, "drop.zip")
	require.NoError(t, os.WriteFile(archive, []byte("x"), 0644))
	// subdirectories are not intake candidates
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "processed"), 0755))

	path, err = FindIntakeFile(dir)
	require.NoError(t, err)
	assert.Equal(t, archive, path)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "second.zip"), []byte("x"), 0644))
	_, err = FindIntakeFile(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than one file")
}

func TestFindIntakeFileMissingDir(t *testing.T) {
	path, err := FindIntakeFile(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, path)
}
