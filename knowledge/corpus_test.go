package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCorpus(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCorpusJoinsListsAndSorts(t *testing.T) {
	path := writeCorpus(t, `
Графік роботи:
  - "Пн-Сб 9:00-20:00"
  - "Нд 10:00-18:00"
Адреса: "м. Київ, вул. Хрещатик, 1"
`)

	docs, err := LoadCorpus(path)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	// Sorted by label, so the order is stable across rebuilds.
	assert.Equal(t, "Адреса", docs[0].Label)
	assert.Equal(t, "м. Київ, вул. Хрещатик, 1", docs[0].Text)
	assert.Equal(t, "Графік роботи", docs[1].Label)
	assert.Equal(t, "Пн-Сб 9:00-20:00\nНд 10:00-18:00", docs[1].Text)
}

func TestLoadCorpusScalarValues(t *testing.T) {
	path := writeCorpus(t, "Рік заснування: 2015\n")

	docs, err := LoadCorpus(path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "2015", docs[0].Text)
}

func TestLoadCorpusMissingFile(t *testing.T) {
	_, err := LoadCorpus(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadCorpusMalformedYAML(t *testing.T) {
	path := writeCorpus(t, "label: [unclosed\n")
	_, err := LoadCorpus(path)
	assert.Error(t, err)
}

func TestFileHashChangesWithContent(t *testing.T) {
	path := writeCorpus(t, "a: 1\n")
	first, err := fileHash(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("a: 2\n"), 0o644))
	second, err := fileHash(path)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestHashSidecarRoundTrip(t *testing.T) {
	dir := t.TempDir()

	// Missing sidecar reads as an empty table.
	hashes, err := loadHashSidecar(dir)
	require.NoError(t, err)
	assert.Empty(t, hashes)

	hashes["shop_info.yaml"] = "abc123"
	require.NoError(t, saveHashSidecar(dir, hashes))

	reloaded, err := loadHashSidecar(dir)
	require.NoError(t, err)
	assert.Equal(t, hashes, reloaded)
}
