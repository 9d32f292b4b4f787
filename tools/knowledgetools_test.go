package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	chromem "github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AuroraRetail/AssistantCore/knowledge"
)

// testEmbedding maps known holiday terms to fixed directions so similarity
// search behaves deterministically without a real embedding model.
func testEmbedding(ctx context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "новий рік"):
		return []float32{1, 0, 0}, nil
	case strings.Contains(lower, "великдень"):
		return []float32{0, 1, 0}, nil
	default:
		return []float32{0.1, 0.1, 1}, nil
	}
}

func buildTestIndex(t *testing.T, name, corpus string) *knowledge.Index {
	t.Helper()
	dir := t.TempDir()
	corpusPath := filepath.Join(dir, "corpus.yaml")
	require.NoError(t, os.WriteFile(corpusPath, []byte(corpus), 0o644))

	builder, err := knowledge.NewBuilder(filepath.Join(dir, "index"), chromem.EmbeddingFunc(testEmbedding), nil)
	require.NoError(t, err)
	idx, err := builder.Build(context.Background(), name, corpusPath)
	require.NoError(t, err)
	return idx
}

const shopCorpus = `
Адреса:
  - "м. Київ, вул. Хрещатик, 1"
Графік роботи:
  - "Пн-Сб 9:00-20:00"
  - "Нд 10:00-18:00"
Доставка:
  - "Нова Пошта по всій Україні, 1-3 дні"
`

const holidayCorpus = `
Новий рік:
  - "На Новий рік даруйте подарункові набори, іграшки та електроніку."
Великдень:
  - "На Великдень даруйте кошики зі солодощами та святковий декор."
`

func TestShopInfoReturnsAllSections(t *testing.T) {
	tool := NewShopInfoTool(buildTestIndex(t, "shop_info", shopCorpus))

	result, err := tool.Call(context.Background(), "{}")
	require.NoError(t, err)

	// Every section is present with its label, regardless of the query.
	assert.Contains(t, result, "**Адреса**")
	assert.Contains(t, result, "Хрещатик")
	assert.Contains(t, result, "**Графік роботи**")
	assert.Contains(t, result, "Пн-Сб 9:00-20:00\nНд 10:00-18:00")
	assert.Contains(t, result, "**Доставка**")
	assert.Equal(t, 2, strings.Count(result, "\n\n"))
}

func TestHolidayInfoFindsBestMatch(t *testing.T) {
	tool := NewHolidayInfoTool(buildTestIndex(t, "holidays", holidayCorpus))

	result, err := tool.Call(context.Background(), `{"key":"новий рік"}`)
	require.NoError(t, err)
	assert.Contains(t, result, "Information for 'Новий рік':")
	assert.Contains(t, result, "подарункові набори")
	assert.NotContains(t, result, "Великдень")
}

func TestHolidayInfoEmptyKey(t *testing.T) {
	tool := NewHolidayInfoTool(buildTestIndex(t, "holidays", holidayCorpus))

	result, err := tool.Call(context.Background(), `{"key":""}`)
	require.NoError(t, err)
	assert.Equal(t, "No matching holiday information found.", result)
}

func TestHolidayInfoInvalidArguments(t *testing.T) {
	tool := NewHolidayInfoTool(buildTestIndex(t, "holidays", holidayCorpus))

	_, err := tool.Call(context.Background(), `{"key": 5}`)
	assert.Error(t, err)
}
