package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AuroraRetail/AssistantCore/product"
)

// fakeDetailStore serves a fixed catalog of product details.
type fakeDetailStore struct {
	details map[string]product.Detail
	err     error
}

func (s *fakeDetailStore) LookupDetails(ctx context.Context, ids []string) (map[string]product.Detail, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]product.Detail)
	for _, id := range ids {
		if d, ok := s.details[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

func TestProductLookupOmitsUnknownIDs(t *testing.T) {
	store := &fakeDetailStore{details: map[string]product.Detail{
		"P1": {
			Title:    "Ноутбук Lenovo IdeaPad 3",
			URL:      "https://aurora.example/p/P1",
			ImageURL: "https://aurora.example/img/P1.jpg",
		},
	}}
	tool := NewProductLookupTool(store)

	result, err := tool.Call(context.Background(), `{"product_ids":["P1","P9"]}`)
	require.NoError(t, err)

	var decoded map[string]product.Detail
	require.NoError(t, json.Unmarshal([]byte(result), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "Ноутбук Lenovo IdeaPad 3", decoded["P1"].Title)
	assert.NotContains(t, decoded, "P9")
}

func TestProductLookupKeepsUnicodeAndLinks(t *testing.T) {
	store := &fakeDetailStore{details: map[string]product.Detail{
		"P2": {
			Title:    "Чайник електричний",
			URL:      "https://aurora.example/p/P2?ref=chat&src=bot",
			ImageURL: "https://aurora.example/img/P2.jpg",
		},
	}}
	tool := NewProductLookupTool(store)

	result, err := tool.Call(context.Background(), `{"product_ids":["P2"]}`)
	require.NoError(t, err)
	// No HTML escaping: the ampersand in the link survives verbatim.
	assert.Contains(t, result, "Чайник електричний")
	assert.Contains(t, result, "ref=chat&src=bot")
	assert.Contains(t, result, `"website_link"`)
	assert.Contains(t, result, `"image_link"`)
}

func TestProductLookupIsTerminal(t *testing.T) {
	tool := NewProductLookupTool(&fakeDetailStore{})
	assert.True(t, tool.Terminal())
	assert.Equal(t, ProductLookupName, tool.Name())
}

func TestProductLookupInvalidArguments(t *testing.T) {
	tool := NewProductLookupTool(&fakeDetailStore{})
	_, err := tool.Call(context.Background(), `{"product_ids": "P1"}`)
	assert.Error(t, err)
}

func TestProductLookupStoreError(t *testing.T) {
	tool := NewProductLookupTool(&fakeDetailStore{err: fmt.Errorf("database is locked")})
	_, err := tool.Call(context.Background(), `{"product_ids":["P1"]}`)
	assert.ErrorContains(t, err, "database is locked")
}
