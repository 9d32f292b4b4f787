package ai

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewFileStore(dir, nil)
	require.NoError(t, err)
	return store, dir
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, dir := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddUserMessage(ctx, "u1", "Де мій заказ?"))
	require.NoError(t, store.AddAIMessage(ctx, "u1", "Ваше замовлення вже в дорозі."))

	history, err := store.GetHistory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, llms.ChatMessageTypeHuman, history[0].GetType())
	assert.Equal(t, llms.ChatMessageTypeAI, history[1].GetType())
	assert.Equal(t, "Ваше замовлення вже в дорозі.", history[1].GetContent())

	// One JSONL file per user.
	_, err = os.Stat(filepath.Join(dir, "u1.jsonl"))
	assert.NoError(t, err)
}

func TestFileStoreUnknownUser(t *testing.T) {
	store, _ := newTestFileStore(t)

	history, err := store.GetHistory(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestFileStoreSkipsMalformedLines(t *testing.T) {
	store, dir := newTestFileStore(t)
	ctx := context.Background()

	content := `{"role":"user","content":"перше"}` + "\n" +
		"не json\n" +
		`{"role":"assistant","content":"друге"}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "u1.jsonl"), []byte(content), 0o644))

	history, err := store.GetHistory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "перше", history[0].GetContent())
	assert.Equal(t, "друге", history[1].GetContent())
}

func TestFileStoreTrimRewritesFile(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.AddUserMessage(ctx, "u1", fmt.Sprintf("питання %d", i)))
		require.NoError(t, store.AddAIMessage(ctx, "u1", fmt.Sprintf("відповідь %d", i)))
	}
	require.NoError(t, store.TrimHistory(ctx, "u1", 2))

	history, err := store.GetHistory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "питання 3", history[0].GetContent())
	assert.Equal(t, "відповідь 4", history[3].GetContent())
}

func TestFileStoreClearHistory(t *testing.T) {
	store, dir := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddUserMessage(ctx, "u1", "Привіт"))
	require.NoError(t, store.ClearHistory(ctx, "u1"))

	_, err := os.Stat(filepath.Join(dir, "u1.jsonl"))
	assert.True(t, os.IsNotExist(err))

	// Clearing twice is fine.
	assert.NoError(t, store.ClearHistory(ctx, "u1"))
}

func TestFileStoreSanitizesUserID(t *testing.T) {
	store, dir := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddUserMessage(ctx, "../../etc/passwd", "x"))

	// The history file lands inside the base directory.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "passwd.jsonl", entries[0].Name())
}
