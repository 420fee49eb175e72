package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir(), "http://files.test", NewSignedURLSigner("secret", time.Hour))
	require.NoError(t, err)
	return store
}

func TestLocalStorePutRefusesOverwrite(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	url, err := store.Put(ctx, "submissions/s1/a1/1_essay.txt", strings.NewReader("hello"), PutOptions{Size: 5})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://files.test/files/submissions/s1/a1/1_essay.txt?token="))

	_, err = store.Put(ctx, "submissions/s1/a1/1_essay.txt", strings.NewReader("again"), PutOptions{Size: 5})
	require.ErrorIs(t, err, ErrObjectExists)

	rc, err := store.Open(ctx, "submissions/s1/a1/1_essay.txt")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestLocalStoreChunkedProgress(t *testing.T) {
	store := newTestLocalStore(t)
	payload := bytes.Repeat([]byte("x"), 25)

	var progress []int
	_, err := store.Put(context.Background(), "big.bin", bytes.NewReader(payload), PutOptions{
		Size:      int64(len(payload)),
		ChunkSize: 10,
		Progress:  func(p int) { progress = append(progress, p) },
	})
	require.NoError(t, err)
	assert.Equal(t, []int{40, 80, 100}, progress)
	assert.EqualValues(t, 3, ChunkCount(25, 10))

	exists, err := store.Exists(context.Background(), "big.bin")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(context.Background(), "big.bin"))
	exists, err = store.Exists(context.Background(), "big.bin")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStoreKeysStayInsideBaseDir(t *testing.T) {
	store := newTestLocalStore(t)
	_, err := store.Put(context.Background(), "../../escape.txt", strings.NewReader("x"), PutOptions{Size: 1})
	require.NoError(t, err)

	exists, err := store.Exists(context.Background(), "escape.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "my_essay_final_.pdf", SanitizeName("my essay (final).pdf"))
	assert.Equal(t, "passwd", SanitizeName("../../etc/passwd"))
	assert.Equal(t, "file", SanitizeName("..."))
}
