package store_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muxfile/muxfile/internal/observability"
	"github.com/muxfile/muxfile/internal/store"
)

func tempName(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "streams.db")
}

func TestOpenCreateStore(t *testing.T) {
	logger := observability.NewNoOpLogger()
	st := store.New(context.Background(), tempName(t), 2, 0, logger)

	err := st.Open(os.O_WRONLY)
	assert.NoError(t, err)

	err = st.Close()
	assert.NoError(t, err)
}

func TestOpenReadStore(t *testing.T) {
	logger := observability.NewNoOpLogger()
	name := tempName(t)

	st1 := store.New(context.Background(), name, 1, 0, logger)
	require.NoError(t, st1.Open(os.O_WRONLY))
	require.NoError(t, st1.Close())

	st2 := store.New(context.Background(), name, 1, 0, logger)
	err := st2.Open(os.O_RDONLY)
	assert.NoError(t, err)

	err = st2.Close()
	assert.NoError(t, err)
}

func TestOpenInvalidFlag(t *testing.T) {
	logger := observability.NewNoOpLogger()
	st := store.New(context.Background(), tempName(t), 1, 0, logger)

	err := st.Open(os.O_RDWR)
	assert.Error(t, err)
}

func TestReadWriteStreams(t *testing.T) {
	logger := observability.NewNoOpLogger()
	name := tempName(t)

	st1 := store.New(context.Background(), name, 2, 5, logger)
	require.NoError(t, st1.Open(os.O_WRONLY))

	meta := bytes.Repeat([]byte("meta"), 100)
	data := bytes.Repeat([]byte("data"), 5000)
	require.NoError(t, st1.WriteStream(0, meta))
	require.NoError(t, st1.WriteStream(1, data))
	require.NoError(t, st1.FlushStream(0))
	require.NoError(t, st1.Close())

	st2 := store.New(context.Background(), name, 2, 0, logger)
	require.NoError(t, st2.Open(os.O_RDONLY))
	defer st2.Close()

	gotMeta := make([]byte, len(meta))
	n, err := st2.ReadStream(0, gotMeta)
	require.NoError(t, err)
	assert.Equal(t, len(meta), n)
	assert.Equal(t, meta, gotMeta)

	gotData := make([]byte, len(data))
	n, err = st2.ReadStream(1, gotData)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, gotData)

	// Stream 0 is exhausted.
	n, err = st2.ReadStream(0, make([]byte, 8))
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, st2.Close())
}

func TestCorruptFile(t *testing.T) {
	logger := observability.NewNoOpLogger()
	name := tempName(t)

	// A file that is too short to hold the placeholder headers.
	require.NoError(t, os.WriteFile(name, []byte("not a stream set"), 0o644))

	st := store.New(context.Background(), name, 4, 0, logger)
	err := st.Open(os.O_RDONLY)
	assert.Error(t, err)
}
