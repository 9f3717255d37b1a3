package tilepkg

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileSource_ReadAfterCloseReturnsErrClosed(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "archive-*.tpkx")
	require.NoError(t, err)
	_, err = f.Write([]byte("hello archive bytes"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	src, err := NewFileSource(f.Name())
	require.NoError(t, err)

	res, err := src.Read(context.Background(), 0, 5)
	require.NoError(t, err)
	require.Equal(t, "hello", string(res.Bytes))

	closer, ok := src.(interface{ Close() error })
	require.True(t, ok)
	require.NoError(t, closer.Close())

	_, err = src.Read(context.Background(), 0, 5)
	require.ErrorIs(t, err, ErrClosed)
}
