package restore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	s, err := Open(path, logger)
	require.NoError(t, err)
	return s
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "state.db")
	s := openTestStore(t, path)
	defer s.Close() //nolint:errcheck // test cleanup

	assert.Equal(t, path, s.Path())
	_, err := os.Stat(filepath.Dir(path))
	assert.NoError(t, err)
}

func TestSaveLoad(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "state.db"))
	defer s.Close() //nolint:errcheck // test cleanup
	ctx := context.Background()

	_, err := s.Load(ctx, KeyRegnr)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, KeyRegnr, "AB12345"))
	got, err := s.Load(ctx, KeyRegnr)
	require.NoError(t, err)
	assert.Equal(t, "AB12345", got)

	require.NoError(t, s.Save(ctx, KeyRegnr, "CD54321"))
	got, err = s.Load(ctx, KeyRegnr)
	require.NoError(t, err)
	assert.Equal(t, "CD54321", got)
}

func TestSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	s := openTestStore(t, path)
	require.NoError(t, s.Save(ctx, KeyRegnr, "AB12345"))
	require.NoError(t, s.Close())

	s = openTestStore(t, path)
	defer s.Close() //nolint:errcheck // test cleanup
	got, err := s.Load(ctx, KeyRegnr)
	require.NoError(t, err)
	assert.Equal(t, "AB12345", got)
}
