package app_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/approvald/internal/app"
	"github.com/BrandonDHaskell/approvald/internal/approvals/store"
	"github.com/BrandonDHaskell/approvald/internal/blob"
	"github.com/BrandonDHaskell/approvald/internal/config"
	"github.com/BrandonDHaskell/approvald/internal/logging"
)

func TestOpenStorage_Memory(t *testing.T) {
	s, err := app.OpenStorage(context.Background(), config.Config{DBDriver: "memory"}, logging.Discard())
	require.NoError(t, err)
	assert.NotNil(t, s.Store)
	assert.NoError(t, s.Close())
}

func TestOpenStorage_SQLiteSeeded(t *testing.T) {
	cfg := config.Config{
		DBDriver: "sqlite",
		DBPath:   filepath.Join(t.TempDir(), "approvald.db"),
		Env:      "dev",
		SeedDev:  true,
	}
	s, err := app.OpenStorage(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer s.Close()

	var n int
	require.NoError(t, s.Store.View(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		n, err = tx.Directory().CountUsers(ctx)
		return err
	}))
	assert.Equal(t, 2, n)
}

func TestOpenExportTarget_Filesystem(t *testing.T) {
	dst, err := app.OpenExportTarget(context.Background(), config.ExportConfig{Driver: "fs", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, blob.DriverFilesystem, dst.Driver())
}
