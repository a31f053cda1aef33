package storage_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/skelscale/internal/config"
	"github.com/OCAP2/skelscale/internal/storage"
	gormstorage "github.com/OCAP2/skelscale/internal/storage/gorm"
	"github.com/OCAP2/skelscale/internal/storage/memory"
	sqlitestorage "github.com/OCAP2/skelscale/internal/storage/sqlite"
	"github.com/OCAP2/skelscale/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ storage.Backend    = (*memory.Backend)(nil)
	_ storage.Exportable = (*memory.Backend)(nil)
	_ storage.Backend    = (*gormstorage.Backend)(nil)
	_ storage.Backend    = (*sqlitestorage.Backend)(nil)
	_ storage.Exportable = (*sqlitestorage.Backend)(nil)
)

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name     string
		typ      string
		expected any
	}{
		{"default is memory", "", &memory.Backend{}},
		{"memory", "memory", &memory.Backend{}},
		{"sqlite", "sqlite", &sqlitestorage.Backend{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := storage.NewBackend(config.StorageConfig{
				Type:   tt.typ,
				Memory: config.MemoryConfig{OutputDir: t.TempDir()},
			}, storage.Dependencies{})
			require.NoError(t, err)
			assert.IsType(t, tt.expected, b)
		})
	}
}

func TestNewBackend_Unknown(t *testing.T) {
	_, err := storage.NewBackend(config.StorageConfig{Type: "mongo"}, storage.Dependencies{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrUnknownBackend))
	assert.Contains(t, err.Error(), "mongo")
}

// recordOne runs a one-frame session through b and returns its export path.
func recordOne(t *testing.T, b storage.Backend) string {
	t.Helper()
	require.NoError(t, b.Init())
	s := &core.Session{ClipName: "walk", Root: "Hips", StartTime: time.Now(), Bones: []core.BoneDef{{Name: "Hips"}}}
	require.NoError(t, b.StartSession(s))
	frame := core.Frame{"Hips": {Position: mgl64.Vec3{0, 0, 1}, Orientation: mgl64.QuatIdent()}}
	require.NoError(t, b.RecordFrame(&core.FrameRecord{SessionID: s.ID, Time: time.Now(), Raw: frame, Scaled: frame}))
	require.NoError(t, b.EndSession())
	require.NoError(t, b.Close())

	e, ok := b.(storage.Exportable)
	require.True(t, ok)
	return e.GetExportedFilePath()
}

func TestNewBackend_SqliteUsesDefaultDumpPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	b, err := storage.NewBackend(config.StorageConfig{Type: "sqlite"}, storage.Dependencies{DumpPath: path})
	require.NoError(t, err)

	assert.Equal(t, path, recordOne(t, b))
	assert.FileExists(t, path)
}

func TestNewBackend_SqliteConfigPathWins(t *testing.T) {
	dir := t.TempDir()
	configured := filepath.Join(dir, "configured.db")
	b, err := storage.NewBackend(config.StorageConfig{
		Type:   "sqlite",
		SQLite: config.SQLiteConfig{DumpPath: configured},
	}, storage.Dependencies{DumpPath: filepath.Join(dir, "default.db")})
	require.NoError(t, err)

	assert.Equal(t, configured, recordOne(t, b))
	_, err = os.Stat(filepath.Join(dir, "default.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestNewBackend_PostgresFallbackDumpsToDisk(t *testing.T) {
	t.Cleanup(viper.Reset)
	config.LoadDefaults()
	viper.Set("db.host", "127.0.0.1")
	viper.Set("db.port", "1")

	path := filepath.Join(t.TempDir(), "fallback.db")
	b, err := storage.NewBackend(config.StorageConfig{Type: "postgres"}, storage.Dependencies{DumpPath: path})
	require.NoError(t, err)
	require.IsType(t, &sqlitestorage.Backend{}, b)

	assert.Equal(t, path, recordOne(t, b))
	assert.FileExists(t, path)
}
