package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/skelscale/internal/model"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSqliteDB_InMemoryMigrates(t *testing.T) {
	db, err := GetSqliteDB("")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	for _, m := range model.DatabaseModels {
		assert.True(t, db.Migrator().HasTable(m))
	}
}

func TestGetSqliteDB_TimeColumnsRoundTrip(t *testing.T) {
	db, err := GetSqliteDB("")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	start := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	s := model.Session{ClipName: "walk", StartTime: start, EndTime: start.Add(time.Minute)}
	require.NoError(t, db.Create(&s).Error)
	require.NoError(t, db.Create(&model.FrameRecord{SessionID: s.ID, Time: start, FrameIndex: 0}).Error)

	var got model.Session
	require.NoError(t, db.First(&got, s.ID).Error)
	assert.True(t, start.Equal(got.StartTime))
	assert.True(t, start.Add(time.Minute).Equal(got.EndTime))

	var frame model.FrameRecord
	require.NoError(t, db.Where("session_id = ?", s.ID).First(&frame).Error)
	assert.True(t, start.Equal(frame.Time))
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	db, err := GetSqliteDB("")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	require.NoError(t, db.Create(&model.Session{ClipName: "walk", StartTime: time.Now()}).Error)

	path := filepath.Join(t.TempDir(), "it's.db")
	_, err = DumpMemoryDBToDisk(db, path)
	require.NoError(t, err)

	// a second dump replaces the first
	_, err = DumpMemoryDBToDisk(db, path)
	require.NoError(t, err)

	disk, err := GetSqliteDB(path)
	require.NoError(t, err)
	var sessions []model.Session
	require.NoError(t, disk.Find(&sessions).Error)
	require.Len(t, sessions, 1)
	assert.Equal(t, "walk", sessions[0].ClipName)
}

func TestDumpMemoryDBToDisk_NoPath(t *testing.T) {
	db, err := GetSqliteDB("")
	require.NoError(t, err)

	_, err = DumpMemoryDBToDisk(db, "")
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("db.host", "db.local")
	viper.Set("db.port", "5433")
	viper.Set("db.username", "u")
	viper.Set("db.password", "p")
	viper.Set("db.database", "skel")

	assert.Equal(t, "host=db.local port=5433 user=u password=p dbname=skel sslmode=disable", PostgresDSN())
}

func TestManager_ConnectSqlite(t *testing.T) {
	m := NewManager(zerolog.New(os.Stderr))
	require.NoError(t, m.ConnectSqlite())
	assert.True(t, m.IsValid)
	assert.True(t, m.ShouldSaveLocal)

	require.NoError(t, m.Setup())
	assert.True(t, m.DB.Migrator().HasTable(&model.FrameRecord{}))
	assert.NoError(t, m.Close())
}
