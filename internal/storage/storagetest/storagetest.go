// Package storagetest builds storage services backed by an in-memory sqlite
// database and an in-process Redis for tests.
package storagetest

import (
	"testing"

	"marketchat/backend/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a migrated storage service private to the calling test, plus the
// miniredis server behind its Redis client.
func New(t testing.TB) (*storage.Service, *miniredis.Miniredis) {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a single connection keeps the in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := storage.NewStorageService(db, rdb)
	require.NoError(t, s.Migrate())
	return s, mr
}

// FailCreates makes every insert into table fail with err for the rest of the test.
func FailCreates(t testing.TB, s *storage.Service, table string, err error) {
	t.Helper()
	require.NoError(t, s.DB.Callback().Create().Before("gorm:create").
		Register("storagetest:fail_create_"+table, failOn(table, err)))
}

// FailUpdates makes every update of table fail with err for the rest of the test.
func FailUpdates(t testing.TB, s *storage.Service, table string, err error) {
	t.Helper()
	require.NoError(t, s.DB.Callback().Update().Before("gorm:update").
		Register("storagetest:fail_update_"+table, failOn(table, err)))
}

func failOn(table string, err error) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(err)
		}
	}
}
