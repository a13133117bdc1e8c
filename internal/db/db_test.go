package db_test

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/danblackadder/slumberhouse-api/internal/config"
	"github.com/danblackadder/slumberhouse-api/internal/db"
	"github.com/danblackadder/slumberhouse-api/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestNew_SQLiteMemoryMigrates(t *testing.T) {
	gormDB, pool, err := db.New(context.Background(), &config.DBConfig{
		Driver: "sqlite",
		File:   "file:" + t.Name() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	assert.Nil(t, pool)

	for _, m := range model.All() {
		assert.True(t, gormDB.Migrator().HasTable(m), "missing table for %T", m)
	}
	require.NoError(t, db.NewPinger(gormDB).Ping(context.Background()))
}

func TestPinger_ReportsPingFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	err = db.NewPinger(gormDB).Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}
