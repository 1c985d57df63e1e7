package database

import (
	"context"
	"fmt"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-program-api/internal/models"
)

func TestMigrateCreatesProgramTables(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	for _, model := range models.All() {
		require.True(t, db.Migrator().HasTable(model), "missing table for %T", model)
	}
}

func TestConnectRejectsEmptyURLs(t *testing.T) {
	_, err := ConnectPostgres("", PostgresOptions{}, zerolog.Nop())
	require.Error(t, err)

	_, err = ConnectRedis(context.Background(), "", zerolog.Nop())
	require.Error(t, err)
}

func TestConnectRedis(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	url := "redis://" + server.Addr() + "/0"

	client, err := ConnectRedis(context.Background(), url, zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Set(context.Background(), "ping", "pong", 0).Err())
	server.CheckGet(t, "ping", "pong")

	_, err = ConnectRedis(context.Background(), "not-a-url", zerolog.Nop())
	require.Error(t, err)

	server.Close()
	_, err = ConnectRedis(context.Background(), url, zerolog.Nop())
	require.Error(t, err)
}
