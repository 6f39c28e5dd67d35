package database

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestConnectPostgresOpensSQLiteDSN(t *testing.T) {
	db, err := ConnectPostgres("file::memory:?cache=shared")
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Ping())
	require.NoError(t, sqlDB.Close())
}

func TestConnectPostgresRequiresDSN(t *testing.T) {
	_, err := ConnectPostgres("  ")
	require.Error(t, err)
}

func TestConnectRedis(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client, err := ConnectRedis(context.Background(), "redis://"+server.Addr())
	require.NoError(t, err)
	require.NotNil(t, client)
	require.NoError(t, client.Close())

	client, err = ConnectRedis(context.Background(), "")
	require.NoError(t, err)
	require.Nil(t, client)

	_, err = ConnectRedis(context.Background(), "://bad")
	require.Error(t, err)
}

func TestConnectNATSDisabledWithoutURL(t *testing.T) {
	conn, err := ConnectNATS("", "gema-proposal-api")
	require.NoError(t, err)
	require.Nil(t, conn)

	_, err = ConnectNATS("nats://127.0.0.1:1", "gema-proposal-api")
	require.Error(t, err)
}
