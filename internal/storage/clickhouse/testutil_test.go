package clickhouse

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a ClickHouse container and returns a connection.
// Returns a cleanup function that must be called when done.
func setupTestDB(t *testing.T) (*Conn, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	// Start ClickHouse container
	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60 * time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_DB":       "test",
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	// Get native port (9000)
	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	dsn := fmt.Sprintf("clickhouse://%s:%s/test", host, port.Port())

	// Connect to ClickHouse
	conn, err := NewConn(ctx, dsn)
	require.NoError(t, err)

	// Run migrations
	runMigrations(t, conn)

	cleanup := func() {
		conn.Close()
		_ = container.Terminate(ctx)
	}

	return conn, cleanup
}

// runMigrations applies all SQL migrations from
// internal/storage/migrations/clickhouse/.
func runMigrations(t *testing.T, conn *Conn) {
	t.Helper()
	ctx := context.Background()

	migrations := []string{
		"0001_feature_records.sql",
	}

	basePath := findSQLDir()

	for _, m := range migrations {
		path := basePath + "/" + m
		content, err := os.ReadFile(path)
		if err != nil {
			t.Logf("Could not read migration %s: %v, trying inline migration", m, err)
			runInlineMigrations(t, conn)
			return
		}

		err = conn.Exec(ctx, string(content))
		require.NoError(t, err, "failed to apply migration %s", m)
	}
}

// findSQLDir attempts to locate internal/storage/migrations/clickhouse.
func findSQLDir() string {
	paths := []string{
		"../migrations/clickhouse",
		"../../migrations/clickhouse",
		"internal/storage/migrations/clickhouse",
		"./internal/storage/migrations/clickhouse",
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return "../migrations/clickhouse"
}

// runInlineMigrations applies the feature_records schema directly,
// without reading the migration file, as a fallback when the migrations
// directory cannot be located from the test's working directory.
func runInlineMigrations(t *testing.T, conn *Conn) {
	t.Helper()
	ctx := context.Background()

	err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS feature_records (
			symbol            String,
			timestamp_ms      UInt64,
			price             Float64,
			ret_1s            Float64,
			accel_1s          Float64,
			ticks_per_sec     Float64,
			vol_1s            Float64,
			z_vol_1s          Float64,
			spread            Float64,
			has_spread        UInt8,
			microprice        Float64,
			has_microprice    UInt8,
			microprice_slope  Float64
		) ENGINE = MergeTree()
		ORDER BY (symbol, timestamp_ms)
	`)
	require.NoError(t, err)
}
