package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/eventviewer/server/internal/auth"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	sharedOnce      sync.Once
	sharedInitErr   error
	sharedContainer *postgres.PostgresContainer
	sharedPool      *pgxpool.Pool
	sharedDBURL     string
)

const sharedContainerName = "eventviewer-storage-db"

func TestMain(m *testing.M) {
	code := m.Run()
	cleanupShared()
	os.Exit(code)
}

func setupPostgres(t *testing.T, ctx context.Context) (*pgxpool.Pool, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)
	initShared(t)
	resetDatabase(t, sharedPool)

	return sharedPool, sharedDBURL
}

func initShared(t *testing.T) {
	t.Helper()
	sharedOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		sharedInitErr = catchPanic(func() error {
			// Disable ryuk (resource reaper) to prevent premature container cleanup
			_ = os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

			container, err := postgres.Run(
				ctx,
				"postgres:16-alpine",
				postgres.WithDatabase("eventviewer"),
				postgres.WithUsername("eventviewer"),
				postgres.WithPassword("eventviewer_dev"),
				testcontainers.WithReuseByName(sharedContainerName),
			)
			if err != nil {
				return err
			}
			sharedContainer = container

			dbURL, err := container.ConnectionString(ctx, "sslmode=disable")
			if err != nil {
				return err
			}
			sharedDBURL = dbURL

			migrationsPath := filepath.Join(projectRoot(), DefaultMigrationsPath)
			if err := migrateWithRetry(dbURL, migrationsPath, 10*time.Second); err != nil {
				return err
			}

			pool, err := Connect(ctx, dbURL, 10)
			if err != nil {
				return err
			}

			sharedPool = pool
			return nil
		})
	})

	require.NoError(t, sharedInitErr)
}

// catchPanic turns a panic from container startup into an error so one
// broken Docker setup fails the tests instead of the whole binary.
func catchPanic(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("start postgres container: %v", r)
		}
	}()
	return fn()
}

func cleanupShared() {
	if sharedPool != nil {
		sharedPool.Close()
	}
	// The reused container outlives the test binary on purpose.
}

func resetDatabase(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if pool == nil {
		require.Fail(t, "shared pool is nil")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := pool.Query(ctx, `
SELECT tablename
  FROM pg_tables
 WHERE schemaname = 'public'
   AND tablename <> 'schema_migrations'
 ORDER BY tablename;
`)
	require.NoError(t, err)
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		if name == "" {
			continue
		}
		safe := strings.ReplaceAll(name, "\"", "\"\"")
		tables = append(tables, "\"public\".\""+safe+"\"")
	}
	require.NoError(t, rows.Err())

	if len(tables) == 0 {
		return
	}

	truncateSQL := "TRUNCATE TABLE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE;"
	_, err = pool.Exec(ctx, truncateSQL)
	require.NoError(t, err)
}

func insertUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool, role auth.Role, firstName string) string {
	t.Helper()
	id := uuid.NewString()
	var studentID *string
	if role == auth.RoleStudent {
		s := id[:10]
		studentID = &s
	}
	_, err := pool.Exec(ctx,
		`INSERT INTO users (id, student_id, role, first_name, last_name, email, password_hash)
         VALUES ($1, $2, $3, $4, 'Test', $5, 'hash')`,
		id, studentID, string(role), firstName, strings.ToLower(firstName)+"-"+id[:8]+"@binus.ac.id",
	)
	require.NoError(t, err)
	return id
}

func countRows(t *testing.T, ctx context.Context, pool *pgxpool.Pool, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(ctx, query, args...).Scan(&n))
	return n
}

func projectRoot() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "."
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", ".."))
}

func migrateWithRetry(databaseURL string, migrationsPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if err := MigrateUp(databaseURL, migrationsPath); err != nil {
			if time.Now().After(deadline) {
				return err
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}
		return nil
	}
}
