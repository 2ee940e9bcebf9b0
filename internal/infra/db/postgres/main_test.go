//go:build integration

package postgres

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
)

// The integration suite runs against a throwaway postgres container. It is
// skipped under the default build tags; run with:
//
//	go test -tags integration ./internal/infra/db/postgres/
var testPool *pgxpool.Pool

const (
	testDBName = "insight_test"
	testDBUser = "insight"
	testDBPass = "insight"
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	containerID, err := startPostgres()
	if err != nil {
		log.Fatalf("starting postgres container: %v (is Docker running?)", err)
	}
	stop := func() { _ = exec.Command("docker", "stop", containerID).Run() }

	dsn := fmt.Sprintf("postgres://%s:%s@localhost:5432/%s?sslmode=disable",
		testDBUser, testDBPass, testDBName)
	testPool, err = connectWithRetry(ctx, dsn, 15)
	if err != nil {
		stop()
		log.Fatalf("connecting to test database: %v", err)
	}

	if err := applySchema(ctx); err != nil {
		testPool.Close()
		stop()
		log.Fatalf("applying schema: %v", err)
	}

	code := m.Run()

	testPool.Close()
	stop()
	os.Exit(code)
}

func startPostgres() (string, error) {
	cmd := exec.Command("docker", "run", "-d", "--rm",
		"--network", "host",
		"-e", "POSTGRES_DB="+testDBName,
		"-e", "POSTGRES_USER="+testDBUser,
		"-e", "POSTGRES_PASSWORD="+testDBPass,
		"postgres:14",
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String())[:12], nil
}

func connectWithRetry(ctx context.Context, dsn string, attempts int) (*pgxpool.Pool, error) {
	var (
		pool *pgxpool.Pool
		err  error
	)
	for i := 0; i < attempts; i++ {
		if pool, err = pgxpool.Connect(ctx, dsn); err == nil {
			return pool, nil
		}
		log.Printf("waiting for postgres (%d/%d)", i+1, attempts)
		time.Sleep(2 * time.Second)
	}
	return nil, err
}

// applySchema walks up to the repo root (marked by go.mod) and executes
// deploy/postgres/init.sql against the fresh database.
func applySchema(ctx context.Context) error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return fmt.Errorf("go.mod not found above %s", dir)
		}
		dir = parent
	}

	schema, err := os.ReadFile(filepath.Join(dir, "deploy", "postgres", "init.sql"))
	if err != nil {
		return err
	}
	_, err = testPool.Exec(ctx, string(schema))
	return err
}

// cleanup truncates the analyses table between subtests.
func cleanup(t *testing.T) {
	t.Helper()
	if _, err := testPool.Exec(context.Background(), `TRUNCATE analyses`); err != nil {
		t.Fatalf("truncating analyses: %v", err)
	}
}
