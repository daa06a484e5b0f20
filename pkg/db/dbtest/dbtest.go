// Package dbtest opens migrated in-memory sqlite databases for package tests.
package dbtest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/angelmondragon/packfinderz-pos/pkg/config"
	"github.com/angelmondragon/packfinderz-pos/pkg/db"
	"github.com/angelmondragon/packfinderz-pos/pkg/migrate"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
)

// New returns a client over a private in-memory database with every migration applied.
func New(t testing.TB) *db.Client {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_foreign_keys=on", name, uuid.NewString()[:8])

	ctx := context.Background()
	client, err := db.New(ctx, config.DBConfig{Driver: config.DBDriverSQLite, DSN: dsn}, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.SQL()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	goose.SetLogger(goose.NopLogger())
	if err := migrate.Up(ctx, sqlDB, config.DBDriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return client
}
