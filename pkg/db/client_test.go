package db

import (
	"context"
	"testing"

	"github.com/angelmondragon/zerymnor-storefront/pkg/config"
	"gorm.io/driver/sqlite"
)

func TestOpenSQLiteAndPing(t *testing.T) {
	client, err := Open(sqlite.Open("file:db_client_test?mode=memory&cache=shared"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer client.Close()

	if client.Driver() != "sqlite" {
		t.Fatalf("unexpected driver %q", client.Driver())
	}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if client.DB() == nil {
		t.Fatalf("expected gorm handle")
	}
}

func TestNewRejectsMissingDSN(t *testing.T) {
	if _, err := New(context.Background(), config.DBConfig{Driver: config.DBDriverSQLite}, nil); err == nil {
		t.Fatalf("expected missing dsn error")
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	if _, err := New(context.Background(), config.DBConfig{DSN: "x", Driver: "mysql"}, nil); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestNewSQLiteAppliesPool(t *testing.T) {
	client, err := New(context.Background(), config.DBConfig{
		DSN:          "file:db_pool_test?mode=memory&cache=shared",
		Driver:       config.DBDriverSQLite,
		MaxOpenConns: 3,
	}, nil)
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	defer client.Close()

	sqlDB, err := client.DB().DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	if got := sqlDB.Stats().MaxOpenConnections; got != 3 {
		t.Fatalf("expected max open conns 3, got %d", got)
	}
}
