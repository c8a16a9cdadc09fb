// Package testutil holds the fixtures shared by the test suites.
package testutil

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/user"
	logsvc "github.com/paridhisingla/unisync/services/logger"
	"github.com/paridhisingla/unisync/storage/database"
)

// NewConfig returns the configuration used by tests: sqlite engine, no external services.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:                   "UniSync",
		Env:                       "TEST",
		Build:                     "test",
		TestMode:                  true,
		SecretKey:                 "test-secret-key",
		FrontendBaseURL:           "http://localhost:3000",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		SequenceBackend:           core.SequenceBackendDB,
		Server: core.ServerConfig{
			Address:                   ":0",
			Host:                      "localhost",
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 30 * time.Minute,
			ShutdownTimeout:           time.Second,
			AllowedOrigins:            []string{"http://localhost:3000"},
		},
		Database: core.DatabaseConfig{Engine: core.EngineSQLite},
		Library:  core.LibraryConfig{FinePerDay: decimal.NewFromInt(2), LoanDays: 14},
		Fees:     core.FeesConfig{LateFinePerDay: decimal.NewFromInt(10)},
	}
}

// NewLogger returns a logger discarding everything.
func NewLogger() core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), NewConfig())
}

// OpenDB opens a migrated sqlite database private to t.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err = database.Migrate(db, NewLogger()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

// SetNow freezes core.NowFunc at now for the duration of t.
func SetNow(t *testing.T, now time.Time) {
	t.Helper()
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return now.UTC() }
	t.Cleanup(func() { core.NowFunc = orig })
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateStudent creates an active student named after uname.
func CreateStudent(t *testing.T, repo user.Repository, uname string) user.User {
	t.Helper()
	return CreateUser(t, repo, uname, uname, uname+"@campus.test", "", []string{user.RoleStudent}, true)
}
