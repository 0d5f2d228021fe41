package auth

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func setupAuthDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}

	schema := `
		CREATE TABLE users (
			username TEXT PRIMARY KEY,
			password_hash TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating test schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$") {
		t.Errorf("hash not in PHC format: %s", hash)
	}

	ok, err := VerifyPassword("correct horse battery staple", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Error("correct password rejected")
	}

	ok, err = VerifyPassword("wrong", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if ok {
		t.Error("wrong password accepted")
	}
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	for _, hash := range []string{
		"",
		"not-a-phc-string",
		"$bcrypt$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=1$!!!$aGFzaA",
	} {
		if _, err := VerifyPassword("pw", hash); err == nil {
			t.Errorf("VerifyPassword(%q) accepted malformed hash", hash)
		}
	}
}

func TestCheckPassword(t *testing.T) {
	a := NewSQLiteAuthenticator(setupAuthDB(t))
	ctx := context.Background()

	if err := a.CreateUser(ctx, "system.user.admin", "secret"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if err := a.CheckPassword(ctx, "system.user.admin", "secret"); err != nil {
		t.Errorf("valid credentials rejected: %v", err)
	}
	if err := a.CheckPassword(ctx, "system.user.admin", "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
	if err := a.CheckPassword(ctx, "ghost", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestCheckPasswordDisabledUser(t *testing.T) {
	a := NewSQLiteAuthenticator(setupAuthDB(t))
	ctx := context.Background()

	if err := a.CreateUser(ctx, "system.user.kiosk", "pw"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := a.SetEnabled(ctx, "system.user.kiosk", false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}

	if err := a.CheckPassword(ctx, "system.user.kiosk", "pw"); !errors.Is(err, ErrUserDisabled) {
		t.Errorf("err = %v, want ErrUserDisabled", err)
	}
}

func TestSeedAdmin(t *testing.T) {
	a := NewSQLiteAuthenticator(setupAuthDB(t))
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	password, err := SeedAdmin(ctx, a, "system.user.admin", logger)
	if err != nil {
		t.Fatalf("SeedAdmin: %v", err)
	}
	if password == "" {
		t.Fatal("no password generated on empty table")
	}
	if err := a.CheckPassword(ctx, "system.user.admin", password); err != nil {
		t.Errorf("seeded credentials rejected: %v", err)
	}

	// Second boot: users exist, no reseed.
	password, err = SeedAdmin(ctx, a, "system.user.admin", logger)
	if err != nil {
		t.Fatalf("SeedAdmin second run: %v", err)
	}
	if password != "" {
		t.Error("reseeded over existing users")
	}
}
