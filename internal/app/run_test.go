package app

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/profilekeeper/internal/database"
	"github.com/hitoshi/profilekeeper/internal/model"
	"github.com/hitoshi/profilekeeper/internal/repository"
)

func sqliteURL(t *testing.T) string {
	t.Helper()
	return "sqlite:///" + filepath.Join(t.TempDir(), "app.db")
}

func TestRun_WithMissingEnv_ReturnsError(t *testing.T) {
	for _, key := range []string{"SECRET_KEY", "DATABASE_URL", "OKTA_CLIENT_ID", "OKTA_CLIENT_SECRET", "OKTA_DOMAIN"} {
		t.Setenv(key, "")
	}

	var buf bytes.Buffer
	if err := Run(&buf, []string{"serve"}); err == nil {
		t.Fatal("Run with missing env should return error")
	}
}

func TestRun_MigrateThenCleanup(t *testing.T) {
	dbURL := sqliteURL(t)
	setRequiredEnv(t, dbURL)

	var buf bytes.Buffer
	if err := Run(&buf, []string{"migrate"}); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	db, err := database.Open(dbURL)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	repo := repository.NewSessionRepo(db.DB, db.Driver)
	expired := &model.Session{ID: "old", Email: "a@x.com", Name: "Ana", ExpiresAt: time.Now().Add(-time.Hour)}
	if err := repo.Create(context.Background(), expired); err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}

	if err := Run(&buf, []string{"cleanup"}); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"deleted_count":1`) {
		t.Errorf("cleanup should report one deleted session, log:\n%s", buf.String())
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&n); err != nil {
		t.Fatalf("failed to count sessions: %v", err)
	}
	if n != 0 {
		t.Errorf("sessions = %d, want 0", n)
	}
}

func TestRun_Serve_FailsWhenProviderUnreachable(t *testing.T) {
	setRequiredEnv(t, sqliteURL(t))
	t.Setenv("OKTA_DOMAIN", "127.0.0.1:1")
	t.Setenv("PROVIDER_TIMEOUT", "2s")

	var buf bytes.Buffer
	err := Run(&buf, []string{"serve"})
	if err == nil {
		t.Fatal("serve should fail when discovery fails")
	}
	if !strings.Contains(err.Error(), "identity provider") {
		t.Errorf("error = %v, want identity provider failure", err)
	}
	if strings.Contains(buf.String(), "test-client-secret") || strings.Contains(buf.String(), "test-secret-key") {
		t.Error("secrets must not be logged")
	}
}

func TestRun_Healthcheck_FailsWithoutServer(t *testing.T) {
	t.Setenv("SERVER_PORT", "1")

	if err := Run(&bytes.Buffer{}, []string{"healthcheck"}); err == nil {
		t.Fatal("healthcheck should fail when nothing listens")
	}
}
