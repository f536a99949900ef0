package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestChangeLogImmutabilityMigrationUsesBlockingTriggers(t *testing.T) {
	migrationPath := filepath.Join("..", "..", "db", "migrations", "0002_change_log_immutability.up.sql")
	sqlBytes, err := os.ReadFile(migrationPath)
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	sqlText := string(sqlBytes)

	expectedSnippets := []string{
		"change_log_immutable_guard",
		"RAISE EXCEPTION",
		"CREATE TRIGGER trg_change_log_block_update",
		"CREATE TRIGGER trg_change_log_block_delete",
	}
	for _, snippet := range expectedSnippets {
		if !strings.Contains(sqlText, snippet) {
			t.Fatalf("expected migration to contain %q", snippet)
		}
	}
	if strings.Contains(sqlText, "DO INSTEAD NOTHING") {
		t.Fatalf("expected hard-fail immutability guard, found silent DO INSTEAD NOTHING rule")
	}
}

func TestSharedListsMigrationKeepsShareCodeUnique(t *testing.T) {
	migrationPath := filepath.Join("..", "..", "db", "migrations", "0001_shared_lists.up.sql")
	sqlBytes, err := os.ReadFile(migrationPath)
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	sqlText := string(sqlBytes)

	if !strings.Contains(sqlText, "CREATE UNIQUE INDEX IF NOT EXISTS shared_lists_share_code_active") {
		t.Fatal("expected a unique index on share_code")
	}
	if !strings.Contains(sqlText, "WHERE share_code IS NOT NULL") {
		t.Fatal("expected the share_code index to be partial so private lists carry NULL")
	}
}
