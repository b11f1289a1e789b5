package db

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrationsFS_PairsUpAndDown(t *testing.T) {
	entries, err := fs.ReadDir(MigrationsFS, "migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected embedded migrations")
	}

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file %s in migrations", name)
		}
	}
	for v := range ups {
		if !downs[v] {
			t.Errorf("migration %s has no down file", v)
		}
	}
}

func TestMigrationsFS_DeclaresPartyUniqueness(t *testing.T) {
	data, err := fs.ReadFile(MigrationsFS, "migrations/000001_init.up.sql")
	if err != nil {
		t.Fatalf("read init migration: %v", err)
	}
	sql := string(data)
	for _, want := range []string{
		"agreement_parties_agreement_user_key UNIQUE (agreement_id, user_id)",
		"signatures_agreement_user_key UNIQUE (agreement_id, user_id)",
		"audit_logs_append_only",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("init migration missing %q", want)
		}
	}
}

func TestRollbackMigrations_RejectsNonPositiveSteps(t *testing.T) {
	if err := RollbackMigrations("postgres://unused", 0); err == nil {
		t.Fatal("expected error for zero steps")
	}
}
