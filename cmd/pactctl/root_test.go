package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func executeCmd(args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	rootCmd := NewRootCmd()
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRoot_Help(t *testing.T) {
	stdout, _, err := executeCmd("--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, cmd := range []string{"migrate", "repair", "outbox", "render"} {
		if !strings.Contains(stdout, cmd) {
			t.Errorf("expected %q in help output", cmd)
		}
	}
}

func TestDatabaseCommands_RequireURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	for _, args := range [][]string{
		{"migrate", "up"},
		{"migrate", "down"},
		{"repair"},
		{"outbox", "drain"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, _, err := executeCmd(args...)
			if !errors.Is(err, errNoDatabaseURL) {
				t.Fatalf("expected errNoDatabaseURL, got %v", err)
			}
		})
	}
}

func TestMigrateDown_RejectsNonPositiveSteps(t *testing.T) {
	_, _, err := executeCmd("migrate", "down", "--steps", "0", "--database-url", "postgres://unused")
	if err == nil || !strings.Contains(err.Error(), "--steps") {
		t.Fatalf("expected steps error, got %v", err)
	}
}

func TestRender(t *testing.T) {
	stdout, _, err := executeCmd("render", "rental", "--set", "ownerName=Cara", "--set", "tenantName=Alice")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(stdout, "RENTAL AGREEMENT") || !strings.Contains(stdout, "Cara") || !strings.Contains(stdout, "Alice") {
		t.Fatalf("unexpected output:\n%s", stdout)
	}
}

func TestRender_Fields(t *testing.T) {
	stdout, _, err := executeCmd("render", "rental", "--fields")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	fields := strings.Fields(stdout)
	want := map[string]bool{"ownerName": false, "tenantName": false, "monthlyRent": false}
	for _, f := range fields {
		if f == "today" {
			t.Fatal("today must not be listed as a field")
		}
		if _, ok := want[f]; ok {
			want[f] = true
		}
	}
	for f, seen := range want {
		if !seen {
			t.Errorf("expected field %q in %v", f, fields)
		}
	}
}

func TestRender_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown type", []string{"render", "lease"}, "unknown agreement type"},
		{"malformed set", []string{"render", "nda", "--set", "party1"}, "key=value"},
		{"strict missing", []string{"render", "rental", "--strict"}, "missing fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCmd(tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
