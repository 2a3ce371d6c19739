// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// Project is a temporary leapdict project.
type Project struct {
	Dir        string
	ConfigPath string
	SeedPath   string
	Database   string
	StatePath  string
}

// SetupTestProject creates a temporary project whose config points the
// "events" dictionary at this process on servicePort. When remotePort is
// non-zero a "remote_events" dictionary is added that targets 127.0.0.1 on
// remotePort, which is never local because the port differs.
func SetupTestProject(t *testing.T, servicePort, remotePort int) *Project {
	t.Helper()

	dir := t.TempDir()
	p := &Project{
		Dir:        dir,
		ConfigPath: filepath.Join(dir, "leapdict.yaml"),
		SeedPath:   filepath.Join(dir, "seeds", "events.csv"),
		Database:   filepath.Join(dir, "dict.duckdb"),
		StatePath:  filepath.Join(dir, ".leapdict", "state.db"),
	}

	if err := os.MkdirAll(filepath.Dir(p.SeedPath), 0o755); err != nil {
		t.Fatalf("failed to create seeds directory: %v", err)
	}

	seed := `id,value
1,alpha
2,beta
3,gamma
`
	if err := os.WriteFile(p.SeedPath, []byte(seed), 0o644); err != nil {
		t.Fatalf("failed to create events.csv: %v", err)
	}

	cfg := fmt.Sprintf(`server:
  tcp_port: %d
engine:
  type: duckdb
  database: %s
logging:
  level: error
state:
  path: %s
dictionaries:
  events:
    structure:
      - name: id
        type: BIGINT
      - name: value
        type: VARCHAR
    source:
      node:
        host: 127.0.0.1
        port: %d
        table: events
`, servicePort, p.Database, p.StatePath, servicePort)

	if remotePort != 0 {
		cfg += fmt.Sprintf(`  remote_events:
    structure:
      - name: id
        type: BIGINT
    source:
      node:
        host: 127.0.0.1
        port: %d
        table: events
`, remotePort)
	}

	if err := os.WriteFile(p.ConfigPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("failed to create leapdict.yaml: %v", err)
	}
	return p
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertContains checks that the string contains the expected substring.
func AssertContains(t *testing.T, s, expected string) {
	t.Helper()
	if !strings.Contains(s, expected) {
		t.Errorf("string %q does not contain expected %q", s, expected)
	}
}

// AssertNotContains checks that the string does not contain the substring.
func AssertNotContains(t *testing.T, s, unexpected string) {
	t.Helper()
	if strings.Contains(s, unexpected) {
		t.Errorf("string %q unexpectedly contains %q", s, unexpected)
	}
}
