package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/leapstack-labs/leapdict/internal/cli/config"
	"github.com/leapstack-labs/leapdict/internal/cli/testutil"
	"github.com/leapstack-labs/leapdict/internal/dictionary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(config.ResetConfig)

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()
	for _, name := range []string{"version", "load", "locality", "serve", "seed", "query", "history"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}

	for _, flag := range []string{"config", "tcp-port", "http-port", "engine", "database", "workers", "log-level", "state"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestVersion_NeedsNoConfig(t *testing.T) {
	out, err := execute(t, "version", "--config", "/nonexistent/leapdict.yaml")
	require.NoError(t, err)
	testutil.AssertContains(t, out, "leapdict v"+Version)
}

func TestSeedThenLoad_Local(t *testing.T) {
	p := testutil.SetupTestProject(t, 19000, 0)

	out, err := execute(t, "--config", p.ConfigPath, "seed", "events", p.SeedPath)
	require.NoError(t, err)
	testutil.AssertContains(t, out, "Loaded 3 rows into events")

	out, err = execute(t, "--config", p.ConfigPath, "load", "--sample", "2")
	require.NoError(t, err, out)
	testutil.AssertNoANSI(t, out)
	testutil.AssertContains(t, out, "node(127.0.0.1:19000, events)")
	testutil.AssertContains(t, out, "local")
	testutil.AssertContains(t, out, "alpha")
	testutil.AssertNotContains(t, out, "gamma")
	testutil.AssertContains(t, out, "Loaded 1 dictionaries")
}

func TestSeedThenQuery(t *testing.T) {
	p := testutil.SetupTestProject(t, 19004, 0)

	_, err := execute(t, "--config", p.ConfigPath, "seed", "events", p.SeedPath)
	require.NoError(t, err)

	out, err := execute(t, "--config", p.ConfigPath, "query", "SELECT value FROM events ORDER BY id")
	require.NoError(t, err, out)
	testutil.AssertNoANSI(t, out)
	testutil.AssertContains(t, out, "alpha")
	testutil.AssertContains(t, out, "gamma")
	testutil.AssertContains(t, out, "3 rows")

	out, err = execute(t, "--config", p.ConfigPath, "query", "SELECT value FROM events ORDER BY id", "--limit", "1")
	require.NoError(t, err, out)
	testutil.AssertContains(t, out, "alpha")
	testutil.AssertNotContains(t, out, "gamma")
	testutil.AssertContains(t, out, "Showing first 1 rows")

	_, err = execute(t, "--config", p.ConfigPath, "query", "SELECT * FROM missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query failed")
}

func TestLoad_RemoteFailureIsReported(t *testing.T) {
	p := testutil.SetupTestProject(t, 19001, 1)

	_, err := execute(t, "--config", p.ConfigPath, "seed", "events", p.SeedPath)
	require.NoError(t, err)

	out, err := execute(t, "--config", p.ConfigPath, "load")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote_events")
	testutil.AssertContains(t, out, "remote")
	testutil.AssertContains(t, out, "127.0.0.1:1")

	// The local dictionary still loaded.
	testutil.AssertContains(t, out, "ok")
}

func TestHistory_RecordsLoads(t *testing.T) {
	p := testutil.SetupTestProject(t, 19002, 1)

	_, err := execute(t, "--config", p.ConfigPath, "seed", "events", p.SeedPath)
	require.NoError(t, err)
	_, err = execute(t, "--config", p.ConfigPath, "load")
	require.Error(t, err)

	out, err := execute(t, "--config", p.ConfigPath, "history")
	require.NoError(t, err, out)
	testutil.AssertNoANSI(t, out)
	testutil.AssertContains(t, out, "events")
	testutil.AssertContains(t, out, "remote_events")
	testutil.AssertContains(t, out, "local")

	out, err = execute(t, "--config", p.ConfigPath, "history", "events", "--limit", "1")
	require.NoError(t, err, out)
	testutil.AssertNotContains(t, out, "remote_events")
}

func TestHistory_Disabled(t *testing.T) {
	p := testutil.SetupTestProject(t, 19003, 0)

	_, err := execute(t, "--config", p.ConfigPath, "--state", "", "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load history is disabled")
}

func TestLoad_UnknownDictionary(t *testing.T) {
	p := testutil.SetupTestProject(t, 19002, 0)

	_, err := execute(t, "--config", p.ConfigPath, "load", "nope")
	var nf *dictionary.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestLocality(t *testing.T) {
	p := testutil.SetupTestProject(t, 19003, 0)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "own port on loopback", args: []string{"127.0.0.1", "19003"}, want: "127.0.0.1:19003 is local (service port 19003)"},
		{name: "other port", args: []string{"127.0.0.1", "9000"}, want: "127.0.0.1:9000 is remote"},
		{name: "port flag override", args: []string{"127.0.0.1", "9000", "--tcp-port", "9000"}, want: "is local (service port 9000)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--config", p.ConfigPath, "locality"}, tt.args...)
			out, err := execute(t, args...)
			require.NoError(t, err)
			testutil.AssertContains(t, out, tt.want)
		})
	}
}

func TestInvalidConfig(t *testing.T) {
	p := testutil.SetupTestProject(t, 19004, 0)

	_, err := execute(t, "--config", p.ConfigPath, "--engine", "oracle", "load")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown engine type")
}
