package node

import (
	"testing"

	"github.com/leapstack-labs/leapdict/pkg/dictsource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]any
		want    Config
		wantKey string
	}{
		{
			name:   "required keys only",
			params: map[string]any{"host": "203.0.113.5", "port": 9000, "table": "events"},
			want:   Config{Host: "203.0.113.5", Port: 9000, Table: "events"},
		},
		{
			name: "all keys",
			params: map[string]any{
				"host": "db1", "port": 9000, "user": "reader", "password": "secret",
				"db": "analytics", "table": "events",
			},
			want: Config{Host: "db1", Port: 9000, User: "reader", Password: "secret", DB: "analytics", Table: "events"},
		},
		{
			name:   "port from env string",
			params: map[string]any{"host": "db1", "port": "9000", "table": "events"},
			want:   Config{Host: "db1", Port: 9000, Table: "events"},
		},
		{
			name:    "missing host",
			params:  map[string]any{"port": 9000, "table": "events"},
			wantKey: "host",
		},
		{
			name:    "missing port",
			params:  map[string]any{"host": "db1", "table": "events"},
			wantKey: "port",
		},
		{
			name:    "port out of range",
			params:  map[string]any{"host": "db1", "port": 70000, "table": "events"},
			wantKey: "port",
		},
		{
			name:    "missing table",
			params:  map[string]any{"host": "db1", "port": 9000},
			wantKey: "table",
		},
		{
			name:    "unknown key",
			params:  map[string]any{"host": "db1", "port": 9000, "table": "events", "where": "id > 0"},
			wantKey: "source.node",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfig(tt.params)
			if tt.wantKey != "" {
				var cfgErr *dictsource.ConfigError
				require.ErrorAs(t, err, &cfgErr)
				assert.Equal(t, tt.wantKey, cfgErr.Key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
