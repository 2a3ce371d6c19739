package dictsource

import (
	"context"
	"errors"
	"testing"

	"github.com/leapstack-labs/leapdict/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct{ table string }

func (s *stubSource) LoadAll(context.Context) (core.BatchStream, error) { return nil, nil }
func (s *stubSource) LoadID(context.Context, uint64) (core.BatchStream, error) {
	return nil, &UnsupportedOperationError{Source: s.String(), Op: "LoadID"}
}
func (s *stubSource) LoadIDs(context.Context, []uint64) (core.BatchStream, error) {
	return nil, &UnsupportedOperationError{Source: s.String(), Op: "LoadIDs"}
}
func (s *stubSource) IsModified() bool            { return true }
func (s *stubSource) SupportsSelectiveLoad() bool { return false }
func (s *stubSource) Clone() (Source, error)      { return &stubSource{table: s.table}, nil }
func (s *stubSource) Close() error                { return nil }
func (s *stubSource) String() string              { return "stub(" + s.table + ")" }

func TestRegistry(t *testing.T) {
	Register("stub", func(_ context.Context, params map[string]any, _ []core.Column, _ Deps) (Source, error) {
		table, _ := params["table"].(string)
		if table == "" {
			return nil, &ConfigError{Key: "table", Reason: "required"}
		}
		return &stubSource{table: table}, nil
	})

	assert.True(t, IsRegistered("stub"))
	assert.Contains(t, ListKinds(), "stub")

	src, err := New(context.Background(), "stub", map[string]any{"table": "events"}, nil, Deps{})
	require.NoError(t, err)
	assert.Equal(t, "stub(events)", src.String())

	_, err = New(context.Background(), "stub", map[string]any{}, nil, Deps{})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "table", cfgErr.Key)
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(context.Background(), "nonexistent", nil, nil, Deps{})
	var unknown *UnknownSourceError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nonexistent", unknown.Kind)
	assert.Contains(t, err.Error(), "Available sources")
}

func TestNew_EmptyKind(t *testing.T) {
	_, err := New(context.Background(), "", nil, nil, Deps{})
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestUnsupportedOperationError(t *testing.T) {
	err := error(&UnsupportedOperationError{Source: "node(events)", Op: "LoadID"})
	assert.True(t, errors.Is(err, ErrUnsupported))
	assert.Equal(t, "node(events): LoadID: method unsupported", err.Error())
}

func TestConnectionError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := error(&ConnectionError{Host: "203.0.113.5", Port: 9000, Err: cause})
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "203.0.113.5:9000")
}
