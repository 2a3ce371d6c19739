package locality

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ifaceAddr = net.ParseIP("203.0.113.5")
	loopback  = net.ParseIP("127.0.0.1")
)

func TestResolver_IsLocal(t *testing.T) {
	lookup := func(_ context.Context, host string) ([]net.IP, error) {
		switch host {
		case "self.example":
			return []net.IP{net.ParseIP("198.51.100.1"), ifaceAddr}, nil
		case "other.example":
			return []net.IP{net.ParseIP("198.51.100.2")}, nil
		}
		return nil, errors.New("no such host")
	}

	tests := []struct {
		name    string
		host    string
		port    int
		want    bool
		wantErr bool
	}{
		{name: "own port and interface address", host: "203.0.113.5", port: 9000, want: true},
		{name: "own port and loopback", host: "127.0.0.1", port: 9000, want: true},
		{name: "own port and v4-mapped v6 literal", host: "::ffff:203.0.113.5", port: 9000, want: true},
		{name: "other port and interface address", host: "203.0.113.5", port: 9001, want: false},
		{name: "own port and foreign address", host: "192.0.2.10", port: 9000, want: false},
		{name: "host name resolving to interface", host: "self.example", port: 9000, want: true},
		{name: "host name resolving elsewhere", host: "other.example", port: 9000, want: false},
		{name: "unresolvable host on own port", host: "missing.example", port: 9000, wantErr: true},
		{name: "unresolvable host on other port is not looked up", host: "missing.example", port: 1, want: false},
	}

	r := NewResolver(
		WithServicePort(9000),
		WithInterfaces(loopback, ifaceAddr),
		WithLookup(lookup),
	)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.IsLocal(context.Background(), tt.host, tt.port)
			if tt.wantErr {
				var lookupErr *LookupError
				require.ErrorAs(t, err, &lookupErr)
				assert.Equal(t, tt.host, lookupErr.Host)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_EmptyLookupResult(t *testing.T) {
	r := NewResolver(
		WithServicePort(9000),
		WithInterfaces(loopback),
		WithLookup(func(context.Context, string) ([]net.IP, error) { return nil, nil }),
	)
	_, err := r.IsLocal(context.Background(), "empty.example", 9000)
	var lookupErr *LookupError
	assert.ErrorAs(t, err, &lookupErr)
}

func TestInterfaceAddrs_Cached(t *testing.T) {
	first, err := InterfaceAddrs()
	require.NoError(t, err)
	second, err := InterfaceAddrs()
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	if len(first) > 0 {
		// same backing array: enumeration ran once
		assert.Same(t, &first[0], &second[0])
	}
}

func TestDefaultResolver_UsesServicePort(t *testing.T) {
	addrs, err := InterfaceAddrs()
	require.NoError(t, err)
	if len(addrs) == 0 {
		t.Skip("no interface addresses on this machine")
	}

	prev := ServicePort()
	t.Cleanup(func() { SetServicePort(prev) })
	SetServicePort(19000)

	local, err := IsLocal(context.Background(), addrs[0].String(), 19000)
	require.NoError(t, err)
	assert.True(t, local)

	local, err = IsLocal(context.Background(), addrs[0].String(), 19001)
	require.NoError(t, err)
	assert.False(t, local)
}
