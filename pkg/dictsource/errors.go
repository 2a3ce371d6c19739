package dictsource

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/leapdict/pkg/core"
	"github.com/leapstack-labs/leapdict/pkg/locality"
)

// ErrUnsupported is matched by every UnsupportedOperationError.
var ErrUnsupported = errors.New("method unsupported")

// UnsupportedOperationError is returned by load methods a source kind does not implement.
type UnsupportedOperationError struct {
	Source string
	Op     string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Op, ErrUnsupported)
}

func (e *UnsupportedOperationError) Unwrap() error {
	return ErrUnsupported
}

// ConfigError reports a missing or invalid configuration key.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid source configuration: %s: %s", e.Key, e.Reason)
}

// ConnectionError reports a failure to reach a remote instance, or a failure
// while streaming from it.
type ConnectionError struct {
	Host string
	Port int
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s:%d failed: %v", e.Host, e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// LocalityError reports a host name that could not be resolved while deciding
// whether a source is local.
type LocalityError = locality.LookupError

// SchemaMismatchError reports a result set that does not carry the expected columns.
type SchemaMismatchError = core.SchemaMismatchError
