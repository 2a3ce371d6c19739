package core

import "context"

// ExecOptions controls how an Executor runs a query.
type ExecOptions struct {
	// Internal marks a nested, non user-facing query. Internal queries are
	// not registered in the engine's process list.
	Internal bool
}

// ExecOption configures ExecOptions.
type ExecOption func(*ExecOptions)

// Internal marks the execution as an internal invocation.
func Internal() ExecOption {
	return func(o *ExecOptions) { o.Internal = true }
}

// ApplyExecOptions folds opts into an ExecOptions value.
func ApplyExecOptions(opts ...ExecOption) ExecOptions {
	var o ExecOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Executor runs queries in-process and returns their results as batch streams.
type Executor interface {
	Execute(ctx context.Context, query string, opts ...ExecOption) (BatchStream, error)
}
