// Package core defines the shared language of the leapdict system.
//
// This package contains:
//   - Schema and data types (Column, Batch)
//   - Streaming contracts (BatchStream, RowReader)
//   - Service interfaces (Adapter, Executor)
//   - Engine configuration types (AdapterConfig)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
