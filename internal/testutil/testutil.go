// Package testutil provides test utilities for seriesd, including:
//   - Miniredis helpers for unit tests (miniredis.go)
//   - Live feed snapshot fixtures (fixtures.go)
//
// No helper here requires Docker; everything runs in-process.
package testutil
