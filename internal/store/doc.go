// Package store declares the run-history persistence contract used by the
// progress store sink and the run endpoints. Concrete repositories live under
// internal/storage; this package must not import database drivers.
package store
