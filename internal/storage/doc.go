// Package storage provides the persistence layer behind the scheduler:
//   - Read-only campaign queries (the admin app writes these tables)
//   - The send log used for exactly-once-per-slot delivery
//
// The send log is the idempotency boundary: a row keyed by
// (kind, campaign, date, time) means "this slot has been handled", and rows
// are only inserted after a successful send, never updated or deleted by
// the daemon.
package storage
