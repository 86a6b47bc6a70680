// Package postgres implements the store interfaces, the idempotency ledger
// and the dead-letter sink on PostgreSQL through database/sql and the pgx
// driver.
//
// Reminder claims use FOR UPDATE SKIP LOCKED so concurrent schedulers never
// claim the same row, and the outbox relay serializes on a transaction-level
// advisory lock. Schema lives in the embedded goose migrations under
// migrations/.
package postgres
