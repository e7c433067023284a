// Package store provides the item repositories used by the scheduler.
//
// Two implementations share the same contract:
//   - Store: SQLite-backed, table content_items, for single-host deployments
//   - PostgresStore: the hosted content_posts table (Supabase/Postgres)
//
// # Contract
//
// ListDue returns scheduled items of the configured platform whose
// scheduled time is absent or not after now, in a deterministic order:
// thread roots first, then thread position, scheduled time (absent first),
// creation time and id.
//
// ParentState returns the status and external id of one item, or
// content.ErrNotFound.
//
// WriteResult is a conditional update: it only moves an item away from
// "scheduled". When the row is no longer scheduled it changes nothing and
// returns content.ErrNotScheduled. This is what lets overlapping runs share
// a store without an external lock.
//
// # SQLite configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - one open connection (single writer)
//
// Timestamps are stored as unix milliseconds so range comparisons in SQL
// are numeric.
package store
