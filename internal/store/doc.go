// Package store persists candles in PostgreSQL, one table per symbol.
//
// Persistence is an idempotent upsert keyed by open time: a page is
// written as a single transaction of INSERT ... ON CONFLICT DO NOTHING
// statements, so re-writing any range is safe and a crash mid-page
// leaves no partial state.
//
// Tables are created by the operator, not by the monitor; a missing
// table is reported as ErrRelationMissing together with the expected
// DDL and is fatal to the process.
package store
