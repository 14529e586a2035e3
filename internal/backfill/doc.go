// Package backfill catches a symbol's candle table up to the present.
//
// The synchronizer reads the watermark (open time of the newest
// persisted candle, or the configured anchor date on an empty table),
// walks page-start timestamps from there to the target end time, and
// persists each fetched page as one idempotent transaction. Because the
// watermark is derived from storage and every page write is an upsert,
// a crashed or failed cycle is simply re-run; nothing needs repair.
package backfill
