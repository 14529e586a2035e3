// Package poller implements the realtime monitoring loop.
//
// Each tick (default 1s, which also throttles against the exchange's
// 1200 req/min cap):
//   - fetches both live prices concurrently and waits for both
//   - evaluates the divergence signal and emits an alert when it
//     exceeds the threshold
//   - once a minute, runs an incremental backfill to persist the newly
//     closed candle and slide the rolling windows
//
// Errors are handled at tick granularity: logged, counted, and the loop
// carries on. The one exception is a missing backing table, which is
// surfaced on Fatal() and must terminate the process.
package poller
