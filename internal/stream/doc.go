// Package stream provides live prices over the exchange's miniTicker
// websocket stream, as an alternative to polling the REST ticker
// endpoint.
//
// The feed caches the newest price per symbol and serves reads from
// that cache; a price older than the staleness bound is treated as
// absent, which the realtime loop handles like any transient fetch
// failure. The connection reconnects with capped exponential backoff.
package stream
