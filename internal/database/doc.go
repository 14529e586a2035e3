// Package database provides connection pool management for PostgreSQL.
//
// The monitor keeps one pool for its candle tables; every component
// that touches storage receives it explicitly at construction and the
// owning binary closes it on shutdown.
package database
