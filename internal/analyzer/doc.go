// Package analyzer derives the rolling cross-asset divergence signal.
//
// It keeps one trailing window of closed-candle prices per instrument
// and, on every live tick, compares each instrument's return from its
// window anchor to the live price. The residual (target return minus
// reference return) isolates the target's idiosyncratic movement.
//
// The analyzer is driven by a single goroutine (the realtime poller)
// and performs no locking of its own.
package analyzer
