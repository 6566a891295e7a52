// Package service is the engine's single write path. It issues tokens,
// journals every command, applies it to the order book and commits the
// resulting events to the outbox, in that order, on one goroutine.
//
// It has no network surface of its own; cmd/engine and tests drive it
// directly.
package service
