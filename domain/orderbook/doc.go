// Package orderbook implements a single-instrument matching engine
// under price-time priority. Bids and asks are PriceLevels of FIFO
// OrderQueues; order and queue records come from slab pools and are
// linked by handle.
//
// The book is single-writer and deterministic. Callers present a
// strictly increasing token with every mutation and receive all
// effects through a Notification.
package orderbook
