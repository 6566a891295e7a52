// Package memory provides the slab allocator used by the order book
// to keep order and queue records out of the garbage-collected heap
// churn of the matching hot path.
//
// Records are addressed by Handle rather than by pointer. A Handle
// stays valid until it is released, and slabs never move, so a
// pointer obtained from Get is stable for the lifetime of the record.
//
// The memory package is dependency-free.
package memory
