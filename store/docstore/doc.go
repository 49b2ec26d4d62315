// Package docstore implements the fallback document backend on a bbolt
// key-value file.
//
// Each contact is one JSON document keyed by id, wrapped in an envelope
// carrying its insertion sequence so reads preserve insertion order.
// Search filters the canonical records in memory with the same match rules
// the relational shadow table encodes, so a caller cannot tell the backends
// apart through the facade.
package docstore
