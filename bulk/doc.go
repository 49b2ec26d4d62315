// Package bulk moves contact sets in and out of the store in the two
// collaborator formats: a JSON array of contact objects (backup/restore and
// inter-store migration) and a header-mapped CSV table.
//
// Both paths go through the store facade, so every imported row passes the
// same validation gate as any other write and inherits the facade's chunked
// transaction and cancellation behavior. CSV input may arrive in UTF-8
// (with or without BOM), UTF-16, or Latin-1; see [DecodeText].
package bulk
