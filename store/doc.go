// Package store exposes the uniform CRUD+search contract over the dual
// storage backends.
//
// The [Facade] is the only entry point callers use. At startup [Open] probes
// the relational backend once and pins the decision for the facade lifetime,
// degrading to the document backend when the relational engine cannot be
// initialized. Backend choice never leaks past this package: both backends
// implement [Backend] and callers only ever see canonical
// [github.com/mkalas/stationbook/contact.Contact] values.
//
// Every write runs through the contact validation gate regardless of
// backend. Bulk writes are chunked, one transaction per chunk, with a
// cooperative cancellation check between chunks; the trade-off (a mid-batch
// failure keeps earlier chunks committed) is part of the contract and
// reported precisely via [BulkResult] and [TransactionError].
//
// Search accepts free text plus `field:value` qualifiers; see [ParseQuery].
package store
