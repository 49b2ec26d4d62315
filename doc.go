// Package stationbook manages a contact book for music promotion
// outreach: radio stations, blogs, playlist curators, magazines, labels,
// venues, and promoters.
//
// The root package provides Book, which wires storage, duplicate
// detection, merging, and undo history together. Import specific
// subpackages for the individual pieces:
//   - github.com/mkalas/stationbook/contact
//     The contact record, its enums, and validation.
//   - github.com/mkalas/stationbook/store
//     The storage facade over the relational and document backends.
//   - github.com/mkalas/stationbook/dedupe
//     Duplicate detection and grouping.
//   - github.com/mkalas/stationbook/merge
//     The merge engine that combines duplicate records.
//   - github.com/mkalas/stationbook/history
//     The merge ledger with undo support.
//   - github.com/mkalas/stationbook/bulk
//     CSV and JSON import/export.
//   - github.com/mkalas/stationbook/verify
//     Email deliverability probes and bounce sweeps.
package stationbook
