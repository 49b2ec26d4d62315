// Package sqlite implements the relational backend on an embedded SQLite
// file via mattn/go-sqlite3.
//
// One canonical contact projects into a base row plus child rows for
// genres, contact persons, and social links, and one denormalized row in
// the contact_search shadow table. Every write covers the base row, all
// child rows, and the search row in a single transaction; updates replace
// the child scope wholesale instead of diffing it.
//
// Email and website uniqueness is enforced case-insensitively by partial
// unique indexes that ignore empty values.
//
// The schema carries its own integer version marker; Migrate applies
// pending idempotent steps in ascending order and self-heals an empty
// search table on startup.
package sqlite
