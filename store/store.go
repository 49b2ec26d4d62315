package store

import (
	"context"

	"github.com/mkalas/stationbook/contact"
)

// Backend is the uniform persistence contract implemented by the relational
// and document stores.
//
// Implementations project the canonical [contact.Contact] into their own
// physical shape; callers never observe that shape. Get returns a typed
// not-found [Error] for missing ids. AddBatch writes the whole slice in one
// transaction: either every record is durable or none is. Search evaluates
// an already-parsed [Query]. Migrate advances the persisted schema to the
// backend's target version and is safe to call repeatedly.
type Backend interface {
	Name() string
	GetAll(ctx context.Context) ([]contact.Contact, error)
	Get(ctx context.Context, id string) (contact.Contact, error)
	Add(ctx context.Context, c contact.Contact) error
	Update(ctx context.Context, c contact.Contact) error
	Delete(ctx context.Context, id string) error
	AddBatch(ctx context.Context, batch []contact.Contact) error
	Search(ctx context.Context, q Query) ([]contact.Contact, error)
	Diagnostics(ctx context.Context) (Diagnostics, error)
	ClearAll(ctx context.Context) error
	RebuildSearchIndex(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// RowCounts reports rows per logical table.
type RowCounts struct {
	Contacts   int `json:"contacts"`
	Persons    int `json:"persons"`
	Socials    int `json:"socials"`
	Genres     int `json:"genres"`
	SearchRows int `json:"searchRows"`
}

// Diagnostics is the read-only health payload exposed by the facade.
type Diagnostics struct {
	Backend       string    `json:"backend"`
	SchemaVersion int       `json:"schemaVersion"`
	Rows          RowCounts `json:"rows"`
}
