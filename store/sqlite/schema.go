package sqlite

import "strings"

// targetSchemaVersion is the version this build of the code expects. The
// persisted marker lives in the schema_version table inside the database
// file itself.
const targetSchemaVersion = 3

type migration struct {
	version    int
	statements []string
}

// Migrations are idempotent by construction: base DDL uses IF NOT EXISTS
// and column additions tolerate "duplicate column name" failures, so a run
// interrupted between a statement and the version bump heals on the next
// start.
var migrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS contacts (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				country TEXT NOT NULL,
				type TEXT NOT NULL,
				email TEXT NOT NULL DEFAULT '',
				website TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS contact_genres (
				contact_id TEXT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
				position INTEGER NOT NULL,
				genre TEXT NOT NULL,
				PRIMARY KEY (contact_id, position)
			)`,
			`CREATE TABLE IF NOT EXISTS contact_persons (
				contact_id TEXT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
				position INTEGER NOT NULL,
				name TEXT NOT NULL DEFAULT '',
				role TEXT NOT NULL DEFAULT '',
				email TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (contact_id, position)
			)`,
			`CREATE TABLE IF NOT EXISTS contact_socials (
				contact_id TEXT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
				platform TEXT NOT NULL,
				url TEXT NOT NULL,
				PRIMARY KEY (contact_id, platform)
			)`,
			`CREATE TABLE IF NOT EXISTS contact_search (
				contact_id TEXT PRIMARY KEY REFERENCES contacts(id) ON DELETE CASCADE,
				name TEXT NOT NULL DEFAULT '',
				email TEXT NOT NULL DEFAULT '',
				website TEXT NOT NULL DEFAULT '',
				country TEXT NOT NULL DEFAULT '',
				type TEXT NOT NULL DEFAULT '',
				genres TEXT NOT NULL DEFAULT '',
				persons TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_email
				ON contacts(lower(email)) WHERE email <> ''`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_website
				ON contacts(lower(website)) WHERE website <> ''`,
		},
	},
	{
		version: 2,
		statements: []string{
			`ALTER TABLE contacts ADD COLUMN verification_status TEXT NOT NULL DEFAULT 'unverified'`,
			`ALTER TABLE contacts ADD COLUMN verification_details TEXT NOT NULL DEFAULT ''`,
		},
	},
	{
		version: 3,
		statements: []string{
			`ALTER TABLE contacts ADD COLUMN is_favorite INTEGER NOT NULL DEFAULT 0`,
			`ALTER TABLE contacts ADD COLUMN do_not_contact INTEGER NOT NULL DEFAULT 0`,
		},
	},
}

// ignorableDDLError reports whether a migration statement failed only
// because a prior run already applied it. Other error classes propagate.
func ignorableDDLError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") ||
		strings.Contains(message, "already exists")
}
