package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/mkalas/stationbook/contact"
	"github.com/mkalas/stationbook/store"
)

// Store is the relational backend: a normalized projection of contacts plus
// a search shadow table, in one SQLite file.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

var _ store.Backend = (*Store)(nil)

// Opener adapts Open to the facade's probe signature.
func Opener(path string, log *zerolog.Logger) store.Opener {
	return func(ctx context.Context) (store.Backend, error) {
		return Open(ctx, path, log)
	}
}

// dsnEscaper percent-encodes the characters that would corrupt a file: URI
// DSN. SQLite decodes the escapes when it resolves the filename.
var dsnEscaper = strings.NewReplacer("%", "%25", "?", "%3F", "#", "%23", " ", "%20")

// Open opens (creating if needed) the SQLite file at path and verifies the
// engine is usable. Open does not migrate; the facade drives that.
func Open(ctx context.Context, path string, log *zerolog.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", dsnEscaper.Replace(path))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &store.Error{Code: store.ErrorCodeUnavailable, Message: err.Error()}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &store.Error{Code: store.ErrorCodeUnavailable, Message: err.Error()}
	}
	logger := zerolog.Nop()
	if log != nil {
		logger = *log
	}
	return &Store{db: db, log: logger}, nil
}

// Name identifies the backend in diagnostics and logs.
func (s *Store) Name() string {
	return "sqlite"
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate advances the persisted schema-version marker through every
// pending migration step, then runs the startup consistency check that
// rebuilds the search shadow table when it is empty but base data exists.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return storeFailure(err)
	}
	version, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}
	for _, step := range migrations {
		if step.version <= version {
			continue
		}
		for _, statement := range step.statements {
			if _, err := s.db.ExecContext(ctx, statement); err != nil && !ignorableDDLError(err) {
				return storeFailure(fmt.Errorf("migration to version %d: %w", step.version, err))
			}
		}
		if err := s.setSchemaVersion(ctx, step.version); err != nil {
			return err
		}
		s.log.Info().Int("version", step.version).Msg("schema migrated")
		version = step.version
	}
	return s.healSearchIndex(ctx)
}

func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, storeFailure(err)
	}
	return version, nil
}

func (s *Store) setSchemaVersion(ctx context.Context, version int) error {
	result, err := s.db.ExecContext(ctx, `UPDATE schema_version SET version = ?`, version)
	if err != nil {
		return storeFailure(err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
			return storeFailure(err)
		}
	}
	return nil
}

// healSearchIndex rebuilds the shadow table after an interrupted prior run
// left base rows without search rows.
func (s *Store) healSearchIndex(ctx context.Context) error {
	var contacts, searchRows int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&contacts); err != nil {
		return storeFailure(err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contact_search`).Scan(&searchRows); err != nil {
		return storeFailure(err)
	}
	if contacts == 0 || searchRows > 0 {
		return nil
	}
	s.log.Warn().Int("contacts", contacts).Msg("search shadow table empty, rebuilding")
	return s.RebuildSearchIndex(ctx)
}

const contactColumns = `id, name, country, type, email, website,
	verification_status, verification_details, is_favorite, do_not_contact`

const insertContactSQL = `INSERT INTO contacts
	(id, name, country, type, email, website, verification_status, verification_details, is_favorite, do_not_contact)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const updateContactSQL = `UPDATE contacts SET
	name = ?, country = ?, type = ?, email = ?, website = ?,
	verification_status = ?, verification_details = ?, is_favorite = ?, do_not_contact = ?
	WHERE id = ?`

// Add stores a new contact, its child relations, and its search row in one
// transaction.
func (s *Store) Add(ctx context.Context, c contact.Contact) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertProjection(ctx, tx, c)
	})
}

// AddBatch stores the whole batch in one transaction: any failure rolls
// back every record in the batch.
func (s *Store) AddBatch(ctx context.Context, batch []contact.Contact) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, c := range batch {
			if err := insertProjection(ctx, tx, c); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update overwrites the base row and replaces all child relations
// atomically, so a reader never observes a contact with mixed-generation
// relations.
func (s *Store) Update(ctx context.Context, c contact.Contact) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, updateContactSQL,
			c.Name, c.Country, string(c.Type), c.Email, c.Website,
			string(c.VerificationStatus), c.VerificationDetails,
			boolToInt(c.IsFavorite), boolToInt(c.DoNotContact), c.ID)
		if err != nil {
			return mapSQLiteError(err, c)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return storeFailure(err)
		}
		if affected == 0 {
			return &store.Error{Code: store.ErrorCodeNotFound, Field: "id", Value: c.ID, Message: "does not exist"}
		}
		if err := replaceRelations(ctx, tx, c); err != nil {
			return err
		}
		return writeSearchRow(ctx, tx, c)
	})
}

// Delete removes the contact; child relations and the search row go with it
// via cascading foreign keys.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return storeFailure(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storeFailure(err)
	}
	if affected == 0 {
		return &store.Error{Code: store.ErrorCodeNotFound, Field: "id", Value: id, Message: "does not exist"}
	}
	return nil
}

// Get reconstructs one canonical contact from its relational rows.
func (s *Store) Get(ctx context.Context, id string) (contact.Contact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id)
	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return contact.Contact{}, &store.Error{Code: store.ErrorCodeNotFound, Field: "id", Value: id, Message: "does not exist"}
	}
	if err != nil {
		return contact.Contact{}, storeFailure(err)
	}
	hydrated, err := s.attachRelations(ctx, []contact.Contact{c})
	if err != nil {
		return contact.Contact{}, err
	}
	return hydrated[0], nil
}

// GetAll reconstructs every canonical contact in insertion order.
func (s *Store) GetAll(ctx context.Context) ([]contact.Contact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+contactColumns+` FROM contacts ORDER BY rowid`)
	if err != nil {
		return nil, storeFailure(err)
	}
	defer rows.Close()

	contacts := make([]contact.Contact, 0, 64)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, storeFailure(err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFailure(err)
	}
	return s.attachRelations(ctx, contacts)
}

// Diagnostics reports the persisted schema version and per-table row counts.
func (s *Store) Diagnostics(ctx context.Context) (store.Diagnostics, error) {
	version, err := s.schemaVersion(ctx)
	if err != nil {
		return store.Diagnostics{}, err
	}
	diag := store.Diagnostics{Backend: s.Name(), SchemaVersion: version}
	counts := []struct {
		table  string
		target *int
	}{
		{"contacts", &diag.Rows.Contacts},
		{"contact_persons", &diag.Rows.Persons},
		{"contact_socials", &diag.Rows.Socials},
		{"contact_genres", &diag.Rows.Genres},
		{"contact_search", &diag.Rows.SearchRows},
	}
	for _, count := range counts {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+count.table).Scan(count.target); err != nil {
			return store.Diagnostics{}, storeFailure(err)
		}
	}
	return diag, nil
}

// ClearAll removes every contact, child relation, and search row. The
// schema version marker is kept.
func (s *Store) ClearAll(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, statement := range []string{
			`DELETE FROM contact_genres`,
			`DELETE FROM contact_persons`,
			`DELETE FROM contact_socials`,
			`DELETE FROM contact_search`,
			`DELETE FROM contacts`,
		} {
			if _, err := tx.ExecContext(ctx, statement); err != nil {
				return storeFailure(err)
			}
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeFailure(err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeFailure(err)
	}
	return nil
}

func insertProjection(ctx context.Context, tx *sql.Tx, c contact.Contact) error {
	if _, err := tx.ExecContext(ctx, insertContactSQL,
		c.ID, c.Name, c.Country, string(c.Type), c.Email, c.Website,
		string(c.VerificationStatus), c.VerificationDetails,
		boolToInt(c.IsFavorite), boolToInt(c.DoNotContact)); err != nil {
		return mapSQLiteError(err, c)
	}
	if err := replaceRelations(ctx, tx, c); err != nil {
		return err
	}
	return writeSearchRow(ctx, tx, c)
}

// replaceRelations rebuilds the child rows wholesale: delete the old scope,
// insert the new one, all inside the caller's transaction.
func replaceRelations(ctx context.Context, tx *sql.Tx, c contact.Contact) error {
	for _, statement := range []string{
		`DELETE FROM contact_genres WHERE contact_id = ?`,
		`DELETE FROM contact_persons WHERE contact_id = ?`,
		`DELETE FROM contact_socials WHERE contact_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, statement, c.ID); err != nil {
			return storeFailure(err)
		}
	}
	for position, genre := range c.Genres {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO contact_genres (contact_id, position, genre) VALUES (?, ?, ?)`,
			c.ID, position, genre); err != nil {
			return storeFailure(err)
		}
	}
	for position, person := range c.Persons {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO contact_persons (contact_id, position, name, role, email) VALUES (?, ?, ?, ?, ?)`,
			c.ID, position, person.Name, person.Position, person.Email); err != nil {
			return storeFailure(err)
		}
	}
	for _, platform := range contact.Platforms {
		url, ok := c.Socials[platform]
		if !ok || url == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO contact_socials (contact_id, platform, url) VALUES (?, ?, ?)`,
			c.ID, string(platform), url); err != nil {
			return storeFailure(err)
		}
	}
	return nil
}

func (s *Store) attachRelations(ctx context.Context, contacts []contact.Contact) ([]contact.Contact, error) {
	if len(contacts) == 0 {
		return contacts, nil
	}
	index := make(map[string]*contact.Contact, len(contacts))
	for i := range contacts {
		index[contacts[i].ID] = &contacts[i]
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT contact_id, genre FROM contact_genres ORDER BY contact_id, position`)
	if err != nil {
		return nil, storeFailure(err)
	}
	if err := scanInto(rows, func(scan func(...any) error) error {
		var id, genre string
		if err := scan(&id, &genre); err != nil {
			return err
		}
		if c, ok := index[id]; ok {
			c.Genres = append(c.Genres, genre)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT contact_id, name, role, email FROM contact_persons ORDER BY contact_id, position`)
	if err != nil {
		return nil, storeFailure(err)
	}
	if err := scanInto(rows, func(scan func(...any) error) error {
		var id string
		var person contact.Person
		if err := scan(&id, &person.Name, &person.Position, &person.Email); err != nil {
			return err
		}
		if c, ok := index[id]; ok {
			c.Persons = append(c.Persons, person)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT contact_id, platform, url FROM contact_socials`)
	if err != nil {
		return nil, storeFailure(err)
	}
	if err := scanInto(rows, func(scan func(...any) error) error {
		var id, platform, url string
		if err := scan(&id, &platform, &url); err != nil {
			return err
		}
		if c, ok := index[id]; ok {
			if c.Socials == nil {
				c.Socials = make(map[contact.Platform]string, 2)
			}
			c.Socials[contact.Platform(platform)] = url
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return contacts, nil
}

func scanInto(rows *sql.Rows, each func(scan func(...any) error) error) error {
	defer rows.Close()
	for rows.Next() {
		if err := each(rows.Scan); err != nil {
			return storeFailure(err)
		}
	}
	if err := rows.Err(); err != nil {
		return storeFailure(err)
	}
	return nil
}

func scanContact(scanner interface{ Scan(...any) error }) (contact.Contact, error) {
	var c contact.Contact
	var contactType, status string
	var favorite, doNotContact int
	err := scanner.Scan(&c.ID, &c.Name, &c.Country, &contactType, &c.Email, &c.Website,
		&status, &c.VerificationDetails, &favorite, &doNotContact)
	if err != nil {
		return contact.Contact{}, err
	}
	c.Type = contact.Type(contactType)
	c.VerificationStatus = contact.VerificationStatus(status)
	c.IsFavorite = favorite != 0
	c.DoNotContact = doNotContact != 0
	return c, nil
}

func mapSQLiteError(err error, c contact.Contact) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return storeFailure(err)
	}
	if sqliteErr.Code == sqlite3.ErrConstraint {
		field, value := "email", c.Email
		message := sqliteErr.Error()
		switch {
		case strings.Contains(message, "idx_contacts_website"):
			field, value = "website", c.Website
		case strings.Contains(message, "contacts.id"):
			field, value = "id", c.ID
		}
		return &store.Error{Code: store.ErrorCodeConflict, Field: field, Value: value, Message: "already exists"}
	}
	return storeFailure(err)
}

func storeFailure(err error) error {
	return &store.Error{Code: store.ErrorCodeStore, Message: err.Error()}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
