package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/mkalas/stationbook/contact"
	"github.com/mkalas/stationbook/store"
)

// Search evaluates a parsed query against the shadow table and hydrates the
// matching contacts. Terms are conjunctive; matching is case-insensitive
// substring containment against the lowercased shadow columns.
func (s *Store) Search(ctx context.Context, q store.Query) ([]contact.Contact, error) {
	if q.Empty() {
		return s.GetAll(ctx)
	}
	where, args := buildSearchSQL(q)
	query := `SELECT c.id, c.name, c.country, c.type, c.email, c.website,
		c.verification_status, c.verification_details, c.is_favorite, c.do_not_contact
		FROM contacts c JOIN contact_search cs ON cs.contact_id = c.id` + where + ` ORDER BY c.rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeFailure(err)
	}
	defer rows.Close()

	contacts := make([]contact.Contact, 0, 16)
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

// RebuildSearchIndex regenerates every shadow row from the base projection
// in one transaction.
func (s *Store) RebuildSearchIndex(ctx context.Context) error {
	contacts, err := s.GetAll(ctx)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM contact_search`); err != nil {
			return storeFailure(err)
		}
		for _, c := range contacts {
			if err := writeSearchRow(ctx, tx, c); err != nil {
				return err
			}
		}
		return nil
	})
}

var searchColumns = map[store.QueryField]string{
	store.FieldName:    "cs.name",
	store.FieldEmail:   "cs.email",
	store.FieldWebsite: "cs.website",
	store.FieldCountry: "cs.country",
	store.FieldType:    "cs.type",
	store.FieldGenre:   "cs.genres",
	store.FieldPerson:  "cs.persons",
}

var allSearchColumns = []string{
	"cs.name", "cs.email", "cs.website", "cs.country", "cs.type", "cs.genres", "cs.persons",
}

func buildSearchSQL(q store.Query) (string, []any) {
	var clauses []string
	var args []any
	for _, term := range q.Terms {
		pattern := "%" + escapeLike(term.Value) + "%"
		if column, qualified := searchColumns[term.Field]; qualified {
			clauses = append(clauses, column+` LIKE ? ESCAPE '\'`)
			args = append(args, pattern)
			continue
		}
		parts := make([]string, len(allSearchColumns))
		for i, column := range allSearchColumns {
			parts[i] = column + ` LIKE ? ESCAPE '\'`
			args = append(args, pattern)
		}
		clauses = append(clauses, "("+strings.Join(parts, " OR ")+")")
	}
	if q.Filter.Country != "" {
		clauses = append(clauses, `lower(c.country) = lower(?)`)
		args = append(args, q.Filter.Country)
	}
	if q.Filter.Verification != "" {
		clauses = append(clauses, `c.verification_status = ?`)
		args = append(args, string(q.Filter.Verification))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

// writeSearchRow upserts the denormalized, lowercased search projection for
// one contact inside the caller's transaction.
func writeSearchRow(ctx context.Context, tx *sql.Tx, c contact.Contact) error {
	var persons strings.Builder
	for _, person := range c.Persons {
		if persons.Len() > 0 {
			persons.WriteByte(' ')
		}
		persons.WriteString(person.Name)
		if person.Email != "" {
			persons.WriteByte(' ')
			persons.WriteString(person.Email)
		}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO contact_search
			(contact_id, name, email, website, country, type, genres, persons)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		strings.ToLower(c.Name),
		strings.ToLower(c.Email),
		strings.ToLower(c.Website),
		strings.ToLower(c.Country),
		strings.ToLower(string(c.Type)),
		strings.ToLower(strings.Join(c.Genres, " ")),
		strings.ToLower(persons.String()),
	)
	if err != nil {
		return storeFailure(err)
	}
	return nil
}
