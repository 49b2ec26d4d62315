package store

import (
	"strings"
	"unicode"

	"github.com/mkalas/stationbook/contact"
)

// QueryField selects which indexed column a search term matches against.
type QueryField string

const (
	// FieldAny matches a term across all indexed text columns.
	FieldAny QueryField = ""
	// FieldName restricts a term to the contact name.
	FieldName QueryField = "name"
	// FieldEmail restricts a term to the email address.
	FieldEmail QueryField = "email"
	// FieldWebsite restricts a term to the website.
	FieldWebsite QueryField = "website"
	// FieldCountry restricts a term to the country.
	FieldCountry QueryField = "country"
	// FieldType restricts a term to the contact type.
	FieldType QueryField = "type"
	// FieldGenre restricts a term to the genre list.
	FieldGenre QueryField = "genre"
	// FieldPerson restricts a term to contact-person names and emails.
	FieldPerson QueryField = "person"
)

var queryFields = map[QueryField]struct{}{
	FieldName:    {},
	FieldEmail:   {},
	FieldWebsite: {},
	FieldCountry: {},
	FieldType:    {},
	FieldGenre:   {},
	FieldPerson:  {},
}

// Term is one parsed search term. Value is lowercased; matching is
// case-insensitive substring containment.
type Term struct {
	Field QueryField
	Value string
}

// Filter carries the optional structured search filters.
type Filter struct {
	Country      string
	Verification contact.VerificationStatus
}

// Query is a parsed search request. All terms are conjunctive.
type Query struct {
	Terms  []Term
	Filter Filter
}

// Empty reports whether the query constrains nothing.
func (q Query) Empty() bool {
	return len(q.Terms) == 0 && q.Filter.Country == "" && q.Filter.Verification == ""
}

// ParseQuery parses free text with optional field qualifiers into a Query.
//
// Syntax: bare terms, quoted phrases, and `field:value` or
// `field:"phrase with spaces"` qualifiers where field is one of
// name/email/website/country/type/genre/person. Qualifiers with unknown
// fields are kept as plain text terms rather than rejected.
func ParseQuery(input string, filter Filter) Query {
	q := Query{Filter: filter}
	for _, token := range tokenize(input) {
		term := Term{Field: FieldAny, Value: strings.ToLower(token)}
		if idx := strings.Index(token, ":"); idx > 0 {
			field := QueryField(strings.ToLower(token[:idx]))
			if _, known := queryFields[field]; known {
				term = Term{Field: field, Value: strings.ToLower(token[idx+1:])}
			}
		}
		if strings.TrimSpace(term.Value) == "" {
			continue
		}
		q.Terms = append(q.Terms, term)
	}
	return q
}

// tokenize splits on whitespace outside double quotes and strips the quotes.
func tokenize(input string) []string {
	var tokens []string
	var current strings.Builder
	inQuotes := false
	for _, r := range input {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case unicode.IsSpace(r) && !inQuotes:
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

// MatchText reports whether a contact matches every term of q against its
// canonical fields. Backends without their own index (the document store)
// and the shadow-table rebuilder share this definition of a match.
func MatchText(c contact.Contact, q Query) bool {
	if q.Filter.Country != "" && !strings.EqualFold(c.Country, q.Filter.Country) {
		return false
	}
	if q.Filter.Verification != "" && c.VerificationStatus != q.Filter.Verification {
		return false
	}
	for _, term := range q.Terms {
		if !matchTerm(c, term) {
			return false
		}
	}
	return true
}

func matchTerm(c contact.Contact, term Term) bool {
	contains := func(haystack string) bool {
		return strings.Contains(strings.ToLower(haystack), term.Value)
	}
	switch term.Field {
	case FieldName:
		return contains(c.Name)
	case FieldEmail:
		return contains(c.Email)
	case FieldWebsite:
		return contains(c.Website)
	case FieldCountry:
		return contains(c.Country)
	case FieldType:
		return contains(string(c.Type))
	case FieldGenre:
		return containsAny(c.Genres, contains)
	case FieldPerson:
		for _, person := range c.Persons {
			if contains(person.Name) || contains(person.Email) {
				return true
			}
		}
		return false
	default:
		if contains(c.Name) || contains(c.Email) || contains(c.Website) ||
			contains(c.Country) || contains(string(c.Type)) {
			return true
		}
		if containsAny(c.Genres, contains) {
			return true
		}
		for _, person := range c.Persons {
			if contains(person.Name) || contains(person.Email) {
				return true
			}
		}
		return false
	}
}

func containsAny(values []string, match func(string) bool) bool {
	for _, value := range values {
		if match(value) {
			return true
		}
	}
	return false
}
