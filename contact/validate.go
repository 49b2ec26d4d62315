package contact

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationError reports a record rejected by Validate. Field names the
// offending field and Value carries the rejected input so callers can render
// a precise message.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	if e == nil {
		return "contact: <nil>"
	}
	if e.Value == "" {
		return fmt.Sprintf("contact: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("contact: %s %q %s", e.Field, e.Value, e.Reason)
}

var (
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	websitePattern = regexp.MustCompile(`^(https?://)?[^\s/]+\.[^\s]+$`)
)

// ValidEmail reports whether address matches the basic address pattern.
func ValidEmail(address string) bool {
	return emailPattern.MatchString(address)
}

// ValidWebsite reports whether url matches the basic URL pattern.
func ValidWebsite(url string) bool {
	return websitePattern.MatchString(url)
}

// Validate normalizes raw into a well-formed Contact or rejects it.
//
// String fields are trimmed, optional fields defaulted, and relation
// collections coerced: empty genres, nameless and addressless persons, and
// unknown or empty social entries are dropped rather than rejected. The
// whole record is rejected when id, name, or country is empty after
// trimming, when type or a non-empty verification status is outside its
// enumeration, or when a non-empty email or website is malformed.
//
// Validate is pure and idempotent: feeding its output back in returns an
// equal value.
func Validate(raw Contact) (Contact, error) {
	c := Contact{
		ID:                  strings.TrimSpace(raw.ID),
		Name:                strings.TrimSpace(raw.Name),
		Country:             strings.TrimSpace(raw.Country),
		Type:                Type(strings.TrimSpace(string(raw.Type))),
		Email:               strings.TrimSpace(raw.Email),
		Website:             strings.TrimSpace(raw.Website),
		VerificationStatus:  VerificationStatus(strings.TrimSpace(string(raw.VerificationStatus))),
		VerificationDetails: strings.TrimSpace(raw.VerificationDetails),
		IsFavorite:          raw.IsFavorite,
		DoNotContact:        raw.DoNotContact,
	}

	if c.ID == "" {
		return Contact{}, &ValidationError{Field: "id", Reason: "is required"}
	}
	if c.Name == "" {
		return Contact{}, &ValidationError{Field: "name", Reason: "is required"}
	}
	if c.Country == "" {
		return Contact{}, &ValidationError{Field: "country", Reason: "is required"}
	}
	if !c.Type.Valid() {
		return Contact{}, &ValidationError{Field: "type", Value: string(c.Type), Reason: "is not a known contact type"}
	}
	if c.Email != "" && !ValidEmail(c.Email) {
		return Contact{}, &ValidationError{Field: "email", Value: c.Email, Reason: "is not a valid address"}
	}
	if c.Website != "" && !ValidWebsite(c.Website) {
		return Contact{}, &ValidationError{Field: "website", Value: c.Website, Reason: "is not a valid URL"}
	}
	if c.VerificationStatus == "" {
		c.VerificationStatus = VerificationUnverified
	}
	if !c.VerificationStatus.Valid() {
		return Contact{}, &ValidationError{
			Field:  "verificationStatus",
			Value:  string(c.VerificationStatus),
			Reason: "is not a known status",
		}
	}

	c.Genres = coerceGenres(raw.Genres)
	c.Persons = coercePersons(raw.Persons)
	c.Socials = coerceSocials(raw.Socials)

	return c, nil
}

func coerceGenres(genres []string) []string {
	if len(genres) == 0 {
		return nil
	}
	out := make([]string, 0, len(genres))
	seen := make(map[string]struct{}, len(genres))
	for _, genre := range genres {
		genre = strings.TrimSpace(genre)
		if genre == "" {
			continue
		}
		key := strings.ToLower(genre)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, genre)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func coercePersons(persons []Person) []Person {
	if len(persons) == 0 {
		return nil
	}
	out := make([]Person, 0, len(persons))
	for _, person := range persons {
		person.Name = strings.TrimSpace(person.Name)
		person.Position = strings.TrimSpace(person.Position)
		person.Email = strings.TrimSpace(person.Email)
		if person.Name == "" && person.Email == "" {
			continue
		}
		if person.Email != "" && !ValidEmail(person.Email) {
			person.Email = ""
			if person.Name == "" {
				continue
			}
		}
		out = append(out, person)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func coerceSocials(socials map[Platform]string) map[Platform]string {
	if len(socials) == 0 {
		return nil
	}
	out := make(map[Platform]string, len(socials))
	for platform, url := range socials {
		url = strings.TrimSpace(url)
		if url == "" || !platform.Valid() {
			continue
		}
		out[platform] = url
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
