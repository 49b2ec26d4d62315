// Package merge deterministically combines a duplicate group into one
// contact record.
//
// Combine never loses signal: booleans OR across the group, genres union,
// persons append by identity key, and scalar fields fill only where the
// primary is empty. Where order matters ("first non-empty wins") the
// contract is the caller-supplied order of the others slice; fields
// governed by union, OR, or rank rules are independent of that order.
package merge

import (
	"fmt"
	"strings"

	"github.com/mkalas/stationbook/contact"
)

// UsageError reports Combine being called with an empty or self-referencing
// others list. It is a caller error, not a data error; the engine does not
// silently no-op.
type UsageError struct {
	Message string
}

// Error returns the formatted error message.
func (e *UsageError) Error() string {
	return "merge: " + e.Message
}

// Combine merges others into primary under the field resolution rules and
// returns the merged record. Inputs are not mutated.
func Combine(primary contact.Contact, others []contact.Contact) (contact.Contact, error) {
	if len(others) == 0 {
		return contact.Contact{}, &UsageError{Message: "others must not be empty"}
	}
	for _, other := range others {
		if other.ID == primary.ID {
			return contact.Contact{}, &UsageError{Message: fmt.Sprintf("contact %q cannot be merged into itself", primary.ID)}
		}
	}

	merged := primary.Clone()

	// name: longest wins, ties keep the current holder.
	for _, other := range others {
		if len(other.Name) > len(merged.Name) {
			merged.Name = other.Name
		}
	}

	// Scalar fill-if-missing: the primary's non-empty value is never
	// overwritten; the first non-empty value among others wins.
	for _, other := range others {
		if merged.Email == "" && other.Email != "" {
			merged.Email = other.Email
		}
		if merged.Website == "" && other.Website != "" {
			merged.Website = other.Website
		}
		if merged.Country == "" && other.Country != "" {
			merged.Country = other.Country
		}
		if merged.Type == "" && other.Type != "" {
			merged.Type = other.Type
		}
	}

	resolveVerification(&merged, primary, others)

	for _, other := range others {
		merged.DoNotContact = merged.DoNotContact || other.DoNotContact
		merged.IsFavorite = merged.IsFavorite || other.IsFavorite
	}

	merged.Genres = unionGenres(primary.Genres, others)
	merged.Persons = unionPersons(primary.Persons, others)
	merged.Socials = fillSocials(primary.Socials, others)

	return merged, nil
}

// resolveVerification keeps the highest-ranked status in the group. The
// details text travels with the winning status only when that status came
// from an other; on rank ties the earlier holder wins, so the primary's
// status and details survive a tie.
func resolveVerification(merged *contact.Contact, primary contact.Contact, others []contact.Contact) {
	best := primary.VerificationStatus
	details := primary.VerificationDetails
	for _, other := range others {
		if other.VerificationStatus.Rank() > best.Rank() {
			best = other.VerificationStatus
			details = other.VerificationDetails
		}
	}
	merged.VerificationStatus = best
	merged.VerificationDetails = details
}

func unionGenres(primaryGenres []string, others []contact.Contact) []string {
	var out []string
	seen := make(map[string]struct{})
	appendGenre := func(genre string) {
		key := strings.ToLower(strings.TrimSpace(genre))
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, genre)
	}
	for _, genre := range primaryGenres {
		appendGenre(genre)
	}
	for _, other := range others {
		for _, genre := range other.Genres {
			appendGenre(genre)
		}
	}
	return out
}

// personKey identifies a person by normalized email when present, else by
// normalized name.
func personKey(p contact.Person) string {
	if email := contact.NormalizeEmail(p.Email); email != "" {
		return "email:" + email
	}
	return "name:" + strings.ToLower(strings.TrimSpace(p.Name))
}

func unionPersons(primaryPersons []contact.Person, others []contact.Contact) []contact.Person {
	var out []contact.Person
	seen := make(map[string]struct{})
	for _, person := range primaryPersons {
		seen[personKey(person)] = struct{}{}
		out = append(out, person)
	}
	for _, other := range others {
		for _, person := range other.Persons {
			key := personKey(person)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, person)
		}
	}
	return out
}

func fillSocials(primarySocials map[contact.Platform]string, others []contact.Contact) map[contact.Platform]string {
	out := make(map[contact.Platform]string, len(primarySocials))
	for platform, url := range primarySocials {
		if url != "" {
			out[platform] = url
		}
	}
	for _, other := range others {
		for platform, url := range other.Socials {
			if url == "" {
				continue
			}
			if _, taken := out[platform]; !taken {
				out[platform] = url
			}
		}
	}
	// zero platforms means "no socials", never an empty mapping
	if len(out) == 0 {
		return nil
	}
	return out
}
