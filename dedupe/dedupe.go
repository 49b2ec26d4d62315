// Package dedupe builds candidate duplicate groups from the current contact
// set.
//
// Grouping is a pure projection: it is recomputed on demand and never
// persisted. Three keyed indexes are built over the input — normalized
// email, normalized website, and normalized name|country — and processed in
// that priority order. A contact claimed by a higher-priority group never
// reappears in a lower-priority one, so the strongest signal (a shared
// contact channel) wins over the weakest (a name/country coincidence) and
// every contact belongs to at most one group per invocation.
package dedupe

import (
	"strings"

	"github.com/mkalas/stationbook/contact"
)

// Kind names the matching rule that formed a group.
type Kind string

const (
	// KindEmail groups contacts sharing a normalized email.
	KindEmail Kind = "email"
	// KindWebsite groups contacts sharing a normalized website.
	KindWebsite Kind = "website"
	// KindNameCountry groups contacts sharing a normalized name|country pair.
	KindNameCountry Kind = "name_country"
)

// Group is a derived set of contacts believed to be one real-world outlet.
// IDs preserves the input's natural order.
type Group struct {
	Kind Kind
	Key  string
	IDs  []string
}

// Members resolves the group's ids against a contact set, preserving group
// order. Ids missing from contacts are skipped.
func (g Group) Members(contacts []contact.Contact) []contact.Contact {
	byID := make(map[string]contact.Contact, len(contacts))
	for _, c := range contacts {
		byID[c.ID] = c
	}
	members := make([]contact.Contact, 0, len(g.IDs))
	for _, id := range g.IDs {
		if c, ok := byID[id]; ok {
			members = append(members, c)
		}
	}
	return members
}

// BuildGroups computes duplicate groups for the given contact set.
func BuildGroups(contacts []contact.Contact) []Group {
	email := newKeyIndex()
	website := newKeyIndex()
	nameCountry := newKeyIndex()

	for _, c := range contacts {
		if key := contact.NormalizeEmail(c.Email); key != "" {
			email.add(key, c.ID)
		}
		if key := contact.NormalizeWebsite(c.Website); key != "" {
			website.add(key, c.ID)
		}
		if key := nameCountryKey(c); key != "" {
			nameCountry.add(key, c.ID)
		}
	}

	claimed := make(map[string]struct{})
	var groups []Group
	for _, pass := range []struct {
		kind  Kind
		index *keyIndex
	}{
		{KindEmail, email},
		{KindWebsite, website},
		{KindNameCountry, nameCountry},
	} {
		for _, key := range pass.index.order {
			var unclaimed []string
			for _, id := range pass.index.buckets[key] {
				if _, taken := claimed[id]; !taken {
					unclaimed = append(unclaimed, id)
				}
			}
			if len(unclaimed) < 2 {
				continue
			}
			for _, id := range unclaimed {
				claimed[id] = struct{}{}
			}
			groups = append(groups, Group{Kind: pass.kind, Key: key, IDs: unclaimed})
		}
	}
	return groups
}

// ChoosePrimary elects the default primary record for a group: the first
// member with a non-empty email, else the first with a non-empty website,
// else the first member. Callers may override the election per group.
func ChoosePrimary(members []contact.Contact) contact.Contact {
	for _, c := range members {
		if contact.NormalizeEmail(c.Email) != "" {
			return c
		}
	}
	for _, c := range members {
		if contact.NormalizeWebsite(c.Website) != "" {
			return c
		}
	}
	return members[0]
}

func nameCountryKey(c contact.Contact) string {
	name := strings.ToLower(strings.TrimSpace(c.Name))
	country := strings.ToLower(strings.TrimSpace(c.Country))
	if name == "" || country == "" {
		return ""
	}
	return name + "|" + country
}

// keyIndex is a bucket map that remembers first-seen key order so group
// output is deterministic for a given input order.
type keyIndex struct {
	buckets map[string][]string
	order   []string
}

func newKeyIndex() *keyIndex {
	return &keyIndex{buckets: make(map[string][]string)}
}

func (idx *keyIndex) add(key, id string) {
	if _, seen := idx.buckets[key]; !seen {
		idx.order = append(idx.order, key)
	}
	idx.buckets[key] = append(idx.buckets[key], id)
}
