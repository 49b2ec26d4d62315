package dedupe

import (
	"testing"

	"github.com/nalgeon/be"

	"github.com/mkalas/stationbook/contact"
)

func TestBuildGroupsByEmail(t *testing.T) {
	groups := BuildGroups([]contact.Contact{
		{ID: "c1", Name: "KEXP", Country: "US", Email: "music@kexp.org"},
		{ID: "c2", Name: "KEXP Seattle", Country: "US", Email: "MUSIC@kexp.org "},
		{ID: "c3", Name: "Other", Country: "US", Email: "other@example.com"},
	})
	be.Equal(t, len(groups), 1)
	be.Equal(t, groups[0].Kind, KindEmail)
	be.Equal(t, groups[0].Key, "music@kexp.org")
	be.Equal(t, groups[0].IDs, []string{"c1", "c2"})
}

func TestBuildGroupsByWebsite(t *testing.T) {
	groups := BuildGroups([]contact.Contact{
		{ID: "c1", Name: "Best Fit", Country: "GB", Website: "https://www.thelineofbestfit.com/"},
		{ID: "c2", Name: "Line of Best Fit", Country: "GB", Website: "thelineofbestfit.com"},
	})
	be.Equal(t, len(groups), 1)
	be.Equal(t, groups[0].Kind, KindWebsite)
	be.Equal(t, groups[0].Key, "thelineofbestfit.com")
}

func TestBuildGroupsByNameCountry(t *testing.T) {
	groups := BuildGroups([]contact.Contact{
		{ID: "c1", Name: "Radio Eins", Country: "Germany"},
		{ID: "c2", Name: "radio eins", Country: "GERMANY"},
		{ID: "c3", Name: "Radio Eins", Country: "Austria"},
	})
	be.Equal(t, len(groups), 1)
	be.Equal(t, groups[0].Kind, KindNameCountry)
	be.Equal(t, groups[0].Key, "radio eins|germany")
	be.Equal(t, groups[0].IDs, []string{"c1", "c2"})
}

func TestBuildGroupsPriorityClaimsOnce(t *testing.T) {
	// c1 and c2 share an email; c2 and c3 share a name|country. The email
	// group claims c2 first, leaving c3 with no partner.
	groups := BuildGroups([]contact.Contact{
		{ID: "c1", Name: "KEXP", Country: "US", Email: "music@kexp.org"},
		{ID: "c2", Name: "Radio Eins", Country: "Germany", Email: "music@kexp.org"},
		{ID: "c3", Name: "Radio Eins", Country: "Germany"},
	})
	be.Equal(t, len(groups), 1)
	be.Equal(t, groups[0].Kind, KindEmail)
	be.Equal(t, groups[0].IDs, []string{"c1", "c2"})
}

func TestBuildGroupsNoDuplicates(t *testing.T) {
	groups := BuildGroups([]contact.Contact{
		{ID: "c1", Name: "One", Country: "US", Email: "one@example.com"},
		{ID: "c2", Name: "Two", Country: "US", Email: "two@example.com"},
	})
	be.Equal(t, len(groups), 0)
}

func TestBuildGroupsIgnoresEmptyKeys(t *testing.T) {
	// empty emails and websites never group; contacts without a country
	// never form a name|country key
	groups := BuildGroups([]contact.Contact{
		{ID: "c1", Name: "One", Country: "US"},
		{ID: "c2", Name: "Two", Country: "US"},
		{ID: "c3", Name: "Three", Country: ""},
		{ID: "c4", Name: "Three", Country: ""},
	})
	be.Equal(t, len(groups), 0)
}

func TestMembers(t *testing.T) {
	contacts := []contact.Contact{
		{ID: "c1", Name: "One"},
		{ID: "c2", Name: "Two"},
	}
	group := Group{Kind: KindEmail, Key: "k", IDs: []string{"c2", "c1", "gone"}}
	members := group.Members(contacts)
	be.Equal(t, len(members), 2)
	be.Equal(t, members[0].ID, "c2")
	be.Equal(t, members[1].ID, "c1")
}

func TestChoosePrimary(t *testing.T) {
	withEmail := contact.Contact{ID: "c2", Email: "x@example.com"}
	withSite := contact.Contact{ID: "c3", Website: "example.com"}
	bare := contact.Contact{ID: "c1"}

	be.Equal(t, ChoosePrimary([]contact.Contact{bare, withSite, withEmail}).ID, "c2")
	be.Equal(t, ChoosePrimary([]contact.Contact{bare, withSite}).ID, "c3")
	be.Equal(t, ChoosePrimary([]contact.Contact{bare}).ID, "c1")
}
