package stationbook

import (
	"context"
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"github.com/mkalas/stationbook/config"
	"github.com/mkalas/stationbook/contact"
	"github.com/mkalas/stationbook/dedupe"
)

func openTestBook(t *testing.T) *Book {
	t.Helper()
	cfg := config.Config{DataDir: t.TempDir(), Backend: "docstore"}
	book, err := Open(context.Background(), cfg, nil)
	be.Err(t, err, nil)
	t.Cleanup(func() { book.Close() })
	return book
}

func seedDuplicates(t *testing.T, book *Book) {
	t.Helper()
	ctx := context.Background()
	seeds := []contact.Contact{
		{ID: "c1", Name: "KEXP", Country: "US", Type: contact.TypeRadio, Email: "music@kexp.org", Genres: []string{"indie"}},
		{ID: "c2", Name: "KEXP 90.3 FM Seattle", Country: "US", Type: contact.TypeRadio, Genres: []string{"electronic"}, IsFavorite: true},
		{ID: "c3", Name: "Radio Eins", Country: "Germany", Type: contact.TypeRadio},
	}
	for _, c := range seeds {
		_, err := book.Store.Add(ctx, c)
		be.Err(t, err, nil)
	}
}

func TestOpenPrefersSQLiteByDefault(t *testing.T) {
	cfg := config.Config{DataDir: t.TempDir()}
	book, err := Open(context.Background(), cfg, nil)
	be.Err(t, err, nil)
	defer book.Close()
	be.Equal(t, book.Store.BackendName(), "sqlite")
}

func TestOpenForcedDocstore(t *testing.T) {
	book := openTestBook(t)
	be.Equal(t, book.Store.BackendName(), "docstore")
}

func TestDuplicateGroups(t *testing.T) {
	book := openTestBook(t)
	ctx := context.Background()
	seedDuplicates(t, book)

	// c1 and c2 share a name|country signal only after adding a shared email
	_, err := book.Store.Update(ctx, contact.Contact{
		ID: "c2", Name: "KEXP", Country: "US", Type: contact.TypeRadio,
		Genres: []string{"electronic"}, IsFavorite: true,
	})
	be.Err(t, err, nil)

	groups, err := book.DuplicateGroups(ctx)
	be.Err(t, err, nil)
	be.Equal(t, len(groups), 1)
	be.Equal(t, groups[0].Kind, dedupe.KindNameCountry)
	be.Equal(t, groups[0].IDs, []string{"c1", "c2"})
}

func TestMergeGroupAndUndo(t *testing.T) {
	book := openTestBook(t)
	ctx := context.Background()
	seedDuplicates(t, book)

	merged, err := book.MergeGroup(ctx, "c1", []string{"c2"})
	be.Err(t, err, nil)
	be.Equal(t, merged.ID, "c1")
	be.Equal(t, merged.Name, "KEXP 90.3 FM Seattle")
	be.Equal(t, merged.Email, "music@kexp.org")
	be.True(t, merged.IsFavorite)
	be.Equal(t, merged.Genres, []string{"indie", "electronic"})

	// absorbed record is gone
	all, err := book.Store.GetAll(ctx)
	be.Err(t, err, nil)
	be.Equal(t, len(all), 2)

	be.True(t, book.CanUndo())
	be.Err(t, book.Undo(ctx), nil)

	restored, err := book.Store.Get(ctx, "c1")
	be.Err(t, err, nil)
	be.Equal(t, restored.Name, "KEXP")
	be.True(t, !restored.IsFavorite)

	reborn, err := book.Store.Get(ctx, "c2")
	be.Err(t, err, nil)
	be.Equal(t, reborn.Name, "KEXP 90.3 FM Seattle")
	be.True(t, !book.CanUndo())
}

func TestMergeGroupFillsEmailFromAbsorbed(t *testing.T) {
	// The primary has no email, so the merge takes it from the absorbed
	// record. The email stays unique throughout: the absorbed record is
	// removed before the merged primary claims its address.
	for _, backend := range []string{"sqlite", "docstore"} {
		t.Run(backend, func(t *testing.T) {
			cfg := config.Config{DataDir: t.TempDir(), Backend: backend}
			book, err := Open(context.Background(), cfg, nil)
			be.Err(t, err, nil)
			defer book.Close()
			ctx := context.Background()

			seeds := []contact.Contact{
				{ID: "p", Name: "A", Country: "France", Type: contact.TypePromoter},
				{ID: "o", Name: "A", Country: "France", Type: contact.TypePromoter, Email: "b@y.com"},
			}
			for _, c := range seeds {
				_, err := book.Store.Add(ctx, c)
				be.Err(t, err, nil)
			}

			merged, err := book.MergeGroup(ctx, "p", []string{"o"})
			be.Err(t, err, nil)
			be.Equal(t, merged.Email, "b@y.com")

			stored, err := book.Store.Get(ctx, "p")
			be.Err(t, err, nil)
			be.Equal(t, stored.Email, "b@y.com")
			_, err = book.Store.Get(ctx, "o")
			be.True(t, err != nil)

			be.Err(t, book.Undo(ctx), nil)
			primary, err := book.Store.Get(ctx, "p")
			be.Err(t, err, nil)
			be.Equal(t, primary.Email, "")
			absorbed, err := book.Store.Get(ctx, "o")
			be.Err(t, err, nil)
			be.Equal(t, absorbed.Email, "b@y.com")
		})
	}
}

func TestMergeGroupMissingContact(t *testing.T) {
	book := openTestBook(t)
	seedDuplicates(t, book)

	_, err := book.MergeGroup(context.Background(), "c1", []string{"ghost"})
	be.True(t, err != nil)
	be.True(t, !book.CanUndo())
}

func TestMergeAllIsOneUndoUnit(t *testing.T) {
	book := openTestBook(t)
	ctx := context.Background()

	seeds := []contact.Contact{
		{ID: "a1", Name: "KEXP", Country: "US", Type: contact.TypeRadio, Email: "music@kexp.org"},
		{ID: "a2", Name: "kexp", Country: "us", Type: contact.TypeRadio, Genres: []string{"indie"}},
		{ID: "b1", Name: "Radio Eins", Country: "Germany", Type: contact.TypeRadio},
		{ID: "b2", Name: "radio eins", Country: "germany", Type: contact.TypeRadio},
		{ID: "solo", Name: "Jazz FM", Country: "GB", Type: contact.TypeRadio},
	}
	for _, c := range seeds {
		_, err := book.Store.Add(ctx, c)
		be.Err(t, err, nil)
	}

	outcome, err := book.MergeAll(ctx)
	be.Err(t, err, nil)
	be.Equal(t, outcome, MergeOutcome{Groups: 2, Absorbed: 2})

	all, err := book.Store.GetAll(ctx)
	be.Err(t, err, nil)
	be.Equal(t, len(all), 3)
	be.Equal(t, len(book.History()), 2)

	// one undo reverses the whole pass
	be.Err(t, book.Undo(ctx), nil)
	all, err = book.Store.GetAll(ctx)
	be.Err(t, err, nil)
	be.Equal(t, len(all), 5)
	be.Equal(t, len(book.History()), 0)
}

func TestMergeAllNoDuplicates(t *testing.T) {
	book := openTestBook(t)
	ctx := context.Background()

	_, err := book.Store.Add(ctx, contact.Contact{ID: "c1", Name: "One", Country: "US", Type: contact.TypeVenue})
	be.Err(t, err, nil)

	outcome, err := book.MergeAll(ctx)
	be.Err(t, err, nil)
	be.Equal(t, outcome, MergeOutcome{})
	be.True(t, !book.CanUndo())
}

func TestExportHistory(t *testing.T) {
	book := openTestBook(t)
	ctx := context.Background()
	seedDuplicates(t, book)

	_, err := book.MergeGroup(ctx, "c1", []string{"c2"})
	be.Err(t, err, nil)

	var out strings.Builder
	be.Err(t, book.ExportHistory(&out), nil)
	be.True(t, strings.Contains(out.String(), `"primaryId": "c1"`))
	be.True(t, strings.Contains(out.String(), `"absorbedIds"`))
}
