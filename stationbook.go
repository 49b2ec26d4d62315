package stationbook

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/mkalas/stationbook/config"
	"github.com/mkalas/stationbook/contact"
	"github.com/mkalas/stationbook/dedupe"
	"github.com/mkalas/stationbook/history"
	"github.com/mkalas/stationbook/merge"
	"github.com/mkalas/stationbook/store"
	"github.com/mkalas/stationbook/store/docstore"
	"github.com/mkalas/stationbook/store/sqlite"
)

// MergeOutcome reports one completed merge pass.
type MergeOutcome struct {
	// Groups is the number of duplicate groups merged.
	Groups int
	// Absorbed is the number of records folded into primaries.
	Absorbed int
}

// Book is the assembled contact book: one storage facade plus the
// session's merge ledger. Create one with Open.
type Book struct {
	Store  *store.Facade
	Ledger *history.Ledger

	log zerolog.Logger
}

// Open builds a Book from configuration: it prepares the data directory,
// opens the storage facade with the configured backend preference, and
// starts an empty merge ledger. A nil logger disables logging.
func Open(ctx context.Context, cfg config.Config, log *zerolog.Logger) (*Book, error) {
	logger := zerolog.Nop()
	if log != nil {
		logger = *log
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("stationbook: preparing data dir failed: %w", err)
	}

	var relational, document store.Opener
	switch cfg.Backend {
	case "sqlite":
		relational = sqlite.Opener(cfg.SQLitePath(), log)
	case "docstore":
		document = docstore.Opener(cfg.DocstorePath(), log)
	default:
		relational = sqlite.Opener(cfg.SQLitePath(), log)
		document = docstore.Opener(cfg.DocstorePath(), log)
	}

	facade, err := store.Open(ctx, relational, document, store.Options{
		ChunkSize: cfg.BulkChunkSize,
		Log:       log,
	})
	if err != nil {
		return nil, err
	}
	return &Book{
		Store:  facade,
		Ledger: history.NewLedger(log),
		log:    logger,
	}, nil
}

// Close releases the underlying backend.
func (b *Book) Close() error {
	return b.Store.Close()
}

// DuplicateGroups scans all contacts and returns their duplicate groups.
func (b *Book) DuplicateGroups(ctx context.Context) ([]dedupe.Group, error) {
	contacts, err := b.Store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return dedupe.BuildGroups(contacts), nil
}

// MergeGroup merges the contacts with otherIDs into the contact with
// primaryID, deletes the absorbed records, and records the merge as one
// undoable batch. The merged record is returned.
func (b *Book) MergeGroup(ctx context.Context, primaryID string, otherIDs []string) (contact.Contact, error) {
	primary, err := b.Store.Get(ctx, primaryID)
	if err != nil {
		return contact.Contact{}, err
	}
	others := make([]contact.Contact, 0, len(otherIDs))
	for _, id := range otherIDs {
		c, err := b.Store.Get(ctx, id)
		if err != nil {
			return contact.Contact{}, err
		}
		others = append(others, c)
	}

	batch := b.Ledger.Begin()
	merged, err := b.mergeOne(ctx, batch, primary, others)
	if err != nil {
		return contact.Contact{}, err
	}
	b.Ledger.Commit(batch)
	return merged, nil
}

// MergeAll detects every duplicate group, merges each into its chosen
// primary, and records the whole pass as one undoable batch.
func (b *Book) MergeAll(ctx context.Context) (MergeOutcome, error) {
	contacts, err := b.Store.GetAll(ctx)
	if err != nil {
		return MergeOutcome{}, err
	}
	groups := dedupe.BuildGroups(contacts)

	byID := make(map[string]contact.Contact, len(contacts))
	for _, c := range contacts {
		byID[c.ID] = c
	}

	var outcome MergeOutcome
	batch := b.Ledger.Begin()
	for _, group := range groups {
		members := group.Members(contacts)
		primary := dedupe.ChoosePrimary(members)
		others := make([]contact.Contact, 0, len(members)-1)
		for _, member := range members {
			if member.ID != primary.ID {
				others = append(others, byID[member.ID])
			}
		}
		if _, err := b.mergeOne(ctx, batch, byID[primary.ID], others); err != nil {
			b.Ledger.Commit(batch)
			return outcome, err
		}
		outcome.Groups++
		outcome.Absorbed += len(others)
	}
	b.Ledger.Commit(batch)
	return outcome, nil
}

// mergeOne combines one group, persists the result, and records it on the
// batch. The absorbed records are deleted before the primary is updated:
// the merged primary may have taken an email or website from one of them,
// and the uniqueness constraints require that value to be free when the
// update lands. A failed update re-inserts the deleted records, and the
// record is added to the batch only after every write succeeds, so a
// failed merge never loses data and never becomes undoable.
func (b *Book) mergeOne(ctx context.Context, batch *history.Batch, primary contact.Contact, others []contact.Contact) (contact.Contact, error) {
	merged, err := merge.Combine(primary, others)
	if err != nil {
		return contact.Contact{}, err
	}
	deleted := make([]contact.Contact, 0, len(others))
	for _, other := range others {
		if err := b.Store.Delete(ctx, other.ID); err != nil {
			b.reinsert(ctx, deleted)
			return contact.Contact{}, err
		}
		deleted = append(deleted, other)
	}
	if _, err := b.Store.Update(ctx, merged); err != nil {
		b.reinsert(ctx, deleted)
		return contact.Contact{}, err
	}
	batch.Record(primary, others, merged)
	b.log.Info().Str("primary", merged.ID).Int("absorbed", len(others)).Msg("group merged")
	return merged, nil
}

// reinsert puts deleted records back after a merge write fails partway.
func (b *Book) reinsert(ctx context.Context, records []contact.Contact) {
	for _, c := range records {
		if _, err := b.Store.Add(ctx, c); err != nil {
			b.log.Error().Err(err).Str("id", c.ID).Msg("restoring absorbed contact failed")
		}
	}
}

// CanUndo reports whether a merge batch is available to undo.
func (b *Book) CanUndo() bool {
	return b.Ledger.CanUndo()
}

// Undo reverts the most recent merge batch, restoring primaries and
// re-adding absorbed records.
func (b *Book) Undo(ctx context.Context) error {
	return b.Ledger.Undo(ctx, b.Store)
}

// History returns the recorded merge entries, oldest first.
func (b *Book) History() []history.Entry {
	return b.Ledger.Entries()
}

// ExportHistory writes the merge history as JSON.
func (b *Book) ExportHistory(w io.Writer) error {
	return b.Ledger.Export(w)
}
