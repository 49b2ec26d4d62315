// Package history records merge snapshots and per-field diffs, supporting
// reversible merges and audit export.
//
// The [Ledger] is an explicitly owned component created alongside the store
// facade and torn down with it; it is the sole writer of snapshots and
// history entries. Snapshots form a last-in-first-out undo stack for the
// session. A "merge all" batch is one snapshot: one undo reverses the whole
// batch. History entries are immutable once appended; undo removes exactly
// the entries their snapshot added.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkalas/stationbook/contact"
)

// FieldDiff is one user-visible field change produced by a merge.
type FieldDiff struct {
	Label  string `json:"label"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// Entry is one immutable audit record, appended per merged group.
type Entry struct {
	Time        time.Time   `json:"time"`
	PrimaryID   string      `json:"primaryId"`
	AbsorbedIDs []string    `json:"absorbedIds"`
	Diffs       []FieldDiff `json:"diffs"`
}

// mergeRecord captures the pre-merge state of one group.
type mergeRecord struct {
	primaryBefore contact.Contact
	othersBefore  []contact.Contact
}

// snapshot is one undo unit: every group of a merge batch plus the number
// of history entries the batch appended.
type snapshot struct {
	records []mergeRecord
	entries int
}

// Restorer is the write surface undo needs. The store facade satisfies it.
type Restorer interface {
	Update(ctx context.Context, c contact.Contact) (contact.Contact, error)
	Add(ctx context.Context, c contact.Contact) (contact.Contact, error)
}

// Ledger owns the session's undo stack and history log.
type Ledger struct {
	snapshots []snapshot
	entries   []Entry
	now       func() time.Time
	log       zerolog.Logger
}

// NewLedger returns an empty ledger. A nil logger disables logging.
func NewLedger(log *zerolog.Logger) *Ledger {
	logger := zerolog.Nop()
	if log != nil {
		logger = *log
	}
	return &Ledger{now: func() time.Time { return time.Now().UTC() }, log: logger}
}

// Batch accumulates the groups of one merge operation so they snapshot and
// undo as a single atomic unit.
type Batch struct {
	records []mergeRecord
	entries []Entry
	now     func() time.Time
}

// Begin starts a merge batch.
func (l *Ledger) Begin() *Batch {
	return &Batch{now: l.now}
}

// Record captures one merged group: deep copies of the pre-merge primary
// and absorbed records, plus the field diffs between the pre-merge primary
// and the merged result. An empty diff list is valid; it means the merge
// produced no visible change to the primary.
func (b *Batch) Record(primaryBefore contact.Contact, othersBefore []contact.Contact, mergedAfter contact.Contact) {
	record := mergeRecord{primaryBefore: primaryBefore.Clone()}
	absorbed := make([]string, 0, len(othersBefore))
	for _, other := range othersBefore {
		record.othersBefore = append(record.othersBefore, other.Clone())
		absorbed = append(absorbed, other.ID)
	}
	b.records = append(b.records, record)
	b.entries = append(b.entries, Entry{
		Time:        b.now(),
		PrimaryID:   primaryBefore.ID,
		AbsorbedIDs: absorbed,
		Diffs:       Diff(primaryBefore, mergedAfter),
	})
}

// Commit pushes the batch onto the undo stack and appends its history
// entries. An empty batch commits to nothing.
func (l *Ledger) Commit(b *Batch) {
	if len(b.records) == 0 {
		return
	}
	l.snapshots = append(l.snapshots, snapshot{records: b.records, entries: len(b.entries)})
	l.entries = append(l.entries, b.entries...)
	l.log.Debug().Int("groups", len(b.records)).Msg("merge batch recorded")
}

// CanUndo reports whether an undoable merge batch exists.
func (l *Ledger) CanUndo() bool {
	return len(l.snapshots) > 0
}

// Undo reverses the most recent merge batch: every primary is restored to
// its pre-merge state by full overwrite and every absorbed record is
// re-inserted exactly as captured. The matching history entries are
// removed. The snapshot is consumed only after every restore succeeded.
func (l *Ledger) Undo(ctx context.Context, restorer Restorer) error {
	if len(l.snapshots) == 0 {
		return fmt.Errorf("history: nothing to undo")
	}
	top := l.snapshots[len(l.snapshots)-1]
	for i := len(top.records) - 1; i >= 0; i-- {
		record := top.records[i]
		if _, err := restorer.Update(ctx, record.primaryBefore); err != nil {
			return fmt.Errorf("history: restoring %s: %w", record.primaryBefore.ID, err)
		}
		for _, other := range record.othersBefore {
			if _, err := restorer.Add(ctx, other); err != nil {
				return fmt.Errorf("history: re-inserting %s: %w", other.ID, err)
			}
		}
	}
	l.snapshots = l.snapshots[:len(l.snapshots)-1]
	l.entries = l.entries[:len(l.entries)-top.entries]
	l.log.Info().Int("groups", len(top.records)).Msg("merge batch undone")
	return nil
}

// Entries returns a copy of the history log, oldest first.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Export writes the history log as a JSON array for audit.
func (l *Ledger) Export(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(l.Entries())
}

// diffFields is the fixed list of user-visible fields Diff compares.
var diffFields = []struct {
	label string
	value func(contact.Contact) string
}{
	{"name", func(c contact.Contact) string { return c.Name }},
	{"email", func(c contact.Contact) string { return c.Email }},
	{"website", func(c contact.Contact) string { return c.Website }},
	{"country", func(c contact.Contact) string { return c.Country }},
	{"type", func(c contact.Contact) string { return string(c.Type) }},
	{"verification", func(c contact.Contact) string { return string(c.VerificationStatus) }},
	{"do not contact", func(c contact.Contact) string { return fmt.Sprintf("%t", c.DoNotContact) }},
	{"favorite", func(c contact.Contact) string { return fmt.Sprintf("%t", c.IsFavorite) }},
	{"genres", func(c contact.Contact) string { return strings.Join(c.Genres, ", ") }},
	{"contact persons", func(c contact.Contact) string { return fmt.Sprintf("%d", len(c.Persons)) }},
	{"social links", func(c contact.Contact) string { return fmt.Sprintf("%d", len(c.Socials)) }},
}

// Diff compares the fixed list of user-visible fields and emits an entry
// for each field whose value changed.
func Diff(before, after contact.Contact) []FieldDiff {
	var diffs []FieldDiff
	for _, field := range diffFields {
		b, a := field.value(before), field.value(after)
		if b != a {
			diffs = append(diffs, FieldDiff{Label: field.label, Before: b, After: a})
		}
	}
	return diffs
}
