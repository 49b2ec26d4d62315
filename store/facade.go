package store

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mkalas/stationbook/contact"
)

// DefaultChunkSize is the number of records written per bulk transaction.
const DefaultChunkSize = 200

// Opener initializes one backend. Openers are probed once at facade
// startup; a failed probe is an expected condition, not a fatal one.
type Opener func(ctx context.Context) (Backend, error)

// Options tunes facade behavior.
type Options struct {
	// ChunkSize bounds records per bulk transaction. Zero means
	// DefaultChunkSize.
	ChunkSize int
	// Log receives operational events. Nil disables logging.
	Log *zerolog.Logger
}

// Facade routes the uniform CRUD+search contract to the pinned backend and
// runs every write through the validation gate. It is the sole writer of
// contacts and their relations.
type Facade struct {
	backend   Backend
	chunkSize int
	log       zerolog.Logger
}

// Open probes the relational opener and pins it for the facade lifetime,
// falling back to the document opener when the relational backend cannot be
// initialized. The pinned backend is migrated before the facade is returned.
func Open(ctx context.Context, relational, document Opener, opts Options) (*Facade, error) {
	log := zerolog.Nop()
	if opts.Log != nil {
		log = *opts.Log
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	backend, err := probe(ctx, relational, document, log)
	if err != nil {
		return nil, err
	}
	if err := backend.Migrate(ctx); err != nil {
		backend.Close()
		return nil, err
	}
	log.Info().Str("backend", backend.Name()).Msg("store opened")
	return &Facade{backend: backend, chunkSize: chunkSize, log: log}, nil
}

func probe(ctx context.Context, relational, document Opener, log zerolog.Logger) (Backend, error) {
	if relational != nil {
		backend, err := relational(ctx)
		if err == nil {
			return backend, nil
		}
		log.Warn().Err(err).Msg("relational backend unavailable, falling back to document store")
	}
	if document != nil {
		backend, err := document(ctx)
		if err == nil {
			return backend, nil
		}
		log.Error().Err(err).Msg("document backend unavailable")
	}
	return nil, &Error{Code: ErrorCodeUnavailable, Message: "no backend could be initialized"}
}

// BackendName identifies the pinned backend.
func (f *Facade) BackendName() string {
	return f.backend.Name()
}

// GetAll returns every stored contact in canonical shape.
func (f *Facade) GetAll(ctx context.Context) ([]contact.Contact, error) {
	return f.backend.GetAll(ctx)
}

// Get returns one contact by id.
func (f *Facade) Get(ctx context.Context, id string) (contact.Contact, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return contact.Contact{}, &Error{Code: ErrorCodeUsage, Message: "contact id is required"}
	}
	return f.backend.Get(ctx, id)
}

// Add validates and stores a new contact, returning the validated record.
func (f *Facade) Add(ctx context.Context, raw contact.Contact) (contact.Contact, error) {
	validated, err := contact.Validate(raw)
	if err != nil {
		return contact.Contact{}, err
	}
	if err := f.backend.Add(ctx, validated); err != nil {
		return contact.Contact{}, err
	}
	f.log.Debug().Str("id", validated.ID).Msg("contact added")
	return validated, nil
}

// Update validates and overwrites an existing contact and all of its
// relations, returning the validated record.
func (f *Facade) Update(ctx context.Context, raw contact.Contact) (contact.Contact, error) {
	validated, err := contact.Validate(raw)
	if err != nil {
		return contact.Contact{}, err
	}
	if err := f.backend.Update(ctx, validated); err != nil {
		return contact.Contact{}, err
	}
	f.log.Debug().Str("id", validated.ID).Msg("contact updated")
	return validated, nil
}

// Delete removes a contact and its child relations.
func (f *Facade) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return &Error{Code: ErrorCodeUsage, Message: "contact id is required"}
	}
	if err := f.backend.Delete(ctx, id); err != nil {
		return err
	}
	f.log.Debug().Str("id", id).Msg("contact deleted")
	return nil
}

// Search parses the query text and evaluates it against the pinned backend.
func (f *Facade) Search(ctx context.Context, text string, filter Filter) ([]contact.Contact, error) {
	return f.backend.Search(ctx, ParseQuery(text, filter))
}

// Diagnostics reports the schema version and per-table row counts.
func (f *Facade) Diagnostics(ctx context.Context) (Diagnostics, error) {
	return f.backend.Diagnostics(ctx)
}

// ClearAll removes every contact and all derived state.
func (f *Facade) ClearAll(ctx context.Context) error {
	return f.backend.ClearAll(ctx)
}

// RebuildSearchIndex reconstructs the search projection from base data.
func (f *Facade) RebuildSearchIndex(ctx context.Context) error {
	return f.backend.RebuildSearchIndex(ctx)
}

// RunMigrations advances the persisted schema to the target version.
func (f *Facade) RunMigrations(ctx context.Context) error {
	return f.backend.Migrate(ctx)
}

// Close releases the pinned backend.
func (f *Facade) Close() error {
	return f.backend.Close()
}

// BulkMode controls how BulkAdd reacts to a failing record.
type BulkMode string

const (
	// BulkAbort stops at the first failing record; earlier chunks stay
	// committed and later records are not attempted.
	BulkAbort BulkMode = "abort"
	// BulkCollect keeps going and gathers every failing record into the
	// result's conflict report.
	BulkCollect BulkMode = "collect"
)

// RowError ties a failed record to its position in the input batch. Index
// is -1 when the failure surfaced during a chunk retry rather than during
// row validation.
type RowError struct {
	Index int
	ID    string
	Err   error
}

// BulkResult reports exactly how far a bulk write progressed.
type BulkResult struct {
	Attempted int
	Inserted  int
	Chunks    int
	Errors    []RowError
}

// BulkAdd validates and writes records in chunks of the configured size,
// each chunk one backend transaction, with a cancellation check between
// chunks. The overall call is deliberately not all-or-nothing: a mid-stream
// failure leaves earlier chunks committed and the result's counts accurate.
//
// In BulkAbort mode the first failing record stops the import; records
// validated before it are still flushed, so the reported Inserted count is
// exact. In BulkCollect mode failing records land in Errors and the rest of
// the batch proceeds.
func (f *Facade) BulkAdd(ctx context.Context, records []contact.Contact, mode BulkMode) (BulkResult, error) {
	if mode == "" {
		mode = BulkAbort
	}
	result := BulkResult{Attempted: len(records)}
	chunk := make([]contact.Contact, 0, f.chunkSize)
	var abortErr error

	for i, raw := range records {
		validated, err := contact.Validate(raw)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Index: i, ID: strings.TrimSpace(raw.ID), Err: err})
			if mode == BulkAbort {
				abortErr = err
				break
			}
			continue
		}
		chunk = append(chunk, validated)
		if len(chunk) >= f.chunkSize {
			if err := f.flushChunk(ctx, &result, chunk, mode); err != nil {
				return result, err
			}
			chunk = chunk[:0]
			if err := ctx.Err(); err != nil {
				return result, err
			}
		}
	}
	if len(chunk) > 0 {
		if err := f.flushChunk(ctx, &result, chunk, mode); err != nil {
			return result, err
		}
	}
	f.log.Info().
		Int("attempted", result.Attempted).
		Int("inserted", result.Inserted).
		Int("failed", len(result.Errors)).
		Msg("bulk add finished")
	return result, abortErr
}

func (f *Facade) flushChunk(ctx context.Context, result *BulkResult, chunk []contact.Contact, mode BulkMode) error {
	result.Chunks++
	err := f.backend.AddBatch(ctx, chunk)
	if err == nil {
		result.Inserted += len(chunk)
		return nil
	}
	if mode == BulkAbort {
		return &TransactionError{Committed: result.Inserted, Chunk: result.Chunks, Err: err}
	}
	// The chunk transaction rolled back; retry row by row so one bad record
	// does not sink its neighbors.
	for _, c := range chunk {
		if err := f.backend.Add(ctx, c); err != nil {
			result.Errors = append(result.Errors, RowError{Index: -1, ID: c.ID, Err: err})
			continue
		}
		result.Inserted++
	}
	return nil
}
