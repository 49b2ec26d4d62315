package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nalgeon/be"

	"github.com/mkalas/stationbook/contact"
)

// memBackend is a minimal in-memory Backend for exercising the facade.
// failEmails makes Add and AddBatch reject specific addresses so tests can
// stage mid-batch failures.
type memBackend struct {
	order      []string
	records    map[string]contact.Contact
	failEmails map[string]bool
	migrated   bool
}

func newMemBackend() *memBackend {
	return &memBackend{records: map[string]contact.Contact{}, failEmails: map[string]bool{}}
}

func (m *memBackend) Name() string { return "mem" }

func (m *memBackend) GetAll(ctx context.Context) ([]contact.Contact, error) {
	out := make([]contact.Contact, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id])
	}
	return out, nil
}

func (m *memBackend) Get(ctx context.Context, id string) (contact.Contact, error) {
	c, ok := m.records[id]
	if !ok {
		return contact.Contact{}, &Error{Code: ErrorCodeNotFound, Field: "id", Value: id, Message: "contact not found"}
	}
	return c, nil
}

func (m *memBackend) Add(ctx context.Context, c contact.Contact) error {
	if m.failEmails[c.Email] {
		return &Error{Code: ErrorCodeConflict, Field: "email", Value: c.Email, Message: "email already exists"}
	}
	if _, dup := m.records[c.ID]; dup {
		return &Error{Code: ErrorCodeConflict, Field: "id", Value: c.ID, Message: "id already exists"}
	}
	m.records[c.ID] = c
	m.order = append(m.order, c.ID)
	return nil
}

func (m *memBackend) Update(ctx context.Context, c contact.Contact) error {
	if _, ok := m.records[c.ID]; !ok {
		return &Error{Code: ErrorCodeNotFound, Field: "id", Value: c.ID, Message: "contact not found"}
	}
	m.records[c.ID] = c
	return nil
}

func (m *memBackend) Delete(ctx context.Context, id string) error {
	if _, ok := m.records[id]; !ok {
		return &Error{Code: ErrorCodeNotFound, Field: "id", Value: id, Message: "contact not found"}
	}
	delete(m.records, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memBackend) AddBatch(ctx context.Context, batch []contact.Contact) error {
	for _, c := range batch {
		if m.failEmails[c.Email] {
			return &Error{Code: ErrorCodeConflict, Field: "email", Value: c.Email, Message: "email already exists"}
		}
	}
	for _, c := range batch {
		if err := m.Add(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (m *memBackend) Search(ctx context.Context, q Query) ([]contact.Contact, error) {
	all, _ := m.GetAll(ctx)
	if q.Empty() {
		return all, nil
	}
	var out []contact.Contact
	for _, c := range all {
		if MatchText(c, q) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memBackend) Diagnostics(ctx context.Context) (Diagnostics, error) {
	return Diagnostics{Backend: "mem", Rows: RowCounts{Contacts: len(m.records)}}, nil
}

func (m *memBackend) ClearAll(ctx context.Context) error {
	m.records = map[string]contact.Contact{}
	m.order = nil
	return nil
}

func (m *memBackend) RebuildSearchIndex(ctx context.Context) error { return nil }

func (m *memBackend) Migrate(ctx context.Context) error {
	m.migrated = true
	return nil
}

func (m *memBackend) Close() error { return nil }

func openMemFacade(t *testing.T, backend *memBackend, chunkSize int) *Facade {
	t.Helper()
	facade, err := Open(context.Background(),
		func(ctx context.Context) (Backend, error) { return backend, nil },
		nil,
		Options{ChunkSize: chunkSize})
	be.Err(t, err, nil)
	return facade
}

func testContact(n int) contact.Contact {
	return contact.Contact{
		ID:      fmt.Sprintf("c%04d", n),
		Name:    fmt.Sprintf("Station %d", n),
		Country: "US",
		Type:    contact.TypeRadio,
		Email:   fmt.Sprintf("station%d@example.com", n),
	}
}

func TestOpenFallsBackToDocumentBackend(t *testing.T) {
	backend := newMemBackend()
	facade, err := Open(context.Background(),
		func(ctx context.Context) (Backend, error) {
			return nil, &Error{Code: ErrorCodeUnavailable, Message: "relational down"}
		},
		func(ctx context.Context) (Backend, error) { return backend, nil },
		Options{})
	be.Err(t, err, nil)
	be.Equal(t, facade.BackendName(), "mem")
	be.True(t, backend.migrated)
}

func TestOpenNoBackendAvailable(t *testing.T) {
	fail := func(ctx context.Context) (Backend, error) {
		return nil, errors.New("down")
	}
	_, err := Open(context.Background(), fail, fail, Options{})
	be.True(t, err != nil)
	be.Equal(t, CodeOf(err), ErrorCodeUnavailable)
}

func TestFacadeValidatesWrites(t *testing.T) {
	facade := openMemFacade(t, newMemBackend(), 0)
	ctx := context.Background()

	_, err := facade.Add(ctx, contact.Contact{ID: "c1", Name: "", Country: "US", Type: contact.TypeRadio})
	be.True(t, err != nil)

	added, err := facade.Add(ctx, contact.Contact{ID: "c1", Name: " KEXP ", Country: "US", Type: contact.TypeRadio})
	be.Err(t, err, nil)
	be.Equal(t, added.Name, "KEXP")
	be.Equal(t, added.VerificationStatus, contact.VerificationUnverified)
}

func TestBulkAddChunks(t *testing.T) {
	backend := newMemBackend()
	facade := openMemFacade(t, backend, 100)
	ctx := context.Background()

	records := make([]contact.Contact, 250)
	for i := range records {
		records[i] = testContact(i)
	}
	result, err := facade.BulkAdd(ctx, records, BulkAbort)
	be.Err(t, err, nil)
	be.Equal(t, result.Attempted, 250)
	be.Equal(t, result.Inserted, 250)
	be.Equal(t, result.Chunks, 3)
	be.Equal(t, len(backend.order), 250)
}

func TestBulkAddAbortStopsAtFirstBadRow(t *testing.T) {
	backend := newMemBackend()
	facade := openMemFacade(t, backend, 100)
	ctx := context.Background()

	records := make([]contact.Contact, 500)
	for i := range records {
		records[i] = testContact(i)
	}
	records[499].Name = "" // fails validation

	result, err := facade.BulkAdd(ctx, records, BulkAbort)
	be.True(t, err != nil)
	be.Equal(t, result.Inserted, 499)
	be.Equal(t, len(result.Errors), 1)
	be.Equal(t, result.Errors[0].Index, 499)
	// rows validated before the bad one are still flushed
	be.Equal(t, len(backend.order), 499)
}

func TestBulkAddAbortWrapsChunkFailure(t *testing.T) {
	backend := newMemBackend()
	backend.failEmails["station150@example.com"] = true
	facade := openMemFacade(t, backend, 100)
	ctx := context.Background()

	records := make([]contact.Contact, 300)
	for i := range records {
		records[i] = testContact(i)
	}
	result, err := facade.BulkAdd(ctx, records, BulkAbort)
	be.True(t, err != nil)

	var txErr *TransactionError
	be.True(t, errors.As(err, &txErr))
	be.Equal(t, txErr.Committed, 100)
	be.Equal(t, txErr.Chunk, 2)
	be.Equal(t, result.Inserted, 100)
}

func TestBulkAddCollectRetriesChunkRowByRow(t *testing.T) {
	backend := newMemBackend()
	backend.failEmails["station150@example.com"] = true
	facade := openMemFacade(t, backend, 100)
	ctx := context.Background()

	records := make([]contact.Contact, 300)
	for i := range records {
		records[i] = testContact(i)
	}
	result, err := facade.BulkAdd(ctx, records, BulkCollect)
	be.Err(t, err, nil)
	be.Equal(t, result.Attempted, 300)
	be.Equal(t, result.Inserted, 299)
	be.Equal(t, len(result.Errors), 1)
	be.Equal(t, result.Errors[0].Index, -1)
	be.Equal(t, result.Errors[0].ID, "c0150")
	be.True(t, IsConflict(result.Errors[0].Err))
}

func TestBulkAddCollectGathersValidationErrors(t *testing.T) {
	facade := openMemFacade(t, newMemBackend(), 100)
	ctx := context.Background()

	records := []contact.Contact{
		testContact(1),
		{ID: "bad", Name: "", Country: "US", Type: contact.TypeRadio},
		testContact(2),
	}
	result, err := facade.BulkAdd(ctx, records, BulkCollect)
	be.Err(t, err, nil)
	be.Equal(t, result.Inserted, 2)
	be.Equal(t, len(result.Errors), 1)
	be.Equal(t, result.Errors[0].Index, 1)
	be.Equal(t, result.Errors[0].ID, "bad")
}

func TestBulkAddHonorsCancellation(t *testing.T) {
	facade := openMemFacade(t, newMemBackend(), 50)
	ctx, cancel := context.WithCancel(context.Background())

	records := make([]contact.Contact, 200)
	for i := range records {
		records[i] = testContact(i)
	}
	cancel()
	result, err := facade.BulkAdd(ctx, records, BulkAbort)
	be.True(t, errors.Is(err, context.Canceled))
	// the first chunk flushes before the cancellation check fires
	be.Equal(t, result.Inserted, 50)
}

func TestFacadeSearchDelegatesParsedQuery(t *testing.T) {
	facade := openMemFacade(t, newMemBackend(), 0)
	ctx := context.Background()

	_, err := facade.Add(ctx, contact.Contact{
		ID: "c1", Name: "Radio Eins", Country: "Germany", Type: contact.TypeRadio,
		Genres: []string{"indie"},
	})
	be.Err(t, err, nil)
	_, err = facade.Add(ctx, contact.Contact{
		ID: "c2", Name: "Jazz FM", Country: "GB", Type: contact.TypeRadio,
		Genres: []string{"jazz"},
	})
	be.Err(t, err, nil)

	found, err := facade.Search(ctx, "genre:indie", Filter{})
	be.Err(t, err, nil)
	be.Equal(t, len(found), 1)
	be.Equal(t, found[0].ID, "c1")

	found, err = facade.Search(ctx, "", Filter{Country: "gb"})
	be.Err(t, err, nil)
	be.Equal(t, len(found), 1)
	be.Equal(t, found[0].ID, "c2")
}

func TestFacadeGetUsageErrors(t *testing.T) {
	facade := openMemFacade(t, newMemBackend(), 0)
	ctx := context.Background()

	_, err := facade.Get(ctx, "  ")
	be.Equal(t, CodeOf(err), ErrorCodeUsage)

	_, err = facade.Get(ctx, "missing")
	be.True(t, IsNotFound(err))
}
