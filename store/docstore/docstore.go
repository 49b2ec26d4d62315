package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/mkalas/stationbook/contact"
	"github.com/mkalas/stationbook/store"
)

// formatVersion is the document envelope version written to the meta bucket.
const formatVersion = 1

var (
	bucketContacts = []byte("contacts")
	bucketMeta     = []byte("meta")
	keyVersion     = []byte("version")
)

// envelope wraps a stored contact with its insertion sequence so reads can
// preserve insertion order, which key order would not.
type envelope struct {
	Seq     uint64          `json:"seq"`
	Contact contact.Contact `json:"contact"`
}

// Store is the fallback document backend: whole contact records as JSON
// values in a bbolt file.
type Store struct {
	db  *bolt.DB
	log zerolog.Logger
}

var _ store.Backend = (*Store)(nil)

// Opener adapts Open to the facade's probe signature.
func Opener(path string, log *zerolog.Logger) store.Opener {
	return func(ctx context.Context) (store.Backend, error) {
		return Open(ctx, path, log)
	}
}

// Open opens (creating if needed) the bbolt file at path.
func Open(ctx context.Context, path string, log *zerolog.Logger) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, &store.Error{Code: store.ErrorCodeUnavailable, Message: err.Error()}
	}
	logger := zerolog.Nop()
	if log != nil {
		logger = *log
	}
	return &Store{db: db, log: logger}, nil
}

// Name identifies the backend in diagnostics and logs.
func (s *Store) Name() string {
	return "docstore"
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the buckets and records the document format version.
// The document shape is self-describing JSON, so there are no stepwise
// migrations to apply.
func (s *Store) Migrate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketContacts); err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		version, err := json.Marshal(formatVersion)
		if err != nil {
			return err
		}
		return meta.Put(keyVersion, version)
	})
	if err != nil {
		return storeFailure(err)
	}
	return nil
}

// Add stores a new contact, rejecting duplicate ids and case-insensitive
// duplicate emails/websites so the facade contract matches the relational
// backend.
func (s *Store) Add(ctx context.Context, c contact.Contact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return putNew(tx, c)
	})
	return translate(err)
}

// AddBatch stores the whole batch in one bbolt transaction.
func (s *Store) AddBatch(ctx context.Context, batch []contact.Contact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, c := range batch {
			if err := putNew(tx, c); err != nil {
				return err
			}
		}
		return nil
	})
	return translate(err)
}

// Update overwrites an existing record, keeping its insertion sequence.
func (s *Store) Update(ctx context.Context, c contact.Contact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketContacts)
		raw := bucket.Get([]byte(c.ID))
		if raw == nil {
			return &store.Error{Code: store.ErrorCodeNotFound, Field: "id", Value: c.ID, Message: "does not exist"}
		}
		var current envelope
		if err := json.Unmarshal(raw, &current); err != nil {
			return err
		}
		if err := checkUnique(bucket, c); err != nil {
			return err
		}
		return putEnvelope(bucket, envelope{Seq: current.Seq, Contact: c})
	})
	return translate(err)
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketContacts)
		if bucket.Get([]byte(id)) == nil {
			return &store.Error{Code: store.ErrorCodeNotFound, Field: "id", Value: id, Message: "does not exist"}
		}
		return bucket.Delete([]byte(id))
	})
	return translate(err)
}

// Get returns one contact by id.
func (s *Store) Get(ctx context.Context, id string) (contact.Contact, error) {
	if err := ctx.Err(); err != nil {
		return contact.Contact{}, err
	}
	var found *contact.Contact
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketContacts).Get([]byte(id))
		if raw == nil {
			return nil
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return err
		}
		found = &env.Contact
		return nil
	})
	if err != nil {
		return contact.Contact{}, translate(err)
	}
	if found == nil {
		return contact.Contact{}, &store.Error{Code: store.ErrorCodeNotFound, Field: "id", Value: id, Message: "does not exist"}
	}
	return *found, nil
}

// GetAll returns every record in insertion order.
func (s *Store) GetAll(ctx context.Context) ([]contact.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var envelopes []envelope
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketContacts).ForEach(func(_, raw []byte) error {
			var env envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				return err
			}
			envelopes = append(envelopes, env)
			return nil
		})
	})
	if err != nil {
		return nil, translate(err)
	}
	sort.Slice(envelopes, func(i, j int) bool { return envelopes[i].Seq < envelopes[j].Seq })
	contacts := make([]contact.Contact, len(envelopes))
	for i, env := range envelopes {
		contacts[i] = env.Contact
	}
	return contacts, nil
}

// Search filters the full record set in memory with the shared match rules.
func (s *Store) Search(ctx context.Context, q store.Query) ([]contact.Contact, error) {
	contacts, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if q.Empty() {
		return contacts, nil
	}
	matched := contacts[:0]
	for _, c := range contacts {
		if store.MatchText(c, q) {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

// Diagnostics counts logical rows by walking the stored records. There is
// no search projection here, so SearchRows stays zero.
func (s *Store) Diagnostics(ctx context.Context) (store.Diagnostics, error) {
	contacts, err := s.GetAll(ctx)
	if err != nil {
		return store.Diagnostics{}, err
	}
	diag := store.Diagnostics{Backend: s.Name(), SchemaVersion: formatVersion}
	diag.Rows.Contacts = len(contacts)
	for _, c := range contacts {
		diag.Rows.Persons += len(c.Persons)
		diag.Rows.Socials += len(c.Socials)
		diag.Rows.Genres += len(c.Genres)
	}
	return diag, nil
}

// ClearAll drops and recreates the contacts bucket.
func (s *Store) ClearAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketContacts); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketContacts)
		return err
	})
	return translate(err)
}

// RebuildSearchIndex is a no-op: the document backend matches against the
// canonical records directly.
func (s *Store) RebuildSearchIndex(ctx context.Context) error {
	return ctx.Err()
}

func putNew(tx *bolt.Tx, c contact.Contact) error {
	bucket := tx.Bucket(bucketContacts)
	if bucket.Get([]byte(c.ID)) != nil {
		return &store.Error{Code: store.ErrorCodeConflict, Field: "id", Value: c.ID, Message: "already exists"}
	}
	if err := checkUnique(bucket, c); err != nil {
		return err
	}
	seq, err := bucket.NextSequence()
	if err != nil {
		return err
	}
	return putEnvelope(bucket, envelope{Seq: seq, Contact: c})
}

func putEnvelope(bucket *bolt.Bucket, env envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return bucket.Put([]byte(env.Contact.ID), raw)
}

// checkUnique scans for another record with the same normalized email or
// website. Linear, but the fallback store only ever holds a single user's
// contact set.
func checkUnique(bucket *bolt.Bucket, c contact.Contact) error {
	email := contact.NormalizeEmail(c.Email)
	website := contact.NormalizeWebsite(c.Website)
	if email == "" && website == "" {
		return nil
	}
	return bucket.ForEach(func(key, raw []byte) error {
		if string(key) == c.ID {
			return nil
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return err
		}
		if email != "" && contact.NormalizeEmail(env.Contact.Email) == email {
			return &store.Error{Code: store.ErrorCodeConflict, Field: "email", Value: c.Email, Message: "already exists"}
		}
		if website != "" && contact.NormalizeWebsite(env.Contact.Website) == website {
			return &store.Error{Code: store.ErrorCodeConflict, Field: "website", Value: c.Website, Message: "already exists"}
		}
		return nil
	})
}

// translate keeps typed store errors intact and wraps everything else.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var typed *store.Error
	if errors.As(err, &typed) {
		return typed
	}
	return storeFailure(err)
}

func storeFailure(err error) error {
	return &store.Error{Code: store.ErrorCodeStore, Message: err.Error()}
}
