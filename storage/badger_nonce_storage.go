package storage

import (
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// BadgerNonceStore implements model.NonceStore on an embedded badger
// database. Entries carry a TTL; concurrent inserts of the same nonce are
// serialized by badger's transaction conflict detection.
type BadgerNonceStore struct {
	db *badger.DB
}

type nonceRecord struct {
	ConsumerKey string    `msgpack:"c"`
	Nonce       string    `msgpack:"n"`
	Expires     time.Time `msgpack:"e"`
}

// NewBadgerNonceStore opens (or creates) a badger database in dir
func NewBadgerNonceStore(dir string) (*BadgerNonceStore, error) {
	if dir == "" {
		return nil, errors.New("badger nonce store: no directory configured")
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, errors.Wrap(err, "could not open badger database")
	}
	return &BadgerNonceStore{db: db}, nil
}

// Close closes the underlying database
func (s *BadgerNonceStore) Close() error {
	return s.db.Close()
}

func nonceKey(consumerKey, nonce string) []byte {
	return []byte("nonce:" + consumerKey + "\x00" + nonce)
}

// Insert implements the model.NonceStore interface
func (s *BadgerNonceStore) Insert(consumerKey, nonce string, expires time.Time) (bool, error) {
	ttl := time.Until(expires)
	if ttl <= 0 {
		ttl = time.Second
	}
	data, err := msgpack.Marshal(
		nonceRecord{
			ConsumerKey: consumerKey,
			Nonce:       nonce,
			Expires:     expires,
		},
	)
	if err != nil {
		return false, errors.WithStack(err)
	}
	key := nonceKey(consumerKey, nonce)
	inserted := false
	err = s.db.Update(
		func(txn *badger.Txn) error {
			item, err := txn.Get(key)
			if err == nil {
				var rec nonceRecord
				if err = item.Value(
					func(v []byte) error {
						return msgpack.Unmarshal(v, &rec)
					},
				); err != nil {
					return err
				}
				if rec.Expires.After(time.Now()) {
					return nil
				}
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			inserted = true
			return txn.SetEntry(badger.NewEntry(key, data).WithTTL(ttl))
		},
	)
	if errors.Is(err, badger.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, errors.WithStack(err)
	}
	return inserted, nil
}
