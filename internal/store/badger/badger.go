// Package badger implements a BadgerDB-backed persistent file store.
//
// Records survive restarts, which lets long benchmark campaigns reuse seeded
// payloads. BadgerDB holds an exclusive directory lock, so this backend is
// single-process: it serves the shared-pool concurrency mode only.
//
// Key schema:
//
//	f:<name>  file content
//	s:<name>  insertion sequence assigned to the name
//	o:<seq>   name, keyed by zero-padded sequence for ordered scans
//	m:seq     next insertion sequence
package badger

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"filestorm/internal/store"
)

const (
	contentPrefix = "f:"
	seqPrefix     = "s:"
	orderPrefix   = "o:"
	seqCounterKey = "m:seq"
)

type BadgerStore struct {
	db *badger.DB

	// mu serializes mutations. Badger transactions are optimistic; a single
	// writer lock avoids conflict retries entirely, the same coarse-grained
	// discipline the listing index needs anyway.
	mu sync.RWMutex
}

// Open opens (creating if needed) a store at dir.
func Open(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(orderPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			name, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			names = append(names, string(name))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	return names, nil
}

func (s *BadgerStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(contentPrefix + name))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	return data, nil
}

func (s *BadgerStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		// An overwrite keeps the name's original position in the listing.
		if _, err := txn.Get([]byte(seqPrefix + name)); err == nil {
			return txn.Set([]byte(contentPrefix+name), data)
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		seq, err := nextSeq(txn)
		if err != nil {
			return err
		}
		ordKey := fmt.Sprintf("%s%020d", orderPrefix, seq)

		if err := txn.Set([]byte(contentPrefix+name), data); err != nil {
			return err
		}
		if err := txn.Set([]byte(seqPrefix+name), []byte(ordKey)); err != nil {
			return err
		}
		return txn.Set([]byte(ordKey), []byte(name))
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	return nil
}

func (s *BadgerStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(seqPrefix + name))
		if err != nil {
			return err
		}
		ordKey, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		if err := txn.Delete([]byte(contentPrefix + name)); err != nil {
			return err
		}
		if err := txn.Delete([]byte(seqPrefix + name)); err != nil {
			return err
		}
		return txn.Delete(ordKey)
	})
	if err == badger.ErrKeyNotFound {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func nextSeq(txn *badger.Txn) (uint64, error) {
	var seq uint64
	item, err := txn.Get([]byte(seqCounterKey))
	switch err {
	case nil:
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return 0, err
		}
		seq = binary.BigEndian.Uint64(raw)
	case badger.ErrKeyNotFound:
		seq = 0
	default:
		return 0, err
	}

	var next [8]byte
	binary.BigEndian.PutUint64(next[:], seq+1)
	if err := txn.Set([]byte(seqCounterKey), next[:]); err != nil {
		return 0, err
	}
	return seq, nil
}
