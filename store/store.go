// Package store wraps go.etcd.io/bbolt as the durable, sorted byte-keyspace
// adapter the rest of the engine builds on: one bucket holds the whole
// keyspace (documents, field-index entries, and geo-index entries share it,
// distinguished only by key prefix), every mutation goes through a single
// Update transaction so batches commit atomically, and prefix scans are
// Cursor.Seek walks bounded by the next key outside the prefix.
package store

import (
	"bytes"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("keyspace")

// Store is the durable key-byte-slice mapping the engine is built on.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the bbolt file at path and ensures the
// single keyspace bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value stored at key, and whether it was present. The
// returned slice is a copy, safe to retain past the call.
func (s *Store) Get(key []byte) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get(key)
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// Put writes a single key/value pair in its own atomic transaction.
func (s *Store) Put(key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(key, value)
	})
}

// Delete removes a single key in its own atomic transaction. Deleting an
// absent key is a no-op, not an error.
func (s *Store) Delete(key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete(key)
	})
}

// Op is one write in a Batch: a nil Value means delete, any other value
// (including an empty, non-nil slice) means put.
type Op struct {
	Key   []byte
	Value []byte
}

// Batch applies every op inside a single bbolt transaction: either all of
// them land, or none do, and no partial result is ever visible on restart.
func (s *Store) Batch(ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		for _, op := range ops {
			if op.Value == nil {
				if err := b.Delete(op.Key); err != nil {
					return err
				}
				continue
			}
			if err := b.Put(op.Key, op.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Entry is one key/value pair returned by a scan.
type Entry struct {
	Key   []byte
	Value []byte
}

// ScanPrefix walks every key with the given prefix in forward lexicographic
// order, calling fn with a copy of each key/value pair. Returning a non-nil
// error from fn stops the scan and propagates the error.
func (s *Store) ScanPrefix(prefix []byte, fn func(Entry) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			entry := Entry{
				Key:   append([]byte(nil), k...),
				Value: append([]byte(nil), v...),
			}
			if err := fn(entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// CollectPrefix is a convenience wrapper over ScanPrefix that buffers every
// matching entry instead of streaming through a callback.
func (s *Store) CollectPrefix(prefix []byte) ([]Entry, error) {
	var out []Entry
	err := s.ScanPrefix(prefix, func(e Entry) error {
		out = append(out, e)
		return nil
	})
	return out, err
}

// ClearPrefix deletes every key under prefix atomically and returns how many
// keys were removed.
func (s *Store) ClearPrefix(prefix []byte) (int, error) {
	var n int
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		c := b.Cursor()
		var toDelete [][]byte
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = len(toDelete)
		return nil
	})
	return n, err
}

// ClearAll wipes the entire keyspace, fenced inside one transaction.
func (s *Store) ClearAll() (int, error) {
	return s.ClearPrefix(nil)
}
