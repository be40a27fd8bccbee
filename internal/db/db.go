// Package db owns the bbolt database that backs scheduled tasks and the
// small amount of runtime state that must survive restarts.
package db

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var (
	BucketTasks    = []byte("tasks")
	BucketSurfaces = []byte("surfaces")
	BucketSettings = []byte("settings")
)

// DB wraps a bbolt database with the buckets this program uses.
type DB struct {
	bolt *bbolt.DB
}

// Open creates dir if needed and opens (or creates) the database inside it.
// All buckets exist after Open returns.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	path := filepath.Join(dir, "ddc.db")
	bolt, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = bolt.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{BucketTasks, BucketSurfaces, BucketSettings} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		bolt.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &DB{bolt: bolt}, nil
}

func (d *DB) Close() error {
	return d.bolt.Close()
}

// Update runs fn in a read-write transaction.
func (d *DB) Update(fn func(tx *bbolt.Tx) error) error {
	return d.bolt.Update(fn)
}

// View runs fn in a read-only transaction.
func (d *DB) View(fn func(tx *bbolt.Tx) error) error {
	return d.bolt.View(fn)
}

// PutJSON marshals v and stores it under key in bucket.
func (d *DB) PutJSON(bucket []byte, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

// GetJSON loads key from bucket into v. Returns false when the key is absent.
func (d *DB) GetJSON(bucket []byte, key string, v any) (bool, error) {
	var data []byte
	err := d.bolt.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucket).Get([]byte(key))
		if raw != nil {
			data = append([]byte(nil), raw...)
		}
		return nil
	})
	if err != nil || data == nil {
		return false, err
	}
	return true, json.Unmarshal(data, v)
}

// Delete removes key from bucket. Deleting an absent key is not an error.
func (d *DB) Delete(bucket []byte, key string) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}
