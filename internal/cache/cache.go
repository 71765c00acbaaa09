// Package cache stores connection metadata with per-entry expiry. It is a
// cache, not a source of truth: absent or expired entries mean "unknown".
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DefaultTTL matches the dashboard's retention window for connection metadata.
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned for keys that are absent or expired.
var ErrNotFound = errors.New("cache: entry not found")

var bucketMetadata = []byte("metadata")

type entry struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt int64           `json:"expires_at"`
}

// Store is a bbolt-backed key-value cache. Entries read after their deadline
// are removed and reported as absent.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open creates or opens the cache file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketMetadata)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores value under key for ttl. A non-positive ttl means DefaultTTL.
func (s *Store) Put(key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	data, err := json.Marshal(entry{Value: raw, ExpiresAt: s.now().Add(ttl).UnixMilli()})
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMetadata).Put([]byte(key), data)
	})
}

// Get unmarshals the entry for key into out (which may be nil to probe
// presence only). Expired or corrupt entries are deleted and reported as
// ErrNotFound.
func (s *Store) Get(key string, out any) error {
	expired := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMetadata)
		data := b.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}

		var e entry
		if err := json.Unmarshal(data, &e); err != nil {
			expired = true
			return b.Delete([]byte(key))
		}
		if s.now().UnixMilli() > e.ExpiresAt {
			expired = true
			return b.Delete([]byte(key))
		}

		if out == nil {
			return nil
		}
		return json.Unmarshal(e.Value, out)
	})
	if err != nil {
		return err
	}
	if expired {
		return ErrNotFound
	}
	return nil
}

// Delete removes key. Unknown keys are a no-op.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMetadata).Delete([]byte(key))
	})
}
