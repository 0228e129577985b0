// Package storage persists the cloud session and the last-known device
// snapshots in a bbolt file, so a restart can resume without a fresh
// login and publish state before the first poll completes.
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	sessionBucket = []byte("session")
	stateBucket   = []byte("state")
)

const sessionKey = "cloud"

// Store wraps the bbolt database.
type Store struct {
	db *bbolt.DB
}

// Open creates or opens the database file.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{sessionBucket, stateBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveSession persists a session value (any JSON-encodable struct).
func (s *Store) SaveSession(session any) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucket).Put([]byte(sessionKey), data)
	})
}

// LoadSession restores a previously saved session into out. The returned
// bool reports whether one was stored.
func (s *Store) LoadSession(out any) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(sessionBucket).Get([]byte(sessionKey))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, out)
	})
	return found, err
}

// ClearSession removes the stored session, forcing a fresh login.
func (s *Store) ClearSession() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucket).Delete([]byte(sessionKey))
	})
}

// SaveSnapshot stores a device's last raw state snapshot.
func (s *Store) SaveSnapshot(sn string, raw map[string]any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshal snapshot for %s: %w", sn, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(stateBucket).Put([]byte(sn), data)
	})
}

// LoadSnapshot returns a device's stored snapshot, nil when none exists.
func (s *Store) LoadSnapshot(sn string) (map[string]any, error) {
	var raw map[string]any
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(stateBucket).Get([]byte(sn))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &raw)
	})
	return raw, err
}

// Snapshots lists the serials with stored snapshots.
func (s *Store) Snapshots() ([]string, error) {
	var sns []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(stateBucket).ForEach(func(k, _ []byte) error {
			sns = append(sns, string(k))
			return nil
		})
	})
	return sns, err
}

// PruneSnapshots removes snapshots for serials not in keep, so devices
// that left the account do not linger in the file. Returns the pruned
// serials.
func (s *Store) PruneSnapshots(keep []string) ([]string, error) {
	known, err := s.Snapshots()
	if err != nil {
		return nil, err
	}

	keepSet := make(map[string]struct{}, len(keep))
	for _, sn := range keep {
		keepSet[sn] = struct{}{}
	}

	var pruned []string
	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(stateBucket)
		for _, sn := range known {
			if _, ok := keepSet[sn]; ok {
				continue
			}
			if err := bucket.Delete([]byte(sn)); err != nil {
				return err
			}
			pruned = append(pruned, sn)
		}
		return nil
	})
	return pruned, err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
