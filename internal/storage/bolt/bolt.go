package bolt

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/luminapp/lumin/internal/storage"
	"go.etcd.io/bbolt"
)

const (
	bucketUsers        = "users"
	bucketUserEmails   = "user_emails" // email -> user ID index
	bucketTasks        = "tasks"       // nested bucket per user ID
	bucketSettings     = "settings"
	bucketEntitlements = "entitlements"
	bucketSessions     = "focus_sessions" // nested bucket per user ID
)

// Store implements the storage.Store interface using bbolt.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store.
func Open(path string) (*Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return storage.EnsureDir(dir)
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{
			[]byte(bucketUsers),
			[]byte(bucketUserEmails),
			[]byte(bucketTasks),
			[]byte(bucketSettings),
			[]byte(bucketEntitlements),
			[]byte(bucketSessions),
		}

		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}

		return nil
	})
}

// Close closes the underlying store database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Users returns the user store.
func (s *Store) Users() storage.UserStore { return &userStore{db: s.db} }

// Tasks returns the task store.
func (s *Store) Tasks() storage.TaskStore { return &taskStore{db: s.db} }

// Settings returns the settings store.
func (s *Store) Settings() storage.SettingsStore { return &settingsStore{db: s.db} }

// Entitlements returns the entitlement store.
func (s *Store) Entitlements() storage.EntitlementStore { return &entitlementStore{db: s.db} }

// FocusSessions returns the focus session store.
func (s *Store) FocusSessions() storage.FocusSessionStore { return &sessionStore{db: s.db} }

func marshal(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return data, nil
}

func unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}
	return nil
}

// userBucket returns the nested per-user bucket inside parent, creating it
// when create is true. Returns nil when the bucket does not exist.
func userBucket(tx *bbolt.Tx, parent, userID string, create bool) (*bbolt.Bucket, error) {
	root := tx.Bucket([]byte(parent))
	if root == nil {
		return nil, fmt.Errorf("%s bucket not found", parent)
	}
	if create {
		return root.CreateBucketIfNotExists([]byte(userID))
	}
	return root.Bucket([]byte(userID)), nil
}
