package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/viniciushammett/go-log-stream-detector/internal/model"
)

var bAlerts = []byte("alerts")

// largura fixa: ordem dos bytes = ordem de deteccao
const keyLayout = "20060102T150405.000000000Z"

type Store struct{ db *bolt.DB }

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bAlerts)
		return e
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func key(a model.AlertRecord) []byte {
	return []byte(a.DetectedAt.UTC().Format(keyLayout) + "/" + a.ID)
}

// -------- Alertas --------

// Accept persists one alert; it makes Store a durable report sink.
func (s *Store) Accept(a model.AlertRecord) error {
	j, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bAlerts).Put(key(a), j)
	})
}

// List returns up to limit alerts, newest first. limit <= 0 means all.
func (s *Store) List(limit int) ([]model.AlertRecord, error) {
	out := []model.AlertRecord{}
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bAlerts).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var a model.AlertRecord
			if json.Unmarshal(v, &a) != nil {
				continue
			}
			out = append(out, a)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// Iterate walks alerts oldest first until fn returns false.
func (s *Store) Iterate(fn func(a model.AlertRecord) bool) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bAlerts).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var a model.AlertRecord
			if json.Unmarshal(v, &a) != nil {
				continue
			}
			if !fn(a) {
				break
			}
		}
		return nil
	})
}

func (s *Store) Count() (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bAlerts).Stats().KeyN
		return nil
	})
	return n, err
}
