package blobstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
)

// Bolt stores objects gob-encoded in one bucket of a bolt database file.
type Bolt struct {
	db      *bolt.DB
	bucket  []byte
	baseURL string
}

type boltRecord struct {
	ContentType string
	Data        []byte
	Created     time.Time
}

// OpenBolt opens or creates the database at path and ensures the bucket
// exists. Objects are served under baseURL + ResultsPath.
func OpenBolt(path, bucket, baseURL string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return &Bolt{db: db, bucket: []byte(bucket), baseURL: baseURL}, nil
}

func (s *Bolt) Exists(_ context.Context, key string) (bool, error) {
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(s.bucket).Get([]byte(key)) != nil
		return nil
	})
	return ok, err
}

func (s *Bolt) Put(_ context.Context, key string, data []byte, contentType string) error {
	var buf bytes.Buffer
	rec := boltRecord{ContentType: contentType, Data: data, Created: time.Now().UTC()}
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), buf.Bytes())
	})
}

func (s *Bolt) Get(_ context.Context, key string) (*Object, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// v is only valid inside the transaction.
		raw = make([]byte, len(v))
		copy(raw, v)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var rec boltRecord
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", key, err)
	}
	return &Object{Key: key, ContentType: rec.ContentType, Data: rec.Data, Created: rec.Created}, nil
}

func (s *Bolt) URL(key string) string { return resultsURL(s.baseURL, key) }

// Close releases the database file lock.
func (s *Bolt) Close() error { return s.db.Close() }
