// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// cacheDefaultTTL is the default lifetime of a cached response.
const cacheDefaultTTL = 7 * 24 * time.Hour

// cacheKeyPrefix is prepended to the request hash. Versioned so the
// encoding can change without collisions.
const cacheKeyPrefix = "humanify/oracle/v1/"

var errCacheMiss = errors.New("cache miss")

// OpenCache opens a BadgerDB for CachingOracle. An empty dir opens an
// in-memory database.
func OpenCache(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening oracle cache: %w", err)
	}
	return db, nil
}

// CachingOracle persists responses of another Oracle in BadgerDB.
//
// Description:
//
//	Responses are keyed by the SHA-256 of the request body and the model
//	name, so an unchanged batch is answered from disk on the next run.
//	Entries expire through Badger's native TTL. Cache failures are logged
//	and never fail the call.
//
// Thread Safety: CachingOracle is safe for concurrent use.
type CachingOracle struct {
	next   Oracle
	db     *badger.DB
	model  string
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachingOracle wraps next with a cache in db. The caller owns db.
//
// Inputs:
//   - next: The oracle consulted on a miss. Must not be nil.
//   - db: Opened BadgerDB. Must not be nil.
//   - model: Model name mixed into the key.
//   - ttl: Entry lifetime. Zero uses 7 days.
//   - logger: May be nil.
func NewCachingOracle(next Oracle, db *badger.DB, model string, ttl time.Duration, logger *slog.Logger) *CachingOracle {
	if next == nil || db == nil {
		panic("NewCachingOracle: next and db must not be nil")
	}
	if ttl <= 0 {
		ttl = cacheDefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingOracle{next: next, db: db, model: model, ttl: ttl, logger: logger}
}

// Suggest implements Oracle.
func (c *CachingOracle) Suggest(ctx context.Context, req *Request) (*Response, error) {
	key, err := c.key(req)
	if err != nil {
		return nil, fmt.Errorf("oracle cache key: %w", err)
	}

	resp, err := c.load(key)
	switch {
	case err != nil:
		oracleCacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("oracle cache: load failed", slog.String("error", err.Error()))
	case resp != nil:
		oracleCacheLookups.WithLabelValues("hit").Inc()
		c.logger.Debug("oracle cache: hit", slog.String("request_id", req.RequestID))
		return resp, nil
	default:
		oracleCacheLookups.WithLabelValues("miss").Inc()
	}

	resp, err = c.next.Suggest(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := c.save(key, resp); err != nil {
		c.logger.Warn("oracle cache: save failed", slog.String("error", err.Error()))
	}
	return resp, nil
}

func (c *CachingOracle) key(req *Request) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	h := sha256.New()
	h.Write([]byte(c.model))
	h.Write([]byte{0})
	h.Write(body)
	return []byte(cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))), nil
}

// load returns (nil, nil) on a miss.
func (c *CachingOracle) load(key []byte) (*Response, error) {
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errCacheMiss
		}
		if err != nil {
			return fmt.Errorf("get cache key: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, errCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode cached response: %w", err)
	}
	return &resp, nil
}

func (c *CachingOracle) save(key []byte, resp *Response) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, raw).WithTTL(c.ttl))
	})
}

// CacheEntry is one cached response as stored on disk.
type CacheEntry struct {
	Key string
	// ExpiresAt is zero when the entry has no TTL.
	ExpiresAt time.Time
	Size      int
	Response  *Response
	// Err is set when the value could not be read or decoded.
	Err error
}

// ListCache returns every oracle cache entry in db in key order.
func ListCache(db *badger.DB) ([]CacheEntry, error) {
	var entries []CacheEntry
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(cacheKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			e := CacheEntry{Key: string(item.KeyCopy(nil))}
			if exp := item.ExpiresAt(); exp > 0 {
				e.ExpiresAt = time.Unix(int64(exp), 0)
			}

			raw, err := item.ValueCopy(nil)
			if err != nil {
				e.Err = fmt.Errorf("copy value: %w", err)
				entries = append(entries, e)
				continue
			}
			e.Size = len(raw)

			var resp Response
			if err := json.Unmarshal(raw, &resp); err != nil {
				e.Err = fmt.Errorf("decode: %w", err)
			} else {
				e.Response = &resp
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing oracle cache: %w", err)
	}
	return entries, nil
}
