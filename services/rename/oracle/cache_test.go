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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachingOracle_HitSkipsNext(t *testing.T) {
	db, err := OpenCache("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	next := NewStaticOracle(map[string][]Candidate{"xb0": {{Name: "total", Confidence: 0.9}}})
	c := NewCachingOracle(next, db, "m1", 0, nil)

	first, err := c.Suggest(context.Background(), request("b0"))
	require.NoError(t, err)

	// A fresh request id must not change the key.
	req := request("b0")
	req.RequestID = "another"
	second, err := c.Suggest(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, next.Requests(), 1)
}

func TestCachingOracle_KeyIncludesModelAndBody(t *testing.T) {
	db, err := OpenCache("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	next := NewStaticOracle(nil)
	a := NewCachingOracle(next, db, "m1", time.Hour, nil)
	b := NewCachingOracle(next, db, "m2", time.Hour, nil)

	_, err = a.Suggest(context.Background(), request("b0"))
	require.NoError(t, err)
	_, err = b.Suggest(context.Background(), request("b0"))
	require.NoError(t, err)
	_, err = a.Suggest(context.Background(), request("b0", "b1"))
	require.NoError(t, err)

	assert.Len(t, next.Requests(), 3)
}

func TestCachingOracle_ErrorsAreNotCached(t *testing.T) {
	db, err := OpenCache("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	next := NewStaticOracle(nil)
	next.Err = errors.New("down")
	c := NewCachingOracle(next, db, "m1", 0, nil)

	_, err = c.Suggest(context.Background(), request("b0"))
	require.Error(t, err)

	next.Err = nil
	_, err = c.Suggest(context.Background(), request("b0"))
	require.NoError(t, err)
	assert.Len(t, next.Requests(), 2)
}

func TestOpenCache_OnDisk(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenCache(dir)
	require.NoError(t, err)

	next := NewStaticOracle(map[string][]Candidate{"xb0": {{Name: "total", Confidence: 1}}})
	_, err = NewCachingOracle(next, db, "m", 0, nil).Suggest(context.Background(), request("b0"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = OpenCache(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	again := NewStaticOracle(nil)
	resp, err := NewCachingOracle(again, db, "m", 0, nil).Suggest(context.Background(), request("b0"))
	require.NoError(t, err)
	assert.Equal(t, "total", resp.CandidatesFor("b0")[0].Name)
	assert.Empty(t, again.Requests())
}

func TestListCache(t *testing.T) {
	db, err := OpenCache("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	entries, err := ListCache(db)
	require.NoError(t, err)
	assert.Empty(t, entries)

	next := NewStaticOracle(map[string][]Candidate{"xb0": {{Name: "total", Confidence: 1}}})
	c := NewCachingOracle(next, db, "m", time.Hour, nil)
	_, err = c.Suggest(context.Background(), request("b0"))
	require.NoError(t, err)
	_, err = c.Suggest(context.Background(), request("b1"))
	require.NoError(t, err)

	entries, err = ListCache(db)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		require.NoError(t, e.Err)
		assert.Contains(t, e.Key, cacheKeyPrefix)
		assert.Positive(t, e.Size)
		assert.WithinDuration(t, time.Now().Add(time.Hour), e.ExpiresAt, time.Minute)
		require.NotNil(t, e.Response)
	}
}
