// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package incrementer

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SeisFab/sf-backbone/internal/repository"
	"github.com/SeisFab/sf-backbone/internal/service"
)

func newTestStore(t *testing.T, path string) *repository.CounterStore {
	t.Helper()
	conn, err := repository.Connect(path)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	store, err := repository.NewCounterStore(conn, 0, 1)
	require.NoError(t, err)
	return store
}

func TestNextIssuesContiguousBlocks(t *testing.T) {
	store := newTestStore(t, filepath.Join(t.TempDir(), "inc.sqlite3"))

	ids, err := store.Next("pick", 3)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, ids)

	ids, err = store.Next("pick", 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 5}, ids)

	// Independent names run independent counters.
	ids, err = store.Next("origin", 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, ids)
}

func TestConcurrentCallersGetDistinctIds(t *testing.T) {
	store := newTestStore(t, filepath.Join(t.TempDir(), "inc.sqlite3"))

	const callers = 3
	results := make([][]uint64, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids, err := store.Next("pick", 1)
			assert.NoError(t, err)
			results[i] = ids
		}(i)
	}
	wg.Wait()

	seen := map[uint64]bool{}
	for _, block := range results {
		require.Len(t, block, 1)
		assert.False(t, seen[block[0]], "id issued twice")
		seen[block[0]] = true
	}
}

func TestMonotoneAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inc.sqlite3")

	store := newTestStore(t, path)
	ids, err := store.Next("pick", 3)
	require.NoError(t, err)
	highest := ids[len(ids)-1]

	// Simulated restart: a fresh store on the same file.
	reopened := newTestStore(t, path)
	ids, err = reopened.Next("pick", 1)
	require.NoError(t, err)
	assert.Greater(t, ids[0], highest)
}

func TestCustomIncrementAndInitialValue(t *testing.T) {
	conn, err := repository.Connect(filepath.Join(t.TempDir(), "inc.sqlite3"))
	require.NoError(t, err)
	defer conn.Close()
	store, err := repository.NewCounterStore(conn, 1000, 10)
	require.NoError(t, err)

	ids, err := store.Next("amplitude", 3)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1010, 1020, 1030}, ids)
}

func TestServiceHandle(t *testing.T) {
	store := newTestStore(t, filepath.Join(t.TempDir(), "inc.sqlite3"))
	svc := NewService(store, zerolog.Nop())

	resp := svc.Handle(&Request{Item: "pick", Count: 2, Identifier: 11}).(*Response)
	assert.Equal(t, service.Success, resp.ReturnCode)
	assert.EqualValues(t, 11, resp.Identifier)
	assert.Equal(t, []uint64{1, 2}, resp.Values)

	resp = svc.Handle(&Request{Item: "", Identifier: 12}).(*Response)
	assert.Equal(t, service.InvalidMessage, resp.ReturnCode)

	items := svc.Handle(&ItemsRequest{Identifier: 13}).(*ItemsResponse)
	assert.Equal(t, service.Success, items.ReturnCode)
	assert.Equal(t, []string{"pick"}, items.Items)
}

func TestUnavailableWhenStoreClosed(t *testing.T) {
	conn, err := repository.Connect(filepath.Join(t.TempDir(), "inc.sqlite3"))
	require.NoError(t, err)
	store, err := repository.NewCounterStore(conn, 0, 1)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	svc := NewService(store, zerolog.Nop())
	resp := svc.Handle(&Request{Item: "pick"}).(*Response)
	assert.Equal(t, service.Unavailable, resp.ReturnCode)
	assert.False(t, svc.Healthy())
}
