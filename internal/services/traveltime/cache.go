// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package traveltime

import (
	"container/list"
	"fmt"
	"math"
	"sync"
)

// tableCache memoizes computed travel-time tables per quantized source
// position and station set. Sources within ~100 m share an entry; beyond
// the capacity the least recently used table is dropped.
type tableCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List
}

type tableEntry struct {
	key   string
	table []Entry
}

// sourceQuantum is the quantization step in degrees (~100 m).
const sourceQuantum = 1e-3

func newTableCache(capacity int) *tableCache {
	if capacity <= 0 {
		capacity = 256
	}
	return &tableCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// key quantizes the source and fingerprints the station set.
func (c *tableCache) key(lat, lon, depth float64, stations []Station) string {
	qlat := math.Round(lat / sourceQuantum)
	qlon := math.Round(lon / sourceQuantum)
	qdep := math.Round(depth / 100)
	fp := ""
	for _, st := range stations {
		fp += st.Name + ";"
	}
	return fmt.Sprintf("%g/%g/%g/%s", qlat, qlon, qdep, fp)
}

// get returns the cached table, or computes and stores one.
func (c *tableCache) get(key string, compute func() []Entry) []Entry {
	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		table := el.Value.(*tableEntry).table
		c.mu.Unlock()
		return table
	}
	c.mu.Unlock()

	table := compute()

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		return el.Value.(*tableEntry).table
	}
	c.entries[key] = c.order.PushFront(&tableEntry{key: key, table: table})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*tableEntry).key)
	}
	return table
}
