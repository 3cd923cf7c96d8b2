// Package cellindex remembers which cached responses were stored for an H3
// cell so a meeting change can drop them together.
package cellindex

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mohammed-shakir/bmlt-go/internal/cache"
	"github.com/mohammed-shakir/bmlt-go/internal/cache/keys"
)

type Index struct {
	store cache.Interface
}

func New(store cache.Interface) *Index {
	return &Index{store: store}
}

// Keys returns the response keys recorded for cell.
func (ix *Index) Keys(ctx context.Context, res int, cell string) ([]string, error) {
	key := keys.CellIndex(res, cell)

	rawMap, err := ix.store.MGet(ctx, []string{key})
	if err != nil {
		return nil, fmt.Errorf("cellindex MGET: %w", err)
	}
	raw, ok := rawMap[key]
	if !ok || len(raw) == 0 {
		return nil, nil
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("cellindex decode keys: %w", err)
	}
	return ids, nil
}

// Add appends responseKey to the cell's list. The list lives at least as long
// as ttl. Concurrent Adds for one cell may lose an entry; the response then
// just expires on its own TTL.
func (ix *Index) Add(ctx context.Context, res int, cell, responseKey string, ttl time.Duration) error {
	cur, err := ix.Keys(ctx, res, cell)
	if err != nil {
		return err
	}
	for _, k := range cur {
		if k == responseKey {
			return nil
		}
	}
	return ix.set(ctx, res, cell, append(cur, responseKey), ttl)
}

// Drop deletes every response recorded for cell plus the list itself and
// reports how many response keys were removed.
func (ix *Index) Drop(ctx context.Context, res int, cell string) (int, error) {
	cur, err := ix.Keys(ctx, res, cell)
	if err != nil {
		return 0, err
	}
	del := append(cur, keys.CellIndex(res, cell))
	if err := ix.store.Del(ctx, del...); err != nil {
		return 0, fmt.Errorf("cellindex DEL cell %s: %w", cell, err)
	}
	return len(cur), nil
}

func (ix *Index) set(ctx context.Context, res int, cell string, ids []string, ttl time.Duration) error {
	key := keys.CellIndex(res, cell)

	uniq := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}

	payload, err := json.Marshal(uniq)
	if err != nil {
		return fmt.Errorf("cellindex encode keys: %w", err)
	}
	if err := ix.store.Set(ctx, key, payload, ttl); err != nil {
		return fmt.Errorf("cellindex SET %q: %w", key, err)
	}
	return nil
}
