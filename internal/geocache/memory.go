package geocache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/bmlt-go/pkg/bmlt"
)

// Memory is a bounded in-process cache.
type Memory struct {
	lru *lru.Cache[string, bmlt.GeocodeResult]
}

func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[string, bmlt.GeocodeResult](size)
	if err != nil {
		return nil, err
	}
	return &Memory{lru: c}, nil
}

func (m *Memory) GetGeocode(_ context.Context, key string) (bmlt.GeocodeResult, bool, error) {
	res, ok := m.lru.Get(key)
	return res, ok, nil
}

func (m *Memory) PutGeocode(_ context.Context, key string, res bmlt.GeocodeResult) error {
	m.lru.Add(key, res)
	return nil
}

func (m *Memory) Len() int { return m.lru.Len() }

// Tiered reads the front cache first and falls back to the back one,
// copying back hits forward. Writes go to both.
type Tiered struct {
	Front bmlt.GeocodeCache
	Back  bmlt.GeocodeCache
}

func (t Tiered) GetGeocode(ctx context.Context, key string) (bmlt.GeocodeResult, bool, error) {
	if res, ok, err := t.Front.GetGeocode(ctx, key); err == nil && ok {
		return res, true, nil
	}
	res, ok, err := t.Back.GetGeocode(ctx, key)
	if err != nil || !ok {
		return bmlt.GeocodeResult{}, false, err
	}
	_ = t.Front.PutGeocode(ctx, key, res)
	return res, true, nil
}

func (t Tiered) PutGeocode(ctx context.Context, key string, res bmlt.GeocodeResult) error {
	_ = t.Front.PutGeocode(ctx, key, res)
	return t.Back.PutGeocode(ctx, key, res)
}
