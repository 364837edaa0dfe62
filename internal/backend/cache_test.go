package backend

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	locator string
	closed  bool
	reads   int
}

func (f *fakeFetcher) ReadCoordinate(dim string) ([]float64, error) {
	f.reads++
	return []float64{1, 2, 3}, nil
}

func (f *fakeFetcher) ReadBlock(variable string, start, count []int) ([]float64, error) {
	f.reads++
	n := 1
	for _, c := range count {
		n *= c
	}
	return make([]float64, n), nil
}

func (f *fakeFetcher) Close() error {
	f.closed = true
	return nil
}

func TestCacheReusesHandles(t *testing.T) {
	opens := 0
	c := NewCache(func(locator string) (Fetcher, error) {
		opens++
		return &fakeFetcher{locator: locator}, nil
	}, 4)
	defer c.Close()

	h1, err := c.Get("a.nc")
	require.NoError(t, err)
	h2, err := c.Get("a.nc")
	require.NoError(t, err)
	require.Same(t, h1, h2)
	require.Equal(t, 1, opens)
}

func TestCacheEvictsLRU(t *testing.T) {
	var opened []*fakeFetcher
	c := NewCache(func(locator string) (Fetcher, error) {
		f := &fakeFetcher{locator: locator}
		opened = append(opened, f)
		return f, nil
	}, 2)
	defer c.Close()

	_, err := c.Get("a")
	require.NoError(t, err)
	_, err = c.Get("b")
	require.NoError(t, err)
	_, err = c.Get("a") // refresh a, making b the LRU entry
	require.NoError(t, err)
	_, err = c.Get("c")
	require.NoError(t, err)

	require.Equal(t, 2, c.Len())
	require.False(t, opened[0].closed, "a should still be open")
	require.True(t, opened[1].closed, "b should have been evicted")
}

func TestCacheOpenError(t *testing.T) {
	c := NewCache(func(locator string) (Fetcher, error) {
		return nil, fmt.Errorf("no such file")
	}, 2)
	defer c.Close()
	_, err := c.Get("missing")
	require.Error(t, err)
	require.Equal(t, 0, c.Len())
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache(func(locator string) (Fetcher, error) {
		return &fakeFetcher{locator: locator}, nil
	}, 8)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := c.Get(fmt.Sprintf("file-%d", i%4))
			if err != nil {
				t.Error(err)
				return
			}
			if _, err := h.ReadCoordinate("time"); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 4, c.Len())
}

func TestCacheClose(t *testing.T) {
	var f *fakeFetcher
	c := NewCache(func(locator string) (Fetcher, error) {
		f = &fakeFetcher{locator: locator}
		return f, nil
	}, 2)
	_, err := c.Get("a")
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.True(t, f.closed)
	_, err = c.Get("a")
	require.Error(t, err)
}
