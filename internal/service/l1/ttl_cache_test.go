package l1_service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"sectorscan/internal/util"

	"github.com/stretchr/testify/require"
)

func TestTTLCache(t *testing.T) {
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	t.Run("expires after ttl", func(t *testing.T) {
		clock := util.NewManualClock(start)
		c := NewTTLCache[string, int](clock, time.Hour, 10)
		c.Set("a", 1)

		clock.Advance(59 * time.Minute)
		v, ok := c.Get("a")
		require.True(t, ok)
		require.Equal(t, 1, v)

		clock.Advance(time.Minute)
		_, ok = c.Get("a")
		require.False(t, ok)
		require.Equal(t, 0, c.Len())
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		clock := util.NewManualClock(start)
		c := NewTTLCache[string, []string](clock, 0, 0)
		c.Set("AUTO", []string{"X"})
		clock.Advance(1000 * time.Hour)
		v, ok := c.Get("AUTO")
		require.True(t, ok)
		require.Equal(t, []string{"X"}, v)
	})

	t.Run("evicts oldest at capacity", func(t *testing.T) {
		clock := util.NewManualClock(start)
		c := NewTTLCache[string, int](clock, time.Hour, 2)
		c.Set("a", 1)
		clock.Advance(time.Second)
		c.Set("b", 2)
		clock.Advance(time.Second)
		c.Set("c", 3)

		require.Equal(t, 2, c.Len())
		_, ok := c.Get("a")
		require.False(t, ok)
		_, ok = c.Get("c")
		require.True(t, ok)
	})

	t.Run("overwrite at capacity keeps others", func(t *testing.T) {
		clock := util.NewManualClock(start)
		c := NewTTLCache[string, int](clock, time.Hour, 2)
		c.Set("a", 1)
		c.Set("b", 2)
		c.Set("a", 3)
		require.Equal(t, 2, c.Len())
		v, _ := c.Get("a")
		require.Equal(t, 3, v)
	})

	t.Run("concurrent access", func(t *testing.T) {
		c := NewTTLCache[string, int](util.NewClock(), time.Hour, 0)
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("k%d", i%5)
				c.Set(key, i)
				c.Get(key)
			}(i)
		}
		wg.Wait()
		require.Equal(t, 5, c.Len())
	})
}
