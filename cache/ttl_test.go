package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTTLExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewTTLWithClock[string](time.Minute, clock.now)

	c.Set("a", "1")
	c.SetWithTTL("b", "2", 5*time.Minute)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	clock.advance(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok, "a should have expired")
	v, ok = c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
	assert.Equal(t, 1, c.Len(), "expired entry is dropped on read")
}

func TestTTLDeleteFunc(t *testing.T) {
	c := NewTTL[int](time.Hour)
	c.Set("x:1", 1)
	c.Set("x:2", 2)
	c.Set("y:1", 3)

	removed := c.DeleteFunc(func(k string) bool { return k[0] == 'x' })
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())
}

func TestTTLSweepOnWrite(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewTTLWithClock[int](time.Minute, clock.now)
	c.Set("old", 1)

	clock.advance(time.Hour)
	c.Set("new", 2)

	assert.Equal(t, 1, c.Len(), "expired entry should be swept by the write")
}
