package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func TestGetSetAndExpiry(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New("facts", WithDefaultTTL(time.Hour), WithClock(clk.Now))

	c.Set("AAPL", []byte("payload"))
	got, ok := c.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, "payload", string(got))

	clk.Advance(2 * time.Hour)
	_, ok = c.Get("AAPL")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestZeroTTLNeverExpires(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	c := New("x", WithClock(clk.Now))
	c.SetWithTTL("k", []byte("v"), 0, nil)
	clk.Advance(24 * 365 * time.Hour)
	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestMaxSizeEvictsOldest(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New("tickers", WithMaxSize(2), WithClock(clk.Now))

	c.Set("a", []byte("1"))
	clk.Advance(time.Second)
	c.Set("b", []byte("2"))
	clk.Advance(time.Second)
	c.Set("c", []byte("3"))

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)

	// Overwriting an existing key does not evict.
	c.Set("b", []byte("22"))
	assert.Equal(t, 2, c.Len())
}

func TestDeleteAndClear(t *testing.T) {
	c := New("x")
	c.Set("a", []byte("1"))
	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))

	c.Set("b", []byte("2"))
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestSaveAndLoadFile(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	path := filepath.Join(t.TempDir(), "sub", "submissions.msgpack")

	src := New("submissions", WithClock(clk.Now))
	src.SetWithTTL("fresh", []byte(`{"cik":"320193"}`), time.Hour, map[string]string{"endpoint": "submissions"})
	src.SetWithTTL("stale", []byte("old"), time.Minute, nil)
	clk.Advance(2 * time.Minute)
	require.NoError(t, src.SaveToFile(path))

	dst := New("submissions", WithClock(clk.Now))
	n, err := dst.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, ok := dst.Get("fresh")
	require.True(t, ok)
	assert.JSONEq(t, `{"cik":"320193"}`, string(got))
}

func TestLoadMissingFile(t *testing.T) {
	n, err := New("x").LoadFromFile(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Zero(t, n)
}
