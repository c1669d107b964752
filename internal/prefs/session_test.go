package prefs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/roster"
)

func TestRedisSessionExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()
	s := NewRedisSession(client, time.Minute)

	var got map[string]int
	ok, err := s.Load(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, "k", map[string]int{"a": 1}))
	ok, err = s.Load(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, got["a"])

	mr.FastForward(2 * time.Minute)
	ok, err = s.Load(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemorySessionSlidingExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	s := NewMemorySession(time.Minute)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Save(ctx, "k", 5))
	var v int
	now = now.Add(50 * time.Second)
	ok, _ := s.Load(ctx, "k", &v)
	assert.True(t, ok)
	now = now.Add(50 * time.Second)
	ok, _ = s.Load(ctx, "k", &v)
	assert.True(t, ok, "loading extends the lifetime")
	now = now.Add(2 * time.Minute)
	ok, _ = s.Load(ctx, "k", &v)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, "k", 6))
	require.NoError(t, s.Clear(ctx, "k"))
	ok, _ = s.Load(ctx, "k", &v)
	assert.False(t, ok)
}

func TestTableStateMerge(t *testing.T) {
	ctx := context.Background()
	ts := NewTableState(NewMemorySession(0))

	q, err := ts.Load(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, roster.FilterAll, q.Filter)
	assert.Equal(t, 10, q.PerPage)

	q, err = ts.Merge(ctx, 1, 2, func(q *roster.Query) {
		q.Filter = roster.FilterSelected
		q.Selected = []int64{4}
		q.Sort = "points"
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, q.Selected)

	q, err = ts.Load(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, roster.FilterSelected, q.Filter)
	assert.Equal(t, "points", q.Sort)
	assert.Nil(t, q.Selected)

	other, err := ts.Load(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, "lastname", other.Sort, "state is per checkmark")

	_, err = ts.Merge(ctx, 1, 2, func(q *roster.Query) { q.Sort = "password" })
	assert.ErrorIs(t, err, checkmark.ErrInvalidArgument)
}
