package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiqty/ari/internal/entry"
)

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, "ari:test:queue")
}

func mustAddEnd(t *testing.T, ctx context.Context, s *RedisStore, eid string) entry.Entry {
	t.Helper()
	e := entry.New(eid, nil)
	require.NoError(t, s.AddEnd(ctx, e))
	return e
}

func TestAddAndGetByAid(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	e := mustAddEnd(t, ctx, s, "track-a")

	got, ok, err := s.GetByAid(ctx, e.Aid)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "track-a", got.Eid)
}

func TestDuplicateAidRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	e := entry.New("track-a", nil)
	require.NoError(t, s.AddEnd(ctx, e))
	err := s.AddEnd(ctx, e)
	require.Error(t, err)
}

func TestLengthTracksOrderList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n, err := s.Length(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	mustAddEnd(t, ctx, s, "a")
	mustAddEnd(t, ctx, s, "b")

	n, err = s.Length(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestClearRemovesBothKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mustAddEnd(t, ctx, s, "a")
	require.NoError(t, s.Clear(ctx))

	n, err := s.Length(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, ok, err := s.GetByIndex(ctx, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPopOrderMatchesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := mustAddEnd(t, ctx, s, "a")
	b := mustAddEnd(t, ctx, s, "b")

	first, ok, err := s.PopStart(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a.Aid, first.Aid)

	last, ok, err := s.PopEnd(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, b.Aid, last.Aid)

	_, ok, err = s.PopStart(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPopRemovesInfoEntry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := mustAddEnd(t, ctx, s, "a")
	_, ok, err := s.PopStart(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = s.GetByAid(ctx, a.Aid)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveDeletesOneOccurrence(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := mustAddEnd(t, ctx, s, "a")
	mustAddEnd(t, ctx, s, "b")

	removed, err := s.Remove(ctx, a.Aid)
	require.NoError(t, err)
	assert.True(t, removed)

	n, err := s.Length(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	removed, err = s.Remove(ctx, a.Aid)
	require.NoError(t, err)
	assert.False(t, removed)
}

// TestMoveAbsoluteScenario exercises spec.md scenario 4: with [a,b,c,d],
// moving d to absolute index 0 settles at [d,a,b,c].
func TestMoveAbsoluteScenario(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := mustAddEnd(t, ctx, s, "a")
	mustAddEnd(t, ctx, s, "b")
	mustAddEnd(t, ctx, s, "c")
	d := mustAddEnd(t, ctx, s, "d")

	ok, err := s.Move(ctx, d.Aid, 0, Absolute)
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := s.Slice(ctx, nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, []string{"d", "a", "b", "c"}, eids(entries))

	idx, err := s.IndexOf(ctx, d.Aid)
	require.NoError(t, err)
	assert.EqualValues(t, 0, idx)

	idx, err = s.IndexOf(ctx, a.Aid)
	require.NoError(t, err)
	assert.EqualValues(t, 1, idx)
}

func TestMoveUnknownAidReturnsFalse(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mustAddEnd(t, ctx, s, "a")
	ok, err := s.Move(ctx, "does-not-exist", 0, Absolute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestShuffleIsDeterministicForSameSeed(t *testing.T) {
	ctx := context.Background()

	buildStore := func() *RedisStore {
		s := newTestStore(t)
		for _, eid := range []string{"a", "b", "c", "d", "e"} {
			mustAddEnd(t, ctx, s, eid)
		}
		return s
	}

	s1 := buildStore()
	s2 := buildStore()

	seed := int64(42)
	require.NoError(t, s1.Shuffle(ctx, &seed))
	require.NoError(t, s2.Shuffle(ctx, &seed))

	e1, err := s1.Slice(ctx, nil, nil, nil)
	require.NoError(t, err)
	e2, err := s2.Slice(ctx, nil, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, eids(e1), eids(e2))
}

func TestShufflePreservesOriginalSet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	want := []string{"a", "b", "c", "d", "e"}
	for _, eid := range want {
		mustAddEnd(t, ctx, s, eid)
	}

	seed := int64(7)
	require.NoError(t, s.Shuffle(ctx, &seed))

	entries, err := s.Slice(ctx, nil, nil, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, want, eids(entries))
}

func TestSliceFullRange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, eid := range []string{"a", "b", "c", "d"} {
		mustAddEnd(t, ctx, s, eid)
	}

	entries, err := s.Slice(ctx, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, eids(entries))
}

func TestSlicePositiveStep(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, eid := range []string{"a", "b", "c", "d", "e"} {
		mustAddEnd(t, ctx, s, eid)
	}

	start, stop, step := int64(1), int64(5), int64(2)
	entries, err := s.Slice(ctx, &start, &stop, &step)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d"}, eids(entries))
}

func TestSliceNegativeStepReverses(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, eid := range []string{"a", "b", "c"} {
		mustAddEnd(t, ctx, s, eid)
	}

	step := int64(-1)
	entries, err := s.Slice(ctx, nil, nil, &step)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, eids(entries))
}

func TestSliceNegativeIndices(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, eid := range []string{"a", "b", "c", "d"} {
		mustAddEnd(t, ctx, s, eid)
	}

	start := int64(-2)
	entries, err := s.Slice(ctx, &start, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, eids(entries))
}

func TestSliceZeroStepRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mustAddEnd(t, ctx, s, "a")

	step := int64(0)
	_, err := s.Slice(ctx, nil, nil, &step)
	require.Error(t, err)
}

func TestSliceEmptyStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	entries, err := s.Slice(ctx, nil, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestSliceNegativeStepWithOutOfRangeStart guards against a positive,
// out-of-range start index with a negative step clamping past the last
// valid index (it must behave like Python's store[100::-1] on a
// 4-element list, not index out of range).
func TestSliceNegativeStepWithOutOfRangeStart(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, eid := range []string{"a", "b", "c", "d"} {
		mustAddEnd(t, ctx, s, eid)
	}

	start := int64(100)
	step := int64(-1)
	entries, err := s.Slice(ctx, &start, nil, &step)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c", "b", "a"}, eids(entries))
}

func eids(entries []entry.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Eid
	}
	return out
}
