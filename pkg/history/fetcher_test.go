package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	start, end time.Time
}

// recordingSource returns one record per entity at the start of every chunk,
// plus one at the chunk end to simulate boundary duplicates.
type recordingSource struct {
	calls   []call
	failAt  int
	missing map[int]string
}

func (s *recordingSource) FetchRange(ctx context.Context, ids []string, start, end time.Time) (Set, error) {
	s.calls = append(s.calls, call{start, end})
	if s.failAt > 0 && len(s.calls) == s.failAt {
		return nil, errors.New("dial tcp: connection refused")
	}
	out := make(Set)
	for _, id := range ids {
		if s.missing[len(s.calls)] == id {
			continue
		}
		// returned newest first to make sure the fetcher sorts
		out[id] = EntityHistory{
			{EntityID: id, State: "2", Timestamp: end},
			{EntityID: id, State: "1", Timestamp: start},
		}
	}
	return out, nil
}

func TestFetch_SingleRequestForShortWindow(t *testing.T) {
	src := &recordingSource{}
	f := NewFetcher(src, FetcherConfig{})

	set, err := f.Fetch(context.Background(), []string{"sensor.a"}, base, base.Add(7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, src.calls, 1)
	assert.Len(t, set["sensor.a"], 2)
}

func TestFetch_ChunksLongWindowSequentially(t *testing.T) {
	src := &recordingSource{}
	f := NewFetcher(src, FetcherConfig{})

	end := base.Add(20 * 24 * time.Hour)
	set, err := f.Fetch(context.Background(), []string{"sensor.a", "switch.b"}, base, end)
	require.NoError(t, err)

	require.Len(t, src.calls, 3)
	assert.Equal(t, base, src.calls[0].start)
	assert.Equal(t, base.Add(7*24*time.Hour), src.calls[0].end)
	assert.Equal(t, src.calls[0].end, src.calls[1].start)
	assert.Equal(t, src.calls[1].end, src.calls[2].start)
	assert.Equal(t, end, src.calls[2].end)

	for _, c := range src.calls {
		assert.LessOrEqual(t, c.end.Sub(c.start), DefaultChunkSize)
	}

	for id, h := range set {
		assert.Len(t, h, 6, id)
		assert.True(t, h.IsSorted(), "%s not sorted", id)
	}
}

func TestFetch_EntityMissingFromChunk(t *testing.T) {
	src := &recordingSource{missing: map[int]string{2: "switch.b"}}
	f := NewFetcher(src, FetcherConfig{ChunkSize: 24 * time.Hour})

	set, err := f.Fetch(context.Background(), []string{"sensor.a", "switch.b"}, base, base.Add(72*time.Hour))
	require.NoError(t, err)
	assert.Len(t, set["sensor.a"], 6)
	assert.Len(t, set["switch.b"], 4)
	assert.True(t, set["switch.b"].IsSorted())
}

func TestFetch_ErrorAbortsWithoutPartialResult(t *testing.T) {
	src := &recordingSource{failAt: 2}
	f := NewFetcher(src, FetcherConfig{})

	set, err := f.Fetch(context.Background(), []string{"sensor.a"}, base, base.Add(30*24*time.Hour))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConnection))
	assert.Nil(t, set)
	assert.Len(t, src.calls, 2, "no chunk is requested after a failure")
}

func TestFetch_EmptyWindow(t *testing.T) {
	src := &recordingSource{}
	f := NewFetcher(src, FetcherConfig{})

	set, err := f.Fetch(context.Background(), []string{"sensor.a"}, base, base)
	require.NoError(t, err)
	assert.Empty(t, set)
	assert.Empty(t, src.calls)
}
