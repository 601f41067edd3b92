package mediagroup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorFlushesAlbumInMessageOrder(t *testing.T) {
	flushed := make(chan Group, 1)
	agg := New(Options{
		Debounce: 20 * time.Millisecond,
		OnFlush:  func(g Group) { flushed <- g },
	})

	agg.Add(Item{ChatID: 7, UserID: 1, MessageID: 11, MediaGroupID: "album", FileID: "garment"})
	agg.Add(Item{ChatID: 7, UserID: 1, MessageID: 10, MediaGroupID: "album", FileID: "person", Caption: "try this"})
	assert.Equal(t, 1, agg.Pending())

	select {
	case g := <-flushed:
		assert.Equal(t, []string{"person", "garment"}, g.FileIDs)
		assert.Equal(t, "try this", g.Caption)
		assert.Equal(t, int64(7), g.ChatID)

		person, garment, ok := g.Pair()
		require.True(t, ok)
		assert.Equal(t, "person", person)
		assert.Equal(t, "garment", garment)
	case <-time.After(2 * time.Second):
		t.Fatal("album was not flushed")
	}
	assert.Zero(t, agg.Pending())
}

func TestAggregatorIgnoresLoosePhotos(t *testing.T) {
	agg := New(Options{Debounce: time.Hour})

	agg.Add(Item{ChatID: 1, FileID: "x"})
	agg.Add(Item{ChatID: 1, MediaGroupID: "g"})
	assert.Zero(t, agg.Pending())
}

func TestAggregatorStopDropsPending(t *testing.T) {
	called := make(chan struct{}, 1)
	agg := New(Options{
		Debounce: 20 * time.Millisecond,
		OnFlush:  func(Group) { called <- struct{}{} },
	})

	agg.Add(Item{ChatID: 1, MediaGroupID: "g", FileID: "a"})
	agg.Stop()
	assert.Zero(t, agg.Pending())

	select {
	case <-called:
		t.Fatal("stopped album was flushed")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestGroupPairNeedsTwoPhotos(t *testing.T) {
	_, _, ok := Group{FileIDs: []string{"only"}}.Pair()
	assert.False(t, ok)
}
