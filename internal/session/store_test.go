package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tryon-studio/internal/tryon"
)

func upload(s string) tryon.UploadedImage {
	return tryon.NewUploadedImage([]byte(s), "image/png")
}

func TestFillPicksSlots(t *testing.T) {
	store := NewStore(Options{})

	assert.Equal(t, SlotPerson, store.Fill(1, "ann", upload("me"), false))
	assert.Equal(t, SlotGarment, store.Fill(1, "ann", upload("dress"), false))
	assert.Equal(t, SlotPerson, store.Fill(1, "ann", upload("me again"), false))
	assert.Equal(t, SlotGarment, store.Fill(1, "ann", upload("shirt"), true))

	snap := store.Snapshot(1, "ann")
	assert.True(t, snap.Ready())
	assert.Equal(t, []byte("me again"), snap.Person.Data)
	assert.Equal(t, []byte("shirt"), snap.Garment.Data)
}

func TestGarmentFirstWhenTagged(t *testing.T) {
	store := NewStore(Options{})

	assert.Equal(t, SlotGarment, store.Fill(1, "", upload("dress"), true))
	assert.Equal(t, SlotPerson, store.Fill(1, "", upload("me"), false))
	assert.True(t, store.Snapshot(1, "").Ready())
}

func TestPutGarmentRemembersCatalogID(t *testing.T) {
	store := NewStore(Options{})

	store.PutGarment(1, "", "red-dress", upload("catalog"))
	assert.Equal(t, "red-dress", store.Snapshot(1, "").GarmentID)

	store.Put(1, "", SlotGarment, upload("own"))
	assert.Empty(t, store.Snapshot(1, "").GarmentID)
}

func TestFinishAppliesCurrentOutcome(t *testing.T) {
	store := NewStore(Options{})
	store.Put(1, "", SlotPerson, upload("me"))

	ticket, ctx, err := store.Begin(context.Background(), 1, "")
	require.NoError(t, err)
	require.NotNil(t, ctx)
	assert.True(t, store.Snapshot(1, "").Loading)

	_, _, err = store.Begin(context.Background(), 1, "")
	assert.ErrorIs(t, err, tryon.ErrInFlight)

	out := tryon.Succeeded(tryon.ImagePart{Data: []byte("img"), MediaType: "image/png"})
	assert.True(t, store.Finish(1, ticket, out))

	snap := store.Snapshot(1, "")
	assert.False(t, snap.Loading)
	require.NotNil(t, snap.LastOutcome)
	assert.True(t, snap.LastOutcome.OK())

	store.Put(1, "", SlotPerson, upload("new me"))
	assert.Nil(t, store.Snapshot(1, "").LastOutcome)
}

func TestResetDropsLateOutcome(t *testing.T) {
	store := NewStore(Options{})
	store.Put(1, "", SlotPerson, upload("me"))
	store.Put(1, "", SlotGarment, upload("dress"))

	ticket, ctx, err := store.Begin(context.Background(), 1, "")
	require.NoError(t, err)

	store.Reset(1)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	assert.False(t, store.Finish(1, ticket, tryon.Succeeded(tryon.ImagePart{Data: []byte("late")})))

	snap := store.Snapshot(1, "")
	assert.Nil(t, snap.LastOutcome)
	assert.False(t, snap.Ready())
	assert.False(t, snap.Loading)
}

func TestFinishUnknownUser(t *testing.T) {
	store := NewStore(Options{})
	assert.False(t, store.Finish(42, tryon.Ticket{Seq: 1}, tryon.Outcome{}))
}

func TestPruneIdleSessions(t *testing.T) {
	store := NewStore(Options{IdleTTL: time.Minute})
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Put(1, "", SlotPerson, upload("a"))
	store.Put(2, "", SlotPerson, upload("b"))
	_, _, err := store.Begin(context.Background(), 2, "")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, store.Prune())
	assert.Equal(t, 1, store.Len())
}

func TestImageChangeDropsRunningOutcome(t *testing.T) {
	store := NewStore(Options{})
	store.Put(1, "", SlotPerson, upload("me"))
	store.Put(1, "", SlotGarment, upload("dress"))

	ticket, _, err := store.Begin(context.Background(), 1, "")
	require.NoError(t, err)

	store.Fill(1, "", upload("other dress"), true)

	assert.False(t, store.Finish(1, ticket, tryon.Succeeded(tryon.ImagePart{Data: []byte("old")})))

	snap := store.Snapshot(1, "")
	assert.Nil(t, snap.LastOutcome)
	assert.False(t, snap.Loading)
	assert.Equal(t, []byte("other dress"), snap.Garment.Data)

	_, _, err = store.Begin(context.Background(), 1, "")
	assert.NoError(t, err)
}
