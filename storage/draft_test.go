package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourmail/models"
)

func testDraftStore(t *testing.T) *DraftStorage {
	t.Helper()

	db, err := InitDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewDraftStorage(db)
}

func TestSaveDraftAssignsID(t *testing.T) {
	ds := testDraftStore(t)
	ctx := context.Background()

	draft := &models.Draft{
		Mode:     models.ModeNew,
		To:       []string{"client@x.com"},
		Subject:  "Kyoto itinerary",
		BodyHTML: "<p>v1</p>",
	}

	id, err := ds.SaveDraft(ctx, draft)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, draft.ID)
	assert.False(t, draft.CreatedAt.IsZero())
}

func TestSaveDraftUpsertsByID(t *testing.T) {
	ds := testDraftStore(t)
	ctx := context.Background()

	draft := &models.Draft{Mode: models.ModeNew, To: []string{"c@x.com"}, BodyHTML: "<p>v1</p>"}
	id, err := ds.SaveDraft(ctx, draft)
	require.NoError(t, err)

	draft.BodyHTML = "<p>v2</p>"
	id2, err := ds.SaveDraft(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	drafts, err := ds.ListDrafts(ctx)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "<p>v2</p>", drafts[0].BodyHTML)
}

func TestGetDraft(t *testing.T) {
	ds := testDraftStore(t)
	ctx := context.Background()

	draft := &models.Draft{Mode: models.ModeReply, ThreadID: "t1", BodyHTML: "<p>x</p>"}
	id, err := ds.SaveDraft(ctx, draft)
	require.NoError(t, err)

	loaded, err := ds.GetDraft(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "t1", loaded.ThreadID)
	assert.Equal(t, models.ModeReply, loaded.Mode)

	_, err = ds.GetDraft(ctx, "missing")
	assert.Error(t, err)
}

func TestListDraftsNewestFirst(t *testing.T) {
	ds := testDraftStore(t)
	ctx := context.Background()

	first := &models.Draft{BodyHTML: "<p>old</p>"}
	_, err := ds.SaveDraft(ctx, first)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	second := &models.Draft{BodyHTML: "<p>new</p>"}
	_, err = ds.SaveDraft(ctx, second)
	require.NoError(t, err)

	drafts, err := ds.ListDrafts(ctx)
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, "<p>new</p>", drafts[0].BodyHTML)
}

func TestDeleteDraftIsIdempotent(t *testing.T) {
	ds := testDraftStore(t)
	ctx := context.Background()

	draft := &models.Draft{BodyHTML: "<p>x</p>"}
	id, err := ds.SaveDraft(ctx, draft)
	require.NoError(t, err)

	require.NoError(t, ds.DeleteDraft(ctx, id))
	// Deleting again, or deleting an id that never existed, is a no-op.
	require.NoError(t, ds.DeleteDraft(ctx, id))
	require.NoError(t, ds.DeleteDraft(ctx, "never-existed"))

	drafts, err := ds.ListDrafts(ctx)
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestSaveDraftHonorsCancelledContext(t *testing.T) {
	ds := testDraftStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ds.SaveDraft(ctx, &models.Draft{BodyHTML: "<p>x</p>"})
	assert.Error(t, err)
}
