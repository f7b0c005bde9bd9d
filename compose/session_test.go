package compose

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourmail/models"
	"tourmail/utils"
)

type fakeStore struct {
	mu       sync.Mutex
	saves    int
	savedIDs []string
	deletes  []string
	failNext bool
}

func (f *fakeStore) SaveDraft(ctx context.Context, draft *models.Draft) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failNext {
		f.failNext = false
		return "", errors.New("store unavailable")
	}

	f.saves++
	id := draft.ID
	if id == "" {
		id = "draft-1"
	}
	f.savedIDs = append(f.savedIDs, id)
	return id, nil
}

func (f *fakeStore) DeleteDraft(ctx context.Context, draftID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, draftID)
	return nil
}

func (f *fakeStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func (f *fakeStore) deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.deletes...)
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []models.Draft
	failure error
}

func (f *fakeSender) Send(ctx context.Context, draft *models.Draft, attachments []models.Attachment) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failure != nil {
		return "", f.failure
	}
	f.sent = append(f.sent, *draft)
	return "mid-1@tours", nil
}

func testSessionConfig() SessionConfig {
	return SessionConfig{
		DebounceDelay:        20 * time.Millisecond,
		OpenGrace:            40 * time.Millisecond,
		SignaturePlaceholder: "<p>-- sig</p>",
	}
}

func strp(s string) *string { return &s }

func slicep(s ...string) *[]string { return &s }

func TestOpenAloneNeverSaves(t *testing.T) {
	store := &fakeStore{}
	s := NewSession(store, &fakeSender{}, testSessionConfig())

	s.Open(models.Draft{
		Mode:     models.ModeReply,
		To:       []string{"c@x.com"},
		Subject:  "Re: Kyoto",
		BodyHTML: "<p>-- sig</p><div class=\"tour_quote\">old</div>",
	})

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 0, store.saveCount())
	assert.Equal(t, PhaseEditing, s.Status().Phase)
}

func TestFirstEditTriggersOneSave(t *testing.T) {
	store := &fakeStore{}
	s := NewSession(store, &fakeSender{}, testSessionConfig())

	s.Open(models.Draft{Mode: models.ModeReply, To: []string{"c@x.com"}})
	require.NoError(t, s.Mutate(DraftPatch{BodyHTML: strp("<p>typing</p>")}))

	require.Eventually(t, func() bool {
		return s.Status().Phase == PhaseSaved
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, store.saveCount())
	assert.Equal(t, "draft-1", s.Draft().ID)
}

func TestRepeatedEditsKeepOneDraftID(t *testing.T) {
	store := &fakeStore{}
	s := NewSession(store, &fakeSender{}, testSessionConfig())

	s.Open(models.Draft{Mode: models.ModeNew})
	require.NoError(t, s.Mutate(DraftPatch{
		To:       slicep("c@x.com"),
		BodyHTML: strp("<p>first</p>"),
	}))

	require.Eventually(t, func() bool {
		return s.Status().Phase == PhaseSaved
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Mutate(DraftPatch{BodyHTML: strp("<p>second</p>")}))
	require.Eventually(t, func() bool {
		return s.Status().Phase == PhaseSaved && store.saveCount() == 2
	}, time.Second, 5*time.Millisecond)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.savedIDs, 2)
	assert.Equal(t, store.savedIDs[0], store.savedIDs[1])
}

func TestNoSaveWithoutMinimumContent(t *testing.T) {
	store := &fakeStore{}
	cfg := testSessionConfig()
	s := NewSession(store, &fakeSender{}, cfg)

	// A recipient but only the seeded signature body.
	s.Open(models.Draft{Mode: models.ModeNew})
	require.NoError(t, s.Mutate(DraftPatch{
		To:       slicep("c@x.com"),
		BodyHTML: strp(cfg.SignaturePlaceholder),
	}))
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, store.saveCount())

	// Body content but no recipient.
	require.NoError(t, s.Mutate(DraftPatch{
		To:       slicep(),
		BodyHTML: strp("<p>notes</p>"),
	}))
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, store.saveCount())
}

func TestForwardSavesWithoutRecipient(t *testing.T) {
	store := &fakeStore{}
	s := NewSession(store, &fakeSender{}, testSessionConfig())

	s.Open(models.Draft{Mode: models.ModeForward})
	require.NoError(t, s.Mutate(DraftPatch{BodyHTML: strp("<p>fyi</p>")}))

	require.Eventually(t, func() bool {
		return store.saveCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSaveFailureRetriesOnNextEdit(t *testing.T) {
	store := &fakeStore{failNext: true}
	s := NewSession(store, &fakeSender{}, testSessionConfig())

	s.Open(models.Draft{Mode: models.ModeNew})
	require.NoError(t, s.Mutate(DraftPatch{
		To:       slicep("c@x.com"),
		BodyHTML: strp("<p>v1</p>"),
	}))

	require.Eventually(t, func() bool {
		return s.Status().Phase == PhaseError
	}, time.Second, 5*time.Millisecond)
	assert.NotEmpty(t, s.Status().LastError)

	require.NoError(t, s.Mutate(DraftPatch{BodyHTML: strp("<p>v2</p>")}))
	require.Eventually(t, func() bool {
		return s.Status().Phase == PhaseSaved
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, store.saveCount())
}

func TestSendNowValidates(t *testing.T) {
	s := NewSession(&fakeStore{}, &fakeSender{}, testSessionConfig())
	s.Open(models.Draft{Mode: models.ModeNew, BodyHTML: "<p>x</p>"})

	_, err := s.SendNow(context.Background(), nil)
	var vErr *utils.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "to", vErr.Field)

	require.NoError(t, s.Mutate(DraftPatch{To: slicep("c@x.com")}))
	_, err = s.SendNow(context.Background(), nil)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "subject", vErr.Field)
}

func TestSendFailurePreservesDraft(t *testing.T) {
	store := &fakeStore{}
	sender := &fakeSender{failure: errors.New("smtp down")}
	s := NewSession(store, sender, testSessionConfig())

	s.Open(models.Draft{
		Mode:     models.ModeNew,
		To:       []string{"c@x.com"},
		Subject:  "Voucher",
		BodyHTML: "<p>attached</p>",
	})

	_, err := s.SendNow(context.Background(), nil)
	var sendErr *utils.SendFailure
	require.ErrorAs(t, err, &sendErr)

	// Surface stays open with the draft intact; a retry succeeds.
	assert.NotEqual(t, PhaseClosed, s.Status().Phase)
	assert.Equal(t, "<p>attached</p>", s.Draft().BodyHTML)

	sender.failure = nil
	mid, err := s.SendNow(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "mid-1@tours", mid)
	assert.Equal(t, PhaseClosed, s.Status().Phase)
}

func TestSendDeletesPersistedDraft(t *testing.T) {
	store := &fakeStore{}
	s := NewSession(store, &fakeSender{}, testSessionConfig())

	s.Open(models.Draft{Mode: models.ModeNew})
	require.NoError(t, s.Mutate(DraftPatch{
		To:       slicep("c@x.com"),
		Subject:  strp("Voucher"),
		BodyHTML: strp("<p>done</p>"),
	}))
	require.Eventually(t, func() bool {
		return s.Status().Phase == PhaseSaved
	}, time.Second, 5*time.Millisecond)

	_, err := s.SendNow(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"draft-1"}, store.deleted())
}

func TestDiscard(t *testing.T) {
	store := &fakeStore{}
	s := NewSession(store, &fakeSender{}, testSessionConfig())

	s.Open(models.Draft{Mode: models.ModeNew})
	require.NoError(t, s.Mutate(DraftPatch{
		To:       slicep("c@x.com"),
		BodyHTML: strp("<p>half-written</p>"),
	}))
	require.Eventually(t, func() bool {
		return s.Status().Phase == PhaseSaved
	}, time.Second, 5*time.Millisecond)

	s.Discard(context.Background())
	assert.Equal(t, PhaseClosed, s.Status().Phase)
	assert.Equal(t, []string{"draft-1"}, store.deleted())

	// Discarding a never-persisted draft is a quiet no-op.
	s2 := NewSession(store, &fakeSender{}, testSessionConfig())
	s2.Open(models.Draft{Mode: models.ModeNew})
	s2.Discard(context.Background())
	assert.Equal(t, []string{"draft-1"}, store.deleted())
}

func TestMutateAfterCloseFails(t *testing.T) {
	s := NewSession(&fakeStore{}, &fakeSender{}, testSessionConfig())
	s.Open(models.Draft{Mode: models.ModeNew})
	s.Discard(context.Background())

	assert.Error(t, s.Mutate(DraftPatch{BodyHTML: strp("<p>late</p>")}))
}

func TestStatusCallbackFires(t *testing.T) {
	var mu sync.Mutex
	var phases []Phase

	cfg := testSessionConfig()
	cfg.OnStatus = func(st Status) {
		mu.Lock()
		phases = append(phases, st.Phase)
		mu.Unlock()
	}

	s := NewSession(&fakeStore{}, &fakeSender{}, cfg)
	s.Open(models.Draft{Mode: models.ModeNew})
	require.NoError(t, s.Mutate(DraftPatch{
		To:       slicep("c@x.com"),
		BodyHTML: strp("<p>x</p>"),
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, p := range phases {
			if p == PhaseSaved {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}
