package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"tourmail/models"
)

// DraftStorage persists in-progress drafts in the local database. Saves are
// idempotent upserts keyed by draft id; a draft without an id gets one
// assigned on first save.
type DraftStorage struct {
	db *bbolt.DB
}

// NewDraftStorage creates a draft store over an opened database.
func NewDraftStorage(db *bbolt.DB) *DraftStorage {
	return &DraftStorage{db: db}
}

// SaveDraft saves or updates a draft and returns its id.
func (ds *DraftStorage) SaveDraft(ctx context.Context, draft *models.Draft) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if draft.ID == "" {
		draft.ID = uuid.New().String()
		draft.CreatedAt = time.Now()
	}
	draft.UpdatedAt = time.Now()

	data, err := json.Marshal(draft)
	if err != nil {
		return "", fmt.Errorf("failed to marshal draft: %w", err)
	}

	err = ds.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte("Drafts")).Put([]byte(draft.ID), data)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write draft: %w", err)
	}

	return draft.ID, nil
}

// GetDraft retrieves a draft by id.
func (ds *DraftStorage) GetDraft(ctx context.Context, draftID string) (*models.Draft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var draft models.Draft
	err := ds.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte("Drafts")).Get([]byte(draftID))
		if data == nil {
			return fmt.Errorf("draft not found")
		}
		return json.Unmarshal(data, &draft)
	})
	if err != nil {
		return nil, err
	}

	return &draft, nil
}

// ListDrafts returns all drafts, most recently updated first.
func (ds *DraftStorage) ListDrafts(ctx context.Context) ([]*models.Draft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var drafts []*models.Draft
	err := ds.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte("Drafts")).ForEach(func(k, v []byte) error {
			var draft models.Draft
			if err := json.Unmarshal(v, &draft); err != nil {
				return nil // Skip corrupt entries
			}
			drafts = append(drafts, &draft)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}

	sort.Slice(drafts, func(i, j int) bool {
		return drafts[i].UpdatedAt.After(drafts[j].UpdatedAt)
	})

	return drafts, nil
}

// DeleteDraft removes a draft. Deleting a draft that does not exist is not an
// error.
func (ds *DraftStorage) DeleteDraft(ctx context.Context, draftID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return ds.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte("Drafts")).Delete([]byte(draftID))
	})
}
