package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourmail/models"
	"tourmail/provider"
)

type stubMailbox struct {
	threads []*models.Thread
}

var _ provider.Mailbox = (*stubMailbox)(nil)

func (s *stubMailbox) FetchThreads(ctx context.Context, folder string, limit uint32) ([]*models.Thread, error) {
	return s.threads, nil
}

func (s *stubMailbox) FetchThread(ctx context.Context, threadID string) ([]*models.Message, error) {
	return nil, nil
}

func (s *stubMailbox) FetchAttachment(ctx context.Context, messageID, attachmentID string, preview bool) (models.Attachment, error) {
	return models.Attachment{}, nil
}

func listThreads(t *testing.T, h *ThreadHandler, query string) *models.PaginatedThreads {
	t.Helper()

	app := fiber.New()
	app.Get("/api/threads", h.HandleListThreads)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/threads"+query, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out models.PaginatedThreads
	require.NoError(t, json.Unmarshal(body, &out))
	return &out
}

func TestHandleListThreadsDefaults(t *testing.T) {
	h := NewThreadHandler(&stubMailbox{threads: []*models.Thread{{ID: "a"}, {ID: "b"}}}, nil, nil)

	out := listThreads(t, h, "")
	assert.Equal(t, uint32(1), out.Page)
	assert.Equal(t, uint32(25), out.PageSize)
	assert.Len(t, out.Threads, 2)
}

func TestHandleListThreadsClampsNegativePageParams(t *testing.T) {
	h := NewThreadHandler(&stubMailbox{threads: []*models.Thread{{ID: "a"}, {ID: "b"}}}, nil, nil)

	out := listThreads(t, h, "?page=-3&page_size=-10")
	assert.Equal(t, uint32(1), out.Page)
	assert.Equal(t, uint32(25), out.PageSize)
	assert.Len(t, out.Threads, 2)
}

func TestHandleListThreadsPastEndIsEmpty(t *testing.T) {
	h := NewThreadHandler(&stubMailbox{threads: []*models.Thread{{ID: "a"}}}, nil, nil)

	out := listThreads(t, h, "?page=5")
	assert.Empty(t, out.Threads)
	assert.Equal(t, uint32(1), out.TotalThreads)
}
