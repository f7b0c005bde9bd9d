package compose

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourmail/models"
	"tourmail/utils"
)

func buildURL(messageID, attachmentID string) string {
	return fmt.Sprintf("/att/%s/%s", messageID, attachmentID)
}

func newTestPresenter() *Presenter {
	return NewPresenter(utils.NewDefaultSanitizer(), buildURL)
}

func threadMessages() []*models.Message {
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return []*models.Message{
		{
			ID:       "INBOX:1",
			From:     "client@x.com",
			Subject:  "Kyoto itinerary",
			SentAt:   base,
			BodyHTML: "<p>Can we add Nara?</p>",
		},
		{
			ID:       "INBOX:2",
			From:     "agency@tours.example",
			Subject:  "Re: Kyoto itinerary",
			SentAt:   base.Add(time.Hour),
			BodyHTML: `<p>Of course.</p><div class="gmail_quote"><p>Can we add Nara?</p></div>`,
		},
	}
}

func TestSetThreadExpandsOnlyNewest(t *testing.T) {
	p := newTestPresenter()
	p.SetThread(threadMessages())

	views := p.Views()
	require.Len(t, views, 2)
	assert.False(t, views[0].Expanded)
	assert.True(t, views[1].Expanded)
	assert.False(t, views[0].QuoteExpanded)
	assert.False(t, views[1].QuoteExpanded)
}

func TestViewsSplitQuotedHistory(t *testing.T) {
	p := newTestPresenter()
	p.SetThread(threadMessages())

	views := p.Views()
	assert.False(t, views[0].HasQuote)
	assert.Contains(t, views[0].VisibleHTML, "Can we add Nara?")

	assert.True(t, views[1].HasQuote)
	assert.Contains(t, views[1].VisibleHTML, "Of course.")
	assert.NotContains(t, views[1].VisibleHTML, "gmail_quote")
	// Collapsed quotes are withheld entirely.
	assert.Empty(t, views[1].QuotedHTML)
}

func TestToggleQuoteRevealsHistory(t *testing.T) {
	p := newTestPresenter()
	p.SetThread(threadMessages())

	assert.True(t, p.ToggleQuote("INBOX:2"))
	view, ok := p.View("INBOX:2")
	require.True(t, ok)
	assert.Contains(t, view.QuotedHTML, "gmail_quote")

	assert.False(t, p.ToggleQuote("INBOX:2"))
	view, _ = p.View("INBOX:2")
	assert.Empty(t, view.QuotedHTML)
}

func TestToggleExpanded(t *testing.T) {
	p := newTestPresenter()
	p.SetThread(threadMessages())

	assert.True(t, p.ToggleExpanded("INBOX:1"))
	assert.False(t, p.ToggleExpanded("INBOX:1"))
	assert.False(t, p.ToggleExpanded("no-such-id"))
}

func TestRenderSanitizesBodies(t *testing.T) {
	p := newTestPresenter()
	p.SetThread([]*models.Message{{
		ID:       "INBOX:9",
		SentAt:   time.Now(),
		BodyHTML: `<p>hi</p><script>alert(1)</script>`,
	}})

	view, ok := p.View("INBOX:9")
	require.True(t, ok)
	assert.NotContains(t, view.VisibleHTML, "script")
}

func TestInlineImageLifecycle(t *testing.T) {
	msg := &models.Message{
		ID:             "INBOX:5",
		SentAt:         time.Now(),
		BodyHTML:       `<p>map</p><img src="cid:map@tours">`,
		HasAttachments: true, // Metadata not fetched yet
	}

	p := newTestPresenter()
	p.SetThread([]*models.Message{msg})

	view, ok := p.View("INBOX:5")
	require.True(t, ok)
	assert.Contains(t, view.VisibleHTML, utils.LoadingImagePlaceholder)

	p.UpdateAttachments("INBOX:5", []models.Attachment{
		{ID: "1", ContentID: "map@tours"},
	})

	view, _ = p.View("INBOX:5")
	assert.Contains(t, view.VisibleHTML, "/att/INBOX:5/1")
	assert.NotContains(t, view.VisibleHTML, utils.LoadingImagePlaceholder)
}

func TestToggleStateSurvivesAttachmentUpdate(t *testing.T) {
	msgs := threadMessages()
	msgs[1].HasAttachments = true

	p := newTestPresenter()
	p.SetThread(msgs)
	p.ToggleQuote("INBOX:2")

	p.UpdateAttachments("INBOX:2", []models.Attachment{{ID: "1", ContentID: "x@y"}})

	view, ok := p.View("INBOX:2")
	require.True(t, ok)
	assert.True(t, view.QuoteExpanded)
	assert.Contains(t, view.QuotedHTML, "gmail_quote")
}
