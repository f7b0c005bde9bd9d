package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentQuoteGmailContainer(t *testing.T) {
	body := `<p>See you at the airport.</p><div class="gmail_quote">On Mon, Ana wrote:<blockquote>Original</blockquote></div>`

	seg := SegmentQuote(body)
	require.NotNil(t, seg)
	assert.Equal(t, "quote-class", seg.Marker)
	assert.Equal(t, "<p>See you at the airport.</p>", seg.Before)
	assert.Contains(t, seg.After, "gmail_quote")
	assert.Contains(t, seg.After, "Original")
}

func TestSegmentQuoteYahooAndGenericClasses(t *testing.T) {
	for _, class := range []string{"yahoo_quoted", "quoted-text", "tour_quote"} {
		body := `<p>new</p><div class="` + class + `">old</div>`
		seg := SegmentQuote(body)
		require.NotNil(t, seg, class)
		assert.Equal(t, "quote-class", seg.Marker, class)
	}
}

func TestSegmentQuoteOutlookContainer(t *testing.T) {
	body := `<p>Thanks!</p><div id="divRplyFwdMsg"><b>From:</b> someone</div>`

	seg := SegmentQuote(body)
	require.NotNil(t, seg)
	assert.Equal(t, "client-container", seg.Marker)
	assert.Equal(t, "<p>Thanks!</p>", seg.Before)
}

func TestSegmentQuoteThunderbirdContainer(t *testing.T) {
	body := `<p>ok</p><div class="moz-cite-prefix">On 2026-05-01, wrote:</div><blockquote>x</blockquote>`

	seg := SegmentQuote(body)
	require.NotNil(t, seg)
	assert.Equal(t, "client-container", seg.Marker)
}

func TestSegmentQuoteBlockquoteFallback(t *testing.T) {
	body := `<p>reply text</p><blockquote type="cite">earlier</blockquote>`

	seg := SegmentQuote(body)
	require.NotNil(t, seg)
	assert.Equal(t, "blockquote", seg.Marker)
	assert.Equal(t, "<p>reply text</p>", seg.Before)
}

func TestSegmentQuoteStrategyOrderBeatsPosition(t *testing.T) {
	// A blockquote appearing before a gmail container does not win: the more
	// specific strategy is tried first across the whole document.
	body := `<blockquote>inline quote in new content</blockquote><p>more new text</p><div class="gmail_quote">history</div>`

	seg := SegmentQuote(body)
	require.NotNil(t, seg)
	assert.Equal(t, "quote-class", seg.Marker)
	assert.Contains(t, seg.Before, "inline quote in new content")
	assert.Contains(t, seg.Before, "more new text")
}

func TestSegmentQuoteNoQuote(t *testing.T) {
	assert.Nil(t, SegmentQuote(`<p>just a plain booking confirmation</p>`))
	assert.Nil(t, SegmentQuote(""))
}

func TestSegmentQuoteMalformedMarkup(t *testing.T) {
	// Malformed markup never errors, it just may not match.
	assert.Nil(t, SegmentQuote(`<div class="gmail_quote`))
}

func TestSegmentQuoteCaseInsensitive(t *testing.T) {
	seg := SegmentQuote(`<p>a</p><DIV CLASS="GMAIL_QUOTE">b</DIV>`)
	require.NotNil(t, seg)
	assert.Equal(t, "quote-class", seg.Marker)
}
