package utils

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testBuild(messageID, attachmentID string) string {
	return fmt.Sprintf("/api/attachment/%s/%s?preview=1", messageID, attachmentID)
}

func TestResolveInlineImagesExactMatch(t *testing.T) {
	attachments := []AttachmentRef{{ID: "1", ContentID: "logo@tours"}}

	out := ResolveInlineImages(`<p><img src="cid:logo@tours"/></p>`, "INBOX:7", attachments, testBuild)
	assert.Contains(t, out, `src="/api/attachment/INBOX:7/1?preview=1"`)
	assert.NotContains(t, out, "cid:")
}

func TestResolveInlineImagesAngleBracketMatch(t *testing.T) {
	attachments := []AttachmentRef{{ID: "2", ContentID: "<logo@tours>"}}

	out := ResolveInlineImages(`<img src="cid:logo@tours"/>`, "INBOX:7", attachments, testBuild)
	assert.Contains(t, out, `src="/api/attachment/INBOX:7/2?preview=1"`)
}

func TestResolveInlineImagesSubstringMatch(t *testing.T) {
	attachments := []AttachmentRef{{ID: "3", ContentID: "part3.logo@tours"}}

	out := ResolveInlineImages(`<img src="cid:logo@tours"/>`, "INBOX:7", attachments, testBuild)
	assert.Contains(t, out, `src="/api/attachment/INBOX:7/3?preview=1"`)
}

func TestResolveInlineImagesMatchPriority(t *testing.T) {
	// An exact match wins over a looser substring candidate.
	attachments := []AttachmentRef{
		{ID: "loose", ContentID: "extra.logo@tours"},
		{ID: "exact", ContentID: "logo@tours"},
	}

	out := ResolveInlineImages(`<img src="cid:logo@tours"/>`, "INBOX:7", attachments, testBuild)
	assert.Contains(t, out, "/exact?preview=1")
}

func TestResolveInlineImagesMissingBecomesPlaceholder(t *testing.T) {
	attachments := []AttachmentRef{{ID: "1", ContentID: "other@tours"}}

	out := ResolveInlineImages(`<img src="cid:gone@tours"/>`, "INBOX:7", attachments, testBuild)
	assert.Contains(t, out, MissingImagePlaceholder)
	assert.NotContains(t, out, "cid:")
}

func TestResolveInlineImagesNilAttachmentsMeansLoading(t *testing.T) {
	out := ResolveInlineImages(`<img src="cid:logo@tours"/>`, "INBOX:7", nil, testBuild)
	assert.Contains(t, out, LoadingImagePlaceholder)
	assert.Contains(t, out, "data-inline-loading")
	assert.NotContains(t, out, "cid:")
}

func TestResolveInlineImagesEmptyAttachmentsMeansMissing(t *testing.T) {
	// An empty (non-nil) slice means metadata loaded and there is nothing to
	// match against.
	out := ResolveInlineImages(`<img src="cid:logo@tours"/>`, "INBOX:7", []AttachmentRef{}, testBuild)
	assert.Contains(t, out, MissingImagePlaceholder)
}

func TestResolveInlineImagesNoCidPassthrough(t *testing.T) {
	body := `<p>plain <img src="https://example.com/x.png"/></p>`
	assert.Equal(t, body, ResolveInlineImages(body, "INBOX:7", nil, testBuild))
}

func TestResolveInlineImagesNeverLeaksCidLiterals(t *testing.T) {
	attachments := []AttachmentRef{{ID: "1", ContentID: "a@b"}}

	out := ResolveInlineImages(`<p>see cid:stray and <img src="cid:a@b"/></p>`, "INBOX:7", attachments, testBuild)
	assert.NotContains(t, out, "cid:")
}

func TestMatchContentID(t *testing.T) {
	attachments := []AttachmentRef{
		{ID: "1", ContentID: "<alpha@x>"},
		{ID: "2", ContentID: "beta@x"},
	}

	ref, ok := MatchContentID(attachments, "beta@x")
	assert.True(t, ok)
	assert.Equal(t, "2", ref.ID)

	ref, ok = MatchContentID(attachments, "alpha@x")
	assert.True(t, ok)
	assert.Equal(t, "1", ref.ID)

	_, ok = MatchContentID(attachments, "gamma@x")
	assert.False(t, ok)
}
