package provider

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMessageID(t *testing.T) {
	folder, uid, err := splitMessageID("INBOX:42")
	require.NoError(t, err)
	assert.Equal(t, "INBOX", folder)
	assert.Equal(t, uint32(42), uid)

	// Folder names may themselves contain colons.
	folder, uid, err = splitMessageID("Archive:2026:7")
	require.NoError(t, err)
	assert.Equal(t, "Archive:2026", folder)
	assert.Equal(t, uint32(7), uid)

	_, _, err = splitMessageID("no-separator")
	assert.Error(t, err)

	_, _, err = splitMessageID("INBOX:notanumber")
	assert.Error(t, err)
}

func TestDecodeTransfer(t *testing.T) {
	assert.Equal(t, []byte("plain"), decodeTransfer([]byte("plain"), ""))
	assert.Equal(t, []byte("hello"), decodeTransfer([]byte("aGVsbG8="), "base64"))
	assert.Equal(t, []byte("hello"), decodeTransfer([]byte("aGVs\r\nbG8="), "BASE64"))
	assert.Equal(t, []byte("héllo"), decodeTransfer([]byte("h=C3=A9llo"), "quoted-printable"))
	// Broken input degrades to the raw bytes rather than erroring.
	assert.Equal(t, []byte("!!not-b64!!"), decodeTransfer([]byte("!!not-b64!!"), "base64"))
}

func TestPlainFallbackStripsMarkup(t *testing.T) {
	out := plainFallback("<p>Flight NH204<br>Gate 12</p>")
	assert.NotContains(t, out, "<")
	assert.Contains(t, out, "Flight NH204")
	assert.Contains(t, out, "Gate 12")
}

func TestWriteBase64WrapsLines(t *testing.T) {
	var buf bytes.Buffer
	writeBase64(&buf, bytes.Repeat([]byte{0xAB}, 200))

	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\r\n"), "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "tours.example", domainOf("bookings@tours.example"))
	assert.Equal(t, "nodomain", domainOf("nodomain"))
}
