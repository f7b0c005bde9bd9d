package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/microcosm-cc/bluemonday"

	"tourmail/models"
	"tourmail/utils"
)

// sentFolders are the common provider names for the sent mailbox.
var sentFolders = []string{"Sent", "Sent Items", "Sent Mail"}

// previewMaxWidth caps the pixel width of inline image previews.
const previewMaxWidth = 1920

var previewPolicy = bluemonday.StrictPolicy()

// IMAPMailbox reads threads and attachments from the agency's shared mailbox
// over IMAP. A connection is dialed per request, the way short-lived
// back-office fetches behave best with pooled upstream limits.
type IMAPMailbox struct {
	server   string
	port     int
	creds    Credentials
	log      *utils.Logger
	fetchCap uint32
}

// NewIMAPMailbox creates a mailbox reader for the configured provider account.
func NewIMAPMailbox(server string, port int, creds Credentials, log *utils.Logger) *IMAPMailbox {
	if log == nil {
		log = utils.Log
	}
	return &IMAPMailbox{
		server:   server,
		port:     port,
		creds:    creds,
		log:      log,
		fetchCap: 200,
	}
}

func (m *IMAPMailbox) connect() (*client.Client, error) {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", m.server, m.port), nil)
	if err != nil {
		return nil, fmt.Errorf("connection error: %v", err)
	}

	if err := c.Login(m.creds.Email, m.creds.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("login error: %v", err)
	}

	return c, nil
}

// FetchThreads lists conversation threads across the inbox and sent folder.
func (m *IMAPMailbox) FetchThreads(ctx context.Context, folder string, limit uint32) ([]*models.Thread, error) {
	c, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	messages, err := m.fetchConversationMessages(ctx, c, folder)
	if err != nil {
		return nil, err
	}

	threads := utils.NewThreadBuilder().BuildThreads(messages)
	if limit > 0 && uint32(len(threads)) > limit {
		threads = threads[:limit]
	}
	return threads, nil
}

// FetchThread returns one thread's messages ordered oldest to newest.
func (m *IMAPMailbox) FetchThread(ctx context.Context, threadID string) ([]*models.Message, error) {
	c, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	messages, err := m.fetchConversationMessages(ctx, c, "INBOX")
	if err != nil {
		return nil, err
	}

	for _, thread := range utils.NewThreadBuilder().BuildThreads(messages) {
		if thread.ID == threadID {
			return thread.Messages, nil
		}
	}

	return nil, utils.NotFoundError(fmt.Sprintf("thread %s not found", threadID), nil)
}

// fetchConversationMessages pulls both directions of the conversation: the
// requested folder plus whichever sent folder the provider uses.
func (m *IMAPMailbox) fetchConversationMessages(ctx context.Context, c *client.Client, folder string) ([]*models.Message, error) {
	messages, err := m.fetchFolder(ctx, c, folder)
	if err != nil {
		return nil, err
	}

	for _, sent := range sentFolders {
		if sent == folder {
			continue
		}
		sentMsgs, err := m.fetchFolder(ctx, c, sent)
		if err != nil {
			continue // Provider uses a different sent folder name
		}
		messages = append(messages, sentMsgs...)
		break
	}

	return messages, nil
}

func (m *IMAPMailbox) fetchFolder(ctx context.Context, c *client.Client, folder string) ([]*models.Message, error) {
	mbox, err := c.Select(folder, true)
	if err != nil {
		return nil, fmt.Errorf("error selecting folder %s: %v", folder, err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	from := uint32(1)
	if mbox.Messages > m.fetchCap {
		from = mbox.Messages - m.fetchCap + 1
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, mbox.Messages)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchUid, section.FetchItem()}

	msgChan := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, items, msgChan)
	}()

	var out []*models.Message
	for msg := range msgChan {
		select {
		case <-ctx.Done():
			// Drain and report cancellation; a switched-away fetch must not
			// surface its results.
			for range msgChan {
			}
			<-done
			return nil, ctx.Err()
		default:
		}

		parsed, err := m.processMessage(folder, msg, section)
		if err != nil {
			m.log.Warn("skipping unparsable message %d in %s: %v", msg.Uid, folder, err)
			continue
		}
		out = append(out, parsed)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("error fetching messages from %s: %v", folder, err)
	}

	return out, nil
}

// FetchAttachment returns one attachment with content, for download or
// inline preview.
func (m *IMAPMailbox) FetchAttachment(ctx context.Context, messageID, attachmentID string, preview bool) (models.Attachment, error) {
	folder, uid, err := splitMessageID(messageID)
	if err != nil {
		return models.Attachment{}, err
	}

	c, err := m.connect()
	if err != nil {
		return models.Attachment{}, err
	}
	defer c.Logout()

	if _, err := c.Select(folder, true); err != nil {
		return models.Attachment{}, fmt.Errorf("error selecting folder %s: %v", folder, err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchUid, section.FetchItem()}

	msgChan := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, items, msgChan)
	}()

	var target *models.Message
	for msg := range msgChan {
		parsed, err := m.processMessage(folder, msg, section)
		if err != nil {
			continue
		}
		target = parsed
	}
	if err := <-done; err != nil {
		return models.Attachment{}, fmt.Errorf("error fetching message: %v", err)
	}
	if target == nil {
		return models.Attachment{}, utils.NotFoundError("message not found", nil)
	}

	for _, att := range target.Attachments {
		if att.ID == attachmentID {
			if preview && utils.IsOptimizableImage(att.MimeType) {
				scaled, err := utils.OptimizeImage(att.Content, previewMaxWidth)
				if err != nil {
					m.log.Warn("failed to scale preview for %s/%s, serving original: %v", messageID, attachmentID, err)
				} else {
					att.Content = scaled
				}
			}
			return att, nil
		}
	}

	return models.Attachment{}, utils.NotFoundError("attachment not found", nil)
}

func (m *IMAPMailbox) processMessage(folder string, msg *imap.Message, section *imap.BodySectionName) (*models.Message, error) {
	out := &models.Message{
		ID:    fmt.Sprintf("%s:%d", folder, msg.Uid),
		Flags: msg.Flags,
	}

	if msg.Envelope != nil {
		out.Subject = msg.Envelope.Subject
		out.SentAt = msg.Envelope.Date

		if len(msg.Envelope.From) > 0 && msg.Envelope.From[0] != nil {
			out.From = msg.Envelope.From[0].Address()
			out.FromName = msg.Envelope.From[0].PersonalName
		}
		out.To = addressList(msg.Envelope.To)
		out.Cc = addressList(msg.Envelope.Cc)
		out.Bcc = addressList(msg.Envelope.Bcc)
	}

	out.IsFromOperator = strings.EqualFold(out.From, m.creds.Email)
	out.IsDraft = hasFlag(msg.Flags, imap.DraftFlag)

	r := msg.GetBody(section)
	if r == nil {
		return out, nil
	}

	parsed, err := mail.ReadMessage(r)
	if err != nil {
		return out, fmt.Errorf("error parsing message: %v", err)
	}

	out.MessageID = strings.Trim(parsed.Header.Get("Message-Id"), "<>")
	out.InReplyTo = strings.Trim(parsed.Header.Get("In-Reply-To"), "<>")
	for _, ref := range strings.Fields(parsed.Header.Get("References")) {
		out.References = append(out.References, strings.Trim(ref, "<>"))
	}

	if err := m.readBody(parsed, out); err != nil {
		return out, err
	}

	if out.BodyText != "" {
		out.Preview = utils.Preview(out.BodyText)
	} else if out.BodyHTML != "" {
		out.Preview = utils.Preview(previewPolicy.Sanitize(out.BodyHTML))
	}
	out.HasAttachments = len(out.Attachments) > 0

	return out, nil
}

func (m *IMAPMailbox) readBody(parsed *mail.Message, out *models.Message) error {
	contentType := parsed.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		data, err := io.ReadAll(parsed.Body)
		if err != nil {
			return fmt.Errorf("error reading body: %v", err)
		}
		body := string(decodeTransfer(data, parsed.Header.Get("Content-Transfer-Encoding")))
		if strings.Contains(mediaType, "html") {
			out.BodyHTML = body
		} else {
			out.BodyText = body
		}
		return nil
	}

	return m.walkParts(multipart.NewReader(parsed.Body, params["boundary"]), out)
}

func (m *IMAPMailbox) walkParts(mr *multipart.Reader, out *models.Message) error {
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			m.log.Debug("error reading next part: %v", err)
			return nil
		}

		partType := p.Header.Get("Content-Type")
		mediaType, params, err := mime.ParseMediaType(partType)
		if err != nil {
			mediaType = partType
		}

		if strings.HasPrefix(mediaType, "multipart/") {
			if err := m.walkParts(multipart.NewReader(p, params["boundary"]), out); err != nil {
				return err
			}
			continue
		}

		data, err := io.ReadAll(p)
		if err != nil {
			m.log.Debug("error reading part: %v", err)
			continue
		}
		data = decodeTransfer(data, p.Header.Get("Content-Transfer-Encoding"))

		disposition, dispParams, _ := mime.ParseMediaType(p.Header.Get("Content-Disposition"))
		contentID := strings.Trim(p.Header.Get("Content-Id"), "<>")

		isAttachment := disposition == "attachment" ||
			(disposition == "inline" && !strings.HasPrefix(mediaType, "text/")) ||
			contentID != ""

		switch {
		case isAttachment:
			filename := dispParams["filename"]
			if filename == "" {
				filename = params["name"]
			}
			out.Attachments = append(out.Attachments, models.Attachment{
				ID:        fmt.Sprintf("%d", len(out.Attachments)+1),
				Filename:  filename,
				MimeType:  mediaType,
				SizeBytes: len(data),
				ContentID: contentID,
				Content:   data,
			})
		case strings.Contains(mediaType, "text/html"):
			out.BodyHTML = string(data)
		case strings.Contains(mediaType, "text/plain"):
			out.BodyText = string(data)
		}
	}
}

func decodeTransfer(data []byte, encoding string) []byte {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		decoded, err := io.ReadAll(base64.NewDecoder(base64.StdEncoding, bytes.NewReader(bytes.ReplaceAll(data, []byte("\r\n"), nil))))
		if err != nil {
			return data
		}
		return decoded
	case "quoted-printable":
		decoded, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(data)))
		if err != nil {
			return data
		}
		return decoded
	default:
		return data
	}
}

func addressList(addrs []*imap.Address) []string {
	var out []string
	for _, addr := range addrs {
		if addr != nil {
			out = append(out, addr.Address())
		}
	}
	return out
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}

func splitMessageID(messageID string) (folder string, uid uint32, err error) {
	i := strings.LastIndex(messageID, ":")
	if i < 0 {
		return "", 0, utils.BadRequestError("invalid message id", nil)
	}
	folder = messageID[:i]
	if _, err := fmt.Sscanf(messageID[i+1:], "%d", &uid); err != nil {
		return "", 0, utils.BadRequestError("invalid message id", err)
	}
	return folder, uid, nil
}
