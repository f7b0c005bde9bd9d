package provider

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"math/rand"
	"net/smtp"
	"os"
	"strings"
	"time"

	"tourmail/models"
	"tourmail/utils"
)

// SMTPSender delivers composed messages through the agency's provider
// account. It returns the generated Message-ID so the sent message can be
// threaded locally before the provider's sent folder catches up.
type SMTPSender struct {
	server string
	port   int
	creds  Credentials
	log    *utils.Logger
}

// NewSMTPSender creates an outbound sender for the configured account.
func NewSMTPSender(server string, port int, creds Credentials, log *utils.Logger) *SMTPSender {
	if log == nil {
		log = utils.Log
	}
	return &SMTPSender{
		server: server,
		port:   port,
		creds:  creds,
		log:    log,
	}
}

// Send delivers the draft to every To, Cc, and Bcc recipient and returns the
// Message-ID assigned to the outgoing mail.
func (s *SMTPSender) Send(ctx context.Context, draft *models.Draft, attachments []models.Attachment) (string, error) {
	addr := fmt.Sprintf("%s:%d", s.server, s.port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return "", fmt.Errorf("dial failed: %v", err)
	}
	defer client.Close()

	domain := domainOf(s.creds.Email)
	if err := client.Hello(domain); err != nil {
		return "", fmt.Errorf("hello failed: %v", err)
	}

	tlsConfig := &tls.Config{ServerName: s.server}
	if err := client.StartTLS(tlsConfig); err != nil {
		return "", fmt.Errorf("starttls failed: %v", err)
	}

	auth := smtp.PlainAuth("", s.creds.Email, s.creds.Password, s.server)
	if err := client.Auth(auth); err != nil {
		return "", fmt.Errorf("auth failed: %v", err)
	}

	if err := client.Mail(s.creds.Email); err != nil {
		return "", fmt.Errorf("mail from failed: %v", err)
	}

	recipients := append(append(append([]string{}, draft.To...), draft.Cc...), draft.Bcc...)
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return "", fmt.Errorf("rcpt to %s failed: %v", rcpt, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return "", fmt.Errorf("data failed: %v", err)
	}

	messageID := fmt.Sprintf("%s@%s", generateMessageID(), domain)
	if err := s.writeMessage(writer, draft, attachments, messageID); err != nil {
		return "", err
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("data close failed: %v", err)
	}

	if err := client.Quit(); err != nil {
		return "", fmt.Errorf("quit failed: %v", err)
	}

	s.log.Info("sent message %s to %d recipient(s)", messageID, len(recipients))
	return messageID, nil
}

func (s *SMTPSender) writeMessage(w io.Writer, draft *models.Draft, attachments []models.Attachment, messageID string) error {
	mixedBoundary := fmt.Sprintf("mixed-%s", generateBoundary())
	altBoundary := fmt.Sprintf("alt-%s", generateBoundary())

	var headerBuf bytes.Buffer
	writeHeader := func(k, v string) {
		fmt.Fprintf(&headerBuf, "%s: %s\r\n", k, v)
	}

	writeHeader("Date", time.Now().Format(time.RFC1123Z))
	writeHeader("From", s.creds.Email)
	writeHeader("To", strings.Join(draft.To, ", "))
	if len(draft.Cc) > 0 {
		writeHeader("Cc", strings.Join(draft.Cc, ", "))
	}
	writeHeader("Subject", draft.Subject)
	writeHeader("MIME-Version", "1.0")
	writeHeader("Message-ID", fmt.Sprintf("<%s>", messageID))
	if draft.InReplyTo != "" {
		writeHeader("In-Reply-To", fmt.Sprintf("<%s>", draft.InReplyTo))
		writeHeader("References", fmt.Sprintf("<%s>", draft.InReplyTo))
	}

	if len(attachments) > 0 {
		writeHeader("Content-Type", fmt.Sprintf("multipart/mixed; boundary=%q", mixedBoundary))
	} else {
		writeHeader("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", altBoundary))
	}
	headerBuf.WriteString("\r\n")

	if _, err := w.Write(headerBuf.Bytes()); err != nil {
		return err
	}

	if len(attachments) == 0 {
		writeAlternativePart(w, draft.BodyHTML, altBoundary)
		fmt.Fprintf(w, "--%s--\r\n", altBoundary)
		return nil
	}

	fmt.Fprintf(w, "--%s\r\n", mixedBoundary)
	fmt.Fprintf(w, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", altBoundary)
	writeAlternativePart(w, draft.BodyHTML, altBoundary)
	fmt.Fprintf(w, "--%s--\r\n", altBoundary)

	for _, att := range attachments {
		fmt.Fprintf(w, "--%s\r\n", mixedBoundary)
		fmt.Fprintf(w, "Content-Type: %s; name=%q\r\n", att.MimeType, att.Filename)
		fmt.Fprintf(w, "Content-Disposition: attachment; filename=%q\r\n", att.Filename)
		if att.ContentID != "" {
			fmt.Fprintf(w, "Content-Id: <%s>\r\n", att.ContentID)
		}
		fmt.Fprintf(w, "Content-Transfer-Encoding: base64\r\n\r\n")
		writeBase64(w, att.Content)
	}
	fmt.Fprintf(w, "--%s--\r\n", mixedBoundary)

	return nil
}

func writeAlternativePart(w io.Writer, body, boundary string) {
	fmt.Fprintf(w, "--%s\r\n", boundary)
	fmt.Fprintf(w, "Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	fmt.Fprintf(w, "%s\r\n", plainFallback(body))

	fmt.Fprintf(w, "--%s\r\n", boundary)
	fmt.Fprintf(w, "Content-Type: text/html; charset=\"utf-8\"\r\n\r\n")
	fmt.Fprintf(w, "%s\r\n", body)
}

// plainFallback derives the text/plain alternative from the HTML body.
func plainFallback(body string) string {
	body = strings.ReplaceAll(body, "<br>", "\n")
	body = strings.ReplaceAll(body, "</p>", "\n")
	return previewPolicy.Sanitize(body)
}

// writeBase64 encodes data in 76-character lines per RFC 2045.
func writeBase64(w io.Writer, data []byte) {
	b64 := base64.StdEncoding.EncodeToString(data)
	for i := 0; i < len(b64); i += 76 {
		end := i + 76
		if end > len(b64) {
			end = len(b64)
		}
		fmt.Fprintf(w, "%s\r\n", b64[i:end])
	}
}

func generateBoundary() string {
	return fmt.Sprintf("%x", rand.Int63())
}

func generateMessageID() string {
	return fmt.Sprintf("%d.%d.%d", time.Now().UnixNano(), os.Getpid(), rand.Int63())
}

func domainOf(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return email[i+1:]
	}
	return email
}
