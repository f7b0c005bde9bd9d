package models

import "time"

// Message represents an email message in a conversation thread. Messages come
// from the mail provider and are never mutated by the compose engine.
type Message struct {
	ID             string       `json:"id"`
	ThreadID       string       `json:"thread_id"`
	From           string       `json:"from"`
	FromName       string       `json:"from_name"`
	To             []string     `json:"to"`
	Cc             []string     `json:"cc"`
	Bcc            []string     `json:"bcc"`
	Subject        string       `json:"subject"`
	BodyHTML       string       `json:"body_html"`
	BodyText       string       `json:"body_text"`
	Preview        string       `json:"preview"`
	SentAt         time.Time    `json:"sent_at"`
	IsFromOperator bool         `json:"is_from_operator"`
	IsDraft        bool         `json:"is_draft"`
	Flags          []string     `json:"flags"`
	Attachments    []Attachment `json:"attachments"`
	HasAttachments bool         `json:"has_attachments"`

	// Threading headers
	MessageID  string   `json:"message_id"`
	InReplyTo  string   `json:"in_reply_to"`
	References []string `json:"references"`
}

// Attachment represents an email attachment. ContentID is set for inline
// parts referenced from the body markup via cid: URIs.
type Attachment struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	MimeType  string `json:"mime_type"`
	SizeBytes int    `json:"size_bytes"`
	ContentID string `json:"content_id,omitempty"`
	Content   []byte `json:"-"` // Excluded from JSON
}
