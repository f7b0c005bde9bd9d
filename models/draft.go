package models

import "time"

// ComposeMode distinguishes how a compose surface was opened.
type ComposeMode string

const (
	ModeNew      ComposeMode = "new"
	ModeReply    ComposeMode = "reply"
	ModeReplyAll ComposeMode = "replyAll"
	ModeForward  ComposeMode = "forward"
)

// Draft is an in-progress message. The zero ID means the draft has never been
// persisted; the store assigns one on first save and it is carried forever
// after.
type Draft struct {
	ID        string      `json:"id"`
	To        []string    `json:"to"`
	Cc        []string    `json:"cc"`
	Bcc       []string    `json:"bcc"`
	Subject   string      `json:"subject"`
	BodyHTML  string      `json:"body_html"`
	Mode      ComposeMode `json:"mode"`
	ThreadID  string      `json:"thread_id,omitempty"`
	InReplyTo string      `json:"in_reply_to,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ScheduledEmail is a queued future delivery owned by the external scheduling
// system. The mail center only lists these.
type ScheduledEmail struct {
	ID      string    `json:"id"`
	To      []string  `json:"to"`
	Subject string    `json:"subject"`
	SendAt  time.Time `json:"send_at"`
}
