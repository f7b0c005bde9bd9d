package provider

import (
	"context"

	"tourmail/models"
)

// Mailbox is the read side of the mail-provider boundary.
type Mailbox interface {
	// FetchThreads lists conversation threads in a folder, newest first.
	FetchThreads(ctx context.Context, folder string, limit uint32) ([]*models.Thread, error)
	// FetchThread returns one thread's messages ordered oldest to newest.
	FetchThread(ctx context.Context, threadID string) ([]*models.Message, error)
	// FetchAttachment returns one attachment with its content loaded.
	FetchAttachment(ctx context.Context, messageID, attachmentID string, preview bool) (models.Attachment, error)
}

// ScheduledLister is the boundary to the external scheduled-delivery system.
// Delivery itself is owned by that system; the mail center only lists what is
// queued.
type ScheduledLister interface {
	ListScheduled(ctx context.Context) ([]models.ScheduledEmail, error)
}

// Credentials identify the shared provider account the back office uses.
type Credentials struct {
	Email    string
	Password string
}
