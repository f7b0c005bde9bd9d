package models

import "time"

// Thread represents an email conversation
type Thread struct {
	ID            string     `json:"id"`
	Subject       string     `json:"subject"`
	Participants  []string   `json:"participants"`
	MessageCount  int        `json:"message_count"`
	LastDate      time.Time  `json:"last_date"`
	Messages      []*Message `json:"messages"`
	Unread        bool       `json:"unread"`
	HasAttachment bool       `json:"has_attachment"`
}
