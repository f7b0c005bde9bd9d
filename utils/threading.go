package utils

import (
	"sort"
	"time"

	"tourmail/models"
)

// ThreadContainer holds message threading information
type ThreadContainer struct {
	Message  *models.Message
	Parent   *ThreadContainer
	Children []*ThreadContainer
}

// ThreadBuilder groups messages into threads using the JWZ algorithm
type ThreadBuilder struct {
	idTable map[string]*ThreadContainer
	rootSet []*ThreadContainer
}

// NewThreadBuilder creates a new thread builder
func NewThreadBuilder() *ThreadBuilder {
	return &ThreadBuilder{
		idTable: make(map[string]*ThreadContainer),
	}
}

// BuildThreads implements the JWZ threading algorithm
func (tb *ThreadBuilder) BuildThreads(messages []*models.Message) []*models.Thread {
	// Step 1: Create containers for all messages and link references
	for _, msg := range messages {
		tb.getContainer(msg.MessageID).Message = msg

		var prev *ThreadContainer
		for _, ref := range msg.References {
			container := tb.getContainer(ref)
			if prev != nil && container != prev && container.Parent == nil {
				container.Parent = prev
				prev.Children = append(prev.Children, container)
			}
			prev = container
		}

		if msg.InReplyTo != "" {
			parent := tb.getContainer(msg.InReplyTo)
			child := tb.getContainer(msg.MessageID)

			if parent != child && child.Parent == nil {
				child.Parent = parent
				parent.Children = append(parent.Children, child)
			}
		}
	}

	// Step 2: Find root set
	for _, container := range tb.idTable {
		if container.Parent == nil {
			tb.rootSet = append(tb.rootSet, container)
		}
	}

	// Step 3: Group into threads
	threads := tb.groupThreads()

	// Step 4: Sort threads by date (newest first)
	sort.Slice(threads, func(i, j int) bool {
		return threads[i].LastDate.After(threads[j].LastDate)
	})

	return threads
}

func (tb *ThreadBuilder) getContainer(messageID string) *ThreadContainer {
	if messageID == "" {
		return &ThreadContainer{}
	}

	container, exists := tb.idTable[messageID]
	if !exists {
		container = &ThreadContainer{}
		tb.idTable[messageID] = container
	}
	return container
}

func (tb *ThreadBuilder) groupThreads() []*models.Thread {
	var threads []*models.Thread

	for _, root := range tb.rootSet {
		if root.Message == nil && len(root.Children) == 0 {
			continue
		}

		thread := &models.Thread{
			ID: threadIDFor(root),
		}

		tb.collectMessages(root, thread)

		if len(thread.Messages) == 0 {
			continue
		}

		// Oldest first, the way the thread view renders them
		sort.Slice(thread.Messages, func(i, j int) bool {
			return thread.Messages[i].SentAt.Before(thread.Messages[j].SentAt)
		})

		thread.MessageCount = len(thread.Messages)
		thread.Subject = NormalizeSubject(thread.Messages[0].Subject)

		participants := make(map[string]bool)
		for _, msg := range thread.Messages {
			if msg.From != "" {
				participants[msg.From] = true
			}
			for _, to := range msg.To {
				participants[to] = true
			}
		}
		thread.Participants = mapKeys(participants)

		for _, msg := range thread.Messages {
			msg.ThreadID = thread.ID
			if msg.SentAt.After(thread.LastDate) {
				thread.LastDate = msg.SentAt
			}
			if !hasFlag(msg.Flags, "\\Seen") && !msg.IsFromOperator {
				thread.Unread = true
			}
			if msg.HasAttachments {
				thread.HasAttachment = true
			}
		}

		threads = append(threads, thread)
	}

	return threads
}

func (tb *ThreadBuilder) collectMessages(container *ThreadContainer, thread *models.Thread) {
	if container.Message != nil {
		thread.Messages = append(thread.Messages, container.Message)
	}

	for _, child := range container.Children {
		tb.collectMessages(child, thread)
	}
}

func threadIDFor(root *ThreadContainer) string {
	if root.Message != nil && root.Message.MessageID != "" {
		return GenerateThreadID(root.Message.MessageID)
	}
	return time.Now().Format("20060102150405")
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}

func mapKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
