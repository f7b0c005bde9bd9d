package compose

import (
	"sync"

	"tourmail/models"
	"tourmail/utils"
)

// MessageView is the render-ready state for one message in a thread.
type MessageView struct {
	MessageID     string `json:"message_id"`
	From          string `json:"from"`
	FromName      string `json:"from_name"`
	Subject       string `json:"subject"`
	SentAt        string `json:"sent_at"`
	Preview       string `json:"preview"`
	Expanded      bool   `json:"expanded"`
	HasQuote      bool   `json:"has_quote"`
	QuoteExpanded bool   `json:"quote_expanded"`
	// VisibleHTML is the sanitized, cid-resolved portion shown by default;
	// QuotedHTML is the trimmed history revealed on expansion.
	VisibleHTML string `json:"visible_html"`
	QuotedHTML  string `json:"quoted_html,omitempty"`
}

type messageState struct {
	msg           *models.Message
	expanded      bool
	quoteExpanded bool
	segment       *utils.QuoteSegment // computed once per raw body
	segmented     bool
	resolved      string // sanitized + cid-resolved body, invalidated when attachments change
	resolvedOK    bool
}

// Presenter renders a thread's messages with per-message collapse/expand
// state. Quote segmentation runs once per raw body and is cached; toggling
// only flips view flags. Inline-image resolution is re-run when a message's
// attachment snapshot changes.
type Presenter struct {
	sanitizer *utils.Sanitizer
	build     utils.URLBuilder

	mu    sync.Mutex
	order []string
	state map[string]*messageState
}

// NewPresenter creates a presenter rendering through the given sanitizer and
// attachment URL builder.
func NewPresenter(sanitizer *utils.Sanitizer, build utils.URLBuilder) *Presenter {
	return &Presenter{
		sanitizer: sanitizer,
		build:     build,
		state:     make(map[string]*messageState),
	}
}

// SetThread rebuilds the view state from a freshly fetched thread, ordered
// oldest to newest. The most recent message starts expanded, all others
// collapsed; quotes start collapsed everywhere.
func (p *Presenter) SetThread(messages []*models.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.order = p.order[:0]
	p.state = make(map[string]*messageState, len(messages))

	for i, msg := range messages {
		p.order = append(p.order, msg.ID)
		p.state[msg.ID] = &messageState{
			msg:      msg,
			expanded: i == len(messages)-1,
		}
	}
}

// UpdateAttachments installs late-arriving attachment metadata for a message
// and invalidates its resolved body so cid references resolve on next render.
func (p *Presenter) UpdateAttachments(messageID string, attachments []models.Attachment) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.state[messageID]
	if !ok {
		return
	}
	st.msg.Attachments = attachments
	st.msg.HasAttachments = len(attachments) > 0
	st.resolvedOK = false
	st.segmented = false
}

// ToggleExpanded flips a message's collapse state, returning the new value.
func (p *Presenter) ToggleExpanded(messageID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.state[messageID]
	if !ok {
		return false
	}
	st.expanded = !st.expanded
	return st.expanded
}

// ToggleQuote flips a message's quoted-history visibility, returning the new
// value. Segmentation is not re-run.
func (p *Presenter) ToggleQuote(messageID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.state[messageID]
	if !ok {
		return false
	}
	st.quoteExpanded = !st.quoteExpanded
	return st.quoteExpanded
}

// Views renders the thread oldest to newest.
func (p *Presenter) Views() []MessageView {
	p.mu.Lock()
	defer p.mu.Unlock()

	views := make([]MessageView, 0, len(p.order))
	for _, id := range p.order {
		views = append(views, p.renderLocked(p.state[id]))
	}
	return views
}

// View renders a single message.
func (p *Presenter) View(messageID string) (MessageView, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.state[messageID]
	if !ok {
		return MessageView{}, false
	}
	return p.renderLocked(st), true
}

func (p *Presenter) renderLocked(st *messageState) MessageView {
	body := p.resolvedBodyLocked(st)

	var segment *utils.QuoteSegment
	if st.segmented {
		segment = st.segment
	} else {
		segment = utils.SegmentQuote(body)
		// Cache only once the body is stable; a body holding transient
		// loading placeholders is re-segmented when attachments arrive.
		if st.resolvedOK {
			st.segment = segment
			st.segmented = true
		}
	}

	view := MessageView{
		MessageID:     st.msg.ID,
		From:          st.msg.From,
		FromName:      st.msg.FromName,
		Subject:       st.msg.Subject,
		SentAt:        st.msg.SentAt.Format("Jan 02, 2006 15:04"),
		Preview:       st.msg.Preview,
		Expanded:      st.expanded,
		QuoteExpanded: st.quoteExpanded,
	}

	if segment == nil {
		view.VisibleHTML = body
		return view
	}

	view.HasQuote = true
	view.VisibleHTML = segment.Before
	if st.quoteExpanded {
		view.QuotedHTML = segment.After
	}
	return view
}

func (p *Presenter) resolvedBodyLocked(st *messageState) string {
	if st.resolvedOK {
		return st.resolved
	}

	safe := p.sanitizer.Sanitize(st.msg.BodyHTML)

	// Attachment metadata still loading: render loading placeholders and
	// resolve again once UpdateAttachments lands.
	var refs []utils.AttachmentRef
	if st.msg.HasAttachments && len(st.msg.Attachments) == 0 {
		refs = nil
	} else {
		refs = make([]utils.AttachmentRef, 0, len(st.msg.Attachments))
		for _, att := range st.msg.Attachments {
			refs = append(refs, utils.AttachmentRef{ID: att.ID, ContentID: att.ContentID})
		}
	}

	resolved := utils.ResolveInlineImages(safe, st.msg.ID, refs, p.build)

	// Cache only fully resolved bodies; loading placeholders stay transient.
	if refs != nil {
		st.resolved = resolved
		st.resolvedOK = true
	}
	return resolved
}
