package compose

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tourmail/models"
	"tourmail/utils"
)

// ThreadService is the mail-provider boundary the controller reads from.
// FetchThread returns the thread's messages ordered oldest to newest.
type ThreadService interface {
	FetchThread(ctx context.Context, threadID string) ([]*models.Message, error)
}

// ErrStaleFetch is returned when a thread fetch resolves after a newer fetch
// for the same thread has already started; its results must not be applied.
var ErrStaleFetch = errors.New("stale thread fetch superseded by a newer request")

// ControllerConfig tunes the controller and the sessions it spawns.
type ControllerConfig struct {
	Session SessionConfig
	// CacheTTL is the freshness window for fetched thread results.
	CacheTTL time.Duration
	// OnSurfaceStatus, when set, receives every phase change of every surface
	// the controller opens, tagged with the surface id.
	OnSurfaceStatus func(surfaceID string, st Status)
	Logger          *utils.Logger
}

// Surface pairs a compose session with the identity of the operator who
// opened it.
type Surface struct {
	ID       string
	Operator string
	Session  *Session
}

// Controller wires operator actions (reply, reply-all, forward, new compose,
// send, discard) to draft sessions, and thread fetches to presenters. It owns
// the thread result cache and the per-thread fetch generation counters that
// keep stale responses from clobbering newer ones.
type Controller struct {
	threads   ThreadService
	store     DraftStore
	sender    Sender
	sanitizer *utils.Sanitizer
	build     utils.URLBuilder
	cache     *utils.MemoryCache
	cfg       ControllerConfig
	log       *utils.Logger

	mu         sync.Mutex
	surfaces   map[string]*Surface
	presenters map[string]*Presenter
	fetchGen   map[string]uint64
}

// NewController creates a controller over the given boundaries.
func NewController(threads ThreadService, store DraftStore, sender Sender, sanitizer *utils.Sanitizer, build utils.URLBuilder, cache *utils.MemoryCache, cfg ControllerConfig) *Controller {
	log := cfg.Logger
	if log == nil {
		log = utils.Log
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	return &Controller{
		threads:    threads,
		store:      store,
		sender:     sender,
		sanitizer:  sanitizer,
		build:      build,
		cache:      cache,
		cfg:        cfg,
		log:        log,
		surfaces:   make(map[string]*Surface),
		presenters: make(map[string]*Presenter),
		fetchGen:   make(map[string]uint64),
	}
}

// OpenThread fetches a thread and (re)builds its presenter. The most recent
// draft-typed entry, if present, is split off and returned for routing into a
// compose surface instead of being displayed. A fetch that resolves after a
// newer OpenThread call for the same thread returns ErrStaleFetch.
func (c *Controller) OpenThread(ctx context.Context, threadID string) (*Presenter, *models.Message, error) {
	c.mu.Lock()
	c.fetchGen[threadID]++
	gen := c.fetchGen[threadID]
	c.mu.Unlock()

	cacheKey := "thread:" + threadID

	var messages []*models.Message
	if cached, ok := c.cache.Get(cacheKey); ok {
		messages = cached.([]*models.Message)
	} else {
		fetched, err := c.threads.FetchThread(ctx, threadID)
		if err != nil {
			return nil, nil, err
		}

		c.mu.Lock()
		stale := gen != c.fetchGen[threadID]
		c.mu.Unlock()
		if stale {
			return nil, nil, ErrStaleFetch
		}

		c.cache.Set(cacheKey, fetched, c.cfg.CacheTTL)
		messages = fetched
	}

	var pendingDraft *models.Message
	display := make([]*models.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.IsDraft {
			pendingDraft = msg
			continue
		}
		display = append(display, msg)
	}

	c.mu.Lock()
	presenter, ok := c.presenters[threadID]
	if !ok {
		presenter = NewPresenter(c.sanitizer, c.build)
		c.presenters[threadID] = presenter
	}
	c.mu.Unlock()

	presenter.SetThread(display)
	return presenter, pendingDraft, nil
}

// Presenter returns the presenter for an already-opened thread.
func (c *Controller) Presenter(threadID string) (*Presenter, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.presenters[threadID]
	return p, ok
}

// InvalidateThread drops the cached fetch result for a thread.
func (c *Controller) InvalidateThread(threadID string) {
	c.cache.Delete("thread:" + threadID)
}

// OpenCompose opens a blank compose surface for the operator.
func (c *Controller) OpenCompose(operator string) *Surface {
	draft := models.Draft{
		Mode:     models.ModeNew,
		To:       []string{},
		Cc:       []string{},
		BodyHTML: c.cfg.Session.SignaturePlaceholder,
	}
	return c.openSurface(operator, draft)
}

// OpenDraft reopens a previously persisted draft in a fresh surface.
func (c *Controller) OpenDraft(operator string, draft models.Draft) *Surface {
	return c.openSurface(operator, draft)
}

// OpenReply opens a reply, reply-all, or forward surface for a message in a
// thread, seeding recipients, subject, and quoted history.
func (c *Controller) OpenReply(ctx context.Context, operator, threadID, messageID string, mode models.ComposeMode) (*Surface, error) {
	_, _, err := c.OpenThread(ctx, threadID)
	if err != nil && !errors.Is(err, ErrStaleFetch) {
		return nil, err
	}

	cached, ok := c.cache.Get("thread:" + threadID)
	if !ok {
		return nil, fmt.Errorf("thread %s is not loaded", threadID)
	}
	messages := cached.([]*models.Message)

	var target *models.Message
	for _, msg := range messages {
		if msg.ID == messageID {
			target = msg
			break
		}
	}
	if target == nil {
		return nil, utils.NotFoundError("message not found in thread", nil)
	}

	recipients := ResolveRecipients(mode, target, messages, operator)

	draft := models.Draft{
		Mode:      mode,
		ThreadID:  threadID,
		InReplyTo: target.MessageID,
		To:        recipients.To,
		Cc:        recipients.Cc,
	}

	switch mode {
	case models.ModeForward:
		draft.Subject = utils.ForwardSubject(target.Subject)
		draft.BodyHTML = c.cfg.Session.SignaturePlaceholder + c.forwardedBodyHTML(target)
	default:
		draft.Subject = utils.ReplySubject(target.Subject)
		draft.BodyHTML = c.cfg.Session.SignaturePlaceholder + c.quotedReplyHTML(target)
	}

	return c.openSurface(operator, draft), nil
}

func (c *Controller) openSurface(operator string, draft models.Draft) *Surface {
	id := uuid.New().String()

	sessCfg := c.cfg.Session
	if c.cfg.OnSurfaceStatus != nil {
		inner := sessCfg.OnStatus
		sessCfg.OnStatus = func(st Status) {
			if inner != nil {
				inner(st)
			}
			c.cfg.OnSurfaceStatus(id, st)
		}
	}

	session := NewSession(c.store, c.sender, sessCfg)
	session.Open(draft)

	surface := &Surface{
		ID:       id,
		Operator: operator,
		Session:  session,
	}

	c.mu.Lock()
	c.surfaces[surface.ID] = surface
	c.mu.Unlock()

	c.log.Info("compose surface opened: id=%s mode=%s operator=%s", surface.ID, draft.Mode, operator)
	return surface
}

// Surface looks up an open compose surface by id.
func (c *Controller) Surface(id string) (*Surface, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.surfaces[id]
	return s, ok
}

// Send sends a surface's draft and closes it on success.
func (c *Controller) Send(ctx context.Context, surfaceID string, attachments []models.Attachment) (string, error) {
	surface, ok := c.Surface(surfaceID)
	if !ok {
		return "", utils.NotFoundError("compose surface not found", nil)
	}

	messageID, err := surface.Session.SendNow(ctx, attachments)
	if err != nil {
		return "", err
	}

	c.closeSurface(surfaceID)
	if threadID := surface.Session.Draft().ThreadID; threadID != "" {
		c.InvalidateThread(threadID)
	}
	return messageID, nil
}

// Discard discards a surface's draft and closes it.
func (c *Controller) Discard(ctx context.Context, surfaceID string) error {
	surface, ok := c.Surface(surfaceID)
	if !ok {
		return utils.NotFoundError("compose surface not found", nil)
	}

	surface.Session.Discard(ctx)
	c.closeSurface(surfaceID)
	return nil
}

func (c *Controller) closeSurface(id string) {
	c.mu.Lock()
	delete(c.surfaces, id)
	c.mu.Unlock()
}

// quotedReplyHTML wraps the target message's body in an attributed quote
// container the segmenter recognizes.
func (c *Controller) quotedReplyHTML(msg *models.Message) string {
	attribution := fmt.Sprintf("On %s, %s wrote:", msg.SentAt.Format(time.RFC1123), msg.From)

	return fmt.Sprintf(
		`<br><br><div class="tour_quote"><p>%s</p><blockquote>%s</blockquote></div>`,
		html.EscapeString(attribution),
		c.safeBody(msg),
	)
}

// forwardedBodyHTML builds the forwarded-message header block and body.
func (c *Controller) forwardedBodyHTML(msg *models.Message) string {
	var sb strings.Builder
	sb.WriteString(`<br><br><div class="tour_quote"><p>---------- Forwarded message ---------</p><p>`)
	fmt.Fprintf(&sb, "From: %s<br>", html.EscapeString(msg.From))
	fmt.Fprintf(&sb, "Date: %s<br>", html.EscapeString(msg.SentAt.Format(time.RFC1123)))
	fmt.Fprintf(&sb, "Subject: %s<br>", html.EscapeString(msg.Subject))
	fmt.Fprintf(&sb, "To: %s", html.EscapeString(strings.Join(msg.To, ", ")))
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&sb, "<br>Cc: %s", html.EscapeString(strings.Join(msg.Cc, ", ")))
	}
	sb.WriteString("</p>")
	sb.WriteString(c.safeBody(msg))
	sb.WriteString("</div>")
	return sb.String()
}

func (c *Controller) safeBody(msg *models.Message) string {
	if msg.BodyHTML != "" {
		return c.sanitizer.Sanitize(msg.BodyHTML)
	}
	return "<pre>" + html.EscapeString(msg.BodyText) + "</pre>"
}
