package compose

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tourmail/models"
	"tourmail/utils"
)

// Phase is the lifecycle state of a compose surface.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseOpening
	PhaseEditing
	PhaseSaving
	PhaseSaved
	PhaseError
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseOpening:
		return "opening"
	case PhaseEditing:
		return "editing"
	case PhaseSaving:
		return "saving"
	case PhaseSaved:
		return "saved"
	case PhaseError:
		return "error"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DraftStore is the remote draft persistence boundary. SaveDraft is an
// idempotent upsert: it returns the id of the stored draft, assigning one
// when the draft has none. DeleteDraft is a no-op when the draft does not
// exist.
type DraftStore interface {
	SaveDraft(ctx context.Context, draft *models.Draft) (string, error)
	DeleteDraft(ctx context.Context, draftID string) error
}

// Sender is the outbound mail boundary.
type Sender interface {
	Send(ctx context.Context, draft *models.Draft, attachments []models.Attachment) (string, error)
}

// Status is a point-in-time view of a session, published to the operator as
// a passive indicator.
type Status struct {
	Phase     Phase  `json:"-"`
	PhaseName string `json:"phase"`
	DraftID   string `json:"draft_id,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// SessionConfig tunes a session's timing and persistence preconditions.
type SessionConfig struct {
	// DebounceDelay is how long after the last mutation an autosave fires.
	DebounceDelay time.Duration
	// OpenGrace is the window after Open during which no autosave may fire
	// unless the operator edits first.
	OpenGrace time.Duration
	// SignaturePlaceholder is the seeded body that does not count as
	// content worth persisting.
	SignaturePlaceholder string
	// OnStatus, when set, receives every phase change.
	OnStatus func(Status)
	Logger   *utils.Logger
}

// DraftPatch carries a partial mutation of the draft's editable fields.
type DraftPatch struct {
	To       *[]string `json:"to,omitempty"`
	Cc       *[]string `json:"cc,omitempty"`
	Bcc      *[]string `json:"bcc,omitempty"`
	Subject  *string   `json:"subject,omitempty"`
	BodyHTML *string   `json:"body_html,omitempty"`
}

// Session owns one compose/reply surface's draft lifecycle: debounced
// autosave, the open-grace guard, and strictly ordered persistence. Saves for
// a surface are serialized; a save completing after the session closed is
// ignored. A draft id returned by the first save is carried on every later
// save so a surface never creates a second remote draft.
type Session struct {
	mu     sync.Mutex
	cfg    SessionConfig
	store  DraftStore
	sender Sender
	log    *utils.Logger

	phase     Phase
	draft     models.Draft
	lastSaved string
	lastErr   error

	debounce *time.Timer
	grace    *time.Timer

	inFlight    bool
	pendingSave bool
	saveSeq     uint64
	appliedSeq  uint64
}

// NewSession creates an idle session.
func NewSession(store DraftStore, sender Sender, cfg SessionConfig) *Session {
	log := cfg.Logger
	if log == nil {
		log = utils.Log
	}
	return &Session{
		cfg:    cfg,
		store:  store,
		sender: sender,
		log:    log,
		phase:  PhaseIdle,
	}
}

// Open initializes the surface with a draft's data (a saved draft being
// reopened, or freshly seeded reply/forward/new-compose content). Until the
// grace window elapses or the operator edits, no autosave may fire: opening
// a draft must never save it over itself before the operator touches it.
func (s *Session) Open(draft models.Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.draft = draft
	s.lastSaved = snapshot(&draft)
	s.phase = PhaseOpening

	if s.grace != nil {
		s.grace.Stop()
	}
	s.grace = time.AfterFunc(s.cfg.OpenGrace, s.graceElapsed)

	s.publishLocked()
}

func (s *Session) graceElapsed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseOpening {
		return
	}
	s.phase = PhaseEditing
	s.publishLocked()
}

// Mutate applies a partial field change and resets the debounce timer. The
// first mutation while the surface is still opening ends the open guard.
func (s *Session) Mutate(patch DraftPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseClosed {
		return fmt.Errorf("compose surface is closed")
	}

	if s.phase == PhaseOpening {
		if s.grace != nil {
			s.grace.Stop()
		}
		s.phase = PhaseEditing
	}

	if patch.To != nil {
		s.draft.To = *patch.To
	}
	if patch.Cc != nil {
		s.draft.Cc = *patch.Cc
	}
	if patch.Bcc != nil {
		s.draft.Bcc = *patch.Bcc
	}
	if patch.Subject != nil {
		s.draft.Subject = *patch.Subject
	}
	if patch.BodyHTML != nil {
		s.draft.BodyHTML = *patch.BodyHTML
	}

	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = time.AfterFunc(s.cfg.DebounceDelay, s.autosave)

	return nil
}

// EditBody applies structured commands to the draft body through a parsed
// document and stores the re-serialized result as a normal body mutation. The
// visual surface never patches the body string directly.
func (s *Session) EditBody(edit func(*Document) error) error {
	s.mu.Lock()
	if s.phase == PhaseClosed {
		s.mu.Unlock()
		return fmt.Errorf("compose surface is closed")
	}
	body := s.draft.BodyHTML
	s.mu.Unlock()

	doc, err := ParseBody(body)
	if err != nil {
		return err
	}
	if err := edit(doc); err != nil {
		return err
	}
	out, err := doc.HTML()
	if err != nil {
		return err
	}

	return s.Mutate(DraftPatch{BodyHTML: &out})
}

// autosave fires when the debounce timer elapses.
func (s *Session) autosave() {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The open guard: no autosave while the surface is still opening.
	if s.phase == PhaseOpening || s.phase == PhaseClosed || s.phase == PhaseIdle {
		return
	}

	if !s.worthPersistingLocked() {
		return
	}

	if snapshot(&s.draft) == s.lastSaved {
		return
	}

	// Saves are strictly ordered: one in flight at a time, so a retried or
	// slow save can never race a newer one for the draft id.
	if s.inFlight {
		s.pendingSave = true
		return
	}

	s.startSaveLocked()
}

func (s *Session) startSaveLocked() {
	s.inFlight = true
	s.saveSeq++
	seq := s.saveSeq
	s.phase = PhaseSaving
	s.publishLocked()

	draftCopy := s.draft
	go s.runSave(seq, draftCopy)
}

func (s *Session) runSave(seq uint64, draft models.Draft) {
	id, err := s.store.SaveDraft(context.Background(), &draft)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight = false

	// A discard/close happened while the save was in flight: the result is
	// stale and must not be applied.
	if s.phase == PhaseClosed || seq <= s.appliedSeq {
		return
	}
	s.appliedSeq = seq

	if err != nil {
		s.lastErr = &utils.TransientPersistenceError{Op: "save draft", Err: err}
		s.phase = PhaseError
		s.log.Warn("draft autosave failed (will retry on next edit): %v", err)
		s.publishLocked()
		return
	}

	if s.draft.ID == "" {
		s.draft.ID = id
	}
	s.lastSaved = snapshot(&draft)
	s.lastErr = nil
	s.phase = PhaseSaved
	s.publishLocked()

	if s.pendingSave {
		s.pendingSave = false
		if snapshot(&s.draft) != s.lastSaved {
			s.startSaveLocked()
		}
	}
}

// worthPersistingLocked is the minimum-content precondition: at least one
// recipient (forward surfaces may defer this) and body content beyond the
// seeded signature placeholder.
func (s *Session) worthPersistingLocked() bool {
	if len(s.draft.To) == 0 && s.draft.Mode != models.ModeForward {
		return false
	}

	body := strings.TrimSpace(s.draft.BodyHTML)
	if body == "" || body == strings.TrimSpace(s.cfg.SignaturePlaceholder) {
		return false
	}

	return true
}

// SendNow validates and sends the draft. On success the persisted draft is
// deleted and the session closes; on failure the draft is preserved so no
// content is lost.
func (s *Session) SendNow(ctx context.Context, attachments []models.Attachment) (string, error) {
	s.mu.Lock()
	if s.phase == PhaseClosed {
		s.mu.Unlock()
		return "", fmt.Errorf("compose surface is closed")
	}
	if len(s.draft.To) == 0 {
		s.mu.Unlock()
		return "", &utils.ValidationError{Field: "to", Reason: "at least one recipient is required"}
	}
	if strings.TrimSpace(s.draft.Subject) == "" {
		s.mu.Unlock()
		return "", &utils.ValidationError{Field: "subject", Reason: "subject must not be empty"}
	}
	draftCopy := s.draft
	s.mu.Unlock()

	messageID, err := s.sender.Send(ctx, &draftCopy, attachments)
	if err != nil {
		s.mu.Lock()
		s.lastErr = &utils.SendFailure{Err: err}
		s.publishLocked()
		s.mu.Unlock()
		return "", &utils.SendFailure{Err: err}
	}

	s.mu.Lock()
	s.stopTimersLocked()
	draftID := s.draft.ID
	s.phase = PhaseClosed
	s.lastErr = nil
	s.publishLocked()
	s.mu.Unlock()

	if draftID != "" {
		if err := s.store.DeleteDraft(ctx, draftID); err != nil {
			// The message went out; a leftover draft is only cosmetic.
			s.log.Warn("failed to delete draft %s after send: %v", draftID, err)
		}
	}

	return messageID, nil
}

// Discard closes the surface and deletes the persisted draft, if any.
// Discarding a never-persisted draft is not an error.
func (s *Session) Discard(ctx context.Context) {
	s.mu.Lock()
	if s.phase == PhaseClosed {
		s.mu.Unlock()
		return
	}
	s.stopTimersLocked()
	draftID := s.draft.ID
	s.phase = PhaseClosed
	s.publishLocked()
	s.mu.Unlock()

	if draftID != "" {
		if err := s.store.DeleteDraft(ctx, draftID); err != nil {
			s.log.Warn("failed to delete discarded draft %s: %v", draftID, err)
		}
	}
}

// Status returns the current phase and last error.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// Draft returns a copy of the session's current draft.
func (s *Session) Draft() models.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

func (s *Session) statusLocked() Status {
	st := Status{
		Phase:     s.phase,
		PhaseName: s.phase.String(),
		DraftID:   s.draft.ID,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

func (s *Session) publishLocked() {
	if s.cfg.OnStatus == nil {
		return
	}
	st := s.statusLocked()
	go s.cfg.OnStatus(st)
}

func (s *Session) stopTimersLocked() {
	if s.debounce != nil {
		s.debounce.Stop()
	}
	if s.grace != nil {
		s.grace.Stop()
	}
}

// snapshot serializes the editable fields so unchanged drafts skip a save.
func snapshot(d *models.Draft) string {
	return fmt.Sprintf("%v|%v|%v|%s|%s", d.To, d.Cc, d.Bcc, d.Subject, d.BodyHTML)
}
