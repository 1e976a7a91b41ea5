package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/garyjia/quote-revision/internal/application/dispatcher"
	"github.com/garyjia/quote-revision/internal/application/port"
	"github.com/garyjia/quote-revision/internal/domain/entity"
	"github.com/garyjia/quote-revision/internal/domain/event"
	"github.com/garyjia/quote-revision/internal/domain/revision"
	"github.com/garyjia/quote-revision/internal/domain/workflow"
	"github.com/google/uuid"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ReviewConfig holds the review session policy
type ReviewConfig struct {
	// IdleTimeout finalizes sessions with no activity for this long; zero disables expiry
	IdleTimeout time.Duration
	// AutoConfirm approves a batch as soon as confirmation is requested,
	// unless a queued command is low-confidence
	AutoConfirm bool
	Confidence  revision.ConfidencePolicy
}

// ReviewResult is what a review operation hands back to the caller
type ReviewResult struct {
	Session *entity.QuoteReviewSession `json:"session"`
	Summary string                     `json:"summary,omitempty"`

	// Set once a batch was committed
	Edit    *entity.QuoteEdit `json:"edit,omitempty"`
	Version int               `json:"version,omitempty"`
	Total   float64           `json:"total,omitempty"`
}

// ReviewService is the review session manager: it owns the per-quote session
// table, queues interpreted commands and commits confirmed batches.
type ReviewService interface {
	StartSession(ctx context.Context, quoteID, contractorID, threadID string) (*entity.QuoteReviewSession, error)
	SubmitCommand(ctx context.Context, quoteID, contractorID, threadID string, cmd entity.VoiceEditCommand) (*entity.QuoteReviewSession, error)
	RequestConfirmation(ctx context.Context, quoteID, contractorID string) (*ReviewResult, error)
	CancelChanges(ctx context.Context, quoteID, contractorID string) (*entity.QuoteReviewSession, error)
	ApproveChanges(ctx context.Context, quoteID, contractorID string) (*ReviewResult, error)
	HandleReply(ctx context.Context, quoteID, contractorID string, approved bool) (*ReviewResult, error)
	ReloadSession(ctx context.Context, quoteID, contractorID string) (*entity.QuoteReviewSession, error)
	AbandonSession(ctx context.Context, quoteID, contractorID string) (*entity.QuoteReviewSession, error)
	GetSession(ctx context.Context, quoteID string) (*entity.QuoteReviewSession, error)
	FindSessionByThread(ctx context.Context, threadID string) (*entity.QuoteReviewSession, error)
	ExpireIdleSessions(ctx context.Context, now time.Time) int
}

// sessionSlot holds one quote's active session and the item snapshot it observed.
// mu serializes every operation on the quote; released marks a slot that has
// already left the table.
type sessionSlot struct {
	mu       sync.Mutex
	quoteID  string
	session  *entity.QuoteReviewSession
	items    []entity.QuoteItem
	released bool
}

type reviewServiceImpl struct {
	mu    sync.Mutex
	slots map[string]*sessionSlot
	// threads maps a conversation thread to the quote its session reviews
	threads map[string]string

	store      port.QuoteStore
	archive    port.SessionArchive
	dispatcher dispatcher.Dispatcher
	applier    *revision.Applier
	metrics    port.ReviewMetrics
	logger     Logger
	cfg        ReviewConfig

	now   func() time.Time
	newID func() string
}

// ReviewOption configures the review service
type ReviewOption func(*reviewServiceImpl)

// WithClock replaces time.Now
func WithClock(now func() time.Time) ReviewOption {
	return func(s *reviewServiceImpl) {
		s.now = now
	}
}

// WithApplier replaces the default edit applier
func WithApplier(a *revision.Applier) ReviewOption {
	return func(s *reviewServiceImpl) {
		s.applier = a
	}
}

// WithMetrics records review activity
func WithMetrics(m port.ReviewMetrics) ReviewOption {
	return func(s *reviewServiceImpl) {
		s.metrics = m
	}
}

// WithIDGenerator replaces the id source for sessions and edits
func WithIDGenerator(fn func() string) ReviewOption {
	return func(s *reviewServiceImpl) {
		s.newID = fn
	}
}

// NewReviewService creates a new ReviewService
func NewReviewService(
	store port.QuoteStore,
	archive port.SessionArchive,
	disp dispatcher.Dispatcher,
	cfg ReviewConfig,
	logger Logger,
	opts ...ReviewOption,
) ReviewService {
	s := &reviewServiceImpl{
		slots:      make(map[string]*sessionSlot),
		threads:    make(map[string]string),
		store:      store,
		archive:    archive,
		dispatcher: disp,
		applier:    revision.NewApplier(),
		metrics:    port.NopMetrics{},
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSession opens a review session explicitly
func (s *reviewServiceImpl) StartSession(ctx context.Context, quoteID, contractorID, threadID string) (*entity.QuoteReviewSession, error) {
	slot, err := s.lockSlot(ctx, quoteID, true)
	if err != nil {
		return nil, err
	}
	defer slot.mu.Unlock()

	if slot.session != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionAlreadyActive, quoteID)
	}
	if err := s.open(ctx, slot, contractorID, threadID); err != nil {
		return nil, err
	}
	return slot.session.Snapshot(), nil
}

// SubmitCommand queues a command, opening a session on the first command for a quote
func (s *reviewServiceImpl) SubmitCommand(ctx context.Context, quoteID, contractorID, threadID string, cmd entity.VoiceEditCommand) (*entity.QuoteReviewSession, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	slot, err := s.lockSlot(ctx, quoteID, true)
	if err != nil {
		return nil, err
	}
	defer slot.mu.Unlock()

	if slot.session == nil {
		if err := s.open(ctx, slot, contractorID, threadID); err != nil {
			return nil, err
		}
	} else {
		if slot.session.ContractorID != contractorID {
			return nil, fmt.Errorf("%w: %s", ErrSessionAlreadyActive, quoteID)
		}
		if err := s.checkVersion(ctx, slot); err != nil {
			return nil, err
		}
	}

	sess := slot.session
	if sess.State == entity.SessionConfirmingChanges {
		return nil, ErrQueueFrozen
	}
	if err := s.fire(ctx, sess, workflow.TriggerQueueCommand); err != nil {
		return nil, err
	}

	low := s.cfg.Confidence.IsLow(cmd.Confidence)
	sess.Pending = append(sess.Pending, entity.PendingCommand{
		Command:       cmd,
		LowConfidence: low,
		QueuedAt:      s.now(),
	})
	if threadID != "" && threadID != sess.ThreadID {
		s.unbindThread(sess.ThreadID, quoteID)
		sess.ThreadID = threadID
		s.bindThread(threadID, quoteID)
	}
	s.touch(sess)

	s.metrics.CommandQueued(string(cmd.Kind), low)
	s.publish(ctx, sess, event.TypeCommandQueued, map[string]interface{}{
		event.KeyCommandCount: len(sess.Pending),
		event.KeyLowConf:      low,
	})
	s.logger.Info("Command queued",
		"quote_id", quoteID,
		"session_id", sess.ID,
		"kind", cmd.Kind,
		"confidence", cmd.Confidence,
		"low_confidence", low,
	)
	return sess.Snapshot(), nil
}

// RequestConfirmation freezes the queue and sends the pending changes summary.
// With auto confirm enabled the batch is approved at once unless a command is
// low-confidence, in which case ErrLowConfidenceRequiresConfirmation is returned
// together with the confirming session.
func (s *reviewServiceImpl) RequestConfirmation(ctx context.Context, quoteID, contractorID string) (*ReviewResult, error) {
	var (
		result *ReviewResult
		opErr  error
	)
	err := s.withSession(ctx, quoteID, contractorID, func(slot *sessionSlot) error {
		sess := slot.session
		if err := s.checkVersion(ctx, slot); err != nil {
			return err
		}
		if err := s.fire(ctx, sess, workflow.TriggerRequestConfirmation); err != nil {
			return err
		}
		s.touch(sess)

		summary := Summarize(s.applier, slot.items, sess)
		s.publish(ctx, sess, event.TypeConfirmationRequested, map[string]interface{}{
			event.KeySummary:      summary,
			event.KeyCommandCount: len(sess.Pending),
			event.KeyLowConf:      sess.HasLowConfidence(),
		})

		if !s.cfg.AutoConfirm {
			result = &ReviewResult{Session: sess.Snapshot(), Summary: summary}
			return nil
		}

		guards := workflow.ReviewGuards{
			AutoConfirmAllowed: func(context.Context) bool { return !sess.HasLowConfidence() },
		}
		if !workflow.BuildReviewStateMachine(workflow.State(sess.State), guards).CanFire(ctx, workflow.TriggerAutoApprove) {
			result = &ReviewResult{Session: sess.Snapshot(), Summary: summary}
			opErr = ErrLowConfidenceRequiresConfirmation
			return nil
		}

		result, opErr = s.commit(ctx, slot, workflow.TriggerAutoApprove)
		if result != nil {
			result.Summary = summary
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, opErr
}

// CancelChanges discards the frozen queue and returns to reviewing
func (s *reviewServiceImpl) CancelChanges(ctx context.Context, quoteID, contractorID string) (*entity.QuoteReviewSession, error) {
	var out *entity.QuoteReviewSession
	err := s.withSession(ctx, quoteID, contractorID, func(slot *sessionSlot) error {
		sess := slot.session
		if err := s.fire(ctx, sess, workflow.TriggerCancelChanges); err != nil {
			return err
		}
		dropped := len(sess.Pending)
		sess.Pending = nil
		s.touch(sess)

		s.publish(ctx, sess, event.TypeChangesCancelled, map[string]interface{}{
			event.KeyCommandCount: dropped,
		})
		s.logger.Info("Pending changes cancelled", "quote_id", quoteID, "session_id", sess.ID, "dropped", dropped)
		out = sess.Snapshot()
		return nil
	})
	return out, err
}

// ApproveChanges applies the frozen queue as one batch and commits one new version.
// Any failure leaves the session confirming with its queue intact.
func (s *reviewServiceImpl) ApproveChanges(ctx context.Context, quoteID, contractorID string) (*ReviewResult, error) {
	var (
		result *ReviewResult
		opErr  error
	)
	err := s.withSession(ctx, quoteID, contractorID, func(slot *sessionSlot) error {
		sess := slot.session
		if sess.State != entity.SessionConfirmingChanges {
			return fmt.Errorf("%w: cannot fire %s from %s", workflow.ErrInvalidTransition, workflow.TriggerApprove, sess.State)
		}
		if sess.Stale {
			return fmt.Errorf("%w: reload required", port.ErrStaleQuoteVersion)
		}
		result, opErr = s.commit(ctx, slot, workflow.TriggerApprove)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, opErr
}

// HandleReply maps a yes/no answer from the conversation transport onto approve or cancel
func (s *reviewServiceImpl) HandleReply(ctx context.Context, quoteID, contractorID string, approved bool) (*ReviewResult, error) {
	if approved {
		return s.ApproveChanges(ctx, quoteID, contractorID)
	}
	sess, err := s.CancelChanges(ctx, quoteID, contractorID)
	if err != nil {
		return nil, err
	}
	return &ReviewResult{Session: sess}, nil
}

// ReloadSession re-reads the quote, clears the stale flag and returns to reviewing.
// The queue is kept so the contractor can confirm it again against the new version.
func (s *reviewServiceImpl) ReloadSession(ctx context.Context, quoteID, contractorID string) (*entity.QuoteReviewSession, error) {
	var out *entity.QuoteReviewSession
	err := s.withSession(ctx, quoteID, contractorID, func(slot *sessionSlot) error {
		sess := slot.session
		quote, items, err := s.store.LoadQuote(ctx, quoteID)
		if err != nil {
			return fmt.Errorf("reload quote: %w", err)
		}
		if err := s.fire(ctx, sess, workflow.TriggerReload); err != nil {
			return err
		}

		previous := sess.ObservedVersion
		sess.ObservedVersion = quote.Version
		sess.Stale = false
		slot.items = revision.Recompute(items)
		s.touch(sess)

		s.publish(ctx, sess, event.TypeSessionReloaded, map[string]interface{}{
			event.KeyVersion: quote.Version,
		})
		s.logger.Info("Session reloaded",
			"quote_id", quoteID,
			"session_id", sess.ID,
			"from_version", previous,
			"to_version", quote.Version,
		)
		out = sess.Snapshot()
		return nil
	})
	return out, err
}

// AbandonSession finalizes the session and discards anything queued
func (s *reviewServiceImpl) AbandonSession(ctx context.Context, quoteID, contractorID string) (*entity.QuoteReviewSession, error) {
	var out *entity.QuoteReviewSession
	err := s.withSession(ctx, quoteID, contractorID, func(slot *sessionSlot) error {
		if err := s.fire(ctx, slot.session, workflow.TriggerAbandon); err != nil {
			return err
		}
		slot.session.Pending = nil
		s.finalize(ctx, slot, entity.OutcomeDiscarded)
		out = slot.session.Snapshot()
		return nil
	})
	return out, err
}

// GetSession returns a copy of the active session of a quote
func (s *reviewServiceImpl) GetSession(ctx context.Context, quoteID string) (*entity.QuoteReviewSession, error) {
	slot, err := s.lockSlot(ctx, quoteID, false)
	if err != nil {
		return nil, err
	}
	defer slot.mu.Unlock()
	return slot.session.Snapshot(), nil
}

// FindSessionByThread returns a copy of the active session bound to a conversation thread
func (s *reviewServiceImpl) FindSessionByThread(ctx context.Context, threadID string) (*entity.QuoteReviewSession, error) {
	s.mu.Lock()
	quoteID, ok := s.threads[threadID]
	s.mu.Unlock()
	if !ok || threadID == "" {
		return nil, fmt.Errorf("%w: thread %s", ErrNoActiveSession, threadID)
	}

	sess, err := s.GetSession(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if sess.ThreadID != threadID {
		return nil, fmt.Errorf("%w: thread %s", ErrNoActiveSession, threadID)
	}
	return sess, nil
}

// ExpireIdleSessions finalizes every session idle at now and returns how many expired
func (s *reviewServiceImpl) ExpireIdleSessions(ctx context.Context, now time.Time) int {
	s.mu.Lock()
	slots := make([]*sessionSlot, 0, len(s.slots))
	for _, slot := range s.slots {
		slots = append(slots, slot)
	}
	s.mu.Unlock()

	expired := 0
	for _, slot := range slots {
		slot.mu.Lock()
		if !slot.released && slot.session != nil && s.idle(slot.session, now) {
			s.expire(ctx, slot)
			expired++
		}
		slot.mu.Unlock()
	}
	return expired
}

// lockSlot returns the quote's slot locked. Idle sessions are expired on the way.
// With create set a missing slot is added empty and the caller must open a
// session in it or release it.
func (s *reviewServiceImpl) lockSlot(ctx context.Context, quoteID string, create bool) (*sessionSlot, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.mu.Lock()
		slot, ok := s.slots[quoteID]
		if !ok {
			if !create {
				s.mu.Unlock()
				return nil, fmt.Errorf("%w: %s", ErrNoActiveSession, quoteID)
			}
			slot = &sessionSlot{quoteID: quoteID}
			slot.mu.Lock()
			s.slots[quoteID] = slot
			s.mu.Unlock()
			return slot, nil
		}
		s.mu.Unlock()

		slot.mu.Lock()
		if slot.released {
			slot.mu.Unlock()
			continue
		}
		if slot.session != nil && s.idle(slot.session, s.now()) {
			s.expire(ctx, slot)
			slot.mu.Unlock()
			continue
		}
		return slot, nil
	}
}

// withSession runs fn with the caller's active session locked
func (s *reviewServiceImpl) withSession(ctx context.Context, quoteID, contractorID string, fn func(slot *sessionSlot) error) error {
	slot, err := s.lockSlot(ctx, quoteID, false)
	if err != nil {
		return err
	}
	defer slot.mu.Unlock()

	if slot.session.ContractorID != contractorID {
		return fmt.Errorf("%w: %s", ErrNoActiveSession, quoteID)
	}
	return fn(slot)
}

// open loads the quote into an empty slot and starts reviewing.
// On failure the slot is released.
func (s *reviewServiceImpl) open(ctx context.Context, slot *sessionSlot, contractorID, threadID string) error {
	quote, items, err := s.store.LoadQuote(ctx, slot.quoteID)
	if err != nil {
		s.release(slot)
		return fmt.Errorf("load quote: %w", err)
	}
	if quote.ContractorID != "" && quote.ContractorID != contractorID {
		s.release(slot)
		return fmt.Errorf("%w: %s", port.ErrQuoteNotFound, slot.quoteID)
	}
	if quote.Status.IsTerminal() {
		s.release(slot)
		return fmt.Errorf("%w: status %s", ErrQuoteNotEditable, quote.Status)
	}

	now := s.now()
	sess := &entity.QuoteReviewSession{
		ID:              s.newID(),
		QuoteID:         slot.quoteID,
		ContractorID:    contractorID,
		State:           entity.SessionInitial,
		ObservedVersion: quote.Version,
		ThreadID:        threadID,
		StartedAt:       now,
		LastActivityAt:  now,
	}
	if err := s.fire(ctx, sess, workflow.TriggerStart); err != nil {
		s.release(slot)
		return err
	}

	slot.session = sess
	slot.items = revision.Recompute(items)
	s.bindThread(threadID, slot.quoteID)

	s.metrics.SessionStarted()
	s.metrics.ActiveSessions(s.activeCount())
	s.publish(ctx, sess, event.TypeSessionStarted, map[string]interface{}{
		event.KeyVersion: quote.Version,
	})
	s.logger.Info("Review session started",
		"quote_id", slot.quoteID,
		"session_id", sess.ID,
		"contractor_id", contractorID,
		"version", quote.Version,
	)
	return nil
}

// checkVersion compares the store's version with the observed one and marks the session stale on mismatch
func (s *reviewServiceImpl) checkVersion(ctx context.Context, slot *sessionSlot) error {
	sess := slot.session
	if sess.Stale {
		return fmt.Errorf("%w: reload required", port.ErrStaleQuoteVersion)
	}

	quote, _, err := s.store.LoadQuote(ctx, slot.quoteID)
	if err != nil {
		return fmt.Errorf("load quote: %w", err)
	}
	if quote.Status.IsTerminal() {
		return s.closeAnswered(ctx, slot, fmt.Errorf("%w: status %s", ErrQuoteNotEditable, quote.Status))
	}
	if quote.Version != sess.ObservedVersion {
		sess.Stale = true
		s.touch(sess)
		s.logger.Info("Session observed a stale quote version",
			"quote_id", slot.quoteID,
			"session_id", sess.ID,
			"observed", sess.ObservedVersion,
			"current", quote.Version,
		)
		return fmt.Errorf("%w: observed %d, store has %d", port.ErrStaleQuoteVersion, sess.ObservedVersion, quote.Version)
	}
	return nil
}

// commit applies and persists the queue, then finalizes the session via trigger
func (s *reviewServiceImpl) commit(ctx context.Context, slot *sessionSlot, trigger workflow.Trigger) (*ReviewResult, error) {
	sess := slot.session
	commands := sess.Commands()

	if len(commands) == 0 {
		if err := s.fire(ctx, sess, trigger); err != nil {
			return nil, err
		}
		s.finalize(ctx, slot, entity.OutcomeDiscarded)
		return &ReviewResult{
			Session: sess.Snapshot(),
			Version: sess.ObservedVersion,
			Total:   revision.CalculateTotal(slot.items),
		}, nil
	}

	applied, err := s.applier.Apply(slot.items, commands)
	if err != nil {
		s.touch(sess)
		s.metrics.ApplyFailed()
		s.logger.Error("Batch rejected", "quote_id", slot.quoteID, "session_id", sess.ID, "error", err)
		return &ReviewResult{Session: sess.Snapshot()}, err
	}

	edit := &entity.QuoteEdit{
		ID:           s.newID(),
		QuoteID:      slot.quoteID,
		VersionFrom:  sess.ObservedVersion,
		VersionTo:    sess.ObservedVersion + 1,
		Kind:         entity.EditKindFor(commands),
		Transcript:   joinTranscripts(commands),
		Changes:      applied.Changes,
		Confidence:   minConfidence(commands),
		ContractorID: sess.ContractorID,
		CreatedAt:    s.now(),
	}

	version, err := s.store.CommitQuoteVersion(ctx, slot.quoteID, sess.ObservedVersion, applied.Items, edit)
	if errors.Is(err, ErrQuoteNotEditable) {
		err = s.closeAnswered(ctx, slot, fmt.Errorf("commit quote version: %w", err))
		return &ReviewResult{Session: sess.Snapshot()}, err
	}
	if err != nil {
		s.touch(sess)
		if isStale(err) {
			sess.Stale = true
			s.metrics.CommitConflict()
			s.logger.Info("Commit lost to a newer version", "quote_id", slot.quoteID, "session_id", sess.ID)
		} else {
			s.logger.Error("Failed to commit quote version", "quote_id", slot.quoteID, "error", err)
		}
		return &ReviewResult{Session: sess.Snapshot()}, fmt.Errorf("commit quote version: %w", err)
	}

	if err := s.fire(ctx, sess, trigger); err != nil {
		return nil, err
	}
	sess.CommittedVersion = version
	s.metrics.BatchCommitted(len(commands))
	s.publish(ctx, sess, event.TypeChangesCommitted, map[string]interface{}{
		event.KeyVersion:      version,
		event.KeyTotal:        applied.Total,
		event.KeyCommandCount: len(commands),
		event.KeySummary:      fmt.Sprintf("Applied %d change(s). Quote is now version %d, total %s.", len(commands), version, formatMoney(applied.Total)),
	})
	s.logger.Info("Batch committed",
		"quote_id", slot.quoteID,
		"session_id", sess.ID,
		"version", version,
		"total", applied.Total,
		"commands", len(commands),
	)
	s.finalize(ctx, slot, entity.OutcomeCommitted)

	return &ReviewResult{
		Session: sess.Snapshot(),
		Edit:    edit,
		Version: version,
		Total:   applied.Total,
	}, nil
}

// closeAnswered finalizes a session whose quote was accepted or rejected meanwhile
// and returns cause. The queue can never be committed, so it is discarded.
func (s *reviewServiceImpl) closeAnswered(ctx context.Context, slot *sessionSlot, cause error) error {
	sess := slot.session
	if err := s.fire(ctx, sess, workflow.TriggerAbandon); err != nil {
		return err
	}
	dropped := len(sess.Pending)
	sess.Pending = nil
	s.logger.Info("Quote answered during review, session closed",
		"quote_id", slot.quoteID,
		"session_id", sess.ID,
		"reason", cause.Error(),
		"dropped", dropped,
	)
	s.finalize(ctx, slot, entity.OutcomeDiscarded)
	return cause
}

// expire finalizes an idle session without touching the quote
func (s *reviewServiceImpl) expire(ctx context.Context, slot *sessionSlot) {
	sess := slot.session
	if err := s.fire(ctx, sess, workflow.TriggerExpire); err != nil {
		s.logger.Error("Failed to expire session", "quote_id", slot.quoteID, "error", err)
		return
	}
	dropped := len(sess.Pending)
	sess.Pending = nil

	s.publish(ctx, sess, event.TypeSessionExpired, map[string]interface{}{
		event.KeyCommandCount: dropped,
	})
	s.logger.Info("Review session expired", "quote_id", slot.quoteID, "session_id", sess.ID, "dropped", dropped)
	s.finalize(ctx, slot, entity.OutcomeExpired)
}

// finalize archives the session and frees the quote's slot
func (s *reviewServiceImpl) finalize(ctx context.Context, slot *sessionSlot, outcome entity.SessionOutcome) {
	sess := slot.session
	now := s.now()
	sess.Outcome = outcome
	sess.FinalizedAt = &now
	sess.LastActivityAt = now

	if s.archive != nil {
		if err := s.archive.Save(ctx, sess.Snapshot()); err != nil {
			s.logger.Error("Failed to archive session", "session_id", sess.ID, "error", err)
		}
	}

	s.release(slot)
	s.metrics.SessionFinalized(string(outcome))
	s.metrics.ActiveSessions(s.activeCount())
	s.publish(ctx, sess, event.TypeSessionFinalized, map[string]interface{}{
		event.KeyOutcome: string(outcome),
	})
}

// release drops the slot from the table; the caller holds slot.mu
func (s *reviewServiceImpl) release(slot *sessionSlot) {
	s.mu.Lock()
	if s.slots[slot.quoteID] == slot {
		delete(s.slots, slot.quoteID)
	}
	if slot.session != nil && s.threads[slot.session.ThreadID] == slot.quoteID {
		delete(s.threads, slot.session.ThreadID)
	}
	s.mu.Unlock()
	slot.released = true
}

// bindThread and unbindThread are called with slot.mu held
func (s *reviewServiceImpl) bindThread(threadID, quoteID string) {
	if threadID == "" {
		return
	}
	s.mu.Lock()
	s.threads[threadID] = quoteID
	s.mu.Unlock()
}

func (s *reviewServiceImpl) unbindThread(threadID, quoteID string) {
	s.mu.Lock()
	if s.threads[threadID] == quoteID {
		delete(s.threads, threadID)
	}
	s.mu.Unlock()
}

func (s *reviewServiceImpl) activeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// fire runs trigger through the review state machine and stores the new state
func (s *reviewServiceImpl) fire(ctx context.Context, sess *entity.QuoteReviewSession, trigger workflow.Trigger) error {
	sm := workflow.BuildReviewStateMachine(workflow.State(sess.State), workflow.ReviewGuards{})
	if err := sm.Fire(ctx, trigger); err != nil {
		return err
	}
	sess.State = entity.SessionState(sm.State())
	return nil
}

func (s *reviewServiceImpl) touch(sess *entity.QuoteReviewSession) {
	sess.LastActivityAt = s.now()
}

func (s *reviewServiceImpl) idle(sess *entity.QuoteReviewSession, now time.Time) bool {
	return s.cfg.IdleTimeout > 0 && now.Sub(sess.LastActivityAt) >= s.cfg.IdleTimeout
}

func (s *reviewServiceImpl) publish(ctx context.Context, sess *entity.QuoteReviewSession, typ event.Type, payload map[string]interface{}) {
	if s.dispatcher == nil {
		return
	}
	payload[event.KeyThreadID] = sess.ThreadID
	payload[event.KeyContractorID] = sess.ContractorID
	evt := event.NewEventWithCorrelation(typ, sess.QuoteID, sess.ID, payload, sess.ID)
	s.dispatcher.DispatchAsync(context.WithoutCancel(ctx), evt)
}

func joinTranscripts(commands []entity.VoiceEditCommand) string {
	parts := make([]string, 0, len(commands))
	for _, c := range commands {
		if t := strings.TrimSpace(c.Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

func minConfidence(commands []entity.VoiceEditCommand) float64 {
	lowest := math.Inf(1)
	for _, c := range commands {
		lowest = math.Min(lowest, c.Confidence)
	}
	if math.IsInf(lowest, 1) {
		return 1
	}
	return lowest
}
