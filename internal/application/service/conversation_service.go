package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/garyjia/quote-revision/internal/application/port"
	"github.com/garyjia/quote-revision/internal/domain/entity"
	"github.com/garyjia/quote-revision/internal/domain/revision"
)

// ConversationService drives a review from free-text chat messages.
// Messages are routed to the session bound to their thread. The first sender
// to speak in a session is its chat owner; other participants cannot drive it.
type ConversationService interface {
	HandleMessage(ctx context.Context, threadID, senderID, text string) error
}

type conversationServiceImpl struct {
	review   ReviewService
	quotes   QuoteService
	notifier port.ConversationNotifier
	logger   Logger

	mu     sync.Mutex
	owners map[string]chatOwner // by thread id
}

type chatOwner struct {
	sessionID string
	senderID  string
}

// NewConversationService creates a new ConversationService
func NewConversationService(review ReviewService, quotes QuoteService, notifier port.ConversationNotifier, logger Logger) ConversationService {
	return &conversationServiceImpl{
		review:   review,
		quotes:   quotes,
		notifier: notifier,
		logger:   logger,
		owners:   make(map[string]chatOwner),
	}
}

type intent int

const (
	intentEdit intent = iota
	intentYes
	intentNo
	intentDone
)

var intentWords = map[string]intent{
	"yes":     intentYes,
	"y":       intentYes,
	"yep":     intentYes,
	"ok":      intentYes,
	"okay":    intentYes,
	"approve": intentYes,
	"apply":   intentYes,
	"no":      intentNo,
	"n":       intentNo,
	"nope":    intentNo,
	"cancel":  intentNo,
	"discard": intentNo,
	"done":    intentDone,
	"confirm": intentDone,
	"review":  intentDone,
	"finish":  intentDone,
}

func classify(text string) intent {
	word := strings.Trim(strings.ToLower(strings.TrimSpace(text)), ".!? ")
	if in, ok := intentWords[word]; ok {
		return in
	}
	return intentEdit
}

// HandleMessage treats yes/no as the answer to a pending confirmation, "done"
// as a confirmation request and anything else as an edit transcript.
// Review errors are answered in the thread and not returned.
func (s *conversationServiceImpl) HandleMessage(ctx context.Context, threadID, senderID, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	sess, err := s.review.FindSessionByThread(ctx, threadID)
	if errors.Is(err, ErrNoActiveSession) {
		return s.reply(ctx, threadID, "No quote is under review in this conversation. Start a review from the quote first.")
	}
	if err != nil {
		return err
	}

	s.logger.Info("Conversation message received",
		"thread_id", threadID,
		"sender_id", senderID,
		"quote_id", sess.QuoteID,
		"state", sess.State,
	)

	if !s.claim(threadID, sess.ID, senderID) {
		s.logger.Info("Message from another participant ignored",
			"thread_id", threadID,
			"sender_id", senderID,
			"session_id", sess.ID,
		)
		return s.reply(ctx, threadID, "This quote is being revised by someone else in this conversation.")
	}

	confirming := sess.State == entity.SessionConfirmingChanges
	switch in := classify(text); {
	case confirming && (in == intentYes || in == intentNo):
		_, err = s.review.HandleReply(ctx, sess.QuoteID, sess.ContractorID, in == intentYes)
	case confirming:
		return s.reply(ctx, threadID, "Changes are waiting for your answer. Reply yes to apply or no to cancel.")
	case in == intentDone || in == intentYes:
		_, err = s.review.RequestConfirmation(ctx, sess.QuoteID, sess.ContractorID)
		if errors.Is(err, ErrLowConfidenceRequiresConfirmation) {
			err = nil
		}
	case in == intentNo:
		_, err = s.review.AbandonSession(ctx, sess.QuoteID, sess.ContractorID)
		if err == nil {
			return s.reply(ctx, threadID, fmt.Sprintf("Review of quote %s closed without changes.", sess.QuoteID))
		}
	default:
		return s.queueTranscript(ctx, sess, threadID, text)
	}

	if err != nil {
		return s.reply(ctx, threadID, describeError(err))
	}
	return nil
}

// claim binds a session to its first chat sender and reports whether senderID
// may drive it. A new session in the thread replaces the previous binding.
func (s *conversationServiceImpl) claim(threadID, sessionID, senderID string) bool {
	if senderID == "" {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.owners[threadID]
	if !ok || owner.sessionID != sessionID {
		s.owners[threadID] = chatOwner{sessionID: sessionID, senderID: senderID}
		return true
	}
	return owner.senderID == senderID
}

func (s *conversationServiceImpl) queueTranscript(ctx context.Context, sess *entity.QuoteReviewSession, threadID, text string) error {
	cmd, err := s.quotes.InterpretTranscript(ctx, sess.QuoteID, text)
	if err != nil {
		return s.reply(ctx, threadID, describeError(err))
	}

	queued, err := s.review.SubmitCommand(ctx, sess.QuoteID, sess.ContractorID, threadID, *cmd)
	if err != nil {
		return s.reply(ctx, threadID, describeError(err))
	}

	msg := fmt.Sprintf("Queued: %s (%d pending). Say done to review.", DescribeCommand(*cmd), len(queued.Pending))
	if last := queued.Pending[len(queued.Pending)-1]; last.LowConfidence {
		msg = fmt.Sprintf("Queued, but I am not sure I understood: %s (%d pending). Say done to review.", DescribeCommand(*cmd), len(queued.Pending))
	}
	return s.reply(ctx, threadID, msg)
}

func (s *conversationServiceImpl) reply(ctx context.Context, threadID, text string) error {
	if s.notifier == nil {
		return nil
	}
	if err := s.notifier.Notify(ctx, threadID, text); err != nil {
		return fmt.Errorf("notify thread: %w", err)
	}
	return nil
}

// describeError turns a review failure into a message for the contractor
func describeError(err error) string {
	var cmdErr *revision.CommandError
	switch {
	case errors.Is(err, port.ErrStaleQuoteVersion):
		return "The quote was changed elsewhere. Reload the review to continue with the latest version."
	case errors.Is(err, port.ErrInterpreterUnavailable):
		return "I cannot interpret edits right now. Please try again shortly."
	case errors.Is(err, entity.ErrMalformedCommand):
		return "I did not understand that edit. Try something like \"change paint to 60 dollars\"."
	case errors.Is(err, ErrQuoteNotEditable):
		return "This quote has already been answered by the customer and can no longer be revised."
	case errors.As(err, &cmdErr):
		return fmt.Sprintf("Change %d cannot be applied: %v. Reply no to cancel and try again.", cmdErr.Index+1, cmdErr.Err)
	default:
		return fmt.Sprintf("That did not work: %v", err)
	}
}
