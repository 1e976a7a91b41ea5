package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/garyjia/quote-revision/internal/application/port"
	"github.com/garyjia/quote-revision/internal/domain/entity"
	"github.com/garyjia/quote-revision/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// SessionArchive implements port.SessionArchive on SQLite
type SessionArchive struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewSessionArchive creates a new session archive
func NewSessionArchive(db *sqlite.DB, logger *zap.Logger) *SessionArchive {
	return &SessionArchive{
		db:     db,
		logger: logger,
	}
}

// Save stores a finalized session. Saving the same session twice overwrites it.
func (r *SessionArchive) Save(ctx context.Context, s *entity.QuoteReviewSession) error {
	pending, err := json.Marshal(s.Pending)
	if err != nil {
		return fmt.Errorf("failed to encode pending commands: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO review_sessions (
			id, quote_id, contractor_id, state, outcome, observed_version,
			committed_version, thread_id, pending_json, started_at,
			last_activity_at, finalized_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Executor(ctx).ExecContext(ctx, query,
		s.ID,
		s.QuoteID,
		s.ContractorID,
		s.State,
		s.Outcome,
		s.ObservedVersion,
		s.CommittedVersion,
		s.ThreadID,
		string(pending),
		s.StartedAt,
		s.LastActivityAt,
		s.FinalizedAt,
	)
	if err != nil {
		r.logger.Error("Failed to archive session", zap.Error(err), zap.String("session_id", s.ID))
		return fmt.Errorf("failed to archive session: %w", err)
	}
	return nil
}

// ListByQuote returns archived sessions of a quote, oldest first
func (r *SessionArchive) ListByQuote(ctx context.Context, quoteID string) ([]*entity.QuoteReviewSession, error) {
	query := `
		SELECT id, quote_id, contractor_id, state, outcome, observed_version,
			committed_version, thread_id, pending_json, started_at,
			last_activity_at, finalized_at
		FROM review_sessions
		WHERE quote_id = ?
		ORDER BY started_at
	`
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, quoteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*entity.QuoteReviewSession
	for rows.Next() {
		var (
			s         entity.QuoteReviewSession
			pending   string
			finalized sql.NullTime
		)
		if err := rows.Scan(
			&s.ID,
			&s.QuoteID,
			&s.ContractorID,
			&s.State,
			&s.Outcome,
			&s.ObservedVersion,
			&s.CommittedVersion,
			&s.ThreadID,
			&pending,
			&s.StartedAt,
			&s.LastActivityAt,
			&finalized,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if err := json.Unmarshal([]byte(pending), &s.Pending); err != nil {
			return nil, fmt.Errorf("failed to decode pending commands of %s: %w", s.ID, err)
		}
		s.FinalizedAt = nullTimePtr(finalized)
		sessions = append(sessions, &s)
	}
	return sessions, rows.Err()
}

// Verify interface compliance
var _ port.SessionArchive = (*SessionArchive)(nil)
