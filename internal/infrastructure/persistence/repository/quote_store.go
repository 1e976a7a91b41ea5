package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/quote-revision/internal/application/port"
	"github.com/garyjia/quote-revision/internal/domain/entity"
	"github.com/garyjia/quote-revision/internal/domain/revision"
	"github.com/garyjia/quote-revision/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// QuoteStore implements port.QuoteStore on SQLite
type QuoteStore struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewQuoteStore creates a new SQLite quote store
func NewQuoteStore(db *sqlite.DB, logger *zap.Logger) *QuoteStore {
	return &QuoteStore{
		db:     db,
		logger: logger,
	}
}

// CreateQuote inserts a quote and its items
func (r *QuoteStore) CreateQuote(ctx context.Context, quote *entity.Quote, items []entity.QuoteItem) error {
	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		query := `
			INSERT INTO quotes (
				id, contractor_id, customer_name, customer_email, customer_phone,
				customer_address, project_description, status, version, total_amount,
				valid_until, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := r.db.Executor(txCtx).ExecContext(txCtx, query,
			quote.ID,
			quote.ContractorID,
			quote.CustomerName,
			quote.CustomerEmail,
			quote.CustomerPhone,
			quote.CustomerAddress,
			quote.ProjectDescription,
			quote.Status,
			quote.Version,
			revision.CalculateTotal(items),
			quote.ValidUntil,
			quote.CreatedAt,
			quote.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create quote", zap.Error(err), zap.String("quote_id", quote.ID))
			return fmt.Errorf("failed to create quote: %w", err)
		}

		return r.insertItems(txCtx, quote.ID, items)
	})
}

// LoadQuote returns the quote with items in display order; line totals are recomputed
func (r *QuoteStore) LoadQuote(ctx context.Context, id string) (*entity.Quote, []entity.QuoteItem, error) {
	query := `
		SELECT id, contractor_id, customer_name, customer_email, customer_phone,
			customer_address, project_description, status, version, total_amount,
			valid_until, created_at, updated_at, sent_at, viewed_at, accepted_at
		FROM quotes
		WHERE id = ?
	`

	var (
		q                          entity.Quote
		validUntil                 sql.NullTime
		sentAt, viewedAt, accepted sql.NullTime
	)
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, id).Scan(
		&q.ID,
		&q.ContractorID,
		&q.CustomerName,
		&q.CustomerEmail,
		&q.CustomerPhone,
		&q.CustomerAddress,
		&q.ProjectDescription,
		&q.Status,
		&q.Version,
		&q.TotalAmount,
		&validUntil,
		&q.CreatedAt,
		&q.UpdatedAt,
		&sentAt,
		&viewedAt,
		&accepted,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%w: %s", port.ErrQuoteNotFound, id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get quote: %w", err)
	}

	if validUntil.Valid {
		q.ValidUntil = validUntil.Time
	}
	q.SentAt = nullTimePtr(sentAt)
	q.ViewedAt = nullTimePtr(viewedAt)
	q.AcceptedAt = nullTimePtr(accepted)

	items, err := r.listItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return &q, items, nil
}

// CommitQuoteVersion swaps in the new items, bumps the version and appends the
// edit in one transaction. The version guard on the UPDATE makes the losing
// writer of a race see zero affected rows.
func (r *QuoteStore) CommitQuoteVersion(ctx context.Context, id string, expectedVersion int, items []entity.QuoteItem, edit *entity.QuoteEdit) (int, error) {
	if edit.VersionFrom != expectedVersion || edit.VersionTo != expectedVersion+1 {
		return 0, fmt.Errorf("edit spans %d->%d, expected %d->%d", edit.VersionFrom, edit.VersionTo, expectedVersion, expectedVersion+1)
	}

	changes, err := json.Marshal(edit.Changes)
	if err != nil {
		return 0, fmt.Errorf("failed to encode changes: %w", err)
	}

	newVersion := expectedVersion + 1
	err = r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := r.db.Executor(txCtx)

		res, err := exec.ExecContext(txCtx,
			`UPDATE quotes SET version = ?, total_amount = ?, updated_at = ?
			 WHERE id = ? AND version = ? AND status NOT IN (?, ?)`,
			newVersion, revision.CalculateTotal(items), edit.CreatedAt, id, expectedVersion,
			entity.QuoteStatusAccepted, entity.QuoteStatusRejected,
		)
		if err != nil {
			return fmt.Errorf("failed to bump quote version: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		} else if n == 0 {
			return r.commitConflict(txCtx, id, expectedVersion)
		}

		if _, err := exec.ExecContext(txCtx, `DELETE FROM quote_items WHERE quote_id = ?`, id); err != nil {
			return fmt.Errorf("failed to clear quote items: %w", err)
		}
		if err := r.insertItems(txCtx, id, items); err != nil {
			return err
		}

		_, err = exec.ExecContext(txCtx, `
			INSERT INTO quote_edits (
				id, quote_id, version_from, version_to, kind, transcript,
				changes_json, confidence, contractor_id, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			edit.ID,
			id,
			edit.VersionFrom,
			edit.VersionTo,
			edit.Kind,
			edit.Transcript,
			string(changes),
			edit.Confidence,
			edit.ContractorID,
			edit.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to record quote edit: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.logger.Info("Quote version committed",
		zap.String("quote_id", id),
		zap.Int("version", newVersion),
		zap.Int("items", len(items)),
	)
	return newVersion, nil
}

// commitConflict explains why the guarded UPDATE matched no row
func (r *QuoteStore) commitConflict(ctx context.Context, id string, expected int) error {
	var (
		current int
		status  entity.QuoteStatus
	)
	err := r.db.Executor(ctx).QueryRowContext(ctx, `SELECT version, status FROM quotes WHERE id = ?`, id).Scan(&current, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", port.ErrQuoteNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to read quote version: %w", err)
	}
	if status.IsTerminal() {
		return fmt.Errorf("%w: status %s", port.ErrQuoteNotEditable, status)
	}
	return fmt.Errorf("%w: expected %d, store has %d", port.ErrStaleQuoteVersion, expected, current)
}

// ListEdits returns the quote's edits ordered by version_from
func (r *QuoteStore) ListEdits(ctx context.Context, quoteID string) ([]*entity.QuoteEdit, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, `
		SELECT id, quote_id, version_from, version_to, kind, transcript,
			changes_json, confidence, contractor_id, created_at
		FROM quote_edits
		WHERE quote_id = ?
		ORDER BY version_from
	`, quoteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list quote edits: %w", err)
	}
	defer rows.Close()

	var edits []*entity.QuoteEdit
	for rows.Next() {
		var (
			e       entity.QuoteEdit
			changes string
		)
		if err := rows.Scan(
			&e.ID,
			&e.QuoteID,
			&e.VersionFrom,
			&e.VersionTo,
			&e.Kind,
			&e.Transcript,
			&changes,
			&e.Confidence,
			&e.ContractorID,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan quote edit: %w", err)
		}
		if err := json.Unmarshal([]byte(changes), &e.Changes); err != nil {
			return nil, fmt.Errorf("failed to decode changes of edit %s: %w", e.ID, err)
		}
		edits = append(edits, &e)
	}
	return edits, rows.Err()
}

// UpdateStatus changes the status only if it is still from, stamping sent/accepted times
func (r *QuoteStore) UpdateStatus(ctx context.Context, id string, from, to entity.QuoteStatus, at time.Time) error {
	query := `
		UPDATE quotes
		SET status = ?, updated_at = ?,
			sent_at = CASE WHEN ? = 'sent' THEN ? ELSE sent_at END,
			accepted_at = CASE WHEN ? = 'accepted' THEN ? ELSE accepted_at END
		WHERE id = ? AND status = ?
	`
	res, err := r.db.Executor(ctx).ExecContext(ctx, query, to, at, to, at, to, at, id, from)
	if err != nil {
		return fmt.Errorf("failed to update quote status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		if _, _, err := r.LoadQuote(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s is no longer %s", port.ErrStatusConflict, id, from)
	}
	return nil
}

func (r *QuoteStore) insertItems(ctx context.Context, quoteID string, items []entity.QuoteItem) error {
	query := `
		INSERT INTO quote_items (
			id, quote_id, item_code, description, quantity, unit,
			unit_price, category, notes, display_order
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, it := range items {
		_, err := r.db.Executor(ctx).ExecContext(ctx, query,
			it.ID,
			quoteID,
			it.ItemCode,
			it.Description,
			it.Quantity,
			it.Unit,
			it.UnitPrice,
			it.Category,
			it.Notes,
			it.DisplayOrder,
		)
		if err != nil {
			return fmt.Errorf("failed to insert item %s: %w", it.ID, err)
		}
	}
	return nil
}

func (r *QuoteStore) listItems(ctx context.Context, quoteID string) ([]entity.QuoteItem, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, `
		SELECT id, quote_id, item_code, description, quantity, unit,
			unit_price, category, notes, display_order
		FROM quote_items
		WHERE quote_id = ?
		ORDER BY display_order
	`, quoteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list quote items: %w", err)
	}
	defer rows.Close()

	items := []entity.QuoteItem{}
	for rows.Next() {
		var it entity.QuoteItem
		if err := rows.Scan(
			&it.ID,
			&it.QuoteID,
			&it.ItemCode,
			&it.Description,
			&it.Quantity,
			&it.Unit,
			&it.UnitPrice,
			&it.Category,
			&it.Notes,
			&it.DisplayOrder,
		); err != nil {
			return nil, fmt.Errorf("failed to scan quote item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return revision.Recompute(items), nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// Verify interface compliance
var _ port.QuoteStore = (*QuoteStore)(nil)
