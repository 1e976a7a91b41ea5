package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garyjia/quote-revision/internal/application/port"
	"github.com/garyjia/quote-revision/internal/domain/entity"
	"github.com/garyjia/quote-revision/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// TemplateRepository implements port.TemplateRepository on SQLite
type TemplateRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *sqlite.DB, logger *zap.Logger) *TemplateRepository {
	return &TemplateRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert creates or replaces the contractor's template
func (r *TemplateRepository) Upsert(ctx context.Context, tmpl *entity.QuoteTemplate) error {
	query := `
		INSERT INTO quote_templates (
			contractor_id, business_name, contact_name, phone, email,
			license_number, terms, footer, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(contractor_id) DO UPDATE SET
			business_name = excluded.business_name,
			contact_name = excluded.contact_name,
			phone = excluded.phone,
			email = excluded.email,
			license_number = excluded.license_number,
			terms = excluded.terms,
			footer = excluded.footer,
			updated_at = excluded.updated_at
	`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		tmpl.ContractorID,
		tmpl.BusinessName,
		tmpl.ContactName,
		tmpl.Phone,
		tmpl.Email,
		tmpl.LicenseNumber,
		tmpl.Terms,
		tmpl.Footer,
		tmpl.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert template", zap.Error(err), zap.String("contractor_id", tmpl.ContractorID))
		return fmt.Errorf("failed to upsert template: %w", err)
	}
	return nil
}

// GetByContractor returns the contractor's template or port.ErrTemplateNotFound
func (r *TemplateRepository) GetByContractor(ctx context.Context, contractorID string) (*entity.QuoteTemplate, error) {
	query := `
		SELECT contractor_id, business_name, contact_name, phone, email,
			license_number, terms, footer, updated_at
		FROM quote_templates
		WHERE contractor_id = ?
	`
	var t entity.QuoteTemplate
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, contractorID).Scan(
		&t.ContractorID,
		&t.BusinessName,
		&t.ContactName,
		&t.Phone,
		&t.Email,
		&t.LicenseNumber,
		&t.Terms,
		&t.Footer,
		&t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", port.ErrTemplateNotFound, contractorID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return &t, nil
}

// Verify interface compliance
var _ port.TemplateRepository = (*TemplateRepository)(nil)
