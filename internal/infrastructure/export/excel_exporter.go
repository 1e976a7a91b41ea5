package export

import (
	"context"
	"fmt"

	"github.com/garyjia/quote-revision/internal/application/port"
	"github.com/garyjia/quote-revision/internal/domain/entity"
	"github.com/garyjia/quote-revision/internal/domain/revision"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Sheet layout
const (
	sheetName = "Quote"

	cellBusiness = "A1"
	cellContact  = "A2"
	cellLicense  = "A3"

	cellQuoteLabel    = "F1"
	cellQuoteID       = "G1"
	cellVersionLabel  = "F2"
	cellVersion       = "G2"
	cellValidLabel    = "F3"
	cellValidUntil    = "G3"
	cellCustomer      = "A5"
	cellCustomerExtra = "A6"
	cellProject       = "A7"

	headerRow = 9
)

var itemColumns = []string{"#", "Description", "Category", "Quantity", "Unit", "Unit Price", "Total"}

// ExcelExporter implements port.QuoteExporter as an xlsx workbook
type ExcelExporter struct {
	logger *zap.Logger
}

// NewExcelExporter creates a new ExcelExporter
func NewExcelExporter(logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{logger: logger}
}

// ContentType returns the xlsx MIME type
func (e *ExcelExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// FileExtension returns "xlsx"
func (e *ExcelExporter) FileExtension() string {
	return "xlsx"
}

// Export renders the quote header, one row per item and the total
func (e *ExcelExporter) Export(ctx context.Context, quote *entity.Quote, items []entity.QuoteItem, tmpl *entity.QuoteTemplate) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}
	money, err := file.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	if err := e.fillHeader(file, quote, tmpl, bold); err != nil {
		return nil, fmt.Errorf("failed to fill header: %w", err)
	}

	items = revision.Recompute(items)
	totalRow, err := e.fillItems(file, items, bold, money)
	if err != nil {
		return nil, fmt.Errorf("failed to fill items: %w", err)
	}

	if err := e.fillFooter(file, totalRow+2, tmpl); err != nil {
		return nil, fmt.Errorf("failed to fill footer: %w", err)
	}

	if err := file.SetColWidth(sheetName, "B", "B", 40); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Quote exported",
		zap.String("quote_id", quote.ID),
		zap.Int("version", quote.Version),
		zap.Int("item_count", len(items)))
	return buf.Bytes(), nil
}

func (e *ExcelExporter) fillHeader(file *excelize.File, quote *entity.Quote, tmpl *entity.QuoteTemplate, bold int) error {
	cells := map[string]interface{}{
		cellQuoteLabel:   "Quote",
		cellQuoteID:      quote.ID,
		cellVersionLabel: "Version",
		cellVersion:      quote.Version,
		cellCustomer:     "Prepared for: " + quote.CustomerName,
		cellProject:      quote.ProjectDescription,
	}
	if !quote.ValidUntil.IsZero() {
		cells[cellValidLabel] = "Valid until"
		cells[cellValidUntil] = quote.ValidUntil.Format("2006-01-02")
	}
	if extra := joinNonEmpty(quote.CustomerAddress, quote.CustomerEmail, quote.CustomerPhone); extra != "" {
		cells[cellCustomerExtra] = extra
	}
	if tmpl != nil {
		cells[cellBusiness] = tmpl.BusinessName
		if contact := joinNonEmpty(tmpl.ContactName, tmpl.Phone, tmpl.Email); contact != "" {
			cells[cellContact] = contact
		}
		if tmpl.LicenseNumber != "" {
			cells[cellLicense] = "License " + tmpl.LicenseNumber
		}
	}

	for cell, v := range cells {
		if err := file.SetCellValue(sheetName, cell, v); err != nil {
			return fmt.Errorf("failed to set %s: %w", cell, err)
		}
	}
	return file.SetCellStyle(sheetName, cellBusiness, cellBusiness, bold)
}

// fillItems writes the item table and returns the row of the total
func (e *ExcelExporter) fillItems(file *excelize.File, items []entity.QuoteItem, bold, money int) (int, error) {
	for i, title := range itemColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		if err := file.SetCellValue(sheetName, cell, title); err != nil {
			return 0, err
		}
	}
	first, _ := excelize.CoordinatesToCellName(1, headerRow)
	last, _ := excelize.CoordinatesToCellName(len(itemColumns), headerRow)
	if err := file.SetCellStyle(sheetName, first, last, bold); err != nil {
		return 0, err
	}

	row := headerRow
	for i, it := range items {
		row = headerRow + 1 + i
		values := []interface{}{i + 1, it.Description, string(it.Category), it.Quantity, string(it.Unit), it.UnitPrice, it.TotalPrice}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := file.SetSheetRow(sheetName, cell, &values); err != nil {
			return 0, fmt.Errorf("failed to write item %s: %w", it.ID, err)
		}
	}
	if len(items) > 0 {
		top, _ := excelize.CoordinatesToCellName(6, headerRow+1)
		bottom, _ := excelize.CoordinatesToCellName(7, row)
		if err := file.SetCellStyle(sheetName, top, bottom, money); err != nil {
			return 0, err
		}
	}

	totalRow := row + 1
	label, _ := excelize.CoordinatesToCellName(6, totalRow)
	total, _ := excelize.CoordinatesToCellName(7, totalRow)
	if err := file.SetCellValue(sheetName, label, "Total"); err != nil {
		return 0, err
	}
	if err := file.SetCellValue(sheetName, total, revision.CalculateTotal(items)); err != nil {
		return 0, err
	}
	if err := file.SetCellStyle(sheetName, label, label, bold); err != nil {
		return 0, err
	}
	return totalRow, file.SetCellStyle(sheetName, total, total, money)
}

func (e *ExcelExporter) fillFooter(file *excelize.File, row int, tmpl *entity.QuoteTemplate) error {
	if tmpl == nil {
		return nil
	}
	for _, text := range []string{tmpl.Terms, tmpl.Footer} {
		if text == "" {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := file.SetCellValue(sheetName, cell, text); err != nil {
			return err
		}
		row++
	}
	return nil
}

func joinNonEmpty(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += " | "
		}
		out += p
	}
	return out
}

// Verify interface compliance
var _ port.QuoteExporter = (*ExcelExporter)(nil)
