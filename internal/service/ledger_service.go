package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/maintenance-slot-api/internal/models"
	appErrors "github.com/noah-isme/maintenance-slot-api/pkg/errors"
	"github.com/noah-isme/maintenance-slot-api/pkg/export"
)

const maxLedgerExportRows = 10000

// LedgerExport is a rendered ledger document.
type LedgerExport struct {
	Filename    string
	ContentType string
	Content     []byte
}

// LedgerService lists and exports the reschedule ledger for reporting.
type LedgerService struct {
	ledger ledgerStore
	logger *zap.Logger
}

// NewLedgerService constructs a ledger service.
func NewLedgerService(ledger ledgerStore, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{ledger: ledger, logger: logger}
}

// List returns one page of ledger entries.
func (s *LedgerService) List(ctx context.Context, filter models.RescheduleFilter) ([]models.RescheduleLedgerEntry, *models.Pagination, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 500 {
		filter.PageSize = 50
	}
	if err := validateLedgerRange(filter); err != nil {
		return nil, nil, err
	}
	entries, total, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, nil, storeError(err, "")
	}
	if entries == nil {
		entries = []models.RescheduleLedgerEntry{}
	}
	return entries, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Export renders every matching entry as CSV or PDF.
func (s *LedgerService) Export(ctx context.Context, filter models.RescheduleFilter, format export.Format) (*LedgerExport, error) {
	renderer, err := export.ForFormat(format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if err := validateLedgerRange(filter); err != nil {
		return nil, err
	}
	filter.Page = 1
	filter.PageSize = maxLedgerExportRows
	entries, total, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, storeError(err, "")
	}
	if total > len(entries) {
		s.logger.Warn("ledger export truncated", zap.Int("total", total), zap.Int("exported", len(entries)))
	}

	table := export.Table{
		Title:   "Reschedule ledger",
		Caption: ledgerCaption(filter),
		Headers: []string{"Record", "Work order", "Equipment", "Zone", "Original date", "New date", "Recorded at"},
		Rows:    make([][]string, 0, len(entries)),
	}
	for _, entry := range entries {
		newDate := "open"
		if entry.NewDate != nil {
			newDate = entry.NewDate.String()
		}
		table.Rows = append(table.Rows, []string{
			entry.ID,
			entry.WorkOrderRef,
			entry.EquipmentNumber,
			entry.ZoneCode,
			entry.OriginalDate.String(),
			newDate,
			entry.CreatedAt.UTC().Format("2006-01-02 15:04"),
		})
	}

	content, err := renderer.Render(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render ledger export")
	}
	return &LedgerExport{
		Filename:    "reschedule-ledger." + renderer.Extension(),
		ContentType: renderer.ContentType(),
		Content:     content,
	}, nil
}

func validateLedgerRange(filter models.RescheduleFilter) error {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	return nil
}

func ledgerCaption(filter models.RescheduleFilter) string {
	from, to := "start", "now"
	if filter.From != nil {
		from = filter.From.String()
	}
	if filter.To != nil {
		to = filter.To.String()
	}
	caption := fmt.Sprintf("Original dates %s to %s", from, to)
	if filter.OpenOnly {
		caption += ", open records only"
	}
	return caption
}
