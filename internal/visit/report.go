package visit

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"softone/internal/models"
)

// reportColumns is the header row of the visit report sheet.
var reportColumns = []string{"ID", "Professional", "Location", "Date", "Period", "Type", "Status", "Description"}

// ReportExporter writes completed visits to an Excel workbook and marks
// them printed. Print-marking is a flag plus timestamp on the record; it
// deliberately does not touch the status code (Inactive keeps its single
// meaning).
type ReportExporter struct {
	agendas AgendaStore
	logger  *zerolog.Logger
}

// NewReportExporter constructs an exporter.
func NewReportExporter(agendas AgendaStore, logger *zerolog.Logger) *ReportExporter {
	return &ReportExporter{agendas: agendas, logger: logger}
}

// ReportResult summarizes one export run.
type ReportResult struct {
	ReportID string `json:"reportId"`
	Exported int    `json:"exported"`
	Marked   int    `json:"marked"`
	Skipped  int    `json:"skipped"`
}

// Export fetches each visit by id, writes the Completed ones to w as an
// Excel sheet and marks them printed. Visits in any other status are
// skipped, and a failed print-mark downgrades to a warning: the report
// itself is the primary outcome.
func (r *ReportExporter) Export(ctx context.Context, lifecycle *Lifecycle, ids []int64, w io.Writer) (*ReportResult, error) {
	file := excelize.NewFile()
	defer file.Close()

	const sheet = "Visits"
	file.SetSheetName("Sheet1", sheet)

	if err := writeHeader(file, sheet); err != nil {
		return nil, err
	}

	result := &ReportResult{ReportID: uuid.NewString()}
	row := 2
	for _, id := range ids {
		entry, err := r.agendas.GetAgenda(ctx, id)
		if err != nil {
			r.logger.Warn().Err(err).Int64("id", id).Msg("report: visit not fetchable, skipping")
			result.Skipped++
			continue
		}
		if entry.Status != models.StatusCompleted {
			result.Skipped++
			continue
		}

		if err := writeRow(file, sheet, row, entry); err != nil {
			return nil, err
		}
		row++
		result.Exported++

		if err := lifecycle.MarkPrinted(ctx, entry); err != nil {
			r.logger.Warn().Err(err).Int64("id", id).Msg("report: could not mark visit printed")
			continue
		}
		result.Marked++
	}

	if err := file.Write(w); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	r.logger.Info().Str("reportId", result.ReportID).Int("exported", result.Exported).Int("marked", result.Marked).Msg("visit report exported")
	return result, nil
}

// MarkPrinted flags a Completed visit as processed by a report. The status
// code is left untouched.
func (l *Lifecycle) MarkPrinted(ctx context.Context, entry *models.AgendaEntry) error {
	if entry.Status != models.StatusCompleted {
		return fmt.Errorf("mark printed: visit %d is %s, not completed", entry.ID, entry.Status)
	}
	now := l.now()
	entry.Printed = true
	entry.PrintedAt = &now
	return l.persist(ctx, entry)
}

func writeHeader(file *excelize.File, sheet string) error {
	for i, col := range reportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}
	style, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		endCell, _ := excelize.CoordinatesToCellName(len(reportColumns), 1)
		_ = file.SetCellStyle(sheet, "A1", endCell, style)
	}
	return nil
}

func writeRow(file *excelize.File, sheet string, row int, entry *models.AgendaEntry) error {
	location := ""
	if entry.LocationID != nil {
		location = fmt.Sprintf("%d", *entry.LocationID)
	}
	values := []any{
		entry.ID,
		entry.ProfessionalID,
		location,
		entry.Date,
		entry.Period.String(),
		models.VisitTypeLabels[entry.Type],
		entry.Status.String(),
		entry.Description,
	}
	for i, val := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(sheet, cell, val); err != nil {
			return err
		}
	}
	return nil
}
