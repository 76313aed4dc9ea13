package visit

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"softone/internal/models"
)

func TestExportWritesCompletedVisitsAndMarksPrinted(t *testing.T) {
	agendas := new(mockAgendaStore)

	completed := visitFixture(models.StatusCompleted)
	completed.ID = 1
	scheduled := visitFixture(models.StatusScheduled)
	scheduled.ID = 2

	agendas.On("GetAgenda", mock.Anything, int64(1)).Return(completed, nil).Once()
	agendas.On("GetAgenda", mock.Anything, int64(2)).Return(scheduled, nil).Once()
	agendas.On("UpdateAgenda", mock.Anything, int64(1), mock.MatchedBy(func(e models.AgendaEntry) bool {
		return e.Printed && e.PrintedAt != nil && e.Status == models.StatusCompleted
	})).Return(nil).Once()

	logger := zerolog.New(io.Discard)
	lifecycle := newLifecycle(agendas, nil, nil)
	exporter := NewReportExporter(agendas, &logger)

	var buf bytes.Buffer
	result, err := exporter.Export(context.Background(), lifecycle, []int64{1, 2}, &buf)
	require.NoError(t, err)

	assert.NotEmpty(t, result.ReportID)
	assert.Equal(t, 1, result.Exported)
	assert.Equal(t, 1, result.Marked)
	assert.Equal(t, 1, result.Skipped)
	agendas.AssertExpectations(t)

	// Reopen the workbook and check the contents.
	file, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer file.Close()

	rows, err := file.GetRows("Visits")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "completed", rows[1][6])
}

func TestExportSkipsUnfetchableVisits(t *testing.T) {
	agendas := new(mockAgendaStore)
	agendas.On("GetAgenda", mock.Anything, int64(9)).Return(nil, assert.AnError).Once()

	logger := zerolog.New(io.Discard)
	lifecycle := newLifecycle(agendas, nil, nil)
	exporter := NewReportExporter(agendas, &logger)

	var buf bytes.Buffer
	result, err := exporter.Export(context.Background(), lifecycle, []int64{9}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Exported)
	assert.Equal(t, 1, result.Skipped)
}

func TestExportPrintMarkFailureIsNonFatal(t *testing.T) {
	agendas := new(mockAgendaStore)
	completed := visitFixture(models.StatusCompleted)
	agendas.On("GetAgenda", mock.Anything, int64(555)).Return(completed, nil).Once()
	agendas.On("UpdateAgenda", mock.Anything, int64(555), mock.Anything).Return(assert.AnError).Once()

	logger := zerolog.New(io.Discard)
	lifecycle := newLifecycle(agendas, nil, nil)
	exporter := NewReportExporter(agendas, &logger)

	var buf bytes.Buffer
	result, err := exporter.Export(context.Background(), lifecycle, []int64{555}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Exported)
	assert.Equal(t, 0, result.Marked)
	assert.NotZero(t, buf.Len())
}

func TestMarkPrintedRefusesNonCompleted(t *testing.T) {
	agendas := new(mockAgendaStore)
	lifecycle := newLifecycle(agendas, nil, nil)

	err := lifecycle.MarkPrinted(context.Background(), visitFixture(models.StatusConfirmed))
	assert.Error(t, err)
	agendas.AssertNotCalled(t, "UpdateAgenda")
}
