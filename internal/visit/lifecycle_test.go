package visit

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"softone/internal/geo"
	"softone/internal/models"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name        string
		from        models.VisitStatus
		to          models.VisitStatus
		shouldAllow bool
	}{
		{"scheduled to confirmed", models.StatusScheduled, models.StatusConfirmed, true},
		{"confirmed to completed", models.StatusConfirmed, models.StatusCompleted, true},
		{"confirmed to canceled", models.StatusConfirmed, models.StatusCanceled, true},
		{"confirmed back to scheduled (postpone)", models.StatusConfirmed, models.StatusScheduled, true},
		{"completed to finalized", models.StatusCompleted, models.StatusFinalized, true},
		{"postponed to scheduled", models.StatusPostponed, models.StatusScheduled, true},
		// Recovery of unknown statuses.
		{"zero status to scheduled", models.VisitStatus(0), models.StatusScheduled, true},
		{"status 9 to scheduled", models.VisitStatus(9), models.StatusScheduled, true},
		{"zero status to confirmed", models.VisitStatus(0), models.StatusConfirmed, false},
		// Invalid transitions.
		{"scheduled to completed", models.StatusScheduled, models.StatusCompleted, false},
		{"scheduled to finalized", models.StatusScheduled, models.StatusFinalized, false},
		{"completed to canceled", models.StatusCompleted, models.StatusCanceled, false},
		// Terminal states have no outgoing edges.
		{"finalized to scheduled", models.StatusFinalized, models.StatusScheduled, false},
		{"finalized to confirmed", models.StatusFinalized, models.StatusConfirmed, false},
		{"canceled to scheduled", models.StatusCanceled, models.StatusScheduled, false},
		{"inactive to scheduled", models.StatusInactive, models.StatusScheduled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed := CanTransition(tt.from, tt.to)
			if allowed != tt.shouldAllow {
				t.Errorf("transition %s -> %s: expected allowed=%v, got %v",
					tt.from, tt.to, tt.shouldAllow, allowed)
			}
		})
	}
}

type mockAgendaStore struct {
	mock.Mock
}

func (m *mockAgendaStore) GetAgenda(ctx context.Context, id int64) (*models.AgendaEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AgendaEntry), args.Error(1)
}

func (m *mockAgendaStore) UpdateAgenda(ctx context.Context, id int64, entry models.AgendaEntry) error {
	return m.Called(ctx, id, entry).Error(0)
}

type mockRouteStore struct {
	mock.Mock
}

func (m *mockRouteStore) CreateRoute(ctx context.Context, route models.RouteRecord) (*models.RouteRecord, error) {
	args := m.Called(ctx, route)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RouteRecord), args.Error(1)
}

func (m *mockRouteStore) ListRoutesByAgenda(ctx context.Context, agendaID int64) ([]models.RouteRecord, error) {
	args := m.Called(ctx, agendaID)
	return args.Get(0).([]models.RouteRecord), args.Error(1)
}

type stubEstimator struct {
	est *geo.Estimate
	err error
}

func (s stubEstimator) Resolve(context.Context, string, *geo.Coordinates) (*geo.Estimate, error) {
	return s.est, s.err
}

func newLifecycle(agendas AgendaStore, routes RouteStore, distance DistanceEstimator) *Lifecycle {
	logger := zerolog.New(io.Discard)
	return NewLifecycle(agendas, routes, distance, nil, &logger)
}

func visitFixture(status models.VisitStatus) *models.AgendaEntry {
	loc := int64(20)
	return &models.AgendaEntry{
		ID:             555,
		ProfessionalID: 10,
		LocationID:     &loc,
		Date:           "2025-03-01",
		Period:         models.PeriodMorning,
		Description:    "product presentation",
		Status:         status,
		Active:         true,
	}
}

func TestConfirmPersistsFullRecord(t *testing.T) {
	agendas := new(mockAgendaStore)
	agendas.On("GetAgenda", mock.Anything, int64(555)).Return(visitFixture(models.StatusScheduled), nil).Once()
	agendas.On("UpdateAgenda", mock.Anything, int64(555), mock.MatchedBy(func(e models.AgendaEntry) bool {
		// Full rewrite: status changed, everything else intact.
		return e.Status == models.StatusConfirmed &&
			e.ProfessionalID == 10 &&
			e.LocationID != nil && *e.LocationID == 20 &&
			e.Date == "2025-03-01" &&
			e.Description == "product presentation" &&
			e.Active
	})).Return(nil).Once()

	l := newLifecycle(agendas, nil, nil)
	entry, err := l.Confirm(context.Background(), 555)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, entry.Status)
	agendas.AssertExpectations(t)
}

func TestConfirmRejectedFromCompleted(t *testing.T) {
	agendas := new(mockAgendaStore)
	agendas.On("GetAgenda", mock.Anything, int64(555)).Return(visitFixture(models.StatusCompleted), nil).Once()

	l := newLifecycle(agendas, nil, nil)
	_, err := l.Confirm(context.Background(), 555)

	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, models.StatusCompleted, te.From)
	agendas.AssertNotCalled(t, "UpdateAgenda")
}

func TestCompleteWithoutDevicePositionRequiresOverride(t *testing.T) {
	agendas := new(mockAgendaStore)
	l := newLifecycle(agendas, nil, stubEstimator{})

	// Geolocation unavailable: user must be prompted.
	_, err := l.Complete(context.Background(), 555, CompleteOptions{Device: nil})

	var oe *OverrideRequiredError
	require.True(t, errors.As(err, &oe))
	agendas.AssertNotCalled(t, "UpdateAgenda")

	// Declining means simply not re-invoking; the visit stays Confirmed.
	// Confirming retries with Override set.
	agendas.On("GetAgenda", mock.Anything, int64(555)).Return(visitFixture(models.StatusConfirmed), nil).Once()
	agendas.On("UpdateAgenda", mock.Anything, int64(555), mock.Anything).Return(nil).Once()

	entry, err := l.Complete(context.Background(), 555, CompleteOptions{Override: true})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, entry.Status)
	agendas.AssertExpectations(t)
}

func TestCompleteNearbyPassesGate(t *testing.T) {
	agendas := new(mockAgendaStore)
	agendas.On("GetAgenda", mock.Anything, int64(555)).Return(visitFixture(models.StatusConfirmed), nil).Once()
	agendas.On("UpdateAgenda", mock.Anything, int64(555), mock.Anything).Return(nil).Once()

	l := newLifecycle(agendas, nil, stubEstimator{est: &geo.Estimate{KM: 0.2}})

	device := geo.Coordinates{Lat: -23.55, Lng: -46.63}
	entry, err := l.Complete(context.Background(), 555, CompleteOptions{
		Device:             &device,
		DestinationAddress: "Rua Teste, 123",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, entry.Status)
	agendas.AssertExpectations(t)
}

func TestCompleteFarAwayRequiresOverride(t *testing.T) {
	agendas := new(mockAgendaStore)
	l := newLifecycle(agendas, nil, stubEstimator{est: &geo.Estimate{KM: 12.4}})

	device := geo.Coordinates{Lat: -23.55, Lng: -46.63}
	_, err := l.Complete(context.Background(), 555, CompleteOptions{
		Device:             &device,
		DestinationAddress: "Rua Teste, 123",
	})

	var oe *OverrideRequiredError
	require.True(t, errors.As(err, &oe))
	assert.InDelta(t, 12.4, oe.DistanceKM, 1e-9)
	agendas.AssertNotCalled(t, "UpdateAgenda")
}

func TestCompleteUnresolvableDistanceRequiresOverride(t *testing.T) {
	agendas := new(mockAgendaStore)
	l := newLifecycle(agendas, nil, stubEstimator{err: geo.ErrManualEntry})

	device := geo.Coordinates{Lat: -23.55, Lng: -46.63}
	_, err := l.Complete(context.Background(), 555, CompleteOptions{
		Device:             &device,
		DestinationAddress: "Rua Teste, 123",
	})

	var oe *OverrideRequiredError
	require.True(t, errors.As(err, &oe))
	assert.Zero(t, oe.DistanceKM)
}

func TestCancelRequiresConfirmation(t *testing.T) {
	agendas := new(mockAgendaStore)
	l := newLifecycle(agendas, nil, nil)

	_, err := l.Cancel(context.Background(), 555, false)
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	agendas.AssertNotCalled(t, "GetAgenda")

	agendas.On("GetAgenda", mock.Anything, int64(555)).Return(visitFixture(models.StatusConfirmed), nil).Once()
	agendas.On("UpdateAgenda", mock.Anything, int64(555), mock.MatchedBy(func(e models.AgendaEntry) bool {
		return e.Status == models.StatusCanceled
	})).Return(nil).Once()

	entry, err := l.Cancel(context.Background(), 555, true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, entry.Status)
	agendas.AssertExpectations(t)
}

func TestFinalize(t *testing.T) {
	agendas := new(mockAgendaStore)
	agendas.On("GetAgenda", mock.Anything, int64(555)).Return(visitFixture(models.StatusCompleted), nil).Once()
	agendas.On("UpdateAgenda", mock.Anything, int64(555), mock.MatchedBy(func(e models.AgendaEntry) bool {
		return e.Status == models.StatusFinalized
	})).Return(nil).Once()

	l := newLifecycle(agendas, nil, nil)
	entry, err := l.Finalize(context.Background(), 555, true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinalized, entry.Status)
}

func TestTerminalStatesRejectEveryAction(t *testing.T) {
	for _, status := range []models.VisitStatus{models.StatusFinalized, models.StatusCanceled} {
		t.Run(status.String(), func(t *testing.T) {
			agendas := new(mockAgendaStore)
			agendas.On("GetAgenda", mock.Anything, int64(555)).Return(visitFixture(status), nil)

			l := newLifecycle(agendas, nil, stubEstimator{})
			ctx := context.Background()

			_, err := l.Confirm(ctx, 555)
			assert.Error(t, err)
			_, err = l.Complete(ctx, 555, CompleteOptions{Override: true})
			assert.Error(t, err)
			_, err = l.Cancel(ctx, 555, true)
			assert.Error(t, err)
			_, err = l.Finalize(ctx, 555, true)
			assert.Error(t, err)
			_, err = l.Postpone(ctx, 555, "2025-04-01", models.PeriodMorning)
			assert.Error(t, err)

			agendas.AssertNotCalled(t, "UpdateAgenda")
		})
	}
}

func TestPostponeRewritesDateAndForcesScheduled(t *testing.T) {
	agendas := new(mockAgendaStore)
	agendas.On("GetAgenda", mock.Anything, int64(555)).Return(visitFixture(models.StatusConfirmed), nil).Once()
	agendas.On("UpdateAgenda", mock.Anything, int64(555), mock.MatchedBy(func(e models.AgendaEntry) bool {
		return e.Status == models.StatusScheduled &&
			e.Date == "2025-04-15" &&
			e.Period == models.PeriodAfternoon
	})).Return(nil).Once()

	l := newLifecycle(agendas, nil, nil)
	entry, err := l.Postpone(context.Background(), 555, "2025-04-15", models.PeriodAfternoon)
	require.NoError(t, err)
	assert.Equal(t, models.StatusScheduled, entry.Status)
	assert.Equal(t, "2025-04-15", entry.Date)
	agendas.AssertExpectations(t)
}

func TestPostponeRejectsBadInput(t *testing.T) {
	l := newLifecycle(new(mockAgendaStore), nil, nil)
	_, err := l.Postpone(context.Background(), 555, "15/04/2025", models.PeriodMorning)
	assert.Error(t, err)
	_, err = l.Postpone(context.Background(), 555, "2025-04-15", models.Period(7))
	assert.Error(t, err)
}

func TestRecover(t *testing.T) {
	agendas := new(mockAgendaStore)
	broken := visitFixture(models.VisitStatus(0))
	agendas.On("GetAgenda", mock.Anything, int64(555)).Return(broken, nil).Once()
	agendas.On("UpdateAgenda", mock.Anything, int64(555), mock.MatchedBy(func(e models.AgendaEntry) bool {
		return e.Status == models.StatusScheduled
	})).Return(nil).Once()

	l := newLifecycle(agendas, nil, nil)
	entry, err := l.Recover(context.Background(), 555)
	require.NoError(t, err)
	assert.Equal(t, models.StatusScheduled, entry.Status)
}

func TestRecoverRefusesValidStatus(t *testing.T) {
	agendas := new(mockAgendaStore)
	agendas.On("GetAgenda", mock.Anything, int64(555)).Return(visitFixture(models.StatusConfirmed), nil).Once()

	l := newLifecycle(agendas, nil, nil)
	_, err := l.Recover(context.Background(), 555)
	assert.Error(t, err)
	agendas.AssertNotCalled(t, "UpdateAgenda")
}

func TestStartNavigationRegistersRouteAndConfirms(t *testing.T) {
	agendas := new(mockAgendaStore)
	routes := new(mockRouteStore)

	scheduled := visitFixture(models.StatusScheduled)
	agendas.On("GetAgenda", mock.Anything, int64(555)).Return(scheduled, nil).Twice()
	agendas.On("UpdateAgenda", mock.Anything, int64(555), mock.MatchedBy(func(e models.AgendaEntry) bool {
		return e.Status == models.StatusConfirmed
	})).Return(nil).Once()

	routes.On("CreateRoute", mock.Anything, mock.MatchedBy(func(r models.RouteRecord) bool {
		return r.AgendaID == 555 && r.DistanceKM > 0 && r.Active
	})).Return(&models.RouteRecord{ID: 42, AgendaID: 555, DistanceKM: 11.2}, nil).Once()

	l := newLifecycle(agendas, routes, stubEstimator{est: &geo.Estimate{
		KM:     11.2,
		Origin: geo.Coordinates{Lat: -23.55, Lng: -46.63},
	}})

	route, err := l.StartNavigation(context.Background(), 555, "Rua Teste, 123", "u1", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(42), route.ID)
	agendas.AssertExpectations(t)
	routes.AssertExpectations(t)
}

func TestStartNavigationManualDistance(t *testing.T) {
	agendas := new(mockAgendaStore)
	routes := new(mockRouteStore)

	confirmed := visitFixture(models.StatusConfirmed)
	agendas.On("GetAgenda", mock.Anything, int64(555)).Return(confirmed, nil).Once()
	routes.On("CreateRoute", mock.Anything, mock.MatchedBy(func(r models.RouteRecord) bool {
		return r.DistanceKM == 7.5
	})).Return(&models.RouteRecord{ID: 43, AgendaID: 555, DistanceKM: 7.5}, nil).Once()

	// Resolver failing is irrelevant: a manual distance skips it.
	l := newLifecycle(agendas, routes, stubEstimator{err: geo.ErrManualEntry})

	route, err := l.StartNavigation(context.Background(), 555, "Rua Teste, 123", "u1", nil, 7.5)
	require.NoError(t, err)
	assert.Equal(t, 7.5, route.DistanceKM)
	// Already confirmed: no implicit transition.
	agendas.AssertNotCalled(t, "UpdateAgenda")
}

func TestStartNavigationPropagatesManualEntrySignal(t *testing.T) {
	agendas := new(mockAgendaStore)
	routes := new(mockRouteStore)
	agendas.On("GetAgenda", mock.Anything, int64(555)).Return(visitFixture(models.StatusScheduled), nil).Once()

	l := newLifecycle(agendas, routes, stubEstimator{err: geo.ErrManualEntry})

	_, err := l.StartNavigation(context.Background(), 555, "Rua Teste, 123", "u1", nil, 0)
	assert.ErrorIs(t, err, geo.ErrManualEntry)
	routes.AssertNotCalled(t, "CreateRoute")
}
