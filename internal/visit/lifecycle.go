// Package visit implements the visit status state machine and the side
// effects each transition triggers: route registration, proximity-gated
// completion and print-marking. Every transition that mutates status is
// persisted as a full record rewrite; the backend has no partial update.
package visit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"softone/internal/events"
	"softone/internal/geo"
	"softone/internal/metrics"
	"softone/internal/models"
)

// Actions a user can take on a visit.
const (
	ActionConfirm         = "confirm"
	ActionComplete        = "complete"
	ActionCancel          = "cancel"
	ActionPostpone        = "postpone"
	ActionFinalize        = "finalize"
	ActionRecover         = "recover"
	ActionStartNavigation = "start_navigation"
)

// ProximityThresholdKM is the distance under which completion needs no
// override confirmation.
const ProximityThresholdKM = 0.5

// ErrConfirmationRequired is returned by Cancel and Finalize when the
// caller did not confirm the action.
var ErrConfirmationRequired = errors.New("user confirmation required")

// transitions maps each status to the statuses reachable from it. Finalized,
// Canceled and Inactive have no outgoing edges.
var transitions = map[models.VisitStatus][]models.VisitStatus{
	models.StatusScheduled: {models.StatusConfirmed},
	models.StatusConfirmed: {models.StatusCompleted, models.StatusCanceled, models.StatusScheduled},
	models.StatusCompleted: {models.StatusFinalized},
	models.StatusPostponed: {models.StatusScheduled},
}

// CanTransition reports whether the state machine allows from -> to. Any
// unrecognized status may only be recovered to Scheduled.
func CanTransition(from, to models.VisitStatus) bool {
	if !from.Valid() {
		return to == models.StatusScheduled
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionError reports a disallowed status change.
type TransitionError struct {
	From models.VisitStatus
	To   models.VisitStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s is not allowed", e.From, e.To)
}

// OverrideRequiredError means completion needs an explicit user
// confirmation: the proximity check failed or could not run. The check is a
// soft gate; re-invoking Complete with Override set proceeds.
type OverrideRequiredError struct {
	Reason     string
	DistanceKM float64 // zero when no distance could be computed
}

func (e *OverrideRequiredError) Error() string {
	return "completion requires override confirmation: " + e.Reason
}

// AgendaStore is the remote agenda collaborator.
type AgendaStore interface {
	GetAgenda(ctx context.Context, id int64) (*models.AgendaEntry, error)
	UpdateAgenda(ctx context.Context, id int64, entry models.AgendaEntry) error
}

// RouteStore is the remote route collaborator.
type RouteStore interface {
	CreateRoute(ctx context.Context, route models.RouteRecord) (*models.RouteRecord, error)
	ListRoutesByAgenda(ctx context.Context, agendaID int64) ([]models.RouteRecord, error)
}

// DistanceEstimator produces a travel distance for a destination address.
type DistanceEstimator interface {
	Resolve(ctx context.Context, destinationAddress string, device *geo.Coordinates) (*geo.Estimate, error)
}

// Lifecycle drives visit status transitions and their side effects.
type Lifecycle struct {
	agendas  AgendaStore
	routes   RouteStore
	distance DistanceEstimator
	bus      *events.Bus
	logger   *zerolog.Logger
	now      func() time.Time
}

// NewLifecycle constructs a lifecycle service.
func NewLifecycle(agendas AgendaStore, routes RouteStore, distance DistanceEstimator, bus *events.Bus, logger *zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		agendas:  agendas,
		routes:   routes,
		distance: distance,
		bus:      bus,
		logger:   logger,
		now:      time.Now,
	}
}

// Confirm moves a Scheduled visit to Confirmed.
func (l *Lifecycle) Confirm(ctx context.Context, id int64) (*models.AgendaEntry, error) {
	return l.transition(ctx, id, models.StatusConfirmed, ActionConfirm, nil)
}

// CompleteOptions carries the inputs of a Complete action.
type CompleteOptions struct {
	// Device is the position the user's device reported, nil when
	// geolocation was unavailable or denied.
	Device *geo.Coordinates
	// DestinationAddress is the visit's address, used for the proximity
	// check when a device position exists.
	DestinationAddress string
	// Override confirms completion despite a failed or impossible
	// proximity check.
	Override bool
}

// Complete moves a Confirmed visit to Completed, gated by a proximity
// check: with a device position and a resolvable destination, a distance
// under the threshold completes directly; anything else returns
// OverrideRequiredError so the caller can ask the user. The gate is soft,
// it interposes a confirmation but never blocks the transition outright.
func (l *Lifecycle) Complete(ctx context.Context, id int64, opts CompleteOptions) (*models.AgendaEntry, error) {
	if !opts.Override {
		if err := l.proximityCheck(ctx, opts); err != nil {
			return nil, err
		}
	}
	return l.transition(ctx, id, models.StatusCompleted, ActionComplete, nil)
}

func (l *Lifecycle) proximityCheck(ctx context.Context, opts CompleteOptions) error {
	if opts.Device == nil {
		return &OverrideRequiredError{Reason: "device position unavailable"}
	}
	if opts.DestinationAddress == "" {
		return &OverrideRequiredError{Reason: "visit has no destination address"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	est, err := l.distance.Resolve(checkCtx, opts.DestinationAddress, opts.Device)
	if err != nil {
		l.logger.Warn().Err(err).Msg("proximity check could not resolve a distance")
		return &OverrideRequiredError{Reason: "location could not be verified"}
	}
	if est.KM > ProximityThresholdKM {
		return &OverrideRequiredError{
			Reason:     fmt.Sprintf("device is %.1f km from the visit address", est.KM),
			DistanceKM: est.KM,
		}
	}
	return nil
}

// Cancel moves a Confirmed visit to Canceled. The action is destructive and
// requires the caller to pass the user's confirmation.
func (l *Lifecycle) Cancel(ctx context.Context, id int64, confirmed bool) (*models.AgendaEntry, error) {
	if !confirmed {
		return nil, ErrConfirmationRequired
	}
	return l.transition(ctx, id, models.StatusCanceled, ActionCancel, nil)
}

// Finalize moves a Completed visit to Finalized, a terminal state. Requires
// the user's confirmation.
func (l *Lifecycle) Finalize(ctx context.Context, id int64, confirmed bool) (*models.AgendaEntry, error) {
	if !confirmed {
		return nil, ErrConfirmationRequired
	}
	return l.transition(ctx, id, models.StatusFinalized, ActionFinalize, nil)
}

// Postpone rewrites a Confirmed (or previously Postponed) visit with a new
// date and period, forcing the status back to Scheduled.
func (l *Lifecycle) Postpone(ctx context.Context, id int64, newDate string, newPeriod models.Period) (*models.AgendaEntry, error) {
	if _, err := time.Parse(models.DateLayout, newDate); err != nil {
		return nil, fmt.Errorf("postpone: bad date %q: %w", newDate, err)
	}
	if !newPeriod.Valid() {
		return nil, fmt.Errorf("postpone: bad period %d", newPeriod)
	}
	return l.transition(ctx, id, models.StatusScheduled, ActionPostpone, func(entry *models.AgendaEntry) {
		entry.Date = newDate
		entry.Period = newPeriod
	})
}

// Recover resets an entry whose status fell outside the known set back to
// Scheduled. It refuses entries whose status is a valid code.
func (l *Lifecycle) Recover(ctx context.Context, id int64) (*models.AgendaEntry, error) {
	entry, err := l.agendas.GetAgenda(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.Status.Valid() {
		return nil, fmt.Errorf("recover: status %s is valid, nothing to repair", entry.Status)
	}
	entry.Status = models.StatusScheduled
	if err := l.persist(ctx, entry); err != nil {
		return nil, err
	}
	l.published(ActionRecover, entry)
	return entry, nil
}

// StartNavigation registers a route record for the visit using the resolved
// or manually supplied distance, then implicitly confirms a Scheduled
// visit. Exactly one route record is created per successful call.
func (l *Lifecycle) StartNavigation(ctx context.Context, id int64, destinationAddress, userID string, device *geo.Coordinates, manualKM float64) (*models.RouteRecord, error) {
	entry, err := l.agendas.GetAgenda(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.Status.Terminal() {
		return nil, &TransitionError{From: entry.Status, To: models.StatusConfirmed}
	}

	origin := "unknown"
	km := manualKM
	if km <= 0 {
		est, err := l.distance.Resolve(ctx, destinationAddress, device)
		if err != nil {
			// The caller falls back to manual kilometer entry.
			return nil, err
		}
		km = est.KM
		origin = est.Origin.String()
	} else if device != nil {
		origin = device.String()
	}

	route := models.RouteRecord{
		Origin:      origin,
		Destination: destinationAddress,
		DistanceKM:  km,
		CreatedAt:   l.now(),
		UserID:      userID,
		AgendaID:    id,
		Active:      true,
	}
	if err := route.Validate(); err != nil {
		return nil, err
	}

	created, err := l.routes.CreateRoute(ctx, route)
	if err != nil {
		return nil, err
	}
	l.publish(events.RouteRegistered, created)
	metrics.IncTransition(ActionStartNavigation)

	// Registering a route for a Scheduled visit confirms it implicitly.
	if entry.Status == models.StatusScheduled {
		if _, err := l.Confirm(ctx, id); err != nil {
			l.logger.Warn().Err(err).Int64("id", id).Msg("route registered but implicit confirm failed")
		}
	}
	return created, nil
}

func (l *Lifecycle) transition(ctx context.Context, id int64, to models.VisitStatus, action string, mutate func(*models.AgendaEntry)) (*models.AgendaEntry, error) {
	entry, err := l.agendas.GetAgenda(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(entry.Status, to) {
		return nil, &TransitionError{From: entry.Status, To: to}
	}

	entry.Status = to
	if mutate != nil {
		mutate(entry)
	}
	if err := l.persist(ctx, entry); err != nil {
		return nil, err
	}
	l.published(action, entry)
	return entry, nil
}

// persist rewrites the full record. Every known field is resent; the
// backend would fill omitted ones with defaults.
func (l *Lifecycle) persist(ctx context.Context, entry *models.AgendaEntry) error {
	if err := l.agendas.UpdateAgenda(ctx, entry.ID, *entry); err != nil {
		return fmt.Errorf("persist visit %d: %w", entry.ID, err)
	}
	return nil
}

func (l *Lifecycle) published(action string, entry *models.AgendaEntry) {
	metrics.IncTransition(action)
	l.logger.Info().Int64("id", entry.ID).Str("action", action).Str("status", entry.Status.String()).Msg("visit transition")
	l.publish(events.VisitStatusChanged, entry)
}

func (l *Lifecycle) publish(eventType string, payload any) {
	if l.bus == nil {
		return
	}
	l.bus.Publish(events.Event{Type: eventType, Payload: payload})
}
