// Package syncengine performs durable agenda writes: remote first, local
// cache on failure, with reconciliation sweeps that re-attempt every
// unsynced record. Sweeps run only on user-visible navigation events (the
// scheduling screen opening, an explicit "sync all"), never on a timer.
package syncengine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"softone/internal/events"
	"softone/internal/metrics"
	"softone/internal/models"
	"softone/internal/remote"
)

// AgendaStore is the remote agenda collaborator.
type AgendaStore interface {
	CreateAgenda(ctx context.Context, entry models.AgendaEntry) (int64, error)
	GetAgenda(ctx context.Context, id int64) (*models.AgendaEntry, error)
}

// CacheStore is the durable local store of pending and synced records.
type CacheStore interface {
	Load(ctx context.Context) ([]models.CachedAgendaRecord, error)
	Save(ctx context.Context, records []models.CachedAgendaRecord) error
}

// CreateResult reports the outcome of a createWithFallback call.
type CreateResult struct {
	Success bool   `json:"success"`
	ID      int64  `json:"id,omitempty"`
	LocalID string `json:"idLocal,omitempty"`
	Message string `json:"message"`
}

// ReconcileResult counts the outcome of one reconciliation sweep.
type ReconcileResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// Engine orchestrates agenda creation against the remote store with the
// local cache as fallback.
type Engine struct {
	cache  CacheStore
	remote AgendaStore
	bus    *events.Bus
	logger *zerolog.Logger
	now    func() time.Time
}

// New constructs an engine. bus may be nil when no subscribers exist.
func New(cache CacheStore, remoteStore AgendaStore, bus *events.Bus, logger *zerolog.Logger) *Engine {
	return &Engine{
		cache:  cache,
		remote: remoteStore,
		bus:    bus,
		logger: logger,
		now:    time.Now,
	}
}

// CreateWithFallback attempts the remote create and falls back to the local
// cache on any failure. Either way the entry ends up in the cache: synced
// records stay behind as an audit copy, failed ones carry the failure
// reason and a local placeholder id until a sweep picks them up.
func (e *Engine) CreateWithFallback(ctx context.Context, entry models.AgendaEntry) (CreateResult, error) {
	if err := entry.Validate(); err != nil {
		return CreateResult{}, err
	}

	record := models.CachedAgendaRecord{Entry: entry, CreatedAt: e.now()}

	id, err := e.remote.CreateAgenda(ctx, entry)
	if err == nil {
		record.Entry.ID = id
		record.SavedToAPI = true
		if appendErr := e.appendRecord(ctx, record); appendErr != nil {
			// The remote write already succeeded; losing the audit copy is
			// not worth failing the whole operation over.
			e.logger.Warn().Err(appendErr).Int64("id", id).Msg("could not append synced record to cache")
		}
		e.publish(events.VisitCreated, record.Entry.Key())
		metrics.IncVisitCreated("remote")
		e.logger.Info().Int64("id", id).Int64("professional", entry.ProfessionalID).Msg("visit created remotely")
		return CreateResult{Success: true, ID: id, Message: "visit scheduled"}, nil
	}

	record.Entry.LocalID = fmt.Sprintf("local_%d", e.now().UnixMilli())
	record.SavedToAPI = false
	record.SyncError = remote.FailureMessage(err)
	if appendErr := e.appendRecord(ctx, record); appendErr != nil {
		return CreateResult{}, fmt.Errorf("remote create failed and local cache write failed: %w", appendErr)
	}

	e.publish(events.VisitCreated, record.Entry.LocalID)
	metrics.IncVisitCreated("local")
	e.logger.Warn().Err(err).Str("localId", record.Entry.LocalID).Msg("remote create failed, visit kept locally")
	return CreateResult{
		Success: false,
		LocalID: record.Entry.LocalID,
		Message: record.SyncError,
	}, nil
}

// Reconcile re-attempts the remote create for every unsynced record. The
// cache is saved back once, after the sweep: a crash mid-sweep re-processes
// already-reconciled entries on the next run (the remote store tolerates
// duplicate creates) but never loses a record.
func (e *Engine) Reconcile(ctx context.Context) (ReconcileResult, error) {
	records, err := e.cache.Load(ctx)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("reconcile: %w", err)
	}

	var result ReconcileResult
	for i := range records {
		if records[i].SavedToAPI {
			continue
		}

		id, err := e.remote.CreateAgenda(ctx, records[i].Entry)
		if err != nil {
			records[i].SyncError = remote.FailureMessage(err)
			result.Failed++
			e.logger.Warn().Err(err).Str("localId", records[i].Entry.LocalID).Msg("reconcile attempt failed")
			continue
		}

		records[i].Entry.ID = id
		records[i].SavedToAPI = true
		records[i].SyncError = ""
		result.Success++
		e.publish(events.VisitSynced, id)
		e.logger.Info().Int64("id", id).Str("localId", records[i].Entry.LocalID).Msg("pending visit synced")
	}

	if err := e.cache.Save(ctx, records); err != nil {
		return result, fmt.Errorf("reconcile: save cache: %w", err)
	}

	metrics.AddReconcile("success", result.Success)
	metrics.AddReconcile("failed", result.Failed)
	if result.Success > 0 || result.Failed > 0 {
		e.logger.Info().Int("success", result.Success).Int("failed", result.Failed).Msg("reconciliation sweep finished")
	}
	return result, nil
}

// Verify is a best-effort check that a server-reported id is actually
// fetchable. Used only to warn; a failed verify never reverts a success.
func (e *Engine) Verify(ctx context.Context, id int64) bool {
	if _, err := e.remote.GetAgenda(ctx, id); err != nil {
		e.logger.Warn().Err(err).Int64("id", id).Msg("created visit could not be verified")
		return false
	}
	return true
}

// Pending returns the cached records, for UI components listing them.
func (e *Engine) Pending(ctx context.Context) ([]models.CachedAgendaRecord, error) {
	return e.cache.Load(ctx)
}

// Remove drops one record from the local cache by its key (server id or
// local placeholder). This is the only way a record ever leaves the cache.
func (e *Engine) Remove(ctx context.Context, key string) (bool, error) {
	records, err := e.cache.Load(ctx)
	if err != nil {
		return false, err
	}

	kept := records[:0]
	removed := false
	for _, rec := range records {
		if !removed && rec.Entry.Key() == key {
			removed = true
			continue
		}
		kept = append(kept, rec)
	}
	if !removed {
		return false, nil
	}
	return true, e.cache.Save(ctx, kept)
}

func (e *Engine) appendRecord(ctx context.Context, record models.CachedAgendaRecord) error {
	records, err := e.cache.Load(ctx)
	if err != nil {
		return err
	}
	return e.cache.Save(ctx, append(records, record))
}

func (e *Engine) publish(eventType string, payload any) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.Event{Type: eventType, Payload: payload})
}
