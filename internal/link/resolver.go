// Package link resolves the professional-location association an agenda
// entry references. The link is an auxiliary convenience record: its absence
// never blocks scheduling, and the remote store tolerates duplicates, so
// Ensure is an advisory check-then-create rather than a transaction.
package link

import (
	"context"

	"github.com/rs/zerolog"

	"softone/internal/models"
)

// Store is the remote link collaborator.
type Store interface {
	ListLinks(ctx context.Context, professionalID int64) ([]models.Link, error)
	CreateLink(ctx context.Context, link models.Link) (*models.Link, error)
}

// Resolver checks and creates professional-location links.
type Resolver struct {
	store  Store
	logger *zerolog.Logger
}

// New constructs a resolver.
func New(store Store, logger *zerolog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Exists reports whether any link covers the pair.
func (r *Resolver) Exists(ctx context.Context, professionalID, locationID int64) (bool, error) {
	links, err := r.store.ListLinks(ctx, professionalID)
	if err != nil {
		return false, err
	}
	for i := range links {
		if links[i].Matches(professionalID, locationID) {
			return true, nil
		}
	}
	return false, nil
}

// Ensure makes a best effort to have a link for the pair, creating one when
// none was observed. The returned bool means created-or-existing; false
// means the caller should surface a warning but proceed with the agenda
// write regardless.
func (r *Resolver) Ensure(ctx context.Context, professionalID, locationID int64, userID string) bool {
	exists, err := r.Exists(ctx, professionalID, locationID)
	if err != nil {
		r.logger.Warn().Err(err).
			Int64("professional", professionalID).
			Int64("location", locationID).
			Msg("could not list links, attempting create anyway")
	}
	if exists {
		return true
	}

	_, err = r.store.CreateLink(ctx, models.Link{
		ProfessionalID: professionalID,
		LocationID:     locationID,
		UserID:         userID,
	})
	if err != nil {
		r.logger.Warn().Err(err).
			Int64("professional", professionalID).
			Int64("location", locationID).
			Msg("link creation failed, scheduling proceeds without it")
		return false
	}
	return true
}
