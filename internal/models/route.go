package models

import (
	"fmt"
	"time"
)

// RouteRecord captures one travel leg registered when the user starts
// navigating to a visit. Exactly one record is created per navigation start
// that successfully resolved a distance; the remote route store owns it
// thereafter.
type RouteRecord struct {
	ID          int64     `json:"id,omitempty"`
	Origin      string    `json:"origem"`
	Destination string    `json:"destino"`
	DistanceKM  float64   `json:"distanciaKm"`
	CreatedAt   time.Time `json:"dataCriacao"`
	UserID      string    `json:"idUsuario"`
	AgendaID    int64     `json:"idAgenda"`
	Active      bool      `json:"ativo"`
}

// Validate rejects records the route store would refuse anyway.
func (r *RouteRecord) Validate() error {
	if r.DistanceKM <= 0 {
		return fmt.Errorf("route record: distance must be positive, got %v", r.DistanceKM)
	}
	if r.AgendaID == 0 {
		return fmt.Errorf("route record: agenda id is required")
	}
	return nil
}
