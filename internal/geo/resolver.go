package geo

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrManualEntry signals that no automatic estimate could be produced and
// the user must supply the kilometer value directly.
var ErrManualEntry = errors.New("manual distance entry required")

// MinConfidence is the match score below which an estimate carries a
// low-confidence warning. The estimate still stands.
const MinConfidence = 0.5

// Estimate is a resolved travel distance with its provenance.
type Estimate struct {
	KM            float64     `json:"km"`
	Origin        Coordinates `json:"origin"`
	OriginSource  string      `json:"originSource"`
	Destination   Coordinates `json:"destination"`
	DisplayName   string      `json:"displayName"`
	Confidence    float64     `json:"confidence"`
	LowConfidence bool        `json:"lowConfidence"`
}

// ForwardGeocoder is the destination lookup collaborator.
type ForwardGeocoder interface {
	Geocode(ctx context.Context, address string) (*Place, error)
}

// Resolver runs the full pipeline: origin chain, destination geocoding,
// confidence check, corrected geodesic distance.
type Resolver struct {
	origins    *OriginChain
	geocoder   ForwardGeocoder
	roadFactor float64
	logger     *zerolog.Logger
}

// NewResolver constructs a resolver. The chain should end in a StaticOrigin
// so an origin is always available.
func NewResolver(origins *OriginChain, geocoder ForwardGeocoder, roadFactor float64, logger *zerolog.Logger) *Resolver {
	if roadFactor <= 0 {
		roadFactor = DefaultRoadFactor
	}
	return &Resolver{origins: origins, geocoder: geocoder, roadFactor: roadFactor, logger: logger}
}

// Resolve produces a distance estimate for the destination address. device,
// when non-nil, is the position the caller's device reported and is tried
// before the shared fallbacks. Any failure that prevents producing a
// positive finite number wraps ErrManualEntry: the workflow degrades to
// manual kilometer entry, it never blocks.
func (r *Resolver) Resolve(ctx context.Context, destinationAddress string, device *Coordinates) (*Estimate, error) {
	chain := r.origins
	if device != nil {
		chain = chain.Prepend(DeviceOrigin{Coords: device})
	}

	origin, source, err := chain.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManualEntry, err)
	}

	place, err := r.geocoder.Geocode(ctx, destinationAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManualEntry, err)
	}

	confidence := Confidence(destinationAddress, place.DisplayName)
	if confidence < MinConfidence {
		r.logger.Warn().
			Str("requested", destinationAddress).
			Str("returned", place.DisplayName).
			Float64("confidence", confidence).
			Msg("geocoder match has low confidence")
	}

	km := RoadDistance(origin, place.Coords, r.roadFactor)
	if !(km > 0) {
		// Zero or NaN would poison downstream route records.
		return nil, fmt.Errorf("%w: degenerate distance %v", ErrManualEntry, km)
	}

	return &Estimate{
		KM:            km,
		Origin:        origin,
		OriginSource:  source,
		Destination:   place.Coords,
		DisplayName:   place.DisplayName,
		Confidence:    confidence,
		LowConfidence: confidence < MinConfidence,
	}, nil
}
