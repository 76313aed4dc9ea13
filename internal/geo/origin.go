package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"softone/internal/metrics"
)

// OriginProvider yields the traveler's current position.
type OriginProvider interface {
	Name() string
	Origin(ctx context.Context) (Coordinates, error)
}

// providerTimeout bounds each origin attempt; a device fix or IP lookup
// that takes longer than this loses to the next strategy.
const providerTimeout = 5 * time.Second

// DeviceOrigin wraps coordinates the caller's device reported with the
// request. The device owns the GPS; the service only validates presence.
type DeviceOrigin struct {
	Coords *Coordinates
}

func (DeviceOrigin) Name() string { return "device" }

func (d DeviceOrigin) Origin(context.Context) (Coordinates, error) {
	if d.Coords == nil {
		return Coordinates{}, fmt.Errorf("no device position reported")
	}
	return *d.Coords, nil
}

// IPOrigin looks up an approximate position for the caller's network
// address via a third-party HTTP service.
type IPOrigin struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (IPOrigin) Name() string { return "ip" }

func (p IPOrigin) Origin(ctx context.Context) (Coordinates, error) {
	client := p.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: providerTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL, http.NoBody)
	if err != nil {
		return Coordinates{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return Coordinates{}, fmt.Errorf("ip lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Coordinates{}, fmt.Errorf("ip lookup: http %d", resp.StatusCode)
	}

	var body struct {
		Status string  `json:"status"`
		Lat    float64 `json:"lat"`
		Lon    float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Coordinates{}, fmt.Errorf("ip lookup: %w", err)
	}
	if body.Status != "" && body.Status != "success" {
		return Coordinates{}, fmt.Errorf("ip lookup: status %q", body.Status)
	}
	if body.Lat == 0 && body.Lon == 0 {
		return Coordinates{}, fmt.Errorf("ip lookup: empty position")
	}
	return Coordinates{Lat: body.Lat, Lng: body.Lon}, nil
}

// StaticOrigin is the fixed fallback: a representative city centroid used
// when neither the device nor the network gives a position.
type StaticOrigin struct {
	Coords Coordinates
}

func (StaticOrigin) Name() string { return "default" }

func (s StaticOrigin) Origin(context.Context) (Coordinates, error) {
	return s.Coords, nil
}

// OriginChain tries providers in order and returns the first position
// obtained, together with the name of the strategy that produced it.
type OriginChain struct {
	providers []OriginProvider
	logger    *zerolog.Logger
}

// NewOriginChain builds a chain over the given providers.
func NewOriginChain(logger *zerolog.Logger, providers ...OriginProvider) *OriginChain {
	return &OriginChain{providers: providers, logger: logger}
}

// Prepend returns a new chain with provider tried first; used to put the
// per-request device position ahead of the shared fallbacks.
func (c *OriginChain) Prepend(provider OriginProvider) *OriginChain {
	providers := append([]OriginProvider{provider}, c.providers...)
	return &OriginChain{providers: providers, logger: c.logger}
}

// Resolve walks the chain. It fails only when every provider fails, which
// cannot happen while a StaticOrigin terminates the chain.
func (c *OriginChain) Resolve(ctx context.Context) (Coordinates, string, error) {
	var lastErr error
	for _, provider := range c.providers {
		attemptCtx, cancel := context.WithTimeout(ctx, providerTimeout)
		coords, err := provider.Origin(attemptCtx)
		cancel()
		if err != nil {
			lastErr = err
			c.logger.Debug().Err(err).Str("provider", provider.Name()).Msg("origin provider failed")
			continue
		}
		metrics.IncGeoOrigin(provider.Name())
		return coords, provider.Name(), nil
	}
	return Coordinates{}, "", fmt.Errorf("no origin available: %w", lastErr)
}
