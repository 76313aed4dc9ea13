package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrNoResults means the geocoder knew nothing about the address.
var ErrNoResults = errors.New("geocoder returned no results")

// Place is one ranked candidate from the forward geocoder.
type Place struct {
	Coords      Coordinates
	DisplayName string
}

// Geocoder maps free-text addresses to coordinates via a Nominatim-style
// HTTP service. Requests are rate limited per the public service's usage
// policy (one request per second by default).
type Geocoder struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGeocoder constructs a geocoder client.
func NewGeocoder(baseURL, userAgent string) *Geocoder {
	return &Geocoder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

type geocodeResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode returns the first candidate for address, or ErrNoResults.
func (g *Geocoder) Geocode(ctx context.Context, address string) (*Place, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/search?format=json&limit=1&q=%s", g.baseURL, url.QueryEscape(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, err
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode: http %d", resp.StatusCode)
	}

	var results []geocodeResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("geocode: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode: bad latitude %q", results[0].Lat)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode: bad longitude %q", results[0].Lon)
	}

	return &Place{
		Coords:      Coordinates{Lat: lat, Lng: lng},
		DisplayName: results[0].DisplayName,
	}, nil
}

// Confidence scores how well the geocoder's display name matches the
// requested address: the fraction of requested comma-separated segments
// that appear as a substring of some returned segment. The score is a
// heuristic only; low confidence warns but never blocks.
func Confidence(requested, returned string) float64 {
	wanted := splitSegments(requested)
	if len(wanted) == 0 {
		return 0
	}
	got := splitSegments(returned)

	matched := 0
	for _, w := range wanted {
		for _, g := range got {
			if strings.Contains(g, w) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(wanted))
}

func splitSegments(s string) []string {
	parts := strings.Split(strings.ToLower(s), ",")
	segments := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	return segments
}
