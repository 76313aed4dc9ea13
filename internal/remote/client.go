// Package remote implements the HTTP clients for the backend agenda, link
// and route stores. The wire format is owned by the backend; this package
// only classifies failures and shapes requests.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"softone/internal/models"
)

// Client talks to the backend REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewClient constructs a client with baseURL and bearer token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UseRedisCache configures optional Redis caching for link listings.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// --- agenda store ---

type createAgendaResponse struct {
	ID int64 `json:"id"`
}

// CreateAgenda submits a new agenda entry and returns the server-assigned id.
func (c *Client) CreateAgenda(ctx context.Context, entry models.AgendaEntry) (int64, error) {
	endpoint := fmt.Sprintf("%s/api/v1/agendas", c.baseURL)
	var resp createAgendaResponse
	if err := c.doPost(ctx, "create agenda", endpoint, entry, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// GetAgenda fetches an agenda entry by id.
func (c *Client) GetAgenda(ctx context.Context, id int64) (*models.AgendaEntry, error) {
	endpoint := fmt.Sprintf("%s/api/v1/agendas/%d", c.baseURL, id)
	var entry models.AgendaEntry
	if err := c.doGet(ctx, "get agenda", endpoint, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpdateAgenda rewrites the full agenda record. The backend has no partial
// update: callers resend every known field or risk clobbering with defaults.
func (c *Client) UpdateAgenda(ctx context.Context, id int64, entry models.AgendaEntry) error {
	endpoint := fmt.Sprintf("%s/api/v1/agendas/%d", c.baseURL, id)
	return c.doJSON(ctx, "update agenda", http.MethodPut, endpoint, entry, nil)
}

// DeleteAgenda removes an agenda entry by id.
func (c *Client) DeleteAgenda(ctx context.Context, id int64) error {
	endpoint := fmt.Sprintf("%s/api/v1/agendas/%d", c.baseURL, id)
	return c.doJSON(ctx, "delete agenda", http.MethodDelete, endpoint, nil, nil)
}

// --- link store ---

// ListLinks returns all professional-location links for a professional.
func (c *Client) ListLinks(ctx context.Context, professionalID int64) ([]models.Link, error) {
	endpoint := fmt.Sprintf("%s/api/v1/prescritores/%d/vinculos", c.baseURL, professionalID)
	cacheKey := fmt.Sprintf("links:%d", professionalID)

	var wrap struct {
		Links []models.Link `json:"vinculos"`
	}
	if c.readCache(ctx, cacheKey, &wrap) {
		return wrap.Links, nil
	}

	if err := c.doGet(ctx, "list links", endpoint, &wrap); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, wrap)
	return wrap.Links, nil
}

// CreateLink registers a professional-location link. The store tolerates
// duplicates, so no conditional write is attempted.
func (c *Client) CreateLink(ctx context.Context, link models.Link) (*models.Link, error) {
	endpoint := fmt.Sprintf("%s/api/v1/vinculos", c.baseURL)
	var created models.Link
	if err := c.doPost(ctx, "create link", endpoint, link, &created); err != nil {
		return nil, err
	}
	c.dropCache(ctx, fmt.Sprintf("links:%d", link.ProfessionalID))
	return &created, nil
}

// --- route store ---

// CreateRoute registers a travel leg for an agenda entry.
func (c *Client) CreateRoute(ctx context.Context, route models.RouteRecord) (*models.RouteRecord, error) {
	endpoint := fmt.Sprintf("%s/api/v1/rotas", c.baseURL)
	var created models.RouteRecord
	if err := c.doPost(ctx, "create route", endpoint, route, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListRoutesByAgenda returns the routes registered for an agenda entry.
func (c *Client) ListRoutesByAgenda(ctx context.Context, agendaID int64) ([]models.RouteRecord, error) {
	endpoint := fmt.Sprintf("%s/api/v1/rotas?idAgenda=%d", c.baseURL, agendaID)
	var wrap struct {
		Routes []models.RouteRecord `json:"rotas"`
	}
	if err := c.doGet(ctx, "list routes", endpoint, &wrap); err != nil {
		return nil, err
	}
	return wrap.Routes, nil
}

// --- redis read-through cache ---

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) dropCache(ctx context.Context, key string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, key).Err()
}

// --- transport helpers ---

func (c *Client) doGet(ctx context.Context, op, endpoint string, out any) error {
	return c.doJSON(ctx, op, http.MethodGet, endpoint, nil, out)
}

func (c *Client) doPost(ctx context.Context, op, endpoint string, body, out any) error {
	return c.doJSON(ctx, op, http.MethodPost, endpoint, body, out)
}

func (c *Client) doJSON(ctx context.Context, op, method, endpoint string, body, out any) error {
	var reader *strings.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &StoreError{Op: op, Kind: KindInvalidData, Err: err}
		}
		reader = strings.NewReader(string(data))
	} else {
		reader = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &StoreError{Op: op, Kind: KindNetwork, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.addHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &StoreError{Op: op, Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &StoreError{Op: op, Kind: classify(resp.StatusCode), Status: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &StoreError{Op: op, Kind: KindServer, Status: resp.StatusCode, Err: err}
	}
	return nil
}

func (c *Client) addHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// BaseURL reports the configured backend address, for health logging.
func (c *Client) BaseURL() string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL
	}
	return u.Host
}
