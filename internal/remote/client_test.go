package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"softone/internal/models"
)

func testEntry() models.AgendaEntry {
	loc := int64(20)
	return models.AgendaEntry{
		ProfessionalID: 10,
		LocationID:     &loc,
		Date:           "2025-03-01",
		Period:         models.PeriodMorning,
		Status:         models.StatusScheduled,
		Active:         true,
	}
}

func TestCreateAgenda(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/agendas", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))

		var entry models.AgendaEntry
		require.NoError(t, json.NewDecoder(r.Body).Decode(&entry))
		assert.Equal(t, int64(10), entry.ProfessionalID)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]int64{"id": 555})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "token-1", 5*time.Second)
	id, err := client.CreateAgenda(context.Background(), testEntry())
	require.NoError(t, err)
	assert.Equal(t, int64(555), id)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		kind      Kind
		transient bool
	}{
		{"bad request", http.StatusBadRequest, KindInvalidData, false},
		{"unprocessable", http.StatusUnprocessableEntity, KindInvalidData, false},
		{"unauthorized", http.StatusUnauthorized, KindSessionExpired, false},
		{"forbidden", http.StatusForbidden, KindSessionExpired, false},
		{"not found", http.StatusNotFound, KindNotFound, false},
		{"server error", http.StatusInternalServerError, KindServer, true},
		{"bad gateway", http.StatusBadGateway, KindServer, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := NewClient(srv.URL, "", 5*time.Second)
			_, err := client.CreateAgenda(context.Background(), testEntry())
			require.Error(t, err)

			var se *StoreError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.kind, se.Kind)
			assert.Equal(t, tt.status, se.Status)
			assert.Equal(t, tt.transient, se.Transient())
			assert.NotEmpty(t, se.UserMessage())
		})
	}
}

func TestNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewClient(srv.URL, "", time.Second)
	_, err := client.CreateAgenda(context.Background(), testEntry())
	require.Error(t, err)

	var se *StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindNetwork, se.Kind)
	assert.True(t, se.Transient())
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestGetAgendaNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", time.Second)
	_, err := client.GetAgenda(context.Background(), 999)
	assert.True(t, IsNotFound(err))
}

func TestUpdateAgendaSendsFullRecord(t *testing.T) {
	var got models.AgendaEntry
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/agendas/555", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	entry := testEntry()
	entry.ID = 555
	entry.Status = models.StatusConfirmed
	entry.Description = "follow-up on samples"

	client := NewClient(srv.URL, "", time.Second)
	require.NoError(t, client.UpdateAgenda(context.Background(), 555, entry))

	assert.Equal(t, models.StatusConfirmed, got.Status)
	assert.Equal(t, "follow-up on samples", got.Description)
	assert.Equal(t, int64(10), got.ProfessionalID)
	require.NotNil(t, got.LocationID)
	assert.Equal(t, int64(20), *got.LocationID)
}

func TestListLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/prescritores/7/vinculos", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string][]models.Link{
			"vinculos": {
				{ID: 1, ProfessionalID: 7, LocationID: 20, UserID: "u1"},
				{ID: 2, ProfessionalID: 7, LocationID: 21, UserID: "u2"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", time.Second)
	links, err := client.ListLinks(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.True(t, links[0].Matches(7, 20))
	assert.False(t, links[1].Matches(7, 20))
}

func TestCreateRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/rotas", r.URL.Path)
		var route models.RouteRecord
		require.NoError(t, json.NewDecoder(r.Body).Decode(&route))
		route.ID = 42
		_ = json.NewEncoder(w).Encode(route)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", time.Second)
	created, err := client.CreateRoute(context.Background(), models.RouteRecord{
		Origin:      "-23.5505,-46.6333",
		Destination: "Rua Teste, 123",
		DistanceKM:  12.7,
		AgendaID:    555,
		UserID:      "u1",
		Active:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), created.ID)
	assert.Equal(t, 12.7, created.DistanceKM)
}
