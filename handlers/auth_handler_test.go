package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fleetops/api-gateway/middleware"
	"github.com/fleetops/api-gateway/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockAuthEventRepository is a mock implementation of AuthEventRepository
type MockAuthEventRepository struct {
	mock.Mock
}

func (m *MockAuthEventRepository) Insert(ctx context.Context, event *models.AuthEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockAuthEventRepository) CountByOutcome(ctx context.Context, since time.Time) (map[models.AuthOutcome]int64, error) {
	args := m.Called(ctx, since)
	if counts := args.Get(0); counts != nil {
		return counts.(map[models.AuthOutcome]int64), args.Error(1)
	}
	return nil, args.Error(1)
}

func requestWithUser(path string, user *models.UserContext) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if user != nil {
		req = req.WithContext(middleware.WithUserContext(req.Context(), user))
	}
	return req
}

func TestHandleMe(t *testing.T) {
	handler := NewAuthHandler(nil, zap.NewNop())

	t.Run("returns the user context without email", func(t *testing.T) {
		user := &models.UserContext{UserID: "uid_1", OrganizationID: "org_9", Role: models.RoleAdmin}
		w := httptest.NewRecorder()
		handler.HandleMe(w, requestWithUser("/auth/me", user))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"userId":"uid_1","organizationId":"org_9","role":"ADMIN"}`, w.Body.String())
	})

	t.Run("includes email when present", func(t *testing.T) {
		user := &models.UserContext{UserID: "uid_2", Email: "a@fleetops.io", OrganizationID: "org_1", Role: models.RoleUser}
		w := httptest.NewRecorder()
		handler.HandleMe(w, requestWithUser("/auth/me", user))

		assert.JSONEq(t, `{"userId":"uid_2","email":"a@fleetops.io","organizationId":"org_1","role":"USER"}`, w.Body.String())
	})

	t.Run("unauthorized without context", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.HandleMe(w, requestWithUser("/auth/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestHandleSecure(t *testing.T) {
	handler := NewAuthHandler(nil, zap.NewNop())
	user := &models.UserContext{UserID: "uid_1", OrganizationID: "org_9", Role: models.RoleOwner}

	w := httptest.NewRecorder()
	handler.HandleSecure(w, requestWithUser("/secure", user))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":{"userId":"uid_1","organizationId":"org_9","role":"OWNER"}}`, w.Body.String())

	w = httptest.NewRecorder()
	handler.HandleSecure(w, requestWithUser("/secure", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleEventSummary(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	admin := &models.UserContext{UserID: "uid_1", OrganizationID: "org_9", Role: models.RoleAdmin}

	t.Run("default window", func(t *testing.T) {
		repo := new(MockAuthEventRepository)
		repo.On("CountByOutcome", mock.Anything, now.Add(-24*time.Hour)).
			Return(map[models.AuthOutcome]int64{models.AuthOutcomeSuccess: 10, models.AuthOutcomeEnrichmentFailed: 2}, nil)

		handler := NewAuthHandler(repo, zap.NewNop())
		handler.now = func() time.Time { return now }

		w := httptest.NewRecorder()
		handler.HandleEventSummary(w, requestWithUser("/auth/events/summary", admin))

		require.Equal(t, http.StatusOK, w.Code)
		var response EventSummaryResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, int64(10), response.Counts[models.AuthOutcomeSuccess])
		assert.Equal(t, int64(2), response.Counts[models.AuthOutcomeEnrichmentFailed])
		assert.True(t, response.Since.Equal(now.Add(-24*time.Hour)))
		repo.AssertExpectations(t)
	})

	t.Run("custom window", func(t *testing.T) {
		repo := new(MockAuthEventRepository)
		repo.On("CountByOutcome", mock.Anything, now.Add(-time.Hour)).
			Return(map[models.AuthOutcome]int64{}, nil)

		handler := NewAuthHandler(repo, zap.NewNop())
		handler.now = func() time.Time { return now }

		w := httptest.NewRecorder()
		handler.HandleEventSummary(w, requestWithUser("/auth/events/summary?window=1h", admin))

		assert.Equal(t, http.StatusOK, w.Code)
		repo.AssertExpectations(t)
	})

	t.Run("invalid window", func(t *testing.T) {
		for _, window := range []string{"yesterday", "-1h", "0s", "1000h"} {
			repo := new(MockAuthEventRepository)
			handler := NewAuthHandler(repo, zap.NewNop())

			w := httptest.NewRecorder()
			handler.HandleEventSummary(w, requestWithUser("/auth/events/summary?window="+window, admin))

			assert.Equal(t, http.StatusBadRequest, w.Code, window)
			repo.AssertNotCalled(t, "CountByOutcome", mock.Anything, mock.Anything)
		}
	})

	t.Run("repository error", func(t *testing.T) {
		repo := new(MockAuthEventRepository)
		repo.On("CountByOutcome", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

		handler := NewAuthHandler(repo, zap.NewNop())

		w := httptest.NewRecorder()
		handler.HandleEventSummary(w, requestWithUser("/auth/events/summary", admin))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection reset")
	})

	t.Run("no audit trail configured", func(t *testing.T) {
		handler := NewAuthHandler(nil, zap.NewNop())

		w := httptest.NewRecorder()
		handler.HandleEventSummary(w, requestWithUser("/auth/events/summary", admin))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
