package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/spin-reward-engine/internal/model"
	"github.com/fairyhunter13/spin-reward-engine/internal/service"
)

const validConfigBody = `{
	"name": "spring wheel",
	"frequency": {"period": "daily", "limit": 1},
	"eligibility": {"minOrders": 0, "tiers": ["all"], "allowGuests": true},
	"prizes": [
		{"id": "blank", "type": "blank", "label": "Try again", "probability": 50},
		{"id": "pts", "type": "points", "label": "Points", "probability": 50, "pointsRange": {"min": 10, "max": 100}}
	]
}`

func TestGetConfig(t *testing.T) {
	status, body := doRequest(t, setupTestApp(newTestServices()), http.MethodGet, "/admin/reward/config", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "no reward config", body["error"])

	s := newTestServices()
	s.configs.currentFn = func(ctx context.Context) (*model.RewardConfig, error) {
		return &model.RewardConfig{
			Name:      "spring wheel",
			IsActive:  true,
			Frequency: model.Frequency{Period: model.PeriodDaily, Limit: 1},
			Prizes:    []model.Prize{model.NewBlankPrize("blank", "Try again", 100)},
		}, nil
	}

	status, body = doRequest(t, setupTestApp(s), http.MethodGet, "/admin/reward/config", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "spring wheel", body["name"])
	prizes, ok := body["prizes"].([]any)
	require.True(t, ok)
	require.Len(t, prizes, 1)
	assert.Equal(t, float64(100), prizes[0].(map[string]any)["probability"])
}

func TestPutConfig_Success(t *testing.T) {
	s := newTestServices()
	var got *model.RewardConfig
	s.configs.updateFn = func(ctx context.Context, cfg *model.RewardConfig) (*model.RewardConfig, error) {
		got = cfg
		cfg.ID = uuid.New()
		cfg.IsActive = true
		return cfg, nil
	}

	status, body := doRequest(t, setupTestApp(s), http.MethodPut, "/admin/reward/config", validConfigBody, "")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["isActive"])
	require.NotNil(t, got)
	require.Len(t, got.Prizes, 2)
	r, err := got.Prizes[1].PointsRange()
	require.NoError(t, err)
	assert.Equal(t, model.Range{Min: 10, Max: 100}, r)
}

func TestPutConfig_Rejected(t *testing.T) {
	s := newTestServices()
	s.configs.updateFn = func(ctx context.Context, cfg *model.RewardConfig) (*model.RewardConfig, error) {
		return nil, &service.ConfigurationError{Err: fmt.Errorf("%w: prize probabilities sum to 90.00, want 100", model.ErrInvalidRewardConfig)}
	}

	status, body := doRequest(t, setupTestApp(s), http.MethodPut, "/admin/reward/config", validConfigBody, "")

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid reward config", body["error"])
	assert.Contains(t, body["reason"], "sum to 90.00")
}

func TestPutConfig_ConcurrentActivation(t *testing.T) {
	s := newTestServices()
	s.configs.updateFn = func(ctx context.Context, cfg *model.RewardConfig) (*model.RewardConfig, error) {
		return nil, service.ErrConfigConflict
	}

	status, body := doRequest(t, setupTestApp(s), http.MethodPut, "/admin/reward/config", validConfigBody, "")

	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "reward config changed concurrently", body["error"])
}

func TestPutConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"missing name", `{"prizes":[{"id":"b","type":"blank","label":"x","probability":100}]}`, "invalid request: name is required"},
		{"blank name", `{"name":"  ","prizes":[{"id":"b","type":"blank","label":"x","probability":100}]}`, "invalid request: name cannot be whitespace only"},
		{"no prizes", `{"name":"wheel"}`, "invalid request: prizes is required"},
		{"malformed json", `{"name":`, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServices()
			s.configs.updateFn = func(ctx context.Context, cfg *model.RewardConfig) (*model.RewardConfig, error) {
				t.Error("service must not be reached")
				return nil, nil
			}

			status, body := doRequest(t, setupTestApp(s), http.MethodPut, "/admin/reward/config", tt.body, "")

			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tt.msg, body["error"])
		})
	}
}

func TestHistory_QueryParsing(t *testing.T) {
	s := newTestServices()
	var got model.HistoryQuery
	s.admin.historyFn = func(ctx context.Context, q model.HistoryQuery) (*model.HistoryPage, error) {
		got = q
		return &model.HistoryPage{
			Items: []model.SpinRecord{{ID: uuid.New(), SubjectKey: "user:u1", Prize: model.PrizeSnapshot{Type: model.PrizeBlank}}},
			Total: 1,
			Page:  2,
			Limit: 10,
		}, nil
	}

	status, body := doRequest(t, setupTestApp(s), http.MethodGet, "/admin/reward/history?isFlagged=true&userId=u1&page=2&limit=10", "", "")

	assert.Equal(t, http.StatusOK, status)
	require.NotNil(t, got.IsFlagged)
	assert.True(t, *got.IsFlagged)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, 10, got.Limit)
	assert.Equal(t, float64(1), body["total"])
}

func TestHistory_Defaults(t *testing.T) {
	s := newTestServices()
	var got model.HistoryQuery
	s.admin.historyFn = func(ctx context.Context, q model.HistoryQuery) (*model.HistoryPage, error) {
		got = q
		return &model.HistoryPage{Items: []model.SpinRecord{}}, nil
	}

	status, _ := doRequest(t, setupTestApp(s), http.MethodGet, "/admin/reward/history", "", "")

	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, got.IsFlagged)
	assert.Empty(t, got.UserID)
}

func TestHistory_InvalidQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		msg   string
	}{
		{"limit too large", "limit=500", "invalid request: limit must be at most 100"},
		{"negative page", "page=-1", "invalid request: page must be at least 0"},
		{"non numeric limit", "limit=lots", "invalid query parameters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doRequest(t, setupTestApp(newTestServices()), http.MethodGet, "/admin/reward/history?"+tt.query, "", "")

			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tt.msg, body["error"])
		})
	}
}

func TestHistory_StoreError(t *testing.T) {
	s := newTestServices()
	s.admin.historyFn = func(ctx context.Context, q model.HistoryQuery) (*model.HistoryPage, error) {
		return nil, &service.PersistenceError{Op: "list spin history", Err: errors.New("boom")}
	}

	status, body := doRequest(t, setupTestApp(s), http.MethodGet, "/admin/reward/history", "", "")

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", body["error"])
}

func TestRevokeCoupon(t *testing.T) {
	spinID := uuid.New()
	path := "/admin/reward/coupon/" + spinID.String() + "/revoke"

	t.Run("success", func(t *testing.T) {
		s := newTestServices()
		s.admin.revokeFn = func(ctx context.Context, id uuid.UUID, reason string) (*service.RevokeResult, error) {
			assert.Equal(t, spinID, id)
			assert.Equal(t, "fraud ring", reason)
			return &service.RevokeResult{SpinID: id, CouponCode: "SPIN-ABCD2345", Reason: reason, RevokedAt: time.Now()}, nil
		}

		status, body := doRequest(t, setupTestApp(s), http.MethodPost, path, `{"reason":"fraud ring"}`, "")

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "SPIN-ABCD2345", body["couponCode"])
		assert.Equal(t, spinID.String(), body["spinId"])
	})

	t.Run("bad spin id", func(t *testing.T) {
		status, body := doRequest(t, setupTestApp(newTestServices()), http.MethodPost, "/admin/reward/coupon/not-a-uuid/revoke", `{"reason":"x"}`, "")

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid request: spinId must be a UUID", body["error"])
	})

	t.Run("blank reason", func(t *testing.T) {
		status, body := doRequest(t, setupTestApp(newTestServices()), http.MethodPost, path, `{"reason":"   "}`, "")

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid request: reason cannot be whitespace only", body["error"])
	})

	errTests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"already revoked", service.ErrCouponAlreadyRevoked, http.StatusConflict, "coupon already revoked"},
		{"no coupon", service.ErrSpinWithoutCoupon, http.StatusConflict, "spin did not issue a coupon"},
		{"unknown spin", service.ErrSpinNotFound, http.StatusNotFound, "spin not found"},
	}
	for _, tt := range errTests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServices()
			s.admin.revokeFn = func(ctx context.Context, id uuid.UUID, reason string) (*service.RevokeResult, error) {
				return nil, tt.err
			}

			status, body := doRequest(t, setupTestApp(s), http.MethodPost, path, `{"reason":"abuse"}`, "")

			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.msg, body["error"])
		})
	}
}

func TestReviewSpin(t *testing.T) {
	spinID := uuid.New()
	path := "/admin/reward/history/" + spinID.String() + "/review"

	s := newTestServices()
	var gotReviewer string
	s.admin.reviewFn = func(ctx context.Context, id uuid.UUID, reviewer string) (*model.SpinRecord, error) {
		gotReviewer = reviewer
		return &model.SpinRecord{ID: id, Flag: model.FraudFlag{IsFlagged: true, ReviewedBy: reviewer}}, nil
	}
	app := setupTestApp(s)

	status, body := doRequest(t, app, http.MethodPost, path, `{"reviewedBy":"ops@example.com"}`, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ops@example.com", gotReviewer)
	assert.Equal(t, spinID.String(), body["id"])

	status, body = doRequest(t, app, http.MethodPost, path, `{}`, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid request: reviewedBy is required", body["error"])

	s.admin.reviewFn = func(ctx context.Context, id uuid.UUID, reviewer string) (*model.SpinRecord, error) {
		return nil, service.ErrSpinNotFound
	}
	status, body = doRequest(t, app, http.MethodPost, path, `{"reviewedBy":"ops"}`, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "spin not found", body["error"])
}

func TestAnalytics(t *testing.T) {
	s := newTestServices()
	s.admin.analyticsFn = func(ctx context.Context) (*model.SpinAnalytics, error) {
		return &model.SpinAnalytics{
			TotalSpins:        40,
			GuestSpins:        4,
			PrizeDistribution: map[model.PrizeType]int{model.PrizeBlank: 30, model.PrizeCoupon: 10},
		}, nil
	}

	status, body := doRequest(t, setupTestApp(s), http.MethodGet, "/admin/reward/analytics", "", "")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(40), body["totalSpins"])
	dist, ok := body["prizeDistribution"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(10), dist["coupon"])
}
