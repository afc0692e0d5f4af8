package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/spin-reward-engine/internal/model"
	"github.com/fairyhunter13/spin-reward-engine/internal/service"
	"github.com/fairyhunter13/spin-reward-engine/internal/validator"
)

var testSecret = []byte("test-secret")

// mockSpinService is a mock implementation of SpinServiceInterface.
type mockSpinService struct {
	spinFn   func(ctx context.Context, subject model.Subject, client model.ClientInfo) (*model.SpinResponse, error)
	statusFn func(ctx context.Context, subject model.Subject) (*model.StatusResponse, error)
}

func (m *mockSpinService) Spin(ctx context.Context, subject model.Subject, client model.ClientInfo) (*model.SpinResponse, error) {
	if m.spinFn != nil {
		return m.spinFn(ctx, subject, client)
	}
	return &model.SpinResponse{}, nil
}

func (m *mockSpinService) Status(ctx context.Context, subject model.Subject) (*model.StatusResponse, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx, subject)
	}
	return &model.StatusResponse{Prizes: []model.PrizeSummary{}}, nil
}

// mockRedemptionService is a mock implementation of RedemptionServiceInterface.
type mockRedemptionService struct {
	applyFn     func(ctx context.Context, subject model.Subject, code string) (*model.Cart, error)
	removeFn    func(ctx context.Context, subject model.Subject) (*model.Cart, error)
	getCouponFn func(ctx context.Context, code string) (*model.CouponView, error)
}

func (m *mockRedemptionService) ApplyToCart(ctx context.Context, subject model.Subject, code string) (*model.Cart, error) {
	if m.applyFn != nil {
		return m.applyFn(ctx, subject, code)
	}
	return &model.Cart{}, nil
}

func (m *mockRedemptionService) RemoveFromCart(ctx context.Context, subject model.Subject) (*model.Cart, error) {
	if m.removeFn != nil {
		return m.removeFn(ctx, subject)
	}
	return &model.Cart{}, nil
}

func (m *mockRedemptionService) GetCoupon(ctx context.Context, code string) (*model.CouponView, error) {
	if m.getCouponFn != nil {
		return m.getCouponFn(ctx, code)
	}
	return nil, service.ErrCouponNotFound
}

// mockConfigService is a mock implementation of ConfigServiceInterface.
type mockConfigService struct {
	currentFn func(ctx context.Context) (*model.RewardConfig, error)
	updateFn  func(ctx context.Context, cfg *model.RewardConfig) (*model.RewardConfig, error)
}

func (m *mockConfigService) Current(ctx context.Context) (*model.RewardConfig, error) {
	if m.currentFn != nil {
		return m.currentFn(ctx)
	}
	return nil, service.ErrNoActiveConfig
}

func (m *mockConfigService) Update(ctx context.Context, cfg *model.RewardConfig) (*model.RewardConfig, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, cfg)
	}
	return cfg, nil
}

// mockAdminService is a mock implementation of AdminServiceInterface.
type mockAdminService struct {
	historyFn   func(ctx context.Context, q model.HistoryQuery) (*model.HistoryPage, error)
	revokeFn    func(ctx context.Context, spinID uuid.UUID, reason string) (*service.RevokeResult, error)
	reviewFn    func(ctx context.Context, spinID uuid.UUID, reviewer string) (*model.SpinRecord, error)
	analyticsFn func(ctx context.Context) (*model.SpinAnalytics, error)
}

func (m *mockAdminService) History(ctx context.Context, q model.HistoryQuery) (*model.HistoryPage, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, q)
	}
	return &model.HistoryPage{Items: []model.SpinRecord{}}, nil
}

func (m *mockAdminService) Revoke(ctx context.Context, spinID uuid.UUID, reason string) (*service.RevokeResult, error) {
	if m.revokeFn != nil {
		return m.revokeFn(ctx, spinID, reason)
	}
	return &service.RevokeResult{SpinID: spinID, Reason: reason}, nil
}

func (m *mockAdminService) Review(ctx context.Context, spinID uuid.UUID, reviewer string) (*model.SpinRecord, error) {
	if m.reviewFn != nil {
		return m.reviewFn(ctx, spinID, reviewer)
	}
	return &model.SpinRecord{ID: spinID}, nil
}

func (m *mockAdminService) Analytics(ctx context.Context) (*model.SpinAnalytics, error) {
	if m.analyticsFn != nil {
		return m.analyticsFn(ctx)
	}
	return &model.SpinAnalytics{PrizeDistribution: map[model.PrizeType]int{}}, nil
}

// mockReconciler is a mock implementation of ReconcilerInterface.
type mockReconciler struct {
	consumeFn func(ctx context.Context, orderID string, couponID uuid.UUID, subject model.Subject) (*service.ConsumeResult, error)
}

func (m *mockReconciler) Consume(ctx context.Context, orderID string, couponID uuid.UUID, subject model.Subject) (*service.ConsumeResult, error) {
	if m.consumeFn != nil {
		return m.consumeFn(ctx, orderID, couponID, subject)
	}
	return &service.ConsumeResult{}, nil
}

type testServices struct {
	spin       *mockSpinService
	redemption *mockRedemptionService
	configs    *mockConfigService
	admin      *mockAdminService
	reconciler *mockReconciler
}

func newTestServices() *testServices {
	return &testServices{
		spin:       &mockSpinService{},
		redemption: &mockRedemptionService{},
		configs:    &mockConfigService{},
		admin:      &mockAdminService{},
		reconciler: &mockReconciler{},
	}
}

func setupTestApp(s *testServices) *fiber.App {
	app := fiber.New()
	validate := validator.New()
	Register(app, Routes{
		Health:   NewHealthHandler(&mockPool{}, nil),
		Reward:   NewRewardHandler(s.spin),
		Cart:     NewCartHandler(s.redemption, validate),
		Admin:    NewAdminHandler(s.configs, s.admin, validate),
		Orders:   NewOrderHandler(s.reconciler, validate),
		Auth:     RequireSubject(testSecret, ""),
		Internal: RequireInternalKey("internal-key"),
	})
	return app
}

func signToken(t *testing.T, claims Claims) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return tok
}

func userToken(t *testing.T) string {
	return signToken(t, Claims{Tier: "gold", SessionID: "s-1", RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}})
}

func guestToken(t *testing.T) string {
	return signToken(t, Claims{GuestID: "g1", SessionID: "s-2"})
}

// doRequest sends a request and decodes a JSON object response.
func doRequest(t *testing.T, app *fiber.App, method, path, body, token string, headers ...string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	}
	return resp.StatusCode, out
}
