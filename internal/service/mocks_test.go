package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fairyhunter13/spin-reward-engine/internal/model"
	"github.com/fairyhunter13/spin-reward-engine/pkg/database"
)

// mockTx is a mock implementation of pgx.Tx for testing transactions.
type mockTx struct {
	commitFn   func(ctx context.Context) error
	rollbackFn func(ctx context.Context) error

	mu         sync.Mutex
	committed  bool
	rolledBack bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("nested transactions not supported")
}

func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitFn != nil {
		if err := m.commitFn(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.committed = true
	m.mu.Unlock()
	return nil
}

func (m *mockTx) Rollback(ctx context.Context) error {
	m.mu.Lock()
	if !m.committed {
		m.rolledBack = true
	}
	m.mu.Unlock()
	if m.rollbackFn != nil {
		return m.rollbackFn(ctx)
	}
	return nil
}

func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (m *mockTx) LargeObjects() pgx.LargeObjects {
	return pgx.LargeObjects{}
}

func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (m *mockTx) Conn() *pgx.Conn {
	return nil
}

// mockTxBeginner is a mock implementation of TxBeginner.
type mockTxBeginner struct {
	beginFn func(ctx context.Context) (pgx.Tx, error)
	begins  int
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	m.begins++
	if m.beginFn != nil {
		return m.beginFn(ctx)
	}
	return &mockTx{}, nil
}

// mockConfigRepository is a mock implementation of ConfigRepositoryInterface.
type mockConfigRepository struct {
	getActiveFn     func(ctx context.Context) (*model.RewardConfig, error)
	getLatestFn     func(ctx context.Context) (*model.RewardConfig, error)
	replaceActiveFn func(ctx context.Context, tx database.TxQuerier, cfg *model.RewardConfig) error
}

func (m *mockConfigRepository) GetActive(ctx context.Context) (*model.RewardConfig, error) {
	if m.getActiveFn != nil {
		return m.getActiveFn(ctx)
	}
	return nil, nil
}

func (m *mockConfigRepository) GetLatest(ctx context.Context) (*model.RewardConfig, error) {
	if m.getLatestFn != nil {
		return m.getLatestFn(ctx)
	}
	return nil, nil
}

func (m *mockConfigRepository) ReplaceActive(ctx context.Context, tx database.TxQuerier, cfg *model.RewardConfig) error {
	if m.replaceActiveFn != nil {
		return m.replaceActiveFn(ctx, tx, cfg)
	}
	return nil
}

// mockSpinRepository is a mock implementation of SpinRepositoryInterface.
type mockSpinRepository struct {
	countInWindowFn     func(ctx context.Context, q database.TxQuerier, subjectKey, windowKey string) (int, error)
	insertFn            func(ctx context.Context, tx database.TxQuerier, rec *model.SpinRecord) error
	getByIDFn           func(ctx context.Context, id uuid.UUID) (*model.SpinRecord, error)
	listFn              func(ctx context.Context, q model.HistoryQuery) ([]model.SpinRecord, int, error)
	markReviewedFn      func(ctx context.Context, id uuid.UUID, reviewer string, at time.Time) error
	totalsFn            func(ctx context.Context) (int, int, int, error)
	prizeDistributionFn func(ctx context.Context) (map[model.PrizeType]int, error)
}

func (m *mockSpinRepository) CountInWindow(ctx context.Context, q database.TxQuerier, subjectKey, windowKey string) (int, error) {
	if m.countInWindowFn != nil {
		return m.countInWindowFn(ctx, q, subjectKey, windowKey)
	}
	return 0, nil
}

func (m *mockSpinRepository) Insert(ctx context.Context, tx database.TxQuerier, rec *model.SpinRecord) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, tx, rec)
	}
	return nil
}

func (m *mockSpinRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.SpinRecord, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSpinRepository) List(ctx context.Context, q model.HistoryQuery) ([]model.SpinRecord, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, q)
	}
	return []model.SpinRecord{}, 0, nil
}

func (m *mockSpinRepository) MarkReviewed(ctx context.Context, id uuid.UUID, reviewer string, at time.Time) error {
	if m.markReviewedFn != nil {
		return m.markReviewedFn(ctx, id, reviewer, at)
	}
	return nil
}

func (m *mockSpinRepository) Totals(ctx context.Context) (int, int, int, error) {
	if m.totalsFn != nil {
		return m.totalsFn(ctx)
	}
	return 0, 0, 0, nil
}

func (m *mockSpinRepository) PrizeDistribution(ctx context.Context) (map[model.PrizeType]int, error) {
	if m.prizeDistributionFn != nil {
		return m.prizeDistributionFn(ctx)
	}
	return nil, nil
}

// mockCouponRepository is a mock implementation of CouponRepositoryInterface.
type mockCouponRepository struct {
	insertFn                func(ctx context.Context, tx database.TxQuerier, c *model.Coupon) error
	getByCodeFn             func(ctx context.Context, code string) (*model.Coupon, error)
	getByIDFn               func(ctx context.Context, id uuid.UUID) (*model.Coupon, error)
	incrementUsageFn        func(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.UsageLimits, error)
	incrementSubjectUsageFn func(ctx context.Context, tx database.TxQuerier, id uuid.UUID, subjectKey string, limit *int) (int, error)
	revokeFn                func(ctx context.Context, id uuid.UUID, reason string, at time.Time) (string, error)
	statsFn                 func(ctx context.Context, origin model.Origin) (int, int, error)
}

func (m *mockCouponRepository) Insert(ctx context.Context, tx database.TxQuerier, c *model.Coupon) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, tx, c)
	}
	return nil
}

func (m *mockCouponRepository) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	if m.getByCodeFn != nil {
		return m.getByCodeFn(ctx, code)
	}
	return nil, nil
}

func (m *mockCouponRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Coupon, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockCouponRepository) IncrementUsage(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.UsageLimits, error) {
	if m.incrementUsageFn != nil {
		return m.incrementUsageFn(ctx, tx, id)
	}
	return &model.UsageLimits{Origin: model.OriginSpinWheel, UsedCount: 1}, nil
}

func (m *mockCouponRepository) IncrementSubjectUsage(ctx context.Context, tx database.TxQuerier, id uuid.UUID, subjectKey string, limit *int) (int, error) {
	if m.incrementSubjectUsageFn != nil {
		return m.incrementSubjectUsageFn(ctx, tx, id, subjectKey, limit)
	}
	return 1, nil
}

func (m *mockCouponRepository) Revoke(ctx context.Context, id uuid.UUID, reason string, at time.Time) (string, error) {
	if m.revokeFn != nil {
		return m.revokeFn(ctx, id, reason, at)
	}
	return "", nil
}

func (m *mockCouponRepository) Stats(ctx context.Context, origin model.Origin) (int, int, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, origin)
	}
	return 0, 0, nil
}

// mockPointsRepository is a mock implementation of PointsRepositoryInterface.
type mockPointsRepository struct {
	creditFn func(ctx context.Context, tx database.TxQuerier, c *model.PointsCredit) error
}

func (m *mockPointsRepository) Credit(ctx context.Context, tx database.TxQuerier, c *model.PointsCredit) error {
	if m.creditFn != nil {
		return m.creditFn(ctx, tx, c)
	}
	return nil
}

// mockOrderRepository is a mock implementation of OrderRepositoryInterface.
type mockOrderRepository struct {
	countDeliveredFn    func(ctx context.Context, q database.TxQuerier, userID string) (int, error)
	recordConsumptionFn func(ctx context.Context, tx database.TxQuerier, orderID string, couponID uuid.UUID, subjectKey string) (bool, error)
}

func (m *mockOrderRepository) CountDelivered(ctx context.Context, q database.TxQuerier, userID string) (int, error) {
	if m.countDeliveredFn != nil {
		return m.countDeliveredFn(ctx, q, userID)
	}
	return 0, nil
}

func (m *mockOrderRepository) RecordConsumption(ctx context.Context, tx database.TxQuerier, orderID string, couponID uuid.UUID, subjectKey string) (bool, error) {
	if m.recordConsumptionFn != nil {
		return m.recordConsumptionFn(ctx, tx, orderID, couponID, subjectKey)
	}
	return true, nil
}

// mockCartRepository is a mock implementation of CartRepositoryInterface.
type mockCartRepository struct {
	getFn  func(ctx context.Context, subjectKey string) (*model.Cart, error)
	saveFn func(ctx context.Context, c *model.Cart) error
}

func (m *mockCartRepository) Get(ctx context.Context, subjectKey string) (*model.Cart, error) {
	if m.getFn != nil {
		return m.getFn(ctx, subjectKey)
	}
	return nil, nil
}

func (m *mockCartRepository) SaveCouponBinding(ctx context.Context, c *model.Cart) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, c)
	}
	return nil
}

// mockReferralRepository is a mock implementation of ReferralRepositoryInterface.
type mockReferralRepository struct {
	markClaimedFn func(ctx context.Context, tx database.TxQuerier, couponID uuid.UUID, at time.Time) (*model.Referral, error)
}

func (m *mockReferralRepository) MarkClaimed(ctx context.Context, tx database.TxQuerier, couponID uuid.UUID, at time.Time) (*model.Referral, error) {
	if m.markClaimedFn != nil {
		return m.markClaimedFn(ctx, tx, couponID, at)
	}
	return nil, nil
}

// mockConfigCache is an in-memory ConfigCache.
type mockConfigCache struct {
	mu          sync.Mutex
	cfg         *model.RewardConfig
	getErr      error
	invalidated int
}

func (m *mockConfigCache) Get(ctx context.Context) (*model.RewardConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg, m.getErr
}

func (m *mockConfigCache) Set(ctx context.Context, cfg *model.RewardConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	return nil
}

func (m *mockConfigCache) Invalidate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = nil
	m.invalidated++
	return nil
}

// mockNotifier records notifications.
type mockNotifier struct {
	mu    sync.Mutex
	sent  []model.Notification
	errFn func(n model.Notification) error
}

func (m *mockNotifier) Notify(ctx context.Context, n model.Notification) error {
	m.mu.Lock()
	m.sent = append(m.sent, n)
	m.mu.Unlock()
	if m.errFn != nil {
		return m.errFn(n)
	}
	return nil
}

// staticConfig is an ActiveConfigSource returning a fixed config.
type staticConfig struct {
	cfg *model.RewardConfig
	err error
}

func (s staticConfig) Active(ctx context.Context) (*model.RewardConfig, error) {
	return s.cfg, s.err
}

// fixedSource is a reward.RandSource with scripted outputs.
type fixedSource struct {
	float float64
	intN  func(n int) int
}

func (f fixedSource) Float64() float64 { return f.float }

func (f fixedSource) IntN(n int) int {
	if f.intN != nil {
		return f.intN(n)
	}
	return 0
}

func intPtr(i int) *int {
	return &i
}
