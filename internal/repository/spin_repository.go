package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/spin-reward-engine/internal/model"
	"github.com/fairyhunter13/spin-reward-engine/internal/service"
	"github.com/fairyhunter13/spin-reward-engine/pkg/database"
)

const spinSlotConstraint = "spin_records_window_slot_key"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var spinColumns = []string{
	"id", "subject_key", "COALESCE(user_id, '')", "COALESCE(guest_id, '')", "is_guest",
	"window_key", "slot", "prize_type", "prize_label", "prize_value", "COALESCE(coupon_code, '')",
	"coupon_id", "COALESCE(client_ip, '')", "COALESCE(device, '')",
	"is_flagged", "COALESCE(flag_reason, '')", "reviewed_at", "COALESCE(reviewed_by, '')", "created_at",
}

// SpinRepository provides data access for spin records.
type SpinRepository struct {
	pool database.TxQuerier
}

// NewSpinRepository creates a new SpinRepository with the given pool.
func NewSpinRepository(pool *pgxpool.Pool) *SpinRepository {
	return &SpinRepository{pool: pool}
}

// NewSpinRepositoryWithPool creates a SpinRepository with a custom pool interface.
func NewSpinRepositoryWithPool(pool database.TxQuerier) *SpinRepository {
	return &SpinRepository{pool: pool}
}

// CountInWindow counts the subject's spins in a window.
func (r *SpinRepository) CountInWindow(ctx context.Context, q database.TxQuerier, subjectKey, windowKey string) (int, error) {
	var n int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM spin_records WHERE subject_key = $1 AND window_key = $2`,
		subjectKey, windowKey).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count spins for %s in %s: %w", subjectKey, windowKey, err)
	}
	return n, nil
}

// Insert stores a spin record within a transaction. The unique key on
// (subject_key, window_key, slot) is the eligibility gate: a concurrent spin
// for the same slot fails with service.ErrSpinSlotTaken.
func (r *SpinRepository) Insert(ctx context.Context, tx database.TxQuerier, rec *model.SpinRecord) error {
	query, args, err := psql.Insert("spin_records").
		Columns("id", "subject_key", "user_id", "guest_id", "is_guest", "window_key", "slot",
			"prize_type", "prize_label", "prize_value", "coupon_code", "coupon_id",
			"client_ip", "device", "is_flagged", "flag_reason", "created_at").
		Values(rec.ID, rec.SubjectKey, nullString(rec.UserID), nullString(rec.GuestID), rec.IsGuest,
			rec.WindowKey, rec.Slot, string(rec.Prize.Type), rec.Prize.Label, rec.Prize.Value,
			nullString(rec.Prize.CouponCode), rec.CouponID, nullString(rec.ClientIP), nullString(rec.Device),
			rec.Flag.IsFlagged, nullString(rec.Flag.Reason), rec.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build spin insert: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		if constraint, ok := database.UniqueViolation(err); ok && constraint == spinSlotConstraint {
			return service.ErrSpinSlotTaken
		}
		return fmt.Errorf("insert spin record: %w", err)
	}
	return nil
}

// GetByID retrieves a spin record. Returns nil, nil if not found.
func (r *SpinRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.SpinRecord, error) {
	query, args, err := psql.Select(spinColumns...).From("spin_records").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build spin select: %w", err)
	}

	rec, err := scanSpin(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get spin %s: %w", id, err)
	}
	return rec, nil
}

// List returns one page of spin records, newest first, plus the total count
// matching the filters.
func (r *SpinRepository) List(ctx context.Context, q model.HistoryQuery) ([]model.SpinRecord, int, error) {
	where := sq.And{}
	if q.IsFlagged != nil {
		where = append(where, sq.Eq{"is_flagged": *q.IsFlagged})
	}
	if q.UserID != "" {
		where = append(where, sq.Eq{"user_id": q.UserID})
	}

	countSQL, countArgs, err := psql.Select("COUNT(*)").From("spin_records").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build history count: %w", err)
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	limit, page := q.Limit, q.Page
	if limit <= 0 {
		limit = model.DefaultHistoryLimit
	}
	if page <= 0 {
		page = 1
	}

	listSQL, listArgs, err := psql.Select(spinColumns...).From("spin_records").Where(where).
		OrderBy("created_at DESC", "id").
		Limit(uint64(limit)).
		Offset(uint64((page - 1) * limit)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build history list: %w", err)
	}

	rows, err := r.pool.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	items := []model.SpinRecord{}
	for rows.Next() {
		rec, err := scanSpin(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan spin record: %w", err)
		}
		items = append(items, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate history rows: %w", err)
	}
	return items, total, nil
}

func scanSpin(row pgx.Row) (*model.SpinRecord, error) {
	var (
		rec       model.SpinRecord
		prizeType string
	)
	err := row.Scan(
		&rec.ID, &rec.SubjectKey, &rec.UserID, &rec.GuestID, &rec.IsGuest,
		&rec.WindowKey, &rec.Slot, &prizeType, &rec.Prize.Label, &rec.Prize.Value, &rec.Prize.CouponCode,
		&rec.CouponID, &rec.ClientIP, &rec.Device,
		&rec.Flag.IsFlagged, &rec.Flag.Reason, &rec.Flag.ReviewedAt, &rec.Flag.ReviewedBy, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Prize.Type = model.PrizeType(prizeType)
	return &rec, nil
}

// MarkReviewed records who reviewed a spin and when.
// Returns service.ErrSpinNotFound if no such spin exists.
func (r *SpinRepository) MarkReviewed(ctx context.Context, id uuid.UUID, reviewer string, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE spin_records SET reviewed_at = $2, reviewed_by = $3 WHERE id = $1`,
		id, at, reviewer)
	if err != nil {
		return fmt.Errorf("mark spin %s reviewed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrSpinNotFound
	}
	return nil
}

// Totals returns the overall, guest and flagged spin counts.
func (r *SpinRepository) Totals(ctx context.Context) (total, guest, flagged int, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_guest), COUNT(*) FILTER (WHERE is_flagged) FROM spin_records`,
	).Scan(&total, &guest, &flagged)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("spin totals: %w", err)
	}
	return total, guest, flagged, nil
}

// PrizeDistribution counts spins per prize type.
func (r *SpinRepository) PrizeDistribution(ctx context.Context) (map[model.PrizeType]int, error) {
	query, args, err := psql.Select("prize_type", "COUNT(*)").From("spin_records").GroupBy("prize_type").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build prize distribution: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("prize distribution: %w", err)
	}
	defer rows.Close()

	dist := map[model.PrizeType]int{}
	for rows.Next() {
		var (
			typ string
			n   int
		)
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scan prize distribution: %w", err)
		}
		dist[model.PrizeType(typ)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prize distribution rows: %w", err)
	}
	return dist, nil
}
