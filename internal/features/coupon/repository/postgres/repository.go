package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"inphrone-backend/internal/features/coupon/models"
	"inphrone-backend/internal/features/coupon/repository"
)

const uniqueViolation = "23505"

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.CouponRepository {
	return &postgresRepository{db: db}
}

const couponColumns = `id, code, title, description, discount_value, discount_type,
	total_quantity, remaining, expires_at, is_active, created_at`

func scanCoupon(row interface{ Scan(...any) error }, extra ...any) (*models.Coupon, error) {
	var c models.Coupon
	dest := []any{&c.ID, &c.Code, &c.Title, &c.Description, &c.DiscountValue, &c.DiscountType,
		&c.TotalQuantity, &c.Remaining, &c.ExpiresAt, &c.IsActive, &c.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *postgresRepository) Create(ctx context.Context, c *models.Coupon) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO coupons (id, code, title, description, discount_value, discount_type,
			total_quantity, remaining, expires_at, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, c.ID, c.Code, c.Title, c.Description, c.DiscountValue, c.DiscountType,
		c.TotalQuantity, c.Remaining, c.ExpiresAt, c.IsActive, c.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return repository.ErrDuplicateCode
		}
		return fmt.Errorf("failed to create coupon: %w", err)
	}
	return nil
}

func (r *postgresRepository) Get(ctx context.Context, id string) (*models.Coupon, error) {
	c, err := scanCoupon(r.db.QueryRowContext(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return c, nil
}

func (r *postgresRepository) ListAvailable(ctx context.Context, userID int64, now time.Time) ([]*models.Coupon, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+couponColumns+`,
			EXISTS (SELECT 1 FROM coupon_claims cc WHERE cc.coupon_id = coupons.id AND cc.user_id = $1)
		FROM coupons
		WHERE is_active AND remaining > 0 AND expires_at > $2
		ORDER BY expires_at, created_at
	`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()

	coupons := []*models.Coupon{}
	for rows.Next() {
		var claimed bool
		c, err := scanCoupon(rows, &claimed)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		c.ClaimedByMe = claimed
		coupons = append(coupons, c)
	}
	return coupons, rows.Err()
}

func (r *postgresRepository) Claim(ctx context.Context, couponID string, userID int64, now time.Time) (*models.Claim, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	c, err := scanCoupon(tx.QueryRowContext(ctx, `
		UPDATE coupons SET remaining = remaining - 1
		WHERE id = $1 AND is_active AND expires_at > $2 AND remaining > 0
		RETURNING `+couponColumns, couponID, now))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.classifyRejectedClaim(ctx, tx, couponID, userID, now)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decrement coupon: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO coupon_claims (coupon_id, user_id, claimed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (coupon_id, user_id) DO NOTHING
	`, couponID, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to record claim: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to record claim: %w", err)
	}
	if n == 0 {
		// rollback restores the decremented unit
		return nil, repository.ErrAlreadyClaimed
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	c.ClaimedByMe = true
	return &models.Claim{CouponID: couponID, UserID: userID, ClaimedAt: now, Coupon: c}, nil
}

func (r *postgresRepository) classifyRejectedClaim(ctx context.Context, tx *sql.Tx, couponID string, userID int64, now time.Time) error {
	var (
		available bool
		remaining int
		claimed   bool
	)
	err := tx.QueryRowContext(ctx, `
		SELECT c.is_active AND c.expires_at > $3, c.remaining,
			EXISTS (SELECT 1 FROM coupon_claims cc WHERE cc.coupon_id = c.id AND cc.user_id = $2)
		FROM coupons c
		WHERE c.id = $1
	`, couponID, userID, now).Scan(&available, &remaining, &claimed)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return repository.ErrCouponNotFound
	case err != nil:
		return fmt.Errorf("failed to classify claim: %w", err)
	case claimed:
		return repository.ErrAlreadyClaimed
	case !available:
		return repository.ErrCouponExpired
	default:
		return repository.ErrOutOfStock
	}
}

func (r *postgresRepository) MarkUsed(ctx context.Context, couponID string, userID int64, at time.Time) (*models.Claim, error) {
	claim := &models.Claim{CouponID: couponID, UserID: userID}
	var usedAt time.Time
	err := r.db.QueryRowContext(ctx, `
		UPDATE coupon_claims SET used_at = $3
		WHERE coupon_id = $1 AND user_id = $2 AND used_at IS NULL
		RETURNING claimed_at, used_at
	`, couponID, userID, at).Scan(&claim.ClaimedAt, &usedAt)
	if err == nil {
		claim.UsedAt = &usedAt
		return claim, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to mark coupon used: %w", err)
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM coupon_claims WHERE coupon_id = $1 AND user_id = $2)`,
		couponID, userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check claim: %w", err)
	}
	if exists {
		return nil, repository.ErrClaimAlreadyUsed
	}
	return nil, repository.ErrClaimNotFound
}

func (r *postgresRepository) ListClaims(ctx context.Context, userID int64) ([]*models.Claim, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT cc.claimed_at, cc.used_at,
			c.id, c.code, c.title, c.description, c.discount_value, c.discount_type,
			c.total_quantity, c.remaining, c.expires_at, c.is_active, c.created_at
		FROM coupon_claims cc
		JOIN coupons c ON c.id = cc.coupon_id
		WHERE cc.user_id = $1
		ORDER BY cc.claimed_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	claims := []*models.Claim{}
	for rows.Next() {
		var (
			claim  = &models.Claim{UserID: userID, Coupon: &models.Coupon{ClaimedByMe: true}}
			c      = claim.Coupon
			usedAt sql.NullTime
		)
		if err := rows.Scan(&claim.ClaimedAt, &usedAt,
			&c.ID, &c.Code, &c.Title, &c.Description, &c.DiscountValue, &c.DiscountType,
			&c.TotalQuantity, &c.Remaining, &c.ExpiresAt, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		if usedAt.Valid {
			claim.UsedAt = &usedAt.Time
		}
		claim.CouponID = c.ID
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

func (r *postgresRepository) Deactivate(ctx context.Context, id string) (*models.Coupon, error) {
	c, err := scanCoupon(r.db.QueryRowContext(ctx,
		`UPDATE coupons SET is_active = FALSE WHERE id = $1 RETURNING `+couponColumns, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to deactivate coupon: %w", err)
	}
	return c, nil
}

func (r *postgresRepository) CountClaims(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM coupon_claims`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count claims: %w", err)
	}
	return n, nil
}
