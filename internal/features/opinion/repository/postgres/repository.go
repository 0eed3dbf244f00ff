package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"inphrone-backend/internal/features/opinion/models"
	"inphrone-backend/internal/features/opinion/repository"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.OpinionRepository {
	return &postgresRepository{db: db}
}

// opinionSelect expects the viewer id as its first placeholder
const opinionSelect = `
	SELECT o.id, o.user_id, COALESCE(NULLIF(p.first_name, ''), p.username, ''), o.category, o.title, o.content,
		o.genre, o.would_pay, o.upvotes, o.is_hidden, COALESCE(o.moderation_reason, ''), o.moderated_by,
		o.moderated_at, o.deleted_at, o.created_at, o.updated_at,
		EXISTS (SELECT 1 FROM opinion_upvotes u WHERE u.opinion_id = o.id AND u.user_id = $1)
	FROM opinions o
	LEFT JOIN profiles p ON p.id = o.user_id`

func scanOpinion(row interface{ Scan(...any) error }) (*models.Opinion, error) {
	var (
		o           models.Opinion
		moderatedBy sql.NullInt64
		moderatedAt sql.NullTime
		deletedAt   sql.NullTime
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.AuthorName, &o.Category, &o.Title, &o.Content,
		&o.Genre, &o.WouldPay, &o.Upvotes, &o.IsHidden, &o.ModerationReason, &moderatedBy,
		&moderatedAt, &deletedAt, &o.CreatedAt, &o.UpdatedAt, &o.UpvotedByMe); err != nil {
		return nil, err
	}
	if moderatedBy.Valid {
		o.ModeratedBy = &moderatedBy.Int64
	}
	if moderatedAt.Valid {
		o.ModeratedAt = &moderatedAt.Time
	}
	if deletedAt.Valid {
		o.DeletedAt = &deletedAt.Time
	}
	return &o, nil
}

func (r *postgresRepository) Create(ctx context.Context, o *models.Opinion) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO opinions (id, user_id, category, title, content, genre, would_pay, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, o.ID, o.UserID, o.Category, o.Title, o.Content, o.Genre, o.WouldPay, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create opinion: %w", err)
	}
	return nil
}

func (r *postgresRepository) Get(ctx context.Context, id string, viewerID int64) (*models.Opinion, error) {
	o, err := scanOpinion(r.db.QueryRowContext(ctx,
		opinionSelect+` WHERE o.id = $2 AND o.deleted_at IS NULL`, viewerID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrOpinionNotFound
		}
		return nil, fmt.Errorf("failed to get opinion: %w", err)
	}
	return o, nil
}

func (r *postgresRepository) List(ctx context.Context, f models.Filter) ([]*models.Opinion, error) {
	conditions := []string{"o.deleted_at IS NULL"}
	args := []any{f.ViewerID}

	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if !f.IncludeHidden {
		conditions = append(conditions, "NOT o.is_hidden")
	}
	if f.Category != "" {
		add("o.category = $%d", f.Category)
	}
	if f.Genre != "" {
		add("LOWER(o.genre) = LOWER($%d)", f.Genre)
	}
	if f.AuthorID != 0 {
		add("o.user_id = $%d", f.AuthorID)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		n := len(args) + 1
		args = append(args, "%"+escapeLike(search)+"%")
		conditions = append(conditions, fmt.Sprintf("(o.title ILIKE $%d OR o.content ILIKE $%d)", n, n))
	}

	order := "o.created_at DESC, o.id"
	if f.Sort == models.SortPopular {
		order = "o.upvotes DESC, o.created_at DESC, o.id"
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf("%s WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d",
		opinionSelect, strings.Join(conditions, " AND "), order, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list opinions: %w", err)
	}
	defer rows.Close()

	opinions := []*models.Opinion{}
	for rows.Next() {
		o, err := scanOpinion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan opinion: %w", err)
		}
		opinions = append(opinions, o)
	}
	return opinions, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *postgresRepository) Upvote(ctx context.Context, id string, userID int64, at time.Time) (*models.Opinion, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO opinion_upvotes (opinion_id, user_id, created_at)
		SELECT o.id, $2, $3
		FROM opinions o
		WHERE o.id = $1 AND o.deleted_at IS NULL AND NOT o.is_hidden AND o.user_id <> $2
		ON CONFLICT (opinion_id, user_id) DO NOTHING
	`, id, userID, at)
	if err != nil {
		return nil, fmt.Errorf("failed to upvote: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to upvote: %w", err)
	}
	if n == 0 {
		return nil, r.classifyRejectedUpvote(ctx, tx, id, userID)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE opinions SET upvotes = upvotes + 1, updated_at = $2 WHERE id = $1`, id, at); err != nil {
		return nil, fmt.Errorf("failed to count upvote: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit upvote: %w", err)
	}
	return r.Get(ctx, id, userID)
}

func (r *postgresRepository) classifyRejectedUpvote(ctx context.Context, tx *sql.Tx, id string, userID int64) error {
	var (
		authorID int64
		visible  bool
		upvoted  bool
	)
	err := tx.QueryRowContext(ctx, `
		SELECT o.user_id, o.deleted_at IS NULL AND NOT o.is_hidden,
			EXISTS (SELECT 1 FROM opinion_upvotes u WHERE u.opinion_id = o.id AND u.user_id = $2)
		FROM opinions o
		WHERE o.id = $1
	`, id, userID).Scan(&authorID, &visible, &upvoted)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return repository.ErrOpinionNotFound
	case err != nil:
		return fmt.Errorf("failed to classify upvote: %w", err)
	case !visible:
		return repository.ErrOpinionNotFound
	case upvoted:
		return repository.ErrAlreadyUpvoted
	case authorID == userID:
		return repository.ErrOwnOpinion
	default:
		return repository.ErrAlreadyUpvoted
	}
}

func (r *postgresRepository) SoftDelete(ctx context.Context, id string, authorID int64, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE opinions SET deleted_at = $3, updated_at = $3
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, id, authorID, at)
	if err != nil {
		return fmt.Errorf("failed to delete opinion: %w", err)
	}
	return requireRow(result)
}

func (r *postgresRepository) SetHidden(ctx context.Context, id string, hidden bool, reason string, actorID int64, at time.Time) (*models.Opinion, error) {
	var reasonArg any
	if reason != "" {
		reasonArg = reason
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE opinions
		SET is_hidden = $2, moderation_reason = $3, moderated_by = $4, moderated_at = $5, updated_at = $5
		WHERE id = $1 AND deleted_at IS NULL
	`, id, hidden, reasonArg, actorID, at)
	if err != nil {
		return nil, fmt.Errorf("failed to moderate opinion: %w", err)
	}
	if err := requireRow(result); err != nil {
		return nil, err
	}
	return r.Get(ctx, id, 0)
}

func (r *postgresRepository) Remove(ctx context.Context, id string, reason string, actorID int64, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE opinions
		SET deleted_at = $4, moderation_reason = $2, moderated_by = $3, moderated_at = $4, updated_at = $4
		WHERE id = $1 AND deleted_at IS NULL
	`, id, reason, actorID, at)
	if err != nil {
		return fmt.Errorf("failed to remove opinion: %w", err)
	}
	return requireRow(result)
}

func (r *postgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM opinions WHERE deleted_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count opinions: %w", err)
	}
	return n, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return repository.ErrOpinionNotFound
	}
	return nil
}
