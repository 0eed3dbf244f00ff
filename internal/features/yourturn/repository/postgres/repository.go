package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"inphrone-backend/internal/features/yourturn/models"
	"inphrone-backend/internal/features/yourturn/repository"
)

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.SlotRepository {
	return &postgresRepository{db: db}
}

const slotColumns = `id, to_char(slot_date, 'YYYY-MM-DD'), slot_number, opens_at, ends_at, status,
	attempt_count, winner_id, won_at, resolved_at, archived_at, created_at, updated_at`

const questionColumns = `id, slot_id, user_id, question_text, options, vote_counts, is_deleted,
	COALESCE(deleted_reason, ''), deleted_by, deleted_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (*models.Slot, error) {
	var (
		s          models.Slot
		winnerID   sql.NullInt64
		wonAt      sql.NullTime
		resolvedAt sql.NullTime
		archivedAt sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.Date, &s.SlotNumber, &s.OpensAt, &s.EndsAt, &s.Status,
		&s.AttemptCount, &winnerID, &wonAt, &resolvedAt, &archivedAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if winnerID.Valid {
		s.WinnerID = &winnerID.Int64
	}
	s.WonAt = nullTime(wonAt)
	s.ResolvedAt = nullTime(resolvedAt)
	s.ArchivedAt = nullTime(archivedAt)
	return &s, nil
}

func scanSlots(rows *sql.Rows) ([]*models.Slot, error) {
	defer rows.Close()

	var slots []*models.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func scanQuestion(row rowScanner) (*models.Question, error) {
	var (
		q         models.Question
		deletedBy sql.NullInt64
		deletedAt sql.NullTime
	)
	if err := row.Scan(&q.ID, &q.SlotID, &q.UserID, &q.Text, pq.Array(&q.Options), pq.Array(&q.VoteCounts),
		&q.IsDeleted, &q.DeletedReason, &deletedBy, &deletedAt, &q.CreatedAt); err != nil {
		return nil, err
	}
	if deletedBy.Valid {
		q.DeletedBy = &deletedBy.Int64
	}
	q.DeletedAt = nullTime(deletedAt)
	q.Total()
	return &q, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (r *postgresRepository) EnsureSlot(ctx context.Context, slot *models.Slot) (bool, error) {
	query := `
		INSERT INTO your_turn_slots (id, slot_date, slot_number, opens_at, ends_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'scheduled', $6, $6)
		ON CONFLICT (slot_date, slot_number) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query,
		slot.ID, slot.Date, slot.SlotNumber, slot.OpensAt, slot.EndsAt, slot.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to ensure slot: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *postgresRepository) GetSlot(ctx context.Context, id string) (*models.Slot, error) {
	slot, err := scanSlot(r.db.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM your_turn_slots WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrSlotNotFound
		}
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return slot, nil
}

func (r *postgresRepository) ListSlotsByDate(ctx context.Context, date string) ([]*models.Slot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM your_turn_slots WHERE slot_date = $1::date ORDER BY slot_number`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	return scanSlots(rows)
}

// Claim runs the compare-and-set that decides the winner. A slot whose
// window has started is opened in the same transaction, so claims never wait
// for the scheduler. Concurrent callers queue on the row lock and re-check
// status = 'open' once the first commits, so exactly one UPDATE can match.
func (r *postgresRepository) Claim(ctx context.Context, slotID string, userID int64, at time.Time) (*models.ClaimResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	opened, err := tx.ExecContext(ctx, `
		UPDATE your_turn_slots SET status = 'open', updated_at = $2
		WHERE id = $1 AND status = 'scheduled' AND opens_at <= $2`, slotID, at)
	if err != nil {
		return nil, fmt.Errorf("failed to open slot: %w", err)
	}
	n, err := opened.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	result := &models.ClaimResult{Opened: n > 0}

	claimQuery := `
		UPDATE your_turn_slots
		SET status = 'won', winner_id = $2, won_at = $3, resolved_at = $3,
			attempt_count = attempt_count + 1, updated_at = $3
		WHERE id = $1 AND status = 'open' AND opens_at <= $3 AND $3 < ends_at
		RETURNING ` + slotColumns

	slot, err := scanSlot(tx.QueryRowContext(ctx, claimQuery, slotID, userID, at))
	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO your_turn_attempts (id, slot_id, user_id, attempted_at, is_winner)
			VALUES ($1, $2, $3, $4, TRUE)`,
			uuid.NewString(), slotID, userID, at); err != nil {
			return nil, fmt.Errorf("failed to record winning attempt: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit claim: %w", err)
		}
		result.Result = models.ClaimWon
		result.Slot = slot
		result.NewlyWon = true
		return result, nil
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, fmt.Errorf("failed to claim slot: %w", err)
	}

	slot, err = scanSlot(tx.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM your_turn_slots WHERE id = $1`, slotID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrSlotNotFound
		}
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}

	outcome, err := classifyLostClaim(slot, userID, at)
	if err != nil {
		return nil, err
	}

	// a contested loss is recorded once; repeated calls change nothing
	if outcome == models.ClaimAlreadyTaken && slot.Status == models.SlotStatusWon {
		inserted, err := tx.ExecContext(ctx, `
			INSERT INTO your_turn_attempts (id, slot_id, user_id, attempted_at, is_winner)
			VALUES ($1, $2, $3, $4, FALSE)
			ON CONFLICT (slot_id, user_id) DO NOTHING`,
			uuid.NewString(), slotID, userID, at)
		if err != nil {
			return nil, fmt.Errorf("failed to record attempt: %w", err)
		}
		if n, _ := inserted.RowsAffected(); n > 0 {
			if err := tx.QueryRowContext(ctx, `
				UPDATE your_turn_slots SET attempt_count = attempt_count + 1, updated_at = $2
				WHERE id = $1
				RETURNING attempt_count`, slotID, at).Scan(&slot.AttemptCount); err != nil {
				return nil, fmt.Errorf("failed to count attempt: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	result.Result = outcome
	result.Slot = slot
	return result, nil
}

// classifyLostClaim explains why the conditional update matched no row
func classifyLostClaim(slot *models.Slot, userID int64, at time.Time) (models.ClaimOutcome, error) {
	switch slot.Status {
	case models.SlotStatusScheduled:
		return "", repository.ErrSlotNotOpen
	case models.SlotStatusOpen:
		if at.Before(slot.OpensAt) {
			return "", repository.ErrSlotNotOpen
		}
		// window elapsed, the scheduler has not swept it yet
		return models.ClaimExpired, nil
	case models.SlotStatusWon, models.SlotStatusArchived:
		if slot.WinnerID == nil {
			return models.ClaimExpired, nil
		}
		if *slot.WinnerID == userID {
			return models.ClaimWon, nil
		}
		return models.ClaimAlreadyTaken, nil
	default:
		return models.ClaimExpired, nil
	}
}

func (r *postgresRepository) OpenDueSlots(ctx context.Context, now time.Time) ([]*models.Slot, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE your_turn_slots SET status = 'open', updated_at = $1
		WHERE status = 'scheduled' AND opens_at <= $1
		RETURNING `+slotColumns, now)
	if err != nil {
		return nil, fmt.Errorf("failed to open slots: %w", err)
	}
	return scanSlots(rows)
}

func (r *postgresRepository) ExpireElapsedSlots(ctx context.Context, now time.Time) ([]*models.Slot, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE your_turn_slots SET status = 'expired', resolved_at = $1, updated_at = $1
		WHERE status = 'open' AND ends_at <= $1 AND winner_id IS NULL
		RETURNING `+slotColumns, now)
	if err != nil {
		return nil, fmt.Errorf("failed to expire slots: %w", err)
	}
	return scanSlots(rows)
}

const archiveBatchSize = 100

func (r *postgresRepository) ArchiveResolved(ctx context.Context, cutoff, now time.Time) ([]*models.Slot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM your_turn_slots
		WHERE status IN ('won', 'expired') AND resolved_at <= $1
		ORDER BY resolved_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, cutoff, archiveBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to select resolved slots: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan slot id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO your_turn_history (slot_id, slot_date, slot_number, final_status, winner_id,
			attempt_count, question_id, question_text, options, vote_counts, archived_at)
		SELECT s.id, s.slot_date, s.slot_number, s.status, s.winner_id, s.attempt_count,
			q.id, q.question_text, q.options, q.vote_counts, $2
		FROM your_turn_slots s
		LEFT JOIN your_turn_questions q ON q.slot_id = s.id AND NOT q.is_deleted
		WHERE s.id = ANY($1)
		ON CONFLICT (slot_id) DO NOTHING`, pq.Array(ids), now); err != nil {
		return nil, fmt.Errorf("failed to write slot history: %w", err)
	}

	updated, err := tx.QueryContext(ctx, `
		UPDATE your_turn_slots SET status = 'archived', archived_at = $2, updated_at = $2
		WHERE id = ANY($1)
		RETURNING `+slotColumns, pq.Array(ids), now)
	if err != nil {
		return nil, fmt.Errorf("failed to archive slots: %w", err)
	}
	slots, err := scanSlots(updated)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit archive: %w", err)
	}
	return slots, nil
}

// CreateQuestion inserts only when the author is the winner of a slot that
// is still won. Archived slots and non-winners match no row.
func (r *postgresRepository) CreateQuestion(ctx context.Context, q *models.Question) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO your_turn_questions (id, slot_id, user_id, question_text, options, vote_counts, created_at)
		SELECT $1, s.id, $3, $4, $5, $6, $7
		FROM your_turn_slots s
		WHERE s.id = $2 AND s.status = 'won' AND s.winner_id = $3
		ON CONFLICT (slot_id) DO NOTHING`,
		q.ID, q.SlotID, q.UserID, q.Text, pq.Array(q.Options), pq.Array(q.VoteCounts), q.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var (
		status      models.SlotStatus
		winnerID    sql.NullInt64
		hasQuestion bool
	)
	err = r.db.QueryRowContext(ctx, `
		SELECT s.status, s.winner_id,
			EXISTS (SELECT 1 FROM your_turn_questions q WHERE q.slot_id = s.id)
		FROM your_turn_slots s WHERE s.id = $1`, q.SlotID).Scan(&status, &winnerID, &hasQuestion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrSlotNotFound
		}
		return fmt.Errorf("failed to inspect slot: %w", err)
	}

	switch {
	case !winnerID.Valid || winnerID.Int64 != q.UserID:
		return repository.ErrNotWinner
	case status == models.SlotStatusArchived:
		return repository.ErrSlotArchived
	case hasQuestion:
		return repository.ErrQuestionExists
	default:
		return repository.ErrNotWinner
	}
}

func (r *postgresRepository) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	q, err := scanQuestion(r.db.QueryRowContext(ctx,
		`SELECT `+questionColumns+` FROM your_turn_questions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return q, nil
}

func (r *postgresRepository) GetQuestionBySlot(ctx context.Context, slotID string) (*models.Question, error) {
	q, err := scanQuestion(r.db.QueryRowContext(ctx,
		`SELECT `+questionColumns+` FROM your_turn_questions WHERE slot_id = $1`, slotID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return q, nil
}

// Vote records one vote per (question, user) and bumps the option total in
// the same transaction. Totals are never decremented.
func (r *postgresRepository) Vote(ctx context.Context, questionID string, userID int64, option int, at time.Time) (*models.Question, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO your_turn_votes (question_id, user_id, option_index, created_at)
		SELECT q.id, $2, $3, $4
		FROM your_turn_questions q
		JOIN your_turn_slots s ON s.id = q.slot_id
		WHERE q.id = $1 AND NOT q.is_deleted AND s.status <> 'archived'
			AND $3 >= 0 AND $3 < array_length(q.options, 1)
		ON CONFLICT (question_id, user_id) DO NOTHING`,
		questionID, userID, option, at)
	if err != nil {
		return nil, fmt.Errorf("failed to record vote: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return nil, r.classifyRejectedVote(ctx, tx, questionID, userID, option)
	}

	q, err := scanQuestion(tx.QueryRowContext(ctx, `
		UPDATE your_turn_questions
		SET vote_counts[$2::int + 1] = vote_counts[$2::int + 1] + 1
		WHERE id = $1
		RETURNING `+questionColumns, questionID, option))
	if err != nil {
		return nil, fmt.Errorf("failed to update vote totals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit vote: %w", err)
	}
	return q, nil
}

func (r *postgresRepository) classifyRejectedVote(ctx context.Context, tx *sql.Tx, questionID string, userID int64, option int) error {
	var (
		deleted     bool
		status      models.SlotStatus
		optionCount int
		voted       bool
	)
	err := tx.QueryRowContext(ctx, `
		SELECT q.is_deleted, s.status, COALESCE(array_length(q.options, 1), 0),
			EXISTS (SELECT 1 FROM your_turn_votes v WHERE v.question_id = q.id AND v.user_id = $2)
		FROM your_turn_questions q
		JOIN your_turn_slots s ON s.id = q.slot_id
		WHERE q.id = $1`, questionID, userID).Scan(&deleted, &status, &optionCount, &voted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrQuestionNotFound
		}
		return fmt.Errorf("failed to inspect question: %w", err)
	}

	switch {
	case deleted:
		return repository.ErrQuestionNotFound
	case status == models.SlotStatusArchived:
		return repository.ErrSlotArchived
	case voted:
		return repository.ErrAlreadyVoted
	case option < 0 || option >= optionCount:
		return repository.ErrInvalidOption
	default:
		return repository.ErrAlreadyVoted
	}
}

func (r *postgresRepository) GetUserVote(ctx context.Context, questionID string, userID int64) (*int, error) {
	var option int
	err := r.db.QueryRowContext(ctx,
		`SELECT option_index FROM your_turn_votes WHERE question_id = $1 AND user_id = $2`,
		questionID, userID).Scan(&option)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	return &option, nil
}

func (r *postgresRepository) ModerateQuestion(ctx context.Context, id string, actorID int64, reason string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE your_turn_questions
		SET is_deleted = TRUE, deleted_reason = $3, deleted_by = $2, deleted_at = $4
		WHERE id = $1 AND NOT is_deleted`, id, actorID, reason, at)
	if err != nil {
		return fmt.Errorf("failed to moderate question: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrQuestionNotFound
	}
	return nil
}

func (r *postgresRepository) ListHistory(ctx context.Context, limit, offset int) ([]*models.HistoryEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT slot_id, to_char(slot_date, 'YYYY-MM-DD'), slot_number, final_status, winner_id,
			attempt_count, COALESCE(question_id, ''), COALESCE(question_text, ''), options, vote_counts, archived_at
		FROM your_turn_history
		ORDER BY slot_date DESC, slot_number DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []*models.HistoryEntry
	for rows.Next() {
		var (
			e        models.HistoryEntry
			winnerID sql.NullInt64
		)
		if err := rows.Scan(&e.SlotID, &e.Date, &e.SlotNumber, &e.FinalStatus, &winnerID, &e.AttemptCount,
			&e.QuestionID, &e.QuestionText, pq.Array(&e.Options), pq.Array(&e.VoteCounts), &e.ArchivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		if winnerID.Valid {
			e.WinnerID = &winnerID.Int64
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
