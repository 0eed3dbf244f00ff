package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"inphrone-backend/internal/common/logger"
)

// ApplySchema creates all tables. Safe to call on every start, every
// statement uses IF NOT EXISTS.
func (c *Client) ApplySchema(ctx context.Context) error {
	if err := ApplySchema(ctx, c.db); err != nil {
		return err
	}
	logger.Info().Msg("Database schema applied")
	return nil
}

func ApplySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
    id BIGINT PRIMARY KEY,
    username TEXT NOT NULL DEFAULT '',
    first_name TEXT NOT NULL DEFAULT '',
    last_name TEXT NOT NULL DEFAULT '',
    email TEXT,
    role TEXT NOT NULL DEFAULT 'audience',
    status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'banned')),
    country TEXT,
    age_group TEXT,
    onboarding_completed BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Your Turn
CREATE TABLE IF NOT EXISTS your_turn_slots (
    id TEXT PRIMARY KEY,
    slot_date DATE NOT NULL,
    slot_number SMALLINT NOT NULL,
    opens_at TIMESTAMPTZ NOT NULL,
    ends_at TIMESTAMPTZ NOT NULL,
    status TEXT NOT NULL DEFAULT 'scheduled'
        CHECK (status IN ('scheduled', 'open', 'won', 'expired', 'archived')),
    attempt_count INTEGER NOT NULL DEFAULT 0 CHECK (attempt_count >= 0),
    winner_id BIGINT REFERENCES profiles(id),
    won_at TIMESTAMPTZ,
    resolved_at TIMESTAMPTZ,
    archived_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (slot_date, slot_number),
    CHECK (status <> 'won' OR winner_id IS NOT NULL),
    CHECK (winner_id IS NULL OR status IN ('won', 'archived'))
);

CREATE INDEX IF NOT EXISTS idx_your_turn_slots_status ON your_turn_slots(status, opens_at);

CREATE TABLE IF NOT EXISTS your_turn_attempts (
    id TEXT PRIMARY KEY,
    slot_id TEXT NOT NULL REFERENCES your_turn_slots(id) ON DELETE CASCADE,
    user_id BIGINT NOT NULL REFERENCES profiles(id),
    attempted_at TIMESTAMPTZ NOT NULL,
    is_winner BOOLEAN NOT NULL DEFAULT FALSE,
    UNIQUE (slot_id, user_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_your_turn_attempts_one_winner
    ON your_turn_attempts(slot_id) WHERE is_winner;

CREATE TABLE IF NOT EXISTS your_turn_questions (
    id TEXT PRIMARY KEY,
    slot_id TEXT NOT NULL UNIQUE REFERENCES your_turn_slots(id) ON DELETE CASCADE,
    user_id BIGINT NOT NULL REFERENCES profiles(id),
    question_text TEXT NOT NULL,
    options TEXT[] NOT NULL CHECK (array_length(options, 1) BETWEEN 2 AND 4),
    vote_counts INTEGER[] NOT NULL,
    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
    deleted_reason TEXT,
    deleted_by BIGINT,
    deleted_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS your_turn_votes (
    question_id TEXT NOT NULL REFERENCES your_turn_questions(id) ON DELETE CASCADE,
    user_id BIGINT NOT NULL REFERENCES profiles(id),
    option_index SMALLINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (question_id, user_id)
);

CREATE TABLE IF NOT EXISTS your_turn_history (
    slot_id TEXT PRIMARY KEY,
    slot_date DATE NOT NULL,
    slot_number SMALLINT NOT NULL,
    final_status TEXT NOT NULL,
    winner_id BIGINT,
    attempt_count INTEGER NOT NULL,
    question_id TEXT,
    question_text TEXT,
    options TEXT[],
    vote_counts INTEGER[],
    archived_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_your_turn_history_date ON your_turn_history(slot_date DESC);

-- InphroSync
CREATE TABLE IF NOT EXISTS inphrosync_questions (
    id TEXT PRIMARY KEY,
    question_date DATE NOT NULL,
    question_type TEXT NOT NULL,
    question_text TEXT NOT NULL,
    options TEXT[] NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_inphrosync_questions_date ON inphrosync_questions(question_date);

CREATE TABLE IF NOT EXISTS inphrosync_responses (
    question_id TEXT NOT NULL REFERENCES inphrosync_questions(id) ON DELETE CASCADE,
    user_id BIGINT NOT NULL REFERENCES profiles(id),
    option_index SMALLINT NOT NULL,
    response_date DATE NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (question_id, user_id)
);

-- Streaks and badges
CREATE TABLE IF NOT EXISTS user_streaks (
    user_id BIGINT PRIMARY KEY REFERENCES profiles(id),
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    total_active_days INTEGER NOT NULL DEFAULT 0,
    last_activity_date DATE,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS user_badges (
    user_id BIGINT NOT NULL REFERENCES profiles(id),
    badge_code TEXT NOT NULL,
    awarded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, badge_code)
);

-- Opinions
CREATE TABLE IF NOT EXISTS opinions (
    id TEXT PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES profiles(id),
    category TEXT NOT NULL,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    genre TEXT NOT NULL DEFAULT '',
    would_pay BOOLEAN NOT NULL DEFAULT FALSE,
    upvotes INTEGER NOT NULL DEFAULT 0,
    is_hidden BOOLEAN NOT NULL DEFAULT FALSE,
    moderation_reason TEXT,
    moderated_by BIGINT,
    moderated_at TIMESTAMPTZ,
    deleted_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_opinions_category ON opinions(category, created_at DESC);

CREATE TABLE IF NOT EXISTS opinion_upvotes (
    opinion_id TEXT NOT NULL REFERENCES opinions(id) ON DELETE CASCADE,
    user_id BIGINT NOT NULL REFERENCES profiles(id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (opinion_id, user_id)
);

-- Coupons
CREATE TABLE IF NOT EXISTS coupons (
    id TEXT PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    discount_value NUMERIC(12, 2) NOT NULL,
    discount_type TEXT NOT NULL CHECK (discount_type IN ('percent', 'fixed')),
    total_quantity INTEGER NOT NULL CHECK (total_quantity >= 0),
    remaining INTEGER NOT NULL CHECK (remaining >= 0),
    expires_at TIMESTAMPTZ NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS coupon_claims (
    coupon_id TEXT NOT NULL REFERENCES coupons(id),
    user_id BIGINT NOT NULL REFERENCES profiles(id),
    claimed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    used_at TIMESTAMPTZ,
    PRIMARY KEY (coupon_id, user_id)
);

-- Push
CREATE TABLE IF NOT EXISTS push_subscriptions (
    user_id BIGINT NOT NULL REFERENCES profiles(id),
    endpoint TEXT NOT NULL,
    p256dh TEXT NOT NULL,
    auth TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, endpoint)
);
`
