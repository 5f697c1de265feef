// Package postgres implements the PostgreSQL persistence layer for Arcade
// Events Hub.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE EVENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create events table
-- Version: 001
--
-- The event log is append-only and is the single source of truth.
-- Rows are never updated or deleted by the application.

CREATE TABLE IF NOT EXISTS events (
    id UUID PRIMARY KEY,
    user_id BIGINT NOT NULL,
    event_type VARCHAR(32) NOT NULL,
    details JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_user_id CHECK (user_id > 0),
    CONSTRAINT nonempty_event_type CHECK (event_type <> '')
);

-- Replay reads all events for one user in insertion order.
CREATE INDEX IF NOT EXISTS idx_events_user_created ON events(user_id, created_at, id);
CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at DESC);
`

const migration001Down = `
DROP INDEX IF EXISTS idx_events_created_at;
DROP INDEX IF EXISTS idx_events_user_created;
DROP TABLE IF EXISTS events;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create achievements table
-- Version: 002
--
-- The unique constraint makes concurrent unlocks of the same achievement
-- safe: only one insert wins, the rest are rejected by the database.

CREATE TABLE IF NOT EXISTS achievements (
    id UUID PRIMARY KEY,
    user_id BIGINT NOT NULL,
    name VARCHAR(32) NOT NULL,
    unlocked_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uix_achievements_user_name UNIQUE (user_id, name),
    CONSTRAINT valid_achievement_user CHECK (user_id > 0)
);

CREATE INDEX IF NOT EXISTS idx_achievements_user_id ON achievements(user_id);
`

const migration002Down = `
DROP INDEX IF EXISTS idx_achievements_user_id;
DROP TABLE IF EXISTS achievements;
`

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_events",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_achievements",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
	}
}
