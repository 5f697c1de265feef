package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/arcadehub/arcade-events/internal/domain/achievement"
	"github.com/arcadehub/arcade-events/internal/domain/event"
	"github.com/arcadehub/arcade-events/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements achievement.Repository for PostgreSQL.
type AchievementRepository struct {
	conn *Connection
}

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

// Unlock persists an achievement. ON CONFLICT DO NOTHING turns the unique
// constraint into the idempotence guard: exactly one concurrent unlock of
// the same (user, name) pair observes true.
func (r *AchievementRepository) Unlock(ctx context.Context, a *achievement.Achievement) (bool, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	query := `
		INSERT INTO achievements (id, user_id, name, unlocked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT uix_achievements_user_name DO NOTHING
	`

	tag, err := r.conn.Exec(ctx, query,
		a.ID,
		int64(a.UserID),
		a.Name.String(),
		a.UnlockedAt,
	)
	if err != nil {
		return false, shared.WrapError("achievement", "Unlock", shared.ErrPersistence, "failed to unlock achievement", err)
	}

	return tag.RowsAffected() > 0, nil
}

// NamesByUser returns all achievement names for a user, oldest first.
func (r *AchievementRepository) NamesByUser(ctx context.Context, userID event.UserID) ([]achievement.Name, error) {
	query := `
		SELECT name
		FROM achievements
		WHERE user_id = $1
		ORDER BY unlocked_at, name
	`

	rows, err := r.conn.Query(ctx, query, int64(userID))
	if err != nil {
		return nil, shared.WrapError("achievement", "List", shared.ErrPersistence, "failed to query achievements", err)
	}
	defer rows.Close()

	var names []achievement.Name
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan achievement name: %w", err)
		}
		names = append(names, achievement.Name(name))
	}

	return names, rows.Err()
}

// Has checks whether the user holds the named achievement.
func (r *AchievementRepository) Has(ctx context.Context, userID event.UserID, name achievement.Name) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM achievements WHERE user_id = $1 AND name = $2)`,
		int64(userID),
		name.String(),
	).Scan(&exists)
	if err != nil {
		return false, shared.WrapError("achievement", "Has", shared.ErrPersistence, "failed to check achievement", err)
	}
	return exists, nil
}
