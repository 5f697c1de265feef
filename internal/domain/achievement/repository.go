package achievement

import (
	"context"

	"github.com/arcadehub/arcade-events/internal/domain/event"
)

// Repository defines the interface for achievement persistence.
// Implemented by the infrastructure layer.
type Repository interface {
	// Unlock persists an achievement for a user. The first call for a
	// (user, name) pair returns true; subsequent calls are no-ops
	// returning false. Uniqueness is enforced by the store, not the
	// caller, so concurrent unlocks of the same pair are safe.
	Unlock(ctx context.Context, a *Achievement) (bool, error)

	// NamesByUser returns the names of all achievements the user has
	// unlocked, oldest first.
	NamesByUser(ctx context.Context, userID event.UserID) ([]Name, error)

	// Has checks whether the user holds the named achievement.
	Has(ctx context.Context, userID event.UserID, name Name) (bool, error)
}
