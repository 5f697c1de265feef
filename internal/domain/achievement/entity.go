// Package achievement contains the domain model for one-time user
// achievements unlocked by events. Pure domain layer, no external
// dependencies.
package achievement

import (
	"errors"
	"time"

	"github.com/arcadehub/arcade-events/internal/domain/event"
)

// Domain errors for the achievement package.
var (
	ErrInvalidName   = errors.New("achievement: invalid achievement name")
	ErrInvalidUserID = errors.New("achievement: user ID must be positive")
)

// Name identifies an achievement. Each user can hold a given achievement
// at most once.
type Name string

const (
	// NameBeginner is unlocked by the first login.
	NameBeginner Name = "beginner"

	// NameResearcher is unlocked by finding a secret.
	NameResearcher Name = "researcher"

	// NameMaster is unlocked by completing a level.
	NameMaster Name = "master"
)

// IsValid checks if the name is one of the known achievements.
func (n Name) IsValid() bool {
	switch n {
	case NameBeginner, NameResearcher, NameMaster:
		return true
	}
	return false
}

// String returns the string representation of Name.
func (n Name) String() string {
	return string(n)
}

// ForEventType maps an event type to the achievement it unlocks, if any.
func ForEventType(t event.Type) (Name, bool) {
	switch t {
	case event.TypeLogin:
		return NameBeginner, true
	case event.TypeFindSecret:
		return NameResearcher, true
	case event.TypeCompleteLevel:
		return NameMaster, true
	}
	return "", false
}

// Achievement is an unlocked achievement record.
type Achievement struct {
	ID         string
	UserID     event.UserID
	Name       Name
	UnlockedAt time.Time
}

// New creates an achievement record for a user.
func New(userID event.UserID, name Name, unlockedAt time.Time) (*Achievement, error) {
	if !userID.IsValid() {
		return nil, ErrInvalidUserID
	}
	if !name.IsValid() {
		return nil, ErrInvalidName
	}
	return &Achievement{
		UserID:     userID,
		Name:       name,
		UnlockedAt: unlockedAt,
	}, nil
}
