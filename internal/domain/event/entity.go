// Package event contains the domain model for user events: the immutable,
// append-only records that are the authoritative source of truth for all
// derived statistics. This is a pure domain layer with zero external
// dependencies.
package event

import (
	"errors"
	"time"
)

// Domain errors for the event package.
var (
	ErrInvalidEventID   = errors.New("event: invalid event ID")
	ErrInvalidUserID    = errors.New("event: user ID must be positive")
	ErrEmptyEventType   = errors.New("event: event type cannot be empty")
	ErrUnknownEventType = errors.New("event: unknown event type")
	ErrMissingLevel     = errors.New("event: details.level must be positive")
	ErrAlreadyPersisted = errors.New("event: event is already persisted")
)

// ID is the opaque identifier of a persisted event. It is generated at
// write time and never reused.
type ID string

// IsValid checks if the event ID is valid.
func (id ID) IsValid() bool {
	return id != ""
}

// String returns the string representation of ID.
func (id ID) String() string {
	return string(id)
}

// UserID identifies the subject of an event.
type UserID int64

// IsValid checks if the user ID is valid.
func (u UserID) IsValid() bool {
	return u > 0
}

// Type is the closed vocabulary of recognized event types.
type Type string

const (
	// TypeLogin - the user logged into the game.
	TypeLogin Type = "login"

	// TypeCompleteLevel - the user completed a level. Details carry the
	// level number, which contributes to the score.
	TypeCompleteLevel Type = "complete_level"

	// TypeFindSecret - the user found a hidden secret.
	TypeFindSecret Type = "find_secret"
)

// KnownTypes lists every recognized event type.
func KnownTypes() []Type {
	return []Type{TypeLogin, TypeCompleteLevel, TypeFindSecret}
}

// IsValid checks if the type belongs to the known vocabulary.
func (t Type) IsValid() bool {
	switch t {
	case TypeLogin, TypeCompleteLevel, TypeFindSecret:
		return true
	}
	return false
}

// String returns the string representation of Type.
func (t Type) String() string {
	return string(t)
}

// Details is the type-specific payload of an event. It is stored verbatim
// alongside the event and never interpreted outside the scoring function.
type Details map[string]any

// Level extracts the level number from the details, if present.
func (d Details) Level() (int, bool) {
	v, ok := d["level"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		// JSON numbers decode as float64.
		return int(n), true
	}
	return 0, false
}

// Event is an immutable record of something a user did. Once persisted it
// is never mutated or deleted; the per-user score is a projection over the
// full sequence of a user's events.
type Event struct {
	ID        ID
	UserID    UserID
	Type      Type
	Details   Details
	CreatedAt time.Time // set at persistence time
}

// New creates an unpersisted event. ID and CreatedAt are assigned by the
// ingestion path when the event is durably written.
func New(userID UserID, eventType Type, details Details) (*Event, error) {
	if !userID.IsValid() {
		return nil, ErrInvalidUserID
	}
	if eventType == "" {
		return nil, ErrEmptyEventType
	}
	if !eventType.IsValid() {
		return nil, ErrUnknownEventType
	}
	if details == nil {
		details = Details{}
	}
	if eventType == TypeCompleteLevel {
		level, ok := details.Level()
		if !ok || level <= 0 {
			return nil, ErrMissingLevel
		}
	}

	return &Event{
		UserID:  userID,
		Type:    eventType,
		Details: details,
	}, nil
}

// IsPersisted reports whether the event has been durably committed.
func (e *Event) IsPersisted() bool {
	return e.ID.IsValid() && !e.CreatedAt.IsZero()
}

// Stamp assigns the identity and timestamp of the durable record. It may
// only be called once, by the persistence layer.
func (e *Event) Stamp(id ID, createdAt time.Time) error {
	if e.IsPersisted() {
		return ErrAlreadyPersisted
	}
	if !id.IsValid() {
		return ErrInvalidEventID
	}
	e.ID = id
	e.CreatedAt = createdAt
	return nil
}
