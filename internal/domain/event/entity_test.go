package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_ValidEvent(t *testing.T) {
	e, err := New(42, TypeLogin, nil)
	assert.NoError(t, err)
	assert.Equal(t, UserID(42), e.UserID)
	assert.Equal(t, TypeLogin, e.Type)
	assert.NotNil(t, e.Details)
	assert.False(t, e.IsPersisted())
}

func TestNew_RejectsInvalidUserID(t *testing.T) {
	_, err := New(0, TypeLogin, nil)
	assert.ErrorIs(t, err, ErrInvalidUserID)

	_, err = New(-7, TypeLogin, nil)
	assert.ErrorIs(t, err, ErrInvalidUserID)
}

func TestNew_RejectsUnknownType(t *testing.T) {
	_, err := New(1, "buy_skin", nil)
	assert.ErrorIs(t, err, ErrUnknownEventType)

	_, err = New(1, "", nil)
	assert.ErrorIs(t, err, ErrEmptyEventType)
}

func TestNew_CompleteLevelRequiresLevel(t *testing.T) {
	_, err := New(1, TypeCompleteLevel, nil)
	assert.ErrorIs(t, err, ErrMissingLevel)

	_, err = New(1, TypeCompleteLevel, Details{"level": 0})
	assert.ErrorIs(t, err, ErrMissingLevel)

	e, err := New(1, TypeCompleteLevel, Details{"level": 3})
	assert.NoError(t, err)
	level, ok := e.Details.Level()
	assert.True(t, ok)
	assert.Equal(t, 3, level)
}

func TestDetails_LevelDecodesJSONNumbers(t *testing.T) {
	// JSON numbers arrive as float64.
	d := Details{"level": float64(7)}
	level, ok := d.Level()
	assert.True(t, ok)
	assert.Equal(t, 7, level)

	d = Details{"level": "seven"}
	_, ok = d.Level()
	assert.False(t, ok)
}

func TestStamp_AssignsIdentityOnce(t *testing.T) {
	e, err := New(1, TypeFindSecret, nil)
	assert.NoError(t, err)

	now := time.Now().UTC()
	err = e.Stamp("evt-1", now)
	assert.NoError(t, err)
	assert.True(t, e.IsPersisted())
	assert.Equal(t, ID("evt-1"), e.ID)
	assert.Equal(t, now, e.CreatedAt)

	// A persisted event is immutable.
	err = e.Stamp("evt-2", now)
	assert.ErrorIs(t, err, ErrAlreadyPersisted)
	assert.Equal(t, ID("evt-1"), e.ID)
}

func TestStamp_RejectsEmptyID(t *testing.T) {
	e, _ := New(1, TypeLogin, nil)
	err := e.Stamp("", time.Now())
	assert.ErrorIs(t, err, ErrInvalidEventID)
	assert.False(t, e.IsPersisted())
}

func TestKnownTypes(t *testing.T) {
	types := KnownTypes()
	assert.Len(t, types, 3)
	for _, typ := range types {
		assert.True(t, typ.IsValid())
	}
	assert.False(t, Type("jump").IsValid())
}
