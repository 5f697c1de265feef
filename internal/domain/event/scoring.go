package event

// ScoreFunc maps an event to the point delta it contributes to the user's
// score. It must be a pure function of (type, details): the same event
// always yields the same delta, which is what makes retried aggregation
// idempotent.
type ScoreFunc func(eventType Type, details Details) int64

// DefaultScoring is the scoring table used in production:
//
//	login           +5
//	find_secret     +50
//	complete_level  +20 plus the level number
//
// Unknown types contribute nothing.
func DefaultScoring(eventType Type, details Details) int64 {
	switch eventType {
	case TypeLogin:
		return 5
	case TypeFindSecret:
		return 50
	case TypeCompleteLevel:
		level, ok := details.Level()
		if !ok {
			level = 0
		}
		return 20 + int64(level)
	}
	return 0
}

// Score is a convenience helper applying fn to a single event.
func (e *Event) Score(fn ScoreFunc) int64 {
	if fn == nil {
		fn = DefaultScoring
	}
	return fn(e.Type, e.Details)
}
