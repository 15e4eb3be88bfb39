// Package types holds small value types shared by the credits record packages.
package types

import "time"

// Entity carries the timestamps every persisted credits record has.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity stamps both timestamps with t, normalised to UTC.
func NewEntity(t time.Time) Entity {
	t = t.UTC()
	return Entity{CreatedAt: t, UpdatedAt: t}
}

// Touch moves UpdatedAt forward to t.
func (e *Entity) Touch(t time.Time) {
	e.UpdatedAt = t.UTC()
}

// Clock returns the current time. Engines and stores take one so tests can
// pin timestamps.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time { return time.Now().UTC() }
