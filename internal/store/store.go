// Package store persists raw timetable payloads per (stop, post, line, day).
//
// The calendar date is part of the key, so an entry is never valid past the
// day it was written for. Yesterday's keys are simply never read again;
// Prune removes them when configured.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DateLayout is the civil-date format used in keys.
const DateLayout = "2006-01-02"

// ErrNotFound is returned by Get when no payload exists for a key.
var ErrNotFound = errors.New("store: key not found")

// Key identifies one cached payload.
type Key struct {
	StopID   string
	StopPost string
	Line     string
	Date     string
}

// NewKey builds the key for the calendar day of at, in at's location.
func NewKey(stopID, stopPost, line string, at time.Time) Key {
	return Key{
		StopID:   stopID,
		StopPost: stopPost,
		Line:     line,
		Date:     at.Format(DateLayout),
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%s_%s_%s_%s", k.StopID, k.StopPost, k.Line, k.Date)
}

// Store is a durable key to JSON blob store with exact-key lookup.
type Store interface {
	// Get returns the payload stored under key, or ErrNotFound.
	Get(ctx context.Context, key Key) ([]byte, error)
	// Put stores payload under key, replacing any previous value.
	Put(ctx context.Context, key Key, payload []byte) error
	// Prune removes every key dated before the given day and reports how many.
	Prune(ctx context.Context, before time.Time) (int, error)
	Close() error
}
