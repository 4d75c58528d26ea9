// Package models holds the data shapes shared by acquisition, ranking and
// rendering.
package models

import "time"

// Field names used by the timetable API records.
const (
	FieldTime        = "czas"
	FieldDestination = "kierunek"
	FieldBrigade     = "brygada"
	FieldLine        = "linia"
	FieldStopGroup   = "zespol"
	FieldStopPost    = "slupek"
	FieldStopName    = "nazwa_zespolu"
	FieldStreet      = "ulica"
)

// KeyValue is one field of an API record as it is sent over the wire.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RawDepartureRecord is one scheduled trip, keyed by field name.
type RawDepartureRecord map[string]string

// NewRawDepartureRecord flattens key/value pairs. Later duplicates win.
func NewRawDepartureRecord(fields []KeyValue) RawDepartureRecord {
	rec := make(RawDepartureRecord, len(fields))
	for _, f := range fields {
		rec[f.Key] = f.Value
	}
	return rec
}

// DepartureEntry is a normalized scheduled departure for today.
type DepartureEntry struct {
	ScheduledAt time.Time
	Line        string
	Destination string
}

// RankedRow is one departure placed on the board relative to "now".
type RankedRow struct {
	Label              string
	Line               string
	Destination        string
	MinutesToDeparture int
	MinutesToLeave     int
}

// MustLeave reports whether the ideal leave time has already passed.
func (r RankedRow) MustLeave() bool {
	return r.MinutesToLeave < 0
}

// StopGroup is one stop post found by name search.
type StopGroup struct {
	Name    string
	GroupID string
	Post    string
	Street  string
}
