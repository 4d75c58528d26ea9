package departures

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/models"
)

// errMalformedTime marks a time-of-day that is not HH:MM:SS at all.
var errMalformedTime = errors.New("malformed time of day")

// ScheduleError reports a time-of-day that is well formed but out of range,
// which only happens when the upstream format drifts.
type ScheduleError struct {
	Value string
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("time of day %q out of range", e.Value)
}

// Normalize decodes a raw timetable payload (an array of per-trip key/value
// arrays) into departures on day. Trips without a usable time or destination
// are dropped and counted. A payload that is not an array of arrays, or a
// time-of-day outside 00:00:00-23:59:59, fails the whole payload.
func Normalize(raw []byte, line string, day time.Time) ([]models.DepartureEntry, int, error) {
	var trips []json.RawMessage
	if err := json.Unmarshal(raw, &trips); err != nil {
		return nil, 0, fmt.Errorf("decoding timetable: %w", err)
	}

	entries := make([]models.DepartureEntry, 0, len(trips))
	dropped := 0
	for _, trip := range trips {
		var fields []models.KeyValue
		if err := json.Unmarshal(trip, &fields); err != nil {
			dropped++
			continue
		}
		rec := models.NewRawDepartureRecord(fields)

		entry, err := normalizeRecord(rec, line, day)
		if err != nil {
			var schemaErr *ScheduleError
			if errors.As(err, &schemaErr) {
				return nil, dropped, err
			}
			dropped++
			continue
		}
		entries = append(entries, entry)
	}

	return entries, dropped, nil
}

func normalizeRecord(rec models.RawDepartureRecord, line string, day time.Time) (models.DepartureEntry, error) {
	clock, ok := rec[models.FieldTime]
	if !ok || strings.TrimSpace(clock) == "" {
		return models.DepartureEntry{}, errors.New("missing time of day")
	}
	dest, ok := rec[models.FieldDestination]
	if !ok || strings.TrimSpace(dest) == "" {
		return models.DepartureEntry{}, errors.New("missing destination")
	}

	at, err := timeOnDay(clock, day)
	if err != nil {
		return models.DepartureEntry{}, err
	}

	return models.DepartureEntry{
		ScheduledAt: at,
		Line:        line,
		Destination: dest,
	}, nil
}

// timeOnDay places an HH:MM:SS time-of-day on day's calendar date.
func timeOnDay(value string, day time.Time) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 3 {
		return time.Time{}, errMalformedTime
	}

	var hms [3]int
	for i, p := range parts {
		if len(p) == 0 || len(p) > 2 {
			return time.Time{}, errMalformedTime
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return time.Time{}, errMalformedTime
		}
		hms[i] = n
	}

	if hms[0] > 23 || hms[1] > 59 || hms[2] > 59 {
		return time.Time{}, &ScheduleError{Value: value}
	}

	y, m, d := day.Date()
	return time.Date(y, m, d, hms[0], hms[1], hms[2], 0, day.Location()), nil
}
