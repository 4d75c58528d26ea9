package departures

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func warsaw(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Warsaw")
	require.NoError(t, err)
	return loc
}

func TestNormalize(t *testing.T) {
	day := time.Date(2024, 6, 15, 8, 0, 0, 0, warsaw(t))

	raw := []byte(`[
		[{"key":"brygada","value":"1"},{"key":"kierunek","value":"Centrum"},{"key":"czas","value":"08:10:00"}],
		[{"key":"kierunek","value":"Gocław"}],
		[{"key":"czas","value":"08:30:00"}],
		[{"key":"czas","value":"8.40"},{"key":"kierunek","value":"Pl. Narutowicza"}],
		{"key":"czas","value":"08:50:00"},
		[{"key":"czas","value":"9:05:00"},{"key":"kierunek","value":"Banacha"}]
	]`)

	entries, dropped, err := Normalize(raw, "10", day)
	require.NoError(t, err)
	assert.Equal(t, 4, dropped)
	require.Len(t, entries, 2)

	assert.Equal(t, "10", entries[0].Line)
	assert.Equal(t, "Centrum", entries[0].Destination)
	assert.True(t, entries[0].ScheduledAt.Equal(time.Date(2024, 6, 15, 8, 10, 0, 0, day.Location())))
	assert.Equal(t, day.Location(), entries[0].ScheduledAt.Location())

	assert.Equal(t, "Banacha", entries[1].Destination)
	assert.Equal(t, 9, entries[1].ScheduledAt.Hour())
}

func TestNormalize_OutOfRangeTimeFailsPayload(t *testing.T) {
	day := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value string
	}{
		{name: "hour past midnight", value: "24:10:00"},
		{name: "minute", value: "08:60:00"},
		{name: "second", value: "08:10:75"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := []byte(`[
				[{"key":"czas","value":"08:10:00"},{"key":"kierunek","value":"Centrum"}],
				[{"key":"czas","value":"` + tt.value + `"},{"key":"kierunek","value":"Centrum"}]
			]`)

			entries, _, err := Normalize(raw, "10", day)
			require.Error(t, err)
			assert.Nil(t, entries)

			var schemaErr *ScheduleError
			require.True(t, errors.As(err, &schemaErr))
			assert.Equal(t, tt.value, schemaErr.Value)
		})
	}
}

func TestNormalize_UndecodablePayload(t *testing.T) {
	day := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)

	for _, raw := range []string{`{"result":[]}`, `not json`, `"Błąd"`} {
		_, _, err := Normalize([]byte(raw), "10", day)
		assert.Error(t, err, raw)
	}
}

func TestNormalize_EmptyArray(t *testing.T) {
	entries, dropped, err := Normalize([]byte(`[]`), "10", time.Now())
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, dropped)
}

func TestTimeOnDay(t *testing.T) {
	day := time.Date(2024, 3, 31, 12, 0, 0, 0, warsaw(t))

	tests := []struct {
		value      string
		wantHour   int
		wantMinute int
		malformed  bool
	}{
		{value: "00:00:00", wantHour: 0},
		{value: "23:59:59", wantHour: 23, wantMinute: 59},
		{value: " 07:05:00 ", wantHour: 7, wantMinute: 5},
		{value: "07:05", malformed: true},
		{value: "ab:cd:ef", malformed: true},
		{value: "007:05:00", malformed: true},
		{value: "-1:05:00", malformed: true},
		{value: "", malformed: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := timeOnDay(tt.value, day)
			if tt.malformed {
				assert.ErrorIs(t, err, errMalformedTime)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHour, got.Hour())
			assert.Equal(t, tt.wantMinute, got.Minute())
			assert.Equal(t, 31, got.Day())
		})
	}
}
