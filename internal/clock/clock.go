// Package clock abstracts "now" so the board can be rendered for a fixed
// instant in tests, or for a chosen instant when previewing a layout.
package clock

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// RealClock returns system time, converted to Location when it is set.
type RealClock struct {
	Location *time.Location
}

// Now returns the current system time.
func (c RealClock) Now() time.Time {
	now := time.Now()
	if c.Location != nil {
		return now.In(c.Location)
	}
	return now
}

// MockClock is a controllable, thread-safe clock for tests.
type MockClock struct {
	currentTime time.Time
	mu          sync.Mutex
}

// NewMockClock creates a MockClock set to t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{currentTime: t}
}

// Now returns the mock clock's current time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

// Set changes the mock clock's current time.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = t
}

// Advance moves the mock clock by d. Negative durations move it backward.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = m.currentTime.Add(d)
}

// OverrideClock reads the instant from an environment variable, then a file,
// and falls back to its base clock when neither yields a parseable time.
// Sources are re-read on every call.
type OverrideClock struct {
	envVar   string
	filePath string
	location *time.Location
	base     Clock
	logger   *slog.Logger
}

// NewOverrideClock creates an OverrideClock. Empty envVar or filePath disables
// that source; a nil base defaults to RealClock in location.
func NewOverrideClock(envVar, filePath string, location *time.Location, base Clock, logger *slog.Logger) *OverrideClock {
	if base == nil {
		base = RealClock{Location: location}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OverrideClock{
		envVar:   envVar,
		filePath: filePath,
		location: location,
		base:     base,
		logger:   logger,
	}
}

// Now returns the overridden instant, or the base clock's time.
func (o *OverrideClock) Now() time.Time {
	if t, err := o.fromEnv(); err == nil {
		return t
	}
	if t, err := o.fromFile(); err == nil {
		return t
	}
	if o.envVar != "" && os.Getenv(o.envVar) != "" {
		o.logger.Warn("clock override unparseable, using system time",
			slog.String("env_var", o.envVar), slog.String("file_path", o.filePath))
	}
	return o.base.Now()
}

func (o *OverrideClock) fromEnv() (time.Time, error) {
	if o.envVar == "" {
		return time.Time{}, errors.New("environment variable name not configured")
	}
	value := os.Getenv(o.envVar)
	if value == "" {
		return time.Time{}, errors.New("environment variable is empty: " + o.envVar)
	}
	return ParseInstant(value, o.location)
}

func (o *OverrideClock) fromFile() (time.Time, error) {
	if o.filePath == "" {
		return time.Time{}, errors.New("file path not configured")
	}
	data, err := os.ReadFile(o.filePath)
	if err != nil {
		return time.Time{}, err
	}
	return ParseInstant(string(data), o.location)
}

// ParseInstant parses RFC3339, or a local date-time in loc.
func ParseInstant(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		if loc != nil {
			return t.In(loc), nil
		}
		return t, nil
	}

	if loc == nil {
		return time.Time{}, errors.New("timezone not configured")
	}

	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time %q: expected RFC3339, YYYY-MM-DD HH:MM:SS or YYYY-MM-DD HH:MM", s)
}

// ServiceDate returns midnight of t's calendar day in t's location.
func ServiceDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
